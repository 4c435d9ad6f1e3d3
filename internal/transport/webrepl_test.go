package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	ncerr "mpcat/internal/errors"
	"mpcat/util"
)

// startWebREPLServer emulates the board's WebREPL daemon: password
// challenge, banner, then echo.
func startWebREPLServer(t *testing.T, password string) string {
	t.Helper()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()

		if err := ws.WriteMessage(websocket.TextMessage, []byte("Password: ")); err != nil {
			return
		}
		_, answer, err := ws.ReadMessage()
		if err != nil {
			return
		}
		if strings.TrimRight(string(answer), "\r\n") != password {
			ws.WriteMessage(websocket.TextMessage, []byte("\r\nAccess denied\r\n"))
			return
		}
		if err := ws.WriteMessage(websocket.TextMessage, []byte("\r\nWebREPL connected\r\n>>> ")); err != nil {
			return
		}

		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	return "ws://" + strings.TrimPrefix(srv.URL, "http://")
}

func TestWebREPL_LoginAndEcho(t *testing.T) {
	url := startWebREPLServer(t, "secret")

	tr, err := OpenWebREPL(context.Background(), url, "secret", 2*time.Second, util.NewLogger(0))
	if err != nil {
		t.Fatalf("OpenWebREPL: %v", err)
	}
	defer tr.Close()

	msg := []byte("print(1)\r\n")
	if _, err := tr.Write(msg); err != nil {
		t.Fatalf("Write: %v", err)
	}

	buf := make([]byte, 64)
	var got []byte
	deadline := time.Now().Add(2 * time.Second)
	for len(got) < len(msg) && time.Now().Before(deadline) {
		n, err := tr.Read(buf)
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		got = append(got, buf[:n]...)
	}
	if string(got) != string(msg) {
		t.Errorf("echoed %q, want %q", got, msg)
	}
}

func TestWebREPL_WrongPassword(t *testing.T) {
	url := startWebREPLServer(t, "secret")

	_, err := OpenWebREPL(context.Background(), url, "wrong", 2*time.Second, util.NewLogger(0))
	if err == nil {
		t.Fatal("login succeeded with the wrong password")
	}
	if !strings.Contains(err.Error(), "access denied") {
		t.Errorf("error = %v, want access denied", err)
	}
}

func TestWebREPL_DialFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := "ws://" + strings.TrimPrefix(srv.URL, "http://")
	srv.Close()

	_, err := OpenWebREPL(context.Background(), url, "secret", time.Second, util.NewLogger(0))
	if err == nil {
		t.Fatal("OpenWebREPL succeeded against a dead server")
	}
	var ce *ncerr.ConnectionError
	if !ncerr.As(err, &ce) {
		t.Errorf("error = %T, want *ConnectionError", err)
	}
}

func TestWebREPL_ServerHangupSignalsLoss(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ws.WriteMessage(websocket.TextMessage, []byte("Password: "))
		ws.ReadMessage()
		ws.WriteMessage(websocket.TextMessage, []byte("WebREPL connected\r\n>>> "))
		time.Sleep(50 * time.Millisecond)
		ws.Close()
	}))
	defer srv.Close()
	url := "ws://" + strings.TrimPrefix(srv.URL, "http://")

	tr, err := OpenWebREPL(context.Background(), url, "anything", 2*time.Second, util.NewLogger(0))
	if err != nil {
		t.Fatalf("OpenWebREPL: %v", err)
	}
	defer tr.Close()

	select {
	case lossErr := <-tr.Disconnects():
		if lossErr == nil {
			t.Error("loss notification carried nil error")
		}
	case <-time.After(2 * time.Second):
		t.Error("no loss notification after server hangup")
	}
}
