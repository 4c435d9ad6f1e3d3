// mpcat - talk to MicroPython boards over serial, TCP, or WebREPL.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"mpcat/cmd"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cmd.Execute(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "mpcat: %v\n", err)
		os.Exit(1)
	}
}
