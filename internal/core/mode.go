// Package core is the orchestration layer.  It composes transports,
// the device engine, and the transfer layer into complete CLI actions
// and provides a builder that selects the right one from a Config.
//
// Architecture layers (bottom → top):
//
//	transport → device (reader/scanner/executor) → transfer → core → cmd
package core

import "context"

// Mode represents one complete mpcat action (repl, run, exec, put,
// get).  Each mode owns its full lifecycle from connecting the device
// to teardown.
type Mode interface {
	Run(ctx context.Context) error
}
