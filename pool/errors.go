package pool

import (
	"errors"
	"fmt"
)

var (
	// ErrShuttingDown is returned by Acquire and Do once Shutdown has begun.
	ErrShuttingDown = errors.New("pool: shutting down")

	// ErrAcquireTimeout is returned when a queued Acquire call waits longer
	// than Config.AcquireTimeout without a connection being released to it.
	ErrAcquireTimeout = errors.New("pool: timed out waiting for a connection")

	errDialerRequired = errors.New("pool: dialer is required")
)

// ConnectError reports a failure to establish a new client, either during
// startup warm-up, on-demand creation in Acquire, or replacement.
type ConnectError struct {
	Region string
	Err    error
}

func (e *ConnectError) Error() string {
	if e.Region == "" {
		return fmt.Sprintf("pool: connect: %v", e.Err)
	}
	return fmt.Sprintf("pool: connect (region %s): %v", e.Region, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }
