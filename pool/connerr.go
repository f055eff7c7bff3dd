package pool

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
)

// Substrings that mark an error as a connectivity failure when type
// checks are inconclusive.
var disconnectTokens = []string{
	"connection",
	"disconnected",
	"timeout",
	"econnrefused",
	"broken pipe",
}

// IsDisconnect reports whether err looks like a connectivity failure.
// Do removes and replaces the leased connection when a query fails with
// one of these; other errors leave the connection in the pool.
func IsDisconnect(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, token := range disconnectTokens {
		if strings.Contains(msg, token) {
			return true
		}
	}
	return false
}
