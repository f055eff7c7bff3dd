package pool

import (
	"context"
	"time"
)

// Client is the handle the pool manages. Adapters under client/ wrap
// concrete drivers (pgx, database/sql, redis) behind this interface.
type Client interface {
	// Ping runs a lightweight probe confirming the connection works.
	Ping(ctx context.Context) error
	// Close releases the underlying connection.
	Close(ctx context.Context) error
}

// Dialer establishes clients. The pool resolves the region URL before
// calling Dial.
type Dialer interface {
	Dial(ctx context.Context, url string) (Client, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, url string) (Client, error)

func (f DialerFunc) Dial(ctx context.Context, url string) (Client, error) { return f(ctx, url) }

// Observer receives query-level events from a client. The pool registers
// one per connection so per-connection statistics keep flowing even when
// callers bypass Do and use the client directly.
type Observer interface {
	QueryCompleted(elapsed time.Duration)
	QueryFailed(err error)
	Notice(msg string)
}

// Observable is implemented by clients that can emit query events. The
// pool subscribes right after dialing; clients without it are still
// fully usable, their statistics are then driven by Do alone.
type Observable interface {
	Subscribe(Observer)
}
