// Package shutdown ties process termination signals to graceful pool
// shutdown.
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/voltgrid/dbpool/foundation/logger"
)

// Stopper is anything with a graceful Shutdown; *pool.Pool satisfies it.
type Stopper interface {
	Shutdown(ctx context.Context) error
}

// NotifyOnSignals runs target.Shutdown with the given timeout when a
// termination signal (SIGINT, SIGTERM, and SIGUSR2 on unix) arrives.
// The returned stop function detaches the handler; it is safe to call
// more than once.
func NotifyOnSignals(target Stopper, log logger.Logger, timeout time.Duration) (stop func()) {
	if log == nil {
		log = logger.Nop()
	}

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, terminationSignals()...)
	done := make(chan struct{})

	go func() {
		defer signal.Stop(ch)

		select {
		case sig := <-ch:
			log.Infow("termination signal received", "signal", sig.String())

			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			if err := target.Shutdown(ctx); err != nil {
				log.Errorw("shutdown failed", "err", err)
				return
			}
			log.Infow("shutdown complete")
		case <-done:
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}
