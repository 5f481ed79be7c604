package host

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// WatchSignals sets the quit flag when the process receives SIGINT or
// SIGTERM, so running loops stop at their next step. The returned function
// stops watching.
func (c *Core) WatchSignals(ctx context.Context) (stop func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		select {
		case sig := <-ch:
			c.cfg.logger.Warn("interrupt received, stopping after the current step",
				slog.String("host", c.class.Name),
				slog.String("signal", sig.String()))
			c.Quit()
		case <-ctx.Done():
		case <-done:
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(ch)
			close(done)
		})
	}
}
