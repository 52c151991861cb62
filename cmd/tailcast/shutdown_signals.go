package main

import (
	"context"
	"os"
	"sync"

	"tailcast/internal/logging"
)

// signalContext returns a context cancelled by the first value on signals.
// Later signals do not interrupt the graceful shutdown; only the first repeat
// is logged. The returned stop func releases the listener goroutine.
func signalContext(parent context.Context, logger *logging.Logger, signals <-chan os.Signal) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)
	if signals == nil {
		return ctx, cancel
	}

	done := make(chan struct{})
	var once sync.Once
	stop := func() {
		once.Do(func() {
			cancel()
			close(done)
		})
	}

	go func() {
		received := 0
		for {
			select {
			case <-done:
				return
			case sig, ok := <-signals:
				if !ok {
					return
				}
				received++
				fields := map[string]string{}
				if sig != nil {
					fields["signal"] = sig.String()
				}
				switch received {
				case 1:
					logger.Info("shutting down", fields)
					cancel()
				case 2:
					logger.Info("shutdown in progress, signal ignored", fields)
				}
			}
		}
	}()
	return ctx, stop
}
