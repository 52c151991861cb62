package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"tailcast/internal/logging"
)

const defaultStopTimeout = 5 * time.Second

// component is one long-lived part of the process. serve may be nil for parts
// that only need stopping, such as the directory watcher.
type component struct {
	name  string
	serve func() error
	stop  func(context.Context) error
}

type componentExit struct {
	name string
	err  error
}

type runner struct {
	logger      *logging.Logger
	stopTimeout time.Duration
}

// run serves every component until ctx is done or one of them exits, then
// stops all components in the order given. The first unexpected exit and
// every stop failure are joined into the returned error.
func (r *runner) run(ctx context.Context, components ...component) error {
	exits := make(chan componentExit, len(components))
	serving := 0
	for _, part := range components {
		if part.serve == nil {
			continue
		}
		serving++
		go func() {
			exits <- componentExit{name: part.name, err: part.serve()}
		}()
	}

	var runErr error
	select {
	case exit := <-exits:
		serving--
		if !cleanExit(exit.err) {
			r.logger.Error("component exited", map[string]string{
				"component": exit.name,
				"error":     fmt.Sprint(exit.err),
			})
			runErr = fmt.Errorf("%s: %w", exit.name, exit.err)
		}
	case <-ctx.Done():
	}

	timeout := r.stopTimeout
	if timeout <= 0 {
		timeout = defaultStopTimeout
	}
	stopCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	for _, part := range components {
		if part.stop == nil {
			continue
		}
		started := time.Now()
		if err := part.stop(stopCtx); err != nil {
			r.logger.Warn("component stop failed", map[string]string{
				"component": part.name,
				"error":     err.Error(),
			})
			runErr = errors.Join(runErr, fmt.Errorf("stop %s: %w", part.name, err))
			continue
		}
		r.logger.Debug("component stopped", map[string]string{
			"component": part.name,
			"elapsed":   time.Since(started).Round(time.Millisecond).String(),
		})
	}

	for ; serving > 0; serving-- {
		select {
		case exit := <-exits:
			if !cleanExit(exit.err) {
				r.logger.Warn("component exited during shutdown", map[string]string{
					"component": exit.name,
					"error":     exit.err.Error(),
				})
			}
		case <-stopCtx.Done():
			return runErr
		}
	}
	return runErr
}

func cleanExit(err error) bool {
	return err == nil || errors.Is(err, http.ErrServerClosed) || errors.Is(err, context.Canceled)
}
