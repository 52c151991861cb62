package main

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"testing"
	"time"
)

func TestRunnerStopsComponentsInOrderOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	serveStop := make(chan struct{})
	order := make(chan string, 3)

	lifecycle := &runner{stopTimeout: 100 * time.Millisecond}
	done := make(chan error, 1)
	go func() {
		done <- lifecycle.run(ctx, component{
			name: "http",
			serve: func() error {
				<-serveStop
				return http.ErrServerClosed
			},
			stop: func(context.Context) error {
				order <- "http"
				close(serveStop)
				return nil
			},
		}, component{
			name: "watcher",
			stop: func(context.Context) error {
				order <- "watcher"
				return nil
			},
		}, component{
			name: "tail engine",
			stop: func(context.Context) error {
				order <- "tail engine"
				return nil
			},
		})
	}()

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean stop, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("runner did not stop")
	}
	close(order)
	got := []string{}
	for name := range order {
		got = append(got, name)
	}
	expected := []string{"http", "watcher", "tail engine"}
	if !reflect.DeepEqual(got, expected) {
		t.Fatalf("expected stop order %v, got %v", expected, got)
	}
}

func TestRunnerReturnsServeFailure(t *testing.T) {
	boom := errors.New("address in use")
	stopped := false

	lifecycle := &runner{stopTimeout: 50 * time.Millisecond}
	err := lifecycle.run(context.Background(), component{
		name:  "http",
		serve: func() error { return boom },
		stop: func(context.Context) error {
			stopped = true
			return nil
		},
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected serve failure, got %v", err)
	}
	if !stopped {
		t.Fatalf("expected components to stop after a serve failure")
	}
}

func TestRunnerJoinsStopFailures(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	watcherErr := errors.New("close watcher")
	engineErr := errors.New("engine stuck")

	lifecycle := &runner{stopTimeout: 50 * time.Millisecond}
	err := lifecycle.run(ctx, component{
		name: "watcher",
		stop: func(context.Context) error { return watcherErr },
	}, component{
		name: "tail engine",
		stop: func(context.Context) error { return engineErr },
	})
	if !errors.Is(err, watcherErr) || !errors.Is(err, engineErr) {
		t.Fatalf("expected both stop failures, got %v", err)
	}
}

func TestRunnerGivesUpOnStuckComponent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	stuck := make(chan struct{})
	defer close(stuck)

	lifecycle := &runner{stopTimeout: 30 * time.Millisecond}
	done := make(chan error, 1)
	go func() {
		done <- lifecycle.run(ctx, component{
			name: "http",
			serve: func() error {
				<-stuck
				return nil
			},
		})
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected nil error, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("runner waited past its stop timeout")
	}
}
