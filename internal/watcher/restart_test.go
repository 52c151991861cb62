package watcher

import (
	"errors"
	"testing"
	"time"
)

func TestRestartDelayBackoff(t *testing.T) {
	cases := []struct {
		attempt  int
		expected time.Duration
	}{
		{attempt: 0, expected: restartBaseDelay},
		{attempt: 1, expected: restartBaseDelay * 2},
		{attempt: 2, expected: restartBaseDelay * 4},
	}

	for _, testCase := range cases {
		if got := restartDelay(testCase.attempt); got != testCase.expected {
			t.Fatalf("attempt %d: expected %s, got %s", testCase.attempt, testCase.expected, got)
		}
	}
}

func TestHandleErrorSchedulesRestart(t *testing.T) {
	watcher, _ := newTestWatcher(t, t.TempDir())

	watcher.handleError(errors.New("boom"))

	watcher.restartMutex.Lock()
	timer := watcher.restartTimer
	attempts := watcher.restartAttempts
	if timer != nil {
		timer.Stop()
		watcher.restartTimer = nil
	}
	watcher.restartMutex.Unlock()

	if attempts != 1 {
		t.Fatalf("expected 1 restart attempt, got %d", attempts)
	}
	if timer == nil {
		t.Fatalf("expected restart timer to be set")
	}
	if watcher.Metrics().Errors != 1 {
		t.Fatalf("expected error counter 1, got %d", watcher.Metrics().Errors)
	}
}

func TestScheduleRestartReportsExhaustion(t *testing.T) {
	reported := make(chan error, 1)
	watcher, _ := newTestWatcher(t, t.TempDir())
	watcher.errorHandler = func(err error) {
		reported <- err
	}

	watcher.restartMutex.Lock()
	watcher.restartAttempts = maxRestartAttempts
	watcher.restartMutex.Unlock()

	watcher.scheduleRestart(errors.New("fatal"))

	select {
	case err := <-reported:
		if err.Error() != "fatal" {
			t.Fatalf("unexpected error %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("expected error handler to be called")
	}
}

func TestRestartReplacesWatcher(t *testing.T) {
	watcher, _ := newTestWatcher(t, t.TempDir())

	watcher.mutex.Lock()
	previous := watcher.watcher
	watcher.mutex.Unlock()

	if err := watcher.restart(); err != nil {
		t.Fatalf("restart: %v", err)
	}

	watcher.mutex.Lock()
	current := watcher.watcher
	watcher.mutex.Unlock()
	if current == previous {
		t.Fatalf("expected fsnotify watcher to be replaced")
	}
}
