package tail

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type recordingConn struct {
	mutex      sync.Mutex
	deliveries []Delivery
	events     chan Delivery
	err        error
}

func newRecordingConn() *recordingConn {
	return &recordingConn{events: make(chan Delivery, 16)}
}

func (c *recordingConn) Send(event string, payload Delivery) error {
	if event != EventChange {
		return errors.New("unexpected event " + event)
	}
	c.mutex.Lock()
	err := c.err
	if err == nil {
		c.deliveries = append(c.deliveries, payload)
	}
	c.mutex.Unlock()
	if err != nil {
		return err
	}
	select {
	case c.events <- payload:
	default:
	}
	return nil
}

func (c *recordingConn) received() []Delivery {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	out := make([]Delivery, len(c.deliveries))
	copy(out, c.deliveries)
	return out
}

func (c *recordingConn) joined() string {
	text := ""
	for _, delivery := range c.received() {
		text += delivery.Data
	}
	return text
}

func (c *recordingConn) waitFor(t *testing.T) Delivery {
	t.Helper()
	select {
	case delivery := <-c.events:
		return delivery
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery")
		return Delivery{}
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}
