package main

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tailcast/internal/logging"

	"github.com/gorilla/websocket"
)

type changeFrame struct {
	Type   string `json:"type"`
	File   string `json:"file"`
	Data   []byte `json:"data"`
	Cursor int64  `json:"cursor"`
}

func startTestServer(t *testing.T, root string, cfg Config) (string, func()) {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	logger := logging.NewWithOutput(logging.NewBuffer(50), logging.LevelDebug, io.Discard)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- serve(ctx, cfg, root, logger, listener)
	}()

	stop := func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("serve returned %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Errorf("serve did not stop")
		}
	}
	return listener.Addr().String(), stop
}

func TestServeStreamsFileChangesEndToEnd(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "app.log")
	if err := os.WriteFile(path, []byte("AAA"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	addr, stop := startTestServer(t, root, Config{Debounce: 20 * time.Millisecond, CatchUp: true})
	defer stop()

	resp, err := http.Get("http://" + addr + "/app.log")
	if err != nil {
		t.Fatalf("get detail page: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "AAA") {
		t.Fatalf("unexpected detail page %d: %s", resp.StatusCode, body)
	}

	query := url.Values{"file": {"app.log"}, "contentLength": {"3"}}
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws/tail?"+query.Encode(), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	waitForStatusSubscribers(t, addr, "app.log", 1)

	file, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := file.WriteString("BBB"); err != nil {
		t.Fatalf("append: %v", err)
	}
	_ = file.Close()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var frame changeFrame
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if frame.Type != "change" || frame.File != "app.log" || string(frame.Data) != "BBB" || frame.Cursor != 6 {
		t.Fatalf("unexpected frame %+v", frame)
	}
}

func TestServeRejectsMissingRoot(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	root := filepath.Join(t.TempDir(), "missing")
	err = serve(context.Background(), Config{CatchUp: true}, root, logging.Discard(), listener)
	if err == nil {
		t.Fatalf("expected error for missing root")
	}
}

func waitForStatusSubscribers(t *testing.T, addr, name string, count int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get("http://" + addr + "/api/status")
		if err == nil {
			var payload struct {
				Files []struct {
					Name        string `json:"name"`
					Subscribers int    `json:"subscribers"`
				} `json:"files"`
			}
			decodeErr := json.NewDecoder(resp.Body).Decode(&payload)
			_ = resp.Body.Close()
			if decodeErr == nil {
				for _, file := range payload.Files {
					if file.Name == name && file.Subscribers == count {
						return
					}
				}
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("expected %d subscribers on %s", count, name)
}
