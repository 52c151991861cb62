package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tailcast/internal/tail"

	"github.com/gorilla/websocket"
)

func TestWSConnSendReportsFullQueue(t *testing.T) {
	viewer := newWSConn(nil, wsConnOptions{OutboundBuffer: 1})

	if err := viewer.Send(tail.EventChange, tail.Delivery{Data: "one"}); err != nil {
		t.Fatalf("first send: %v", err)
	}
	if err := viewer.Send(tail.EventChange, tail.Delivery{Data: "two"}); !errors.Is(err, errOutboundFull) {
		t.Fatalf("expected errOutboundFull, got %v", err)
	}
}

func TestWSConnWritesJSONFrames(t *testing.T) {
	handlerDone := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer close(handlerDone)
		conn, err := upgradeWebSocket(w, r, nil)
		if err != nil {
			return
		}
		viewer := newWSConn(conn, wsConnOptions{})
		viewer.startWriteLoop()
		_ = viewer.Send(tail.EventChange, tail.Delivery{File: "app.log", Data: "hi\xff", Cursor: 3})
		viewer.readUntilClosed()
		if err := viewer.Send(tail.EventChange, tail.Delivery{}); !errors.Is(err, errConnClosed) {
			t.Errorf("expected errConnClosed after disconnect, got %v", err)
		}
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}

	messageType, data, err := conn.ReadMessage()
	if err != nil {
		_ = conn.Close()
		t.Fatalf("read websocket: %v", err)
	}
	if messageType != websocket.TextMessage {
		t.Fatalf("expected text frame, got %d", messageType)
	}
	if !strings.Contains(string(data), `"type":"change"`) || !strings.Contains(string(data), `"cursor":3`) {
		t.Fatalf("unexpected frame %s", data)
	}
	_ = conn.Close()

	select {
	case <-handlerDone:
	case <-time.After(2 * time.Second):
		t.Fatalf("handler did not exit after close")
	}
}

func TestWSConnPreservesBytesSplitInsideRune(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgradeWebSocket(w, r, nil)
		if err != nil {
			return
		}
		viewer := newWSConn(conn, wsConnOptions{})
		viewer.startWriteLoop()
		_ = viewer.Send(tail.EventChange, tail.Delivery{File: "app.log", Data: "caf\xc3", Cursor: 4})
		_ = viewer.Send(tail.EventChange, tail.Delivery{File: "app.log", Data: "\xa9\n", Cursor: 6})
		viewer.readUntilClosed()
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	defer conn.Close()

	var joined []byte
	for i := 0; i < 2; i++ {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var message changeMessage
		if err := conn.ReadJSON(&message); err != nil {
			t.Fatalf("read websocket: %v", err)
		}
		joined = append(joined, message.Data...)
	}
	if string(joined) != "café\n" {
		t.Fatalf("expected %q, got %q", "café\n", joined)
	}
}
