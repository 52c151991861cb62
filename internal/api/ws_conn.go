package api

import (
	"errors"
	"sync"
	"time"

	"tailcast/internal/tail"

	"github.com/gorilla/websocket"
)

const (
	defaultOutboundBuffer = 64
	defaultPingInterval   = 30 * time.Second
	wsReadLimit           = 4096
)

var (
	errOutboundFull = errors.New("websocket outbound queue full")
	errConnClosed   = errors.New("websocket connection closed")
)

// changeMessage is the JSON text frame pushed for each delivery. Data holds the
// raw appended bytes, base64 encoded, so a delta that ends inside a multi-byte
// rune reaches the client intact.
type changeMessage struct {
	Type   string `json:"type"`
	File   string `json:"file"`
	Data   []byte `json:"data"`
	Cursor int64  `json:"cursor"`
}

type wsConnOptions struct {
	OutboundBuffer int
	WriteTimeout   time.Duration
	PingInterval   time.Duration
}

// wsConn adapts a websocket to tail.Conn. Send never blocks; a single writer
// goroutine owns all data frames.
type wsConn struct {
	conn         *websocket.Conn
	outbound     chan changeMessage
	done         chan struct{}
	closeOnce    sync.Once
	writeTimeout time.Duration
	pingInterval time.Duration
}

func newWSConn(conn *websocket.Conn, options wsConnOptions) *wsConn {
	buffer := options.OutboundBuffer
	if buffer <= 0 {
		buffer = defaultOutboundBuffer
	}
	writeTimeout := options.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = wsWriteTimeout
	}
	pingInterval := options.PingInterval
	if pingInterval <= 0 {
		pingInterval = defaultPingInterval
	}
	return &wsConn{
		conn:         conn,
		outbound:     make(chan changeMessage, buffer),
		done:         make(chan struct{}),
		writeTimeout: writeTimeout,
		pingInterval: pingInterval,
	}
}

func (c *wsConn) Send(event string, payload tail.Delivery) error {
	message := changeMessage{
		Type:   event,
		File:   payload.File,
		Data:   []byte(payload.Data),
		Cursor: payload.Cursor,
	}
	select {
	case <-c.done:
		return errConnClosed
	default:
	}
	select {
	case c.outbound <- message:
		return nil
	case <-c.done:
		return errConnClosed
	default:
		return errOutboundFull
	}
}

func (c *wsConn) startWriteLoop() {
	go func() {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case message := <-c.outbound:
				if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
					c.close()
					return
				}
				if err := c.conn.WriteJSON(message); err != nil {
					c.close()
					return
				}
			case <-ticker.C:
				deadline := time.Now().Add(c.writeTimeout)
				if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					c.close()
					return
				}
			case <-c.done:
				return
			}
		}
	}()
}

// readUntilClosed blocks until the peer disconnects or the connection fails.
func (c *wsConn) readUntilClosed() {
	defer c.close()

	pongWait := 2 * c.pingInterval
	c.conn.SetReadLimit(wsReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	}
}

func (c *wsConn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}
