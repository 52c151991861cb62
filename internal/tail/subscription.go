package tail

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// EventChange is the event name used when pushing a delta to a viewer.
const EventChange = "change"

// Conn is the send side of a viewer's transport channel.
type Conn interface {
	Send(event string, payload Delivery) error
}

// Delivery is the payload pushed to a viewer for one change event.
type Delivery struct {
	File   string `json:"file"`
	Data   string `json:"data"`
	Cursor int64  `json:"cursor"`
}

// Subscription is one viewer's live session against one file.
type Subscription struct {
	ID       string
	FileName string
	conn     Conn
	cursor   atomic.Int64
}

func newSubscription(fileName string, conn Conn, initialCursor int64) *Subscription {
	sub := &Subscription{
		ID:       uuid.NewString(),
		FileName: fileName,
		conn:     conn,
	}
	sub.cursor.Store(initialCursor)
	return sub
}

// Cursor reports how much of the file has been delivered to the viewer.
func (s *Subscription) Cursor() int64 {
	if s == nil {
		return 0
	}
	return s.cursor.Load()
}

func (s *Subscription) setCursor(value int64) {
	s.cursor.Store(value)
}
