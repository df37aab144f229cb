package relay

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/chess-relay/internal/obslog"
)

const (
	egressBuffer = 32
	writeTimeout = 5 * time.Second
)

// closeFrame asks the write loop to close the socket after everything queued
// before it has been flushed.
type closeFrame struct {
	code   websocket.StatusCode
	reason string
}

// client is one seated (or seating) websocket connection. The read loop owns
// room; the write loop drains egress. Send never blocks: a slow or dead peer
// loses frames instead of stalling a room mutation.
type client struct {
	id   string
	conn *websocket.Conn

	egress chan any
	done   chan struct{}
	once   sync.Once

	room *Room
}

func newClient(conn *websocket.Conn) *client {
	return &client{
		id:     uuid.NewString(),
		conn:   conn,
		egress: make(chan any, egressBuffer),
		done:   make(chan struct{}),
	}
}

// Send queues msg for delivery. Drops when the peer cannot keep up.
func (c *client) Send(msg any) {
	select {
	case <-c.done:
	case c.egress <- msg:
	default:
		obslog.L().Warn("relay_egress_drop", zap.String("client", c.id))
	}
}

// sendClose queues a server-initiated close behind any pending frames.
func (c *client) sendClose(code websocket.StatusCode, reason string) {
	c.Send(closeFrame{code: code, reason: reason})
}

func (c *client) close() {
	c.once.Do(func() { close(c.done) })
}

func (c *client) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case msg := <-c.egress:
			if cf, ok := msg.(closeFrame); ok {
				_ = c.conn.Close(cf.code, cf.reason)
				return
			}
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, c.conn, msg)
			cancel()
			if err != nil {
				// The read loop notices the broken socket and tears down;
				// a failed write must not fail anyone else's delivery.
				obslog.L().Debug("relay_write_error", zap.String("client", c.id), zap.Error(err))
			}
		}
	}
}
