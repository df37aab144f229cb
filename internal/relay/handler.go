package relay

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/park285/chess-relay/internal/obslog"
	"github.com/park285/chess-relay/pkg/relaymsg"
)

// Handler upgrades inbound connections and routes their frames to room
// sessions. One instance serves every room in the process.
type Handler struct {
	registry *Registry
	origins  []string
}

// NewHandler wires the acceptor to a registry. origins lists allowed Origin
// patterns; empty disables the origin check (development default, TLS and
// auth are expected to live in the hosting environment).
func NewHandler(reg *Registry, origins []string) *Handler {
	return &Handler{registry: reg, origins: origins}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	opts := &websocket.AcceptOptions{}
	if len(h.origins) > 0 {
		opts.OriginPatterns = h.origins
	} else {
		opts.InsecureSkipVerify = true
	}

	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		obslog.L().Warn("relay_accept_error", zap.Error(err))
		return
	}

	c := newClient(conn)
	obslog.L().Info("relay_connect", zap.String("client", c.id))

	ctx := r.Context()
	go c.writeLoop(ctx)
	h.readLoop(ctx, c)

	// The socket closing is the only cancellation signal; unseat synchronously.
	c.close()
	if c.room != nil {
		h.registry.Leave(c.room, c)
	}
	_ = conn.Close(websocket.StatusNormalClosure, "")
	obslog.L().Info("relay_disconnect", zap.String("client", c.id))
}

func (h *Handler) readLoop(ctx context.Context, c *client) {
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			return
		}
		h.dispatch(ctx, c, data)
	}
}

// dispatch handles exactly one frame. A panic while handling it is contained
// here so one connection's message can never take down the process or touch
// other rooms.
func (h *Handler) dispatch(ctx context.Context, c *client, data []byte) {
	defer func() {
		if rec := recover(); rec != nil {
			obslog.L().Error("relay_dispatch_panic",
				zap.String("client", c.id),
				zap.Any("panic", rec),
			)
		}
	}()

	msg, err := relaymsg.Decode(data)
	if err != nil {
		c.Send(relaymsg.NewError(relaymsg.CodeBadJSON))
		return
	}

	switch m := msg.(type) {
	case relaymsg.Join:
		h.handleJoin(c, m)
	case relaymsg.Move:
		if !h.seated(c) {
			return
		}
		c.room.Move(c, m.From, m.To, m.Promotion)
	case relaymsg.Sync:
		if !h.seated(c) {
			return
		}
		c.room.Sync(c, m.FEN)
	case relaymsg.Timeout:
		if !h.seated(c) {
			return
		}
		c.room.Timeout(c, m.Winner, m.Reason)
	}
}

func (h *Handler) handleJoin(c *client, m relaymsg.Join) {
	if c.room != nil {
		obslog.L().Warn("relay_duplicate_join",
			zap.String("client", c.id),
			zap.String("room", c.room.ID()),
		)
		return
	}

	rm, err := h.registry.Join(m.GameID, m.FEN, c)
	if err != nil {
		if errors.Is(err, ErrRoomFull) {
			// Reject and hang up; the error frame is queued ahead of the close.
			c.Send(relaymsg.NewError(relaymsg.CodeRoomFull))
			c.sendClose(websocket.StatusPolicyViolation, "room_full")
			obslog.L().Info("relay_room_full",
				zap.String("client", c.id),
				zap.String("room", m.GameID),
			)
		}
		return
	}
	c.room = rm
}

// seated filters frames sent before any join; they carry no room context and
// are dropped with a log rather than answered.
func (h *Handler) seated(c *client) bool {
	if c.room == nil {
		obslog.L().Warn("relay_unseated_frame", zap.String("client", c.id))
		return false
	}
	return true
}
