package relaymsg

import (
	"encoding/json"
	"strings"
)

// ErrMalformed covers every frame the decoder refuses: broken JSON, unknown
// type tags, and known tags missing required fields. The server answers all of
// them with CodeBadJSON.
var ErrMalformed = staticErr("malformed message")

type staticErr string

func (e staticErr) Error() string { return string(e) }

// Inbound is the closed set of client → server messages.
type Inbound interface{ inbound() }

// Join seats the connection in a room, creating it on first join.
type Join struct {
	Type   Type   `json:"type"`
	GameID string `json:"gameId,omitempty"`
	FEN    string `json:"fen,omitempty"`
}

// Move proposes a move from the sender's seat.
type Move struct {
	Type      Type   `json:"type"`
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
}

// Sync overwrites the room position with a client-supplied FEN.
type Sync struct {
	Type Type   `json:"type"`
	FEN  string `json:"fen"`
}

// Timeout declares a decided winner, e.g. from a client-side clock.
type Timeout struct {
	Type   Type   `json:"type"`
	Winner Color  `json:"winner"`
	Reason string `json:"reason,omitempty"`
}

func (Join) inbound()    {}
func (Move) inbound()    {}
func (Sync) inbound()    {}
func (Timeout) inbound() {}

// Decode parses a text frame into exactly one Inbound variant, failing closed
// on anything that does not match a known tag and shape.
func Decode(data []byte) (Inbound, error) {
	var probe struct {
		Type Type `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, ErrMalformed
	}

	switch probe.Type {
	case TypeJoin:
		var m Join
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, ErrMalformed
		}
		if strings.TrimSpace(m.GameID) == "" {
			m.GameID = DefaultGameID
		}
		return m, nil
	case TypeMove:
		var m Move
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, ErrMalformed
		}
		if strings.TrimSpace(m.From) == "" || strings.TrimSpace(m.To) == "" {
			return nil, ErrMalformed
		}
		return m, nil
	case TypeSync:
		var m Sync
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, ErrMalformed
		}
		if strings.TrimSpace(m.FEN) == "" {
			return nil, ErrMalformed
		}
		return m, nil
	case TypeTimeout:
		var m Timeout
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, ErrMalformed
		}
		if !m.Winner.Valid() {
			return nil, ErrMalformed
		}
		return m, nil
	default:
		return nil, ErrMalformed
	}
}
