package relay

import "time"

// Game record mirror statuses.
const (
	StatusActive   = "active"
	StatusFinished = "finished"
)

// GameRecord is a point-in-time snapshot of a room, mirrored to the archive
// after every accepted mutation. The relay never reads it back.
type GameRecord struct {
	Room      string    `json:"room"`
	FEN       string    `json:"fen"`
	MovesUCI  []string  `json:"moves_uci"`
	MovesSAN  []string  `json:"moves_san"`
	Status    string    `json:"status"`
	Winner    string    `json:"winner,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Recorder mirrors room snapshots to durable storage. Implementations must
// not block: the session state always advances regardless of the mirror.
type Recorder interface {
	Record(rec GameRecord)
}

// NopRecorder discards every snapshot. Used when no archive is configured.
type NopRecorder struct{}

func (NopRecorder) Record(GameRecord) {}
