package relay

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/park285/chess-relay/internal/obslog"
	"github.com/park285/chess-relay/internal/rules"
	"github.com/park285/chess-relay/pkg/relaymsg"
)

// Rules is the legality collaborator. The relay never inspects positions
// itself; it only relays what the engine accepts.
type Rules interface {
	ApplyMove(fen, from, to, promotion string) (rules.MoveResult, error)
	NormalizeFEN(fen string) (string, error)
}

// Sender delivers one outbound frame to a connection. Implementations must be
// non-blocking and failure-isolated: a dead or backpressured peer drops the
// frame instead of stalling the caller.
type Sender interface {
	Send(msg any)
}

var (
	ErrRoomFull     = staticErr("room full")
	ErrGameFinished = staticErr("game finished")
)

type staticErr string

func (e staticErr) Error() string { return string(e) }

// Finish is the terminal record of a room. Once set, moves and syncs are
// rejected; a later timeout still overwrites it.
type Finish struct {
	Winner relaymsg.Color
	Reason string
}

type participant struct {
	conn  Sender
	color relaymsg.Color
}

// Room pairs up to two seats around one authoritative position. All state is
// guarded by mu; every operation is atomic with respect to the others, so two
// moves can never interleave their check-then-apply sequences.
type Room struct {
	id       string
	rules    Rules
	recorder Recorder

	mu           sync.Mutex
	fen          string
	participants []*participant
	movesUCI     []string
	movesSAN     []string
	finished     *Finish
}

func newRoom(id, fen string, r Rules, rec Recorder) *Room {
	if rec == nil {
		rec = NopRecorder{}
	}
	return &Room{id: id, fen: fen, rules: r, recorder: rec}
}

func (rm *Room) ID() string { return rm.id }

// FEN returns the current authoritative position.
func (rm *Room) FEN() string {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.fen
}

// Finished returns a copy of the terminal record, or nil while the game runs.
func (rm *Room) Finished() *Finish {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if rm.finished == nil {
		return nil
	}
	f := *rm.finished
	return &f
}

// Seats returns the number of seated participants.
func (rm *Room) Seats() int {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return len(rm.participants)
}

// Join seats conn: white for the first arrival, black for the second. The
// joining connection gets a joined frame; when the second seat fills, both
// get ready. A third join is rejected with ErrRoomFull and no state change.
func (rm *Room) Join(conn Sender) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if len(rm.participants) >= 2 {
		return ErrRoomFull
	}

	color := relaymsg.White
	if len(rm.participants) == 1 && rm.participants[0].color == relaymsg.White {
		color = relaymsg.Black
	}
	rm.participants = append(rm.participants, &participant{conn: conn, color: color})

	conn.Send(relaymsg.NewJoined(rm.id, color, rm.fen))
	if len(rm.participants) == 2 {
		rm.broadcastLocked(relaymsg.NewReady(rm.id, rm.fen))
	}

	obslog.L().Info("relay_join",
		zap.String("room", rm.id),
		zap.String("color", string(color)),
		zap.Int("seats", len(rm.participants)),
	)
	return nil
}

// Move validates the proposed move against the current position and, when
// legal, advances it and broadcasts the authoritative moved frame to every
// seat, the mover included. Rejections go to the requester only.
func (rm *Room) Move(conn Sender, from, to, promotion string) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.finished != nil {
		conn.Send(relaymsg.NewError(relaymsg.CodeGameFinished))
		return
	}

	result, err := rm.rules.ApplyMove(rm.fen, from, to, promotion)
	if err != nil {
		conn.Send(relaymsg.NewIllegal(from, to))
		obslog.L().Debug("relay_move_rejected",
			zap.String("room", rm.id),
			zap.String("from", from),
			zap.String("to", to),
			zap.Error(err),
		)
		return
	}

	rm.fen = result.FEN
	rm.movesUCI = append(rm.movesUCI, result.UCI)
	rm.movesSAN = append(rm.movesSAN, result.SAN)
	rm.broadcastLocked(relaymsg.NewMoved(from, to, promotion, result.FEN, result.SAN))

	// Decisive engine outcome ends the game without a timeout frame; clients
	// derive mate from the SAN, later mutations get game_finished.
	switch result.Outcome {
	case rules.OutcomeWhiteWon:
		rm.finished = &Finish{Winner: relaymsg.White, Reason: "checkmate"}
	case rules.OutcomeBlackWon:
		rm.finished = &Finish{Winner: relaymsg.Black, Reason: "checkmate"}
	}

	rm.recorder.Record(rm.snapshotLocked())
	obslog.L().Info("relay_move",
		zap.String("room", rm.id),
		zap.String("san", result.SAN),
		zap.String("uci", result.UCI),
		zap.Bool("finished", rm.finished != nil),
	)
}

// Sync overwrites the position with a client-supplied FEN after syntactic
// validation only. This is a trust-the-client recovery primitive; legality of
// the resulting position is not checked.
func (rm *Room) Sync(conn Sender, fen string) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.finished != nil {
		conn.Send(relaymsg.NewError(relaymsg.CodeGameFinished))
		return
	}

	normalized, err := rm.rules.NormalizeFEN(fen)
	if err != nil {
		conn.Send(relaymsg.NewError(relaymsg.CodeBadFEN))
		return
	}

	rm.fen = normalized
	rm.broadcastLocked(relaymsg.NewSynced(normalized))
	rm.recorder.Record(rm.snapshotLocked())
	obslog.L().Info("relay_sync", zap.String("room", rm.id))
}

// Timeout records a decided winner reported from outside (client-side clock)
// and broadcasts it. A timeout after the game is finished overwrites the
// record rather than being rejected.
func (rm *Room) Timeout(conn Sender, winner relaymsg.Color, reason string) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	rm.finished = &Finish{Winner: winner, Reason: reason}
	rm.broadcastLocked(relaymsg.NewTimeoutNotice(winner, reason))
	rm.recorder.Record(rm.snapshotLocked())
	obslog.L().Info("relay_timeout",
		zap.String("room", rm.id),
		zap.String("winner", string(winner)),
		zap.String("reason", reason),
	)
}

// Leave unseats conn and notifies the remaining peer. It reports whether the
// room is now empty; the caller removes empty rooms from the registry. The
// session is not finished by a disconnect, the survivor may keep playing.
func (rm *Room) Leave(conn Sender) (empty bool) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	found := false
	for i, p := range rm.participants {
		if p.conn == conn {
			rm.participants = append(rm.participants[:i], rm.participants[i+1:]...)
			found = true
			break
		}
	}
	if !found {
		return false
	}

	if len(rm.participants) == 0 {
		obslog.L().Info("relay_room_empty", zap.String("room", rm.id))
		return true
	}

	rm.broadcastLocked(relaymsg.NewOpponentLeft())
	obslog.L().Info("relay_leave",
		zap.String("room", rm.id),
		zap.Int("seats", len(rm.participants)),
	)
	return false
}

// broadcastLocked fans msg out to every seat. Sends are fire-and-forget per
// recipient; a failed delivery never rolls back the mutation that caused it.
func (rm *Room) broadcastLocked(msg any) {
	for _, p := range rm.participants {
		p.conn.Send(msg)
	}
}

func (rm *Room) snapshotLocked() GameRecord {
	rec := GameRecord{
		Room:      rm.id,
		FEN:       rm.fen,
		MovesUCI:  append([]string(nil), rm.movesUCI...),
		MovesSAN:  append([]string(nil), rm.movesSAN...),
		Status:    StatusActive,
		UpdatedAt: time.Now(),
	}
	if rm.finished != nil {
		rec.Status = StatusFinished
		rec.Winner = string(rm.finished.Winner)
		rec.Reason = rm.finished.Reason
	}
	return rec
}
