package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/park285/chess-relay/internal/relay"
)

// Repository persists finished games to postgres. Strictly best-effort; the
// relay never waits on it.
type Repository struct {
	db *sql.DB
}

func NewRepository(databaseURL string) (*Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// SaveResult upserts a finished game, keyed by room id. Re-finishing a room
// (e.g. an overwriting timeout) updates the stored result in place.
func (r *Repository) SaveResult(ctx context.Context, rec *relay.GameRecord) error {
	if r == nil || r.db == nil || rec == nil {
		return nil
	}

	movesUCIRaw, _ := json.Marshal(rec.MovesUCI)
	movesSANRaw, _ := json.Marshal(rec.MovesSAN)
	pgn := buildPGN(rec)

	q := `INSERT INTO relay_games (
	    room_id, fen, result, reason, moves_uci, moves_san, pgn, finished_at
	  ) VALUES (
	    $1,$2,$3,$4,$5,$6,$7,$8
	  ) ON CONFLICT (room_id) DO UPDATE SET
	    fen=EXCLUDED.fen,
	    result=EXCLUDED.result,
	    reason=EXCLUDED.reason,
	    moves_uci=EXCLUDED.moves_uci,
	    moves_san=EXCLUDED.moves_san,
	    pgn=EXCLUDED.pgn,
	    finished_at=EXCLUDED.finished_at`

	_, err := r.db.ExecContext(ctx, q,
		rec.Room, rec.FEN,
		rec.Winner, strings.TrimSpace(rec.Reason),
		string(movesUCIRaw), string(movesSANRaw), pgn,
		rec.UpdatedAt,
	)
	return err
}

func mapResultToPGN(winner string) string {
	switch strings.ToLower(strings.TrimSpace(winner)) {
	case "white":
		return "1-0"
	case "black":
		return "0-1"
	case "draw":
		return "1/2-1/2"
	default:
		return "*"
	}
}

func buildPGN(rec *relay.GameRecord) string {
	if rec == nil {
		return ""
	}
	pgnResult := mapResultToPGN(rec.Winner)

	var b strings.Builder
	date := rec.UpdatedAt
	if date.IsZero() {
		date = time.Now()
	}
	b.WriteString("[Event \"Relay\"]\n")
	b.WriteString(fmt.Sprintf("[Site \"%s\"]\n", sanitizePGN(rec.Room)))
	b.WriteString(fmt.Sprintf("[Date \"%04d.%02d.%02d\"]\n", date.Year(), int(date.Month()), date.Day()))
	if strings.TrimSpace(rec.Reason) != "" {
		b.WriteString(fmt.Sprintf("[Termination \"%s\"]\n", sanitizePGN(strings.ToLower(rec.Reason))))
	}
	b.WriteString(fmt.Sprintf("[Result \"%s\"]\n\n", pgnResult))

	for i := 0; i < len(rec.MovesSAN); i += 2 {
		turn := (i / 2) + 1
		b.WriteString(fmt.Sprintf("%d. %s", turn, strings.TrimSpace(rec.MovesSAN[i])))
		if i+1 < len(rec.MovesSAN) {
			b.WriteString(" ")
			b.WriteString(strings.TrimSpace(rec.MovesSAN[i+1]))
		}
		b.WriteString(" ")
	}
	b.WriteString(pgnResult)
	return b.String()
}

func sanitizePGN(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}
