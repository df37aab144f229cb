// Package relaymsg defines the wire protocol spoken between relay clients and
// the server: UTF-8 JSON text frames with a "type" discriminator. Both
// directions are closed sets; anything outside them is malformed.
package relaymsg

// Type discriminates message frames.
type Type string

const (
	// client → server
	TypeJoin    Type = "join"
	TypeMove    Type = "move"
	TypeSync    Type = "sync"
	TypeTimeout Type = "timeout"

	// server → client
	TypeJoined       Type = "joined"
	TypeReady        Type = "ready"
	TypeMoved        Type = "moved"
	TypeIllegal      Type = "illegal"
	TypeSynced       Type = "synced"
	TypeError        Type = "error"
	TypeOpponentLeft Type = "opponent_left"
)

// Color identifies a seat.
type Color string

const (
	White Color = "white"
	Black Color = "black"
)

// Other returns the opposing color.
func (c Color) Other() Color {
	if c == White {
		return Black
	}
	return White
}

// Valid reports whether c is one of the two seat colors.
func (c Color) Valid() bool { return c == White || c == Black }

// ErrorCode enumerates protocol-level rejections.
type ErrorCode string

const (
	CodeRoomFull     ErrorCode = "room_full"
	CodeGameFinished ErrorCode = "game_finished"
	CodeBadFEN       ErrorCode = "bad_fen"
	CodeBadJSON      ErrorCode = "bad_json"
)

// DefaultGameID is used when a join frame omits gameId.
const DefaultGameID = "lobby"
