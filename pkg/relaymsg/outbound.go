package relaymsg

// Joined confirms a seat to the joining connection only.
type Joined struct {
	Type   Type   `json:"type"`
	GameID string `json:"gameId"`
	Color  Color  `json:"color"`
	FEN    string `json:"fen"`
}

// Ready tells both seats that play may begin.
type Ready struct {
	Type   Type   `json:"type"`
	GameID string `json:"gameId"`
	FEN    string `json:"fen"`
}

// Moved is the authoritative broadcast after a legal move. Every client view
// derives from this frame, including the mover's own.
type Moved struct {
	Type      Type   `json:"type"`
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
	FEN       string `json:"fen"`
	SAN       string `json:"san"`
}

// Illegal nacks a rejected move to the requester only.
type Illegal struct {
	Type Type   `json:"type"`
	From string `json:"from"`
	To   string `json:"to"`
}

// Synced broadcasts a position overwrite.
type Synced struct {
	Type Type   `json:"type"`
	FEN  string `json:"fen"`
}

// Error reports a protocol rejection to the offending connection only.
type Error struct {
	Type  Type      `json:"type"`
	Error ErrorCode `json:"error"`
}

// TimeoutNotice broadcasts a terminal result.
type TimeoutNotice struct {
	Type   Type   `json:"type"`
	Winner Color  `json:"winner"`
	Reason string `json:"reason,omitempty"`
}

// OpponentLeft notifies the remaining seat after a disconnect.
type OpponentLeft struct {
	Type Type `json:"type"`
}

func NewJoined(gameID string, color Color, fen string) Joined {
	return Joined{Type: TypeJoined, GameID: gameID, Color: color, FEN: fen}
}

func NewReady(gameID, fen string) Ready {
	return Ready{Type: TypeReady, GameID: gameID, FEN: fen}
}

func NewMoved(from, to, promotion, fen, san string) Moved {
	return Moved{Type: TypeMoved, From: from, To: to, Promotion: promotion, FEN: fen, SAN: san}
}

func NewIllegal(from, to string) Illegal {
	return Illegal{Type: TypeIllegal, From: from, To: to}
}

func NewSynced(fen string) Synced {
	return Synced{Type: TypeSynced, FEN: fen}
}

func NewError(code ErrorCode) Error {
	return Error{Type: TypeError, Error: code}
}

func NewTimeoutNotice(winner Color, reason string) TimeoutNotice {
	return TimeoutNotice{Type: TypeTimeout, Winner: winner, Reason: reason}
}

func NewOpponentLeft() OpponentLeft {
	return OpponentLeft{Type: TypeOpponentLeft}
}
