package relay

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/chess-relay/internal/rules"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	reg := NewRegistry(rules.NewEngine(), nil)
	srv := httptest.NewServer(NewHandler(reg, nil))
	t.Cleanup(srv.Close)
	return srv
}

func dialWS(t *testing.T, ctx context.Context, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func sendJSON(t *testing.T, ctx context.Context, conn *websocket.Conn, v any) {
	t.Helper()
	if err := wsjson.Write(ctx, conn, v); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func recvFrame(t *testing.T, ctx context.Context, conn *websocket.Conn) map[string]any {
	t.Helper()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal %q: %v", data, err)
	}
	return m
}

func expectFrame(t *testing.T, ctx context.Context, conn *websocket.Conn, typ string) map[string]any {
	t.Helper()
	m := recvFrame(t, ctx, conn)
	if m["type"] != typ {
		t.Fatalf("frame type = %v, want %s (frame: %v)", m["type"], typ, m)
	}
	return m
}

func expectSilence(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if _, data, err := conn.Read(ctx); err == nil {
		t.Fatalf("expected no frame, got %s", data)
	}
}

func TestEndToEndScenario(t *testing.T) {
	srv := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	connA := dialWS(t, ctx, srv)
	connB := dialWS(t, ctx, srv)

	sendJSON(t, ctx, connA, map[string]any{"type": "join", "gameId": "R1"})
	joined := expectFrame(t, ctx, connA, "joined")
	if joined["color"] != "white" {
		t.Fatalf("first joiner color = %v", joined["color"])
	}
	if joined["gameId"] != "R1" {
		t.Fatalf("joined gameId = %v", joined["gameId"])
	}
	startFEN, _ := joined["fen"].(string)
	if startFEN != rules.StartingFEN {
		t.Fatalf("joined fen = %q", startFEN)
	}

	sendJSON(t, ctx, connB, map[string]any{"type": "join", "gameId": "R1"})
	joinedB := expectFrame(t, ctx, connB, "joined")
	if joinedB["color"] != "black" {
		t.Fatalf("second joiner color = %v", joinedB["color"])
	}
	expectFrame(t, ctx, connB, "ready")
	expectFrame(t, ctx, connA, "ready")

	sendJSON(t, ctx, connA, map[string]any{"type": "move", "from": "e2", "to": "e4"})
	for _, conn := range []*websocket.Conn{connA, connB} {
		mv := expectFrame(t, ctx, conn, "moved")
		if mv["san"] != "e4" || mv["from"] != "e2" || mv["to"] != "e4" {
			t.Fatalf("moved frame = %v", mv)
		}
		if fen, _ := mv["fen"].(string); fen == startFEN || fen == "" {
			t.Fatalf("moved fen did not advance: %v", mv["fen"])
		}
	}

	sendJSON(t, ctx, connB, map[string]any{"type": "move", "from": "e7", "to": "e5"})
	for _, conn := range []*websocket.Conn{connA, connB} {
		mv := expectFrame(t, ctx, conn, "moved")
		if mv["san"] != "e5" {
			t.Fatalf("second moved frame = %v", mv)
		}
	}

	sendJSON(t, ctx, connA, map[string]any{"type": "timeout", "winner": "white"})
	for _, conn := range []*websocket.Conn{connA, connB} {
		to := expectFrame(t, ctx, conn, "timeout")
		if to["winner"] != "white" {
			t.Fatalf("timeout frame = %v", to)
		}
	}

	sendJSON(t, ctx, connA, map[string]any{"type": "move", "from": "g1", "to": "f3"})
	errFrame := expectFrame(t, ctx, connA, "error")
	if errFrame["error"] != "game_finished" {
		t.Fatalf("post-finish error = %v", errFrame["error"])
	}
	expectSilence(t, connB)
}

func TestOutOfTurnMoveOverWire(t *testing.T) {
	srv := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	connA := dialWS(t, ctx, srv)
	connB := dialWS(t, ctx, srv)
	sendJSON(t, ctx, connA, map[string]any{"type": "join", "gameId": "wire-turn"})
	expectFrame(t, ctx, connA, "joined")
	sendJSON(t, ctx, connB, map[string]any{"type": "join", "gameId": "wire-turn"})
	expectFrame(t, ctx, connB, "joined")
	expectFrame(t, ctx, connA, "ready")
	expectFrame(t, ctx, connB, "ready")

	sendJSON(t, ctx, connA, map[string]any{"type": "move", "from": "e2", "to": "e4"})
	expectFrame(t, ctx, connA, "moved")
	expectFrame(t, ctx, connB, "moved")

	// white again, out of turn
	sendJSON(t, ctx, connA, map[string]any{"type": "move", "from": "d2", "to": "d4"})
	ill := expectFrame(t, ctx, connA, "illegal")
	if ill["from"] != "d2" || ill["to"] != "d4" {
		t.Fatalf("illegal frame = %v", ill)
	}
	expectSilence(t, connB)
}

func TestRoomFullClosesThirdConnection(t *testing.T) {
	srv := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	connA := dialWS(t, ctx, srv)
	connB := dialWS(t, ctx, srv)
	sendJSON(t, ctx, connA, map[string]any{"type": "join", "gameId": "full"})
	expectFrame(t, ctx, connA, "joined")
	sendJSON(t, ctx, connB, map[string]any{"type": "join", "gameId": "full"})
	expectFrame(t, ctx, connB, "joined")
	expectFrame(t, ctx, connA, "ready")
	expectFrame(t, ctx, connB, "ready")

	connC := dialWS(t, ctx, srv)
	sendJSON(t, ctx, connC, map[string]any{"type": "join", "gameId": "full"})
	errFrame := expectFrame(t, ctx, connC, "error")
	if errFrame["error"] != "room_full" {
		t.Fatalf("third join error = %v", errFrame["error"])
	}
	// server hangs up after the rejection
	rctx, rcancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer rcancel()
	if _, _, err := connC.Read(rctx); err == nil {
		t.Fatalf("third connection still open after room_full")
	}

	// seated peers unaffected
	sendJSON(t, ctx, connA, map[string]any{"type": "move", "from": "e2", "to": "e4"})
	expectFrame(t, ctx, connA, "moved")
	expectFrame(t, ctx, connB, "moved")
}

func TestMalformedFrameGetsBadJSON(t *testing.T) {
	srv := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn := dialWS(t, ctx, srv)
	if err := conn.Write(ctx, websocket.MessageText, []byte("{nope")); err != nil {
		t.Fatalf("write: %v", err)
	}
	errFrame := expectFrame(t, ctx, conn, "error")
	if errFrame["error"] != "bad_json" {
		t.Fatalf("error = %v, want bad_json", errFrame["error"])
	}

	// unknown discriminator fails closed the same way
	sendJSON(t, ctx, conn, map[string]any{"type": "teleport"})
	errFrame = expectFrame(t, ctx, conn, "error")
	if errFrame["error"] != "bad_json" {
		t.Fatalf("error = %v, want bad_json", errFrame["error"])
	}

	// the connection survives and can still join
	sendJSON(t, ctx, conn, map[string]any{"type": "join"})
	joined := expectFrame(t, ctx, conn, "joined")
	if joined["gameId"] != "lobby" {
		t.Fatalf("default gameId = %v, want lobby", joined["gameId"])
	}
}

func TestDisconnectNotifiesAndTearsDown(t *testing.T) {
	srv := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	connA := dialWS(t, ctx, srv)
	connB := dialWS(t, ctx, srv)
	sendJSON(t, ctx, connA, map[string]any{"type": "join", "gameId": "gone"})
	expectFrame(t, ctx, connA, "joined")
	sendJSON(t, ctx, connB, map[string]any{"type": "join", "gameId": "gone"})
	expectFrame(t, ctx, connB, "joined")
	expectFrame(t, ctx, connA, "ready")
	expectFrame(t, ctx, connB, "ready")

	sendJSON(t, ctx, connA, map[string]any{"type": "move", "from": "e2", "to": "e4"})
	expectFrame(t, ctx, connA, "moved")
	expectFrame(t, ctx, connB, "moved")

	_ = connA.Close(websocket.StatusNormalClosure, "")
	expectFrame(t, ctx, connB, "opponent_left")

	_ = connB.Close(websocket.StatusNormalClosure, "")

	// both gone: the same id must resolve to a brand-new room at the start
	// position. Teardown races the rejoin, so retry on a fresh connection.
	deadline := time.Now().Add(5 * time.Second)
	for {
		connC := dialWS(t, ctx, srv)
		sendJSON(t, ctx, connC, map[string]any{"type": "join", "gameId": "gone"})
		joined := recvFrame(t, ctx, connC)
		_ = connC.Close(websocket.StatusNormalClosure, "")
		if joined["type"] == "joined" && joined["color"] == "white" && joined["fen"] == rules.StartingFEN {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("room not recreated fresh: %v", joined)
		}
		time.Sleep(50 * time.Millisecond)
	}
}
