package relay

import (
	"testing"

	"github.com/park285/chess-relay/internal/rules"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	return NewRegistry(rules.NewEngine(), nil)
}

func TestGetOrCreateSeedsPosition(t *testing.T) {
	reg := newTestRegistry(t)

	const midgame = "rnbqkbnr/pppp1ppp/8/4p3/4P3/8/PPPP1PPP/RNBQKBNR w KQkq - 0 2"
	rm := reg.GetOrCreate("seeded", midgame)
	if rm.FEN() != midgame {
		t.Fatalf("seeded fen = %q", rm.FEN())
	}

	// same id returns the same session, later seed ignored
	again := reg.GetOrCreate("seeded", rules.StartingFEN)
	if again != rm {
		t.Fatalf("GetOrCreate returned a different session for the same id")
	}
	if again.FEN() != midgame {
		t.Fatalf("second join reseeded the room")
	}

	// invalid seed falls back to the initial position
	bad := reg.GetOrCreate("garbage-seed", "not a fen")
	if bad.FEN() != rules.StartingFEN {
		t.Fatalf("invalid seed produced fen %q", bad.FEN())
	}
}

func TestTeardownOnLastLeave(t *testing.T) {
	reg := newTestRegistry(t)

	a, b := &fakeConn{}, &fakeConn{}
	rm, err := reg.Join("R1", "", a)
	if err != nil {
		t.Fatalf("join a: %v", err)
	}
	if _, err := reg.Join("R1", "", b); err != nil {
		t.Fatalf("join b: %v", err)
	}

	rm.Move(a, "e2", "e4", "")
	moved := rm.FEN()

	reg.Leave(rm, a)
	if _, ok := reg.Lookup("R1"); !ok {
		t.Fatalf("room removed while a seat remained")
	}
	reg.Leave(rm, b)
	if _, ok := reg.Lookup("R1"); ok {
		t.Fatalf("room still resolvable after both seats left")
	}

	// a fresh join gets a brand-new session at the default start position
	fresh, err := reg.Join("R1", "", &fakeConn{})
	if err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	if fresh == rm {
		t.Fatalf("rejoin resurrected the old session")
	}
	if fresh.FEN() != rules.StartingFEN {
		t.Fatalf("fresh session fen = %q, want start (old was %q)", fresh.FEN(), moved)
	}
}

func TestRegistriesAreIndependent(t *testing.T) {
	regA := newTestRegistry(t)
	regB := newTestRegistry(t)

	if _, err := regA.Join("shared-id", "", &fakeConn{}); err != nil {
		t.Fatalf("join regA: %v", err)
	}
	if regB.Len() != 0 {
		t.Fatalf("second registry sees first registry's rooms")
	}

	rmA, _ := regA.Lookup("shared-id")
	rmB := regB.GetOrCreate("shared-id", "")
	if rmA == rmB {
		t.Fatalf("registries share sessions")
	}
}

func TestJoinFullRoomLeavesStateIntact(t *testing.T) {
	reg := newTestRegistry(t)

	rm, _ := reg.Join("R1", "", &fakeConn{})
	if _, err := reg.Join("R1", "", &fakeConn{}); err != nil {
		t.Fatalf("second join: %v", err)
	}

	if _, err := reg.Join("R1", "", &fakeConn{}); err != ErrRoomFull {
		t.Fatalf("third join err = %v, want ErrRoomFull", err)
	}
	if rm.Seats() != 2 {
		t.Fatalf("seats = %d", rm.Seats())
	}
	if _, ok := reg.Lookup("R1"); !ok {
		t.Fatalf("room vanished after rejected join")
	}
}

var _ Sender = (*fakeConn)(nil)
