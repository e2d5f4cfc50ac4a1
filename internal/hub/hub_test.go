package hub

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/pairplay/sync-server/internal/identity"
	"github.com/pairplay/sync-server/internal/presence"
	"github.com/pairplay/sync-server/internal/registry"
	"github.com/pairplay/sync-server/internal/rooms"
	"github.com/pairplay/sync-server/internal/session"
)

func TestClientMessageMapping(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{session.ErrNotPaired, "You must be paired to start a game"},
		{session.ErrNotFound, "Game session not found"},
		{session.ErrForbidden, "You are not part of this game session"},
		{session.ErrTurnViolation, "Not your turn"},
		{session.ErrInvalidState, "Game session is not in a valid state for this action"},
		{errJoinRequired, "join required"},
	}
	for _, tc := range cases {
		if got := clientMessage(tc.err); got != tc.want {
			t.Fatalf("clientMessage(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
	// Wrapped errors still map to the stable message.
	wrapped := fmt.Errorf("apply move: %w", session.ErrTurnViolation)
	if got := clientMessage(wrapped); got != "Not your turn" {
		t.Fatalf("wrapped mapping = %q", got)
	}
}

func TestRequireCouple(t *testing.T) {
	unpaired := &conn{id: "c1", userID: "alice"}
	if err := requireCouple(unpaired, ""); !errors.Is(err, session.ErrNotPaired) {
		t.Fatalf("unpaired: got %v", err)
	}

	paired := &conn{id: "c2", userID: "alice", coupleID: "cp1"}
	if err := requireCouple(paired, ""); err != nil {
		t.Fatalf("no claim: got %v", err)
	}
	if err := requireCouple(paired, "cp1"); err != nil {
		t.Fatalf("matching claim: got %v", err)
	}
	if err := requireCouple(paired, "cp2"); !errors.Is(err, session.ErrForbidden) {
		t.Fatalf("mismatched claim: got %v", err)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	var p payloadStub
	if err := decode(nil, &p); err == nil {
		t.Fatalf("empty payload accepted")
	}
	if err := decode([]byte(`{`), &p); err == nil {
		t.Fatalf("malformed payload accepted")
	}
	if err := decode([]byte(`{}`), &p); err == nil {
		t.Fatalf("invalid payload accepted")
	}
	p.valid = true
	if err := decode([]byte(`{}`), &p); err != nil {
		t.Fatalf("valid payload rejected: %v", err)
	}
}

type payloadStub struct {
	valid bool
}

func (p *payloadStub) Validate() error {
	if !p.valid {
		return errors.New("invalid")
	}
	return nil
}

type stubDirectory struct {
	profiles map[string]*identity.Profile
}

func (d *stubDirectory) GetProfile(_ context.Context, userID string) (*identity.Profile, error) {
	return d.profiles[userID], nil
}

func (d *stubDirectory) SetOnline(context.Context, string, bool) error { return nil }

func (d *stubDirectory) SetLastSeen(context.Context, string, time.Time) error { return nil }

func TestJoinResetsConnectionIdentity(t *testing.T) {
	dir := &stubDirectory{profiles: map[string]*identity.Profile{
		"alice": {UserID: "alice", DisplayName: "Alice", PartnerID: "bob", CoupleID: "cp1"},
	}}
	pres := presence.NewCoordinator(registry.New(), rooms.NewRouter(), dir)
	h := New(pres, nil, nil, nil)
	ctx := context.Background()

	c := &conn{id: "conn-x"}
	if err := h.onJoin(ctx, c, []byte(`{"userId":"alice"}`)); err != nil {
		t.Fatalf("join as alice: %v", err)
	}
	if c.userID != "alice" || c.coupleID != "cp1" || c.name != "Alice" {
		t.Fatalf("conn identity after join: %+v", c)
	}

	// Re-join as a user without a profile must not leave alice's couple
	// or name behind on the connection.
	if err := h.onJoin(ctx, c, []byte(`{"userId":"eve"}`)); err != nil {
		t.Fatalf("join as eve: %v", err)
	}
	if c.userID != "eve" {
		t.Fatalf("userID = %q", c.userID)
	}
	if c.coupleID != "" || c.name != "" {
		t.Fatalf("stale identity fields: coupleID=%q name=%q", c.coupleID, c.name)
	}
	if err := requireCouple(c, "cp1"); !errors.Is(err, session.ErrNotPaired) {
		t.Fatalf("relay access with stale couple: got %v", err)
	}
}
