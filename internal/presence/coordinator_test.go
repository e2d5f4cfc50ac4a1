package presence

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pairplay/sync-server/internal/identity"
	"github.com/pairplay/sync-server/internal/registry"
	"github.com/pairplay/sync-server/internal/rooms"
)

type frame struct {
	event   string
	payload any
}

type fakeSender struct {
	id string

	mu     sync.Mutex
	frames []frame
}

func (f *fakeSender) ID() string { return f.id }

func (f *fakeSender) Send(event string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, frame{event: event, payload: payload})
	return nil
}

func (f *fakeSender) events() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.frames))
	for _, fr := range f.frames {
		out = append(out, fr.event)
	}
	return out
}

type fakeDirectory struct {
	mu       sync.Mutex
	profiles map[string]*identity.Profile
	online   map[string]bool
	lastSeen map[string]time.Time
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		profiles: make(map[string]*identity.Profile),
		online:   make(map[string]bool),
		lastSeen: make(map[string]time.Time),
	}
}

func (d *fakeDirectory) GetProfile(_ context.Context, userID string) (*identity.Profile, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.profiles[userID], nil
}

func (d *fakeDirectory) SetOnline(_ context.Context, userID string, online bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.online[userID] = online
	return nil
}

func (d *fakeDirectory) SetLastSeen(_ context.Context, userID string, t time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastSeen[userID] = t
	return nil
}

func (d *fakeDirectory) isOnline(userID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.online[userID]
}

func pairProfiles(d *fakeDirectory) {
	d.profiles["alice"] = &identity.Profile{UserID: "alice", DisplayName: "Alice", PartnerID: "bob", CoupleID: "cp1"}
	d.profiles["bob"] = &identity.Profile{UserID: "bob", DisplayName: "Bob", PartnerID: "alice", CoupleID: "cp1"}
}

func newTestCoordinator(t *testing.T) (*Coordinator, *rooms.Router, *fakeDirectory) {
	t.Helper()
	dir := newFakeDirectory()
	pairProfiles(dir)
	router := rooms.NewRouter()
	return NewCoordinator(registry.New(), router, dir), router, dir
}

func TestConnectNotifiesPartnerOnly(t *testing.T) {
	c, _, dir := newTestCoordinator(t)
	ctx := context.Background()

	bobConn := &fakeSender{id: "conn-bob"}
	if p := c.HandleConnect(ctx, "bob", bobConn); p == nil || p.CoupleID != "cp1" {
		t.Fatalf("bob profile: %+v", p)
	}

	aliceConn := &fakeSender{id: "conn-alice"}
	c.HandleConnect(ctx, "alice", aliceConn)

	if !dir.isOnline("alice") {
		t.Fatalf("alice not marked online")
	}
	// Bob sees alice's status, alice does not see her own.
	if evts := bobConn.events(); len(evts) != 1 || evts[0] != "partner_status" {
		t.Fatalf("bob events: %v", evts)
	}
	if evts := aliceConn.events(); len(evts) != 0 {
		t.Fatalf("alice received her own status: %v", evts)
	}
}

func TestDisconnectNotifiesPartner(t *testing.T) {
	c, _, dir := newTestCoordinator(t)
	ctx := context.Background()

	bobConn := &fakeSender{id: "conn-bob"}
	c.HandleConnect(ctx, "bob", bobConn)
	aliceConn := &fakeSender{id: "conn-alice"}
	c.HandleConnect(ctx, "alice", aliceConn)

	c.HandleDisconnect(ctx, "conn-alice")
	if dir.isOnline("alice") {
		t.Fatalf("alice still marked online after disconnect")
	}
	evts := bobConn.events()
	if len(evts) != 2 || evts[1] != "partner_status" {
		t.Fatalf("bob events after disconnect: %v", evts)
	}
	dir.mu.Lock()
	_, seen := dir.lastSeen["alice"]
	dir.mu.Unlock()
	if !seen {
		t.Fatalf("last seen not recorded")
	}
}

func TestStaleDisconnectAfterReconnect(t *testing.T) {
	c, router, dir := newTestCoordinator(t)
	ctx := context.Background()

	old := &fakeSender{id: "conn-old"}
	c.HandleConnect(ctx, "alice", old)
	fresh := &fakeSender{id: "conn-fresh"}
	c.HandleConnect(ctx, "alice", fresh)

	// The old socket's close arrives after the reconnect; it must not flip
	// alice offline or disturb the fresh connection's memberships.
	c.HandleDisconnect(ctx, "conn-old")
	if !dir.isOnline("alice") {
		t.Fatalf("alice marked offline by stale disconnect")
	}
	if n := len(router.Members(rooms.UserChannel("alice"))); n != 1 {
		t.Fatalf("user channel members=%d, want 1", n)
	}
}

func TestReidentifyOnSameConnection(t *testing.T) {
	c, router, dir := newTestCoordinator(t)
	dir.profiles["eve"] = &identity.Profile{UserID: "eve", DisplayName: "Eve", PartnerID: "mal", CoupleID: "cp2"}
	ctx := context.Background()

	conn := &fakeSender{id: "conn-x"}
	c.HandleConnect(ctx, "alice", conn)

	// The same live connection announces itself as a different user. The
	// old identity must be fully torn down: no lingering couple membership,
	// no dangling registry entry, alice durably offline.
	c.HandleConnect(ctx, "eve", conn)

	if n := len(router.Members(rooms.CoupleChannel("cp1"))); n != 0 {
		t.Fatalf("conn still member of old couple channel: members=%d", n)
	}
	if n := len(router.Members(rooms.CoupleChannel("cp2"))); n != 1 {
		t.Fatalf("new couple channel members=%d, want 1", n)
	}
	if _, ok := c.reg.Lookup("alice"); ok {
		t.Fatalf("registry still maps alice after re-identify")
	}
	if connID, ok := c.reg.Lookup("eve"); !ok || connID != "conn-x" {
		t.Fatalf("eve mapping: %q ok=%v", connID, ok)
	}
	if dir.isOnline("alice") {
		t.Fatalf("alice still durably online after re-identify")
	}
	if !dir.isOnline("eve") {
		t.Fatalf("eve not marked online")
	}

	c.HandleDisconnect(ctx, "conn-x")
	if dir.isOnline("eve") {
		t.Fatalf("eve still online after disconnect")
	}
	if c.reg.Online() != 0 {
		t.Fatalf("registry not empty after disconnect: %d", c.reg.Online())
	}
}

func TestPairingEstablishedWhileConnected(t *testing.T) {
	dir := newFakeDirectory()
	router := rooms.NewRouter()
	c := NewCoordinator(registry.New(), router, dir)
	ctx := context.Background()

	// Bob connects before any pairing exists.
	bobConn := &fakeSender{id: "conn-bob"}
	c.HandleConnect(ctx, "bob", bobConn)
	if n := len(router.Members(rooms.CoupleChannel("cp1"))); n != 0 {
		t.Fatalf("couple channel members=%d before pairing", n)
	}

	// Pairing lands, then alice connects.
	pairProfiles(dir)
	aliceConn := &fakeSender{id: "conn-alice"}
	c.HandleConnect(ctx, "alice", aliceConn)

	if n := len(router.Members(rooms.CoupleChannel("cp1"))); n != 2 {
		t.Fatalf("couple channel members=%d, want 2", n)
	}
	if evts := bobConn.events(); len(evts) != 1 || evts[0] != "partner_status" {
		t.Fatalf("bob events: %v", evts)
	}
}

func TestConnectUnknownUser(t *testing.T) {
	dir := newFakeDirectory()
	router := rooms.NewRouter()
	c := NewCoordinator(registry.New(), router, dir)

	conn := &fakeSender{id: "conn-x"}
	if p := c.HandleConnect(context.Background(), "ghost", conn); p != nil {
		t.Fatalf("expected nil profile for unknown user, got %+v", p)
	}
	// Still reachable on the user channel for direct notices.
	if n := len(router.Members(rooms.UserChannel("ghost"))); n != 1 {
		t.Fatalf("user channel members=%d, want 1", n)
	}
}
