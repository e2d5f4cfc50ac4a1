package registry

import "testing"

func TestRegisterSupersedes(t *testing.T) {
	r := New()
	if prev := r.Register("u1", "c1"); prev != "" {
		t.Fatalf("unexpected prev on first register: %q", prev)
	}
	if prev := r.Register("u1", "c2"); prev != "c1" {
		t.Fatalf("expected superseded conn c1, got %q", prev)
	}
	connID, ok := r.Lookup("u1")
	if !ok || connID != "c2" {
		t.Fatalf("lookup after supersede: got %q ok=%v", connID, ok)
	}
	if _, ok := r.UserFor("c1"); ok {
		t.Fatalf("stale conn c1 should no longer map to a user")
	}
}

func TestRegisterSameConnIsNoop(t *testing.T) {
	r := New()
	r.Register("u1", "c1")
	if prev := r.Register("u1", "c1"); prev != "" {
		t.Fatalf("re-register of same conn returned prev=%q", prev)
	}
	if r.Online() != 1 {
		t.Fatalf("online=%d, want 1", r.Online())
	}
}

func TestUnregisterStaleGuard(t *testing.T) {
	r := New()
	r.Register("u1", "c1")
	r.Register("u1", "c2")

	// The superseded connection's disconnect must not remove u1.
	if _, ok := r.Unregister("c1"); ok {
		t.Fatalf("stale unregister reported ok")
	}
	if connID, ok := r.Lookup("u1"); !ok || connID != "c2" {
		t.Fatalf("u1 mapping lost after stale unregister: %q ok=%v", connID, ok)
	}

	userID, ok := r.Unregister("c2")
	if !ok || userID != "u1" {
		t.Fatalf("current unregister: got %q ok=%v", userID, ok)
	}
	if r.Online() != 0 {
		t.Fatalf("online=%d after unregister, want 0", r.Online())
	}
}

func TestUnregisterUnknownConn(t *testing.T) {
	r := New()
	if _, ok := r.Unregister("nope"); ok {
		t.Fatalf("unknown conn unregister reported ok")
	}
}
