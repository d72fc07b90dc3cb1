package service

import "testing"

func TestRegistry_RegisterIsIdempotent(t *testing.T) {
	r := NewRegistry()
	p := newStubPeer("s1", "alice")

	if !r.Register(p) {
		t.Fatalf("expected first register to succeed")
	}
	if r.Register(p) {
		t.Fatalf("expected duplicate register to be rejected")
	}
	if r.Len() != 1 {
		t.Fatalf("expected 1 session, got %d", r.Len())
	}
}

func TestRegistry_UnregisterUnknownIsNoop(t *testing.T) {
	r := NewRegistry()
	r.Register(newStubPeer("s1", "alice"))

	if r.Unregister("nope") {
		t.Fatalf("expected unregister of unknown id to report false")
	}
	if !r.Unregister("s1") {
		t.Fatalf("expected unregister to succeed")
	}
	if r.Unregister("s1") {
		t.Fatalf("expected second unregister to report false")
	}
	if r.Len() != 0 {
		t.Fatalf("expected empty registry, got %d", r.Len())
	}
}

func TestRegistry_SnapshotIsDetached(t *testing.T) {
	r := NewRegistry()
	r.Register(newStubPeer("s1", "alice"))
	r.Register(newStubPeer("s2", "bob"))

	snap := r.Snapshot()
	r.Unregister("s1")
	r.Register(newStubPeer("s3", "carol"))

	if len(snap) != 2 {
		t.Fatalf("snapshot changed under mutation: %d entries", len(snap))
	}
}

func TestRegistry_SameUsernameTwice(t *testing.T) {
	r := NewRegistry()
	r.Register(newStubPeer("s1", "alice"))
	r.Register(newStubPeer("s2", "alice"))

	sessions := r.Sessions()
	if len(sessions) != 2 {
		t.Fatalf("expected two concurrent sessions for one user, got %d", len(sessions))
	}
}
