package ws

import (
	"sort"
	"testing"
)

func TestRegister_FirstConnection(t *testing.T) {
	r := NewRegistry()

	if first := r.Register("alice", "s1"); !first {
		t.Error("Register() of the first connection should report first=true")
	}
	if first := r.Register("alice", "s2"); first {
		t.Error("Register() of a second device should report first=false")
	}
}

func TestRegister_Idempotent(t *testing.T) {
	r := NewRegistry()

	r.Register("alice", "s1")
	if first := r.Register("alice", "s1"); first {
		t.Error("re-registering the same socket should not report first=true")
	}
	if got := len(r.ConnectionsFor("alice")); got != 1 {
		t.Errorf("ConnectionsFor() returned %d connections, want 1", got)
	}
}

func TestUnregister_LastConnection(t *testing.T) {
	r := NewRegistry()
	r.Register("alice", "s1")
	r.Register("alice", "s2")

	if last := r.Unregister("alice", "s1"); last {
		t.Error("Unregister() with another device still connected should report last=false")
	}
	if last := r.Unregister("alice", "s2"); !last {
		t.Error("Unregister() of the final connection should report last=true")
	}
	if r.Connected("alice") {
		t.Error("Connected() should be false after the last unregister")
	}
}

func TestUnregister_DropsEmptyEntry(t *testing.T) {
	r := NewRegistry()
	r.Register("alice", "s1")
	r.Unregister("alice", "s1")

	// A fresh connection after going fully offline is a first again.
	if first := r.Register("alice", "s3"); !first {
		t.Error("Register() after the entry was dropped should report first=true")
	}
}

func TestUnregister_UnknownUser(t *testing.T) {
	r := NewRegistry()

	if last := r.Unregister("ghost", "s1"); last {
		t.Error("Unregister() of an unknown user should report last=false")
	}
}

func TestConnectionsFor_Snapshot(t *testing.T) {
	r := NewRegistry()
	r.Register("alice", "s1")
	r.Register("alice", "s2")

	got := r.ConnectionsFor("alice")
	sort.Strings(got)
	if len(got) != 2 || got[0] != "s1" || got[1] != "s2" {
		t.Errorf("ConnectionsFor() = %v, want [s1 s2]", got)
	}

	if got := r.ConnectionsFor("ghost"); len(got) != 0 {
		t.Errorf("ConnectionsFor() for unknown user = %v, want empty", got)
	}
}
