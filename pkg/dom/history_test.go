package dom

import "testing"

func TestHistoryPushIdempotent(t *testing.T) {
	var h History
	if !h.Push(Entry{UID: "p1", Path: "/"}) {
		t.Fatal("first Push() should add")
	}
	if h.Push(Entry{UID: "p1", Path: "/"}) {
		t.Error("Push() of the current entry should be a no-op")
	}
	if h.Len() != 1 {
		t.Errorf("Len() = %d, want 1", h.Len())
	}
	if !h.Push(Entry{UID: "p1", Path: "/other"}) {
		t.Error("Push() with a different path should add")
	}
}

func TestHistoryBackForward(t *testing.T) {
	var h History
	h.Push(Entry{UID: "a", Path: "/a"})
	h.Push(Entry{UID: "b", Path: "/b"})
	h.Push(Entry{UID: "c", Path: "/c"})

	if e, ok := h.Back(); !ok || e.Path != "/b" {
		t.Errorf("Back() = %v, %v", e, ok)
	}
	if e, ok := h.Forward(); !ok || e.Path != "/c" {
		t.Errorf("Forward() = %v, %v", e, ok)
	}
	h.Back()
	h.Back()
	if _, ok := h.Back(); ok {
		t.Error("Back() past the first entry should fail")
	}

	// Pushing from the middle drops forward entries.
	h.Push(Entry{UID: "d", Path: "/d"})
	if h.Len() != 2 {
		t.Errorf("Len() = %d, want 2", h.Len())
	}
	if _, ok := h.Forward(); ok {
		t.Error("Forward() after Push() should fail")
	}
}

func TestHistoryReplace(t *testing.T) {
	var h History
	h.Replace(Entry{UID: "a", Path: "/"})
	h.Replace(Entry{UID: "b", Path: "/"})
	cur, _ := h.Current()
	if h.Len() != 1 || cur.UID != "b" {
		t.Errorf("Replace() len=%d current=%v", h.Len(), cur)
	}
}
