package roster

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

type fakeEntry struct {
	name     string
	received [][]byte
	fail     bool
}

func (f *fakeEntry) Username() string { return f.name }

func (f *fakeEntry) Send(frame []byte) error {
	if f.fail {
		return fmt.Errorf("boom")
	}
	f.received = append(f.received, frame)
	return nil
}

func TestAddIfAbsentUniqueUnderConcurrency(t *testing.T) {
	r := New()

	const n = 32
	var wg sync.WaitGroup
	var admitted int32
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if r.AddIfAbsent("alice", &fakeEntry{name: "alice"}) {
				atomic.AddInt32(&admitted, 1)
			}
		}(i)
	}
	wg.Wait()

	if admitted != 1 {
		t.Errorf("admitted = %d, want exactly 1", admitted)
	}
	if r.Len() != 1 {
		t.Errorf("roster len = %d, want 1", r.Len())
	}
}

func TestRemove(t *testing.T) {
	r := New()
	r.AddIfAbsent("bob", &fakeEntry{name: "bob"})

	if !r.Remove("bob") {
		t.Error("Remove reported false for a present entry")
	}
	if r.Remove("bob") {
		t.Error("Remove reported true for an already-removed entry")
	}
}

func TestSendToMissingDest(t *testing.T) {
	r := New()
	if r.SendTo("nobody", []byte("x")) {
		t.Error("SendTo reported success for a missing destination")
	}
}

func TestBroadcastExceptSelf(t *testing.T) {
	r := New()
	alice := &fakeEntry{name: "alice"}
	bob := &fakeEntry{name: "bob"}
	r.AddIfAbsent("alice", alice)
	r.AddIfAbsent("bob", bob)

	r.BroadcastExcept("alice", []byte("hi"))

	if len(alice.received) != 0 {
		t.Error("broadcast was delivered back to its own sender")
	}
	if len(bob.received) != 1 {
		t.Errorf("bob received %d frames, want 1", len(bob.received))
	}
}

func TestBroadcastExceptReportsPartialFailure(t *testing.T) {
	r := New()
	r.AddIfAbsent("alice", &fakeEntry{name: "alice"})
	r.AddIfAbsent("bob", &fakeEntry{name: "bob", fail: true})

	if r.BroadcastExcept("alice", []byte("hi")) {
		t.Error("BroadcastExcept reported success despite a failed recipient")
	}
}

func TestListNames(t *testing.T) {
	r := New()
	r.AddIfAbsent("alice", &fakeEntry{name: "alice"})
	r.AddIfAbsent("bob", &fakeEntry{name: "bob"})

	list := r.ListNames()
	if !strings.HasSuffix(list, "\x00") {
		t.Error("ListNames did not end with a NUL")
	}
	trimmed := strings.TrimSuffix(list, "\x00")
	parts := strings.Split(trimmed, ", ")
	seen := map[string]bool{}
	for _, p := range parts {
		seen[p] = true
	}
	if !seen["alice"] || !seen["bob"] {
		t.Errorf("ListNames = %q, missing alice or bob", list)
	}
}
