package store

import (
	"errors"
	"testing"
	"time"

	"github.com/bft-labs/statusled/internal/domain"
)

func entry(rgba uint32) Entry {
	return Entry{Color: domain.ColorFromRGBA(rgba), CreatedAt: time.Unix(0, 0)}
}

func headColor(t *testing.T, s *Store) domain.Color {
	t.Helper()
	n, ok := s.Head()
	if !ok {
		return domain.Off
	}
	return n.Entry.Color
}

func mustCheck(t *testing.T, s *Store) {
	t.Helper()
	if err := s.Check(); err != nil {
		t.Fatalf("Check() = %v", err)
	}
}

func TestNew_Empty(t *testing.T) {
	s := New(4)

	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0", s.Len())
	}
	if _, ok := s.Head(); ok {
		t.Error("Head() on empty store returned an entry")
	}
	if s.Cap() != 4 {
		t.Errorf("Cap() = %d, want 4", s.Cap())
	}
	mustCheck(t, s)
}

func TestPushFront_HeadIsMostRecent(t *testing.T) {
	s := New(8)

	for _, c := range []uint32{0xFF0000, 0x00FF00, 0x0000FF} {
		if _, err := s.PushFront(entry(c)); err != nil {
			t.Fatalf("PushFront(%#x) = %v", c, err)
		}
		if got := headColor(t, s).RGBA(); got != c {
			t.Errorf("head = %#x, want %#x", got, c)
		}
		mustCheck(t, s)
	}

	var order []uint32
	s.Each(func(n *Node) bool {
		order = append(order, n.Entry.Color.RGBA())
		return true
	})
	want := []uint32{0x0000FF, 0x00FF00, 0xFF0000}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %#x, want %#x", order, want)
		}
	}
}

func TestPushFront_Exhaustion(t *testing.T) {
	s := New(2)

	if _, err := s.PushFront(entry(1)); err != nil {
		t.Fatal(err)
	}
	if _, err := s.PushFront(entry(2)); err != nil {
		t.Fatal(err)
	}
	h, err := s.PushFront(entry(3))
	if !errors.Is(err, domain.ErrStoreFull) {
		t.Fatalf("PushFront on full store error = %v, want ErrStoreFull", err)
	}
	if h.Valid() {
		t.Error("failed push returned a valid handle")
	}
	if got := headColor(t, s).RGBA(); got != 2 {
		t.Errorf("head changed after failed push: %#x", got)
	}
	mustCheck(t, s)
}

func TestMarkForRemoval_DeferredUntilSweep(t *testing.T) {
	s := New(4)
	red, _ := s.PushFront(entry(0xFF0000))
	green, _ := s.PushFront(entry(0x00FF00))

	if !s.MarkForRemoval(green) {
		t.Fatal("MarkForRemoval(green) = false")
	}
	if got := headColor(t, s).RGBA(); got != 0x00FF00 {
		t.Errorf("head before sweep = %#x, want green", got)
	}
	if n := s.Sweep(); n != 1 {
		t.Errorf("Sweep() = %d, want 1", n)
	}
	if got := headColor(t, s).RGBA(); got != 0xFF0000 {
		t.Errorf("head after sweep = %#x, want red", got)
	}
	if _, ok := s.Get(red); !ok {
		t.Error("red entry lost")
	}
	mustCheck(t, s)
}

func TestMarkForRemoval_StaleAndDuplicate(t *testing.T) {
	s := New(1)
	h, _ := s.PushFront(entry(1))

	if !s.MarkForRemoval(h) {
		t.Fatal("first mark = false")
	}
	if s.MarkForRemoval(h) {
		t.Error("second mark before sweep = true, want no-op")
	}
	s.Sweep()
	if s.MarkForRemoval(h) {
		t.Error("mark after sweep = true, want no-op")
	}

	// Slot reuse must not resurrect the old handle.
	h2, err := s.PushFront(entry(2))
	if err != nil {
		t.Fatal(err)
	}
	if h2 == h {
		t.Fatal("reused slot issued the same handle")
	}
	if s.MarkForRemoval(h) {
		t.Error("stale handle marked the new occupant")
	}
	if s.MarkForRemoval(Handle{}) {
		t.Error("zero handle marked an entry")
	}
	if got := headColor(t, s).RGBA(); got != 2 {
		t.Errorf("head = %#x, want 2", got)
	}
	mustCheck(t, s)
}

func TestSweep_MiddleTailAndAll(t *testing.T) {
	s := New(5)
	var hs []Handle
	for i := uint32(1); i <= 5; i++ {
		h, _ := s.PushFront(entry(i))
		hs = append(hs, h)
	}

	// Remove the middle and the tail; head stays.
	s.MarkForRemoval(hs[2])
	s.MarkForRemoval(hs[0])
	if n := s.Sweep(); n != 2 {
		t.Fatalf("Sweep() = %d, want 2", n)
	}
	mustCheck(t, s)
	if got := headColor(t, s).RGBA(); got != 5 {
		t.Errorf("head = %d, want 5", got)
	}
	if s.Len() != 3 {
		t.Errorf("Len() = %d, want 3", s.Len())
	}

	for _, h := range hs {
		s.MarkForRemoval(h)
	}
	s.Sweep()
	mustCheck(t, s)
	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0", s.Len())
	}
	if _, ok := s.Head(); ok {
		t.Error("Head() after removing everything returned an entry")
	}
}

func TestPushFront_ResetsRuntime(t *testing.T) {
	s := New(1)
	h, _ := s.PushFront(entry(1))
	n, _ := s.Get(h)
	n.Runtime.Cycles = 9
	n.Runtime.Phase = time.Second
	s.MarkForRemoval(h)
	s.Sweep()

	h2, _ := s.PushFront(entry(2))
	n2, _ := s.Get(h2)
	if n2.Runtime != (Runtime{}) {
		t.Errorf("runtime carried over into reused slot: %+v", n2.Runtime)
	}
	if n2.Removing() {
		t.Error("reused slot still marked for removal")
	}
}
