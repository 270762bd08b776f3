// Package store holds the indicator's active requests as a priority stack.
//
// Entries live in a fixed-capacity arena and are chained into a doubly-linked
// list through slot indices; the head is the most recently pushed entry.
// Handles carry a slot generation so a handle outliving its entry is detected
// instead of aliasing whatever reuses the slot.
//
// A Store is not safe for concurrent use. The engine guards it with one mutex.
package store

import (
	"fmt"
	"time"

	"github.com/bft-labs/statusled/internal/domain"
)

const none int32 = -1

// Entry is the immutable part of one visual request.
type Entry struct {
	Color     domain.Color
	Pattern   domain.Pattern
	CreatedAt time.Time
}

// Runtime holds the counters advanced by the render loop.
type Runtime struct {
	// Phase is the time this entry has spent at the head.
	Phase time.Duration

	// Cycles is the number of completed fade/blink cycles.
	Cycles uint32

	// LastTick is the last render tick that drew this entry.
	LastTick time.Time

	// Seen is set once a render tick has run with this entry in the store.
	Seen bool
}

// Handle is a non-owning reference to an entry. The zero Handle is invalid.
type Handle struct {
	index uint32
	gen   uint32
}

// Valid reports whether the handle was issued by a successful push.
// A valid handle may still be stale.
func (h Handle) Valid() bool { return h.gen != 0 }

// String is used in log fields.
func (h Handle) String() string {
	if !h.Valid() {
		return "invalid"
	}
	return fmt.Sprintf("%d/%d", h.index, h.gen)
}

// Node is one arena slot.
type Node struct {
	Entry   Entry
	Runtime Runtime

	active bool
	remove bool
	gen    uint32
	prev   int32
	next   int32
	index  int32
}

// Active reports whether the node is linked into the list.
func (n *Node) Active() bool { return n.active }

// Removing reports whether the node is waiting for the next sweep.
func (n *Node) Removing() bool { return n.remove }

// Handle returns the handle that refers to this node.
func (n *Node) Handle() Handle { return Handle{index: uint32(n.index), gen: n.gen} }

// Store is the entry arena plus the list threaded through it.
type Store struct {
	nodes []Node
	free  []int32
	head  int32
	tail  int32
	count int
}

// New creates a store that holds at most capacity entries.
// All slots are allocated up front so pushes never allocate.
func New(capacity int) *Store {
	if capacity <= 0 {
		capacity = 1
	}
	s := &Store{
		nodes: make([]Node, capacity),
		free:  make([]int32, 0, capacity),
		head:  none,
		tail:  none,
	}
	for i := capacity - 1; i >= 0; i-- {
		s.nodes[i] = Node{index: int32(i), prev: none, next: none}
		s.free = append(s.free, int32(i))
	}
	return s
}

// Cap returns the slot capacity.
func (s *Store) Cap() int { return len(s.nodes) }

// Len returns the number of linked entries, including ones marked for removal.
func (s *Store) Len() int { return s.count }

// PushFront links e at the head and returns its handle.
// Returns domain.ErrStoreFull when every slot is in use.
func (s *Store) PushFront(e Entry) (Handle, error) {
	if len(s.free) == 0 {
		return Handle{}, domain.ErrStoreFull
	}
	idx := s.free[len(s.free)-1]
	s.free = s.free[:len(s.free)-1]

	n := &s.nodes[idx]
	n.gen++
	if n.gen == 0 {
		// Skip zero so the handle stays valid after wrap-around.
		n.gen = 1
	}
	n.Entry = e
	n.Runtime = Runtime{}
	n.remove = false
	n.prev = none
	n.next = s.head
	if s.head != none {
		s.nodes[s.head].prev = idx
	} else {
		s.tail = idx
	}
	s.head = idx
	n.active = true
	s.count++

	return n.Handle(), nil
}

// lookup resolves h to a live node, or nil for invalid and stale handles.
func (s *Store) lookup(h Handle) *Node {
	if !h.Valid() || int(h.index) >= len(s.nodes) {
		return nil
	}
	n := &s.nodes[h.index]
	if !n.active || n.gen != h.gen {
		return nil
	}
	return n
}

// Get returns the node for h if it is still linked.
func (s *Store) Get(h Handle) (*Node, bool) {
	n := s.lookup(h)
	return n, n != nil
}

// MarkForRemoval flags the entry for the next Sweep.
// Returns false for stale handles and for entries already marked.
func (s *Store) MarkForRemoval(h Handle) bool {
	n := s.lookup(h)
	if n == nil || n.remove {
		return false
	}
	n.remove = true
	return true
}

// Head returns the top entry.
func (s *Store) Head() (*Node, bool) {
	if s.head == none {
		return nil, false
	}
	return &s.nodes[s.head], true
}

// Each calls fn for every linked node from head to tail until fn returns false.
func (s *Store) Each(fn func(*Node) bool) {
	for i := s.head; i != none; {
		n := &s.nodes[i]
		next := n.next
		if !fn(n) {
			return
		}
		i = next
	}
}

// Sweep unlinks and frees every node marked for removal.
// Returns the number of freed nodes.
func (s *Store) Sweep() int {
	freed := 0
	for i := s.head; i != none; {
		n := &s.nodes[i]
		next := n.next
		if n.remove {
			s.unlink(n)
			freed++
		}
		i = next
	}
	return freed
}

func (s *Store) unlink(n *Node) {
	if n.prev != none {
		s.nodes[n.prev].next = n.next
	} else {
		s.head = n.next
	}
	if n.next != none {
		s.nodes[n.next].prev = n.prev
	} else {
		s.tail = n.prev
	}
	n.active = false
	n.remove = false
	n.prev = none
	n.next = none
	n.Entry = Entry{}
	n.Runtime = Runtime{}
	s.free = append(s.free, n.index)
	s.count--
}

// Check walks the list in both directions and reports the first broken invariant.
func (s *Store) Check() error {
	seen := 0
	prev := none
	for i := s.head; i != none; i = s.nodes[i].next {
		if seen > len(s.nodes) {
			return fmt.Errorf("store: cycle in forward links")
		}
		n := &s.nodes[i]
		if !n.active {
			return fmt.Errorf("store: inactive node %d linked", i)
		}
		if n.prev != prev {
			return fmt.Errorf("store: node %d prev=%d, want %d", i, n.prev, prev)
		}
		prev = i
		seen++
	}
	if prev != s.tail {
		return fmt.Errorf("store: tail=%d, last node %d", s.tail, prev)
	}
	if seen != s.count {
		return fmt.Errorf("store: count=%d, linked %d", s.count, seen)
	}
	if seen+len(s.free) != len(s.nodes) {
		return fmt.Errorf("store: %d linked + %d free != %d slots", seen, len(s.free), len(s.nodes))
	}
	back := 0
	for i := s.tail; i != none; i = s.nodes[i].prev {
		back++
		if back > seen {
			return fmt.Errorf("store: cycle in backward links")
		}
	}
	if back != seen {
		return fmt.Errorf("store: backward walk %d, forward %d", back, seen)
	}
	for _, i := range s.free {
		if s.nodes[i].active {
			return fmt.Errorf("store: free slot %d still active", i)
		}
	}
	return nil
}
