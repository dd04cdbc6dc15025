package group

import (
	"context"
	"fmt"
	"sync"

	"medfilt/internal/models"
)

// hub is the state shared by the members of one in-process group.
type hub struct {
	mu   sync.Mutex
	size int

	// barrier generation: arrivals so far and the channel closed on release
	arrived int
	release chan struct{}

	slots map[uint64]*slot
}

// slot carries one broadcast value from the root to the other members.
type slot struct {
	value int
	ready chan struct{}
	reads int
}

// localMember is a Group backed by a hub shared with goroutines in the
// same process.
type localMember struct {
	hub  *hub
	rank int
	seq  uint64 // next broadcast sequence number
}

// NewLocal creates an in-process group and returns its members indexed by
// rank. Each member is meant to be driven by its own goroutine.
func NewLocal(size int) ([]Group, error) {
	if size < 1 {
		return nil, fmt.Errorf("%w: group size must be positive, got %d", models.ErrInvalidArguments, size)
	}

	h := &hub{
		size:    size,
		release: make(chan struct{}),
		slots:   make(map[uint64]*slot),
	}
	members := make([]Group, size)
	for rank := range members {
		members[rank] = &localMember{hub: h, rank: rank}
	}
	return members, nil
}

func (m *localMember) Rank() int { return m.rank }

func (m *localMember) Size() int { return m.hub.size }

func (m *localMember) Close() error { return nil }

// Barrier releases every waiter when the last member arrives. A cancelled
// wait leaves the hub's count advanced, so a group whose barrier was
// abandoned should not be reused.
func (m *localMember) Barrier(ctx context.Context) error {
	h := m.hub
	h.mu.Lock()
	ch := h.release
	h.arrived++
	if h.arrived == h.size {
		h.arrived = 0
		h.release = make(chan struct{})
		h.mu.Unlock()
		close(ch)
		return nil
	}
	h.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *localMember) Broadcast(ctx context.Context, value int, root int) (int, error) {
	if err := checkRoot(root, m.hub.size); err != nil {
		return 0, err
	}

	seq := m.seq
	m.seq++
	s := m.hub.slot(seq)

	if m.rank == root {
		s.value = value
		close(s.ready)
	} else {
		select {
		case <-s.ready:
		case <-ctx.Done():
			m.hub.finish(seq)
			return 0, ctx.Err()
		}
	}

	v := s.value
	m.hub.finish(seq)
	return v, nil
}

// slot returns the broadcast slot for seq, creating it on first use.
func (h *hub) slot(seq uint64) *slot {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.slots[seq]
	if !ok {
		s = &slot{ready: make(chan struct{})}
		h.slots[seq] = s
	}
	return s
}

// finish drops the slot once every member has read it.
func (h *hub) finish(seq uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := h.slots[seq]
	s.reads++
	if s.reads == h.size {
		delete(h.slots, seq)
	}
}
