package browser

import "sync"

// Request slots. Each slot orders the requests of one view so that a late
// response can be recognized as superseded and dropped.
const (
	slotTree  = "tree"
	slotFiles = "files"
	slotStats = "stats"
)

// sequencer hands out monotonically increasing ids per slot. A response is
// applied only if its id is still the latest for its slot; anything older is
// discarded without touching state.
type sequencer struct {
	mu    sync.Mutex
	slots map[string]uint64
}

func newSequencer() *sequencer {
	return &sequencer{slots: make(map[string]uint64)}
}

// begin registers a new request on the slot and returns its id.
func (s *sequencer) begin(slot string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots[slot]++
	return s.slots[slot]
}

// isCurrent reports whether id is still the newest request on the slot.
func (s *sequencer) isCurrent(slot string, id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slots[slot] == id
}
