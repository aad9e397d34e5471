package browser

import "testing"

func TestSequencerIDsAreMonotonicPerSlot(t *testing.T) {
	s := newSequencer()

	if got := s.begin(slotTree); got != 1 {
		t.Fatalf("first tree id = %d, want 1", got)
	}
	if got := s.begin(slotTree); got != 2 {
		t.Fatalf("second tree id = %d, want 2", got)
	}
	// Slots are independent of each other.
	if got := s.begin(slotFiles); got != 1 {
		t.Fatalf("first files id = %d, want 1", got)
	}
	if got := s.begin(slotTree); got != 3 {
		t.Fatalf("third tree id = %d, want 3", got)
	}
}

func TestSequencerIsCurrent(t *testing.T) {
	s := newSequencer()

	first := s.begin(slotFiles)
	if !s.isCurrent(slotFiles, first) {
		t.Fatal("sole request should be current")
	}

	second := s.begin(slotFiles)
	if s.isCurrent(slotFiles, first) {
		t.Fatal("superseded request still reported current")
	}
	if !s.isCurrent(slotFiles, second) {
		t.Fatal("latest request should be current")
	}

	// Another slot's ids never interfere.
	if s.isCurrent(slotStats, second) {
		t.Fatal("id from a different slot reported current")
	}
}
