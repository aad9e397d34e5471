package events

import (
	"testing"
	"time"

	"github.com/Vincenzoferrara/metadata-remote/pkg/protocol"
)

func TestBroadcasterSubscribeUnsubscribe(t *testing.T) {
	b := NewBroadcaster()

	ch1 := b.Subscribe()
	ch2 := b.Subscribe()

	if b.Count() != 2 {
		t.Fatalf("expected 2 subscribers, got %d", b.Count())
	}

	b.Unsubscribe(ch1)
	if b.Count() != 1 {
		t.Fatalf("expected 1 subscriber after unsubscribe, got %d", b.Count())
	}

	b.Unsubscribe(ch2)
	if b.Count() != 0 {
		t.Fatalf("expected 0 subscribers, got %d", b.Count())
	}

	// Unsubscribing twice must not close the channel again.
	b.Unsubscribe(ch2)
}

func TestBroadcasterPublish(t *testing.T) {
	b := NewBroadcaster()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(protocol.ChangeEvent{
		Type:    protocol.EventMoved,
		Path:    "music/old.mp3",
		NewPath: "music/new.mp3",
	})

	select {
	case got := <-ch:
		if got.Type != protocol.EventMoved {
			t.Errorf("type = %q, want %q", got.Type, protocol.EventMoved)
		}
		if got.Path != "music/old.mp3" || got.NewPath != "music/new.mp3" {
			t.Errorf("paths = %q -> %q", got.Path, got.NewPath)
		}
		if got.Timestamp == 0 {
			t.Error("timestamp should be filled in")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBroadcasterMultipleSubscribers(t *testing.T) {
	b := NewBroadcaster()
	ch1 := b.Subscribe()
	ch2 := b.Subscribe()
	defer b.Unsubscribe(ch1)
	defer b.Unsubscribe(ch2)

	b.Publish(protocol.ChangeEvent{Type: protocol.EventUpdated, Path: "docs/shared.txt"})

	for i, ch := range []chan protocol.ChangeEvent{ch1, ch2} {
		select {
		case got := <-ch:
			if got.Path != "docs/shared.txt" {
				t.Errorf("subscriber %d: path = %q", i, got.Path)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d: timed out", i)
		}
	}
}

func TestBroadcasterDropsForSlowConsumer(t *testing.T) {
	b := NewBroadcaster()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// Push well past the channel buffer; the publisher must never block.
	for i := 0; i < 100; i++ {
		b.Publish(protocol.ChangeEvent{Type: protocol.EventCreated, Path: "docs/burst.txt"})
	}

	count := 0
drain:
	for {
		select {
		case <-ch:
			count++
		default:
			break drain
		}
	}
	if count != 64 {
		t.Errorf("buffered events = %d, want 64", count)
	}
}

func TestMarshal(t *testing.T) {
	data, err := Marshal(protocol.ChangeEvent{
		Type:      protocol.EventDeleted,
		Path:      "docs/old.txt",
		Timestamp: 1234567890,
	})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"type":"deleted","path":"docs/old.txt","is_dir":false,"timestamp":1234567890}`
	if string(data) != want {
		t.Errorf("json = %s, want %s", data, want)
	}
}
