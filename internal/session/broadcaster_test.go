package session

import (
	"context"
	"testing"

	"github.com/MrWong99/earshot/internal/inbox"
	"github.com/MrWong99/earshot/pkg/wire"
)

func TestBroadcasterDeliversToAllSessions(t *testing.T) {
	r := NewRegistry(testMetrics(t))
	ctx := context.Background()

	a := newRegistrySession(t)
	b := newRegistrySession(t)
	r.Add(ctx, a)
	r.Add(ctx, b)

	bc := NewBroadcaster(r, inbox.NewMemStore(10), testMetrics(t))
	n := wire.NewNotification("Build", "main is green", "", true)

	delivered, queued, err := bc.Deliver(ctx, n)
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if delivered != 2 {
		t.Errorf("delivered = %d, want 2", delivered)
	}
	if queued {
		t.Error("queued despite live deliveries")
	}

	// Both sessions hold the notification in their queues.
	for _, s := range []*Session{a, b} {
		select {
		case got := <-s.notices:
			if got.Message != "main is green" {
				t.Errorf("session %s received %q", s.ID, got.Message)
			}
		default:
			t.Errorf("session %s received nothing", s.ID)
		}
	}
}

func TestBroadcasterQueuesWhenNoSessions(t *testing.T) {
	r := NewRegistry(testMetrics(t))
	ctx := context.Background()
	store := inbox.NewMemStore(10)
	bc := NewBroadcaster(r, store, testMetrics(t))

	delivered, queued, err := bc.Deliver(ctx, wire.NewNotification("", "nobody home", "", false))
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if delivered != 0 || !queued {
		t.Errorf("delivered=%d queued=%v, want 0/true", delivered, queued)
	}

	pending, err := store.Pending(ctx)
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(pending) != 1 || pending[0].Message != "nobody home" {
		t.Errorf("pending = %v, want the queued notification", pending)
	}
}

func TestBroadcasterDropsWithoutStore(t *testing.T) {
	r := NewRegistry(testMetrics(t))
	ctx := context.Background()
	bc := NewBroadcaster(r, nil, testMetrics(t))

	delivered, queued, err := bc.Deliver(ctx, wire.NewNotification("", "gone", "", false))
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if delivered != 0 || queued {
		t.Errorf("delivered=%d queued=%v, want 0/false", delivered, queued)
	}
}

func TestBroadcasterCountsFullQueuesAsFailed(t *testing.T) {
	r := NewRegistry(testMetrics(t))
	ctx := context.Background()

	open := newRegistrySession(t)
	full := newRegistrySession(t)
	for range cap(full.notices) {
		full.Notify(wire.NewNotification("", "filler", "", false))
	}
	r.Add(ctx, open)
	r.Add(ctx, full)

	store := inbox.NewMemStore(10)
	bc := NewBroadcaster(r, store, testMetrics(t))

	delivered, queued, err := bc.Deliver(ctx, wire.NewNotification("", "squeeze", "", false))
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	// One session accepted, so nothing is queued even though the other
	// failed.
	if delivered != 1 || queued {
		t.Errorf("delivered=%d queued=%v, want 1/false", delivered, queued)
	}
	pending, _ := store.Pending(ctx)
	if len(pending) != 0 {
		t.Errorf("pending = %d, want 0", len(pending))
	}
}

func TestBroadcasterReplayDrainsStore(t *testing.T) {
	r := NewRegistry(testMetrics(t))
	ctx := context.Background()
	store := inbox.NewMemStore(10)
	bc := NewBroadcaster(r, store, testMetrics(t))

	for _, msg := range []string{"first", "second", "third"} {
		if _, _, err := bc.Deliver(ctx, wire.NewNotification("", msg, "", false)); err != nil {
			t.Fatalf("Deliver %q: %v", msg, err)
		}
	}

	s := newRegistrySession(t)
	replayed, err := bc.Replay(ctx, s)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if replayed != 3 {
		t.Fatalf("replayed = %d, want 3", replayed)
	}

	// Oldest first.
	want := []string{"first", "second", "third"}
	for i, w := range want {
		select {
		case got := <-s.notices:
			if got.Message != w {
				t.Errorf("replayed[%d] = %q, want %q", i, got.Message, w)
			}
		default:
			t.Fatalf("session queue short: got %d, want %d", i, len(want))
		}
	}

	pending, _ := store.Pending(ctx)
	if len(pending) != 0 {
		t.Errorf("pending after replay = %d, want 0", len(pending))
	}
}

func TestBroadcasterReplayStopsAtFullQueue(t *testing.T) {
	r := NewRegistry(testMetrics(t))
	ctx := context.Background()
	store := inbox.NewMemStore(20)
	bc := NewBroadcaster(r, store, testMetrics(t))

	s := newRegistrySession(t)
	queueCap := cap(s.notices)
	total := queueCap + 3
	for i := range total {
		if _, err := store.Append(ctx, inbox.Notification{Message: "queued", Priority: wire.PriorityNormal}); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}

	replayed, err := bc.Replay(ctx, s)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if replayed != queueCap {
		t.Errorf("replayed = %d, want %d", replayed, queueCap)
	}

	// The overflow stays pending for the next connection.
	pending, _ := store.Pending(ctx)
	if len(pending) != 3 {
		t.Errorf("pending after partial replay = %d, want 3", len(pending))
	}
}

func TestBroadcasterReplayWithoutStore(t *testing.T) {
	r := NewRegistry(testMetrics(t))
	bc := NewBroadcaster(r, nil, testMetrics(t))

	replayed, err := bc.Replay(context.Background(), newRegistrySession(t))
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if replayed != 0 {
		t.Errorf("replayed = %d, want 0", replayed)
	}
}
