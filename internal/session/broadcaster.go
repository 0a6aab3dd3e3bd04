package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/MrWong99/earshot/internal/inbox"
	"github.com/MrWong99/earshot/internal/observe"
	"github.com/MrWong99/earshot/pkg/wire"
)

// Broadcaster fans one out-of-band notification out to every live session.
// Each delivery is attempted independently: a session with a full queue or a
// broken connection is counted as a failure and never aborts delivery to the
// rest. Whether a receiving session also speaks the notification is that
// session's own decision (idle sessions speak, busy ones only display).
type Broadcaster struct {
	registry *Registry
	store    inbox.Store
	metrics  *observe.Metrics
	log      *slog.Logger
}

// NewBroadcaster creates a broadcaster over the registry. A nil store
// disables queueing: notifications that reach zero sessions are dropped. A
// nil metrics uses the package default.
func NewBroadcaster(registry *Registry, store inbox.Store, metrics *observe.Metrics) *Broadcaster {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Broadcaster{
		registry: registry,
		store:    store,
		metrics:  metrics,
		log:      slog.With("component", "broadcaster"),
	}
}

// Deliver hands the notification to every live session and returns how many
// accepted it. When no session accepts and a store is configured, the
// notification is queued for replay to the next connection; queued reports
// whether that happened.
func (b *Broadcaster) Deliver(ctx context.Context, n wire.Notification) (delivered int, queued bool, err error) {
	sessions := b.registry.Snapshot()

	failed := 0
	for _, s := range sessions {
		if s.Notify(n) {
			delivered++
		} else {
			failed++
		}
	}
	if failed > 0 {
		b.log.Warn("notification not accepted by some sessions",
			"delivered", delivered, "failed", failed)
	}

	if delivered > 0 {
		b.metrics.RecordNotification(ctx, "delivered")
		return delivered, false, nil
	}

	if b.store == nil {
		b.metrics.RecordNotification(ctx, "dropped")
		return 0, false, nil
	}
	if _, err := b.store.Append(ctx, inbox.FromWire(n)); err != nil {
		return 0, false, fmt.Errorf("broadcast: queue notification: %w", err)
	}
	b.metrics.RecordNotification(ctx, "queued")
	b.log.Info("notification queued for next connection", "title", n.Title)
	return 0, true, nil
}

// Replay drains pending stored notifications into one freshly connected
// session, marking each delivered once the session accepts it. Returns how
// many were replayed.
func (b *Broadcaster) Replay(ctx context.Context, s *Session) (int, error) {
	if b.store == nil {
		return 0, nil
	}

	pending, err := b.store.Pending(ctx)
	if err != nil {
		return 0, fmt.Errorf("broadcast: load pending notifications: %w", err)
	}

	replayed := 0
	for _, stored := range pending {
		if !s.Notify(stored.Wire()) {
			// Queue full or session gone; remaining notifications stay
			// pending for the next connection.
			break
		}
		if err := b.store.MarkDelivered(ctx, stored.ID); err != nil {
			b.log.Warn("could not mark notification delivered",
				"notification_id", stored.ID, "error", err)
		}
		replayed++
	}
	if replayed > 0 {
		b.log.Info("replayed queued notifications", "session_id", s.ID, "count", replayed)
	}
	return replayed, nil
}
