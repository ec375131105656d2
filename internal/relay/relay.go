// Package relay runs the shared pipeline that turns an email open event
// into at most one persisted row and one chat notification, no matter how
// many times or through which channel the event arrives.
package relay

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jbialy/prospector/internal/closeio"
	"github.com/jbialy/prospector/internal/telemetry"
)

// Cache suppresses events seen inside the retention window. Forget releases
// a key recorded by Seen so a failed event can be delivered again.
type Cache interface {
	Seen(key string) bool
	Forget(key string)
}

// Store persists open events. InsertOpen reports false when the event is
// already recorded.
type Store interface {
	InsertOpen(ctx context.Context, ev closeio.OpenEvent) (bool, error)
}

// Sender delivers chat notifications.
type Sender interface {
	SendOpenNotification(ctx context.Context, ev closeio.OpenEvent) error
}

// Outcome describes what Process did with an event.
type Outcome string

const (
	// OutcomeNotified means the event was stored and a notification sent.
	OutcomeNotified Outcome = "notified"
	// OutcomeStored means the event was stored but the notification failed.
	OutcomeStored Outcome = "stored"
	// OutcomeDuplicate means the event was already known and dropped.
	OutcomeDuplicate Outcome = "duplicate"
)

// Processor wires the dedup cache, the store, and the notifier together.
type Processor struct {
	cache  Cache
	store  Store
	sender Sender
	logger *zap.Logger
}

// NewProcessor builds a Processor.
func NewProcessor(cache Cache, store Store, sender Sender, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{cache: cache, store: store, sender: sender, logger: logger}
}

// Process runs one event through the relay. The cache absorbs rapid
// repeats, the database constraint absorbs anything the cache forgot.
// A failed notification is logged and does not undo the stored row.
func (p *Processor) Process(ctx context.Context, source string, ev closeio.OpenEvent) (Outcome, error) {
	telemetry.ObserveOpenEvent(source)

	key := ev.Key()
	if p.cache.Seen(key) {
		telemetry.ObserveDuplicateSuppressed("cache")
		p.logger.Debug("event suppressed by cache", zap.String("key", key))
		return OutcomeDuplicate, nil
	}

	inserted, err := p.store.InsertOpen(ctx, ev)
	if err != nil {
		// Release the key so a redelivery after the database recovers is
		// not swallowed as a duplicate.
		p.cache.Forget(key)
		return "", fmt.Errorf("persist open event: %w", err)
	}
	if !inserted {
		telemetry.ObserveDuplicateSuppressed("database")
		p.logger.Debug("event already recorded", zap.String("key", key))
		return OutcomeDuplicate, nil
	}

	if err := p.sender.SendOpenNotification(ctx, ev); err != nil {
		telemetry.ObserveNotification("failed")
		p.logger.Error("notification failed, event stays recorded",
			zap.String("key", key),
			zap.String("lead_id", ev.LeadID),
			zap.Error(err),
		)
		return OutcomeStored, nil
	}

	telemetry.ObserveNotification("sent")
	p.logger.Info("open event relayed",
		zap.String("source", source),
		zap.String("lead_id", ev.LeadID),
		zap.String("lead_name", ev.LeadName),
		zap.String("subject", ev.Subject),
	)
	return OutcomeNotified, nil
}
