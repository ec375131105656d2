// Package poller periodically queries the CRM email activity log and feeds
// discovered opens through the relay. It backstops webhooks that were
// dropped or never delivered.
package poller

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/jbialy/prospector/internal/closeio"
	"github.com/jbialy/prospector/internal/relay"
	"github.com/jbialy/prospector/internal/telemetry"
)

// ActivitySource fetches open events recorded after a point in time.
type ActivitySource interface {
	EmailOpens(ctx context.Context, since time.Time) ([]closeio.OpenEvent, error)
}

// Processor runs one event through the relay pipeline.
type Processor interface {
	Process(ctx context.Context, source string, ev closeio.OpenEvent) (relay.Outcome, error)
}

// Poller drives poll cycles at a fixed interval. The watermark is the
// opened_at of the newest event from the last fully successful cycle; a
// failed cycle keeps the old watermark so the next tick re-fetches the same
// window. Duplicates from re-fetching are absorbed downstream.
type Poller struct {
	source    ActivitySource
	processor Processor
	interval  time.Duration
	logger    *zap.Logger

	watermark time.Time
	now       func() time.Time
}

// New builds a Poller. The initial watermark is one interval before now, so
// a restart re-inspects a window rather than missing events.
func New(source ActivitySource, processor Processor, interval time.Duration, logger *zap.Logger) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Poller{
		source:    source,
		processor: processor,
		interval:  interval,
		logger:    logger,
		now:       time.Now,
	}
	p.watermark = p.now().Add(-interval)
	return p
}

// Run polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	p.logger.Info("poller started",
		zap.Duration("interval", p.interval),
		zap.Time("watermark", p.watermark),
	)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("poller stopped")
			return
		case <-ticker.C:
			p.cycle(ctx)
		}
	}
}

// cycle fetches events since the watermark and relays each one. The
// watermark only advances when the whole cycle succeeds.
func (p *Poller) cycle(ctx context.Context) {
	events, err := p.source.EmailOpens(ctx, p.watermark)
	if err != nil {
		telemetry.ObservePollCycle("error")
		p.logger.Error("poll cycle failed, keeping watermark",
			zap.Time("watermark", p.watermark),
			zap.Error(err),
		)
		return
	}

	newest := p.watermark
	for _, ev := range events {
		if _, err := p.processor.Process(ctx, "poller", ev); err != nil {
			telemetry.ObservePollCycle("error")
			p.logger.Error("poll cycle aborted, keeping watermark",
				zap.String("event_id", ev.EventID),
				zap.Error(err),
			)
			return
		}
		if ev.OpenedAt.After(newest) {
			newest = ev.OpenedAt
		}
	}

	telemetry.ObservePollCycle("success")
	if newest.After(p.watermark) {
		p.logger.Debug("watermark advanced",
			zap.Time("from", p.watermark),
			zap.Time("to", newest),
			zap.Int("events", len(events)),
		)
		p.watermark = newest
	}
}
