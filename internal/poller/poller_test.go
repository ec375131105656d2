package poller

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jbialy/prospector/internal/closeio"
	"github.com/jbialy/prospector/internal/relay"
	"github.com/jbialy/prospector/internal/telemetry"
)

func init() {
	telemetry.Init()
}

type fakeSource struct {
	events []closeio.OpenEvent
	err    error
	since  []time.Time
}

func (f *fakeSource) EmailOpens(_ context.Context, since time.Time) ([]closeio.OpenEvent, error) {
	f.since = append(f.since, since)
	return f.events, f.err
}

type fakeProcessor struct {
	processed []closeio.OpenEvent
	err       error
}

func (f *fakeProcessor) Process(_ context.Context, _ string, ev closeio.OpenEvent) (relay.Outcome, error) {
	if f.err != nil {
		return "", f.err
	}
	f.processed = append(f.processed, ev)
	return relay.OutcomeNotified, nil
}

func eventAt(id string, openedAt time.Time) closeio.OpenEvent {
	return closeio.OpenEvent{EventID: id, LeadID: "lead_1", OpenedAt: openedAt}
}

func TestCycleAdvancesWatermarkToNewestOpen(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	source := &fakeSource{events: []closeio.OpenEvent{
		eventAt("acti_1", base.Add(time.Minute)),
		eventAt("acti_2", base.Add(3*time.Minute)),
		eventAt("acti_3", base.Add(2*time.Minute)),
	}}
	processor := &fakeProcessor{}

	p := New(source, processor, 5*time.Minute, zap.NewNop())
	p.watermark = base

	p.cycle(context.Background())

	require.Len(t, processor.processed, 3)
	require.Equal(t, base.Add(3*time.Minute), p.watermark)
}

func TestCycleKeepsWatermarkOnFetchError(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	source := &fakeSource{err: errors.New("close api down")}
	p := New(source, &fakeProcessor{}, 5*time.Minute, zap.NewNop())
	p.watermark = base

	p.cycle(context.Background())
	require.Equal(t, base, p.watermark)

	// Next cycle re-fetches the same window.
	source.err = nil
	p.cycle(context.Background())
	require.Equal(t, []time.Time{base, base}, source.since)
}

func TestCycleKeepsWatermarkOnProcessError(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	source := &fakeSource{events: []closeio.OpenEvent{eventAt("acti_1", base.Add(time.Minute))}}
	processor := &fakeProcessor{err: errors.New("db down")}

	p := New(source, processor, 5*time.Minute, zap.NewNop())
	p.watermark = base

	p.cycle(context.Background())
	require.Equal(t, base, p.watermark)
}

func TestCycleWithNoEventsKeepsWatermark(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	p := New(&fakeSource{}, &fakeProcessor{}, 5*time.Minute, zap.NewNop())
	p.watermark = base

	p.cycle(context.Background())
	require.Equal(t, base, p.watermark)
}

func TestNewStartsWatermarkOneIntervalBack(t *testing.T) {
	t.Parallel()

	before := time.Now()
	p := New(&fakeSource{}, &fakeProcessor{}, 10*time.Minute, zap.NewNop())
	after := time.Now()

	require.False(t, p.watermark.Before(before.Add(-10*time.Minute)))
	require.False(t, p.watermark.After(after.Add(-10*time.Minute)))
}

func TestRunStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	p := New(&fakeSource{}, &fakeProcessor{}, time.Hour, zap.NewNop())

	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop after cancel")
	}
}
