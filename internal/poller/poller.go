// Package poller drives ingestion on a fixed cadence. It is the sole owner of
// "when do we talk to the export source": one loop, one tick at a time, and no
// failure ever stops the process.
package poller

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/grandstand/pitradio/internal/ingest"
	"github.com/grandstand/pitradio/internal/session"
)

const defaultInterval = 30 * time.Second

// Poller runs the ingestion loop.
type Poller struct {
	registry  *session.Registry
	engine    *ingest.Engine
	channelID string
	interval  time.Duration
	backfill  *backfillSchedule
	now       func() time.Time
	out       io.Writer
}

// Opts holds parameters for creating a Poller.
type Opts struct {
	Registry  *session.Registry
	Engine    *ingest.Engine
	ChannelID string
	Interval  time.Duration
	// BackfillCron optionally schedules a full ingest of the most recently
	// ended session (5-field cron expression). Empty disables the sweep.
	BackfillCron string
	// Now is the injected time source; defaults to time.Now. UTC is applied
	// on every read.
	Now func() time.Time
	Out io.Writer
}

// New creates a Poller.
func New(opts Opts) (*Poller, error) {
	if opts.Registry == nil {
		return nil, fmt.Errorf("poller: registry is required")
	}
	if opts.Engine == nil {
		return nil, fmt.Errorf("poller: engine is required")
	}
	if opts.ChannelID == "" {
		return nil, fmt.Errorf("poller: channelID is required")
	}
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}

	p := &Poller{
		registry:  opts.Registry,
		engine:    opts.Engine,
		channelID: opts.ChannelID,
		interval:  opts.Interval,
		now:       opts.Now,
		out:       opts.Out,
	}
	if opts.BackfillCron != "" {
		sched, err := newBackfillSchedule(opts.BackfillCron, opts.Now().UTC())
		if err != nil {
			return nil, err
		}
		p.backfill = sched
	}
	return p, nil
}

// Run loops until ctx is cancelled. Ticks never overlap: the next sleep only
// starts after the previous tick's ingestion call has returned, so an
// overrunning tick delays the next one instead of racing it.
func (p *Poller) Run(ctx context.Context) error {
	fmt.Fprintf(p.out, "Poller starting (every %s, channel %s)...\n", p.interval, p.channelID)
	defer fmt.Fprintf(p.out, "Poller stopped.\n")

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		p.Tick(ctx)

		if p.backfill != nil {
			p.runBackfill(ctx)
		}

		sleepWithContext(ctx, p.interval)
	}
}

// Tick runs one poll cycle: find the live session and ingest its trailing
// window. Every error is logged and contained; the next tick is the retry
// mechanism.
func (p *Poller) Tick(ctx context.Context) {
	now := p.now().UTC()

	live, err := p.registry.FindLive(now)
	if err != nil {
		log.Printf("poller: find live session: %v", err)
		return
	}
	if live == nil {
		fmt.Fprintf(p.out, "No live session at %s. Poll skipped.\n", now.Format(time.RFC3339))
		return
	}

	start := now.Add(-p.interval)
	if start.Before(live.StartTime) {
		start = live.StartTime
	}
	end := now
	if end.After(live.EndTime) {
		end = live.EndTime
	}

	report, err := p.engine.Ingest(ctx, live.SessionID, p.channelID, start, end)
	if err != nil {
		log.Printf("poller: ingest %s: %v", live.SessionID, err)
		return
	}
	fmt.Fprintf(p.out, "Polled %s\n", report.Summary())
}

// runBackfill runs the full-session sweep when its cron schedule has fired.
func (p *Poller) runBackfill(ctx context.Context) {
	now := p.now().UTC()
	if !p.backfill.due(now) {
		return
	}

	target, err := p.registry.MostRecentlyEnded(now)
	if err != nil {
		log.Printf("poller: backfill target: %v", err)
		return
	}
	if target == nil {
		return
	}

	fmt.Fprintf(p.out, "Backfill sweep: full ingest of %s\n", target.SessionID)
	if _, err := p.engine.IngestSession(ctx, target.SessionID, p.channelID); err != nil {
		log.Printf("poller: backfill %s: %v", target.SessionID, err)
	}
}

// sleepWithContext sleeps for duration d, returning early if ctx is cancelled.
func sleepWithContext(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
