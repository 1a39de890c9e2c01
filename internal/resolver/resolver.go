// Package resolver serves the deterministic "state as of timestamp T" view.
// It is read-only and safe for any number of concurrent callers: identical
// timestamps against identical store contents always yield identical answers,
// so independent frontends render consistent views off one backend.
package resolver

import (
	"errors"
	"fmt"
	"time"

	"github.com/grandstand/pitradio/internal/metrics"
	"github.com/grandstand/pitradio/internal/models"
	"github.com/grandstand/pitradio/internal/session"
	"github.com/grandstand/pitradio/internal/store"
)

// ErrInvalidTimestamp reports a missing or zero query timestamp.
var ErrInvalidTimestamp = errors.New("resolver: invalid timestamp")

// ErrNoSession reports a timestamp outside every known session.
var ErrNoSession = errors.New("resolver: no session contains timestamp")

// StateView is the answer to "what was on the radio as of T".
type StateView struct {
	SessionID   string          `json:"session_id"`
	WindowStart time.Time       `json:"window_start"`
	WindowEnd   time.Time       `json:"window_end"`
	Highlight   *models.Message `json:"highlight_message"`
}

// HighlightFunc picks the single message that represents a window. The input
// slice is ordered newest-first with discord id breaking ties; nil means the
// window is empty, a normal state rather than an error.
type HighlightFunc func(msgs []models.Message) *models.Message

// MostRecent is the default highlight: the newest message, posted_at ties
// broken by the lexicographically smaller discord id. The store's window
// ordering already guarantees exactly that, so the head of the slice is the
// answer.
func MostRecent(msgs []models.Message) *models.Message {
	if len(msgs) == 0 {
		return nil
	}
	return &msgs[0]
}

// Resolver computes state views. The interval must equal the poll scheduler's
// interval: the resolver's trailing window is defined to mirror the ingestion
// window so both describe the same slice of time.
type Resolver struct {
	registry  *session.Registry
	store     *store.Store
	interval  time.Duration
	highlight HighlightFunc
	metrics   *metrics.Metrics
}

// Opts holds parameters for creating a Resolver.
type Opts struct {
	Registry *session.Registry
	Store    *store.Store
	Interval time.Duration
	// Highlight replaces the MostRecent default, reserved for a ranked
	// interestingness selection over the same windowed candidates.
	Highlight HighlightFunc
	Metrics   *metrics.Metrics
}

// New creates a Resolver.
func New(opts Opts) (*Resolver, error) {
	if opts.Registry == nil {
		return nil, fmt.Errorf("resolver: registry is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("resolver: store is required")
	}
	if opts.Interval <= 0 {
		return nil, fmt.Errorf("resolver: interval must be positive")
	}
	if opts.Highlight == nil {
		opts.Highlight = MostRecent
	}
	return &Resolver{
		registry:  opts.Registry,
		store:     opts.Store,
		interval:  opts.Interval,
		highlight: opts.Highlight,
		metrics:   opts.Metrics,
	}, nil
}

// Resolve returns the state view for ts. The trailing window [ts-interval, ts]
// is clamped to the owning session's bounds.
func (r *Resolver) Resolve(ts time.Time) (*StateView, error) {
	if r.metrics != nil {
		r.metrics.ResolveRequests.Inc()
	}
	if ts.IsZero() {
		return nil, ErrInvalidTimestamp
	}

	s, err := r.registry.FindContaining(ts)
	if err != nil {
		if errors.Is(err, session.ErrInvalidTimestamp) {
			return nil, ErrInvalidTimestamp
		}
		return nil, fmt.Errorf("resolver: %w", err)
	}
	if s == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoSession, ts.Format(time.RFC3339))
	}

	windowStart := ts.Add(-r.interval)
	if windowStart.Before(s.StartTime) {
		windowStart = s.StartTime
	}
	windowEnd := ts
	if windowEnd.After(s.EndTime) {
		windowEnd = s.EndTime
	}

	msgs, err := r.store.Window(s.SessionID, windowStart, windowEnd)
	if err != nil {
		return nil, fmt.Errorf("resolver: %w", err)
	}

	return &StateView{
		SessionID:   s.SessionID,
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
		Highlight:   r.highlight(msgs),
	}, nil
}
