// Package ingest normalizes raw export batches and applies them to the
// message store. Upserts are keyed on the Discord id and committed per
// record, so re-ingesting a window, overlapping windows, and racing
// ingestion calls all converge to one canonical row per message.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/grandstand/pitradio/internal/export"
	"github.com/grandstand/pitradio/internal/metrics"
	"github.com/grandstand/pitradio/internal/models"
	"github.com/grandstand/pitradio/internal/notify"
	"github.com/grandstand/pitradio/internal/session"
	"github.com/grandstand/pitradio/internal/store"
)

// ErrInvalidWindow reports a window whose start is after its end.
var ErrInvalidWindow = errors.New("ingest: window start after end")

// defaultFetchTimeout bounds the export call when the caller supplies none.
const defaultFetchTimeout = 90 * time.Second

// Report summarizes one ingestion call.
type Report struct {
	SessionID        string        `json:"session_id"`
	WindowStart      time.Time     `json:"window_start"`
	WindowEnd        time.Time     `json:"window_end"`
	Total            int           `json:"total"`
	Created          int           `json:"created"`
	Updated          int           `json:"updated"`
	Skipped          int           `json:"skipped"`
	MissingContent   int           `json:"missing_content"`
	MissingTimestamp int           `json:"missing_timestamp"`
	Elapsed          time.Duration `json:"elapsed"`
}

// Summary renders the report as a single log line.
func (r *Report) Summary() string {
	return fmt.Sprintf(
		"session %s [%s .. %s]: total=%d created=%d updated=%d skipped=%d missing_content=%d missing_timestamp=%d in %s",
		r.SessionID,
		r.WindowStart.Format(time.RFC3339), r.WindowEnd.Format(time.RFC3339),
		r.Total, r.Created, r.Updated, r.Skipped,
		r.MissingContent, r.MissingTimestamp,
		r.Elapsed.Round(time.Millisecond))
}

// Engine is the ingestion pipeline: fetch, normalize, upsert. It is the sole
// writer of message rows.
type Engine struct {
	registry     *session.Registry
	store        *store.Store
	fetcher      export.Fetcher
	metrics      *metrics.Metrics
	notifier     notify.Notifier
	fetchTimeout time.Duration
	out          io.Writer
}

// EngineOpts holds parameters for creating an Engine.
type EngineOpts struct {
	Registry     *session.Registry
	Store        *store.Store
	Fetcher      export.Fetcher
	Metrics      *metrics.Metrics
	Notifier     notify.Notifier
	FetchTimeout time.Duration
	Out          io.Writer
}

// NewEngine creates an Engine.
func NewEngine(opts EngineOpts) (*Engine, error) {
	if opts.Registry == nil {
		return nil, fmt.Errorf("ingest: registry is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("ingest: store is required")
	}
	if opts.Fetcher == nil {
		return nil, fmt.Errorf("ingest: fetcher is required")
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Nop{}
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = defaultFetchTimeout
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	return &Engine{
		registry:     opts.Registry,
		store:        opts.Store,
		fetcher:      opts.Fetcher,
		metrics:      opts.Metrics,
		notifier:     opts.Notifier,
		fetchTimeout: opts.FetchTimeout,
		out:          opts.Out,
	}, nil
}

// Ingest fetches the raw batch for [start, end] and upserts every usable
// record. On failure the returned report still carries the counts of records
// committed before the error: per-record commits are independent and are
// never rolled back.
func (e *Engine) Ingest(ctx context.Context, sessionID, channelID string, start, end time.Time) (*Report, error) {
	began := time.Now()
	report := &Report{SessionID: sessionID, WindowStart: start, WindowEnd: end}
	e.countRun()

	if start.After(end) {
		return report, e.fail(report, fmt.Errorf("%w: %s > %s", ErrInvalidWindow,
			start.Format(time.RFC3339), end.Format(time.RFC3339)))
	}
	if _, err := e.registry.FindByID(sessionID); err != nil {
		return report, e.fail(report, err)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, e.fetchTimeout)
	defer cancel()

	records, err := e.fetcher.FetchBatch(fetchCtx, channelID, start, end)
	if err != nil {
		return report, e.fail(report, fmt.Errorf("ingest: fetch batch: %w", err))
	}
	report.Total = len(records)

	for _, rec := range records {
		msg, reason := e.normalize(sessionID, start, end, rec)
		if reason != "" {
			e.countSkip(report, reason)
			continue
		}

		created, changed, upErr := e.store.Upsert(msg)
		if upErr != nil {
			report.Elapsed = time.Since(began)
			return report, e.fail(report, fmt.Errorf("ingest: record %s: %w", rec.ID, upErr))
		}
		switch {
		case created:
			report.Created++
			if e.metrics != nil {
				e.metrics.MessagesCreated.Inc()
			}
		case changed:
			report.Updated++
			if e.metrics != nil {
				e.metrics.MessagesUpdated.Inc()
			}
		}
	}

	report.Elapsed = time.Since(began)
	fmt.Fprintf(e.out, "Ingested %s\n", report.Summary())
	return report, nil
}

// IngestSession runs a full-session ingestion (window = the session's whole
// interval) and notifies the summary. Used by the on-demand API trigger and
// the backfill sweep.
func (e *Engine) IngestSession(ctx context.Context, sessionID, channelID string) (*Report, error) {
	s, err := e.registry.FindByID(sessionID)
	if err != nil {
		e.countRun()
		report := &Report{SessionID: sessionID}
		return report, e.fail(report, err)
	}

	report, err := e.Ingest(ctx, sessionID, channelID, s.StartTime, s.EndTime)
	if err != nil {
		return report, err
	}
	e.notifier.IngestSummary("full-session ingest: " + report.Summary())
	return report, nil
}

// normalize converts one raw record into a message row, or returns a
// non-empty skip reason.
func (e *Engine) normalize(sessionID string, start, end time.Time, rec export.RawRecord) (models.Message, string) {
	if rec.ID == "" {
		return models.Message{}, "missing_id"
	}
	if rec.Content == "" {
		return models.Message{}, "missing_content"
	}
	if rec.Timestamp == "" {
		return models.Message{}, "missing_timestamp"
	}

	postedAt, err := time.Parse(time.RFC3339, rec.Timestamp)
	if err != nil {
		log.Printf("ingest: skipping message %s with unparsable timestamp %q", rec.ID, rec.Timestamp)
		return models.Message{}, "unparsable_timestamp"
	}
	postedAt = postedAt.UTC()
	if postedAt.Before(start) || postedAt.After(end) {
		return models.Message{}, "outside_window"
	}

	var editedAt *time.Time
	if rec.TimestampEdited != "" {
		if t, err := time.Parse(time.RFC3339, rec.TimestampEdited); err == nil {
			t = t.UTC()
			editedAt = &t
		}
	}

	driver, text := NormalizeContent(rec.Content)

	msg := models.Message{
		DiscordID:   rec.ID,
		SessionID:   sessionID,
		PostedAt:    postedAt,
		EditedAt:    editedAt,
		Driver:      driver,
		RawContent:  rec.Content,
		MessageText: text,
	}
	if rec.AuthorID != "" {
		msg.AuthorID = &rec.AuthorID
	}
	if rec.AuthorName != "" {
		msg.AuthorName = &rec.AuthorName
	}
	if rec.AuthorNickname != "" {
		msg.AuthorNickname = &rec.AuthorNickname
	}
	return msg, ""
}

// countSkip records a skipped record in the report and metrics.
func (e *Engine) countSkip(report *Report, reason string) {
	switch reason {
	case "missing_content":
		report.MissingContent++
	case "missing_timestamp":
		report.MissingTimestamp++
	default:
		report.Skipped++
	}
	if e.metrics != nil {
		e.metrics.RecordsSkipped.WithLabelValues(reason).Inc()
	}
}

func (e *Engine) countRun() {
	if e.metrics != nil {
		e.metrics.IngestRuns.Inc()
	}
}

// fail classifies the error for metrics, notifies, and passes it through.
func (e *Engine) fail(report *Report, err error) error {
	if e.metrics != nil {
		e.metrics.IngestFailures.WithLabelValues(FailureKind(err)).Inc()
	}
	e.notifier.IngestFailure(fmt.Sprintf("session %s ingest failed: %v", report.SessionID, err))
	return err
}

// FailureKind maps an ingestion error to its taxonomy label.
func FailureKind(err error) string {
	switch {
	case errors.Is(err, ErrInvalidWindow):
		return "invalid_window"
	case errors.Is(err, session.ErrNotFound):
		return "session_not_found"
	case errors.Is(err, export.ErrUnavailable):
		return "export_unavailable"
	case errors.Is(err, export.ErrMalformed):
		return "malformed_export"
	case errors.Is(err, store.ErrWrite):
		return "store_write"
	default:
		return "other"
	}
}
