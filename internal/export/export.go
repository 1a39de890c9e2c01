// Package export fetches raw radio message batches from a Discord channel.
// It is the boundary to the unreliable, rate-limited export source: callers
// see one narrow Fetcher capability and typed failures, never subprocess or
// REST details.
package export

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable reports that the export source could not be reached or did
// not respond in time. The batch may be retried on a later window.
var ErrUnavailable = errors.New("export: source unavailable")

// ErrMalformed reports an export payload that could not be decoded. The whole
// batch for that call is lost; individual bad records inside a decodable
// payload are a per-record concern, not this error.
var ErrMalformed = errors.New("export: malformed payload")

// RawRecord is one message as the export source produced it. Timestamps stay
// as raw strings here: deciding whether one parses is the ingestion engine's
// job, and a record missing content or a timestamp is skipped there, not here.
type RawRecord struct {
	ID              string
	Timestamp       string
	TimestampEdited string
	Content         string
	AuthorID        string
	AuthorName      string
	AuthorNickname  string
}

// Fetcher returns the raw records posted to a channel within [start, end].
type Fetcher interface {
	FetchBatch(ctx context.Context, channelID string, start, end time.Time) ([]RawRecord, error)
}
