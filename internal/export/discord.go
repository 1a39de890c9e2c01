package export

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
)

// pageSize is the Discord API maximum for one history page.
const pageSize = 100

// discordEpochMS is the Discord snowflake epoch (2015-01-01T00:00:00Z) in
// Unix milliseconds.
const discordEpochMS = 1420070400000

// channelHistory abstracts the discordgo.Session method we use, enabling
// test mocks.
type channelHistory interface {
	ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error)
}

// DiscordFetcher reads channel history directly from the Discord REST API,
// an alternative to shelling out to DiscordChatExporter.
type DiscordFetcher struct {
	sess channelHistory
}

// DiscordFetcherOpts holds parameters for creating a DiscordFetcher.
type DiscordFetcherOpts struct {
	BotToken string
	// For testing: inject a mock session instead of the real Discord API.
	Session channelHistory
}

// NewDiscordFetcher creates a DiscordFetcher.
func NewDiscordFetcher(opts DiscordFetcherOpts) (*DiscordFetcher, error) {
	if opts.Session != nil {
		return &DiscordFetcher{sess: opts.Session}, nil
	}
	if opts.BotToken == "" {
		return nil, fmt.Errorf("export: bot token is required")
	}
	sess, err := discordgo.New("Bot " + opts.BotToken)
	if err != nil {
		return nil, fmt.Errorf("export: create discord session: %w", err)
	}
	return &DiscordFetcher{sess: sess}, nil
}

// FetchBatch pages through the channel's history with a snowflake cursor and
// keeps the records posted in [start, end]. API failures map to
// ErrUnavailable.
func (f *DiscordFetcher) FetchBatch(ctx context.Context, channelID string, start, end time.Time) ([]RawRecord, error) {
	if channelID == "" {
		return nil, fmt.Errorf("export: channelID is required")
	}

	var records []RawRecord
	after := TimeToSnowflake(start)

	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}

		msgs, err := f.sess.ChannelMessages(channelID, pageSize, "", after, "")
		if err != nil {
			return nil, fmt.Errorf("%w: channel history: %v", ErrUnavailable, err)
		}
		if len(msgs) == 0 {
			break
		}

		// Pages arrive newest-first; the cursor advances past the newest id.
		after = msgs[0].ID
		pastEnd := true
		for _, m := range msgs {
			ts := m.Timestamp
			if ts.After(end) {
				continue
			}
			pastEnd = false
			if ts.Before(start) {
				continue
			}
			records = append(records, rawFromDiscord(m))
		}

		if len(msgs) < pageSize || pastEnd {
			break
		}
	}

	return records, nil
}

// rawFromDiscord converts a discordgo message into the neutral record shape.
func rawFromDiscord(m *discordgo.Message) RawRecord {
	r := RawRecord{
		ID:        m.ID,
		Timestamp: m.Timestamp.UTC().Format(time.RFC3339Nano),
		Content:   m.Content,
	}
	if m.EditedTimestamp != nil {
		r.TimestampEdited = m.EditedTimestamp.UTC().Format(time.RFC3339Nano)
	}
	if m.Author != nil {
		r.AuthorID = m.Author.ID
		r.AuthorName = m.Author.Username
	}
	if m.Member != nil {
		r.AuthorNickname = m.Member.Nick
	}
	return r
}

// TimeToSnowflake converts a timestamp to the smallest Discord snowflake id
// generated at or after it, for use as a history cursor.
func TimeToSnowflake(t time.Time) string {
	ms := t.UnixMilli() - discordEpochMS
	if ms < 0 {
		ms = 0
	}
	return fmt.Sprintf("%d", uint64(ms)<<22)
}
