package models

import "time"

// Message is one Discord-exported radio message tied to a session. DiscordID
// is the sole deduplication key: re-ingesting the same id updates the row in
// place, it never creates a second one.
type Message struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	DiscordID string `gorm:"size:32;not null;uniqueIndex"`
	SessionID string `gorm:"size:50;not null;index:idx_session_posted"`

	PostedAt time.Time  `gorm:"not null;index:idx_session_posted"`
	EditedAt *time.Time

	Driver         *string `gorm:"size:100"`
	AuthorID       *string `gorm:"size:32"`
	AuthorName     *string `gorm:"size:255"`
	AuthorNickname *string `gorm:"size:255"`

	RawContent  string `gorm:"type:text;not null"`
	MessageText string `gorm:"type:text"`

	// Reserved for a future ranking pass; no code sets this yet.
	IsHighlightCandidate bool `gorm:"default:false"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
