// Package store persists radio messages keyed by their Discord id.
package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/grandstand/pitradio/internal/models"
	"gorm.io/gorm"
)

// ErrWrite wraps persistence failures so callers can distinguish a store fault
// from source-side errors.
var ErrWrite = errors.New("store: write failed")

// Store is the only writer of Message rows. Reads and writes go through the
// database's own transactional guarantees; there is no additional locking.
type Store struct {
	db *gorm.DB
}

// New creates a Store over the given database.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Upsert inserts or updates a message by DiscordID. Returns created=true for
// a new row; changed=true when an existing row had a mutable field updated.
// Re-applying the same message is a no-op, which is what makes overlapping
// ingestion windows safe.
func (s *Store) Upsert(msg models.Message) (created, changed bool, err error) {
	if msg.DiscordID == "" {
		return false, false, fmt.Errorf("store: discordID is required")
	}

	var existing models.Message
	findErr := s.db.Where("discord_id = ?", msg.DiscordID).First(&existing).Error
	if errors.Is(findErr, gorm.ErrRecordNotFound) {
		createErr := s.db.Create(&msg).Error
		if createErr == nil {
			return true, false, nil
		}
		// A concurrent ingest can land the row between the lookup and the
		// create, failing the unique index on discord_id. If the row exists
		// now, revise it instead of failing; both callers converge on one row.
		if err := s.db.Where("discord_id = ?", msg.DiscordID).First(&existing).Error; err != nil {
			return false, false, fmt.Errorf("%w: create %s: %v", ErrWrite, msg.DiscordID, createErr)
		}
	} else if findErr != nil {
		return false, false, fmt.Errorf("%w: lookup %s: %v", ErrWrite, msg.DiscordID, findErr)
	}

	merged, dirty := Merge(existing, msg)
	if !dirty {
		return false, false, nil
	}
	if saveErr := s.db.Save(&merged).Error; saveErr != nil {
		return false, false, fmt.Errorf("%w: update %s: %v", ErrWrite, msg.DiscordID, saveErr)
	}
	return false, true, nil
}

// Window returns a session's messages with posted_at in [start, end], newest
// first. DiscordID breaks posted_at ties so the ordering is total and stable.
func (s *Store) Window(sessionID string, start, end time.Time) ([]models.Message, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("store: sessionID is required")
	}

	var msgs []models.Message
	err := s.db.
		Where("session_id = ? AND posted_at >= ? AND posted_at <= ?", sessionID, start, end).
		Order("posted_at DESC, discord_id ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("store: window query for %s: %w", sessionID, err)
	}
	return msgs, nil
}

// CountBySession returns the number of stored messages for a session.
func (s *Store) CountBySession(sessionID string) (int64, error) {
	var count int64
	err := s.db.Model(&models.Message{}).Where("session_id = ?", sessionID).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("store: count for %s: %w", sessionID, err)
	}
	return count, nil
}
