// Package session resolves which race session owns a given instant.
package session

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/grandstand/pitradio/internal/models"
	"gorm.io/gorm"
)

// ErrInvalidTimestamp reports a zero-value query timestamp, a caller-input
// error distinct from an empty lookup result.
var ErrInvalidTimestamp = errors.New("session: invalid timestamp")

// ErrNotFound reports an unknown session id.
var ErrNotFound = errors.New("session: not found")

// Registry reads session rows. It is a pure lookup layer: no method here ever
// writes.
type Registry struct {
	db *gorm.DB
}

// NewRegistry creates a Registry over the given database.
func NewRegistry(db *gorm.DB) *Registry {
	return &Registry{db: db}
}

// FindLive returns the session live at now (start_time <= now < end_time), or
// nil when none is. Overlapping live sessions are a data anomaly: the earliest
// start wins and a single warning is logged, never an error.
func (r *Registry) FindLive(now time.Time) (*models.Session, error) {
	if now.IsZero() {
		return nil, ErrInvalidTimestamp
	}

	var sessions []models.Session
	err := r.db.
		Where("start_time <= ? AND end_time > ?", now, now).
		Order("start_time").
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("session: find live at %s: %w", now.Format(time.RFC3339), err)
	}

	if len(sessions) == 0 {
		return nil, nil
	}
	if len(sessions) > 1 {
		log.Printf("session: %d sessions live at %s, using earliest start (%s)",
			len(sessions), now.Format(time.RFC3339), sessions[0].SessionID)
	}
	return &sessions[0], nil
}

// FindContaining returns the session whose closed interval contains ts
// (start_time <= ts <= end_time), so historical queries at the exact session
// end still resolve. Tie-break matches FindLive.
func (r *Registry) FindContaining(ts time.Time) (*models.Session, error) {
	if ts.IsZero() {
		return nil, ErrInvalidTimestamp
	}

	var sessions []models.Session
	err := r.db.
		Where("start_time <= ? AND end_time >= ?", ts, ts).
		Order("start_time").
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("session: find containing %s: %w", ts.Format(time.RFC3339), err)
	}

	if len(sessions) == 0 {
		return nil, nil
	}
	if len(sessions) > 1 {
		log.Printf("session: %d sessions contain %s, using earliest start (%s)",
			len(sessions), ts.Format(time.RFC3339), sessions[0].SessionID)
	}
	return &sessions[0], nil
}

// FindByID looks up a session by its external session_id.
func (r *Registry) FindByID(sessionID string) (*models.Session, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session: sessionID is required")
	}

	var s models.Session
	err := r.db.Where("session_id = ?", sessionID).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("session: find %s: %w", sessionID, err)
	}
	return &s, nil
}

// List returns sessions ordered by year (descending), round number, and
// session type, optionally filtered to a single year.
func (r *Registry) List(year *int) ([]models.Session, error) {
	q := r.db.Model(&models.Session{})
	if year != nil {
		q = q.Where("year = ?", *year)
	}

	var sessions []models.Session
	if err := q.Order("year DESC, round_number, session_type").Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("session: list: %w", err)
	}
	return sessions, nil
}

// MostRecentlyEnded returns the session with the latest end_time at or before
// now, used by the backfill sweep. Returns nil when no session has ended yet.
func (r *Registry) MostRecentlyEnded(now time.Time) (*models.Session, error) {
	if now.IsZero() {
		return nil, ErrInvalidTimestamp
	}

	var s models.Session
	err := r.db.
		Where("end_time <= ?", now).
		Order("end_time DESC").
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session: most recently ended: %w", err)
	}
	return &s, nil
}
