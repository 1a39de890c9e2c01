package models

import "time"

// Session is one bounded slot of a race weekend (Race, Qualifying, FP1...).
// Rows are created and updated by the schedule seeder; everything else in the
// system treats them as read-only.
type Session struct {
	ID          uint      `gorm:"primaryKey;autoIncrement"`
	SessionID   string    `gorm:"size:50;not null;uniqueIndex"`
	Year        int       `gorm:"not null;index:idx_year_round"`
	RoundNumber int       `gorm:"not null;index:idx_year_round"`
	SessionType string    `gorm:"size:20;not null"`
	StartTime   time.Time `gorm:"not null;index:idx_session_bounds"`
	EndTime     time.Time `gorm:"not null;index:idx_session_bounds"`
	EventName   string    `gorm:"size:200"`
	Location    string    `gorm:"size:200"`
	Country     string    `gorm:"size:100"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Contains reports whether ts falls inside the session's closed interval.
func (s *Session) Contains(ts time.Time) bool {
	return !ts.Before(s.StartTime) && !ts.After(s.EndTime)
}

// LiveAt reports whether the session is live at ts (half-open interval, the
// instant a session ends it is no longer live).
func (s *Session) LiveAt(ts time.Time) bool {
	return !ts.Before(s.StartTime) && ts.Before(s.EndTime)
}
