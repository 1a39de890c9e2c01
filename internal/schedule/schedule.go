// Package schedule seeds Session rows from a YAML race calendar file.
package schedule

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/grandstand/pitradio/internal/models"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// File is the top-level structure of a schedule YAML file.
type File struct {
	Sessions []Entry `yaml:"sessions"`
}

// Entry describes one session of a race weekend.
type Entry struct {
	SessionID   string    `yaml:"session_id"`
	Year        int       `yaml:"year"`
	RoundNumber int       `yaml:"round"`
	SessionType string    `yaml:"type"`
	StartTime   time.Time `yaml:"start_time"`
	EndTime     time.Time `yaml:"end_time"`
	EventName   string    `yaml:"event_name"`
	Location    string    `yaml:"location"`
	Country     string    `yaml:"country"`
}

// Load reads and validates a schedule YAML file.
func Load(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("schedule: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into validated schedule entries.
func Parse(data []byte) ([]Entry, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("schedule: parse: %w", err)
	}
	if err := validate(f.Sessions); err != nil {
		return nil, err
	}
	return f.Sessions, nil
}

func validate(entries []Entry) error {
	var errs []string
	if len(entries) == 0 {
		errs = append(errs, "at least one session is required")
	}
	seen := make(map[string]bool, len(entries))
	for i, e := range entries {
		if e.SessionID == "" {
			errs = append(errs, fmt.Sprintf("sessions[%d].session_id is required", i))
			continue
		}
		if seen[e.SessionID] {
			errs = append(errs, fmt.Sprintf("sessions[%d].session_id %q is duplicated", i, e.SessionID))
		}
		seen[e.SessionID] = true
		if e.StartTime.IsZero() || e.EndTime.IsZero() {
			errs = append(errs, fmt.Sprintf("sessions[%d] (%s): start_time and end_time are required", i, e.SessionID))
		} else if !e.StartTime.Before(e.EndTime) {
			errs = append(errs, fmt.Sprintf("sessions[%d] (%s): start_time must be before end_time", i, e.SessionID))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("schedule: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Seed upserts Session rows from schedule entries, keyed on session_id so
// re-seeding an updated calendar adjusts times in place.
func Seed(db *gorm.DB, entries []Entry) error {
	for _, e := range entries {
		session := models.Session{
			SessionID:   e.SessionID,
			Year:        e.Year,
			RoundNumber: e.RoundNumber,
			SessionType: e.SessionType,
			StartTime:   e.StartTime.UTC(),
			EndTime:     e.EndTime.UTC(),
			EventName:   e.EventName,
			Location:    e.Location,
			Country:     e.Country,
		}

		result := db.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "session_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"year", "round_number", "session_type", "start_time", "end_time",
				"event_name", "location", "country", "updated_at",
			}),
		}).Create(&session)
		if result.Error != nil {
			return fmt.Errorf("schedule: seed session %q: %w", e.SessionID, result.Error)
		}
	}
	return nil
}
