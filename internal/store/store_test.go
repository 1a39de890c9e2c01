package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/grandstand/pitradio/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openStoreTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.Message{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func msg(discordID string, postedAt time.Time, text string) models.Message {
	return models.Message{
		DiscordID:   discordID,
		SessionID:   "2025-1-R",
		PostedAt:    postedAt,
		RawContent:  text,
		MessageText: text,
	}
}

func TestUpsert_CreateThenNoop(t *testing.T) {
	s := New(openStoreTestDB(t))
	m := msg("111", time.Date(2025, 3, 16, 10, 0, 10, 0, time.UTC), "box box")

	created, changed, err := s.Upsert(m)
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if !created || changed {
		t.Errorf("first upsert: created=%v changed=%v, want true/false", created, changed)
	}

	created, changed, err = s.Upsert(m)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if created || changed {
		t.Errorf("second upsert: created=%v changed=%v, want false/false", created, changed)
	}

	count, err := s.CountBySession("2025-1-R")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("row count = %d, want 1", count)
	}
}

func TestUpsert_UpdateInPlace(t *testing.T) {
	s := New(openStoreTestDB(t))
	at := time.Date(2025, 3, 16, 10, 0, 10, 0, time.UTC)

	if _, _, err := s.Upsert(msg("111", at, "box box")); err != nil {
		t.Fatalf("create: %v", err)
	}

	created, changed, err := s.Upsert(msg("111", at, "box box, confirm"))
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if created || !changed {
		t.Errorf("update: created=%v changed=%v, want false/true", created, changed)
	}

	got, err := s.Window("2025-1-R", at.Add(-time.Minute), at.Add(time.Minute))
	if err != nil {
		t.Fatalf("window: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("rows = %d, want 1 (update must not duplicate)", len(got))
	}
	if got[0].MessageText != "box box, confirm" {
		t.Errorf("MessageText = %q", got[0].MessageText)
	}
}

func TestUpsert_ConvergesWhenInsertIsRaced(t *testing.T) {
	// File-backed so the rival writer's connection sees the same database.
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "race.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.Message{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	s := New(db)
	at := time.Date(2025, 3, 16, 10, 0, 10, 0, time.UTC)

	// A second writer lands the row between the lookup and the create, the
	// way a scheduled tick and the on-demand fetch trigger can collide on a
	// first-time id.
	rivalDone := false
	err = db.Callback().Query().After("gorm:query").Register("rival_insert", func(tx *gorm.DB) {
		if rivalDone {
			return
		}
		rivalDone = true
		rival := msg("111", at, "rival copy")
		if createErr := db.Session(&gorm.Session{NewDB: true}).Create(&rival).Error; createErr != nil {
			t.Errorf("rival create: %v", createErr)
		}
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}

	created, changed, err := s.Upsert(msg("111", at, "box box"))
	if err != nil {
		t.Fatalf("Upsert after losing insert race: %v", err)
	}
	if created {
		t.Error("created = true, want false when another writer inserted first")
	}
	if !changed {
		t.Error("changed = false, want true (incoming content differs from rival's)")
	}

	got, err := s.Window("2025-1-R", at.Add(-time.Minute), at.Add(time.Minute))
	if err != nil {
		t.Fatalf("window: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("rows = %d, want exactly 1 after racing writers", len(got))
	}
	if got[0].MessageText != "box box" {
		t.Errorf("MessageText = %q, want the later ingest's content", got[0].MessageText)
	}
}

func TestUpsert_MissingDiscordID(t *testing.T) {
	s := New(openStoreTestDB(t))
	_, _, err := s.Upsert(models.Message{SessionID: "2025-1-R"})
	if err == nil {
		t.Fatal("expected error for missing discord id")
	}
}

func TestUpsert_WriteFailureIsErrWrite(t *testing.T) {
	db := openStoreTestDB(t)
	s := New(db)

	// Dropping the table forces the create path to fail at the database.
	if err := db.Migrator().DropTable(&models.Message{}); err != nil {
		t.Fatalf("drop table: %v", err)
	}

	_, _, err := s.Upsert(msg("111", time.Date(2025, 3, 16, 10, 0, 10, 0, time.UTC), "box"))
	if !errors.Is(err, ErrWrite) {
		t.Errorf("error = %v, want ErrWrite", err)
	}
}

func TestWindow_BoundsAndOrdering(t *testing.T) {
	s := New(openStoreTestDB(t))
	base := time.Date(2025, 3, 16, 10, 0, 0, 0, time.UTC)

	for _, m := range []models.Message{
		msg("100", base.Add(5*time.Second), "first"),
		msg("300", base.Add(20*time.Second), "tie-b"),
		msg("200", base.Add(20*time.Second), "tie-a"),
		msg("400", base.Add(40*time.Second), "outside"),
	} {
		if _, _, err := s.Upsert(m); err != nil {
			t.Fatalf("upsert %s: %v", m.DiscordID, err)
		}
	}

	got, err := s.Window("2025-1-R", base, base.Add(30*time.Second))
	if err != nil {
		t.Fatalf("window: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("rows = %d, want 3", len(got))
	}

	// Newest first, posted_at ties broken by ascending discord id.
	wantOrder := []string{"200", "300", "100"}
	for i, want := range wantOrder {
		if got[i].DiscordID != want {
			t.Errorf("got[%d].DiscordID = %q, want %q", i, got[i].DiscordID, want)
		}
	}
}

func TestWindow_InclusiveEdges(t *testing.T) {
	s := New(openStoreTestDB(t))
	start := time.Date(2025, 3, 16, 10, 0, 0, 0, time.UTC)
	end := start.Add(30 * time.Second)

	if _, _, err := s.Upsert(msg("at-start", start, "a")); err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.Upsert(msg("at-end", end, "b")); err != nil {
		t.Fatal(err)
	}

	got, err := s.Window("2025-1-R", start, end)
	if err != nil {
		t.Fatalf("window: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("rows = %d, want 2 (both edges inclusive)", len(got))
	}
}

func TestWindow_OtherSessionExcluded(t *testing.T) {
	s := New(openStoreTestDB(t))
	at := time.Date(2025, 3, 16, 10, 0, 10, 0, time.UTC)

	other := msg("999", at, "different race")
	other.SessionID = "2025-2-R"
	if _, _, err := s.Upsert(other); err != nil {
		t.Fatal(err)
	}

	got, err := s.Window("2025-1-R", at.Add(-time.Minute), at.Add(time.Minute))
	if err != nil {
		t.Fatalf("window: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("rows = %d, want 0", len(got))
	}
}
