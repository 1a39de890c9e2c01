package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/grandstand/pitradio/internal/export"
	"github.com/grandstand/pitradio/internal/ingest"
	"github.com/grandstand/pitradio/internal/metrics"
	"github.com/grandstand/pitradio/internal/models"
	"github.com/grandstand/pitradio/internal/resolver"
	"github.com/grandstand/pitradio/internal/session"
	"github.com/grandstand/pitradio/internal/store"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type mockFetcher struct {
	records []export.RawRecord
	err     error
}

func (m *mockFetcher) FetchBatch(ctx context.Context, channelID string, start, end time.Time) ([]export.RawRecord, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.records, nil
}

var (
	raceStart = time.Date(2025, 3, 16, 10, 0, 0, 0, time.UTC)
	raceEnd   = time.Date(2025, 3, 16, 12, 0, 0, 0, time.UTC)
)

func newTestRouter(t *testing.T, fetcher export.Fetcher) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.Session{}, &models.Message{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	db.Create(&models.Session{
		SessionID: "2025-1-R", Year: 2025, RoundNumber: 1, SessionType: "Race",
		StartTime: raceStart, EndTime: raceEnd, EventName: "Australian Grand Prix",
	})
	db.Create(&models.Session{
		SessionID: "2024-22-R", Year: 2024, RoundNumber: 22, SessionType: "Race",
		StartTime: raceStart.AddDate(-1, 0, 0), EndTime: raceEnd.AddDate(-1, 0, 0),
	})

	registry := session.NewRegistry(db)
	st := store.New(db)
	m := metrics.New()

	eng, err := ingest.NewEngine(ingest.EngineOpts{
		Registry: registry, Store: st, Fetcher: fetcher, Metrics: m,
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	res, err := resolver.New(resolver.Opts{
		Registry: registry, Store: st, Interval: 30 * time.Second, Metrics: m,
	})
	if err != nil {
		t.Fatalf("resolver.New: %v", err)
	}

	router, err := NewRouter(StartOpts{
		Registry: registry, Resolver: res, Engine: eng,
		Metrics: m, ChannelID: "chan-1",
	})
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	return router, db
}

func doRequest(router *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestNewRouter_Validation(t *testing.T) {
	if _, err := NewRouter(StartOpts{}); err == nil {
		t.Error("expected error for missing registry")
	}
}

func TestHealth(t *testing.T) {
	router, _ := newTestRouter(t, &mockFetcher{})

	w := doRequest(router, http.MethodGet, "/api/health")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"ok"`) {
		t.Errorf("body = %s, want ok status", w.Body.String())
	}
}

func TestCurrentState_ReturnsHighlight(t *testing.T) {
	router, db := newTestRouter(t, &mockFetcher{})
	db.Create(&models.Message{
		DiscordID: "m1", SessionID: "2025-1-R",
		PostedAt: raceStart.Add(10 * time.Second), RawContent: "box box", MessageText: "box box",
	})

	ts := raceStart.Add(20 * time.Second).Format(time.RFC3339)
	w := doRequest(router, http.MethodGet, "/api/current_state?timestamp="+ts)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var view resolver.StateView
	if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if view.SessionID != "2025-1-R" {
		t.Errorf("session_id = %q, want 2025-1-R", view.SessionID)
	}
	if view.Highlight == nil || view.Highlight.DiscordID != "m1" {
		t.Errorf("highlight = %+v, want m1", view.Highlight)
	}
}

func TestCurrentState_EmptyWindowIsOK(t *testing.T) {
	router, _ := newTestRouter(t, &mockFetcher{})

	ts := raceStart.Add(time.Minute).Format(time.RFC3339)
	w := doRequest(router, http.MethodGet, "/api/current_state?timestamp="+ts)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"highlight_message":null`) {
		t.Errorf("body = %s, want null highlight", w.Body.String())
	}
}

func TestCurrentState_BadTimestamp(t *testing.T) {
	router, _ := newTestRouter(t, &mockFetcher{})

	w := doRequest(router, http.MethodGet, "/api/current_state?timestamp=yesterday")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}

	// Naive timestamps (no offset) are rejected too.
	w = doRequest(router, http.MethodGet, "/api/current_state?timestamp=2025-03-16T10:00:00")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for naive timestamp", w.Code)
	}
}

func TestCurrentState_MissingTimestamp(t *testing.T) {
	router, _ := newTestRouter(t, &mockFetcher{})

	w := doRequest(router, http.MethodGet, "/api/current_state")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestCurrentState_NoSession(t *testing.T) {
	router, _ := newTestRouter(t, &mockFetcher{})

	ts := raceEnd.Add(24 * time.Hour).Format(time.RFC3339)
	w := doRequest(router, http.MethodGet, "/api/current_state?timestamp="+ts)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestSessionList(t *testing.T) {
	router, _ := newTestRouter(t, &mockFetcher{})

	w := doRequest(router, http.MethodGet, "/api/sessions")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var resp struct {
		Sessions []models.Session `json:"sessions"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Sessions) != 2 {
		t.Fatalf("sessions = %d, want 2", len(resp.Sessions))
	}
	if resp.Sessions[0].Year != 2025 {
		t.Errorf("first session year = %d, want newest year first", resp.Sessions[0].Year)
	}
}

func TestSessionList_YearFilter(t *testing.T) {
	router, _ := newTestRouter(t, &mockFetcher{})

	w := doRequest(router, http.MethodGet, "/api/sessions?year=2024")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "2024-22-R") || strings.Contains(w.Body.String(), "2025-1-R") {
		t.Errorf("body = %s, want only 2024 sessions", w.Body.String())
	}

	w = doRequest(router, http.MethodGet, "/api/sessions?year=soon")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for non-integer year", w.Code)
	}
}

func TestFetch_IngestsFullSession(t *testing.T) {
	fetcher := &mockFetcher{records: []export.RawRecord{
		{
			ID:        "m1",
			Timestamp: raceStart.Add(5 * time.Second).Format(time.RFC3339),
			Content:   ":studio_microphone: `Leclerc` box box",
		},
	}}
	router, db := newTestRouter(t, fetcher)

	w := doRequest(router, http.MethodPost, "/api/sessions/2025-1-R/fetch")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var report ingest.Report
	if err := json.Unmarshal(w.Body.Bytes(), &report); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if report.Created != 1 {
		t.Errorf("created = %d, want 1", report.Created)
	}

	var count int64
	db.Model(&models.Message{}).Count(&count)
	if count != 1 {
		t.Errorf("stored messages = %d, want 1", count)
	}
}

func TestFetch_UnknownSession(t *testing.T) {
	router, _ := newTestRouter(t, &mockFetcher{})

	w := doRequest(router, http.MethodPost, "/api/sessions/nope/fetch")
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestFetch_ExportUnavailable(t *testing.T) {
	router, _ := newTestRouter(t, &mockFetcher{err: export.ErrUnavailable})

	w := doRequest(router, http.MethodPost, "/api/sessions/2025-1-R/fetch")
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, &mockFetcher{})

	// Generate one resolve so at least one counter is non-zero.
	ts := raceStart.Add(time.Minute).Format(time.RFC3339)
	doRequest(router, http.MethodGet, "/api/current_state?timestamp="+ts)

	w := doRequest(router, http.MethodGet, "/metrics")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "pitradio_resolve_requests_total") {
		t.Errorf("metrics body missing pitradio_resolve_requests_total")
	}
}
