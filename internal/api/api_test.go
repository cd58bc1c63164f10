// Curatarr - Media Server Automation Companion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curatarr

package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/curatarr/internal/config"
	"github.com/tomtom215/curatarr/internal/engine"
	_ "github.com/tomtom215/curatarr/internal/metrics"
	"github.com/tomtom215/curatarr/internal/models"
	"github.com/tomtom215/curatarr/internal/store"
)

type fakeEngine struct {
	stats engine.Stats
}

func (f *fakeEngine) Stats() engine.Stats { return f.stats }

type fakeEvents struct {
	events []models.AutomationEvent
	err    error
	limit  int
}

func (f *fakeEvents) Recent(_ context.Context, limit int) ([]models.AutomationEvent, error) {
	f.limit = limit
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.events) {
		return f.events[:limit], nil
	}
	return f.events, nil
}

type fakeSettings struct {
	doc       store.SettingsDocument
	updateErr error
	updated   *store.SettingsDocument
}

func (f *fakeSettings) GetSettings() store.SettingsDocument { return f.doc }

func (f *fakeSettings) UpdateSettings(doc store.SettingsDocument) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updated = &doc
	f.doc = doc
	return nil
}

func testSettingsDoc() store.SettingsDocument {
	return store.SettingsDocument{
		DefaultFlags: store.Flags{
			models.JobRecommend:      true,
			models.JobTaste:          true,
			models.JobLibraryRefresh: true,
		},
		Thresholds: store.Thresholds{
			Low: map[models.JobKind]float64{
				models.JobRecommend: 0.55,
				models.JobTaste:     0.70,
			},
			ForceBoth:   0.85,
			MinDuration: 5 * time.Minute,
		},
	}
}

func newTestRouter(eng *fakeEngine, events *fakeEvents, settings *fakeSettings) http.Handler {
	cfg := &config.ServerConfig{
		Host:            "127.0.0.1",
		Port:            8484,
		RateLimitReqs:   1000,
		RateLimitWindow: time.Minute,
		CORSOrigins:     []string{"*"},
	}
	return NewRouter(cfg, eng, events, settings).Handler()
}

func doRequest(t *testing.T, h http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
	return resp
}

func TestHealthz(t *testing.T) {
	h := newTestRouter(&fakeEngine{}, &fakeEvents{}, &fakeSettings{doc: testSettingsDoc()})

	rec := doRequest(t, h, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := decodeResponse(t, rec)
	if !resp.Success {
		t.Error("expected success response")
	}
}

func TestReadyz(t *testing.T) {
	eng := &fakeEngine{}
	h := newTestRouter(eng, &fakeEvents{}, &fakeSettings{doc: testSettingsDoc()})

	rec := doRequest(t, h, http.MethodGet, "/readyz", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("before first tick: status = %d, want 503", rec.Code)
	}
	resp := decodeResponse(t, rec)
	if resp.Error == nil || resp.Error.Code != ErrCodeServiceUnavailable {
		t.Errorf("error = %+v, want code %s", resp.Error, ErrCodeServiceUnavailable)
	}

	eng.stats = engine.Stats{TicksCompleted: 1, LastTick: time.Now()}
	rec = doRequest(t, h, http.MethodGet, "/readyz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("after first tick: status = %d, want 200", rec.Code)
	}
}

func TestStatus(t *testing.T) {
	eng := &fakeEngine{stats: engine.Stats{
		TicksCompleted: 42,
		ActiveSessions: 3,
		QueueDepth:     2,
	}}
	h := newTestRouter(eng, &fakeEvents{}, &fakeSettings{doc: testSettingsDoc()})

	rec := doRequest(t, h, http.MethodGet, "/api/v1/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := decodeResponse(t, rec)
	data, err := json.Marshal(resp.Data)
	if err != nil {
		t.Fatalf("re-marshal data: %v", err)
	}
	var stats engine.Stats
	if err := json.Unmarshal(data, &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.TicksCompleted != 42 || stats.ActiveSessions != 3 || stats.QueueDepth != 2 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestEvents(t *testing.T) {
	events := &fakeEvents{events: []models.AutomationEvent{
		{EventID: "a", Type: models.EventWatchThreshold},
		{EventID: "b", Type: models.EventLibraryAdded},
	}}
	h := newTestRouter(&fakeEngine{}, events, &fakeSettings{doc: testSettingsDoc()})

	rec := doRequest(t, h, http.MethodGet, "/api/v1/events", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if events.limit != defaultEventLimit {
		t.Errorf("limit = %d, want default %d", events.limit, defaultEventLimit)
	}

	rec = doRequest(t, h, http.MethodGet, "/api/v1/events?limit=1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if events.limit != 1 {
		t.Errorf("limit = %d, want 1", events.limit)
	}

	doRequest(t, h, http.MethodGet, "/api/v1/events?limit=99999", nil)
	if events.limit != maxEventLimit {
		t.Errorf("limit = %d, want clamp to %d", events.limit, maxEventLimit)
	}

	doRequest(t, h, http.MethodGet, "/api/v1/events?limit=bogus", nil)
	if events.limit != defaultEventLimit {
		t.Errorf("limit = %d, want default on parse failure", events.limit)
	}
}

func TestGetSettings(t *testing.T) {
	settings := &fakeSettings{doc: testSettingsDoc()}
	h := newTestRouter(&fakeEngine{}, &fakeEvents{}, settings)

	rec := doRequest(t, h, http.MethodGet, "/api/v1/settings", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "force_both") {
		t.Errorf("body missing thresholds: %s", rec.Body.String())
	}
}

func TestPutSettings(t *testing.T) {
	settings := &fakeSettings{doc: testSettingsDoc()}
	h := newTestRouter(&fakeEngine{}, &fakeEvents{}, settings)

	doc := testSettingsDoc()
	doc.ExcludedSections = []int{3, 7}
	doc.UserFlags = map[int]store.Flags{
		12: {models.JobRecommend: false, models.JobTaste: true, models.JobLibraryRefresh: true},
	}
	body, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal doc: %v", err)
	}

	rec := doRequest(t, h, http.MethodPut, "/api/v1/settings", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if settings.updated == nil {
		t.Fatal("UpdateSettings was not called")
	}
	if len(settings.updated.ExcludedSections) != 2 {
		t.Errorf("excluded_sections = %v", settings.updated.ExcludedSections)
	}
	if settings.updated.UserFlags[12].Enabled(models.JobRecommend) {
		t.Error("user 12 recommend flag should be off")
	}
}

func TestPutSettings_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(doc *store.SettingsDocument)
		wantCode string
	}{
		{
			name: "threshold above one",
			mutate: func(doc *store.SettingsDocument) {
				doc.Thresholds.Low[models.JobRecommend] = 1.5
			},
			wantCode: ErrCodeValidationFailed,
		},
		{
			name: "zero threshold",
			mutate: func(doc *store.SettingsDocument) {
				doc.Thresholds.Low[models.JobTaste] = 0
			},
			wantCode: ErrCodeValidationFailed,
		},
		{
			name: "force both above one",
			mutate: func(doc *store.SettingsDocument) {
				doc.Thresholds.ForceBoth = 2
			},
			wantCode: ErrCodeValidationFailed,
		},
		{
			name: "unknown job kind",
			mutate: func(doc *store.SettingsDocument) {
				doc.DefaultFlags["transcode"] = true
			},
			wantCode: ErrCodeValidationFailed,
		},
		{
			name: "negative user id",
			mutate: func(doc *store.SettingsDocument) {
				doc.UserFlags = map[int]store.Flags{-1: {models.JobRecommend: true}}
			},
			wantCode: ErrCodeValidationFailed,
		},
		{
			name: "zero section id",
			mutate: func(doc *store.SettingsDocument) {
				doc.ExcludedSections = []int{0}
			},
			wantCode: ErrCodeValidationFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := &fakeSettings{doc: testSettingsDoc()}
			h := newTestRouter(&fakeEngine{}, &fakeEvents{}, settings)

			doc := testSettingsDoc()
			tt.mutate(&doc)
			body, err := json.Marshal(doc)
			if err != nil {
				t.Fatalf("marshal doc: %v", err)
			}

			rec := doRequest(t, h, http.MethodPut, "/api/v1/settings", body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400: %s", rec.Code, rec.Body.String())
			}
			resp := decodeResponse(t, rec)
			if resp.Error == nil || resp.Error.Code != tt.wantCode {
				t.Errorf("error = %+v, want code %s", resp.Error, tt.wantCode)
			}
			if settings.updated != nil {
				t.Error("rejected update must not reach the store")
			}
		})
	}
}

func TestPutSettings_MalformedBody(t *testing.T) {
	settings := &fakeSettings{doc: testSettingsDoc()}
	h := newTestRouter(&fakeEngine{}, &fakeEvents{}, settings)

	rec := doRequest(t, h, http.MethodPut, "/api/v1/settings", []byte("{not json"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}

	rec = doRequest(t, h, http.MethodPut, "/api/v1/settings", []byte(`{"unknown_field": 1}`))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown field: status = %d, want 400", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestRouter(&fakeEngine{}, &fakeEvents{}, &fakeSettings{doc: testSettingsDoc()})

	rec := doRequest(t, h, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "curatarr_") {
		t.Error("expected curatarr metrics in exposition output")
	}
}
