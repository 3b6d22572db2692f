package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flat-stats/models"
	"flat-stats/services"
	"flat-stats/storage"
	"flat-stats/utils"
)

var (
	today     = time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	yesterday = today.AddDate(0, 0, -1)
)

func scopeReport(id, title string) *models.ScopeReport {
	summary := &models.GroupStat{
		Current:    models.Metrics{AvgPrice: 5.2, AvgPricePerArea: 130, AvgTotalArea: 40, Count: 2},
		Previous:   models.Metrics{AvgPrice: 5, AvgPricePerArea: 125, AvgTotalArea: 40, Count: 1},
		CountDelta: 1,
	}
	stats := make(map[models.StatType]*models.StatReport)
	for _, t := range models.StatTypes {
		stats[t] = &models.StatReport{Type: t, Summary: summary}
	}
	return &models.ScopeReport{
		Scope:        models.Scope{ID: id, Title: title},
		CurrentDate:  today,
		PreviousDate: yesterday,
		Stats:        stats,
	}
}

func setupTestServer(t *testing.T, withReport bool) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cache := storage.NewMemoryReportCache()
	if withReport {
		require.NoError(t, cache.Save(context.Background(), &models.Report{
			RunID:    uuid.New(),
			AsOf:     today,
			Combined: scopeReport("1,2", "North, South"),
			Scopes:   []*models.ScopeReport{scopeReport("1", "North"), scopeReport("2", "South")},
		}))
	}
	return New(cache, services.NewRenderer(), utils.NewNopLogger())
}

func get(s *Server, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	w := get(setupTestServer(t, false), "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestNoReportIsUnavailable(t *testing.T) {
	s := setupTestServer(t, false)
	for _, path := range []string{"/api/report", "/api/scopes", "/api/scopes/North/all"} {
		assert.Equal(t, http.StatusServiceUnavailable, get(s, path).Code, path)
	}
}

func TestScopes(t *testing.T) {
	w := get(setupTestServer(t, true), "/api/scopes")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Scopes []models.Scope `json:"scopes"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, []models.Scope{
		{ID: "1,2", Title: "North, South"},
		{ID: "1", Title: "North"},
		{ID: "2", Title: "South"},
	}, body.Scopes)
}

func TestStatLookup(t *testing.T) {
	s := setupTestServer(t, true)

	tests := []struct {
		path string
		code int
	}{
		{"/api/scopes/North/all", http.StatusOK},
		{"/api/scopes/2/sold", http.StatusOK},
		{"/api/scopes/combined/new", http.StatusOK},
		{"/api/scopes/North/sell_stat", http.StatusOK},
		{"/api/scopes/North/weekly", http.StatusBadRequest},
		{"/api/scopes/West/all", http.StatusNotFound},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.code, get(s, tt.path).Code, tt.path)
	}

	w := get(s, "/api/scopes/North/old")
	var stat models.StatReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stat))
	assert.Equal(t, models.StatOld, stat.Type)
	assert.Equal(t, "2024-03-15", w.Header().Get("X-Current-Date"))
}

func TestStatText(t *testing.T) {
	s := setupTestServer(t, true)

	w := get(s, "/api/scopes/North/all/text")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "The general summary for North from 2024-03-14 to 2024-03-15:")
	assert.Contains(t, w.Body.String(), "Number: ⬆️ +1 fl. (1 -> 2 fl.)")

	w = get(s, "/api/scopes/North/all/text?view=changes")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "📤 The changes in North")

	assert.Equal(t, http.StatusBadRequest, get(s, "/api/scopes/North/all/text?view=chart").Code)
}
