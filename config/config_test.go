package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flat-stats/models"
)

var fixedNow = time.Date(2024, 3, 15, 18, 30, 0, 0, time.UTC)

func TestParseQueryDate(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"now()", "2024-03-15"},
		{"now()-1", "2024-03-14"},
		{" 2023-12-31 ", "2023-12-31"},
	}

	for _, tt := range tests {
		got, err := ParseQueryDate(tt.raw, fixedNow)
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, got.Format(models.DateLayout), tt.raw)
	}
}

func TestParseDisplayDateSentinelsShowToday(t *testing.T) {
	for _, raw := range []string{"now()", "now()-1"} {
		got, err := ParseDisplayDate(raw, fixedNow)
		require.NoError(t, err)
		assert.Equal(t, "2024-03-15", got.Format(models.DateLayout), raw)
	}
}

func TestParseQueryDateRejectsGarbage(t *testing.T) {
	_, err := ParseQueryDate("yesterday", fixedNow)
	assert.ErrorIs(t, err, ErrConfigMismatch)
}

func TestParseScopes(t *testing.T) {
	scopes, err := ParseScopes(" 1, 2 ,3", "North, South,East ")
	require.NoError(t, err)
	assert.Equal(t, []models.Scope{
		{ID: "1", Title: "North"},
		{ID: "2", Title: "South"},
		{ID: "3", Title: "East"},
	}, scopes)
}

func TestParseScopesMismatch(t *testing.T) {
	_, err := ParseScopes("1,2", "North")
	assert.ErrorIs(t, err, ErrConfigMismatch)
}

func TestFromEnv(t *testing.T) {
	t.Setenv("CURRENT_DATE", "2024-01-10")
	t.Setenv("SCOPE_IDS", "7,9")
	t.Setenv("SCOPE_TITLES", "Center,Riverside")
	t.Setenv("LOAD_FROM_DUMP", "1")
	t.Setenv("OLD_WINDOW_DAYS", "14")

	cfg, err := FromEnv(fixedNow)
	require.NoError(t, err)

	assert.Equal(t, "2024-01-10", cfg.QueryDate.Format(models.DateLayout))
	assert.True(t, cfg.LoadFromDump)
	assert.Equal(t, 14, cfg.OldWindowDays)
	assert.Equal(t, DriverPostgres, cfg.SourceDriver)
	assert.Equal(t, models.Scope{ID: "7,9", Title: "Center, Riverside"}, cfg.CombinedScope())
	assert.Contains(t, cfg.DSN(), "sslmode=disable")
}

func TestFromEnvMismatchIsFatal(t *testing.T) {
	t.Setenv("SCOPE_IDS", "7,9")
	t.Setenv("SCOPE_TITLES", "Center")

	_, err := FromEnv(fixedNow)
	assert.ErrorIs(t, err, ErrConfigMismatch)
}

func TestDumpModes(t *testing.T) {
	tests := []struct {
		name      string
		cfg       Config
		seeds     bool
		dumpsLive bool
	}{
		{"postgres live", Config{SourceDriver: DriverPostgres}, false, true},
		{"sqlite live", Config{SourceDriver: DriverSQLite}, false, true},
		{"sqlite seeded", Config{SourceDriver: DriverSQLite, SeedFromDump: true}, true, false},
		{"seed ignored for postgres", Config{SourceDriver: DriverPostgres, SeedFromDump: true}, false, true},
		{"from dump", Config{SourceDriver: DriverSQLite, SeedFromDump: true, LoadFromDump: true}, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.seeds, tt.cfg.SeedsFromDump())
			assert.Equal(t, tt.dumpsLive, tt.cfg.DumpsLiveLoads())
		})
	}
}
