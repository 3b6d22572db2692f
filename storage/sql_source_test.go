package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flat-stats/models"
	"flat-stats/utils"
)

func date(s string) time.Time {
	d, _ := time.Parse(models.DateLayout, s)
	return d
}

func newMemorySource(t *testing.T) *SQLSource {
	t.Helper()
	src, err := OpenSQLiteSource(":memory:", utils.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = src.Close() })
	require.NoError(t, src.Migrate(context.Background()))
	return src
}

func TestSQLiteImportAndFetch(t *testing.T) {
	ctx := context.Background()
	src := newMemorySource(t)

	require.NoError(t, src.Import(ctx, "1", []*models.Listing{
		{ID: "a", RoomType: "1", ComplexTitle: "Park", TotalArea: 40.5, Price: 5e6, ObservationDate: date("2024-03-14")},
		{ID: "a", RoomType: "1", ComplexTitle: "Park", TotalArea: 40.5, Price: 5.1e6, ObservationDate: date("2024-03-15")},
		{ID: "b", RoomType: "Студия", ComplexTitle: "Lake", TotalArea: 25, Price: 3e6, ObservationDate: date("2024-03-15")},
	}))
	require.NoError(t, src.Import(ctx, "2", []*models.Listing{
		{ID: "c", RoomType: "2", ComplexTitle: "Hill", TotalArea: 60, Price: 8e6, ObservationDate: date("2024-03-15")},
	}))

	rows, err := src.Fetch(ctx, Query{ScopeIDs: []string{"1"}, From: date("2024-03-15"), To: date("2024-03-15")})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, r := range rows {
		assert.Equal(t, "2024-03-15", r.ObservationDate)
		assert.NotEqual(t, "c", r.ID)
	}

	rows, err = src.Fetch(ctx, Query{ScopeIDs: []string{"1", "2"}, From: date("2024-03-01"), To: date("2024-03-31")})
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "2024-03-14", rows[0].ObservationDate)
	assert.Equal(t, "a", rows[0].ID)
	assert.Equal(t, "Park", rows[0].ComplexTitle)
	assert.Equal(t, "1", rows[0].RoomType)
	assert.Equal(t, "40.5", rows[0].TotalArea)
	assert.Equal(t, "0", rows[0].DiscountPrice)
}

func TestSQLiteFetchNoScopes(t *testing.T) {
	rows, err := newMemorySource(t).Fetch(context.Background(), Query{From: date("2024-03-01"), To: date("2024-03-31")})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestSQLiteImportRejectsNonNumericScope(t *testing.T) {
	err := newMemorySource(t).Import(context.Background(), "north", []*models.Listing{
		{ID: "a", RoomType: "1", ComplexTitle: "Park", TotalArea: 40, Price: 5e6, ObservationDate: date("2024-03-15")},
	})
	assert.Error(t, err)
}

func TestPlaceholders(t *testing.T) {
	pg := NewSQLSource(nil, DialectPostgres, utils.NewNopLogger())
	assert.Equal(t, "$3,$4", pg.placeholders(3, 2))

	lite := NewSQLSource(nil, DialectSQLite, utils.NewNopLogger())
	assert.Equal(t, "?,?,?", lite.placeholders(1, 3))
}

func TestSQLiteImportIsIdempotent(t *testing.T) {
	ctx := context.Background()
	src := newMemorySource(t)
	listings := []*models.Listing{
		{ID: "a", RoomType: "1", ComplexTitle: "Park", TotalArea: 40, Price: 5e6, ObservationDate: date("2024-03-14")},
		{ID: "a", RoomType: "1", ComplexTitle: "Park", TotalArea: 40, Price: 5.1e6, ObservationDate: date("2024-03-15")},
	}

	for i := 0; i < 3; i++ {
		require.NoError(t, src.Import(ctx, "1", listings))
	}

	var stored int
	require.NoError(t, src.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM flat_prices").Scan(&stored))
	assert.Equal(t, 2, stored)

	rows, err := src.Fetch(ctx, Query{ScopeIDs: []string{"1"}, From: date("2024-03-01"), To: date("2024-03-31")})
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}
