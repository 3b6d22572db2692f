package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flat-stats/models"
)

var (
	today     = time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	yesterday = today.AddDate(0, 0, -1)
	agg       = Aggregator{CurrentDate: today, PreviousDate: yesterday}
)

func flat(id string, price, area float64) *models.Listing {
	return &models.Listing{ID: id, Price: price, TotalArea: area, ObservationDate: today}
}

func TestPercentChange(t *testing.T) {
	tests := []struct {
		name      string
		prev, cur float64
		want      float64
	}{
		{"appeared from zero", 0, 12.5, 100},
		{"legacy minus hundred guard", 40, -100, -100},
		{"both zero", 0, 0, 0},
		{"vanished", 45, 0, -100},
		{"growth", 10, 11, 10},
		{"rounded to one decimal", 3, 4, 33.3},
		{"decline", 174.77, 174.0, -0.4},
		{"negative from zero", 0, -3, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PercentChange(tt.prev, tt.cur))
		})
	}
}

func TestAggregateWeightedPricePerArea(t *testing.T) {
	current := []*models.Listing{flat("a", 300000, 30), flat("b", 500000, 50)}
	comparison := []*models.Listing{flat("c", 200000, 20)}

	stat, ok := agg.Aggregate(current, comparison)
	require.True(t, ok)

	assert.Equal(t, 10.0, stat.Current.AvgPricePerArea)
	assert.Equal(t, 10.0, stat.Previous.AvgPricePerArea)
	assert.Equal(t, 0.0, stat.ChangeAvgPricePerArea)
	assert.Equal(t, 1, stat.CountDelta)
	assert.Equal(t, 2, stat.Current.Count)
	assert.Equal(t, 1, stat.Previous.Count)
	assert.Equal(t, 40.0, stat.Current.AvgTotalArea)
	assert.Equal(t, 0.4, stat.Current.AvgPrice)
	assert.Equal(t, today, stat.CurrentDate)
	assert.Equal(t, yesterday, stat.PreviousDate)
}

func TestAggregateEmptyCurrent(t *testing.T) {
	comparison := []*models.Listing{flat("1", 9000000, 40), flat("2", 11000000, 50)}

	stat, ok := agg.Aggregate(nil, comparison)
	require.True(t, ok)

	assert.Equal(t, models.Metrics{}, stat.Current)
	assert.Equal(t, 45.0, stat.Previous.AvgTotalArea)
	assert.Equal(t, -100.0, stat.ChangeAvgTotalArea)
	assert.Equal(t, -100.0, stat.ChangeAvgPrice)
	assert.Equal(t, -100.0, stat.ChangeAvgPricePerArea)
	assert.Equal(t, -2, stat.CountDelta)
	assert.Equal(t, 2, stat.CountDisappeared)
	assert.Equal(t, 0, stat.CountAppeared)
}

func TestAggregateEmptyComparison(t *testing.T) {
	stat, ok := agg.Aggregate([]*models.Listing{flat("1", 8707362.5, 53.35)}, nil)
	require.True(t, ok)

	assert.Equal(t, models.Metrics{}, stat.Previous)
	assert.Equal(t, 53.4, stat.Current.AvgTotalArea)
	assert.Equal(t, 8.71, stat.Current.AvgPrice)
	assert.Equal(t, 163.21, stat.Current.AvgPricePerArea)
	assert.Equal(t, 100.0, stat.ChangeAvgTotalArea)
	assert.Equal(t, 100.0, stat.ChangeAvgPrice)
	assert.Equal(t, 100.0, stat.ChangeAvgPricePerArea)
}

func TestAggregateBothEmptyIsAbsent(t *testing.T) {
	_, ok := agg.Aggregate(nil, []*models.Listing{})
	assert.False(t, ok)
}

func TestAggregateAppearedDisappeared(t *testing.T) {
	current := []*models.Listing{flat("1", 1, 1), flat("2", 1, 1), flat("3", 1, 1)}
	comparison := []*models.Listing{flat("2", 1, 1), flat("3", 1, 1), flat("4", 1, 1)}

	stat, ok := agg.Aggregate(current, comparison)
	require.True(t, ok)
	assert.Equal(t, 1, stat.CountAppeared)
	assert.Equal(t, 1, stat.CountDisappeared)
	assert.Equal(t, 0, stat.CountDelta)
}

func TestAggregateZeroAreaSumGuard(t *testing.T) {
	// Cleaned data never has zero area; the guard keeps the metric at 0.
	stat, ok := agg.Aggregate([]*models.Listing{flat("1", 1000, 0)}, nil)
	require.True(t, ok)
	assert.Equal(t, 0.0, stat.Current.AvgPricePerArea)
	assert.Equal(t, 0.0, stat.ChangeAvgPricePerArea)
}

func TestRoundHalfAwayFromZero(t *testing.T) {
	tests := []struct {
		v      float64
		places int32
		want   float64
	}{
		{2.675, 2, 2.68},
		{2.5, 0, 3},
		{-2.5, 0, -3},
		{0.125, 2, 0.13},
		{61.34, 1, 61.3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, round(tt.v, tt.places), "round(%v, %d)", tt.v, tt.places)
	}
}
