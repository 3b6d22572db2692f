package services

import (
	"time"

	"github.com/shopspring/decimal"

	"flat-stats/models"
)

// Aggregator computes the GroupStat of one (current, comparison) pair.
// It carries only the reference dates and holds no state between calls.
type Aggregator struct {
	CurrentDate  time.Time
	PreviousDate time.Time
}

// Aggregate summarises both subsets and their changes. ok is false when both
// subsets are empty: such a group has no row at all.
func (a Aggregator) Aggregate(current, comparison []*models.Listing) (stat models.GroupStat, ok bool) {
	if len(current) == 0 && len(comparison) == 0 {
		return models.GroupStat{}, false
	}

	stat.Current = summarise(current)
	stat.Previous = summarise(comparison)
	stat.CurrentDate = a.CurrentDate
	stat.PreviousDate = a.PreviousDate

	stat.ChangeAvgTotalArea = PercentChange(stat.Previous.AvgTotalArea, stat.Current.AvgTotalArea)
	stat.ChangeAvgPrice = PercentChange(stat.Previous.AvgPrice, stat.Current.AvgPrice)
	stat.ChangeAvgPricePerArea = PercentChange(stat.Previous.AvgPricePerArea, stat.Current.AvgPricePerArea)

	stat.CountDelta = stat.Current.Count - stat.Previous.Count
	stat.CountAppeared = countMissing(current, comparison)
	stat.CountDisappeared = countMissing(comparison, current)
	return stat, true
}

// summarise returns zero metrics for an empty subset. Area is averaged in m²
// (1 decimal), price in millions (2 decimals), and price per m² is the
// area-weighted average in thousands (2 decimals).
func summarise(rows []*models.Listing) models.Metrics {
	m := models.Metrics{Count: len(rows)}
	if len(rows) == 0 {
		return m
	}

	var sumArea, sumPrice float64
	for _, l := range rows {
		sumArea += l.TotalArea
		sumPrice += l.Price
	}
	n := float64(len(rows))

	m.AvgTotalArea = round(sumArea/n, 1)
	m.AvgPrice = round(sumPrice/n/1e6, 2)
	if sumArea != 0 {
		m.AvgPricePerArea = round(sumPrice/sumArea/1e3, 2)
	}
	return m
}

// PercentChange is the relative change from prev to cur in percent, rounded
// to one decimal.
func PercentChange(prev, cur float64) float64 {
	if prev == 0 && cur > 0 {
		return 100
	}
	// Only reachable for signed inputs such as count deltas.
	if prev > 0 && cur == -100 {
		return -100
	}
	if prev == 0 && cur == 0 {
		return 0
	}
	if prev == 0 {
		// cur < 0: no finite ratio exists.
		return 0
	}
	return round(100*(cur-prev)/prev, 1)
}

func round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
