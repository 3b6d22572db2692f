package services

import (
	"errors"
	"fmt"

	"flat-stats/models"
)

// ErrTooManyGroupKeys is returned for groupings over more than two dimensions.
var ErrTooManyGroupKeys = errors.New("at most two group keys are supported")

// keyFuncs extracts a dimension value from a listing.
var keyFuncs = map[models.Dimension]func(*models.Listing) string{
	models.DimRoomType: func(l *models.Listing) string { return l.RoomType },
	models.DimComplex:  func(l *models.Listing) string { return l.ComplexTitle },
}

// grouping is a partition of a dataset by key, remembering first-seen key order.
type grouping struct {
	keys   []models.GroupKey
	groups map[models.GroupKey][]*models.Listing
}

func (g grouping) has(k models.GroupKey) bool {
	_, ok := g.groups[k]
	return ok
}

func groupBy(rows []*models.Listing, extractors []func(*models.Listing) string) grouping {
	g := grouping{groups: make(map[models.GroupKey][]*models.Listing)}
	for _, l := range rows {
		var k models.GroupKey
		for i, extract := range extractors {
			k[i] = extract(l)
		}
		if !g.has(k) {
			g.keys = append(g.keys, k)
		}
		g.groups[k] = append(g.groups[k], l)
	}
	return g
}

// Reconciler groups two datasets by the same dimensions and aggregates each
// group present on either side.
type Reconciler struct {
	agg   Aggregator
	order *Orderer
}

// NewReconciler creates a Reconciler.
func NewReconciler(agg Aggregator, order *Orderer) *Reconciler {
	return &Reconciler{agg: agg, order: order}
}

// Reconcile returns one GroupStat per key found in current or comparison,
// ordered by the Orderer. Keys present on one side only are aggregated
// against an empty subset. Zero dims form a single implicit group.
func (r *Reconciler) Reconcile(current, comparison []*models.Listing, dims ...models.Dimension) ([]models.GroupStat, error) {
	if len(dims) > len(models.GroupKey{}) {
		return nil, fmt.Errorf("reconcile %v: %w", dims, ErrTooManyGroupKeys)
	}
	extractors := make([]func(*models.Listing) string, len(dims))
	for i, d := range dims {
		extract, ok := keyFuncs[d]
		if !ok {
			return nil, fmt.Errorf("reconcile: unknown dimension %q", d)
		}
		extractors[i] = extract
	}

	cur := groupBy(current, extractors)
	cmp := groupBy(comparison, extractors)

	var common, onlyCur, onlyCmp []models.GroupKey
	for _, k := range cur.keys {
		if cmp.has(k) {
			common = append(common, k)
		} else {
			onlyCur = append(onlyCur, k)
		}
	}
	for _, k := range cmp.keys {
		if !cur.has(k) {
			onlyCmp = append(onlyCmp, k)
		}
	}

	out := make([]models.GroupStat, 0, len(common)+len(onlyCur)+len(onlyCmp))
	emit := func(k models.GroupKey, c, p []*models.Listing) {
		stat, ok := r.agg.Aggregate(c, p)
		if !ok {
			return
		}
		stat.Dims = append([]models.Dimension(nil), dims...)
		stat.Key = k
		stat.RoomType, _ = stat.Value(models.DimRoomType)
		stat.ComplexTitle, _ = stat.Value(models.DimComplex)
		out = append(out, stat)
	}

	for _, k := range common {
		emit(k, cur.groups[k], cmp.groups[k])
	}
	for _, k := range onlyCur {
		emit(k, cur.groups[k], nil)
	}
	for _, k := range onlyCmp {
		emit(k, nil, cmp.groups[k])
	}

	return r.order.Order(out), nil
}

// Summary aggregates both datasets as one group. nil means both are empty.
func (r *Reconciler) Summary(current, comparison []*models.Listing) *models.GroupStat {
	stat, ok := r.agg.Aggregate(current, comparison)
	if !ok {
		return nil
	}
	return &stat
}
