package services

import (
	"time"

	"flat-stats/models"
	"flat-stats/snapshot"
)

// Snapshot is the read-only view of a loaded dataset the cohorts work on.
type Snapshot interface {
	Day(d time.Time) []*models.Listing
	Slice(from, to time.Time) []*models.Listing
}

// CohortExtractor derives the all/new/old/sold cohorts of a snapshot.
type CohortExtractor struct {
	snap Snapshot
}

// NewCohortExtractor creates a CohortExtractor over snap.
func NewCohortExtractor(snap Snapshot) *CohortExtractor {
	return &CohortExtractor{snap: snap}
}

// All returns every listing observed on d.
func (c *CohortExtractor) All(d time.Time) []*models.Listing {
	return c.snap.Day(d)
}

// Old returns the listings of to whose id was observed on every day of
// [from, to], one row per id.
func (c *CohortExtractor) Old(from, to time.Time) []*models.Listing {
	days := snapshot.DaysInclusive(from, to)
	if days == 0 {
		return nil
	}

	seenOn := make(map[string]map[time.Time]struct{})
	for _, l := range c.snap.Slice(from, to) {
		d := snapshot.Day(l.ObservationDate)
		if seenOn[l.ID] == nil {
			seenOn[l.ID] = make(map[time.Time]struct{})
		}
		seenOn[l.ID][d] = struct{}{}
	}

	var out []*models.Listing
	kept := make(map[string]struct{})
	for _, l := range c.snap.Day(to) {
		if len(seenOn[l.ID]) != days {
			continue
		}
		if _, dup := kept[l.ID]; dup {
			continue
		}
		kept[l.ID] = struct{}{}
		out = append(out, l)
	}
	return out
}

// New returns the listings that appeared on some day d of (from, to] while
// absent on d-1. Each id is kept once, from the first day it appeared.
func (c *CohortExtractor) New(from, to time.Time) []*models.Listing {
	return c.dayDiffs(from, to, func(prev, cur []*models.Listing) []*models.Listing {
		return diffByID(cur, prev)
	})
}

// Sold returns the listings present on some day d-1 of [from, to) and gone on
// d. Each id is kept once, from the last day it was seen.
func (c *CohortExtractor) Sold(from, to time.Time) []*models.Listing {
	return c.dayDiffs(from, to, func(prev, cur []*models.Listing) []*models.Listing {
		return diffByID(prev, cur)
	})
}

// dayDiffs walks every consecutive day pair inside [from, to]. A single-day
// range has no pair and yields an empty cohort.
func (c *CohortExtractor) dayDiffs(from, to time.Time, diff func(prev, cur []*models.Listing) []*models.Listing) []*models.Listing {
	var out []*models.Listing
	kept := make(map[string]struct{})

	prev := c.snap.Day(from)
	for d := snapshot.Day(from).AddDate(0, 0, 1); !d.After(snapshot.Day(to)); d = d.AddDate(0, 0, 1) {
		cur := c.snap.Day(d)
		for _, l := range diff(prev, cur) {
			if _, dup := kept[l.ID]; dup {
				continue
			}
			kept[l.ID] = struct{}{}
			out = append(out, l)
		}
		prev = cur
	}
	return out
}

// diffByID returns the rows of a whose id is absent from b.
func diffByID(a, b []*models.Listing) []*models.Listing {
	inB := idSet(b)
	var out []*models.Listing
	for _, l := range a {
		if _, ok := inB[l.ID]; !ok {
			out = append(out, l)
		}
	}
	return out
}

func idSet(rows []*models.Listing) map[string]struct{} {
	set := make(map[string]struct{}, len(rows))
	for _, l := range rows {
		set[l.ID] = struct{}{}
	}
	return set
}

// countMissing returns |ids(a) \ ids(b)|.
func countMissing(a, b []*models.Listing) int {
	inB := idSet(b)
	n := 0
	for id := range idSet(a) {
		if _, ok := inB[id]; !ok {
			n++
		}
	}
	return n
}
