package services

import (
	"fmt"
	"time"

	"flat-stats/models"
	"flat-stats/utils"
)

// DatedSnapshot is a Snapshot that knows its comparison dates.
type DatedSnapshot interface {
	Snapshot
	CurrentDate() time.Time
	PreviousDate() time.Time
}

// ReportService assembles the four stat reports of a scope from a loaded
// snapshot.
type ReportService struct {
	logger        *utils.Logger
	order         *Orderer
	oldWindowDays int
}

// NewReportService creates a ReportService. oldWindowDays is the length of
// the persistence window that defines the old cohort.
func NewReportService(logger *utils.Logger, order *Orderer, oldWindowDays int) *ReportService {
	return &ReportService{logger: logger, order: order, oldWindowDays: oldWindowDays}
}

// BuildScope builds every stat report of one scope.
func (s *ReportService) BuildScope(snap DatedSnapshot, scope models.Scope) (*models.ScopeReport, error) {
	cur, prev := snap.CurrentDate(), snap.PreviousDate()
	recon := NewReconciler(Aggregator{CurrentDate: cur, PreviousDate: prev}, s.order)
	cohorts := NewCohortExtractor(snap)

	out := &models.ScopeReport{
		Scope:        scope,
		CurrentDate:  cur,
		PreviousDate: prev,
		Stats:        make(map[models.StatType]*models.StatReport, len(models.StatTypes)),
	}

	for _, t := range models.StatTypes {
		current, comparison, err := s.cohorts(cohorts, t, cur, prev)
		if err != nil {
			return nil, err
		}
		sr, err := s.buildStat(recon, t, current, comparison)
		if err != nil {
			return nil, fmt.Errorf("scope %s: %s: %w", scope.Title, t, err)
		}
		out.Stats[t] = sr

		s.logger.Debug("[report] %s/%s: %d current vs %d comparison rows, %d complex/room groups",
			scope.Title, t, len(current), len(comparison), len(sr.ByComplexRoom))
	}
	return out, nil
}

// cohorts picks the current and comparison subsets of a stat type.
func (s *ReportService) cohorts(c *CohortExtractor, t models.StatType, cur, prev time.Time) (current, comparison []*models.Listing, err error) {
	w := s.oldWindowDays
	switch t {
	case models.StatAll:
		return c.All(cur), c.All(prev), nil
	case models.StatNew:
		return c.New(prev, cur), c.Old(cur.AddDate(0, 0, -w), cur), nil
	case models.StatOld:
		return c.Old(cur.AddDate(0, 0, -w), cur), c.Old(prev.AddDate(0, 0, -w), prev), nil
	case models.StatSold:
		return c.Sold(prev, cur), c.Old(cur.AddDate(0, 0, -w), cur), nil
	}
	return nil, nil, fmt.Errorf("%w: %q", models.ErrUnknownStatType, t)
}

func (s *ReportService) buildStat(recon *Reconciler, t models.StatType, current, comparison []*models.Listing) (*models.StatReport, error) {
	sr := &models.StatReport{Type: t, Summary: recon.Summary(current, comparison)}

	var err error
	if sr.ByRoomType, err = recon.Reconcile(current, comparison, models.DimRoomType); err != nil {
		return nil, err
	}
	if sr.ByComplex, err = recon.Reconcile(current, comparison, models.DimComplex); err != nil {
		return nil, err
	}
	if sr.ByComplexRoom, err = recon.Reconcile(current, comparison, models.DimComplex, models.DimRoomType); err != nil {
		return nil, err
	}

	sr.ComplexSections = sections(sr.ByComplexRoom, models.DimComplex, nil)
	sr.RoomSections = sections(sr.ByComplexRoom, models.DimRoomType, s.order.SortRoomTypes)
	return sr, nil
}

// sections pivots an ordered compound grouping on one of its dimensions.
// Rows inside a section keep the input order; sortTitles, when set, orders
// the sections themselves, otherwise they follow first appearance.
func sections(stats []models.GroupStat, on models.Dimension, sortTitles func([]string)) []models.Section {
	var titles []string
	rows := make(map[string][]models.GroupStat)
	for _, st := range stats {
		v, ok := st.Value(on)
		if !ok {
			continue
		}
		if _, seen := rows[v]; !seen {
			titles = append(titles, v)
		}
		rows[v] = append(rows[v], st)
	}
	if sortTitles != nil {
		sortTitles(titles)
	}

	out := make([]models.Section, 0, len(titles))
	for _, title := range titles {
		out = append(out, models.Section{Title: title, Stats: rows[title]})
	}
	return out
}
