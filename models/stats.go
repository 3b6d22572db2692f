package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrUnknownStatType is returned when a caller asks for a stat type outside
// all/new/old/sold.
var ErrUnknownStatType = errors.New("unknown stat type")

// StatType names one cohort comparison of a report.
type StatType string

const (
	StatAll  StatType = "all"
	StatNew  StatType = "new"
	StatOld  StatType = "old"
	StatSold StatType = "sold"
)

// StatTypes lists every stat type in report order.
var StatTypes = []StatType{StatAll, StatNew, StatOld, StatSold}

// ParseStatType accepts the canonical names plus the legacy menu keys.
func ParseStatType(s string) (StatType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "all", "summary", "summary_stat":
		return StatAll, nil
	case "new", "new_stat":
		return StatNew, nil
	case "old", "old_stat":
		return StatOld, nil
	case "sold", "sell", "sell_stat":
		return StatSold, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatType, s)
}

// OnlyToday reports whether the stat type compares a one-day cohort against
// the persistent cohort rather than the same cohort a day earlier.
func (t StatType) OnlyToday() bool {
	return t == StatNew || t == StatSold
}

// Dimension is a listing attribute usable as a grouping key.
type Dimension string

const (
	DimRoomType Dimension = "room_type"
	DimComplex  Dimension = "complex_title"
)

// GroupKey is the value tuple of up to two dimensions. Unused slots are empty,
// so keys of the same arity compare structurally.
type GroupKey [2]string

// Metrics is the numeric summary of one subset.
type Metrics struct {
	AvgTotalArea    float64 `json:"avg_total_area"`
	AvgPrice        float64 `json:"avg_price"`
	AvgPricePerArea float64 `json:"avg_price_per_area"`
	Count           int     `json:"count"`
}

// GroupStat compares the current and the comparison subset of one group.
type GroupStat struct {
	Dims []Dimension `json:"dims,omitempty"`
	Key  GroupKey    `json:"key"`

	Current  Metrics `json:"current"`
	Previous Metrics `json:"previous"`

	ChangeAvgTotalArea    float64 `json:"change_avg_total_area"`
	ChangeAvgPrice        float64 `json:"change_avg_price"`
	ChangeAvgPricePerArea float64 `json:"change_avg_price_per_area"`

	CountDelta       int `json:"count_delta"`
	CountAppeared    int `json:"count_appeared"`
	CountDisappeared int `json:"count_disappeared"`

	CurrentDate  time.Time `json:"current_date"`
	PreviousDate time.Time `json:"previous_date"`

	RoomType     string `json:"room_type,omitempty"`
	ComplexTitle string `json:"complex_title,omitempty"`
}

// Value returns the key value of a dimension and whether the group is keyed by it.
func (g GroupStat) Value(dim Dimension) (string, bool) {
	for i, d := range g.Dims {
		if d == dim {
			return g.Key[i], true
		}
	}
	return "", false
}

// Section is one block of a pivoted compound grouping, e.g. one complex with
// its room types.
type Section struct {
	Title string      `json:"title"`
	Stats []GroupStat `json:"stats"`
}

// StatReport holds every grouping of one stat type.
type StatReport struct {
	Type    StatType   `json:"type"`
	Summary *GroupStat `json:"summary,omitempty"`

	ByRoomType    []GroupStat `json:"by_room_type"`
	ByComplex     []GroupStat `json:"by_complex"`
	ByComplexRoom []GroupStat `json:"by_complex_room"`

	ComplexSections []Section `json:"complex_sections"`
	RoomSections    []Section `json:"room_sections"`
}

// ScopeReport holds the four stat reports of one scope.
type ScopeReport struct {
	Scope        Scope                    `json:"scope"`
	CurrentDate  time.Time                `json:"current_date"`
	PreviousDate time.Time                `json:"previous_date"`
	Stats        map[StatType]*StatReport `json:"stats"`
}

// Stat looks up the report of one stat type.
func (r *ScopeReport) Stat(t StatType) (*StatReport, error) {
	sr, ok := r.Stats[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStatType, t)
	}
	return sr, nil
}

// Report is the result of one generation run.
type Report struct {
	RunID       uuid.UUID      `json:"run_id"`
	GeneratedAt time.Time      `json:"generated_at"`
	AsOf        time.Time      `json:"as_of"`
	Combined    *ScopeReport   `json:"combined,omitempty"`
	Scopes      []*ScopeReport `json:"scopes"`
}

// FindScope returns the scope report with the given id or title.
func (r *Report) FindScope(idOrTitle string) (*ScopeReport, bool) {
	for _, sr := range r.Scopes {
		if sr.Scope.ID == idOrTitle || sr.Scope.Title == idOrTitle {
			return sr, true
		}
	}
	return nil, false
}
