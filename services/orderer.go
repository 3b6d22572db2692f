package services

import (
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"flat-stats/models"
)

// StudioLabels are the room type labels of a studio flat. They sort as room
// count 0.
var StudioLabels = []string{"Студия", "Studio"}

// IsStudio reports whether a room type label denotes a studio.
func IsStudio(roomType string) bool {
	for _, s := range StudioLabels {
		if strings.EqualFold(strings.TrimSpace(roomType), s) {
			return true
		}
	}
	return false
}

// Orderer sorts group stats by complex title, then by room type, with
// numeric-aware room counts.
type Orderer struct {
	titles language.Tag
}

// NewOrderer creates an Orderer collating complex titles by the given language.
func NewOrderer(titles language.Tag) *Orderer {
	return &Orderer{titles: titles}
}

// comparer bundles collators for one sort; collators are not safe for
// concurrent use.
type comparer struct {
	titles *collate.Collator
	rooms  *collate.Collator
}

func (o *Orderer) comparer() comparer {
	return comparer{
		titles: collate.New(o.titles),
		rooms:  collate.New(language.Und, collate.Numeric),
	}
}

func (c comparer) complex(a, b string) int {
	if r := c.titles.CompareString(a, b); r != 0 {
		return r
	}
	return strings.Compare(a, b)
}

func (c comparer) room(a, b string) int {
	ka, kb := roomSortKey(a), roomSortKey(b)
	if r := c.rooms.CompareString(ka, kb); r != 0 {
		return r
	}
	return strings.Compare(a, b)
}

func roomSortKey(roomType string) string {
	if IsStudio(roomType) {
		return "0"
	}
	return roomType
}

// Order returns a sorted copy of stats. Stats without group keys keep their
// order. The input is never modified.
func (o *Orderer) Order(stats []models.GroupStat) []models.GroupStat {
	out := make([]models.GroupStat, len(stats))
	copy(out, stats)
	if len(out) < 2 {
		return out
	}

	c := o.comparer()
	sort.SliceStable(out, func(i, j int) bool {
		return c.compare(out[i], out[j]) < 0
	})
	return out
}

func (c comparer) compare(a, b models.GroupStat) int {
	ac, aHas := a.Value(models.DimComplex)
	bc, bHas := b.Value(models.DimComplex)
	if aHas && bHas {
		if r := c.complex(ac, bc); r != 0 {
			return r
		}
	}
	ar, aHas := a.Value(models.DimRoomType)
	br, bHas := b.Value(models.DimRoomType)
	if aHas && bHas {
		return c.room(ar, br)
	}
	return 0
}

// SortRoomTypes sorts room type labels in report order.
func (o *Orderer) SortRoomTypes(labels []string) {
	c := o.comparer()
	sort.SliceStable(labels, func(i, j int) bool {
		return c.room(labels[i], labels[j]) < 0
	})
}
