package models

import (
	"strings"
	"time"
)

// DateLayout is the on-disk and on-wire representation of an observation date.
const DateLayout = "2006-01-02"

// RawListing holds one source row as delivered by a ListingSource.
// Values are kept as text; the cleaner parses and validates them.
type RawListing struct {
	ID              string
	RoomType        string
	TotalArea       string
	Price           string
	DiscountPrice   string
	ObservationDate string
	ComplexTitle    string
}

// Listing is one cleaned daily observation of a flat.
// Price is already the effective price (discount when present, else list).
type Listing struct {
	ID              string
	RoomType        string
	TotalArea       float64
	Price           float64
	ObservationDate time.Time
	ComplexTitle    string
}

// Scope is one reporting area: a set of source ids shown under one title.
type Scope struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// SourceIDs splits a possibly combined scope id ("1,2,3") into source ids.
func (s Scope) SourceIDs() []string {
	ids := make([]string, 0, 1)
	for _, part := range strings.Split(s.ID, ",") {
		if part = strings.TrimSpace(part); part != "" {
			ids = append(ids, part)
		}
	}
	return ids
}
