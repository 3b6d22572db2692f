// Package snapshot holds the multi-day listing dataset of one scope and
// serves read-only date slices of it.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"flat-stats/models"
	"flat-stats/storage"
	"flat-stats/utils"
)

// ErrDataUnavailable is returned when a source yields no usable rows.
var ErrDataUnavailable = errors.New("data unavailable")

// Cleaner turns source rows into validated listings.
type Cleaner interface {
	Clean(raw []*models.RawListing) []*models.Listing
}

// Option configures a Store.
type Option func(*Store)

// WithCurrentDate pins the current date instead of deriving it from the data.
func WithCurrentDate(d time.Time) Option {
	return func(s *Store) { s.pinned = Day(d) }
}

// Store owns the loaded listings. Listings are never mutated after Load;
// every accessor returns a fresh slice.
type Store struct {
	cleaner Cleaner
	logger  *utils.Logger
	pinned  time.Time

	listings []*models.Listing
	byDate   map[string][]*models.Listing
	current  time.Time
	previous time.Time
}

// New creates an empty Store.
func New(cleaner Cleaner, logger *utils.Logger, opts ...Option) *Store {
	s := &Store{cleaner: cleaner, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load fetches, cleans and indexes the listings selected by q.
func (s *Store) Load(ctx context.Context, src storage.ListingSource, q storage.Query) error {
	raw, err := src.Fetch(ctx, q)
	if err != nil {
		return fmt.Errorf("snapshot: fetch: %w", err)
	}
	s.logger.Debug("[snapshot] Fetched %d raw rows for scopes %v (%s..%s)",
		len(raw), q.ScopeIDs, q.From.Format(models.DateLayout), q.To.Format(models.DateLayout))

	return s.Set(s.cleaner.Clean(raw))
}

// Set indexes already cleaned listings.
func (s *Store) Set(listings []*models.Listing) error {
	if len(listings) == 0 {
		return fmt.Errorf("snapshot: %w: no listings loaded", ErrDataUnavailable)
	}

	sorted := make([]*models.Listing, len(listings))
	copy(sorted, listings)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ObservationDate.Before(sorted[j].ObservationDate)
	})

	byDate := make(map[string][]*models.Listing)
	var maxDate time.Time
	for _, l := range sorted {
		key := l.ObservationDate.Format(models.DateLayout)
		byDate[key] = append(byDate[key], l)
		if l.ObservationDate.After(maxDate) {
			maxDate = l.ObservationDate
		}
	}

	s.listings = sorted
	s.byDate = byDate
	s.current = Day(maxDate)
	if !s.pinned.IsZero() {
		s.current = s.pinned
	}
	s.previous = s.current.AddDate(0, 0, -1)

	s.logger.Debug("[snapshot] %d listings over %d days, current %s (%d rows), previous %s (%d rows)",
		len(sorted), len(byDate),
		s.current.Format(models.DateLayout), len(s.Day(s.current)),
		s.previous.Format(models.DateLayout), len(s.Day(s.previous)))
	return nil
}

// CurrentDate is the "today" of every comparison.
func (s *Store) CurrentDate() time.Time { return s.current }

// PreviousDate is CurrentDate minus one day.
func (s *Store) PreviousDate() time.Time { return s.previous }

// Len returns the number of loaded listings.
func (s *Store) Len() int { return len(s.listings) }

// All returns every loaded listing ordered by observation date.
func (s *Store) All() []*models.Listing {
	out := make([]*models.Listing, len(s.listings))
	copy(out, s.listings)
	return out
}

// Dates returns the observation dates present in the data, ascending.
func (s *Store) Dates() []time.Time {
	out := make([]time.Time, 0, len(s.byDate))
	for key := range s.byDate {
		d, err := time.Parse(models.DateLayout, key)
		if err != nil {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// Day returns the listings observed on d.
func (s *Store) Day(d time.Time) []*models.Listing {
	rows := s.byDate[Day(d).Format(models.DateLayout)]
	out := make([]*models.Listing, len(rows))
	copy(out, rows)
	return out
}

// Slice returns the listings observed within [from, to], ordered by date.
func (s *Store) Slice(from, to time.Time) []*models.Listing {
	var out []*models.Listing
	for d := Day(from); !d.After(Day(to)); d = d.AddDate(0, 0, 1) {
		out = append(out, s.byDate[d.Format(models.DateLayout)]...)
	}
	return out
}

// Day truncates t to its calendar date in UTC.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysInclusive counts the calendar days of [from, to].
func DaysInclusive(from, to time.Time) int {
	if Day(to).Before(Day(from)) {
		return 0
	}
	return int(Day(to).Sub(Day(from)).Hours()/24) + 1
}
