package services

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"flat-stats/models"
	"flat-stats/utils"
)

// Cleaner transforms RawListings into clean, validated Listings.
type Cleaner struct {
	logger *utils.Logger
}

// NewCleaner creates a Cleaner with the given logger.
func NewCleaner(logger *utils.Logger) *Cleaner {
	return &Cleaner{logger: logger}
}

type listingDay struct {
	id   string
	date time.Time
}

// Clean parses raw rows, resolves the effective price and keeps at most one
// row per (id, observation date).
func (c *Cleaner) Clean(raw []*models.RawListing) []*models.Listing {
	seen := make(map[listingDay]struct{}, len(raw))
	result := make([]*models.Listing, 0, len(raw))

	for _, r := range raw {
		id := strings.TrimSpace(r.ID)
		if id == "" {
			c.logger.Warn("[cleaner] Dropping row with empty id (complex %q)", r.ComplexTitle)
			continue
		}

		date, err := time.Parse(models.DateLayout, firstDate(r.ObservationDate))
		if err != nil {
			c.logger.Warn("[cleaner] Dropping %s: bad observation date %q", id, r.ObservationDate)
			continue
		}

		area := parseNumber(r.TotalArea)
		if area <= 0 {
			c.logger.Warn("[cleaner] Dropping %s on %s: non-positive area %q", id, date.Format(models.DateLayout), r.TotalArea)
			continue
		}

		price := effectivePrice(parseNumber(r.Price), parseNumber(r.DiscountPrice))
		if price < 0 {
			c.logger.Warn("[cleaner] Dropping %s on %s: negative price", id, date.Format(models.DateLayout))
			continue
		}

		key := listingDay{id: id, date: date}
		if _, dup := seen[key]; dup {
			c.logger.Debug("[cleaner] Duplicate observation skipped: %s on %s", id, date.Format(models.DateLayout))
			continue
		}
		seen[key] = struct{}{}

		result = append(result, &models.Listing{
			ID:              id,
			RoomType:        normaliseText(r.RoomType),
			TotalArea:       area,
			Price:           price,
			ObservationDate: date,
			ComplexTitle:    normaliseText(r.ComplexTitle),
		})
	}

	c.logger.Info("[cleaner] Cleaned %d -> %d listings (dropped %d)",
		len(raw), len(result), len(raw)-len(result))
	return result
}

// effectivePrice prefers a non-zero discount price over the list price.
func effectivePrice(price, discount float64) float64 {
	if discount != 0 {
		return discount
	}
	return price
}

// parseNumber reads "8 707 362,50" as well as "8707362.50". Unparsable input
// yields 0.
func parseNumber(raw string) float64 {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, raw)
	cleaned = strings.ReplaceAll(cleaned, ",", ".")
	if cleaned == "" {
		return 0
	}
	val, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return val
}

// firstDate keeps the date part of "2024-01-02", "2024-01-02T00:00:00Z" or
// "2024-01-02 00:00:00".
func firstDate(raw string) string {
	raw = strings.TrimSpace(raw)
	if len(raw) > len(models.DateLayout) {
		return raw[:len(models.DateLayout)]
	}
	return raw
}

// normaliseText strips leading/trailing whitespace and collapses internal whitespace.
func normaliseText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
