package storage

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"flat-stats/models"
	"flat-stats/utils"
)

var dumpHeader = []string{
	"id", "room_type_title", "total_area", "effective_price", "observation_date", "complex_title",
}

// CSVDump stores loaded datasets as one CSV file per scope and serves them
// back as a ListingSource. It is safe for concurrent use.
type CSVDump struct {
	mu     sync.Mutex
	dir    string
	logger *utils.Logger
}

// NewCSVDump creates a CSVDump rooted at dir.
func NewCSVDump(dir string, logger *utils.Logger) *CSVDump {
	return &CSVDump{dir: dir, logger: logger}
}

// Path returns the dump file of a scope id set.
func (c *CSVDump) Path(scopeIDs []string) string {
	return filepath.Join(c.dir, strings.Join(scopeIDs, ",")+".csv")
}

// Dump writes listings to the dump file of scopeIDs, replacing any previous
// dump. Intermediate directories are created automatically.
func (c *CSVDump) Dump(scopeIDs []string, listings []*models.Listing) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	path := c.Path(scopeIDs)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("csv: create file %q: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(dumpHeader); err != nil {
		return fmt.Errorf("csv: write header: %w", err)
	}
	for _, l := range listings {
		row := []string{
			l.ID,
			l.RoomType,
			strconv.FormatFloat(l.TotalArea, 'f', -1, 64),
			strconv.FormatFloat(l.Price, 'f', -1, 64),
			l.ObservationDate.Format(models.DateLayout),
			l.ComplexTitle,
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("csv: flush: %w", err)
	}
	c.logger.Debug("[csv] Dumped %d listings to %s", len(listings), path)
	return nil
}

// Fetch reads the dump of q.ScopeIDs and returns the rows dated within
// [q.From, q.To]. Without a dump for the whole id set, the dumps of the
// single ids are read instead. A missing dump yields no rows.
func (c *CSVDump) Fetch(ctx context.Context, q Query) ([]*models.RawListing, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	from, to := q.From.Format(models.DateLayout), q.To.Format(models.DateLayout)
	rows, found, err := c.read(ctx, c.Path(q.ScopeIDs), from, to)
	if err != nil || found || len(q.ScopeIDs) < 2 {
		return rows, err
	}

	for _, id := range q.ScopeIDs {
		part, _, err := c.read(ctx, c.Path([]string{id}), from, to)
		if err != nil {
			return nil, err
		}
		rows = append(rows, part...)
	}
	return rows, nil
}

func (c *CSVDump) read(ctx context.Context, path, from, to string) ([]*models.RawListing, bool, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		c.logger.Warn("[csv] No dump at %s", path)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("csv: open %q: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(dumpHeader)
	if _, err := r.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, true, nil
		}
		return nil, true, fmt.Errorf("csv: read header: %w", err)
	}

	var out []*models.RawListing
	for {
		if err := ctx.Err(); err != nil {
			return nil, true, err
		}
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, true, fmt.Errorf("csv: read %q: %w", path, err)
		}

		date := rec[4]
		if len(date) > len(models.DateLayout) {
			date = date[:len(models.DateLayout)]
		}
		if date < from || date > to {
			continue
		}
		out = append(out, &models.RawListing{
			ID:              rec[0],
			RoomType:        rec[1],
			TotalArea:       rec[2],
			Price:           rec[3],
			DiscountPrice:   "0",
			ObservationDate: rec[4],
			ComplexTitle:    rec[5],
		})
	}
	return out, true, nil
}
