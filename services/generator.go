package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"flat-stats/config"
	"flat-stats/models"
	"flat-stats/snapshot"
	"flat-stats/storage"
	"flat-stats/utils"
)

// ErrNoScopes is returned when a run has nothing to report on.
var ErrNoScopes = errors.New("no scopes configured")

// Generator runs one full report generation: load every scope, build its
// stat reports, dump and cache the result.
type Generator struct {
	cfg     *config.Config
	source  storage.ListingSource
	dumper  storage.ListingDumper
	cache   storage.ReportCache
	cleaner *Cleaner
	reports *ReportService
	logger  *utils.Logger
	now     func() time.Time
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithDumper dumps every live-loaded dataset through d.
func WithDumper(d storage.ListingDumper) GeneratorOption {
	return func(g *Generator) { g.dumper = d }
}

// WithCache saves each generated report to c.
func WithCache(c storage.ReportCache) GeneratorOption {
	return func(g *Generator) { g.cache = c }
}

// WithClock replaces time.Now for GeneratedAt stamps.
func WithClock(now func() time.Time) GeneratorOption {
	return func(g *Generator) { g.now = now }
}

// NewGenerator creates a Generator reading listings from source.
func NewGenerator(cfg *config.Config, source storage.ListingSource, reports *ReportService, logger *utils.Logger, opts ...GeneratorOption) *Generator {
	g := &Generator{
		cfg:     cfg,
		source:  source,
		cleaner: NewCleaner(logger),
		reports: reports,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Run builds the combined report and one report per configured scope. Scopes
// are processed concurrently; the result keeps the configured order.
func (g *Generator) Run(ctx context.Context) (*models.Report, error) {
	if len(g.cfg.Scopes) == 0 {
		return nil, ErrNoScopes
	}

	start := g.now()
	scopes := append([]models.Scope{g.cfg.CombinedScope()}, g.cfg.Scopes...)
	results := make([]*models.ScopeReport, len(scopes))

	pool := utils.NewWorkerPool(ctx, g.cfg.MaxConcurrency, g.cfg.RateLimitMs)
	for i, scope := range scopes {
		pool.Submit(func(ctx context.Context) error {
			sr, err := g.buildScope(ctx, scope)
			if err != nil {
				return fmt.Errorf("scope %q: %w", scope.Title, err)
			}
			results[i] = sr
			return nil
		})
	}
	if err := pool.Wait(); err != nil {
		return nil, err
	}

	report := &models.Report{
		RunID:       uuid.New(),
		GeneratedAt: start.UTC(),
		AsOf:        g.cfg.DisplayDate,
		Combined:    results[0],
		Scopes:      results[1:],
	}
	g.logger.Info("[generator] Report %s built for %d scopes in %v", report.RunID, len(report.Scopes), g.now().Sub(start))

	if err := g.dumpReport(report); err != nil {
		g.logger.Warn("[generator] Report dump failed: %v", err)
	}
	if g.cache != nil {
		if err := g.cache.Save(ctx, report); err != nil {
			g.logger.Warn("[generator] Report cache failed: %v", err)
		}
	}
	return report, nil
}

// Window returns the query window anchored at the configured date.
func (g *Generator) Window() (from, to time.Time) {
	return g.windowAt(g.cfg.QueryDate)
}

// windowAt spans one day more than the old window so that the previous
// day's window is covered as well.
func (g *Generator) windowAt(anchor time.Time) (from, to time.Time) {
	return anchor.AddDate(0, 0, -g.cfg.OldWindowDays-1), anchor
}

func (g *Generator) buildScope(ctx context.Context, scope models.Scope) (*models.ScopeReport, error) {
	from, to := g.Window()
	q := storage.Query{ScopeIDs: scope.SourceIDs(), From: from, To: to}

	var opts []snapshot.Option
	if g.cfg.PinCurrentDate {
		opts = append(opts, snapshot.WithCurrentDate(g.cfg.QueryDate))
	}
	store := snapshot.New(g.cleaner, g.logger.With("scope", scope.Title), opts...)
	if err := store.Load(ctx, g.source, q); err != nil {
		return nil, err
	}

	// Data ending before the anchor moves the current date back; the old
	// windows must then be re-read around the latest observed day.
	if cur := store.CurrentDate(); !g.cfg.PinCurrentDate && cur.Before(to) {
		g.logger.Info("[generator] %s has no data after %s, reloading window anchored there",
			scope.Title, cur.Format(models.DateLayout))
		q.From, q.To = g.windowAt(cur)
		if err := store.Load(ctx, g.source, q); err != nil {
			return nil, err
		}
	}

	if g.dumper != nil {
		if err := g.dumper.Dump(q.ScopeIDs, store.All()); err != nil {
			g.logger.Warn("[generator] Dump of %s failed: %v", scope.Title, err)
		}
	}

	return g.reports.BuildScope(store, scope)
}

func (g *Generator) dumpReport(report *models.Report) error {
	if g.cfg.DumpDir == "" {
		return nil
	}
	if err := os.MkdirAll(g.cfg.DumpDir, 0755); err != nil {
		return fmt.Errorf("create dump dir: %w", err)
	}
	raw, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	path := filepath.Join(g.cfg.DumpDir, "report.json")
	if err := os.WriteFile(path, raw, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	g.logger.Debug("[generator] Report written to %s", path)
	return nil
}
