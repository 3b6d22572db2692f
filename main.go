package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/text/language"

	"flat-stats/config"
	"flat-stats/models"
	"flat-stats/server"
	"flat-stats/services"
	"flat-stats/storage"
	"flat-stats/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("%v", err)
		logger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *utils.Logger) error {
	logger.Info("=== Flat price summary starting ===")
	logger.Info("Config: scopes %d | anchor %s | window %dd | source %s (dump: %v) | concurrency %d",
		len(cfg.Scopes), cfg.QueryDate.Format(models.DateLayout), cfg.OldWindowDays,
		cfg.SourceDriver, cfg.LoadFromDump, cfg.MaxConcurrency)

	dump := storage.NewCSVDump(cfg.DumpDir, logger)

	var opts []services.GeneratorOption
	var source storage.ListingSource = dump
	if !cfg.LoadFromDump {
		src, err := openSource(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer src.Close()

		if cfg.SeedsFromDump() {
			if err := seed(ctx, cfg, dump, src, logger); err != nil {
				return err
			}
		}
		source = src
	}
	if cfg.DumpsLiveLoads() {
		opts = append(opts, services.WithDumper(dump))
	}

	cache, closeCache, err := openCache(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeCache()
	opts = append(opts, services.WithCache(cache))

	reports := services.NewReportService(logger, services.NewOrderer(language.Russian), cfg.OldWindowDays)
	report, err := services.NewGenerator(cfg, source, reports, logger, opts...).Run(ctx)
	if err != nil {
		return fmt.Errorf("generate report: %w", err)
	}

	renderer := services.NewRenderer()
	if err := renderer.Print(os.Stdout, report); err != nil {
		return fmt.Errorf("print report: %w", err)
	}

	if cfg.XLSXOutputPath != "" {
		if err := storage.NewXLSXWriter().WriteReport(cfg.XLSXOutputPath, report); err != nil {
			logger.Error("XLSX export failed: %v", err)
		} else {
			logger.Info("Report exported to %s", cfg.XLSXOutputPath)
		}
	}

	if cfg.HTTPAddr == "" {
		return nil
	}
	return server.New(cache, renderer, logger).ListenAndServe(ctx, cfg.HTTPAddr)
}

func openSource(ctx context.Context, cfg *config.Config, logger *utils.Logger) (*storage.SQLSource, error) {
	switch cfg.SourceDriver {
	case config.DriverPostgres:
		retry := &utils.RetryConfig{MaxAttempts: cfg.MaxRetries, BaseDelay: 2 * time.Second, Logger: logger}
		src, err := storage.OpenPostgresSource(ctx, cfg.DSN(), retry, logger)
		if err != nil {
			logger.Error("Make sure PostgreSQL is running: docker compose up -d")
			return nil, err
		}
		return src, nil
	case config.DriverSQLite:
		src, err := storage.OpenSQLiteSource(cfg.SQLitePath, logger)
		if err != nil {
			return nil, err
		}
		if err := src.Migrate(ctx); err != nil {
			_ = src.Close()
			return nil, err
		}
		return src, nil
	}
	return nil, fmt.Errorf("%w: unknown SOURCE_DRIVER %q", config.ErrConfigMismatch, cfg.SourceDriver)
}

// seed imports the dump of every scope into src.
func seed(ctx context.Context, cfg *config.Config, dump *storage.CSVDump, src *storage.SQLSource, logger *utils.Logger) error {
	cleaner := services.NewCleaner(logger)
	for _, scope := range cfg.Scopes {
		raw, err := dump.Fetch(ctx, storage.Query{
			ScopeIDs: scope.SourceIDs(),
			From:     time.Time{},
			To:       cfg.QueryDate,
		})
		if err != nil {
			return fmt.Errorf("seed %s: %w", scope.Title, err)
		}
		if err := src.Import(ctx, scope.ID, cleaner.Clean(raw)); err != nil {
			return fmt.Errorf("seed %s: %w", scope.Title, err)
		}
	}
	return nil
}

func openCache(ctx context.Context, cfg *config.Config, logger *utils.Logger) (storage.ReportCache, func(), error) {
	if cfg.RedisAddr == "" {
		return storage.NewMemoryReportCache(), func() {}, nil
	}
	ttl := time.Duration(cfg.ReportTTLHours) * time.Hour
	c, err := storage.NewRedisReportCache(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, ttl, logger)
	if err != nil {
		return nil, nil, err
	}
	return c, func() { _ = c.Close() }, nil
}
