package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"flat-stats/models"
)

// ErrConfigMismatch marks configuration that cannot be reconciled, such as
// scope ids and titles of different length.
var ErrConfigMismatch = errors.New("config mismatch")

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	SourceDriver string
	SQLitePath   string
	// SeedFromDump imports the CSV dumps into the SQLite source before a run.
	SeedFromDump bool

	// QueryDate anchors the data window; DisplayDate is what headers show.
	QueryDate      time.Time
	DisplayDate    time.Time
	PinCurrentDate bool
	OldWindowDays  int

	Scopes       []models.Scope
	LoadFromDump bool
	DumpDir      string

	MaxConcurrency int
	RateLimitMs    int
	MaxRetries     int

	XLSXOutputPath string
	HTTPAddr       string

	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	ReportTTLHours int

	LogMode string
}

// Load reads the .env file and returns a populated Config struct.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}
	return FromEnv(time.Now())
}

// FromEnv builds a Config from the current environment; now resolves the
// now() date sentinels.
func FromEnv(now time.Time) (*Config, error) {
	rawDate := getEnv("CURRENT_DATE", "now()")
	queryDate, err := ParseQueryDate(rawDate, now)
	if err != nil {
		return nil, err
	}
	displayDate, err := ParseDisplayDate(rawDate, now)
	if err != nil {
		return nil, err
	}

	scopes, err := ParseScopes(getEnv("SCOPE_IDS", ""), getEnv("SCOPE_TITLES", ""))
	if err != nil {
		return nil, err
	}

	return &Config{
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "flats"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "flats123"),
		PostgresDB:       getEnv("POSTGRES_DB", "flats_db"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		SourceDriver: strings.ToLower(getEnv("SOURCE_DRIVER", DriverPostgres)),
		SQLitePath:   getEnv("SQLITE_PATH", "./data/flats.sqlite"),
		SeedFromDump: getEnvBool("SEED_FROM_DUMP", false),

		QueryDate:      queryDate,
		DisplayDate:    displayDate,
		PinCurrentDate: getEnvBool("PIN_CURRENT_DATE", false),
		OldWindowDays:  getEnvInt("OLD_WINDOW_DAYS", 30),

		Scopes:       scopes,
		LoadFromDump: getEnvBool("LOAD_FROM_DUMP", false),
		DumpDir:      getEnv("DUMP_DIR", "./data"),

		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 3),
		RateLimitMs:    getEnvInt("RATE_LIMIT_MS", 0),
		MaxRetries:     getEnvInt("MAX_RETRIES", 3),

		XLSXOutputPath: getEnv("XLSX_OUTPUT_PATH", ""),
		HTTPAddr:       getEnv("HTTP_ADDR", ""),

		RedisAddr:      getEnv("REDIS_ADDR", ""),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisDB:        getEnvInt("REDIS_DB", 0),
		ReportTTLHours: getEnvInt("REPORT_TTL_HOURS", 24),

		LogMode: getEnv("LOG_MODE", "dev"),
	}, nil
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

// SeedsFromDump reports whether the CSV dumps are imported into the
// database before the run.
func (c *Config) SeedsFromDump() bool {
	return !c.LoadFromDump && c.SeedFromDump && c.SourceDriver == DriverSQLite
}

// DumpsLiveLoads reports whether datasets loaded from the database are
// written back to the CSV dumps. A seeded run leaves the dumps untouched,
// since they hold more history than one query window.
func (c *Config) DumpsLiveLoads() bool {
	return !c.LoadFromDump && !c.SeedsFromDump()
}

// CombinedScope covers every configured scope at once.
func (c *Config) CombinedScope() models.Scope {
	ids := make([]string, 0, len(c.Scopes))
	titles := make([]string, 0, len(c.Scopes))
	for _, s := range c.Scopes {
		ids = append(ids, s.ID)
		titles = append(titles, s.Title)
	}
	return models.Scope{ID: strings.Join(ids, ","), Title: strings.Join(titles, ", ")}
}

// ParseScopes zips comma-separated ids and titles. Both lists are trimmed and
// must have the same length.
func ParseScopes(rawIDs, rawTitles string) ([]models.Scope, error) {
	ids := splitList(rawIDs)
	titles := splitList(rawTitles)
	if len(ids) != len(titles) {
		return nil, fmt.Errorf("%w: %d scope ids but %d scope titles", ErrConfigMismatch, len(ids), len(titles))
	}

	scopes := make([]models.Scope, len(ids))
	for i := range ids {
		scopes[i] = models.Scope{ID: ids[i], Title: titles[i]}
	}
	return scopes, nil
}

// ParseQueryDate resolves the date the data window ends at.
// "now()" is today, "now()-1" yesterday, anything else a YYYY-MM-DD literal.
func ParseQueryDate(raw string, now time.Time) (time.Time, error) {
	today := truncateDay(now)
	switch strings.TrimSpace(raw) {
	case "now()":
		return today, nil
	case "now()-1":
		return today.AddDate(0, 0, -1), nil
	}
	return parseLiteral(raw)
}

// ParseDisplayDate resolves the date shown in report headers. Both sentinels
// show today.
func ParseDisplayDate(raw string, now time.Time) (time.Time, error) {
	switch strings.TrimSpace(raw) {
	case "now()", "now()-1":
		return truncateDay(now), nil
	}
	return parseLiteral(raw)
}

func parseLiteral(raw string) (time.Time, error) {
	d, err := time.Parse(models.DateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid CURRENT_DATE %q: %v", ErrConfigMismatch, raw, err)
	}
	return d, nil
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}
