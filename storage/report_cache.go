package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"flat-stats/models"
	"flat-stats/utils"
)

// ErrNoReport is returned by a ReportCache that holds no report yet.
var ErrNoReport = errors.New("no report generated yet")

const latestReportKey = "flat-stats:report:latest"

// MemoryReportCache keeps the latest report in process memory.
type MemoryReportCache struct {
	mu     sync.RWMutex
	report *models.Report
}

// NewMemoryReportCache creates an empty MemoryReportCache.
func NewMemoryReportCache() *MemoryReportCache {
	return &MemoryReportCache{}
}

func (c *MemoryReportCache) Save(_ context.Context, report *models.Report) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.report = report
	return nil
}

func (c *MemoryReportCache) Latest(_ context.Context) (*models.Report, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.report == nil {
		return nil, ErrNoReport
	}
	return c.report, nil
}

// RedisReportCache stores the latest report as JSON in Redis so several API
// instances can serve it.
type RedisReportCache struct {
	rdb    *goredis.Client
	ttl    time.Duration
	logger *utils.Logger
}

// NewRedisReportCache connects to Redis and verifies the connection.
func NewRedisReportCache(ctx context.Context, addr, password string, db int, ttl time.Duration, logger *utils.Logger) (*RedisReportCache, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisReportCache{rdb: rdb, ttl: ttl, logger: logger}, nil
}

func (c *RedisReportCache) Save(ctx context.Context, report *models.Report) error {
	raw, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("redis: encode report: %w", err)
	}
	if err := c.rdb.Set(ctx, latestReportKey, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis: save report: %w", err)
	}
	c.logger.Debug("[redis] Saved report %s (%d bytes, ttl %v)", report.RunID, len(raw), c.ttl)
	return nil
}

func (c *RedisReportCache) Latest(ctx context.Context) (*models.Report, error) {
	raw, err := c.rdb.Get(ctx, latestReportKey).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, ErrNoReport
	}
	if err != nil {
		return nil, fmt.Errorf("redis: load report: %w", err)
	}

	var report models.Report
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil, fmt.Errorf("redis: decode report: %w", err)
	}
	return &report, nil
}

// Close closes the Redis client.
func (c *RedisReportCache) Close() error {
	return c.rdb.Close()
}
