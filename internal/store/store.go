// Package store persists run reports: Redis holds the latest report per
// universe for fast API reads, Postgres (optional) keeps the run history.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Checker-Finance/screener/pkg/model"
)

// RunSummary is one row of the run-history listing.
type RunSummary struct {
	RunID            string    `json:"run_id"`
	Universe         string    `json:"universe"`
	StartedAt        time.Time `json:"started_at"`
	ElapsedMS        int64     `json:"elapsed_ms"`
	TotalInstruments int       `json:"total_instruments"`
	RetainedCount    int       `json:"retained_count"`
	RejectedCount    int       `json:"rejected_count"`
}

// Store defines the contract for caching and persisting run reports.
type Store interface {
	SaveReport(ctx context.Context, report *model.Report) error
	GetLatestReport(ctx context.Context, universe string) (*model.Report, error)
	ListRuns(ctx context.Context, universe string, limit int) ([]RunSummary, error)
	HealthCheck(ctx context.Context) error
	Close() error
}

// ErrNotFound is returned when no report exists for the requested universe.
var ErrNotFound = errors.New("report not found")

type HybridStore struct {
	redis  *redis.Client
	PG     *pgxpool.Pool
	logger *zap.Logger
}

type PGPoolConfig struct {
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

// NewHybrid creates a Redis-first, Postgres-backed store. pgURL may be empty,
// in which case run history is disabled and only the latest report is kept.
func NewHybrid(redisAddr string, redisDB int, pgURL string, pgPoolConfig PGPoolConfig, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
		DB:   redisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	var pgPool *pgxpool.Pool
	if pgURL != "" {
		cfg, err := pgxpool.ParseConfig(pgURL)
		if err != nil {
			return nil, fmt.Errorf("invalid pg config: %w", err)
		}
		if pgPoolConfig.MaxConns > 0 {
			cfg.MaxConns = pgPoolConfig.MaxConns
		}
		if pgPoolConfig.MinConns > 0 {
			cfg.MinConns = pgPoolConfig.MinConns
		}
		if pgPoolConfig.MaxConnLifetime > 0 {
			cfg.MaxConnLifetime = pgPoolConfig.MaxConnLifetime
		}
		if pgPoolConfig.MaxConnIdleTime > 0 {
			cfg.MaxConnIdleTime = pgPoolConfig.MaxConnIdleTime
		}
		if pgPoolConfig.HealthCheckPeriod > 0 {
			cfg.HealthCheckPeriod = pgPoolConfig.HealthCheckPeriod
		}
		pgPool, err = pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
	}

	return &HybridStore{redis: rdb, PG: pgPool, logger: logger}, nil
}

func latestKey(universe string) string {
	return "screener:latest:" + universe
}

// SaveReport caches the report as the latest for its universe and appends a
// history row. The Redis write is authoritative for the API; a Postgres
// failure is logged but does not fail the save.
func (s *HybridStore) SaveReport(ctx context.Context, report *model.Report) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := s.redis.Set(ctx, latestKey(report.Universe), data, 0).Err(); err != nil {
		return fmt.Errorf("cache latest report: %w", err)
	}

	if s.PG == nil {
		return nil
	}
	_, err = s.PG.Exec(ctx, `
		INSERT INTO screener.run_history (
			run_id, universe, started_at, finished_at, elapsed_ms,
			total_instruments, retained_count, rejected_count, rejection_reasons
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (run_id) DO NOTHING;
	`, report.RunID, report.Universe, report.StartedAt, report.FinishedAt,
		report.ElapsedMS, report.TotalInstruments, report.RetainedCount,
		report.RejectedCount, report.RejectionReasons)
	if err != nil {
		s.logger.Error("store.pg.insert_run_failed",
			zap.String("run_id", report.RunID),
			zap.Error(err))
	}
	return nil
}

// GetLatestReport returns the most recent report for a universe, or
// ErrNotFound when no run has been saved yet.
func (s *HybridStore) GetLatestReport(ctx context.Context, universe string) (*model.Report, error) {
	data, err := s.redis.Get(ctx, latestKey(universe)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}

	var report model.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("decode cached report: %w", err)
	}
	return &report, nil
}

// ListRuns returns recent run summaries, newest first. Requires Postgres.
func (s *HybridStore) ListRuns(ctx context.Context, universe string, limit int) ([]RunSummary, error) {
	if s.PG == nil {
		return nil, fmt.Errorf("postgres unavailable")
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.PG.Query(ctx, `
		SELECT run_id, universe, started_at, elapsed_ms,
		       total_instruments, retained_count, rejected_count
		FROM screener.run_history
		WHERE ($1 = '' OR universe = $1)
		ORDER BY started_at DESC
		LIMIT $2;
	`, universe, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.RunID, &r.Universe, &r.StartedAt, &r.ElapsedMS,
			&r.TotalInstruments, &r.RetainedCount, &r.RejectedCount); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	return results, nil
}

func (s *HybridStore) HealthCheck(ctx context.Context) error {
	if s.redis == nil {
		return fmt.Errorf("redis not initialized")
	}
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	if s.PG != nil {
		if err := s.PG.Ping(ctx); err != nil {
			return fmt.Errorf("postgres ping failed: %w", err)
		}
	}
	return nil
}

func (s *HybridStore) Close() error {
	if s.PG != nil {
		s.PG.Close()
	}
	if s.redis != nil {
		return s.redis.Close()
	}
	return nil
}
