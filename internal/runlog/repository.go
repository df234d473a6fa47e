package runlog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/churn-mlops/internal/drift"
	"github.com/wonny/churn-mlops/internal/promote"
	"github.com/wonny/churn-mlops/pkg/config"
)

// Repository persists promotion and drift history for audit. It is purely
// additive: every caller must treat a nil repository as "history disabled"
// and never let a write failure block the pipeline decision.
// ⭐ SSOT: 운영 이력 저장/조회는 여기서만
type Repository struct {
	pool *pgxpool.Pool
}

// Connect opens the pool when DATABASE_URL is configured; returns
// (nil, nil) when it is not.
func Connect(ctx context.Context, cfg *config.Config) (*Repository, error) {
	if cfg.Database.URL == "" {
		return nil, nil
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.Database.MaxConns)
	poolCfg.MaxConnLifetime = cfg.Database.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create database pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	return &Repository{pool: pool}, nil
}

// Close releases the pool
func (r *Repository) Close() {
	if r != nil && r.pool != nil {
		r.pool.Close()
	}
}

// SavePromotion records one promotion decision
func (r *Repository) SavePromotion(ctx context.Context, record *promote.Record) error {
	if r == nil {
		return nil
	}

	query := `
		INSERT INTO mlops.promotions (
			run_id, promoted_from_model, metric_used, score,
			production_model, production_metrics, promoted_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (run_id) DO NOTHING
	`

	_, err := r.pool.Exec(ctx, query,
		record.RunID, record.PromotedFromModel, record.MetricUsed, record.Score,
		record.ProductionModel, record.ProductionMetrics, record.PromotedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save promotion: %w", err)
	}

	return nil
}

// SaveDriftReport records one drift check outcome
func (r *Repository) SaveDriftReport(ctx context.Context, report *drift.Report, checkedAt time.Time) error {
	if r == nil {
		return nil
	}

	psiJSON, err := json.Marshal(report.PSIByFeature)
	if err != nil {
		return fmt.Errorf("failed to marshal psi map: %w", err)
	}

	query := `
		INSERT INTO mlops.drift_reports (
			checked_at, status, overall_max_psi, psi_by_feature, baseline, current
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (checked_at) DO UPDATE SET
			status = EXCLUDED.status,
			overall_max_psi = EXCLUDED.overall_max_psi,
			psi_by_feature = EXCLUDED.psi_by_feature,
			baseline = EXCLUDED.baseline,
			current = EXCLUDED.current
	`

	_, err = r.pool.Exec(ctx, query,
		checkedAt, string(report.Status), report.OverallMaxPSI, psiJSON,
		report.Baseline, report.Current,
	)
	if err != nil {
		return fmt.Errorf("failed to save drift report: %w", err)
	}

	return nil
}

// RecentPromotions lists the latest promotions, newest first
func (r *Repository) RecentPromotions(ctx context.Context, limit int) ([]promote.Record, error) {
	if r == nil {
		return nil, nil
	}

	query := `
		SELECT run_id, promoted_from_model, metric_used, score,
		       production_model, production_metrics, promoted_at
		FROM mlops.promotions
		ORDER BY promoted_at DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query promotions: %w", err)
	}
	defer rows.Close()

	records := make([]promote.Record, 0)
	for rows.Next() {
		var rec promote.Record
		err := rows.Scan(
			&rec.RunID, &rec.PromotedFromModel, &rec.MetricUsed, &rec.Score,
			&rec.ProductionModel, &rec.ProductionMetrics, &rec.PromotedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan promotion: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return records, nil
}
