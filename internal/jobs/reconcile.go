package jobs

import (
	"context"
	"time"

	"SchoolSuite/api/finance"
	"SchoolSuite/internal/config"
	"SchoolSuite/internal/logger"
	"SchoolSuite/internal/retry"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ReconcileFinancialStatuses walks all students in id order and recomputes
// each stored financial status from the installment table. Per-student writes
// can race with live traffic, so each batch fetch is retried.
func ReconcileFinancialStatuses(ctx context.Context, pool *pgxpool.Pool, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = config.ReconcileBatchSize
	}
	policy := retry.Policy{MaxAttempts: config.MaxRetries, Delay: retry.Linear(config.RetryDelay)}

	processed := 0
	lastID := ""
	for {
		var ids []string
		err := policy.Do(ctx, func() error {
			var ferr error
			ids, ferr = fetchStudentIDs(ctx, pool, lastID, batchSize)
			return ferr
		})
		if err != nil {
			return processed, err
		}
		if len(ids) == 0 {
			return processed, nil
		}
		for _, id := range ids {
			if _, err := finance.RecomputeFinancialStatus(ctx, pool, id); err != nil {
				logger.Audit("[Reconcile] status recompute failed for %s: %v", id, err)
				continue
			}
			processed++
		}
		lastID = ids[len(ids)-1]
		select {
		case <-ctx.Done():
			return processed, ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}

func fetchStudentIDs(ctx context.Context, pool *pgxpool.Pool, afterID string, limit int) ([]string, error) {
	rows, err := pool.Query(ctx, `
		SELECT id::text FROM students WHERE id::text > $1 ORDER BY id::text LIMIT $2
	`, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
