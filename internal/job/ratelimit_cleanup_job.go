package job

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// RateLimitCleanupJob prunes quota counters from expired windows. Counters
// are keyed by window id, so old ones are never read again and only waste
// space.
type RateLimitCleanupJob struct {
	db       *sqlx.DB
	keepDays int
}

func NewRateLimitCleanupJob(db *sqlx.DB, keepDays int) *RateLimitCleanupJob {
	return &RateLimitCleanupJob{db: db, keepDays: keepDays}
}

func (j *RateLimitCleanupJob) Name() string {
	return "ratelimit_cleanup"
}

func (j *RateLimitCleanupJob) Run(ctx context.Context) error {
	keepDays := j.keepDays
	if keepDays <= 0 {
		keepDays = 7
	}
	cutoff := time.Now().Add(-time.Duration(keepDays) * 24 * time.Hour).UnixMilli()
	res, err := j.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = 'ratelimits' AND ctime < $1`, cutoff)
	if err != nil {
		return err
	}
	if deleted, err := res.RowsAffected(); err == nil && deleted > 0 {
		logutil.GetLogger(ctx).Info("pruned expired rate limit counters", zap.Int64("deleted", deleted))
	}
	return nil
}
