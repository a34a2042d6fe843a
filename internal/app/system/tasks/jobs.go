// internal/app/system/tasks/jobs.go
package tasks

import (
	"context"
	"time"

	"github.com/dalemusser/stratablog/internal/app/store/audit"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// AuditRetentionJob deletes audit events older than retention.
func AuditRetentionJob(db *mongo.Database, retention time.Duration, logger *zap.Logger) Job {
	store := audit.New(db)
	return Job{
		Name:     "audit-retention",
		Interval: 24 * time.Hour,
		Run: func(ctx context.Context) error {
			n, err := store.DeleteBefore(ctx, time.Now().Add(-retention))
			if err != nil {
				return err
			}
			if n > 0 {
				logger.Info("pruned audit events", zap.Int64("deleted", n), zap.Duration("retention", retention))
			}
			return nil
		},
	}
}
