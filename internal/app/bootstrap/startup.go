// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/stratablog/internal/app/blog"
	"github.com/dalemusser/stratablog/internal/app/store/audit"
	userstore "github.com/dalemusser/stratablog/internal/app/store/users"
	"github.com/dalemusser/stratablog/internal/app/system/auditlog"
	"github.com/dalemusser/stratablog/internal/app/system/seeding"
	"github.com/dalemusser/stratablog/internal/app/system/tasks"
	"github.com/dalemusser/stratablog/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Startup runs once after the schema is in place and before requests are
// served. It provisions the admin account and starts background jobs.
// A non-nil error aborts startup.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	db := deps.MongoDatabase

	timeouts.Configure(timeouts.Config{
		Ping:   appCfg.TimeoutPing,
		Short:  appCfg.TimeoutShort,
		Medium: appCfg.TimeoutMedium,
	})

	identity := blog.NewIdentity(userstore.New(db), logger)
	auditLogger := auditlog.New(audit.New(db), logger, auditConfig(appCfg))

	if _, _, err := seeding.SeedAdmin(ctx, identity, appCfg.AdminPassword, "startup", auditLogger, logger); err != nil {
		logger.Error("failed to provision admin user", zap.Error(err))
		return err
	}

	startTaskRunner(db, appCfg, logger)
	return nil
}

func auditConfig(appCfg AppConfig) auditlog.Config {
	return auditlog.Config{
		Auth:    appCfg.AuditLogAuth,
		Content: appCfg.AuditLogContent,
		Admin:   appCfg.AuditLogAdmin,
	}
}

// taskRunner is stopped by Shutdown.
var taskRunner *tasks.Runner

func startTaskRunner(db *mongo.Database, appCfg AppConfig, logger *zap.Logger) {
	taskRunner = tasks.New(logger)

	if appCfg.AuditRetention > 0 {
		taskRunner.Register(tasks.AuditRetentionJob(db, appCfg.AuditRetention, logger))
	}

	taskRunner.Start()
}
