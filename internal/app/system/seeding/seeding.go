// internal/app/system/seeding/seeding.go
package seeding

import (
	"context"

	"github.com/dalemusser/stratablog/internal/app/blog"
	"github.com/dalemusser/stratablog/internal/app/store/audit"
	"github.com/dalemusser/stratablog/internal/app/system/auditlog"
	"github.com/dalemusser/stratablog/internal/domain/models"
	"go.uber.org/zap"
)

// SeedAdmin makes sure the default administrator exists. source names the
// caller ("startup", "cli") in the audit trail. A newly created admin that
// still uses the built-in password is logged as a warning.
func SeedAdmin(ctx context.Context, identity *blog.Identity, password, source string, al *auditlog.Logger, logger *zap.Logger) (models.User, bool, error) {
	u, created, err := identity.EnsureAdmin(ctx, password)
	if err != nil {
		logger.Error("failed to ensure admin user", zap.Error(err))
		return models.User{}, false, err
	}
	if !created {
		logger.Debug("admin user already present", zap.String("username", u.Username))
		return u, false, nil
	}

	al.AdminChanged(ctx, audit.EventAdminProvisioned, u.ID, source)
	if password == "" || password == models.DefaultAdminPassword {
		logger.Warn("admin user created with the default password; change it before exposing this site",
			zap.String("username", u.Username))
	}
	return u, true, nil
}
