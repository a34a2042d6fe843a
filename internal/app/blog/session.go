package blog

import (
	"context"

	"github.com/dalemusser/stratablog/internal/app/system/auth"
	"github.com/dalemusser/stratablog/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// SessionUsers resolves session cookies to live accounts through Identity.
// It satisfies auth.UserFetcher.
type SessionUsers struct {
	identity *Identity
	log      *zap.Logger
}

// NewSessionUsers wraps identity for the session middleware.
func NewSessionUsers(identity *Identity, log *zap.Logger) *SessionUsers {
	return &SessionUsers{identity: identity, log: log}
}

var _ auth.UserFetcher = (*SessionUsers)(nil)

// FetchUser returns nil for a malformed id, a deleted account, or a failed
// lookup. The request is then served anonymously.
func (s *SessionUsers) FetchUser(ctx context.Context, userID string) *auth.SessionUser {
	id, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()

	u, err := s.identity.LoadByID(ctx, id)
	if err != nil {
		s.log.Warn("load session user", zap.String("user_id", userID), zap.Error(err))
		return nil
	}
	if u == nil {
		return nil
	}
	return &auth.SessionUser{
		ID:       u.ID.Hex(),
		Username: u.Username,
		Email:    u.Email,
		IsAdmin:  u.IsAdmin,
	}
}
