package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/nexusauctions/nexus-backend/pkg/enums"
)

type contextKey string

const (
	ctxUserID contextKey = "auth.user_id"
	ctxRole   contextKey = "auth.role"
)

// WithUserID stamps the authenticated user onto the request context.
func WithUserID(ctx context.Context, userID uuid.UUID, role enums.UserRole) context.Context {
	ctx = context.WithValue(ctx, ctxUserID, userID)
	return context.WithValue(ctx, ctxRole, role)
}

// UserIDFromContext returns the authenticated user id, if present.
func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(ctxUserID).(uuid.UUID)
	return id, ok
}

// RoleFromContext returns the authenticated user's role, if present.
func RoleFromContext(ctx context.Context) (enums.UserRole, bool) {
	role, ok := ctx.Value(ctxRole).(enums.UserRole)
	return role, ok
}
