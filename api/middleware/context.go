package middleware

import "context"

type contextKey string

const (
	ctxAdminSubject contextKey = "admin_subject"
	ctxRole         contextKey = "actor_role"
)

// AdminSubjectFromContext returns the authenticated back-office subject, if any.
func AdminSubjectFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxAdminSubject).(string); ok {
		return v
	}
	return ""
}

// RoleFromContext returns the authenticated back-office role, if any.
func RoleFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRole).(string); ok {
		return v
	}
	return ""
}

// WithAdmin injects the authenticated admin identity into the context.
func WithAdmin(ctx context.Context, subject, role string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxAdminSubject, subject)
	return context.WithValue(ctx, ctxRole, role)
}
