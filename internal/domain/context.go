package domain

import "context"

type contextKey string

const organizationIDKey contextKey = "organization_id"

// WithOrganizationID returns a context carrying the organization id.
func WithOrganizationID(ctx context.Context, orgID string) context.Context {
	return context.WithValue(ctx, organizationIDKey, orgID)
}

// GetOrganizationIDFromContext returns the organization id from the context,
// or "" when none was set.
func GetOrganizationIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(organizationIDKey).(string); ok {
		return v
	}
	return ""
}
