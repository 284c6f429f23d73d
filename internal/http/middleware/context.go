package middlewarex

import "context"

// tenantKey is unexported so only this package can stamp the value.
type tenantKey struct{}

// WithTenantID attaches the authenticated tenant to the request context.
func WithTenantID(ctx context.Context, tenantID int64) context.Context {
	return context.WithValue(ctx, tenantKey{}, tenantID)
}

// TenantID reads the authenticated tenant back out. ok=false means the
// request never passed APIKeyAuth.
func TenantID(ctx context.Context) (int64, bool) {
	v, ok := ctx.Value(tenantKey{}).(int64)
	return v, ok
}
