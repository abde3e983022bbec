package auth

import "context"

type claimsKey struct{}

// WithClaims stores claims on the context.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// FromContext retrieves claims stored by WithClaims. A nil claim set counts as absent.
func FromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*Claims)
	return claims, ok && claims != nil
}

// TenantFromContext returns the tenant of the authenticated caller, or "".
func TenantFromContext(ctx context.Context) string {
	if claims, ok := FromContext(ctx); ok {
		return claims.TenantID
	}
	return ""
}
