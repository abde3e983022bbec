package auth

import (
	"context"
	"time"

	authlib "github.com/baldellimtt/gestionale-capoferri-sub001/internal/platform/auth"
)

// Claims mirrors the shared auth claims type for service convenience.
type Claims = authlib.Claims

// Config mirrors the shared auth config.
type Config = authlib.Config

// ParseClaims delegates to the shared auth parser.
func ParseClaims(token string, cfg Config) (*Claims, error) {
	return authlib.Parse(token, cfg)
}

// IssueToken signs a token for subject within tenantID. Used by the CLI and tests.
func IssueToken(cfg Config, subject, tenantID string, ttl time.Duration, scopes ...string) (string, error) {
	return authlib.Issue(cfg, authlib.TokenRequest{
		Subject:  subject,
		TenantID: tenantID,
		Scopes:   scopes,
		TTL:      ttl,
	})
}

// WithClaims stores the claims in the request context.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return authlib.WithClaims(ctx, claims)
}

// FromContext retrieves claims from context.
func FromContext(ctx context.Context) (*Claims, bool) {
	return authlib.FromContext(ctx)
}
