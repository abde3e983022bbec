package auth

import (
	"net/http"

	authlib "github.com/baldellimtt/gestionale-capoferri-sub001/internal/platform/auth"
)

// PublicPaths are served without a bearer token.
var PublicPaths = map[string]struct{}{
	"/healthz": {},
	"/metrics": {},
}

// Middleware enforces bearer-token authentication on the activity endpoints.
type Middleware struct {
	inner authlib.Middleware
}

// NewMiddleware constructs Middleware with validation config.
func NewMiddleware(cfg Config) Middleware {
	skipper := func(r *http.Request) bool {
		if r.Method == http.MethodOptions {
			return true
		}
		_, public := PublicPaths[r.URL.Path]
		return public
	}
	return Middleware{inner: authlib.NewMiddleware(cfg, skipper)}
}

// Wrap attaches authentication handling to an http.Handler.
func (m Middleware) Wrap(next http.Handler) http.Handler {
	return m.inner.Wrap(next)
}
