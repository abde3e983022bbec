// Package auth validates the HS256 bearer tokens presented to the activity API and
// signs the tokens the command-line client sends.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Config holds the HMAC secret and expected issuer of bearer tokens.
type Config struct {
	Secret string
	Issuer string
}

// Claims identifies the caller of an activity request.
type Claims struct {
	Subject   string
	TenantID  string
	Scopes    map[string]struct{}
	ExpiresAt time.Time
}

var (
	// ErrMissingToken is returned when no bearer token was presented.
	ErrMissingToken = errors.New("missing bearer token")
	// ErrInvalidToken wraps signature, issuer, expiry and claim failures.
	ErrInvalidToken = errors.New("invalid bearer token")
)

// clockSkew tolerated on exp and iat between the CLI host and the API.
const clockSkew = 30 * time.Second

// tokenClaims is the wire form of the token body.
type tokenClaims struct {
	jwt.RegisteredClaims
	TenantID string    `json:"tenant_id"`
	Scopes   scopeList `json:"scopes,omitempty"`
}

// scopeList accepts scopes either as a space separated string or as a JSON array.
type scopeList []string

func (s *scopeList) UnmarshalJSON(data []byte) error {
	var joined string
	if err := json.Unmarshal(data, &joined); err == nil {
		*s = strings.Fields(joined)
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("scopes: %w", err)
	}
	*s = list
	return nil
}

func (c tokenClaims) claims() (*Claims, error) {
	if c.Subject == "" || c.TenantID == "" {
		return nil, fmt.Errorf("%w: subject and tenant_id are required", ErrInvalidToken)
	}
	scopes := make(map[string]struct{}, len(c.Scopes))
	for _, scope := range c.Scopes {
		if scope = strings.TrimSpace(scope); scope != "" {
			scopes[scope] = struct{}{}
		}
	}
	return &Claims{
		Subject:   c.Subject,
		TenantID:  c.TenantID,
		Scopes:    scopes,
		ExpiresAt: c.ExpiresAt.Time,
	}, nil
}

// Parse validates token against cfg and returns the caller's claims.
func Parse(token string, cfg Config) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMissingToken
	}

	var body tokenClaims
	_, err := jwt.ParseWithClaims(token, &body, func(*jwt.Token) (any, error) {
		return []byte(cfg.Secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(clockSkew),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return body.claims()
}

// TokenRequest describes a token to sign with Issue. A zero TTL means one hour.
type TokenRequest struct {
	Subject  string
	TenantID string
	Scopes   []string
	TTL      time.Duration
}

// Issue signs an HS256 token that Parse accepts under the same Config.
func Issue(cfg Config, req TokenRequest) (string, error) {
	if req.Subject == "" || req.TenantID == "" {
		return "", fmt.Errorf("%w: subject and tenant are required", ErrInvalidToken)
	}
	ttl := req.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	now := time.Now()
	body := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   req.Subject,
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		TenantID: req.TenantID,
		Scopes:   req.Scopes,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, body).SignedString([]byte(cfg.Secret))
}

// HasScope reports whether the claims grant scope.
func (c *Claims) HasScope(scope string) bool {
	if c == nil {
		return false
	}
	_, ok := c.Scopes[scope]
	return ok
}
