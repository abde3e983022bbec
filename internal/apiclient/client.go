// Package apiclient talks to the activity service over HTTP. It satisfies the server
// collaborator needed by the activity table and the client catalog.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/baldellimtt/gestionale-capoferri-sub001/internal/api"
	"github.com/baldellimtt/gestionale-capoferri-sub001/internal/attivita"
	"github.com/baldellimtt/gestionale-capoferri-sub001/internal/autocomplete"
	"github.com/baldellimtt/gestionale-capoferri-sub001/internal/persistence"
)

const (
	// DefaultRateLimit is the default requests per second.
	DefaultRateLimit = 10

	// DefaultTimeout bounds a single HTTP exchange.
	DefaultTimeout = 15 * time.Second

	// listCacheTTL is how long a non-bypassing list may be answered from memory.
	listCacheTTL = 2 * time.Second
)

// HTTPError is returned for non-2xx answers.
type HTTPError struct {
	StatusCode int
	Type       string
	Detail     string
}

func (e *HTTPError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("api: %d %s: %s", e.StatusCode, e.Type, e.Detail)
	}
	return fmt.Sprintf("api: %d", e.StatusCode)
}

// Unwrap maps 404 to attivita.ErrNotFound.
func (e *HTTPError) Unwrap() error {
	if e.StatusCode == http.StatusNotFound {
		return attivita.ErrNotFound
	}
	return nil
}

// Client is a rate-limited activity service client.
type Client struct {
	baseURL *url.URL
	token   string
	http    *http.Client
	limiter *rate.Limiter
	logger  *log.Logger
	now     func() time.Time

	mu    sync.Mutex
	lists map[string]cachedList
}

type cachedList struct {
	records []attivita.Record
	at      time.Time
}

// Option configures the Client.
type Option func(*Client)

// WithRateLimit sets a custom rate limit.
func WithRateLimit(requestsPerSecond float64) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// WithLogger overrides the client logger.
func WithLogger(logger *log.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a Client for baseURL authenticating with a bearer token.
func New(baseURL, token string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}
	c := &Client{
		baseURL: u,
		token:   token,
		http:    &http.Client{Timeout: DefaultTimeout},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), 1),
		logger:  log.NewWithOptions(os.Stderr, log.Options{Prefix: "apiclient"}),
		now:     time.Now,
		lists:   make(map[string]cachedList),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ListActivities lists the activities matching filter. With bypassCache the request
// skips the client's memory and asks intermediaries not to serve a cached answer.
func (c *Client) ListActivities(ctx context.Context, filter attivita.Filter, bypassCache bool) ([]attivita.Record, error) {
	query := persistence.EncodeFilter(filter)
	cacheKey := query.Encode()
	if !bypassCache {
		if records, ok := c.cachedList(cacheKey); ok {
			return records, nil
		}
	}

	header := http.Header{}
	if bypassCache {
		header.Set("Cache-Control", "no-cache")
	}
	var resp api.ListActivitiesResponse
	if err := c.do(ctx, http.MethodGet, "/v1/attivita", query, header, nil, &resp); err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	records := make([]attivita.Record, 0, len(resp.Items))
	for _, item := range resp.Items {
		records = append(records, item.Record())
	}

	c.mu.Lock()
	c.lists[cacheKey] = cachedList{records: records, at: c.now()}
	c.mu.Unlock()
	return append([]attivita.Record(nil), records...), nil
}

func (c *Client) cachedList(key string) ([]attivita.Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.lists[key]
	if !ok || c.now().Sub(entry.at) > listCacheTTL {
		return nil, false
	}
	return append([]attivita.Record(nil), entry.records...), true
}

func (c *Client) invalidate() {
	c.mu.Lock()
	clear(c.lists)
	c.mu.Unlock()
}

// CreateActivity creates an activity. The payload's idempotency key is sent so that
// repeating a create with the same key returns the first result; a payload without
// one gets a fresh key.
func (c *Client) CreateActivity(ctx context.Context, payload attivita.Payload) (attivita.Record, error) {
	key := payload.IdempotencyKey
	if key == "" {
		key = uuid.NewString()
	}
	header := http.Header{}
	header.Set("Idempotency-Key", key)
	var view api.ActivityView
	if err := c.do(ctx, http.MethodPost, "/v1/attivita", nil, header, api.NewActivityRequest(payload), &view); err != nil {
		return attivita.Record{}, fmt.Errorf("create activity: %w", err)
	}
	c.invalidate()
	return view.Record(), nil
}

// UpdateActivity replaces the writable fields of activity id.
func (c *Client) UpdateActivity(ctx context.Context, id int64, payload attivita.Payload) (attivita.Record, error) {
	var view api.ActivityView
	if err := c.do(ctx, http.MethodPut, activityPath(id), nil, nil, api.NewActivityRequest(payload), &view); err != nil {
		return attivita.Record{}, fmt.Errorf("update activity %d: %w", id, err)
	}
	c.invalidate()
	return view.Record(), nil
}

// DeleteActivity removes activity id.
func (c *Client) DeleteActivity(ctx context.Context, id int64) error {
	if err := c.do(ctx, http.MethodDelete, activityPath(id), nil, nil, nil, nil); err != nil {
		return fmt.Errorf("delete activity %d: %w", id, err)
	}
	c.invalidate()
	return nil
}

// ListClients returns the customer registry.
func (c *Client) ListClients(ctx context.Context) ([]autocomplete.Client, error) {
	var resp api.ListClientsResponse
	if err := c.do(ctx, http.MethodGet, "/v1/clienti", nil, nil, nil, &resp); err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	out := make([]autocomplete.Client, 0, len(resp.Items))
	for _, item := range resp.Items {
		out = append(out, autocomplete.Client{ID: item.ID, Name: item.Name})
	}
	return out, nil
}

func activityPath(id int64) string {
	return "/v1/attivita/" + strconv.FormatInt(id, 10)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, header http.Header, body, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}

	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return err
	}
	for k, values := range header {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	c.logger.Debug("request", "method", method, "path", path, "status", resp.StatusCode, "elapsed", time.Since(started))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		httpErr := &HTTPError{StatusCode: resp.StatusCode}
		var problem api.ErrorResponse
		if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&problem); err == nil {
			httpErr.Type, httpErr.Detail = problem.Type, problem.Detail
		}
		return httpErr
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
