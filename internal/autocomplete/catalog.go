package autocomplete

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// DefaultTTL is how long a fetched registry is reused.
const DefaultTTL = 5 * time.Minute

// Source fetches the customer registry.
type Source interface {
	ListClients(ctx context.Context) ([]Client, error)
}

// Catalog caches the customer registry.
type Catalog struct {
	source Source
	ttl    time.Duration
	now    func() time.Time
	logger *log.Logger

	mu      sync.Mutex
	clients []Client
	fetched time.Time
}

// CatalogOption configures a Catalog.
type CatalogOption func(*Catalog)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) CatalogOption {
	return func(c *Catalog) {
		c.ttl = ttl
	}
}

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) CatalogOption {
	return func(c *Catalog) {
		c.now = now
	}
}

// WithLogger overrides the catalog logger.
func WithLogger(logger *log.Logger) CatalogOption {
	return func(c *Catalog) {
		c.logger = logger
	}
}

// NewCatalog constructs a Catalog over source.
func NewCatalog(source Source, opts ...CatalogOption) *Catalog {
	c := &Catalog{
		source: source,
		ttl:    DefaultTTL,
		now:    time.Now,
		logger: log.NewWithOptions(os.Stderr, log.Options{Prefix: "autocomplete"}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Clients returns the registry, refreshing it once the TTL elapsed. A failed refresh
// keeps serving the previous copy when there is one.
func (c *Catalog) Clients(ctx context.Context) ([]Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.clients != nil && c.now().Sub(c.fetched) < c.ttl {
		return c.clients, nil
	}
	clients, err := c.source.ListClients(ctx)
	if err != nil {
		if c.clients != nil {
			c.logger.Warn("serving stale client registry", "err", err)
			return c.clients, nil
		}
		return nil, err
	}
	if clients == nil {
		clients = []Client{}
	}
	c.clients = clients
	c.fetched = c.now()
	return clients, nil
}

// Suggest ranks the registry against query.
func (c *Catalog) Suggest(ctx context.Context, query string, limit int) ([]Client, error) {
	clients, err := c.Clients(ctx)
	if err != nil {
		return nil, err
	}
	return Suggest(clients, query, limit), nil
}

// Resolve finds the client whose folded name equals name.
func (c *Catalog) Resolve(ctx context.Context, name string) (Client, bool, error) {
	clients, err := c.Clients(ctx)
	if err != nil {
		return Client{}, false, err
	}
	want := Fold(name)
	for _, client := range clients {
		if Fold(client.Name) == want {
			return client, true, nil
		}
	}
	return Client{}, false, nil
}

// Invalidate forces the next call to refetch.
func (c *Catalog) Invalidate() {
	c.mu.Lock()
	c.clients = nil
	c.mu.Unlock()
}
