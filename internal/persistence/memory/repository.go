// Package memory provides an in-process repository for local development and tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/baldellimtt/gestionale-capoferri-sub001/internal/attivita"
	"github.com/baldellimtt/gestionale-capoferri-sub001/internal/domain"
	"github.com/baldellimtt/gestionale-capoferri-sub001/internal/observability"
)

// Repository stores activities and clients in memory.
type Repository struct {
	mu          sync.RWMutex
	nextID      int64
	activities  map[int64]domain.Activity
	idempotency map[string]int64
	clients     []domain.Client
}

// NewRepository constructs an empty Repository.
func NewRepository() *Repository {
	return &Repository{
		activities:  make(map[int64]domain.Activity),
		idempotency: make(map[string]int64),
	}
}

// SeedClients adds registry entries for tenantID.
func (r *Repository) SeedClients(tenantID string, names ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range names {
		r.nextID++
		r.clients = append(r.clients, domain.Client{ID: r.nextID, TenantID: tenantID, Name: name})
	}
}

func idempotencyKey(tenantID, userID, key string) string {
	return tenantID + "\x00" + userID + "\x00" + key
}

// FindByIdempotency implements domain.ActivityRepository.
func (r *Repository) FindByIdempotency(_ context.Context, tenantID, userID, key string) (*domain.Activity, error) {
	if strings.TrimSpace(key) == "" {
		return nil, nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.idempotency[idempotencyKey(tenantID, userID, key)]
	if !ok {
		return nil, nil
	}
	a, ok := r.activities[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

// Create implements domain.ActivityRepository.
func (r *Repository) Create(_ context.Context, a domain.Activity, key string) (domain.Activity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	a.ID = r.nextID
	r.activities[a.ID] = a
	if strings.TrimSpace(key) != "" {
		r.idempotency[idempotencyKey(a.TenantID, a.UserID, key)] = a.ID
	}
	observability.RecordActivityPersisted(a.UpdatedAt)
	return a, nil
}

// Update implements domain.ActivityRepository.
func (r *Repository) Update(_ context.Context, a domain.Activity) (domain.Activity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.activities[a.ID]
	if !ok || current.TenantID != a.TenantID {
		return domain.Activity{}, domain.ErrActivityNotFound
	}
	a.CreatedAt = current.CreatedAt
	r.activities[a.ID] = a
	observability.RecordActivityPersisted(a.UpdatedAt)
	return a, nil
}

// Delete implements domain.ActivityRepository.
func (r *Repository) Delete(_ context.Context, tenantID string, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.activities[id]
	if !ok || current.TenantID != tenantID {
		return domain.ErrActivityNotFound
	}
	delete(r.activities, id)
	return nil
}

// Get implements domain.ActivityRepository.
func (r *Repository) Get(_ context.Context, tenantID string, id int64) (*domain.Activity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.activities[id]
	if !ok || a.TenantID != tenantID {
		return nil, nil
	}
	return &a, nil
}

// List implements domain.ActivityRepository.
func (r *Repository) List(_ context.Context, tenantID string, filter attivita.Filter) ([]domain.Activity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Activity, 0)
	for _, a := range r.activities {
		if a.TenantID != tenantID || a.UserID != filter.UserID || !filter.Matches(a.Date) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date > out[j].Date
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// ListClients implements domain.ClientRepository.
func (r *Repository) ListClients(_ context.Context, tenantID string) ([]domain.Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Client, 0, len(r.clients))
	for _, c := range r.clients {
		if c.TenantID == tenantID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
