// Package domain defines the business logic for the activity service.
package domain

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/baldellimtt/gestionale-capoferri-sub001/internal/attivita"
)

var (
	// ErrActivityNotFound is returned when an activity cannot be located.
	ErrActivityNotFound = attivita.ErrNotFound
	// ErrValidation wraps every rejected payload.
	ErrValidation = errors.New("validation failed")
)

// ActivityRepository captures persistence operations.
type ActivityRepository interface {
	FindByIdempotency(ctx context.Context, tenantID, userID, idempotencyKey string) (*Activity, error)
	Create(ctx context.Context, activity Activity, idempotencyKey string) (Activity, error)
	Update(ctx context.Context, activity Activity) (Activity, error)
	Delete(ctx context.Context, tenantID string, id int64) error
	Get(ctx context.Context, tenantID string, id int64) (*Activity, error)
	List(ctx context.Context, tenantID string, filter attivita.Filter) ([]Activity, error)
}

// ClientRepository lists the customer registry.
type ClientRepository interface {
	ListClients(ctx context.Context, tenantID string) ([]Client, error)
}

// Service orchestrates activity workflows.
type Service struct {
	repo    ActivityRepository
	clients ClientRepository
	now     func() time.Time
}

// NewService constructs a Service.
func NewService(repo ActivityRepository, clients ClientRepository) *Service {
	return &Service{repo: repo, clients: clients, now: time.Now}
}

// CreateActivityInput captures the payload from the API layer.
type CreateActivityInput struct {
	TenantID       string
	Payload        attivita.Payload
	IdempotencyKey string
}

// CreateActivity validates the payload and stores a new activity. A repeated
// idempotency key returns the activity created the first time and replay=true.
func (s *Service) CreateActivity(ctx context.Context, input CreateActivityInput) (*Activity, bool, error) {
	if err := ValidatePayload(input.Payload); err != nil {
		return nil, false, err
	}
	if existing, err := s.repo.FindByIdempotency(ctx, input.TenantID, input.Payload.UserID, input.IdempotencyKey); err == nil && existing != nil {
		return existing, true, nil
	}

	now := s.now().UTC()
	activity := Activity{TenantID: input.TenantID, CreatedAt: now, UpdatedAt: now}
	activity.apply(input.Payload)

	created, err := s.repo.Create(ctx, activity, input.IdempotencyKey)
	if err != nil {
		return nil, false, err
	}
	return &created, false, nil
}

// UpdateActivity replaces the writable fields of an existing activity.
func (s *Service) UpdateActivity(ctx context.Context, tenantID string, id int64, payload attivita.Payload) (*Activity, error) {
	if err := ValidatePayload(payload); err != nil {
		return nil, err
	}
	current, err := s.GetActivity(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	current.apply(payload)
	current.UpdatedAt = s.now().UTC()

	updated, err := s.repo.Update(ctx, *current)
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteActivity removes an activity. Missing activities yield ErrActivityNotFound.
func (s *Service) DeleteActivity(ctx context.Context, tenantID string, id int64) error {
	return s.repo.Delete(ctx, tenantID, id)
}

// GetActivity fetches by ID.
func (s *Service) GetActivity(ctx context.Context, tenantID string, id int64) (*Activity, error) {
	activity, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if activity == nil {
		return nil, ErrActivityNotFound
	}
	return activity, nil
}

// ListActivities returns the activities matching filter, newest date first.
func (s *Service) ListActivities(ctx context.Context, tenantID string, filter attivita.Filter) ([]Activity, error) {
	if strings.TrimSpace(filter.UserID) == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrValidation)
	}
	return s.repo.List(ctx, tenantID, filter)
}

// ListClients returns the customer registry of a tenant.
func (s *Service) ListClients(ctx context.Context, tenantID string) ([]Client, error) {
	if s.clients == nil {
		return nil, nil
	}
	return s.clients.ListClients(ctx, tenantID)
}

// ValidatePayload enforces the server-side rules. Incomplete rows are accepted:
// the table creates empty rows and fills them while the user types.
func ValidatePayload(p attivita.Payload) error {
	if strings.TrimSpace(p.UserID) == "" {
		return fmt.Errorf("%w: user_id is required", ErrValidation)
	}
	if _, err := attivita.ParseDate(p.Date); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if math.IsNaN(p.KM) || math.IsInf(p.KM, 0) || p.KM < 0 {
		return fmt.Errorf("%w: km must be >= 0", ErrValidation)
	}
	if !p.ActivityKind.Valid() {
		return fmt.Errorf("%w: unknown activity kind %q", ErrValidation, p.ActivityKind)
	}
	return nil
}
