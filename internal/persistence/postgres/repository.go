package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/baldellimtt/gestionale-capoferri-sub001/internal/attivita"
	"github.com/baldellimtt/gestionale-capoferri-sub001/internal/domain"
	"github.com/baldellimtt/gestionale-capoferri-sub001/internal/events"
	"github.com/baldellimtt/gestionale-capoferri-sub001/internal/observability"
)

const activityColumns = `attivita_id, tenant_id, user_id, to_char(data, 'YYYY-MM-DD'), cliente_nome, cliente_id, rimborso, km, indennita, created_at, updated_at`

// Repository provides Postgres-backed persistence for activities, clients and outbox events.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// withTenant runs fn in a transaction scoped to tenantID by row level security.
func (r *Repository) withTenant(ctx context.Context, tenantID string, fn func(pgx.Tx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT set_config('app.tenant_id', $1, true)", tenantID); err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func scanActivity(row pgx.Row) (domain.Activity, error) {
	var (
		a    domain.Activity
		kind string
	)
	err := row.Scan(&a.ID, &a.TenantID, &a.UserID, &a.Date, &a.ClientName, &a.ClientID, &kind, &a.KM, &a.Allowance, &a.CreatedAt, &a.UpdatedAt)
	a.ActivityKind = attivita.Kind(kind)
	return a, err
}

// FindByIdempotency checks if an activity already exists for the supplied idempotency key.
func (r *Repository) FindByIdempotency(ctx context.Context, tenantID, userID, idempotencyKey string) (*domain.Activity, error) {
	if idempotencyKey == "" {
		return nil, nil
	}
	var found *domain.Activity
	err := r.withTenant(ctx, tenantID, func(tx pgx.Tx) error {
		a, err := scanActivity(tx.QueryRow(ctx,
			`SELECT `+activityColumns+` FROM attivita WHERE tenant_id=$1 AND user_id=$2 AND idempotency_key=$3`,
			tenantID, userID, idempotencyKey))
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		found = &a
		return nil
	})
	return found, err
}

// Create persists the activity and records its outbox event inside a single transaction.
func (r *Repository) Create(ctx context.Context, a domain.Activity, idempotencyKey string) (domain.Activity, error) {
	err := r.withTenant(ctx, a.TenantID, func(tx pgx.Tx) error {
		const insert = `INSERT INTO attivita (tenant_id, user_id, data, cliente_nome, cliente_id, rimborso, km, indennita, idempotency_key, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11) RETURNING attivita_id`
		if err := tx.QueryRow(ctx, insert,
			a.TenantID, a.UserID, a.Date, a.ClientName, a.ClientID, string(a.ActivityKind), a.KM, a.Allowance,
			nullIfEmpty(idempotencyKey), a.CreatedAt, a.UpdatedAt,
		).Scan(&a.ID); err != nil {
			return err
		}
		return r.insertOutbox(ctx, tx, a, events.TypeCreated, changedEvent(a))
	})
	if err != nil {
		return domain.Activity{}, err
	}
	observability.RecordActivityPersisted(a.UpdatedAt)
	return a, nil
}

// Update overwrites the writable fields and records an update event.
func (r *Repository) Update(ctx context.Context, a domain.Activity) (domain.Activity, error) {
	err := r.withTenant(ctx, a.TenantID, func(tx pgx.Tx) error {
		const update = `UPDATE attivita SET user_id=$3, data=$4, cliente_nome=$5, cliente_id=$6, rimborso=$7, km=$8, indennita=$9, updated_at=$10
        WHERE tenant_id=$1 AND attivita_id=$2 RETURNING created_at`
		err := tx.QueryRow(ctx, update,
			a.TenantID, a.ID, a.UserID, a.Date, a.ClientName, a.ClientID, string(a.ActivityKind), a.KM, a.Allowance, a.UpdatedAt,
		).Scan(&a.CreatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrActivityNotFound
		}
		if err != nil {
			return err
		}
		return r.insertOutbox(ctx, tx, a, events.TypeUpdated, changedEvent(a))
	})
	if err != nil {
		return domain.Activity{}, err
	}
	observability.RecordActivityPersisted(a.UpdatedAt)
	return a, nil
}

// Delete removes the activity and records a delete event.
func (r *Repository) Delete(ctx context.Context, tenantID string, id int64) error {
	return r.withTenant(ctx, tenantID, func(tx pgx.Tx) error {
		a, err := scanActivity(tx.QueryRow(ctx,
			`DELETE FROM attivita WHERE tenant_id=$1 AND attivita_id=$2 RETURNING `+activityColumns, tenantID, id))
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrActivityNotFound
		}
		if err != nil {
			return err
		}
		a.UpdatedAt = time.Now().UTC()
		return r.insertOutbox(ctx, tx, a, events.TypeDeleted, events.ActivityDeleted{
			ActivityID: a.ID,
			TenantID:   a.TenantID,
			UserID:     a.UserID,
			Date:       a.Date,
			OccurredAt: a.UpdatedAt,
		})
	})
}

// Get retrieves an activity by ID, or nil when the tenant has none.
func (r *Repository) Get(ctx context.Context, tenantID string, id int64) (*domain.Activity, error) {
	var found *domain.Activity
	err := r.withTenant(ctx, tenantID, func(tx pgx.Tx) error {
		a, err := scanActivity(tx.QueryRow(ctx,
			`SELECT `+activityColumns+` FROM attivita WHERE tenant_id=$1 AND attivita_id=$2`, tenantID, id))
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		found = &a
		return nil
	})
	return found, err
}

// List returns a user's activities inside the filter bounds, newest date first.
func (r *Repository) List(ctx context.Context, tenantID string, filter attivita.Filter) ([]domain.Activity, error) {
	args := []interface{}{tenantID, filter.UserID}
	query := `SELECT ` + activityColumns + ` FROM attivita WHERE tenant_id=$1 AND user_id=$2`
	if filter.From != "" {
		args = append(args, filter.From)
		query += fmt.Sprintf(" AND data >= $%d", len(args))
	}
	if filter.To != "" {
		args = append(args, filter.To)
		query += fmt.Sprintf(" AND data <= $%d", len(args))
	}
	query += ` ORDER BY data DESC, attivita_id ASC`

	results := make([]domain.Activity, 0)
	err := r.withTenant(ctx, tenantID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			a, err := scanActivity(rows)
			if err != nil {
				return err
			}
			results = append(results, a)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// ListClients implements domain.ClientRepository.
func (r *Repository) ListClients(ctx context.Context, tenantID string) ([]domain.Client, error) {
	clients := make([]domain.Client, 0)
	err := r.withTenant(ctx, tenantID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT cliente_id, tenant_id, nome FROM clienti WHERE tenant_id=$1 ORDER BY nome`, tenantID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var c domain.Client
			if err := rows.Scan(&c.ID, &c.TenantID, &c.Name); err != nil {
				return err
			}
			clients = append(clients, c)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return clients, nil
}

// CreateClient adds an entry to the customer registry.
func (r *Repository) CreateClient(ctx context.Context, tenantID, name string) (domain.Client, error) {
	c := domain.Client{TenantID: tenantID, Name: name}
	err := r.withTenant(ctx, tenantID, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, `INSERT INTO clienti (tenant_id, nome) VALUES ($1,$2) RETURNING cliente_id`, tenantID, name).Scan(&c.ID)
	})
	return c, err
}

func changedEvent(a domain.Activity) events.ActivityChanged {
	return events.ActivityChanged{
		ActivityID:   a.ID,
		TenantID:     a.TenantID,
		UserID:       a.UserID,
		Date:         a.Date,
		ClientName:   a.ClientName,
		ClientID:     a.ClientID,
		ActivityKind: string(a.ActivityKind),
		KM:           a.KM,
		Allowance:    a.Allowance,
		OccurredAt:   a.UpdatedAt,
	}
}

func (r *Repository) insertOutbox(ctx context.Context, tx pgx.Tx, a domain.Activity, eventType string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	meta, ok := eventCatalog[eventType]
	if !ok {
		return fmt.Errorf("unknown event type: %s", eventType)
	}

	aggregateID := strconv.FormatInt(a.ID, 10)
	dedupeKey := fmt.Sprintf("%s:%s:%d", aggregateID, eventType, a.UpdatedAt.UnixNano())

	const stmt = `INSERT INTO outbox (tenant_id, user_id, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`

	_, err = tx.Exec(ctx, stmt,
		a.TenantID,
		a.UserID,
		"attivita",
		aggregateID,
		eventType,
		meta.Topic,
		meta.SchemaSubject,
		meta.PartitionKeyFn(a),
		body,
		dedupeKey,
	)
	return err
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}

// EventMetadata describes how to route an outbox event.
type EventMetadata struct {
	Topic          string
	SchemaSubject  string
	PartitionKeyFn func(domain.Activity) string
}

func byUser(a domain.Activity) string {
	return fmt.Sprintf("%s:%s", a.TenantID, a.UserID)
}

var eventCatalog = map[string]EventMetadata{
	events.TypeCreated: {Topic: events.Topic, SchemaSubject: events.Topic + "-value", PartitionKeyFn: byUser},
	events.TypeUpdated: {Topic: events.Topic, SchemaSubject: events.Topic + "-value", PartitionKeyFn: byUser},
	events.TypeDeleted: {Topic: events.Topic, SchemaSubject: events.Topic + "-deleted-value", PartitionKeyFn: byUser},
}
