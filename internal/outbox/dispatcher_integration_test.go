//go:build integration

package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/baldellimtt/gestionale-capoferri-sub001/internal/events"
)

func TestDispatcherPublishesMessages(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t)

	tenantID := uuid.NewString()
	require.NotZero(t, seedOutbox(t, ctx, pool, tenantID, "u1", events.TypeCreated))

	producer := &stubProducer{}
	dispatcher := newTestDispatcher(pool, producer, &stubRegistry{id: 42})
	beforeDelivered := testutil.ToFloat64(publishedCounter.WithLabelValues(events.TypeCreated, outcomeDelivered))

	require.NoError(t, dispatcher.processBatch(ctx))

	require.Len(t, producer.writes, 1)
	require.Equal(t, events.Topic, producer.writes[0].topic)
	require.Len(t, producer.writes[0].messages, 1)
	require.Equal(t, "u1", headerValue(producer.writes[0].messages[0], events.HeaderUserID))
	require.InDelta(t, beforeDelivered+1, testutil.ToFloat64(publishedCounter.WithLabelValues(events.TypeCreated, outcomeDelivered)), 0.0001)

	var published int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox WHERE published_at IS NOT NULL`).Scan(&published))
	require.Equal(t, 1, published)

	require.NoError(t, dispatcher.processBatch(ctx))
	require.Len(t, producer.writes, 1, "published events are not delivered twice")
}

func TestDispatcherRoutesMessagesToDLQOnFailure(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t)

	tenantID := uuid.NewString()
	require.NotZero(t, seedOutbox(t, ctx, pool, tenantID, "u1", events.TypeDeleted))

	dispatcher := newTestDispatcher(pool, &stubProducer{err: errors.New("kafka write failed")}, &stubRegistry{id: 7})
	beforeFailed := testutil.ToFloat64(publishedCounter.WithLabelValues(events.TypeDeleted, outcomeFailed))
	beforeDLQ := testutil.ToFloat64(dlqCounter.WithLabelValues(events.Topic))

	require.NoError(t, dispatcher.processBatch(ctx))

	require.InDelta(t, beforeFailed+1, testutil.ToFloat64(publishedCounter.WithLabelValues(events.TypeDeleted, outcomeFailed)), 0.0001)
	require.InDelta(t, beforeDLQ+1, testutil.ToFloat64(dlqCounter.WithLabelValues(events.Topic)), 0.0001)

	var dlqCount int
	var userID, reason string
	err := pool.QueryRow(ctx, `SELECT COUNT(*), MAX(user_id), MAX(reason) FROM outbox_dlq WHERE tenant_id = $1`, tenantID).Scan(&dlqCount, &userID, &reason)
	require.NoError(t, err)
	require.Equal(t, 1, dlqCount)
	require.Equal(t, "u1", userID)
	require.Contains(t, reason, "kafka write failed")
}

func TestDispatcherUnknownSchemaMovesEventsToDLQ(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgres(t)

	eventID := seedOutbox(t, ctx, pool, uuid.NewString(), "u2", "attivita.archived")
	producer := &stubProducer{}
	registry := &stubRegistry{id: 99}
	dispatcher := newTestDispatcher(pool, producer, registry)

	require.NoError(t, dispatcher.processBatch(ctx))
	require.Empty(t, producer.writes)
	require.Empty(t, registry.calls)

	var reason string
	require.NoError(t, pool.QueryRow(ctx, `SELECT reason FROM outbox_dlq WHERE event_id = $1`, eventID).Scan(&reason))
	require.Contains(t, reason, "no schema metadata for event_type=attivita.archived")

	var publishedAt time.Time
	require.NoError(t, pool.QueryRow(ctx, `SELECT published_at FROM outbox WHERE event_id = $1`, eventID).Scan(&publishedAt))
	require.False(t, publishedAt.IsZero())
}

func newTestDispatcher(pool *pgxpool.Pool, producer *stubProducer, registry *stubRegistry) *Dispatcher {
	return NewDispatcher(pool, producer, registry, 10*time.Millisecond, 5, WithLogger(log.New(io.Discard)))
}

func setupPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pg, err := postgrescontainer.Run(ctx, "postgres:16-alpine",
		postgrescontainer.WithDatabase("gestionale"),
		postgrescontainer.WithUsername("gestionale"),
		postgrescontainer.WithPassword("gestionale"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, waitForDatabase(ctx, connStr))

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	contents, err := os.ReadFile(filepath.Join(filepath.Dir(file), "../../db/postgres/migrations/0001_attivita.up.sql"))
	require.NoError(t, err)
	_, err = pool.Exec(ctx, string(contents))
	require.NoError(t, err)
	return pool
}

func seedOutbox(t *testing.T, ctx context.Context, pool *pgxpool.Pool, tenantID, userID, eventType string) int64 {
	t.Helper()

	aggregateID := uuid.NewString()
	payload, err := json.Marshal(map[string]any{"activity_id": 1, "tenant_id": tenantID, "user_id": userID})
	require.NoError(t, err)

	var eventID int64
	err = pool.QueryRow(ctx,
		`INSERT INTO outbox (tenant_id, user_id, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
         VALUES ($1,$2,'attivita',$3,$4,$5,$6,$7,$8,$9)
         RETURNING event_id`,
		tenantID, userID, aggregateID, eventType, events.Topic, events.Topic+"-value", tenantID+":"+userID, payload, aggregateID+":"+eventType,
	).Scan(&eventID)
	require.NoError(t, err)
	return eventID
}

func waitForDatabase(ctx context.Context, connStr string) error {
	deadline := time.Now().Add(30 * time.Second)
	for {
		pool, err := pgxpool.New(ctx, connStr)
		if err == nil {
			err = pool.Ping(ctx)
			pool.Close()
			if err == nil {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(time.Second)
	}
}
