// Package outbox delivers activity events recorded in the outbox table to Kafka.
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/segmentio/kafka-go"

	"github.com/baldellimtt/gestionale-capoferri-sub001/internal/events"
)

type messageWriter interface {
	WriteMessages(context.Context, string, ...kafka.Message) error
}

type schemaRegistrar interface {
	EnsureSchema(context.Context, string, string) (int, error)
}

// Dispatcher drains the outbox table and delivers events to Kafka using Schema Registry metadata.
type Dispatcher struct {
	pool             *pgxpool.Pool
	producer         messageWriter
	registry         schemaRegistrar
	dlq              *DLQWriter
	logger           *log.Logger
	pollInterval     time.Duration
	batchSize        int
	schemaIDCache    sync.Map
	shutdownComplete chan struct{}
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger overrides the dispatcher logger.
func WithLogger(logger *log.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(pool *pgxpool.Pool, producer messageWriter, registry schemaRegistrar, pollInterval time.Duration, batchSize int, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		pool:             pool,
		producer:         producer,
		registry:         registry,
		dlq:              NewDLQWriter(pool),
		logger:           log.NewWithOptions(os.Stderr, log.Options{Prefix: "outbox"}),
		pollInterval:     pollInterval,
		batchSize:        batchSize,
		shutdownComplete: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start launches the polling loop. It should be called in a goroutine.
func (d *Dispatcher) Start(ctx context.Context) {
	ticker := time.NewTicker(d.pollInterval)
	defer func() {
		ticker.Stop()
		close(d.shutdownComplete)
	}()

	for {
		if err := d.processBatch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Error("dispatch batch", "err", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Wait waits until dispatcher stops.
func (d *Dispatcher) Wait() {
	<-d.shutdownComplete
}

func (d *Dispatcher) processBatch(ctx context.Context) error {
	started := time.Now()

	messages, err := d.fetchAndClaim(ctx)
	if err != nil || len(messages) == 0 {
		return err
	}

	outcome := outcomeDelivered
	if err := d.deliver(ctx, messages); err != nil {
		outcome = outcomeFailed
		d.logger.Warn("delivery failed, parking batch in dlq", "events", len(messages), "err", err)
		if err := d.dlq.Park(ctx, messages, err.Error()); err != nil {
			return err
		}
		for _, msg := range messages {
			dlqCounter.WithLabelValues(msg.Topic).Inc()
		}
	} else {
		if _, err := d.pool.Exec(ctx, markPublishedQuery, eventIDs(messages)); err != nil {
			return err
		}
		d.logger.Debug("delivered", "events", len(messages))
	}
	recordBatch(messages, outcome, started)
	return nil
}

func (d *Dispatcher) fetchAndClaim(ctx context.Context) (messages []Message, err error) {
	tx, err := d.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	const query = `SELECT event_id, tenant_id, user_id, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload
        FROM outbox
        WHERE published_at IS NULL
        ORDER BY event_id
        LIMIT $1
        FOR UPDATE SKIP LOCKED`

	rows, err := tx.Query(ctx, query, d.batchSize)
	if err != nil {
		return nil, err
	}
	messages, err = pgx.CollectRows(rows, pgx.RowToStructByName[Message])
	if err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		_ = tx.Rollback(ctx)
		return nil, nil
	}

	if _, err = tx.Exec(ctx, `UPDATE outbox SET claimed_at = NOW() WHERE event_id = ANY($1)`, eventIDs(messages)); err != nil {
		return nil, err
	}
	if err = tx.Commit(ctx); err != nil {
		return nil, err
	}
	return messages, nil
}

func (d *Dispatcher) deliver(ctx context.Context, messages []Message) error {
	batches := make(map[string][]kafka.Message)
	topics := make([]string, 0)

	for _, msg := range messages {
		record, err := d.encode(ctx, msg)
		if err != nil {
			return err
		}
		if _, ok := batches[msg.Topic]; !ok {
			topics = append(topics, msg.Topic)
		}
		batches[msg.Topic] = append(batches[msg.Topic], record)
	}

	for _, topic := range topics {
		if err := d.producer.WriteMessages(ctx, topic, batches[topic]...); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) encode(ctx context.Context, msg Message) (kafka.Message, error) {
	meta, ok := schemaCatalog[msg.EventType]
	if !ok {
		return kafka.Message{}, fmt.Errorf("no schema metadata for event_type=%s", msg.EventType)
	}

	cacheKey := msg.SchemaSubject + "::" + meta.Schema
	var schemaID int
	if cached, found := d.schemaIDCache.Load(cacheKey); found {
		schemaID = cached.(int)
	} else {
		id, err := d.registry.EnsureSchema(ctx, msg.SchemaSubject, meta.Schema)
		if err != nil {
			return kafka.Message{}, err
		}
		d.schemaIDCache.Store(cacheKey, id)
		schemaID = id
	}

	return kafka.Message{
		Key:   []byte(msg.PartitionKey),
		Value: events.Frame(schemaID, msg.Payload),
		Time:  time.Now().UTC(),
		Headers: []kafka.Header{
			{Key: events.HeaderEventType, Value: []byte(msg.EventType)},
			{Key: events.HeaderTenantID, Value: []byte(msg.TenantID)},
			{Key: events.HeaderUserID, Value: []byte(msg.UserID)},
			{Key: events.HeaderSchemaSubject, Value: []byte(msg.SchemaSubject)},
		},
	}, nil
}

// Message represents a row fetched from outbox.
type Message struct {
	EventID       int64           `db:"event_id"`
	TenantID      string          `db:"tenant_id"`
	UserID        string          `db:"user_id"`
	AggregateType string          `db:"aggregate_type"`
	AggregateID   string          `db:"aggregate_id"`
	EventType     string          `db:"event_type"`
	Topic         string          `db:"topic"`
	SchemaSubject string          `db:"schema_subject"`
	PartitionKey  string          `db:"partition_key"`
	Payload       json.RawMessage `db:"payload"`
}
