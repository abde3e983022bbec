package outbox

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	insertDLQQuery = `INSERT INTO outbox_dlq
    (event_id, tenant_id, user_id, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, reason)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`

	markPublishedQuery = `UPDATE outbox SET published_at = NOW() WHERE event_id = ANY($1)`
)

// DLQWriter parks outbox events that could not be delivered.
type DLQWriter struct {
	pool *pgxpool.Pool
}

func NewDLQWriter(pool *pgxpool.Pool) *DLQWriter {
	return &DLQWriter{pool: pool}
}

// Park copies messages into outbox_dlq and marks them published in one transaction,
// so an event is either still pending or parked, never both.
func (w *DLQWriter) Park(ctx context.Context, messages []Message, reason string) error {
	return pgx.BeginFunc(ctx, w.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, msg := range messages {
			batch.Queue(insertDLQQuery,
				msg.EventID, msg.TenantID, msg.UserID, msg.AggregateType, msg.AggregateID, msg.EventType,
				msg.Topic, msg.SchemaSubject, msg.PartitionKey, msg.Payload,
				fmt.Sprintf("%s (topic=%s)", reason, msg.Topic))
		}
		batch.Queue(markPublishedQuery, eventIDs(messages))
		return tx.SendBatch(ctx, batch).Close()
	})
}

func eventIDs(messages []Message) []int64 {
	ids := make([]int64, 0, len(messages))
	for _, msg := range messages {
		ids = append(ids, msg.EventID)
	}
	return ids
}
