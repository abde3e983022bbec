package consumer

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const insertEventLog = `
INSERT INTO attivita_event_log
    (topic, partition, kafka_offset, event_type, tenant_id, user_id, attivita_id, data, schema_id, payload, received_at)
VALUES
    (@topic, @partition, @offset, @event_type, @tenant_id, @user_id, @attivita_id, @data::date, @schema_id, @payload, @received_at)
ON CONFLICT (topic, partition, kafka_offset) DO NOTHING`

// PersistenceHandler appends every consumed activity event to attivita_event_log,
// the audit trail of activity changes per user and date.
type PersistenceHandler struct {
	pool *pgxpool.Pool
}

func NewPersistenceHandler(pool *pgxpool.Pool) *PersistenceHandler {
	return &PersistenceHandler{pool: pool}
}

// Handle stores the event once; redelivered offsets are ignored. Activity id and date
// are copied out of the payload when present so the log can be queried by row.
func (h *PersistenceHandler) Handle(ctx context.Context, msg Message) error {
	ref := activityRef(msg.Payload)
	_, err := h.pool.Exec(ctx, insertEventLog, pgx.NamedArgs{
		"topic":       msg.Topic,
		"partition":   msg.Partition,
		"offset":      msg.Offset,
		"event_type":  msg.EventType,
		"tenant_id":   msg.TenantID,
		"user_id":     msg.UserID,
		"attivita_id": ref.ActivityID,
		"data":        ref.Date,
		"schema_id":   msg.SchemaID,
		"payload":     msg.Payload,
		"received_at": msg.Timestamp,
	})
	return err
}

type eventRef struct {
	ActivityID *int64  `json:"activity_id"`
	Date       *string `json:"data"`
}

func activityRef(payload json.RawMessage) eventRef {
	var ref eventRef
	if err := json.Unmarshal(payload, &ref); err != nil {
		return eventRef{}
	}
	if ref.Date != nil && *ref.Date == "" {
		ref.Date = nil
	}
	return ref
}
