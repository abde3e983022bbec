// Package events defines the activity event payloads published through the outbox.
package events

import "time"

// Topic carries every activity event.
const Topic = "attivita_events"

// Event types, also sent in the event_type header.
const (
	TypeCreated = "attivita.created"
	TypeUpdated = "attivita.updated"
	TypeDeleted = "attivita.deleted"
)

// Types lists the known event types.
var Types = []string{TypeCreated, TypeUpdated, TypeDeleted}

// ActivityChanged is emitted when an activity is created or updated.
type ActivityChanged struct {
	ActivityID   int64     `json:"activity_id"`
	TenantID     string    `json:"tenant_id"`
	UserID       string    `json:"user_id"`
	Date         string    `json:"data"`
	ClientName   string    `json:"cliente_nome"`
	ClientID     *int64    `json:"cliente_id,omitempty"`
	ActivityKind string    `json:"rimborso"`
	KM           float64   `json:"km"`
	Allowance    bool      `json:"indennita"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// ActivityDeleted is emitted when an activity is removed.
type ActivityDeleted struct {
	ActivityID int64     `json:"activity_id"`
	TenantID   string    `json:"tenant_id"`
	UserID     string    `json:"user_id"`
	Date       string    `json:"data"`
	OccurredAt time.Time `json:"occurred_at"`
}
