package outbox

import "github.com/baldellimtt/gestionale-capoferri-sub001/internal/events"

const activityChangedSchema = `{
  "type": "object",
  "title": "AttivitaChanged",
  "properties": {
    "activity_id": {"type": "integer"},
    "tenant_id": {"type": "string"},
    "user_id": {"type": "string"},
    "data": {"type": "string", "format": "date"},
    "cliente_nome": {"type": "string"},
    "cliente_id": {"type": "integer"},
    "rimborso": {"type": "string"},
    "km": {"type": "number", "minimum": 0},
    "indennita": {"type": "boolean"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["activity_id", "tenant_id", "user_id", "data", "cliente_nome", "rimborso", "km", "indennita", "occurred_at"],
  "additionalProperties": false
}`

const activityDeletedSchema = `{
  "type": "object",
  "title": "AttivitaDeleted",
  "properties": {
    "activity_id": {"type": "integer"},
    "tenant_id": {"type": "string"},
    "user_id": {"type": "string"},
    "data": {"type": "string", "format": "date"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["activity_id", "tenant_id", "user_id", "data", "occurred_at"],
  "additionalProperties": false
}`

// SchemaCatalogEntry maps event type to schema definition.
type SchemaCatalogEntry struct {
	Schema string
}

var schemaCatalog = map[string]SchemaCatalogEntry{
	events.TypeCreated: {Schema: activityChangedSchema},
	events.TypeUpdated: {Schema: activityChangedSchema},
	events.TypeDeleted: {Schema: activityDeletedSchema},
}
