package events

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Kafka headers set on every published activity event.
const (
	HeaderEventType     = "event_type"
	HeaderTenantID      = "tenant_id"
	HeaderUserID        = "user_id"
	HeaderSchemaSubject = "schema_subject"
)

const (
	magicByte  = 0
	frameBytes = 5
)

var (
	ErrShortFrame = errors.New("events: frame shorter than header")
	ErrMagicByte  = errors.New("events: unknown magic byte")
)

// Frame prefixes payload with the schema-registry wire header: a zero magic byte and
// the big-endian schema id.
func Frame(schemaID int, payload []byte) []byte {
	out := make([]byte, frameBytes+len(payload))
	out[0] = magicByte
	binary.BigEndian.PutUint32(out[1:frameBytes], uint32(schemaID))
	copy(out[frameBytes:], payload)
	return out
}

// Unframe splits a framed value into schema id and a copy of the payload.
func Unframe(value []byte) (int, []byte, error) {
	if len(value) < frameBytes {
		return 0, nil, fmt.Errorf("%w: %d bytes", ErrShortFrame, len(value))
	}
	if value[0] != magicByte {
		return 0, nil, fmt.Errorf("%w: %d", ErrMagicByte, value[0])
	}
	schemaID := int(binary.BigEndian.Uint32(value[1:frameBytes]))
	return schemaID, append([]byte(nil), value[frameBytes:]...), nil
}
