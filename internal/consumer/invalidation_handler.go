package consumer

import (
	"context"
	"encoding/json"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// Notifier is bumped when a relevant activity changed elsewhere.
type Notifier interface {
	NotifyChanged() uint64
}

// InvalidationHandler bumps the local store version for events about one user, so a
// mounted table reloads after a change made by another process.
type InvalidationHandler struct {
	notifier  Notifier
	tenantID  string
	userID    string
	eventType string
	logger    *log.Logger
}

// InvalidationOption configures an InvalidationHandler.
type InvalidationOption func(*InvalidationHandler)

// WithTenant restricts the handler to events of tenantID.
func WithTenant(tenantID string) InvalidationOption {
	return func(h *InvalidationHandler) {
		h.tenantID = tenantID
	}
}

// WithInvalidationLogger overrides the handler logger.
func WithInvalidationLogger(logger *log.Logger) InvalidationOption {
	return func(h *InvalidationHandler) {
		h.logger = logger
	}
}

// NewInvalidationHandler watches events of userID. An empty userID matches every user.
func NewInvalidationHandler(notifier Notifier, userID string, opts ...InvalidationOption) *InvalidationHandler {
	h := &InvalidationHandler{
		notifier:  notifier,
		userID:    userID,
		eventType: "attivita.",
		logger:    log.NewWithOptions(os.Stderr, log.Options{Prefix: "consumer"}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle notifies on matching events. Unrelated events are acknowledged silently.
func (h *InvalidationHandler) Handle(_ context.Context, msg Message) error {
	if !strings.HasPrefix(msg.EventType, h.eventType) {
		return nil
	}
	if h.tenantID != "" && msg.TenantID != h.tenantID {
		return nil
	}
	if h.userID != "" && eventUser(msg) != h.userID {
		return nil
	}
	version := h.notifier.NotifyChanged()
	h.logger.Debug("store invalidated", "event_type", msg.EventType, "version", version)
	return nil
}

// eventUser prefers the user_id header and falls back to the payload for records
// produced before the header existed.
func eventUser(msg Message) string {
	if msg.UserID != "" {
		return msg.UserID
	}
	var body struct {
		UserID string `json:"user_id"`
	}
	if err := json.Unmarshal(msg.Payload, &body); err != nil {
		return ""
	}
	return body.UserID
}
