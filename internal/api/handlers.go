// Package api exposes HTTP handlers for the activity service.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/baldellimtt/gestionale-capoferri-sub001/internal/attivita"
	"github.com/baldellimtt/gestionale-capoferri-sub001/internal/auth"
	"github.com/baldellimtt/gestionale-capoferri-sub001/internal/domain"
	"github.com/baldellimtt/gestionale-capoferri-sub001/internal/persistence"
)

const (
	activitiesPath = "/v1/attivita"
	clientsPath    = "/v1/clienti"
)

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service *domain.Service
	logger  *log.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger overrides the handler logger.
func WithLogger(logger *log.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service, opts ...Option) *Handler {
	h := &Handler{
		service: service,
		logger:  log.NewWithOptions(os.Stderr, log.Options{Prefix: "api"}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc(activitiesPath, h.activities)
	mux.HandleFunc(activitiesPath+"/", h.activityByID)
	mux.HandleFunc(clientsPath, h.clients)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) activities(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createActivity(w, r)
	case http.MethodGet:
		h.listActivities(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) activityByID(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimPrefix(r.URL.Path, activitiesPath+"/")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing activity id")
		return
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "activity id must be a positive integer")
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.getActivity(w, r, id)
	case http.MethodPut:
		h.updateActivity(w, r, id)
	case http.MethodDelete:
		h.deleteActivity(w, r, id)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) authorize(w http.ResponseWriter, r *http.Request, write bool) (*auth.Claims, bool) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return nil, false
	}
	if write && !claims.HasScope(auth.ScopeAttivitaWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope attivita:write required")
		return nil, false
	}
	if !write && !auth.CanRead(claims) {
		writeError(w, http.StatusForbidden, "forbidden", "scope attivita:read required")
		return nil, false
	}
	return claims, true
}

func (h *Handler) createActivity(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.authorize(w, r, true)
	if !ok {
		return
	}
	var req ActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	activity, replay, err := h.service.CreateActivity(r.Context(), domain.CreateActivityInput{
		TenantID:       claims.TenantID,
		Payload:        req.Payload(),
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	status := http.StatusCreated
	if replay {
		status = http.StatusOK
	}
	writeJSON(w, status, ToView(activity.Record()))
}

func (h *Handler) updateActivity(w http.ResponseWriter, r *http.Request, id int64) {
	claims, ok := h.authorize(w, r, true)
	if !ok {
		return
	}
	var req ActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	activity, err := h.service.UpdateActivity(r.Context(), claims.TenantID, id, req.Payload())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ToView(activity.Record()))
}

func (h *Handler) deleteActivity(w http.ResponseWriter, r *http.Request, id int64) {
	claims, ok := h.authorize(w, r, true)
	if !ok {
		return
	}
	if err := h.service.DeleteActivity(r.Context(), claims.TenantID, id); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getActivity(w http.ResponseWriter, r *http.Request, id int64) {
	claims, ok := h.authorize(w, r, false)
	if !ok {
		return
	}
	activity, err := h.service.GetActivity(r.Context(), claims.TenantID, id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ToView(activity.Record()))
}

func (h *Handler) listActivities(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.authorize(w, r, false)
	if !ok {
		return
	}
	filter, err := persistence.DecodeFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	activities, err := h.service.ListActivities(r.Context(), claims.TenantID, filter)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	items := make([]ActivityView, 0, len(activities))
	for _, a := range activities {
		items = append(items, ToView(a.Record()))
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, ListActivitiesResponse{Items: items})
}

func (h *Handler) clients(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	claims, ok := h.authorize(w, r, false)
	if !ok {
		return
	}
	clients, err := h.service.ListClients(r.Context(), claims.TenantID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	items := make([]ClientView, 0, len(clients))
	for _, c := range clients {
		items = append(items, ClientView{ID: c.ID, Name: c.Name})
	}
	writeJSON(w, http.StatusOK, ListClientsResponse{Items: items})
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, domain.ErrActivityNotFound):
		writeError(w, http.StatusNotFound, "not_found", "activity not found")
	default:
		h.logger.Error("request failed", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
	}
}

// ActivityRequest is the body of POST /v1/attivita and PUT /v1/attivita/{id}.
type ActivityRequest struct {
	UserID       string  `json:"user_id"`
	Date         string  `json:"data"`
	ClientName   string  `json:"cliente_nome"`
	ClientID     *int64  `json:"cliente_id,omitempty"`
	ActivityKind string  `json:"rimborso"`
	KM           float64 `json:"km"`
	Allowance    bool    `json:"indennita"`
}

// NewActivityRequest renders a write payload as a request body.
func NewActivityRequest(p attivita.Payload) ActivityRequest {
	return ActivityRequest{
		UserID:       p.UserID,
		Date:         p.Date,
		ClientName:   p.ClientName,
		ClientID:     p.ClientID,
		ActivityKind: string(p.ActivityKind),
		KM:           p.KM,
		Allowance:    p.Allowance,
	}
}

// Payload converts the request into the domain payload.
func (r ActivityRequest) Payload() attivita.Payload {
	return attivita.Payload{
		UserID:       strings.TrimSpace(r.UserID),
		Date:         strings.TrimSpace(r.Date),
		ClientName:   strings.TrimSpace(r.ClientName),
		ClientID:     r.ClientID,
		ActivityKind: attivita.Kind(strings.ToUpper(strings.TrimSpace(r.ActivityKind))),
		KM:           r.KM,
		Allowance:    r.Allowance,
	}
}

// ActivityView exposes a stored activity.
type ActivityView struct {
	ID int64 `json:"id"`
	ActivityRequest
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// ToView renders a record for the wire.
func ToView(rec attivita.Record) ActivityView {
	v := ActivityView{ID: rec.ID}
	v.ActivityRequest = ActivityRequest{
		UserID:       rec.UserID,
		Date:         rec.Date,
		ClientName:   rec.ClientName,
		ClientID:     rec.ClientID,
		ActivityKind: string(rec.ActivityKind),
		KM:           rec.KM,
		Allowance:    rec.Allowance,
	}
	if !rec.UpdatedAt.IsZero() {
		ts := rec.UpdatedAt.UTC()
		v.UpdatedAt = &ts
	}
	return v
}

// Record converts the view back into a record.
func (v ActivityView) Record() attivita.Record {
	rec := attivita.Record{
		ID:           v.ID,
		UserID:       v.UserID,
		Date:         v.Date,
		ClientName:   v.ClientName,
		ClientID:     v.ClientID,
		ActivityKind: attivita.Kind(v.ActivityKind),
		KM:           v.KM,
		Allowance:    v.Allowance,
	}
	if v.UpdatedAt != nil {
		rec.UpdatedAt = *v.UpdatedAt
	}
	return rec
}

// ListActivitiesResponse packages list results.
type ListActivitiesResponse struct {
	Items []ActivityView `json:"items"`
}

// ClientView is a customer registry entry.
type ClientView struct {
	ID   int64  `json:"id"`
	Name string `json:"nome"`
}

// ListClientsResponse packages the customer registry.
type ListClientsResponse struct {
	Items []ClientView `json:"items"`
}

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Type   string `json:"type"`
	Detail string `json:"detail"`
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	writeJSON(w, status, ErrorResponse{Type: code, Detail: detail})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
