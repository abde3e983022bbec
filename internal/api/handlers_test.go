package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/baldellimtt/gestionale-capoferri-sub001/internal/attivita"
	"github.com/baldellimtt/gestionale-capoferri-sub001/internal/auth"
	"github.com/baldellimtt/gestionale-capoferri-sub001/internal/domain"
	"github.com/baldellimtt/gestionale-capoferri-sub001/internal/persistence/memory"
)

func newTestMux(t *testing.T) (*http.ServeMux, *memory.Repository) {
	t.Helper()
	repo := memory.NewRepository()
	repo.SeedClients("tenant-1", "Acme Impianti", "Bianchi srl")
	mux := http.NewServeMux()
	NewHandler(domain.NewService(repo, repo)).RegisterRoutes(mux)
	return mux, repo
}

func withClaims(req *http.Request, scopes ...string) *http.Request {
	set := make(map[string]struct{}, len(scopes))
	for _, s := range scopes {
		set[s] = struct{}{}
	}
	claims := &auth.Claims{Subject: "tester", TenantID: "tenant-1", Scopes: set, ExpiresAt: time.Now().Add(time.Hour)}
	return req.WithContext(auth.WithClaims(req.Context(), claims))
}

func doJSON(t *testing.T, mux *http.ServeMux, method, target string, body interface{}, headers map[string]string, scopes ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, withClaims(req, scopes...))
	return rr
}

func TestActivityLifecycle(t *testing.T) {
	mux, _ := newTestMux(t)
	body := ActivityRequest{UserID: "u1", Date: "2026-10-14", ClientName: "Acme Impianti", ActivityKind: "sopralluogo", KM: 12.5}

	rr := doJSON(t, mux, http.MethodPost, "/v1/attivita", body, map[string]string{"Idempotency-Key": "k1"}, auth.ScopeAttivitaWrite)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var created ActivityView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	require.Positive(t, created.ID)
	require.Equal(t, "SOPRALLUOGO", created.ActivityKind)

	rr = doJSON(t, mux, http.MethodPost, "/v1/attivita", body, map[string]string{"Idempotency-Key": "k1"}, auth.ScopeAttivitaWrite)
	require.Equal(t, http.StatusOK, rr.Code)

	body.KM = 20
	target := "/v1/attivita/" + strconv.FormatInt(created.ID, 10)
	rr = doJSON(t, mux, http.MethodPut, target, body, nil, auth.ScopeAttivitaWrite)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = doJSON(t, mux, http.MethodGet, "/v1/attivita?user_id=u1&from=2026-10-01", nil, nil, auth.ScopeAttivitaRead)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
	var list ListActivitiesResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Len(t, list.Items, 1)
	require.Equal(t, 20.0, list.Items[0].KM)
	require.Equal(t, attivita.Kind("SOPRALLUOGO"), list.Items[0].Record().ActivityKind)

	rr = doJSON(t, mux, http.MethodDelete, target, nil, nil, auth.ScopeAttivitaWrite)
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = doJSON(t, mux, http.MethodDelete, target, nil, nil, auth.ScopeAttivitaWrite)
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestWriteRequiresWriteScope(t *testing.T) {
	mux, _ := newTestMux(t)
	body := ActivityRequest{UserID: "u1", Date: "2026-10-14"}

	rr := doJSON(t, mux, http.MethodPost, "/v1/attivita", body, nil, auth.ScopeAttivitaRead)
	require.Equal(t, http.StatusForbidden, rr.Code)

	rr = doJSON(t, mux, http.MethodGet, "/v1/attivita?user_id=u1", nil, nil)
	require.Equal(t, http.StatusForbidden, rr.Code)
}

func TestValidationErrors(t *testing.T) {
	mux, _ := newTestMux(t)

	rr := doJSON(t, mux, http.MethodPost, "/v1/attivita", ActivityRequest{UserID: "u1", Date: "14/10/2026"}, nil, auth.ScopeAttivitaWrite)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, "validation_failed", resp.Type)

	rr = doJSON(t, mux, http.MethodGet, "/v1/attivita", nil, nil, auth.ScopeAttivitaRead)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doJSON(t, mux, http.MethodGet, "/v1/attivita/abc", nil, nil, auth.ScopeAttivitaRead)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestListClients(t *testing.T) {
	mux, _ := newTestMux(t)

	rr := doJSON(t, mux, http.MethodGet, "/v1/clienti", nil, nil, auth.ScopeAttivitaRead)
	require.Equal(t, http.StatusOK, rr.Code)
	var resp ListClientsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Items, 2)
	require.Equal(t, "Acme Impianti", resp.Items[0].Name)
}

func TestHealthz(t *testing.T) {
	mux, _ := newTestMux(t)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rr.Code)
}
