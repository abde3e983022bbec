package outbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var errSubjectNotFound = errors.New("schema subject not found")

// SchemaRegistryClient registers the JSON schemas of activity events with a Confluent
// compatible Schema Registry.
type SchemaRegistryClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewSchemaRegistryClient constructs a client with a 10s timeout.
func NewSchemaRegistryClient(baseURL string) *SchemaRegistryClient {
	return &SchemaRegistryClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// EnsureSchema returns the id of schema under subject, registering it when the
// registry does not know it yet. Registering an identical schema is idempotent.
func (c *SchemaRegistryClient) EnsureSchema(ctx context.Context, subject, schema string) (int, error) {
	id, err := c.lookup(ctx, subject, schema)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, errSubjectNotFound) {
		return 0, err
	}
	return c.register(ctx, subject, schema)
}

type schemaRequest struct {
	SchemaType string `json:"schemaType"`
	Schema     string `json:"schema"`
}

type schemaResponse struct {
	ID int `json:"id"`
}

// lookup asks whether schema is already registered under subject.
func (c *SchemaRegistryClient) lookup(ctx context.Context, subject, schema string) (int, error) {
	id, status, err := c.post(ctx, "/subjects/"+url.PathEscape(subject), schema)
	if err != nil {
		return 0, err
	}
	if status == http.StatusNotFound {
		return 0, errSubjectNotFound
	}
	return id, nil
}

func (c *SchemaRegistryClient) register(ctx context.Context, subject, schema string) (int, error) {
	id, status, err := c.post(ctx, "/subjects/"+url.PathEscape(subject)+"/versions", schema)
	if err != nil {
		return 0, err
	}
	if status == http.StatusNotFound {
		return 0, fmt.Errorf("register %s: %w", subject, errSubjectNotFound)
	}
	return id, nil
}

func (c *SchemaRegistryClient) post(ctx context.Context, path, schema string) (int, int, error) {
	body, err := json.Marshal(schemaRequest{SchemaType: "JSON", Schema: schema})
	if err != nil {
		return 0, 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, 0, err
	}
	req.Header.Set("Content-Type", "application/vnd.schemaregistry.v1+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return 0, resp.StatusCode, nil
	}
	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return 0, resp.StatusCode, fmt.Errorf("schema registry %s: %d %s", path, resp.StatusCode, bytes.TrimSpace(data))
	}
	var payload schemaResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, resp.StatusCode, err
	}
	return payload.ID, resp.StatusCode, nil
}
