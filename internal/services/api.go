// API service for the media server's REST endpoints
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/desertthunder/dlx/internal/models"
	"github.com/desertthunder/dlx/internal/shared"
)

// Media server endpoints.
const (
	DownloadsPath  = "/api/downloads"
	BulkEditPath   = "/api/bulkEdit"
	BulkDeletePath = "/api/bulkDelete"
	StreamPath     = "/api/stream"
	WebSocketPath  = "/api/ws"
)

// APIService makes authenticated HTTP requests to the media server.
//
// Every request carries the configured key in the X-API-Key header. There is no client-side
// timeout or retry; callers bound a request through its context.
type APIService struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewAPIService creates a new API service instance for the media server at baseURL.
func NewAPIService(baseURL, apiKey string, client *http.Client) *APIService {
	if baseURL == "" {
		baseURL = "http://127.0.0.1:5000"
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &APIService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: client,
	}
}

// BaseURL is the server root without a trailing slash.
func (a *APIService) BaseURL() string {
	return a.baseURL
}

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	IsJSON     bool
	JSONData   any
}

// OK reports a 2xx status.
func (r *APIResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Get performs a GET request to the specified path and returns the raw response.
func (a *APIService) Get(ctx context.Context, path string) (*APIResponse, error) {
	return a.do(ctx, http.MethodGet, path, nil)
}

// Post performs a POST request with the given JSON data and returns the raw response.
func (a *APIService) Post(ctx context.Context, path string, data []byte) (*APIResponse, error) {
	return a.do(ctx, http.MethodPost, path, data)
}

// Patch performs a PATCH request with the given JSON data and returns the raw response.
func (a *APIService) Patch(ctx context.Context, path string, data []byte) (*APIResponse, error) {
	return a.do(ctx, http.MethodPatch, path, data)
}

func (a *APIService) do(ctx context.Context, method, path string, data []byte) (*APIResponse, error) {
	var body io.Reader
	if data != nil {
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set(shared.APIKeyHeader, a.apiKey)
	req.Header.Set("Accept", "application/json")
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request failed: %v", shared.ErrTransport, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", shared.ErrTransport, err)
	}

	apiResp := &APIResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       raw,
	}

	var jsonData any
	if err := json.Unmarshal(raw, &jsonData); err == nil {
		apiResp.IsJSON = true
		apiResp.JSONData = jsonData
	}

	return apiResp, nil
}

// FetchDownloads loads every entry the server tracks.
func (a *APIService) FetchDownloads(ctx context.Context) ([]*models.Entry, error) {
	resp, err := a.Get(ctx, DownloadsPath)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, statusError(resp)
	}

	var entries []*models.Entry
	if err := json.Unmarshal(resp.Body, &entries); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", shared.ErrMalformedResponse, DownloadsPath, err)
	}

	valid := entries[:0]
	for _, e := range entries {
		if e == nil || e.Validate() != nil {
			continue
		}
		valid = append(valid, e)
	}
	return valid, nil
}

// BulkEdit submits patches and returns the per-item envelope.
func (a *APIService) BulkEdit(ctx context.Context, patches []models.Patch) (models.Envelope, error) {
	data, err := json.Marshal(patches)
	if err != nil {
		return models.Envelope{}, fmt.Errorf("failed to encode patches: %w", err)
	}

	resp, err := a.Patch(ctx, BulkEditPath, data)
	if err != nil {
		return models.Envelope{}, err
	}
	return decodeEnvelope(resp)
}

// BulkDelete deletes ids and returns the per-item envelope.
func (a *APIService) BulkDelete(ctx context.Context, ids []int64) (models.Envelope, error) {
	data, err := json.Marshal(models.BulkDeleteRequest{IDs: ids})
	if err != nil {
		return models.Envelope{}, fmt.Errorf("failed to encode ids: %w", err)
	}

	resp, err := a.Post(ctx, BulkDeletePath, data)
	if err != nil {
		return models.Envelope{}, err
	}
	return decodeEnvelope(resp)
}

// decodeEnvelope accepts an envelope on any status, since the server also wraps rejections.
func decodeEnvelope(resp *APIResponse) (models.Envelope, error) {
	var env models.Envelope
	if !resp.IsJSON || json.Unmarshal(resp.Body, &env) != nil {
		if !resp.OK() {
			return models.Envelope{}, statusError(resp)
		}
		return models.Envelope{}, fmt.Errorf("%w: expected a bulk envelope", shared.ErrMalformedResponse)
	}

	if !resp.OK() && len(env.Data) == 0 && env.Error == "" {
		return models.Envelope{}, statusError(resp)
	}
	return env, nil
}

func statusError(resp *APIResponse) error {
	msg := strings.TrimSpace(string(resp.Body))
	if m, ok := resp.JSONData.(map[string]any); ok {
		if e, ok := m["error"].(string); ok && e != "" {
			msg = e
		}
	}
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return fmt.Errorf("%w: status %d: %s", shared.ErrAPIRequest, resp.StatusCode, msg)
}
