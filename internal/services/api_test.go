package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"

	"github.com/desertthunder/dlx/internal/models"
	"github.com/desertthunder/dlx/internal/shared"
	tu "github.com/desertthunder/dlx/internal/testing"
)

func TestAPIService(t *testing.T) {
	t.Run("New", func(t *testing.T) {
		t.Run("With Custom BaseURL and Client", func(t *testing.T) {
			customClient := &http.Client{}
			srv := NewAPIService("http://example.com/", "k", customClient)

			if srv.baseURL != "http://example.com" {
				t.Errorf("expected trailing slash trimmed, got %s", srv.baseURL)
			}
			if srv.httpClient != customClient {
				t.Error("expected custom client to be used")
			}
		})

		t.Run("With Empty BaseURL", func(t *testing.T) {
			srv := NewAPIService("", "k", nil)

			if srv.baseURL != "http://127.0.0.1:5000" {
				t.Errorf("expected default baseURL, got %s", srv.baseURL)
			}
			if srv.httpClient != http.DefaultClient {
				t.Error("expected http.DefaultClient to be used")
			}
		})
	})

	t.Run("Get", func(t *testing.T) {
		t.Run("Sends API Key", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodGet {
					t.Errorf("expected GET method, got %s", r.Method)
				}
				if got := r.Header.Get("X-API-Key"); got != "secret" {
					t.Errorf("expected X-API-Key 'secret', got %q", got)
				}
				w.WriteHeader(http.StatusOK)
				json.NewEncoder(w).Encode(map[string]string{"status": "success"})
			}))
			defer server.Close()

			srv := NewAPIService(server.URL, "secret", nil)
			resp, err := srv.Get(context.Background(), "/test")

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !resp.OK() || !resp.IsJSON {
				t.Errorf("unexpected response %+v", resp)
			}
		})

		t.Run("Non-JSON Response", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("plain text response"))
			}))
			defer server.Close()

			resp, err := NewAPIService(server.URL, "k", nil).Get(context.Background(), "/test")

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if resp.IsJSON || resp.JSONData != nil {
				t.Error("expected response to not be JSON")
			}
			if string(resp.Body) != "plain text response" {
				t.Errorf("unexpected body %s", string(resp.Body))
			}
		})

		t.Run("Failed Request Creation", func(t *testing.T) {
			_, err := NewAPIService("http://example.com", "k", nil).Get(context.Background(), "/test\x00invalid")

			if err == nil || !strings.Contains(err.Error(), "failed to create request") {
				t.Errorf("expected 'failed to create request' error, got %v", err)
			}
		})

		t.Run("Failed HTTP Request", func(t *testing.T) {
			client := &http.Client{Transport: tu.NewMockRoundTripper(nil, errors.New("connection failed"))}

			_, err := NewAPIService("http://example.com", "k", client).Get(context.Background(), "/test")

			if !errors.Is(err, shared.ErrTransport) {
				t.Errorf("expected ErrTransport, got %v", err)
			}
			if !strings.Contains(err.Error(), "request failed") {
				t.Errorf("expected 'request failed' error, got %v", err)
			}
		})

		t.Run("Failed Response Body Read", func(t *testing.T) {
			client := &http.Client{
				Transport: tu.NewMockRoundTripper(&http.Response{
					StatusCode: http.StatusOK,
					Body:       &tu.FCloser{},
					Header:     http.Header{},
				}, nil),
			}

			_, err := NewAPIService("http://example.com", "k", client).Get(context.Background(), "/test")

			if err == nil || !strings.Contains(err.Error(), "failed to read response") {
				t.Errorf("expected 'failed to read response' error, got %v", err)
			}
		})

		t.Run("With Canceled Context", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
			defer server.Close()

			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			if _, err := NewAPIService(server.URL, "k", nil).Get(ctx, "/test"); err == nil {
				t.Error("expected error for canceled context")
			}
		})
	})

	t.Run("FetchDownloads", func(t *testing.T) {
		t.Run("Decodes Entries And Drops Invalid Ones", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != DownloadsPath {
					t.Errorf("expected path %s, got %s", DownloadsPath, r.URL.Path)
				}
				w.Write([]byte(`[
					{"id": 1, "url": "https://a", "mediaType": "video", "title": "A"},
					{"id": 0, "url": "https://bad"},
					{"id": 2, "url": "https://b", "mediaType": null, "title": null}
				]`))
			}))
			defer server.Close()

			entries, err := NewAPIService(server.URL, "k", nil).FetchDownloads(context.Background())

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if len(entries) != 2 {
				t.Fatalf("expected 2 entries, got %d", len(entries))
			}
			if entries[0].MediaType != models.MediaVideo || entries[1].Title != nil {
				t.Errorf("unexpected entries %+v %+v", entries[0], entries[1])
			}
		})

		t.Run("Error Status", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error": "invalid api key"}`))
			}))
			defer server.Close()

			_, err := NewAPIService(server.URL, "k", nil).FetchDownloads(context.Background())

			if !errors.Is(err, shared.ErrAPIRequest) {
				t.Fatalf("expected ErrAPIRequest, got %v", err)
			}
			if !strings.Contains(err.Error(), "invalid api key") || !strings.Contains(err.Error(), "401") {
				t.Errorf("unexpected error text %v", err)
			}
		})

		t.Run("Malformed Body", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"not": "a list"}`))
			}))
			defer server.Close()

			_, err := NewAPIService(server.URL, "k", nil).FetchDownloads(context.Background())

			if !errors.Is(err, shared.ErrMalformedResponse) {
				t.Errorf("expected ErrMalformedResponse, got %v", err)
			}
		})
	})

	t.Run("BulkEdit", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPatch || r.URL.Path != BulkEditPath {
				t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			}
			if r.Header.Get("Content-Type") != "application/json" {
				t.Errorf("expected json content type, got %s", r.Header.Get("Content-Type"))
			}

			body, _ := io.ReadAll(r.Body)
			var items []map[string]any
			if err := json.Unmarshal(body, &items); err != nil {
				t.Fatalf("failed to unmarshal request body: %v", err)
			}
			if len(items) != 2 {
				t.Fatalf("expected 2 items, got %d", len(items))
			}
			if items[0]["title"] != "New" || items[0]["mediaType"] != "audio" {
				t.Errorf("unexpected first item %v", items[0])
			}
			if v, ok := items[1]["title"]; !ok || v != nil {
				t.Errorf("empty title should be sent as null, got %v", items[1])
			}

			w.Write([]byte(`{"status": true, "data": [{"status": true, "data": 1}, {"status": false, "data": 2, "error": "locked"}]}`))
		}))
		defer server.Close()

		patches := []models.Patch{
			models.TitlePatch(1, "New", models.MediaAudio),
			models.TitlePatch(2, "", models.MediaUnknown),
		}
		env, err := NewAPIService(server.URL, "k", nil).BulkEdit(context.Background(), patches)

		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !slices.Equal(env.Succeeded(), []int64{1}) || len(env.Failed()) != 1 || env.Failed()[0].Error != "locked" {
			t.Errorf("unexpected envelope %+v", env)
		}
	})

	t.Run("BulkDelete", func(t *testing.T) {
		t.Run("Sends Ids", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost || r.URL.Path != BulkDeletePath {
					t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
				}

				var req models.BulkDeleteRequest
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					t.Fatalf("failed to decode body: %v", err)
				}
				if !slices.Equal(req.IDs, []int64{4, 5}) {
					t.Errorf("unexpected ids %v", req.IDs)
				}

				json.NewEncoder(w).Encode(models.Envelope{Status: true, Data: []models.ItemResult{models.ItemOK(4), models.ItemOK(5)}})
			}))
			defer server.Close()

			env, err := NewAPIService(server.URL, "k", nil).BulkDelete(context.Background(), []int64{4, 5})

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if len(env.Succeeded()) != 2 {
				t.Errorf("expected 2 successes, got %v", env.Succeeded())
			}
		})

		t.Run("Envelope On Error Status", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusForbidden)
				w.Write([]byte(`{"status": false, "data": [], "error": "read only"}`))
			}))
			defer server.Close()

			env, err := NewAPIService(server.URL, "k", nil).BulkDelete(context.Background(), []int64{1})

			if err != nil {
				t.Fatalf("expected envelope, got %v", err)
			}
			if env.Status || env.Error != "read only" {
				t.Errorf("unexpected envelope %+v", env)
			}
		})

		t.Run("Non-JSON Error Status", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
				w.Write([]byte("upstream down"))
			}))
			defer server.Close()

			_, err := NewAPIService(server.URL, "k", nil).BulkDelete(context.Background(), []int64{1})

			if !errors.Is(err, shared.ErrAPIRequest) || !strings.Contains(err.Error(), "upstream down") {
				t.Errorf("unexpected error %v", err)
			}
		})

		t.Run("Non-Envelope Success", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("ok"))
			}))
			defer server.Close()

			_, err := NewAPIService(server.URL, "k", nil).BulkDelete(context.Background(), []int64{1})

			if !errors.Is(err, shared.ErrMalformedResponse) {
				t.Errorf("expected ErrMalformedResponse, got %v", err)
			}
		})
	})
}
