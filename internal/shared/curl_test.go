package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestParseCurlCommand(t *testing.T) {
	tt := []struct {
		name        string
		curlCmd     string
		wantURL     string
		wantHeaders map[string]string
		wantCookie  string
		wantErr     bool
	}{
		{
			name:        "single header with single quotes",
			curlCmd:     `curl -H 'X-API-Key: abc123' https://media.example.com/api/downloads`,
			wantURL:     "https://media.example.com/api/downloads",
			wantHeaders: map[string]string{"X-API-Key": "abc123"},
		},
		{
			name:        "single header with double quotes",
			curlCmd:     `curl "http://127.0.0.1:5000/api/downloads" -H "X-API-Key: abc123"`,
			wantURL:     "http://127.0.0.1:5000/api/downloads",
			wantHeaders: map[string]string{"X-API-Key": "abc123"},
		},
		{
			name:    "multiple headers",
			curlCmd: `curl -H 'Content-Type: application/json' -H 'X-API-Key: k' https://media.example.com`,
			wantURL: "https://media.example.com",
			wantHeaders: map[string]string{
				"Content-Type": "application/json",
				"X-API-Key":    "k",
			},
		},
		{
			name:        "cookie in -b flag",
			curlCmd:     `curl -b 'session=abc123' https://media.example.com`,
			wantURL:     "https://media.example.com",
			wantHeaders: map[string]string{},
			wantCookie:  "session=abc123",
		},
		{
			name:        "cookie header is excluded from regular headers",
			curlCmd:     `curl -H 'Cookie: session=abc123' -H 'X-API-Key: k' https://media.example.com`,
			wantURL:     "https://media.example.com",
			wantHeaders: map[string]string{"X-API-Key": "k"},
			wantCookie:  "session=abc123",
		},
		{
			name:        "-b cookie takes precedence over -H cookie",
			curlCmd:     `curl -H 'Cookie: old=value' -b 'new=value' https://media.example.com`,
			wantURL:     "https://media.example.com",
			wantHeaders: map[string]string{},
			wantCookie:  "new=value",
		},
		{
			name: "multiline copy from the network tab",
			curlCmd: `curl 'https://media.example.com/api/bulkDelete' \
  -H 'accept: */*' \
  -H 'referer: https://media.example.com/dashboard' \
  -H 'x-api-key: from-browser' \
  --data-raw '{"ids":[1]}'`,
			wantURL: "https://media.example.com/api/bulkDelete",
			wantHeaders: map[string]string{
				"accept":    "*/*",
				"referer":   "https://media.example.com/dashboard",
				"x-api-key": "from-browser",
			},
		},
		{
			name:    "url only",
			curlCmd: `curl 'http://localhost:5000/api/stream?api_key=q'`,
			wantURL: "http://localhost:5000/api/stream?api_key=q",
		},
		{
			name:    "nothing usable",
			curlCmd: `curl`,
			wantErr: true,
		},
		{
			name:    "empty command",
			curlCmd: "",
			wantErr: true,
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			result, err := ParseCurlCommand(tc.curlCmd)

			if (err != nil) != tc.wantErr {
				t.Errorf("ParseCurlCommand() error = %v, wantErr %v", err, tc.wantErr)
				return
			}

			if tc.wantErr {
				return
			}

			if result.URL != tc.wantURL {
				t.Errorf("ParseCurlCommand() url = %v, want %v", result.URL, tc.wantURL)
			}

			if len(result.Headers) != len(tc.wantHeaders) {
				t.Errorf("ParseCurlCommand() headers count = %v, want %v", len(result.Headers), len(tc.wantHeaders))
			}

			for key, want := range tc.wantHeaders {
				if got := result.Headers[key]; got != want {
					t.Errorf("ParseCurlCommand() header[%s] = %v, want %v", key, got, want)
				}
			}

			if result.Cookie != tc.wantCookie {
				t.Errorf("ParseCurlCommand() cookie = %v, want %v", result.Cookie, tc.wantCookie)
			}
		})
	}
}

func TestCurlRequest_APIKey(t *testing.T) {
	tests := []struct {
		name    string
		curlCmd string
		want    string
		wantErr bool
	}{
		{name: "header", curlCmd: `curl -H 'X-API-Key: abc' https://m.example.com`, want: "abc"},
		{name: "lowercase header", curlCmd: `curl -H 'x-api-key: abc' https://m.example.com`, want: "abc"},
		{name: "stream query parameter", curlCmd: `curl 'https://m.example.com/api/stream?api_key=xyz'`, want: "xyz"},
		{name: "missing", curlCmd: `curl -H 'Accept: */*' https://m.example.com`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := ParseCurlCommand(tt.curlCmd)
			if err != nil {
				t.Fatalf("ParseCurlCommand() error = %v", err)
			}

			got, err := req.APIKey()
			if tt.wantErr {
				if !errors.Is(err, ErrMissingCredentials) {
					t.Errorf("expected ErrMissingCredentials, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("APIKey() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("APIKey() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCurlRequest_BaseURL(t *testing.T) {
	req := &CurlRequest{URL: "https://media.example.com:8443/api/downloads?x=1"}
	got, err := req.BaseURL()
	if err != nil {
		t.Fatalf("BaseURL() error = %v", err)
	}
	if got != "https://media.example.com:8443" {
		t.Errorf("BaseURL() = %v", got)
	}

	if _, err := (&CurlRequest{}).BaseURL(); err == nil {
		t.Error("expected error for missing url")
	}
}

func TestParseCurlFile(t *testing.T) {
	t.Run("successful file parse", func(t *testing.T) {
		tmpDir := t.TempDir()
		curlFile := filepath.Join(tmpDir, "curl.sh")

		curlCmd := `curl -H 'X-API-Key: token123' -H 'Content-Type: application/json' https://media.example.com`
		if err := os.WriteFile(curlFile, []byte(curlCmd), 0644); err != nil {
			t.Fatalf("Failed to create test file: %v", err)
		}

		result, err := ParseCurlFile(curlFile)
		if err != nil {
			t.Fatalf("ParseCurlFile() error = %v", err)
		}

		if len(result.Headers) != 2 {
			t.Errorf("ParseCurlFile() headers count = %v, want 2", len(result.Headers))
		}

		if key, _ := result.APIKey(); key != "token123" {
			t.Errorf("ParseCurlFile() api key = %v, want %v", key, "token123")
		}
	})

	t.Run("file does not exist", func(t *testing.T) {
		_, err := ParseCurlFile("/nonexistent/file.sh")
		if err == nil {
			t.Error("ParseCurlFile() expected error for nonexistent file")
		}
	})
}
