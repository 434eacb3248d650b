// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"slices"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/dlx/internal/models"
)

// MockAPI is a test double for [services.DownloadsAPI].
//
// Bulk calls answer from the Fail map: ids present there come back as failed items with that
// message, everything else succeeds.
type MockAPI struct {
	mu sync.Mutex

	Entries []*models.Entry
	Fail    map[int64]string
	Err     error

	Edits   [][]models.Patch
	Deletes [][]int64
}

func (m *MockAPI) FetchDownloads(ctx context.Context) ([]*models.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}

	out := make([]*models.Entry, 0, len(m.Entries))
	for _, e := range m.Entries {
		out = append(out, e.Clone())
	}
	return out, nil
}

func (m *MockAPI) BulkEdit(ctx context.Context, patches []models.Patch) (models.Envelope, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Edits = append(m.Edits, slices.Clone(patches))
	if m.Err != nil {
		return models.Envelope{}, m.Err
	}

	ids := make([]int64, 0, len(patches))
	for _, p := range patches {
		ids = append(ids, p.ID)
	}
	return m.envelope(ids), nil
}

func (m *MockAPI) BulkDelete(ctx context.Context, ids []int64) (models.Envelope, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Deletes = append(m.Deletes, slices.Clone(ids))
	if m.Err != nil {
		return models.Envelope{}, m.Err
	}
	return m.envelope(ids), nil
}

func (m *MockAPI) envelope(ids []int64) models.Envelope {
	env := models.Envelope{Status: true}
	for _, id := range ids {
		if msg, ok := m.Fail[id]; ok {
			env.Data = append(env.Data, models.ItemFailed(id, msg))
			continue
		}
		env.Data = append(env.Data, models.ItemOK(id))
	}
	return env
}

// FakeClipboard records what was written instead of touching the system clipboard.
type FakeClipboard struct {
	Text string
	Err  error
}

func (c *FakeClipboard) WriteAll(text string) error {
	if c.Err != nil {
		return c.Err
	}
	c.Text = text
	return nil
}

// FakeConfirmer answers every prompt with Answer and remembers the prompts.
type FakeConfirmer struct {
	Answer  bool
	Prompts []string
}

func (c *FakeConfirmer) Confirm(ctx context.Context, prompt string) (bool, error) {
	c.Prompts = append(c.Prompts, prompt)
	return c.Answer, nil
}

// FakeJournal records what a stream consumer journals, in memory.
type FakeJournal struct {
	Sessions int
	Open     bool
	Payloads [][]byte
	Events   []models.Event
}

func (j *FakeJournal) Begin(baseURL, transport string) (*models.Session, error) {
	j.Sessions++
	j.Open = true
	s := models.NewSession(baseURL, transport, time.Now())
	s.ID = "session-" + strconv.Itoa(j.Sessions)
	return s, nil
}

func (j *FakeJournal) Record(payload []byte, origin string) (*models.JournalEvent, error) {
	if !j.Open {
		return nil, errors.New("journal has no open session")
	}
	j.Payloads = append(j.Payloads, slices.Clone(payload))
	return models.NewJournalEvent("session-"+strconv.Itoa(j.Sessions), payload, origin, time.Now())
}

func (j *FakeJournal) RecordEvent(ev models.Event, origin string) (*models.JournalEvent, error) {
	if !j.Open {
		return nil, errors.New("journal has no open session")
	}
	j.Events = append(j.Events, ev)
	return models.JournalEventFrom("session-"+strconv.Itoa(j.Sessions), ev, origin, time.Now())
}

func (j *FakeJournal) End() error {
	j.Open = false
	return nil
}

// ScriptedSource replays payloads and then fails with Err, or [io.EOF] when Err is nil.
type ScriptedSource struct {
	mu       sync.Mutex
	Payloads [][]byte
	Err      error
	Closed   bool
}

func NewScriptedSource(err error, payloads ...string) *ScriptedSource {
	s := &ScriptedSource{Err: err}
	for _, p := range payloads {
		s.Payloads = append(s.Payloads, []byte(p))
	}
	return s
}

func (s *ScriptedSource) Next() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Payloads) == 0 {
		if s.Err != nil {
			return nil, s.Err
		}
		return nil, io.EOF
	}
	p := s.Payloads[0]
	s.Payloads = s.Payloads[1:]
	return p, nil
}

func (s *ScriptedSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Closed = true
	return nil
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}

// MustWriteFile writes content to path with 0644 permissions.
func MustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write file %s: %v", path, err)
	}
}
