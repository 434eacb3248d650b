package server

import (
	"context"
	"encoding/json"
	"io"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/dlx/internal/models"
	"github.com/desertthunder/dlx/internal/services"
	"github.com/desertthunder/dlx/internal/shared"
)

const testKey = "s3cret"

type testServer struct {
	*httptest.Server
	backend *Backend
	hub     *Hub
}

// newTestServer runs an empty demo server behind httptest with its hub started.
func newTestServer(t *testing.T) *testServer {
	t.Helper()

	s := New(shared.DemoConfig{Host: "127.0.0.1", Port: 0, Seed: 0}, testKey, shared.NewLogger(io.Discard))

	ctx, cancel := context.WithCancel(context.Background())
	go s.Hub.Run(ctx)

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})

	return &testServer{Server: srv, backend: s.Backend, hub: s.Hub}
}

func (s *testServer) api() *services.APIService {
	return services.NewAPIService(s.URL, testKey, s.Client())
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestBasicRouter(t *testing.T) {
	t.Run("Filters Methods", func(t *testing.T) {
		r := NewBasicRouter()
		r.Handle(http.MethodGet, "/ping", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("pong"))
		}))

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
		if rec.Body.String() != "pong" {
			t.Errorf("expected pong, got %q", rec.Body.String())
		}

		rec = httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ping", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})

	t.Run("Applies Middleware In Order", func(t *testing.T) {
		var order []string
		tag := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		r := NewBasicRouter()
		r.Use(tag("first"), tag("second"))
		r.Handle(http.MethodGet, "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

		if strings.Join(order, ",") != "first,second" {
			t.Errorf("unexpected middleware order %v", order)
		}
	})

	t.Run("Registers Handler Routes", func(t *testing.T) {
		r := NewBasicRouter()
		r.Handler(routesHandler{"/a", "/b"})

		for _, path := range []string{"/a", "/b"} {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
			if rec.Body.String() != path {
				t.Errorf("expected %s, got %q", path, rec.Body.String())
			}
		}
	})
}

type routesHandler []string

func (h routesHandler) Routes() []string { return h }

func (h routesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte(r.URL.Path))
}

func TestRequireAPIKey(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	guarded := RequireAPIKey(testKey)(ok)

	tests := []struct {
		name   string
		header string
		query  string
		want   int
	}{
		{"header", testKey, "", http.StatusNoContent},
		{"query", "", "?api_key=" + testKey, http.StatusNoContent},
		{"wrong key", "nope", "", http.StatusUnauthorized},
		{"missing", "", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/downloads"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set(shared.APIKeyHeader, tt.header)
			}
			rec := httptest.NewRecorder()
			guarded.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, rec.Code)
			}
			if tt.want == http.StatusUnauthorized {
				var env models.Envelope
				if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil || env.Status || env.Error == "" {
					t.Errorf("expected error envelope, got %s", rec.Body.String())
				}
			}
		})
	}

	t.Run("Empty Key Disables Check", func(t *testing.T) {
		rec := httptest.NewRecorder()
		RequireAPIKey("")(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusNoContent {
			t.Errorf("expected 204, got %d", rec.Code)
		}
	})
}

func TestBackend(t *testing.T) {
	t.Run("Seed", func(t *testing.T) {
		b := NewBackend(nil)
		b.Seed(20, rand.New(rand.NewPCG(1, 2)))

		entries := b.List()
		if len(entries) != 20 {
			t.Fatalf("expected 20 entries, got %d", len(entries))
		}
		for i, e := range entries {
			if e.ID != int64(i+1) {
				t.Errorf("expected ascending ids, got %d at %d", e.ID, i)
			}
			if err := e.Validate(); err != nil {
				t.Errorf("seeded entry invalid: %v", err)
			}
			if !e.MediaType.Known() {
				t.Errorf("seeded entry #%d has unknown media type", e.ID)
			}
		}
	})

	t.Run("BulkEdit", func(t *testing.T) {
		b := NewBackend(nil)
		a := b.Create("https://a", "A", models.MediaVideo)
		c := b.Create("https://c", "C", models.MediaAudio)

		url := models.Patch{ID: c.ID, URL: models.Some("https://x")}
		badType := models.Patch{ID: c.ID, MediaType: models.Some(models.MediaUnknown)}
		env := b.BulkEdit([]models.Patch{
			models.TitlePatch(a.ID, "", models.MediaImage),
			{ID: 99, Title: models.Some[*string](nil)},
			url,
			badType,
			{ID: c.ID},
		})

		want := []struct {
			ok  bool
			err string
		}{
			{true, ""},
			{false, errEntryNotFound},
			{false, errFieldNotEditable},
			{false, errInvalidMediaType},
			{false, errNothingToEdit},
		}
		if len(env.Data) != len(want) {
			t.Fatalf("expected %d items, got %d", len(want), len(env.Data))
		}
		for i, w := range want {
			if env.Data[i].Status != w.ok || env.Data[i].Error != w.err {
				t.Errorf("item %d: expected (%v, %q), got %+v", i, w.ok, w.err, env.Data[i])
			}
		}

		got, _ := b.Get(a.ID)
		if got.Title != nil || got.MediaType != models.MediaImage {
			t.Errorf("edit not applied: %+v", got)
		}
		if got.UpdatedTime == nil {
			t.Error("edit should stamp updatedTime")
		}
	})

	t.Run("BulkDelete", func(t *testing.T) {
		b := NewBackend(nil)
		a := b.Create("https://a", "", models.MediaText)

		env := b.BulkDelete([]int64{a.ID, 42})
		if !env.Data[0].Status || env.Data[1].Status || env.Data[1].Data != 42 {
			t.Errorf("unexpected envelope %+v", env)
		}
		if _, ok := b.Get(a.ID); ok {
			t.Error("entry should be deleted")
		}
	})

	t.Run("Finish And Progress", func(t *testing.T) {
		b := NewBackend(nil)
		a := b.Create("https://a", "", models.MediaText)

		if err := b.Progress(a.ID, 1, 2); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if err := b.Progress(7, 1, 2); err == nil {
			t.Error("expected error for unknown entry")
		}

		if err := b.Finish(a.ID, statusFailed, failedStatusMessage); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got, _ := b.Get(a.ID)
		if got.Running() || got.DisplayStatus() != statusFailed || *got.StatusMessage != failedStatusMessage {
			t.Errorf("unexpected finished entry %+v", got)
		}
		if len(b.Running()) != 0 {
			t.Error("nothing should be running")
		}
	})

	t.Run("Broadcasts Changes In Order", func(t *testing.T) {
		hub := NewHub(shared.NewLogger(io.Discard))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go hub.Run(ctx)

		sub := hub.Subscribe("test")
		b := NewBackend(hub)
		a := b.Create("https://a", "A", models.MediaVideo)
		b.BulkEdit([]models.Patch{models.TitlePatch(a.ID, "B", models.MediaUnknown)})
		b.BulkDelete([]int64{a.ID})

		var kinds []models.EventKind
		for range 3 {
			select {
			case payload := <-sub.Send:
				ev, err := models.DecodeEvent(payload)
				if err != nil {
					t.Fatalf("broadcast payload does not decode: %v", err)
				}
				kinds = append(kinds, ev.Kind())
			case <-time.After(5 * time.Second):
				t.Fatal("timed out waiting for broadcast")
			}
		}

		want := []models.EventKind{models.KindCreate, models.KindUpdate, models.KindDelete}
		for i := range want {
			if kinds[i] != want[i] {
				t.Errorf("expected %v, got %v", want, kinds)
				break
			}
		}
	})
}

func TestHub(t *testing.T) {
	hub := NewHub(shared.NewLogger(io.Discard))
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	sub := hub.Subscribe("a")
	waitFor(t, func() bool { return hub.Clients() == 1 })

	hub.Unsubscribe(sub)
	waitFor(t, func() bool { return hub.Clients() == 0 })
	if _, ok := <-sub.Send; ok {
		t.Error("unsubscribed channel should be closed")
	}

	other := hub.Subscribe("b")
	cancel()
	if _, ok := <-other.Send; ok {
		t.Error("stopping the hub should close subscribers")
	}
	if hub.Subscribe("late") != nil {
		t.Error("subscribing to a stopped hub should fail")
	}
}

func TestAPI(t *testing.T) {
	t.Run("Downloads", func(t *testing.T) {
		srv := newTestServer(t)
		srv.backend.Create("https://a", "A", models.MediaVideo)
		srv.backend.Create("https://b", "", models.MediaGallery)

		entries, err := srv.api().FetchDownloads(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(entries) != 2 || entries[1].MediaType != models.MediaGallery || entries[1].HasTitle() {
			t.Errorf("unexpected entries %+v", entries)
		}
	})

	t.Run("Rejects Bad Key", func(t *testing.T) {
		srv := newTestServer(t)
		_, err := services.NewAPIService(srv.URL, "wrong", srv.Client()).FetchDownloads(context.Background())
		if err == nil || !strings.Contains(err.Error(), "401") {
			t.Errorf("expected 401 error, got %v", err)
		}
	})

	t.Run("BulkEdit And BulkDelete", func(t *testing.T) {
		srv := newTestServer(t)
		a := srv.backend.Create("https://a", "A", models.MediaVideo)

		env, err := srv.api().BulkEdit(context.Background(), []models.Patch{
			models.TitlePatch(a.ID, "Renamed", models.MediaAudio),
			models.TitlePatch(99, "x", models.MediaUnknown),
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(env.Succeeded()) != 1 || len(env.Failed()) != 1 {
			t.Errorf("unexpected envelope %+v", env)
		}
		got, _ := srv.backend.Get(a.ID)
		if got.DisplayTitle() != "Renamed" || got.MediaType != models.MediaAudio {
			t.Errorf("edit not applied: %+v", got)
		}

		env, err = srv.api().BulkDelete(context.Background(), []int64{a.ID})
		if err != nil || len(env.Succeeded()) != 1 {
			t.Errorf("unexpected delete result %+v %v", env, err)
		}
	})

	t.Run("Malformed Body", func(t *testing.T) {
		srv := newTestServer(t)

		resp, err := srv.api().Post(context.Background(), services.BulkDeletePath, []byte(`{"ids":`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", resp.StatusCode)
		}

		resp, _ = srv.api().Patch(context.Background(), services.BulkEditPath, []byte(`[]`))
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("expected 400 for empty edit, got %d", resp.StatusCode)
		}
	})
}

func TestStreamEndpoints(t *testing.T) {
	for _, transport := range []string{services.TransportSSE, services.TransportWebSocket} {
		t.Run(transport, func(t *testing.T) {
			srv := newTestServer(t)

			dialer, err := services.NewDialer(transport, srv.api(), srv.Client())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			src, err := dialer.Dial(ctx)
			if err != nil {
				t.Fatalf("failed to dial: %v", err)
			}
			defer src.Close()

			waitFor(t, func() bool { return srv.hub.Clients() == 1 })

			a := srv.backend.Create("https://a", "A", models.MediaVideo)
			srv.backend.Progress(a.ID, 1, 4)

			for _, want := range []models.EventKind{models.KindCreate, models.KindProgress} {
				payload, err := src.Next()
				if err != nil {
					t.Fatalf("failed to read event: %v", err)
				}
				ev, err := models.DecodeEvent(payload)
				if err != nil {
					t.Fatalf("failed to decode %s: %v", payload, err)
				}
				if ev.Kind() != want || ev.EntryID() != a.ID {
					t.Errorf("expected %s for #%d, got %s for #%d", want, a.ID, ev.Kind(), ev.EntryID())
				}
			}
		})
	}
}

func TestSimulator(t *testing.T) {
	b := NewBackend(nil)
	a := b.Create("https://a", "A", models.MediaVideo)
	sim := NewSimulator(b, time.Millisecond, rand.New(rand.NewPCG(3, 4)), shared.NewLogger(io.Discard))

	for range 200 {
		sim.Step()
		if got, _ := b.Get(a.ID); !got.Running() {
			break
		}
	}

	got, _ := b.Get(a.ID)
	if got.Running() {
		t.Fatal("download should finish within 200 steps")
	}
	if s := got.DisplayStatus(); s != statusCompleted && s != statusFailed {
		t.Errorf("unexpected final status %q", s)
	}
	if len(b.Running()) > maxRunning {
		t.Errorf("simulator should keep at most %d downloads running", maxRunning)
	}
}
