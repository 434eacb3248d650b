package server

import (
	"cmp"
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/desertthunder/dlx/internal/models"
)

// Item errors reported in bulk envelopes.
const (
	errEntryNotFound    = "entry not found"
	errInvalidMediaType = "invalid media type"
	errFieldNotEditable = "only title and mediaType can be edited"
	errNothingToEdit    = "no fields to edit"
)

const (
	statusDownloading   = "Downloading"
	statusCompleted     = "Completed"
	statusFailed        = "Failed"
	failedStatusMessage = "extractor returned no media"
)

// Seeding: one in N entries is left running, failed or untitled.
const (
	demoURLPrefix        = "https://media.example.com/"
	seedMaxAge           = 6 * time.Hour
	seedRunningFraction  = 4
	seedFailedFraction   = 7
	seedUntitledFraction = 5
)

var demoTitles = []string{
	"Harbor at dusk", "Field recording 03", "Lecture: distributed logs", "Album art scans",
	"Conference keynote", "Night market walk", "Podcast episode 112", "Rain on tin roof",
	"Archive of zines", "Timelapse clouds", "Interview outtakes", "Live set",
}

// Backend is the demo server's in-memory download table.
//
// Every change is broadcast on the hub in the same order it was applied.
type Backend struct {
	mu      sync.Mutex
	entries map[int64]*models.Entry
	nextID  int64
	hub     *Hub
	now     func() time.Time
}

// NewBackend creates an empty backend publishing to hub. A nil hub publishes nothing.
func NewBackend(hub *Hub) *Backend {
	return &Backend{
		entries: make(map[int64]*models.Entry),
		nextID:  1,
		hub:     hub,
		now:     time.Now,
	}
}

// Seed adds n entries with a mix of running, finished and failed downloads.
func (b *Backend) Seed(n int, rng *rand.Rand) {
	now := b.now()
	for i := range n {
		mt := models.MediaTypes[rng.IntN(len(models.MediaTypes))]
		title := demoTitles[i%len(demoTitles)]
		if rng.IntN(seedUntitledFraction) == 0 {
			title = ""
		}

		start := now.Add(-time.Duration(rng.Int64N(int64(seedMaxAge))))
		e := b.insert(fmt.Sprintf("%s%s/%d", demoURLPrefix, mt, b.peekID()), title, mt, start)

		switch {
		case rng.IntN(seedRunningFraction) == 0:
		case rng.IntN(seedFailedFraction) == 0:
			b.finish(e, start.Add(time.Duration(rng.IntN(600))*time.Second), statusFailed, failedStatusMessage)
		default:
			b.finish(e, start.Add(time.Duration(rng.IntN(600))*time.Second), statusCompleted, "")
		}
	}
}

func (b *Backend) peekID() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nextID
}

// List returns copies of every entry ordered by id.
func (b *Backend) List() []*models.Entry {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]*models.Entry, 0, len(b.entries))
	for _, e := range b.entries {
		out = append(out, e.Clone())
	}
	slices.SortFunc(out, func(a, c *models.Entry) int { return cmp.Compare(a.ID, c.ID) })
	return out
}

// Get returns a copy of one entry.
func (b *Backend) Get(id int64) (*models.Entry, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.entries[id]
	if !ok {
		return nil, false
	}
	return e.Clone(), true
}

// Create starts a new download and broadcasts CREATE.
func (b *Backend) Create(url, title string, mt models.MediaType) *models.Entry {
	return b.insert(url, title, mt, b.now())
}

func (b *Backend) insert(url, title string, mt models.MediaType, start time.Time) *models.Entry {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := models.NewEntry(b.nextID, url, title, mt)
	b.nextID++

	start = start.UTC().Truncate(time.Second)
	status := statusDownloading
	e.StartTime = &start
	e.UpdatedTime = &start
	e.Status = &status

	b.entries[e.ID] = e
	b.publish(models.Created{Entry: *e.Clone()})
	return e.Clone()
}

// Finish marks a running download as ended and broadcasts UPDATE.
func (b *Backend) Finish(id int64, status, message string) error {
	b.mu.Lock()
	e, ok := b.entries[id]
	b.mu.Unlock()
	if !ok {
		return fmt.Errorf("%s: %d", errEntryNotFound, id)
	}
	b.finish(e, b.now(), status, message)
	return nil
}

func (b *Backend) finish(e *models.Entry, at time.Time, status, message string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	at = at.UTC().Truncate(time.Second)
	p := models.Patch{
		ID:          e.ID,
		EndTime:     models.Some(&at),
		UpdatedTime: models.Some(&at),
		Status:      models.Some(&status),
	}
	if message != "" {
		p.StatusMessage = models.Some(&message)
	}

	current, ok := b.entries[e.ID]
	if !ok {
		return
	}
	p.Apply(current)
	b.publish(models.Updated{Patch: p})
}

// Progress broadcasts a PROGRESS event for a known entry.
func (b *Backend) Progress(id int64, current, total float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.entries[id]; !ok {
		return fmt.Errorf("%s: %d", errEntryNotFound, id)
	}
	b.publish(models.Progressed{ID: id, Current: current, Total: total})
	return nil
}

// Running lists the ids of downloads without an end time, ascending.
func (b *Backend) Running() []int64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	var ids []int64
	for id, e := range b.entries {
		if e.Running() {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// BulkEdit applies title and media type changes. Each patch gets its own item result.
func (b *Backend) BulkEdit(patches []models.Patch) models.Envelope {
	b.mu.Lock()
	defer b.mu.Unlock()

	env := models.Envelope{Status: true, Data: []models.ItemResult{}}
	for _, p := range patches {
		e, ok := b.entries[p.ID]
		switch {
		case !ok:
			env.Data = append(env.Data, models.ItemFailed(p.ID, errEntryNotFound))
			continue
		case p.URL.Set || p.StartTime.Set || p.EndTime.Set || p.UpdatedTime.Set || p.Status.Set || p.StatusMessage.Set:
			env.Data = append(env.Data, models.ItemFailed(p.ID, errFieldNotEditable))
			continue
		case p.MediaType.Set && !p.MediaType.Value.Known():
			env.Data = append(env.Data, models.ItemFailed(p.ID, errInvalidMediaType))
			continue
		case p.Empty():
			env.Data = append(env.Data, models.ItemFailed(p.ID, errNothingToEdit))
			continue
		}

		now := b.now().UTC().Truncate(time.Second)
		p.UpdatedTime = models.Some(&now)
		p.Apply(e)
		b.publish(models.Updated{Patch: p})
		env.Data = append(env.Data, models.ItemOK(p.ID))
	}
	return env
}

// BulkDelete removes entries. Unknown ids fail individually.
func (b *Backend) BulkDelete(ids []int64) models.Envelope {
	b.mu.Lock()
	defer b.mu.Unlock()

	env := models.Envelope{Status: true, Data: []models.ItemResult{}}
	for _, id := range ids {
		if _, ok := b.entries[id]; !ok {
			env.Data = append(env.Data, models.ItemFailed(id, errEntryNotFound))
			continue
		}
		delete(b.entries, id)
		b.publish(models.Deleted{ID: id})
		env.Data = append(env.Data, models.ItemOK(id))
	}
	return env
}

// publish must be called with mu held.
func (b *Backend) publish(ev models.Event) {
	if b.hub != nil {
		b.hub.Broadcast(ev)
	}
}
