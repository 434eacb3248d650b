// Package reconcile applies stream events and bulk command results to a [store.Store].
package reconcile

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/dlx/internal/models"
	"github.com/desertthunder/dlx/internal/shared"
	"github.com/desertthunder/dlx/internal/store"
)

// Result describes what applying one event did.
type Result struct {
	Kind       models.EventKind
	ID         int64  // entry the event addressed
	Changed    bool   // store contents changed
	Resort     bool   // the rendered order may have changed
	Diagnostic string // set when the event violated the protocol
}

// Reconciler applies events in arrival order on the goroutine that owns the store.
type Reconciler struct {
	store  *store.Store
	logger *log.Logger
}

// New creates a Reconciler. A nil logger discards diagnostics.
func New(s *store.Store, logger *log.Logger) *Reconciler {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Reconciler{store: s, logger: logger}
}

// Store returns the store the reconciler writes to.
func (r *Reconciler) Store() *store.Store {
	return r.store
}

// Apply merges one event into the store.
//
// Referential problems (a duplicate create, an update for an unknown id) are logged and
// reported in [Result.Diagnostic]; they never fail.
func (r *Reconciler) Apply(ev models.Event) Result {
	var res Result
	switch e := ev.(type) {
	case models.Created:
		res = r.applyCreated(e)
	case models.Updated:
		res = r.applyUpdated(e)
	case models.Deleted:
		res = r.applyDeleted(e)
	case models.Progressed:
		res = r.applyProgressed(e)
	default:
		msg := fmt.Sprintf("unhandled event %T", ev)
		r.logger.Error(msg)
		return Result{Diagnostic: msg}
	}
	res.Kind, res.ID = ev.Kind(), ev.EntryID()
	return res
}

// ApplyAll applies events in order and returns how many changed the store.
func (r *Reconciler) ApplyAll(events []models.Event) int {
	changed := 0
	for _, ev := range events {
		if r.Apply(ev).Changed {
			changed++
		}
	}
	return changed
}

// ApplyRaw decodes a stream message and applies it. Malformed messages are logged with
// their payload and dropped.
func (r *Reconciler) ApplyRaw(payload []byte) (Result, error) {
	ev, err := models.DecodeEvent(payload)
	if err != nil {
		r.logger.Warn("dropping malformed event", "err", err, "payload", string(payload))
		return Result{Diagnostic: err.Error()}, err
	}
	return r.Apply(ev), nil
}

func (r *Reconciler) applyCreated(ev models.Created) Result {
	e := ev.Entry.Clone()
	e.Selected = false
	e.Percentage = nil

	if r.store.Add(e) {
		msg := fmt.Sprintf("create for existing entry %s, fields overwritten", e.DisplayID())
		r.logger.Warn(msg, "id", e.ID)
		if existing, ok := r.store.Find(e.ID); ok {
			existing.Pulse = true
		}
		return Result{Changed: true, Resort: true, Diagnostic: msg}
	}

	e.New = true
	r.logger.Debug("entry created", "id", e.ID, "url", e.URL)
	return Result{Changed: true, Resort: true}
}

func (r *Reconciler) applyUpdated(ev models.Updated) Result {
	e, ok := r.store.Find(ev.Patch.ID)
	if !ok {
		msg := fmt.Sprintf("update for unknown entry #%d ignored", ev.Patch.ID)
		r.logger.Warn(msg, "id", ev.Patch.ID, "fields", strings.Join(ev.Patch.Fields(), ","))
		return Result{Diagnostic: msg}
	}

	if !ev.Patch.Apply(e) {
		return Result{}
	}
	e.Pulse = true
	return Result{Changed: true, Resort: true}
}

func (r *Reconciler) applyDeleted(ev models.Deleted) Result {
	if !r.store.Remove(ev.ID) {
		msg := fmt.Sprintf("delete for unknown entry #%d ignored", ev.ID)
		r.logger.Debug(msg, "id", ev.ID)
		return Result{Diagnostic: msg}
	}
	return Result{Changed: true, Resort: true}
}

// applyProgressed only touches the derived percentage, so the order never changes.
func (r *Reconciler) applyProgressed(ev models.Progressed) Result {
	e, ok := r.store.Find(ev.ID)
	if !ok {
		msg := fmt.Sprintf("progress for unknown entry #%d ignored", ev.ID)
		r.logger.Debug(msg, "id", ev.ID)
		return Result{Diagnostic: msg}
	}

	pct := ev.Percent()
	if samePercent(e.Percentage, pct) {
		return Result{}
	}
	e.Percentage = pct
	return Result{Changed: true}
}

func samePercent(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// BulkResult splits a bulk response into applied ids and failed items.
type BulkResult struct {
	Succeeded []int64
	Failed    []models.ItemResult
}

// FailedCount is the number of items the server rejected.
func (b BulkResult) FailedCount() int {
	return len(b.Failed)
}

// Summary renders the outcome for a status line, e.g. "deleted 2, 1 failed (#7: locked)".
func (b BulkResult) Summary(verb string) string {
	s := fmt.Sprintf("%s %d", verb, len(b.Succeeded))
	if len(b.Failed) == 0 {
		return s
	}

	details := make([]string, 0, len(b.Failed))
	for _, f := range b.Failed {
		if f.Error != "" {
			details = append(details, fmt.Sprintf("#%d: %s", f.Data, f.Error))
		} else {
			details = append(details, fmt.Sprintf("#%d", f.Data))
		}
	}
	return fmt.Sprintf("%s, %d failed (%s)", s, len(b.Failed), strings.Join(details, "; "))
}

// ApplyDeleteEnvelope removes every entry whose own item status is true and leaves failed
// items untouched. A failed envelope without items applies nothing and returns its error.
func (r *Reconciler) ApplyDeleteEnvelope(env models.Envelope) (BulkResult, error) {
	if err := envelopeError(env); err != nil {
		return BulkResult{}, err
	}

	var res BulkResult
	for _, item := range env.Data {
		if !item.Status {
			res.Failed = append(res.Failed, item)
			continue
		}
		if !r.store.Remove(item.Data) {
			r.logger.Debug("deleted entry was already gone", "id", item.Data)
		}
		res.Succeeded = append(res.Succeeded, item.Data)
	}

	r.logBulk("delete", res)
	return res, nil
}

// ApplyEditEnvelope applies the submitted patch of every item whose own status is true.
func (r *Reconciler) ApplyEditEnvelope(patches []models.Patch, env models.Envelope) (BulkResult, error) {
	if err := envelopeError(env); err != nil {
		return BulkResult{}, err
	}

	byID := make(map[int64]models.Patch, len(patches))
	for _, p := range patches {
		byID[p.ID] = p
	}

	var res BulkResult
	for _, item := range env.Data {
		if !item.Status {
			res.Failed = append(res.Failed, item)
			continue
		}

		p, ok := byID[item.Data]
		if !ok {
			r.logger.Warn("edit result for an id that was not submitted", "id", item.Data)
			continue
		}
		if e, found := r.store.Find(p.ID); found {
			if p.Apply(e) {
				e.Pulse = true
			}
		} else {
			r.logger.Debug("edited entry was deleted meanwhile", "id", p.ID)
		}
		res.Succeeded = append(res.Succeeded, item.Data)
	}

	r.logBulk("edit", res)
	return res, nil
}

func (r *Reconciler) logBulk(op string, res BulkResult) {
	if res.FailedCount() > 0 {
		r.logger.Warn("bulk "+op+" partially failed", "ok", len(res.Succeeded), "failed", res.FailedCount())
		return
	}
	r.logger.Info("bulk "+op+" applied", "ok", len(res.Succeeded))
}

func envelopeError(env models.Envelope) error {
	if env.Status || len(env.Data) > 0 {
		return nil
	}
	if env.Error == "" {
		return fmt.Errorf("%w: request rejected", shared.ErrAPIRequest)
	}
	return fmt.Errorf("%w: %s", shared.ErrAPIRequest, env.Error)
}
