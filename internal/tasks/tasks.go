// package tasks implements the bulk commands a user runs against the download table.
//
// The core abstraction is Dispatcher, which confirms, submits and reconciles edits and deletes,
// copies fields to the clipboard and exports entries.
// Operations emit progress updates via channels for non-blocking status reporting to CLI/UI layers.
package tasks

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/dlx/internal/models"
	"github.com/desertthunder/dlx/internal/reconcile"
	"github.com/desertthunder/dlx/internal/services"
	"github.com/desertthunder/dlx/internal/shared"
)

// FeedbackDuration is how long a copy success or failure indicator stays visible.
const FeedbackDuration = 2 * time.Second

// Clipboard writes text to the system clipboard.
type Clipboard interface {
	WriteAll(text string) error
}

// Confirmer asks the user to approve a destructive command.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// SystemClipboard uses the platform clipboard (pbcopy, xclip/xsel/wl-copy, or the Windows API).
type SystemClipboard struct{}

func (SystemClipboard) WriteAll(text string) error {
	if clipboard.Unsupported {
		return fmt.Errorf("%w: no clipboard utility available", shared.ErrClipboard)
	}
	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrClipboard, err)
	}
	return nil
}

// AutoConfirm approves every prompt. Used for --yes.
type AutoConfirm struct{}

func (AutoConfirm) Confirm(context.Context, string) (bool, error) { return true, nil }

// Outcome is the result of a bulk edit or delete.
type Outcome struct {
	Verb    string
	Result  reconcile.BulkResult
	Skipped []int64 // ids dropped before submission because they no longer exist
}

// Summary renders the outcome for a status line or CLI output.
func (o Outcome) Summary() string {
	s := o.Result.Summary(o.Verb)
	if len(o.Skipped) > 0 {
		s += fmt.Sprintf(", %d skipped", len(o.Skipped))
	}
	return s
}

// Err returns [shared.ErrPartialFailure] when any item failed.
func (o Outcome) Err() error {
	if o.Result.FailedCount() == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", shared.ErrPartialFailure, o.Summary())
}

// CopyField names the entry field a copy command reads.
type CopyField string

const (
	CopyURL   CopyField = "url"
	CopyTitle CopyField = "title"
)

// ParseCopyField accepts "url", "urls", "title" or "titles".
func ParseCopyField(s string) (CopyField, error) {
	switch strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "s") {
	case "url":
		return CopyURL, nil
	case "title":
		return CopyTitle, nil
	default:
		return "", fmt.Errorf("%w: copy field %q (want url or title)", shared.ErrInvalidArgument, s)
	}
}

// CopyOutcome reports a clipboard write.
type CopyOutcome struct {
	OK    bool
	Count int
	Err   error
}

// Feedback is a transient success/failure indicator.
type Feedback struct {
	OK      bool
	Message string
	Until   time.Time
}

// NewFeedback starts an indicator that lasts d, or [FeedbackDuration] when d is zero.
func NewFeedback(ok bool, msg string, now time.Time, d time.Duration) Feedback {
	if d <= 0 {
		d = FeedbackDuration
	}
	return Feedback{OK: ok, Message: msg, Until: now.Add(d)}
}

// Active reports whether the indicator should still be shown.
func (f Feedback) Active(now time.Time) bool {
	return !f.Until.IsZero() && now.Before(f.Until)
}

// Dispatcher runs user commands against the server and reconciles the results into the store.
//
// Submit methods only talk to the network and are safe to call from a goroutine. Prepare and
// Apply methods touch the store and must run on the goroutine that owns it. Edit and Delete
// chain all three for callers that own the store themselves.
type Dispatcher struct {
	api     services.DownloadsAPI
	rec     *reconcile.Reconciler
	clip    Clipboard
	confirm Confirmer
	logger  *log.Logger
}

// NewDispatcher creates a Dispatcher. A nil clipboard uses the system clipboard, a nil
// confirmer approves everything and a nil logger discards output.
func NewDispatcher(api services.DownloadsAPI, rec *reconcile.Reconciler, clip Clipboard, confirm Confirmer, logger *log.Logger) *Dispatcher {
	if clip == nil {
		clip = SystemClipboard{}
	}
	if confirm == nil {
		confirm = AutoConfirm{}
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Dispatcher{api: api, rec: rec, clip: clip, confirm: confirm, logger: logger}
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// DeletePrompt is the confirmation question for deleting n entries.
func DeletePrompt(n int) string {
	if n == 1 {
		return "Delete 1 entry?"
	}
	return fmt.Sprintf("Delete %d entries?", n)
}

// EditPrompt is the confirmation question for editing n entries.
func EditPrompt(n int) string {
	if n == 1 {
		return "Save changes to 1 entry?"
	}
	return fmt.Sprintf("Save changes to %d entries?", n)
}

// PrepareEdit drops empty patches and patches for ids that are no longer in the store.
func (d *Dispatcher) PrepareEdit(patches []models.Patch) (kept []models.Patch, skipped []int64) {
	for _, p := range patches {
		if p.Empty() {
			continue
		}
		if !d.rec.Store().Has(p.ID) {
			skipped = append(skipped, p.ID)
			continue
		}
		kept = append(kept, p)
	}
	if len(skipped) > 0 {
		d.logger.Debug("edit skipped deleted entries", "ids", skipped)
	}
	return kept, skipped
}

// PrepareDelete drops duplicate ids and ids no longer in the store.
func (d *Dispatcher) PrepareDelete(ids []int64) (kept, skipped []int64) {
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if !d.rec.Store().Has(id) {
			skipped = append(skipped, id)
			continue
		}
		kept = append(kept, id)
	}
	return kept, skipped
}

// SubmitEdit sends patches to the server.
func (d *Dispatcher) SubmitEdit(ctx context.Context, patches []models.Patch) (models.Envelope, error) {
	env, err := d.api.BulkEdit(ctx, patches)
	if err != nil {
		d.logger.Error("bulk edit failed", "err", err, "count", len(patches))
		return models.Envelope{}, err
	}
	return env, nil
}

// SubmitDelete sends ids to the server.
func (d *Dispatcher) SubmitDelete(ctx context.Context, ids []int64) (models.Envelope, error) {
	env, err := d.api.BulkDelete(ctx, ids)
	if err != nil {
		d.logger.Error("bulk delete failed", "err", err, "count", len(ids))
		return models.Envelope{}, err
	}
	return env, nil
}

// ApplyEdit reconciles an edit envelope.
func (d *Dispatcher) ApplyEdit(patches []models.Patch, env models.Envelope, skipped []int64) (Outcome, error) {
	res, err := d.rec.ApplyEditEnvelope(patches, env)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Verb: "edited", Result: res, Skipped: skipped}, nil
}

// ApplyDelete reconciles a delete envelope.
func (d *Dispatcher) ApplyDelete(env models.Envelope, skipped []int64) (Outcome, error) {
	res, err := d.rec.ApplyDeleteEnvelope(env)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Verb: "deleted", Result: res, Skipped: skipped}, nil
}

// Edit confirms, submits and applies patches.
//
// Transport failures leave the store untouched. A cancelled confirmation returns
// [shared.ErrCancelled] without a network call.
func (d *Dispatcher) Edit(ctx context.Context, progress chan<- ProgressUpdate, patches []models.Patch) (Outcome, error) {
	kept, skipped := d.PrepareEdit(patches)
	if len(kept) == 0 {
		return Outcome{Verb: "edited", Skipped: skipped}, fmt.Errorf("%w: no existing entries to edit", shared.ErrNothingToProcess)
	}

	sendProgress(progress, confirmUpdate(len(kept)))
	if err := d.ask(ctx, EditPrompt(len(kept))); err != nil {
		return Outcome{}, err
	}

	sendProgress(progress, submitUpdate("edit", len(kept)))
	env, err := d.SubmitEdit(ctx, kept)
	if err != nil {
		return Outcome{}, err
	}

	out, err := d.ApplyEdit(kept, env, skipped)
	if err != nil {
		return Outcome{}, err
	}
	sendProgress(progress, appliedUpdate(out))
	return out, nil
}

// Delete confirms with "Delete N entries?", submits and applies the per-item result.
func (d *Dispatcher) Delete(ctx context.Context, progress chan<- ProgressUpdate, ids []int64) (Outcome, error) {
	kept, skipped := d.PrepareDelete(ids)
	if len(kept) == 0 {
		return Outcome{Verb: "deleted", Skipped: skipped}, fmt.Errorf("%w: no existing entries to delete", shared.ErrNothingToProcess)
	}

	sendProgress(progress, confirmUpdate(len(kept)))
	if err := d.ask(ctx, DeletePrompt(len(kept))); err != nil {
		return Outcome{}, err
	}

	sendProgress(progress, submitUpdate("delete", len(kept)))
	env, err := d.SubmitDelete(ctx, kept)
	if err != nil {
		return Outcome{}, err
	}

	out, err := d.ApplyDelete(env, skipped)
	if err != nil {
		return Outcome{}, err
	}
	sendProgress(progress, appliedUpdate(out))
	return out, nil
}

func (d *Dispatcher) ask(ctx context.Context, prompt string) error {
	ok, err := d.confirm.Confirm(ctx, prompt)
	if err != nil {
		return fmt.Errorf("confirmation failed: %w", err)
	}
	if !ok {
		d.logger.Info("command cancelled", "prompt", prompt)
		return shared.ErrCancelled
	}
	return nil
}

// CopyValues collects the field from entries in order, skipping blanks and duplicates.
func CopyValues(entries []*models.Entry, field CopyField) []string {
	var values []string
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		var v string
		switch field {
		case CopyTitle:
			if e.HasTitle() {
				v = *e.Title
			}
		default:
			v = e.URL
		}
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		values = append(values, v)
	}
	return values
}

// CopyField writes the newline-joined, deduplicated field values to the clipboard.
//
// Zero items returns [shared.ErrNothingToProcess]. A clipboard failure is logged and reported
// in the outcome rather than returned.
func (d *Dispatcher) CopyField(entries []*models.Entry, field CopyField) (CopyOutcome, error) {
	values := CopyValues(entries, field)
	if len(values) == 0 {
		return CopyOutcome{}, fmt.Errorf("%w: no %ss to copy", shared.ErrNothingToProcess, field)
	}

	if err := d.clip.WriteAll(strings.Join(values, "\n")); err != nil {
		d.logger.Error("copy failed", "field", field, "err", err)
		return CopyOutcome{OK: false, Count: len(values), Err: err}, nil
	}

	d.logger.Debug("copied to clipboard", "field", field, "count", len(values))
	return CopyOutcome{OK: true, Count: len(values)}, nil
}

// CopyEntryField copies one entry's field.
func (d *Dispatcher) CopyEntryField(id int64, field CopyField) (CopyOutcome, error) {
	e, ok := d.rec.Store().Find(id)
	if !ok {
		return CopyOutcome{}, fmt.Errorf("%w: #%d", shared.ErrUnknownEntry, id)
	}
	return d.CopyField([]*models.Entry{e}, field)
}
