package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/desertthunder/dlx/internal/models"
	"github.com/desertthunder/dlx/internal/shared"
	"github.com/desertthunder/dlx/internal/store"
	"github.com/desertthunder/dlx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// viewFromFlags builds the table view from --sort, --desc and --search, falling back to the
// configured sort.
func (r *Runner) viewFromFlags(cmd *cli.Command) (store.View, error) {
	v := store.NewView(r.config.UI.SortKey, r.config.UI.SortDir)

	if cmd.IsSet("sort") {
		key, err := store.ParseSortKey(cmd.String("sort"))
		if err != nil {
			return v, fmt.Errorf("%w: %v", shared.ErrInvalidFlag, err)
		}
		v.Key = key
		v.Dir = store.Asc
	}
	if cmd.IsSet("desc") {
		v.Dir = store.Asc
		if cmd.Bool("desc") {
			v.Dir = store.Desc
		}
	}
	v.Search = cmd.String("search")
	return v, nil
}

// ListDownloads prints the current downloads, sorted and filtered like the dashboard table.
func (r *Runner) ListDownloads(ctx context.Context, cmd *cli.Command) error {
	view, err := r.viewFromFlags(cmd)
	if err != nil {
		return err
	}

	s, _, err := r.loadStore(ctx)
	if err != nil {
		return err
	}
	rows := view.Rows(s)

	if cmd.Bool("json") {
		if rows == nil {
			rows = []*models.Entry{}
		}
		return r.writeJSON(rows, cmd.Bool("pretty"))
	}

	r.writePlainHeader(fmt.Sprintf("Downloads (%d of %d, sorted by %s %s)", len(rows), s.Len(), view.Key, view.Dir))
	if len(rows) == 0 {
		return r.writePlain("No downloads match.\n")
	}

	now := r.now()
	for _, e := range rows {
		r.writePlain("%-7s %-8s %-10s %-9s %s\n",
			e.DisplayID(), e.MediaType.Label(), e.DisplayStatus(), shared.FormatDuration(e.Elapsed(now)), e.DisplayTitle())
	}
	return nil
}

// EditDownload changes the title and/or media type of one entry.
//
// --title "" clears the title; omitting a flag leaves that field unchanged.
func (r *Runner) EditDownload(ctx context.Context, cmd *cli.Command) error {
	id := cmd.Int64("id")
	patch := models.Patch{ID: id}

	if cmd.IsSet("title") {
		title := strings.TrimSpace(cmd.String("title"))
		if title == "" {
			patch.Title = models.Some[*string](nil)
		} else {
			patch.Title = models.Some(&title)
		}
	}

	if cmd.IsSet("media-type") {
		mt, err := models.ParseMediaType(cmd.String("media-type"))
		if err != nil {
			return fmt.Errorf("%w: %v", shared.ErrInvalidFlag, err)
		}
		patch.MediaType = models.Some(mt)
	}

	if patch.Empty() {
		return fmt.Errorf("%w: --title or --media-type is required", shared.ErrMissingArgument)
	}

	s, rec, err := r.loadStore(ctx)
	if err != nil {
		return err
	}
	if !s.Has(id) {
		return fmt.Errorf("%w: #%d", shared.ErrUnknownEntry, id)
	}

	out, err := r.dispatcher(rec, cmd.Bool("yes")).Edit(ctx, r.progress(ctx), []models.Patch{patch})
	if err != nil {
		return err
	}
	return r.reportOutcome(out)
}

// DeleteDownloads deletes the given ids, or every entry matching --search.
func (r *Runner) DeleteDownloads(ctx context.Context, cmd *cli.Command) error {
	ids := cmd.Int64Slice("id")
	search := cmd.String("search")
	if len(ids) == 0 && search == "" {
		return fmt.Errorf("%w: --id or --search is required", shared.ErrMissingArgument)
	}

	s, rec, err := r.loadStore(ctx)
	if err != nil {
		return err
	}

	if len(ids) == 0 {
		for _, e := range (store.View{Key: store.SortID, Dir: store.Asc, Search: search}).Rows(s) {
			ids = append(ids, e.ID)
		}
	}

	out, err := r.dispatcher(rec, cmd.Bool("yes")).Delete(ctx, r.progress(ctx), ids)
	if err != nil {
		return err
	}
	return r.reportOutcome(out)
}

// CopyDownloads copies the URLs or titles of the matching entries to the clipboard.
func (r *Runner) CopyDownloads(ctx context.Context, cmd *cli.Command) error {
	field, err := tasks.ParseCopyField(cmd.StringArg("field"))
	if err != nil {
		return err
	}

	view, err := r.viewFromFlags(cmd)
	if err != nil {
		return err
	}

	s, rec, err := r.loadStore(ctx)
	if err != nil {
		return err
	}

	out, err := r.dispatcher(rec, true).CopyField(view.Rows(s), field)
	if err != nil {
		return err
	}
	if !out.OK {
		return out.Err
	}
	return r.writePlain("✓ Copied %d %ss\n", out.Count, field)
}

// ExportDownloads writes the matching entries in one or more formats.
func (r *Runner) ExportDownloads(ctx context.Context, cmd *cli.Command) error {
	view, err := r.viewFromFlags(cmd)
	if err != nil {
		return err
	}

	s, rec, err := r.loadStore(ctx)
	if err != nil {
		return err
	}

	opts := tasks.BulkExportOpts{
		Formats:    cmd.StringSlice("format"),
		OutputDir:  cmd.String("output"),
		BaseName:   cmd.String("name"),
		NumWorkers: cmd.Int("workers"),
	}

	result, err := r.dispatcher(rec, true).BulkExport(ctx, r.progress(ctx), view.Rows(s), opts)
	if err != nil {
		return err
	}

	r.writePlainHeader(fmt.Sprintf("Exported %d entries", result.Entries))
	for _, fr := range result.Results {
		if fr.Error != nil {
			r.writePlain("✗ %-8s %v\n", fr.Format, fr.Error)
			continue
		}
		r.writePlain("✓ %-8s %s\n", fr.Format, fr.Path)
	}
	r.writePlainln("Manifest: %s", result.ManifestPath)

	if result.Failed > 0 {
		return fmt.Errorf("%w: %d of %d formats failed", shared.ErrPartialFailure, result.Failed, len(result.Results))
	}
	return nil
}

// progress starts a logger for dispatcher updates. The goroutine exits with ctx.
func (r *Runner) progress(ctx context.Context) chan<- tasks.ProgressUpdate {
	ch := make(chan tasks.ProgressUpdate, 16)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case u := <-ch:
				r.logger.Debug(u.Message, "phase", u.Phase, "step", u.Step, "total", u.Total)
			}
		}
	}()
	return ch
}

// reportOutcome prints the per-item result of a bulk command and returns
// [shared.ErrPartialFailure] when any item failed.
func (r *Runner) reportOutcome(out tasks.Outcome) error {
	r.writePlain("✓ %s\n", out.Summary())
	for _, item := range out.Result.Failed {
		r.writePlain("  ✗ #%d: %s\n", item.Data, item.Error)
	}
	for _, id := range out.Skipped {
		r.writePlain("  - #%d: no longer exists\n", id)
	}
	if err := out.Err(); err != nil {
		return err
	}
	return nil
}

// isCancelled reports whether err is a declined confirmation.
func isCancelled(err error) bool {
	return errors.Is(err, shared.ErrCancelled)
}
