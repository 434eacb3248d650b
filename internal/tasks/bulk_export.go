package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/desertthunder/dlx/internal/formatter"
	"github.com/desertthunder/dlx/internal/models"
	"github.com/desertthunder/dlx/internal/shared"
)

// Export writes entries in one format. It delegates to [formatter.WriteExport].
func (d *Dispatcher) Export(entries []*models.Entry, format, path string) (string, error) {
	if len(entries) == 0 {
		return "", fmt.Errorf("%w: no entries to export", shared.ErrNothingToProcess)
	}

	format, err := formatter.ParseFormat(format)
	if err != nil {
		return "", err
	}

	out, err := formatter.WriteExport(entries, format, path)
	if err != nil {
		d.logger.Error("export failed", "format", format, "err", err)
		return "", err
	}
	d.logger.Info("exported entries", "format", format, "path", out, "count", len(entries))
	return out, nil
}

// BulkExportOpts contains configuration for multi-format exports.
type BulkExportOpts struct {
	Formats    []string // Export formats (default: all of [formatter.Formats])
	OutputDir  string   // Base output directory (default: dlx_export_{epoch})
	BaseName   string   // File name without extension (default: downloads)
	NumWorkers int      // Concurrent writers (default: 4)
}

// FormatExportResult is the outcome of writing one format.
type FormatExportResult struct {
	Format string
	Path   string
	Error  error
}

// BulkExportResult summarizes a multi-format export.
type BulkExportResult struct {
	Entries         int
	Successful      int
	Failed          int
	OutputDirectory string
	ManifestPath    string
	Results         []FormatExportResult
}

// BulkExport writes the same entries in several formats concurrently and records a manifest.
//
// Entries are snapshotted before workers start, so the caller may keep mutating its store.
func (d *Dispatcher) BulkExport(
	ctx context.Context,
	prog chan<- ProgressUpdate,
	entries []*models.Entry,
	opts BulkExportOpts,
) (*BulkExportResult, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no entries to export", shared.ErrNothingToProcess)
	}

	if len(opts.Formats) == 0 {
		opts.Formats = formatter.Formats
	}
	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("dlx_export_%d", time.Now().Unix())
	}
	if opts.BaseName == "" {
		opts.BaseName = "downloads"
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 4
	}

	formats := make([]string, 0, len(opts.Formats))
	for _, f := range opts.Formats {
		parsed, err := formatter.ParseFormat(f)
		if err != nil {
			return nil, err
		}
		formats = append(formats, parsed)
	}
	opts.NumWorkers = min(opts.NumWorkers, len(formats))

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	snapshot := make([]*models.Entry, len(entries))
	ids := make([]int64, len(entries))
	for i, e := range entries {
		snapshot[i] = e.Clone()
		ids[i] = e.ID
	}

	result := &BulkExportResult{
		Entries:         len(snapshot),
		OutputDirectory: opts.OutputDir,
		Results:         make([]FormatExportResult, 0, len(formats)),
	}

	jobs := make(chan string, len(formats))
	results := make(chan FormatExportResult, len(formats))

	var wg sync.WaitGroup
	for range opts.NumWorkers {
		wg.Add(1)
		go d.exportWorker(ctx, &wg, jobs, results, snapshot, opts)
	}

	for i, f := range formats {
		sendProgress(prog, exportingUpdate(i+1, len(formats), f))
		jobs <- f
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	manifest := formatter.Manifest{CreatedAt: time.Now().UTC(), Entries: len(snapshot), IDs: ids}

	completed := 0
	for res := range results {
		completed++
		result.Results = append(result.Results, res)

		if res.Error == nil {
			result.Successful++
			manifest.Files = append(manifest.Files, formatter.ManifestFile{Format: res.Format, Path: res.Path, Status: "success"})
			sendProgress(prog, exportCompletedUpdate(completed, len(formats), res.Format, res.Path))
			continue
		}

		result.Failed++
		manifest.Files = append(manifest.Files, formatter.ManifestFile{Format: res.Format, Status: "failed", Error: res.Error.Error()})
		sendProgress(prog, exportFailedUpdate(completed, len(formats), res.Format, res.Error))
	}

	manifest.Successful = result.Successful
	manifest.Failed = result.Failed

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("%w: export interrupted", shared.ErrCancelled)
	}

	manifestPath := filepath.Join(opts.OutputDir, "export_manifest.json")
	if err := formatter.WriteExportManifest(manifest, manifestPath); err != nil {
		return result, fmt.Errorf("export completed but failed to write manifest: %w", err)
	}
	result.ManifestPath = manifestPath
	return result, nil
}

// exportWorker writes formats from the jobs channel.
func (d *Dispatcher) exportWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	jobs <-chan string,
	results chan<- FormatExportResult,
	entries []*models.Entry,
	opts BulkExportOpts,
) {
	defer wg.Done()

	for format := range jobs {
		select {
		case <-ctx.Done():
			results <- FormatExportResult{Format: format, Error: ctx.Err()}
			continue
		default:
		}

		path := filepath.Join(opts.OutputDir, opts.BaseName+formatter.Extension(format))
		out, err := formatter.WriteExport(entries, format, path)
		if err != nil {
			d.logger.Warn("format export failed", "format", format, "err", err)
		}
		results <- FormatExportResult{Format: format, Path: out, Error: err}
	}
}
