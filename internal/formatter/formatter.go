// package formatter exports download entries to various formats (CSV, Markdown, plain text, JSON)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/dlx/internal/models"
	"github.com/desertthunder/dlx/internal/shared"
)

// Supported export formats.
const (
	FormatCSV      = "csv"
	FormatMarkdown = "markdown"
	FormatText     = "txt"
	FormatJSON     = "json"
)

// Formats lists every format in the order exports are written.
var Formats = []string{FormatCSV, FormatMarkdown, FormatText, FormatJSON}

// ParseFormat normalizes a format name. "md" and "text" are accepted as aliases.
func ParseFormat(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatMarkdown, "md":
		return FormatMarkdown, nil
	case FormatText, "text":
		return FormatText, nil
	case FormatJSON, "":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %q (want csv, markdown, txt or json)", shared.ErrUnsupportedFormat, s)
	}
}

// Extension returns the file extension for a format, including the dot.
func Extension(format string) string {
	switch format {
	case FormatMarkdown:
		return ".md"
	case FormatText:
		return ".txt"
	case FormatCSV:
		return ".csv"
	default:
		return ".json"
	}
}

// ExportToCSV converts entries to CSV with columns: ID, Media Type, Title, URL, Status, Started, Finished
func ExportToCSV(entries []*models.Entry) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Media Type", "Title", "URL", "Status", "Started", "Finished"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, e := range entries {
		record := []string{
			strconv.FormatInt(e.ID, 10),
			e.MediaType.String(),
			deref(e.Title),
			e.URL,
			deref(e.Status),
			csvTime(e.StartTime),
			csvTime(e.EndTime),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown renders entries as a Markdown table under the given heading.
//
// now drives the elapsed column for running downloads.
func ExportToMarkdown(entries []*models.Entry, heading string, now time.Time) ([]byte, error) {
	var buf bytes.Buffer

	if heading == "" {
		heading = "Downloads"
	}
	buf.WriteString(fmt.Sprintf("# %s\n\n", heading))
	buf.WriteString(fmt.Sprintf("**Entries**: %d\n\n", len(entries)))

	if len(entries) == 0 {
		return buf.Bytes(), nil
	}

	buf.WriteString("| ID | Type | Title | Status | Started | Time |\n")
	buf.WriteString("|---:|---|---|---|---|---|\n")
	for _, e := range entries {
		title := fmt.Sprintf("[%s](%s)", mdEscape(e.DisplayTitle()), e.URL)
		buf.WriteString(fmt.Sprintf("| %d | %s | %s | %s | %s | %s |\n",
			e.ID,
			e.MediaType.Label(),
			title,
			mdEscape(e.DisplayStatus()),
			e.DisplayStart(),
			shared.FormatDuration(e.Elapsed(now)),
		))
	}

	return buf.Bytes(), nil
}

// ExportToText converts entries to plain text, one "#id title <url>" line each.
func ExportToText(entries []*models.Entry) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Entries: %d\n\n", len(entries)))
	for _, e := range entries {
		if e.HasTitle() {
			buf.WriteString(fmt.Sprintf("%s %s <%s>\n", e.DisplayID(), *e.Title, e.URL))
			continue
		}
		buf.WriteString(fmt.Sprintf("%s %s\n", e.DisplayID(), e.URL))
	}

	return buf.Bytes(), nil
}

// ExportToJSON encodes entries in their wire form.
func ExportToJSON(entries []*models.Entry) ([]byte, error) {
	if entries == nil {
		entries = []*models.Entry{}
	}
	return shared.MarshalJSON(entries, true)
}

// Export renders entries in format.
func Export(entries []*models.Entry, format string, now time.Time) ([]byte, error) {
	switch format {
	case FormatCSV:
		return ExportToCSV(entries)
	case FormatMarkdown:
		return ExportToMarkdown(entries, "Downloads", now)
	case FormatText:
		return ExportToText(entries)
	case FormatJSON:
		return ExportToJSON(entries)
	default:
		return nil, fmt.Errorf("%w: %q", shared.ErrUnsupportedFormat, format)
	}
}

// WriteExport renders entries and writes them to path.
//
// Defaults to downloads{ext} in the working directory. Missing parent directories are created.
func WriteExport(entries []*models.Entry, format, path string) (string, error) {
	if path == "" {
		path = "downloads" + Extension(format)
	}

	data, err := Export(entries, format, time.Now())
	if err != nil {
		return "", err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s file: %w", format, err)
	}

	return path, nil
}

// ManifestFile records one file written by a bulk export.
type ManifestFile struct {
	Format string `json:"format"`
	Path   string `json:"path,omitempty"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Manifest summarizes a multi-format export.
type Manifest struct {
	CreatedAt  time.Time      `json:"created_at"`
	Entries    int            `json:"entries"`
	IDs        []int64        `json:"ids"`
	Successful int            `json:"successful_exports"`
	Failed     int            `json:"failed_exports"`
	Files      []ManifestFile `json:"files"`
}

// WriteExportManifest writes m as indented JSON to path.
func WriteExportManifest(m Manifest, path string) error {
	data, err := shared.MarshalJSON(m, true)
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func csvTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func mdEscape(s string) string {
	return strings.NewReplacer("|", `\|`, "\n", " ").Replace(s)
}
