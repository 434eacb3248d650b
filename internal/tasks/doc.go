// Package tasks runs the user's bulk commands against the download server.
//
// # Commands
//
// [Dispatcher] implements four commands over the processable items of the table:
//
//  1. [Dispatcher.Edit] : confirm, PATCH /api/bulkEdit, apply successful items
//  2. [Dispatcher.Delete] : confirm ("Delete N entries?"), POST /api/bulkDelete, remove successful items
//  3. [Dispatcher.CopyField] : deduplicate URLs or titles and write them to the clipboard
//  4. [Dispatcher.Export] / [Dispatcher.BulkExport] : write entries through the formatter package
//
// Edit and delete re-check that every id still exists before submitting. Ids that vanished
// are reported as skipped. A declined confirmation returns [shared.ErrCancelled] and sends nothing.
//
// # Ownership
//
// The store is not locked. Prepare and Apply methods must run on the goroutine that owns it;
// Submit methods only do network I/O, so the TUI runs them inside a tea.Cmd and applies the
// envelope when the result message arrives.
//
// # Progress Reporting
//
// Long operations accept a ProgressUpdate channel. Updates use select with default so a
// slow reader never blocks a command.
//
// # Feedback
//
// [Feedback] is a transient indicator that reverts after [FeedbackDuration].
package tasks
