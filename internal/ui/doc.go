// Package ui implements the download dashboard using bubbletea's Elm architecture.
//
// The TUI is a single table with dialogs layered over it:
//  1. [LoadingView] : Waiting for the first listing
//  2. [TableView] : Sortable, filterable downloads with row selection
//  3. [SearchView] : Editing the title filter
//  4. [EditView] : Title and media type of the processable entries
//  5. [ConfirmView] : Confirm a bulk delete
//  6. [ErrorView] : The first listing failed; r retries
//
// The (view) [Model] owns the [store.Store]. Stream messages, listing results and command
// results all arrive as messages and are applied in Update, so the store is only ever touched
// from the bubbletea goroutine. Network calls run inside commands through the Submit half of
// [tasks.Dispatcher]; their envelopes come back as messages and are reconciled with the Apply half.
//
// A stream resync triggers a full refetch, which replaces the table contents while keeping the
// selection of entries that still exist.
//
// Keyboard navigation uses vim-style bindings with contextual help displayed via charmbracelet/bubbles/help.
package ui
