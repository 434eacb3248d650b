package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/dlx/internal/services"
	"github.com/desertthunder/dlx/internal/shared"
	"github.com/desertthunder/dlx/internal/store"
	"github.com/desertthunder/dlx/internal/tasks"
	"github.com/desertthunder/dlx/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive download dashboard.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, logFile, err := shared.NewFileLogger(r.config.UI.LogFile)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	defer logFile.Close()
	r.SetLogger(fileLogger)

	db, journal, err := r.openJournal(cmd.Bool("journal"))
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	transport := cmd.String("transport")
	if transport == "" {
		transport = r.config.Stream.Transport
	}

	var stream *services.Stream
	if !cmd.Bool("no-stream") {
		if stream, err = r.newStream(transport); err != nil {
			return err
		}
	}

	opts := ui.Options{
		API:       r.api,
		Stream:    stream,
		Clipboard: r.clipboard,
		BaseURL:   r.config.Server.BaseURL,
		Transport: transport,
		View:      store.NewView(r.config.UI.SortKey, r.config.UI.SortDir),
		Feedback:  r.config.UI.FeedbackDuration(),
		Logger:    fileLogger,
	}
	if journal != nil {
		opts.Journal = tasks.Journal(journal)
	}

	model := ui.NewModel(ctx, opts)
	defer model.Close()

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
