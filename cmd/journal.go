package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/dlx/internal/models"
	"github.com/desertthunder/dlx/internal/reconcile"
	"github.com/desertthunder/dlx/internal/repositories"
	"github.com/desertthunder/dlx/internal/shared"
	"github.com/desertthunder/dlx/internal/store"
	"github.com/urfave/cli/v3"
)

// JournalList prints recorded stream sessions, newest first.
func (r *Runner) JournalList(ctx context.Context, cmd *cli.Command) error {
	db, journal, err := r.openJournal(true)
	if err != nil {
		return err
	}
	defer db.Close()

	sessions, err := journal.Sessions.List(cmd.Int("limit"))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		if sessions == nil {
			sessions = []*models.Session{}
		}
		return r.writeJSON(sessions, cmd.Bool("pretty"))
	}

	r.writePlainHeader(fmt.Sprintf("Journal sessions (%d)", len(sessions)))
	now := r.now()
	for _, s := range sessions {
		state := "ended"
		if s.Open() {
			state = "open"
		}
		r.writePlain("%-36s  %s  %-9s  %-6s  %s\n",
			s.ID, s.StartedAt.Local().Format(shared.LocalTimeLayout), s.Transport, state,
			shared.FormatDuration(s.Duration(now)))
	}
	return nil
}

// JournalEvents prints stored events matching the filter flags.
func (r *Runner) JournalEvents(ctx context.Context, cmd *cli.Command) error {
	criteria := map[string]any{
		"session_id": cmd.String("session"),
		"entry_id":   cmd.Int64("entry"),
		"origin":     cmd.String("origin"),
		"limit":      cmd.Int("limit"),
	}
	if name := cmd.String("kind"); name != "" {
		kind, err := models.ParseEventKindName(name)
		if err != nil {
			return fmt.Errorf("%w: %v", shared.ErrInvalidFlag, err)
		}
		criteria["kind"] = kind
	}

	db, journal, err := r.openJournal(true)
	if err != nil {
		return err
	}
	defer db.Close()

	events, err := journal.Events.List(criteria)
	if err != nil {
		return err
	}

	for _, e := range events {
		if cmd.Bool("json") {
			r.writePlain("%s\n", e.Payload)
			continue
		}
		r.writePlain("%6d  %s  %-8s  #%-6d  %-7s  %s\n",
			e.Sequence, e.ReceivedAt.Local().Format(shared.LocalTimeLayout), e.Kind, e.EntryID, e.Origin, e.SessionID)
	}
	return nil
}

// JournalReplay folds the events of a session into an empty store and prints the result.
//
// Without --session the most recent session is replayed.
func (r *Runner) JournalReplay(ctx context.Context, cmd *cli.Command) error {
	db, journal, err := r.openJournal(true)
	if err != nil {
		return err
	}
	defer db.Close()

	session, err := r.resolveSession(journal, cmd.String("session"))
	if err != nil {
		return err
	}

	events, err := journal.Events.Replay(session.ID)
	if err != nil {
		return err
	}

	s := store.New()
	changed := reconcile.New(s, r.logger).ApplyAll(events)
	rows := store.View{Key: store.SortID, Dir: store.Asc}.Rows(s)

	if cmd.Bool("json") {
		if rows == nil {
			rows = []*models.Entry{}
		}
		return r.writeJSON(rows, cmd.Bool("pretty"))
	}

	r.writePlainHeader(fmt.Sprintf("Session %s", session.ID))
	r.writePlain("started %s over %s, %d events, %d changes\n",
		session.StartedAt.Local().Format(shared.LocalTimeLayout), session.Transport, len(events), changed)
	r.writePlainln("Resulting entries (%d):", len(rows))
	for _, e := range rows {
		r.writePlain("%-7s %-8s %-10s %s\n", e.DisplayID(), e.MediaType.Label(), e.DisplayStatus(), e.DisplayTitle())
	}
	return nil
}

// JournalPrune deletes old events, keeping the newest --retain (default: journal.retain).
func (r *Runner) JournalPrune(ctx context.Context, cmd *cli.Command) error {
	retain := r.config.Journal.Retain
	if cmd.IsSet("retain") {
		retain = cmd.Int("retain")
	}
	if retain <= 0 {
		return fmt.Errorf("%w: --retain must be positive", shared.ErrInvalidFlag)
	}

	db, journal, err := r.openJournal(true)
	if err != nil {
		return err
	}
	defer db.Close()

	deleted, err := journal.Events.Prune(retain)
	if err != nil {
		return err
	}
	r.logger.Info("pruned journal", "deleted", deleted, "retain", retain)
	return r.writePlain("✓ Deleted %d events\n", deleted)
}

func (r *Runner) resolveSession(journal *repositories.Journal, id string) (*models.Session, error) {
	if id != "" {
		return journal.Sessions.Get(id)
	}
	return journal.Sessions.Latest()
}
