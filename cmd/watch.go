package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/dlx/internal/models"
	"github.com/desertthunder/dlx/internal/services"
	"github.com/desertthunder/dlx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Watch follows the live stream and prints every change until interrupted.
//
// The store is owned by this loop: events, resync listings and journal writes all happen here.
func (r *Runner) Watch(ctx context.Context, cmd *cli.Command) error {
	s, rec, err := r.loadStore(ctx)
	if err != nil {
		return err
	}

	db, journal, err := r.openJournal(cmd.Bool("journal"))
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	transport := cmd.String("transport")
	stream, err := r.newStream(transport)
	if err != nil {
		return err
	}
	defer stream.Close()
	if transport == "" {
		transport = r.config.Stream.Transport
	}

	var j tasks.Journal
	if journal != nil {
		j = journal
	}
	sync := tasks.NewSync(rec, j, r.config.Server.BaseURL, transport, r.logger)
	defer sync.Close()

	raw := cmd.Bool("json")
	if !raw {
		r.writePlain("watching %d downloads on %s (ctrl+c to stop)\n", s.Len(), r.config.Server.BaseURL)
	}

	var closeErr error
	for msg := range stream.Start(ctx) {
		res := sync.Handle(msg)

		switch msg.Status {
		case services.StreamEvent:
			if res.Err != nil {
				r.logger.Warn("dropped event", "err", res.Err)
				continue
			}
			if raw {
				r.writePlain("%s\n", msg.Payload)
				continue
			}
			r.printEvent(s.Len(), msg.Payload, res.Diagnostic)

		case services.StreamResync:
			entries, err := r.api.FetchDownloads(ctx)
			if err != nil {
				r.logger.Error("resync failed", "err", err)
				continue
			}
			sync.Reset(entries)
			r.logger.Info("resynced", "entries", s.Len())

		default:
			if res.Err != nil {
				r.logger.Warn(res.Status, "err", res.Err)
			} else {
				r.logger.Info(res.Status)
			}
		}

		if res.Closed {
			closeErr = res.Err
			break
		}
	}

	if ctx.Err() != nil {
		return nil
	}
	return closeErr
}

func (r *Runner) printEvent(total int, payload []byte, diagnostic string) {
	ev, err := models.DecodeEvent(payload)
	if err != nil {
		return
	}

	line := fmt.Sprintf("%s %-8s #%d", r.now().Format("15:04:05"), ev.Kind(), ev.EntryID())
	switch ev := ev.(type) {
	case models.Created:
		line += " " + ev.Entry.DisplayTitle()
	case models.Updated:
		line += fmt.Sprintf(" %v", ev.Patch.Fields())
	case models.Progressed:
		if p := ev.Percent(); p != nil {
			line += fmt.Sprintf(" %d%%", *p)
		}
	}
	if diagnostic != "" {
		line += " (" + diagnostic + ")"
	}
	r.writePlain("%s  [%d tracked]\n", line, total)
}
