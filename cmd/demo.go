package main

import (
	"context"

	"github.com/desertthunder/dlx/internal/server"
	"github.com/urfave/cli/v3"
)

// DemoServer runs a local media server that implements the download API with simulated
// downloads, for trying the dashboard without a real backend.
func (r *Runner) DemoServer(ctx context.Context, cmd *cli.Command) error {
	c := r.config.Demo
	if cmd.IsSet("host") {
		c.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		c.Port = cmd.Int("port")
	}
	if cmd.IsSet("seed") {
		c.Seed = cmd.Int("seed")
	}

	key := r.config.Server.APIKey
	if cmd.IsSet("api-key") {
		key = cmd.String("api-key")
	}

	srv := server.New(c, key, r.logger)
	r.logger.Info("starting demo server", "addr", c.Addr(), "seed", c.Seed, "auth", key != "")
	r.writePlain("Demo server on http://%s (ctrl+c to stop)\n", c.Addr())
	return srv.ListenAndServe(ctx)
}
