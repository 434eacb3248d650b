package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/dlx/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupConfig writes the example configuration to --config.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := r.configPathFor(cmd)

	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}
	r.logger.Info("config file created", "path", path)

	r.writePlain("✓ Configuration written to %s\n", path)
	r.writePlainln("Next steps:")
	r.writePlain("1. Set server.base_url and server.api_key, or run 'dlx setup key --curl ...'\n")
	r.writePlain("2. Run 'dlx list' to check the connection\n")
	return nil
}

// SetupDatabase initializes the journal database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	config := r.config
	if path := r.configPathFor(cmd); path != r.configPath {
		loaded, err := shared.LoadConfig(path)
		if err != nil {
			r.logger.Warn("failed to load config, using defaults", "error", err)
			loaded = shared.DefaultConfig()
		}
		config = loaded
	}

	r.logger.Info("initializing database", "path", config.Database.Path)

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)

	r.logger.Info("running database migrations")
	applied, err := shared.RunMigrations(db)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	r.logger.Infof("setup complete for database: %v", config.Database.Path)
	return r.writePlain("✓ Database ready at %s (%d migrations applied)\n", config.Database.Path, applied)
}

// SetupKey stores the API key and server address found in a cURL command copied from the
// browser's DevTools.
func (r *Runner) SetupKey(ctx context.Context, cmd *cli.Command) error {
	curlCmd := cmd.String("curl")
	curlFile := cmd.String("curl-file")

	if curlCmd == "" && curlFile == "" {
		return fmt.Errorf("%w: either --curl or --curl-file must be provided", shared.ErrMissingArgument)
	}

	if curlCmd != "" && curlFile != "" {
		return fmt.Errorf("%w: cannot specify both --curl and --curl-file", shared.ErrInvalidArgument)
	}

	var req *shared.CurlRequest
	var err error

	if curlFile != "" {
		req, err = shared.ParseCurlFile(curlFile)
		if err != nil {
			return fmt.Errorf("failed to parse cURL file: %w", err)
		}
		r.logger.Info("parsed cURL from file", "file", curlFile)
	} else {
		req, err = shared.ParseCurlCommand(curlCmd)
		if err != nil {
			return fmt.Errorf("failed to parse cURL command: %w", err)
		}
		r.logger.Info("parsed cURL command")
	}

	key, err := req.APIKey()
	if err != nil {
		return err
	}

	path := r.configPathFor(cmd)
	config := r.config
	if path != r.configPath && fileExists(path) {
		if config, err = shared.LoadConfig(path); err != nil {
			return err
		}
	}
	config.Server.APIKey = key

	if base, err := req.BaseURL(); err == nil {
		config.Server.BaseURL = base
	} else {
		r.logger.Warn("cURL command has no server address, keeping base_url", "base_url", config.Server.BaseURL)
	}

	if err := shared.WriteConfigFile(path, config); err != nil {
		return err
	}
	r.logger.Info("saved API key", "path", path)

	r.writePlain("✓ API key saved to %s\n", path)
	r.writePlain("Server: %s\n", config.Server.BaseURL)
	return nil
}

// configPathFor resolves --config, falling back to the path main loaded.
func (r *Runner) configPathFor(cmd *cli.Command) string {
	if path := cmd.String("config"); path != "" {
		return path
	}
	if r.configPath != "" {
		return r.configPath
	}
	return defaultConfigPath
}

// fileExists reports whether path names an existing file.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
