package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/dlx/internal/reconcile"
	"github.com/desertthunder/dlx/internal/repositories"
	"github.com/desertthunder/dlx/internal/services"
	"github.com/desertthunder/dlx/internal/shared"
	"github.com/desertthunder/dlx/internal/store"
	"github.com/desertthunder/dlx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	api        services.DownloadsAPI
	apiService *services.APIService
	httpClient *http.Client
	clipboard  tasks.Clipboard
	confirmer  tasks.Confirmer
	logger     *log.Logger
	output     io.Writer
	input      io.Reader
	now        func() time.Time
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	API        services.DownloadsAPI // defaults to an [services.APIService] built from Config
	HTTPClient *http.Client
	Clipboard  tasks.Clipboard
	Confirmer  tasks.Confirmer // defaults to a stdin prompt
	Logger     *log.Logger
	Output     io.Writer
	Input      io.Reader
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Input == nil {
		opts.Input = os.Stdin
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Clipboard == nil {
		opts.Clipboard = tasks.SystemClipboard{}
	}
	if opts.Confirmer == nil {
		opts.Confirmer = NewPromptConfirmer(opts.Input, opts.Output)
	}

	apiService := services.NewAPIService(opts.Config.Server.BaseURL, opts.Config.Server.APIKey, opts.HTTPClient)
	if opts.API == nil {
		opts.API = apiService
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		api:        opts.API,
		apiService: apiService,
		httpClient: opts.HTTPClient,
		clipboard:  opts.Clipboard,
		confirmer:  opts.Confirmer,
		logger:     opts.Logger,
		output:     opts.Output,
		input:      opts.Input,
		now:        time.Now,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		tuiCommand, listCommand, watchCommand, editCommand, deleteCommand, copyCommand,
		exportCommand, journalCommand, setupCommand, demoServerCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger replaces the logger, e.g. to move logs to a file while the TUI owns the terminal.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

// loadStore fetches the current listing into a fresh store owned by the calling command.
func (r *Runner) loadStore(ctx context.Context) (*store.Store, *reconcile.Reconciler, error) {
	entries, err := r.api.FetchDownloads(ctx)
	if err != nil {
		return nil, nil, err
	}

	s := store.New()
	if dropped := s.Reset(entries); dropped > 0 {
		r.logger.Warn("listing contained duplicate ids", "dropped", dropped)
	}
	r.logger.Debug("fetched downloads", "count", s.Len())
	return s, reconcile.New(s, r.logger), nil
}

// dispatcher builds a dispatcher over rec. yes skips the confirmation prompt.
func (r *Runner) dispatcher(rec *reconcile.Reconciler, yes bool) *tasks.Dispatcher {
	var confirm tasks.Confirmer = r.confirmer
	if yes {
		confirm = tasks.AutoConfirm{}
	}
	return tasks.NewDispatcher(r.api, rec, r.clipboard, confirm, r.logger)
}

// openJournal opens the journal database, or returns nils when journaling is off.
func (r *Runner) openJournal(force bool) (*sql.DB, *repositories.Journal, error) {
	if !force && !r.config.Journal.Enabled {
		return nil, nil, nil
	}

	db, err := shared.OpenJournal(r.config.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open journal: %w", err)
	}
	return db, repositories.NewJournal(db, r.config.Journal.Retain), nil
}

// newStream builds the configured stream transport.
func (r *Runner) newStream(transport string) (*services.Stream, error) {
	if transport == "" {
		transport = r.config.Stream.Transport
	}
	dialer, err := services.NewDialer(transport, r.apiService, r.httpClient)
	if err != nil {
		return nil, err
	}
	return services.NewStream(dialer, services.StreamOptsFromConfig(r.config.Stream), r.logger), nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
