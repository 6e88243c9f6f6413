package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/chrisrogers37/shuffify-sub000/internal/algorithms"
	"github.com/chrisrogers37/shuffify-sub000/internal/models"
	"github.com/chrisrogers37/shuffify-sub000/internal/repositories"
	"github.com/chrisrogers37/shuffify-sub000/internal/schedules"
	"github.com/chrisrogers37/shuffify-sub000/internal/services"
	"github.com/chrisrogers37/shuffify-sub000/internal/shared"
	"github.com/chrisrogers37/shuffify-sub000/internal/tasks"
	"github.com/chrisrogers37/shuffify-sub000/internal/vault"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config *shared.Config
	logger *log.Logger
	output io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config *shared.Config
	Logger *log.Logger
	Output io.Writer
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

	return &Runner{
		config: opts.Config,
		logger: opts.Logger,
		output: opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, scheduleCommand, runCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// app bundles the wired persistence and service layer a command works with.
// Built per invocation so each command sees the config file as it is now.
type app struct {
	config     *shared.Config
	db         *sql.DB
	users      *repositories.UserRepository
	state      *repositories.StateRepository
	executions *repositories.ExecutionRepository
	store      *schedules.Store
	executor   *tasks.Executor
	spotify    *services.SpotifyService
	cipher     *vault.Cipher
}

func (a *app) Close() {
	a.db.Close()
}

// bootstrap loads configuration, opens the database, and wires the
// repositories, credential cipher, Spotify service, schedule store, and
// executor. The registrar keeps live timers in sync with store mutations;
// pass nil outside the daemon, where there are no timers to sync.
func (r *Runner) bootstrap(cmd *cli.Command, registrar schedules.TimerRegistrar) (*app, error) {
	config := r.loadConfig(cmd)

	if config.Security.MasterSecret == "" {
		return nil, fmt.Errorf("%w: security.master_secret is not set", shared.ErrMissingConfig)
	}

	cipher, err := vault.NewCipher(config.Security.MasterSecret)
	if err != nil {
		return nil, err
	}

	spotify, err := services.NewSpotifyService(
		config.Credentials.Spotify.ClientID,
		config.Credentials.Spotify.ClientSecret,
		config.Credentials.Spotify.RedirectURI,
	)
	if err != nil {
		return nil, err
	}

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)

	users := repositories.NewUserRepository(db)
	scheduleRepo := repositories.NewScheduleRepository(db)
	executions := repositories.NewExecutionRepository(db)
	state := repositories.NewStateRepository(db)

	// the store validates against the same registry the executor runs with
	registry := algorithms.NewRegistry()

	store := schedules.NewStore(schedules.StoreOpts{
		Schedules:  scheduleRepo,
		Executions: executions,
		State:      state,
		Registrar:  registrar,
		Algorithms: registry,
		MaxPerUser: config.Scheduler.MaxPerUser,
		Logger:     r.logger,
	})

	executor := tasks.NewExecutor(tasks.ExecutorOpts{
		Schedules:  scheduleRepo,
		Executions: executions,
		Users:      users,
		Cipher:     cipher,
		Refresher:  spotify,
		Registry:   registry,
		Logger:     r.logger,
	})

	return &app{
		config:     config,
		db:         db,
		users:      users,
		state:      state,
		executions: executions,
		store:      store,
		executor:   executor,
		spotify:    spotify,
		cipher:     cipher,
	}, nil
}

// loadConfig reads the config flag's file if it exists, falling back to the
// Runner's config.
func (r *Runner) loadConfig(cmd *cli.Command) *shared.Config {
	configPath := cmd.String("config")
	if configPath == "" {
		configPath = "config.toml"
	}

	if _, err := os.Stat(configPath); err == nil {
		if config, err := shared.LoadConfig(configPath); err == nil {
			return config
		} else {
			r.logger.Warn("failed to load config, using defaults", "error", err)
		}
	}

	return r.config
}

// activeUser resolves the account CLI commands act as: the most recently
// authenticated one.
func (r *Runner) activeUser(a *app) (*models.User, error) {
	users, err := a.users.List()
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, fmt.Errorf("%w: no account on file, run `shuffify auth login` first", shared.ErrMissingCredential)
	}
	if len(users) > 1 {
		r.logger.Debug("multiple accounts on file, using most recent", "spotify_id", users[0].SpotifyID())
	}
	return users[0], nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

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
