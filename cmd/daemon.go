package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/chrisrogers37/shuffify-sub000/internal/repositories"
	"github.com/chrisrogers37/shuffify-sub000/internal/scheduler"
)

const shutdownTimeout = 30 * time.Second

// Daemon runs the scheduler until interrupted: it registers a timer per
// enabled schedule and executes due jobs on the worker pool.
func (r *Runner) Daemon(ctx context.Context, cmd *cli.Command) error {
	manager := &managerHandle{}

	// the store's registrar keeps timers in sync if schedules change while
	// the daemon is up
	a, err := r.bootstrap(cmd, manager)
	if err != nil {
		return err
	}
	defer a.Close()

	location := time.Local
	if tz := a.config.Scheduler.Timezone; tz != "" {
		if location, err = time.LoadLocation(tz); err != nil {
			return fmt.Errorf("bad scheduler.timezone %q: %w", tz, err)
		}
	}

	manager.Manager = scheduler.NewManager(scheduler.ManagerOpts{
		Schedules:    repositories.NewScheduleRepository(a.db),
		State:        a.state,
		Runner:       a.executor,
		Workers:      a.config.Scheduler.Workers,
		MisfireGrace: time.Duration(a.config.Scheduler.MisfireGraceSecs) * time.Second,
		Location:     location,
		IsMain:       a.config.Scheduler.MainProcess,
		Logger:       r.logger,
	})

	if err := manager.Init(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	if !a.config.Scheduler.MainProcess {
		return r.writePlain("scheduler.main_process is false, nothing to run\n")
	}

	r.writePlain("✓ Scheduler running. Press Ctrl+C to stop.\n")

	waitCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-waitCtx.Done()

	r.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return manager.Shutdown(shutdownCtx)
}

// managerHandle defers the registrar target until the manager exists, since
// the store is wired before the manager is constructed.
type managerHandle struct {
	*scheduler.Manager
}
