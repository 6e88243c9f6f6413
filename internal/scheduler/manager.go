// Package scheduler owns the lifecycle of background timers: it registers a
// cron entry per enabled schedule, funnels fires through a bounded queue into
// a fixed worker pool, and guarantees that each schedule has at most one
// execution in flight at a time.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/robfig/cron/v3"

	"github.com/chrisrogers37/shuffify-sub000/internal/models"
	"github.com/chrisrogers37/shuffify-sub000/internal/repositories"
	"github.com/chrisrogers37/shuffify-sub000/internal/schedules"
	"github.com/chrisrogers37/shuffify-sub000/internal/shared"
	"github.com/chrisrogers37/shuffify-sub000/internal/tasks"
)

const (
	// DefaultWorkers is the worker pool size when none is configured.
	DefaultWorkers = 3
	// DefaultMisfireGrace drops fires that sat in the queue longer than this.
	DefaultMisfireGrace = 5 * time.Minute
	// queueSize bounds the fire queue; a full queue drops the fire rather
	// than blocking the cron goroutine.
	queueSize = 64
)

// Runner executes one schedule. Satisfied by [tasks.Executor].
type Runner interface {
	Execute(ctx context.Context, scheduleID string) *tasks.Result
}

// fire is one timer tick waiting for a worker.
type fire struct {
	scheduleID string
	at         time.Time
}

// Manager registers, replaces, and removes timers for schedules, and runs
// due jobs on its worker pool. It implements [schedules.TimerRegistrar].
type Manager struct {
	cron    *cron.Cron
	queue   chan fire
	workers int
	grace   time.Duration
	isMain  bool

	scheduleRepo *repositories.ScheduleRepository
	state        *repositories.StateRepository
	runner       Runner
	logger       *log.Logger

	mu      sync.Mutex
	entries map[string]cron.EntryID
	pending map[string]bool // fired, waiting for a worker
	running map[string]bool // handed to a worker, not yet finished
	started bool

	stop chan struct{}
	wg   sync.WaitGroup
}

// ManagerOpts contains dependencies for creating a Manager.
type ManagerOpts struct {
	Schedules    *repositories.ScheduleRepository
	State        *repositories.StateRepository
	Runner       Runner
	Workers      int
	MisfireGrace time.Duration
	Location     *time.Location
	IsMain       bool
	Logger       *log.Logger
}

// NewManager creates a Manager with the provided dependencies. Timers are
// inert until Init is called.
func NewManager(opts ManagerOpts) *Manager {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.MisfireGrace <= 0 {
		opts.MisfireGrace = DefaultMisfireGrace
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &Manager{
		cron:         cron.New(cron.WithLocation(opts.Location), cron.WithParser(schedules.Parser())),
		queue:        make(chan fire, queueSize),
		workers:      opts.Workers,
		grace:        opts.MisfireGrace,
		isMain:       opts.IsMain,
		scheduleRepo: opts.Schedules,
		state:        opts.State,
		runner:       opts.Runner,
		logger:       opts.Logger,
		entries:      map[string]cron.EntryID{},
		pending:      map[string]bool{},
		running:      map[string]bool{},
		stop:         make(chan struct{}),
	}
}

// Init loads every enabled schedule, registers its timer, and starts the
// worker pool. A fire that came due while the process was down is enqueued
// once, provided it is still within the misfire grace. Init is idempotent,
// and a no-op outside the designated main process so that sibling processes
// sharing the database never double-fire.
func (m *Manager) Init(ctx context.Context) error {
	if !m.isMain {
		m.logger.Debug("not the main process, timers stay inert")
		return nil
	}

	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = true
	m.mu.Unlock()

	enabled, err := m.scheduleRepo.ListEnabled()
	if err != nil {
		// a later Init must be allowed to retry the load
		m.mu.Lock()
		m.started = false
		m.mu.Unlock()
		return err
	}

	registered := 0
	for _, schedule := range enabled {
		missed := m.missedFire(schedule.ID())

		// one broken schedule must not keep the rest from starting
		if err := m.AddOrReplace(schedule); err != nil {
			m.logger.Error("failed to register timer", "schedule", schedule.ID(), "err", err)
			continue
		}
		registered++

		if missed {
			m.enqueue(schedule.ID())
		}
	}

	for i := 0; i < m.workers; i++ {
		m.wg.Add(1)
		go m.worker(ctx)
	}
	m.cron.Start()

	m.logger.Info("scheduler started", "schedules", registered, "workers", m.workers)
	return nil
}

// missedFire reports whether the persisted next fire for the schedule came
// due while no process was running. Missed fires older than the misfire
// grace are dropped; the rest coalesce into a single catch-up run.
func (m *Manager) missedFire(scheduleID string) bool {
	if m.state == nil {
		return false
	}
	planned, err := m.state.NextFire(scheduleID)
	if err != nil || planned.IsZero() || planned.After(time.Now()) {
		return false
	}
	if age := time.Since(planned); age > m.grace {
		m.logger.Warn("dropping fire missed while down", "schedule", scheduleID, "age", age)
		return false
	}
	m.logger.Info("catching up fire missed while down", "schedule", scheduleID, "planned", planned)
	return true
}

// AddOrReplace registers a timer for the schedule, replacing any existing
// one. An unparseable cron value falls back to daily at midnight.
func (m *Manager) AddOrReplace(schedule *models.Schedule) error {
	spec, fellBack := schedules.CronSpec(schedule.TriggerType(), schedule.TriggerValue())
	if fellBack {
		m.logger.Warn("trigger no longer parses, falling back to daily",
			"schedule", schedule.ID(), "value", schedule.TriggerValue())
	}

	scheduleID := schedule.ID()
	entryID, err := m.cron.AddFunc(spec, func() {
		m.enqueue(scheduleID)
	})
	if err != nil {
		return err
	}

	m.mu.Lock()
	if old, ok := m.entries[scheduleID]; ok {
		m.cron.Remove(old)
	}
	m.entries[scheduleID] = entryID
	m.mu.Unlock()

	m.persistNextFire(scheduleID, spec)
	return nil
}

// Remove drops the schedule's timer. Removing an unknown schedule is a no-op.
func (m *Manager) Remove(scheduleID string) {
	m.mu.Lock()
	entryID, ok := m.entries[scheduleID]
	if ok {
		delete(m.entries, scheduleID)
	}
	delete(m.pending, scheduleID)
	m.mu.Unlock()

	if ok {
		m.cron.Remove(entryID)
	}
}

// Shutdown stops new fires and waits for in-flight executions, bounded by
// the context deadline.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.cron.Stop()
	close(m.stop)

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		m.logger.Warn("scheduler shutdown timed out with executions in flight")
		return ctx.Err()
	}
}

// enqueue hands a fire to the worker pool. A fire for a schedule that is
// already queued or running is coalesced into the outstanding one.
func (m *Manager) enqueue(scheduleID string) {
	m.mu.Lock()
	if m.pending[scheduleID] || m.running[scheduleID] {
		m.mu.Unlock()
		m.logger.Debug("fire coalesced", "schedule", scheduleID)
		return
	}
	m.pending[scheduleID] = true
	m.mu.Unlock()

	select {
	case m.queue <- fire{scheduleID: scheduleID, at: time.Now()}:
	default:
		m.mu.Lock()
		delete(m.pending, scheduleID)
		m.mu.Unlock()
		m.logger.Warn("fire queue full, dropping fire", "schedule", scheduleID)
	}
}

func (m *Manager) worker(ctx context.Context) {
	defer m.wg.Done()

	for {
		select {
		case <-m.stop:
			return
		case f := <-m.queue:
			m.handle(ctx, f)
		}
	}
}

func (m *Manager) handle(ctx context.Context, f fire) {
	if age := time.Since(f.at); age > m.grace {
		m.mu.Lock()
		delete(m.pending, f.scheduleID)
		m.mu.Unlock()
		m.logger.Warn("dropping stale fire", "schedule", f.scheduleID, "age", age)
		return
	}

	m.mu.Lock()
	delete(m.pending, f.scheduleID)
	m.running[f.scheduleID] = true
	m.mu.Unlock()

	m.runner.Execute(ctx, f.scheduleID)

	m.mu.Lock()
	delete(m.running, f.scheduleID)
	entryID, tracked := m.entries[f.scheduleID]
	m.mu.Unlock()

	if tracked && m.state != nil {
		next := m.cron.Entry(entryID).Next
		if !next.IsZero() {
			if err := m.state.SetNextFire(f.scheduleID, next); err != nil {
				m.logger.Error("failed to persist next fire", "schedule", f.scheduleID, "err", err)
			}
		}
	}
}

// persistNextFire records the first planned fire after (re-)registration.
func (m *Manager) persistNextFire(scheduleID, spec string) {
	if m.state == nil {
		return
	}
	parsed, err := schedules.ParseSpec(spec)
	if err != nil {
		return
	}
	if err := m.state.SetNextFire(scheduleID, parsed.Next(time.Now())); err != nil {
		m.logger.Error("failed to persist next fire", "schedule", scheduleID, "err", err)
	}
}
