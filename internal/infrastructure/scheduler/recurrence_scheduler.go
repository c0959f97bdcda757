package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/invoicing/backend/internal/infrastructure/telemetry"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Trigger names the source of a recurrence run
type Trigger string

const (
	TriggerMonthly Trigger = "monthly"
	TriggerYearly  Trigger = "yearly"
	TriggerManual  Trigger = "manual"
)

// RunFunc executes one recurrence run
type RunFunc func(ctx context.Context) error

// RecurrenceSchedulerConfig holds configuration for the recurrence cron jobs
type RecurrenceSchedulerConfig struct {
	// Location is the time zone the cron expressions are evaluated in
	Location *time.Location
	// MonthlySchedule fires the monthly cadence (standard 5-field cron)
	MonthlySchedule string
	// YearlySchedule fires the yearly cadence (standard 5-field cron)
	YearlySchedule string
}

// DefaultRecurrenceSchedulerConfig runs at midnight UTC on the 1st of each
// month and on January 1st.
func DefaultRecurrenceSchedulerConfig() RecurrenceSchedulerConfig {
	return RecurrenceSchedulerConfig{
		Location:        time.UTC,
		MonthlySchedule: "0 0 1 * *",
		YearlySchedule:  "0 0 1 1 *",
	}
}

// ScheduleEntry describes one registered cadence
type ScheduleEntry struct {
	Trigger  Trigger   `json:"trigger"`
	Schedule string    `json:"schedule"`
	Next     time.Time `json:"next_run_at"`
	Prev     time.Time `json:"prev_run_at,omitzero"`
}

// RunStatus is the outcome of the most recent run
type RunStatus struct {
	Trigger    Trigger       `json:"trigger"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
	Error      string        `json:"error,omitempty"`
	InProgress bool          `json:"in_progress"`
}

type registration struct {
	trigger  Trigger
	schedule string
	id       cron.EntryID
}

// RecurrenceScheduler fires recurrence runs on the monthly and yearly cadences.
// Only one run executes at a time within the process; a cadence that fires
// while a run is active is skipped.
type RecurrenceScheduler struct {
	config  RecurrenceSchedulerConfig
	run     RunFunc
	logger  *zap.Logger
	cron    *cron.Cron
	entries []registration
	now     func() time.Time

	runMu sync.Mutex

	mu        sync.Mutex
	isRunning bool
	baseCtx   context.Context
	cancel    context.CancelFunc
	lastRun   *RunStatus
}

// NewRecurrenceScheduler parses both schedules and registers the jobs. The
// scheduler does not fire until Start is called.
func NewRecurrenceScheduler(config RecurrenceSchedulerConfig, run RunFunc, logger *zap.Logger) (*RecurrenceScheduler, error) {
	if run == nil {
		return nil, fmt.Errorf("%w: run function is required", ErrInvalidConfig)
	}
	if config.Location == nil {
		config.Location = time.UTC
	}

	cronLogger := newCronLogger(logger)
	s := &RecurrenceScheduler{
		config: config,
		run:    run,
		logger: logger,
		now:    time.Now,
		cron: cron.New(
			cron.WithLocation(config.Location),
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
	}

	for _, reg := range []registration{
		{trigger: TriggerMonthly, schedule: config.MonthlySchedule},
		{trigger: TriggerYearly, schedule: config.YearlySchedule},
	} {
		trigger := reg.trigger
		id, err := s.cron.AddFunc(reg.schedule, func() { s.fire(trigger) })
		if err != nil {
			return nil, fmt.Errorf("%w: %s %q: %v", ErrInvalidSchedule, reg.trigger, reg.schedule, err)
		}
		reg.id = id
		s.entries = append(s.entries, reg)
	}

	return s, nil
}

// Start starts the cron loop. Runs use a context derived from ctx.
func (s *RecurrenceScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return nil
	}

	s.baseCtx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	s.isRunning = true
	s.cron.Start()

	fields := []zap.Field{zap.String("location", s.config.Location.String())}
	for _, e := range s.Entries() {
		fields = append(fields, zap.Time(string(e.Trigger)+"_next_run_at", e.Next))
	}
	s.logger.Info("Recurrence scheduler started", fields...)
	return nil
}

// Stop stops the cron loop and waits for an in-flight run. If ctx expires
// first the run's context is canceled and ctx.Err() is returned.
func (s *RecurrenceScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	cancel := s.cancel
	s.mu.Unlock()

	done := s.cron.Stop()
	select {
	case <-done.Done():
		cancel()
		s.logger.Info("Recurrence scheduler stopped")
		return nil
	case <-ctx.Done():
		cancel()
		s.logger.Warn("Recurrence scheduler stop timed out")
		return ctx.Err()
	}
}

// IsRunning reports whether the cron loop is active.
func (s *RecurrenceScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// Entries returns the registered cadences with their next fire times.
func (s *RecurrenceScheduler) Entries() []ScheduleEntry {
	now := s.now().In(s.config.Location)
	out := make([]ScheduleEntry, 0, len(s.entries))
	for _, reg := range s.entries {
		e := s.cron.Entry(reg.id)
		entry := ScheduleEntry{
			Trigger:  reg.trigger,
			Schedule: reg.schedule,
			Prev:     e.Prev,
		}
		if e.Schedule != nil {
			entry.Next = e.Schedule.Next(now)
		}
		out = append(out, entry)
	}
	return out
}

// LastRun returns the status of the most recent run, or nil.
func (s *RecurrenceScheduler) LastRun() *RunStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastRun == nil {
		return nil
	}
	status := *s.lastRun
	return &status
}

// TriggerNow runs synchronously on the caller's context. It returns
// ErrRunInProgress when a scheduled or manual run is already active.
func (s *RecurrenceScheduler) TriggerNow(ctx context.Context) error {
	return s.execute(ctx, TriggerManual)
}

func (s *RecurrenceScheduler) fire(trigger Trigger) {
	s.mu.Lock()
	ctx := s.baseCtx
	s.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	err := s.execute(ctx, trigger)
	switch {
	case err == nil:
	case errors.Is(err, ErrRunInProgress):
		// Jan 1 fires both cadences; the second one finds nothing left to do.
		s.logger.Info("Scheduled recurrence run coalesced with the active run",
			zap.String("trigger", string(trigger)))
	default:
		s.logger.Error("Scheduled recurrence run failed",
			zap.String("trigger", string(trigger)),
			zap.Error(err))
	}
}

func (s *RecurrenceScheduler) execute(ctx context.Context, trigger Trigger) error {
	if !s.runMu.TryLock() {
		s.logger.Info("Recurrence run skipped, another run is active",
			zap.String("trigger", string(trigger)))
		return ErrRunInProgress
	}
	defer s.runMu.Unlock()

	started := s.now()
	s.setLastRun(&RunStatus{Trigger: trigger, StartedAt: started, InProgress: true})
	s.logger.Info("Recurrence run starting", zap.String("trigger", string(trigger)))

	var err error
	telemetry.WithProfilingLabels(ctx, map[string]string{
		telemetry.ProfilingLabelOperation: "recurrence_run",
		telemetry.ProfilingLabelCadence:   string(trigger),
	}, func(ctx context.Context) {
		err = s.run(ctx)
	})

	status := &RunStatus{Trigger: trigger, StartedAt: started, Duration: s.now().Sub(started)}
	if err != nil {
		status.Error = err.Error()
	}
	s.setLastRun(status)

	s.logger.Info("Recurrence run finished",
		zap.String("trigger", string(trigger)),
		zap.Duration("duration", status.Duration),
		zap.Bool("failed", err != nil))
	return err
}

func (s *RecurrenceScheduler) setLastRun(status *RunStatus) {
	s.mu.Lock()
	s.lastRun = status
	s.mu.Unlock()
}
