// Package scheduler owns the periodic trigger for notification passes.
//
// Scheduled runs are suppressed during quiet hours; manual runs are not, so
// an administrator can always force a pass.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/albapepper/athletics-notify/internal/delivery"
	"github.com/albapepper/athletics-notify/internal/eligibility"
)

// DefaultSpec runs at the top of every hour.
const DefaultSpec = "0 * * * *"

// RunFunc executes one pass. Satisfied by (*delivery.Orchestrator).RunPass.
type RunFunc func(ctx context.Context, trigger string) delivery.PassResult

// Options configures a Scheduler.
type Options struct {
	Spec     string
	Location *time.Location
	Quiet    eligibility.QuietHours
	Run      RunFunc
	Clock    func() time.Time
	Logger   *slog.Logger
}

// Scheduler is an explicit handle over the cron runner. Create one per
// process and stop it on shutdown.
type Scheduler struct {
	cron     *cron.Cron
	schedule cron.Schedule
	run      RunFunc
	loc      *time.Location
	quiet    eligibility.QuietHours
	now      func() time.Time
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// New builds a scheduler. It does not start until Start is called.
func New(opts Options) (*Scheduler, error) {
	if opts.Run == nil {
		return nil, fmt.Errorf("scheduler: run func is required")
	}
	if opts.Spec == "" {
		opts.Spec = DefaultSpec
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	schedule, err := parser.Parse(opts.Spec)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", opts.Spec, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		schedule: schedule,
		run:      opts.Run,
		loc:      opts.Location,
		quiet:    opts.Quiet,
		now:      opts.Clock,
		logger:   opts.Logger,
		ctx:      ctx,
		cancel:   cancel,
	}

	cl := cronLogger{opts.Logger}
	s.cron = cron.New(
		cron.WithLocation(opts.Location),
		cron.WithParser(parser),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	s.cron.Schedule(schedule, cron.FuncJob(func() {
		s.Trigger(s.ctx, delivery.TriggerScheduled)
	}))
	return s, nil
}

// Start begins firing scheduled passes in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("Notification scheduler started", "next", s.Next())
}

// Stop stops scheduling new passes and waits for a running pass to finish.
// If ctx expires first, the running pass is cancelled.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.cancel()
		s.logger.Info("Notification scheduler stopped")
		return nil
	case <-ctx.Done():
		s.cancel()
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}

// Next returns the next scheduled fire time after now.
func (s *Scheduler) Next() time.Time {
	return s.schedule.Next(s.now().In(s.loc))
}

// Trigger runs an automatic pass unless it is quiet hours. The bool reports
// whether the pass ran.
func (s *Scheduler) Trigger(ctx context.Context, trigger string) (delivery.PassResult, bool) {
	now := s.now()
	if eligibility.InQuietHours(now, s.loc, s.quiet) {
		s.logger.Info("Skipping notification pass during quiet hours",
			"trigger", trigger, "local_time", now.In(s.loc).Format("15:04"))
		return delivery.PassResult{}, false
	}
	return s.run(ctx, trigger), true
}

// RunManual runs a pass immediately, ignoring quiet hours.
func (s *Scheduler) RunManual(ctx context.Context) delivery.PassResult {
	return s.run(ctx, delivery.TriggerManual)
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error("cron: "+msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
