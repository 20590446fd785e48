// Package schedule triggers invocations on a cron schedule.
package schedule

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is one scheduled unit of work.
type Job func(ctx context.Context)

// Option customises a Runner.
type Option func(*Runner)

// WithImmediate also runs the job once as soon as Run starts.
func WithImmediate() Option {
	return func(r *Runner) { r.immediate = true }
}

// Runner fires a job on a cron schedule. Overlapping firings are skipped, so at most
// one job runs at a time.
type Runner struct {
	spec      string
	job       Job
	logger    *zap.Logger
	immediate bool
	parser    cron.Parser
}

// New validates spec and returns a Runner. Specs accept an optional seconds field
// and descriptors such as "@every 10m".
func New(spec string, job Job, logger *zap.Logger, opts ...Option) (*Runner, error) {
	if job == nil {
		return nil, errors.New("job is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Runner{
		spec:   spec,
		job:    job,
		logger: logger.Named("schedule"),
		parser: cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
	if _, err := r.parser.Parse(spec); err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run starts the schedule and blocks until ctx is done. It waits for a running job
// to finish before returning. The job receives ctx, so cancellation also reaches an
// invocation in flight.
func (r *Runner) Run(ctx context.Context) error {
	logger := cronLogger{l: r.logger.Sugar()}
	c := cron.New(cron.WithParser(r.parser), cron.WithLogger(logger))

	// The immediate run shares the chain so it also blocks overlapping firings.
	wrapped := cron.NewChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)).Then(cron.FuncJob(func() {
		r.job(ctx)
	}))
	if _, err := c.AddJob(r.spec, wrapped); err != nil {
		return fmt.Errorf("schedule job: %w", err)
	}

	c.Start()
	r.logger.Info("schedule started", zap.String("spec", r.spec))
	if r.immediate {
		wrapped.Run()
	}

	<-ctx.Done()
	<-c.Stop().Done()
	r.logger.Info("schedule stopped")
	return nil
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	l *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Errorw(msg, append(keysAndValues, "error", err)...)
}
