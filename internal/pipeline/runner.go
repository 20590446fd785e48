// Package pipeline runs one polling invocation: fetch the review statuses, diff them
// against the stored snapshot, persist and announce changes, and report failures
// through the deduplicated error path.
package pipeline

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/homework-watcher/internal/errcache"
	"github.com/JakeFAU/homework-watcher/internal/homework"
	"github.com/JakeFAU/homework-watcher/internal/metrics"
	"github.com/JakeFAU/homework-watcher/internal/publisher"
)

// Completion signal returned to the trigger for every invocation.
const (
	StatusCode = 200
	Body       = "its alive"
)

// ErrorPrefix starts every error notification.
const ErrorPrefix = "Сбой в работе программы: "

// Fetcher retrieves the raw API payload.
type Fetcher interface {
	Fetch(ctx context.Context, cursor int64) (any, error)
}

// StatusStore persists the last known status per homework.
type StatusStore interface {
	Snapshot(ctx context.Context) (homework.Snapshot, error)
	Upsert(ctx context.Context, rec homework.Record) error
}

// ErrorCache holds the text of the last reported error.
type ErrorCache interface {
	Load(ctx context.Context) string
	Remember(ctx context.Context, cached, msg string) (bool, error)
}

// Notifier makes one best-effort delivery attempt.
type Notifier interface {
	Dispatch(ctx context.Context, text string) bool
}

// Clock abstracts time for event timestamps.
type Clock interface {
	Now() time.Time
}

// IDGenerator produces invocation and event ids.
type IDGenerator interface {
	NewID() (string, error)
}

// Deps wires the runner to its collaborators. Publisher is optional.
type Deps struct {
	Fetcher   Fetcher
	Store     StatusStore
	Cache     ErrorCache
	Notifier  Notifier
	Publisher publisher.Publisher
	Clock     Clock
	IDs       IDGenerator
	Logger    *zap.Logger
}

// Options tunes one runner.
type Options struct {
	// Cursor is the from_date value sent to the API; 0 requests the full history.
	Cursor int64
}

// Result reports the outcome of one invocation. Only StatusCode and Body are part of
// the wire response.
type Result struct {
	StatusCode   int    `json:"statusCode"`
	Body         string `json:"body"`
	InvocationID string `json:"-"`
	Stage        Stage  `json:"-"`
	Err          error  `json:"-"`
	Items        int    `json:"-"`
	Changed      int    `json:"-"`
	Notified     int    `json:"-"`
	ErrorSent    bool   `json:"-"`
}

// Runner executes invocations. It is not safe for concurrent Run calls; callers
// serialise invocations.
type Runner struct {
	deps Deps
	opts Options
}

// New validates deps and returns a Runner.
func New(deps Deps, opts Options) (*Runner, error) {
	switch {
	case deps.Fetcher == nil:
		return nil, errors.New("fetcher is required")
	case deps.Store == nil:
		return nil, errors.New("status store is required")
	case deps.Cache == nil:
		return nil, errors.New("error cache is required")
	case deps.Notifier == nil:
		return nil, errors.New("notifier is required")
	case deps.Clock == nil:
		return nil, errors.New("clock is required")
	case deps.IDs == nil:
		return nil, errors.New("id generator is required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	deps.Logger = deps.Logger.Named("pipeline")
	return &Runner{deps: deps, opts: opts}, nil
}

// Run performs one invocation. It always returns the fixed completion signal; the
// handled failure, if any, is carried in Result.Err.
func (r *Runner) Run(ctx context.Context) Result {
	start := r.deps.Clock.Now()
	res := Result{StatusCode: StatusCode, Body: Body, Stage: StageStart}

	invocationID, err := r.deps.IDs.NewID()
	if err != nil {
		r.deps.Logger.Warn("invocation id unavailable", zap.Error(err))
	}
	res.InvocationID = invocationID
	log := r.deps.Logger.With(zap.String("invocation_id", invocationID))
	log.Info("invocation started", zap.Int64("cursor", r.opts.Cursor))

	// Required settings are validated when the runner is configured.
	res.Stage = StageTokensChecked

	cached := r.deps.Cache.Load(ctx)
	res.Stage = StageOldErrorLoaded

	if err := r.process(ctx, log, &res); err != nil {
		r.handleError(ctx, log, &res, cached, err)
	} else {
		res.Stage = StageDone
	}

	metrics.ObserveInvocation(res.Stage.String(), r.deps.Clock.Now().Sub(start))
	log.Info("invocation finished",
		zap.Stringer("stage", res.Stage),
		zap.Int("items", res.Items),
		zap.Int("changed", res.Changed),
		zap.Int("notified", res.Notified),
		zap.String("error_kind", homework.Kind(res.Err)),
	)
	return res
}

func (r *Runner) process(ctx context.Context, log *zap.Logger, res *Result) error {
	payload, err := r.deps.Fetcher.Fetch(ctx, r.opts.Cursor)
	if err != nil {
		return err
	}
	res.Stage = StageFetched

	items, err := homework.Validate(payload)
	if err != nil {
		return err
	}
	res.Stage = StageValidated
	res.Items = len(items)

	snap, err := r.deps.Store.Snapshot(ctx)
	if err != nil {
		return err
	}
	res.Stage = StageSnapshotLoaded
	log.Debug("snapshot loaded", zap.Int("items", len(items)), zap.Int("known", len(snap)))

	res.Stage = StageItems
	for _, item := range items {
		if err := r.processItem(ctx, log, res, item, snap); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) processItem(ctx context.Context, log *zap.Logger, res *Result, item homework.Item, snap homework.Snapshot) error {
	verdict, err := homework.Detect(item, snap)
	if err != nil {
		return err
	}
	metrics.ObserveItem(verdict.String())
	if verdict == homework.Unchanged {
		return nil
	}
	res.Changed++

	rec := item.Record()
	if err := r.deps.Store.Upsert(ctx, rec); err != nil {
		return err
	}
	r.publish(ctx, log, res.InvocationID, rec)

	text, unknown := homework.Compose(item)
	if unknown != "" {
		log.Error("unexpected homework status",
			zap.String("homework", rec.HomeworkName),
			zap.String("status", string(unknown)),
		)
	}
	if r.deps.Notifier.Dispatch(ctx, text) {
		res.Notified++
		metrics.ObserveNotification(metrics.KindStatus, metrics.ResultSent)
	} else {
		metrics.ObserveNotification(metrics.KindStatus, metrics.ResultFailed)
	}
	log.Info("status change handled",
		zap.String("homework", rec.HomeworkName),
		zap.String("status", string(rec.Status)),
	)
	return nil
}

// publish emits a change event when a publisher is configured. Failures are logged only.
func (r *Runner) publish(ctx context.Context, log *zap.Logger, invocationID string, rec homework.Record) {
	if r.deps.Publisher == nil {
		return
	}
	eventID, err := r.deps.IDs.NewID()
	if err != nil {
		log.Warn("event id unavailable", zap.Error(err))
	}
	event := publisher.ChangeEvent{
		EventID:      eventID,
		InvocationID: invocationID,
		HomeworkID:   rec.ID,
		HomeworkName: rec.HomeworkName,
		Status:       string(rec.Status),
		LessonName:   rec.LessonName,
		DetectedAt:   r.deps.Clock.Now(),
	}
	if _, err := r.deps.Publisher.Publish(ctx, event); err != nil {
		log.Warn("change event not published", zap.String("homework", rec.HomeworkName), zap.Error(err))
	}
}

func (r *Runner) handleError(ctx context.Context, log *zap.Logger, res *Result, cached string, cause error) {
	failedAt := res.Stage
	res.Stage = StageErrorHandling
	res.Err = cause

	kind := homework.Kind(cause)
	metrics.ObserveFailure(kind)
	msg := FormatError(cause)
	log.Error(msg, zap.String("kind", kind), zap.Stringer("failed_after", failedAt), zap.Error(cause))

	if !errcache.ShouldSend(cached, msg) {
		log.Info("error already reported, notification suppressed")
		metrics.ObserveNotification(metrics.KindError, metrics.ResultSuppressed)
		return
	}

	if r.deps.Notifier.Dispatch(ctx, msg) {
		res.ErrorSent = true
		metrics.ObserveNotification(metrics.KindError, metrics.ResultSent)
	} else {
		metrics.ObserveNotification(metrics.KindError, metrics.ResultFailed)
	}
	if _, err := r.deps.Cache.Remember(ctx, cached, msg); err != nil {
		log.Warn("error cache not updated", zap.Error(err))
	}
}

// FormatError builds the user-facing text for a handled failure.
func FormatError(err error) string {
	return ErrorPrefix + err.Error()
}
