// Package notifier sends best-effort notifications: each message gets exactly one
// delivery attempt and failures are logged, never returned.
package notifier

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/JakeFAU/homework-watcher/internal/homework"
)

// MaxRunes caps every outbound message.
const MaxRunes = 255

// Sender delivers one text message.
type Sender interface {
	Send(ctx context.Context, text string) error
}

// Dispatcher truncates, throttles and sends messages.
type Dispatcher struct {
	sender  Sender
	limiter *rate.Limiter
	logger  *zap.Logger
}

// Option customises a Dispatcher.
type Option func(*Dispatcher)

// WithRate limits sends to perSecond with the given burst. A non-positive perSecond
// disables throttling.
func WithRate(perSecond float64, burst int) Option {
	return func(d *Dispatcher) {
		if perSecond <= 0 {
			d.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		d.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// New builds a Dispatcher. Telegram accepts about one message per second per chat,
// which is the default rate.
func New(sender Sender, logger *zap.Logger, opts ...Option) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{
		sender:  sender,
		limiter: rate.NewLimiter(rate.Limit(1), 3),
		logger:  logger.Named("notifier"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch makes one attempt to deliver text and reports whether it succeeded.
func (d *Dispatcher) Dispatch(ctx context.Context, text string) bool {
	text = Truncate(text, MaxRunes)
	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			d.logFailure(&homework.SendError{Err: err})
			return false
		}
	}
	if err := d.sender.Send(ctx, text); err != nil {
		d.logFailure(&homework.SendError{Err: err})
		return false
	}
	d.logger.Debug("notification sent", zap.Int("runes", len([]rune(text))))
	return true
}

func (d *Dispatcher) logFailure(err error) {
	d.logger.Error("notification not delivered", zap.String("kind", homework.Kind(err)), zap.Error(err))
}

// Truncate returns at most limit runes of s.
func Truncate(s string, limit int) string {
	if limit < 0 {
		return ""
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}
