package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultTimeout  = 10 * time.Second
	DefaultInterval = 250 * time.Millisecond
)

// ErrTimeout matches every *TimeoutError.
var ErrTimeout = errors.New("timed out waiting for condition")

// TimeoutError reports a condition that never held within the budget.
type TimeoutError struct {
	Timeout  time.Duration
	Attempts int
	// Last is the most recent error returned by the condition, if any.
	Last error
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("condition not met after %d attempts", e.Attempts)
	if e.Timeout > 0 {
		msg += fmt.Sprintf(" in %s", e.Timeout)
	}
	if e.Last != nil {
		msg += ": last error: " + e.Last.Error()
	}
	return msg
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

func (e *TimeoutError) Unwrap() error { return e.Last }

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not retryable. WaitFor and Do return the wrapped
// error unchanged.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Options configures WaitFor and Do.
type Options struct {
	// Timeout bounds the whole wait. Zero means only ctx bounds it.
	Timeout time.Duration
	// Interval is the minimum spacing between attempts.
	Interval time.Duration
	// MaxAttempts bounds the number of attempts. Zero means unbounded.
	MaxAttempts int
	// RetryIf decides whether a non-permanent error is retried.
	// Nil retries every error.
	RetryIf func(error) bool
	Logger  *slog.Logger
}

// Option configures Options.
type Option func(*Options)

func WithTimeout(d time.Duration) Option { return func(o *Options) { o.Timeout = d } }

func WithInterval(d time.Duration) Option { return func(o *Options) { o.Interval = d } }

func WithMaxAttempts(n int) Option { return func(o *Options) { o.MaxAttempts = n } }

func WithRetryIf(fn func(error) bool) Option { return func(o *Options) { o.RetryIf = fn } }

func WithLogger(l *slog.Logger) Option { return func(o *Options) { o.Logger = l } }

func newOptions(opts []Option) Options {
	o := Options{
		Timeout:  DefaultTimeout,
		Interval: DefaultInterval,
	}
	for _, fn := range opts {
		fn(&o)
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	return o
}

// WaitFor calls cond until it reports ok. It returns cond's value on success,
// the unwrapped error of a Permanent failure, ctx's error if the parent
// context ends, or a *TimeoutError once the budget is spent.
func WaitFor[T any](ctx context.Context, cond func(context.Context) (T, bool, error), opts ...Option) (T, error) {
	o := newOptions(opts)

	var zero T

	wctx := ctx
	if o.Timeout > 0 {
		var cancel context.CancelFunc
		wctx, cancel = context.WithTimeout(ctx, o.Timeout)
		defer cancel()
	}

	var limiter *rate.Limiter
	if o.Interval > 0 {
		limiter = rate.NewLimiter(rate.Every(o.Interval), 1)
	}

	var (
		attempts int
		last     error
	)
	for {
		if limiter != nil {
			// Wait fails early when the next token lies past the deadline.
			if err := limiter.Wait(wctx); err != nil {
				break
			}
		} else if wctx.Err() != nil {
			break
		}

		attempts++
		v, ok, err := cond(wctx)
		if err == nil && ok {
			return v, nil
		}
		if err != nil {
			var p *permanentError
			if errors.As(err, &p) {
				return zero, p.err
			}
			if o.RetryIf != nil && !o.RetryIf(err) {
				return zero, err
			}
			last = err
			o.Logger.DebugContext(ctx, "condition failed, retrying", "attempt", attempts, "error", err)
		} else {
			o.Logger.DebugContext(ctx, "condition not met, retrying", "attempt", attempts)
		}

		if o.MaxAttempts > 0 && attempts >= o.MaxAttempts {
			break
		}
	}

	if err := ctx.Err(); err != nil {
		return zero, err
	}
	return zero, &TimeoutError{Timeout: o.Timeout, Attempts: attempts, Last: last}
}

// Do calls fn until it succeeds. Failures are handled as in WaitFor.
func Do(ctx context.Context, fn func(context.Context) error, opts ...Option) error {
	_, err := WaitFor(ctx, func(ctx context.Context) (struct{}, bool, error) {
		if err := fn(ctx); err != nil {
			return struct{}{}, false, err
		}
		return struct{}{}, true, nil
	}, opts...)
	return err
}
