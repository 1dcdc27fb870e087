// Package wait provides explicit bounded polling for page conditions.
//
// Every wait in this module goes through Until with a declared timeout, so there
// is no hidden default waiting inside the driver.
package wait

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/kuitang/flightprobe/internal/errs"
)

// DefaultInterval is the poll interval used when Options.Interval is unset.
const DefaultInterval = 100 * time.Millisecond

// Options bounds a wait.
type Options struct {
	Timeout  time.Duration
	Interval time.Duration
}

// Condition reports whether the awaited state holds. Errors are treated as
// "not yet" and the last one is attached to the timeout error.
type Condition func(ctx context.Context) (bool, error)

// minCheck is the least time a single condition check is given, so the final
// check at the deadline still runs against a live context.
const minCheck = 50 * time.Millisecond

// Until polls cond until it returns true, the timeout elapses, or ctx is cancelled.
// The first check runs immediately and the last one runs at the deadline, so a
// timeout is never reported before opts.Timeout has passed. A timeout yields an
// errs.ResolutionTimeout error; cancellation of the parent context yields the
// context error.
func Until(ctx context.Context, opts Options, what string, cond Condition) error {
	if opts.Timeout <= 0 {
		return errs.New(errs.InvalidArgument, fmt.Sprintf("wait for %s: timeout must be positive", what))
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	deadline := time.Now().Add(opts.Timeout)
	limiter := rate.NewLimiter(rate.Every(interval), 1)
	limiter.Allow()

	var lastErr error
	for {
		ok, err := check(ctx, deadline, cond)
		if ok {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("wait for %s: %w", what, ctxErr)
		}
		if err != nil {
			lastErr = err
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		// The limiter paces checks; the deadline caps the pause so one last
		// check always lands at the bound even when interval exceeds it.
		delay := min(limiter.Reserve().Delay(), remaining)
		if err := sleep(ctx, delay); err != nil {
			return fmt.Errorf("wait for %s: %w", what, err)
		}
	}

	msg := fmt.Sprintf("%s not satisfied within %s", what, opts.Timeout)
	if lastErr != nil && !errors.Is(lastErr, context.DeadlineExceeded) {
		return errs.Wrap(errs.ResolutionTimeout, msg, lastErr)
	}
	return errs.New(errs.ResolutionTimeout, msg)
}

func check(ctx context.Context, deadline time.Time, cond Condition) (bool, error) {
	cctx, cancel := context.WithTimeout(ctx, max(time.Until(deadline), minCheck))
	defer cancel()
	ok, err := cond(cctx)
	return err == nil && ok, err
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Visibility is anything that can report whether it is currently visible.
type Visibility interface {
	IsVisible(ctx context.Context) (bool, error)
}

// Visible waits until el reports visible.
func Visible(ctx context.Context, opts Options, what string, el Visibility) error {
	return Until(ctx, opts, what+" to be visible", el.IsVisible)
}

// Hidden waits until el reports not visible. A lookup error counts as hidden.
func Hidden(ctx context.Context, opts Options, what string, el Visibility) error {
	return Until(ctx, opts, what+" to be hidden", func(ctx context.Context) (bool, error) {
		visible, err := el.IsVisible(ctx)
		if err != nil {
			return true, nil
		}
		return !visible, nil
	})
}
