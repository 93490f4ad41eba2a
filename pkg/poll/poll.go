package poll

import (
	"context"
	"errors"
	"fmt"
	"time"

	pkgerrors "github.com/angelmondragon/ttd-workflows/pkg/errors"
	"github.com/sethvargo/go-retry"
)

// Options controls a fixed-interval poll.
type Options struct {
	// Interval is the wait between checks. It must be positive.
	Interval time.Duration
	// MaxWait bounds the total time spent polling. Zero means no bound.
	MaxWait time.Duration
	// DelayFirst waits one Interval before the first check. Platform jobs
	// are never done on the first read, so bulk monitoring sets this.
	DelayFirst bool
	// Name labels the timeout error.
	Name string
}

// Check reports whether the polled job reached a terminal state. A non-nil
// error stops polling immediately.
type Check func(ctx context.Context) (done bool, err error)

var errPending = errors.New("still in progress")

// Until calls check every Interval until it reports done, fails, the
// context ends, or MaxWait elapses.
func Until(ctx context.Context, opts Options, check Check) error {
	if opts.Interval <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "poll interval must be positive")
	}
	name := opts.Name
	if name == "" {
		name = "job"
	}

	started := time.Now()
	if opts.DelayFirst {
		if err := sleep(ctx, opts.Interval); err != nil {
			return err
		}
	}

	var backoff retry.Backoff = retry.NewConstant(opts.Interval)
	if opts.MaxWait > 0 {
		remaining := opts.MaxWait - time.Since(started)
		if remaining <= 0 {
			remaining = time.Nanosecond
		}
		backoff = retry.WithMaxDuration(remaining, backoff)
	}

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		done, err := check(ctx)
		if err != nil {
			return err
		}
		if !done {
			return retry.RetryableError(errPending)
		}
		return nil
	})
	if errors.Is(err, errPending) {
		return pkgerrors.New(pkgerrors.CodeTimeout, fmt.Sprintf("%s did not finish within %s", name, opts.MaxWait)).
			WithDetails(map[string]any{"elapsed": time.Since(started).Round(time.Millisecond).String()})
	}
	return err
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
