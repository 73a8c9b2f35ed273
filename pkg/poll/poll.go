// Package poll provides the single poll-with-deadline primitive used for
// every external wait: presign sessions, sign sessions and ledger
// confirmations all go through WaitFor instead of hand-rolled loops.
package poll

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrDeadline is returned when the probe never completed within the timeout.
var ErrDeadline = errors.New("poll: deadline exceeded")

var errNotReady = errors.New("poll: not ready")

// WaitFor invokes probe at the given interval until it reports done, returns
// an error, or the timeout elapses. A probe error aborts immediately; the
// caller decides whether it is transient or fatal.
func WaitFor[T any](ctx context.Context, interval, timeout time.Duration, probe func(context.Context) (T, bool, error)) (T, error) {
	var result T

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	op := func() error {
		v, done, err := probe(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}
		if !done {
			return errNotReady
		}
		result = v
		return nil
	}

	b := backoff.WithContext(backoff.NewConstantBackOff(interval), ctx)
	if err := backoff.Retry(op, b); err != nil {
		if errors.Is(err, errNotReady) || errors.Is(err, context.DeadlineExceeded) {
			return result, ErrDeadline
		}
		return result, err
	}
	return result, nil
}
