// Package retry polls a condition until it holds, a deadline passes or a
// permanent error occurs.
//
// It is the client-side counterpart of an eventually consistent ledger:
// a registration commits, and callers poll a query until the new account
// becomes visible.
//
//	ids, err := retry.WaitFor(ctx, func(ctx context.Context) ([]model.AccountID, bool, error) {
//	    ids, err := c.ListFilter(ctx, filter.EndsWith("@wonderland"))
//	    return ids, len(ids) > 0, err
//	}, retry.WithTimeout(10*time.Second), retry.WithInterval(200*time.Millisecond))
//
// Attempts are paced by a token bucket (golang.org/x/time/rate). Errors are
// retried unless wrapped with Permanent; a condition that never holds ends
// with a *TimeoutError, which matches ErrTimeout.
package retry
