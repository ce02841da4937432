// Package retry runs an operation under a bounded, fixed-delay retry policy.
// Only errors the caller classifies as transient are retried.
package retry

import (
	"context"
	"time"

	goretry "github.com/sethvargo/go-retry"
)

// Policy bounds the number of attempts and the pause between them.
type Policy struct {
	Attempts int
	Delay    time.Duration
}

// Classifier reports whether err is worth another attempt.
type Classifier func(err error) bool

// Func is one attempt. attempt starts at 1.
type Func func(ctx context.Context, attempt int) error

// DefaultPolicy is three attempts two seconds apart.
var DefaultPolicy = Policy{Attempts: 3, Delay: 2 * time.Second}

func (p Policy) normalized() Policy {
	if p.Attempts < 1 {
		p.Attempts = 1
	}
	if p.Delay <= 0 {
		p.Delay = time.Millisecond
	}
	return p
}

// Do calls fn until it succeeds, returns an error the classifier rejects, the
// attempts are exhausted, or ctx is done. The last error from fn is returned.
func Do(ctx context.Context, policy Policy, isTransient Classifier, fn Func) error {
	policy = policy.normalized()
	backoff := goretry.WithMaxRetries(uint64(policy.Attempts-1), goretry.NewConstant(policy.Delay))

	attempt := 0
	return goretry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := fn(ctx, attempt)
		if err == nil {
			return nil
		}
		if isTransient != nil && isTransient(err) {
			return goretry.RetryableError(err)
		}
		return err
	})
}
