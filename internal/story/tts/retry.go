package tts

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// RetryPolicy retries overload, rate limit and transport failures with a doubling
// delay. Client errors are returned immediately.
type RetryPolicy struct {
	// Retries is the number of attempts after the first one.
	Retries      int
	InitialDelay time.Duration
	// Sleep waits for d or until ctx is done. Nil uses a timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy retries three times after 1s, 2s and 4s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Retries: 3, InitialDelay: time.Second}
}

func (p RetryPolicy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
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

// Do runs fn until it succeeds, fails terminally or the budget is spent. The last
// error is returned unchanged so callers can classify it.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	delay := p.InitialDelay
	var err error
	for attempt := 0; ; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= p.Retries || !retryable(err) || ctx.Err() != nil {
			return err
		}

		logrus.WithError(err).WithFields(logrus.Fields{
			"attempt": attempt + 1,
			"delay":   delay,
		}).Warn("Narration request failed, retrying")

		if serr := p.sleep(ctx, delay); serr != nil {
			return err
		}
		delay *= 2
	}
}

// WithRetry wraps a generator so every Synthesize call follows policy.
func WithRetry(next Generator, policy RetryPolicy) Generator {
	return &retryingGenerator{next: next, policy: policy}
}

type retryingGenerator struct {
	next   Generator
	policy RetryPolicy
}

func (g *retryingGenerator) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	var data []byte
	err := g.policy.Do(ctx, func(ctx context.Context) error {
		var err error
		data, err = g.next.Synthesize(ctx, text, voice)
		return err
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}
