package llm

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds the retry behavior for transient backend failures.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// InitialInterval is the first backoff delay.
	InitialInterval time.Duration
	// MaxInterval caps the backoff delay.
	MaxInterval time.Duration
}

// DefaultRetryPolicy retries twice after the initial attempt.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
	}
}

// RetryingClient wraps a Client with bounded exponential backoff for
// transient failures. Authentication and malformed-response failures are
// never retried. Retrying lives inside the adapter boundary; callers above
// it see a single success or failure.
type RetryingClient struct {
	inner  Client
	policy RetryPolicy
}

// WithRetry wraps a client with the given policy.
func WithRetry(inner Client, policy RetryPolicy) *RetryingClient {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &RetryingClient{inner: inner, policy: policy}
}

// Complete calls the wrapped client, retrying transient failures.
func (c *RetryingClient) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	var resp *CompletionResponse

	op := func() error {
		r, err := c.inner.Complete(ctx, req)
		if err != nil {
			if IsTransient(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		resp = r
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.policy.InitialInterval
	bo.MaxInterval = c.policy.MaxInterval
	bo.MaxElapsedTime = 0

	err := backoff.Retry(op, backoff.WithContext(
		backoff.WithMaxRetries(bo, uint64(c.policy.MaxAttempts-1)), ctx))
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Name returns the wrapped provider name.
func (c *RetryingClient) Name() string {
	return c.inner.Name()
}

// Models returns the wrapped provider's models.
func (c *RetryingClient) Models() []string {
	return c.inner.Models()
}
