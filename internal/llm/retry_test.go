package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedClient struct {
	calls int
	errs  []error
	resp  *CompletionResponse
}

func (c *scriptedClient) Complete(_ context.Context, _ *CompletionRequest) (*CompletionResponse, error) {
	c.calls++
	if c.calls <= len(c.errs) {
		return nil, c.errs[c.calls-1]
	}
	if c.resp != nil {
		return c.resp, nil
	}
	return &CompletionResponse{Content: "ok", Model: "scripted"}, nil
}

func (c *scriptedClient) Name() string     { return "scripted" }
func (c *scriptedClient) Models() []string { return nil }

func fastPolicy(attempts int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     attempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
	}
}

func TestRetrySucceedsAfterTransientFailure(t *testing.T) {
	inner := &scriptedClient{errs: []error{ErrUnavailable, ErrRateLimited}}
	client := WithRetry(inner, fastPolicy(3))

	resp, err := client.Complete(context.Background(), &CompletionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, 3, inner.calls)
}

func TestRetryExhaustsAttempts(t *testing.T) {
	inner := &scriptedClient{errs: []error{ErrUnavailable, ErrUnavailable, ErrUnavailable, ErrUnavailable}}
	client := WithRetry(inner, fastPolicy(3))

	_, err := client.Complete(context.Background(), &CompletionRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 3, inner.calls)
}

func TestRetryDoesNotRetryAuthenticationFailure(t *testing.T) {
	inner := &scriptedClient{errs: []error{ErrAuthentication}}
	client := WithRetry(inner, fastPolicy(3))

	_, err := client.Complete(context.Background(), &CompletionRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuthentication)
	assert.Equal(t, 1, inner.calls)
}

func TestRetryDoesNotRetryMalformedResponse(t *testing.T) {
	inner := &scriptedClient{errs: []error{ErrMalformedResponse}}
	client := WithRetry(inner, fastPolicy(3))

	_, err := client.Complete(context.Background(), &CompletionRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedResponse)
	assert.Equal(t, 1, inner.calls)
}

func TestRetryRespectsContextCancellation(t *testing.T) {
	inner := &scriptedClient{errs: []error{ErrUnavailable, ErrUnavailable, ErrUnavailable}}
	client := WithRetry(inner, RetryPolicy{
		MaxAttempts:     4,
		InitialInterval: time.Second,
		MaxInterval:     time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := client.Complete(ctx, &CompletionRequest{})
	require.Error(t, err)
	assert.Equal(t, 1, inner.calls)
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(ErrRateLimited))
	assert.True(t, IsTransient(ErrUnavailable))
	assert.False(t, IsTransient(ErrAuthentication))
	assert.False(t, IsTransient(ErrMalformedResponse))
	assert.False(t, IsTransient(context.Canceled))
}

func TestTranslateStatus(t *testing.T) {
	assert.ErrorIs(t, translateStatus(401, assert.AnError), ErrAuthentication)
	assert.ErrorIs(t, translateStatus(403, assert.AnError), ErrAuthentication)
	assert.ErrorIs(t, translateStatus(429, assert.AnError), ErrRateLimited)
	assert.ErrorIs(t, translateStatus(500, assert.AnError), ErrUnavailable)
	assert.ErrorIs(t, translateStatus(503, assert.AnError), ErrUnavailable)
	assert.ErrorIs(t, translateStatus(400, assert.AnError), ErrMalformedResponse)
}
