package resilience

import (
	"context"
	"syscall"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(attempts int) Policy {
	return Policy{Attempts: attempts, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := fastPolicy(3).Do(context.Background(), "test", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return &StatusError{Code: 503}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnPermanentError(t *testing.T) {
	calls := 0
	err := fastPolicy(5).Do(context.Background(), "test", func(ctx context.Context) error {
		calls++
		return eris.New("schema mismatch")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	err := fastPolicy(3).Do(context.Background(), "test", func(ctx context.Context) error {
		calls++
		return &StatusError{Code: 429}
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := fastPolicy(10).Do(ctx, "test", func(ctx context.Context) error {
		calls++
		cancel()
		return &StatusError{Code: 500}
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestTransient(t *testing.T) {
	assert.False(t, Transient(nil))
	assert.False(t, Transient(eris.New("bad config")))
	assert.False(t, Transient(&StatusError{Code: 404}))
	assert.False(t, Transient(&StatusError{Code: 410, Body: "channel archived"}))

	assert.True(t, Transient(&StatusError{Code: 429}))
	assert.True(t, Transient(&StatusError{Code: 503}))
	assert.True(t, Transient(syscall.ECONNRESET))
	assert.True(t, Transient(eris.Wrap(syscall.ECONNREFUSED, "post webhook")))
}

func TestStatusErrorMessage(t *testing.T) {
	assert.Equal(t, "unexpected status 502", (&StatusError{Code: 502}).Error())
	assert.Contains(t, (&StatusError{Code: 410, Body: "gone"}).Error(), "gone")
}
