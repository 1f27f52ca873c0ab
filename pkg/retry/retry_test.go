package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() Config {
	return Config{
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		MaxElapsedTime:  200 * time.Millisecond,
	}
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastConfig(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDoStopsOnPermanentError(t *testing.T) {
	boom := errors.New("bad request")
	attempts := 0
	err := Do(context.Background(), fastConfig(), func() error {
		attempts++
		return Permanent(boom)
	})

	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, attempts)
}

func TestDoExhaustsEnvelope(t *testing.T) {
	boom := errors.New("still down")
	cfg := Config{
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		MaxElapsedTime:  20 * time.Millisecond,
	}

	err := Do(context.Background(), cfg, func() error { return boom })

	require.ErrorIs(t, err, boom)
}

func TestDoHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	err := Do(ctx, fastConfig(), func() error {
		attempts++
		return errors.New("transient")
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}
