package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openprobe/deepsearch/pkg/config"
	"github.com/openprobe/deepsearch/pkg/models"
)

func TestSweeperRemovesExpiredTerminal(t *testing.T) {
	store := NewStore()
	sess := store.Create("q")
	require.NoError(t, store.MarkTerminal(sess.ID, models.StatusCompleted, "", ""))

	sweeper := NewSweeper(store, config.SessionsConfig{
		IdleTTL:       0,
		SweepInterval: 10 * time.Millisecond,
	})
	sweeper.Start(context.Background())
	defer sweeper.Stop()

	require.Eventually(t, func() bool {
		_, ok := store.Get(sess.ID)
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSweeperKeepsLiveSessions(t *testing.T) {
	store := NewStore()
	sess := store.Create("q")
	require.NoError(t, store.MarkRunning(sess.ID))

	sweeper := NewSweeper(store, config.SessionsConfig{
		IdleTTL:       0,
		SweepInterval: 10 * time.Millisecond,
	})
	sweeper.Start(context.Background())

	time.Sleep(50 * time.Millisecond)
	sweeper.Stop()

	_, ok := store.Get(sess.ID)
	assert.True(t, ok)
}

func TestSweeperStartStopIdempotent(t *testing.T) {
	sweeper := NewSweeper(NewStore(), config.SessionsConfig{
		IdleTTL:       time.Minute,
		SweepInterval: time.Minute,
	})

	sweeper.Stop()
	sweeper.Start(context.Background())
	sweeper.Start(context.Background())
	sweeper.Stop()
}
