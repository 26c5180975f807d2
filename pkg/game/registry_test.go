package game_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tecu23/match-server/pkg/game"
)

func TestRegistryCreateAndGet(t *testing.T) {
	env := newTestEnv(t)

	session := env.registry.Create("alice", 1500, game.TimeControl{InitialMs: 60000})

	got, ok := env.registry.Get(session.ID)
	require.True(t, ok)
	assert.Equal(t, session, got)

	_, ok = env.registry.Get(uuid.New())
	assert.False(t, ok)
}

func TestRegistryFillSecondSlot(t *testing.T) {
	env := newTestEnv(t)

	session := env.registry.Create("alice", 1500, game.TimeControl{InitialMs: 60000})

	_, err := env.registry.FillSecondSlot(uuid.New(), "bob", 1480)
	assert.ErrorIs(t, err, game.ErrSessionNotFound)

	got, err := env.registry.FillSecondSlot(session.ID, "bob", 1480)
	require.NoError(t, err)
	assert.Equal(t, game.StatusInProgress, got.Snapshot().Status)

	_, err = env.registry.FillSecondSlot(session.ID, "carol", 1520)
	assert.ErrorIs(t, err, game.ErrAlreadyFull)
}

func TestRegistryRemove(t *testing.T) {
	env := newTestEnv(t)

	session := env.registry.Create("alice", 1500, game.TimeControl{InitialMs: 60000})
	env.registry.Remove(session.ID)

	_, ok := env.registry.Get(session.ID)
	assert.False(t, ok)
}
