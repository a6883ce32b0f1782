package appstate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/huanshanxiaoyao/governor-game/go/internal/models"
)

func TestGameSnapshotIsCopied(t *testing.T) {
	s := New()
	assert.Nil(t, s.CurrentGame())

	snap := &models.GameSnapshot{ID: "g1", CurrentSeason: 3}
	s.SetGame(snap)
	snap.CurrentSeason = 99

	got := s.CurrentGame()
	assert.Equal(t, 3, got.CurrentSeason)
	got.CurrentSeason = 42
	assert.Equal(t, 3, s.CurrentGame().CurrentSeason)
}

func TestClearActiveNegotiationOnlyMatchingSession(t *testing.T) {
	s := New()
	s.SetActiveNegotiation(&models.NegotiationSession{ID: "7"})

	assert.False(t, s.ClearActiveNegotiation("8"))
	assert.NotNil(t, s.ActiveNegotiation())

	assert.True(t, s.ClearActiveNegotiation("7"))
	assert.Nil(t, s.ActiveNegotiation())
	assert.False(t, s.ClearActiveNegotiation("7"))
}
