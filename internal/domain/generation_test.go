package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerationStatusTerminal(t *testing.T) {
	assert.False(t, GenerationStatusPending.Terminal())
	assert.False(t, GenerationStatusGenerating.Terminal())
	assert.True(t, GenerationStatusCompleted.Terminal())
	assert.True(t, GenerationStatusFailed.Terminal())
}

func TestGenerationStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to GenerationStatus
		allowed  bool
	}{
		{GenerationStatusPending, GenerationStatusGenerating, true},
		{GenerationStatusPending, GenerationStatusCompleted, true},
		{GenerationStatusPending, GenerationStatusFailed, true},
		{GenerationStatusGenerating, GenerationStatusCompleted, true},
		{GenerationStatusGenerating, GenerationStatusFailed, true},
		{GenerationStatusGenerating, GenerationStatusPending, false},
		{GenerationStatusCompleted, GenerationStatusFailed, false},
		{GenerationStatusCompleted, GenerationStatusGenerating, false},
		{GenerationStatusFailed, GenerationStatusCompleted, false},
		{GenerationStatusFailed, GenerationStatusPending, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.allowed, tc.from.CanTransition(tc.to), "%s -> %s", tc.from, tc.to)
	}
}
