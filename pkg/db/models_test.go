package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition_ForwardOneStep(t *testing.T) {
	forward := []struct {
		from, to Status
	}{
		{StatusSealed, StatusSigning},
		{StatusSigning, StatusSigned},
		{StatusSigned, StatusVerifying},
		{StatusVerifying, StatusVerified},
		{StatusVerified, StatusMinting},
		{StatusMinting, StatusMinted},
		{StatusMinted, StatusClosing},
		{StatusClosing, StatusCompleted},
	}

	for _, tc := range forward {
		assert.True(t, CanTransition(tc.from, tc.to), "%s -> %s should be allowed", tc.from, tc.to)
	}
}

func TestCanTransition_NoSkippingOrRewinding(t *testing.T) {
	assert.False(t, CanTransition(StatusSealed, StatusSigned), "skipping a stage")
	assert.False(t, CanTransition(StatusSealed, StatusCompleted), "jumping to completed")
	assert.False(t, CanTransition(StatusSigned, StatusSigning), "moving backwards")
	assert.False(t, CanTransition(StatusMinted, StatusVerifying), "moving backwards")
	assert.False(t, CanTransition(StatusSealed, StatusSealed), "self transition")
}

func TestCanTransition_FailureReachableFromNonTerminal(t *testing.T) {
	for _, s := range AllStatuses {
		if s == StatusCompleted || s == StatusFailed {
			continue
		}
		assert.True(t, CanTransition(s, StatusFailed), "%s -> failed should be allowed", s)
	}

	assert.False(t, CanTransition(StatusCompleted, StatusFailed), "completed is terminal")
	assert.False(t, CanTransition(StatusFailed, StatusFailed), "failed -> failed")
}

func TestCanTransition_RetryOutOfFailed(t *testing.T) {
	for _, s := range AllStatuses {
		if s == StatusCompleted || s == StatusFailed {
			assert.False(t, CanTransition(StatusFailed, s), "failed -> %s should be rejected", s)
			continue
		}
		assert.True(t, CanTransition(StatusFailed, s), "failed -> %s should be allowed for retry", s)
	}
}

func TestTerminal(t *testing.T) {
	assert.True(t, StatusCompleted.Terminal())
	for _, s := range AllStatuses {
		if s == StatusCompleted {
			continue
		}
		assert.False(t, s.Terminal(), "%s should not be terminal", s)
	}
}
