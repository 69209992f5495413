package entitlement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"nexus.chat/internal/catalog"
)

func TestRateLimiterCapsFreeThinkingModel(t *testing.T) {
	rl := NewRateLimiter(40, 3*time.Hour)
	now := time.Now()
	rl.now = func() time.Time { return now }

	for i := 0; i < 40; i++ {
		assert.NoError(t, rl.Allow("acct", catalog.FreePlanID, catalog.ThinkingModelID))
	}
	assert.ErrorIs(t, rl.Allow("acct", catalog.FreePlanID, catalog.ThinkingModelID), ErrRateLimited)

	// After a full window the old timestamps are pruned and calls succeed.
	now = now.Add(3*time.Hour + time.Second)
	assert.NoError(t, rl.Allow("acct", catalog.FreePlanID, catalog.ThinkingModelID))
}

func TestRateLimiterIgnoresOtherPlansAndModels(t *testing.T) {
	rl := NewRateLimiter(1, time.Hour)

	assert.NoError(t, rl.Allow("a", "pro", catalog.ThinkingModelID))
	assert.NoError(t, rl.Allow("a", "pro", catalog.ThinkingModelID))
	assert.NoError(t, rl.Allow("a", catalog.FreePlanID, "nexus-0"))
	assert.NoError(t, rl.Allow("a", catalog.FreePlanID, "nexus-0"))

	// Only the free plan's thinking model counts against the window.
	assert.NoError(t, rl.Allow("a", catalog.FreePlanID, catalog.ThinkingModelID))
	assert.ErrorIs(t, rl.Allow("a", catalog.FreePlanID, catalog.ThinkingModelID), ErrRateLimited)
}

func TestRateLimiterKeysAreIndependent(t *testing.T) {
	rl := NewRateLimiter(1, time.Hour)

	assert.NoError(t, rl.Allow("a", catalog.FreePlanID, catalog.ThinkingModelID))
	assert.NoError(t, rl.Allow("b", catalog.FreePlanID, catalog.ThinkingModelID))
	assert.ErrorIs(t, rl.Allow("a", catalog.FreePlanID, catalog.ThinkingModelID), ErrRateLimited)
}
