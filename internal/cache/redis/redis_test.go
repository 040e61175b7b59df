package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "question:42", questionKey(42))
	assert.Equal(t, "lock:answermarket:writer", lockKey("answermarket:writer"))
	assert.Equal(t, "ratelimit:203.0.113.9", rateLimitKey("203.0.113.9"))
}

func TestHasPattern(t *testing.T) {
	assert.True(t, hasPattern("market:*"))
	assert.True(t, hasPattern("market:[ab]"))
	assert.False(t, hasPattern("market:events"))
}

func TestSlidingWindowScriptEmbedded(t *testing.T) {
	assert.Contains(t, slidingWindowLua, "ZREMRANGEBYSCORE")
	assert.Contains(t, slidingWindowLua, "ZADD")
}
