package web

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterBurst(t *testing.T) {
	rl := NewRateLimiter(0.001, 3, 0)
	for i := range 3 {
		assert.True(t, rl.Allow("10.0.0.1"), "attempt %d", i)
	}
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.2"), "other identifiers keep their own bucket")
}

func TestRateLimiterBoundsEntries(t *testing.T) {
	rl := NewRateLimiter(1, 1, 2)
	for i := range 5 {
		rl.Allow(fmt.Sprintf("10.0.0.%d", i))
	}
	assert.Equal(t, 2, rl.Len())
}
