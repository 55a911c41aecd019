package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCircuitBreakerOpensAndProbes(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker("ollama", 2, time.Minute)
	cb.now = func() time.Time { return now }

	assert.True(t, cb.Allow())
	cb.Failure()
	assert.True(t, cb.Allow(), "one failure is under the threshold")
	cb.Failure()
	assert.True(t, cb.Open())
	assert.False(t, cb.Allow())

	now = now.Add(2 * time.Minute)
	assert.True(t, cb.Allow(), "probe after reset timeout")
	assert.False(t, cb.Allow(), "only one probe while half-open")

	cb.Failure()
	assert.True(t, cb.Open())

	now = now.Add(2 * time.Minute)
	assert.True(t, cb.Allow())
	cb.Success()
	assert.False(t, cb.Open())
	assert.True(t, cb.Allow())
}
