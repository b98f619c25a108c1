package jolpica

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateBudget_AllowsUpToLimit(t *testing.T) {
	t.Parallel()

	budget := NewRateBudget(500, time.Hour)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 500; i++ {
		assert.True(t, budget.Allow(now), "request %d should be allowed", i+1)
		budget.Record(now)
	}

	assert.Equal(t, 500, budget.Count())
	assert.False(t, budget.Allow(now), "request 501 should be rejected")
}

func TestRateBudget_ResetClearsCount(t *testing.T) {
	t.Parallel()

	budget := NewRateBudget(10, time.Hour)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 10; i++ {
		budget.Record(now)
	}
	assert.False(t, budget.Allow(now))

	budget.Reset()
	assert.Equal(t, 0, budget.Count())
	assert.True(t, budget.Allow(now))
}

func TestRateBudget_WindowExpiryResetsCounter(t *testing.T) {
	t.Parallel()

	budget := NewRateBudget(2, time.Hour)
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	budget.Record(start)
	budget.Record(start.Add(time.Minute))
	assert.False(t, budget.Allow(start.Add(2*time.Minute)))

	// Just over an hour since the last recorded request
	later := start.Add(time.Minute).Add(time.Hour).Add(time.Second)
	assert.True(t, budget.Allow(later))
	budget.Record(later)
	assert.Equal(t, 1, budget.Count())
}

func TestRateBudget_WithinWindowKeepsCounting(t *testing.T) {
	t.Parallel()

	budget := NewRateBudget(100, time.Hour)
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	// Steady trickle never lets the gap exceed the window, counter keeps growing
	for i := 0; i < 50; i++ {
		budget.Record(start.Add(time.Duration(i) * time.Minute))
	}
	assert.Equal(t, 50, budget.Count())
}
