package countdown

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var anchor = time.Date(2024, 3, 2, 15, 0, 0, 0, time.UTC)

func TestRemaining(t *testing.T) {
	t.Parallel()

	calc := New(0)

	tests := []struct {
		name   string
		until  time.Duration
		expect Breakdown
	}{
		{"zero", 0, Breakdown{}},
		{"passed target clamps to zero", -time.Hour, Breakdown{}},
		{"seconds only", 59 * time.Second, Breakdown{Seconds: 59}},
		{"one minute", time.Minute, Breakdown{Minutes: 1}},
		{"mixed", 26*time.Hour + 3*time.Minute + 4*time.Second, Breakdown{Days: 1, Hours: 2, Minutes: 3, Seconds: 4}},
		{"exactly one week", 7 * 24 * time.Hour, Breakdown{Days: 7}},
		{"sub-second truncates", 1500 * time.Millisecond, Breakdown{Seconds: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := calc.Remaining(anchor, anchor.Add(tt.until))
			assert.Equal(t, tt.expect, got)
		})
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	calc := New(0)

	tests := []struct {
		name   string
		now    time.Time
		expect Phase
	}{
		{"one second before start", anchor.Add(-time.Second), PhaseUpcoming},
		{"at start", anchor, PhaseLive},
		{"one hour in", anchor.Add(time.Hour), PhaseLive},
		{"one second before window closes", anchor.Add(2*time.Hour - time.Second), PhaseLive},
		{"window close", anchor.Add(2 * time.Hour), PhaseFinished},
		{"long after", anchor.Add(48 * time.Hour), PhaseFinished},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expect, calc.Classify(tt.now, anchor))
		})
	}
}

func TestClassify_CustomLiveWindow(t *testing.T) {
	t.Parallel()

	calc := New(30 * time.Minute)
	assert.Equal(t, PhaseLive, calc.Classify(anchor.Add(29*time.Minute), anchor))
	assert.Equal(t, PhaseFinished, calc.Classify(anchor.Add(30*time.Minute), anchor))
}

func TestNextCheckIn(t *testing.T) {
	t.Parallel()

	calc := New(0)

	tests := []struct {
		name   string
		until  time.Duration
		expect time.Duration
	}{
		{"started", 0, DelayLive},
		{"passed", -time.Hour, DelayLive},
		{"thirty minutes out", 30 * time.Minute, DelayNearest},
		{"just under an hour", time.Hour - time.Second, DelayNearest},
		{"exactly one hour", time.Hour, DelayNear},
		{"two hours out", 2 * time.Hour, DelayNear},
		{"just under a day", 24*time.Hour - time.Second, DelayNear},
		{"exactly one day", 24 * time.Hour, DelayFar},
		{"three days out", 3 * 24 * time.Hour, DelayFar},
		{"just under a week", 7*24*time.Hour - time.Second, DelayFar},
		{"exactly one week", 7 * 24 * time.Hour, DelayFarther},
		{"a month out", 30 * 24 * time.Hour, DelayFarther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expect, calc.NextCheckIn(anchor, anchor.Add(tt.until)))
		})
	}
}

func TestNextCheckInUnknown(t *testing.T) {
	t.Parallel()
	assert.Equal(t, DelayUnknown, New(0).NextCheckInUnknown())
}

func TestNextCheckIn_NeverOvershootsTarget(t *testing.T) {
	t.Parallel()

	calc := New(0)

	// Stepping forward by the recommended delay from far out must not jump
	// past the start without first entering the fine-grained bands
	now := anchor.Add(-30 * 24 * time.Hour)
	steps := 0
	for now.Before(anchor) && steps < 100000 {
		delay := calc.NextCheckIn(now, anchor)
		assert.Positive(t, delay)
		now = now.Add(delay)
		steps++
	}
	assert.Less(t, now.Sub(anchor), DelayNearest+time.Second)
}
