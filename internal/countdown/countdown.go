// Package countdown provides pure calculations for time-to-event countdowns:
// remaining-duration breakdowns, live/finished classification and the
// urgency-dependent check-in delay used by display schedulers.
package countdown

import "time"

// Phase classifies an event relative to the current time
type Phase string

const (
	PhaseUpcoming Phase = "upcoming"
	PhaseLive     Phase = "live"
	PhaseFinished Phase = "finished"
)

// DefaultLiveWindow approximates how long an event stays "live" after its
// start. A policy constant, not derived from actual session length data.
const DefaultLiveWindow = 2 * time.Hour

// Check-in delays by proximity to the target. This table is the core
// scheduling policy, balancing display freshness against refresh cost.
const (
	DelayLive    = 60 * time.Second
	DelayNearest = 60 * time.Second // under an hour out
	DelayNear    = 15 * time.Minute // under a day out
	DelayFar     = time.Hour        // under a week out
	DelayFarther = 6 * time.Hour    // a week or more out
	DelayUnknown = time.Hour        // no target at all
)

// Breakdown is a human-scale remaining duration. All components are
// non-negative; a passed target yields all zeros.
type Breakdown struct {
	Days    int
	Hours   int
	Minutes int
	Seconds int
}

// Calculator computes countdown state for a configurable live window.
type Calculator struct {
	liveWindow time.Duration
}

// New creates a Calculator with the given live window; a non-positive value
// selects the default.
func New(liveWindow time.Duration) *Calculator {
	if liveWindow <= 0 {
		liveWindow = DefaultLiveWindow
	}
	return &Calculator{liveWindow: liveWindow}
}

// Remaining breaks the time from now until target into days, hours, minutes
// and seconds by integer division of the total remaining seconds.
func (c *Calculator) Remaining(now, target time.Time) Breakdown {
	remaining := int(target.Sub(now) / time.Second)
	if remaining < 0 {
		remaining = 0
	}
	return Breakdown{
		Days:    remaining / 86400,
		Hours:   (remaining % 86400) / 3600,
		Minutes: (remaining % 3600) / 60,
		Seconds: remaining % 60,
	}
}

// Classify reports the phase of an event: upcoming strictly before the
// target, live from the target until the live window closes, finished from
// then on.
func (c *Calculator) Classify(now, target time.Time) Phase {
	switch {
	case now.Before(target):
		return PhaseUpcoming
	case now.Before(target.Add(c.liveWindow)):
		return PhaseLive
	default:
		return PhaseFinished
	}
}

// NextCheckIn recommends how long a consumer should wait before
// re-evaluating the countdown. Resolution is coarse far from the target and
// fine near or during it.
func (c *Calculator) NextCheckIn(now, target time.Time) time.Duration {
	remaining := target.Sub(now)
	switch {
	case remaining <= 0:
		return DelayLive
	case remaining < time.Hour:
		return DelayNearest
	case remaining < 24*time.Hour:
		return DelayNear
	case remaining < 7*24*time.Hour:
		return DelayFar
	default:
		return DelayFarther
	}
}

// NextCheckInUnknown is the recommended delay when there is no target to
// count down to.
func (c *Calculator) NextCheckInUnknown() time.Duration {
	return DelayUnknown
}
