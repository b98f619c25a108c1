// Package timeline produces bounded sequences of future display snapshots
// for presentation hosts that only re-render at granted intervals, such as
// home screen widgets.
package timeline

import (
	"time"

	"github.com/raceday/raceday-go/internal/countdown"
	"github.com/raceday/raceday-go/internal/schedule"
)

// DefaultPerMinuteWindow bounds how far ahead of the race per-minute entries
// are generated. Beyond it the countdown resolution cannot visibly change
// between host-driven reloads, so a single entry suffices.
const DefaultPerMinuteWindow = 7 * 24 * time.Hour

// Snapshot pairs a future instant with the race data valid at that instant.
// Within one timeline all snapshots share the same underlying race data;
// only the displayed countdown differs.
type Snapshot struct {
	Date      time.Time           `json:"date"`
	NextRace  *schedule.Race      `json:"nextRace,omitempty"`
	Phase     countdown.Phase     `json:"phase"`
	Remaining countdown.Breakdown `json:"remaining"`
	Upcoming  []schedule.Race     `json:"upcoming,omitempty"`
}

// Timeline is the scheduler's product: entries to display in order, and the
// earliest instant at which the host should ask for a new timeline. Hosts
// may reload earlier when externally triggered; NextUpdate is a floor, not
// an exact schedule.
type Timeline struct {
	Entries    []Snapshot `json:"entries"`
	NextUpdate time.Time  `json:"nextUpdate"`
}

// RaceSource is the read-only slice of the synchronization service the
// scheduler consumes. Building a timeline never triggers a network fetch.
type RaceSource interface {
	NextRace(now time.Time) *schedule.Race
	UpcomingRaces(now time.Time) []schedule.Race
}

// Provider builds timelines from cached race data.
type Provider struct {
	source          RaceSource
	calc            *countdown.Calculator
	perMinuteWindow time.Duration
}

// NewProvider creates a timeline provider. A non-positive perMinuteWindow
// selects the default.
func NewProvider(source RaceSource, calc *countdown.Calculator, perMinuteWindow time.Duration) *Provider {
	if perMinuteWindow <= 0 {
		perMinuteWindow = DefaultPerMinuteWindow
	}
	return &Provider{
		source:          source,
		calc:            calc,
		perMinuteWindow: perMinuteWindow,
	}
}

// Timeline produces the snapshot sequence anchored at now.
//
// There is always a snapshot for now. When the next race is inside the
// per-minute window, one synthetic snapshot per minute is added up to (but
// not including) NextUpdate so the host can show a smooth countdown from a
// single request. Farther out, the single snapshot suffices.
func (p *Provider) Timeline(now time.Time) Timeline {
	next := p.source.NextRace(now)
	if next == nil {
		return Timeline{
			Entries: []Snapshot{{
				Date:  now,
				Phase: countdown.PhaseFinished,
			}},
			NextUpdate: now.Add(p.calc.NextCheckInUnknown()),
		}
	}

	target, ok := next.RaceDateTime()
	if !ok {
		// An upcoming race always has a parseable date; defensive fallback
		return Timeline{
			Entries: []Snapshot{{
				Date:  now,
				Phase: countdown.PhaseFinished,
			}},
			NextUpdate: now.Add(p.calc.NextCheckInUnknown()),
		}
	}

	upcoming := p.source.UpcomingRaces(now)
	nextUpdate := now.Add(p.calc.NextCheckIn(now, target))

	entries := []Snapshot{p.snapshot(now, target, next, upcoming)}
	if target.Sub(now) <= p.perMinuteWindow {
		for at := now.Add(time.Minute); at.Before(nextUpdate); at = at.Add(time.Minute) {
			entries = append(entries, p.snapshot(at, target, next, upcoming))
		}
	}

	return Timeline{
		Entries:    entries,
		NextUpdate: nextUpdate,
	}
}

func (p *Provider) snapshot(at, target time.Time, next *schedule.Race, upcoming []schedule.Race) Snapshot {
	return Snapshot{
		Date:      at,
		NextRace:  next,
		Phase:     p.calc.Classify(at, target),
		Remaining: p.calc.Remaining(at, target),
		Upcoming:  upcoming,
	}
}
