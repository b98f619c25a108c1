// Package notify plans local notifications for race weekend sessions from
// the user's preference offsets. Delivery is owned by an external sink; this
// package only computes what should fire and when.
package notify

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/raceday/raceday-go/internal/datastore"
	"github.com/raceday/raceday-go/internal/errors"
	"github.com/raceday/raceday-go/internal/schedule"
)

// Offset names a notification lead time relative to the session start.
type Offset string

const (
	OffsetAtEvent   Offset = "at-event-time"
	OffsetHour      Offset = "1h-before"
	OffsetTwoHours  Offset = "2h-before"
	OffsetDayBefore Offset = "1d-before"
)

// Duration returns the lead time for the offset. Unknown offsets behave as
// at-event-time.
func (o Offset) Duration() time.Duration {
	switch o {
	case OffsetHour:
		return time.Hour
	case OffsetTwoHours:
		return 2 * time.Hour
	case OffsetDayBefore:
		return 24 * time.Hour
	default:
		return 0
	}
}

func (o Offset) label() string {
	switch o {
	case OffsetHour:
		return "in 1 hour"
	case OffsetTwoHours:
		return "in 2 hours"
	case OffsetDayBefore:
		return "tomorrow"
	default:
		return "now"
	}
}

// ParseOffsets splits the comma-separated preference value into offsets,
// dropping empty elements.
func ParseOffsets(csv string) []Offset {
	var offsets []Offset
	for _, part := range strings.Split(csv, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			offsets = append(offsets, Offset(part))
		}
	}
	return offsets
}

// parseKinds builds the set of notification-eligible session kinds from the
// comma-separated preference value. The "practice" preference covers all
// three practice sessions.
func parseKinds(csv string) map[schedule.SessionKind]bool {
	eligible := make(map[schedule.SessionKind]bool)
	for _, part := range strings.Split(csv, ",") {
		switch strings.TrimSpace(part) {
		case "race":
			eligible[schedule.SessionRace] = true
		case "qualifying":
			eligible[schedule.SessionQualifying] = true
		case "sprint":
			eligible[schedule.SessionSprint] = true
		case "practice":
			eligible[schedule.SessionFirstPractice] = true
			eligible[schedule.SessionSecondPractice] = true
			eligible[schedule.SessionThirdPractice] = true
		}
	}
	return eligible
}

// Notification is a planned local notification.
type Notification struct {
	ID     string
	FireAt time.Time
	Title  string
	Body   string
}

// Sink is the delivery boundary. The core schedules and cancels through it
// but never owns delivery.
type Sink interface {
	Schedule(n Notification) error
	Cancel(id string) error
}

// PlanRace computes the notifications for one race honoring the preference
// flags, offsets and session-kind filters. Fire times already in the past
// are skipped, as are sessions without a resolvable timestamp. Results are
// ordered by fire time.
func PlanRace(race *schedule.Race, prefs *datastore.Preferences, now time.Time) []Notification {
	if race == nil || prefs == nil || !prefs.NotificationsEnabled {
		return nil
	}

	eligible := parseKinds(prefs.NotificationKinds)
	offsets := ParseOffsets(prefs.NotificationOffsets)
	if len(eligible) == 0 || len(offsets) == 0 {
		return nil
	}

	var planned []Notification
	for _, session := range race.Sessions() {
		if !eligible[session.Kind] {
			continue
		}
		sessionTime, ok := session.DateTime()
		if !ok {
			continue
		}
		for _, offset := range offsets {
			fireAt := sessionTime.Add(-offset.Duration())
			if !fireAt.After(now) {
				continue
			}
			planned = append(planned, Notification{
				ID:     fmt.Sprintf("%s-%s-%s", race.ID, session.Kind, offset),
				FireAt: fireAt,
				Title:  race.Name,
				Body:   fmt.Sprintf("%s starts %s", sessionLabel(session.Kind), offset.label()),
			})
		}
	}

	sort.SliceStable(planned, func(i, j int) bool {
		return planned[i].FireAt.Before(planned[j].FireAt)
	})
	return planned
}

// ScheduleAll pushes every planned notification into the sink, collecting
// failures instead of stopping at the first one.
func ScheduleAll(sink Sink, notifications []Notification) error {
	var errs []error
	for _, n := range notifications {
		if err := sink.Schedule(n); err != nil {
			errs = append(errs, fmt.Errorf("scheduling %s: %w", n.ID, err))
		}
	}
	return errors.Join(errs...)
}

// CancelRace removes every notification the planner could have produced for
// a race, regardless of current preferences.
func CancelRace(sink Sink, race *schedule.Race) error {
	if race == nil {
		return nil
	}
	allOffsets := []Offset{OffsetAtEvent, OffsetHour, OffsetTwoHours, OffsetDayBefore}

	var errs []error
	for _, session := range race.Sessions() {
		for _, offset := range allOffsets {
			id := fmt.Sprintf("%s-%s-%s", race.ID, session.Kind, offset)
			if err := sink.Cancel(id); err != nil {
				errs = append(errs, fmt.Errorf("cancelling %s: %w", id, err))
			}
		}
	}
	return errors.Join(errs...)
}

func sessionLabel(kind schedule.SessionKind) string {
	switch kind {
	case schedule.SessionFirstPractice:
		return "First practice"
	case schedule.SessionSecondPractice:
		return "Second practice"
	case schedule.SessionThirdPractice:
		return "Third practice"
	case schedule.SessionQualifying:
		return "Qualifying"
	case schedule.SessionSprint:
		return "Sprint"
	default:
		return "Race"
	}
}
