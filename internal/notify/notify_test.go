package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raceday/raceday-go/internal/datastore"
	"github.com/raceday/raceday-go/internal/errors"
	"github.com/raceday/raceday-go/internal/schedule"
)

func weekendRace() *schedule.Race {
	return &schedule.Race{
		ID:         "2024-1",
		Season:     "2024",
		Round:      "1",
		Name:       "Bahrain Grand Prix",
		Date:       "2024-03-02",
		Time:       "15:00:00Z",
		Qualifying: &schedule.Session{Kind: schedule.SessionQualifying, Date: "2024-03-01", Time: "16:00:00Z"},
		FirstPractice: &schedule.Session{
			Kind: schedule.SessionFirstPractice, Date: "2024-02-29", Time: "11:30:00Z",
		},
	}
}

func notifyPrefs(kinds, offsets string) *datastore.Preferences {
	return &datastore.Preferences{
		ID:                   datastore.PreferencesID,
		NotificationsEnabled: true,
		NotificationKinds:    kinds,
		NotificationOffsets:  offsets,
	}
}

func TestOffsetDuration(t *testing.T) {
	t.Parallel()

	assert.Equal(t, time.Duration(0), OffsetAtEvent.Duration())
	assert.Equal(t, time.Hour, OffsetHour.Duration())
	assert.Equal(t, 2*time.Hour, OffsetTwoHours.Duration())
	assert.Equal(t, 24*time.Hour, OffsetDayBefore.Duration())
	assert.Equal(t, time.Duration(0), Offset("made-up").Duration())
}

func TestParseOffsets(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []Offset{OffsetHour, OffsetDayBefore}, ParseOffsets("1h-before, 1d-before"))
	assert.Empty(t, ParseOffsets(""))
	assert.Empty(t, ParseOffsets(" , "))
}

func TestPlanRace_KindAndOffsetFilters(t *testing.T) {
	t.Parallel()

	// A week before the weekend, everything is plannable
	now := time.Date(2024, 2, 23, 0, 0, 0, 0, time.UTC)
	planned := PlanRace(weekendRace(), notifyPrefs("race,qualifying", "1h-before"), now)

	require.Len(t, planned, 2)
	assert.Equal(t, "2024-1-qualifying-1h-before", planned[0].ID)
	assert.Equal(t, time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC), planned[0].FireAt)
	assert.Equal(t, "2024-1-race-1h-before", planned[1].ID)
	assert.Equal(t, time.Date(2024, 3, 2, 14, 0, 0, 0, time.UTC), planned[1].FireAt)
	assert.Equal(t, "Bahrain Grand Prix", planned[0].Title)
	assert.Equal(t, "Qualifying starts in 1 hour", planned[0].Body)
}

func TestPlanRace_PracticeExpands(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 2, 23, 0, 0, 0, 0, time.UTC)
	planned := PlanRace(weekendRace(), notifyPrefs("practice", "at-event-time"), now)

	// Only fp1 exists on this weekend
	require.Len(t, planned, 1)
	assert.Equal(t, "2024-1-fp1-at-event-time", planned[0].ID)
	assert.Equal(t, time.Date(2024, 2, 29, 11, 30, 0, 0, time.UTC), planned[0].FireAt)
}

func TestPlanRace_SkipsPastFireTimes(t *testing.T) {
	t.Parallel()

	// Mid-weekend: qualifying already ran, only the race notification remains
	now := time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)
	planned := PlanRace(weekendRace(), notifyPrefs("race,qualifying", "1h-before"), now)

	require.Len(t, planned, 1)
	assert.Equal(t, "2024-1-race-1h-before", planned[0].ID)
}

func TestPlanRace_MultipleOffsetsSortedByFireTime(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 2, 23, 0, 0, 0, 0, time.UTC)
	planned := PlanRace(weekendRace(), notifyPrefs("race", "at-event-time,1d-before,1h-before"), now)

	require.Len(t, planned, 3)
	assert.Equal(t, "2024-1-race-1d-before", planned[0].ID)
	assert.Equal(t, "2024-1-race-1h-before", planned[1].ID)
	assert.Equal(t, "2024-1-race-at-event-time", planned[2].ID)
	for i := 1; i < len(planned); i++ {
		assert.True(t, planned[i-1].FireAt.Before(planned[i].FireAt))
	}
}

func TestPlanRace_DisabledOrEmpty(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 2, 23, 0, 0, 0, 0, time.UTC)

	disabled := notifyPrefs("race", "1h-before")
	disabled.NotificationsEnabled = false
	assert.Nil(t, PlanRace(weekendRace(), disabled, now))

	assert.Nil(t, PlanRace(weekendRace(), notifyPrefs("", "1h-before"), now))
	assert.Nil(t, PlanRace(weekendRace(), notifyPrefs("race", ""), now))
	assert.Nil(t, PlanRace(nil, notifyPrefs("race", "1h-before"), now))
	assert.Nil(t, PlanRace(weekendRace(), nil, now))
}

func TestPlanRace_UnparseableSessionSkipped(t *testing.T) {
	t.Parallel()

	race := weekendRace()
	race.Qualifying.Date = "garbled"
	now := time.Date(2024, 2, 23, 0, 0, 0, 0, time.UTC)

	planned := PlanRace(race, notifyPrefs("race,qualifying", "at-event-time"), now)
	require.Len(t, planned, 1)
	assert.Equal(t, "2024-1-race-at-event-time", planned[0].ID)
}

// recordingSink captures scheduled and cancelled notifications.
type recordingSink struct {
	scheduled []Notification
	cancelled []string
	failOn    string
}

func (s *recordingSink) Schedule(n Notification) error {
	if n.ID == s.failOn {
		return errors.NewStd("sink rejected notification")
	}
	s.scheduled = append(s.scheduled, n)
	return nil
}

func (s *recordingSink) Cancel(id string) error {
	s.cancelled = append(s.cancelled, id)
	return nil
}

func TestScheduleAll_CollectsFailures(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 2, 23, 0, 0, 0, 0, time.UTC)
	planned := PlanRace(weekendRace(), notifyPrefs("race,qualifying", "1h-before"), now)
	require.Len(t, planned, 2)

	sink := &recordingSink{failOn: "2024-1-qualifying-1h-before"}
	err := ScheduleAll(sink, planned)

	// The failure does not stop delivery of the remaining notifications
	require.Error(t, err)
	assert.Len(t, sink.scheduled, 1)
	assert.Equal(t, "2024-1-race-1h-before", sink.scheduled[0].ID)
}

func TestCancelRace_CoversAllCombinations(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	require.NoError(t, CancelRace(sink, weekendRace()))

	// 3 sessions x 4 offsets
	assert.Len(t, sink.cancelled, 12)
	assert.Contains(t, sink.cancelled, "2024-1-race-at-event-time")
	assert.Contains(t, sink.cancelled, "2024-1-fp1-1d-before")

	assert.NoError(t, CancelRace(sink, nil))
}
