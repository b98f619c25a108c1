// Package schedule holds the race weekend domain model and the
// synchronization service reconciling the upstream API with the local store.
package schedule

import (
	"fmt"
	"sort"
	"time"

	"github.com/raceday/raceday-go/internal/datastore"
	"github.com/raceday/raceday-go/internal/jolpica"
)

// SessionKind identifies a timed session within a race weekend
type SessionKind string

const (
	SessionFirstPractice  SessionKind = "fp1"
	SessionSecondPractice SessionKind = "fp2"
	SessionThirdPractice  SessionKind = "fp3"
	SessionQualifying     SessionKind = "qualifying"
	SessionSprint         SessionKind = "sprint"
	SessionRace           SessionKind = "race"
)

// farFuture is the sort key for sessions whose timestamp cannot be resolved.
// They sort after every real session instead of being dropped.
var farFuture = time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC)

// Session is a single timed event within a race weekend. Date is YYYY-MM-DD
// and Time is HH:MM:SSZ in UTC, possibly empty.
type Session struct {
	Kind SessionKind
	Date string
	Time string
}

// DateTime resolves the session timestamp in UTC. A missing time component
// resolves to midnight UTC. The boolean is false when the date cannot be
// parsed; an unparseable date is a first-class outcome, not an error.
func (s Session) DateTime() (time.Time, bool) {
	return parseEventTime(s.Date, s.Time)
}

// sortKey returns the resolved timestamp, or farFuture when unresolvable.
func (s Session) sortKey() time.Time {
	if t, ok := s.DateTime(); ok {
		return t
	}
	return farFuture
}

// Circuit is a racing venue
type Circuit struct {
	ID       string
	Name     string
	Locality string
	Country  string
}

// Race is a race weekend event. Identity is the "{season}-{round}" composite
// key. The main race session is always present; the other session blocks are
// optional and nil for weekends without them.
type Race struct {
	ID      string
	Season  string
	Round   string
	Name    string
	Circuit Circuit

	Date string
	Time string

	FirstPractice  *Session
	SecondPractice *Session
	ThirdPractice  *Session
	Qualifying     *Session
	Sprint         *Session
}

// RaceDateTime resolves the main race timestamp. False when the race date
// cannot be parsed, in which case the race is treated as not upcoming.
func (r *Race) RaceDateTime() (time.Time, bool) {
	return parseEventTime(r.Date, r.Time)
}

// IsUpcoming reports whether the main race is strictly in the future.
func (r *Race) IsUpcoming(now time.Time) bool {
	t, ok := r.RaceDateTime()
	if !ok {
		return false
	}
	return t.After(now)
}

// Sessions returns all present sessions plus the mandatory race session in
// chronological order. Sessions without a resolvable timestamp sort last.
func (r *Race) Sessions() []Session {
	sessions := make([]Session, 0, 6)
	for _, s := range []*Session{r.FirstPractice, r.SecondPractice, r.ThirdPractice, r.Qualifying, r.Sprint} {
		if s != nil {
			sessions = append(sessions, *s)
		}
	}
	sessions = append(sessions, Session{Kind: SessionRace, Date: r.Date, Time: r.Time})

	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].sortKey().Before(sessions[j].sortKey())
	})
	return sessions
}

// parseEventTime combines a YYYY-MM-DD date and optional HH:MM:SSZ time into
// a UTC timestamp.
func parseEventTime(date, timeOfDay string) (time.Time, bool) {
	if date == "" {
		return time.Time{}, false
	}
	if timeOfDay == "" {
		t, err := time.ParseInLocation("2006-01-02", date, time.UTC)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}
	t, err := time.Parse(time.RFC3339, date+"T"+timeOfDay)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// RaceID formats the canonical race identifier.
func RaceID(season, round string) string {
	return fmt.Sprintf("%s-%s", season, round)
}

// FromAPI converts a wire race into the domain representation.
func FromAPI(r *jolpica.Race) Race {
	race := Race{
		ID:     RaceID(r.Season, r.Round),
		Season: r.Season,
		Round:  r.Round,
		Name:   r.RaceName,
		Circuit: Circuit{
			ID:       r.Circuit.CircuitID,
			Name:     r.Circuit.CircuitName,
			Locality: r.Circuit.Location.Locality,
			Country:  r.Circuit.Location.Country,
		},
		Date: r.Date,
		Time: r.Time,
	}
	race.FirstPractice = apiSession(SessionFirstPractice, r.FirstPractice)
	race.SecondPractice = apiSession(SessionSecondPractice, r.SecondPractice)
	race.ThirdPractice = apiSession(SessionThirdPractice, r.ThirdPractice)
	race.Qualifying = apiSession(SessionQualifying, r.Qualifying)
	race.Sprint = apiSession(SessionSprint, r.Sprint)
	return race
}

func apiSession(kind SessionKind, s *jolpica.Session) *Session {
	if s == nil {
		return nil
	}
	return &Session{Kind: kind, Date: s.Date, Time: s.Time}
}

// fromRecord reconstructs a domain race from its persisted form. The record
// must carry a resolved circuit.
func fromRecord(rec *datastore.Race) Race {
	race := Race{
		ID:     rec.ID,
		Season: rec.Season,
		Round:  rec.Round,
		Name:   rec.Name,
		Date:   rec.Date,
		Time:   rec.Time,
	}
	if rec.Circuit != nil {
		race.Circuit = Circuit{
			ID:       rec.Circuit.ID,
			Name:     rec.Circuit.Name,
			Locality: rec.Circuit.Locality,
			Country:  rec.Circuit.Country,
		}
	}
	race.FirstPractice = recordSession(SessionFirstPractice, rec.FirstPracticeDate, rec.FirstPracticeTime)
	race.SecondPractice = recordSession(SessionSecondPractice, rec.SecondPracticeDate, rec.SecondPracticeTime)
	race.ThirdPractice = recordSession(SessionThirdPractice, rec.ThirdPracticeDate, rec.ThirdPracticeTime)
	race.Qualifying = recordSession(SessionQualifying, rec.QualifyingDate, rec.QualifyingTime)
	race.Sprint = recordSession(SessionSprint, rec.SprintDate, rec.SprintTime)
	return race
}

func recordSession(kind SessionKind, date, timeOfDay string) *Session {
	if date == "" {
		return nil
	}
	return &Session{Kind: kind, Date: date, Time: timeOfDay}
}

// toRecords converts a domain race into its circuit and race rows.
func toRecords(race *Race) (*datastore.Circuit, *datastore.Race) {
	circuit := &datastore.Circuit{
		ID:       race.Circuit.ID,
		Name:     race.Circuit.Name,
		Locality: race.Circuit.Locality,
		Country:  race.Circuit.Country,
	}
	rec := &datastore.Race{
		ID:        race.ID,
		Season:    race.Season,
		Round:     race.Round,
		Name:      race.Name,
		CircuitID: race.Circuit.ID,
		Date:      race.Date,
		Time:      race.Time,
	}
	if s := race.FirstPractice; s != nil {
		rec.FirstPracticeDate, rec.FirstPracticeTime = s.Date, s.Time
	}
	if s := race.SecondPractice; s != nil {
		rec.SecondPracticeDate, rec.SecondPracticeTime = s.Date, s.Time
	}
	if s := race.ThirdPractice; s != nil {
		rec.ThirdPracticeDate, rec.ThirdPracticeTime = s.Date, s.Time
	}
	if s := race.Qualifying; s != nil {
		rec.QualifyingDate, rec.QualifyingTime = s.Date, s.Time
	}
	if s := race.Sprint; s != nil {
		rec.SprintDate, rec.SprintTime = s.Date, s.Time
	}
	return circuit, rec
}
