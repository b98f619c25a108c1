package jolpica

import (
	"fmt"
	"time"
)

// Config holds configuration for the schedule API client
type Config struct {
	BaseURL    string        // API base URL without trailing slash
	Timeout    time.Duration // HTTP request timeout
	UserAgent  string        // User-Agent header value
	RateLimit  int           // maximum requests per rate window
	RateWindow time.Duration // trailing window for the rate budget
	CacheTTL   time.Duration // response memoization TTL, zero disables caching
}

// DefaultConfig returns the default client configuration
func DefaultConfig() Config {
	return Config{
		BaseURL:    "https://api.jolpi.ca/ergast/f1",
		Timeout:    30 * time.Second,
		UserAgent:  "raceday-go",
		RateLimit:  500,
		RateWindow: time.Hour,
		CacheTTL:   5 * time.Minute,
	}
}

// ScheduleResponse is the top-level envelope of every schedule API response
type ScheduleResponse struct {
	MRData MRData `json:"MRData"`
}

// MRData carries paging metadata and the optional race table
type MRData struct {
	Series    string     `json:"series"`
	URL       string     `json:"url"`
	Limit     string     `json:"limit"`
	Offset    string     `json:"offset"`
	Total     string     `json:"total"`
	RaceTable *RaceTable `json:"RaceTable,omitempty"`
}

// RaceTable holds the race list for the requested scope
type RaceTable struct {
	Season string `json:"season,omitempty"`
	Round  string `json:"round,omitempty"`
	Races  []Race `json:"Races"`
}

// Race is the wire representation of a race weekend
type Race struct {
	Season   string  `json:"season"`
	Round    string  `json:"round"`
	RaceName string  `json:"raceName"`
	Circuit  Circuit `json:"Circuit"`
	Date     string  `json:"date"`
	Time     string  `json:"time,omitempty"`

	FirstPractice  *Session `json:"FirstPractice,omitempty"`
	SecondPractice *Session `json:"SecondPractice,omitempty"`
	ThirdPractice  *Session `json:"ThirdPractice,omitempty"`
	Qualifying     *Session `json:"Qualifying,omitempty"`
	Sprint         *Session `json:"Sprint,omitempty"`
}

// ID returns the canonical "{season}-{round}" race identifier
func (r *Race) ID() string {
	return fmt.Sprintf("%s-%s", r.Season, r.Round)
}

// Circuit is the wire representation of a racing venue
type Circuit struct {
	CircuitID   string   `json:"circuitId"`
	CircuitName string   `json:"circuitName"`
	Location    Location `json:"Location"`
}

// Location is the circuit locality block
type Location struct {
	Locality string `json:"locality"`
	Country  string `json:"country"`
}

// Session is a dated session block within a race weekend
type Session struct {
	Date string `json:"date"`
	Time string `json:"time,omitempty"`
}
