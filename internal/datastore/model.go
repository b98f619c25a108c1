// model.go this code defines the data model for the application
package datastore

import "time"

// Circuit represents a racing venue. Circuits are keyed by the upstream
// circuit identifier and shared by races across seasons.
type Circuit struct {
	ID        string `gorm:"primaryKey"` // upstream circuitId
	Name      string
	Locality  string
	Country   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Race represents a race weekend. The primary key is the composite
// "{season}-{round}" identifier used throughout the application. Session
// blocks are stored as raw date/time string pairs exactly as the upstream
// API delivers them; parsing happens in the schedule domain layer.
type Race struct {
	ID        string `gorm:"primaryKey"` // "{season}-{round}"
	Season    string `gorm:"index:idx_races_season"`
	Round     string
	Name      string
	CircuitID string   `gorm:"index;not null"`
	Circuit   *Circuit `gorm:"foreignKey:CircuitID"`

	// Main race session, date is YYYY-MM-DD, time is HH:MM:SSZ or empty
	Date string
	Time string

	// Optional session blocks, empty strings when the weekend has none
	FirstPracticeDate  string
	FirstPracticeTime  string
	SecondPracticeDate string
	SecondPracticeTime string
	ThirdPracticeDate  string
	ThirdPracticeTime  string
	QualifyingDate     string
	QualifyingTime     string
	SprintDate         string
	SprintTime         string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// PreferencesID is the fixed primary key of the single Preferences row.
const PreferencesID = "default"

// Preferences represents the single per-installation preferences record.
// Set-valued fields are stored as comma-separated strings; the schedule
// layer exposes them as typed sets.
type Preferences struct {
	ID string `gorm:"primaryKey"`

	NotificationsEnabled bool
	NotificationOffsets  string // comma-separated offset names
	NotificationKinds    string // comma-separated session kinds
	SoundEnabled         bool

	Theme              string // system, light or dark
	ShowCompletedRaces bool
	TimeZoneMode       string // local or circuit

	AutoRefreshEnabled bool
	AutoRefreshMinutes int
	LastRefreshAt      *time.Time

	FavoriteCircuits string // comma-separated circuit IDs
	FavoriteSeasons  string // comma-separated seasons

	// Entitlement flag, read-only for the core
	IsProUser bool

	CreatedAt time.Time
	UpdatedAt time.Time
}
