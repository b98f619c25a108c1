// config.go: defines the application settings and viper-based loading
package conf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// ScheduleSettings holds configuration for the upstream race schedule API.
type ScheduleSettings struct {
	BaseURL   string // base URL of the schedule API
	Timeout   int    // request timeout in seconds
	RateLimit int    // maximum requests per trailing hour
	CacheTTL  int    // response memoization TTL in minutes
	Season    string // pinned season, empty for the current season
	UserAgent string // User-Agent header sent with requests
}

// StoreSettings holds configuration for the local durable store.
type StoreSettings struct {
	SQLite struct {
		Enabled bool   // true to enable SQLite output
		Path    string // path to the SQLite database file
	}
}

// RealtimeSettings holds configuration for the background sync loop.
type RealtimeSettings struct {
	PollInterval       int // automatic refresh interval in minutes
	MinRefreshInterval int // minimum interval between syncs in minutes
}

// TimelineSettings holds the display scheduling policy knobs. The defaults
// match the countdown behavior users of the companion apps expect; they are
// policy values, not physical constants.
type TimelineSettings struct {
	LiveWindowMinutes   int // how long after the start an event counts as live
	PerMinuteWindowDays int // emit per-minute entries when the race is closer than this
}

// Settings is the root configuration structure.
type Settings struct {
	Debug bool // true to enable debug mode

	// Runtime values, not stored in the config file
	Version string `yaml:"-"`

	Main struct {
		Name    string // instance name, used to identify this deployment
		LogPath string // directory for service log files
	}

	Schedule ScheduleSettings // upstream schedule API configuration

	Store StoreSettings // local store configuration

	Realtime RealtimeSettings // background sync configuration

	Timeline TimelineSettings // display scheduling policy

	WebServer struct {
		Enabled bool   // true to enable the HTTP API
		Port    string // port for the HTTP API
	}
}

// Load reads the configuration file and environment into a Settings value.
func Load() (*Settings, error) {
	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	return settings, nil
}

func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	viper.SetEnvPrefix("RACEDAY")
	viper.AutomaticEnv()

	setDefaultConfig()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// No config file is fine, defaults apply
	}

	return nil
}

// GetDefaultConfigPaths returns the list of directories searched for the
// config file, most specific first.
func GetDefaultConfigPaths() ([]string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		// Fall back to the working directory only
		return []string{"."}, nil //nolint:nilerr // intentional fallback
	}
	return []string{
		".",
		filepath.Join(configDir, "raceday"),
	}, nil
}

// ValidateSettings checks settings for values that cannot work at runtime.
func ValidateSettings(settings *Settings) error {
	if settings.Schedule.BaseURL == "" {
		return fmt.Errorf("schedule.baseurl must not be empty")
	}
	if settings.Schedule.Timeout <= 0 {
		return fmt.Errorf("schedule.timeout must be positive, got %d", settings.Schedule.Timeout)
	}
	if settings.Schedule.RateLimit <= 0 {
		return fmt.Errorf("schedule.ratelimit must be positive, got %d", settings.Schedule.RateLimit)
	}
	if settings.Realtime.MinRefreshInterval <= 0 {
		return fmt.Errorf("realtime.minrefreshinterval must be positive, got %d", settings.Realtime.MinRefreshInterval)
	}
	if settings.Timeline.LiveWindowMinutes <= 0 {
		return fmt.Errorf("timeline.livewindowminutes must be positive, got %d", settings.Timeline.LiveWindowMinutes)
	}
	if settings.Timeline.PerMinuteWindowDays <= 0 {
		return fmt.Errorf("timeline.perminutewindowdays must be positive, got %d", settings.Timeline.PerMinuteWindowDays)
	}
	if settings.Store.SQLite.Enabled && settings.Store.SQLite.Path == "" {
		return fmt.Errorf("store.sqlite.path must not be empty when sqlite is enabled")
	}
	return nil
}
