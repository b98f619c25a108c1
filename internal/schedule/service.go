package schedule

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/raceday/raceday-go/internal/conf"
	"github.com/raceday/raceday-go/internal/datastore"
	"github.com/raceday/raceday-go/internal/errors"
	"github.com/raceday/raceday-go/internal/jolpica"
	"github.com/raceday/raceday-go/internal/logging"
	"github.com/raceday/raceday-go/internal/metrics"
)

// Package-level logger for the schedule service
var (
	serviceLogger   *slog.Logger
	serviceLevelVar = new(slog.LevelVar)
)

func init() {
	var err error
	serviceLevelVar.Set(slog.LevelInfo)

	serviceLogger, _, err = logging.NewFileLogger(filepath.Join("logs", "schedule.log"), "schedule", serviceLevelVar)
	if err != nil {
		log.Printf("Failed to initialize schedule file logger: %v. Falling back to discard logger.", err)
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: serviceLevelVar})
		serviceLogger = slog.New(fbHandler).With("service", "schedule")
	}
}

// ErrNetworkUnavailable signals that a refresh failed for connectivity
// reasons only. Callers should treat this as non-fatal and keep serving the
// cached data.
var ErrNetworkUnavailable = errors.NewStd("network unavailable")

// SyncError wraps a non-network failure raised during fetch-and-cache:
// decoding problems, server errors, rate limiting or store failures.
type SyncError struct {
	Cause error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("schedule sync failed: %v", e.Cause)
}

func (e *SyncError) Unwrap() error {
	return e.Cause
}

// APIClient is the slice of the schedule API client the service depends on.
type APIClient interface {
	FetchSeason(ctx context.Context, season string) ([]jolpica.Race, error)
	FetchCurrentSeason(ctx context.Context) ([]jolpica.Race, error)
	FetchNextRace(ctx context.Context) (*jolpica.Race, error)
}

// Service is the synchronization engine: the single authority application
// surfaces consult for race data. It blends network refresh with the local
// store for low-latency reads and resilience to network failure.
type Service struct {
	client   APIClient
	ds       datastore.Interface
	settings *conf.Settings
	metrics  *metrics.Metrics // optional, nil-safe

	group singleflight.Group // serializes fetches per season scope

	mu       sync.RWMutex
	cached   []Race
	lastSync time.Time
	lastErr  error
	loading  bool
}

// NewService creates a synchronization service. The metrics argument may be
// nil when no collection is wanted.
func NewService(settings *conf.Settings, client APIClient, ds datastore.Interface, m *metrics.Metrics) *Service {
	return &Service{
		client:   client,
		ds:       ds,
		settings: settings,
		metrics:  m,
	}
}

// FetchAndCacheRaces fetches the given season ("" for the current season)
// from the upstream API, persists every race and circuit into the local
// store, refreshes the in-memory cache and returns the fetched list.
//
// Network-class failures surface as ErrNetworkUnavailable so callers can
// fall back to GetCachedRaces; anything else surfaces as a SyncError
// wrapping the cause. A failed fetch never touches existing cached data.
func (s *Service) FetchAndCacheRaces(ctx context.Context, season string) ([]Race, error) {
	scope := season
	if scope == "" {
		scope = "current"
	}

	s.setLoading(true)
	defer s.setLoading(false)

	start := time.Now()
	result, err, _ := s.group.Do(scope, func() (any, error) {
		return s.fetchAndCache(ctx, season)
	})

	if s.metrics != nil {
		s.metrics.SyncDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		classified := s.classifySyncError(err)
		s.setLastError(classified)
		if s.metrics != nil {
			s.metrics.SyncRuns.WithLabelValues(syncResultLabel(classified)).Inc()
		}
		return nil, classified
	}

	s.setLastError(nil)
	if s.metrics != nil {
		s.metrics.SyncRuns.WithLabelValues("success").Inc()
	}
	races, _ := result.([]Race)
	return races, nil
}

// fetchAndCache is the single-flight body: fetch, persist, publish.
func (s *Service) fetchAndCache(ctx context.Context, season string) ([]Race, error) {
	var (
		wireRaces []jolpica.Race
		err       error
	)
	if season == "" {
		wireRaces, err = s.client.FetchCurrentSeason(ctx)
	} else {
		wireRaces, err = s.client.FetchSeason(ctx, season)
	}
	if err != nil {
		serviceLogger.Error("failed to fetch races from upstream",
			"season", season,
			"error", err)
		return nil, err
	}

	races := make([]Race, 0, len(wireRaces))
	for i := range wireRaces {
		race := FromAPI(&wireRaces[i])
		circuit, rec := toRecords(&race)
		if err := s.ds.SaveCircuit(circuit); err != nil {
			return nil, err
		}
		if err := s.ds.SaveRace(rec); err != nil {
			return nil, err
		}
		races = append(races, race)
	}

	now := time.Now()
	s.mu.Lock()
	s.cached = races
	s.lastSync = now
	s.mu.Unlock()

	s.recordRefreshTimestamp(now)

	serviceLogger.Info("schedule sync complete",
		"season", season,
		"races", len(races))
	return races, nil
}

// recordRefreshTimestamp persists the last-refresh time on the preferences
// row. Best effort: a preferences write failure does not fail the sync.
func (s *Service) recordRefreshTimestamp(now time.Time) {
	prefs, err := s.ds.GetPreferences()
	if err != nil {
		serviceLogger.Warn("failed to load preferences to record refresh time", "error", err)
		return
	}
	prefs.LastRefreshAt = &now
	if err := s.ds.SavePreferences(prefs); err != nil {
		serviceLogger.Warn("failed to record refresh time", "error", err)
	}
}

// classifySyncError re-classifies client failures for callers: connectivity
// problems become ErrNetworkUnavailable ("try again, cache is fine"),
// everything else becomes a SyncError ("something is actually broken").
func (s *Service) classifySyncError(err error) error {
	if errors.IsCategory(err, errors.CategoryNetwork) || errors.IsCategory(err, errors.CategoryTimeout) {
		return fmt.Errorf("%w: %w", ErrNetworkUnavailable, err)
	}
	return &SyncError{Cause: err}
}

func syncResultLabel(err error) string {
	if errors.Is(err, ErrNetworkUnavailable) {
		return "network_unavailable"
	}
	return "sync_failed"
}

// GetCachedRaces reads races from the local store without touching the
// network, scoped to a season when given, and refreshes the in-memory cache
// as a side effect.
func (s *Service) GetCachedRaces(season string) ([]Race, error) {
	records, err := s.ds.GetRaces(season)
	if err != nil {
		return nil, err
	}

	races := make([]Race, 0, len(records))
	for i := range records {
		races = append(races, fromRecord(&records[i]))
	}

	s.mu.Lock()
	s.cached = races
	s.mu.Unlock()
	return races, nil
}

// GetCachedRace looks up a single race by its "{season}-{round}" identifier.
// A missing race returns (nil, nil).
func (s *Service) GetCachedRace(id string) (*Race, error) {
	rec, err := s.ds.GetRace(id)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	race := fromRecord(&rec)
	return &race, nil
}

// RefreshIfNeeded performs a full fetch-and-cache unless the last successful
// sync is more recent than the configured minimum refresh interval. This
// collapses refresh storms from concurrent UI triggers into no-ops.
func (s *Service) RefreshIfNeeded(ctx context.Context) error {
	minInterval := time.Duration(s.settings.Realtime.MinRefreshInterval) * time.Minute

	s.mu.RLock()
	lastSync := s.lastSync
	s.mu.RUnlock()

	if !lastSync.IsZero() && time.Since(lastSync) < minInterval {
		serviceLogger.Debug("skipping refresh, last sync is recent",
			"last_sync", lastSync,
			"min_interval", minInterval)
		return nil
	}

	_, err := s.FetchAndCacheRaces(ctx, s.settings.Schedule.Season)
	return err
}

// ClearCache removes all cached races and circuits from the local store and
// resets the in-memory cache and sync timestamp.
func (s *Service) ClearCache() error {
	if err := s.ds.Clear(); err != nil {
		return err
	}

	s.mu.Lock()
	s.cached = nil
	s.lastSync = time.Time{}
	s.lastErr = nil
	s.mu.Unlock()

	serviceLogger.Info("schedule cache cleared")
	return nil
}

// UpcomingRaces returns the in-memory cached races whose main race is
// strictly in the future, soonest first.
func (s *Service) UpcomingRaces(now time.Time) []Race {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var upcoming []Race
	for i := range s.cached {
		if s.cached[i].IsUpcoming(now) {
			upcoming = append(upcoming, s.cached[i])
		}
	}
	sort.SliceStable(upcoming, func(i, j int) bool {
		ti, _ := upcoming[i].RaceDateTime()
		tj, _ := upcoming[j].RaceDateTime()
		return ti.Before(tj)
	})
	return upcoming
}

// CompletedRaces returns the in-memory cached races whose main race is in
// the past (or has an unparseable date), most recent first.
func (s *Service) CompletedRaces(now time.Time) []Race {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var completed []Race
	for i := range s.cached {
		if !s.cached[i].IsUpcoming(now) {
			completed = append(completed, s.cached[i])
		}
	}
	sort.SliceStable(completed, func(i, j int) bool {
		ti, iok := completed[i].RaceDateTime()
		tj, jok := completed[j].RaceDateTime()
		// Unparseable dates sort last
		if iok != jok {
			return iok
		}
		return ti.After(tj)
	})
	return completed
}

// NextRace returns the upcoming race with the earliest main race time, or
// nil when no upcoming race is cached. Races with unparseable dates are
// never "next".
func (s *Service) NextRace(now time.Time) *Race {
	upcoming := s.UpcomingRaces(now)
	if len(upcoming) == 0 {
		return nil
	}
	next := upcoming[0]
	return &next
}

// LastSyncAt returns the time of the last successful sync, zero before the
// first one.
func (s *Service) LastSyncAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSync
}

// LastError returns the error recorded by the most recent refresh, nil after
// a successful one.
func (s *Service) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// IsLoading reports whether a refresh is currently in flight.
func (s *Service) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

func (s *Service) setLoading(loading bool) {
	s.mu.Lock()
	s.loading = loading
	s.mu.Unlock()
}

func (s *Service) setLastError(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

// StartPolling runs the automatic background refresh loop until stopChan
// closes. Failures are logged and never fatal; the cached data keeps being
// served. The loop honors the auto-refresh preference on every tick.
func (s *Service) StartPolling(stopChan <-chan struct{}) {
	interval := time.Duration(s.settings.Realtime.PollInterval) * time.Minute
	if prefs, err := s.ds.GetPreferences(); err == nil && prefs.AutoRefreshMinutes > 0 {
		interval = time.Duration(prefs.AutoRefreshMinutes) * time.Minute
	}

	serviceLogger.Info("starting schedule polling",
		"interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Initial refresh, a cold start should not wait a full interval
	if err := s.RefreshIfNeeded(context.Background()); err != nil {
		serviceLogger.Warn("initial schedule refresh failed", "error", err)
	}

	for {
		select {
		case <-ticker.C:
			if prefs, err := s.ds.GetPreferences(); err == nil && !prefs.AutoRefreshEnabled {
				serviceLogger.Debug("auto refresh disabled, skipping poll")
				continue
			}
			if err := s.RefreshIfNeeded(context.Background()); err != nil {
				serviceLogger.Warn("schedule refresh poll failed", "error", err)
			}
		case <-stopChan:
			serviceLogger.Info("stopping schedule polling")
			return
		}
	}
}
