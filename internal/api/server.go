// Package api exposes the presentation-host HTTP surface: cached race data,
// display timelines and refresh control. Hosts poll these routes on their
// own cadence; the server never pushes.
package api

import (
	"context"
	"io"
	"log"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/raceday/raceday-go/internal/conf"
	"github.com/raceday/raceday-go/internal/datastore"
	"github.com/raceday/raceday-go/internal/errors"
	"github.com/raceday/raceday-go/internal/jolpica"
	"github.com/raceday/raceday-go/internal/logging"
	"github.com/raceday/raceday-go/internal/metrics"
	"github.com/raceday/raceday-go/internal/schedule"
	"github.com/raceday/raceday-go/internal/timeline"
)

var (
	apiLogger   *slog.Logger
	apiLevelVar = new(slog.LevelVar)
)

func init() {
	var err error
	apiLevelVar.Set(slog.LevelInfo)

	apiLogger, _, err = logging.NewFileLogger(filepath.Join("logs", "api.log"), "api", apiLevelVar)
	if err != nil {
		log.Printf("Failed to initialize api file logger: %v. Falling back to discard logger.", err)
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: apiLevelVar})
		apiLogger = slog.New(fbHandler).With("service", "api")
	}
}

// Server wires the echo instance to the schedule service and timeline
// provider.
type Server struct {
	Echo     *echo.Echo
	settings *conf.Settings
	service  *schedule.Service
	provider *timeline.Provider
	ds       datastore.Interface
}

// New creates the API server and registers all routes.
func New(settings *conf.Settings, service *schedule.Service, provider *timeline.Provider, ds datastore.Interface, m *metrics.Metrics) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{
		Echo:     e,
		settings: settings,
		service:  service,
		provider: provider,
		ds:       ds,
	}

	v1 := e.Group("/api/v1")
	v1.GET("/races", s.getRaces)
	v1.GET("/races/next", s.getNextRace)
	v1.GET("/races/:id", s.getRace)
	v1.GET("/circuits/:id/races", s.getCircuitRaces)
	v1.GET("/timeline", s.getTimeline)
	v1.POST("/refresh", s.postRefresh)
	v1.GET("/preferences", s.getPreferences)
	v1.PUT("/preferences", s.putPreferences)

	e.GET("/healthz", s.getHealth)
	if m != nil {
		e.GET("/metrics", echo.WrapHandler(m.Handler()))
	}

	return s
}

// Start runs the server on the configured port, blocking until shutdown.
func (s *Server) Start() error {
	addr := ":" + s.settings.WebServer.Port
	apiLogger.Info("starting API server", "addr", addr)
	return s.Echo.Start(addr)
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	apiLogger.Info("shutting down API server")
	return s.Echo.Shutdown(ctx)
}

func (s *Server) getHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":    "ok",
		"last_sync": s.service.LastSyncAt(),
	})
}

func (s *Server) getRaces(c echo.Context) error {
	season := c.QueryParam("season")
	races, err := s.service.GetCachedRaces(season)
	if err != nil {
		apiLogger.Error("failed to read cached races", "season", season, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to read cached races")
	}
	return c.JSON(http.StatusOK, map[string]any{
		"season": season,
		"races":  races,
	})
}

func (s *Server) getNextRace(c echo.Context) error {
	next := s.service.NextRace(time.Now())
	if next == nil {
		return echo.NewHTTPError(http.StatusNotFound, "no upcoming race")
	}
	return c.JSON(http.StatusOK, next)
}

func (s *Server) getRace(c echo.Context) error {
	race, err := s.service.GetCachedRace(c.Param("id"))
	if err != nil {
		apiLogger.Error("failed to read race", "race_id", c.Param("id"), "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to read race")
	}
	if race == nil {
		return echo.NewHTTPError(http.StatusNotFound, "race not found")
	}
	return c.JSON(http.StatusOK, race)
}

// getCircuitRaces lists all races held at one circuit across seasons, the
// lookup backing circuit favorites.
func (s *Server) getCircuitRaces(c echo.Context) error {
	circuitID := c.Param("id")
	races, err := s.ds.GetRacesByCircuit(circuitID)
	if err != nil {
		apiLogger.Error("failed to read races by circuit", "circuit_id", circuitID, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to read races")
	}
	return c.JSON(http.StatusOK, map[string]any{
		"circuit_id": circuitID,
		"races":      races,
	})
}

func (s *Server) getTimeline(c echo.Context) error {
	return c.JSON(http.StatusOK, s.provider.Timeline(time.Now()))
}

// postRefresh triggers an explicit fetch-and-cache. Connectivity failures
// degrade to the cached data with a stale marker instead of erasing the
// display; rate limiting surfaces the retry-after hint.
func (s *Server) postRefresh(c echo.Context) error {
	season := c.QueryParam("season")
	if season == "" {
		season = s.settings.Schedule.Season
	}

	races, err := s.service.FetchAndCacheRaces(c.Request().Context(), season)
	if err == nil {
		return c.JSON(http.StatusOK, map[string]any{
			"races":     races,
			"stale":     false,
			"last_sync": s.service.LastSyncAt(),
		})
	}

	var rateErr *jolpica.RateLimitError
	switch {
	case errors.Is(err, schedule.ErrNetworkUnavailable):
		cached, cacheErr := s.service.GetCachedRaces(season)
		if cacheErr != nil {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "network unavailable and cache unreadable")
		}
		return c.JSON(http.StatusServiceUnavailable, map[string]any{
			"races":     cached,
			"stale":     true,
			"error":     "network unavailable",
			"last_sync": s.service.LastSyncAt(),
		})
	case errors.As(err, &rateErr):
		return c.JSON(http.StatusTooManyRequests, map[string]any{
			"error":         "rate limited",
			"retry_after_s": rateErr.RetryAfter,
		})
	default:
		apiLogger.Error("refresh failed", "season", season, "error", err)
		return echo.NewHTTPError(http.StatusBadGateway, "schedule sync failed")
	}
}

func (s *Server) getPreferences(c echo.Context) error {
	prefs, err := s.ds.GetPreferences()
	if err != nil {
		apiLogger.Error("failed to read preferences", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to read preferences")
	}
	return c.JSON(http.StatusOK, prefs)
}

// putPreferences overwrites the singleton preferences row. The entitlement
// flag is read-only through this surface and always preserved from the
// stored row.
func (s *Server) putPreferences(c echo.Context) error {
	current, err := s.ds.GetPreferences()
	if err != nil {
		apiLogger.Error("failed to read preferences", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to read preferences")
	}

	var incoming datastore.Preferences
	if err := c.Bind(&incoming); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid preferences payload")
	}

	incoming.ID = datastore.PreferencesID
	incoming.IsProUser = current.IsProUser
	incoming.CreatedAt = current.CreatedAt

	if err := s.ds.SavePreferences(&incoming); err != nil {
		apiLogger.Error("failed to save preferences", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to save preferences")
	}
	return c.JSON(http.StatusOK, incoming)
}
