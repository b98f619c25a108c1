// Package jolpica provides the client for the Jolpica-F1 (Ergast compatible)
// race schedule API.
package jolpica

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/raceday/raceday-go/internal/errors"
	"github.com/raceday/raceday-go/internal/logging"
	"github.com/raceday/raceday-go/internal/metrics"
)

// Package-level logger specific to the schedule API client
var (
	logger          *slog.Logger
	serviceLevelVar = new(slog.LevelVar) // Dynamic level control
	closeLogger     func() error
)

func init() {
	var err error
	logFilePath := filepath.Join("logs", "jolpica.log")
	serviceLevelVar.Set(slog.LevelInfo)

	logger, closeLogger, err = logging.NewFileLogger(logFilePath, "jolpica", serviceLevelVar)
	if err != nil {
		log.Printf("Failed to initialize jolpica file logger at %s: %v. Falling back to discard logger.", logFilePath, err)
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: serviceLevelVar})
		logger = slog.New(fbHandler).With("service", "jolpica")
		closeLogger = func() error { return nil }
	}
}

const (
	pathSeason  = "%s/%s.json"
	pathCurrent = "%s/current.json"
	pathNext    = "%s/current/next.json"
)

// Client provides methods for fetching race schedules from the upstream API
type Client struct {
	config     Config
	httpClient *http.Client
	cache      *cache.Cache // nil when memoization is disabled
	budget     *RateBudget
	metrics    *metrics.Metrics // optional, nil-safe
}

// NewClient creates a new schedule API client. The metrics argument may be
// nil when no collection is wanted.
func NewClient(config Config, m *metrics.Metrics) (*Client, error) {
	if config.BaseURL == "" {
		config.BaseURL = DefaultConfig().BaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	if config.UserAgent == "" {
		config.UserAgent = DefaultConfig().UserAgent
	}
	if config.RateLimit == 0 {
		config.RateLimit = DefaultConfig().RateLimit
	}
	if config.RateWindow == 0 {
		config.RateWindow = DefaultConfig().RateWindow
	}

	client := &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		budget:  NewRateBudget(config.RateLimit, config.RateWindow),
		metrics: m,
	}
	if config.CacheTTL > 0 {
		client.cache = cache.New(config.CacheTTL, config.CacheTTL*2)
	}

	logger.Info("schedule API client initialized",
		"base_url", config.BaseURL,
		"timeout", config.Timeout,
		"rate_limit", config.RateLimit,
		"rate_window", config.RateWindow,
		"cache_ttl", config.CacheTTL)

	return client, nil
}

// Close cleans up client resources
func (c *Client) Close() {
	logger.Info("closing schedule API client")
	if closeLogger != nil {
		if err := closeLogger(); err != nil {
			log.Printf("Error closing jolpica logger: %v", err)
		}
	}
}

// FetchSeason retrieves the race list for the given season year.
func (c *Client) FetchSeason(ctx context.Context, season string) ([]Race, error) {
	url := fmt.Sprintf(pathSeason, c.config.BaseURL, season)
	return c.fetchRaces(ctx, "season", url)
}

// FetchCurrentSeason retrieves the race list for the season in progress.
func (c *Client) FetchCurrentSeason(ctx context.Context) ([]Race, error) {
	url := fmt.Sprintf(pathCurrent, c.config.BaseURL)
	return c.fetchRaces(ctx, "current", url)
}

// FetchNextRace retrieves the next upcoming race, or nil when the upstream
// reports none (for example between seasons).
func (c *Client) FetchNextRace(ctx context.Context) (*Race, error) {
	url := fmt.Sprintf(pathNext, c.config.BaseURL)
	races, err := c.fetchRaces(ctx, "next", url)
	if err != nil {
		return nil, err
	}
	if len(races) == 0 {
		return nil, nil
	}
	return &races[0], nil
}

// RateBudgetCount returns the number of requests recorded against the
// trailing-window budget.
func (c *Client) RateBudgetCount() int {
	return c.budget.Count()
}

// ResetRateBudget clears the rate budget.
func (c *Client) ResetRateBudget() {
	c.budget.Reset()
	if c.metrics != nil {
		c.metrics.RateBudgetUsed.Set(0)
	}
}

// FlushCache drops all memoized responses.
func (c *Client) FlushCache() {
	if c.cache != nil {
		c.cache.Flush()
	}
}

// fetchRaces is the shared fetch routine: rate budget check, GET, status
// interpretation, envelope decode. The endpoint label is used for logging
// and metrics only.
func (c *Client) fetchRaces(ctx context.Context, endpoint, url string) ([]Race, error) {
	if c.cache != nil {
		if cached, found := c.cache.Get(url); found {
			if races, ok := cached.([]Race); ok {
				if c.metrics != nil {
					c.metrics.CacheHits.WithLabelValues("jolpica").Inc()
				}
				logger.Debug("schedule response cache hit", "endpoint", endpoint, "url", url)
				return races, nil
			}
		}
		if c.metrics != nil {
			c.metrics.CacheMisses.WithLabelValues("jolpica").Inc()
		}
	}

	// Fail fast before touching the network when the budget is spent
	if !c.budget.Allow(time.Now()) {
		logger.Warn("client-side rate budget exhausted",
			"endpoint", endpoint,
			"recorded", c.budget.Count(),
			"limit", c.config.RateLimit)
		if c.metrics != nil {
			c.metrics.APIErrors.WithLabelValues(endpoint, "rate_limit").Inc()
		}
		return nil, errors.New(&RateLimitError{ClientSide: true}).
			Component("jolpica").
			Category(errors.CategoryRateLimit).
			Context("endpoint", endpoint).
			Build()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, errors.New(fmt.Errorf("failed to build request: %w", err)).
			Component("jolpica").
			Category(errors.CategoryValidation).
			Context("endpoint", endpoint).
			Context("url", url).
			Build()
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.config.UserAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Error("schedule API request failed", "endpoint", endpoint, "url", url, "error", err)
		if c.metrics != nil {
			c.metrics.APIErrors.WithLabelValues(endpoint, "network").Inc()
		}
		return nil, errors.New(fmt.Errorf("HTTP request failed: %w", err)).
			Component("jolpica").
			Category(errors.CategoryNetwork).
			Context("endpoint", endpoint).
			Context("url", url).
			Build()
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Debug("failed to close response body", "error", err)
		}
	}()

	// The call went out, count it whatever the status was
	c.budget.Record(time.Now())
	if c.metrics != nil {
		c.metrics.RateBudgetUsed.Set(float64(c.budget.Count()))
		c.metrics.APIRequests.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()
		c.metrics.APIDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		logger.Warn("schedule API rate limited",
			"endpoint", endpoint,
			"retry_after_s", retryAfter)
		if c.metrics != nil {
			c.metrics.APIErrors.WithLabelValues(endpoint, "rate_limit").Inc()
		}
		return nil, errors.New(&RateLimitError{RetryAfter: retryAfter}).
			Component("jolpica").
			Category(errors.CategoryRateLimit).
			Context("endpoint", endpoint).
			Context("retry_after_s", retryAfter).
			Build()
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		logger.Warn("schedule API returned error status",
			"endpoint", endpoint,
			"status_code", resp.StatusCode)
		if c.metrics != nil {
			c.metrics.APIErrors.WithLabelValues(endpoint, "server").Inc()
		}
		return nil, errors.New(&ServerError{StatusCode: resp.StatusCode}).
			Component("jolpica").
			Category(errors.CategoryHTTP).
			Context("endpoint", endpoint).
			Context("status_code", resp.StatusCode).
			Build()
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		if c.metrics != nil {
			c.metrics.APIErrors.WithLabelValues(endpoint, "network").Inc()
		}
		return nil, errors.New(fmt.Errorf("failed to read response body: %w", err)).
			Component("jolpica").
			Category(errors.CategoryNetwork).
			Context("endpoint", endpoint).
			Build()
	}

	var envelope ScheduleResponse
	if err := json.Unmarshal(bodyBytes, &envelope); err != nil {
		logger.Error("failed to decode schedule API response",
			"endpoint", endpoint,
			"response_size", len(bodyBytes),
			"error", err)
		if c.metrics != nil {
			c.metrics.APIErrors.WithLabelValues(endpoint, "decoding").Inc()
		}
		return nil, errors.New(fmt.Errorf("failed to decode response: %w", err)).
			Component("jolpica").
			Category(errors.CategoryDecoding).
			Context("endpoint", endpoint).
			Context("response_size", len(bodyBytes)).
			Build()
	}

	// A missing race table is a valid empty result, not an error
	var races []Race
	if envelope.MRData.RaceTable != nil {
		races = envelope.MRData.RaceTable.Races
	}
	if races == nil {
		races = []Race{}
	}

	logger.Info("schedule API request successful",
		"endpoint", endpoint,
		"races", len(races),
		"duration_ms", time.Since(start).Milliseconds())

	if c.cache != nil {
		c.cache.Set(url, races, cache.DefaultExpiration)
	}
	return races, nil
}

// parseRetryAfter interprets a Retry-After header as integer seconds,
// returning zero when absent or malformed.
func parseRetryAfter(value string) int {
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(value)
	if err != nil || seconds < 0 {
		return 0
	}
	return seconds
}
