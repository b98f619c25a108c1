// Package serve implements the serve command: background schedule sync plus
// the presentation-host HTTP API.
package serve

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/raceday/raceday-go/internal/api"
	"github.com/raceday/raceday-go/internal/conf"
	"github.com/raceday/raceday-go/internal/countdown"
	"github.com/raceday/raceday-go/internal/datastore"
	"github.com/raceday/raceday-go/internal/jolpica"
	"github.com/raceday/raceday-go/internal/metrics"
	"github.com/raceday/raceday-go/internal/schedule"
	"github.com/raceday/raceday-go/internal/timeline"
)

// Command creates the serve command
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the sync service and HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(settings)
		},
	}
	cmd.Flags().StringVar(&settings.WebServer.Port, "port", settings.WebServer.Port, "Port for the HTTP API")
	return cmd
}

func runServe(settings *conf.Settings) error {
	ds := datastore.New(settings)
	if ds == nil {
		return fmt.Errorf("no store backend enabled in configuration")
	}
	if err := ds.Open(); err != nil {
		return fmt.Errorf("failed to open local store: %w", err)
	}
	defer func() { _ = ds.Close() }()

	m := metrics.New()

	client, err := jolpica.NewClient(jolpica.Config{
		BaseURL:   settings.Schedule.BaseURL,
		Timeout:   time.Duration(settings.Schedule.Timeout) * time.Second,
		UserAgent: settings.Schedule.UserAgent,
		RateLimit: settings.Schedule.RateLimit,
		CacheTTL:  time.Duration(settings.Schedule.CacheTTL) * time.Minute,
	}, m)
	if err != nil {
		return fmt.Errorf("failed to create schedule API client: %w", err)
	}
	defer client.Close()

	service := schedule.NewService(settings, client, ds, m)

	// Warm the in-memory cache from the store before the first network fetch
	if _, err := service.GetCachedRaces(settings.Schedule.Season); err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not warm cache from store: %v\n", err)
	}

	calc := countdown.New(time.Duration(settings.Timeline.LiveWindowMinutes) * time.Minute)
	provider := timeline.NewProvider(service, calc, time.Duration(settings.Timeline.PerMinuteWindowDays)*24*time.Hour)

	stopChan := make(chan struct{})
	go service.StartPolling(stopChan)

	server := api.New(settings, service, provider, ds, m)
	serverErr := make(chan error, 1)
	if settings.WebServer.Enabled {
		go func() {
			serverErr <- server.Start()
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-quit:
		fmt.Printf("received %s, shutting down\n", sig)
	case err := <-serverErr:
		close(stopChan)
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	close(stopChan)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if settings.WebServer.Enabled {
		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("error during shutdown: %w", err)
		}
	}
	return nil
}
