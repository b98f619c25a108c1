// Package fetch implements the one-shot fetch command.
package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/raceday/raceday-go/internal/conf"
	"github.com/raceday/raceday-go/internal/datastore"
	"github.com/raceday/raceday-go/internal/errors"
	"github.com/raceday/raceday-go/internal/jolpica"
	"github.com/raceday/raceday-go/internal/schedule"
)

// Command creates the fetch command
func Command(settings *conf.Settings) *cobra.Command {
	var season string

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch the race calendar and update the local cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(cmd.Context(), settings, season)
		},
	}
	cmd.Flags().StringVar(&season, "season", settings.Schedule.Season, "Season year to fetch, empty for the current season")
	return cmd
}

func runFetch(ctx context.Context, settings *conf.Settings, season string) error {
	ds := datastore.New(settings)
	if ds == nil {
		return fmt.Errorf("no store backend enabled in configuration")
	}
	if err := ds.Open(); err != nil {
		return fmt.Errorf("failed to open local store: %w", err)
	}
	defer func() { _ = ds.Close() }()

	client, err := jolpica.NewClient(jolpica.Config{
		BaseURL:   settings.Schedule.BaseURL,
		Timeout:   time.Duration(settings.Schedule.Timeout) * time.Second,
		UserAgent: settings.Schedule.UserAgent,
		RateLimit: settings.Schedule.RateLimit,
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to create schedule API client: %w", err)
	}
	defer client.Close()

	service := schedule.NewService(settings, client, ds, nil)

	races, err := service.FetchAndCacheRaces(ctx, season)
	if err != nil {
		if errors.Is(err, schedule.ErrNetworkUnavailable) {
			cached, cacheErr := service.GetCachedRaces(season)
			if cacheErr == nil && len(cached) > 0 {
				fmt.Printf("network unavailable, %d cached races remain available\n", len(cached))
				return nil
			}
		}
		return err
	}

	fmt.Printf("fetched %d races\n", len(races))
	for i := range races {
		when := "unscheduled"
		if t, ok := races[i].RaceDateTime(); ok {
			when = t.Format("2006-01-02 15:04 MST")
		}
		fmt.Printf("  %-8s round %-3s %-35s %s\n", races[i].Season, races[i].Round, races[i].Name, when)
	}
	return nil
}
