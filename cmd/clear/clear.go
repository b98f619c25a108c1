// Package clear implements the cache clear command.
package clear

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raceday/raceday-go/internal/conf"
	"github.com/raceday/raceday-go/internal/datastore"
)

// Command creates the clear command
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete all cached races and circuits",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClear(settings)
		},
	}
}

func runClear(settings *conf.Settings) error {
	ds := datastore.New(settings)
	if ds == nil {
		return fmt.Errorf("no store backend enabled in configuration")
	}
	if err := ds.Open(); err != nil {
		return fmt.Errorf("failed to open local store: %w", err)
	}
	defer func() { _ = ds.Close() }()

	if err := ds.Clear(); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	fmt.Println("local cache cleared")
	return nil
}
