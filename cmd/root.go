package cmd

import (
	"github.com/spf13/cobra"

	"github.com/raceday/raceday-go/cmd/clear"
	"github.com/raceday/raceday-go/cmd/fetch"
	"github.com/raceday/raceday-go/cmd/serve"
	"github.com/raceday/raceday-go/internal/conf"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "raceday",
		Short: "Race calendar sync service",
	}

	setupFlags(rootCmd, settings)

	subcommands := []*cobra.Command{
		serve.Command(settings),
		fetch.Command(settings),
		clear.Command(settings),
	}
	rootCmd.AddCommand(subcommands...)

	return rootCmd
}

// setupFlags configures the global flags for the root command.
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", settings.Debug, "Enable debug output")
}
