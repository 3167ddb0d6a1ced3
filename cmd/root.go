// Package cmd implements the command-line interface of the portal API.
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags "-X .../cmd.Version=...".
var Version = "dev"

// cfgFile holds the --config flag. Empty falls back to CONFIG_PATH, then config.yml.
var cfgFile string

// rootCmd serves the API when run without a subcommand.
var rootCmd = &cobra.Command{
	Use:           "ocds-portal",
	Short:         "Open contracting portal API",
	Long:          `Serves the procurement search portal over the OCDS search indices and the release store.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $CONFIG_PATH or ./config.yml)")

	rootCmd.AddCommand(serveCommand())
	rootCmd.AddCommand(migrateCommand())
	rootCmd.AddCommand(exportCommand())
	rootCmd.AddCommand(cacheCommand())
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ocds-portal version %s\n", Version)
		},
	})
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
