package cmd

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"label-resolver/internal/store/sqlite"
)

var (
	dbPath   string
	tenantID string
	verbose  bool
)

var rootCmd = &cobra.Command{
	Use:           "resolvectl",
	Short:         "Resolve spoken or typed orders against a label catalog",
	Long:          "Local tooling for the label resolver: try phrases, import catalogs, bind aliases.",
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "data/label-resolver.db", "SQLite database path")
	rootCmd.PersistentFlags().StringVarP(&tenantID, "tenant", "t", "default", "Tenant ID")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging to stderr")

	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(aliasCmd)
}

func newLogger() zerolog.Logger {
	lvl := zerolog.WarnLevel
	if verbose {
		lvl = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(lvl).With().Timestamp().Logger()
}

func openDB() (*sqlite.Store, error) {
	return sqlite.Open(dbPath)
}
