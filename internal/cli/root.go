package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mindfold/coalesce/internal/config"
	"github.com/mindfold/coalesce/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "coalesce",
	Short: "Semantic convergence engine for concept graphs",
	Long:  "Coalesce compresses a growing concept graph toward stable invariants and reports its structural health. Single Go binary, SQLite storage.",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(convergeCmd)
	rootCmd.AddCommand(metricsCmd)
	rootCmd.AddCommand(forecastCmd)
	rootCmd.AddCommand(statusCmd)
}

// loadConfig reads the config file from the default location, falling back
// to defaults when it does not exist.
func loadConfig() (config.Config, error) {
	path, err := config.DefaultPath()
	if err != nil {
		return config.Default(), nil
	}
	return config.Load(path)
}

// openStore opens the configured database, resolving the default path when
// none is set.
func openStore(cfg config.Config) (*store.DB, error) {
	path := cfg.Database.Path
	if path == "" {
		var err error
		path, err = store.DefaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("resolve db path: %w", err)
		}
	}
	db, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}
