package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/PratikDhanave/next-action-service/internal/config"
	"github.com/PratikDhanave/next-action-service/internal/logging"
	"github.com/PratikDhanave/next-action-service/internal/store"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "nextmove",
	Short: "Track user actions and predict the next one",
	Long: `nextmove - per-user action tracking with next-action prediction
  - serve     run the HTTP API
  - migrate   apply database migrations
  - track     record one action from the command line
  - predict   show the ranked next actions for a user`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(trackCmd)
	rootCmd.AddCommand(predictCmd)
}

// loadConfig reads config and sets up logging from it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	return cfg, nil
}

// openStore loads config and opens the configured store.
func openStore(ctx context.Context) (*config.Config, store.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	st, err := store.Open(ctx, cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return cfg, st, nil
}
