package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/riders-api/riders/config"
)

var version = "dev"

var configFiles []string

var rootCmd = &cobra.Command{
	Version: version,
	Use:     "riders",
	Short:   "Backend-for-frontend for the Riders apps",
	Long: `Riders serves the storage API of the Riders apps and bundles the
helpers it is built on: a memoizing cache, an AMQP queue client and a
concurrent HTTP client.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFiles, cmd.Flags())
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		setupLogging(cfg)
		cmd.SetContext(config.WithContext(cmd.Context(), cfg))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringSliceVar(&configFiles, "config", nil, "config file path, repeatable (default: ./config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error (env: RIDERS_LOG_LEVEL)")
	rootCmd.PersistentFlags().String("cache-backend", "", "cache backend: redis, sqlite, postgres (env: RIDERS_CACHE_BACKEND)")
	rootCmd.PersistentFlags().String("db-type", "", "SQL cache type: sqlite, postgres (env: RIDERS_DATABASE_TYPE)")
	rootCmd.PersistentFlags().String("db-dsn", "", "SQL cache connection string (env: DATABASE_URL)")
	rootCmd.PersistentFlags().String("redis-host", "", "redis host (env: REDIS_HOST)")
	rootCmd.PersistentFlags().Int("redis-port", 0, "redis port (env: REDIS_PORT)")
	rootCmd.PersistentFlags().String("amqp-url", "", "broker URL (env: AMQP_URL)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
