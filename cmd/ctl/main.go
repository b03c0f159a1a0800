// Command ctl is the freelancehub admin CLI.
package main

import (
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"freelancehub/config"
	"freelancehub/pkg/db"
	"freelancehub/pkg/logger"
)

var (
	cfg *config.Config
	log *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "ctl",
	Short:         "freelancehub admin tasks",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.LoadFrom(configEnv, configDir)
		if err != nil {
			return err
		}
		cfg = loaded
		log = logger.New(cfg.Log)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
}

var (
	configEnv string
	configDir string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configEnv, "env", os.Getenv("CONFIG_ENV"), "config environment (base.yaml is always loaded)")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "config", "directory holding base.yaml")
}

// openDB connects to the configured PostgreSQL database.
func openDB() (*pgxpool.Pool, error) {
	pool, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return pool, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
