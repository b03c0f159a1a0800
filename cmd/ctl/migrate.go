package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"freelancehub/internal/storage/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the PostgreSQL schema",
	Long: `Create every table the service needs. The schema is idempotent, so
running it against an up-to-date database changes nothing.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pool, err := openDB()
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := postgres.New(pool, log).Migrate(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "schema applied")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
