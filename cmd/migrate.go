package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/koopa0/ragboletin/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(*cobra.Command, []string) error {
		cfg, logger, err := loadEnv()
		if err != nil {
			return err
		}
		if err := db.Migrate(cfg.PostgresURL(), logger); err != nil {
			return err
		}
		fmt.Println("Schema up to date")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
