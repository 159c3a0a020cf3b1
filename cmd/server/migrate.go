package main

import (
	"log/slog"

	"math-tutor-backend/dao"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(); err != nil {
			return err
		}
		if err := initDB(); err != nil {
			return err
		}
		if err := dao.Migrate(dao.DB); err != nil {
			return err
		}
		slog.Info("Database schema is up to date")
		return nil
	},
}
