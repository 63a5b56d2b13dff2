package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"taskhub/config"
	"taskhub/models"
)

var SeedCommand = cobra.Command{
	Use:   "seed",
	Short: "Insert the demo users, team, project and task",
	Long:  "Insert the demo users, team, project and task. Existing records are left untouched.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.ConnectDB(); err != nil {
			return err
		}
		if err := config.MigrateDB(); err != nil {
			return err
		}
		if err := models.SeedDemoData(config.DB); err != nil {
			return err
		}

		logrus.Info("Demo data seeded: admin@test.com, manager@test.com, employee@test.com (password \"password\")")
		return nil
	},
}
