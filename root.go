package main

import (
	"github.com/spf13/cobra"

	"taskhub/config"
	"taskhub/utils"
)

func init() {
	RootCmd.AddCommand(&ServeCommand, &MigrateCommand, &SeedCommand)
}

var RootCmd = cobra.Command{
	Use:   "taskhub",
	Short: "Role based team, project and task management",
	Long:  "Role based team, project and task management",
	// Without a subcommand the server is started.
	RunE: func(cmd *cobra.Command, args []string) error {
		return ServeCommand.RunE(cmd, args)
	},
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadConfig(); err != nil {
			return err
		}
		utils.SetupLogger(config.AppConfig.Environment, config.AppConfig.LogLevel)
		return nil
	},
}

var MigrateCommand = cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database tables",
	Long:  "Create or update the database tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.ConnectDB(); err != nil {
			return err
		}
		return config.MigrateDB()
	},
}
