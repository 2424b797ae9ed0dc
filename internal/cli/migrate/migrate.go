// Package migrate applies the embedded schema to the server database
package migrate

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"booktrack/pkg/config"
	"booktrack/pkg/database"
)

var (
	serverConfig string
	dryRun       bool
)

var MigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Long:  "Apply pending SQL migrations to the database named in the server config",
	RunE: func(cmd *cobra.Command, args []string) error {
		if dryRun {
			migrations, err := database.Migrations()
			if err != nil {
				return err
			}
			for _, m := range migrations {
				fmt.Println(m.Version)
			}
			return nil
		}

		cfg, err := config.Load(serverConfig)
		if err != nil {
			return err
		}

		db, err := database.NewDB(cfg.DatabaseConfig())
		if err != nil {
			return err
		}
		defer db.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		applied, err := db.Migrate(ctx)
		for _, v := range applied {
			fmt.Printf("✓ applied %s\n", v)
		}
		if err != nil {
			return err
		}
		if len(applied) == 0 {
			fmt.Println("Database is up to date")
		}
		return nil
	},
}

func init() {
	MigrateCmd.Flags().StringVar(&serverConfig, "server-config", "configs/development.yaml", "server config file")
	MigrateCmd.Flags().BoolVar(&dryRun, "list", false, "list embedded migrations without applying")
}
