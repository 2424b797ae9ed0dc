// Package cli is the booktrack command line client
package cli

import (
	"github.com/spf13/cobra"

	"booktrack/internal/cli/badge"
	"booktrack/internal/cli/config"
	"booktrack/internal/cli/migrate"
	"booktrack/internal/cli/plan"
	"booktrack/internal/cli/ranking"
	"booktrack/internal/cli/session"
	"booktrack/internal/cli/timer"
)

var cfgFile string

var RootCmd = &cobra.Command{
	Use:          "booktrack",
	Short:        "Reading plans, timers and rankings from the terminal",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return session.Load(cfgFile)
	},
}

func init() {
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.booktrack.yaml)")

	RootCmd.AddCommand(plan.PlanCmd)
	RootCmd.AddCommand(timer.TimerCmd)
	RootCmd.AddCommand(ranking.RankingCmd)
	RootCmd.AddCommand(badge.BadgeCmd)
	RootCmd.AddCommand(config.ConfigCmd)
	RootCmd.AddCommand(migrate.MigrateCmd)
}

// Execute runs the root command
func Execute() error {
	return RootCmd.Execute()
}
