package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"booktrack/internal/cli/session"
)

var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration commands",
	Long:  "View and manage CLI configuration",
}

var setCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set a configuration value",
	Long:  "Set server.url, grpc.addr, user.token or user.id and save the config file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := session.Set(args[0], args[1]); err != nil {
			return err
		}
		if err := session.Save(); err != nil {
			return err
		}
		fmt.Printf("✓ %s saved to %s\n", args[0], session.Path())
		return nil
	},
}

func init() {
	ConfigCmd.AddCommand(setCmd)
}
