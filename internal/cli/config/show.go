package config

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"booktrack/internal/cli/session"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  "Display current booktrack CLI configuration and connection settings",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("booktrack Configuration:")
		fmt.Println("")
		fmt.Printf("File: %s\n", session.Path())
		fmt.Printf("Server:\n")
		fmt.Printf("  REST: %s\n", viper.GetString("server.url"))
		fmt.Printf("  gRPC: %s\n", viper.GetString("grpc.addr"))
		fmt.Println("")

		token := viper.GetString("user.token")
		fmt.Printf("User:\n")
		if id := viper.GetString("user.id"); id != "" {
			fmt.Printf("  ID: %s\n", id)
		}
		if token == "" {
			fmt.Printf("  Status: ✗ No token\n")
			fmt.Printf("  Run 'booktrack config set user.token <token>' to authenticate\n")
			return
		}
		if len(token) > 20 {
			fmt.Printf("  Token: %s...\n", token[:20])
		} else {
			fmt.Printf("  Token: %s\n", token)
		}
		fmt.Printf("  Status: ✓ Token set\n")
	},
}

func init() {
	ConfigCmd.AddCommand(showCmd)
}
