package badge

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"booktrack/internal/cli/session"
	"booktrack/pkg/utils"
)

var BadgeCmd = &cobra.Command{
	Use:   "badge",
	Short: "Achievement badges",
}

var mine bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List badges and whether you hold them",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := session.API()
		if err != nil {
			return err
		}

		ctx, cancel := utils.WithTimeout(context.Background())
		defer cancel()

		badges, err := client.Badges(ctx, mine)
		if err != nil {
			return fmt.Errorf("failed to list badges: %w", err)
		}

		acquired := 0
		for _, b := range badges {
			mark := "  "
			if b.Acquired {
				mark = "✓ "
				acquired++
			}
			line := fmt.Sprintf("%s%-24s %-18s goal %d", mark, b.Name, b.Type, b.Goal)
			if b.AcquiredAt != nil {
				line += "  (" + utils.TimeAgo(*b.AcquiredAt) + ")"
			}
			fmt.Println(line)
		}
		fmt.Printf("\n%d/%d acquired\n", acquired, len(badges))
		return nil
	},
}

func init() {
	listCmd.Flags().BoolVar(&mine, "mine", false, "only badges you hold")
	BadgeCmd.AddCommand(listCmd)
}
