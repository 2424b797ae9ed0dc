package plan

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"booktrack/internal/cli/session"
	"booktrack/pkg/utils"
)

var previewFlags planFlags

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Preview a reading schedule",
	Long:  "Compute a reading schedule for a book without saving it",
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := previewFlags.request()
		if err != nil {
			return err
		}
		client, err := session.API()
		if err != nil {
			return err
		}

		ctx, cancel := utils.WithLongTimeout(context.Background())
		defer cancel()

		preview, err := client.PreviewPlan(ctx, req)
		if err != nil {
			return fmt.Errorf("failed to preview plan: %w", err)
		}

		if preview.Book != nil {
			fmt.Printf("\n%s (%s)\n", preview.Book.Title, preview.Book.Author)
			fmt.Printf("  Pages: %d\n", preview.Book.TotalPages)
		}
		fmt.Printf("  Difficulty: %s\n", preview.Tier)
		if preview.IsFreePlan {
			fmt.Println("  Free plan: no schedule")
			return nil
		}
		fmt.Printf("  Period: %s ~ %s (%d reading days)\n",
			formatDate(preview.StartDate), formatDate(preview.EndDate), len(preview.ReadingDates))
		fmt.Printf("  Daily: %d pages, about %d minutes\n", preview.DailyPages, preview.DailyMinutes)
		if preview.TooLong {
			fmt.Println("  Warning: the daily reading time is over 90 minutes")
		}
		return nil
	},
}

func init() {
	previewFlags.register(previewCmd)
	PlanCmd.AddCommand(previewCmd)
}
