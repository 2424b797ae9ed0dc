package plan

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"booktrack/internal/cli/session"
	"booktrack/pkg/models"
	"booktrack/pkg/utils"
)

var (
	listStatus string
	listToday  bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List your reading plans",
	Long:  "List your plans, optionally filtered by status, or only those scheduled today",
	RunE: func(cmd *cobra.Command, args []string) error {
		status := models.PlanStatus(strings.ToUpper(strings.TrimSpace(listStatus)))
		if status != "" && !status.Valid() {
			return fmt.Errorf("invalid --status %q", listStatus)
		}
		client, err := session.API()
		if err != nil {
			return err
		}

		ctx, cancel := utils.WithTimeout(context.Background())
		defer cancel()

		var plans []models.PlanSummary
		if listToday {
			plans, err = client.TodayPlans(ctx)
		} else {
			plans, err = client.ListPlans(ctx, status)
		}
		if err != nil {
			return fmt.Errorf("failed to list plans: %w", err)
		}

		if len(plans) == 0 {
			fmt.Println("No plans found")
			return nil
		}

		fmt.Printf("\nYour Plans (%d):\n\n", len(plans))
		for _, p := range plans {
			fmt.Printf("[%d] %s - %s\n", p.PlanID, p.Title, p.Author)
			fmt.Printf("   Status: %s\n", p.Status)
			if p.TotalPages > 0 {
				fmt.Printf("   Progress: %d/%d pages (%d%%)\n",
					p.CurrentPage, p.TotalPages, models.ProgressRate(p.CurrentPage, p.TotalPages))
			}
			if !p.IsFreePlan {
				fmt.Printf("   Period: %s ~ %s\n", formatDate(p.StartDate), formatDate(p.EndDate))
			}
			fmt.Println()
		}
		return nil
	},
}

func init() {
	listCmd.Flags().StringVar(&listStatus, "status", "", "WISHLIST, READING, COMPLETED or ABANDONED")
	listCmd.Flags().BoolVar(&listToday, "today", false, "only plans scheduled today")
	PlanCmd.AddCommand(listCmd)
}
