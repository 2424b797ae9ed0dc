package plan

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"booktrack/internal/cli/session"
	"booktrack/pkg/utils"
)

var createFlags planFlags

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a reading plan",
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := createFlags.request()
		if err != nil {
			return err
		}
		client, err := session.API()
		if err != nil {
			return err
		}

		ctx, cancel := utils.WithLongTimeout(context.Background())
		defer cancel()

		plan, err := client.CreatePlan(ctx, req)
		if err != nil {
			return fmt.Errorf("failed to create plan: %w", err)
		}

		fmt.Printf("✓ Plan %d created (%s)\n", plan.ID, plan.Status)
		if plan.StartDate != nil && plan.EndDate != nil {
			fmt.Printf("  %s ~ %s, %d reading days\n",
				plan.StartDate.Format("2006-01-02"), plan.EndDate.Format("2006-01-02"), len(plan.ReadingDates))
		}
		return nil
	},
}

var abandonCmd = &cobra.Command{
	Use:   "abandon [plan-id]",
	Short: "Abandon a reading plan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var planID int64
		if _, err := fmt.Sscan(args[0], &planID); err != nil {
			return fmt.Errorf("invalid plan id %q", args[0])
		}
		client, err := session.API()
		if err != nil {
			return err
		}

		ctx, cancel := utils.WithTimeout(context.Background())
		defer cancel()

		if err := client.AbandonPlan(ctx, planID); err != nil {
			return fmt.Errorf("failed to abandon plan: %w", err)
		}
		fmt.Printf("✓ Plan %d abandoned\n", planID)
		return nil
	},
}

func init() {
	createFlags.register(createCmd)
	PlanCmd.AddCommand(createCmd)
	PlanCmd.AddCommand(abandonCmd)
}
