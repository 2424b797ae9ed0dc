package timer

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"booktrack/internal/cli/session"
	"booktrack/pkg/models"
	"booktrack/pkg/utils"
)

var TimerCmd = &cobra.Command{
	Use:   "timer",
	Short: "Time your reading sessions",
}

var startCmd = &cobra.Command{
	Use:   "start [plan-id]",
	Short: "Start a reading session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		planID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid plan id %q", args[0])
		}
		client, err := session.API()
		if err != nil {
			return err
		}

		ctx, cancel := utils.WithTimeout(context.Background())
		defer cancel()

		rec, err := client.StartTimer(ctx, planID)
		if err != nil {
			return fmt.Errorf("failed to start timer: %w", err)
		}
		fmt.Printf("✓ Timer started for plan %d at %s\n", rec.PlanID, rec.StartTime.Local().Format("15:04"))
		return nil
	},
}

var currentPage int

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running session and record the page you reached",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := session.API()
		if err != nil {
			return err
		}

		ctx, cancel := utils.WithLongTimeout(context.Background())
		defer cancel()

		result, err := client.StopTimer(ctx, currentPage)
		if err != nil {
			return fmt.Errorf("failed to stop timer: %w", err)
		}

		if result.Record != nil {
			fmt.Printf("✓ Session recorded: %s\n", models.FormatClock(int64(result.Record.DurationMinutes)*60))
		}
		fmt.Printf("  Current page: %d\n", result.CurrentPage)
		if result.Completed {
			fmt.Println("  🎉 Book completed!")
		}
		for _, b := range result.NewBadges {
			fmt.Printf("  🏅 New badge: %s\n", b.Name)
		}
		return nil
	},
}

func init() {
	stopCmd.Flags().IntVar(&currentPage, "page", 0, "page you stopped at (required)")
	stopCmd.MarkFlagRequired("page")

	TimerCmd.AddCommand(startCmd)
	TimerCmd.AddCommand(stopCmd)
}
