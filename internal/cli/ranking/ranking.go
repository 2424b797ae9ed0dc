// Package ranking shows leaderboards over the gRPC ranking service
package ranking

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"booktrack/internal/cli/session"
	"booktrack/pkg/models"
	"booktrack/pkg/utils"
)

var RankingCmd = &cobra.Command{
	Use:   "ranking",
	Short: "Reading leaderboards",
}

var (
	sortBy string
	scope  string
)

func params() (models.RankingMetric, models.RankingScope, error) {
	metric, err := models.ParseMetric(sortBy)
	if err != nil {
		return "", "", err
	}
	sc, err := models.ParseScope(scope)
	if err != nil {
		return "", "", err
	}
	return metric, sc, nil
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the leaderboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		metric, sc, err := params()
		if err != nil {
			return err
		}
		client, err := session.Rankings()
		if err != nil {
			return err
		}
		defer client.Close()

		ctx, cancel := utils.WithTimeout(context.Background())
		defer cancel()

		entries, err := client.Leaderboard(ctx, metric, sc)
		if err != nil {
			return fmt.Errorf("failed to load leaderboard: %w", err)
		}

		fmt.Printf("\nLeaderboard (%s, this %s):\n\n", metric, sc)
		if len(entries) == 0 {
			fmt.Println("No activity yet")
			return nil
		}
		for _, e := range entries {
			fmt.Printf("%3d. %-20s Lv.%-3d %s\n", e.Rank, e.Nickname, e.Level, e.Value)
		}
		return nil
	},
}

var meCmd = &cobra.Command{
	Use:   "me",
	Short: "Show your own rank",
	RunE: func(cmd *cobra.Command, args []string) error {
		metric, sc, err := params()
		if err != nil {
			return err
		}
		client, err := session.Rankings()
		if err != nil {
			return err
		}
		defer client.Close()

		ctx, cancel := utils.WithTimeout(context.Background())
		defer cancel()

		mine, err := client.MyRanking(ctx, metric, sc)
		if err != nil {
			return fmt.Errorf("failed to load ranking: %w", err)
		}

		if mine.Rank < 0 {
			fmt.Printf("No %s activity this %s yet\n", metric, sc)
			return nil
		}
		fmt.Printf("Rank %d of %d (top %.1f%%)\n", mine.Rank, mine.Total, mine.Percentile)
		fmt.Printf("  %s\n", mine.Value)
		return nil
	},
}

func init() {
	RankingCmd.PersistentFlags().StringVar(&sortBy, "sort", string(models.MetricTime), "time, count or badge")
	RankingCmd.PersistentFlags().StringVar(&scope, "scope", string(models.ScopeMonth), "month or year")

	RankingCmd.AddCommand(showCmd)
	RankingCmd.AddCommand(meCmd)
}
