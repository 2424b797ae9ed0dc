package plan

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"booktrack/pkg/models"
)

var PlanCmd = &cobra.Command{
	Use:   "plan",
	Short: "Manage reading plans",
	Long:  "Preview, create and list reading plans",
}

// planFlags are shared by preview and create
type planFlags struct {
	isbn            string
	start           string
	days            int
	excludeDates    []string
	excludeWeekdays []int
	free            bool
	recommended     bool
	recommendedDays int
}

func (f *planFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.isbn, "isbn", "", "ISBN of the book (required)")
	cmd.Flags().StringVar(&f.start, "start", "", "start date, YYYY-MM-DD")
	cmd.Flags().IntVar(&f.days, "days", 0, "plan length in days")
	cmd.Flags().StringSliceVar(&f.excludeDates, "exclude-date", nil, "dates to skip, YYYY-MM-DD")
	cmd.Flags().IntSliceVar(&f.excludeWeekdays, "exclude-weekday", nil, "weekdays to skip, 0=Sunday")
	cmd.Flags().BoolVar(&f.free, "free", false, "free plan without a schedule")
	cmd.Flags().BoolVar(&f.recommended, "recommended", false, "use the recommended period")
	cmd.Flags().IntVar(&f.recommendedDays, "recommended-days", 0, "recommended period in days")
	cmd.MarkFlagRequired("isbn")
}

func (f *planFlags) request() (models.PlanRequest, error) {
	req := models.PlanRequest{
		ISBN:                  f.isbn,
		PeriodDays:            f.days,
		ExcludeWeekdays:       f.excludeWeekdays,
		IsFreePlan:            f.free,
		UseRecommendedPlan:    f.recommended,
		RecommendedPeriodDays: f.recommendedDays,
	}
	if f.start != "" {
		d, err := models.ParseDate(f.start)
		if err != nil {
			return req, fmt.Errorf("invalid --start: %w", err)
		}
		req.StartDate = d
	}
	for _, s := range f.excludeDates {
		d, err := models.ParseDate(strings.TrimSpace(s))
		if err != nil {
			return req, fmt.Errorf("invalid --exclude-date %q: %w", s, err)
		}
		req.ExcludeDates = append(req.ExcludeDates, d)
	}
	return req, nil
}

func formatDate(d *models.Date) string {
	if d == nil {
		return "-"
	}
	return d.String()
}
