package tui

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"booktrack/internal/tui/config"
	"booktrack/internal/tui/views"
	"booktrack/pkg/models"
)

type fakeSource struct {
	calls []models.RankingMetric
}

func (f *fakeSource) TodayPlans(ctx context.Context) ([]models.PlanSummary, error) {
	return []models.PlanSummary{{PlanID: 1, Title: "Dune", CurrentPage: 50, TotalPages: 100}}, nil
}

func (f *fakeSource) Leaderboard(ctx context.Context, metric models.RankingMetric, scope models.RankingScope) ([]models.RankingEntry, error) {
	f.calls = append(f.calls, metric)
	return []models.RankingEntry{{Rank: 1, Nickname: "Ann", Level: 2, Value: "3h 0m"}}, nil
}

func (f *fakeSource) MyRanking(ctx context.Context, metric models.RankingMetric, scope models.RankingScope) (*models.MyRanking, error) {
	return &models.MyRanking{Rank: 4, Total: 9, Value: "1h 0m", Percentile: 44.4}, nil
}

func TestDashboardRendersLoadedData(t *testing.T) {
	cfg := config.Default()
	cfg.UI.RefreshRate = 0
	app := NewWithSource(cfg, &fakeSource{})

	var model tea.Model = *app
	model, _ = model.Update(tea.WindowSizeMsg{Width: 140, Height: 40})
	model, _ = model.Update(views.PlansLoadedMsg{Plans: []models.PlanSummary{{PlanID: 1, Title: "Dune", CurrentPage: 50, TotalPages: 100}}})
	model, _ = model.Update(views.LeaderboardLoadedMsg{
		Metric:  models.MetricTime,
		Scope:   models.ScopeMonth,
		Entries: []models.RankingEntry{{Rank: 1, Nickname: "Ann", Level: 2, Value: "3h 0m"}},
		Mine:    &models.MyRanking{Rank: 4, Total: 9, Value: "1h 0m", Percentile: 44.4},
	})

	out := model.View()
	assert.Contains(t, out, "Dune")
	assert.Contains(t, out, "50/100 50%")
	assert.Contains(t, out, "Ann")
	assert.Contains(t, out, "#4 of 9")
	assert.Contains(t, out, "██████████░░░░░░░░░░")
	for _, metric := range []string{"time", "count", "badge"} {
		assert.Contains(t, out, metric)
	}
}

func TestMetricKeyReloadsLeaderboard(t *testing.T) {
	source := &fakeSource{}
	cfg := config.Default()
	app := NewWithSource(cfg, source)

	var model tea.Model = *app
	model, _ = model.Update(tea.WindowSizeMsg{Width: 140, Height: 40})
	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("m")})
	require.NotNil(t, cmd)

	// run the batch; the leaderboard load is one of its commands
	batch, ok := cmd().(tea.BatchMsg)
	require.True(t, ok)
	for _, c := range batch {
		if c == nil {
			continue
		}
		if msg, ok := c().(views.LeaderboardLoadedMsg); ok {
			assert.Equal(t, models.MetricCount, msg.Metric)
		}
	}
	assert.Equal(t, []models.RankingMetric{models.MetricCount}, source.calls)
}

func TestQuitKey(t *testing.T) {
	app := NewWithSource(config.Default(), &fakeSource{})
	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}
