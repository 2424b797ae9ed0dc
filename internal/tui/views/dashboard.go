package views

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"booktrack/internal/tui/components"
	"booktrack/internal/tui/styles"
	"booktrack/pkg/models"
	"booktrack/pkg/utils"
)

// DataSource is the slice of the REST API the dashboard reads.
// *apiclient.Client implements it.
type DataSource interface {
	TodayPlans(ctx context.Context) ([]models.PlanSummary, error)
	Leaderboard(ctx context.Context, metric models.RankingMetric, scope models.RankingScope) ([]models.RankingEntry, error)
	MyRanking(ctx context.Context, metric models.RankingMetric, scope models.RankingScope) (*models.MyRanking, error)
}

const (
	panelPlans = iota
	panelBoard
)

var metrics = []models.RankingMetric{models.MetricTime, models.MetricCount, models.MetricBadge}

// DashboardModel shows today's plans next to the leaderboard
type DashboardModel struct {
	source  DataSource
	refresh time.Duration

	// Data
	summaries []models.PlanSummary
	plans     table.Model
	board     table.Model
	mine      *models.MyRanking
	metric    models.RankingMetric
	scope     models.RankingScope
	updated   time.Time

	// State
	focus   int
	loading bool
	spinner components.Spinner
	err     error

	// Window size
	width  int
	height int
}

// Messages

// PlansLoadedMsg carries today's plans
type PlansLoadedMsg struct {
	Plans []models.PlanSummary
}

// LeaderboardLoadedMsg carries a leaderboard and the caller's standing
type LeaderboardLoadedMsg struct {
	Metric  models.RankingMetric
	Scope   models.RankingScope
	Entries []models.RankingEntry
	Mine    *models.MyRanking
}

// DashboardErrorMsg reports a failed load
type DashboardErrorMsg struct {
	Err error
}

type refreshMsg struct{}

// NewDashboardModel creates a new dashboard model
func NewDashboardModel(source DataSource, metric models.RankingMetric, scope models.RankingScope, refresh time.Duration) DashboardModel {
	plans := table.New(
		table.WithColumns(planColumns(60)),
		table.WithFocused(true),
		table.WithHeight(8),
	)
	plans.SetStyles(styles.TableStyles(true))

	board := table.New(
		table.WithColumns(boardColumns(50)),
		table.WithHeight(8),
	)
	board.SetStyles(styles.TableStyles(false))

	return DashboardModel{
		source:  source,
		refresh: refresh,
		plans:   plans,
		board:   board,
		metric:  metric,
		scope:   scope,
		loading: true,
		spinner: components.NewSpinner("Loading..."),
	}
}

func planColumns(width int) []table.Column {
	title := width - 6 - 12 - 25 - 8
	if title < 10 {
		title = 10
	}
	return []table.Column{
		{Title: "ID", Width: 6},
		{Title: "Title", Width: title},
		{Title: "Progress", Width: 12},
		{Title: "Period", Width: 25},
	}
}

func boardColumns(width int) []table.Column {
	name := width - 4 - 5 - 12 - 8
	if name < 8 {
		name = 8
	}
	return []table.Column{
		{Title: "#", Width: 4},
		{Title: "Reader", Width: name},
		{Title: "Lv", Width: 5},
		{Title: "Value", Width: 12},
	}
}

// Init initializes and loads data
func (m DashboardModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.loadPlans(), m.loadLeaderboard(), m.scheduleRefresh())
}

// Resize fits both tables side by side in width x height
func (m *DashboardModel) Resize(width, height int) {
	m.width = width
	m.height = height

	half := (width - 8) / 2
	if half < 30 {
		half = 30
	}
	rows := height - 14
	if rows < 3 {
		rows = 3
	}

	m.plans.SetColumns(planColumns(half))
	m.plans.SetWidth(half)
	m.plans.SetHeight(rows)
	m.board.SetColumns(boardColumns(half))
	m.board.SetWidth(half)
	m.board.SetHeight(rows)
}

// Update handles messages
func (m DashboardModel) Update(msg tea.Msg) (DashboardModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, key.NewBinding(key.WithKeys("tab"))):
			m.setFocus((m.focus + 1) % 2)
			return m, nil

		case key.Matches(msg, key.NewBinding(key.WithKeys("r"))):
			m.loading = true
			return m, tea.Batch(m.spinner.Tick, m.loadPlans(), m.loadLeaderboard())

		case key.Matches(msg, key.NewBinding(key.WithKeys("m"))):
			m.metric = nextMetric(m.metric)
			m.loading = true
			return m, tea.Batch(m.spinner.Tick, m.loadLeaderboard())

		case key.Matches(msg, key.NewBinding(key.WithKeys("s"))):
			if m.scope == models.ScopeMonth {
				m.scope = models.ScopeYear
			} else {
				m.scope = models.ScopeMonth
			}
			m.loading = true
			return m, tea.Batch(m.spinner.Tick, m.loadLeaderboard())
		}

		var cmd tea.Cmd
		if m.focus == panelPlans {
			m.plans, cmd = m.plans.Update(msg)
		} else {
			m.board, cmd = m.board.Update(msg)
		}
		return m, cmd

	case refreshMsg:
		return m, tea.Batch(m.loadPlans(), m.loadLeaderboard(), m.scheduleRefresh())

	case PlansLoadedMsg:
		m.loading = false
		m.err = nil
		m.updated = time.Now()
		m.summaries = msg.Plans
		m.plans.SetRows(planRows(msg.Plans))
		return m, nil

	case LeaderboardLoadedMsg:
		// a late answer for a metric the user has moved away from
		if msg.Metric != m.metric || msg.Scope != m.scope {
			return m, nil
		}
		m.loading = false
		m.err = nil
		m.updated = time.Now()
		m.mine = msg.Mine
		m.board.SetRows(boardRows(msg.Entries))
		return m, nil

	case DashboardErrorMsg:
		m.loading = false
		m.err = msg.Err
		return m, nil
	}

	if m.loading {
		cmd := m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *DashboardModel) setFocus(panel int) {
	m.focus = panel
	if panel == panelPlans {
		m.plans.Focus()
		m.board.Blur()
	} else {
		m.board.Focus()
		m.plans.Blur()
	}
	m.plans.SetStyles(styles.TableStyles(panel == panelPlans))
	m.board.SetStyles(styles.TableStyles(panel == panelBoard))
}

func nextMetric(current models.RankingMetric) models.RankingMetric {
	for i, metric := range metrics {
		if metric == current {
			return metrics[(i+1)%len(metrics)]
		}
	}
	return metrics[0]
}

func planRows(plans []models.PlanSummary) []table.Row {
	rows := make([]table.Row, 0, len(plans))
	for _, p := range plans {
		period := "free"
		if !p.IsFreePlan && p.StartDate != nil && p.EndDate != nil {
			period = p.StartDate.String() + " ~ " + p.EndDate.String()
		}
		rows = append(rows, table.Row{
			fmt.Sprint(p.PlanID),
			p.Title,
			fmt.Sprintf("%d/%d %d%%", p.CurrentPage, p.TotalPages, models.ProgressRate(p.CurrentPage, p.TotalPages)),
			period,
		})
	}
	return rows
}

func boardRows(entries []models.RankingEntry) []table.Row {
	rows := make([]table.Row, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, table.Row{
			fmt.Sprint(e.Rank),
			e.Nickname,
			fmt.Sprint(e.Level),
			e.Value,
		})
	}
	return rows
}

// View renders the dashboard
func (m DashboardModel) View() string {
	var b strings.Builder

	b.WriteString(styles.TitleStyle.Render("📚 booktrack"))
	if !m.updated.IsZero() {
		b.WriteString(styles.HelpStyle.Render("  updated " + utils.FormatTimestamp(m.updated)))
	}
	b.WriteString("\n\n")

	plansPanel, boardPanel := styles.PanelStyle, styles.PanelStyle
	if m.focus == panelPlans {
		plansPanel = styles.PanelActiveStyle
	} else {
		boardPanel = styles.PanelActiveStyle
	}

	left := styles.SubtitleStyle.Render("Today's reading") + "\n" + m.plans.View() + "\n" + m.selectedProgress()
	right := m.metricTabs() + styles.SubtitleStyle.Render(" · this "+string(m.scope)) + "\n" +
		m.board.View() + "\n" + m.mineLine()

	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, plansPanel.Render(left), " ", boardPanel.Render(right)))
	b.WriteString("\n")

	switch {
	case m.loading:
		b.WriteString(m.spinner.View())
	case m.err != nil:
		b.WriteString(styles.ErrorStyle.Render("Error: " + m.err.Error()))
	}
	return b.String()
}

// metricTabs renders one tab per leaderboard metric, the shown one active
func (m DashboardModel) metricTabs() string {
	tabs := make([]string, 0, len(metrics))
	for _, metric := range metrics {
		style := styles.TabStyle
		if metric == m.metric {
			style = styles.TabActiveStyle
		}
		tabs = append(tabs, style.Render(string(metric)))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

// selectedProgress draws a bar for the plan under the cursor
func (m DashboardModel) selectedProgress() string {
	i := m.plans.Cursor()
	if i < 0 || i >= len(m.summaries) {
		return ""
	}
	p := m.summaries[i]
	return styles.Truncate(p.Title, 24) + " " + styles.RenderProgressBar(p.CurrentPage, p.TotalPages, 20)
}

func (m DashboardModel) mineLine() string {
	if m.mine == nil {
		return ""
	}
	if m.mine.Rank < 0 {
		return styles.HelpStyle.Render("You have no activity in this window yet")
	}
	return styles.SuccessStyle.Render(fmt.Sprintf("You: #%d of %d · %s · top %.1f%%",
		m.mine.Rank, m.mine.Total, m.mine.Value, m.mine.Percentile))
}

// Commands

func (m DashboardModel) scheduleRefresh() tea.Cmd {
	if m.refresh <= 0 {
		return nil
	}
	return tea.Tick(m.refresh, func(time.Time) tea.Msg { return refreshMsg{} })
}

func (m DashboardModel) loadPlans() tea.Cmd {
	source := m.source
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		plans, err := source.TodayPlans(ctx)
		if err != nil {
			return DashboardErrorMsg{Err: err}
		}
		return PlansLoadedMsg{Plans: plans}
	}
}

func (m DashboardModel) loadLeaderboard() tea.Cmd {
	source, metric, scope := m.source, m.metric, m.scope
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		entries, err := source.Leaderboard(ctx, metric, scope)
		if err != nil {
			return DashboardErrorMsg{Err: err}
		}
		mine, err := source.MyRanking(ctx, metric, scope)
		if err != nil {
			return DashboardErrorMsg{Err: err}
		}
		return LeaderboardLoadedMsg{Metric: metric, Scope: scope, Entries: entries, Mine: mine}
	}
}
