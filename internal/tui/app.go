// Package tui is a read-only terminal dashboard: today's reading plans and
// the leaderboard.
package tui

import (
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"booktrack/internal/apiclient"
	"booktrack/internal/tui/config"
	"booktrack/internal/tui/styles"
	"booktrack/internal/tui/views"
	"booktrack/pkg/models"
)

// Model is the root Bubble Tea model
type Model struct {
	config *config.Config
	keys   KeyMap
	help   help.Model

	dashboard views.DashboardModel

	width  int
	height int
}

// New creates a new TUI application over the REST API
func New(cfg *config.Config) *Model {
	return NewWithSource(cfg, apiclient.NewClient(strings.TrimRight(cfg.Server.URL, "/"), cfg.User.Token))
}

// NewWithSource creates the application over any data source
func NewWithSource(cfg *config.Config, source views.DataSource) *Model {
	metric, err := models.ParseMetric(cfg.UI.Metric)
	if err != nil {
		metric = models.MetricTime
	}
	scope, err := models.ParseScope(cfg.UI.Scope)
	if err != nil {
		scope = models.ScopeMonth
	}

	m := &Model{
		config:    cfg,
		keys:      DefaultKeyMap(),
		help:      help.New(),
		dashboard: views.NewDashboardModel(source, metric, scope, cfg.RefreshInterval()),
	}

	// Size the tables before the first WindowSizeMsg arrives
	if w, h, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
		m.width, m.height = w, h
		m.dashboard.Resize(w, h)
	}
	return m
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return m.dashboard.Init()
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.dashboard, cmd = m.dashboard.Update(msg)
	return m, cmd
}

// View renders the UI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	content := m.dashboard.View()
	if m.config.User.Token == "" {
		content += "\n" + styles.WarningStyle.Render("No token set. Run: booktrack config set user.token <token>")
	}

	return styles.AppStyle.Render(content + "\n\n" + m.renderStatusBar())
}

// renderStatusBar renders the bottom status bar
func (m Model) renderStatusBar() string {
	left := styles.StatusBarActiveStyle.Render("● " + m.config.Server.URL)
	return left + styles.StatusBarStyle.Render(m.help.View(m.keys))
}
