// Package tui provides a terminal dashboard over the stored map snapshots.
package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/user/netmap/internal/daemon"
	"github.com/user/netmap/internal/storage"
	"github.com/user/netmap/internal/util"
)

// RefreshInterval is how often the dashboard reloads from the database.
const RefreshInterval = 10 * time.Second

// App is the main TUI application.
type App struct {
	db     *storage.DB
	config *util.Config
}

// NewApp creates a new TUI application.
func NewApp(db *storage.DB, cfg *util.Config) *App {
	return &App{
		db:     db,
		config: cfg,
	}
}

// Run starts the TUI application.
func (a *App) Run() error {
	p := tea.NewProgram(newModel(a.db, a.config), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

type keyMap struct {
	Up     key.Binding
	Down   key.Binding
	Reload key.Binding
	Quit   key.Binding
}

var keys = keyMap{
	Up:     key.NewBinding(key.WithKeys("up", "k")),
	Down:   key.NewBinding(key.WithKeys("down", "j")),
	Reload: key.NewBinding(key.WithKeys("r")),
	Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c", "esc")),
}

// appModel is the main bubbletea model.
type appModel struct {
	db        *storage.DB
	config    *util.Config
	dashboard *Dashboard
	spinner   spinner.Model
	ready     bool
	width     int
	height    int
	err       error
}

func newModel(db *storage.DB, cfg *util.Config) appModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(Primary)

	return appModel{
		db:      db,
		config:  cfg,
		spinner: s,
	}
}

// Init initializes the model.
func (m appModel) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		loadData(m.db, m.config.DataDir),
		tick(),
	)
}

// Update handles messages.
func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Reload):
			return m, loadData(m.db, m.config.DataDir)
		case key.Matches(msg, keys.Up):
			if m.dashboard != nil {
				m.dashboard.Move(-1)
			}
		case key.Matches(msg, keys.Down):
			if m.dashboard != nil {
				m.dashboard.Move(1)
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.dashboard != nil {
			m.dashboard.SetSize(msg.Width, msg.Height)
		}

	case tickMsg:
		return m, tea.Batch(loadData(m.db, m.config.DataDir), tick())

	case dataMsg:
		m.ready = true
		m.err = nil
		if m.dashboard == nil {
			m.dashboard = NewDashboard(msg.Data, m.width, m.height)
		} else {
			m.dashboard.SetData(msg.Data)
		}

	case errMsg:
		m.err = msg.err

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the UI.
func (m appModel) View() string {
	if m.err != nil {
		return ErrorStyle.Render("Error: " + m.err.Error())
	}

	if !m.ready {
		return LoadingStyle.Render(m.spinner.View() + " Loading...")
	}

	return m.dashboard.View()
}

// Messages
type dataMsg struct {
	Data *DashboardData
}

type errMsg struct {
	err error
}

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(RefreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func loadData(db *storage.DB, dataDir string) tea.Cmd {
	return func() tea.Msg {
		data, err := fetchDashboardData(db, dataDir)
		if err != nil {
			return errMsg{err}
		}
		return dataMsg{Data: data}
	}
}

func fetchDashboardData(db *storage.DB, dataDir string) (*DashboardData, error) {
	snaps, err := storage.NewSnapshotStorage(db).LatestPerEntry()
	if err != nil {
		return nil, err
	}

	data := &DashboardData{}
	if running, pid := daemon.CheckRunning(dataDir); running {
		data.DaemonPID = pid
	}

	states := map[string]daemon.EntryStatus{}
	if sf, err := daemon.ReadStatusFile(dataDir); err == nil && data.DaemonPID != 0 {
		for _, e := range sf.Entries {
			states[e.ID] = e
		}
	}

	for _, s := range snaps {
		info := EntryInfo{Snapshot: s}
		if st, ok := states[s.EntryID]; ok {
			info.State = st.State
			info.LastError = st.LastError
		}
		data.Entries = append(data.Entries, info)
	}

	return data, nil
}
