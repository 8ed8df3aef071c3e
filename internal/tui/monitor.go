package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kelsos/media-scraper/internal/models"
	"github.com/kelsos/media-scraper/internal/services"
)

const maxLogs = 10

type GameStatus struct {
	Game          string
	Stage         services.Stage
	Kind          models.MediaKind
	Progress      float64
	Message       string
	Error         error
	StartTime     time.Time
	CompletedTime time.Time
}

// GameEntry is one row of the monitor. Games are told apart by Path, so two
// files sharing a name still get their own rows.
type GameEntry struct {
	Path string
	Name string
}

func (g GameEntry) key() string {
	return rowKey(g.Path, g.Name)
}

func rowKey(path, name string) string {
	if path != "" {
		return path
	}
	return name
}

type Model struct {
	games         []GameEntry
	gameStatuses  map[string]*GameStatus
	scraper       string
	logs          []string
	spinner       spinner.Model
	progress      progress.Model
	width         int
	height        int
	quit          bool
	errorCount    int
	successCount  int
	skippedCount  int
	savedNewCount int
	logPath       string
}

type GamesLoaded struct {
	Scraper string
	Games   []GameEntry
}

type ScrapeUpdate struct {
	services.Progress
}

type LogMessage struct {
	Message string
}

func NewModel(logPath string) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	pr := progress.New(progress.WithDefaultGradient())

	return Model{
		games:        []GameEntry{},
		gameStatuses: make(map[string]*GameStatus),
		logs:         []string{},
		spinner:      sp,
		progress:     pr,
		width:        80,
		height:       24,
		logPath:      logPath,
	}
}

func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.handleKeyMsg(msg) {
			m.quit = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m = m.handleWindowSizeMsg(msg)

	case GamesLoaded:
		m = m.handleGamesLoaded(msg)

	case ScrapeUpdate:
		m = m.handleScrapeUpdate(msg)

	case LogMessage:
		m = m.handleLogMessage(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		if progressModel, ok := progressModel.(progress.Model); ok {
			m.progress = progressModel
		}
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m Model) handleKeyMsg(msg tea.KeyMsg) bool {
	switch msg.String() {
	case "q", "ctrl+c":
		return true
	}
	return false
}

func (m Model) handleWindowSizeMsg(msg tea.WindowSizeMsg) Model {
	m.width = msg.Width
	m.height = msg.Height
	m.progress.Width = max(msg.Width-50, 10)
	return m
}

func (m Model) handleGamesLoaded(msg GamesLoaded) Model {
	m.scraper = msg.Scraper
	m.games = msg.Games
	for _, game := range msg.Games {
		m.gameStatuses[game.key()] = &GameStatus{
			Game:  game.Name,
			Stage: services.StageIdle,
		}
	}
	return m
}

func (m Model) handleScrapeUpdate(msg ScrapeUpdate) Model {
	status, exists := m.gameStatuses[rowKey(msg.Path, msg.Game)]
	if !exists {
		return m
	}
	if status.Stage == services.StageComplete || status.Stage == services.StageSkipped {
		return m
	}

	status.Stage = msg.Stage
	status.Kind = msg.Kind
	status.Progress = msg.Fraction
	status.Message = msg.Message
	status.Error = msg.Err

	if msg.Stage == services.StageSearch && status.StartTime.IsZero() {
		status.StartTime = time.Now()
	}

	switch msg.Stage {
	case services.StageSkipped:
		m.skippedCount++
	case services.StageComplete:
		status.CompletedTime = time.Now()
		if msg.Err != nil {
			m.errorCount++
		} else {
			m.successCount++
			if msg.SavedNewMedia {
				m.savedNewCount++
			}
		}
	}
	return m
}

func (m Model) handleLogMessage(msg LogMessage) Model {
	m.logs = append(m.logs, fmt.Sprintf("[%s] %s",
		time.Now().Format("15:04:05"), msg.Message))
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
	return m
}

// Active returns the number of games currently being scraped
func (m Model) Active() int {
	active := 0
	for _, status := range m.gameStatuses {
		if status.Stage != services.StageIdle && status.Stage != services.StageComplete && status.Stage != services.StageSkipped {
			active++
		}
	}
	return active
}

func (m Model) View() string {
	if m.quit {
		return "Shutting down...\n"
	}

	var s strings.Builder

	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("39")).
		MarginBottom(1)

	s.WriteString(headerStyle.Render(fmt.Sprintf("Media Scraper (%s)", m.scraper)))
	s.WriteString("\n\n")

	summaryStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("244"))

	summary := fmt.Sprintf("Games: %d | Done: %d | New media: %d | Skipped: %d | Errors: %d | Active: %d",
		len(m.games), m.successCount, m.savedNewCount, m.skippedCount, m.errorCount, m.Active())
	s.WriteString(summaryStyle.Render(summary))
	s.WriteString("\n\n")

	gameSectionStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Padding(1).
		Width(m.width - 2)

	var gameStatus strings.Builder
	gameStatus.WriteString("Scrape Status\n")
	gameStatus.WriteString(strings.Repeat("─", 60) + "\n")

	for _, game := range m.games {
		status, exists := m.gameStatuses[game.key()]
		if !exists {
			continue
		}

		stageLabel := string(status.Stage)
		if status.Kind != "" {
			stageLabel = string(status.Kind)
		}

		line := fmt.Sprintf("%s %-24s %-12s",
			m.stageIndicator(status),
			truncate(status.Game, 24),
			stageLabel)

		if isRunning(status.Stage) {
			line += " " + m.progress.ViewAs(status.Progress)
		}

		if status.Error != nil {
			errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
			line += " " + errorStyle.Render(fmt.Sprintf("Error: %v", status.Error))
		} else if status.Message != "" {
			messageStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
			line += " " + messageStyle.Render(status.Message)
		}

		stageStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(getStageColor(status)))
		gameStatus.WriteString(stageStyle.Render(line) + "\n")
	}

	s.WriteString(gameSectionStyle.Render(gameStatus.String()))
	s.WriteString("\n\n")

	logSectionStyle := lipgloss.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1).
		Width(m.width - 2).
		Height(8)

	var logSection strings.Builder
	logSection.WriteString("Recent Logs\n")
	for _, log := range m.logs {
		logSection.WriteString(log + "\n")
	}

	s.WriteString(logSectionStyle.Render(logSection.String()))
	s.WriteString("\n\n")

	footerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	footer := "Press 'q' to quit"
	if m.logPath != "" {
		footer += " | Logs: " + m.logPath
	}
	s.WriteString(footerStyle.Render(footer))

	return s.String()
}

func isRunning(stage services.Stage) bool {
	switch stage {
	case services.StageIdle, services.StageSkipped, services.StageComplete:
		return false
	}
	return true
}

func (m Model) stageIndicator(status *GameStatus) string {
	switch {
	case status.Error != nil:
		return "✗"
	case status.Stage == services.StageComplete:
		return "✓"
	case status.Stage == services.StageSkipped:
		return "-"
	case status.Stage == services.StageIdle:
		return "·"
	default:
		return m.spinner.View()
	}
}

func getStageColor(status *GameStatus) string {
	switch {
	case status.Error != nil:
		return "196"
	case status.Stage == services.StageIdle, status.Stage == services.StageSkipped:
		return "244"
	case status.Stage == services.StageComplete:
		return "82"
	default:
		return "39"
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
