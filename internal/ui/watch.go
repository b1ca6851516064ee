package ui

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/zubwifi/internal/station"
)

// maxWatchLines is how many lines WatchModel keeps on screen
const maxWatchLines = 20

// LineMsg appends a timestamped line to a WatchModel
type LineMsg struct {
	Time   time.Time
	Label  string
	Color  lipgloss.Color
	Detail string
}

// StatusMsg replaces the text next to the spinner
type StatusMsg string

// DoneMsg stops a WatchModel; Err is reported by Err
type DoneMsg struct {
	Err error
}

// StateLine builds a LineMsg for a station state change
func StateLine(at time.Time, s station.State, detail string) LineMsg {
	return LineMsg{Time: at, Label: s.String(), Color: StateColor(s), Detail: detail}
}

// WatchModel is a Bubble Tea model that follows a stream of events
// until it receives DoneMsg or the user quits
type WatchModel struct {
	title       string
	spinner     spinner.Model
	status      string
	lines       []LineMsg
	done        bool
	interrupted bool
	err         error
}

// NewWatchModel creates a watch model with a title line
func NewWatchModel(title string) WatchModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(PrimaryColor)
	return WatchModel{title: title, spinner: s, status: "waiting for events"}
}

// Init implements tea.Model
func (m WatchModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model
func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.interrupted = true
			return m, tea.Quit
		}
	case LineMsg:
		m.lines = append(m.lines, msg)
		if len(m.lines) > maxWatchLines {
			m.lines = m.lines[len(m.lines)-maxWatchLines:]
		}
	case StatusMsg:
		m.status = string(msg)
	case DoneMsg:
		m.done = true
		m.err = msg.Err
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model
func (m WatchModel) View() string {
	var b strings.Builder
	b.WriteString(HeaderTitleStyle.Render(strings.ToUpper(m.title)))
	b.WriteString("\n\n")

	for _, l := range m.lines {
		b.WriteString("  ")
		b.WriteString(TimestampStyle.Render(l.Time.Format("15:04:05")))
		b.WriteString("  ")
		b.WriteString(lipgloss.NewStyle().Foreground(l.Color).Bold(true).Render(l.Label))
		if l.Detail != "" {
			b.WriteString("  ")
			b.WriteString(StepNoteStyle.Render(l.Detail))
		}
		b.WriteString("\n")
	}

	switch {
	case m.err != nil:
		b.WriteString("\n" + ErrorMessageStyle.Render("  "+FailureMarker+" "+m.err.Error()) + "\n")
	case m.done:
		b.WriteString("\n" + StepCompleteStyle.Render("  "+SuccessMarker+" done") + "\n")
	case !m.interrupted:
		b.WriteString("\n  " + m.spinner.View() + " " + StepPendingStyle.Render(m.status) + "  ")
		b.WriteString(StepNoteStyle.Render("(q to quit)") + "\n")
	}
	return b.String()
}

// Lines returns the lines currently kept
func (m WatchModel) Lines() []LineMsg {
	return m.lines
}

// Done reports whether DoneMsg was received
func (m WatchModel) Done() bool {
	return m.done
}

// Interrupted reports whether the user quit
func (m WatchModel) Interrupted() bool {
	return m.interrupted
}

// Err returns the error carried by DoneMsg
func (m WatchModel) Err() error {
	return m.err
}
