package main

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"dubtap/dictation"
)

// TUI message types
type RecordingStartMsg struct{}
type RecordingStopMsg struct{}
type AudioLevelMsg struct{ Level float64 }
type ProcessingMsg struct{ On bool }
type DictationMsg struct{ Report dictation.Report }
type ModeLineMsg struct{ Text string }   // provider, language and format
type DeviceLineMsg struct{ Text string } // microphone
type RateLimitMsg struct{ Text string }
type tickMsg time.Time

type tuiState int

const (
	tuiStateIdle tuiState = iota
	tuiStateRecording
	tuiStateProcessing
)

const meterWidth = 30

var (
	styleRec     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	styleBusy    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	styleIdle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	styleInfo    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	styleHelp    = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	styleHelpKey = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
	styleText    = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	styleNotice  = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	styleMetric  = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	styleOK      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	styleMeterOn = lipgloss.NewStyle().Foreground(lipgloss.Color("160"))
)

type tuiModel struct {
	state         tuiState
	started       time.Time
	elapsed       time.Duration
	audioLevel    float64
	width, height int
	modeLine      string
	deviceLine    string
	rateLimit     string
	gesture       string
	count         int
	last          *dictation.Report
	hist          *history
	onDeviceKey   func()
}

func NewTUIProgram(gesture string, hist *history, onDeviceKey func()) *tea.Program {
	m := tuiModel{gesture: gesture, hist: hist, onDeviceKey: onDeviceKey}
	return tea.NewProgram(m, tea.WithAltScreen())
}

func tuiTick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tuiTick()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "ctrl+g":
			if m.onDeviceKey != nil {
				m.onDeviceKey()
			}
		}

	case tickMsg:
		if m.state == tuiStateRecording {
			m.elapsed = time.Since(m.started)
		}
		return m, tuiTick()

	case RecordingStartMsg:
		m.state = tuiStateRecording
		m.started = time.Now()
		m.elapsed = 0
		m.audioLevel = 0

	case RecordingStopMsg:
		m.state = tuiStateIdle
		m.audioLevel = 0

	case AudioLevelMsg:
		if m.state == tuiStateRecording {
			m.audioLevel = m.audioLevel*0.6 + msg.Level*0.4
		}

	case ProcessingMsg:
		if msg.On {
			m.state = tuiStateProcessing
		} else if m.state == tuiStateProcessing {
			m.state = tuiStateIdle
		}

	case DictationMsg:
		m.count++
		r := msg.Report
		m.last = &r

	case ModeLineMsg:
		m.modeLine = msg.Text

	case DeviceLineMsg:
		m.deviceLine = msg.Text

	case RateLimitMsg:
		m.rateLimit = msg.Text
	}
	return m, nil
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var lines []string
	switch m.state {
	case tuiStateRecording:
		lines = append(lines, styleRec.Render(fmt.Sprintf("● REC %.1fs", m.elapsed.Seconds())))
		lines = append(lines, renderMeter(m.audioLevel))
	case tuiStateProcessing:
		lines = append(lines, styleBusy.Render("◌ TRANSCRIBING"))
	default:
		lines = append(lines, styleIdle.Render("○ STANDBY"))
	}

	for _, s := range []string{m.modeLine, m.deviceLine, m.rateLimit} {
		if s != "" {
			lines = append(lines, styleInfo.Render(s))
		}
	}

	if m.hist != nil {
		if table := m.hist.table(); table != "" {
			lines = append(lines, "")
			for _, line := range strings.Split(table, "\n") {
				lines = append(lines, styleIdle.Render(line))
			}
		}
	}

	lines = append(lines, "")
	lines = append(lines, styleHelpKey.Render(m.gesture)+styleHelp.Render(" to dictate"))
	lines = append(lines, styleHelpKey.Render("ctrl+g")+styleHelp.Render(" microphone, ")+
		styleHelpKey.Render("q")+styleHelp.Render(" quit"))
	lines = append(lines, styleHelp.Render("dubtap "+version))

	const leftWidth = 44
	left := lipgloss.NewStyle().Width(leftWidth).Render(strings.Join(lines, "\n"))

	rightWidth := m.width - leftWidth - 1
	if rightWidth < 20 {
		rightWidth = 20
	}
	right := lipgloss.NewStyle().
		Width(rightWidth).
		PaddingLeft(1).
		Render(m.renderLast(rightWidth - 2))

	return lipgloss.JoinHorizontal(lipgloss.Top, left, right)
}

func (m tuiModel) renderLast(width int) string {
	if m.last == nil {
		return styleIdle.Render("No dictations yet")
	}
	var b strings.Builder
	b.WriteString(styleInfo.Render(fmt.Sprintf("Last dictation (#%d, %s)", m.count, m.last.Kind)))
	b.WriteString("\n\n")

	style := styleText
	if m.last.Kind != dictation.Transcribed {
		style = styleNotice
	}
	wrapped := wrapText(m.last.Text, width)
	for i, line := range wrapped {
		b.WriteString(style.Render(line))
		if i == len(wrapped)-1 && m.last.Inserted && m.last.Kind == dictation.Transcribed {
			b.WriteString(" " + styleOK.Render("[✓ inserted]"))
		}
		b.WriteString("\n")
	}

	if m.last.Result != nil && len(m.last.Result.Metrics) > 0 {
		b.WriteString("\n")
		for _, metric := range m.last.Result.Metrics {
			b.WriteString(styleMetric.Render(metric) + "\n")
		}
	}
	return b.String()
}

func renderMeter(level float64) string {
	n := int(level * 10 * meterWidth)
	if n > meterWidth {
		n = meterWidth
	}
	if n < 0 {
		n = 0
	}
	return styleMeterOn.Render(strings.Repeat("█", n)) + styleIdle.Render(strings.Repeat("░", meterWidth-n))
}

func wrapText(text string, width int) []string {
	if len(text) == 0 {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	var lines []string
	for len(text) > width {
		splitAt := width
		for i := width; i > 0; i-- {
			if text[i] == ' ' {
				splitAt = i
				break
			}
		}
		lines = append(lines, text[:splitAt])
		text = strings.TrimLeft(text[splitAt:], " ")
	}
	if len(text) > 0 {
		lines = append(lines, text)
	}
	return lines
}

// tuiSink forwards events to a running Bubble Tea program.
type tuiSink struct {
	p *tea.Program
}

func (s tuiSink) RecordingStart()              { s.p.Send(RecordingStartMsg{}) }
func (s tuiSink) RecordingStop()               { s.p.Send(RecordingStopMsg{}) }
func (s tuiSink) AudioLevel(level float64)     { s.p.Send(AudioLevelMsg{Level: level}) }
func (s tuiSink) Processing(on bool)           { s.p.Send(ProcessingMsg{On: on}) }
func (s tuiSink) Dictation(r dictation.Report) { s.p.Send(DictationMsg{Report: r}) }
func (s tuiSink) ModeLine(text string)         { s.p.Send(ModeLineMsg{Text: text}) }
func (s tuiSink) DeviceLine(text string)       { s.p.Send(DeviceLineMsg{Text: text}) }
func (s tuiSink) RateLimit(text string)        { s.p.Send(RateLimitMsg{Text: text}) }
