// Package watch renders a live run as a terminal dashboard: the
// conversation as it unfolds, backend log chatter, and per-round
// analysis verdicts.
package watch

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/secdrill/phishwatch/internal/stream"
)

// Sink observes every event the watch drains, in order. Used to tee the
// stream into a transcript recorder or the relay without a second
// consumer on the session.
type Sink func(stream.Event)

// Options configure a watch.
type Options struct {
	Manager *stream.Manager
	Params  stream.Params
	Sinks   []Sink
}

// Run opens a session and blocks inside the dashboard until the run ends
// and the operator quits, or the context is canceled.
func Run(ctx context.Context, opts Options) error {
	session, err := opts.Manager.Open(ctx, opts.Params)
	if err != nil {
		return err
	}
	defer session.Close(stream.ReasonManualClose)

	m := newModel(ctx, session, opts.Sinks)
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err = p.Run()
	return err
}

type eventMsg struct {
	ev stream.Event
}

type drainedMsg struct{}

type model struct {
	ctx     context.Context
	session *stream.Session
	sinks   []Sink

	width  int
	height int

	turns       []stream.ConversationTurn
	logs        []string
	caseID      string
	round       int
	closeReason string
	done        bool
	errMsg      string
}

func newModel(ctx context.Context, s *stream.Session, sinks []Sink) *model {
	return &model{ctx: ctx, session: s, sinks: sinks}
}

func (m *model) Init() tea.Cmd {
	return waitEventCmd(m.ctx, m.session)
}

// waitEventCmd parks on the session queue and converts the next event
// into a Bubble Tea message.
func waitEventCmd(ctx context.Context, s *stream.Session) tea.Cmd {
	return func() tea.Msg {
		ev, ok := s.Next(ctx)
		if !ok {
			return drainedMsg{}
		}
		return eventMsg{ev: ev}
	}
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.session.Close(stream.ReasonManualClose)
			return m, tea.Quit
		}
		return m, nil

	case eventMsg:
		for _, sink := range m.sinks {
			sink(msg.ev)
		}
		m.handleEvent(msg.ev)
		return m, waitEventCmd(m.ctx, m.session)

	case drainedMsg:
		m.done = true
		return m, nil

	default:
		return m, nil
	}
}

func (m *model) handleEvent(ev stream.Event) {
	if ev.Meta.Round > m.round {
		m.round = ev.Meta.Round
	}

	switch ev.Kind {
	case stream.KindTurn:
		if ev.Turn != nil {
			m.turns = append(m.turns, *ev.Turn)
		}
	case stream.KindLog:
		m.appendLog(ev.Content)
	case stream.KindCaseCreated:
		if id, ok := ev.Fields["case_id"].(string); ok {
			m.caseID = id
		}
		m.appendLog("case created " + m.caseID)
	case stream.KindRoundMarker:
		m.appendLog(strings.ReplaceAll(ev.Channel, "_", " "))
	case stream.KindJudgement, stream.KindGuidance, stream.KindPrevention:
		m.appendLog(string(ev.Kind) + " received")
	case stream.KindError:
		m.errMsg = ev.Content
		m.appendLog("error: " + ev.Content)
	case stream.KindControl:
		if ev.Channel == stream.LocalChannel {
			m.closeReason = ev.Content
		}
	}
}

func (m *model) appendLog(line string) {
	if strings.TrimSpace(line) == "" {
		return
	}
	m.logs = append(m.logs, fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), line))
	if len(m.logs) > 500 {
		m.logs = m.logs[len(m.logs)-500:]
	}
}

var (
	watchTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	watchStatusStyle = lipgloss.NewStyle().
				Bold(true).
				Padding(0, 1)

	watchMetaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))

	watchPaneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("8")).
			Padding(0, 1)

	watchOffenderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	watchVictimStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	watchDimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	watchErrStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	watchHelpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

func (m *model) View() string {
	title := watchTitleStyle.Render("phishwatch")
	status := watchStatusStyle.Background(statusColor(m)).Render(strings.ToUpper(m.statusLabel()))

	meta := watchMetaStyle.Render(fmt.Sprintf("run=%s  case=%s  round=%d",
		m.session.RunID(), orDash(m.caseID), m.round))

	width := m.width
	if width <= 0 {
		width = 80
	}
	bodyHeight := m.height - 10
	if bodyHeight < 10 {
		bodyHeight = 10
	}
	convHeight := bodyHeight * 2 / 3
	logHeight := bodyHeight - convHeight

	conv := watchPaneStyle.Width(width - 2).Height(convHeight).
		Render(m.renderConversation(convHeight))
	logPane := watchPaneStyle.Width(width - 2).Height(logHeight).
		Render(m.renderLogs(logHeight))

	footer := watchHelpStyle.Render("q: quit")
	if m.done {
		footer = watchHelpStyle.Render("run over, q: quit")
	}
	if m.errMsg != "" {
		footer = watchErrStyle.Render("error: "+m.errMsg) + "  " + footer
	}

	return strings.Join([]string{
		title + " " + status,
		meta,
		conv,
		m.renderAnalysis(),
		logPane,
		footer,
	}, "\n")
}

func (m *model) statusLabel() string {
	switch {
	case m.done, m.closeReason != "":
		if m.closeReason != "" {
			return m.closeReason
		}
		return "ended"
	default:
		return string(m.session.State())
	}
}

func statusColor(m *model) lipgloss.Color {
	switch {
	case m.errMsg != "":
		return lipgloss.Color("9")
	case m.done || m.closeReason != "":
		return lipgloss.Color("12")
	default:
		return lipgloss.Color("10")
	}
}

func (m *model) renderConversation(height int) string {
	if len(m.turns) == 0 {
		return watchDimStyle.Render("waiting for the first turn...")
	}

	var lines []string
	for _, t := range m.turns {
		label := watchOffenderStyle.Render("offender>")
		if t.Role == stream.RoleVictim {
			label = watchVictimStyle.Render("victim>")
		}
		line := fmt.Sprintf("%s %s", label, t.DisplayText)
		if t.ConvincedPct != nil {
			line += watchDimStyle.Render(fmt.Sprintf("  (convinced %d%%)", *t.ConvincedPct))
		}
		lines = append(lines, line)
	}
	if len(lines) > height {
		lines = lines[len(lines)-height:]
	}
	return strings.Join(lines, "\n")
}

func (m *model) renderLogs(height int) string {
	if len(m.logs) == 0 {
		return watchDimStyle.Render("no backend chatter yet")
	}
	lines := m.logs
	if len(lines) > height {
		lines = lines[len(lines)-height:]
	}
	return watchDimStyle.Render(strings.Join(lines, "\n"))
}

// renderAnalysis shows the latest artifact of each kind from the
// session's aggregator.
func (m *model) renderAnalysis() string {
	agg := m.session.Analysis()

	parts := []string{}
	if js := agg.Judgements(); len(js) > 0 {
		j := js[len(js)-1]
		verdict := "benign"
		if j.Phishing {
			verdict = "PHISHING"
		}
		parts = append(parts, fmt.Sprintf("judgement: %s risk=%s(%.2f)", verdict, orDash(j.Risk.Level), j.Risk.Score))
	}
	if gs := agg.Guidance(); len(gs) > 0 {
		g := gs[len(gs)-1]
		parts = append(parts, "guidance: "+orDash(strings.Join(g.Categories, ",")))
	}
	if ps := agg.Preventions(); len(ps) > 0 {
		parts = append(parts, fmt.Sprintf("prevention tips: %d", len(ps)))
	}
	if len(parts) == 0 {
		return watchMetaStyle.Render("analysis: none yet")
	}
	return watchMetaStyle.Render("analysis: " + strings.Join(parts, "  │  "))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
