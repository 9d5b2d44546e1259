package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"

	"github.com/gwillem/robotross/pkg/plan"
	"github.com/gwillem/robotross/pkg/robot"
	"github.com/gwillem/robotross/pkg/session"
)

const (
	headerHeight = 3 // title, progress, blank line
	legendHeight = 2 // legend row + blank
	footerHeight = 7 // log box height
	maxLogs      = 5 // number of log messages to show
	borderSize   = 2 // chart border
)

// Axis colors
var axisColors = map[string]string{
	"x": "51",  // cyan
	"y": "201", // magenta
}

var axes = []string{"x", "y"}

var (
	chartStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	stateStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
)

type sessionModel struct {
	o     *session.Orchestrator
	req   robot.DrawingRequest
	chart *streamlinechart.Model

	width    int
	height   int
	logs     []string
	state    session.State
	progress session.Progress
	lastPos  *robot.Point
	stopping bool

	done   bool
	result session.Result
	err    error
}

// Messages from the orchestrator
type stateMsg session.StateChange
type logMsg string
type progressMsg session.Progress
type doneMsg struct {
	res session.Result
	err error
}

func waitForState(o *session.Orchestrator) tea.Cmd {
	return func() tea.Msg {
		return stateMsg(<-o.States())
	}
}

func waitForLog(o *session.Orchestrator) tea.Cmd {
	return func() tea.Msg {
		return logMsg(<-o.Logs())
	}
}

func waitForProgress(o *session.Orchestrator) tea.Cmd {
	return func() tea.Msg {
		return progressMsg(<-o.Progress())
	}
}

func runCmd(ctx context.Context, o *session.Orchestrator, req robot.DrawingRequest) tea.Cmd {
	return func() tea.Msg {
		res, err := o.Run(ctx, req)
		return doneMsg{res: res, err: err}
	}
}

// chartRange covers the drawing's extent on both axes.
func chartRange(a *app, req robot.DrawingRequest) (float64, float64) {
	profile, err := a.store.Load()
	if err != nil {
		return -50, 50
	}
	p, err := plan.New().Plan(req, profile)
	if err != nil {
		return -50, 50
	}
	lo, hi := p.Bounds()
	lim := math.Max(math.Max(math.Abs(lo.X), math.Abs(lo.Y)), math.Max(math.Abs(hi.X), math.Abs(hi.Y)))
	lim = math.Ceil(lim*1.1) + 1
	return -lim, lim
}

func (m *sessionModel) addLog(msg string) {
	m.logs = append(m.logs, msg)
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
}

// chartSize calculates the size of the chart based on terminal dimensions
func (m *sessionModel) chartSize() (width, height int) {
	if m.width == 0 || m.height == 0 {
		return 80, 20 // default size before we know terminal size
	}
	width = max(m.width-borderSize-2, 40)
	height = max(m.height-headerHeight-legendHeight-footerHeight-borderSize, 10)
	return width, height
}

func newSessionModel(o *session.Orchestrator, req robot.DrawingRequest, ymin, ymax float64) sessionModel {
	chart := streamlinechart.New(80, 20,
		streamlinechart.WithYRange(ymin, ymax),
	)
	for _, name := range axes {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(axisColors[name]))
		chart.SetDataSetStyles(name, runes.ThinLineStyle, style)
	}

	return sessionModel{
		o:     o,
		req:   req,
		chart: &chart,
	}
}

func (m sessionModel) Init() tea.Cmd {
	return tea.Batch(
		waitForState(m.o),
		waitForLog(m.o),
		waitForProgress(m.o),
		runCmd(context.Background(), m.o, m.req),
	)
}

func (m sessionModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		w, h := m.chartSize()
		m.chart.Resize(w, h)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if m.stopping {
				// Second press: leave without waiting.
				return m, tea.Quit
			}
			m.stopping = true
			m.o.Stop()
			m.addLog("Stopping after the current move...")
		}
		return m, nil

	case stateMsg:
		m.state = msg.To
		return m, waitForState(m.o)

	case progressMsg:
		p := session.Progress(msg)
		m.progress = p
		// Freeze the chart while the pen is not moving
		if m.lastPos == nil || *m.lastPos != p.Position {
			m.chart.PushDataSet("x", p.Position.X)
			m.chart.PushDataSet("y", p.Position.Y)
			m.chart.DrawAll()
			pos := p.Position
			m.lastPos = &pos
		}
		return m, waitForProgress(m.o)

	case logMsg:
		m.addLog(string(msg))
		return m, waitForLog(m.o)

	case doneMsg:
		m.done = true
		m.result, m.err = msg.res, msg.err
		return m, tea.Quit
	}

	return m, nil
}

func (m sessionModel) View() string {
	if m.done {
		return ""
	}

	var sb strings.Builder

	// Header
	sb.WriteString(headerStyle.Render("robotross"))
	sb.WriteString(" - " + m.req.String() + "  ")
	sb.WriteString(stateStyle.Render(m.state.String()))
	sb.WriteString("\n")
	if m.progress.Total > 0 {
		sb.WriteString(dimStyle.Render(fmt.Sprintf("command %d/%d  %s  pen at (%.1f, %.1f)",
			m.progress.Index, m.progress.Total, m.progress.Segment,
			m.progress.Position.X, m.progress.Position.Y)))
	}
	sb.WriteString("\n\n")

	// Chart
	sb.WriteString(chartStyle.Render(m.chart.View()))
	sb.WriteString("\n")

	// Legend
	sb.WriteString(renderLegend())
	sb.WriteString("\n")

	// Log box
	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(max(m.width-4, 20))

	var logLines string
	if len(m.logs) == 0 {
		logLines = dimStyle.Render("Press 'q' to stop the arm")
	} else {
		logLines = strings.Join(m.logs, "\n")
	}
	sb.WriteString(logStyle.Render(logLines))
	sb.WriteString("\n")

	return sb.String()
}

func renderLegend() string {
	var items []string
	for _, name := range axes {
		colorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(axisColors[name])).Bold(true)
		items = append(items, colorStyle.Render("━━")+" pen "+name)
	}
	return strings.Join(items, "  ")
}

func runWithView(ctx context.Context, a *app, req robot.DrawingRequest) (session.Result, error) {
	// Log lines would tear the alternate screen; the view shows the
	// session's own log instead.
	out := logrus.StandardLogger().Out
	logrus.SetOutput(io.Discard)
	defer logrus.SetOutput(out)

	ymin, ymax := chartRange(a, req)
	p := tea.NewProgram(newSessionModel(a.orchestrator, req, ymin, ymax), tea.WithAltScreen(), tea.WithContext(ctx))
	final, err := p.Run()
	if err != nil {
		// The view is gone; make sure the arm is too.
		a.orchestrator.Stop()
		return session.Result{}, fmt.Errorf("run view: %w", err)
	}

	m := final.(sessionModel)
	if !m.done {
		a.orchestrator.Stop()
		return session.Result{Outcome: session.OutcomeStopped, Message: "view closed"}, nil
	}
	return m.result, m.err
}
