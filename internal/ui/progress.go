package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"matisse/internal/driver"
)

const (
	labelQueued   = "queued"
	labelDone     = "done"
	labelError    = "error"
	labelLowering = "lowering"
	statusColumn  = 12
)

// stageLabels names a stage while a file is working in it.
var stageLabels = map[driver.Stage]string{
	driver.StageLoad:  "loading",
	driver.StageParse: "parsing",
	driver.StageLower: labelLowering,
	driver.StageCache: "cache",
}

// stageWeight is the share of a file counted done once it reaches a stage.
var stageWeight = map[driver.Stage]float64{
	driver.StageLoad:  0.05,
	driver.StageParse: 0.2,
	driver.StageLower: 0.6,
	driver.StageCache: 0.6,
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	idleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	workingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	labelStyles  = map[string]lipgloss.Style{
		labelDone:  lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		labelError: lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
	}
)

type fileRow struct {
	path   string
	label  string
	stage  driver.Stage
	fn     string // function being lowered
	done   int
	cached int
}

func (r *fileRow) finished() bool {
	return r.label == labelDone || r.label == labelError
}

func (r *fileRow) text() string {
	switch {
	case r.label == labelLowering && r.fn != "":
		return r.path + "  " + r.fn
	case r.done+r.cached == 0:
		return r.path
	case r.cached > 0:
		return fmt.Sprintf("%s  (%d functions, %d cached)", r.path, r.done+r.cached, r.cached)
	default:
		return fmt.Sprintf("%s  (%d functions)", r.path, r.done)
	}
}

func (r *fileRow) style() lipgloss.Style {
	if s, ok := labelStyles[r.label]; ok {
		return s
	}
	if r.label == labelQueued {
		return idleStyle
	}
	return workingStyle
}

type progressModel struct {
	title   string
	events  <-chan driver.Event
	spinner spinner.Model
	bar     progress.Model
	rows    []fileRow
	byPath  map[string]*fileRow
	width   int
	closed  bool
}

type eventMsg driver.Event
type doneMsg struct{}

// NewProgressModel returns a Bubble Tea model that renders one row per file
// while LowerFiles runs. The model quits when events is closed.
func NewProgressModel(title string, files []string, events <-chan driver.Event) tea.Model {
	m := &progressModel{
		title:   title,
		events:  events,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(workingStyle)),
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(76)),
		rows:    make([]fileRow, len(files)),
		byPath:  make(map[string]*fileRow, len(files)),
		width:   80,
	}
	for i, file := range files {
		m.rows[i] = fileRow{path: file, label: labelQueued}
		m.byPath[file] = &m.rows[i]
	}
	return m
}

func (m *progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.next())
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch msg := msg.(type) {
	case eventMsg:
		cmd = tea.Batch(m.apply(driver.Event(msg)), m.next())
	case doneMsg:
		m.closed = true
		cmd = tea.Quit
	case spinner.TickMsg:
		if !m.closed {
			m.spinner, cmd = m.spinner.Update(msg)
		}
	case progress.FrameMsg:
		var bar tea.Model
		bar, cmd = m.bar.Update(msg)
		m.bar = bar.(progress.Model)
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
			m.bar.Width = msg.Width - 4
		}
	}
	return m, cmd
}

func (m *progressModel) View() string {
	if len(m.rows) == 0 {
		return ""
	}
	header := m.spinner.View() + " " + m.title
	bar := m.bar.View()
	if m.closed {
		header = "done: " + m.title
		bar = m.bar.ViewAs(1)
	}

	nameWidth := max(m.width-statusColumn-4, 20)
	lines := make([]string, 0, len(m.rows)+4)
	lines = append(lines, titleStyle.Render(header), "")
	for i := range m.rows {
		r := &m.rows[i]
		label := r.style().Render(fmt.Sprintf("%*s", statusColumn, r.label))
		lines = append(lines, "  "+label+" "+truncate(r.text(), nameWidth))
	}
	lines = append(lines, "", bar)
	return strings.Join(lines, "\n") + "\n"
}

// next waits for one event; a closed channel becomes doneMsg.
func (m *progressModel) next() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return doneMsg{}
		}
		return eventMsg(ev)
	}
}

// apply folds ev into its row. Function events only move counters; file
// events move the row's label and the overall bar.
func (m *progressModel) apply(ev driver.Event) tea.Cmd {
	r, ok := m.byPath[ev.File]
	if !ok {
		return nil
	}
	r.stage = ev.Stage

	if ev.Function != "" {
		switch {
		case ev.Stage == driver.StageCache && ev.Status == driver.StatusDone:
			r.cached++
		case ev.Status == driver.StatusWorking:
			r.label, r.fn = labelLowering, ev.Function
		default:
			r.done++
			r.fn = ""
		}
		return nil
	}

	switch ev.Status {
	case driver.StatusQueued:
		r.label = labelQueued
	case driver.StatusDone:
		r.label = labelDone
	case driver.StatusError:
		r.label = labelError
	case driver.StatusWorking:
		if label, ok := stageLabels[ev.Stage]; ok {
			r.label = label
		}
	}
	return m.bar.SetPercent(m.fraction())
}

// fraction is the completed share of all files.
func (m *progressModel) fraction() float64 {
	if len(m.rows) == 0 {
		return 0
	}
	sum := 0.0
	for i := range m.rows {
		if m.rows[i].finished() {
			sum++
		} else {
			sum += stageWeight[m.rows[i].stage]
		}
	}
	return sum / float64(len(m.rows))
}

// truncate cuts value to width terminal cells, marking the cut with "..."
// when there is room for it.
func truncate(value string, width int) string {
	if width <= 0 || runewidth.StringWidth(value) <= width {
		return value
	}
	tail := "..."
	if width <= len(tail) {
		tail = ""
	}
	return runewidth.Truncate(value, width, tail)
}
