package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-logr/logr"
	"github.com/san-kum/cmbview/internal/artifact"
	"github.com/san-kum/cmbview/internal/layout"
	"github.com/san-kum/cmbview/internal/session"
	"github.com/san-kum/cmbview/internal/view"
)

const pageSteps = 10

type fetchedMsg struct {
	result artifact.Result
}

type model struct {
	session *session.Session
	ctx     context.Context
	log     logr.Logger

	// cursor is the flat slider index per view.
	cursor  [3]int
	outcome [3]string

	width    int
	height   int
	quitting bool
}

func NewInteractiveApp(ctx context.Context, s *session.Session, log logr.Logger) model {
	return model{
		session: s,
		ctx:     ctx,
		log:     log,
		width:   80,
		height:  24,
	}
}

// Init issues the first fetch of every model.
func (m model) Init() tea.Cmd {
	return m.fetch(m.session.Start())
}

func (m model) fetch(pending []artifact.Pending) tea.Cmd {
	if len(pending) == 0 {
		return nil
	}
	cmds := make([]tea.Cmd, len(pending))
	for i, p := range pending {
		p := p
		cmds[i] = func() tea.Msg {
			return fetchedMsg{result: m.session.Fetch(m.ctx, p)}
		}
	}
	return tea.Batch(cmds...)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case fetchedMsg:
		out := m.session.Apply(msg.result)
		if k, ok := kindOf(msg.result.Model); ok {
			m.outcome[k] = out.String()
		}
		return m, nil
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (model, tea.Cmd) {
	sel := m.session.Selector()
	active := sel.Active()
	name := active.Model()
	cols := m.session.Layout(name)

	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		if err := m.session.Close(); err != nil {
			m.log.Error(err, "close session")
		}
		return m, tea.Quit
	case "tab":
		sel.Next()
	case "shift+tab":
		sel.Prev()
	case "1", "2", "3":
		sel.Select(view.Kind(msg.String()[0] - '1'))
	case "up", "k":
		if m.cursor[active] > 0 {
			m.cursor[active]--
		}
	case "down", "j":
		if m.cursor[active] < cols.Len()-1 {
			m.cursor[active]++
		}
	case "w":
		col, row := cols.Locate(m.cursor[active])
		if i := cols.Index(1-col, row); i >= 0 {
			m.cursor[active] = i
		} else if col == 0 && cols.Len() > cols.Rows() {
			m.cursor[active] = cols.Len() - 1
		}
	case "left", "h":
		m.nudge(cols, -1)
	case "right", "l":
		m.nudge(cols, 1)
	case "pgdown":
		m.nudge(cols, -pageSteps)
	case "pgup":
		m.nudge(cols, pageSteps)
	case "home":
		m.bound(cols, false)
	case "end":
		m.bound(cols, true)
	case "r":
		m.session.Reset(name)
	}
	return m, m.fetch(m.session.Take())
}

func (m model) selected(cols layout.Columns[float64]) (layout.Control[float64], bool) {
	return cols.At(m.cursor[m.session.Selector().Active()])
}

func (m model) nudge(cols layout.Columns[float64], steps int) {
	if c, ok := m.selected(cols); ok {
		m.session.Nudge(m.session.Selector().Active().Model(), c.Name, steps)
	}
}

func (m model) bound(cols layout.Columns[float64], upper bool) {
	if c, ok := m.selected(cols); ok {
		m.session.SetToBound(m.session.Selector().Active().Model(), c.Name, upper)
	}
}

func kindOf(modelName string) (view.Kind, bool) {
	for _, k := range view.All() {
		if k.Model() == modelName {
			return k, true
		}
	}
	return 0, false
}

// RunInteractive runs the program until the user quits. The session is
// closed on the way out.
func RunInteractive(ctx context.Context, s *session.Session, log logr.Logger) error {
	defer s.Close()
	p := tea.NewProgram(NewInteractiveApp(ctx, s, log), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
