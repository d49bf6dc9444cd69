package tui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/cmbview/internal/layout"
	"github.com/san-kum/cmbview/internal/view"
)

var (
	cyan    = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	white   = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	dim     = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	dimmer  = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	green   = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	yellow  = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	red     = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	magenta = lipgloss.NewStyle().Foreground(lipgloss.Color("213"))
)

const (
	barWidth   = 16
	graphWidth = 40
)

func (m model) View() string {
	if m.quitting {
		return ""
	}
	active := m.session.Selector().Active()

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString("   " + cyan.Render("c m b v i e w") + "   " + m.tabs(active) + "\n")
	b.WriteString(dimmer.Render("   "+strings.Repeat("─", 56)) + "\n\n")

	b.WriteString(m.viewImage(active))
	b.WriteString("\n")
	b.WriteString(m.viewSliders(active))
	b.WriteString(m.viewLatency(active))

	b.WriteString("\n" + dim.Render("   tab view  ↑↓ select  ←→ step  pgup/pgdn ×10  home/end bounds  w column  r reset  q quit") + "\n")
	return b.String()
}

func (m model) tabs(active view.Kind) string {
	parts := make([]string, 0, 3)
	for _, k := range view.All() {
		label := fmt.Sprintf("%d %s", int(k)+1, k.Label())
		if k == active {
			parts = append(parts, cyan.Render("▸ ")+white.Render(label))
		} else {
			parts = append(parts, "  "+dim.Render(label))
		}
	}
	return strings.Join(parts, "  ")
}

func (m model) viewImage(active view.Kind) string {
	name := active.Model()
	title := name
	if def, ok := m.session.Model(name); ok && def.Title != "" {
		title = def.Title
	}
	sy := m.session.Synchronizer(name)

	var b strings.Builder
	b.WriteString("   " + white.Render(title) + "  " + dim.Render("/api/"+name) + "\n")

	res := sy.Current()
	if res == nil {
		b.WriteString("   " + dimmer.Render("no image yet") + "\n")
	} else {
		b.WriteString(fmt.Sprintf("   %s %s\n", dim.Render("image"), white.Render(filepath.Base(res.Path))))
		b.WriteString(fmt.Sprintf("   %s %s  %s %s  %s %s\n",
			dim.Render("type"), white.Render(res.ContentType),
			dim.Render("size"), white.Render(formatBytes(res.Size)),
			dim.Render("gen"), white.Render(fmt.Sprintf("%d", res.Generation))))
	}

	var status string
	switch err := sy.LastError(); {
	case sy.Outstanding():
		status = yellow.Render("○") + " " + yellow.Render(fmt.Sprintf("fetching #%d", sy.Generation()))
	case err != nil:
		status = red.Render("✕") + " " + red.Render(err.Error())
	case res != nil:
		status = green.Render("●") + " " + green.Render("ready")
	}
	if out := m.outcome[active]; out != "" {
		status += "  " + dimmer.Render("last "+out)
	}
	if status != "" {
		b.WriteString("   " + status + "\n")
	}
	return b.String()
}

func (m model) viewSliders(active view.Kind) string {
	cols := m.session.Layout(active.Model())
	if cols.Len() == 0 {
		return "   " + dimmer.Render("no parameters") + "\n"
	}

	return RenderColumns(cols, m.cursor[active]) + "\n"
}

// RenderColumns draws the two slider columns side by side, highlighting the
// control at flat index cursor. A negative cursor highlights nothing.
func RenderColumns(cols layout.Columns[float64], cursor int) string {
	left := renderColumn(cols.Left, 0, cursor)
	right := renderColumn(cols.Right, cols.Rows(), cursor)
	return lipgloss.JoinHorizontal(lipgloss.Top, "   ", left, "    ", right)
}

func renderColumn(controls []layout.Control[float64], offset, cursor int) string {
	lines := make([]string, len(controls))
	for i, c := range controls {
		lines[i] = renderSlider(c, offset+i == cursor)
	}
	return strings.Join(lines, "\n")
}

func renderSlider(c layout.Control[float64], selected bool) string {
	filled := int(layout.Fraction(c.Range, c.Value)*float64(barWidth) + 0.5)
	bar := strings.Repeat("━", filled) + strings.Repeat("─", barWidth-filled)
	val := fmt.Sprintf("%*s", 8, formatValue(c))

	if selected {
		return cyan.Render("▸ ") + white.Render(fmt.Sprintf("%-6s", c.Name)) + cyan.Render(bar) + " " + magenta.Render(val)
	}
	return "  " + dim.Render(fmt.Sprintf("%-6s", c.Name)) + dimmer.Render(bar) + " " + dim.Render(val)
}

func formatValue(c layout.Control[float64]) string {
	return fmt.Sprintf("%.*f", layout.Decimals(c.Range), c.Value)
}

func (m model) viewLatency(active view.Kind) string {
	sy := m.session.Synchronizer(active.Model())
	samples := sy.Latency()
	if len(samples) < 2 {
		return ""
	}
	mean, last := sy.LatencySummary()
	graph := asciigraph.Plot(samples,
		asciigraph.Height(4),
		asciigraph.Width(graphWidth),
		asciigraph.Caption(fmt.Sprintf("fetch ms  mean %.0f  last %.0f", mean, last)),
	)
	var b strings.Builder
	b.WriteString("\n")
	for _, line := range strings.Split(graph, "\n") {
		b.WriteString("   " + dim.Render(line) + "\n")
	}
	return b.String()
}

func formatBytes(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1fMB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1fKB", float64(n)/(1<<10))
	}
	return fmt.Sprintf("%dB", n)
}
