// Package tui is a terminal browser over the simulation archive.
package tui

import (
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/odeviz/internal/analysis"
	"github.com/san-kum/odeviz/internal/archive"
	"github.com/san-kum/odeviz/internal/coordinator"
	"github.com/san-kum/odeviz/internal/equation"
)

var (
	cyan    = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	white   = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	dim     = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	dimmer  = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	green   = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	yellow  = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	magenta = lipgloss.NewStyle().Foreground(lipgloss.Color("213"))
	red     = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
)

// Archive is what the browser needs from the coordinator.
type Archive interface {
	Recent(limit int) []archive.Summary
	Search(eqType, text string, tags []string) []archive.Summary
	LoadForDisplay(id int64) (*coordinator.Display, error)
	Delete(id int64) error
	Statistics() archive.Statistics
}

type state int

const (
	stateList state = iota
	stateDetail
	stateConfirm
)

// Browser is the bubbletea model behind the interactive archive browser.
type Browser struct {
	archive Archive
	limit   int

	state   state
	cursor  int
	rows    []archive.Summary
	detail  *coordinator.Display
	filter  string
	editing bool
	editBuf string
	status  string
	failed  bool

	width  int
	height int
}

// NewBrowser returns a browser listing up to limit records, newest first.
func NewBrowser(a Archive, limit int) *Browser {
	m := &Browser{
		archive: a,
		limit:   limit,
		width:   80,
		height:  24,
	}
	m.reload()
	return m
}

var _ tea.Model = Browser{}

func (m Browser) Init() tea.Cmd { return nil }

func (m Browser) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	}
	return m, nil
}

func (m Browser) handleKey(msg tea.KeyMsg) (Browser, tea.Cmd) {
	switch m.state {
	case stateList:
		return m.listKey(msg)
	case stateDetail:
		return m.detailKey(msg)
	case stateConfirm:
		return m.confirmKey(msg)
	}
	return m, nil
}

func (m Browser) listKey(msg tea.KeyMsg) (Browser, tea.Cmd) {
	if m.editing {
		switch msg.String() {
		case "enter":
			m.filter = strings.TrimSpace(m.editBuf)
			m.editing = false
			m.editBuf = ""
			m.reload()
		case "esc":
			m.editing = false
			m.editBuf = ""
		case "backspace":
			if len(m.editBuf) > 0 {
				r := []rune(m.editBuf)
				m.editBuf = string(r[:len(r)-1])
			}
		default:
			if msg.Type == tea.KeyRunes || msg.Type == tea.KeySpace {
				m.editBuf += string(msg.Runes)
			}
		}
		return m, nil
	}

	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.rows)-1 {
			m.cursor++
		}
	case "/":
		m.editing = true
		m.editBuf = m.filter
	case "esc":
		if m.filter != "" {
			m.filter = ""
			m.reload()
		}
	case "r":
		m.reload()
		m.setStatus(fmt.Sprintf("reloaded %d records", len(m.rows)), false)
	case "enter", " ":
		m.open()
	case "d":
		if len(m.rows) > 0 {
			m.state = stateConfirm
		}
	}
	return m, nil
}

func (m Browser) detailKey(msg tea.KeyMsg) (Browser, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "q", "esc", "backspace":
		m.state = stateList
		m.detail = nil
	case "d":
		m.state = stateConfirm
	}
	return m, nil
}

func (m Browser) confirmKey(msg tea.KeyMsg) (Browser, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		m.deleteSelected()
	default:
		m.setStatus("delete cancelled", false)
	}
	m.state = stateList
	m.detail = nil
	return m, nil
}

func (m *Browser) reload() {
	if m.filter == "" {
		m.rows = m.archive.Recent(m.limit)
	} else {
		m.rows = m.archive.Search("", m.filter, nil)
	}
	if m.cursor >= len(m.rows) {
		m.cursor = max(len(m.rows)-1, 0)
	}
}

func (m *Browser) open() {
	if len(m.rows) == 0 {
		return
	}
	d, err := m.archive.LoadForDisplay(m.rows[m.cursor].ID)
	if err != nil {
		m.setStatus(err.Error(), true)
		if errors.Is(err, archive.ErrNotFound) {
			m.reload()
		}
		return
	}
	m.detail = d
	m.state = stateDetail
}

func (m *Browser) deleteSelected() {
	if len(m.rows) == 0 {
		return
	}
	sel := m.rows[m.cursor]
	if err := m.archive.Delete(sel.ID); err != nil {
		m.setStatus(err.Error(), true)
		return
	}
	m.setStatus(fmt.Sprintf("deleted #%d %s", sel.ID, sel.Name), false)
	m.reload()
}

func (m *Browser) setStatus(s string, failed bool) {
	m.status = s
	m.failed = failed
}

func (m Browser) View() string {
	switch m.state {
	case stateList:
		return m.viewList()
	case stateDetail:
		return m.viewDetail()
	case stateConfirm:
		return m.viewConfirm()
	}
	return ""
}

func (m Browser) viewList() string {
	var b strings.Builder

	st := m.archive.Statistics()
	b.WriteString("\n")
	b.WriteString(dimmer.Render("    ╺━━━━━━━━━━━━━━━━━━━━━━━━╸") + "\n")
	b.WriteString("            " + cyan.Render("o d e v i z") + "\n")
	b.WriteString(dimmer.Render("    ╺━━━━━━━━━━━━━━━━━━━━━━━━╸") + "\n")
	b.WriteString(dim.Render(fmt.Sprintf("    %d simulations  %s", st.TotalSimulations, archive.FormatSize(st.FileSizeBytes))) + "\n\n")

	if m.filter != "" {
		b.WriteString("    " + dim.Render("filter ") + yellow.Render(m.filter) + "\n\n")
	}

	if len(m.rows) == 0 {
		b.WriteString("      " + dim.Render("no simulations") + "\n")
	}
	for i, s := range m.rows {
		line := fmt.Sprintf("%4d  %-24s %-9s %6d pts", s.ID, truncate(s.Name, 24), s.EquationType, s.PointsCount)
		if i == m.cursor {
			b.WriteString("    " + cyan.Render("▸ ") + white.Render(line) + "  " + magenta.Render(strings.Join(s.Tags, ",")) + "\n")
		} else {
			b.WriteString("      " + dim.Render(line) + "  " + dimmer.Render(strings.Join(s.Tags, ",")) + "\n")
		}
	}

	if m.editing {
		b.WriteString("\n    " + cyan.Render("/") + white.Render(m.editBuf+"▋") + "\n")
	}
	b.WriteString(m.viewStatus())
	b.WriteString("\n" + dim.Render("    ↑↓ select   enter open   / filter   d delete   r reload   q quit") + "\n")

	return b.String()
}

func (m Browser) viewDetail() string {
	var b strings.Builder
	md := m.detail.Metadata

	b.WriteString("\n")
	b.WriteString("    " + cyan.Render(md.Name) + "  " + dim.Render(fmt.Sprintf("#%d  %s", md.ID, md.CreatedAt)) + "\n")
	b.WriteString(dimmer.Render("    "+strings.Repeat("─", 40)) + "\n\n")

	expr, err := equation.Expression(md.EquationType, md.Parameters)
	if err != nil {
		expr = md.EquationType
	}
	field := func(label, value string) {
		b.WriteString("    " + dim.Render(fmt.Sprintf("%-12s", label)) + white.Render(value) + "\n")
	}
	field("equation", expr)
	field("initial", fmt.Sprintf("%v", md.InitialConditions))
	field("t range", fmt.Sprintf("[%g, %g]", md.TimeRange[0], md.TimeRange[1]))
	field("points", fmt.Sprintf("%d", md.PointsCount))
	field("range", fmt.Sprintf("%.4f .. %.4f  (amplitude %.4f)", md.MinValue, md.MaxValue, md.Amplitude))
	if len(md.Tags) > 0 {
		field("tags", magenta.Render(strings.Join(md.Tags, ", ")))
	}
	if md.Description != "" {
		field("notes", md.Description)
	}

	y, ok := archive.Series(m.detail.Results, "y_values")
	if ok && len(y) > 1 {
		w := max(m.width-16, 30)
		h := max(min(m.height-20, 12), 5)
		b.WriteString("\n" + green.Render(asciigraph.Plot(y, asciigraph.Height(h), asciigraph.Width(w))) + "\n")

		if power := analysis.PowerSpectrum(y); len(power) > 1 {
			b.WriteString("\n    " + dim.Render("spectrum ") + cyan.Render(sparkline(power[1:], min(w, 60))) + "\n")
		}
	} else {
		b.WriteString("\n    " + dim.Render("no plottable y_values") + "\n")
	}

	b.WriteString(m.viewStatus())
	b.WriteString("\n" + dim.Render("    esc back   d delete") + "\n")
	return b.String()
}

func (m Browser) viewConfirm() string {
	if len(m.rows) == 0 {
		return ""
	}
	s := m.rows[m.cursor]
	return "\n    " + red.Render(fmt.Sprintf("delete #%d %s?", s.ID, s.Name)) + "  " + dim.Render("y confirm   any key cancel") + "\n"
}

func (m Browser) viewStatus() string {
	if m.status == "" {
		return ""
	}
	if m.failed {
		return "\n    " + red.Render(m.status) + "\n"
	}
	return "\n    " + green.Render(m.status) + "\n"
}

func sparkline(data []float64, width int) string {
	if len(data) == 0 {
		return ""
	}
	chars := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}
	minVal, maxVal := data[0], data[0]
	for _, v := range data {
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}
	rang := maxVal - minVal
	if rang == 0 {
		rang = 1
	}
	step := len(data) / width
	if step < 1 {
		step = 1
	}
	var sb strings.Builder
	for i := 0; i < width && i*step < len(data); i++ {
		idx := int((data[i*step] - minVal) / rang * 7)
		idx = max(min(idx, 7), 0)
		sb.WriteRune(chars[idx])
	}
	return sb.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// Run starts the browser on the alternate screen.
func Run(a Archive, limit int) error {
	p := tea.NewProgram(NewBrowser(a, limit), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
