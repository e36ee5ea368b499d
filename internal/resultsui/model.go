// Package resultsui provides the Bubble Tea results browser.
package resultsui

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/rtscope/internal/model"
	"github.com/verte-zerg/rtscope/internal/stats"
)

const (
	tabOverview = iota
	tabConditions
	tabFits
)

const (
	plotHeight = 12
)

var (
	activeNavStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F0F0F0")).
			Bold(true).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#C89A3A"))
	inactiveNavStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#B0B0B0")).
				Padding(0, 1).
				Border(lipgloss.RoundedBorder(), true).
				BorderForeground(lipgloss.Color("#4A4A4A"))
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	cardStyle   = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
	cardTitleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	cardValueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	tableMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#B8B8B8"))
	modalStyle      = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#C89A3A")).
			Padding(1, 2)
)

// Model implements the Bubble Tea results UI.
type Model struct {
	results []model.ParticipantResult
	cfg     model.Config

	tabs      []string
	activeTab int
	viewports []viewport.Model
	condTable table.Model
	selected  int

	width  int
	height int

	searchMode  bool
	searchInput textinput.Model
	searchError string
}

// NewModel constructs a results UI model.
func NewModel(results []model.ParticipantResult, cfg model.Config) *Model {
	m := &Model{
		results: results,
		cfg:     cfg,
		tabs:    []string{"Overview", "Conditions", "Fits"},
	}
	m.initSearchInput()
	m.initViewports()
	m.renderTabContents()
	return m
}

// Selected returns the participant currently shown in the per-participant tabs.
func (m *Model) Selected() string {
	if r, ok := m.current(); ok {
		return r.ID
	}
	return ""
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		m.renderTabContents()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.searchMode {
			return m.updateSearch(msg)
		}
		switch msg.String() {
		case "q":
			return m, tea.Quit
		case "left", "h":
			m.moveTab(-1)
			return m, tea.ClearScreen
		case "right", "l":
			m.moveTab(1)
			return m, tea.ClearScreen
		case "[":
			m.selectParticipant(m.selected - 1)
			return m, nil
		case "]":
			m.selectParticipant(m.selected + 1)
			return m, nil
		case "/":
			return m.startSearch()
		case "g", "home":
			if m.activeTab == tabConditions {
				m.condTable.GotoTop()
			} else {
				m.viewports[m.activeTab].GotoTop()
			}
			return m, nil
		case "G", "end":
			if m.activeTab == tabConditions {
				m.condTable.GotoBottom()
			} else {
				m.viewports[m.activeTab].GotoBottom()
			}
			return m, nil
		default:
			if m.activeTab == tabConditions {
				var cmd tea.Cmd
				m.condTable, cmd = m.condTable.Update(msg)
				return m, cmd
			}
			vp := m.viewports[m.activeTab]
			var cmd tea.Cmd
			vp, cmd = vp.Update(msg)
			m.viewports[m.activeTab] = vp
			return m, cmd
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	if m.searchMode {
		return fitLines(m.renderSearchModal(), m.width, m.height)
	}
	headerHeight, bodyHeight, footerHeight := m.layoutHeights()
	header := fitLines(m.renderHeader(), m.width, headerHeight)
	body := fitLines(m.renderBody(bodyHeight), m.width, bodyHeight)
	footer := fitLines(m.renderFooter(), m.width, footerHeight)
	return strings.Join([]string{header, body, footer}, "\n")
}

func (m *Model) current() (model.ParticipantResult, bool) {
	if m.selected < 0 || m.selected >= len(m.results) {
		return model.ParticipantResult{}, false
	}
	return m.results[m.selected], true
}

func (m *Model) initViewports() {
	m.viewports = make([]viewport.Model, len(m.tabs))
	for i := range m.viewports {
		m.viewports[i] = viewport.New(0, 0)
	}
}

func (m *Model) initSearchInput() {
	input := textinput.New()
	input.Prompt = "Participant: "
	input.Placeholder = "P01"
	input.CharLimit = 0
	input.Cursor.SetMode(cursor.CursorBlink)
	m.searchInput = input
}

func (m *Model) layoutHeights() (headerHeight, bodyHeight, footerHeight int) {
	tabsHeight := lipgloss.Height(activeNavStyle.Render("X"))
	if tabsHeight < 1 {
		tabsHeight = 1
	}
	headerHeight = tabsHeight + 1
	footerHeight = 1
	bodyHeight = m.height - headerHeight - footerHeight
	if bodyHeight < 1 {
		bodyHeight = 1
	}
	return headerHeight, bodyHeight, footerHeight
}

func (m *Model) updateLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	_, vpHeight, _ := m.layoutHeights()
	for i := range m.viewports {
		m.viewports[i].Width = m.width
		m.viewports[i].Height = vpHeight
	}
	promptWidth := lipgloss.Width(m.searchInput.Prompt)
	m.searchInput.Width = maxInt(10, modalInnerWidth(m.width)-promptWidth)
}

func (m *Model) moveTab(delta int) {
	count := len(m.tabs)
	if count == 0 {
		return
	}
	next := m.activeTab + delta
	if next < 0 {
		next = count - 1
	}
	if next >= count {
		next = 0
	}
	m.activeTab = next
	if m.activeTab == tabConditions {
		m.condTable.Focus()
	} else {
		m.condTable.Blur()
	}
}

func (m *Model) selectParticipant(idx int) {
	if len(m.results) == 0 {
		return
	}
	if idx < 0 {
		idx = len(m.results) - 1
	}
	if idx >= len(m.results) {
		idx = 0
	}
	m.selected = idx
	m.renderTabContents()
}

func (m *Model) renderTabs() string {
	parts := make([]string, 0, len(m.tabs))
	for i, tab := range m.tabs {
		if i == m.activeTab {
			parts = append(parts, activeNavStyle.Render(tab))
		} else {
			parts = append(parts, inactiveNavStyle.Render(tab))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m *Model) renderHeader() string {
	tabs := padLines(m.renderTabs(), m.width)
	settings := padLines(m.renderSettingsSummary(), m.width)
	return tabs + "\n" + settings
}

func (m *Model) renderSettingsSummary() string {
	a := m.cfg.Analysis
	participant := m.Selected()
	if participant == "" {
		participant = "none"
	}
	summary := fmt.Sprintf("Participant: %s (%d/%d)  delay=%gms  max=%gms  k=%g  z=%.2f  latency=%s",
		participant, m.selected+1, len(m.results), a.DelayMs, a.MaxRTMs, a.OutlierK, a.ZScore, a.Latency)
	return headerStyle.Render(truncateLine(summary, m.width))
}

func (m *Model) renderFooter() string {
	help := "Nav: left/right  Participant: [ ]  Find: /  Scroll: up/down/pgup/pgdn  Quit: q"
	return headerStyle.Render(truncateLine(help, m.width))
}

func (m *Model) renderBody(height int) string {
	if m.activeTab == tabConditions {
		if _, ok := m.current(); !ok {
			return fitLines("No participants analyzed.", m.width, height)
		}
		return fitLines(tableMutedStyle.Render(m.condTable.View()), m.width, height)
	}
	return fitLines(m.viewports[m.activeTab].View(), m.width, height)
}

func (m *Model) renderTabContents() {
	if len(m.viewports) == 0 {
		return
	}
	width := m.width
	if width <= 0 {
		width = 80
	}
	_, bodyHeight, _ := m.layoutHeights()
	m.viewports[tabOverview].SetContent(renderOverview(m.results, m.cfg.Plot, width))
	m.viewports[tabFits].SetContent(renderFits(m.results, m.selected))
	r, ok := m.current()
	m.condTable = buildConditionTable(r, ok, m.cfg.Analysis.ZScore, width, bodyHeight)
	if m.activeTab == tabConditions {
		m.condTable.Focus()
	}
}

func renderOverview(results []model.ParticipantResult, plot model.PlotConfig, width int) string {
	if len(results) == 0 {
		return "No participants analyzed."
	}
	cards := renderSummaryCards(results, width)
	var buf bytes.Buffer
	if err := stats.RenderMeansPlot(&buf, results, plot, width, plotHeight, true); err != nil {
		return cards + "\n\n" + errorStyle.Render(err.Error())
	}
	return cards + "\n\n" + strings.TrimRight(buf.String(), "\n")
}

func renderSummaryCards(results []model.ParticipantResult, width int) string {
	var trials, retained, incorrect, slow int
	for _, r := range results {
		trials += r.RawTrials
		retained += len(r.Retained)
		incorrect += r.Cleaned.DroppedIncorrect
		slow += r.Cleaned.DroppedSlow
	}
	cards := []string{
		metricCard("Participants", strconv.Itoa(len(results))),
		metricCard("Trials", strconv.Itoa(trials)),
		metricCard("Retained", strconv.Itoa(retained)),
		metricCard("Incorrect", strconv.Itoa(incorrect)),
		metricCard("Too slow", strconv.Itoa(slow)),
	}
	if width < 80 {
		return strings.Join(cards, "\n")
	}
	row1 := lipgloss.JoinHorizontal(lipgloss.Top, cards[0], cards[1], cards[2])
	row2 := lipgloss.JoinHorizontal(lipgloss.Top, cards[3], cards[4])
	return lipgloss.JoinVertical(lipgloss.Left, row1, row2)
}

func metricCard(label, value string) string {
	content := fmt.Sprintf("%s\n%s", cardTitleStyle.Render(label), cardValueStyle.Render(value))
	return cardStyle.Render(content)
}

func renderFits(results []model.ParticipantResult, selected int) string {
	if len(results) == 0 {
		return "No participants analyzed."
	}
	var b strings.Builder
	for _, r := range results {
		b.WriteString(stats.R2Line(r))
		b.WriteByte('\n')
	}
	if selected >= 0 && selected < len(results) {
		r := results[selected]
		b.WriteByte('\n')
		b.WriteString(cardValueStyle.Render("Segments for " + r.ID))
		b.WriteByte('\n')
		b.WriteString(strings.Join(stats.FitTableLines(r), "\n"))
	}
	return b.String()
}

func buildConditionTable(r model.ParticipantResult, ok bool, z float64, width, height int) table.Model {
	columns, rows := buildConditionTableData(r, ok, z)
	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithHeight(maxInt(1, height-1)),
	)
	t.SetWidth(width)
	t.SetStyles(conditionTableStyles())
	return t
}

func buildConditionTableData(r model.ParticipantResult, ok bool, z float64) ([]table.Column, []table.Row) {
	columns := []table.Column{
		{Title: "Level", Width: 8},
		{Title: "N", Width: 4},
		{Title: "Outliers", Width: 8},
		{Title: "Mean (ms)", Width: 10},
		{Title: "SD", Width: 8},
		{Title: "SE", Width: 8},
		{Title: "CI ±", Width: 8},
	}
	if !ok {
		return columns, nil
	}
	rows := make([]table.Row, 0, len(r.Conditions))
	for _, c := range r.Conditions {
		rows = append(rows, table.Row{
			c.Label,
			strconv.Itoa(c.N),
			strconv.Itoa(len(c.Removed)),
			fmt.Sprintf("%.1f", c.Mean),
			fmt.Sprintf("%.1f", c.StdDev),
			fmt.Sprintf("%.2f", c.StdErr),
			fmt.Sprintf("%.2f", z*c.StdErr),
		})
	}
	return columns, rows
}

func conditionTableStyles() table.Styles {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Foreground(lipgloss.Color("#C0C0C0")).
		Bold(true).
		Padding(0, 1).
		PaddingLeft(0)
	styles.Cell = styles.Cell.
		Padding(0, 1).
		PaddingLeft(0)
	styles.Selected = styles.Cell.
		Foreground(lipgloss.Color("#F0F0F0")).
		Bold(true)
	return styles
}

func (m *Model) startSearch() (tea.Model, tea.Cmd) {
	m.searchMode = true
	m.searchError = ""
	m.searchInput.SetValue("")
	return m, m.searchInput.Focus()
}

func (m *Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.searchMode = false
		m.searchInput.Blur()
		return m, nil
	case tea.KeyEnter:
		if err := m.applySearch(); err != nil {
			m.searchError = err.Error()
			return m, nil
		}
		m.searchMode = false
		m.searchInput.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	return m, cmd
}

func (m *Model) applySearch() error {
	query := strings.TrimSpace(m.searchInput.Value())
	if query == "" {
		return fmt.Errorf("enter a participant ID")
	}
	for i, r := range m.results {
		if strings.EqualFold(r.ID, query) {
			m.selectParticipant(i)
			return nil
		}
	}
	for i, r := range m.results {
		if strings.HasPrefix(strings.ToLower(r.ID), strings.ToLower(query)) {
			m.selectParticipant(i)
			return nil
		}
	}
	return fmt.Errorf("no participant matches %q", query)
}

func (m *Model) renderSearchModal() string {
	body := []string{
		cardValueStyle.Render("Find Participant"),
		m.searchInput.View(),
		headerStyle.Render("Exact ID or prefix, case-insensitive."),
		headerStyle.Render("Enter to jump / Esc to cancel"),
	}
	if m.searchError != "" {
		body = append(body, errorStyle.Render(m.searchError))
	}
	box := modalStyle.Width(modalWidth(m.width)).Render(strings.Join(body, "\n"))
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func modalWidth(width int) int {
	return maxInt(40, minInt(width-4, 80))
}

func modalInnerWidth(width int) int {
	w := modalWidth(width)
	w -= 6 // 2 border + 4 padding
	if w < 10 {
		return 10
	}
	return w
}

func padLines(s string, width int) string {
	if width <= 0 || s == "" {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	return strings.Join(lines, "\n")
}

func padLine(line string, width int) string {
	lineWidth := lipgloss.Width(line)
	if lineWidth < width {
		return line + strings.Repeat(" ", width-lineWidth)
	}
	return line
}

func fitLines(s string, width, height int) string {
	if width <= 0 || height <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}
	return strings.Join(lines, "\n")
}

func truncateLine(s string, width int) string {
	if width <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	if width <= 3 {
		return string(runes[:width])
	}
	return string(runes[:width-3]) + "..."
}
