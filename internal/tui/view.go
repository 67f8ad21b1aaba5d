package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

func (m *model) View() string {
	switch m.stage {
	case stageAPIKey:
		return m.viewAPIKey()
	case stageUpload:
		return m.viewUpload()
	case stageEditor:
		return m.viewEditor()
	default:
		return ""
	}
}

func (m *model) viewAPIKey() string {
	parts := []string{
		m.heroView(),
		sectionHeaderStyle.Render("Gemini API Key"),
		m.keyInput.View(),
		helperStyle.Render("The key is stored locally and reused next time. Enter to continue, Esc to quit."),
	}
	parts = append(parts, m.messageLines()...)
	return joinNonEmpty(parts)
}

func (m *model) viewUpload() string {
	if m.overlay != overlayNone {
		return joinNonEmpty([]string{m.heroView(), m.overlayView(), m.promptPanel()})
	}
	parts := []string{
		m.heroView(),
		sectionHeaderStyle.Render("Open a Document"),
		m.pathInput.View(),
		helperStyle.Render("Enter converts a PDF to Markdown; .md and .txt files open directly."),
		helperStyle.Render("Ctrl+P: saved projects • Ctrl+O: settings • Esc: quit"),
	}
	if recent := m.recentProjectsView(); recent != "" {
		parts = append(parts, recent)
	}
	if m.snap.Generating {
		parts = append(parts, helperStyle.Render(fmt.Sprintf("%s Converting document…", m.spinner.View())))
	}
	parts = append(parts, m.messageLines()...)
	parts = append(parts, m.promptPanel())
	return joinNonEmpty(parts)
}

func (m *model) viewEditor() string {
	if m.overlay != overlayNone {
		return joinNonEmpty([]string{m.statusBarView(), m.overlayView(), m.promptPanel()})
	}
	previewPane := paneStyle.Width(m.layout.previewWidth + 2).Render(joinNonEmpty([]string{
		paneTitleStyle.Render("Document"),
		m.preview.View(),
	}))
	editorPane := paneStyle.Width(m.layout.editorWidth + 2).Render(joinNonEmpty([]string{
		paneTitleStyle.Render("Markdown"),
		m.editor.View(),
	}))
	body := lipgloss.JoinHorizontal(lipgloss.Top, previewPane, editorPane)

	parts := []string{m.statusBarView(), body}
	parts = append(parts, m.messageLines()...)
	if m.helpVisible {
		parts = append(parts, m.keyLegendView())
	}
	parts = append(parts, m.promptPanel())
	return joinNonEmpty(parts)
}

func (m *model) statusBarView() string {
	name := m.currentProjectName()
	if name == "" {
		name = "Untitled Project"
	}
	stats := []string{
		fmt.Sprintf("Mode %s", m.modeLabel()),
		truncateTitle(name, 32),
		fmt.Sprintf("Model %s", m.snap.ModelID),
	}
	if m.snap.CurrentProjectID != 0 {
		stats = append(stats, "Auto-save on")
	}
	if m.markActive {
		stats = append(stats, "Mark set")
	}
	if m.snap.Generating {
		stats = append(stats, fmt.Sprintf("%s Generating", m.spinner.View()))
	}
	if m.lastJob.Status == jobStatusRunning {
		stats = append(stats, fmt.Sprintf("%s…", m.lastJob.Kind))
	}
	return statusBarStyle.Render(strings.Join(stats, "  •  "))
}

func (m *model) modeLabel() string {
	if m.mode == modeInsert {
		return "INSERT"
	}
	return "COMMAND"
}

func (m *model) messageLines() []string {
	var lines []string
	if m.snap.LastError != "" {
		lines = append(lines, errorStyle.Render(m.snap.LastError))
	}
	if m.localError != "" {
		lines = append(lines, errorStyle.Render(m.localError))
	}
	if m.snap.Notice != "" {
		lines = append(lines, noticeStyle.Render(m.snap.Notice))
	}
	if m.localInfo != "" {
		lines = append(lines, helperStyle.Render(m.localInfo))
	}
	return lines
}

func (m *model) promptPanel() string {
	if m.prompt == promptNone {
		return ""
	}
	var title string
	switch m.prompt {
	case promptSaveName:
		title = "Save Project"
	case promptExportName:
		title = "Export Markdown"
	case promptModelID:
		title = "Model"
	case promptNewKey:
		title = "Add API Key"
	}
	return promptBoxStyle.Render(joinNonEmpty([]string{
		sectionHeaderStyle.Render(title),
		m.promptInput.View(),
		helperStyle.Render("Enter to confirm, Esc to cancel."),
	}))
}

func (m *model) overlayView() string {
	switch m.overlay {
	case overlaySettings:
		return m.settingsView()
	case overlayProjects:
		return m.projectsView()
	}
	return ""
}

func (m *model) settingsView() string {
	var b strings.Builder
	b.WriteString(sectionHeaderStyle.Render("Settings"))
	b.WriteRune('\n')
	b.WriteString(helperStyle.Render("Model: ") + m.snap.ModelID)
	b.WriteRune('\n')
	b.WriteRune('\n')
	b.WriteString(helperStyle.Render("API keys"))
	b.WriteRune('\n')
	if len(m.snap.KnownAPIKeys) == 0 {
		b.WriteString(helperStyle.Render("  none saved yet"))
		b.WriteRune('\n')
	}
	for idx, key := range m.snap.KnownAPIKeys {
		line := fmt.Sprintf("  %d. %s", idx+1, maskKey(key))
		if key == m.snap.ActiveAPIKey {
			line += "  (active)"
			b.WriteString(currentLineStyle.Render(line))
		} else {
			b.WriteString(line)
		}
		b.WriteRune('\n')
	}
	b.WriteRune('\n')
	b.WriteString(helperStyle.Render("1-9: activate key • a: add key • m: change model • Esc: close"))
	return overlayBoxStyle.Render(b.String())
}

func (m *model) projectsView() string {
	var b strings.Builder
	b.WriteString(sectionHeaderStyle.Render("Saved Projects"))
	b.WriteRune('\n')
	for idx, p := range m.snap.Projects {
		label := fmt.Sprintf("%s  %s", truncateTitle(p.Name, 40), helperStyle.Render(p.LastModified.Format("2006-01-02 15:04")))
		if idx == m.projectCursor {
			b.WriteString(currentLineStyle.Render("▸ " + label))
		} else {
			b.WriteString("  " + label)
		}
		b.WriteRune('\n')
	}
	b.WriteRune('\n')
	b.WriteString(helperStyle.Render("j/k: move • Enter: open • d: delete • Esc: close"))
	return overlayBoxStyle.Render(b.String())
}

func (m *model) recentProjectsView() string {
	if len(m.snap.Projects) == 0 {
		return ""
	}
	rows := []string{sectionHeaderStyle.Render("Recent Projects")}
	limit := len(m.snap.Projects)
	if limit > recentProjectsLimit {
		limit = recentProjectsLimit
	}
	for _, p := range m.snap.Projects[:limit] {
		rows = append(rows, fmt.Sprintf("  %s  %s", truncateTitle(p.Name, 40), helperStyle.Render(p.LastModified.Format("2006-01-02 15:04"))))
	}
	return strings.Join(rows, "\n")
}

type keyHint struct {
	Key         string
	Description string
}

func (m *model) keyLegendView() string {
	hints := []keyHint{
		{"i", "Insert mode"},
		{"Esc", "Command mode"},
		{"v", "Set mark"},
		{"b", "Bold selection"},
		{"e", "Italic selection"},
		{"q", "Toggle quote"},
		{"y/p", "Copy / paste"},
		{"s", "Save project"},
		{"w", "Export .md"},
		{"r", "Regenerate"},
		{"l", "Projects"},
		{"o", "Settings"},
		{"x", "Close document"},
		{"PgUp/PgDn", "Scroll preview"},
		{"?", "Toggle this legend"},
	}
	rows := []string{sectionHeaderStyle.Render("Editor Keys")}
	const columns = 3
	for i := 0; i < len(hints); i += columns {
		end := i + columns
		if end > len(hints) {
			end = len(hints)
		}
		var cells []string
		for _, hint := range hints[i:end] {
			key := keyStyle.Render(hint.Key)
			desc := keyDescStyle.Render(" " + hint.Description)
			cells = append(cells, lipgloss.JoinHorizontal(lipgloss.Top, key, desc))
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}
	return legendBoxStyle.Render(strings.Join(rows, "\n"))
}

func (m *model) heroView() string {
	return lipgloss.JoinVertical(
		lipgloss.Left,
		renderLogo(),
		taglineStyle.Render(heroTagline),
	)
}

func joinNonEmpty(parts []string) string {
	filtered := make([]string, 0, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		filtered = append(filtered, part)
	}
	return strings.Join(filtered, "\n\n")
}

func renderLogo() string {
	if len(logoArtLines) == 0 {
		return ""
	}
	width := 0
	lineRunes := make([][]rune, len(logoArtLines))
	for i, line := range logoArtLines {
		runes := []rune(line)
		lineRunes[i] = runes
		if len(runes) > width {
			width = len(runes)
		}
	}
	width += 1
	height := len(logoArtLines) + 1

	type cell struct {
		r     rune
		style lipgloss.Style
	}

	grid := make([][]cell, height)
	for i := range grid {
		grid[i] = make([]cell, width)
	}

	for y, runes := range lineRunes {
		for x, r := range runes {
			if r == ' ' {
				continue
			}
			if y+1 < height && x+1 < width {
				grid[y+1][x+1] = cell{r: r, style: logoShadowStyle}
			}
		}
	}

	for y, runes := range lineRunes {
		for x, r := range runes {
			if r == ' ' {
				continue
			}
			grid[y][x] = cell{r: r, style: logoFaceStyle}
		}
	}

	lines := make([]string, height)
	for y, row := range grid {
		var b strings.Builder
		for _, c := range row {
			if c.r == 0 {
				b.WriteRune(' ')
				continue
			}
			b.WriteString(c.style.Render(string(c.r)))
		}
		lines[y] = b.String()
	}
	return logoContainerStyle.Render(strings.Join(lines, "\n"))
}

var (
	sectionHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("81"))
	errorStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	noticeStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("#a3be8c"))
	helperStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	pageHeaderStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("147"))

	heroAccentColor        = lipgloss.Color("#7f5af0")
	heroInkColor           = lipgloss.Color("#16141f")
	heroTextColor          = lipgloss.Color("#fffffe")
	heroSecondaryTextColor = lipgloss.Color("#94a1b2")

	taglineStyle       = lipgloss.NewStyle().Foreground(heroSecondaryTextColor).Italic(true)
	statusBarStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#0f0f0f")).Background(lipgloss.Color("#8ecae6")).Padding(0, 1)
	keyStyle           = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#0f0f0f")).Background(lipgloss.Color("#ffd166")).Padding(0, 1)
	keyDescStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#e0def4"))
	legendBoxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#56526e")).Padding(1, 2)
	overlayBoxStyle    = lipgloss.NewStyle().Border(lipgloss.DoubleBorder()).BorderForeground(heroAccentColor).Padding(1, 2)
	promptBoxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(heroAccentColor).Padding(0, 1)
	paneStyle          = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#56526e")).Padding(0, 1)
	paneTitleStyle     = lipgloss.NewStyle().Bold(true).Foreground(heroAccentColor)
	currentLineStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#0f0f0f")).Background(lipgloss.Color("#8ecae6"))
	logoFaceStyle      = lipgloss.NewStyle().Bold(true).Foreground(heroTextColor).Background(heroInkColor)
	logoShadowStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#0a0812"))
	logoContainerStyle = lipgloss.NewStyle().Padding(0, 1)
	logoArtLines       = []string{
		"██████╗   ██████╗   ███████╗  ███████╗   ██████╗  ██████╗   ██╗  ██████╗   ███████╗",
		"██╔══██╗  ██╔══██╗  ██╔════╝  ██╔════╝  ██╔════╝  ██╔══██╗  ██║  ██╔══██╗  ██╔════╝",
		"██████╔╝  ██║  ██║  █████╗    ███████╗  ██║       ██████╔╝  ██║  ██████╔╝  █████╗  ",
		"██╔═══╝   ██║  ██║  ██╔══╝    ╚════██║  ██║       ██╔══██╗  ██║  ██╔══██╗  ██╔══╝  ",
		"██║       ██████╔╝  ██║       ███████║  ╚██████╗  ██║  ██║  ██║  ██████╔╝  ███████╗",
		"╚═╝       ╚═════╝   ╚═╝       ╚══════╝   ╚═════╝  ╚═╝  ╚═╝  ╚═╝  ╚═════╝   ╚══════╝",
	}
)
