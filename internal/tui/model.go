package tui

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/dvoron/pdfscribe/internal/markdown"
	"github.com/dvoron/pdfscribe/internal/pdfview"
	"github.com/dvoron/pdfscribe/internal/session"
)

// Session is the command surface the UI drives. *session.Controller satisfies
// it; tests substitute a recorder.
type Session interface {
	Snapshot() session.State
	Updates() <-chan struct{}

	AddAPIKey(key string)
	SetActiveAPIKey(key string)
	SetModelID(id string)

	OpenDocument(sourceRef string)
	OpenAny(sourceRefs []string)
	Generate()

	UpdateMarkdown(text string)
	SaveProject(name string)
	LoadProject(id int64)
	CloseProject()
	DeleteProject(id int64)
	ExportMarkdown(name string)

	ClearError()
	ClearNotice()
}

// Config wires runtime collaborators into the TUI program.
type Config struct {
	Session   Session
	Clipboard markdown.Clipboard
}

// New returns a tea.Model ready to be mounted into a Program.
func New(config Config) tea.Model {
	if config.Clipboard == nil {
		config.Clipboard = markdown.SystemClipboard{}
	}

	keyInput := textinput.New()
	keyInput.Placeholder = promptKeyPlaceholder
	keyInput.EchoMode = textinput.EchoPassword
	keyInput.CharLimit = 120
	keyInput.Width = 60
	keyInput.Focus()

	pathInput := textinput.New()
	pathInput.Placeholder = uploadPlaceholder
	pathInput.CharLimit = 512
	pathInput.Width = 70

	promptInput := textinput.New()
	promptInput.CharLimit = 256
	promptInput.Width = 60

	editor := textarea.New()
	editor.Placeholder = "Markdown appears here after conversion…"
	editor.CharLimit = 0
	editor.ShowLineNumbers = false
	editor.SetWidth(60)
	editor.SetHeight(20)

	preview := viewport.New(60, 20)
	preview.MouseWheelEnabled = true

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	m := &model{
		config:      config,
		stage:       stageAPIKey,
		mode:        modeCommand,
		keyInput:    keyInput,
		pathInput:   pathInput,
		promptInput: promptInput,
		editor:      editor,
		preview:     preview,
		spinner:     spin,
		jobs:        newJobBus(),
		layout:      newPageLayout(),
	}
	if config.Session != nil {
		m.applySnapshot(config.Session.Snapshot())
	}
	m.refreshPreview()
	return m
}

type model struct {
	config Config

	stage   stage
	mode    editorMode
	overlay overlayKind
	prompt  promptKind

	snap session.State

	keyInput    textinput.Model
	pathInput   textinput.Model
	promptInput textinput.Model
	editor      textarea.Model
	preview     viewport.Model
	spinner     spinner.Model

	jobs    *jobBus
	lastJob jobSnapshot

	previewPath string
	previewDoc  *pdfview.Document
	previewErr  string

	markOffset int
	markActive bool

	projectCursor int

	localInfo  string
	localError string

	helpVisible bool
	layout      pageLayout
}

type snapshotTickMsg struct{}

type previewResultMsg struct {
	path string
	doc  *pdfview.Document
	err  error
}

func (m *model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink}
	if m.config.Session != nil {
		cmds = append(cmds, listenForUpdates(m.config.Session.Updates()))
	}
	return tea.Batch(cmds...)
}

func listenForUpdates(updates <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-updates; !ok {
			return nil
		}
		return snapshotTickMsg{}
	}
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		if m.snap.Generating {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil
	case tea.WindowSizeMsg:
		m.layout.Update(msg.Width, msg.Height)
		m.editor.SetWidth(m.layout.editorWidth)
		m.editor.SetHeight(m.layout.paneHeight)
		m.preview.Width = m.layout.previewWidth
		m.preview.Height = m.layout.paneHeight
		m.refreshPreview()
		return m, nil
	case snapshotTickMsg:
		cmds := m.applySnapshot(m.config.Session.Snapshot())
		cmds = append(cmds, listenForUpdates(m.config.Session.Updates()))
		return m, tea.Batch(cmds...)
	case previewResultMsg:
		if msg.path != m.snap.StagedDocument {
			return m, nil
		}
		if msg.err != nil {
			m.previewDoc = nil
			m.previewErr = msg.err.Error()
		} else {
			m.previewDoc = msg.doc
			m.previewErr = ""
		}
		m.refreshPreview()
		return m, nil
	case jobSignalMsg:
		m.lastJob = msg.Snapshot
		return m, nil
	case jobResultEnvelope:
		m.lastJob = msg.Snapshot
		if msg.Payload != nil {
			return m.Update(msg.Payload)
		}
		return m, nil
	case tea.MouseMsg:
		if m.stage == stageEditor && m.overlay == overlayNone {
			var cmd tea.Cmd
			m.preview, cmd = m.preview.Update(msg)
			return m, cmd
		}
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		m.dismissMessages()
		return m.handleKey(msg)
	}
	return m, nil
}

// dismissMessages acknowledges the one-shot notice and error lines. They stay
// visible until the next key press, matching a toast that fades on activity.
func (m *model) dismissMessages() {
	if m.config.Session == nil {
		return
	}
	if m.snap.LastError != "" {
		m.config.Session.ClearError()
	}
	if m.snap.Notice != "" {
		m.config.Session.ClearNotice()
	}
	m.localInfo = ""
	m.localError = ""
}

func (m *model) applySnapshot(snap session.State) []tea.Cmd {
	prev := m.snap
	m.snap = snap
	var cmds []tea.Cmd

	if snap.Markdown != prev.Markdown && snap.Markdown != m.editor.Value() {
		m.editor.SetValue(snap.Markdown)
		m.markActive = false
	}
	if snap.StagedDocument != m.previewPath {
		m.previewPath = snap.StagedDocument
		m.previewDoc = nil
		m.previewErr = ""
		if snap.StagedDocument != "" && isPDFPath(snap.StagedDocument) {
			cmds = append(cmds, m.loadPreviewCmd(snap.StagedDocument))
		}
		m.refreshPreview()
	}
	if len(snap.Projects) > 0 && m.projectCursor >= len(snap.Projects) {
		m.projectCursor = len(snap.Projects) - 1
	}
	m.syncStage()
	if snap.Generating && !prev.Generating {
		cmds = append(cmds, m.spinner.Tick)
	}
	return cmds
}

func stageForMode(mode session.ViewMode) stage {
	switch mode {
	case session.ModeNeedsAPIKey:
		return stageAPIKey
	case session.ModeUpload:
		return stageUpload
	default:
		return stageEditor
	}
}

func (m *model) syncStage() {
	next := stageForMode(m.snap.Mode())
	if next == m.stage {
		return
	}
	m.stage = next
	m.prompt = promptNone
	m.promptInput.Blur()
	switch next {
	case stageAPIKey:
		m.keyInput.SetValue("")
		m.keyInput.Focus()
	case stageUpload:
		m.pathInput.SetValue("")
		m.pathInput.Focus()
		m.overlay = overlayNone
	case stageEditor:
		m.pathInput.Blur()
		m.mode = modeCommand
		m.editor.Focus()
		m.markActive = false
	}
}

func (m *model) loadPreviewCmd(path string) tea.Cmd {
	return m.jobs.Start(jobKindPreview, func(ctx context.Context) (tea.Msg, error) {
		doc, err := pdfview.Load(path)
		if err != nil {
			return previewResultMsg{path: path, err: err}, err
		}
		return previewResultMsg{path: path, doc: doc}, nil
	})
}

func isPDFPath(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

func (m *model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.prompt != promptNone {
		return m.handlePromptKey(msg)
	}
	if m.overlay != overlayNone {
		return m.handleOverlayKey(msg)
	}
	switch m.stage {
	case stageAPIKey:
		return m.handleAPIKeyStage(msg)
	case stageUpload:
		return m.handleUploadStage(msg)
	case stageEditor:
		return m.handleEditorStage(msg)
	}
	return m, nil
}

func (m *model) handleAPIKeyStage(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		return m, tea.Quit
	case tea.KeyEnter:
		key := strings.TrimSpace(m.keyInput.Value())
		if key == "" {
			m.localError = "Enter a key to continue."
			return m, nil
		}
		m.keyInput.SetValue("")
		m.config.Session.AddAPIKey(key)
		return m, nil
	}
	var cmd tea.Cmd
	m.keyInput, cmd = m.keyInput.Update(msg)
	return m, cmd
}

func (m *model) handleUploadStage(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		return m, tea.Quit
	case tea.KeyCtrlP:
		m.openProjectsOverlay()
		return m, nil
	case tea.KeyCtrlO:
		m.overlay = overlaySettings
		return m, nil
	case tea.KeyEnter:
		path := strings.TrimSpace(m.pathInput.Value())
		if path == "" {
			return m, nil
		}
		m.pathInput.SetValue("")
		if isPDFPath(path) {
			m.config.Session.OpenDocument(path)
		} else {
			m.config.Session.OpenAny([]string{path})
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.pathInput, cmd = m.pathInput.Update(msg)
	return m, cmd
}

func (m *model) handleEditorStage(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.mode == modeInsert {
		if msg.Type == tea.KeyEsc {
			m.mode = modeCommand
			return m, nil
		}
		before := m.editor.Value()
		var cmd tea.Cmd
		m.editor, cmd = m.editor.Update(msg)
		if after := m.editor.Value(); after != before {
			m.markActive = false
			m.config.Session.UpdateMarkdown(after)
		}
		return m, cmd
	}
	return m.handleCommandKey(msg)
}

func (m *model) handleCommandKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		if m.markActive {
			m.markActive = false
			m.localInfo = "Mark cleared."
		}
		return m, nil
	case tea.KeyUp, tea.KeyDown, tea.KeyLeft, tea.KeyRight, tea.KeyHome, tea.KeyEnd:
		var cmd tea.Cmd
		m.editor, cmd = m.editor.Update(msg)
		return m, cmd
	case tea.KeyPgUp:
		m.preview.ViewUp()
		return m, nil
	case tea.KeyPgDown:
		m.preview.ViewDown()
		return m, nil
	case tea.KeyCtrlP:
		m.openProjectsOverlay()
		return m, nil
	case tea.KeyCtrlO:
		m.overlay = overlaySettings
		return m, nil
	}

	switch msg.String() {
	case "i":
		m.mode = modeInsert
		m.editor.Focus()
		return m, textarea.Blink
	case "v":
		if m.markActive {
			m.markActive = false
			m.localInfo = "Mark cleared."
		} else {
			m.markOffset = m.cursorOffset()
			m.markActive = true
			m.localInfo = "Mark set. Move the cursor, then b/e/q/y."
		}
		return m, nil
	case "b":
		m.applyTransform(markdown.ApplyBold)
		return m, nil
	case "e":
		m.applyTransform(markdown.ApplyItalic)
		return m, nil
	case "q":
		m.applyTransform(markdown.ToggleQuote)
		return m, nil
	case "y":
		m.copySelection()
		return m, nil
	case "p":
		m.pasteClipboard()
		return m, nil
	case "s":
		m.openPrompt(promptSaveName, m.currentProjectName(), promptSavePlaceholder)
		return m, nil
	case "w":
		m.openPrompt(promptExportName, "", promptExportPlaceholder)
		return m, nil
	case "r":
		m.config.Session.Generate()
		return m, m.spinner.Tick
	case "l":
		m.openProjectsOverlay()
		return m, nil
	case "o":
		m.overlay = overlaySettings
		return m, nil
	case "x":
		m.config.Session.CloseProject()
		return m, nil
	case "?":
		m.helpVisible = !m.helpVisible
		return m, nil
	}
	return m, nil
}

func (m *model) handlePromptKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.closePrompt()
		return m, nil
	case tea.KeyEnter:
		value := strings.TrimSpace(m.promptInput.Value())
		kind := m.prompt
		m.closePrompt()
		switch kind {
		case promptSaveName:
			m.config.Session.SaveProject(value)
		case promptExportName:
			if value != "" {
				m.config.Session.ExportMarkdown(value)
			}
		case promptModelID:
			if value != "" {
				m.config.Session.SetModelID(value)
			}
		case promptNewKey:
			if value != "" {
				m.config.Session.AddAPIKey(value)
			}
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.promptInput, cmd = m.promptInput.Update(msg)
	return m, cmd
}

func (m *model) handleOverlayKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyEsc {
		m.overlay = overlayNone
		return m, nil
	}
	switch m.overlay {
	case overlaySettings:
		return m.handleSettingsKey(msg)
	case overlayProjects:
		return m.handleProjectsKey(msg)
	}
	return m, nil
}

func (m *model) handleSettingsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "a":
		m.openPrompt(promptNewKey, "", promptKeyPlaceholder)
		return m, nil
	case "m":
		m.openPrompt(promptModelID, m.snap.ModelID, promptModelPlaceholder)
		return m, nil
	}
	if key := msg.String(); len(key) == 1 && key[0] >= '1' && key[0] <= '9' {
		idx := int(key[0] - '1')
		if idx < len(m.snap.KnownAPIKeys) {
			m.config.Session.SetActiveAPIKey(m.snap.KnownAPIKeys[idx])
			m.localInfo = "Active key switched."
		}
	}
	return m, nil
}

func (m *model) handleProjectsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	projects := m.snap.Projects
	switch msg.String() {
	case "j", "down":
		if m.projectCursor < len(projects)-1 {
			m.projectCursor++
		}
		return m, nil
	case "k", "up":
		if m.projectCursor > 0 {
			m.projectCursor--
		}
		return m, nil
	case "enter":
		if m.projectCursor < len(projects) {
			m.overlay = overlayNone
			m.config.Session.LoadProject(projects[m.projectCursor].ID)
		}
		return m, nil
	case "d":
		if m.projectCursor < len(projects) {
			m.config.Session.DeleteProject(projects[m.projectCursor].ID)
		}
		return m, nil
	}
	return m, nil
}

func (m *model) openProjectsOverlay() {
	if len(m.snap.Projects) == 0 {
		m.localInfo = "No saved projects yet."
		return
	}
	m.projectCursor = 0
	m.overlay = overlayProjects
}

func (m *model) openPrompt(kind promptKind, prefill, placeholder string) {
	m.prompt = kind
	m.promptInput.Placeholder = placeholder
	m.promptInput.SetValue(prefill)
	m.promptInput.CursorEnd()
	m.promptInput.Focus()
	if kind == promptNewKey {
		m.promptInput.EchoMode = textinput.EchoPassword
	} else {
		m.promptInput.EchoMode = textinput.EchoNormal
	}
}

func (m *model) closePrompt() {
	m.prompt = promptNone
	m.promptInput.SetValue("")
	m.promptInput.Blur()
}

func (m *model) currentProjectName() string {
	for _, p := range m.snap.Projects {
		if p.ID == m.snap.CurrentProjectID {
			return p.Name
		}
	}
	return ""
}

// currentSelection spans mark to cursor, collapsed at the cursor when no mark
// is active. Offsets are byte positions into the editor buffer.
func (m *model) currentSelection() markdown.Selection {
	cursor := m.cursorOffset()
	if !m.markActive {
		return markdown.Selection{Start: cursor, End: cursor}
	}
	return markdown.Selection{Start: m.markOffset, End: cursor}
}

func (m *model) applyTransform(fn func(string, markdown.Selection) markdown.Edit) {
	value := m.editor.Value()
	sel := m.currentSelection()
	edit := fn(value, sel)
	if edit.Text == value {
		if sel.Collapsed() {
			m.localInfo = "Select text first: v sets the mark."
		}
		return
	}
	m.editor.SetValue(edit.Text)
	m.setCursorOffset(edit.Cursor)
	m.markActive = false
	m.config.Session.UpdateMarkdown(edit.Text)
}

func (m *model) copySelection() {
	sel := m.currentSelection()
	if sel.Collapsed() {
		m.localInfo = "Nothing selected to copy."
		return
	}
	cursor, err := markdown.Copy(m.config.Clipboard, m.editor.Value(), sel)
	if err != nil {
		m.localError = fmt.Sprintf("Clipboard copy failed: %v", err)
		return
	}
	m.setCursorOffset(cursor)
	m.markActive = false
	m.localInfo = "Selection copied."
}

func (m *model) pasteClipboard() {
	edit, err := markdown.Paste(m.config.Clipboard, m.editor.Value(), m.currentSelection())
	if err != nil {
		m.localError = fmt.Sprintf("Clipboard paste failed: %v", err)
		return
	}
	m.editor.SetValue(edit.Text)
	m.setCursorOffset(edit.Cursor)
	m.markActive = false
	m.config.Session.UpdateMarkdown(edit.Text)
}

// cursorOffset converts the textarea's row/column cursor into a byte offset
// into Value(). Columns are rune counts within the line.
func (m *model) cursorOffset() int {
	value := m.editor.Value()
	lines := strings.Split(value, "\n")
	row := m.editor.Line()
	if row >= len(lines) {
		row = len(lines) - 1
	}
	info := m.editor.LineInfo()
	col := info.StartColumn + info.ColumnOffset
	offset := 0
	for i := 0; i < row; i++ {
		offset += len(lines[i]) + 1
	}
	runes := []rune(lines[row])
	if col > len(runes) {
		col = len(runes)
	}
	return offset + len(string(runes[:col]))
}

func (m *model) setCursorOffset(target int) {
	value := m.editor.Value()
	if target < 0 {
		target = 0
	}
	if target > len(value) {
		target = len(value)
	}
	row := strings.Count(value[:target], "\n")
	lineStart := strings.LastIndexByte(value[:target], '\n') + 1
	col := len([]rune(value[lineStart:target]))

	// CursorUp and CursorDown walk soft-wrapped rows. Stepping from a line
	// boundary makes each iteration cross exactly one real line.
	for guard := 0; m.editor.Line() > 0 && guard < 10000; guard++ {
		m.editor.CursorStart()
		m.editor.CursorUp()
	}
	for guard := 0; m.editor.Line() < row && guard < 10000; guard++ {
		m.editor.CursorEnd()
		m.editor.CursorDown()
	}
	m.editor.SetCursor(col)
}
