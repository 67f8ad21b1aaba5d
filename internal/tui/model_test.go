package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dvoron/pdfscribe/internal/pdfview"
	"github.com/dvoron/pdfscribe/internal/project"
	"github.com/dvoron/pdfscribe/internal/session"
)

type fakeSession struct {
	state   session.State
	updates chan struct{}

	addedKeys     []string
	activatedKeys []string
	modelIDs      []string
	openedDocs    []string
	openedAny     [][]string
	generateCalls int
	markdownEdits []string
	savedNames    []string
	loadedIDs     []int64
	deletedIDs    []int64
	closeCalls    int
	exportNames   []string
	clearedErrors int
	clearedNotice int
}

func newFakeSession() *fakeSession {
	return &fakeSession{updates: make(chan struct{}, 1)}
}

func (f *fakeSession) Snapshot() session.State     { return f.state }
func (f *fakeSession) Updates() <-chan struct{}    { return f.updates }
func (f *fakeSession) AddAPIKey(key string)        { f.addedKeys = append(f.addedKeys, key) }
func (f *fakeSession) SetActiveAPIKey(key string)  { f.activatedKeys = append(f.activatedKeys, key) }
func (f *fakeSession) SetModelID(id string)        { f.modelIDs = append(f.modelIDs, id) }
func (f *fakeSession) OpenDocument(ref string)     { f.openedDocs = append(f.openedDocs, ref) }
func (f *fakeSession) OpenAny(refs []string)       { f.openedAny = append(f.openedAny, refs) }
func (f *fakeSession) Generate()                   { f.generateCalls++ }
func (f *fakeSession) UpdateMarkdown(text string)  { f.markdownEdits = append(f.markdownEdits, text) }
func (f *fakeSession) SaveProject(name string)     { f.savedNames = append(f.savedNames, name) }
func (f *fakeSession) LoadProject(id int64)        { f.loadedIDs = append(f.loadedIDs, id) }
func (f *fakeSession) CloseProject()               { f.closeCalls++ }
func (f *fakeSession) DeleteProject(id int64)      { f.deletedIDs = append(f.deletedIDs, id) }
func (f *fakeSession) ExportMarkdown(name string)  { f.exportNames = append(f.exportNames, name) }
func (f *fakeSession) ClearError()                 { f.clearedErrors++ }
func (f *fakeSession) ClearNotice()                { f.clearedNotice++ }

type memClipboard struct {
	content string
	readErr error
}

func (c *memClipboard) ReadAll() (string, error) {
	if c.readErr != nil {
		return "", c.readErr
	}
	return c.content, nil
}

func (c *memClipboard) WriteAll(text string) error {
	c.content = text
	return nil
}

func newTestModel(t *testing.T) (*model, *fakeSession, *memClipboard) {
	t.Helper()
	fake := newFakeSession()
	cb := &memClipboard{}
	m, ok := New(Config{Session: fake, Clipboard: cb}).(*model)
	if !ok {
		t.Fatal("New should return the concrete model")
	}
	return m, fake, cb
}

func editingState() session.State {
	return session.State{
		ActiveAPIKey:   "key-1",
		KnownAPIKeys:   []string{"key-1"},
		ModelID:        session.DefaultModelID,
		StagedDocument: "/data/documents/doc_1.pdf",
	}
}

func runeKey(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestStageFollowsSnapshotMode(t *testing.T) {
	m, _, _ := newTestModel(t)
	if m.stage != stageAPIKey {
		t.Fatalf("initial stage = %v, want %v", m.stage, stageAPIKey)
	}

	m.applySnapshot(session.State{ActiveAPIKey: "key-1"})
	if m.stage != stageUpload {
		t.Fatalf("stage after key = %v, want %v", m.stage, stageUpload)
	}

	m.applySnapshot(editingState())
	if m.stage != stageEditor {
		t.Fatalf("stage after staging = %v, want %v", m.stage, stageEditor)
	}
	if !m.editor.Focused() {
		t.Fatal("editor should gain focus when entering the editing stage")
	}

	m.applySnapshot(session.State{ActiveAPIKey: "key-1"})
	if m.stage != stageUpload {
		t.Fatalf("stage after close = %v, want %v", m.stage, stageUpload)
	}
}

func TestAPIKeySubmitForwardsTrimmedKey(t *testing.T) {
	m, fake, _ := newTestModel(t)
	m.keyInput.SetValue("  secret-key  ")

	m.handleAPIKeyStage(tea.KeyMsg{Type: tea.KeyEnter})

	if len(fake.addedKeys) != 1 || fake.addedKeys[0] != "secret-key" {
		t.Fatalf("added keys = %#v, want [secret-key]", fake.addedKeys)
	}
	if m.keyInput.Value() != "" {
		t.Fatalf("key input not cleared: %q", m.keyInput.Value())
	}
}

func TestAPIKeySubmitRejectsEmpty(t *testing.T) {
	m, fake, _ := newTestModel(t)
	m.handleAPIKeyStage(tea.KeyMsg{Type: tea.KeyEnter})
	if len(fake.addedKeys) != 0 {
		t.Fatalf("empty submit should not forward a key, got %#v", fake.addedKeys)
	}
	if m.localError == "" {
		t.Fatal("empty submit should surface a hint")
	}
}

func TestUploadEnterRoutesByExtension(t *testing.T) {
	m, fake, _ := newTestModel(t)
	m.applySnapshot(session.State{ActiveAPIKey: "key-1"})

	m.pathInput.SetValue("/tmp/paper.PDF")
	m.handleUploadStage(tea.KeyMsg{Type: tea.KeyEnter})
	if len(fake.openedDocs) != 1 || fake.openedDocs[0] != "/tmp/paper.PDF" {
		t.Fatalf("pdf path not routed to OpenDocument: %#v", fake.openedDocs)
	}

	m.pathInput.SetValue("/tmp/notes.md")
	m.handleUploadStage(tea.KeyMsg{Type: tea.KeyEnter})
	if len(fake.openedAny) != 1 || fake.openedAny[0][0] != "/tmp/notes.md" {
		t.Fatalf("markdown path not routed to OpenAny: %#v", fake.openedAny)
	}
}

func TestInsertModeForwardsEditsToSession(t *testing.T) {
	m, fake, _ := newTestModel(t)
	m.applySnapshot(editingState())

	m.handleCommandKey(runeKey("i"))
	if m.mode != modeInsert {
		t.Fatalf("mode = %v, want insert", m.mode)
	}

	m.handleEditorStage(runeKey("h"))
	m.handleEditorStage(runeKey("i"))

	if m.editor.Value() != "hi" {
		t.Fatalf("editor value = %q, want %q", m.editor.Value(), "hi")
	}
	if len(fake.markdownEdits) == 0 || fake.markdownEdits[len(fake.markdownEdits)-1] != "hi" {
		t.Fatalf("session should receive every edit, got %#v", fake.markdownEdits)
	}

	m.handleEditorStage(tea.KeyMsg{Type: tea.KeyEsc})
	if m.mode != modeCommand {
		t.Fatal("esc should return to command mode")
	}
}

func TestMarkAndBoldWrapsSelection(t *testing.T) {
	m, fake, _ := newTestModel(t)
	m.applySnapshot(editingState())
	m.editor.SetValue("alpha beta")

	m.setCursorOffset(0)
	m.handleCommandKey(runeKey("v"))
	m.setCursorOffset(5)
	m.handleCommandKey(runeKey("b"))

	if m.editor.Value() != "**alpha** beta" {
		t.Fatalf("bold result = %q", m.editor.Value())
	}
	if got := m.cursorOffset(); got != 9 {
		t.Fatalf("cursor after bold = %d, want 9", got)
	}
	if m.markActive {
		t.Fatal("mark should clear after a transform")
	}
	if last := fake.markdownEdits[len(fake.markdownEdits)-1]; last != "**alpha** beta" {
		t.Fatalf("session not told about transform: %q", last)
	}
}

func TestBoldWithoutMarkIsNoOp(t *testing.T) {
	m, fake, _ := newTestModel(t)
	m.applySnapshot(editingState())
	m.editor.SetValue("alpha")
	m.setCursorOffset(2)

	m.handleCommandKey(runeKey("b"))

	if m.editor.Value() != "alpha" {
		t.Fatalf("collapsed bold should not edit, got %q", m.editor.Value())
	}
	if len(fake.markdownEdits) != 0 {
		t.Fatalf("no edit should reach the session, got %#v", fake.markdownEdits)
	}
	if m.localInfo == "" {
		t.Fatal("collapsed transform should hint at setting a mark")
	}
}

func TestQuoteTogglesCurrentParagraph(t *testing.T) {
	m, _, _ := newTestModel(t)
	m.applySnapshot(editingState())
	m.editor.SetValue("first line")
	m.setCursorOffset(5)

	m.handleCommandKey(runeKey("q"))
	if m.editor.Value() != "> first line" {
		t.Fatalf("quote result = %q", m.editor.Value())
	}

	m.handleCommandKey(runeKey("q"))
	if m.editor.Value() != "first line" {
		t.Fatalf("unquote result = %q", m.editor.Value())
	}
}

func TestCopyAndPasteRoundTrip(t *testing.T) {
	m, fake, cb := newTestModel(t)
	m.applySnapshot(editingState())
	m.editor.SetValue("alpha beta")

	m.setCursorOffset(6)
	m.handleCommandKey(runeKey("v"))
	m.setCursorOffset(10)
	m.handleCommandKey(runeKey("y"))

	if cb.content != "beta" {
		t.Fatalf("clipboard content = %q, want %q", cb.content, "beta")
	}
	if m.markActive {
		t.Fatal("copy should collapse the mark")
	}

	m.setCursorOffset(0)
	m.handleCommandKey(runeKey("p"))
	if m.editor.Value() != "betaalpha beta" {
		t.Fatalf("paste result = %q", m.editor.Value())
	}
	if got := m.cursorOffset(); got != 4 {
		t.Fatalf("cursor after paste = %d, want 4", got)
	}
	if last := fake.markdownEdits[len(fake.markdownEdits)-1]; last != "betaalpha beta" {
		t.Fatalf("session not told about paste: %q", last)
	}
}

func TestPasteSurfacesClipboardError(t *testing.T) {
	m, _, cb := newTestModel(t)
	m.applySnapshot(editingState())
	m.editor.SetValue("alpha")
	cb.readErr = errors.New("no clipboard")

	m.handleCommandKey(runeKey("p"))

	if m.editor.Value() != "alpha" {
		t.Fatalf("failed paste should not edit, got %q", m.editor.Value())
	}
	if !strings.Contains(m.localError, "no clipboard") {
		t.Fatalf("error not surfaced: %q", m.localError)
	}
}

func TestSavePromptSubmitsName(t *testing.T) {
	m, fake, _ := newTestModel(t)
	m.applySnapshot(editingState())

	m.handleCommandKey(runeKey("s"))
	if m.prompt != promptSaveName {
		t.Fatalf("prompt = %v, want save prompt", m.prompt)
	}
	m.promptInput.SetValue("Reading Notes")
	m.handlePromptKey(tea.KeyMsg{Type: tea.KeyEnter})

	if len(fake.savedNames) != 1 || fake.savedNames[0] != "Reading Notes" {
		t.Fatalf("saved names = %#v", fake.savedNames)
	}
	if m.prompt != promptNone {
		t.Fatal("prompt should close after submit")
	}
}

func TestSavePromptAllowsBlankName(t *testing.T) {
	m, fake, _ := newTestModel(t)
	m.applySnapshot(editingState())

	m.handleCommandKey(runeKey("s"))
	m.handlePromptKey(tea.KeyMsg{Type: tea.KeyEnter})

	if len(fake.savedNames) != 1 || fake.savedNames[0] != "" {
		t.Fatalf("blank save should still reach the session, got %#v", fake.savedNames)
	}
}

func TestProjectsOverlayLoadsSelection(t *testing.T) {
	m, fake, _ := newTestModel(t)
	state := editingState()
	state.Projects = []project.Project{
		{ID: 7, Name: "Newest", LastModified: time.Now()},
		{ID: 3, Name: "Older", LastModified: time.Now().Add(-time.Hour)},
	}
	m.applySnapshot(state)

	m.handleCommandKey(runeKey("l"))
	if m.overlay != overlayProjects {
		t.Fatalf("overlay = %v, want projects", m.overlay)
	}

	m.handleOverlayKey(runeKey("j"))
	m.handleOverlayKey(tea.KeyMsg{Type: tea.KeyEnter})

	if len(fake.loadedIDs) != 1 || fake.loadedIDs[0] != 3 {
		t.Fatalf("loaded ids = %#v, want [3]", fake.loadedIDs)
	}
	if m.overlay != overlayNone {
		t.Fatal("overlay should close after loading")
	}
}

func TestProjectsOverlayDeleteKeepsOverlayOpen(t *testing.T) {
	m, fake, _ := newTestModel(t)
	state := editingState()
	state.Projects = []project.Project{{ID: 7, Name: "Only", LastModified: time.Now()}}
	m.applySnapshot(state)

	m.handleCommandKey(runeKey("l"))
	m.handleOverlayKey(runeKey("d"))

	if len(fake.deletedIDs) != 1 || fake.deletedIDs[0] != 7 {
		t.Fatalf("deleted ids = %#v, want [7]", fake.deletedIDs)
	}
	if m.overlay != overlayProjects {
		t.Fatal("delete should leave the overlay open")
	}
}

func TestProjectsOverlayRefusesWhenEmpty(t *testing.T) {
	m, _, _ := newTestModel(t)
	m.applySnapshot(editingState())

	m.handleCommandKey(runeKey("l"))

	if m.overlay != overlayNone {
		t.Fatal("overlay should not open without saved projects")
	}
	if m.localInfo == "" {
		t.Fatal("expected a hint about missing projects")
	}
}

func TestSettingsOverlayActivatesNumberedKey(t *testing.T) {
	m, fake, _ := newTestModel(t)
	state := editingState()
	state.KnownAPIKeys = []string{"key-1", "key-2"}
	m.applySnapshot(state)

	m.handleCommandKey(runeKey("o"))
	if m.overlay != overlaySettings {
		t.Fatalf("overlay = %v, want settings", m.overlay)
	}
	m.handleOverlayKey(runeKey("2"))

	if len(fake.activatedKeys) != 1 || fake.activatedKeys[0] != "key-2" {
		t.Fatalf("activated keys = %#v, want [key-2]", fake.activatedKeys)
	}
}

func TestSettingsModelPromptForwardsID(t *testing.T) {
	m, fake, _ := newTestModel(t)
	m.applySnapshot(editingState())

	m.handleCommandKey(runeKey("o"))
	m.handleOverlayKey(runeKey("m"))
	if m.prompt != promptModelID {
		t.Fatalf("prompt = %v, want model prompt", m.prompt)
	}
	if m.promptInput.Value() != session.DefaultModelID {
		t.Fatalf("model prompt should prefill the current id, got %q", m.promptInput.Value())
	}
	m.promptInput.SetValue("gemini-2.5-pro")
	m.handlePromptKey(tea.KeyMsg{Type: tea.KeyEnter})

	if len(fake.modelIDs) != 1 || fake.modelIDs[0] != "gemini-2.5-pro" {
		t.Fatalf("model ids = %#v", fake.modelIDs)
	}
}

func TestRegenerateKeyDelegates(t *testing.T) {
	m, fake, _ := newTestModel(t)
	m.applySnapshot(editingState())

	m.handleCommandKey(runeKey("r"))

	if fake.generateCalls != 1 {
		t.Fatalf("generate calls = %d, want 1", fake.generateCalls)
	}
}

func TestCloseKeyDelegates(t *testing.T) {
	m, fake, _ := newTestModel(t)
	m.applySnapshot(editingState())

	m.handleCommandKey(runeKey("x"))

	if fake.closeCalls != 1 {
		t.Fatalf("close calls = %d, want 1", fake.closeCalls)
	}
}

func TestSnapshotMarkdownReplacesEditorBuffer(t *testing.T) {
	m, _, _ := newTestModel(t)
	state := editingState()
	state.Markdown = "# Converted"
	m.applySnapshot(state)

	if m.editor.Value() != "# Converted" {
		t.Fatalf("editor value = %q, want converted text", m.editor.Value())
	}
}

func TestSnapshotEchoKeepsEditorCursor(t *testing.T) {
	m, _, _ := newTestModel(t)
	m.applySnapshot(editingState())
	m.editor.SetValue("draft text")
	m.setCursorOffset(5)

	state := editingState()
	state.Markdown = "draft text"
	m.applySnapshot(state)

	if got := m.cursorOffset(); got != 5 {
		t.Fatalf("echoed snapshot moved the cursor to %d", got)
	}
}

func TestKeyPressDismissesOneShotMessages(t *testing.T) {
	m, fake, _ := newTestModel(t)
	state := editingState()
	state.LastError = "API Key missing"
	state.Notice = "Saved"
	m.applySnapshot(state)

	m.Update(runeKey("v"))

	if fake.clearedErrors != 1 || fake.clearedNotice != 1 {
		t.Fatalf("messages not acknowledged: errors=%d notices=%d", fake.clearedErrors, fake.clearedNotice)
	}
}

func TestPreviewResultRendersPages(t *testing.T) {
	m, _, _ := newTestModel(t)
	m.applySnapshot(editingState())
	m.previewDoc = &pdfview.Document{
		Path: "/data/documents/doc_1.pdf",
		Pages: []pdfview.Page{
			{Number: 1, Text: "first page body"},
			{Number: 2, Text: ""},
		},
	}

	rendered := m.renderPages(40)
	if !strings.Contains(rendered, "Page 1 of 2") {
		t.Fatalf("page header missing: %q", rendered)
	}
	if !strings.Contains(rendered, "first page body") {
		t.Fatalf("page text missing: %q", rendered)
	}
	if !strings.Contains(rendered, "no extractable text") {
		t.Fatalf("empty page placeholder missing: %q", rendered)
	}
}

func TestStalePreviewResultIgnored(t *testing.T) {
	m, _, _ := newTestModel(t)
	m.applySnapshot(editingState())

	m.Update(previewResultMsg{path: "/data/documents/doc_0.pdf", err: errors.New("gone")})

	if m.previewErr != "" {
		t.Fatalf("stale result should be dropped, got err %q", m.previewErr)
	}
}

func TestCursorOffsetRoundTripMultiline(t *testing.T) {
	m, _, _ := newTestModel(t)
	m.applySnapshot(editingState())
	value := "héllo wörld\nsecond line\n\nfourth"
	m.editor.SetValue(value)

	offsets := []int{0, 1, len("héllo"), len("héllo wörld"), len("héllo wörld") + 1, len(value) - 2, len(value)}
	for _, want := range offsets {
		m.setCursorOffset(want)
		if got := m.cursorOffset(); got != want {
			t.Fatalf("round trip offset %d, got %d", want, got)
		}
	}
}
