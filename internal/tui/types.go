package tui

type stage int

const (
	stageAPIKey stage = iota
	stageUpload
	stageEditor
)

const heroTagline = "Turn PDFs into editable Markdown with PDFScribe."

const (
	minPaneWidth           = 30
	paneHorizontalPadding  = 4
	recentProjectsLimit    = 5
	apiKeyMaskVisibleRunes = 4
)

type editorMode int

const (
	modeCommand editorMode = iota
	modeInsert
)

type overlayKind int

const (
	overlayNone overlayKind = iota
	overlaySettings
	overlayProjects
)

type promptKind int

const (
	promptNone promptKind = iota
	promptSaveName
	promptExportName
	promptModelID
	promptNewKey
)

const (
	promptSavePlaceholder   = "Project name (blank keeps the default)…"
	promptExportPlaceholder = "Export file name, e.g. notes.md…"
	promptModelPlaceholder  = "Gemini model identifier…"
	promptKeyPlaceholder    = "Paste a Gemini API key…"
	uploadPlaceholder       = "Path to a PDF, Markdown, or text file…"
)
