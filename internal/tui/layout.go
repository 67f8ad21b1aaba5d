package tui

import (
	"fmt"
	"strings"

	"github.com/muesli/reflow/wordwrap"
)

type pageLayout struct {
	windowWidth  int
	windowHeight int
	previewWidth int
	editorWidth  int
	paneHeight   int
}

func newPageLayout() pageLayout {
	return pageLayout{
		previewWidth: 60,
		editorWidth:  60,
		paneHeight:   20,
	}
}

func (l *pageLayout) Update(width, height int) {
	l.windowWidth = width
	l.windowHeight = height
	inner := width - paneHorizontalPadding
	if inner < 2*minPaneWidth {
		inner = 2 * minPaneWidth
	}
	l.previewWidth = inner / 2
	l.editorWidth = inner - l.previewWidth

	const chrome = 9
	usable := height - chrome
	if usable < 8 {
		usable = 8
	}
	l.paneHeight = usable
}

// refreshPreview rebuilds the preview viewport from the loaded document. The
// extracted text is a reading aid; conversion always feeds the raw PDF bytes
// to the model.
func (m *model) refreshPreview() {
	wrap := m.preview.Width - 2
	if wrap < 20 {
		wrap = 20
	}
	switch {
	case m.previewPath == "":
		m.preview.SetContent(helperStyle.Render("Open a document to see it here."))
	case !isPDFPath(m.previewPath):
		m.preview.SetContent(helperStyle.Render("Text document loaded. Edit it on the right."))
	case m.previewErr != "":
		m.preview.SetContent(errorStyle.Render(wordwrap.String("Preview unavailable: "+m.previewErr, wrap)))
	case m.previewDoc == nil:
		m.preview.SetContent(helperStyle.Render(fmt.Sprintf("%s Extracting pages…", m.spinner.View())))
	default:
		m.preview.SetContent(m.renderPages(wrap))
	}
	m.preview.SetYOffset(0)
}

func (m *model) renderPages(wrap int) string {
	var b strings.Builder
	for idx, page := range m.previewDoc.Pages {
		if idx > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(pageHeaderStyle.Render(fmt.Sprintf("— Page %d of %d —", page.Number, m.previewDoc.PageCount())))
		b.WriteRune('\n')
		if strings.TrimSpace(page.Text) == "" {
			b.WriteString(helperStyle.Render("(no extractable text on this page)"))
			continue
		}
		b.WriteString(wordwrap.String(page.Text, wrap))
	}
	if b.Len() == 0 {
		return helperStyle.Render("The document has no pages.")
	}
	return b.String()
}

func maskKey(key string) string {
	runes := []rune(key)
	if len(runes) <= apiKeyMaskVisibleRunes {
		return strings.Repeat("•", len(runes))
	}
	return string(runes[:apiKeyMaskVisibleRunes]) + strings.Repeat("•", 4)
}

func truncateTitle(title string, limit int) string {
	runes := []rune(title)
	if len(runes) <= limit {
		return title
	}
	return strings.TrimSpace(string(runes[:limit])) + "…"
}
