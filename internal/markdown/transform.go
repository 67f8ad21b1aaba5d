// Package markdown implements selection-aware formatting transforms for the
// editor buffer. All transforms are pure: they take the current text plus a
// selection and return the new text with a collapsed cursor.
package markdown

import "strings"

// Selection is a half-open [Start, End) byte-offset range into a buffer.
// Start and End may arrive in either order; transforms normalize them.
type Selection struct {
	Start int
	End   int
}

// Collapsed reports whether the selection is empty.
func (s Selection) Collapsed() bool {
	return s.Start == s.End
}

// clamp orders the bounds and clips them to [0, len(text)].
func (s Selection) clamp(text string) Selection {
	start, end := s.Start, s.End
	if start > end {
		start, end = end, start
	}
	if start < 0 {
		start = 0
	}
	if end > len(text) {
		end = len(text)
	}
	if start > end {
		start = end
	}
	return Selection{Start: start, End: end}
}

// Edit is the result of a transform: the rewritten buffer and a collapsed
// cursor position inside it.
type Edit struct {
	Text   string
	Cursor int
}

// ApplyBold wraps the selected span in ** markers. A collapsed selection is a
// no-op: the text comes back unchanged with the cursor at the selection.
func ApplyBold(text string, sel Selection) Edit {
	return wrapSelection(text, sel, "**")
}

// ApplyItalic wraps the selected span in single * markers.
func ApplyItalic(text string, sel Selection) Edit {
	return wrapSelection(text, sel, "*")
}

func wrapSelection(text string, sel Selection, marker string) Edit {
	sel = sel.clamp(text)
	if sel.Collapsed() {
		return Edit{Text: text, Cursor: sel.Start}
	}
	span := text[sel.Start:sel.End]
	var b strings.Builder
	b.Grow(len(text) + 2*len(marker))
	b.WriteString(text[:sel.Start])
	b.WriteString(marker)
	b.WriteString(span)
	b.WriteString(marker)
	b.WriteString(text[sel.End:])
	return Edit{
		Text:   b.String(),
		Cursor: sel.Start + len(span) + 2*len(marker),
	}
}

const quoteMarker = "> "

// ToggleQuote inserts or removes the "> " marker at the start of the
// paragraph containing the selection's lower bound. Only that single
// paragraph is touched, even when the selection spans line breaks.
func ToggleQuote(text string, sel Selection) Edit {
	sel = sel.clamp(text)
	start := sel.Start

	// Paragraph start is the offset just past the nearest preceding newline.
	paragraphStart := strings.LastIndexByte(text[:start], '\n') + 1

	if strings.HasPrefix(text[paragraphStart:], quoteMarker) {
		newText := text[:paragraphStart] + text[paragraphStart+len(quoteMarker):]
		shift := 0
		if start >= paragraphStart+len(quoteMarker) {
			shift = len(quoteMarker)
		}
		cursor := start - shift
		if cursor < paragraphStart {
			cursor = paragraphStart
		}
		if cursor > len(newText) {
			cursor = len(newText)
		}
		return Edit{Text: newText, Cursor: cursor}
	}

	newText := text[:paragraphStart] + quoteMarker + text[paragraphStart:]
	return Edit{Text: newText, Cursor: start + len(quoteMarker)}
}

// Extract returns the selected span and the collapsed cursor a copy leaves
// behind (the selection's upper bound).
func Extract(text string, sel Selection) (string, int) {
	sel = sel.clamp(text)
	return text[sel.Start:sel.End], sel.End
}

// Splice replaces the selected span with insert and collapses the cursor to
// the end of the inserted text.
func Splice(text string, sel Selection, insert string) Edit {
	sel = sel.clamp(text)
	var b strings.Builder
	b.Grow(len(text) - (sel.End - sel.Start) + len(insert))
	b.WriteString(text[:sel.Start])
	b.WriteString(insert)
	b.WriteString(text[sel.End:])
	return Edit{Text: b.String(), Cursor: sel.Start + len(insert)}
}
