package markdown

import "github.com/atotto/clipboard"

// Clipboard abstracts the system clipboard so the editor can be exercised in
// tests without touching the host.
type Clipboard interface {
	ReadAll() (string, error)
	WriteAll(text string) error
}

// SystemClipboard talks to the real OS clipboard.
type SystemClipboard struct{}

func (SystemClipboard) ReadAll() (string, error) {
	return clipboard.ReadAll()
}

func (SystemClipboard) WriteAll(text string) error {
	return clipboard.WriteAll(text)
}

// Copy places the selected span on the clipboard and returns the collapsed
// cursor position. An empty selection copies nothing and leaves the cursor at
// the selection.
func Copy(cb Clipboard, text string, sel Selection) (int, error) {
	span, cursor := Extract(text, sel)
	if span == "" {
		return cursor, nil
	}
	if err := cb.WriteAll(span); err != nil {
		return cursor, err
	}
	return cursor, nil
}

// Paste splices the clipboard contents over the selection.
func Paste(cb Clipboard, text string, sel Selection) (Edit, error) {
	content, err := cb.ReadAll()
	if err != nil {
		sel = sel.clamp(text)
		return Edit{Text: text, Cursor: sel.Start}, err
	}
	return Splice(text, sel, content), nil
}
