// Package buffer applies script replacements to an in-memory editor buffer.
package buffer

import (
	"fmt"
	"strings"

	"codeberg.org/sigterm-de/boopscript/internal/engine"
	"codeberg.org/sigterm-de/boopscript/internal/logging"
)

// Buffer is editor text with an optional selection and a cursor. Offsets are
// in runes. A selection is active when SelStart < SelEnd.
type Buffer struct {
	Text     string
	SelStart int
	SelEnd   int
	Cursor   int
}

// New returns a buffer holding text with the cursor at the end.
func New(text string) *Buffer {
	n := len([]rune(text))
	return &Buffer{Text: text, Cursor: n}
}

// Select marks [start, end) as selected, clamped to the text.
func (b *Buffer) Select(start, end int) {
	n := len([]rune(b.Text))
	start = min(max(start, 0), n)
	end = min(max(end, 0), n)
	if end < start {
		start, end = end, start
	}
	b.SelStart, b.SelEnd = start, end
	b.Cursor = end
}

// HasSelection reports whether a non-empty selection is active.
func (b *Buffer) HasSelection() bool { return b.SelStart < b.SelEnd }

// Selection returns the selected text, or nil without a selection.
func (b *Buffer) Selection() *string {
	if !b.HasSelection() {
		return nil
	}
	sel := string([]rune(b.Text)[b.SelStart:b.SelEnd])
	return &sel
}

// Apply performs r on the buffer. NUL bytes are removed from the new text.
// A selection replacement on a buffer without a selection is logged and
// leaves the buffer unchanged.
func (b *Buffer) Apply(r engine.Replacement) error {
	switch r.Kind {
	case engine.ReplaceNone:
		logging.Log(logging.DEBUG, "", "no text to replace")
		return nil
	case engine.ReplaceFull:
		b.Text = stripNUL(r.Text)
		n := len([]rune(b.Text))
		b.SelStart, b.SelEnd, b.Cursor = 0, 0, n
		return nil
	case engine.ReplaceSelection:
		if !b.HasSelection() {
			logging.Log(logging.WARN, "", "no text is selected, selection replacement dropped")
			return nil
		}
		b.splice(b.SelStart, b.SelEnd, stripNUL(r.Text))
		return nil
	case engine.ReplaceInsert:
		text := stripNUL(r.InsertText())
		if b.HasSelection() {
			b.splice(b.SelStart, b.SelEnd, text)
		} else {
			b.splice(b.Cursor, b.Cursor, text)
		}
		b.SelStart = b.Cursor
		b.SelEnd = b.Cursor
		return nil
	default:
		return fmt.Errorf("unknown replacement kind %d", r.Kind)
	}
}

// splice replaces runes [start, end) with text and leaves the new text
// selected, with the cursor after it.
func (b *Buffer) splice(start, end int, text string) {
	runes := []rune(b.Text)
	start = min(max(start, 0), len(runes))
	end = min(max(end, start), len(runes))

	b.Text = string(runes[:start]) + text + string(runes[end:])
	b.SelStart = start
	b.SelEnd = start + len([]rune(text))
	b.Cursor = b.SelEnd
}

func stripNUL(s string) string {
	return strings.ReplaceAll(s, "\x00", "")
}
