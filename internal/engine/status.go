package engine

import "strings"

// ReplacementKind selects how a Replacement is applied to the editor buffer.
type ReplacementKind int

const (
	ReplaceNone      ReplacementKind = iota // Nothing to change
	ReplaceFull                             // Replace the whole buffer
	ReplaceSelection                        // Replace the current selection
	ReplaceInsert                           // Insert fragments at the cursor
)

func (k ReplacementKind) String() string {
	switch k {
	case ReplaceNone:
		return "none"
	case ReplaceFull:
		return "full"
	case ReplaceSelection:
		return "selection"
	case ReplaceInsert:
		return "insert"
	default:
		return "unknown"
	}
}

// Replacement is the single edit a script execution resolves to.
// Text is valid for ReplaceFull and ReplaceSelection, Fragments for ReplaceInsert.
type Replacement struct {
	Kind      ReplacementKind
	Text      string
	Fragments []string
}

// InsertText joins the insert fragments in the order they were posted.
func (r Replacement) InsertText() string {
	return strings.Join(r.Fragments, "")
}

// trackedString remembers the value it was seeded with. It is dirty only
// while its current value differs from that seed.
type trackedString struct {
	seed  string
	value string
}

func newTrackedString(seed string) trackedString {
	return trackedString{seed: seed, value: seed}
}

func (t *trackedString) set(v string) { t.value = v }

func (t trackedString) dirty() bool { return t.value != t.seed }

// ExecutionStatus collects everything one call of main reported back.
type ExecutionStatus struct {
	isSelection bool
	info        *string
	err         *string
	inserts     []string

	fullText  trackedString
	text      trackedString
	selection trackedString
}

func newExecutionStatus(fullText string, selection *string) *ExecutionStatus {
	s := &ExecutionStatus{
		isSelection: selection != nil,
		fullText:    newTrackedString(fullText),
		text:        newTrackedString(fullText),
		selection:   newTrackedString(""),
	}
	if selection != nil {
		s.text = newTrackedString(*selection)
		s.selection = newTrackedString(*selection)
	}
	return s
}

// IsSelection reports whether the call was made with an active selection.
func (s *ExecutionStatus) IsSelection() bool { return s.isSelection }

// Info returns the last message passed to postInfo.
func (s *ExecutionStatus) Info() (string, bool) {
	if s.info == nil {
		return "", false
	}
	return *s.info, true
}

// ErrorMessage returns the last message passed to postError.
func (s *ExecutionStatus) ErrorMessage() (string, bool) {
	if s.err == nil {
		return "", false
	}
	return *s.err, true
}

// Insertions returns the fragments passed to insert, in call order.
func (s *ExecutionStatus) Insertions() []string {
	return append([]string(nil), s.inserts...)
}

func (s *ExecutionStatus) postInfo(msg string)  { s.info = &msg }
func (s *ExecutionStatus) postError(msg string) { s.err = &msg }
func (s *ExecutionStatus) insert(text string)   { s.inserts = append(s.inserts, text) }

// Replacement resolves the status into one edit. The first rule that
// matches wins:
//
//  1. insert() was called         -> insert the fragments
//  2. fullText changed            -> replace the buffer with fullText
//  3. selection changed           -> replace the selection with selection
//  4. text changed, selection set -> replace the selection with text
//  5. text changed                -> replace the buffer with text
//  6. otherwise                   -> no change
func (s *ExecutionStatus) Replacement() Replacement {
	switch {
	case len(s.inserts) > 0:
		return Replacement{Kind: ReplaceInsert, Fragments: s.Insertions()}
	case s.fullText.dirty():
		return Replacement{Kind: ReplaceFull, Text: s.fullText.value}
	case s.selection.dirty():
		return Replacement{Kind: ReplaceSelection, Text: s.selection.value}
	case s.isSelection && s.text.dirty():
		return Replacement{Kind: ReplaceSelection, Text: s.text.value}
	case s.text.dirty():
		return Replacement{Kind: ReplaceFull, Text: s.text.value}
	default:
		return Replacement{Kind: ReplaceNone}
	}
}
