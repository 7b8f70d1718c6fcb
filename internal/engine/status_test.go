package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReplacementPrecedence(t *testing.T) {
	sel := "sel"
	tests := []struct {
		name      string
		selection *string
		mutate    func(s *ExecutionStatus)
		want      Replacement
	}{
		{
			name: "untouched",
			want: Replacement{Kind: ReplaceNone},
		},
		{
			name:   "same value written back is not dirty",
			mutate: func(s *ExecutionStatus) { s.text.set("full"); s.fullText.set("full") },
			want:   Replacement{Kind: ReplaceNone},
		},
		{
			name: "insert wins over everything",
			mutate: func(s *ExecutionStatus) {
				s.fullText.set("F")
				s.selection.set("S")
				s.insert("a")
				s.insert("b")
			},
			want: Replacement{Kind: ReplaceInsert, Fragments: []string{"a", "b"}},
		},
		{
			name:      "fullText wins over selection",
			selection: &sel,
			mutate:    func(s *ExecutionStatus) { s.fullText.set("F"); s.selection.set("S"); s.text.set("T") },
			want:      Replacement{Kind: ReplaceFull, Text: "F"},
		},
		{
			name:      "selection wins over text",
			selection: &sel,
			mutate:    func(s *ExecutionStatus) { s.selection.set("S"); s.text.set("T") },
			want:      Replacement{Kind: ReplaceSelection, Text: "S"},
		},
		{
			name:   "selection written without active selection",
			mutate: func(s *ExecutionStatus) { s.selection.set("S") },
			want:   Replacement{Kind: ReplaceSelection, Text: "S"},
		},
		{
			name:      "text with active selection",
			selection: &sel,
			mutate:    func(s *ExecutionStatus) { s.text.set("T") },
			want:      Replacement{Kind: ReplaceSelection, Text: "T"},
		},
		{
			name:   "text without selection",
			mutate: func(s *ExecutionStatus) { s.text.set("T") },
			want:   Replacement{Kind: ReplaceFull, Text: "T"},
		},
		{
			name:   "messages alone change nothing",
			mutate: func(s *ExecutionStatus) { s.postInfo("i"); s.postError("e") },
			want:   Replacement{Kind: ReplaceNone},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newExecutionStatus("full", tt.selection)
			if tt.mutate != nil {
				tt.mutate(s)
			}
			assert.Equal(t, tt.want, s.Replacement())
		})
	}
}

func TestStatusSeeds(t *testing.T) {
	s := newExecutionStatus("full", nil)
	assert.False(t, s.IsSelection())
	assert.Equal(t, "full", s.text.value)
	assert.Equal(t, "", s.selection.value)

	sel := "ul"
	s = newExecutionStatus("full", &sel)
	assert.True(t, s.IsSelection())
	assert.Equal(t, "ul", s.text.value)
	assert.Equal(t, "ul", s.selection.value)
}

func TestReplacementKindString(t *testing.T) {
	assert.Equal(t, "insert", ReplaceInsert.String())
	assert.Equal(t, "unknown", ReplacementKind(42).String())
}
