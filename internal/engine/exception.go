package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dop251/goja"
	"github.com/dop251/goja/file"
	"github.com/dop251/goja/parser"
)

// ExceptionPosition locates an exception in the script or module it came from.
// Columns are 0-based byte offsets into SourceLine, EndColumn is exclusive.
type ExceptionPosition struct {
	Resource    string
	SourceLine  string
	Line        int // 1-based
	StartColumn int
	EndColumn   int
}

// JSException is a script exception reduced to plain data.
type JSException struct {
	Message  string
	Position *ExceptionPosition
}

func (e *JSException) Error() string {
	if e.Position == nil {
		return e.Message
	}
	return fmt.Sprintf("%s:%d:%d: %s", e.Position.Resource, e.Position.Line, e.Position.StartColumn, e.Message)
}

func (e *JSException) String() string { return e.Error() }

// registeredSource is the text compiled under a resource name. lineOffset is
// the number of wrapper lines prepended before compilation.
type registeredSource struct {
	text       string
	lineOffset int
}

type sourceSet map[string]registeredSource

func (s sourceSet) register(resource, text string, lineOffset int) {
	s[resource] = registeredSource{text: text, lineOffset: lineOffset}
}

// translate converts an error returned by the runtime into a JSException.
// It must only be called with a non-nil error.
func (s sourceSet) translate(err error) *JSException {
	if err == nil {
		panic("engine: translate called with a nil error")
	}

	var (
		parseErrs    parser.ErrorList
		parseErr     *parser.Error
		syntaxErr    *goja.CompilerSyntaxError
		referenceErr *goja.CompilerReferenceError
		exception    *goja.Exception
		interrupted  *goja.InterruptedError
	)
	switch {
	case errors.As(err, &parseErrs) && len(parseErrs) > 0:
		return s.fromParserError(parseErrs[0])
	case errors.As(err, &parseErr):
		return s.fromParserError(parseErr)
	case errors.As(err, &syntaxErr):
		return s.fromCompilerError("SyntaxError", &syntaxErr.CompilerError)
	case errors.As(err, &referenceErr):
		return s.fromCompilerError("ReferenceError", &referenceErr.CompilerError)
	case errors.As(err, &interrupted):
		return &JSException{Message: interrupted.Error()}
	case errors.As(err, &exception):
		return s.fromException(exception)
	default:
		return &JSException{Message: err.Error()}
	}
}

func (s sourceSet) fromParserError(e *parser.Error) *JSException {
	return &JSException{
		Message:  "SyntaxError: " + e.Message,
		Position: s.position(e.Position),
	}
}

func (s sourceSet) fromCompilerError(kind string, e *goja.CompilerError) *JSException {
	ex := &JSException{Message: kind + ": " + e.Message}
	if e.File != nil {
		ex.Position = s.position(e.File.Position(e.Offset))
	}
	return ex
}

func (s sourceSet) fromException(e *goja.Exception) *JSException {
	ex := &JSException{Message: "Uncaught exception"}
	if v := e.Value(); v != nil {
		ex.Message = v.String()
	}
	for _, frame := range e.Stack() {
		if pos := frame.Position(); pos.Line > 0 {
			ex.Position = s.position(pos)
			break
		}
	}
	return ex
}

// position maps a runtime position onto the registered source text. Unknown
// resources and lines that fall inside a module wrapper yield nil.
func (s sourceSet) position(pos file.Position) *ExceptionPosition {
	src, ok := s[pos.Filename]
	if !ok || pos.Line <= 0 {
		return nil
	}
	line := pos.Line - src.lineOffset
	lines := strings.Split(src.text, "\n")
	if line < 1 || line > len(lines) {
		return nil
	}
	text := strings.TrimSuffix(lines[line-1], "\r")

	start := max(pos.Column-1, 0)
	start = min(start, len(text))
	return &ExceptionPosition{
		Resource:    pos.Filename,
		SourceLine:  text,
		Line:        line,
		StartColumn: start,
		EndColumn:   tokenEnd(text, start),
	}
}

// tokenEnd returns the end of the identifier or keyword starting at start,
// or start+1 when no such token begins there.
func tokenEnd(line string, start int) int {
	end := start
	for end < len(line) && isIdentByte(line[end]) {
		end++
	}
	if end == start {
		return start + 1
	}
	return end
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '$' ||
		('a' <= c && c <= 'z') ||
		('A' <= c && c <= 'Z') ||
		('0' <= c && c <= '9') ||
		c >= 0x80
}
