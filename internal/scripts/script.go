package scripts

import (
	"fmt"
	"os"
	"sync"

	"codeberg.org/sigterm-de/boopscript/internal/engine"
)

// ReadError reports a script file that could not be read.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read script %q: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// Script is a parsed script plus the actor that runs it. The actor is
// created on the first Execute and survives until Kill or Close.
type Script struct {
	Metadata Metadata

	source string
	path   string
	opts   []engine.HostOption

	mu    sync.Mutex
	actor *engine.Actor
}

// FromSource parses the metadata of source. path is empty for bundled scripts.
func FromSource(source, path string, opts ...engine.HostOption) (*Script, error) {
	m, err := ParseMetadata(source)
	if err != nil {
		return nil, err
	}
	return &Script{Metadata: m, source: source, path: path, opts: opts}, nil
}

// FromFile reads and parses the script at path.
func FromFile(path string, opts ...engine.HostOption) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ReadError{Path: path, Err: err}
	}
	return FromSource(string(data), path, opts...)
}

func (s *Script) Name() string    { return s.Metadata.Name }
func (s *Script) Source() string  { return s.source }
func (s *Script) Path() string    { return s.path }
func (s *Script) IsBundled() bool { return s.path == "" }

// Active reports whether the script currently holds a running runtime.
func (s *Script) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.actor != nil && s.actor.Ready()
}

// Execute runs the script's main against the buffer text. The script lock
// is only held while looking up the actor, never across the call.
func (s *Script) Execute(fullText string, selection *string) (*engine.ExecutionStatus, error) {
	s.mu.Lock()
	if s.actor == nil {
		s.actor = engine.NewActor(s.resource(), s.source, s.opts...)
	}
	actor := s.actor
	s.mu.Unlock()

	return actor.Execute(fullText, selection)
}

// Kill discards the script's runtime. The next Execute starts fresh.
func (s *Script) Kill() {
	s.mu.Lock()
	actor := s.actor
	s.mu.Unlock()
	if actor != nil {
		actor.Kill()
	}
}

// Close releases the script's actor. The Script remains usable.
func (s *Script) Close() {
	s.mu.Lock()
	actor := s.actor
	s.actor = nil
	s.mu.Unlock()
	if actor != nil {
		actor.Close()
	}
}

// resource names the script in exception positions.
func (s *Script) resource() string {
	if s.path != "" {
		return s.path
	}
	return s.Metadata.Name
}
