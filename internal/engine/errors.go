package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrSourceExceedsMaxLength is returned by NewHost when the script source
	// is too long to be handed to the runtime.
	ErrSourceExceedsMaxLength = errors.New("script source exceeds maximum length")

	// ErrNoMain is returned when a script's top level does not define a
	// callable main.
	ErrNoMain = errors.New("script does not define a main function")

	// ErrActorDisconnected means the actor's worker went away (it panicked or
	// was torn down) before replying. It never describes a script exception.
	ErrActorDisconnected = errors.New("script actor disconnected")

	// ErrCircularRequire is thrown into the script when a module requires
	// itself, directly or through other modules, while it is still loading.
	ErrCircularRequire = errors.New("circular require")

	errHostClosed = errors.New("runtime host closed")
)

// CompileError reports a syntax error in the script source.
type CompileError struct {
	Exception *JSException
}

func (e *CompileError) Error() string {
	return "compile script: " + e.Exception.Error()
}

// ExecuteError reports an exception thrown while running the script, either
// at the top level or inside main.
type ExecuteError struct {
	Exception *JSException
}

func (e *ExecuteError) Error() string {
	return "execute script: " + e.Exception.Error()
}

// ModuleNotFoundError is raised for an @boop/ path with no bundled module.
type ModuleNotFoundError struct {
	Path string
}

func (e *ModuleNotFoundError) Error() string {
	return fmt.Sprintf("no internal script with path %q", e.Path)
}

// ModuleReadError is raised when an external module file cannot be read.
type ModuleReadError struct {
	Path string
	Err  error
}

func (e *ModuleReadError) Error() string {
	return fmt.Sprintf("read module %q: %v", e.Path, e.Err)
}

func (e *ModuleReadError) Unwrap() error { return e.Err }

// Notification renders err as a single line suitable for a status bar.
func Notification(err error) string {
	var (
		compileErr *CompileError
		executeErr *ExecuteError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &compileErr):
		return "Error compiling script: " + compileErr.Exception.Error()
	case errors.As(err, &executeErr):
		return "Error executing script: " + executeErr.Exception.Error()
	case errors.Is(err, ErrNoMain):
		return "Script has no main function"
	case errors.Is(err, ErrSourceExceedsMaxLength):
		return "Script is too large to run"
	case errors.Is(err, ErrActorDisconnected):
		return "Script runtime stopped unexpectedly, try again"
	default:
		return "Error: " + err.Error()
	}
}
