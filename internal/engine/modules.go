package engine

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"codeberg.org/sigterm-de/boopscript/assets"
	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/require"
)

// InternalPrefix marks module paths served from the bundled library.
const InternalPrefix = "@boop/"

// Module wrapper lines placed around every required source. The module body
// starts on line moduleHeaderLines+1 of the compiled text.
const (
	moduleHeader      = "(function() {\nvar module = { exports: {} };\nvar exports = module.exports;\n"
	moduleFooter      = "\nreturn module.exports;\n})();"
	moduleHeaderLines = 3
)

// bundledLibrary is the lib/ directory of the embedded scripts.
var bundledLibrary fs.FS

func init() {
	sub, err := fs.Sub(assets.Scripts(), "lib")
	if err != nil {
		return
	}
	bundledLibrary = sub
}

// nativeModules are implemented in Go and registered on every host's
// require registry. They take precedence over file lookups.
var nativeModules = map[string]require.ModuleLoader{
	InternalPrefix + "yaml":  yamlModuleLoader,
	InternalPrefix + "plist": plistModuleLoader,
}

func newRegistry(script string) *require.Registry {
	registry := require.NewRegistry(require.WithLoader(noSourceLoader))
	for name, loader := range nativeModules {
		registry.RegisterNativeModule(name, loader)
	}
	registry.RegisterNativeModule(consoleModuleName, consoleModuleLoader(script))
	return registry
}

// noSourceLoader keeps the registry from reading anything off disk. Source
// modules are resolved by Host.require instead.
func noSourceLoader(string) ([]byte, error) {
	return nil, require.ModuleFileDoesNotExistError
}

// resolveModule normalises a require path and loads its source. The returned
// key identifies the module in the host's cache and in exception positions.
func (h *Host) resolveModule(p string) (key, source string, err error) {
	if !strings.HasSuffix(p, ".js") {
		p += ".js"
	}

	if name, ok := strings.CutPrefix(p, InternalPrefix); ok {
		if h.opts.library == nil {
			return "", "", &ModuleNotFoundError{Path: p}
		}
		data, err := fs.ReadFile(h.opts.library, path.Clean(name))
		if err != nil {
			return "", "", &ModuleNotFoundError{Path: p}
		}
		return p, string(data), nil
	}

	full := filepath.Join(h.opts.scriptsDir, filepath.FromSlash(p))
	if h.opts.scriptsDir == "" {
		return "", "", &ModuleReadError{Path: p, Err: errors.New("no scripts directory configured")}
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return "", "", &ModuleReadError{Path: full, Err: err}
	}
	if !utf8.Valid(data) {
		return "", "", &ModuleReadError{Path: full, Err: errors.New("module is not valid UTF-8")}
	}
	return full, string(data), nil
}

// require is installed as the global require function.
func (h *Host) require(call goja.FunctionCall) goja.Value {
	p := call.Argument(0).String()

	if _, ok := nativeModules[p]; ok {
		v, err := h.registry.Require(p)
		if err != nil {
			h.throw(err)
		}
		return v
	}

	key, source, err := h.resolveModule(p)
	if err != nil {
		h.throw(err)
	}
	if v, ok := h.modules[key]; ok {
		return v
	}
	if h.loading[key] {
		h.throw(fmt.Errorf("%w: %q is still loading", ErrCircularRequire, key))
	}

	prg, err := h.compile(key, source, moduleHeaderLines, moduleHeader+source+moduleFooter)
	if err != nil {
		h.throw(&CompileError{Exception: h.sources.translate(err)})
	}
	h.loading[key] = true
	defer delete(h.loading, key)
	v, err := h.vm.RunProgram(prg)
	if err != nil {
		h.throw(err)
	}
	h.modules[key] = v
	return v
}

// throw raises err inside the running script. Exceptions that came out of
// the script are rethrown unchanged so their stack survives.
func (h *Host) throw(err error) {
	var (
		ex          *goja.Exception
		interrupted *goja.InterruptedError
	)
	if errors.As(err, &interrupted) {
		panic(interrupted)
	}
	if errors.As(err, &ex) {
		panic(ex)
	}
	panic(h.vm.NewGoError(fmt.Errorf("require: %w", err)))
}
