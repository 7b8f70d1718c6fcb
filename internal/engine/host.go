package engine

import (
	"io/fs"

	"github.com/dop251/goja"
	"github.com/dop251/goja/parser"
	"github.com/dop251/goja_nodejs/console"
	"github.com/dop251/goja_nodejs/require"
)

// DefaultMaxSourceLength is the longest script source a host accepts.
const DefaultMaxSourceLength = 1<<29 - 24

// maxCallStackSize turns runaway recursion into a catchable RangeError.
const maxCallStackSize = 10000

type hostOptions struct {
	maxSourceLength int
	scriptsDir      string
	library         fs.FS
}

// HostOption configures a Host.
type HostOption func(*hostOptions)

// WithMaxSourceLength overrides DefaultMaxSourceLength.
func WithMaxSourceLength(n int) HostOption {
	return func(o *hostOptions) { o.maxSourceLength = n }
}

// WithScriptsDir sets the directory external require paths resolve against.
func WithScriptsDir(dir string) HostOption {
	return func(o *hostOptions) { o.scriptsDir = dir }
}

// WithLibrary replaces the bundled @boop/ module library.
func WithLibrary(fsys fs.FS) HostOption {
	return func(o *hostOptions) { o.library = fsys }
}

// Host owns one runtime with a script loaded into it. A Host is not safe for
// concurrent use; the Actor confines it to a single goroutine.
type Host struct {
	name     string
	opts     hostOptions
	vm       *goja.Runtime
	main     goja.Callable
	registry *require.RequireModule
	sources  sourceSet
	modules  map[string]goja.Value
	loading  map[string]bool
	status   *ExecutionStatus
}

// NewHost compiles source, runs its top level and looks up main.
func NewHost(name, source string, opts ...HostOption) (*Host, error) {
	o := hostOptions{
		maxSourceLength: DefaultMaxSourceLength,
		library:         bundledLibrary,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if len(source) >= o.maxSourceLength {
		return nil, ErrSourceExceedsMaxLength
	}

	h := &Host{
		name:    name,
		opts:    o,
		vm:      goja.New(),
		sources: sourceSet{},
		modules: map[string]goja.Value{},
		loading: map[string]bool{},
	}
	h.vm.SetMaxCallStackSize(maxCallStackSize)
	h.installGlobals()

	prg, err := h.compile(name, source, 0, source)
	if err != nil {
		return nil, &CompileError{Exception: h.sources.translate(err)}
	}
	if _, err := h.vm.RunProgram(prg); err != nil {
		return nil, &ExecuteError{Exception: h.sources.translate(err)}
	}

	mainFn, ok := goja.AssertFunction(h.vm.Get("main"))
	if !ok {
		return nil, ErrNoMain
	}
	h.main = mainFn
	return h, nil
}

// installGlobals sets up everything a script may use at its top level.
// console must be enabled while the registry's require is still installed.
func (h *Host) installGlobals() {
	h.registry = newRegistry(h.name).Enable(h.vm)
	console.Enable(h.vm)
	h.vm.Set("require", h.require)
	installBase64(h.vm)
}

// compile parses code under resource and records text for exception
// positions. lineOffset counts the lines code carries in front of text.
func (h *Host) compile(resource, text string, lineOffset int, code string) (*goja.Program, error) {
	h.sources.register(resource, text, lineOffset)
	ast, err := parser.ParseFile(nil, resource, code, 0, parser.WithDisableSourceMaps)
	if err != nil {
		return nil, err
	}
	return goja.CompileAST(ast, false)
}

// Execute calls main with a fresh state object and returns what it reported.
// Top-level script state is kept between calls.
func (h *Host) Execute(fullText string, selection *string) (*ExecutionStatus, error) {
	if h.vm == nil {
		return nil, errHostClosed
	}
	h.status = newExecutionStatus(fullText, selection)
	payload := h.payload(h.status)
	if _, err := h.main(payload, payload); err != nil {
		return nil, &ExecuteError{Exception: h.sources.translate(err)}
	}
	return h.status, nil
}

// Close interrupts anything still running and drops the runtime.
func (h *Host) Close() {
	if h.vm == nil {
		return
	}
	h.vm.Interrupt(errHostClosed)
	h.vm = nil
	h.main = nil
	h.registry = nil
	h.modules = nil
	h.loading = nil
}

// payload builds the state object handed to main.
func (h *Host) payload(status *ExecutionStatus) *goja.Object {
	vm := h.vm
	obj := vm.NewObject()

	_ = obj.DefineDataProperty("isSelection", vm.ToValue(status.isSelection),
		goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_TRUE)

	accessor := func(name string, field *trackedString) {
		getter := vm.ToValue(func(goja.FunctionCall) goja.Value {
			return vm.ToValue(field.value)
		})
		setter := vm.ToValue(func(call goja.FunctionCall) goja.Value {
			field.set(call.Argument(0).String())
			return goja.Undefined()
		})
		_ = obj.DefineAccessorProperty(name, getter, setter, goja.FLAG_FALSE, goja.FLAG_TRUE)
	}
	accessor("fullText", &status.fullText)
	accessor("text", &status.text)
	accessor("selection", &status.selection)

	_ = obj.Set("postInfo", func(call goja.FunctionCall) goja.Value {
		status.postInfo(call.Argument(0).String())
		return goja.Undefined()
	})
	_ = obj.Set("postError", func(call goja.FunctionCall) goja.Value {
		status.postError(call.Argument(0).String())
		return goja.Undefined()
	})
	_ = obj.Set("insert", func(call goja.FunctionCall) goja.Value {
		status.insert(call.Argument(0).String())
		return goja.Undefined()
	})
	return obj
}
