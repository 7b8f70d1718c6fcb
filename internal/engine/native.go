package engine

import (
	"encoding/base64"
	"fmt"

	"codeberg.org/sigterm-de/boopscript/internal/logging"
	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/console"
	"github.com/dop251/goja_nodejs/require"
	"gopkg.in/yaml.v3"
	"howett.net/plist"
)

const consoleModuleName = console.ModuleName

// scriptPrinter sends console output to the log, tagged with the script name.
type scriptPrinter struct {
	script string
}

func (p scriptPrinter) Log(msg string)   { logging.Log(logging.INFO, p.script, msg) }
func (p scriptPrinter) Warn(msg string)  { logging.Log(logging.WARN, p.script, msg) }
func (p scriptPrinter) Error(msg string) { logging.Log(logging.ERROR, p.script, msg) }

func consoleModuleLoader(script string) require.ModuleLoader {
	return console.RequireWithPrinter(scriptPrinter{script: script})
}

func yamlModuleLoader(vm *goja.Runtime, module *goja.Object) {
	exports := module.Get("exports").(*goja.Object)

	exports.Set("parse", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 {
			panic(vm.NewTypeError("yaml.parse requires a string argument"))
		}
		var out any
		if err := yaml.Unmarshal([]byte(call.Argument(0).String()), &out); err != nil {
			panic(vm.NewGoError(fmt.Errorf("yaml.parse: %w", err)))
		}
		return vm.ToValue(stringKeys(out))
	})

	exports.Set("stringify", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 {
			panic(vm.NewTypeError("yaml.stringify requires an argument"))
		}
		b, err := yaml.Marshal(call.Argument(0).Export())
		if err != nil {
			panic(vm.NewGoError(fmt.Errorf("yaml.stringify: %w", err)))
		}
		return vm.ToValue(string(b))
	})
}

func plistModuleLoader(vm *goja.Runtime, module *goja.Object) {
	exports := module.Get("exports").(*goja.Object)

	decode := func(fn string) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			if len(call.Arguments) == 0 {
				panic(vm.NewTypeError(fn + " requires a string argument"))
			}
			var out any
			if _, err := plist.Unmarshal([]byte(call.Argument(0).String()), &out); err != nil {
				panic(vm.NewGoError(fmt.Errorf("%s: %w", fn, err)))
			}
			return vm.ToValue(out)
		}
	}

	exports.Set("parse", decode("plist.parse"))
	exports.Set("parseBinary", decode("plist.parseBinary"))
	exports.Set("stringify", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 {
			panic(vm.NewTypeError("plist.stringify requires an argument"))
		}
		b, err := plist.MarshalIndent(call.Argument(0).Export(), plist.XMLFormat, "\t")
		if err != nil {
			panic(vm.NewGoError(fmt.Errorf("plist.stringify: %w", err)))
		}
		return vm.ToValue(string(b))
	})
}

// stringKeys rewrites map[any]any values produced by yaml.v3 for non-string
// keys so the runtime sees plain objects.
func stringKeys(v any) any {
	switch val := v.(type) {
	case map[string]any:
		for k, vv := range val {
			val[k] = stringKeys(vv)
		}
		return val
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, vv := range val {
			out[fmt.Sprint(k)] = stringKeys(vv)
		}
		return out
	case []any:
		for i, vv := range val {
			val[i] = stringKeys(vv)
		}
		return val
	default:
		return val
	}
}

// installBase64 adds the browser btoa and atob globals. btoa only accepts
// Latin-1 input, like browsers do.
func installBase64(vm *goja.Runtime) {
	vm.Set("btoa", func(call goja.FunctionCall) goja.Value {
		runes := []rune(call.Argument(0).String())
		buf := make([]byte, len(runes))
		for i, r := range runes {
			if r > 0xFF {
				panic(vm.NewGoError(fmt.Errorf("InvalidCharacterError: btoa: character U+%04X is outside the Latin-1 range", r)))
			}
			buf[i] = byte(r)
		}
		return vm.ToValue(base64.StdEncoding.EncodeToString(buf))
	})

	vm.Set("atob", func(call goja.FunctionCall) goja.Value {
		decoded, err := base64.StdEncoding.DecodeString(call.Argument(0).String())
		if err != nil {
			panic(vm.NewGoError(fmt.Errorf("atob: %w", err)))
		}
		runes := make([]rune, len(decoded))
		for i, b := range decoded {
			runes[i] = rune(b)
		}
		return vm.ToValue(string(runes))
	})
}
