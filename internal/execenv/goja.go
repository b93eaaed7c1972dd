// Package execenv provides the execution environment adapters consumed by
// Code blocks (see internal/graph's ExecutionEnv interface).
package execenv

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dop251/goja"
)

// JSSandbox runs a Code block's source as JavaScript inside an embedded
// goja VM. No network, filesystem, or process access is exposed to the
// script — input bindings are the only data it can see, and its return
// value is the only data that comes back out.
type JSSandbox struct {
	// Timeout bounds how long a single Execute call may run before the VM
	// is interrupted. Zero disables the bound.
	Timeout time.Duration
}

// NewJSSandbox constructs a JSSandbox with a conservative default timeout.
func NewJSSandbox() *JSSandbox {
	return &JSSandbox{Timeout: 10 * time.Second}
}

// Execute wraps source in an IIFE, binds inputs as globals, runs it, and
// reads the requested output names back from the IIFE's return value
// (falling back to nil for a name the script did not set).
func (s *JSSandbox) Execute(ctx context.Context, source string, inputs map[string]any, outputNames []string) (map[string]any, error) {
	vm := goja.New()

	if err := setupHelpers(vm); err != nil {
		return nil, fmt.Errorf("execenv: setup vm: %w", err)
	}

	for k, v := range inputs {
		if err := vm.Set(k, v); err != nil {
			return nil, fmt.Errorf("execenv: bind input %q: %w", k, err)
		}
	}

	if s.Timeout > 0 {
		timer := time.AfterFunc(s.Timeout, func() {
			vm.Interrupt("execution timeout")
		})
		defer timer.Stop()
	}

	done := make(chan struct{})
	var result goja.Value
	var runErr error

	go func() {
		defer close(done)
		result, runErr = vm.RunString("(function(){\n" + source + "\n})()")
	}()

	select {
	case <-ctx.Done():
		vm.Interrupt("context cancelled")
		<-done
		return nil, ctx.Err()
	case <-done:
	}

	if runErr != nil {
		return nil, fmt.Errorf("execenv: script error: %w", runErr)
	}

	exported := result.Export()

	out := make(map[string]any, len(outputNames))
	switch v := exported.(type) {
	case map[string]any:
		for _, name := range outputNames {
			out[name] = v[name]
		}
	default:
		// A script that returns a scalar maps it to the sole requested
		// output name, matching the single-"result"-port Code block shape.
		if len(outputNames) == 1 {
			out[outputNames[0]] = exported
		}
	}

	return out, nil
}

func setupHelpers(vm *goja.Runtime) error {
	if err := vm.Set("toString", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 {
			return vm.ToValue("")
		}
		switch v := call.Arguments[0].Export().(type) {
		case []byte:
			return vm.ToValue(string(v))
		default:
			return vm.ToValue(fmt.Sprintf("%v", v))
		}
	}); err != nil {
		return err
	}

	if err := vm.Set("jsonParse", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 {
			return goja.Null()
		}
		var raw []byte
		switch v := call.Arguments[0].Export().(type) {
		case []byte:
			raw = v
		case string:
			raw = []byte(v)
		default:
			panic(vm.NewTypeError("jsonParse: expected string or bytes"))
		}
		var parsed any
		if err := json.Unmarshal(raw, &parsed); err != nil {
			panic(vm.NewTypeError("jsonParse: " + err.Error()))
		}
		return vm.ToValue(parsed)
	}); err != nil {
		return err
	}

	if err := vm.Set("btoa", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 {
			return vm.ToValue("")
		}
		var raw []byte
		switch v := call.Arguments[0].Export().(type) {
		case []byte:
			raw = v
		case string:
			raw = []byte(v)
		default:
			panic(vm.NewTypeError("btoa: expected string or bytes"))
		}
		return vm.ToValue(base64.StdEncoding.EncodeToString(raw))
	}); err != nil {
		return err
	}

	if err := vm.Set("atob", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 {
			return vm.ToValue([]byte{})
		}
		decoded, err := base64.StdEncoding.DecodeString(call.Arguments[0].String())
		if err != nil {
			panic(vm.NewTypeError("atob: " + err.Error()))
		}
		return vm.ToValue(decoded)
	}); err != nil {
		return err
	}

	return nil
}
