package wasm

import (
	"fmt"

	"go.uber.org/zap"
)

// HostFunction is the Go implementation of a function imported by a module.
//
// args match the declared parameters of the function, and the returned values must match its declared results.
// A returned error aborts the whole invocation. Unless it is already an *Error, it reaches the embedder as an
// ErrorKindUser error recoverable with AsUserError.
type HostFunction func(ctx *HostFunctionCallContext, args []Value) ([]Value, error)

// HostFunctionCallContext is the first argument of every HostFunction.
type HostFunctionCallContext struct {
	// State is the HostState of the current invocation. It is never nil.
	//
	// Invocations made from the host function into Module share it: a nil state inherits it, and any other state
	// is rejected, so the nesting limit of RuntimeConfig also bounds host callbacks.
	State *HostState
	// Module is the module whose code called this function, or nil when it was invoked directly.
	Module *ModuleInstance
	// Function is the function being called.
	Function *FunctionInstance
}

// Memory returns the default memory of the calling module, or nil when there is none.
func (c *HostFunctionCallContext) Memory() *MemoryInstance {
	if c.Module == nil || len(c.Module.memories) == 0 {
		return nil
	}
	return c.Module.memories[0]
}

// FunctionInstance is an interpreted function defined by a module, or a host function.
// It is immutable after creation.
type FunctionInstance struct {
	// Type is the signature of this function.
	Type *FunctionType

	// Name is used in error messages and logs, for example "env.add".
	Name string

	// module is the defining module of an interpreted function. Only the engine reads it, while a call is active.
	module *ModuleInstance
	// localTypes are the declared locals, not including parameters.
	localTypes []ValueType
	body       []instruction

	host HostFunction
}

// NewHostFunction returns a FunctionInstance which calls fn. The values fn returns are checked against ft.
func NewHostFunction(name string, ft *FunctionType, fn HostFunction) *FunctionInstance {
	return &FunctionInstance{Type: ft, Name: name, host: fn}
}

// IsHost returns true if this is a host function.
func (f *FunctionInstance) IsHost() bool {
	return f.host != nil
}

// Module returns the module which defines this function, or nil for a host function.
func (f *FunctionInstance) Module() *ModuleInstance {
	return f.module
}

// String implements fmt.Stringer.
func (f *FunctionInstance) String() string {
	return fmt.Sprintf("%s(%s)", f.Name, f.Type)
}

// Invoke calls this function with a fresh call stack.
//
// state is shared with every host function reached by this call. A nil state is replaced by an empty one.
// The results match Type.Results, and are nil when the function returns nothing.
func (f *FunctionInstance) Invoke(args []Value, state *HostState) ([]Value, error) {
	cfg := defaultRuntimeConfig
	if f.module != nil {
		cfg = f.module.cfg
	}
	return invoke(cfg, f, args, state)
}

func invoke(cfg *RuntimeConfig, f *FunctionInstance, args []Value, state *HostState) ([]Value, error) {
	if active := f.module.activeHostState(); active != nil {
		if state == nil {
			state = active
		} else if state != active {
			return nil, newError(ErrorKindStack, "%s: invoked with a new HostState during a host call from module %q",
				f.Name, f.module.Name)
		}
	}
	if state == nil {
		state = NewHostState()
	}
	if err := checkValueTypes(ErrorKindFunction, "arguments of "+f.Name, f.Type.Params, args); err != nil {
		return nil, err
	}
	if err := state.enter(cfg.maxNestingDepth); err != nil {
		return nil, err
	}
	defer state.exit()

	results, err := newVM(cfg, state).invoke(f, args)
	if err != nil {
		Logger().Debug("invocation failed", zap.String("function", f.Name), zap.Error(err))
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return results, nil
}
