package wasm

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

// importingModule imports "env"."f" with signature ft and exports "call", which passes its params to it.
func importingModule(ft *FunctionType) *Module {
	code := make([][]byte, 0, len(ft.Params)+1)
	for i := range ft.Params {
		code = append(code, localGet(uint32(i)))
	}
	code = append(code, call(0))
	return &Module{
		TypeSection:     []*FunctionType{ft},
		ImportSection:   []*Import{{Type: ExternTypeFunc, Module: "env", Name: "f", DescFunc: 0}},
		FunctionSection: []Index{0},
		CodeSection:     []*Code{{Body: fbody(code...)}},
		MemorySection:   []*MemoryType{{Min: 1}},
		ExportSection:   []*Export{{Type: ExternTypeFunc, Name: "call", Index: 1}},
	}
}

func instantiateWithHost(t *testing.T, ft *FunctionType, fn HostFunction) *ModuleInstance {
	env, err := NewHostModuleBuilder("env").WithFunction("f", ft, fn).Build()
	require.NoError(t, err)
	mi, err := Instantiate(importingModule(ft), NewImports().WithResolver("env", env), nil)
	require.NoError(t, err)
	return mi
}

type exitError struct {
	code uint32
}

func (e *exitError) Error() string {
	return "exit"
}

func TestHostFunction_Call(t *testing.T) {
	ft := &FunctionType{Params: []ValueType{i32, i32}, Results: []ValueType{i32}}
	var seen *HostFunctionCallContext
	mi := instantiateWithHost(t, ft, func(ctx *HostFunctionCallContext, args []Value) ([]Value, error) {
		seen = ctx
		x, _ := args[0].I32()
		y, _ := args[1].I32()
		return []Value{ValueI32(x + y)}, nil
	})

	res, err := mi.InvokeExport("call", []Value{ValueI32(3), ValueI32(4)}, nil)
	require.NoError(t, err)
	require.Equal(t, []Value{ValueI32(7)}, res)

	require.NotNil(t, seen.State)
	require.Equal(t, mi, seen.Module)
	require.Equal(t, mi.Memory(0), seen.Memory())
	require.Equal(t, "env.f", seen.Function.Name)
}

func TestHostFunction_InvokedDirectly(t *testing.T) {
	f := NewHostFunction("env.answer", &FunctionType{Results: []ValueType{i64}},
		func(ctx *HostFunctionCallContext, _ []Value) ([]Value, error) {
			require.Nil(t, ctx.Module)
			require.Nil(t, ctx.Memory())
			return []Value{ValueI64(42)}, nil
		})
	require.True(t, f.IsHost())
	require.Nil(t, f.Module())

	res, err := f.Invoke(nil, nil)
	require.NoError(t, err)
	require.Equal(t, []Value{ValueI64(42)}, res)

	_, err = f.Invoke([]Value{ValueI32(1)}, nil)
	require.True(t, IsKind(err, ErrorKindFunction), err)
}

func TestHostFunction_ResultMismatch(t *testing.T) {
	ft := &FunctionType{Results: []ValueType{i32}}
	for _, tc := range []struct {
		name    string
		results []Value
	}{
		{name: "wrong type", results: []Value{ValueI64(1)}},
		{name: "too few", results: nil},
		{name: "too many", results: []Value{ValueI32(1), ValueI32(2)}},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			mi := instantiateWithHost(t, ft, func(*HostFunctionCallContext, []Value) ([]Value, error) {
				return tc.results, nil
			})
			_, err := mi.InvokeExport("call", nil, nil)
			require.True(t, IsKind(err, ErrorKindNative), err)
		})
	}
}

func TestHostFunction_Error(t *testing.T) {
	ft := &FunctionType{}

	t.Run("user error", func(t *testing.T) {
		mi := instantiateWithHost(t, ft, func(*HostFunctionCallContext, []Value) ([]Value, error) {
			return nil, &exitError{code: 3}
		})
		_, err := mi.InvokeExport("call", nil, nil)
		require.True(t, IsKind(err, ErrorKindUser), err)

		exit, ok := AsUserError[*exitError](err)
		require.True(t, ok)
		require.Equal(t, uint32(3), exit.code)

		_, ok = AsUserError[*Error](errors.New("not a user error"))
		require.False(t, ok)
	})

	t.Run("wasm error passes through", func(t *testing.T) {
		mi := instantiateWithHost(t, ft, func(*HostFunctionCallContext, []Value) ([]Value, error) {
			return nil, newTrap(ErrRuntimeUnreachable)
		})
		_, err := mi.InvokeExport("call", nil, nil)
		requireTrap(t, err, ErrRuntimeUnreachable)
	})

	t.Run("wrapped wasm error keeps the host context", func(t *testing.T) {
		mi := instantiateWithHost(t, ft, func(*HostFunctionCallContext, []Value) ([]Value, error) {
			return nil, fmt.Errorf("callback: %w", newTrap(ErrRuntimeUnreachable))
		})
		_, err := mi.InvokeExport("call", nil, nil)
		require.True(t, IsKind(err, ErrorKindUser), err)
		require.EqualError(t, err, "User: callback: Trap: unreachable")
		require.ErrorIs(t, err, ErrRuntimeUnreachable)
	})
}

func TestHostFunction_State(t *testing.T) {
	out := NewStateKey[[]string]("out")
	ft := &FunctionType{Params: []ValueType{i32}}
	mi := instantiateWithHost(t, ft, func(ctx *HostFunctionCallContext, args []Value) ([]Value, error) {
		v, _ := args[0].I32()
		lines, _ := GetState(ctx.State, out)
		SetState(ctx.State, out, append(lines, ValueI32(v).String()))
		return nil, nil
	})

	state := NewHostState()
	_, err := mi.InvokeExport("call", []Value{ValueI32(1)}, state)
	require.NoError(t, err)
	_, err = mi.InvokeExport("call", []Value{ValueI32(2)}, state)
	require.NoError(t, err)

	lines, ok := GetState(state, out)
	require.True(t, ok)
	require.Equal(t, []string{"i32(1)", "i32(2)"}, lines)
	require.Zero(t, state.Depth())
}

func TestHostFunction_Reentrant(t *testing.T) {
	// "call" invokes the host function, which invokes "call" again through the calling module.
	ft := &FunctionType{Params: []ValueType{i32}, Results: []ValueType{i32}}
	env, err := NewHostModuleBuilder("env").WithFunction("f", ft,
		func(ctx *HostFunctionCallContext, args []Value) ([]Value, error) {
			n, _ := args[0].I32()
			if n == 0 {
				return []Value{ValueI32(int32(ctx.State.Depth()))}, nil
			}
			return ctx.Module.InvokeExport("call", []Value{ValueI32(n - 1)}, ctx.State)
		}).Build()
	require.NoError(t, err)

	cfg := NewRuntimeConfig().WithMaxNestingDepth(5)
	mi, err := InstantiateWithConfig(cfg, importingModule(ft), NewImports().WithResolver("env", env), nil)
	require.NoError(t, err)

	res, err := mi.InvokeExport("call", []Value{ValueI32(4)}, nil)
	require.NoError(t, err)
	require.Equal(t, []Value{ValueI32(5)}, res)

	_, err = mi.InvokeExport("call", []Value{ValueI32(5)}, nil)
	require.True(t, IsKind(err, ErrorKindStack), err)
	require.ErrorIs(t, err, ErrRuntimeCallStackOverflow)
}

func TestHostFunction_ReentrantState(t *testing.T) {
	ft := &FunctionType{Params: []ValueType{i32}, Results: []ValueType{i32}}
	instantiate := func(t *testing.T, newState func(ctx *HostFunctionCallContext) *HostState) *ModuleInstance {
		env, err := NewHostModuleBuilder("env").WithFunction("f", ft,
			func(ctx *HostFunctionCallContext, args []Value) ([]Value, error) {
				n, _ := args[0].I32()
				if n == 0 {
					return []Value{ValueI32(int32(ctx.State.Depth()))}, nil
				}
				return ctx.Module.InvokeExport("call", []Value{ValueI32(n - 1)}, newState(ctx))
			}).Build()
		require.NoError(t, err)

		cfg := NewRuntimeConfig().WithMaxNestingDepth(5)
		mi, err := InstantiateWithConfig(cfg, importingModule(ft), NewImports().WithResolver("env", env), nil)
		require.NoError(t, err)
		return mi
	}

	t.Run("nil inherits the active state", func(t *testing.T) {
		mi := instantiate(t, func(*HostFunctionCallContext) *HostState { return nil })

		res, err := mi.InvokeExport("call", []Value{ValueI32(4)}, nil)
		require.NoError(t, err)
		require.Equal(t, []Value{ValueI32(5)}, res)

		_, err = mi.InvokeExport("call", []Value{ValueI32(1000)}, nil)
		require.True(t, IsKind(err, ErrorKindStack), err)
		require.ErrorIs(t, err, ErrRuntimeCallStackOverflow)
	})

	t.Run("a new state is rejected", func(t *testing.T) {
		mi := instantiate(t, func(*HostFunctionCallContext) *HostState { return NewHostState() })

		_, err := mi.InvokeExport("call", []Value{ValueI32(1)}, nil)
		require.True(t, IsKind(err, ErrorKindStack), err)
		require.Contains(t, err.Error(), "invoked with a new HostState")

		// The host call has returned, so the module accepts any state again.
		state := NewHostState()
		res, err := mi.InvokeExport("call", []Value{ValueI32(0)}, state)
		require.NoError(t, err)
		require.Equal(t, []Value{ValueI32(1)}, res)
		require.Zero(t, state.Depth())
	})
}

func TestHostModuleBuilder(t *testing.T) {
	mem, err := NewMemoryInstance(1, nil)
	require.NoError(t, err)
	table, err := NewTableInstance(ValueTypeFuncref, 1, nil)
	require.NoError(t, err)
	g := NewGlobalInstance(ValueI32(1), true)

	env, err := NewHostModuleBuilder("env").
		WithGoFunction("add", func(_ *HostFunctionCallContext, x, y int32) int32 { return x + y }).
		WithMemory("memory", mem).
		WithTable("table", table).
		WithGlobal("g", g).
		Build()
	require.NoError(t, err)
	require.Equal(t, "env", env.Name())

	add := env.ExportedFunction("add")
	require.NotNil(t, add)
	require.Equal(t, "i32i32_i32", add.Type.String())
	require.Nil(t, env.ExportedFunction("memory"))

	got, err := env.ResolveMemory("memory", &MemoryType{Min: 1})
	require.NoError(t, err)
	require.Same(t, mem, got)
	_, err = env.ResolveGlobal("g", &GlobalType{ValType: i32, Mutable: true})
	require.NoError(t, err)
	_, err = env.ResolveGlobal("g", &GlobalType{ValType: i64, Mutable: true})
	require.True(t, IsKind(err, ErrorKindInstantiation), err)
	_, err = env.ResolveTable("missing", &TableType{ElemType: ValueTypeFuncref})
	require.True(t, IsKind(err, ErrorKindInstantiation), err)
	_, err = env.ResolveFunc("memory", add.Type)
	require.True(t, IsKind(err, ErrorKindInstantiation), err)

	t.Run("duplicate name", func(t *testing.T) {
		_, err := NewHostModuleBuilder("env").WithMemory("x", mem).WithGlobal("x", g).Build()
		require.True(t, IsKind(err, ErrorKindProgram), err)
	})

	t.Run("go function without a call context", func(t *testing.T) {
		_, err := NewHostModuleBuilder("env").WithGoFunction("f", func(x int32) int32 { return x }).Build()
		require.True(t, IsKind(err, ErrorKindNative), err)
	})

	t.Run("go function with an unsupported type", func(t *testing.T) {
		_, err := NewHostModuleBuilder("env").WithGoFunction("f", func(_ *HostFunctionCallContext, s string) {}).Build()
		require.True(t, IsKind(err, ErrorKindNative), err)
	})

	t.Run("not a func", func(t *testing.T) {
		_, err := NewHostModuleBuilder("env").WithGoFunction("f", 1).Build()
		require.True(t, IsKind(err, ErrorKindNative), err)
	})
}

func TestGoFunction(t *testing.T) {
	t.Run("numeric types", func(t *testing.T) {
		f, err := newGoFunction("env.f", func(_ *HostFunctionCallContext, a uint32, b int64, c uint64, d float32, e float64) (uint32, int64, uint64, float32, float64) {
			return a + 1, b + 1, c + 1, d + 1, e + 1
		})
		require.NoError(t, err)
		require.Equal(t, []ValueType{i32, i64, i64, f32, f64}, f.Type.Params)
		require.Equal(t, []ValueType{i32, i64, i64, f32, f64}, f.Type.Results)

		res, err := f.Invoke([]Value{ValueI32(-1), ValueI64(1), ValueI64(-2), ValueF32(1.5), ValueF64(2.5)}, nil)
		require.NoError(t, err)
		require.Equal(t, []Value{ValueI32(0), ValueI64(2), ValueI64(-1), ValueF32(2.5), ValueF64(3.5)}, res)
	})

	t.Run("trailing error", func(t *testing.T) {
		f, err := newGoFunction("env.f", func(_ *HostFunctionCallContext, code uint32) (int32, error) {
			if code != 0 {
				return 0, &exitError{code: code}
			}
			return 1, nil
		})
		require.NoError(t, err)
		require.Equal(t, []ValueType{i32}, f.Type.Results)

		res, err := f.Invoke([]Value{ValueI32(0)}, nil)
		require.NoError(t, err)
		require.Equal(t, []Value{ValueI32(1)}, res)

		_, err = f.Invoke([]Value{ValueI32(2)}, nil)
		exit, ok := AsUserError[*exitError](err)
		require.True(t, ok)
		require.Equal(t, uint32(2), exit.code)
	})

	t.Run("called from wasm", func(t *testing.T) {
		env, err := NewHostModuleBuilder("env").
			WithGoFunction("f", func(ctx *HostFunctionCallContext, offset uint32) uint32 {
				v, _ := ctx.Memory().ReadUint32Le(offset)
				return v * 2
			}).Build()
		require.NoError(t, err)

		ft := &FunctionType{Params: []ValueType{i32}, Results: []ValueType{i32}}
		m := importingModule(ft)
		m.DataSection = []*DataSegment{{OffsetExpression: ConstI32(8), Init: []byte{21, 0, 0, 0}}}
		mi, err := Instantiate(m, NewImports().WithResolver("env", env), nil)
		require.NoError(t, err)

		res, err := mi.InvokeExport("call", []Value{ValueI32(8)}, nil)
		require.NoError(t, err)
		require.Equal(t, []Value{ValueI32(42)}, res)
	})
}
