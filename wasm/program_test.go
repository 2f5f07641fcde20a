package wasm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func addModule() *Module {
	return &Module{
		TypeSection:     []*FunctionType{{Params: []ValueType{i32, i32}, Results: []ValueType{i32}}},
		FunctionSection: []Index{0},
		CodeSection:     []*Code{{Body: fbody(localGet(0), localGet(1), op(OpcodeI32Add))}},
		ExportSection:   []*Export{{Type: ExternTypeFunc, Name: "add", Index: 0}},
	}
}

// constModule exports "f", which returns v.
func constModule(v int32) *Module {
	return &Module{
		TypeSection:     []*FunctionType{{Results: []ValueType{i32}}},
		FunctionSection: []Index{0},
		CodeSection:     []*Code{{Body: fbody(i32Const(v))}},
		ExportSection:   []*Export{{Type: ExternTypeFunc, Name: "f", Index: 0}},
	}
}

var (
	storeType = &FunctionType{Params: []ValueType{i32, i32}}
	loadType  = &FunctionType{Params: []ValueType{i32}, Results: []ValueType{i32}}
)

// memoryOwnerModule exports a memory of one page and functions to store and load words in it.
func memoryOwnerModule() *Module {
	return &Module{
		TypeSection:     []*FunctionType{storeType, loadType},
		FunctionSection: []Index{0, 1},
		CodeSection: []*Code{
			{Body: fbody(localGet(0), localGet(1), memOp(OpcodeI32Store, 0))},
			{Body: fbody(localGet(0), memOp(OpcodeI32Load, 0))},
		},
		MemorySection: []*MemoryType{{Min: 1}},
		ExportSection: []*Export{
			{Type: ExternTypeMemory, Name: "memory", Index: 0},
			{Type: ExternTypeFunc, Name: "store", Index: 0},
			{Type: ExternTypeFunc, Name: "load", Index: 1},
		},
	}
}

// memoryUserModule imports the memory of from and exports a function to store words in it.
func memoryUserModule(from string) *Module {
	return &Module{
		TypeSection:     []*FunctionType{storeType},
		ImportSection:   []*Import{{Type: ExternTypeMemory, Module: from, Name: "memory", DescMem: &MemoryType{Min: 1}}},
		FunctionSection: []Index{0},
		CodeSection:     []*Code{{Body: fbody(localGet(0), localGet(1), memOp(OpcodeI32Store, 0))}},
		ExportSection:   []*Export{{Type: ExternTypeFunc, Name: "store", Index: 0}},
	}
}

func TestProgramInstance_InvokeExport(t *testing.T) {
	p := NewProgramInstance()
	mi, err := p.AddModule("math", addModule(), nil)
	require.NoError(t, err)
	require.Equal(t, "math", mi.Name)
	require.Equal(t, "math.$0", mi.Function(0).Name)

	res, err := p.InvokeExport("math", "add", []Value{ValueI32(3), ValueI32(4)}, nil)
	require.NoError(t, err)
	require.Equal(t, []Value{ValueI32(7)}, res)

	res, err = p.InvokeIndex("math", 0, []Value{ValueI32(-3), ValueI32(4)}, nil)
	require.NoError(t, err)
	require.Equal(t, []Value{ValueI32(1)}, res)

	res, err = p.InvokeFunc(mi.ExportedFunction("add"), []Value{ValueI32(1), ValueI32(1)}, nil)
	require.NoError(t, err)
	require.Equal(t, []Value{ValueI32(2)}, res)

	_, err = p.InvokeExport("math", "sub", nil, nil)
	require.True(t, IsKind(err, ErrorKindFunction), err)

	_, err = p.InvokeIndex("math", 1, nil, nil)
	require.True(t, IsKind(err, ErrorKindFunction), err)
}

func TestProgramInstance_UnknownModule(t *testing.T) {
	p := NewProgramInstance()
	_, err := p.InvokeExport("nope", "f", nil, nil)
	require.True(t, IsKind(err, ErrorKindProgram), err)
	require.EqualError(t, err, "Program: module nope not found")

	_, err = p.InvokeIndex("nope", 0, nil, nil)
	require.True(t, IsKind(err, ErrorKindProgram), err)

	_, ok := p.Module("nope")
	require.False(t, ok)
	_, ok = p.Resolver("nope")
	require.False(t, ok)
}

func TestProgramInstance_SharedMemory(t *testing.T) {
	p := NewProgramInstance()
	a, err := p.AddModule("A", memoryOwnerModule(), nil)
	require.NoError(t, err)
	b, err := p.AddModule("B", memoryUserModule("A"), nil)
	require.NoError(t, err)

	require.Same(t, a.Memory(0), b.Memory(0))

	_, err = p.InvokeExport("B", "store", []Value{ValueI32(16), ValueI32(99)}, nil)
	require.NoError(t, err)
	res, err := p.InvokeExport("A", "load", []Value{ValueI32(16)}, nil)
	require.NoError(t, err)
	require.Equal(t, []Value{ValueI32(99)}, res)

	require.True(t, a.ExportedMemory("memory").WriteUint32Le(20, 7))
	res, err = p.InvokeExport("A", "load", []Value{ValueI32(20)}, nil)
	require.NoError(t, err)
	require.Equal(t, []Value{ValueI32(7)}, res)
}

func TestProgramInstance_ImportMismatch(t *testing.T) {
	p := NewProgramInstance()
	_, err := p.AddModule("A", memoryOwnerModule(), nil)
	require.NoError(t, err)

	for _, tc := range []struct {
		name string
		im   *Import
	}{
		{
			name: "function signature",
			im:   &Import{Type: ExternTypeFunc, Module: "A", Name: "load", DescFunc: 0},
		},
		{
			name: "kind",
			im:   &Import{Type: ExternTypeGlobal, Module: "A", Name: "memory", DescGlobal: &GlobalType{ValType: i32}},
		},
		{
			name: "memory min",
			im:   &Import{Type: ExternTypeMemory, Module: "A", Name: "memory", DescMem: &MemoryType{Min: 2}},
		},
		{
			name: "memory max",
			im:   &Import{Type: ExternTypeMemory, Module: "A", Name: "memory", DescMem: &MemoryType{Min: 1, Max: u32Ptr(4)}},
		},
		{
			name: "missing name",
			im:   &Import{Type: ExternTypeFunc, Module: "A", Name: "missing", DescFunc: 0},
		},
		{
			name: "missing module",
			im:   &Import{Type: ExternTypeFunc, Module: "Z", Name: "load", DescFunc: 0},
		},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			m := &Module{
				TypeSection:   []*FunctionType{{Params: []ValueType{i64}, Results: []ValueType{i64}}},
				ImportSection: []*Import{tc.im},
			}
			_, err := p.AddModule("C", m, nil)
			require.True(t, IsKind(err, ErrorKindInstantiation), err)

			_, ok := p.Module("C")
			require.False(t, ok)
			_, ok = p.Module("A")
			require.True(t, ok)
		})
	}
}

func TestProgramInstance_StartTrap(t *testing.T) {
	p := NewProgramInstance()
	a, err := p.AddModule("A", memoryOwnerModule(), nil)
	require.NoError(t, err)

	m := memoryUserModule("A")
	m.TypeSection = append(m.TypeSection, &FunctionType{})
	m.FunctionSection = append(m.FunctionSection, 1)
	m.CodeSection = append(m.CodeSection, &Code{Body: fbody(
		i32Const(0), i32Const(5), call(0),
		op(OpcodeUnreachable),
	)})
	start := Index(1)
	m.StartSection = &start

	_, err = p.AddModule("B", m, nil)
	requireTrap(t, err, ErrRuntimeUnreachable)
	_, ok := p.Module("B")
	require.False(t, ok)

	// Writes made by the start function before it trapped stay in the shared memory.
	v, ok := a.Memory(0).ReadUint32Le(0)
	require.True(t, ok)
	require.Equal(t, uint32(5), v)
}

func TestProgramInstance_GrowImportedMemory(t *testing.T) {
	mem, err := NewMemoryInstance(1, u32Ptr(2))
	require.NoError(t, err)
	env, err := NewHostModuleBuilder("env").WithMemory("memory", mem).Build()
	require.NoError(t, err)

	p := NewProgramInstance()
	p.AddHostModule("env", env)
	_, err = p.AddModule("N", &Module{
		TypeSection:     []*FunctionType{loadType, {Results: []ValueType{i32}}},
		ImportSection:   []*Import{{Type: ExternTypeMemory, Module: "env", Name: "memory", DescMem: &MemoryType{Min: 1, Max: u32Ptr(2)}}},
		FunctionSection: []Index{0, 1},
		CodeSection: []*Code{
			{Body: fbody(localGet(0), op(OpcodeMemoryGrow, 0))},
			{Body: fbody(op(OpcodeMemorySize, 0))},
		},
		ExportSection: []*Export{
			{Type: ExternTypeFunc, Name: "grow", Index: 0},
			{Type: ExternTypeFunc, Name: "size", Index: 1},
		},
	}, nil)
	require.NoError(t, err)

	res, err := p.InvokeExport("N", "grow", []Value{ValueI32(1)}, nil)
	require.NoError(t, err)
	require.Equal(t, []Value{ValueI32(1)}, res)

	res, err = p.InvokeExport("N", "grow", []Value{ValueI32(1)}, nil)
	require.NoError(t, err)
	require.Equal(t, []Value{ValueI32(-1)}, res)

	res, err = p.InvokeExport("N", "size", nil, nil)
	require.NoError(t, err)
	require.Equal(t, []Value{ValueI32(2)}, res)
	require.Equal(t, uint32(2), mem.PageSize())
}

func TestProgramInstance_SharedGlobal(t *testing.T) {
	g := NewGlobalInstance(ValueI32(0), true)
	env, err := NewHostModuleBuilder("env").
		WithGlobal("g", g).
		WithGoFunction("set", func(_ *HostFunctionCallContext, v int32) error {
			return g.Set(ValueI32(v))
		}).
		Build()
	require.NoError(t, err)

	p := NewProgramInstance()
	p.AddHostModule("env", env)
	_, err = p.AddModule("M", &Module{
		TypeSection: []*FunctionType{{Params: []ValueType{i32}}, {Results: []ValueType{i32}}},
		ImportSection: []*Import{
			{Type: ExternTypeFunc, Module: "env", Name: "set", DescFunc: 0},
			{Type: ExternTypeGlobal, Module: "env", Name: "g", DescGlobal: &GlobalType{ValType: i32, Mutable: true}},
		},
		FunctionSection: []Index{1, 0, 0},
		CodeSection: []*Code{
			{Body: fbody(withIndex(OpcodeGlobalGet, 0))},
			{Body: fbody(localGet(0), call(0))},
			{Body: fbody(localGet(0), withIndex(OpcodeGlobalSet, 0))},
		},
		ExportSection: []*Export{
			{Type: ExternTypeFunc, Name: "get", Index: 1},
			{Type: ExternTypeFunc, Name: "setViaHost", Index: 2},
			{Type: ExternTypeFunc, Name: "set", Index: 3},
		},
	}, nil)
	require.NoError(t, err)

	_, err = p.InvokeExport("M", "setViaHost", []Value{ValueI32(9)}, nil)
	require.NoError(t, err)
	res, err := p.InvokeExport("M", "get", nil, nil)
	require.NoError(t, err)
	require.Equal(t, []Value{ValueI32(9)}, res)

	_, err = p.InvokeExport("M", "set", []Value{ValueI32(11)}, nil)
	require.NoError(t, err)
	require.Equal(t, ValueI32(11), g.Get())
}

func TestProgramInstance_ModuleShadowsResolver(t *testing.T) {
	host, err := NewHostModuleBuilder("dup").
		WithGoFunction("f", func(*HostFunctionCallContext) int32 { return 1 }).
		Build()
	require.NoError(t, err)

	p := NewProgramInstance()
	p.AddHostModule("dup", host)

	r, ok := p.Resolver("dup")
	require.True(t, ok)
	require.Equal(t, host, r)

	dup, err := p.AddModule("dup", constModule(2), nil)
	require.NoError(t, err)
	r, ok = p.Resolver("dup")
	require.True(t, ok)
	require.Equal(t, dup, r)

	user := &Module{
		TypeSection:     []*FunctionType{{Results: []ValueType{i32}}},
		ImportSection:   []*Import{{Type: ExternTypeFunc, Module: "dup", Name: "f", DescFunc: 0}},
		FunctionSection: []Index{0},
		CodeSection:     []*Code{{Body: fbody(call(0))}},
		ExportSection:   []*Export{{Type: ExternTypeFunc, Name: "f", Index: 1}},
	}
	_, err = p.AddModule("user", user, nil)
	require.NoError(t, err)
	res, err := p.InvokeExport("user", "f", nil, nil)
	require.NoError(t, err)
	require.Equal(t, []Value{ValueI32(2)}, res)
}

func TestProgramInstance_Replace(t *testing.T) {
	p := NewProgramInstance()
	_, err := p.AddModule("M", constModule(1), nil)
	require.NoError(t, err)
	second, err := p.AddModule("M", constModule(2), nil)
	require.NoError(t, err)

	got, ok := p.Module("M")
	require.True(t, ok)
	require.Same(t, second, got)

	res, err := p.InvokeExport("M", "f", nil, nil)
	require.NoError(t, err)
	require.Equal(t, []Value{ValueI32(2)}, res)

	third, err := Instantiate(constModule(3), nil, nil)
	require.NoError(t, err)
	p.InsertLoadedModule("M", third)
	res, err = p.InvokeExport("M", "f", nil, nil)
	require.NoError(t, err)
	require.Equal(t, []Value{ValueI32(3)}, res)

	first, err := NewHostModuleBuilder("env").Build()
	require.NoError(t, err)
	p.AddImportResolver("env", first)
	replacement, err := NewHostModuleBuilder("env").Build()
	require.NoError(t, err)
	p.AddImportResolver("env", replacement)
	r, ok := p.Resolver("env")
	require.True(t, ok)
	require.Same(t, replacement, r)
}

func TestProgramInstance_Config(t *testing.T) {
	p := NewProgramInstanceWithConfig(NewRuntimeConfig().WithCallStackLimit(10))
	_, err := p.AddModule("M", &Module{
		TypeSection:     []*FunctionType{{}},
		FunctionSection: []Index{0},
		CodeSection:     []*Code{{Body: fbody(call(0))}},
		ExportSection:   []*Export{{Type: ExternTypeFunc, Name: "f", Index: 0}},
	}, nil)
	require.NoError(t, err)

	_, err = p.InvokeExport("M", "f", nil, nil)
	require.True(t, IsKind(err, ErrorKindStack), err)
	require.Contains(t, err.Error(), "call stack exceeds 10 frames")
}
