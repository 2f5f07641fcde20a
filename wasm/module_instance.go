package wasm

import (
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// ModuleInstance is an instantiated module: its imported and defined functions, tables, memories and globals, and
// its exports. Imported items are shared with the module which provided them.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#module-instances%E2%91%A0
type ModuleInstance struct {
	// Name is the name given at instantiation, used in errors and logs. It may be empty.
	Name string

	cfg       *RuntimeConfig
	types     []*FunctionType
	functions []*FunctionInstance
	tables    []*TableInstance
	memories  []*MemoryInstance
	globals   []*GlobalInstance
	exports   exportMap
	// hostCalls are the states of the host calls made by code of this module which have not returned, innermost
	// last.
	hostCalls []*HostState
}

// activeHostState returns the state of the innermost host call made by code of m, or nil. m may be nil.
func (m *ModuleInstance) activeHostState() *HostState {
	if m == nil || len(m.hostCalls) == 0 {
		return nil
	}
	return m.hostCalls[len(m.hostCalls)-1]
}

var _ ImportResolver = &ModuleInstance{}

// ExportInstance is an item exported by a module. Only the field matching Type is set.
type ExportInstance struct {
	Type     ExternType
	Function *FunctionInstance
	Global   *GlobalInstance
	Memory   *MemoryInstance
	Table    *TableInstance
}

// exportMap resolves imports against exports. ModuleInstance and HostModule share it so both apply the same
// compatibility checks.
type exportMap map[string]*ExportInstance

func (m exportMap) get(name string, et ExternType) (*ExportInstance, error) {
	e, ok := m[name]
	if !ok {
		return nil, newError(ErrorKindInstantiation, "export %q not found", name)
	}
	if e.Type != et {
		return nil, newError(ErrorKindInstantiation, "export %q is a %s, not a %s", name, ExternTypeName(e.Type), ExternTypeName(et))
	}
	return e, nil
}

func (m exportMap) resolveFunc(name string, expected *FunctionType) (*FunctionInstance, error) {
	e, err := m.get(name, ExternTypeFunc)
	if err != nil {
		return nil, err
	}
	if err = checkFunctionCompatible(expected, e.Function); err != nil {
		return nil, err
	}
	return e.Function, nil
}

func (m exportMap) resolveGlobal(name string, expected *GlobalType) (*GlobalInstance, error) {
	e, err := m.get(name, ExternTypeGlobal)
	if err != nil {
		return nil, err
	}
	if err = checkGlobalCompatible(expected, e.Global); err != nil {
		return nil, err
	}
	return e.Global, nil
}

func (m exportMap) resolveMemory(name string, expected *MemoryType) (*MemoryInstance, error) {
	e, err := m.get(name, ExternTypeMemory)
	if err != nil {
		return nil, err
	}
	if err = checkMemoryCompatible(expected, e.Memory); err != nil {
		return nil, err
	}
	return e.Memory, nil
}

func (m exportMap) resolveTable(name string, expected *TableType) (*TableInstance, error) {
	e, err := m.get(name, ExternTypeTable)
	if err != nil {
		return nil, err
	}
	if err = checkTableCompatible(expected, e.Table); err != nil {
		return nil, err
	}
	return e.Table, nil
}

// ResolveFunc implements ImportResolver.
func (m *ModuleInstance) ResolveFunc(name string, expected *FunctionType) (*FunctionInstance, error) {
	return m.exports.resolveFunc(name, expected)
}

// ResolveGlobal implements ImportResolver.
func (m *ModuleInstance) ResolveGlobal(name string, expected *GlobalType) (*GlobalInstance, error) {
	return m.exports.resolveGlobal(name, expected)
}

// ResolveMemory implements ImportResolver.
func (m *ModuleInstance) ResolveMemory(name string, expected *MemoryType) (*MemoryInstance, error) {
	return m.exports.resolveMemory(name, expected)
}

// ResolveTable implements ImportResolver.
func (m *ModuleInstance) ResolveTable(name string, expected *TableType) (*TableInstance, error) {
	return m.exports.resolveTable(name, expected)
}

// ExportNames returns the names of all exports, sorted.
func (m *ModuleInstance) ExportNames() []string {
	names := maps.Keys(m.exports)
	slices.Sort(names)
	return names
}

// Export returns the export named name, or nil.
func (m *ModuleInstance) Export(name string) *ExportInstance {
	return m.exports[name]
}

// ExportedFunction returns the function exported as name, or nil.
func (m *ModuleInstance) ExportedFunction(name string) *FunctionInstance {
	if e, ok := m.exports[name]; ok && e.Type == ExternTypeFunc {
		return e.Function
	}
	return nil
}

// ExportedMemory returns the memory exported as name, or nil.
func (m *ModuleInstance) ExportedMemory(name string) *MemoryInstance {
	if e, ok := m.exports[name]; ok && e.Type == ExternTypeMemory {
		return e.Memory
	}
	return nil
}

// ExportedTable returns the table exported as name, or nil.
func (m *ModuleInstance) ExportedTable(name string) *TableInstance {
	if e, ok := m.exports[name]; ok && e.Type == ExternTypeTable {
		return e.Table
	}
	return nil
}

// ExportedGlobal returns the global exported as name, or nil.
func (m *ModuleInstance) ExportedGlobal(name string) *GlobalInstance {
	if e, ok := m.exports[name]; ok && e.Type == ExternTypeGlobal {
		return e.Global
	}
	return nil
}

// Function returns the function at idx in the function index namespace, or nil.
func (m *ModuleInstance) Function(idx Index) *FunctionInstance {
	if int(idx) >= len(m.functions) {
		return nil
	}
	return m.functions[idx]
}

// Memory returns the memory at idx, or nil.
func (m *ModuleInstance) Memory(idx Index) *MemoryInstance {
	if int(idx) >= len(m.memories) {
		return nil
	}
	return m.memories[idx]
}

// Table returns the table at idx, or nil.
func (m *ModuleInstance) Table(idx Index) *TableInstance {
	if int(idx) >= len(m.tables) {
		return nil
	}
	return m.tables[idx]
}

// Global returns the global at idx, or nil.
func (m *ModuleInstance) Global(idx Index) *GlobalInstance {
	if int(idx) >= len(m.globals) {
		return nil
	}
	return m.globals[idx]
}

// InvokeExport invokes the function exported as name. See FunctionInstance.Invoke.
func (m *ModuleInstance) InvokeExport(name string, args []Value, state *HostState) ([]Value, error) {
	e, ok := m.exports[name]
	if !ok {
		return nil, newError(ErrorKindFunction, "module %s doesn't have export %s", m.Name, name)
	}
	if e.Type != ExternTypeFunc {
		return nil, newError(ErrorKindFunction, "export %s of module %s is a %s, not a function", name, m.Name, ExternTypeName(e.Type))
	}
	return e.Function.Invoke(args, state)
}

// InvokeIndex invokes the function at idx in the function index namespace. See FunctionInstance.Invoke.
func (m *ModuleInstance) InvokeIndex(idx Index, args []Value, state *HostState) ([]Value, error) {
	f := m.Function(idx)
	if f == nil {
		return nil, newError(ErrorKindFunction, "module %s doesn't have function at index %d", m.Name, idx)
	}
	return f.Invoke(args, state)
}
