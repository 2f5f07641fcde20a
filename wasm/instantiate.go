package wasm

import (
	"fmt"

	"go.uber.org/zap"
)

// Instantiate links module against imports and runs its start function, if any, with state.
//
// Instantiation is all or nothing: on error no imported memory or table has been written, and the returned error is
// of ErrorKindInstantiation, ErrorKindFunction, or the error the start function failed with.
func Instantiate(module *Module, imports *Imports, state *HostState) (*ModuleInstance, error) {
	return InstantiateWithConfig(defaultRuntimeConfig, module, imports, state)
}

// InstantiateWithConfig is like Instantiate, but uses the limits of cfg instead of NewRuntimeConfig.
func InstantiateWithConfig(cfg *RuntimeConfig, module *Module, imports *Imports, state *HostState) (*ModuleInstance, error) {
	name := ""
	if module.NameSection != nil {
		name = module.NameSection.ModuleName
	}
	return instantiate(cfg, name, module, imports, state)
}

// instantiate is the only instantiation algorithm. Both the direct entry points and ProgramInstance use it.
func instantiate(cfg *RuntimeConfig, name string, module *Module, imports *Imports, state *HostState) (*ModuleInstance, error) {
	if cfg == nil {
		cfg = defaultRuntimeConfig
	}
	log := Logger().With(zap.String("module", name))

	resolved, err := imports.resolveImports(module)
	if err != nil {
		log.Debug("import resolution failed", zap.Error(err))
		return nil, err
	}

	m := &ModuleInstance{
		Name:      name,
		cfg:       cfg,
		types:     module.TypeSection,
		functions: resolved.functions,
		tables:    resolved.tables,
		memories:  resolved.memories,
		globals:   resolved.globals,
		exports:   exportMap{},
	}

	if err = m.buildMemories(module); err != nil {
		return nil, err
	}
	if err = m.buildTables(module); err != nil {
		return nil, err
	}
	if err = m.buildFunctions(module); err != nil {
		return nil, err
	}
	if err = m.buildGlobals(module, uint32(len(resolved.globals))); err != nil {
		return nil, err
	}
	if err = m.applySegments(module); err != nil {
		return nil, err
	}
	if err = m.buildExports(module); err != nil {
		return nil, err
	}

	if module.StartSection != nil {
		idx := *module.StartSection
		f := m.Function(idx)
		if f == nil {
			return nil, newError(ErrorKindInstantiation, "invalid start function index: %d", idx)
		}
		if len(f.Type.Params) != 0 || len(f.Type.Results) != 0 {
			return nil, newError(ErrorKindInstantiation, "start function must have the empty signature: %s", f.Type)
		}
		if _, err = invoke(cfg, f, nil, state); err != nil {
			log.Debug("start function failed", zap.String("function", f.Name), zap.Error(err))
			return nil, err
		}
	}

	log.Debug("instantiated module",
		zap.Int("functions", len(m.functions)),
		zap.Int("memories", len(m.memories)),
		zap.Int("tables", len(m.tables)),
		zap.Int("globals", len(m.globals)))
	return m, nil
}

func (m *ModuleInstance) buildMemories(module *Module) error {
	for i, mt := range module.MemorySection {
		mem, err := newMemoryInstance(mt, m.cfg.memoryMaxPages)
		if err != nil {
			return wrapIndexed("memory", i, err)
		}
		m.memories = append(m.memories, mem)
	}
	return nil
}

func (m *ModuleInstance) buildTables(module *Module) error {
	for i, tt := range module.TableSection {
		t, err := newTableInstance(tt)
		if err != nil {
			return wrapIndexed("table", i, err)
		}
		m.tables = append(m.tables, t)
	}
	return nil
}

// buildFunctions creates the defined functions. They reference m before it is complete, which is fine as none runs
// until the start function.
func (m *ModuleInstance) buildFunctions(module *Module) error {
	if len(module.FunctionSection) != len(module.CodeSection) {
		return newError(ErrorKindFunction, "function and code section have inconsistent lengths: %d != %d",
			len(module.FunctionSection), len(module.CodeSection))
	}
	importedCount := uint32(len(m.functions))
	for i, typeIdx := range module.FunctionSection {
		if int(typeIdx) >= len(module.TypeSection) {
			return newError(ErrorKindFunction, "function[%d]: type index %d out of range", i, typeIdx)
		}
		code := module.CodeSection[i]
		body, err := lowerBody(code.Body, module.TypeSection)
		if err != nil {
			return wrapError(ErrorKindFunction, err, "function[%d]", i)
		}
		idx := importedCount + uint32(i)
		fname := module.functionName(idx)
		if fname == "" {
			fname = fmt.Sprintf("$%d", idx)
		}
		m.functions = append(m.functions, &FunctionInstance{
			Type:       module.TypeSection[typeIdx],
			Name:       m.Name + "." + fname,
			module:     m,
			localTypes: code.LocalTypes,
			body:       body,
		})
	}
	return nil
}

// buildGlobals evaluates the initializers of the defined globals. They may read imported globals and reference
// any function.
func (m *ModuleInstance) buildGlobals(module *Module, importedCount uint32) error {
	for i, g := range module.GlobalSection {
		v, err := executeConstExpression(g.Init, m.globals[:importedCount], m.functions)
		if err != nil {
			return wrapIndexed("global", i, err)
		}
		if v.typ != g.Type.ValType {
			return newError(ErrorKindInstantiation, "global[%d]: initializer is %s, expected %s",
				i, ValueTypeName(v.typ), ValueTypeName(g.Type.ValType))
		}
		m.globals = append(m.globals, &GlobalInstance{typ: *g.Type, val: v})
	}
	return nil
}

// applySegments checks the bounds of every element and data segment before writing any, so a failure never
// leaves an imported table or memory partially initialized.
func (m *ModuleInstance) applySegments(module *Module) error {
	elemOffsets := make([]uint32, len(module.ElementSection))
	for i, seg := range module.ElementSection {
		t := m.Table(seg.TableIndex)
		if t == nil {
			return newError(ErrorKindInstantiation, "element[%d]: table index %d out of range", i, seg.TableIndex)
		}
		if t.elemType != ValueTypeFuncref {
			return newError(ErrorKindInstantiation, "element[%d]: table %d holds %s, not funcref",
				i, seg.TableIndex, ValueTypeName(t.elemType))
		}
		offset, err := m.segmentOffset(seg.OffsetExpr)
		if err != nil {
			return wrapIndexed("element", i, err)
		}
		if uint64(offset)+uint64(len(seg.Init)) > uint64(t.Size()) {
			return wrapError(ErrorKindInstantiation, ErrRuntimeInvalidTableAccess,
				"element[%d]: offset %d and length %d exceed table size %d", i, offset, len(seg.Init), t.Size())
		}
		for _, fidx := range seg.Init {
			if int(fidx) >= len(m.functions) {
				return newError(ErrorKindInstantiation, "element[%d]: function index %d out of range", i, fidx)
			}
		}
		elemOffsets[i] = offset
	}

	dataOffsets := make([]uint32, len(module.DataSection))
	for i, seg := range module.DataSection {
		mem := m.Memory(seg.MemoryIndex)
		if mem == nil {
			return newError(ErrorKindInstantiation, "data[%d]: memory index %d out of range", i, seg.MemoryIndex)
		}
		offset, err := m.segmentOffset(seg.OffsetExpression)
		if err != nil {
			return wrapIndexed("data", i, err)
		}
		if uint64(offset)+uint64(len(seg.Init)) > mem.Size() {
			return wrapError(ErrorKindInstantiation, ErrRuntimeOutOfBoundsMemoryAccess,
				"data[%d]: offset %d and length %d exceed memory size %d", i, offset, len(seg.Init), mem.Size())
		}
		dataOffsets[i] = offset
	}

	for i, seg := range module.ElementSection {
		t := m.tables[seg.TableIndex]
		for j, fidx := range seg.Init {
			t.elements[elemOffsets[i]+uint32(j)] = ValueFuncref(m.functions[fidx])
		}
	}
	for i, seg := range module.DataSection {
		m.memories[seg.MemoryIndex].Write(dataOffsets[i], seg.Init)
	}
	return nil
}

func (m *ModuleInstance) segmentOffset(expr *ConstantExpression) (uint32, error) {
	v, err := executeConstExpression(expr, m.globals, m.functions)
	if err != nil {
		return 0, err
	}
	offset, ok := v.I32()
	if !ok {
		return 0, newError(ErrorKindInstantiation, "offset must be i32, was %s", ValueTypeName(v.typ))
	}
	return uint32(offset), nil
}

func (m *ModuleInstance) buildExports(module *Module) error {
	for i, exp := range module.ExportSection {
		if _, ok := m.exports[exp.Name]; ok {
			return newError(ErrorKindInstantiation, "export[%d]: duplicate name %q", i, exp.Name)
		}
		e := &ExportInstance{Type: exp.Type}
		switch exp.Type {
		case ExternTypeFunc:
			e.Function = m.Function(exp.Index)
			if e.Function == nil {
				return newError(ErrorKindInstantiation, "export[%d]: function index %d out of range", i, exp.Index)
			}
		case ExternTypeGlobal:
			e.Global = m.Global(exp.Index)
			if e.Global == nil {
				return newError(ErrorKindInstantiation, "export[%d]: global index %d out of range", i, exp.Index)
			}
		case ExternTypeMemory:
			e.Memory = m.Memory(exp.Index)
			if e.Memory == nil {
				return newError(ErrorKindInstantiation, "export[%d]: memory index %d out of range", i, exp.Index)
			}
		case ExternTypeTable:
			e.Table = m.Table(exp.Index)
			if e.Table == nil {
				return newError(ErrorKindInstantiation, "export[%d]: table index %d out of range", i, exp.Index)
			}
		default:
			return newError(ErrorKindInstantiation, "export[%d]: invalid type %#x", i, exp.Type)
		}
		m.exports[exp.Name] = e
	}
	return nil
}

// wrapIndexed prefixes the message of an *Error with the item it concerns, keeping its kind.
func wrapIndexed(what string, idx int, err error) error {
	e := asError(err)
	return &Error{Kind: e.Kind, Message: fmt.Sprintf("%s[%d]: %s", what, idx, e.Message), Cause: e.Cause}
}
