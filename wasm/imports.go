package wasm

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// ImportResolver resolves the items one import namespace provides. Each method returns an Instantiation error when
// name is unknown or the item is incompatible with the expected type.
//
// ModuleInstance and HostModule implement ImportResolver, and embedders can supply their own.
type ImportResolver interface {
	ResolveFunc(name string, expected *FunctionType) (*FunctionInstance, error)
	ResolveGlobal(name string, expected *GlobalType) (*GlobalInstance, error)
	ResolveMemory(name string, expected *MemoryType) (*MemoryInstance, error)
	ResolveTable(name string, expected *TableType) (*TableInstance, error)
}

type namedResolver struct {
	name     string
	resolver ImportResolver
}

// Imports is an ordered list of resolvers keyed by import module name.
// The first resolver registered under a name answers every import from that name, with no fallback to later ones.
type Imports struct {
	resolvers []namedResolver
}

// NewImports returns an empty Imports.
func NewImports() *Imports {
	return &Imports{}
}

// WithResolver appends r under name and returns the receiver, for chaining.
func (i *Imports) WithResolver(name string, r ImportResolver) *Imports {
	i.PushResolver(name, r)
	return i
}

// PushResolver appends r under name.
func (i *Imports) PushResolver(name string, r ImportResolver) {
	i.resolvers = append(i.resolvers, namedResolver{name: name, resolver: r})
}

// Resolver returns the first resolver registered under name.
func (i *Imports) Resolver(name string) (ImportResolver, bool) {
	if i == nil {
		return nil, false
	}
	for _, r := range i.resolvers {
		if r.name == name {
			return r.resolver, true
		}
	}
	return nil, false
}

// resolvedImports are the imported items in the order of each index namespace.
type resolvedImports struct {
	functions []*FunctionInstance
	globals   []*GlobalInstance
	memories  []*MemoryInstance
	tables    []*TableInstance
}

// resolveImports resolves every import of m, failing on the first unresolvable one.
func (i *Imports) resolveImports(m *Module) (*resolvedImports, error) {
	ret := &resolvedImports{}
	for idx, im := range m.ImportSection {
		r, ok := i.Resolver(im.Module)
		if !ok {
			return nil, newError(ErrorKindInstantiation, "import[%d] %s[%s.%s]: module %q not found",
				idx, ExternTypeName(im.Type), im.Module, im.Name, im.Module)
		}
		if err := ret.resolve(r, m, im); err != nil {
			return nil, wrapResolveError(idx, im, err)
		}
		Logger().Debug("resolved import",
			zap.String("module", im.Module),
			zap.String("name", im.Name),
			zap.String("type", ExternTypeName(im.Type)))
	}
	return ret, nil
}

func (ri *resolvedImports) resolve(r ImportResolver, m *Module, im *Import) error {
	switch im.Type {
	case ExternTypeFunc:
		if int(im.DescFunc) >= len(m.TypeSection) {
			return newError(ErrorKindInstantiation, "type index %d out of range", im.DescFunc)
		}
		expected := m.TypeSection[im.DescFunc]
		f, err := r.ResolveFunc(im.Name, expected)
		if err != nil {
			return err
		}
		if err = checkFunctionCompatible(expected, f); err != nil {
			return err
		}
		ri.functions = append(ri.functions, f)
	case ExternTypeGlobal:
		g, err := r.ResolveGlobal(im.Name, im.DescGlobal)
		if err != nil {
			return err
		}
		if err = checkGlobalCompatible(im.DescGlobal, g); err != nil {
			return err
		}
		ri.globals = append(ri.globals, g)
	case ExternTypeMemory:
		mem, err := r.ResolveMemory(im.Name, im.DescMem)
		if err != nil {
			return err
		}
		if err = checkMemoryCompatible(im.DescMem, mem); err != nil {
			return err
		}
		ri.memories = append(ri.memories, mem)
	case ExternTypeTable:
		t, err := r.ResolveTable(im.Name, im.DescTable)
		if err != nil {
			return err
		}
		if err = checkTableCompatible(im.DescTable, t); err != nil {
			return err
		}
		ri.tables = append(ri.tables, t)
	default:
		return newError(ErrorKindInstantiation, "invalid import type %#x", im.Type)
	}
	return nil
}

func wrapResolveError(idx int, im *Import, err error) error {
	msg := fmt.Sprintf("import[%d] %s[%s.%s]", idx, ExternTypeName(im.Type), im.Module, im.Name)
	var e *Error
	if errors.As(err, &e) && e.Kind == ErrorKindInstantiation {
		return &Error{Kind: ErrorKindInstantiation, Message: msg + ": " + e.Message, Cause: e.Cause}
	}
	return wrapError(ErrorKindInstantiation, err, msg)
}

func errIncompatible(format string, args ...interface{}) error {
	return newError(ErrorKindInstantiation, "incompatible import type: "+format, args...)
}

func checkFunctionCompatible(expected *FunctionType, f *FunctionInstance) error {
	if f == nil {
		return newError(ErrorKindInstantiation, "nil function")
	}
	if !f.Type.Equals(expected) {
		return errIncompatible("signature mismatch: %s != %s", expected, f.Type)
	}
	return nil
}

func checkGlobalCompatible(expected *GlobalType, g *GlobalInstance) error {
	if g == nil {
		return newError(ErrorKindInstantiation, "nil global")
	}
	if actual := g.Type(); *actual != *expected {
		return errIncompatible("global type mismatch: expected %s mutable=%v, got %s mutable=%v",
			ValueTypeName(expected.ValType), expected.Mutable, ValueTypeName(actual.ValType), actual.Mutable)
	}
	return nil
}

// checkLimitsCompatible enforces that the actual size satisfies the imported minimum, and that the actual maximum is
// at least as strict as the imported one.
func checkLimitsCompatible(what string, expectedMin uint32, expectedMax *uint32, size uint32, max *uint32) error {
	if size < expectedMin {
		return errIncompatible("%s size %d is less than the imported min %d", what, size, expectedMin)
	}
	if expectedMax != nil {
		if max == nil {
			return errIncompatible("%s has no max, but the import requires max %d", what, *expectedMax)
		}
		if *max > *expectedMax {
			return errIncompatible("%s max %d is greater than the imported max %d", what, *max, *expectedMax)
		}
	}
	return nil
}

func checkMemoryCompatible(expected *MemoryType, m *MemoryInstance) error {
	if m == nil {
		return newError(ErrorKindInstantiation, "nil memory")
	}
	return checkLimitsCompatible("memory", expected.Min, expected.Max, m.PageSize(), m.max)
}

func checkTableCompatible(expected *TableType, t *TableInstance) error {
	if t == nil {
		return newError(ErrorKindInstantiation, "nil table")
	}
	if t.elemType != expected.ElemType {
		return errIncompatible("table element type mismatch: expected %s, got %s",
			ValueTypeName(expected.ElemType), ValueTypeName(t.elemType))
	}
	return checkLimitsCompatible("table", expected.Min, expected.Max, t.Size(), t.max)
}
