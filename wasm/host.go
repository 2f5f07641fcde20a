package wasm

import (
	"fmt"
	"reflect"
)

// HostModule is a named set of host-provided functions, globals, memories and tables which modules can import.
// Build one with NewHostModuleBuilder.
type HostModule struct {
	name    string
	exports exportMap
}

var _ ImportResolver = &HostModule{}

// Name returns the name given to NewHostModuleBuilder.
func (h *HostModule) Name() string {
	return h.name
}

// ExportedFunction returns the function exported as name, or nil.
func (h *HostModule) ExportedFunction(name string) *FunctionInstance {
	if e, ok := h.exports[name]; ok && e.Type == ExternTypeFunc {
		return e.Function
	}
	return nil
}

// ResolveFunc implements ImportResolver.
func (h *HostModule) ResolveFunc(name string, expected *FunctionType) (*FunctionInstance, error) {
	return h.exports.resolveFunc(name, expected)
}

// ResolveGlobal implements ImportResolver.
func (h *HostModule) ResolveGlobal(name string, expected *GlobalType) (*GlobalInstance, error) {
	return h.exports.resolveGlobal(name, expected)
}

// ResolveMemory implements ImportResolver.
func (h *HostModule) ResolveMemory(name string, expected *MemoryType) (*MemoryInstance, error) {
	return h.exports.resolveMemory(name, expected)
}

// ResolveTable implements ImportResolver.
func (h *HostModule) ResolveTable(name string, expected *TableType) (*TableInstance, error) {
	return h.exports.resolveTable(name, expected)
}

// HostModuleBuilder defines a HostModule. The first error is kept and returned by Build.
//
// Ex.
//
//	hm, err := NewHostModuleBuilder("env").
//		WithGoFunction("add", func(_ *HostFunctionCallContext, x, y int32) int32 { return x + y }).
//		WithMemory("memory", mem).
//		Build()
type HostModuleBuilder struct {
	name    string
	exports exportMap
	err     error
}

// NewHostModuleBuilder returns a builder of a HostModule importable under name.
func NewHostModuleBuilder(name string) *HostModuleBuilder {
	return &HostModuleBuilder{name: name, exports: exportMap{}}
}

func (b *HostModuleBuilder) add(name string, e *ExportInstance) *HostModuleBuilder {
	if b.err != nil {
		return b
	}
	if _, ok := b.exports[name]; ok {
		b.err = newError(ErrorKindProgram, "name %s already exists in host module %s", name, b.name)
		return b
	}
	b.exports[name] = e
	return b
}

// WithFunction exports fn with the signature ft.
func (b *HostModuleBuilder) WithFunction(name string, ft *FunctionType, fn HostFunction) *HostModuleBuilder {
	return b.add(name, &ExportInstance{Type: ExternTypeFunc, Function: NewHostFunction(b.name+"."+name, ft, fn)})
}

// WithGoFunction exports a Go func whose signature is derived by reflection.
//
// The first parameter must be *HostFunctionCallContext. Other parameters and results may be int32, uint32, int64,
// uint64, float32 or float64. A trailing error result is returned as the error of the call.
func (b *HostModuleBuilder) WithGoFunction(name string, fn interface{}) *HostModuleBuilder {
	if b.err != nil {
		return b
	}
	f, err := newGoFunction(b.name+"."+name, fn)
	if err != nil {
		b.err = err
		return b
	}
	return b.add(name, &ExportInstance{Type: ExternTypeFunc, Function: f})
}

// WithGlobal exports g. Importers share g with this module.
func (b *HostModuleBuilder) WithGlobal(name string, g *GlobalInstance) *HostModuleBuilder {
	return b.add(name, &ExportInstance{Type: ExternTypeGlobal, Global: g})
}

// WithMemory exports m. Importers share m with this module.
func (b *HostModuleBuilder) WithMemory(name string, m *MemoryInstance) *HostModuleBuilder {
	return b.add(name, &ExportInstance{Type: ExternTypeMemory, Memory: m})
}

// WithTable exports t. Importers share t with this module.
func (b *HostModuleBuilder) WithTable(name string, t *TableInstance) *HostModuleBuilder {
	return b.add(name, &ExportInstance{Type: ExternTypeTable, Table: t})
}

// Build returns the HostModule, or the first error encountered while defining it.
func (b *HostModuleBuilder) Build() (*HostModule, error) {
	if b.err != nil {
		return nil, b.err
	}
	exports := make(exportMap, len(b.exports))
	for k, v := range b.exports {
		exports[k] = v
	}
	return &HostModule{name: b.name, exports: exports}, nil
}

var (
	callContextType = reflect.TypeOf((*HostFunctionCallContext)(nil))
	errorType       = reflect.TypeOf((*error)(nil)).Elem()
)

func getTypeOf(kind reflect.Kind) (ValueType, error) {
	switch kind {
	case reflect.Float64:
		return ValueTypeF64, nil
	case reflect.Float32:
		return ValueTypeF32, nil
	case reflect.Int32, reflect.Uint32:
		return ValueTypeI32, nil
	case reflect.Int64, reflect.Uint64:
		return ValueTypeI64, nil
	default:
		return 0x00, fmt.Errorf("invalid type: %s", kind.String())
	}
}

// newGoFunction wraps fn in a HostFunction whose signature is derived from fn's parameters and results.
func newGoFunction(name string, fn interface{}) (*FunctionInstance, error) {
	fnV := reflect.ValueOf(fn)
	if fnV.Kind() != reflect.Func {
		return nil, newError(ErrorKindNative, "%s: expected a func, got %T", name, fn)
	}
	p := fnV.Type()
	if p.NumIn() == 0 || p.In(0) != callContextType {
		return nil, newError(ErrorKindNative, "%s: host function must accept *wasm.HostFunctionCallContext as the first param", name)
	}

	ft := &FunctionType{Params: make([]ValueType, p.NumIn()-1)}
	for i := range ft.Params {
		vt, err := getTypeOf(p.In(i + 1).Kind())
		if err != nil {
			return nil, wrapError(ErrorKindNative, err, "%s: param[%d]", name, i)
		}
		ft.Params[i] = vt
	}

	numOut := p.NumOut()
	returnsErr := numOut > 0 && p.Out(numOut-1) == errorType
	if returnsErr {
		numOut--
	}
	ft.Results = make([]ValueType, numOut)
	for i := range ft.Results {
		vt, err := getTypeOf(p.Out(i).Kind())
		if err != nil {
			return nil, wrapError(ErrorKindNative, err, "%s: result[%d]", name, i)
		}
		ft.Results[i] = vt
	}

	call := func(ctx *HostFunctionCallContext, args []Value) ([]Value, error) {
		in := make([]reflect.Value, len(args)+1)
		in[0] = reflect.ValueOf(ctx)
		for i, a := range args {
			in[i+1] = goValueOf(p.In(i+1), a)
		}
		out := fnV.Call(in)
		if returnsErr {
			if e := out[numOut].Interface(); e != nil {
				return nil, e.(error)
			}
		}
		results := make([]Value, numOut)
		for i := range results {
			results[i] = valueOfGo(out[i])
		}
		return results, nil
	}
	return NewHostFunction(name, ft, call), nil
}

// goValueOf converts a Value whose type already matched the signature into t.
func goValueOf(t reflect.Type, v Value) reflect.Value {
	ret := reflect.New(t).Elem()
	switch t.Kind() {
	case reflect.Float64:
		f, _ := v.F64()
		ret.SetFloat(f)
	case reflect.Float32:
		f, _ := v.F32()
		ret.SetFloat(float64(f))
	case reflect.Int32:
		i, _ := v.I32()
		ret.SetInt(int64(i))
	case reflect.Uint32:
		i, _ := v.I32()
		ret.SetUint(uint64(uint32(i)))
	case reflect.Int64:
		i, _ := v.I64()
		ret.SetInt(i)
	case reflect.Uint64:
		i, _ := v.I64()
		ret.SetUint(uint64(i))
	}
	return ret
}

func valueOfGo(v reflect.Value) Value {
	switch v.Kind() {
	case reflect.Float64:
		return ValueF64(v.Float())
	case reflect.Float32:
		return ValueF32(float32(v.Float()))
	case reflect.Int32:
		return ValueI32(int32(v.Int()))
	case reflect.Uint32:
		return valueU32(uint32(v.Uint()))
	case reflect.Int64:
		return ValueI64(v.Int())
	default: // reflect.Uint64
		return valueU64(v.Uint())
	}
}
