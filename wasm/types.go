package wasm

import (
	"fmt"
	"strings"

	"golang.org/x/exp/slices"
)

// Index is the offset in an index namespace, not necessarily an absolute position in a Module section. This is
// because index namespaces are often preceded by a corresponding type in the Module.ImportSection.
//
// For example, the function index namespace starts with any ExternTypeFunc in the Module.ImportSection followed by
// the Module.FunctionSection
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#binary-index
type Index = uint32

// ValueType is the binary encoding of a type such as i32
// See https://www.w3.org/TR/wasm-core-1/#binary-valtype
type ValueType = byte

const (
	ValueTypeI32       ValueType = 0x7f
	ValueTypeI64       ValueType = 0x7e
	ValueTypeF32       ValueType = 0x7d
	ValueTypeF64       ValueType = 0x7c
	ValueTypeFuncref   ValueType = 0x70
	ValueTypeExternref ValueType = 0x6f
)

// ValueTypeName returns the type name of the given ValueType as a string.
// These type names match the names used in the WebAssembly text format.
// Note that ValueTypeName returns "unknown", if an undefined ValueType value is passed.
func ValueTypeName(t ValueType) string {
	switch t {
	case ValueTypeI32:
		return "i32"
	case ValueTypeI64:
		return "i64"
	case ValueTypeF32:
		return "f32"
	case ValueTypeF64:
		return "f64"
	case ValueTypeFuncref:
		return "funcref"
	case ValueTypeExternref:
		return "externref"
	}
	return "unknown"
}

func isReferenceType(t ValueType) bool {
	return t == ValueTypeFuncref || t == ValueTypeExternref
}

// FunctionType is a possibly empty function signature.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#function-types%E2%91%A0
type FunctionType struct {
	// Params are the possibly empty sequence of value types accepted by a function with this signature.
	Params []ValueType

	// Results are the possibly empty sequence of value types returned by a function with this signature.
	Results []ValueType
}

// EqualsSignature returns true if the function type has the same parameters and results.
func (t *FunctionType) EqualsSignature(params []ValueType, results []ValueType) bool {
	return slices.Equal(t.Params, params) && slices.Equal(t.Results, results)
}

// Equals compares two function types by signature.
func (t *FunctionType) Equals(other *FunctionType) bool {
	return t.EqualsSignature(other.Params, other.Results)
}

// String implements fmt.Stringer, formatting like "i32i32_i32" or "v_v".
func (t *FunctionType) String() string {
	return valueTypesString(t.Params) + "_" + valueTypesString(t.Results)
}

func valueTypesString(vts []ValueType) string {
	if len(vts) == 0 {
		return "v"
	}
	var b strings.Builder
	for _, vt := range vts {
		b.WriteString(ValueTypeName(vt))
	}
	return b.String()
}

// ExternType classifies imports and exports with their respective types.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#external-types%E2%91%A0
type ExternType = byte

const (
	ExternTypeFunc   ExternType = 0x00
	ExternTypeTable  ExternType = 0x01
	ExternTypeMemory ExternType = 0x02
	ExternTypeGlobal ExternType = 0x03
)

// ExternTypeName returns the name of the WebAssembly 1.0 (20191205) Text Format field of the given type.
func ExternTypeName(et ExternType) string {
	switch et {
	case ExternTypeFunc:
		return "func"
	case ExternTypeTable:
		return "table"
	case ExternTypeMemory:
		return "memory"
	case ExternTypeGlobal:
		return "global"
	}
	return fmt.Sprintf("%#x", et)
}

// MemoryType describes the limits of pages (64KB) in a memory.
type MemoryType struct {
	Min uint32
	// Max is the declared maximum in pages, or nil when unbounded.
	Max *uint32
}

// TableType describes the element type and limits of a table.
type TableType struct {
	ElemType ValueType
	Min      uint32
	// Max is the declared maximum in elements, or nil when unbounded.
	Max *uint32
}

// GlobalType is the value type and mutability of a global.
type GlobalType struct {
	ValType ValueType
	Mutable bool
}

// cloneMax copies a declared maximum, so an instance never shares it with its caller.
func cloneMax(max *uint32) *uint32 {
	if max == nil {
		return nil
	}
	v := *max
	return &v
}
