package wasm

import (
	"fmt"
	"math"
)

// Value is a tagged WebAssembly runtime value. The zero Value has no type and is never produced by the engine.
//
// Numeric values are stored as raw bits, so NaN payloads survive a round trip through the operand stack.
// Reference values keep their referent in ref: a *FunctionInstance for funcref, or any Go value for externref.
// A nil ref is the null reference of that type.
type Value struct {
	typ  ValueType
	bits uint64
	ref  interface{}
}

// ValueI32 returns an i32 Value.
func ValueI32(v int32) Value {
	return Value{typ: ValueTypeI32, bits: uint64(uint32(v))}
}

// ValueI64 returns an i64 Value.
func ValueI64(v int64) Value {
	return Value{typ: ValueTypeI64, bits: uint64(v)}
}

// ValueF32 returns an f32 Value.
func ValueF32(v float32) Value {
	return Value{typ: ValueTypeF32, bits: uint64(math.Float32bits(v))}
}

// ValueF64 returns an f64 Value.
func ValueF64(v float64) Value {
	return Value{typ: ValueTypeF64, bits: math.Float64bits(v)}
}

// ValueFuncref returns a funcref Value. A nil f is the null funcref.
func ValueFuncref(f *FunctionInstance) Value {
	if f == nil {
		return ValueNull(ValueTypeFuncref)
	}
	return Value{typ: ValueTypeFuncref, ref: f}
}

// ValueExternref returns an externref Value holding an opaque host value. A nil v is the null externref.
func ValueExternref(v interface{}) Value {
	return Value{typ: ValueTypeExternref, ref: v}
}

// ValueNull returns the null reference of the given reference type.
func ValueNull(t ValueType) Value {
	return Value{typ: t}
}

func valueU32(v uint32) Value { return Value{typ: ValueTypeI32, bits: uint64(v)} }
func valueU64(v uint64) Value { return Value{typ: ValueTypeI64, bits: v} }
func valueBool(b bool) Value {
	if b {
		return valueU32(1)
	}
	return valueU32(0)
}

// zeroValue returns the default value of a local or table slot of type t.
func zeroValue(t ValueType) Value {
	return Value{typ: t}
}

// Type returns the ValueType of this value.
func (v Value) Type() ValueType {
	return v.typ
}

// I32 returns the value as int32, or false if it is not an i32.
func (v Value) I32() (int32, bool) {
	return int32(uint32(v.bits)), v.typ == ValueTypeI32
}

// I64 returns the value as int64, or false if it is not an i64.
func (v Value) I64() (int64, bool) {
	return int64(v.bits), v.typ == ValueTypeI64
}

// F32 returns the value as float32, or false if it is not an f32.
func (v Value) F32() (float32, bool) {
	return math.Float32frombits(uint32(v.bits)), v.typ == ValueTypeF32
}

// F64 returns the value as float64, or false if it is not an f64.
func (v Value) F64() (float64, bool) {
	return math.Float64frombits(v.bits), v.typ == ValueTypeF64
}

// Funcref returns the referenced function, nil for the null funcref, or false if this is not a funcref.
func (v Value) Funcref() (*FunctionInstance, bool) {
	if v.typ != ValueTypeFuncref {
		return nil, false
	}
	f, _ := v.ref.(*FunctionInstance)
	return f, true
}

// Externref returns the host value, nil for the null externref, or false if this is not an externref.
func (v Value) Externref() (interface{}, bool) {
	if v.typ != ValueTypeExternref {
		return nil, false
	}
	return v.ref, true
}

// IsNull returns true for a null reference of either reference type.
func (v Value) IsNull() bool {
	return isReferenceType(v.typ) && v.ref == nil
}

// String implements fmt.Stringer.
func (v Value) String() string {
	switch v.typ {
	case ValueTypeI32:
		return fmt.Sprintf("i32(%d)", int32(uint32(v.bits)))
	case ValueTypeI64:
		return fmt.Sprintf("i64(%d)", int64(v.bits))
	case ValueTypeF32:
		return fmt.Sprintf("f32(%v)", math.Float32frombits(uint32(v.bits)))
	case ValueTypeF64:
		return fmt.Sprintf("f64(%v)", math.Float64frombits(v.bits))
	case ValueTypeFuncref, ValueTypeExternref:
		if v.ref == nil {
			return ValueTypeName(v.typ) + "(null)"
		}
		return fmt.Sprintf("%s(%p)", ValueTypeName(v.typ), v.ref)
	}
	return "invalid"
}

// checkValueTypes returns a Value error unless vs match expected one for one.
func checkValueTypes(kind ErrorKind, what string, expected []ValueType, vs []Value) error {
	if len(vs) != len(expected) {
		return newError(kind, "%s: expected %d values, got %d", what, len(expected), len(vs))
	}
	for i, v := range vs {
		if v.typ != expected[i] {
			return newError(kind, "%s: value %d has type %s, expected %s",
				what, i, ValueTypeName(v.typ), ValueTypeName(expected[i]))
		}
	}
	return nil
}
