package wasm

import (
	"encoding/binary"
	"math"

	"github.com/tetcoin-staging/parity-wasm/internal/leb128"
)

// ConstantExpression is a single-instruction initializer of a global, or of an element or data segment offset.
// Data holds the immediate of Opcode, without the terminating OpcodeEnd.
type ConstantExpression struct {
	Opcode Opcode
	Data   []byte
}

// ConstI32 returns the expression i32.const v.
func ConstI32(v int32) *ConstantExpression {
	return &ConstantExpression{Opcode: OpcodeI32Const, Data: leb128.EncodeInt32(v)}
}

// ConstI64 returns the expression i64.const v.
func ConstI64(v int64) *ConstantExpression {
	return &ConstantExpression{Opcode: OpcodeI64Const, Data: leb128.EncodeInt64(v)}
}

// ConstF32 returns the expression f32.const v.
func ConstF32(v float32) *ConstantExpression {
	data := make([]byte, 4)
	binary.LittleEndian.PutUint32(data, math.Float32bits(v))
	return &ConstantExpression{Opcode: OpcodeF32Const, Data: data}
}

// ConstF64 returns the expression f64.const v.
func ConstF64(v float64) *ConstantExpression {
	data := make([]byte, 8)
	binary.LittleEndian.PutUint64(data, math.Float64bits(v))
	return &ConstantExpression{Opcode: OpcodeF64Const, Data: data}
}

// ConstGlobalGet returns the expression global.get idx.
func ConstGlobalGet(idx Index) *ConstantExpression {
	return &ConstantExpression{Opcode: OpcodeGlobalGet, Data: leb128.EncodeUint32(idx)}
}

// ConstRefFunc returns the expression ref.func idx.
func ConstRefFunc(idx Index) *ConstantExpression {
	return &ConstantExpression{Opcode: OpcodeRefFunc, Data: leb128.EncodeUint32(idx)}
}

// ConstRefNull returns the expression ref.null t.
func ConstRefNull(t ValueType) *ConstantExpression {
	return &ConstantExpression{Opcode: OpcodeRefNull, Data: []byte{t}}
}

// executeConstExpression evaluates expr. global.get may only see globals initialized before it, which is enforced
// by passing only those.
func executeConstExpression(expr *ConstantExpression, globals []*GlobalInstance, functions []*FunctionInstance) (Value, error) {
	if expr == nil {
		return Value{}, newError(ErrorKindInstantiation, "missing constant expression")
	}
	switch expr.Opcode {
	case OpcodeI32Const:
		v, _, err := leb128.LoadInt32(expr.Data)
		if err != nil {
			return Value{}, wrapError(ErrorKindInstantiation, err, "read i32")
		}
		return ValueI32(v), nil
	case OpcodeI64Const:
		v, _, err := leb128.LoadInt64(expr.Data)
		if err != nil {
			return Value{}, wrapError(ErrorKindInstantiation, err, "read i64")
		}
		return ValueI64(v), nil
	case OpcodeF32Const:
		if len(expr.Data) < 4 {
			return Value{}, newError(ErrorKindInstantiation, "read f32: need 4 bytes, got %d", len(expr.Data))
		}
		return Value{typ: ValueTypeF32, bits: uint64(binary.LittleEndian.Uint32(expr.Data))}, nil
	case OpcodeF64Const:
		if len(expr.Data) < 8 {
			return Value{}, newError(ErrorKindInstantiation, "read f64: need 8 bytes, got %d", len(expr.Data))
		}
		return Value{typ: ValueTypeF64, bits: binary.LittleEndian.Uint64(expr.Data)}, nil
	case OpcodeGlobalGet:
		idx, _, err := leb128.LoadUint32(expr.Data)
		if err != nil {
			return Value{}, wrapError(ErrorKindInstantiation, err, "read global index")
		}
		if int(idx) >= len(globals) {
			return Value{}, newError(ErrorKindGlobal, "global index %d out of range of %d", idx, len(globals))
		}
		return globals[idx].Get(), nil
	case OpcodeRefNull:
		if len(expr.Data) != 1 || !isReferenceType(expr.Data[0]) {
			return Value{}, newError(ErrorKindInstantiation, "invalid ref.null type %v", expr.Data)
		}
		return ValueNull(expr.Data[0]), nil
	case OpcodeRefFunc:
		idx, _, err := leb128.LoadUint32(expr.Data)
		if err != nil {
			return Value{}, wrapError(ErrorKindInstantiation, err, "read function index")
		}
		if int(idx) >= len(functions) {
			return Value{}, newError(ErrorKindFunction, "function index %d out of range of %d", idx, len(functions))
		}
		return ValueFuncref(functions[idx]), nil
	}
	return Value{}, newError(ErrorKindInstantiation, "invalid opcode for const expression: %#x", expr.Opcode)
}
