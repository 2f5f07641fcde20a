package wasm

func errOperandType(expected ValueType, v Value) *Error {
	return newError(ErrorKindValue, "expected %s operand, got %s", ValueTypeName(expected), ValueTypeName(v.typ))
}

func (vm *vm) push(v Value) {
	if err := vm.operands.Push(v); err != nil {
		panic(wrapError(ErrorKindStack, ErrRuntimeCallStackOverflow, "operand stack exceeds %d values", vm.operands.Limit()))
	}
}

func (vm *vm) pop() Value {
	v, err := vm.operands.Pop()
	if err != nil {
		panic(wrapError(ErrorKindStack, err, "pop operand"))
	}
	return v
}

// popN pops n values, returning them in push order.
func (vm *vm) popN(n int) []Value {
	vs, err := vm.operands.PopN(n)
	if err != nil {
		panic(wrapError(ErrorKindStack, err, "pop %d operands", n))
	}
	return vs
}

func (vm *vm) truncate(height int) {
	if err := vm.operands.Truncate(height); err != nil {
		panic(wrapError(ErrorKindStack, err, "truncate operands"))
	}
}

// unwind drops the values between height and the top keep values.
func (vm *vm) unwind(height, keep int) {
	if vm.operands.Len() == height+keep {
		return
	}
	if keep == 0 {
		vm.truncate(height)
		return
	}
	kept := vm.popN(keep)
	vm.truncate(height)
	for _, v := range kept {
		vm.push(v)
	}
}

func (vm *vm) popI32() int32 {
	v := vm.pop()
	i, ok := v.I32()
	if !ok {
		panic(errOperandType(ValueTypeI32, v))
	}
	return i
}

func (vm *vm) popU32() uint32 {
	return uint32(vm.popI32())
}

func (vm *vm) popI64() int64 {
	v := vm.pop()
	i, ok := v.I64()
	if !ok {
		panic(errOperandType(ValueTypeI64, v))
	}
	return i
}

func (vm *vm) popU64() uint64 {
	return uint64(vm.popI64())
}

func (vm *vm) popF32() float32 {
	v := vm.pop()
	f, ok := v.F32()
	if !ok {
		panic(errOperandType(ValueTypeF32, v))
	}
	return f
}

func (vm *vm) popF64() float64 {
	v := vm.pop()
	f, ok := v.F64()
	if !ok {
		panic(errOperandType(ValueTypeF64, v))
	}
	return f
}

func (vm *vm) pushI32(v int32)   { vm.push(ValueI32(v)) }
func (vm *vm) pushU32(v uint32)  { vm.push(valueU32(v)) }
func (vm *vm) pushI64(v int64)   { vm.push(ValueI64(v)) }
func (vm *vm) pushU64(v uint64)  { vm.push(valueU64(v)) }
func (vm *vm) pushF32(v float32) { vm.push(ValueF32(v)) }
func (vm *vm) pushF64(v float64) { vm.push(ValueF64(v)) }
func (vm *vm) pushBool(b bool)   { vm.push(valueBool(b)) }

// pushF32Bits and pushF64Bits keep NaN payloads which a float conversion could canonicalize.
func (vm *vm) pushF32Bits(bits uint32) { vm.push(Value{typ: ValueTypeF32, bits: uint64(bits)}) }
func (vm *vm) pushF64Bits(bits uint64) { vm.push(Value{typ: ValueTypeF64, bits: bits}) }

func (vm *vm) popF32Bits() uint32 {
	v := vm.pop()
	if v.typ != ValueTypeF32 {
		panic(errOperandType(ValueTypeF32, v))
	}
	return uint32(v.bits)
}

func (vm *vm) popF64Bits() uint64 {
	v := vm.pop()
	if v.typ != ValueTypeF64 {
		panic(errOperandType(ValueTypeF64, v))
	}
	return v.bits
}
