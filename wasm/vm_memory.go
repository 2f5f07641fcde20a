package wasm

import "math"

func memory(fr *frame) *MemoryInstance {
	m := fr.f.module
	if len(m.memories) == 0 {
		panic(newError(ErrorKindMemory, "%s: module has no memory", fr.f.Name))
	}
	return m.memories[0]
}

// effectiveAddress pops the base address and adds the static offset of in.
func (vm *vm) effectiveAddress(in *instruction) uint32 {
	ea := uint64(vm.popU32()) + in.u1
	if ea > math.MaxUint32 {
		panic(newTrap(ErrRuntimeOutOfBoundsMemoryAccess))
	}
	return uint32(ea)
}

func outOfBounds(ok bool) {
	if !ok {
		panic(newTrap(ErrRuntimeOutOfBoundsMemoryAccess))
	}
}

func (vm *vm) load32(fr *frame, in *instruction) uint32 {
	v, ok := memory(fr).ReadUint32Le(vm.effectiveAddress(in))
	outOfBounds(ok)
	return v
}

func (vm *vm) load64(fr *frame, in *instruction) uint64 {
	v, ok := memory(fr).ReadUint64Le(vm.effectiveAddress(in))
	outOfBounds(ok)
	return v
}

func (vm *vm) load16(fr *frame, in *instruction) uint16 {
	v, ok := memory(fr).ReadUint16Le(vm.effectiveAddress(in))
	outOfBounds(ok)
	return v
}

func (vm *vm) load8(fr *frame, in *instruction) byte {
	v, ok := memory(fr).ReadByte(vm.effectiveAddress(in))
	outOfBounds(ok)
	return v
}

func opI32Load(vm *vm, fr *frame, in *instruction)    { vm.pushU32(vm.load32(fr, in)) }
func opI64Load(vm *vm, fr *frame, in *instruction)    { vm.pushU64(vm.load64(fr, in)) }
func opF32Load(vm *vm, fr *frame, in *instruction)    { vm.pushF32Bits(vm.load32(fr, in)) }
func opF64Load(vm *vm, fr *frame, in *instruction)    { vm.pushF64Bits(vm.load64(fr, in)) }
func opI32Load8S(vm *vm, fr *frame, in *instruction)  { vm.pushI32(int32(int8(vm.load8(fr, in)))) }
func opI32Load8U(vm *vm, fr *frame, in *instruction)  { vm.pushU32(uint32(vm.load8(fr, in))) }
func opI32Load16S(vm *vm, fr *frame, in *instruction) { vm.pushI32(int32(int16(vm.load16(fr, in)))) }
func opI32Load16U(vm *vm, fr *frame, in *instruction) { vm.pushU32(uint32(vm.load16(fr, in))) }
func opI64Load8S(vm *vm, fr *frame, in *instruction)  { vm.pushI64(int64(int8(vm.load8(fr, in)))) }
func opI64Load8U(vm *vm, fr *frame, in *instruction)  { vm.pushU64(uint64(vm.load8(fr, in))) }
func opI64Load16S(vm *vm, fr *frame, in *instruction) { vm.pushI64(int64(int16(vm.load16(fr, in)))) }
func opI64Load16U(vm *vm, fr *frame, in *instruction) { vm.pushU64(uint64(vm.load16(fr, in))) }
func opI64Load32S(vm *vm, fr *frame, in *instruction) { vm.pushI64(int64(int32(vm.load32(fr, in)))) }
func opI64Load32U(vm *vm, fr *frame, in *instruction) { vm.pushU64(uint64(vm.load32(fr, in))) }

// The value is popped before the address in every store.

func opI32Store(vm *vm, fr *frame, in *instruction) {
	v := vm.popU32()
	outOfBounds(memory(fr).WriteUint32Le(vm.effectiveAddress(in), v))
}

func opI64Store(vm *vm, fr *frame, in *instruction) {
	v := vm.popU64()
	outOfBounds(memory(fr).WriteUint64Le(vm.effectiveAddress(in), v))
}

func opF32Store(vm *vm, fr *frame, in *instruction) {
	v := vm.popF32Bits()
	outOfBounds(memory(fr).WriteUint32Le(vm.effectiveAddress(in), v))
}

func opF64Store(vm *vm, fr *frame, in *instruction) {
	v := vm.popF64Bits()
	outOfBounds(memory(fr).WriteUint64Le(vm.effectiveAddress(in), v))
}

func opI32Store8(vm *vm, fr *frame, in *instruction) {
	v := vm.popU32()
	outOfBounds(memory(fr).WriteByte(vm.effectiveAddress(in), byte(v)))
}

func opI32Store16(vm *vm, fr *frame, in *instruction) {
	v := vm.popU32()
	outOfBounds(memory(fr).WriteUint16Le(vm.effectiveAddress(in), uint16(v)))
}

func opI64Store8(vm *vm, fr *frame, in *instruction) {
	v := vm.popU64()
	outOfBounds(memory(fr).WriteByte(vm.effectiveAddress(in), byte(v)))
}

func opI64Store16(vm *vm, fr *frame, in *instruction) {
	v := vm.popU64()
	outOfBounds(memory(fr).WriteUint16Le(vm.effectiveAddress(in), uint16(v)))
}

func opI64Store32(vm *vm, fr *frame, in *instruction) {
	v := vm.popU64()
	outOfBounds(memory(fr).WriteUint32Le(vm.effectiveAddress(in), uint32(v)))
}

func opMemorySize(vm *vm, fr *frame, _ *instruction) {
	vm.pushU32(memory(fr).PageSize())
}

// opMemoryGrow pushes -1 rather than trapping when the memory cannot grow.
func opMemoryGrow(vm *vm, fr *frame, _ *instruction) {
	n := vm.popU32()
	if prev, ok := memory(fr).Grow(n); ok {
		vm.pushU32(prev)
	} else {
		vm.pushI32(-1)
	}
}

func opMemoryCopy(vm *vm, fr *frame) {
	n := vm.popU32()
	src := vm.popU32()
	dst := vm.popU32()
	outOfBounds(memory(fr).Copy(dst, src, n))
}

func opMemoryFill(vm *vm, fr *frame) {
	n := vm.popU32()
	v := vm.popU32()
	dst := vm.popU32()
	outOfBounds(memory(fr).Fill(dst, n, byte(v)))
}

func opMisc(vm *vm, fr *frame, in *instruction) {
	switch in.misc {
	case OpcodeMiscMemoryCopy:
		opMemoryCopy(vm, fr)
	case OpcodeMiscMemoryFill:
		opMemoryFill(vm, fr)
	case OpcodeMiscTableCopy:
		opTableCopy(vm, fr, in)
	case OpcodeMiscTableGrow:
		opTableGrow(vm, fr, in)
	case OpcodeMiscTableSize:
		opTableSize(vm, fr, in)
	case OpcodeMiscTableFill:
		opTableFill(vm, fr, in)
	default:
		truncSat(vm, in.misc)
	}
}
