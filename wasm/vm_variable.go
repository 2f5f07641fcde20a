package wasm

func opDrop(vm *vm, _ *frame, _ *instruction) {
	vm.pop()
}

func opSelect(vm *vm, fr *frame, _ *instruction) {
	c := vm.popI32()
	v2 := vm.pop()
	v1 := vm.pop()
	if v1.typ != v2.typ {
		panic(newError(ErrorKindValue, "%s: select between %s and %s", fr.f.Name, ValueTypeName(v1.typ), ValueTypeName(v2.typ)))
	}
	if c != 0 {
		vm.push(v1)
	} else {
		vm.push(v2)
	}
}

func localIndex(fr *frame, in *instruction) int {
	if in.u1 >= uint64(len(fr.locals)) {
		panic(newError(ErrorKindLocal, "%s: local index %d out of range of %d", fr.f.Name, in.u1, len(fr.locals)))
	}
	return int(in.u1)
}

func opLocalGet(vm *vm, fr *frame, in *instruction) {
	vm.push(fr.locals[localIndex(fr, in)])
}

func setLocal(fr *frame, idx int, v Value) {
	if cur := fr.locals[idx]; cur.typ != v.typ {
		panic(newError(ErrorKindValue, "%s: cannot set %s local %d to %s",
			fr.f.Name, ValueTypeName(cur.typ), idx, ValueTypeName(v.typ)))
	}
	fr.locals[idx] = v
}

func opLocalSet(vm *vm, fr *frame, in *instruction) {
	idx := localIndex(fr, in)
	setLocal(fr, idx, vm.pop())
}

func opLocalTee(vm *vm, fr *frame, in *instruction) {
	idx := localIndex(fr, in)
	v := vm.pop()
	setLocal(fr, idx, v)
	vm.push(v)
}

func global(fr *frame, in *instruction) *GlobalInstance {
	g := fr.f.module.Global(Index(in.u1))
	if g == nil {
		panic(newError(ErrorKindGlobal, "%s: global index %d out of range", fr.f.Name, in.u1))
	}
	return g
}

func opGlobalGet(vm *vm, fr *frame, in *instruction) {
	vm.push(global(fr, in).Get())
}

func opGlobalSet(vm *vm, fr *frame, in *instruction) {
	if err := global(fr, in).Set(vm.pop()); err != nil {
		panic(err)
	}
}

func table(fr *frame, idx uint64) *TableInstance {
	t := fr.f.module.Table(Index(idx))
	if t == nil {
		panic(newError(ErrorKindTable, "%s: table index %d out of range", fr.f.Name, idx))
	}
	return t
}

func opTableGet(vm *vm, fr *frame, in *instruction) {
	v, ok := table(fr, in.u1).Get(vm.popU32())
	if !ok {
		panic(newTrap(ErrRuntimeInvalidTableAccess))
	}
	vm.push(v)
}

func opTableSet(vm *vm, fr *frame, in *instruction) {
	t := table(fr, in.u1)
	v := vm.pop()
	i := vm.popU32()
	if i >= t.Size() {
		panic(newTrap(ErrRuntimeInvalidTableAccess))
	}
	if err := t.Set(i, v); err != nil {
		panic(err)
	}
}

func opTableSize(vm *vm, fr *frame, in *instruction) {
	vm.pushU32(table(fr, in.u1).Size())
}

func opTableGrow(vm *vm, fr *frame, in *instruction) {
	t := table(fr, in.u1)
	n := vm.popU32()
	init := vm.pop()
	if prev, ok := t.Grow(n, init); ok {
		vm.pushU32(prev)
	} else {
		vm.pushI32(-1)
	}
}

func opTableFill(vm *vm, fr *frame, in *instruction) {
	t := table(fr, in.u1)
	n := vm.popU32()
	v := vm.pop()
	offset := vm.popU32()
	if !t.Fill(offset, n, v) {
		panic(newTrap(ErrRuntimeInvalidTableAccess))
	}
}

func opTableCopy(vm *vm, fr *frame, in *instruction) {
	dst, src := table(fr, in.u1), table(fr, in.u2)
	n := vm.popU32()
	srcOffset := vm.popU32()
	dstOffset := vm.popU32()
	if !dst.CopyFrom(dstOffset, src, srcOffset, n) {
		panic(newTrap(ErrRuntimeInvalidTableAccess))
	}
}

func opRefNull(vm *vm, _ *frame, in *instruction) {
	vm.push(ValueNull(ValueType(in.u1)))
}

func opRefIsNull(vm *vm, fr *frame, _ *instruction) {
	v := vm.pop()
	if !isReferenceType(v.typ) {
		panic(newError(ErrorKindValue, "%s: ref.is_null on %s", fr.f.Name, ValueTypeName(v.typ)))
	}
	vm.pushBool(v.ref == nil)
}

func opRefFunc(vm *vm, fr *frame, in *instruction) {
	f := fr.f.module.Function(Index(in.u1))
	if f == nil {
		panic(newError(ErrorKindFunction, "%s: function index %d out of range", fr.f.Name, in.u1))
	}
	vm.push(ValueFuncref(f))
}

func opI32Const(vm *vm, _ *frame, in *instruction) { vm.pushU32(uint32(in.u1)) }
func opI64Const(vm *vm, _ *frame, in *instruction) { vm.pushU64(in.u1) }
func opF32Const(vm *vm, _ *frame, in *instruction) { vm.pushF32Bits(uint32(in.u1)) }
func opF64Const(vm *vm, _ *frame, in *instruction) { vm.pushF64Bits(in.u1) }
