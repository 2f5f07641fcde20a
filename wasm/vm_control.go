package wasm

func opUnreachable(*vm, *frame, *instruction) {
	panic(newTrap(ErrRuntimeUnreachable))
}

func blockLabel(vm *vm, in *instruction, arity int) label {
	bt := in.blockType
	return label{
		arity:        arity,
		results:      len(bt.Results),
		continuation: in.endAt + 1,
		height:       vm.operands.Len() - len(bt.Params),
	}
}

func opBlock(vm *vm, fr *frame, in *instruction) {
	fr.labels = append(fr.labels, blockLabel(vm, in, len(in.blockType.Results)))
}

// opLoop pushes a label whose branch re-enters the loop instruction, which pushes the label again.
func opLoop(vm *vm, fr *frame, in *instruction) {
	l := blockLabel(vm, in, len(in.blockType.Params))
	l.continuation = fr.pc - 1
	fr.labels = append(fr.labels, l)
}

func opIf(vm *vm, fr *frame, in *instruction) {
	c := vm.popI32()
	if c == 0 {
		if in.elseAt < 0 {
			// Without an else arm, validation guarantees the params are the results.
			fr.pc = in.endAt + 1
			return
		}
		fr.pc = in.elseAt + 1
	}
	fr.labels = append(fr.labels, blockLabel(vm, in, len(in.blockType.Results)))
}

// opElse is reached at the end of the then-arm.
func opElse(vm *vm, fr *frame, in *instruction) {
	vm.endLabel(fr)
	fr.pc = in.endAt + 1
}

func opEnd(vm *vm, fr *frame, _ *instruction) {
	vm.endLabel(fr)
}

func (vm *vm) endLabel(fr *frame) {
	n := len(fr.labels)
	if n == 0 {
		panic(newError(ErrorKindInterpreter, "%s: end without an open block", fr.f.Name))
	}
	l := fr.labels[n-1]
	fr.labels = fr.labels[:n-1]
	vm.unwind(l.height, l.results)
}

func opBr(vm *vm, fr *frame, in *instruction) {
	vm.branch(fr, uint32(in.u1))
}

func opBrIf(vm *vm, fr *frame, in *instruction) {
	if vm.popI32() != 0 {
		vm.branch(fr, uint32(in.u1))
	}
}

func opBrTable(vm *vm, fr *frame, in *instruction) {
	i := vm.popU32()
	last := uint32(len(in.targets) - 1)
	if i > last {
		i = last
	}
	vm.branch(fr, in.targets[i])
}

func opReturn(vm *vm, fr *frame, _ *instruction) {
	vm.ret(fr)
}

// branch keeps the values carried to the label at depth, drops everything else pushed since that label, and
// continues at its target. The depth one past the innermost block targets the function itself, returning.
func (vm *vm) branch(fr *frame, depth uint32) {
	n := len(fr.labels)
	if int(depth) == n {
		vm.ret(fr)
		return
	} else if int(depth) > n {
		panic(newError(ErrorKindInterpreter, "%s: branch depth %d exceeds %d labels", fr.f.Name, depth, n))
	}
	target := n - 1 - int(depth)
	l := fr.labels[target]
	vm.unwind(l.height, l.arity)
	fr.labels = fr.labels[:target]
	fr.pc = l.continuation
}

// ret pops fr, moving its results onto the operands of the caller.
func (vm *vm) ret(fr *frame) {
	results := vm.popN(len(fr.f.Type.Results))
	if err := checkValueTypes(ErrorKindValue, "results of "+fr.f.Name, fr.f.Type.Results, results); err != nil {
		panic(err)
	}
	vm.truncate(fr.base)
	if _, err := vm.frames.Pop(); err != nil {
		panic(wrapError(ErrorKindStack, err, "pop frame"))
	}
	for _, v := range results {
		vm.push(v)
	}
}
