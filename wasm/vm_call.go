package wasm

// pushFrame pops the arguments of f and enters it. f is interpreted.
func (vm *vm) pushFrame(f *FunctionInstance) {
	params := len(f.Type.Params)
	args := vm.popN(params)
	if err := checkValueTypes(ErrorKindValue, "arguments of "+f.Name, f.Type.Params, args); err != nil {
		panic(err)
	}
	locals := make([]Value, params+len(f.localTypes))
	copy(locals, args)
	for i, t := range f.localTypes {
		locals[params+i] = zeroValue(t)
	}
	fr := &frame{f: f, locals: locals, base: vm.operands.Len()}
	if err := vm.frames.Push(fr); err != nil {
		panic(wrapError(ErrorKindStack, ErrRuntimeCallStackOverflow, "call stack exceeds %d frames", vm.frames.Limit()))
	}
}

// callHost marshals the arguments of the host function f from the operand stack, calls it and pushes its results.
// caller is the module whose code made the call, or nil.
func (vm *vm) callHost(caller *ModuleInstance, f *FunctionInstance) {
	args := vm.popN(len(f.Type.Params))
	if err := checkValueTypes(ErrorKindNative, "arguments of "+f.Name, f.Type.Params, args); err != nil {
		panic(err)
	}
	ctx := &HostFunctionCallContext{State: vm.state, Module: caller, Function: f}
	if caller != nil {
		caller.hostCalls = append(caller.hostCalls, vm.state)
		defer func() { caller.hostCalls = caller.hostCalls[:len(caller.hostCalls)-1] }()
	}
	results, err := f.host(ctx, args)
	if err != nil {
		panic(asError(err))
	}
	if err = checkValueTypes(ErrorKindNative, "results of "+f.Name, f.Type.Results, results); err != nil {
		panic(err)
	}
	for _, v := range results {
		vm.push(v)
	}
}

func (vm *vm) call(caller *ModuleInstance, f *FunctionInstance) {
	if f.IsHost() {
		vm.callHost(caller, f)
	} else {
		vm.pushFrame(f)
	}
}

func opCall(vm *vm, fr *frame, in *instruction) {
	m := fr.f.module
	f := m.Function(Index(in.u1))
	if f == nil {
		panic(newError(ErrorKindFunction, "%s: function index %d out of range", fr.f.Name, in.u1))
	}
	vm.call(m, f)
}

func opCallIndirect(vm *vm, fr *frame, in *instruction) {
	m := fr.f.module
	t := m.Table(Index(in.u2))
	if t == nil {
		panic(newError(ErrorKindTable, "%s: table index %d out of range", fr.f.Name, in.u2))
	}
	if int(in.u1) >= len(m.types) {
		panic(newError(ErrorKindFunction, "%s: type index %d out of range", fr.f.Name, in.u1))
	}
	expected := m.types[in.u1]

	v, ok := t.Get(vm.popU32())
	if !ok {
		panic(newTrap(ErrRuntimeInvalidTableAccess))
	}
	f, _ := v.Funcref()
	if f == nil {
		panic(newTrap(ErrRuntimeInvalidTableAccess))
	}
	if !f.Type.Equals(expected) {
		panic(newTrap(ErrRuntimeIndirectCallTypeMismatch))
	}
	vm.call(m, f)
}
