package wasm

import (
	"go.uber.org/zap"

	"github.com/tetcoin-staging/parity-wasm/internal/buildoptions"
	"github.com/tetcoin-staging/parity-wasm/internal/stack"
)

// vm executes one invocation. A new vm is created per invocation, so nested invocations started by host functions
// get their own call stack.
type vm struct {
	cfg      *RuntimeConfig
	state    *HostState
	operands *stack.Stack[Value]
	frames   *stack.Stack[*frame]
}

type frame struct {
	f *FunctionInstance
	// pc is the position in f.body of the next instruction.
	pc     int
	locals []Value
	labels []label
	// base is the operand stack height when the frame was entered, after its arguments were popped.
	base int
}

// label is the branch target of an open block, loop or if.
type label struct {
	// arity is the count of values carried by a branch to this label: the results of a block or if, the params of
	// a loop.
	arity int
	// results is the count of values left when the block ends without branching.
	results int
	// continuation is where a branch to this label resumes.
	continuation int
	// height is the operand stack height below the block's params.
	height int
}

type handler func(vm *vm, fr *frame, in *instruction)

// instructions is indexed by Opcode. It is filled by init to break the initialization cycle through run.
var instructions [256]handler

func newVM(cfg *RuntimeConfig, state *HostState) *vm {
	return &vm{
		cfg:      cfg,
		state:    state,
		operands: stack.New[Value](64, cfg.operandStackLimit),
		frames:   stack.New[*frame](16, cfg.callStackLimit),
	}
}

// invoke runs f to completion. Every failure, including a panic inside a handler, is returned as an *Error.
func (vm *vm) invoke(f *FunctionInstance, args []Value) (results []Value, err error) {
	defer func() {
		if v := recover(); v != nil {
			if buildoptions.IsDebugMode {
				Logger().Debug("unwinding", zap.String("function", f.Name), zap.Stack("stack"))
			}
			err = recovered(v)
		}
	}()

	for _, a := range args {
		vm.push(a)
	}
	if f.IsHost() {
		vm.callHost(nil, f)
	} else {
		vm.pushFrame(f)
		vm.run()
	}
	return vm.popN(len(f.Type.Results)), nil
}

func recovered(v interface{}) *Error {
	switch e := v.(type) {
	case *Error:
		return e
	case error:
		return wrapError(ErrorKindInterpreter, e, "engine fault")
	default:
		return newError(ErrorKindInterpreter, "engine fault: %v", v)
	}
}

func (vm *vm) run() {
	for !vm.frames.IsEmpty() {
		fr, _ := vm.frames.Top()
		if fr.pc >= len(fr.f.body) {
			vm.ret(fr)
			continue
		}
		in := &fr.f.body[fr.pc]
		if buildoptions.IsDebugMode {
			Logger().Debug("dispatch",
				zap.String("function", fr.f.Name),
				zap.Int("pc", fr.pc),
				zap.Uint8("op", in.op),
				zap.Int("labels", len(fr.labels)),
				zap.Int("operands", vm.operands.Len()),
				zap.Int("frames", vm.frames.Len()))
		}
		fr.pc++
		h := instructions[in.op]
		if h == nil {
			panic(newError(ErrorKindInterpreter, "no handler for opcode %#x", in.op))
		}
		h(vm, fr, in)
	}
}

func init() {
	instructions = [256]handler{
		OpcodeUnreachable:  opUnreachable,
		OpcodeNop:          func(*vm, *frame, *instruction) {},
		OpcodeBlock:        opBlock,
		OpcodeLoop:         opLoop,
		OpcodeIf:           opIf,
		OpcodeElse:         opElse,
		OpcodeEnd:          opEnd,
		OpcodeBr:           opBr,
		OpcodeBrIf:         opBrIf,
		OpcodeBrTable:      opBrTable,
		OpcodeReturn:       opReturn,
		OpcodeCall:         opCall,
		OpcodeCallIndirect: opCallIndirect,

		OpcodeDrop:        opDrop,
		OpcodeSelect:      opSelect,
		OpcodeTypedSelect: opSelect,

		OpcodeLocalGet:  opLocalGet,
		OpcodeLocalSet:  opLocalSet,
		OpcodeLocalTee:  opLocalTee,
		OpcodeGlobalGet: opGlobalGet,
		OpcodeGlobalSet: opGlobalSet,
		OpcodeTableGet:  opTableGet,
		OpcodeTableSet:  opTableSet,

		OpcodeI32Load:    opI32Load,
		OpcodeI64Load:    opI64Load,
		OpcodeF32Load:    opF32Load,
		OpcodeF64Load:    opF64Load,
		OpcodeI32Load8S:  opI32Load8S,
		OpcodeI32Load8U:  opI32Load8U,
		OpcodeI32Load16S: opI32Load16S,
		OpcodeI32Load16U: opI32Load16U,
		OpcodeI64Load8S:  opI64Load8S,
		OpcodeI64Load8U:  opI64Load8U,
		OpcodeI64Load16S: opI64Load16S,
		OpcodeI64Load16U: opI64Load16U,
		OpcodeI64Load32S: opI64Load32S,
		OpcodeI64Load32U: opI64Load32U,
		OpcodeI32Store:   opI32Store,
		OpcodeI64Store:   opI64Store,
		OpcodeF32Store:   opF32Store,
		OpcodeF64Store:   opF64Store,
		OpcodeI32Store8:  opI32Store8,
		OpcodeI32Store16: opI32Store16,
		OpcodeI64Store8:  opI64Store8,
		OpcodeI64Store16: opI64Store16,
		OpcodeI64Store32: opI64Store32,
		OpcodeMemorySize: opMemorySize,
		OpcodeMemoryGrow: opMemoryGrow,

		OpcodeI32Const: opI32Const,
		OpcodeI64Const: opI64Const,
		OpcodeF32Const: opF32Const,
		OpcodeF64Const: opF64Const,

		OpcodeRefNull:   opRefNull,
		OpcodeRefIsNull: opRefIsNull,
		OpcodeRefFunc:   opRefFunc,

		OpcodeMiscPrefix: opMisc,
	}
	for op, h := range numericInstructions {
		instructions[op] = h
	}
}
