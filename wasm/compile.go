package wasm

import (
	"encoding/binary"
	"fmt"

	"github.com/tetcoin-staging/parity-wasm/internal/leb128"
)

// instruction is one decoded instruction of a function body. Bodies are decoded once when the function instance is
// created, so the engine never parses immediates or searches for the end of a block.
type instruction struct {
	op   Opcode
	misc OpcodeMisc
	// u1 and u2 are the immediates: an index, a label depth, a memory offset or the bits of a constant.
	u1, u2 uint64
	// blockType is set for OpcodeBlock, OpcodeLoop and OpcodeIf.
	blockType *FunctionType
	// elseAt is the position of the OpcodeElse of an OpcodeIf, or -1.
	elseAt int
	// endAt is the position of the OpcodeEnd closing an OpcodeBlock, OpcodeLoop, OpcodeIf or OpcodeElse.
	endAt int
	// targets are the label depths of OpcodeBrTable. The last one is the default.
	targets []uint32
}

var emptyBlockType = &FunctionType{}

// bodyReader reads immediates of a function body. The first error is kept in err.
type bodyReader struct {
	body []byte
	pos  int
	err  error
}

func (r *bodyReader) fail(format string, args ...interface{}) {
	if r.err == nil {
		r.err = fmt.Errorf(format, args...)
	}
}

func (r *bodyReader) readByte() byte {
	if r.pos >= len(r.body) {
		r.fail("unexpected end of body")
		return 0
	}
	b := r.body[r.pos]
	r.pos++
	return b
}

func (r *bodyReader) fixed(n int) []byte {
	if r.pos+n > len(r.body) {
		r.fail("unexpected end of body")
		r.pos = len(r.body)
		return make([]byte, n)
	}
	b := r.body[r.pos : r.pos+n]
	r.pos += n
	return b
}

func (r *bodyReader) u32() uint32 {
	v, n, err := leb128.LoadUint32(r.body[r.pos:])
	if err != nil {
		r.fail("read u32 at %#x: %w", r.pos, err)
	}
	r.pos += int(n)
	return v
}

func (r *bodyReader) i32() int32 {
	v, n, err := leb128.LoadInt32(r.body[r.pos:])
	if err != nil {
		r.fail("read i32 at %#x: %w", r.pos, err)
	}
	r.pos += int(n)
	return v
}

func (r *bodyReader) i64() int64 {
	v, n, err := leb128.LoadInt64(r.body[r.pos:])
	if err != nil {
		r.fail("read i64 at %#x: %w", r.pos, err)
	}
	r.pos += int(n)
	return v
}

func (r *bodyReader) blockType(types []*FunctionType) *FunctionType {
	if r.pos >= len(r.body) {
		r.fail("unexpected end of body")
		return emptyBlockType
	}
	switch b := r.body[r.pos]; b {
	case blockTypeEmpty:
		r.pos++
		return emptyBlockType
	case ValueTypeI32, ValueTypeI64, ValueTypeF32, ValueTypeF64, ValueTypeFuncref, ValueTypeExternref:
		r.pos++
		return &FunctionType{Results: []ValueType{b}}
	}
	idx, n, err := leb128.LoadInt33AsInt64(r.body[r.pos:])
	if err != nil {
		r.fail("read block type at %#x: %w", r.pos, err)
		return emptyBlockType
	}
	r.pos += int(n)
	if idx < 0 || idx >= int64(len(types)) {
		r.fail("block type index %d out of range of %d types", idx, len(types))
		return emptyBlockType
	}
	return types[idx]
}

// lowerBody decodes body into instructions. The final OpcodeEnd of the body is not emitted: running off the end
// of the instructions returns from the function.
func lowerBody(body []byte, types []*FunctionType) ([]instruction, error) {
	r := &bodyReader{body: body}
	ret := make([]instruction, 0, len(body))
	// controls are the positions of the open OpcodeBlock, OpcodeLoop and OpcodeIf instructions.
	var controls []int
	terminated := false

	for r.err == nil && r.pos < len(body) {
		at := r.pos
		in := instruction{op: r.readByte(), elseAt: -1, endAt: -1}
		pos := len(ret)
		switch in.op {
		case OpcodeUnreachable, OpcodeNop, OpcodeReturn, OpcodeDrop, OpcodeSelect, OpcodeRefIsNull:
		case OpcodeBlock, OpcodeLoop, OpcodeIf:
			in.blockType = r.blockType(types)
			controls = append(controls, pos)
		case OpcodeElse:
			if len(controls) == 0 || ret[controls[len(controls)-1]].op != OpcodeIf {
				r.fail("else at %#x without if", at)
				break
			}
			ifAt := controls[len(controls)-1]
			if ret[ifAt].elseAt != -1 {
				r.fail("duplicate else at %#x", at)
				break
			}
			ret[ifAt].elseAt = pos
		case OpcodeEnd:
			if len(controls) == 0 {
				if r.pos != len(body) {
					r.fail("end at %#x before the end of the body", at)
				}
				terminated = true
				continue
			}
			open := controls[len(controls)-1]
			controls = controls[:len(controls)-1]
			ret[open].endAt = pos
			if elseAt := ret[open].elseAt; elseAt != -1 {
				ret[elseAt].endAt = pos
			}
		case OpcodeBr, OpcodeBrIf:
			in.u1 = uint64(r.u32())
		case OpcodeBrTable:
			n := r.u32()
			if r.err == nil && int(n) > len(body)-r.pos {
				r.fail("br_table at %#x has too many targets: %d", at, n)
				break
			}
			in.targets = make([]uint32, n+1)
			for i := range in.targets {
				in.targets[i] = r.u32()
			}
		case OpcodeCall, OpcodeRefFunc, OpcodeLocalGet, OpcodeLocalSet, OpcodeLocalTee,
			OpcodeGlobalGet, OpcodeGlobalSet, OpcodeTableGet, OpcodeTableSet:
			in.u1 = uint64(r.u32())
		case OpcodeCallIndirect:
			in.u1 = uint64(r.u32()) // type index
			in.u2 = uint64(r.u32()) // table index
		case OpcodeTypedSelect:
			n := r.u32()
			for i := uint32(0); i < n && r.err == nil; i++ {
				r.readByte()
			}
		case OpcodeMemorySize, OpcodeMemoryGrow:
			if r.readByte() != 0 {
				r.fail("memory index at %#x must be zero", at)
			}
		case OpcodeI32Const:
			in.u1 = uint64(uint32(r.i32()))
		case OpcodeI64Const:
			in.u1 = uint64(r.i64())
		case OpcodeF32Const:
			in.u1 = uint64(binary.LittleEndian.Uint32(r.fixed(4)))
		case OpcodeF64Const:
			in.u1 = binary.LittleEndian.Uint64(r.fixed(8))
		case OpcodeRefNull:
			t := r.readByte()
			if !isReferenceType(t) {
				r.fail("invalid ref.null type %#x at %#x", t, at)
			}
			in.u1 = uint64(t)
		case OpcodeMiscPrefix:
			lowerMisc(r, &in, at)
		default:
			switch {
			case in.op >= OpcodeI32Load && in.op <= OpcodeI64Store32:
				_ = r.u32() // alignment
				in.u1 = uint64(r.u32())
			case in.op >= OpcodeI32Eqz && in.op <= OpcodeI64Extend32S:
			default:
				r.fail("unsupported opcode %#x at %#x", in.op, at)
			}
		}
		ret = append(ret, in)
	}

	if r.err == nil {
		if len(controls) != 0 {
			r.fail("%d blocks are not terminated", len(controls))
		} else if !terminated {
			r.fail("body is not terminated by end")
		}
	}
	if r.err != nil {
		return nil, r.err
	}
	return ret, nil
}

func lowerMisc(r *bodyReader, in *instruction, at int) {
	sub := r.u32()
	if sub > 0xff {
		r.fail("unsupported misc opcode %#x at %#x", sub, at)
		return
	}
	in.misc = OpcodeMisc(sub)
	switch in.misc {
	case OpcodeMiscI32TruncSatF32S, OpcodeMiscI32TruncSatF32U, OpcodeMiscI32TruncSatF64S, OpcodeMiscI32TruncSatF64U,
		OpcodeMiscI64TruncSatF32S, OpcodeMiscI64TruncSatF32U, OpcodeMiscI64TruncSatF64S, OpcodeMiscI64TruncSatF64U:
	case OpcodeMiscMemoryCopy:
		if r.readByte() != 0 || r.readByte() != 0 {
			r.fail("memory index at %#x must be zero", at)
		}
	case OpcodeMiscMemoryFill:
		if r.readByte() != 0 {
			r.fail("memory index at %#x must be zero", at)
		}
	case OpcodeMiscTableCopy:
		in.u1 = uint64(r.u32()) // destination
		in.u2 = uint64(r.u32()) // source
	case OpcodeMiscTableGrow, OpcodeMiscTableSize, OpcodeMiscTableFill:
		in.u1 = uint64(r.u32())
	default:
		r.fail("unsupported misc opcode %#x at %#x", sub, at)
	}
}
