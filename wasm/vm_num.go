package wasm

import (
	"math"
	"math/bits"

	"github.com/tetcoin-staging/parity-wasm/internal/moremath"
)

func i32Test(f func(a uint32) bool) handler {
	return func(vm *vm, _ *frame, _ *instruction) { vm.pushBool(f(vm.popU32())) }
}

func i32Cmp(f func(a, b uint32) bool) handler {
	return func(vm *vm, _ *frame, _ *instruction) {
		b := vm.popU32()
		vm.pushBool(f(vm.popU32(), b))
	}
}

func i32Unop(f func(a uint32) uint32) handler {
	return func(vm *vm, _ *frame, _ *instruction) { vm.pushU32(f(vm.popU32())) }
}

func i32Binop(f func(a, b uint32) uint32) handler {
	return func(vm *vm, _ *frame, _ *instruction) {
		b := vm.popU32()
		vm.pushU32(f(vm.popU32(), b))
	}
}

func i64Test(f func(a uint64) bool) handler {
	return func(vm *vm, _ *frame, _ *instruction) { vm.pushBool(f(vm.popU64())) }
}

func i64Cmp(f func(a, b uint64) bool) handler {
	return func(vm *vm, _ *frame, _ *instruction) {
		b := vm.popU64()
		vm.pushBool(f(vm.popU64(), b))
	}
}

func i64Unop(f func(a uint64) uint64) handler {
	return func(vm *vm, _ *frame, _ *instruction) { vm.pushU64(f(vm.popU64())) }
}

func i64Binop(f func(a, b uint64) uint64) handler {
	return func(vm *vm, _ *frame, _ *instruction) {
		b := vm.popU64()
		vm.pushU64(f(vm.popU64(), b))
	}
}

func f32Cmp(f func(a, b float32) bool) handler {
	return func(vm *vm, _ *frame, _ *instruction) {
		b := vm.popF32()
		vm.pushBool(f(vm.popF32(), b))
	}
}

func f32Unop(f func(a float32) float32) handler {
	return func(vm *vm, _ *frame, _ *instruction) { vm.pushF32(f(vm.popF32())) }
}

func f32Binop(f func(a, b float32) float32) handler {
	return func(vm *vm, _ *frame, _ *instruction) {
		b := vm.popF32()
		vm.pushF32(f(vm.popF32(), b))
	}
}

func f64Cmp(f func(a, b float64) bool) handler {
	return func(vm *vm, _ *frame, _ *instruction) {
		b := vm.popF64()
		vm.pushBool(f(vm.popF64(), b))
	}
}

func f64Unop(f func(a float64) float64) handler {
	return func(vm *vm, _ *frame, _ *instruction) { vm.pushF64(f(vm.popF64())) }
}

func f64Binop(f func(a, b float64) float64) handler {
	return func(vm *vm, _ *frame, _ *instruction) {
		b := vm.popF64()
		vm.pushF64(f(vm.popF64(), b))
	}
}

func divisor32(b uint32) {
	if b == 0 {
		panic(newTrap(ErrRuntimeIntegerDivideByZero))
	}
}

func divisor64(b uint64) {
	if b == 0 {
		panic(newTrap(ErrRuntimeIntegerDivideByZero))
	}
}

// abs, neg and copysign operate on the sign bit so NaN payloads survive.
const (
	f32SignBit = uint32(1) << 31
	f64SignBit = uint64(1) << 63
)

func f32Bits(f func(a uint32) uint32) handler {
	return func(vm *vm, _ *frame, _ *instruction) { vm.pushF32Bits(f(vm.popF32Bits())) }
}

func f64Bits(f func(a uint64) uint64) handler {
	return func(vm *vm, _ *frame, _ *instruction) { vm.pushF64Bits(f(vm.popF64Bits())) }
}

// Bounds of the integer ranges: a truncated value t converts when lower <= t < upper.
const (
	i32Lower, i32Upper = -2147483648.0, 2147483648.0
	u32Lower, u32Upper = 0.0, 4294967296.0
	i64Lower, i64Upper = -9223372036854775808.0, 9223372036854775808.0
	u64Lower, u64Upper = 0.0, 18446744073709551616.0
)

// truncate returns f without its fractional part, trapping when f is NaN or the result is outside [lower, upper).
func truncate(f, lower, upper float64) float64 {
	if math.IsNaN(f) {
		panic(newTrap(ErrRuntimeInvalidConversionToInteger))
	}
	t := math.Trunc(f)
	if t < lower || t >= upper {
		panic(newTrap(ErrRuntimeIntegerOverflow))
	}
	return t
}

// saturate is truncate without traps. below or above is set when the caller must substitute a bound. NaN reports
// neither and truncates to zero.
func saturate(f, lower, upper float64) (t float64, below, above bool) {
	if math.IsNaN(f) {
		return 0, false, false
	}
	t = math.Trunc(f)
	return t, t < lower, t >= upper
}

var numericInstructions = map[Opcode]handler{
	OpcodeI32Eqz: i32Test(func(a uint32) bool { return a == 0 }),
	OpcodeI32Eq:  i32Cmp(func(a, b uint32) bool { return a == b }),
	OpcodeI32Ne:  i32Cmp(func(a, b uint32) bool { return a != b }),
	OpcodeI32LtS: i32Cmp(func(a, b uint32) bool { return int32(a) < int32(b) }),
	OpcodeI32LtU: i32Cmp(func(a, b uint32) bool { return a < b }),
	OpcodeI32GtS: i32Cmp(func(a, b uint32) bool { return int32(a) > int32(b) }),
	OpcodeI32GtU: i32Cmp(func(a, b uint32) bool { return a > b }),
	OpcodeI32LeS: i32Cmp(func(a, b uint32) bool { return int32(a) <= int32(b) }),
	OpcodeI32LeU: i32Cmp(func(a, b uint32) bool { return a <= b }),
	OpcodeI32GeS: i32Cmp(func(a, b uint32) bool { return int32(a) >= int32(b) }),
	OpcodeI32GeU: i32Cmp(func(a, b uint32) bool { return a >= b }),

	OpcodeI64Eqz: i64Test(func(a uint64) bool { return a == 0 }),
	OpcodeI64Eq:  i64Cmp(func(a, b uint64) bool { return a == b }),
	OpcodeI64Ne:  i64Cmp(func(a, b uint64) bool { return a != b }),
	OpcodeI64LtS: i64Cmp(func(a, b uint64) bool { return int64(a) < int64(b) }),
	OpcodeI64LtU: i64Cmp(func(a, b uint64) bool { return a < b }),
	OpcodeI64GtS: i64Cmp(func(a, b uint64) bool { return int64(a) > int64(b) }),
	OpcodeI64GtU: i64Cmp(func(a, b uint64) bool { return a > b }),
	OpcodeI64LeS: i64Cmp(func(a, b uint64) bool { return int64(a) <= int64(b) }),
	OpcodeI64LeU: i64Cmp(func(a, b uint64) bool { return a <= b }),
	OpcodeI64GeS: i64Cmp(func(a, b uint64) bool { return int64(a) >= int64(b) }),
	OpcodeI64GeU: i64Cmp(func(a, b uint64) bool { return a >= b }),

	OpcodeF32Eq: f32Cmp(func(a, b float32) bool { return a == b }),
	OpcodeF32Ne: f32Cmp(func(a, b float32) bool { return a != b }),
	OpcodeF32Lt: f32Cmp(func(a, b float32) bool { return a < b }),
	OpcodeF32Gt: f32Cmp(func(a, b float32) bool { return a > b }),
	OpcodeF32Le: f32Cmp(func(a, b float32) bool { return a <= b }),
	OpcodeF32Ge: f32Cmp(func(a, b float32) bool { return a >= b }),

	OpcodeF64Eq: f64Cmp(func(a, b float64) bool { return a == b }),
	OpcodeF64Ne: f64Cmp(func(a, b float64) bool { return a != b }),
	OpcodeF64Lt: f64Cmp(func(a, b float64) bool { return a < b }),
	OpcodeF64Gt: f64Cmp(func(a, b float64) bool { return a > b }),
	OpcodeF64Le: f64Cmp(func(a, b float64) bool { return a <= b }),
	OpcodeF64Ge: f64Cmp(func(a, b float64) bool { return a >= b }),

	OpcodeI32Clz:    i32Unop(func(a uint32) uint32 { return uint32(bits.LeadingZeros32(a)) }),
	OpcodeI32Ctz:    i32Unop(func(a uint32) uint32 { return uint32(bits.TrailingZeros32(a)) }),
	OpcodeI32Popcnt: i32Unop(func(a uint32) uint32 { return uint32(bits.OnesCount32(a)) }),
	OpcodeI32Add:    i32Binop(func(a, b uint32) uint32 { return a + b }),
	OpcodeI32Sub:    i32Binop(func(a, b uint32) uint32 { return a - b }),
	OpcodeI32Mul:    i32Binop(func(a, b uint32) uint32 { return a * b }),
	OpcodeI32DivS: i32Binop(func(a, b uint32) uint32 {
		divisor32(b)
		if int32(a) == math.MinInt32 && int32(b) == -1 {
			panic(newTrap(ErrRuntimeIntegerOverflow))
		}
		return uint32(int32(a) / int32(b))
	}),
	OpcodeI32DivU: i32Binop(func(a, b uint32) uint32 {
		divisor32(b)
		return a / b
	}),
	OpcodeI32RemS: i32Binop(func(a, b uint32) uint32 {
		divisor32(b)
		if int32(b) == -1 {
			return 0
		}
		return uint32(int32(a) % int32(b))
	}),
	OpcodeI32RemU: i32Binop(func(a, b uint32) uint32 {
		divisor32(b)
		return a % b
	}),
	OpcodeI32And:  i32Binop(func(a, b uint32) uint32 { return a & b }),
	OpcodeI32Or:   i32Binop(func(a, b uint32) uint32 { return a | b }),
	OpcodeI32Xor:  i32Binop(func(a, b uint32) uint32 { return a ^ b }),
	OpcodeI32Shl:  i32Binop(func(a, b uint32) uint32 { return a << (b & 31) }),
	OpcodeI32ShrS: i32Binop(func(a, b uint32) uint32 { return uint32(int32(a) >> (b & 31)) }),
	OpcodeI32ShrU: i32Binop(func(a, b uint32) uint32 { return a >> (b & 31) }),
	OpcodeI32Rotl: i32Binop(func(a, b uint32) uint32 { return bits.RotateLeft32(a, int(b&31)) }),
	OpcodeI32Rotr: i32Binop(func(a, b uint32) uint32 { return bits.RotateLeft32(a, -int(b&31)) }),

	OpcodeI64Clz:    i64Unop(func(a uint64) uint64 { return uint64(bits.LeadingZeros64(a)) }),
	OpcodeI64Ctz:    i64Unop(func(a uint64) uint64 { return uint64(bits.TrailingZeros64(a)) }),
	OpcodeI64Popcnt: i64Unop(func(a uint64) uint64 { return uint64(bits.OnesCount64(a)) }),
	OpcodeI64Add:    i64Binop(func(a, b uint64) uint64 { return a + b }),
	OpcodeI64Sub:    i64Binop(func(a, b uint64) uint64 { return a - b }),
	OpcodeI64Mul:    i64Binop(func(a, b uint64) uint64 { return a * b }),
	OpcodeI64DivS: i64Binop(func(a, b uint64) uint64 {
		divisor64(b)
		if int64(a) == math.MinInt64 && int64(b) == -1 {
			panic(newTrap(ErrRuntimeIntegerOverflow))
		}
		return uint64(int64(a) / int64(b))
	}),
	OpcodeI64DivU: i64Binop(func(a, b uint64) uint64 {
		divisor64(b)
		return a / b
	}),
	OpcodeI64RemS: i64Binop(func(a, b uint64) uint64 {
		divisor64(b)
		if int64(b) == -1 {
			return 0
		}
		return uint64(int64(a) % int64(b))
	}),
	OpcodeI64RemU: i64Binop(func(a, b uint64) uint64 {
		divisor64(b)
		return a % b
	}),
	OpcodeI64And:  i64Binop(func(a, b uint64) uint64 { return a & b }),
	OpcodeI64Or:   i64Binop(func(a, b uint64) uint64 { return a | b }),
	OpcodeI64Xor:  i64Binop(func(a, b uint64) uint64 { return a ^ b }),
	OpcodeI64Shl:  i64Binop(func(a, b uint64) uint64 { return a << (b & 63) }),
	OpcodeI64ShrS: i64Binop(func(a, b uint64) uint64 { return uint64(int64(a) >> (b & 63)) }),
	OpcodeI64ShrU: i64Binop(func(a, b uint64) uint64 { return a >> (b & 63) }),
	OpcodeI64Rotl: i64Binop(func(a, b uint64) uint64 { return bits.RotateLeft64(a, int(b&63)) }),
	OpcodeI64Rotr: i64Binop(func(a, b uint64) uint64 { return bits.RotateLeft64(a, -int(b&63)) }),

	OpcodeF32Abs:     f32Bits(func(a uint32) uint32 { return a &^ f32SignBit }),
	OpcodeF32Neg:     f32Bits(func(a uint32) uint32 { return a ^ f32SignBit }),
	OpcodeF32Ceil:    f32Unop(func(a float32) float32 { return float32(math.Ceil(float64(a))) }),
	OpcodeF32Floor:   f32Unop(func(a float32) float32 { return float32(math.Floor(float64(a))) }),
	OpcodeF32Trunc:   f32Unop(func(a float32) float32 { return float32(math.Trunc(float64(a))) }),
	OpcodeF32Nearest: f32Unop(moremath.WasmCompatNearestF32),
	OpcodeF32Sqrt:    f32Unop(func(a float32) float32 { return float32(math.Sqrt(float64(a))) }),
	OpcodeF32Add:     f32Binop(func(a, b float32) float32 { return a + b }),
	OpcodeF32Sub:     f32Binop(func(a, b float32) float32 { return a - b }),
	OpcodeF32Mul:     f32Binop(func(a, b float32) float32 { return a * b }),
	OpcodeF32Div:     f32Binop(func(a, b float32) float32 { return a / b }),
	OpcodeF32Min: f32Binop(func(a, b float32) float32 {
		return float32(moremath.WasmCompatMin(float64(a), float64(b)))
	}),
	OpcodeF32Max: f32Binop(func(a, b float32) float32 {
		return float32(moremath.WasmCompatMax(float64(a), float64(b)))
	}),
	OpcodeF32Copysign: func(vm *vm, _ *frame, _ *instruction) {
		b := vm.popF32Bits()
		a := vm.popF32Bits()
		vm.pushF32Bits(a&^f32SignBit | b&f32SignBit)
	},

	OpcodeF64Abs:      f64Bits(func(a uint64) uint64 { return a &^ f64SignBit }),
	OpcodeF64Neg:      f64Bits(func(a uint64) uint64 { return a ^ f64SignBit }),
	OpcodeF64Ceil:     f64Unop(math.Ceil),
	OpcodeF64Floor:    f64Unop(math.Floor),
	OpcodeF64Trunc:    f64Unop(math.Trunc),
	OpcodeF64Nearest:  f64Unop(moremath.WasmCompatNearestF64),
	OpcodeF64Sqrt:     f64Unop(math.Sqrt),
	OpcodeF64Add:      f64Binop(func(a, b float64) float64 { return a + b }),
	OpcodeF64Sub:      f64Binop(func(a, b float64) float64 { return a - b }),
	OpcodeF64Mul:      f64Binop(func(a, b float64) float64 { return a * b }),
	OpcodeF64Div:      f64Binop(func(a, b float64) float64 { return a / b }),
	OpcodeF64Min:      f64Binop(moremath.WasmCompatMin),
	OpcodeF64Max:      f64Binop(moremath.WasmCompatMax),
	OpcodeF64Copysign: func(vm *vm, _ *frame, _ *instruction) {
		b := vm.popF64Bits()
		a := vm.popF64Bits()
		vm.pushF64Bits(a&^f64SignBit | b&f64SignBit)
	},

	OpcodeI32WrapI64: func(vm *vm, _ *frame, _ *instruction) { vm.pushU32(uint32(vm.popU64())) },
	OpcodeI32TruncF32S: func(vm *vm, _ *frame, _ *instruction) {
		vm.pushI32(int32(truncate(float64(vm.popF32()), i32Lower, i32Upper)))
	},
	OpcodeI32TruncF32U: func(vm *vm, _ *frame, _ *instruction) {
		vm.pushU32(uint32(truncate(float64(vm.popF32()), u32Lower, u32Upper)))
	},
	OpcodeI32TruncF64S: func(vm *vm, _ *frame, _ *instruction) {
		vm.pushI32(int32(truncate(vm.popF64(), i32Lower, i32Upper)))
	},
	OpcodeI32TruncF64U: func(vm *vm, _ *frame, _ *instruction) {
		vm.pushU32(uint32(truncate(vm.popF64(), u32Lower, u32Upper)))
	},

	OpcodeI64ExtendI32S: func(vm *vm, _ *frame, _ *instruction) { vm.pushI64(int64(vm.popI32())) },
	OpcodeI64ExtendI32U: func(vm *vm, _ *frame, _ *instruction) { vm.pushU64(uint64(vm.popU32())) },
	OpcodeI64TruncF32S: func(vm *vm, _ *frame, _ *instruction) {
		vm.pushI64(int64(truncate(float64(vm.popF32()), i64Lower, i64Upper)))
	},
	OpcodeI64TruncF32U: func(vm *vm, _ *frame, _ *instruction) {
		vm.pushU64(uint64(truncate(float64(vm.popF32()), u64Lower, u64Upper)))
	},
	OpcodeI64TruncF64S: func(vm *vm, _ *frame, _ *instruction) {
		vm.pushI64(int64(truncate(vm.popF64(), i64Lower, i64Upper)))
	},
	OpcodeI64TruncF64U: func(vm *vm, _ *frame, _ *instruction) {
		vm.pushU64(uint64(truncate(vm.popF64(), u64Lower, u64Upper)))
	},

	OpcodeF32ConvertI32S: func(vm *vm, _ *frame, _ *instruction) { vm.pushF32(float32(vm.popI32())) },
	OpcodeF32ConvertI32U: func(vm *vm, _ *frame, _ *instruction) { vm.pushF32(float32(vm.popU32())) },
	OpcodeF32ConvertI64S: func(vm *vm, _ *frame, _ *instruction) { vm.pushF32(float32(vm.popI64())) },
	OpcodeF32ConvertI64U: func(vm *vm, _ *frame, _ *instruction) { vm.pushF32(float32(vm.popU64())) },
	OpcodeF32DemoteF64:   func(vm *vm, _ *frame, _ *instruction) { vm.pushF32(float32(vm.popF64())) },
	OpcodeF64ConvertI32S: func(vm *vm, _ *frame, _ *instruction) { vm.pushF64(float64(vm.popI32())) },
	OpcodeF64ConvertI32U: func(vm *vm, _ *frame, _ *instruction) { vm.pushF64(float64(vm.popU32())) },
	OpcodeF64ConvertI64S: func(vm *vm, _ *frame, _ *instruction) { vm.pushF64(float64(vm.popI64())) },
	OpcodeF64ConvertI64U: func(vm *vm, _ *frame, _ *instruction) { vm.pushF64(float64(vm.popU64())) },
	OpcodeF64PromoteF32:  func(vm *vm, _ *frame, _ *instruction) { vm.pushF64(float64(vm.popF32())) },

	OpcodeI32ReinterpretF32: func(vm *vm, _ *frame, _ *instruction) { vm.pushU32(vm.popF32Bits()) },
	OpcodeI64ReinterpretF64: func(vm *vm, _ *frame, _ *instruction) { vm.pushU64(vm.popF64Bits()) },
	OpcodeF32ReinterpretI32: func(vm *vm, _ *frame, _ *instruction) { vm.pushF32Bits(vm.popU32()) },
	OpcodeF64ReinterpretI64: func(vm *vm, _ *frame, _ *instruction) { vm.pushF64Bits(vm.popU64()) },

	OpcodeI32Extend8S:  i32Unop(func(a uint32) uint32 { return uint32(int32(int8(a))) }),
	OpcodeI32Extend16S: i32Unop(func(a uint32) uint32 { return uint32(int32(int16(a))) }),
	OpcodeI64Extend8S:  i64Unop(func(a uint64) uint64 { return uint64(int64(int8(a))) }),
	OpcodeI64Extend16S: i64Unop(func(a uint64) uint64 { return uint64(int64(int16(a))) }),
	OpcodeI64Extend32S: i64Unop(func(a uint64) uint64 { return uint64(int64(int32(a))) }),
}

// truncSat implements the saturating float to integer conversions: NaN converts to zero and out of range values to
// the nearest bound.
func truncSat(vm *vm, op OpcodeMisc) {
	switch op {
	case OpcodeMiscI32TruncSatF32S, OpcodeMiscI32TruncSatF64S:
		t, below, above := saturate(popFloat(vm, op == OpcodeMiscI32TruncSatF32S), i32Lower, i32Upper)
		switch {
		case below:
			vm.pushI32(math.MinInt32)
		case above:
			vm.pushI32(math.MaxInt32)
		default:
			vm.pushI32(int32(t))
		}
	case OpcodeMiscI32TruncSatF32U, OpcodeMiscI32TruncSatF64U:
		t, below, above := saturate(popFloat(vm, op == OpcodeMiscI32TruncSatF32U), u32Lower, u32Upper)
		switch {
		case below:
			vm.pushU32(0)
		case above:
			vm.pushU32(math.MaxUint32)
		default:
			vm.pushU32(uint32(t))
		}
	case OpcodeMiscI64TruncSatF32S, OpcodeMiscI64TruncSatF64S:
		t, below, above := saturate(popFloat(vm, op == OpcodeMiscI64TruncSatF32S), i64Lower, i64Upper)
		switch {
		case below:
			vm.pushI64(math.MinInt64)
		case above:
			vm.pushI64(math.MaxInt64)
		default:
			vm.pushI64(int64(t))
		}
	case OpcodeMiscI64TruncSatF32U, OpcodeMiscI64TruncSatF64U:
		t, below, above := saturate(popFloat(vm, op == OpcodeMiscI64TruncSatF32U), u64Lower, u64Upper)
		switch {
		case below:
			vm.pushU64(0)
		case above:
			vm.pushU64(math.MaxUint64)
		default:
			vm.pushU64(uint64(t))
		}
	default:
		panic(newError(ErrorKindInterpreter, "no handler for misc opcode %#x", op))
	}
}

func popFloat(vm *vm, f32 bool) float64 {
	if f32 {
		return float64(vm.popF32())
	}
	return vm.popF64()
}
