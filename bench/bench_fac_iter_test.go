//go:build amd64
// +build amd64

// Wasmtime cannot be used non-amd64 platform.
package bench

import (
	"errors"
	"testing"

	"github.com/bytecodealliance/wasmtime-go"
	"github.com/stretchr/testify/require"
	"github.com/wasmerio/wasmer-go/wasmer"

	"github.com/tetcoin-staging/parity-wasm/wasm"
)

// facIterBody is the body of fac-iter, which multiplies down from its parameter in a loop:
//
//	(func (export "fac-iter") (param i64) (result i64) (local i64 i64)
//	  (local.set 1 (local.get 0))
//	  (local.set 2 (i64.const 1))
//	  (block (loop
//	    (if (i64.eq (local.get 1) (i64.const 0))
//	      (then (br 2))
//	      (else
//	        (local.set 2 (i64.mul (local.get 1) (local.get 2)))
//	        (local.set 1 (i64.sub (local.get 1) (i64.const 1)))))
//	    (br 0)))
//	  (local.get 2))
var facIterBody = []byte{
	0x20, 0x00, 0x21, 0x01, // local.get 0; local.set 1
	0x42, 0x01, 0x21, 0x02, // i64.const 1; local.set 2
	0x02, 0x40, 0x03, 0x40, // block; loop
	0x20, 0x01, 0x42, 0x00, 0x51, // local.get 1; i64.const 0; i64.eq
	0x04, 0x40, 0x0c, 0x02, // if; br 2
	0x05, 0x20, 0x01, 0x20, 0x02, 0x7e, 0x21, 0x02, // else; local.set 2 (i64.mul ...)
	0x20, 0x01, 0x42, 0x01, 0x7d, 0x21, 0x01, // local.set 1 (i64.sub ...)
	0x0b, 0x0c, 0x00, // end if; br 0
	0x0b, 0x0b, // end loop; end block
	0x20, 0x02, 0x0b, // local.get 2; end
}

// facWasm is the binary encoding of the module exporting fac-iter. Every length fits in one LEB128 byte.
var facWasm = func() []byte {
	code := append([]byte{0x01, 0x02, 0x7e}, facIterBody...) // two i64 locals
	name := []byte("fac-iter")

	ret := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	ret = append(ret, 0x01, 0x06, 0x01, 0x60, 0x01, 0x7e, 0x01, 0x7e) // type: (i64) -> i64
	ret = append(ret, 0x03, 0x02, 0x01, 0x00)                         // function: type 0
	ret = append(ret, 0x07, byte(4+len(name)), 0x01, byte(len(name)))
	ret = append(ret, name...)
	ret = append(ret, 0x00, 0x00) // export func 0
	ret = append(ret, 0x0a, byte(2+len(code)), 0x01, byte(len(code)))
	return append(ret, code...)
}()

func facIterModule() *wasm.Module {
	return &wasm.Module{
		TypeSection:     []*wasm.FunctionType{{Params: []wasm.ValueType{wasm.ValueTypeI64}, Results: []wasm.ValueType{wasm.ValueTypeI64}}},
		FunctionSection: []wasm.Index{0},
		CodeSection:     []*wasm.Code{{LocalTypes: []wasm.ValueType{wasm.ValueTypeI64, wasm.ValueTypeI64}, Body: facIterBody}},
		ExportSection:   []*wasm.Export{{Type: wasm.ExternTypeFunc, Name: "fac-iter", Index: 0}},
	}
}

// TestFacIter ensures that the code in BenchmarkFacIter works as expected.
func TestFacIter(t *testing.T) {
	const in = 30
	expValue := uint64(0x865df5dd54000000)
	t.Run("interpreter", func(t *testing.T) {
		program, err := newProgramForFacIterBench()
		require.NoError(t, err)

		for i := 0; i < 1000; i++ {
			res, err := program.InvokeExport("test", "fac-iter", []wasm.Value{wasm.ValueI64(in)}, nil)
			require.NoError(t, err)
			require.Len(t, res, 1)
			v, ok := res[0].I64()
			require.True(t, ok)
			require.Equal(t, expValue, uint64(v))
		}
	})

	t.Run("wasmer-go", func(t *testing.T) {
		store, instance, fn, err := newWasmerForFacIterBench()
		require.NoError(t, err)
		defer store.Close()
		defer instance.Close()

		for i := 0; i < 1000; i++ {
			res, err := fn(in)
			require.NoError(t, err)
			require.Equal(t, int64(expValue), res)
		}
	})

	t.Run("wasmtime-go", func(t *testing.T) {
		store, run, err := newWasmtimeForFacIterBench()
		require.NoError(t, err)
		for i := 0; i < 1000; i++ {
			res, err := run.Call(store, in)
			require.NoError(t, err)
			require.Equal(t, int64(expValue), res)
		}
	})
}

// BenchmarkFacIter_Init tracks the time spent readying a function for use
func BenchmarkFacIter_Init(b *testing.B) {
	b.Run("interpreter", func(b *testing.B) {
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			if _, err := newProgramForFacIterBench(); err != nil {
				b.Fatal(err)
			}
		}
	})
	b.Run("wasmer-go", func(b *testing.B) {
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			store, instance, _, err := newWasmerForFacIterBench()
			if err != nil {
				b.Fatal(err)
			}
			store.Close()
			instance.Close()
		}
	})
	b.Run("wasmtime-go", func(b *testing.B) {
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			if _, _, err := newWasmtimeForFacIterBench(); err != nil {
				b.Fatal(err)
			}
		}
	})
}

// BenchmarkFacIter_Invoke benchmarks the time spent invoking a factorial calculation.
func BenchmarkFacIter_Invoke(b *testing.B) {
	const in = 30
	b.Run("interpreter", func(b *testing.B) {
		program, err := newProgramForFacIterBench()
		if err != nil {
			b.Fatal(err)
		}
		args := []wasm.Value{wasm.ValueI64(in)}
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			if _, err = program.InvokeExport("test", "fac-iter", args, nil); err != nil {
				b.Fatal(err)
			}
		}
	})
	b.Run("wasmer-go", func(b *testing.B) {
		store, instance, fn, err := newWasmerForFacIterBench()
		if err != nil {
			b.Fatal(err)
		}
		defer store.Close()
		defer instance.Close()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			if _, err = fn(in); err != nil {
				b.Fatal(err)
			}
		}
	})
	b.Run("wasmtime-go", func(b *testing.B) {
		store, run, err := newWasmtimeForFacIterBench()
		if err != nil {
			b.Fatal(err)
		}
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			if _, err = run.Call(store, in); err != nil {
				b.Fatal(err)
			}
		}
	})
}

func newProgramForFacIterBench() (*wasm.ProgramInstance, error) {
	program := wasm.NewProgramInstance()
	if _, err := program.AddModule("test", facIterModule(), nil); err != nil {
		return nil, err
	}
	return program, nil
}

// newWasmerForFacIterBench returns the store and instance that scope the factorial function.
// Note: these should be closed
func newWasmerForFacIterBench() (*wasmer.Store, *wasmer.Instance, wasmer.NativeFunction, error) {
	store := wasmer.NewStore(wasmer.NewEngine())
	importObject := wasmer.NewImportObject()
	module, err := wasmer.NewModule(store, facWasm)
	if err != nil {
		return nil, nil, nil, err
	}
	instance, err := wasmer.NewInstance(module, importObject)
	if err != nil {
		return nil, nil, nil, err
	}
	f, err := instance.Exports.GetFunction("fac-iter")
	if err != nil {
		return nil, nil, nil, err
	}
	if f == nil {
		return nil, nil, nil, errors.New("not a function")
	}
	return store, instance, f, nil
}

func newWasmtimeForFacIterBench() (*wasmtime.Store, *wasmtime.Func, error) {
	store := wasmtime.NewStore(wasmtime.NewEngine())
	module, err := wasmtime.NewModule(store.Engine, facWasm)
	if err != nil {
		return nil, nil, err
	}

	instance, err := wasmtime.NewInstance(store, module, nil)
	if err != nil {
		return nil, nil, err
	}

	run := instance.GetFunc(store, "fac-iter")
	if run == nil {
		return nil, nil, errors.New("not a function")
	}
	return store, run, nil
}
