package wasm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewTableInstance(t *testing.T) {
	table, err := NewTableInstance(ValueTypeExternref, 2, u32Ptr(4))
	require.NoError(t, err)
	require.Equal(t, ValueTypeExternref, table.ElemType())
	require.Equal(t, uint32(2), table.Size())
	max, ok := table.Max()
	require.True(t, ok)
	require.Equal(t, uint32(4), max)
	require.Equal(t, &TableType{ElemType: ValueTypeExternref, Min: 2, Max: u32Ptr(4)}, table.Type())

	v, ok := table.Get(1)
	require.True(t, ok)
	require.Equal(t, ValueNull(ValueTypeExternref), v)

	_, err = NewTableInstance(ValueTypeI64, 1, nil)
	require.True(t, IsKind(err, ErrorKindInstantiation), err)
	_, err = NewTableInstance(ValueTypeFuncref, 2, u32Ptr(1))
	require.True(t, IsKind(err, ErrorKindInstantiation), err)
	_, err = NewTableInstance(ValueTypeFuncref, TableMaxElements+1, nil)
	require.True(t, IsKind(err, ErrorKindInstantiation), err)
}

func TestTableInstance_TypeIsACopy(t *testing.T) {
	table, err := NewTableInstance(ValueTypeFuncref, 1, u32Ptr(2))
	require.NoError(t, err)

	*table.Type().Max = 10
	max, ok := table.Max()
	require.True(t, ok)
	require.Equal(t, uint32(2), max)

	_, ok = table.Grow(5, ValueNull(ValueTypeFuncref))
	require.False(t, ok)
	require.Equal(t, uint32(1), table.Size())
}

func TestTableInstance_GetSet(t *testing.T) {
	table, err := NewTableInstance(ValueTypeExternref, 2, nil)
	require.NoError(t, err)

	require.NoError(t, table.Set(1, ValueExternref("host")))
	v, ok := table.Get(1)
	require.True(t, ok)
	ref, ok := v.Externref()
	require.True(t, ok)
	require.Equal(t, "host", ref)

	_, ok = table.Get(2)
	require.False(t, ok)

	err = table.Set(2, ValueExternref(nil))
	require.True(t, IsKind(err, ErrorKindTable), err)
	require.ErrorIs(t, err, ErrRuntimeInvalidTableAccess)

	err = table.Set(0, ValueNull(ValueTypeFuncref))
	require.True(t, IsKind(err, ErrorKindValue), err)
}

func TestTableInstance_Grow(t *testing.T) {
	table, err := NewTableInstance(ValueTypeExternref, 1, u32Ptr(3))
	require.NoError(t, err)

	prev, ok := table.Grow(2, ValueExternref(1))
	require.True(t, ok)
	require.Equal(t, uint32(1), prev)
	require.Equal(t, uint32(3), table.Size())
	v, _ := table.Get(2)
	ref, _ := v.Externref()
	require.Equal(t, 1, ref)

	_, ok = table.Grow(1, ValueExternref(nil))
	require.False(t, ok)

	unbounded, err := NewTableInstance(ValueTypeFuncref, 0, nil)
	require.NoError(t, err)
	_, ok = unbounded.Grow(1, ValueExternref(nil))
	require.False(t, ok, "init of another type")
	prev, ok = unbounded.Grow(0, ValueNull(ValueTypeFuncref))
	require.True(t, ok)
	require.Zero(t, prev)
}

func TestTableInstance_FillCopy(t *testing.T) {
	a, err := NewTableInstance(ValueTypeExternref, 4, nil)
	require.NoError(t, err)
	b, err := NewTableInstance(ValueTypeExternref, 2, nil)
	require.NoError(t, err)

	require.True(t, a.Fill(1, 2, ValueExternref("x")))
	require.False(t, a.Fill(3, 2, ValueExternref("x")))
	require.False(t, a.Fill(0, 1, ValueNull(ValueTypeFuncref)))

	require.True(t, b.CopyFrom(0, a, 2, 2))
	v, _ := b.Get(0)
	require.False(t, v.IsNull())
	v, _ = b.Get(1)
	require.True(t, v.IsNull())

	// Overlapping copy within one table.
	require.True(t, a.CopyFrom(2, a, 1, 2))
	v, _ = a.Get(3)
	require.False(t, v.IsNull())

	require.False(t, b.CopyFrom(1, a, 0, 2))
	require.False(t, a.CopyFrom(0, b, 1, 2))

	funcs, err := NewTableInstance(ValueTypeFuncref, 4, nil)
	require.NoError(t, err)
	require.False(t, funcs.CopyFrom(0, a, 0, 1))
}
