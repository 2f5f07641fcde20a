package wasm

// TableMaxElements is the hard ceiling on the number of elements in one table.
const TableMaxElements = uint32(1 << 27)

// TableInstance is a growable sequence of references. Like MemoryInstance it is shared by pointer between the
// defining module and every importer.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#table-instances%E2%91%A0
type TableInstance struct {
	elemType ValueType
	elements []Value
	max      *uint32
}

// NewTableInstance allocates a table of min null references of elemType, which may grow up to max elements.
func NewTableInstance(elemType ValueType, min uint32, max *uint32) (*TableInstance, error) {
	return newTableInstance(&TableType{ElemType: elemType, Min: min, Max: max})
}

func newTableInstance(tt *TableType) (*TableInstance, error) {
	if !isReferenceType(tt.ElemType) {
		return nil, newError(ErrorKindInstantiation, "table element type %s is not a reference type", ValueTypeName(tt.ElemType))
	}
	if err := validateLimits("table", tt.Min, tt.Max, TableMaxElements); err != nil {
		return nil, err
	}
	t := &TableInstance{elemType: tt.ElemType, elements: make([]Value, tt.Min)}
	for i := range t.elements {
		t.elements[i] = ValueNull(tt.ElemType)
	}
	t.max = cloneMax(tt.Max)
	return t, nil
}

// Type returns the element type and current limits of this table.
func (t *TableInstance) Type() *TableType {
	return &TableType{ElemType: t.elemType, Min: t.Size(), Max: cloneMax(t.max)}
}

// ElemType returns funcref or externref.
func (t *TableInstance) ElemType() ValueType {
	return t.elemType
}

// Size returns the current number of elements.
func (t *TableInstance) Size() uint32 {
	return uint32(len(t.elements))
}

// Max returns the declared maximum, or false when none was declared.
func (t *TableInstance) Max() (uint32, bool) {
	if t.max == nil {
		return 0, false
	}
	return *t.max, true
}

// Get returns the reference at idx.
func (t *TableInstance) Get(idx uint32) (Value, bool) {
	if idx >= t.Size() {
		return Value{}, false
	}
	return t.elements[idx], true
}

// Set replaces the reference at idx. It fails with a Table error when idx is out of range, and a Value error when
// v is not of the element type.
func (t *TableInstance) Set(idx uint32, v Value) error {
	if v.typ != t.elemType {
		return newError(ErrorKindValue, "cannot store %s in a table of %s", ValueTypeName(v.typ), ValueTypeName(t.elemType))
	}
	if idx >= t.Size() {
		return wrapError(ErrorKindTable, ErrRuntimeInvalidTableAccess, "index %d out of range of %d elements", idx, t.Size())
	}
	t.elements[idx] = v
	return nil
}

// Grow appends delta copies of init and returns the previous size, or false without changing anything when the
// result would exceed the maximum.
func (t *TableInstance) Grow(delta uint32, init Value) (previous uint32, ok bool) {
	current := t.Size()
	limit := TableMaxElements
	if t.max != nil && *t.max < limit {
		limit = *t.max
	}
	if uint64(current)+uint64(delta) > uint64(limit) || init.typ != t.elemType {
		return 0, false
	}
	for i := uint32(0); i < delta; i++ {
		t.elements = append(t.elements, init)
	}
	return current, true
}

// Fill sets n elements from offset to v.
func (t *TableInstance) Fill(offset, n uint32, v Value) bool {
	if uint64(offset)+uint64(n) > uint64(t.Size()) || v.typ != t.elemType {
		return false
	}
	for i := offset; i < offset+n; i++ {
		t.elements[i] = v
	}
	return true
}

// CopyFrom copies n elements from src at srcOffset into this table at dstOffset. The tables may be the same.
func (t *TableInstance) CopyFrom(dstOffset uint32, src *TableInstance, srcOffset, n uint32) bool {
	if uint64(dstOffset)+uint64(n) > uint64(t.Size()) || uint64(srcOffset)+uint64(n) > uint64(src.Size()) {
		return false
	}
	if src.elemType != t.elemType {
		return false
	}
	copy(t.elements[dstOffset:dstOffset+n], src.elements[srcOffset:srcOffset+n])
	return true
}
