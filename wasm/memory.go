package wasm

import (
	"encoding/binary"
	"fmt"
	"math"
)

const (
	// MemoryPageSize is the unit of memory length in WebAssembly,
	// and is defined as 2^16 = 65536.
	// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#memory-instances%E2%91%A0
	MemoryPageSize = uint32(65536)
	// MemoryMaxPages is maximum number of pages defined (2^16).
	// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#grow-mem
	MemoryMaxPages = uint32(65536)
	// MemoryPageSizeInBits satisfies the relation: "1 << MemoryPageSizeInBits == MemoryPageSize".
	MemoryPageSizeInBits = 16
)

// MemoryInstance is one linear memory. Modules importing it share the same *MemoryInstance, so a write through
// any of them is visible to all.
//
// The buffer is only reachable through bounds-checked accessors. Concurrent use requires external synchronization.
type MemoryInstance struct {
	buffer []byte
	min    uint32
	max    *uint32
	// ceiling is the hard limit in pages, regardless of max.
	ceiling uint32
}

// NewMemoryInstance allocates a zeroed memory of min pages which may grow up to max pages, or MemoryMaxPages when
// max is nil.
func NewMemoryInstance(min uint32, max *uint32) (*MemoryInstance, error) {
	return newMemoryInstance(&MemoryType{Min: min, Max: max}, MemoryMaxPages)
}

func newMemoryInstance(mt *MemoryType, ceiling uint32) (*MemoryInstance, error) {
	if err := validateLimits("memory", mt.Min, mt.Max, ceiling); err != nil {
		return nil, err
	}
	return &MemoryInstance{
		buffer:  make([]byte, MemoryPagesToBytesNum(mt.Min)),
		min:     mt.Min,
		max:     cloneMax(mt.Max),
		ceiling: ceiling,
	}, nil
}

// validateLimits returns an Instantiation error unless min <= max <= ceiling.
func validateLimits(what string, min uint32, max *uint32, ceiling uint32) error {
	if min > ceiling {
		return newError(ErrorKindInstantiation, "%s min %d exceeds the limit of %d", what, min, ceiling)
	}
	if max != nil {
		if *max < min {
			return newError(ErrorKindInstantiation, "%s min %d is greater than max %d", what, min, *max)
		}
		if *max > ceiling {
			return newError(ErrorKindInstantiation, "%s max %d exceeds the limit of %d", what, *max, ceiling)
		}
	}
	return nil
}

// Type returns the current limits of this memory: the current page count as Min and the declared maximum.
// This is what an importing module's MemoryType is checked against.
func (m *MemoryInstance) Type() *MemoryType {
	return &MemoryType{Min: m.PageSize(), Max: cloneMax(m.max)}
}

// Size returns the size in bytes. A memory of MemoryMaxPages pages is 1<<32 bytes, one more than fits in a uint32.
func (m *MemoryInstance) Size() uint64 {
	return uint64(len(m.buffer))
}

// PageSize returns the current memory buffer size in pages.
func (m *MemoryInstance) PageSize() uint32 {
	return memoryBytesNumToPages(uint64(len(m.buffer)))
}

// Max returns the declared maximum in pages, or false when none was declared.
func (m *MemoryInstance) Max() (uint32, bool) {
	if m.max == nil {
		return 0, false
	}
	return *m.max, true
}

// Grow extends the memory by delta pages of zeroes and returns the previous page count.
// The logic here is described in https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#grow-mem.
//
// Grow never traps: it returns false without changing anything if the result would exceed the declared maximum
// or the hard ceiling.
func (m *MemoryInstance) Grow(delta uint32) (previous uint32, ok bool) {
	current := m.PageSize()
	limit := m.ceiling
	if m.max != nil && *m.max < limit {
		limit = *m.max
	}
	if uint64(current)+uint64(delta) > uint64(limit) {
		return 0, false
	}
	if delta > 0 {
		m.buffer = append(m.buffer, make([]byte, MemoryPagesToBytesNum(delta))...)
	}
	return current, true
}

// hasSize returns true if Len is sufficient for sizeInBytes at the given offset.
func (m *MemoryInstance) hasSize(offset uint64, sizeInBytes uint64) bool {
	return offset+sizeInBytes <= uint64(len(m.buffer)) // uint64 prevents overflow on add
}

// ReadByte reads a single byte at offset.
func (m *MemoryInstance) ReadByte(offset uint32) (byte, bool) {
	if !m.hasSize(uint64(offset), 1) {
		return 0, false
	}
	return m.buffer[offset], true
}

// ReadUint16Le reads a little-endian uint16 at offset.
func (m *MemoryInstance) ReadUint16Le(offset uint32) (uint16, bool) {
	if !m.hasSize(uint64(offset), 2) {
		return 0, false
	}
	return binary.LittleEndian.Uint16(m.buffer[offset:]), true
}

// ReadUint32Le reads a little-endian uint32 at offset.
func (m *MemoryInstance) ReadUint32Le(offset uint32) (uint32, bool) {
	if !m.hasSize(uint64(offset), 4) {
		return 0, false
	}
	return binary.LittleEndian.Uint32(m.buffer[offset:]), true
}

// ReadUint64Le reads a little-endian uint64 at offset.
func (m *MemoryInstance) ReadUint64Le(offset uint32) (uint64, bool) {
	if !m.hasSize(uint64(offset), 8) {
		return 0, false
	}
	return binary.LittleEndian.Uint64(m.buffer[offset:]), true
}

// ReadFloat32Le reads the IEEE 754 bits of a float32 at offset.
func (m *MemoryInstance) ReadFloat32Le(offset uint32) (float32, bool) {
	v, ok := m.ReadUint32Le(offset)
	if !ok {
		return 0, false
	}
	return math.Float32frombits(v), true
}

// ReadFloat64Le reads the IEEE 754 bits of a float64 at offset.
func (m *MemoryInstance) ReadFloat64Le(offset uint32) (float64, bool) {
	v, ok := m.ReadUint64Le(offset)
	if !ok {
		return 0, false
	}
	return math.Float64frombits(v), true
}

// Read returns a copy of byteCount bytes at offset.
func (m *MemoryInstance) Read(offset, byteCount uint32) ([]byte, bool) {
	if !m.hasSize(uint64(offset), uint64(byteCount)) {
		return nil, false
	}
	ret := make([]byte, byteCount)
	copy(ret, m.buffer[offset:])
	return ret, true
}

// WriteByte writes a single byte at offset.
func (m *MemoryInstance) WriteByte(offset uint32, v byte) bool {
	if !m.hasSize(uint64(offset), 1) {
		return false
	}
	m.buffer[offset] = v
	return true
}

// WriteUint16Le writes v in little-endian at offset.
func (m *MemoryInstance) WriteUint16Le(offset uint32, v uint16) bool {
	if !m.hasSize(uint64(offset), 2) {
		return false
	}
	binary.LittleEndian.PutUint16(m.buffer[offset:], v)
	return true
}

// WriteUint32Le writes v in little-endian at offset.
func (m *MemoryInstance) WriteUint32Le(offset, v uint32) bool {
	if !m.hasSize(uint64(offset), 4) {
		return false
	}
	binary.LittleEndian.PutUint32(m.buffer[offset:], v)
	return true
}

// WriteUint64Le writes v in little-endian at offset.
func (m *MemoryInstance) WriteUint64Le(offset uint32, v uint64) bool {
	if !m.hasSize(uint64(offset), 8) {
		return false
	}
	binary.LittleEndian.PutUint64(m.buffer[offset:], v)
	return true
}

// WriteFloat32Le writes the IEEE 754 bits of v at offset.
func (m *MemoryInstance) WriteFloat32Le(offset uint32, v float32) bool {
	return m.WriteUint32Le(offset, math.Float32bits(v))
}

// WriteFloat64Le writes the IEEE 754 bits of v at offset.
func (m *MemoryInstance) WriteFloat64Le(offset uint32, v float64) bool {
	return m.WriteUint64Le(offset, math.Float64bits(v))
}

// Write copies val to offset.
func (m *MemoryInstance) Write(offset uint32, val []byte) bool {
	if !m.hasSize(uint64(offset), uint64(len(val))) {
		return false
	}
	copy(m.buffer[offset:], val)
	return true
}

// Fill sets byteCount bytes at offset to v.
func (m *MemoryInstance) Fill(offset, byteCount uint32, v byte) bool {
	if !m.hasSize(uint64(offset), uint64(byteCount)) {
		return false
	}
	b := m.buffer[offset : uint64(offset)+uint64(byteCount)]
	for i := range b {
		b[i] = v
	}
	return true
}

// Copy moves byteCount bytes from src to dst. The regions may overlap.
func (m *MemoryInstance) Copy(dst, src, byteCount uint32) bool {
	if !m.hasSize(uint64(dst), uint64(byteCount)) || !m.hasSize(uint64(src), uint64(byteCount)) {
		return false
	}
	copy(m.buffer[dst:uint64(dst)+uint64(byteCount)], m.buffer[src:uint64(src)+uint64(byteCount)])
	return true
}

// MemoryPagesToBytesNum converts the given pages into the number of bytes contained in these pages.
func MemoryPagesToBytesNum(pages uint32) (bytesNum uint64) {
	return uint64(pages) << MemoryPageSizeInBits
}

// memoryBytesNumToPages converts the given number of bytes into the number of pages.
func memoryBytesNumToPages(bytesNum uint64) (pages uint32) {
	return uint32(bytesNum >> MemoryPageSizeInBits)
}

// PagesToUnitOfBytes converts the pages to a human-readable form. Ex. 1 -> "64 Ki"
func PagesToUnitOfBytes(pages uint32) string {
	k := uint64(pages) * 64
	if k < 1024 {
		return fmt.Sprintf("%d Ki", k)
	}
	m := k / 1024
	if m < 1024 {
		return fmt.Sprintf("%d Mi", m)
	}
	return fmt.Sprintf("%d Gi", m/1024)
}
