package leb128

import (
	"errors"
	"fmt"
)

const (
	maxVarintLen32 = 5
	maxVarintLen33 = maxVarintLen32
	maxVarintLen64 = 10
)

var (
	errOverflow32    = errors.New("overflows a 32-bit integer")
	errOverflow33    = errors.New("overflows a 33-bit integer")
	errOverflow64    = errors.New("overflows a 64-bit integer")
	errUnexpectedEnd = errors.New("unexpected end of buffer")
)

// LoadUint32 decodes an unsigned LEB128 value at the head of buf, returning the
// value and the number of bytes consumed.
func LoadUint32(buf []byte) (ret uint32, bytesRead uint64, err error) {
	for shift := 0; shift < 35; shift += 7 {
		if int(bytesRead) >= len(buf) {
			return 0, 0, fmt.Errorf("readByte failed: %w", errUnexpectedEnd)
		}
		b := buf[bytesRead]
		bytesRead++
		if bytesRead == maxVarintLen32 && b&0xf0 != 0 {
			return 0, 0, errOverflow32
		}
		ret |= uint32(b&0x7f) << shift
		if b&0x80 == 0 {
			return ret, bytesRead, nil
		}
	}
	return 0, 0, errOverflow32
}

// LoadUint64 is LoadUint32 for 64-bit values.
func LoadUint64(buf []byte) (ret uint64, bytesRead uint64, err error) {
	for shift := 0; shift < 70; shift += 7 {
		if int(bytesRead) >= len(buf) {
			return 0, 0, fmt.Errorf("readByte failed: %w", errUnexpectedEnd)
		}
		b := buf[bytesRead]
		bytesRead++
		if bytesRead == maxVarintLen64 && b&0xfe != 0 {
			return 0, 0, errOverflow64
		}
		ret |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return ret, bytesRead, nil
		}
	}
	return 0, 0, errOverflow64
}

// LoadInt32 decodes a signed LEB128 value at the head of buf.
func LoadInt32(buf []byte) (ret int32, bytesRead uint64, err error) {
	var shift int
	var b byte
	for {
		if int(bytesRead) >= len(buf) {
			return 0, 0, fmt.Errorf("readByte failed: %w", errUnexpectedEnd)
		}
		b = buf[bytesRead]
		bytesRead++
		ret |= int32(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
		if bytesRead == maxVarintLen32 {
			return 0, 0, errOverflow32
		}
	}
	// The unused bits of a fifth byte must replicate bit 31.
	if bytesRead == maxVarintLen32 {
		if hi := b & 0x78; hi != 0 && hi != 0x78 {
			return 0, 0, errOverflow32
		}
	}
	if shift < 32 && b&0x40 != 0 {
		ret |= -1 << shift
	}
	return ret, bytesRead, nil
}

// LoadInt33AsInt64 decodes the signed 33-bit LEB128 used by block types.
func LoadInt33AsInt64(buf []byte) (ret int64, bytesRead uint64, err error) {
	var shift int
	var b byte
	for {
		if int(bytesRead) >= len(buf) {
			return 0, 0, fmt.Errorf("readByte failed: %w", errUnexpectedEnd)
		}
		b = buf[bytesRead]
		bytesRead++
		ret |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
		if bytesRead == maxVarintLen33 {
			return 0, 0, errOverflow33
		}
	}
	if b&0x40 != 0 {
		ret |= -1 << shift
	}
	if ret < -(1<<32) || ret >= 1<<32 {
		return 0, 0, errOverflow33
	}
	return ret, bytesRead, nil
}

// LoadInt64 decodes a signed 64-bit LEB128 value at the head of buf.
func LoadInt64(buf []byte) (ret int64, bytesRead uint64, err error) {
	var shift int
	var b byte
	for {
		if int(bytesRead) >= len(buf) {
			return 0, 0, fmt.Errorf("readByte failed: %w", errUnexpectedEnd)
		}
		b = buf[bytesRead]
		bytesRead++
		ret |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
		if bytesRead == maxVarintLen64 {
			return 0, 0, errOverflow64
		}
	}
	if bytesRead == maxVarintLen64 && b != 0 && b != 0x7f {
		return 0, 0, errOverflow64
	}
	if shift < 64 && b&0x40 != 0 {
		ret |= -1 << shift
	}
	return ret, bytesRead, nil
}

// EncodeUint32 is the inverse of LoadUint32.
func EncodeUint32(v uint32) []byte {
	return EncodeUint64(uint64(v))
}

// EncodeUint64 is the inverse of LoadUint64.
func EncodeUint64(v uint64) (buf []byte) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			return append(buf, b)
		}
		buf = append(buf, b|0x80)
	}
}

// EncodeInt32 is the inverse of LoadInt32.
func EncodeInt32(v int32) []byte {
	return EncodeInt64(int64(v))
}

// EncodeInt64 is the inverse of LoadInt64.
func EncodeInt64(v int64) (buf []byte) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			return append(buf, b)
		}
		buf = append(buf, b|0x80)
	}
}
