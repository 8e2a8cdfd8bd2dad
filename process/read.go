package process

import (
	"errors"
	"unsafe"
)

// Scalar is the set of fixed-size values Read can decode.
type Scalar interface {
	~int8 | ~int16 | ~int32 | ~int64 |
		~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// ReadBytes is a best-effort read: it never fails, it reports how many bytes
// were actually transferred. buf[:n] is valid, the rest is not memory.
func ReadBytes(r MemoryReader, addr ProcessMemoryAddress, size ProcessMemorySize) ([]byte, int) {
	data, _ := r.ReadMemory(addr, size)
	if uint(len(data)) > uint(size) {
		data = data[:size]
	}
	return data, len(data)
}

// Read decodes a single T at addr. A partial or failed transfer is an error;
// the zero value is never passed off as data.
func Read[T Scalar](r MemoryReader, addr ProcessMemoryAddress) (T, error) {
	var t T
	size := ProcessMemorySize(unsafe.Sizeof(t))

	data, err := r.ReadMemory(addr, size)
	if len(data) < int(size) {
		if err == nil || !errors.Is(err, ErrShortRead) {
			err = &ReadError{Address: addr, Requested: size, Transferred: len(data), Err: err}
		}
		return t, err
	}

	copyTo(&t, data)
	return t, nil
}

// ReadOrZero is Read without the error. Use Read when failure must be told
// apart from a stored zero.
func ReadOrZero[T Scalar](r MemoryReader, addr ProcessMemoryAddress) T {
	t, _ := Read[T](r, addr)
	return t
}

// copyTo copies bytes to *T
func copyTo[T any](dst *T, src []byte) {
	size := int(unsafe.Sizeof(*dst))
	if len(src) < size {
		return
	}

	dstBytes := unsafe.Slice((*byte)(unsafe.Pointer(dst)), size)
	copy(dstBytes, src)
}
