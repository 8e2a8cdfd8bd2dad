// Package process provides the read-only view of a target address space
// that the scanner works against, and the error taxonomy for reaching it.
package process

import (
	"errors"
	"fmt"
)

var (
	// ErrAddressNotMapped is returned when a memory address is not found within any mapped region of a process.
	ErrAddressNotMapped = errors.New("address not mapped")

	// ErrProcessNotOpen is returned when an operation requiring an open process is attempted
	// before the process has been successfully opened or after it has been closed.
	ErrProcessNotOpen = errors.New("process not open")

	// ErrProcessNotFound is returned when no process exists with the requested PID.
	ErrProcessNotFound = errors.New("process not found")

	// ErrAccessDenied is returned when the caller lacks the rights to read the process.
	ErrAccessDenied = errors.New("access denied")

	// ErrModuleNotFound is returned when no loaded image matches the requested module name.
	ErrModuleNotFound = errors.New("module not found")

	// ErrShortRead marks a read that transferred fewer bytes than requested.
	ErrShortRead = errors.New("short read")
)

// AttachError is fatal to a scanning session. Err is ErrProcessNotFound,
// ErrAccessDenied or an unclassified OS error.
type AttachError struct {
	PID ProcessID
	Err error
}

func (e *AttachError) Error() string {
	return fmt.Sprintf("attach to process %d: %v", e.PID, e.Err)
}

func (e *AttachError) Unwrap() error {
	return e.Err
}

// ReadError reports a read that transferred Transferred of Requested bytes.
// The bytes that did arrive are still returned alongside it.
type ReadError struct {
	Address     ProcessMemoryAddress
	Requested   ProcessMemorySize
	Transferred int
	Err         error
}

func (e *ReadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("read %d bytes at %s: transferred %d: %v", uint(e.Requested), e.Address.ToString(), e.Transferred, e.Err)
	}
	return fmt.Sprintf("read %d bytes at %s: transferred %d", uint(e.Requested), e.Address.ToString(), e.Transferred)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrShortRead) match every ReadError.
func (e *ReadError) Is(target error) bool {
	return target == ErrShortRead
}
