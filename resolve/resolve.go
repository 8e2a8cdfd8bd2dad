// Package resolve turns the address of a matched instruction into the
// address of the data it references.
//
// The encoding is declared per pattern, never guessed from the pattern's
// bytes: Absolute for a pointer literal embedded in the instruction (x86
// "mov ecx, [addr]"), Relative for an instruction-pointer-relative
// displacement (x64 "mov rcx, [rip+disp32]").
package resolve

import (
	"encoding/binary"
	"errors"
	"fmt"

	"sigscan/process"
)

// ErrResolution is matched by every *ResolutionError.
var ErrResolution = errors.New("resolution failed")

// ErrInvalidSpec is returned for a spec that cannot be applied at all.
var ErrInvalidSpec = errors.New("invalid resolution spec")

// Spec is a declared resolution rule. The set of implementations is closed.
type Spec interface {
	// Extent is the byte range [start, end), relative to the match address,
	// that must be readable for the rule to apply.
	Extent() (start, end int64)
	Validate() error
	String() string

	target(match process.ProcessMemoryAddress, site []byte, siteOffset int64) process.ProcessMemoryAddress
}

// Absolute reads an unsigned little-endian pointer of Width bytes (4 or 8)
// at match+Displacement. The value is the target; no sign extension.
type Absolute struct {
	Displacement int64
	Width        int
}

func (a Absolute) Extent() (int64, int64) {
	return a.Displacement, a.Displacement + int64(a.Width)
}

func (a Absolute) Validate() error {
	if a.Width != 4 && a.Width != 8 {
		return fmt.Errorf("%w: absolute pointer width %d, want 4 or 8", ErrInvalidSpec, a.Width)
	}
	return nil
}

func (a Absolute) String() string {
	return fmt.Sprintf("absolute(+%d, %d bytes)", a.Displacement, a.Width)
}

func (a Absolute) target(_ process.ProcessMemoryAddress, site []byte, at int64) process.ProcessMemoryAddress {
	field := site[at : at+int64(a.Width)]
	if a.Width == 8 {
		return process.ProcessMemoryAddress(binary.LittleEndian.Uint64(field))
	}
	return process.ProcessMemoryAddress(binary.LittleEndian.Uint32(field))
}

// Relative reads a signed 32-bit displacement at match+DispOffset. The
// target is match+AnchorOffset+disp, the anchor usually being the end of
// the instruction.
type Relative struct {
	DispOffset   int64
	AnchorOffset int64
}

// Extent covers the displacement field and everything up to the anchor, so
// an anchor past readable memory is rejected as well.
func (r Relative) Extent() (int64, int64) {
	return min(r.DispOffset, r.AnchorOffset), max(r.DispOffset+4, r.AnchorOffset)
}

func (r Relative) Validate() error {
	return nil
}

func (r Relative) String() string {
	return fmt.Sprintf("relative(disp +%d, anchor +%d)", r.DispOffset, r.AnchorOffset)
}

func (r Relative) target(match process.ProcessMemoryAddress, site []byte, at int64) process.ProcessMemoryAddress {
	disp := int32(binary.LittleEndian.Uint32(site[at : at+4]))
	return match.Add(r.AnchorOffset).Add(int64(disp))
}

// fieldOffset is where the spec's decoded field starts, relative to the match.
func fieldOffset(spec Spec) int64 {
	switch s := spec.(type) {
	case Absolute:
		return s.Displacement
	case Relative:
		return s.DispOffset
	}
	start, _ := spec.Extent()
	return start
}

// ResolutionError means the spec's extent was not inside the bytes read.
type ResolutionError struct {
	Match     process.ProcessMemoryAddress
	Spec      Spec
	Available int
	Err       error
}

func (e *ResolutionError) Error() string {
	start, end := e.Spec.Extent()
	msg := fmt.Sprintf("resolve %s at %s: needs [%+d, %+d), %d bytes available", e.Spec, e.Match.ToString(), start, end, e.Available)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

func (e *ResolutionError) Is(target error) bool {
	return target == ErrResolution
}

// Resolve reads exactly the spec's extent around match and applies it.
func Resolve(r process.MemoryReader, match process.ProcessMemoryAddress, spec Spec) (process.ProcessMemoryAddress, error) {
	if spec == nil {
		return 0, fmt.Errorf("%w: nil spec", ErrInvalidSpec)
	}
	if err := spec.Validate(); err != nil {
		return 0, err
	}

	start, end := spec.Extent()
	siteAddr := match.Add(start)

	data, err := r.ReadMemory(siteAddr, process.ProcessMemorySize(end-start))
	if int64(len(data)) < end-start {
		return 0, &ResolutionError{Match: match, Spec: spec, Available: len(data), Err: err}
	}

	return ResolveBuffer(data, siteAddr, match, spec)
}

// ResolveBuffer applies spec to site, a buffer already read from siteAddr.
// It never indexes outside site.
func ResolveBuffer(site []byte, siteAddr, match process.ProcessMemoryAddress, spec Spec) (process.ProcessMemoryAddress, error) {
	if spec == nil {
		return 0, fmt.Errorf("%w: nil spec", ErrInvalidSpec)
	}
	if err := spec.Validate(); err != nil {
		return 0, err
	}

	start, end := spec.Extent()
	// position of the match inside site; may be negative or past the end
	matchAt := int64(uint64(match) - uint64(siteAddr))

	if matchAt+start < 0 || matchAt+end > int64(len(site)) {
		return 0, &ResolutionError{Match: match, Spec: spec, Available: len(site)}
	}

	return spec.target(match, site, matchAt+fieldOffset(spec)), nil
}
