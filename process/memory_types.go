package process

import (
	"fmt"
)

// ProcessMemoryAddress represents a memory address within a process
type ProcessMemoryAddress uint64

func (pma ProcessMemoryAddress) ToString() string {
	return fmt.Sprintf("0x%X", uint64(pma))
}

// Add offsets the address by a signed byte count, wrapping like the CPU does.
func (pma ProcessMemoryAddress) Add(offset int64) ProcessMemoryAddress {
	return ProcessMemoryAddress(uint64(pma) + uint64(offset))
}

// ProcessMemorySize represents a size of memory region
type ProcessMemorySize uint

func (pms ProcessMemorySize) ToString() string {
	return fmt.Sprintf("%d bytes", uint(pms))
}

// ModuleRegion is the contiguous address range backing one loaded image.
type ModuleRegion struct {
	Name string
	Base ProcessMemoryAddress
	Size ProcessMemorySize
}

// End returns the first address past the region.
func (m ModuleRegion) End() ProcessMemoryAddress {
	return m.Base + ProcessMemoryAddress(m.Size)
}

// Contains reports whether addr lies inside the region.
func (m ModuleRegion) Contains(addr ProcessMemoryAddress) bool {
	return addr >= m.Base && addr < m.End()
}

func (m ModuleRegion) String() string {
	return fmt.Sprintf("%s [%s, size 0x%X]", m.Name, m.Base.ToString(), uint(m.Size))
}
