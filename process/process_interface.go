package process

// MemoryReader is the read-only view of an address space.
//
// ReadMemory returns the bytes actually transferred. When fewer than size
// bytes could be read the returned slice is the transferred prefix and the
// error is a *ReadError; callers must treat the missing tail as unknown, not
// as zeros. Implementations must be safe for concurrent use.
type MemoryReader interface {
	ReadMemory(addr ProcessMemoryAddress, size ProcessMemorySize) ([]byte, error)
}

// Process is an attached target process
type Process interface {
	MemoryReader

	// GetPID returns the process ID
	GetPID() ProcessID

	// FindModule returns the region of the loaded image whose name matches
	// (case-insensitive). Fails with ErrModuleNotFound.
	FindModule(name string) (ModuleRegion, error)

	// Modules lists the loaded images in address order
	Modules() ([]ModuleRegion, error)

	// Close releases the handle
	Close() error
}
