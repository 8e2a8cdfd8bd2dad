// Package process_blob implements process.Process over byte slices placed
// at chosen addresses. It backs module images loaded from disk and the
// in-memory targets used by tests; gaps between segments behave like
// unmapped pages.
package process_blob

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"sigscan/process"
)

type segment struct {
	base process.ProcessMemoryAddress
	data []byte
}

func (s segment) end() process.ProcessMemoryAddress {
	return s.base + process.ProcessMemoryAddress(len(s.data))
}

type ProcessBlob struct {
	pid      process.ProcessID
	mu       sync.RWMutex
	segments []segment
	modules  []process.ModuleRegion
}

var _ process.Process = (*ProcessBlob)(nil)

// NewProcessBlob creates a blob with a single segment at baseAddress.
func NewProcessBlob(baseAddress process.ProcessMemoryAddress, data []byte) *ProcessBlob {
	p := &ProcessBlob{}
	if len(data) > 0 {
		p.Map(baseAddress, data)
	}
	return p
}

// Map places data at base. Segments must not overlap.
func (p *ProcessBlob) Map(base process.ProcessMemoryAddress, data []byte) *ProcessBlob {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.segments = append(p.segments, segment{base: base, data: data})
	sort.Slice(p.segments, func(i, j int) bool {
		return p.segments[i].base < p.segments[j].base
	})
	return p
}

// AddModule registers a named image region for FindModule.
func (p *ProcessBlob) AddModule(region process.ModuleRegion) *ProcessBlob {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.modules = append(p.modules, region)
	sort.Slice(p.modules, func(i, j int) bool {
		return p.modules[i].Base < p.modules[j].Base
	})
	return p
}

// Data returns the bytes of the first segment.
func (p *ProcessBlob) Data() []byte {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if len(p.segments) == 0 {
		return nil
	}
	return p.segments[0].data
}

// ReadMemory copies from the segment holding addr and from any segments
// that continue it without a gap. It stops at the first gap and returns the
// prefix with a *process.ReadError.
func (p *ProcessBlob) ReadMemory(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	if size == 0 {
		return []byte{}, nil
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]byte, 0, size)
	cursor := addr
	i := sort.Search(len(p.segments), func(i int) bool {
		return p.segments[i].end() > cursor
	})

	for ; i < len(p.segments) && uint(len(out)) < uint(size); i++ {
		seg := p.segments[i]
		if seg.base > cursor {
			break
		}
		offset := uint64(cursor - seg.base)
		want := uint64(size) - uint64(len(out))
		avail := uint64(len(seg.data)) - offset
		n := min(want, avail)
		out = append(out, seg.data[offset:offset+n]...)
		cursor += process.ProcessMemoryAddress(n)
	}

	if uint(len(out)) < uint(size) {
		return out, &process.ReadError{
			Address:     addr,
			Requested:   size,
			Transferred: len(out),
			Err:         process.ErrAddressNotMapped,
		}
	}
	return out, nil
}

func (p *ProcessBlob) GetPID() process.ProcessID {
	return p.pid
}

func (p *ProcessBlob) Modules() ([]process.ModuleRegion, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make([]process.ModuleRegion, len(p.modules))
	copy(result, p.modules)
	return result, nil
}

func (p *ProcessBlob) FindModule(name string) (process.ModuleRegion, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for _, m := range p.modules {
		if strings.EqualFold(m.Name, name) {
			return m, nil
		}
	}
	return process.ModuleRegion{}, fmt.Errorf("%q: %w", name, process.ErrModuleNotFound)
}

func (p *ProcessBlob) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.segments = nil
	p.modules = nil
	return nil
}
