// Package search finds compiled patterns in a module region of a remote
// address space, reading it in bounded windows.
//
// Consecutive windows are stitched with a carry buffer: the last Len-1 bytes
// of one window prefix the next window's search buffer, so a match that
// straddles a window edge is found exactly once. A short read drops the
// carry, treats the missing bytes as non-matching and resumes at the next
// page boundary past the fault.
package search

import (
	"errors"
	"fmt"

	"sigscan/pattern"
	"sigscan/process"

	"github.com/Moonlight-Companies/gologger/logger"
)

const (
	DefaultWindowSize = 1 << 20
	DefaultPageSize   = 0x1000
)

var (
	// ErrPatternNotFound is returned when the whole region was scanned without a match.
	ErrPatternNotFound = errors.New("pattern not found")

	// ErrPatternTooLong is returned when a pattern is longer than the read window.
	ErrPatternTooLong = errors.New("pattern longer than read window")

	// ErrEmptyPattern is returned for the zero Pattern.
	ErrEmptyPattern = errors.New("empty pattern")
)

// Searcher holds configuration for the search
type Searcher struct {
	WindowSize process.ProcessMemorySize
	PageSize   process.ProcessMemorySize
	Log        *logger.Logger
}

// Option is a function that configures a Searcher
type Option func(*Searcher)

// WithWindowSize bounds how many bytes are read per request.
func WithWindowSize(size process.ProcessMemorySize) Option {
	return func(s *Searcher) {
		s.WindowSize = size
	}
}

// WithPageSize sets the granularity used to skip past a read fault.
func WithPageSize(size process.ProcessMemorySize) Option {
	return func(s *Searcher) {
		s.PageSize = size
	}
}

func WithLogger(log *logger.Logger) Option {
	return func(s *Searcher) {
		s.Log = log
	}
}

// New applies options over the defaults.
func New(options ...Option) *Searcher {
	s := &Searcher{
		WindowSize: DefaultWindowSize,
		PageSize:   DefaultPageSize,
	}

	for _, opt := range options {
		opt(s)
	}

	if s.WindowSize == 0 {
		s.WindowSize = DefaultWindowSize
	}
	if s.PageSize == 0 {
		s.PageSize = DefaultPageSize
	}

	return s
}

// First returns the lowest address in region where p matches.
func First(r process.MemoryReader, region process.ModuleRegion, p pattern.Pattern, options ...Option) (process.ProcessMemoryAddress, error) {
	return New(options...).First(r, region, p)
}

// All returns every match in region in increasing address order.
func All(r process.MemoryReader, region process.ModuleRegion, p pattern.Pattern, options ...Option) ([]process.ProcessMemoryAddress, error) {
	return New(options...).All(r, region, p)
}

func (s *Searcher) First(r process.MemoryReader, region process.ModuleRegion, p pattern.Pattern) (process.ProcessMemoryAddress, error) {
	var (
		found process.ProcessMemoryAddress
		ok    bool
	)

	err := s.walk(r, region, p, func(addr process.ProcessMemoryAddress) bool {
		found, ok = addr, true
		return false
	})
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrPatternNotFound
	}
	return found, nil
}

func (s *Searcher) All(r process.MemoryReader, region process.ModuleRegion, p pattern.Pattern) ([]process.ProcessMemoryAddress, error) {
	var results []process.ProcessMemoryAddress

	err := s.walk(r, region, p, func(addr process.ProcessMemoryAddress) bool {
		results = append(results, addr)
		return true
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// walk calls visit for each match in increasing order until visit returns false.
func (s *Searcher) walk(r process.MemoryReader, region process.ModuleRegion, p pattern.Pattern, visit func(process.ProcessMemoryAddress) bool) error {
	n := p.Len()
	if n == 0 {
		return ErrEmptyPattern
	}
	if uint(n) > uint(s.WindowSize) {
		return fmt.Errorf("%w: %d > %d", ErrPatternTooLong, n, uint(s.WindowSize))
	}

	end := region.End()
	cursor := region.Base
	carry := make([]byte, 0, n-1)
	buf := make([]byte, 0, int(s.WindowSize)+n-1)
	windows, faults := 0, 0

	for cursor < end {
		size := min(s.WindowSize, process.ProcessMemorySize(end-cursor))

		data, err := r.ReadMemory(cursor, size)
		if err != nil && !errors.Is(err, process.ErrShortRead) {
			return fmt.Errorf("scan %s at %s: %w", region.Name, cursor.ToString(), err)
		}
		if uint(len(data)) > uint(size) {
			data = data[:size]
		}
		windows++

		bufBase := cursor - process.ProcessMemoryAddress(len(carry))
		buf = append(buf[:0], carry...)
		buf = append(buf, data...)

		for i := 0; i+n <= len(buf); i++ {
			if p.MatchAt(buf, i) && !visit(bufBase+process.ProcessMemoryAddress(i)) {
				return nil
			}
		}

		if uint(len(data)) < uint(size) {
			faults++
			fault := cursor + process.ProcessMemoryAddress(len(data))
			next := alignUp(fault+1, s.PageSize)
			if s.Log != nil {
				s.Log.Debugln("short read at", fault.ToString(), "resuming at", next.ToString())
			}
			carry = carry[:0]
			if next <= cursor {
				// wrapped past the top of the address space
				break
			}
			cursor = next
			continue
		}

		keep := min(n-1, len(buf))
		carry = append(carry[:0], buf[len(buf)-keep:]...)
		cursor += process.ProcessMemoryAddress(size)
	}

	if s.Log != nil {
		s.Log.Debugln("scanned", region.Name, "windows:", windows, "faults:", faults)
	}

	return nil
}

func alignUp(addr process.ProcessMemoryAddress, page process.ProcessMemorySize) process.ProcessMemoryAddress {
	mask := process.ProcessMemoryAddress(page) - 1
	if page&(page-1) != 0 {
		// not a power of two
		rem := addr % process.ProcessMemoryAddress(page)
		if rem == 0 {
			return addr
		}
		return addr + process.ProcessMemoryAddress(page) - rem
	}
	return (addr + mask) &^ mask
}
