package memory_map

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// MemoryMapItem represents a memory region in a process's address space
type MemoryMapItem struct {
	Address uint64 // The starting address of the memory region
	Size    uint   // The size of the memory region in bytes
	Perms   string // Permissions (e.g., "r-xp" for read, execute, private)
	Offset  uint64 // Offset into the backing file
	Path    string // Backing file, pseudo name ("[heap]") or empty for anonymous
}

// String returns a string representation of the memory map item
func (mmItem MemoryMapItem) String() string {
	return fmt.Sprintf("Address: %x, Size: %d, Perms: %s, Path: %s", mmItem.Address, mmItem.Size, mmItem.Perms, mmItem.Path)
}

func (mmItem MemoryMapItem) End() uint64 {
	return mmItem.Address + uint64(mmItem.Size)
}

func (mmItem MemoryMapItem) IsReadable() bool {
	return len(mmItem.Perms) > 0 && mmItem.Perms[0] == 'r'
}

func (mmItem MemoryMapItem) IsExecutable() bool {
	return len(mmItem.Perms) > 2 && mmItem.Perms[2] == 'x'
}

// IsImage reports whether the mapping is backed by a file on disk.
func (mmItem MemoryMapItem) IsImage() bool {
	return strings.HasPrefix(mmItem.Path, "/")
}

// Parse reads the /proc/<pid>/maps format:
//
//	00400000-0040b000 r-xp 00000000 08:01 1234   /usr/bin/cat
//
// Lines that do not parse are skipped. The result is sorted by address.
func Parse(r io.Reader) ([]MemoryMapItem, error) {
	var memoryMap []MemoryMapItem
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}

		// Parse address range (e.g., "00400000-0040b000")
		addrRange := strings.Split(fields[0], "-")
		if len(addrRange) != 2 {
			continue
		}

		startAddr, err := strconv.ParseUint(addrRange[0], 16, 64)
		if err != nil {
			continue
		}

		endAddr, err := strconv.ParseUint(addrRange[1], 16, 64)
		if err != nil || endAddr < startAddr {
			continue
		}

		item := MemoryMapItem{
			Address: startAddr,
			Size:    uint(endAddr - startAddr),
			Perms:   fields[1],
		}
		if len(fields) > 2 {
			item.Offset, _ = strconv.ParseUint(fields[2], 16, 64)
		}
		if len(fields) > 5 {
			// paths may contain spaces
			item.Path = strings.Join(fields[5:], " ")
		}

		memoryMap = append(memoryMap, item)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	sort.Slice(memoryMap, func(i, j int) bool {
		return memoryMap[i].Address < memoryMap[j].Address
	})

	return memoryMap, nil
}

// Module is one file-backed image assembled from its mappings.
type Module struct {
	Name string // basename of Path
	Path string
	Base uint64
	Size uint
}

// Modules groups file-backed mappings by path. An image spans from its
// lowest mapping to the end of its highest one, holes included; reads over
// the holes come back short, which the scanner tolerates.
func Modules(memoryMap []MemoryMapItem) []Module {
	index := make(map[string]int)
	var modules []Module

	for _, item := range memoryMap {
		if !item.IsImage() {
			continue
		}

		i, ok := index[item.Path]
		if !ok {
			index[item.Path] = len(modules)
			modules = append(modules, Module{
				Name: filepath.Base(item.Path),
				Path: item.Path,
				Base: item.Address,
				Size: item.Size,
			})
			continue
		}

		m := &modules[i]
		start := min(m.Base, item.Address)
		end := max(m.Base+uint64(m.Size), item.End())
		m.Base = start
		m.Size = uint(end - start)
	}

	sort.Slice(modules, func(i, j int) bool {
		return modules[i].Base < modules[j].Base
	})

	return modules
}

// FindModule returns the first module whose basename or full path matches name, ignoring case.
func FindModule(memoryMap []MemoryMapItem, name string) (Module, bool) {
	for _, m := range Modules(memoryMap) {
		if strings.EqualFold(m.Name, name) || strings.EqualFold(m.Path, name) {
			return m, true
		}
	}
	return Module{}, false
}

// IsValidAddress2 returns the region holding addr. memoryMap must be sorted.
func IsValidAddress2(addr uint64, memoryMap []MemoryMapItem) *MemoryMapItem {
	i := sort.Search(len(memoryMap), func(i int) bool {
		return memoryMap[i].Address+uint64(memoryMap[i].Size) > addr
	})
	if i < len(memoryMap) && memoryMap[i].Address <= addr {
		return &memoryMap[i]
	}

	return nil
}
