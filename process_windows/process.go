//go:build windows

package process_windows

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unsafe"

	"sigscan/process"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
	"golang.org/x/sys/windows"
)

const pageSize = 0x1000

// WindowsProcess implements the process.Process interface for Windows systems
type WindowsProcess struct {
	pid    process.ProcessID
	handle windows.Handle
	log    *logger.Logger
	mu     sync.Mutex
}

var _ process.Process = (*WindowsProcess)(nil)

// Attach opens pid with read-only rights.
func Attach(pid process.ProcessID) (*WindowsProcess, error) {
	handle, err := windows.OpenProcess(windows.PROCESS_VM_READ|windows.PROCESS_QUERY_INFORMATION, false, uint32(pid))
	if err != nil {
		return nil, &process.AttachError{PID: pid, Err: classifyOpenError(err)}
	}

	p := &WindowsProcess{
		pid:    pid,
		handle: handle,
		log:    logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, fmt.Sprintf("process-%d", pid))),
	}

	p.log.Infoln("Process opened")
	return p, nil
}

func classifyOpenError(err error) error {
	switch {
	case errors.Is(err, windows.ERROR_ACCESS_DENIED):
		return fmt.Errorf("%w: %v", process.ErrAccessDenied, err)
	case errors.Is(err, windows.ERROR_INVALID_PARAMETER):
		// OpenProcess reports a PID that does not exist this way
		return fmt.Errorf("%w: %v", process.ErrProcessNotFound, err)
	}
	return err
}

func (p *WindowsProcess) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.handle != 0 {
		if err := windows.CloseHandle(p.handle); err != nil {
			return fmt.Errorf("CloseHandle failed: %w", err)
		}
		p.handle = 0
	}

	p.pid = 0
	p.log.Infoln("Process closed")
	p.log = logger.NewLogger(coloransi.Color(coloransi.Red, coloransi.ColorOrange, "process-not-open"))

	return nil
}

func (p *WindowsProcess) GetPID() process.ProcessID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pid
}

// ReadMemory tries the whole range first. ReadProcessMemory refuses a range
// that crosses an unreadable page, so on failure it falls back to page-sized
// reads and returns the prefix up to the first page that fails.
func (p *WindowsProcess) ReadMemory(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	if size == 0 {
		return []byte{}, nil
	}

	p.mu.Lock()
	handle := p.handle
	p.mu.Unlock()

	if handle == 0 {
		return nil, process.ErrProcessNotOpen
	}

	buf := make([]byte, size)
	var read uintptr
	err := windows.ReadProcessMemory(handle, uintptr(addr), &buf[0], uintptr(size), &read)
	if err == nil && read == uintptr(size) {
		return buf, nil
	}

	total := uint64(0)
	var lastErr error
	for total < uint64(size) {
		cur := uint64(addr) + total
		n := min(pageSize-cur%pageSize, uint64(size)-total)

		read = 0
		lastErr = windows.ReadProcessMemory(handle, uintptr(cur), &buf[total], uintptr(n), &read)
		total += uint64(read)
		if lastErr != nil || uint64(read) < n {
			break
		}
	}

	return buf[:total], &process.ReadError{
		Address:     addr,
		Requested:   size,
		Transferred: int(total),
		Err:         classifyReadError(lastErr),
	}
}

func classifyReadError(err error) error {
	switch {
	case err == nil, errors.Is(err, windows.ERROR_PARTIAL_COPY), errors.Is(err, windows.ERROR_NOACCESS):
		return process.ErrAddressNotMapped
	case errors.Is(err, windows.ERROR_ACCESS_DENIED):
		return fmt.Errorf("%w: %v", process.ErrAccessDenied, err)
	}
	return fmt.Errorf("ReadProcessMemory failed: %w", err)
}

// Modules walks a Toolhelp32 module snapshot.
func (p *WindowsProcess) Modules() ([]process.ModuleRegion, error) {
	pid := p.GetPID()
	if pid == 0 {
		return nil, process.ErrProcessNotOpen
	}

	snapshot, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPMODULE|windows.TH32CS_SNAPMODULE32, uint32(pid))
	if err != nil {
		return nil, fmt.Errorf("CreateToolhelp32Snapshot: %w", err)
	}
	defer windows.CloseHandle(snapshot)

	var entry windows.ModuleEntry32
	entry.Size = uint32(unsafe.Sizeof(entry))

	var modules []process.ModuleRegion
	for err = windows.Module32First(snapshot, &entry); err == nil; err = windows.Module32Next(snapshot, &entry) {
		modules = append(modules, process.ModuleRegion{
			Name: windows.UTF16ToString(entry.Module[:]),
			Base: process.ProcessMemoryAddress(entry.ModBaseAddr),
			Size: process.ProcessMemorySize(entry.ModBaseSize),
		})
	}
	if !errors.Is(err, windows.ERROR_NO_MORE_FILES) {
		return nil, fmt.Errorf("Module32Next: %w", err)
	}

	sort.Slice(modules, func(i, j int) bool {
		return modules[i].Base < modules[j].Base
	})
	return modules, nil
}

func (p *WindowsProcess) FindModule(name string) (process.ModuleRegion, error) {
	modules, err := p.Modules()
	if err != nil {
		return process.ModuleRegion{}, err
	}

	for _, m := range modules {
		if strings.EqualFold(m.Name, name) {
			p.log.Infoln("Module", m.String())
			return m, nil
		}
	}
	return process.ModuleRegion{}, fmt.Errorf("%q in process %d: %w", name, p.GetPID(), process.ErrModuleNotFound)
}
