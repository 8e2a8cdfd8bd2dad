//go:build linux

package process_linux

import (
	"errors"
	"fmt"
	"io/fs"
	"sync"

	"sigscan/process"
	"sigscan/process/memory_map"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
)

// LinuxProcess implements the process.Process interface for Linux systems.
// Reads go through process_vm_readv and never stop or modify the target.
type LinuxProcess struct {
	pid process.ProcessID
	log *logger.Logger
	mm  []memory_map.MemoryMapItem
	mu  sync.Mutex
}

var _ process.Process = (*LinuxProcess)(nil)

// Attach opens pid for reading. It fails with a *process.AttachError
// wrapping process.ErrProcessNotFound or process.ErrAccessDenied.
func Attach(pid process.ProcessID) (*LinuxProcess, error) {
	if pid <= 0 || !procExists(int(pid)) {
		return nil, &process.AttachError{PID: pid, Err: process.ErrProcessNotFound}
	}

	p := &LinuxProcess{
		pid: pid,
		log: logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, fmt.Sprintf("process-%d", pid))),
	}

	if err := p.UpdateMemoryMap(); err != nil {
		return nil, &process.AttachError{PID: pid, Err: classifyAttachError(err)}
	}

	// maps may be world readable while the memory is not
	if err := p.probe(); err != nil {
		return nil, &process.AttachError{PID: pid, Err: err}
	}

	p.log.Infoln("Process opened,", len(p.mm), "mappings")

	return p, nil
}

func classifyAttachError(err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %v", process.ErrProcessNotFound, err)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %v", process.ErrAccessDenied, err)
	}
	return err
}

// probe reads one byte from the first readable mapping so permission
// problems surface at attach time rather than as an empty scan.
func (p *LinuxProcess) probe() error {
	for _, item := range p.mm {
		if !item.IsReadable() {
			continue
		}
		_, err := process_vm_readv(p.pid, process.ProcessMemoryAddress(item.Address), 1)
		if errors.Is(err, process.ErrAccessDenied) || errors.Is(err, process.ErrProcessNotFound) {
			return err
		}
		return nil
	}
	return nil
}

func (p *LinuxProcess) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.log.Infoln("Closing process")

	p.pid = 0
	p.mm = nil

	p.log = logger.NewLogger(coloransi.Color(coloransi.Red, coloransi.ColorOrange, "process-not-open"))

	return nil
}

// GetPID returns the process ID
func (p *LinuxProcess) GetPID() process.ProcessID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pid
}

// UpdateMemoryMap rereads /proc/<pid>/maps
func (p *LinuxProcess) UpdateMemoryMap() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pid == 0 {
		return process.ErrProcessNotOpen
	}

	mm, err := memory_map.ReadMemoryMap(int(p.pid))
	if err != nil {
		return fmt.Errorf("failed to read memory map: %w", err)
	}

	p.mm = mm
	return nil
}

func (p *LinuxProcess) Modules() ([]process.ModuleRegion, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pid == 0 {
		return nil, process.ErrProcessNotOpen
	}

	var result []process.ModuleRegion
	for _, m := range memory_map.Modules(p.mm) {
		result = append(result, toRegion(m))
	}
	return result, nil
}

func (p *LinuxProcess) FindModule(name string) (process.ModuleRegion, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pid == 0 {
		return process.ModuleRegion{}, process.ErrProcessNotOpen
	}

	m, ok := memory_map.FindModule(p.mm, name)
	if !ok {
		return process.ModuleRegion{}, fmt.Errorf("%q in process %d: %w", name, p.pid, process.ErrModuleNotFound)
	}

	region := toRegion(m)
	p.log.Infoln("Module", region.String())
	return region, nil
}

func toRegion(m memory_map.Module) process.ModuleRegion {
	return process.ModuleRegion{
		Name: m.Name,
		Base: process.ProcessMemoryAddress(m.Base),
		Size: process.ProcessMemorySize(m.Size),
	}
}
