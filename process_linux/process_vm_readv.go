//go:build linux

package process_linux

import (
	"errors"
	"fmt"
	"os"

	"sigscan/process"

	"golang.org/x/sys/unix"
)

// iovMax is the kernel's UIO_MAXIOV; one call covers at most this many pages.
const iovMax = 1024

var pageSize = uint64(os.Getpagesize())

// process_vm_readv reads size bytes at remoteAddr from pid. The remote side
// is split into page-aligned iovecs so a fault truncates the transfer at the
// faulting page instead of failing the whole request. The returned slice
// holds only the bytes that arrived.
func process_vm_readv(
	pid process.ProcessID,
	remoteAddr process.ProcessMemoryAddress,
	size process.ProcessMemorySize,
) ([]byte, error) {
	localBuf := make([]byte, size)
	total := 0

	for total < len(localBuf) {
		addr := uint64(remoteAddr) + uint64(total)
		remote := make([]unix.RemoteIovec, 0, iovMax)
		want := 0

		for len(remote) < iovMax && total+want < len(localBuf) {
			cur := addr + uint64(want)
			n := int(min(pageSize-cur%pageSize, uint64(len(localBuf)-total-want)))
			remote = append(remote, unix.RemoteIovec{Base: uintptr(cur), Len: n})
			want += n
		}

		local := []unix.Iovec{{Base: &localBuf[total]}}
		local[0].SetLen(want)

		n, err := unix.ProcessVMReadv(int(pid), local, remote, 0)
		if n > 0 {
			total += n
		}
		if err != nil || n < want {
			return localBuf[:total], &process.ReadError{
				Address:     remoteAddr,
				Requested:   size,
				Transferred: total,
				Err:         classifyReadErrno(err),
			}
		}
	}

	return localBuf, nil
}

func classifyReadErrno(err error) error {
	switch {
	case err == nil:
		return process.ErrAddressNotMapped
	case errors.Is(err, unix.EPERM), errors.Is(err, unix.EACCES):
		return fmt.Errorf("%w: %v", process.ErrAccessDenied, err)
	case errors.Is(err, unix.ESRCH):
		return fmt.Errorf("%w: %v", process.ErrProcessNotFound, err)
	case errors.Is(err, unix.EFAULT), errors.Is(err, unix.EIO):
		return fmt.Errorf("%w: %v", process.ErrAddressNotMapped, err)
	}
	return fmt.Errorf("process_vm_readv failed: %w", err)
}

// ReadMemory reads memory from the process at the specified address. A
// short transfer returns the bytes read and a *process.ReadError.
func (p *LinuxProcess) ReadMemory(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	if size == 0 {
		return []byte{}, nil
	}

	p.mu.Lock()
	pid := p.pid
	p.mu.Unlock()

	if pid == 0 {
		return nil, process.ErrProcessNotOpen
	}

	// no lock held across the system call
	return process_vm_readv(pid, addr, size)
}
