//go:build !linux && !windows

package main

import (
	"errors"
	"runtime"

	"sigscan/process"
)

var errUnsupported = errors.New("live processes are not supported on " + runtime.GOOS + "; use the image command")

func attach(pid process.ProcessID) (process.Process, error) {
	return nil, &process.AttachError{PID: pid, Err: errUnsupported}
}

func lookupProcess(name string) (process.ProcessInfo, error) {
	return process.ProcessInfo{}, errUnsupported
}
