//go:build windows

package main

import (
	"sigscan/process"
	"sigscan/process_windows"
)

func attach(pid process.ProcessID) (process.Process, error) {
	p, err := process_windows.Attach(pid)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func lookupProcess(name string) (process.ProcessInfo, error) {
	return process_windows.OneByName(name)
}
