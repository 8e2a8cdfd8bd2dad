//go:build linux

package main

import (
	"sigscan/process"
	"sigscan/process_linux"
)

func attach(pid process.ProcessID) (process.Process, error) {
	p, err := process_linux.Attach(pid)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func lookupProcess(name string) (process.ProcessInfo, error) {
	return process_linux.OneByName(name)
}
