package process_blob

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"sigscan/process"
)

const (
	metadataFile   = "metadata.json"
	dumpWindowSize = 1 << 20
	dumpPageSize   = 0x1000
)

type dumpSegment struct {
	Address uint64 `json:"address"`
	Size    int    `json:"size"`
	File    string `json:"file"`
}

type dumpMetadata struct {
	PID      process.ProcessID `json:"pid"`
	Process  string            `json:"process"`
	Module   string            `json:"module"`
	Base     uint64            `json:"base"`
	Size     uint64            `json:"size"`
	Segments []dumpSegment     `json:"segments"`
}

// SaveModule copies the readable parts of region into dirname: one blob
// file per contiguous readable run plus metadata.json. Unreadable pages are
// not written, so a reloaded dump keeps its holes.
func SaveModule(r process.MemoryReader, pid process.ProcessID, processName string, region process.ModuleRegion, dirname string) (int, error) {
	if err := os.MkdirAll(dirname, 0o755); err != nil {
		return 0, err
	}

	meta := dumpMetadata{
		PID:     pid,
		Process: processName,
		Module:  region.Name,
		Base:    uint64(region.Base),
		Size:    uint64(region.Size),
	}

	var (
		run     []byte
		runBase process.ProcessMemoryAddress
		total   int
	)

	flush := func() error {
		if len(run) == 0 {
			return nil
		}
		name := fmt.Sprintf("blob_0x%x_%d.bin", uint64(runBase), len(run))
		if err := os.WriteFile(filepath.Join(dirname, name), run, 0o644); err != nil {
			return err
		}
		meta.Segments = append(meta.Segments, dumpSegment{Address: uint64(runBase), Size: len(run), File: name})
		total += len(run)
		run = nil
		return nil
	}

	cursor := region.Base
	end := region.End()
	for cursor < end {
		size := min(process.ProcessMemorySize(dumpWindowSize), process.ProcessMemorySize(end-cursor))
		data, err := r.ReadMemory(cursor, size)
		if err != nil && !errors.Is(err, process.ErrShortRead) {
			return total, fmt.Errorf("dump %s at %s: %w", region.Name, cursor.ToString(), err)
		}

		if len(data) > 0 {
			if len(run) == 0 {
				runBase = cursor
			}
			run = append(run, data...)
		}

		if uint(len(data)) < uint(size) {
			if err := flush(); err != nil {
				return total, err
			}
			fault := cursor + process.ProcessMemoryAddress(len(data))
			next := (fault + dumpPageSize) &^ (dumpPageSize - 1)
			if next <= cursor {
				break
			}
			cursor = next
			continue
		}
		cursor += process.ProcessMemoryAddress(size)
	}
	if err := flush(); err != nil {
		return total, err
	}

	metadataJSON, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return total, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dirname, metadataFile), metadataJSON, 0o644); err != nil {
		return total, err
	}
	return total, nil
}

// LoadDump maps every saved segment at its original address and registers
// the module. It also returns the recorded process name.
func LoadDump(dirname string) (*ProcessBlob, process.ModuleRegion, string, error) {
	metadataBytes, err := os.ReadFile(filepath.Join(dirname, metadataFile))
	if err != nil {
		return nil, process.ModuleRegion{}, "", fmt.Errorf("failed to read metadata: %w", err)
	}

	var meta dumpMetadata
	if err := json.Unmarshal(metadataBytes, &meta); err != nil {
		return nil, process.ModuleRegion{}, "", fmt.Errorf("failed to unmarshal metadata: %w", err)
	}

	region := process.ModuleRegion{
		Name: meta.Module,
		Base: process.ProcessMemoryAddress(meta.Base),
		Size: process.ProcessMemorySize(meta.Size),
	}

	blob := &ProcessBlob{pid: meta.PID}
	for _, seg := range meta.Segments {
		data, err := os.ReadFile(filepath.Join(dirname, filepath.Base(seg.File)))
		if err != nil {
			return nil, process.ModuleRegion{}, "", fmt.Errorf("failed to read blob %s: %w", seg.File, err)
		}
		if len(data) != seg.Size {
			return nil, process.ModuleRegion{}, "", fmt.Errorf("blob %s: %d bytes, metadata says %d", seg.File, len(data), seg.Size)
		}
		blob.Map(process.ProcessMemoryAddress(seg.Address), data)
	}
	blob.AddModule(region)

	return blob, region, meta.Process, nil
}
