package process_blob

import (
	"fmt"
	"os"
	"path/filepath"

	"sigscan/process"
)

// LoadImage maps the raw bytes of a file at base and registers it as a
// module named after the file. Useful for scanning a dumped or on-disk
// image without a live process; file offsets then stand in for RVAs.
func LoadImage(path string, base process.ProcessMemoryAddress) (*ProcessBlob, process.ModuleRegion, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, process.ModuleRegion{}, fmt.Errorf("load image: %w", err)
	}
	if len(data) == 0 {
		return nil, process.ModuleRegion{}, fmt.Errorf("load image %s: empty file", path)
	}

	region := process.ModuleRegion{
		Name: filepath.Base(path),
		Base: base,
		Size: process.ProcessMemorySize(len(data)),
	}

	blob := NewProcessBlob(base, data)
	blob.AddModule(region)
	return blob, region, nil
}
