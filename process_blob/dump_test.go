package process_blob

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"sigscan/process"
)

func TestSaveModule_LoadDump(t *testing.T) {
	t.Parallel()

	const base = process.ProcessMemoryAddress(0x10000000)
	head := bytes.Repeat([]byte{0xAA}, 0x2000)
	tail := bytes.Repeat([]byte{0xBB}, 0x1000)

	// one unmapped page between the two segments
	src := NewProcessBlob(base, head).Map(base+0x3000, tail)
	region := process.ModuleRegion{Name: "client.dll", Base: base, Size: 0x4000}

	dir := filepath.Join(t.TempDir(), "dump")
	n, err := SaveModule(src, 1234, "hl2.exe", region, dir)
	if err != nil {
		t.Fatalf("SaveModule() error = %v", err)
	}
	if n != len(head)+len(tail) {
		t.Errorf("saved %d bytes, want %d", n, len(head)+len(tail))
	}

	blob, loaded, name, err := LoadDump(dir)
	if err != nil {
		t.Fatalf("LoadDump() error = %v", err)
	}
	if loaded != region {
		t.Errorf("region = %s, want %s", loaded, region)
	}
	if name != "hl2.exe" || blob.GetPID() != 1234 {
		t.Errorf("name = %q, pid = %d", name, blob.GetPID())
	}
	if m, err := blob.FindModule("CLIENT.DLL"); err != nil || m != region {
		t.Errorf("FindModule() = %s, %v", m, err)
	}

	data, err := blob.ReadMemory(base+0x1FF0, 0x20)
	if !errors.Is(err, process.ErrShortRead) || len(data) != 0x10 {
		t.Errorf("read across the hole: %d bytes, err = %v", len(data), err)
	}
	data, err = blob.ReadMemory(base+0x3000, 0x1000)
	if err != nil || !bytes.Equal(data, tail) {
		t.Errorf("tail segment: err = %v", err)
	}
}

func TestLoadDump_Errors(t *testing.T) {
	t.Parallel()

	if _, _, _, err := LoadDump(t.TempDir()); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing metadata: err = %v", err)
	}

	dir := t.TempDir()
	meta := `{"module":"a.dll","base":4096,"size":16,"segments":[{"address":4096,"size":16,"file":"blob.bin"}]}`
	if err := os.WriteFile(filepath.Join(dir, metadataFile), []byte(meta), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "blob.bin"), []byte{1, 2, 3}, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, _, err := LoadDump(dir); err == nil {
		t.Error("LoadDump() accepted a truncated blob")
	}
}
