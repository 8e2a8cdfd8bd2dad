package main

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"sigscan/report"
)

// writeImage creates a module image holding the x64 EntityList load from
// the built-in catalog, displacement 0x200, at offset 0x100.
func writeImage(t *testing.T) string {
	t.Helper()

	data := make([]byte, 0x1000)
	site := []byte{0x48, 0x8B, 0x0D, 0, 0, 0, 0, 0x48, 0x85, 0xC9, 0x74, 0x05, 0x48, 0x8B, 0x01}
	binary.LittleEndian.PutUint32(site[3:], 0x200)
	copy(data[0x100:], site)

	path := filepath.Join(t.TempDir(), "client.dll")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestImageCommand(t *testing.T) {
	dir := t.TempDir()
	ini := filepath.Join(dir, "offsets.ini")
	constants := filepath.Join(dir, "offsets.go")

	out, err := run(t, "image", "--file", writeImage(t), "--base", "0x10000000",
		"--ini", ini, "--constants", constants, "--package", "gmod", "--dump")
	if err != nil {
		t.Fatalf("image: %v\n%s", err, out)
	}

	for _, want := range []string{"EntityList", "FOUND", "0x10000307", "ViewMatrix", "NOT FOUND", "1/3 targets resolved"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	// the hexdump starts 32 bytes before the match
	if !strings.Contains(out, "0000100000e0") {
		t.Errorf("hexdump missing:\n%s", out)
	}

	offsets, err := report.ReadOffsets(ini)
	if err != nil {
		t.Fatalf("ReadOffsets() error = %v", err)
	}
	if got := offsets.Offsets["EntityList"]; got != "0x10000307" {
		t.Errorf("Offsets[EntityList] = %q", got)
	}
	if got := offsets.Relative["EntityList"]; got != "0x307" {
		t.Errorf("Relative[EntityList] = %q", got)
	}

	src, err := os.ReadFile(constants)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(src), "package gmod") || !strings.Contains(string(src), "EntityList = 0x10000307") {
		t.Errorf("constants file:\n%s", src)
	}

	// a second run against the first results reports no change
	out, err = run(t, "image", "--file", writeImage(t), "--base", "0x10000000", "--ini", ini, "--compare", ini)
	if err != nil {
		t.Fatalf("image --compare: %v", err)
	}
	if !strings.Contains(out, "offsets unchanged") {
		t.Errorf("compare output:\n%s", out)
	}
}

func TestImageCommand_Errors(t *testing.T) {
	if _, err := run(t, "image", "--ini", ""); err == nil {
		t.Error("image without --file or --dir succeeded")
	}
	if _, err := run(t, "image", "--file", writeImage(t), "--base", "nope", "--ini", ""); err == nil {
		t.Error("invalid --base accepted")
	}
	if _, err := run(t, "image", "--file", filepath.Join(t.TempDir(), "missing"), "--ini", ""); err == nil {
		t.Error("missing image accepted")
	}
}

func TestCheckCommand(t *testing.T) {
	out, err := run(t, "check")
	if err != nil {
		t.Fatalf("check: %v\n%s", err, out)
	}
	if !strings.Contains(out, "EntityList: 6/6 candidates compiled") {
		t.Errorf("check output:\n%s", out)
	}

	targets := filepath.Join(t.TempDir(), "targets.yaml")
	body := `
targets:
  - name: Broken
    candidates:
      - pattern: "8B 0D ?? ?? ?? ?? GG"
        absolute: {displacement: 2, width: 4}
      - pattern: "8B 0D ?? ?? ?? ??"
        absolute: {displacement: 2, width: 4}
`
	if err := os.WriteFile(targets, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err = run(t, "check", "--targets", targets)
	if err == nil {
		t.Fatalf("check accepted a malformed pattern:\n%s", out)
	}
	if !strings.Contains(out, "Broken: 1/2 candidates compiled") || !strings.Contains(out, "candidate 0:") {
		t.Errorf("check output:\n%s", out)
	}
}

func TestCheckCommand_WriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "targets.yaml")
	if _, err := run(t, "check", "--write-default", path); err != nil {
		t.Fatal(err)
	}

	// the written file is a usable catalog
	out, err := run(t, "check", "--targets", path)
	if err != nil || !strings.Contains(out, "ViewMatrix: 5/5 candidates compiled") {
		t.Errorf("check --targets %s: %v\n%s", path, err, out)
	}
}
