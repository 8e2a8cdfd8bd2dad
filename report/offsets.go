package report

import (
	"bytes"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strconv"

	"sigscan/catalog"
	"sigscan/process"
	"sigscan/scanner"

	"github.com/pelletier/go-toml/v2"
)

// ModuleSection is the [Module] table.
type ModuleSection struct {
	Name string `toml:"Name"`
	Base string `toml:"Base"`
	Size string `toml:"Size"`
}

// OffsetsFile is the key-value results file. Every value is a hex string.
// Relative holds address-base for addresses inside the module; Static
// holds catalog offsets under their own section name.
type OffsetsFile struct {
	Offsets  map[string]string
	Relative map[string]string
	Module   ModuleSection
	Static   map[string]map[string]string
}

// NewOffsetsFile collects found targets. Targets that were not found are
// left out.
func NewOffsetsFile(meta Meta, reports []scanner.Report, static *catalog.Static) *OffsetsFile {
	f := &OffsetsFile{
		Offsets:  map[string]string{},
		Relative: map[string]string{},
		Module: ModuleSection{
			Name: meta.Module.Name,
			Base: hex(uint64(meta.Module.Base)),
			Size: hex(uint64(meta.Module.Size)),
		},
	}

	for _, r := range reports {
		if !r.Found {
			continue
		}
		f.Offsets[r.Target] = hex(uint64(r.Address))
		if rel, ok := RelativeOffset(meta.Module, r.Address); ok {
			f.Relative[r.Target] = hex(uint64(rel))
		}
	}

	if section, values := staticSection(static); section != "" {
		f.Static = map[string]map[string]string{section: values}
	}

	return f
}

func (f *OffsetsFile) document() map[string]any {
	doc := map[string]any{
		"Offsets": f.Offsets,
		"Module":  f.Module,
	}
	if len(f.Relative) > 0 {
		doc["Relative"] = f.Relative
	}
	for section, values := range f.Static {
		if _, taken := doc[section]; !taken {
			doc[section] = values
		}
	}
	return doc
}

// Encode writes the file as TOML under a comment header.
func (f *OffsetsFile) Encode(w io.Writer, meta Meta) error {
	var buf bytes.Buffer
	buf.WriteString(header("#", meta))
	buf.WriteString("\n")

	enc := toml.NewEncoder(&buf)
	enc.SetIndentTables(false)
	if err := enc.Encode(f.document()); err != nil {
		return fmt.Errorf("encode offsets: %w", err)
	}

	_, err := w.Write(buf.Bytes())
	return err
}

// WriteOffsets writes the key-value results file to filePath.
func WriteOffsets(filePath string, meta Meta, reports []scanner.Report, static *catalog.Static) error {
	file, err := os.Create(filePath)
	if err != nil {
		return err
	}

	if err := NewOffsetsFile(meta, reports, static).Encode(file, meta); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// ReadOffsets loads a file written by WriteOffsets. Only the known tables
// are kept.
func ReadOffsets(filePath string) (*OffsetsFile, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var doc struct {
		Offsets  map[string]string `toml:"Offsets"`
		Relative map[string]string `toml:"Relative"`
		Module   ModuleSection     `toml:"Module"`
	}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing offsets TOML: %w", err)
	}

	if doc.Offsets == nil {
		doc.Offsets = map[string]string{}
	}
	if doc.Relative == nil {
		doc.Relative = map[string]string{}
	}
	return &OffsetsFile{Offsets: doc.Offsets, Relative: doc.Relative, Module: doc.Module}, nil
}

// Change is one target whose address differs from a previous run.
type Change struct {
	Target string
	Old    string
	New    string
}

// Compare lists targets whose module-relative offset (or absolute address,
// when no relative one exists) changed since prev. A target missing on
// either side is a change with an empty Old or New.
func Compare(prev, cur *OffsetsFile) []Change {
	pick := func(f *OffsetsFile, name string) string {
		if v, ok := f.Relative[name]; ok {
			return v
		}
		return f.Offsets[name]
	}

	names := map[string]bool{}
	for name := range prev.Offsets {
		names[name] = true
	}
	for name := range cur.Offsets {
		names[name] = true
	}

	var changes []Change
	for _, name := range slices.Sorted(maps.Keys(names)) {
		oldVal, newVal := pick(prev, name), pick(cur, name)
		if !sameHex(oldVal, newVal) {
			changes = append(changes, Change{Target: name, Old: oldVal, New: newVal})
		}
	}
	return changes
}

func sameHex(a, b string) bool {
	if a == "" || b == "" {
		return a == b
	}
	x, errA := strconv.ParseUint(a, 0, 64)
	y, errB := strconv.ParseUint(b, 0, 64)
	if errA != nil || errB != nil {
		return a == b
	}
	return x == y
}

// RelativeOffset returns addr-base when addr lies inside module.
func RelativeOffset(module process.ModuleRegion, addr process.ProcessMemoryAddress) (process.ProcessMemoryAddress, bool) {
	if module.Size == 0 || !module.Contains(addr) {
		return 0, false
	}
	return addr - module.Base, true
}
