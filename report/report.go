// Package report writes scan results: a key-value offsets file, a Go
// constants file and a plain text summary.
package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"sigscan/catalog"
	"sigscan/process"
	"sigscan/scanner"
)

// Meta describes where results came from.
type Meta struct {
	Process   string
	PID       process.ProcessID
	Module    process.ModuleRegion
	Generated time.Time
}

func hex(v uint64) string {
	return fmt.Sprintf("0x%X", v)
}

// Summary writes one FOUND / NOT FOUND line per target.
func Summary(w io.Writer, reports []scanner.Report) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	found := 0
	for _, r := range reports {
		if r.Found {
			found++
			fmt.Fprintf(tw, "%s\tFOUND\t%s\n", r.Target, r.Address.ToString())
		} else {
			fmt.Fprintf(tw, "%s\tNOT FOUND\t\n", r.Target)
		}
	}
	fmt.Fprintf(tw, "\n%d/%d targets resolved\n", found, len(reports))

	return tw.Flush()
}

// staticSection returns the catalog's static offsets keyed by name, and the
// section they belong in.
func staticSection(static *catalog.Static) (string, map[string]string) {
	if static == nil || len(static.Offsets) == 0 {
		return "", nil
	}
	section := static.Section
	if section == "" {
		section = "Static"
	}
	values := make(map[string]string, len(static.Offsets))
	for _, o := range static.Offsets {
		values[o.Name] = hex(o.Offset)
	}
	return section, values
}

// header renders comment lines shared by both file formats.
func header(prefix string, meta Meta) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s sigscan offsets\n", prefix)
	if meta.Process != "" {
		fmt.Fprintf(&b, "%s Process: %s (PID %d)\n", prefix, meta.Process, meta.PID)
	}
	if meta.Module.Name != "" {
		fmt.Fprintf(&b, "%s Module: %s\n", prefix, meta.Module)
	}
	if !meta.Generated.IsZero() {
		fmt.Fprintf(&b, "%s Generated: %s\n", prefix, meta.Generated.UTC().Format(time.RFC3339))
	}
	return b.String()
}
