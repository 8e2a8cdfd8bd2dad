// Package hexdump renders memory around a match site, marking the bytes a
// pattern pinned, the wildcard bytes, and the field a resolution read.
package hexdump

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"

	"sigscan/pattern"
	"sigscan/process"
	"sigscan/resolve"

	"github.com/Moonlight-Companies/gologger/coloransi"
)

// Highlight marks Len bytes starting at Start (relative to the dumped data).
type Highlight struct {
	Start int
	Len   int
	Color coloransi.ColorCode
}

func (h Highlight) covers(i int) bool {
	return i >= h.Start && i < h.Start+h.Len
}

// HexDumpOptions defines options for customizing the hexdump output
type HexDumpOptions struct {
	// BytesPerLine defines the number of bytes to display per line
	BytesPerLine int

	// GroupSize defines the grouping of bytes (usually 1, 2, 4, or 8)
	GroupSize int

	ShowASCII bool

	// StartAddress is printed in the address column for the first byte
	StartAddress uint64

	// OffsetWidth is the width of the address column in hex digits
	OffsetWidth int

	// Plain disables ANSI colors
	Plain bool

	OffsetColor       coloransi.ColorCode
	HexColor          coloransi.ColorCode
	ZeroColor         coloransi.ColorCode
	ASCIIColor        coloransi.ColorCode
	NonPrintableColor coloransi.ColorCode

	// Highlights are applied in order; the first one covering a byte wins
	Highlights               []Highlight
	HighlightBackgroundColor coloransi.ColorCode

	// Modules, when set, makes each line show 8-byte values that point into one of them
	Modules []process.ModuleRegion
}

// DefaultOptions returns the default hexdump options
func DefaultOptions() HexDumpOptions {
	return HexDumpOptions{
		BytesPerLine:             16,
		GroupSize:                1,
		ShowASCII:                true,
		OffsetWidth:              12,
		OffsetColor:              coloransi.Cyan,
		HexColor:                 coloransi.Green,
		ZeroColor:                coloransi.BrightBlack,
		ASCIIColor:               coloransi.White,
		NonPrintableColor:        coloransi.BrightBlack,
		HighlightBackgroundColor: coloransi.Black,
	}
}

// Dump creates a hex dump of the given data with specified options
func Dump(data []byte, options HexDumpOptions) string {
	var buffer bytes.Buffer
	DumpToWriter(&buffer, data, options)
	return buffer.String()
}

// DumpToWriter writes a hex dump of the given data to the specified writer
func DumpToWriter(writer io.Writer, data []byte, options HexDumpOptions) {
	if options.BytesPerLine <= 0 {
		options.BytesPerLine = 16
	}
	if options.GroupSize <= 0 {
		options.GroupSize = 1
	}
	if options.OffsetWidth <= 0 {
		options.OffsetWidth = 8
	}

	for offset := 0; offset < len(data); offset += options.BytesPerLine {
		end := min(offset+options.BytesPerLine, len(data))
		formatLine(writer, data[offset:end], offset, options)
	}
}

func (o HexDumpOptions) paint(fg coloransi.ColorCode, highlighted bool, text string) string {
	switch {
	case o.Plain:
		return text
	case highlighted:
		return coloransi.Color(fg, o.HighlightBackgroundColor, text)
	default:
		return coloransi.Foreground(fg, text)
	}
}

func (o HexDumpOptions) highlightAt(i int) (coloransi.ColorCode, bool) {
	for _, h := range o.Highlights {
		if h.covers(i) {
			return h.Color, true
		}
	}
	return 0, false
}

// formatLine writes one line; base is the index of data[0] in the whole dump
func formatLine(writer io.Writer, data []byte, base int, options HexDumpOptions) {
	addr := options.StartAddress + uint64(base)
	fmt.Fprint(writer, options.paint(options.OffsetColor, false, fmt.Sprintf("%0"+strconv.Itoa(options.OffsetWidth)+"x", addr)), "  ")

	var groups []string
	var group strings.Builder
	for i, b := range data {
		color := options.HexColor
		if b == 0 {
			color = options.ZeroColor
		}
		hl, highlighted := options.highlightAt(base + i)
		if highlighted {
			color = hl
		}
		group.WriteString(options.paint(color, highlighted, fmt.Sprintf("%02x", b)))

		if (i+1)%options.GroupSize == 0 || i == len(data)-1 {
			groups = append(groups, group.String())
			group.Reset()
		}
	}
	fmt.Fprint(writer, strings.Join(groups, " "))

	// keep the ASCII column aligned on a short last line
	if missing := options.BytesPerLine - len(data); missing > 0 {
		fullGroups := (options.BytesPerLine + options.GroupSize - 1) / options.GroupSize
		fmt.Fprint(writer, strings.Repeat(" ", missing*2+fullGroups-len(groups)))
	}

	if options.ShowASCII {
		fmt.Fprint(writer, " | ")
		for i, b := range data {
			hl, highlighted := options.highlightAt(base + i)
			switch {
			case highlighted && unicode.IsPrint(rune(b)) && b < 0x80:
				fmt.Fprint(writer, options.paint(hl, true, string(rune(b))))
			case highlighted:
				fmt.Fprint(writer, options.paint(hl, true, "."))
			case b == 0:
				fmt.Fprint(writer, options.paint(options.ZeroColor, false, "."))
			case b >= 0x80 || !unicode.IsPrint(rune(b)):
				fmt.Fprint(writer, options.paint(options.NonPrintableColor, false, "."))
			default:
				fmt.Fprint(writer, options.paint(options.ASCIIColor, false, string(rune(b))))
			}
		}
	}

	if len(options.Modules) > 0 {
		var ptrs []string
		for i := 0; i+8 <= len(data); i += 8 {
			ptr := process.ProcessMemoryAddress(binary.LittleEndian.Uint64(data[i : i+8]))
			if pointsInto(ptr, options.Modules) {
				ptrs = append(ptrs, options.paint(coloransi.Yellow, false, ptr.ToString()))
			}
		}
		if len(ptrs) > 0 {
			fmt.Fprint(writer, " | ", strings.Join(ptrs, " "))
		}
	}

	fmt.Fprintln(writer)
}

func pointsInto(ptr process.ProcessMemoryAddress, modules []process.ModuleRegion) bool {
	for _, m := range modules {
		if m.Contains(ptr) {
			return true
		}
	}
	return false
}

// MatchHighlights marks pattern bytes at matchOffset: exact bytes in green,
// wildcards in yellow, and the spec's resolved field in red. The field is
// listed first so it wins where it overlaps the wildcards.
func MatchHighlights(matchOffset int, p pattern.Pattern, spec resolve.Spec) []Highlight {
	var hl []Highlight

	if spec != nil {
		start, end := spec.Extent()
		fieldStart, fieldLen := start, end-start
		if rel, ok := spec.(resolve.Relative); ok {
			fieldStart, fieldLen = rel.DispOffset, 4
		}
		hl = append(hl, Highlight{Start: matchOffset + int(fieldStart), Len: int(fieldLen), Color: coloransi.Red})
	}

	for i, tok := range p.Tokens() {
		color := coloransi.Green
		if tok.Wildcard {
			color = coloransi.Yellow
		}
		hl = append(hl, Highlight{Start: matchOffset + i, Len: 1, Color: color})
	}
	return hl
}

// MatchSite reads context bytes on each side of a match and dumps them with
// MatchHighlights. Unreadable bytes shorten the dump rather than failing it.
func MatchSite(r process.MemoryReader, match process.ProcessMemoryAddress, p pattern.Pattern, spec resolve.Spec, context int, options HexDumpOptions) string {
	before := context
	if uint64(match) < uint64(before) {
		before = int(match)
	}
	start := match - process.ProcessMemoryAddress(before)

	data, _ := r.ReadMemory(start, process.ProcessMemorySize(before+p.Len()+context))
	if len(data) == 0 {
		return fmt.Sprintf("%s: unreadable\n", match.ToString())
	}

	options.StartAddress = uint64(start)
	options.Highlights = append(MatchHighlights(before, p, spec), options.Highlights...)
	return Dump(data, options)
}
