package report

import (
	"bytes"
	"fmt"
	"go/format"
	"os"
	"strings"
	"text/template"
	"unicode"

	"sigscan/catalog"
	"sigscan/scanner"
)

const DefaultPackage = "offsets"

var constantsTemplate = template.Must(template.New("constants").Parse(`// Code generated by sigscan. DO NOT EDIT.
{{.Header}}
package {{.Package}}

const (
{{- range .Found}}
	{{.Name}} = {{.Value}}
{{- end}}
)
{{if .Missing}}
// Not found:
{{- range .Missing}}
//   {{.}}
{{- end}}
{{end}}
{{- if .Static}}
// {{.StaticSection}} field offsets.
const (
{{- range .Static}}
	{{.Name}} = {{.Value}}
{{- end}}
)
{{end}}`))

type constant struct {
	Name  string
	Value string
}

// GenerateConstants renders a Go source file with one constant per found
// target. The output is gofmt formatted.
func GenerateConstants(pkg string, meta Meta, reports []scanner.Report, static *catalog.Static) ([]byte, error) {
	if pkg == "" {
		pkg = DefaultPackage
	}
	if !isIdentifier(pkg) {
		return nil, fmt.Errorf("invalid package name %q", pkg)
	}

	data := struct {
		Header        string
		Package       string
		Found         []constant
		Missing       []string
		StaticSection string
		Static        []constant
	}{
		Header:  header("//", meta),
		Package: pkg,
	}

	for _, r := range reports {
		if !r.Found {
			data.Missing = append(data.Missing, r.Target)
			continue
		}
		data.Found = append(data.Found, constant{Name: identifier(r.Target), Value: r.Address.ToString()})
	}

	if section, _ := staticSection(static); section != "" {
		data.StaticSection = section
		for _, o := range static.Offsets {
			data.Static = append(data.Static, constant{Name: identifier(section + "_" + o.Name), Value: hex(o.Offset)})
		}
	}

	var buf bytes.Buffer
	if err := constantsTemplate.Execute(&buf, data); err != nil {
		return nil, err
	}

	out, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("format constants: %w", err)
	}
	return out, nil
}

// WriteConstants writes GenerateConstants output to filePath.
func WriteConstants(filePath, pkg string, meta Meta, reports []scanner.Report, static *catalog.Static) error {
	out, err := GenerateConstants(pkg, meta, reports, static)
	if err != nil {
		return err
	}
	return os.WriteFile(filePath, out, 0o644)
}

// identifier maps a target name onto an exported Go identifier.
func identifier(name string) string {
	var b strings.Builder
	upper := true
	for _, r := range name {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if upper {
				r = unicode.ToUpper(r)
				upper = false
			}
			b.WriteRune(r)
		default:
			upper = true
		}
	}

	id := b.String()
	if id == "" || unicode.IsDigit(rune(id[0])) {
		id = "X" + id
	}
	return id
}

func isIdentifier(s string) bool {
	for i, r := range s {
		if r != '_' && !unicode.IsLetter(r) && (i == 0 || !unicode.IsDigit(r)) {
			return false
		}
	}
	return s != ""
}
