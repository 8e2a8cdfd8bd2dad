// Package catalog loads target definitions from YAML and turns them into
// scanner requests.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"sigscan/resolve"
	"sigscan/scanner"

	"gopkg.in/yaml.v2"
)

//go:embed default_targets.yaml
var defaultTargets []byte

// ErrInvalidCatalog is wrapped by every structural problem in a catalog.
var ErrInvalidCatalog = errors.New("invalid catalog")

type Absolute struct {
	Displacement int64 `yaml:"displacement"`
	Width        int   `yaml:"width,omitempty"`
}

type Relative struct {
	DispOffset   int64 `yaml:"disp_offset"`
	AnchorOffset int64 `yaml:"anchor_offset"`
}

// Candidate carries exactly one of Absolute or Relative.
type Candidate struct {
	Pattern  string    `yaml:"pattern"`
	Absolute *Absolute `yaml:"absolute,omitempty"`
	Relative *Relative `yaml:"relative,omitempty"`
}

type Target struct {
	Name       string      `yaml:"name"`
	Candidates []Candidate `yaml:"candidates"`
}

type StaticOffset struct {
	Name   string `yaml:"name"`
	Offset uint64 `yaml:"offset"`
}

// Static holds known offsets that are written out with the results as is.
type Static struct {
	Section string         `yaml:"section"`
	Offsets []StaticOffset `yaml:"offsets"`
}

type Catalog struct {
	Module  string   `yaml:"module"`
	Targets []Target `yaml:"targets"`
	Static  *Static  `yaml:"static,omitempty"`
}

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	return Parse(defaultTargets)
}

// DefaultBytes returns the embedded catalog source, for writing a starter file.
func DefaultBytes() []byte {
	out := make([]byte, len(defaultTargets))
	copy(out, defaultTargets)
	return out
}

// Load reads a catalog file. An empty path selects the embedded default.
func Load(filePath string) (*Catalog, error) {
	if filePath == "" {
		return Default()
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Decode(file)
}

func Decode(r io.Reader) (*Catalog, error) {
	var c Catalog
	decoder := yaml.NewDecoder(r)
	decoder.SetStrict(true)
	if err := decoder.Decode(&c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.UnmarshalStrict(data, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks structure only; patterns are compiled by Requests.
func (c *Catalog) Validate() error {
	if len(c.Targets) == 0 {
		return fmt.Errorf("%w: no targets", ErrInvalidCatalog)
	}

	seen := make(map[string]bool, len(c.Targets))
	for _, t := range c.Targets {
		if t.Name == "" {
			return fmt.Errorf("%w: target without a name", ErrInvalidCatalog)
		}
		if seen[t.Name] {
			return fmt.Errorf("%w: duplicate target %s", ErrInvalidCatalog, t.Name)
		}
		seen[t.Name] = true

		for i, cand := range t.Candidates {
			if (cand.Absolute == nil) == (cand.Relative == nil) {
				return fmt.Errorf("%w: %s candidate %d needs exactly one of absolute or relative", ErrInvalidCatalog, t.Name, i)
			}
		}
	}
	return nil
}

// Spec converts the declared resolution. A missing absolute width falls
// back to pointerWidth.
func (c Candidate) Spec(pointerWidth int) resolve.Spec {
	if c.Relative != nil {
		return resolve.Relative{DispOffset: c.Relative.DispOffset, AnchorOffset: c.Relative.AnchorOffset}
	}
	width := c.Absolute.Width
	if width == 0 {
		width = pointerWidth
	}
	return resolve.Absolute{Displacement: c.Absolute.Displacement, Width: width}
}

// Requests compiles every target. Candidates that fail to compile are left
// out of their request and reported together in the returned error; the
// requests are still usable.
func (c *Catalog) Requests(pointerWidth int) ([]scanner.Request, error) {
	reqs := make([]scanner.Request, 0, len(c.Targets))
	var errs []error

	for _, t := range c.Targets {
		texts := make([]scanner.CandidateText, len(t.Candidates))
		for i, cand := range t.Candidates {
			texts[i] = scanner.CandidateText{Pattern: cand.Pattern, Spec: cand.Spec(pointerWidth)}
		}

		req, err := scanner.NewRequest(t.Name, texts...)
		if err != nil {
			errs = append(errs, err)
		}
		reqs = append(reqs, req)
	}

	return reqs, errors.Join(errs...)
}

// Names lists the targets in catalog order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.Targets))
	for i, t := range c.Targets {
		names[i] = t.Name
	}
	return names
}
