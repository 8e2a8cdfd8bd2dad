// Package scanner drives pattern search and address resolution for a set of
// logical targets inside one module region.
package scanner

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"sigscan/pattern"
	"sigscan/process"
	"sigscan/resolve"
	"sigscan/search"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
)

// Candidate is one pattern with the rule that turns its match into a target.
type Candidate struct {
	Pattern pattern.Pattern
	Spec    resolve.Spec
}

// Request names a target and lists its candidates in priority order.
type Request struct {
	Target     string
	Candidates []Candidate
}

// Report is the outcome for one target. Address is meaningful only when
// Found. Candidate and Match record which candidate won and where it matched.
type Report struct {
	Target    string
	Found     bool
	Address   process.ProcessMemoryAddress
	Candidate int
	Match     process.ProcessMemoryAddress
}

func (r Report) String() string {
	if !r.Found {
		return fmt.Sprintf("%s: not found", r.Target)
	}
	return fmt.Sprintf("%s: %s (candidate %d, match %s)", r.Target, r.Address.ToString(), r.Candidate, r.Match.ToString())
}

// Session binds a reader to one module region. It is never modified after
// NewSession and may be shared between goroutines.
type Session struct {
	reader      process.MemoryReader
	region      process.ModuleRegion
	searcher    *search.Searcher
	parallelism int
	log         *logger.Logger
}

type config struct {
	searchOptions []search.Option
	parallelism   int
	log           *logger.Logger
}

// Option configures a Session.
type Option func(*config)

// WithSearchOptions passes window and page settings to the matcher.
func WithSearchOptions(opts ...search.Option) Option {
	return func(c *config) {
		c.searchOptions = append(c.searchOptions, opts...)
	}
}

// WithParallelism sets how many targets ScanAll may scan at once.
// Values of 0 or 1 scan sequentially.
func WithParallelism(n int) Option {
	return func(c *config) {
		c.parallelism = n
	}
}

func WithLogger(log *logger.Logger) Option {
	return func(c *config) {
		c.log = log
	}
}

func NewSession(r process.MemoryReader, region process.ModuleRegion, opts ...Option) *Session {
	c := config{parallelism: 1}
	for _, opt := range opts {
		opt(&c)
	}

	if c.log == nil {
		c.log = logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "scanner-"+region.Name))
	}

	searchOptions := append([]search.Option{search.WithLogger(c.log)}, c.searchOptions...)

	return &Session{
		reader:      r,
		region:      region,
		searcher:    search.New(searchOptions...),
		parallelism: c.parallelism,
		log:         c.log,
	}
}

func (s *Session) Region() process.ModuleRegion {
	return s.region
}

// Scan tries the candidates in order and reports the first one that both
// matches and resolves. A failing candidate is logged and skipped.
func (s *Session) Scan(req Request) Report {
	report := Report{Target: req.Target, Candidate: -1}

	for i, c := range req.Candidates {
		addr, match, err := s.try(c)
		if err != nil {
			if errors.Is(err, search.ErrPatternNotFound) {
				s.log.Debugln(req.Target, "candidate", i, "no match")
			} else {
				s.log.Warn(req.Target, " candidate ", i, ": ", err)
			}
			continue
		}

		s.log.Debugln(req.Target, "candidate", i, "matched at", match.ToString(), "->", addr.ToString())
		report.Found = true
		report.Address = addr
		report.Candidate = i
		report.Match = match
		return report
	}

	s.log.Infoln(req.Target, "not found after", len(req.Candidates), "candidates")
	return report
}

func (s *Session) try(c Candidate) (process.ProcessMemoryAddress, process.ProcessMemoryAddress, error) {
	if c.Spec == nil {
		return 0, 0, fmt.Errorf("%w: missing spec", resolve.ErrInvalidSpec)
	}
	if err := c.Spec.Validate(); err != nil {
		return 0, 0, err
	}

	match, err := s.searcher.First(s.reader, s.region, c.Pattern)
	if err != nil {
		return 0, 0, err
	}

	addr, err := resolve.Resolve(s.reader, match, c.Spec)
	if err != nil {
		return 0, match, err
	}
	return addr, match, nil
}

// ScanAll scans each request independently. Reports come back in request
// order whatever the parallelism.
func (s *Session) ScanAll(reqs []Request) []Report {
	reports := make([]Report, len(reqs))

	maxdop := s.parallelism
	if maxdop <= 1 || len(reqs) <= 1 {
		for i, req := range reqs {
			reports[i] = s.Scan(req)
		}
		return reports
	}

	if numCPU := runtime.NumCPU(); maxdop > numCPU {
		maxdop = numCPU
		s.log.Debugln("Limiting maxdop to number of CPUs:", maxdop)
	}

	s.log.Infoln("Scanning", len(reqs), "targets with maxdop=", maxdop)

	sem := make(chan struct{}, maxdop)
	var wg sync.WaitGroup

	for i, req := range reqs {
		wg.Add(1)
		sem <- struct{}{}

		go func(i int, req Request) {
			defer func() {
				<-sem
				wg.Done()
			}()
			// each goroutine owns its slot
			reports[i] = s.Scan(req)
		}(i, req)
	}

	wg.Wait()
	return reports
}
