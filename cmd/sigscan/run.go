package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"time"

	"sigscan/hexdump"
	"sigscan/process"
	"sigscan/report"
	"sigscan/scanner"
)

type scanOptions struct {
	dump    bool
	compare string
}

// scanModule runs the catalog against one module and writes every
// configured output.
func (a *app) scanModule(w io.Writer, r process.MemoryReader, region process.ModuleRegion, meta report.Meta, opts scanOptions) ([]scanner.Report, error) {
	reqs, err := a.cat.Requests(a.cfg.PointerWidth)
	if err != nil {
		// the remaining candidates are still scanned
		a.log.Warn("catalog: ", err)
	}

	a.log.Infoln("Scanning", region.String(), "for", len(reqs), "targets")

	session := scanner.NewSession(r, region,
		scanner.WithSearchOptions(a.cfg.SearchOptions()...),
		scanner.WithParallelism(a.cfg.Parallelism),
	)
	reports := session.ScanAll(reqs)

	if opts.dump {
		dumpMatches(w, r, reqs, reports, region)
	}

	if err := report.Summary(w, reports); err != nil {
		return reports, err
	}

	meta.Module = region
	meta.Generated = time.Now()

	if ini := a.cfg.Output.INI; ini != "" {
		if opts.compare != "" {
			if err := printChanges(w, opts.compare, report.NewOffsetsFile(meta, reports, a.cat.Static)); err != nil {
				return reports, err
			}
		}
		if err := report.WriteOffsets(ini, meta, reports, a.cat.Static); err != nil {
			return reports, fmt.Errorf("write %s: %w", ini, err)
		}
		a.log.Infoln("Results saved to", ini)
	}

	if constants := a.cfg.Output.Constants; constants != "" {
		if err := report.WriteConstants(constants, a.cfg.Output.Package, meta, reports, a.cat.Static); err != nil {
			return reports, fmt.Errorf("write %s: %w", constants, err)
		}
		a.log.Infoln("Constants generated:", constants)
	}

	return reports, nil
}

func dumpMatches(w io.Writer, r process.MemoryReader, reqs []scanner.Request, reports []scanner.Report, region process.ModuleRegion) {
	options := hexdump.DefaultOptions()
	options.Modules = []process.ModuleRegion{region}

	for i, rep := range reports {
		if !rep.Found {
			continue
		}
		c := reqs[i].Candidates[rep.Candidate]
		fmt.Fprintf(w, "%s: candidate %d %s, %s\n", rep.Target, rep.Candidate, c.Pattern, c.Spec)
		fmt.Fprint(w, hexdump.MatchSite(r, rep.Match, c.Pattern, c.Spec, 32, options))
		fmt.Fprintln(w)
	}
}

// printChanges compares against a previous results file. A missing file is
// not an error: there is nothing to compare with yet.
func printChanges(w io.Writer, prevPath string, cur *report.OffsetsFile) error {
	prev, err := report.ReadOffsets(prevPath)
	if errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(w, "no previous results at %s\n", prevPath)
		return nil
	}
	if err != nil {
		return err
	}

	changes := report.Compare(prev, cur)
	if len(changes) == 0 {
		fmt.Fprintln(w, "offsets unchanged since", prevPath)
		return nil
	}
	for _, c := range changes {
		fmt.Fprintf(w, "changed %s: %s -> %s\n", c.Target, orNone(c.Old), orNone(c.New))
	}
	return nil
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
