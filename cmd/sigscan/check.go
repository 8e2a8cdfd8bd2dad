package main

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"

	"sigscan/catalog"
	"sigscan/scanner"

	"github.com/spf13/cobra"
)

func newCheckCommand(cfgFile *string) *cobra.Command {
	var writeDefault string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Compile every catalog pattern without touching a process",
		RunE: func(cmd *cobra.Command, args []string) error {
			if writeDefault != "" {
				if err := os.WriteFile(writeDefault, catalog.DefaultBytes(), 0o644); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "default catalog written to", writeDefault)
				return nil
			}

			a, err := newApp(cmd, *cfgFile)
			if err != nil {
				return err
			}
			return checkCatalog(cmd, a.cat, a.cfg.PointerWidth)
		},
	}

	cmd.Flags().StringVar(&writeDefault, "write-default", "", "write the built-in catalog to this file and exit")

	return cmd
}

func checkCatalog(cmd *cobra.Command, cat *catalog.Catalog, pointerWidth int) error {
	w := cmd.OutOrStdout()
	reqs, err := cat.Requests(pointerWidth)

	var rejected map[string]*scanner.RequestError
	if err != nil {
		rejected = map[string]*scanner.RequestError{}
		for _, e := range unwrapAll(err) {
			var reqErr *scanner.RequestError
			if errors.As(e, &reqErr) {
				rejected[reqErr.Target] = reqErr
			}
		}
	}

	for i, req := range reqs {
		fmt.Fprintf(w, "%s: %d/%d candidates compiled\n", req.Target, len(req.Candidates), len(cat.Targets[i].Candidates))
		if reqErr, ok := rejected[req.Target]; ok {
			for _, idx := range slices.Sorted(maps.Keys(reqErr.Errs)) {
				fmt.Fprintf(w, "  candidate %d: %v\n", idx, reqErr.Errs[idx])
			}
		}
		for j, c := range req.Candidates {
			if verr := c.Spec.Validate(); verr != nil {
				fmt.Fprintf(w, "  %s: %v\n", c.Pattern, verr)
				if err == nil {
					err = fmt.Errorf("%s candidate %d: %w", req.Target, j, verr)
				}
			}
		}
	}

	return err
}

func unwrapAll(err error) []error {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}
	return []error{err}
}
