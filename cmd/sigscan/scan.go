package main

import (
	"errors"
	"fmt"

	"sigscan/process"
	"sigscan/report"

	"github.com/spf13/cobra"
)

type processFlags struct {
	pid  int
	name string
}

func (f *processFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&f.pid, "pid", "p", 0, "process ID")
	cmd.Flags().StringVarP(&f.name, "process", "n", "", "process name (lowest PID wins)")
	cmd.MarkFlagsMutuallyExclusive("pid", "process")
	cmd.MarkFlagsOneRequired("pid", "process")
}

// open attaches to the selected process and returns its display name.
func (f *processFlags) open() (process.Process, string, error) {
	pid := process.ProcessID(f.pid)
	name := f.name

	if f.name != "" {
		info, err := lookupProcess(f.name)
		if err != nil {
			return nil, "", err
		}
		pid, name = info.PID, info.Name
	}
	if pid <= 0 {
		return nil, "", errors.New("a positive --pid or a --process name is required")
	}

	p, err := attach(pid)
	if err != nil {
		return nil, "", err
	}
	return p, name, nil
}

func newScanCommand(cfgFile *string) *cobra.Command {
	var (
		target processFlags
		opts   scanOptions
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan a module of a running process",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, *cfgFile)
			if err != nil {
				return err
			}

			p, name, err := target.open()
			if err != nil {
				return err
			}
			defer p.Close()

			a.log.Infoln("Attached to process:", name, "PID:", p.GetPID())

			region, err := p.FindModule(a.moduleName())
			if err != nil {
				return fmt.Errorf("module %s: %w", a.moduleName(), err)
			}
			a.log.Infoln("Module:", region.String())

			_, err = a.scanModule(cmd.OutOrStdout(), p, region, report.Meta{Process: name, PID: p.GetPID()}, opts)
			return err
		},
	}

	target.register(cmd)
	cmd.Flags().BoolVar(&opts.dump, "dump", false, "print a hexdump around every match")
	cmd.Flags().StringVar(&opts.compare, "compare", "", "previous results file to diff against")

	return cmd
}
