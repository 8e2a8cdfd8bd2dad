package main

import (
	"errors"

	"sigscan/process"
	"sigscan/process_blob"
	"sigscan/report"

	"github.com/spf13/cobra"
)

func newImageCommand(cfgFile *string) *cobra.Command {
	var (
		file string
		dir  string
		base string
		opts scanOptions
	)

	cmd := &cobra.Command{
		Use:   "image",
		Short: "Scan a module image from disk or a saved module dump",
		Long: `Scan a module without a live process.

--file maps the raw bytes of a file at --base. --dir loads a dump written by
"sigscan dump", keeping its original addresses and unreadable holes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, *cfgFile)
			if err != nil {
				return err
			}

			var (
				blob   *process_blob.ProcessBlob
				region process.ModuleRegion
				meta   report.Meta
			)

			switch {
			case dir != "":
				blob, region, meta.Process, err = process_blob.LoadDump(dir)
			case file != "":
				addr, perr := parseAddress(base)
				if perr != nil {
					return perr
				}
				blob, region, err = process_blob.LoadImage(file, process.ProcessMemoryAddress(addr))
				meta.Process = region.Name
			default:
				return errors.New("one of --file or --dir is required")
			}
			if err != nil {
				return err
			}
			defer blob.Close()
			meta.PID = blob.GetPID()

			_, err = a.scanModule(cmd.OutOrStdout(), blob, region, meta, opts)
			return err
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "raw module image")
	cmd.Flags().StringVar(&dir, "dir", "", "module dump directory")
	cmd.Flags().StringVar(&base, "base", "0x0", "address the image is mapped at")
	cmd.MarkFlagsMutuallyExclusive("file", "dir")
	cmd.Flags().BoolVar(&opts.dump, "dump", false, "print a hexdump around every match")
	cmd.Flags().StringVar(&opts.compare, "compare", "", "previous results file to diff against")

	return cmd
}
