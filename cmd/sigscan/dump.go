package main

import (
	"fmt"

	"sigscan/process_blob"

	"github.com/spf13/cobra"
)

func newDumpCommand(cfgFile *string) *cobra.Command {
	var (
		target processFlags
		output string
	)

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Save the readable pages of a module for offline scanning",
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

			region, err := p.FindModule(a.moduleName())
			if err != nil {
				return fmt.Errorf("module %s: %w", a.moduleName(), err)
			}

			a.log.Infoln("Saving", region.String(), "to", output)
			n, err := process_blob.SaveModule(p, p.GetPID(), name, region, output)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "saved %d of %d bytes of %s\n", n, uint(region.Size), region.Name)
			return nil
		},
	}

	target.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "output directory")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}
