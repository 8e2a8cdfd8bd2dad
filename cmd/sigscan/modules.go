package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newModulesCommand() *cobra.Command {
	var target processFlags

	cmd := &cobra.Command{
		Use:   "modules",
		Short: "List the modules loaded in a process",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, name, err := target.open()
			if err != nil {
				return err
			}
			defer p.Close()

			modules, err := p.Modules()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "# %s (PID %d)\n", name, p.GetPID())
			for _, m := range modules {
				fmt.Fprintf(w, "%s\t%s\t0x%X\n", m.Name, m.Base.ToString(), uint(m.Size))
			}
			return w.Flush()
		},
	}

	target.register(cmd)

	return cmd
}
