package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/onehud/registrar/internal/serialport"
)

// listPorts is replaced in tests.
var listPorts = serialport.ListPorts

func newPortsCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List serial ports, marking likely OneHUD boards",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, _, err := opts.loadConfig(false); err != nil {
				return err
			}

			ports, err := listPorts()
			if err != nil {
				return fmt.Errorf("listing serial ports: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(ports) == 0 {
				fmt.Fprintln(out, "no serial ports found")
				return nil
			}
			for _, p := range ports {
				mark := " "
				if p.Candidate {
					mark = "*"
				}
				fmt.Fprintf(out, "%s %s\n", mark, p)
			}
			return nil
		},
	}
}
