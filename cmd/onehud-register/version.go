package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/onehud/registrar/internal/esptool"
	"github.com/onehud/registrar/internal/panel"
	"github.com/onehud/registrar/internal/process"
)

// esptoolVersion is replaced in tests.
var esptoolVersion = func(ctx context.Context, binary string) (string, error) {
	path, err := esptool.Locate(binary)
	if err != nil {
		return "", err
	}
	return esptool.Version(ctx, process.NewExec(), path)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "onehud-register %s (commit %s)\n", version, commit)

			if built, err := panel.ParseBuildTime(date); err == nil && !built.IsZero() {
				fmt.Fprintf(out, "built:   %s\n", panel.FormatBuildTime(built, time.UTC))
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			v, err := esptoolVersion(ctx, esptool.DefaultBinary)
			if err != nil {
				v = "not found"
			}
			fmt.Fprintf(out, "esptool: %s\n", v)
			return nil
		},
	}
}
