package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/onehud/registrar/internal/registration"
	"github.com/onehud/registrar/internal/serialport"
)

func newRegisterCmd(opts *globalOptions) *cobra.Command {
	var email, port string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Read the attached device's MAC and register it",
		Long: `register reads the MAC address of the board on the serial port and sends
it with the given email to the support channel.

When --port is empty and several serial ports are attached, the port is
asked for on the terminal.`,
		Example: `  onehud-register register --email owner@example.com
  onehud-register register --email owner@example.com --port /dev/ttyUSB0`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			cfg, log, err := opts.loadConfig(true)
			if err != nil {
				return err
			}

			prompter := serialport.LinePrompter{In: cmd.InOrStdin(), Out: cmd.ErrOrStderr()}
			a, err := newApp(ctx, cfg, log, prompter)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			var last string
			unsubscribe := a.controller.OnStatus(func(s registration.Status, _ registration.State) {
				// failed and idle carry the same message
				if s.Message == last {
					return
				}
				last = s.Message
				fmt.Fprintln(out, s.Message)
			})
			defer unsubscribe()

			if err := a.controller.Submit(registration.WithPort(ctx, port), email); err != nil {
				return fmt.Errorf("registration failed: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&email, "email", "e", "", "owner's email address")
	cmd.Flags().StringVarP(&port, "port", "p", "", "serial port (overrides device.port)")
	must(cmd.MarkFlagRequired("email"))

	return cmd
}
