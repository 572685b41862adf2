package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/onehud/registrar/internal/api"
	"github.com/onehud/registrar/internal/panel"
)

func newServeCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the registration panel on the local HTTP API",
		Long: `serve starts the local web panel and its HTTP API. Status changes are
pushed to the page over a websocket. The server listens on api.host and
api.port (loopback by default) until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			cfg, log, err := opts.loadConfig(true)
			if err != nil {
				return err
			}
			log.Info("starting OneHUD registrar",
				"version", version,
				"commit", commit,
				"build_date", date,
			)

			builtAt, err := panel.ParseBuildTime(date)
			if err != nil {
				log.Warn("ignoring build time", "error", err)
			}

			a, err := newApp(ctx, cfg, log, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			srv, err := api.New(api.Deps{
				Config:    cfg.API,
				WS:        cfg.WebSocket,
				Logger:    log,
				Registrar: a.controller,
				Receipts:  a.receiptStore(),
				Metrics:   a.metrics.Handler(),
				Page: panel.Handler(panel.Build{
					Version:  version,
					Time:     builtAt,
					Location: cfg.Location(),
				}),
				Checks:  a.checks,
				Version: version,
			})
			if err != nil {
				return fmt.Errorf("creating API server: %w", err)
			}
			if err := srv.Start(ctx); err != nil {
				return fmt.Errorf("starting API server: %w", err)
			}
			defer func() {
				if closeErr := srv.Close(); closeErr != nil {
					log.Error("error closing API server", "error", closeErr)
				}
			}()

			fmt.Fprintf(cmd.OutOrStdout(), "OneHUD registrar listening on http://%s\n", srv.Addr())
			log.Info("initialisation complete, waiting for shutdown signal")

			<-ctx.Done()

			log.Info("shutdown signal received, cleaning up")
			return nil
		},
	}
}
