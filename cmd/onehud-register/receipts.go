package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/onehud/registrar/internal/infrastructure/database"
	"github.com/onehud/registrar/internal/ledger"
	"github.com/onehud/registrar/internal/notify"
)

func newReceiptsCmd(opts *globalOptions) *cobra.Command {
	var (
		filter ledger.Filter
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "receipts",
		Short: "List registrations delivered from this machine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			cfg, _, err := opts.loadConfig(false)
			if err != nil {
				return err
			}
			if !cfg.Database.Enabled {
				return errors.New("the ledger is disabled (database.enabled: false)")
			}

			db, err := database.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer db.Close() //nolint:errcheck // read-only use

			if err := db.Migrate(ctx); err != nil {
				return fmt.Errorf("running migrations: %w", err)
			}

			res, err := ledger.NewSQLiteRepository(db.DB).List(ctx, filter)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}

			loc := cfg.Location()
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tDEVICE\tEMAIL\tCHIP\tPORT")
			for _, r := range res.Receipts {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					r.CreatedAt.In(loc).Format(notify.TimeLayout), r.DeviceID, r.Email, dash(r.Chip), dash(r.Port))
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "%d of %d\n", len(res.Receipts), res.Total)
			return nil
		},
	}

	cmd.Flags().StringVar(&filter.DeviceID, "device", "", "only this MAC address")
	cmd.Flags().StringVar(&filter.Email, "email", "", "only this email address")
	cmd.Flags().IntVar(&filter.Limit, "limit", 50, "maximum receipts to show (max 200)")
	cmd.Flags().IntVar(&filter.Offset, "offset", 0, "receipts to skip")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")

	return cmd
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
