package main

import (
	"fmt"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"posimport/internal/config"
	"posimport/internal/customers"
	"posimport/internal/pipeline"
)

func newCustomersSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "customers:sync",
		Short: "Mirror the hosted customer table into the local database",
		RunE: withApp(func(cmd *cobra.Command, a *app) error {
			if a.cfg.StoreBackend != config.StoreREST {
				return eris.New("customers:sync needs STORE_BACKEND=rest")
			}
			client := customers.NewClient(a.cfg, a.logger)
			n, err := customers.NewSyncService(client, a.db, a.logger).Sync(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "synced %d customers\n", n)
			return nil
		}),
	}
}

func newCustomersExportCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "customers:export",
		Short: "Export every customer from the active store to XLSX",
		RunE: withApp(func(cmd *cobra.Command, a *app) error {
			list, err := a.store.FetchAll(cmd.Context())
			if err != nil {
				return err
			}
			if out == "" {
				out = filepath.Join(a.cfg.OutputDir, "customers.xlsx")
			}
			if err := pipeline.ExportCustomersToXLSX(list, out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d customers to %s\n", len(list), out)
			return nil
		}),
	}
	cmd.Flags().StringVar(&out, "out", "", "output xlsx path (default OUTPUT_DIR/customers.xlsx)")
	return cmd
}
