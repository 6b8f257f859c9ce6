package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"posimport/internal/config"
	"posimport/internal/customers"
	"posimport/internal/logging"
	"posimport/internal/phone"
	"posimport/internal/pipeline"
	"posimport/internal/storage"
)

type app struct {
	cfg    config.Config
	logger *slog.Logger
	db     *storage.DB
	store  pipeline.RecordStore
}

func openApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := logging.New(cfg.LogLevel)

	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, db: db, store: db}
	if cfg.StoreBackend == config.StoreREST {
		a.store = customers.NewClient(cfg, logger)
	}
	return a, nil
}

func (a *app) Close() error {
	return a.db.Close()
}

func (a *app) newSession() *pipeline.Session {
	return pipeline.NewSession(pipeline.Options{
		Store:             a.store,
		Phone:             phone.NewE164(a.cfg.PhoneRegion),
		CommitRoles:       a.cfg.CommitRoles,
		UpdateOnly:        !a.cfg.CreateMissing(),
		IssuePreviewLimit: a.cfg.IssuePreviewLimit,
		Recorder:          a.db,
		Logger:            a.logger,
	})
}

// withApp opens the config, database and store for the duration of one command.
func withApp(run func(cmd *cobra.Command, a *app) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		return run(cmd, a)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "posimport",
		Short:         "Import customer lists into the POS customer store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newImportPreviewCmd(),
		newImportCommitCmd(),
		newTemplateCmd(),
		newCustomersSyncCmd(),
		newCustomersExportCmd(),
		newRunsExportCmd(),
		newMailFetchCmd(),
		newMailProcessCmd(),
		newMailListenCmd(),
	)
	return root
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
