package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"posimport/internal/config"
	"posimport/internal/customers"
	"posimport/internal/listener"
	"posimport/internal/logging"
	"posimport/internal/pipeline"
	"posimport/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)
	logger := logging.New(cfg.LogLevel)

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	var store pipeline.RecordStore = db
	if cfg.StoreBackend == config.StoreREST {
		store = customers.NewClient(cfg, logger)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info("import listener started", "provider", cfg.MailListenerProvider, "interval_sec", cfg.MailListenerIntervalSec)
	must(listener.NewService(db, store, cfg, logger).Run(ctx))
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
