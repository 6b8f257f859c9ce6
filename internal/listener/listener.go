package listener

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"posimport/internal/config"
	"posimport/internal/connectors"
	gmailconnector "posimport/internal/connectors/gmail"
	imapconnector "posimport/internal/connectors/imap"
	"posimport/internal/logging"
	"posimport/internal/pipeline"
	"posimport/internal/storage"
)

type ConnectorFactory func(ctx context.Context, provider string) (connectors.MailConnector, error)

type Service struct {
	db           *storage.DB
	store        pipeline.RecordStore
	cfg          config.Config
	logger       *slog.Logger
	newConnector ConnectorFactory
}

func NewService(db *storage.DB, store pipeline.RecordStore, cfg config.Config, logger *slog.Logger) *Service {
	s := &Service{db: db, store: store, cfg: cfg, logger: logging.OrDefault(logger)}
	s.newConnector = s.makeConnector
	return s
}

// WithConnectorFactory replaces how the mail connector is built for each cycle.
func (s *Service) WithConnectorFactory(f ConnectorFactory) *Service {
	s.newConnector = f
	return s
}

type CycleResult struct {
	Fetched   int
	Stored    int
	Processed int
	Committed int
	Exported  []string
}

// Run repeats the fetch/process/export cycle until ctx is cancelled. Cycle errors are
// logged and the loop keeps going.
func (s *Service) Run(ctx context.Context) error {
	interval := time.Duration(s.cfg.MailListenerIntervalSec) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	for {
		if _, err := s.RunCycle(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("listener cycle failed", "err", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}

func (s *Service) RunCycle(ctx context.Context) (CycleResult, error) {
	provider := strings.ToLower(strings.TrimSpace(s.cfg.MailListenerProvider))
	mailConnector, err := s.newConnector(ctx, provider)
	if err != nil {
		return CycleResult{}, err
	}

	fetched, err := connectors.NewFetchService(s.db, s.cfg.RawMailDir, mailConnector, s.logger).
		FetchAndStore(ctx, s.cfg.MailListenerLabel, s.cfg.MailListenerFetchMax)
	if err != nil {
		return CycleResult{}, err
	}
	res := CycleResult{Fetched: fetched.Fetched, Stored: fetched.Stored}

	processor := pipeline.NewProcessingService(s.db, s.store, s.cfg, s.logger)
	results, err := processor.ProcessPending(ctx, s.cfg.MailListenerProcessBatch, provider)
	res.Processed = len(results)
	for _, r := range results {
		if !r.Committed {
			continue
		}
		res.Committed++
		if !s.cfg.MailListenerAutoExport {
			continue
		}
		path, exportErr := s.exportRun(ctx, r)
		if exportErr != nil {
			return res, exportErr
		}
		res.Exported = append(res.Exported, path)
	}
	if err != nil {
		return res, err
	}

	s.logger.Info("listener cycle done",
		"provider", provider,
		"fetched", res.Fetched,
		"stored", res.Stored,
		"processed", res.Processed,
		"committed", res.Committed,
		"exported", len(res.Exported),
	)
	return res, nil
}

func (s *Service) exportRun(ctx context.Context, r pipeline.ProcessResult) (string, error) {
	rows, err := s.db.GetOutcomeRows(ctx, r.RunID)
	if err != nil {
		return "", err
	}
	email, err := s.db.GetEmailByID(r.EmailID)
	if err != nil {
		return "", err
	}
	messageID := r.RunID
	if email != nil {
		messageID = email.MessageID
	}

	filename := fmt.Sprintf("%d_%s.xlsx", r.EmailID, sanitizeMessageID(messageID))
	outputPath := filepath.Join(s.cfg.OutputDir, "listener", filename)
	if err := pipeline.ExportOutcomesToXLSX(rows, outputPath); err != nil {
		return "", err
	}
	if err := s.db.UpdateEmailStatus(r.EmailID, pipeline.EmailStatusExported); err != nil {
		return "", err
	}
	return outputPath, nil
}

func (s *Service) makeConnector(ctx context.Context, provider string) (connectors.MailConnector, error) {
	return NewConnector(ctx, s.cfg, provider)
}

func NewConnector(ctx context.Context, cfg config.Config, provider string) (connectors.MailConnector, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case connectors.ProviderGmail:
		return gmailconnector.NewConnector(ctx, cfg)
	case connectors.ProviderIMAP:
		return imapconnector.NewConnector(cfg)
	default:
		return nil, eris.Errorf("unsupported mail provider: %s", provider)
	}
}

func sanitizeMessageID(input string) string {
	repl := strings.NewReplacer("<", "", ">", "", ":", "_", "/", "_", "\\", "_", "|", "_", "?", "_", "*", "_", " ", "_", "@", "_at_")
	out := repl.Replace(input)
	if len(out) > 120 {
		out = out[:120]
	}
	return out
}
