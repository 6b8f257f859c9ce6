package pipeline

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/rotisserie/eris"

	"posimport/internal"
	"posimport/internal/config"
	"posimport/internal/logging"
	"posimport/internal/phone"
	"posimport/internal/storage"
)

const (
	EmailStatusFetched   = "fetched"
	EmailStatusProcessed = "processed"
	EmailStatusSkipped   = "skipped"
	EmailStatusNoData    = "no_data"
	EmailStatusExported  = "exported"
)

type ProcessingService struct {
	db     *storage.DB
	store  RecordStore
	cfg    config.Config
	logger *slog.Logger
}

func NewProcessingService(db *storage.DB, store RecordStore, cfg config.Config, logger *slog.Logger) *ProcessingService {
	return &ProcessingService{db: db, store: store, cfg: cfg, logger: logging.OrDefault(logger)}
}

type ProcessResult struct {
	EmailID   int
	RunID     string
	Rows      int
	Issues    int
	Committed bool
	Summary   Summary
}

func (s *ProcessingService) ProcessByProviderMessageID(ctx context.Context, provider, messageID string) (ProcessResult, error) {
	email, err := s.db.MustEmailByProviderMessageID(provider, messageID)
	if err != nil {
		return ProcessResult{}, err
	}
	return s.ProcessEmail(ctx, email)
}

// ProcessPending processes up to limit fetched emails, optionally only from one provider.
func (s *ProcessingService) ProcessPending(ctx context.Context, limit int, provider string) ([]ProcessResult, error) {
	pending, err := s.db.ListEmailsByStatus(EmailStatusFetched, limit)
	if err != nil {
		return nil, err
	}
	results := []ProcessResult{}
	for _, email := range pending {
		if provider != "" && email.Provider != provider {
			continue
		}
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := s.ProcessEmail(ctx, email)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

func (s *ProcessingService) newSession() *Session {
	return NewSession(Options{
		Store:             s.store,
		Phone:             phone.NewE164(s.cfg.PhoneRegion),
		CommitRoles:       s.cfg.CommitRoles,
		UpdateOnly:        !s.cfg.CreateMissing(),
		IssuePreviewLimit: s.cfg.IssuePreviewLimit,
		Recorder:          s.db,
		Logger:            s.logger,
	})
}

func (s *ProcessingService) ProcessEmail(ctx context.Context, email internal.EmailRow) (ProcessResult, error) {
	raw, err := os.ReadFile(email.RawRef)
	if err != nil {
		return ProcessResult{}, eris.Wrapf(err, "read raw mail %s", email.RawRef)
	}

	mail, err := ReadMail(raw)
	if err != nil {
		return ProcessResult{}, err
	}

	detect := DetectImportRequest(firstNonEmpty(mail.Subject, email.Subject), mail.Text, mail.HTML, mail.AttachmentNames(), s.cfg.MailDetectThreshold)
	if !detect.IsImport {
		s.logger.Info("mail is not an import request", "email", email.ID, "score", detect.Score)
		return ProcessResult{EmailID: email.ID}, s.db.UpdateEmailStatus(email.ID, EmailStatusSkipped)
	}

	emailID := email.ID
	session := s.newSession()
	report, err := session.Upload(ctx, Upload{
		Name:    "message.eml",
		Data:    raw,
		Source:  "email:" + email.MessageID,
		EmailID: &emailID,
	})
	if eris.Is(err, ErrParse) {
		s.logger.Info("mail has no customer list", "email", email.ID, "err", err)
		return ProcessResult{EmailID: email.ID}, s.db.UpdateEmailStatus(email.ID, EmailStatusNoData)
	}
	if err != nil {
		return ProcessResult{}, err
	}

	res := ProcessResult{EmailID: email.ID, RunID: report.RunID, Rows: report.TotalRows, Issues: report.IssueCount()}
	if s.cfg.MailListenerAutoCommit {
		actor := internal.Actor{ID: "mail:" + email.Sender, Role: s.cfg.MailListenerActorRole}
		outcomes, err := session.Commit(ctx, actor, nil)
		if err != nil {
			return res, err
		}
		res.Committed = true
		res.Summary = Summarize(outcomes)
	}

	if err := s.db.UpdateEmailStatus(email.ID, EmailStatusProcessed); err != nil {
		return res, err
	}
	return res, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
