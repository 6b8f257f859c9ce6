package connectors

import (
	"context"
	"log/slog"

	"github.com/rotisserie/eris"

	"posimport/internal/logging"
)

type FetchService struct {
	connector MailConnector
	store     *MailStoreService
	logger    *slog.Logger
}

type FetchResult struct {
	Fetched int
	Stored  int
}

func NewFetchService(db EmailStore, rawMailDir string, connector MailConnector, logger *slog.Logger) *FetchService {
	return &FetchService{
		connector: connector,
		store:     NewMailStoreService(db, rawMailDir),
		logger:    logging.OrDefault(logger),
	}
}

func (s *FetchService) FetchAndStore(ctx context.Context, label string, max int) (FetchResult, error) {
	messages, err := s.connector.FetchInbox(ctx, label, max)
	if err != nil {
		return FetchResult{}, eris.Wrapf(err, "fetch %s", label)
	}

	res := FetchResult{Fetched: len(messages)}
	for _, msg := range messages {
		row, err := s.store.Store(msg)
		if err != nil {
			return res, err
		}
		res.Stored++
		s.logger.Debug("stored mail", "email", row.ID, "provider", row.Provider, "status", row.Status)
	}
	return res, nil
}
