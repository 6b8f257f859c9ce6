package customers

import (
	"context"
	"log/slog"
	"time"

	"posimport/internal"
	"posimport/internal/logging"
)

const LastSyncKey = "customers.last_sync"

// Source is the remote side of a mirror sync.
type Source interface {
	FetchAll(ctx context.Context) ([]internal.Customer, error)
}

// Mirror is the local side of a mirror sync.
type Mirror interface {
	UpsertCustomers(ctx context.Context, customers []internal.Customer) error
	SetMetadata(key, value string) error
	GetMetadata(key string) (*string, error)
}

type SyncService struct {
	source Source
	mirror Mirror
	logger *slog.Logger
	now    func() time.Time
}

func NewSyncService(source Source, mirror Mirror, logger *slog.Logger) *SyncService {
	return &SyncService{source: source, mirror: mirror, logger: logging.OrDefault(logger), now: time.Now}
}

// Sync copies every remote customer into the local mirror and stamps the sync time.
func (s *SyncService) Sync(ctx context.Context) (int, error) {
	remote, err := s.source.FetchAll(ctx)
	if err != nil {
		return 0, err
	}
	if len(remote) > 0 {
		if err := s.mirror.UpsertCustomers(ctx, remote); err != nil {
			return 0, err
		}
	}
	if err := s.mirror.SetMetadata(LastSyncKey, s.now().UTC().Format(time.RFC3339)); err != nil {
		return len(remote), err
	}
	s.logger.Info("customer mirror synced", "count", len(remote))
	return len(remote), nil
}

// LastSync reports when Sync last completed, or the zero time when it never ran.
func (s *SyncService) LastSync() (time.Time, error) {
	value, err := s.mirror.GetMetadata(LastSyncKey)
	if err != nil || value == nil {
		return time.Time{}, err
	}
	parsed, err := time.Parse(time.RFC3339, *value)
	if err != nil {
		return time.Time{}, nil
	}
	return parsed, nil
}
