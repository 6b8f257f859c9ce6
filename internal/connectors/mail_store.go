package connectors

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"posimport/internal"
)

const statusFetched = "fetched"

// EmailStore records fetched messages. storage.DB satisfies it.
type EmailStore interface {
	UpsertEmail(provider, messageID, subject, sender, receivedAt, hash, rawRef, status string) (internal.EmailRow, error)
}

type MailStoreService struct {
	db         EmailStore
	rawMailDir string
}

func NewMailStoreService(db EmailStore, rawMailDir string) *MailStoreService {
	return &MailStoreService{db: db, rawMailDir: rawMailDir}
}

// Store writes the raw message under its content hash and upserts the email row.
// A message seen before keeps its processing status.
func (s *MailStoreService) Store(msg internal.FetchedMailMessage) (internal.EmailRow, error) {
	sum := sha256.Sum256(msg.Raw)
	hash := hex.EncodeToString(sum[:])

	if err := os.MkdirAll(s.rawMailDir, 0o755); err != nil {
		return internal.EmailRow{}, eris.Wrapf(err, "create raw mail dir %s", s.rawMailDir)
	}

	rawPath := filepath.Join(s.rawMailDir, hash+".eml")
	if _, err := os.Stat(rawPath); os.IsNotExist(err) {
		if err := os.WriteFile(rawPath, msg.Raw, 0o644); err != nil {
			return internal.EmailRow{}, eris.Wrapf(err, "write %s", rawPath)
		}
	}

	return s.db.UpsertEmail(msg.Provider, msg.MessageID, msg.Subject, msg.From, msg.ReceivedAt, hash, rawPath, statusFetched)
}
