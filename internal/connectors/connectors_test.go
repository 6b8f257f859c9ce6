package connectors

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"posimport/internal"
	"posimport/internal/storage"
)

const rawMessage = "From: Shop Owner <owner@example.com>\r\n" +
	"To: import@example.com\r\n" +
	"Subject: Customer list for import\r\n" +
	"Message-ID: <abc123@example.com>\r\n" +
	"Date: Mon, 02 Mar 2026 09:30:00 +0300\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"See attached.\r\n"

type fakeConnector []internal.FetchedMailMessage

func (f fakeConnector) FetchInbox(context.Context, string, int) ([]internal.FetchedMailMessage, error) {
	return f, nil
}

func TestMessageFromRawReadsHeaders(t *testing.T) {
	msg := MessageFromRaw(ProviderIMAP, "imap-7", time.Time{}, []byte(rawMessage))
	assert.Equal(t, "abc123@example.com", msg.MessageID)
	assert.Equal(t, "Customer list for import", msg.Subject)
	assert.Contains(t, msg.From, "owner@example.com")
	assert.Equal(t, "2026-03-02T06:30:00Z", msg.ReceivedAt)
}

func TestMessageFromRawFallsBack(t *testing.T) {
	when := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)
	msg := MessageFromRaw(ProviderGmail, "gm-1", when, []byte("Subject: hi\r\n\r\nbody\r\n"))
	assert.Equal(t, "gm-1", msg.MessageID)
	assert.Equal(t, "2026-01-05T12:00:00Z", msg.ReceivedAt)
}

func TestFetchAndStoreIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	db, err := storage.Open(filepath.Join(dir, "app.db"))
	require.NoError(t, err)
	defer db.Close()

	msg := MessageFromRaw(ProviderIMAP, "imap-1", time.Time{}, []byte(rawMessage))
	svc := NewFetchService(db, filepath.Join(dir, "raw"), fakeConnector{msg}, nil)

	res, err := svc.FetchAndStore(context.Background(), "INBOX", 10)
	require.NoError(t, err)
	assert.Equal(t, FetchResult{Fetched: 1, Stored: 1}, res)

	row, err := db.MustEmailByProviderMessageID(ProviderIMAP, "abc123@example.com")
	require.NoError(t, err)
	require.NoError(t, db.UpdateEmailStatus(row.ID, "processed"))

	_, err = svc.FetchAndStore(context.Background(), "INBOX", 10)
	require.NoError(t, err)

	again, err := db.MustEmailByProviderMessageID(ProviderIMAP, "abc123@example.com")
	require.NoError(t, err)
	assert.Equal(t, row.ID, again.ID)
	assert.Equal(t, "processed", again.Status)

	blob, err := os.ReadFile(again.RawRef)
	require.NoError(t, err)
	assert.Equal(t, rawMessage, string(blob))
}
