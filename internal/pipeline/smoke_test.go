package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"posimport/internal/config"
	"posimport/internal/storage"
)

const sampleImportMail = `From: shop@example.com
To: import@example.com
Subject: Customer list
Message-ID: <fixture-1@example.com>
MIME-Version: 1.0
Content-Type: multipart/mixed; boundary="XYZ"

--XYZ
Content-Type: text/plain; charset=utf-8

Please import the attached customers.
--XYZ
Content-Type: text/csv; name="customers.csv"
Content-Disposition: attachment; filename="customers.csv"

Name,Phone,City
JOHN DOE,0712345678,dsm
Asha Juma,0755123456,moro
--XYZ--
`

func testConfig() config.Config {
	return config.Config{
		PhoneRegion:            "TZ",
		CommitRoles:            []string{"admin"},
		ImportMode:             config.ImportModeCreate,
		IssuePreviewLimit:      5,
		MailListenerAutoCommit: true,
		MailListenerActorRole:  "admin",
		MailDetectThreshold:    0.45,
	}
}

func TestSmokeEmailToStoreAndXLSX(t *testing.T) {
	ctx := context.Background()
	tmp := t.TempDir()
	db, err := storage.Open(filepath.Join(tmp, "app.db"))
	require.NoError(t, err)
	defer db.Close()

	rawPath := filepath.Join(tmp, "fixture.eml")
	require.NoError(t, os.WriteFile(rawPath, []byte(strings.ReplaceAll(sampleImportMail, "\n", "\r\n")), 0o644))

	email, err := db.UpsertEmail("imap", "<fixture-1@example.com>", "Customer list", "shop@example.com", "2026-02-08T00:00:00Z", "hash", rawPath, EmailStatusFetched)
	require.NoError(t, err)

	proc := NewProcessingService(db, db, testConfig(), nil)
	res, err := proc.ProcessEmail(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Rows)
	assert.True(t, res.Committed)
	assert.Equal(t, Summary{Created: 2}, res.Summary)

	customers, err := db.FetchAll(ctx)
	require.NoError(t, err)
	require.Len(t, customers, 2)
	assert.Equal(t, "John Doe", customers[0].Name)
	assert.Equal(t, "Dar es Salaam", customers[0].City)
	assert.Equal(t, "Morogoro", customers[1].City)

	stored, err := db.GetEmailByID(email.ID)
	require.NoError(t, err)
	assert.Equal(t, EmailStatusProcessed, stored.Status)

	run, err := db.GetRun(ctx, res.RunID)
	require.NoError(t, err)
	assert.Equal(t, 2, run.Created)
	require.NotNil(t, run.EmailID)
	assert.Equal(t, email.ID, *run.EmailID)

	rows, err := db.GetOutcomeRows(ctx, res.RunID)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	out := filepath.Join(tmp, "result.xlsx")
	require.NoError(t, ExportOutcomesToXLSX(rows, out))
	_, err = os.Stat(out)
	require.NoError(t, err)

	again, err := proc.ProcessEmail(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, Summary{Skipped: 2}, again.Summary)

	customers, err = db.FetchAll(ctx)
	require.NoError(t, err)
	assert.Len(t, customers, 2)
}

func TestProcessSkipsNonImportMail(t *testing.T) {
	ctx := context.Background()
	tmp := t.TempDir()
	db, err := storage.Open(filepath.Join(tmp, "app.db"))
	require.NoError(t, err)
	defer db.Close()

	rawPath := filepath.Join(tmp, "lunch.eml")
	raw := "From: a@example.com\r\nSubject: Lunch\r\nContent-Type: text/plain\r\n\r\nSee you at noon.\r\n"
	require.NoError(t, os.WriteFile(rawPath, []byte(raw), 0o644))

	email, err := db.UpsertEmail("imap", "<lunch@example.com>", "Lunch", "a@example.com", "", "hash", rawPath, EmailStatusFetched)
	require.NoError(t, err)

	proc := NewProcessingService(db, db, testConfig(), nil)
	results, err := proc.ProcessPending(ctx, 10, "")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, email.ID, results[0].EmailID)
	assert.Zero(t, results[0].Rows)
	assert.Empty(t, results[0].RunID)

	stored, err := db.GetEmailByID(email.ID)
	require.NoError(t, err)
	assert.Equal(t, EmailStatusSkipped, stored.Status)
}
