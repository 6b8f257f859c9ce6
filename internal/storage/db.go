package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pocketbase/dbx"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"posimport/internal"
)

var ErrNotFound = eris.New("record not found")

type DB struct {
	db *dbx.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, eris.Wrapf(err, "create db dir for %s", path)
	}

	conn, err := dbx.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "open sqlite")
	}

	if _, err := conn.NewQuery(`PRAGMA journal_mode = WAL;`).Execute(); err != nil {
		_ = conn.Close()
		return nil, eris.Wrap(err, "enable wal")
	}

	db := &DB{db: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS customers (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  phone TEXT NOT NULL DEFAULT '',
  email TEXT NOT NULL DEFAULT '',
  whatsapp TEXT NOT NULL DEFAULT '',
  gender TEXT NOT NULL DEFAULT '',
  city TEXT NOT NULL DEFAULT '',
  birth_month TEXT NOT NULL DEFAULT '',
  birth_day TEXT NOT NULL DEFAULT '',
  referral_source TEXT NOT NULL DEFAULT '',
  location_description TEXT NOT NULL DEFAULT '',
  national_id TEXT NOT NULL DEFAULT '',
  referred_by TEXT NOT NULL DEFAULT '',
  color_tag TEXT NOT NULL DEFAULT 'new',
  notes_json TEXT NOT NULL DEFAULT '[]',
  points REAL NOT NULL DEFAULT 0,
  total_spent REAL NOT NULL DEFAULT 0,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_customers_phone ON customers(phone);
CREATE INDEX IF NOT EXISTS idx_customers_email ON customers(email);

CREATE TABLE IF NOT EXISTS emails (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  provider TEXT NOT NULL,
  message_id TEXT NOT NULL,
  subject TEXT NOT NULL DEFAULT '',
  sender TEXT NOT NULL DEFAULT '',
  received_at TEXT NOT NULL DEFAULT '',
  hash TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'fetched',
  raw_ref TEXT NOT NULL,
  created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(provider, message_id)
);

CREATE TABLE IF NOT EXISTS import_runs (
  id TEXT PRIMARY KEY,
  email_id INTEGER,
  source TEXT NOT NULL,
  actor_id TEXT NOT NULL DEFAULT '',
  actor_role TEXT NOT NULL DEFAULT '',
  total_rows INTEGER NOT NULL DEFAULT 0,
  detected_fields INTEGER NOT NULL DEFAULT 0,
  issue_count INTEGER NOT NULL DEFAULT 0,
  duplicate_count INTEGER NOT NULL DEFAULT 0,
  created INTEGER NOT NULL DEFAULT 0,
  updated INTEGER NOT NULL DEFAULT 0,
  skipped INTEGER NOT NULL DEFAULT 0,
  failed INTEGER NOT NULL DEFAULT 0,
  created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(email_id) REFERENCES emails(id)
);

CREATE TABLE IF NOT EXISTS import_outcomes (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  run_id TEXT NOT NULL,
  row_number INTEGER NOT NULL,
  action TEXT NOT NULL,
  success INTEGER NOT NULL,
  skipped INTEGER NOT NULL,
  reason TEXT NOT NULL DEFAULT '',
  error TEXT NOT NULL DEFAULT '',
  record_ref TEXT NOT NULL DEFAULT '',
  UNIQUE(run_id, row_number),
  FOREIGN KEY(run_id) REFERENCES import_runs(id)
);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	if _, err := d.db.NewQuery(schema).Execute(); err != nil {
		return eris.Wrap(err, "init schema")
	}
	return nil
}

type customerRow struct {
	ID                  string  `db:"id"`
	Name                string  `db:"name"`
	Phone               string  `db:"phone"`
	Email               string  `db:"email"`
	WhatsApp            string  `db:"whatsapp"`
	Gender              string  `db:"gender"`
	City                string  `db:"city"`
	BirthMonth          string  `db:"birth_month"`
	BirthDay            string  `db:"birth_day"`
	ReferralSource      string  `db:"referral_source"`
	LocationDescription string  `db:"location_description"`
	NationalID          string  `db:"national_id"`
	ReferredBy          string  `db:"referred_by"`
	ColorTag            string  `db:"color_tag"`
	NotesJSON           string  `db:"notes_json"`
	Points              float64 `db:"points"`
	TotalSpent          float64 `db:"total_spent"`
	IsActive            bool    `db:"is_active"`
	CreatedAt           string  `db:"created_at"`
}

var customerColumns = []string{
	"id", "name", "phone", "email", "whatsapp", "gender", "city", "birth_month", "birth_day",
	"referral_source", "location_description", "national_id", "referred_by", "color_tag",
	"notes_json", "points", "total_spent", "is_active", "created_at",
}

func (r customerRow) toCustomer() internal.Customer {
	c := internal.Customer{
		ID:                  r.ID,
		Name:                r.Name,
		Phone:               r.Phone,
		Email:               r.Email,
		WhatsApp:            r.WhatsApp,
		Gender:              r.Gender,
		City:                r.City,
		BirthMonth:          r.BirthMonth,
		BirthDay:            r.BirthDay,
		ReferralSource:      r.ReferralSource,
		LocationDescription: r.LocationDescription,
		NationalID:          r.NationalID,
		ReferredBy:          r.ReferredBy,
		ColorTag:            r.ColorTag,
		Points:              r.Points,
		TotalSpent:          r.TotalSpent,
		IsActive:            r.IsActive,
		CreatedAt:           r.CreatedAt,
	}
	_ = json.Unmarshal([]byte(r.NotesJSON), &c.Notes)
	if c.Notes == nil {
		c.Notes = []string{}
	}
	return c
}

func customerParams(c internal.Customer) dbx.Params {
	notes := c.Notes
	if notes == nil {
		notes = []string{}
	}
	notesJSON, _ := json.Marshal(notes)
	colorTag := c.ColorTag
	if colorTag == "" {
		colorTag = string(internal.ColorTagNew)
	}
	return dbx.Params{
		"id":                   c.ID,
		"name":                 c.Name,
		"phone":                c.Phone,
		"email":                c.Email,
		"whatsapp":             c.WhatsApp,
		"gender":               c.Gender,
		"city":                 c.City,
		"birth_month":          c.BirthMonth,
		"birth_day":            c.BirthDay,
		"referral_source":      c.ReferralSource,
		"location_description": c.LocationDescription,
		"national_id":          c.NationalID,
		"referred_by":          c.ReferredBy,
		"color_tag":            colorTag,
		"notes_json":           string(notesJSON),
		"points":               c.Points,
		"total_spent":          c.TotalSpent,
		"is_active":            c.IsActive,
		"created_at":           c.CreatedAt,
	}
}

func (d *DB) FetchAll(ctx context.Context) ([]internal.Customer, error) {
	var rows []customerRow
	err := d.db.Select(customerColumns...).
		From("customers").
		OrderBy("rowid ASC").
		WithContext(ctx).
		All(&rows)
	if err != nil {
		return nil, eris.Wrap(err, "list customers")
	}

	out := make([]internal.Customer, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toCustomer())
	}
	return out, nil
}

func (d *DB) GetCustomer(ctx context.Context, id string) (internal.Customer, error) {
	var row customerRow
	err := d.db.Select(customerColumns...).
		From("customers").
		Where(dbx.HashExp{"id": id}).
		WithContext(ctx).
		One(&row)
	if eris.Is(err, sql.ErrNoRows) {
		return internal.Customer{}, eris.Wrapf(ErrNotFound, "customer %s", id)
	}
	if err != nil {
		return internal.Customer{}, eris.Wrapf(err, "get customer %s", id)
	}
	return row.toCustomer(), nil
}

func (d *DB) Create(ctx context.Context, c internal.Customer) (internal.Customer, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt == "" {
		c.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	c.IsActive = true

	if _, err := d.db.Insert("customers", customerParams(c)).WithContext(ctx).Execute(); err != nil {
		return internal.Customer{}, eris.Wrapf(err, "insert customer %s", c.Name)
	}
	return d.GetCustomer(ctx, c.ID)
}

func (d *DB) Update(ctx context.Context, id string, patch internal.CustomerPatch) (internal.Customer, error) {
	params := patchParams(patch)
	if len(params) == 0 {
		return d.GetCustomer(ctx, id)
	}
	params["updated_at"] = dbx.NewExp("CURRENT_TIMESTAMP")

	result, err := d.db.Update("customers", params, dbx.HashExp{"id": id}).WithContext(ctx).Execute()
	if err != nil {
		return internal.Customer{}, eris.Wrapf(err, "update customer %s", id)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return internal.Customer{}, eris.Wrapf(ErrNotFound, "customer %s", id)
	}
	return d.GetCustomer(ctx, id)
}

func patchParams(p internal.CustomerPatch) dbx.Params {
	params := dbx.Params{}
	set := func(col string, v *string) {
		if v != nil {
			params[col] = *v
		}
	}
	set("email", p.Email)
	set("whatsapp", p.WhatsApp)
	set("gender", p.Gender)
	set("city", p.City)
	set("birth_month", p.BirthMonth)
	set("birth_day", p.BirthDay)
	set("referral_source", p.ReferralSource)
	set("location_description", p.LocationDescription)
	set("national_id", p.NationalID)
	set("referred_by", p.ReferredBy)
	return params
}

// UpsertCustomers mirrors remote customers into the local table keyed by id.
func (d *DB) UpsertCustomers(ctx context.Context, customers []internal.Customer) error {
	cols := make([]string, 0, len(customerColumns))
	placeholders := make([]string, 0, len(customerColumns))
	updates := make([]string, 0, len(customerColumns))
	for _, col := range customerColumns {
		cols = append(cols, col)
		placeholders = append(placeholders, "{:"+col+"}")
		if col != "id" {
			updates = append(updates, col+"=excluded."+col)
		}
	}
	stmt := `INSERT INTO customers (` + strings.Join(cols, ", ") + `) VALUES (` + strings.Join(placeholders, ", ") + `)
ON CONFLICT(id) DO UPDATE SET ` + strings.Join(updates, ", ") + `, updated_at=CURRENT_TIMESTAMP`

	return d.db.TransactionalContext(ctx, nil, func(tx *dbx.Tx) error {
		for _, c := range customers {
			if c.CreatedAt == "" {
				c.CreatedAt = time.Now().UTC().Format(time.RFC3339)
			}
			if _, err := tx.NewQuery(stmt).Bind(customerParams(c)).WithContext(ctx).Execute(); err != nil {
				return eris.Wrapf(err, "upsert customer %s", c.ID)
			}
		}
		return nil
	})
}

func (d *DB) CountCustomers(ctx context.Context) (int, error) {
	var count int
	err := d.db.Select("COUNT(*)").From("customers").WithContext(ctx).Row(&count)
	if err != nil {
		return 0, eris.Wrap(err, "count customers")
	}
	return count, nil
}

type emailRow struct {
	ID         int    `db:"id"`
	Provider   string `db:"provider"`
	MessageID  string `db:"message_id"`
	Subject    string `db:"subject"`
	Sender     string `db:"sender"`
	ReceivedAt string `db:"received_at"`
	Hash       string `db:"hash"`
	Status     string `db:"status"`
	RawRef     string `db:"raw_ref"`
}

var emailColumns = []string{"id", "provider", "message_id", "subject", "sender", "received_at", "hash", "status", "raw_ref"}

func (r emailRow) toEmail() internal.EmailRow {
	return internal.EmailRow{
		ID:         r.ID,
		Provider:   r.Provider,
		MessageID:  r.MessageID,
		Subject:    r.Subject,
		Sender:     r.Sender,
		ReceivedAt: r.ReceivedAt,
		Hash:       r.Hash,
		Status:     r.Status,
		RawRef:     r.RawRef,
	}
}

func (d *DB) UpsertEmail(provider, messageID, subject, sender, receivedAt, hash, rawRef, status string) (internal.EmailRow, error) {
	_, err := d.db.NewQuery(`
INSERT INTO emails (provider, message_id, subject, sender, received_at, hash, status, raw_ref)
VALUES ({:provider}, {:message_id}, {:subject}, {:sender}, {:received_at}, {:hash}, {:status}, {:raw_ref})
ON CONFLICT(provider, message_id) DO UPDATE SET
  subject=excluded.subject,
  sender=excluded.sender,
  received_at=excluded.received_at,
  hash=excluded.hash,
  raw_ref=excluded.raw_ref,
  updated_at=CURRENT_TIMESTAMP
`).Bind(dbx.Params{
		"provider":    provider,
		"message_id":  messageID,
		"subject":     subject,
		"sender":      sender,
		"received_at": receivedAt,
		"hash":        hash,
		"status":      status,
		"raw_ref":     rawRef,
	}).Execute()
	if err != nil {
		return internal.EmailRow{}, eris.Wrap(err, "upsert email")
	}

	return d.MustEmailByProviderMessageID(provider, messageID)
}

func (d *DB) findEmail(where dbx.Expression) (*internal.EmailRow, error) {
	var row emailRow
	err := d.db.Select(emailColumns...).From("emails").Where(where).One(&row)
	if eris.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "get email")
	}
	email := row.toEmail()
	return &email, nil
}

func (d *DB) GetEmailByProviderMessageID(provider, messageID string) (*internal.EmailRow, error) {
	return d.findEmail(dbx.HashExp{"provider": provider, "message_id": messageID})
}

func (d *DB) GetEmailByID(id int) (*internal.EmailRow, error) {
	return d.findEmail(dbx.HashExp{"id": id})
}

func (d *DB) MustEmailByProviderMessageID(provider, messageID string) (internal.EmailRow, error) {
	row, err := d.GetEmailByProviderMessageID(provider, messageID)
	if err != nil {
		return internal.EmailRow{}, err
	}
	if row == nil {
		return internal.EmailRow{}, eris.Wrapf(ErrNotFound, "email provider=%s messageId=%s", provider, messageID)
	}
	return *row, nil
}

func (d *DB) ListEmailsByStatus(status string, limit int) ([]internal.EmailRow, error) {
	var rows []emailRow
	err := d.db.Select(emailColumns...).
		From("emails").
		Where(dbx.HashExp{"status": status}).
		OrderBy("received_at ASC", "id ASC").
		Limit(int64(limit)).
		All(&rows)
	if err != nil {
		return nil, eris.Wrap(err, "list emails")
	}

	out := make([]internal.EmailRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toEmail())
	}
	return out, nil
}

func (d *DB) UpdateEmailStatus(emailID int, status string) error {
	_, err := d.db.Update("emails", dbx.Params{
		"status":     status,
		"updated_at": dbx.NewExp("CURRENT_TIMESTAMP"),
	}, dbx.HashExp{"id": emailID}).Execute()
	if err != nil {
		return eris.Wrapf(err, "update email %d status", emailID)
	}
	return nil
}

type runRow struct {
	ID             string `db:"id"`
	EmailID        *int   `db:"email_id"`
	Source         string `db:"source"`
	ActorID        string `db:"actor_id"`
	ActorRole      string `db:"actor_role"`
	TotalRows      int    `db:"total_rows"`
	DetectedFields int    `db:"detected_fields"`
	IssueCount     int    `db:"issue_count"`
	DuplicateCount int    `db:"duplicate_count"`
	Created        int    `db:"created"`
	Updated        int    `db:"updated"`
	Skipped        int    `db:"skipped"`
	Failed         int    `db:"failed"`
	CreatedAt      string `db:"created_at"`
}

var runColumns = []string{
	"id", "email_id", "source", "actor_id", "actor_role", "total_rows", "detected_fields",
	"issue_count", "duplicate_count", "created", "updated", "skipped", "failed", "created_at",
}

func (r runRow) toRun() internal.ImportRunRow {
	return internal.ImportRunRow(r)
}

// SaveRun inserts the run summary or refreshes its counters when it already exists.
func (d *DB) SaveRun(ctx context.Context, run internal.ImportRunRow) error {
	_, err := d.db.NewQuery(`
INSERT INTO import_runs (id, email_id, source, actor_id, actor_role, total_rows, detected_fields,
  issue_count, duplicate_count, created, updated, skipped, failed)
VALUES ({:id}, {:email_id}, {:source}, {:actor_id}, {:actor_role}, {:total_rows}, {:detected_fields},
  {:issue_count}, {:duplicate_count}, {:created}, {:updated}, {:skipped}, {:failed})
ON CONFLICT(id) DO UPDATE SET
  actor_id=excluded.actor_id,
  actor_role=excluded.actor_role,
  total_rows=excluded.total_rows,
  detected_fields=excluded.detected_fields,
  issue_count=excluded.issue_count,
  duplicate_count=excluded.duplicate_count,
  created=excluded.created,
  updated=excluded.updated,
  skipped=excluded.skipped,
  failed=excluded.failed
`).Bind(dbx.Params{
		"id":              run.ID,
		"email_id":        run.EmailID,
		"source":          run.Source,
		"actor_id":        run.ActorID,
		"actor_role":      run.ActorRole,
		"total_rows":      run.TotalRows,
		"detected_fields": run.DetectedFields,
		"issue_count":     run.IssueCount,
		"duplicate_count": run.DuplicateCount,
		"created":         run.Created,
		"updated":         run.Updated,
		"skipped":         run.Skipped,
		"failed":          run.Failed,
	}).WithContext(ctx).Execute()
	if err != nil {
		return eris.Wrapf(err, "save run %s", run.ID)
	}
	return nil
}

func (d *DB) SaveOutcomes(ctx context.Context, runID string, outcomes []internal.OutcomeExportRow) error {
	return d.db.TransactionalContext(ctx, nil, func(tx *dbx.Tx) error {
		if _, err := tx.Delete("import_outcomes", dbx.HashExp{"run_id": runID}).WithContext(ctx).Execute(); err != nil {
			return eris.Wrapf(err, "clear outcomes for run %s", runID)
		}
		for _, o := range outcomes {
			_, err := tx.Insert("import_outcomes", dbx.Params{
				"run_id":     runID,
				"row_number": o.RowNumber,
				"action":     o.Action,
				"success":    o.Success,
				"skipped":    o.Skipped,
				"reason":     o.Reason,
				"error":      o.Error,
				"record_ref": o.RecordRef,
			}).WithContext(ctx).Execute()
			if err != nil {
				return eris.Wrapf(err, "insert outcome row %d", o.RowNumber)
			}
		}
		return nil
	})
}

func (d *DB) GetRun(ctx context.Context, id string) (internal.ImportRunRow, error) {
	var row runRow
	err := d.db.Select(runColumns...).From("import_runs").Where(dbx.HashExp{"id": id}).WithContext(ctx).One(&row)
	if eris.Is(err, sql.ErrNoRows) {
		return internal.ImportRunRow{}, eris.Wrapf(ErrNotFound, "run %s", id)
	}
	if err != nil {
		return internal.ImportRunRow{}, eris.Wrapf(err, "get run %s", id)
	}
	return row.toRun(), nil
}

func (d *DB) ListRuns(ctx context.Context, limit int) ([]internal.ImportRunRow, error) {
	var rows []runRow
	err := d.db.Select(runColumns...).
		From("import_runs").
		OrderBy("created_at DESC", "rowid DESC").
		Limit(int64(limit)).
		WithContext(ctx).
		All(&rows)
	if err != nil {
		return nil, eris.Wrap(err, "list runs")
	}
	out := make([]internal.ImportRunRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toRun())
	}
	return out, nil
}

type outcomeRow struct {
	RunID     string `db:"run_id"`
	RowNumber int    `db:"row_number"`
	Action    string `db:"action"`
	Success   bool   `db:"success"`
	Skipped   bool   `db:"skipped"`
	Reason    string `db:"reason"`
	Error     string `db:"error"`
	RecordRef string `db:"record_ref"`
}

func (d *DB) GetOutcomeRows(ctx context.Context, runID string) ([]internal.OutcomeExportRow, error) {
	var rows []outcomeRow
	err := d.db.Select("run_id", "row_number", "action", "success", "skipped", "reason", "error", "record_ref").
		From("import_outcomes").
		Where(dbx.HashExp{"run_id": runID}).
		OrderBy("row_number ASC").
		WithContext(ctx).
		All(&rows)
	if err != nil {
		return nil, eris.Wrapf(err, "list outcomes for run %s", runID)
	}
	out := make([]internal.OutcomeExportRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, internal.OutcomeExportRow(r))
	}
	return out, nil
}

func (d *DB) SetMetadata(key, value string) error {
	_, err := d.db.NewQuery(`
INSERT INTO metadata (key, value) VALUES ({:key}, {:value})
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
`).Bind(dbx.Params{"key": key, "value": value}).Execute()
	if err != nil {
		return eris.Wrapf(err, "set metadata %s", key)
	}
	return nil
}

func (d *DB) GetMetadata(key string) (*string, error) {
	var value string
	err := d.db.Select("value").From("metadata").Where(dbx.HashExp{"key": key}).Row(&value)
	if eris.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "get metadata %s", key)
	}
	return &value, nil
}
