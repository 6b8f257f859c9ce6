package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"posimport/internal"
	"posimport/internal/logging"
	"posimport/internal/phone"
)

var (
	ErrPermissionDenied = eris.New("permission denied")
	ErrInvalidStage     = eris.New("invalid import stage")
)

type RecordStore interface {
	FetchAll(ctx context.Context) ([]internal.Customer, error)
	Create(ctx context.Context, c internal.Customer) (internal.Customer, error)
	Update(ctx context.Context, id string, patch internal.CustomerPatch) (internal.Customer, error)
}

type RunRecorder interface {
	SaveRun(ctx context.Context, run internal.ImportRunRow) error
	SaveOutcomes(ctx context.Context, runID string, outcomes []internal.OutcomeExportRow) error
}

type Stage string

const (
	StageUpload    Stage = "upload"
	StagePreview   Stage = "preview"
	StageCommitted Stage = "committed"
)

type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionSkip   Action = "skip"
)

const (
	ReasonValidation = "validation"
	ReasonNoChange   = "no-change"
	ReasonNoMatch    = "no-match"
	ReasonCancelled  = "cancelled"
)

type Outcome struct {
	RowNumber int
	Success   bool
	Skipped   bool
	Action    Action
	Reason    string
	Error     string
	RecordRef string
}

type Progress struct {
	Processed int
	Total     int
}

type ProgressFunc func(Progress)

type Upload struct {
	Name    string
	Data    []byte
	Source  string
	EmailID *int
}

type Options struct {
	Store             RecordStore
	Phone             phone.Canonicalizer
	Specs             []FieldSpec
	CommitRoles       []string
	UpdateOnly        bool
	IssuePreviewLimit int
	Recorder          RunRecorder
	Logger            *slog.Logger
}

type Report struct {
	RunID          string
	Source         string
	Headers        []string
	TotalRows      int
	DetectedFields int
	Columns        ColumnMap
	Unmapped       []internal.FieldName
	Suggestions    []HeaderSuggestion
	FieldCounts    map[internal.FieldName]int
	Issues         []ValidationIssue
	IssuePreview   []string
	MoreIssues     int
	Duplicates     []DuplicateGroup
	Matches        map[MatchOutcome]int
}

func (r Report) IssueCount() int {
	return len(r.Issues)
}

func (r Report) IssueSummary() string {
	if len(r.IssuePreview) == 0 {
		return ""
	}
	s := strings.Join(r.IssuePreview, "; ")
	if r.MoreIssues > 0 {
		s += fmt.Sprintf(" (+%d more)", r.MoreIssues)
	}
	return s
}

type Summary struct {
	Created int
	Updated int
	Skipped int
	Failed  int
}

func Summarize(outcomes []Outcome) Summary {
	var s Summary
	for _, o := range outcomes {
		switch {
		case o.Skipped:
			s.Skipped++
		case !o.Success:
			s.Failed++
		case o.Action == ActionCreate:
			s.Created++
		case o.Action == ActionUpdate:
			s.Updated++
		}
	}
	return s
}

// Session carries one import from upload through preview to commit.
// It is not safe for concurrent use.
type Session struct {
	opts   Options
	norm   Normalizer
	logger *slog.Logger

	stage    Stage
	upload   Upload
	columns  ColumnMap
	records  []NormalizedRecord
	index    *Index
	report   Report
	results  []Outcome
}

func NewSession(opts Options) *Session {
	if opts.Phone == nil {
		opts.Phone = phone.NewE164("")
	}
	if len(opts.Specs) == 0 {
		opts.Specs = DefaultFieldSpecs()
	}
	if len(opts.CommitRoles) == 0 {
		opts.CommitRoles = []string{"admin"}
	}
	if opts.IssuePreviewLimit <= 0 {
		opts.IssuePreviewLimit = 5
	}
	return &Session{
		opts:   opts,
		norm:   NewNormalizer(opts.Phone),
		logger: logging.OrDefault(opts.Logger),
		stage:  StageUpload,
	}
}

func (s *Session) Stage() Stage                { return s.stage }
func (s *Session) Report() Report              { return s.report }
func (s *Session) Columns() ColumnMap          { return s.columns }
func (s *Session) Records() []NormalizedRecord { return s.records }
func (s *Session) Results() []Outcome          { return s.results }

func (s *Session) Reset() {
	s.stage = StageUpload
	s.upload = Upload{}
	s.columns = nil
	s.records = nil
	s.index = nil
	s.report = Report{}
	s.results = nil
}

// Upload parses the file and builds the preview. On error the session keeps its previous state.
func (s *Session) Upload(ctx context.Context, in Upload) (Report, error) {
	if s.stage == StageCommitted {
		return Report{}, eris.Wrap(ErrInvalidStage, "reset the session before uploading another file")
	}
	if s.opts.Store == nil {
		return Report{}, eris.New("import session has no record store")
	}

	rows, err := ExtractRows(in.Name, in.Data)
	if err != nil {
		return Report{}, err
	}

	headers := rows[0]
	cols := Detect(headers, s.opts.Specs)

	records := make([]NormalizedRecord, 0, len(rows)-1)
	issues := []ValidationIssue{}
	counts := map[internal.FieldName]int{}
	for i, row := range rows[1:] {
		rec := s.norm.NormalizeRow(row, i+2, cols)
		records = append(records, rec)
		issues = append(issues, ValidateRecord(rec)...)
		for field := range cols {
			if rec.Value(field) != "" {
				counts[field]++
			}
		}
	}

	existing, err := s.opts.Store.FetchAll(ctx)
	if err != nil {
		return Report{}, eris.Wrap(err, "fetch existing customers")
	}
	idx := BuildIndex(existing, s.opts.Phone)

	matches := map[MatchOutcome]int{}
	for _, rec := range records {
		matches[Match(rec, idx).Outcome]++
	}

	source := in.Source
	if source == "" {
		source = in.Name
	}
	report := Report{
		RunID:          uuid.NewString(),
		Source:         source,
		Headers:        headers,
		TotalRows:      len(records),
		DetectedFields: len(cols),
		Columns:        cols,
		Unmapped:       UnmappedFields(cols, s.opts.Specs),
		Suggestions:    SuggestHeaders(headers, cols, s.opts.Specs),
		FieldCounts:    counts,
		Issues:         issues,
		Duplicates:     FindDuplicates(records),
		Matches:        matches,
	}
	for i, issue := range issues {
		if i >= s.opts.IssuePreviewLimit {
			report.MoreIssues = len(issues) - s.opts.IssuePreviewLimit
			break
		}
		report.IssuePreview = append(report.IssuePreview, issue.String())
	}

	s.stage = StagePreview
	s.upload = in
	s.columns = cols
	s.records = records
	s.index = idx
	s.report = report
	s.results = nil

	s.logger.Info("import preview ready",
		"run", report.RunID,
		"source", report.Source,
		"rows", report.TotalRows,
		"fields", report.DetectedFields,
		"issues", len(issues),
		"duplicates", len(report.Duplicates),
	)

	if s.opts.Recorder != nil {
		if err := s.opts.Recorder.SaveRun(ctx, s.runRow(internal.Actor{}, Summary{})); err != nil {
			s.logger.Warn("record preview failed", "run", report.RunID, "err", err)
		}
	}

	return report, nil
}

func (s *Session) allowed(role string) bool {
	role = strings.ToLower(strings.TrimSpace(role))
	for _, r := range s.opts.CommitRoles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

// Commit writes the previewed records in row order, each against the customers
// fetched at preview, so rows sharing a phone are attempted independently. Row
// failures are reported in the outcomes; cancellation skips the remaining rows
// and returns ctx.Err().
func (s *Session) Commit(ctx context.Context, actor internal.Actor, progress ProgressFunc) ([]Outcome, error) {
	if s.stage != StagePreview {
		return nil, eris.Wrapf(ErrInvalidStage, "commit requires preview, session is at %s", s.stage)
	}
	if !s.allowed(actor.Role) {
		return nil, eris.Wrapf(ErrPermissionDenied, "role %q may not import customers", actor.Role)
	}

	total := len(s.records)
	outcomes := make([]Outcome, 0, total)

	var cancelErr error
	for i, rec := range s.records {
		if err := ctx.Err(); err != nil {
			cancelErr = err
			for _, rest := range s.records[i:] {
				outcomes = append(outcomes, Outcome{RowNumber: rest.RowNumber, Skipped: true, Action: ActionSkip, Reason: ReasonCancelled})
			}
			break
		}

		outcome := s.commitRecord(ctx, rec)
		outcomes = append(outcomes, outcome)
		if !outcome.Skipped && !outcome.Success {
			s.logger.Warn("import row failed", "run", s.report.RunID, "row", rec.RowNumber, "action", outcome.Action, "err", outcome.Error)
		}
		if progress != nil {
			progress(Progress{Processed: i + 1, Total: total})
		}
	}

	s.results = outcomes
	s.stage = StageCommitted

	summary := Summarize(outcomes)
	s.logger.Info("import committed",
		"run", s.report.RunID,
		"actor", actor.ID,
		"created", summary.Created,
		"updated", summary.Updated,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
	)
	s.record(actor, summary, outcomes)

	return outcomes, cancelErr
}

func (s *Session) commitRecord(ctx context.Context, rec NormalizedRecord) Outcome {
	out := Outcome{RowNumber: rec.RowNumber}

	if issues := ValidateRecord(rec); len(issues) > 0 {
		msgs := make([]string, 0, len(issues))
		for _, issue := range issues {
			msgs = append(msgs, issue.Message)
		}
		out.Skipped, out.Action, out.Reason = true, ActionSkip, ReasonValidation
		out.Error = strings.Join(msgs, "; ")
		return out
	}

	match := Match(rec, s.index)
	switch match.Outcome {
	case MatchedNoChange:
		out.Skipped, out.Action, out.Reason = true, ActionSkip, ReasonNoChange
		out.RecordRef = match.Existing.ID
	case NoMatch:
		if s.opts.UpdateOnly {
			out.Skipped, out.Action, out.Reason = true, ActionSkip, ReasonNoMatch
			return out
		}
		out.Action = ActionCreate
		created, err := s.opts.Store.Create(ctx, NewCustomerFromRecord(rec))
		if err != nil {
			out.Error = err.Error()
			return out
		}
		out.Success, out.RecordRef = true, created.ID
	case MatchedUpdatable:
		out.Action = ActionUpdate
		out.RecordRef = match.Existing.ID
		if _, err := s.opts.Store.Update(ctx, match.Existing.ID, match.Patch); err != nil {
			out.Error = err.Error()
			return out
		}
		out.Success = true
	}
	return out
}

func (s *Session) runRow(actor internal.Actor, summary Summary) internal.ImportRunRow {
	return internal.ImportRunRow{
		ID:             s.report.RunID,
		EmailID:        s.upload.EmailID,
		Source:         s.report.Source,
		ActorID:        actor.ID,
		ActorRole:      actor.Role,
		TotalRows:      s.report.TotalRows,
		DetectedFields: s.report.DetectedFields,
		IssueCount:     len(s.report.Issues),
		DuplicateCount: len(s.report.Duplicates),
		Created:        summary.Created,
		Updated:        summary.Updated,
		Skipped:        summary.Skipped,
		Failed:         summary.Failed,
	}
}

func (s *Session) record(actor internal.Actor, summary Summary, outcomes []Outcome) {
	if s.opts.Recorder == nil {
		return
	}
	// commit ctx may already be cancelled here
	ctx := context.Background()
	if err := s.opts.Recorder.SaveRun(ctx, s.runRow(actor, summary)); err != nil {
		s.logger.Warn("record run failed", "run", s.report.RunID, "err", err)
		return
	}
	if err := s.opts.Recorder.SaveOutcomes(ctx, s.report.RunID, OutcomeRows(s.report.RunID, outcomes)); err != nil {
		s.logger.Warn("record outcomes failed", "run", s.report.RunID, "err", err)
	}
}

func OutcomeRows(runID string, outcomes []Outcome) []internal.OutcomeExportRow {
	out := make([]internal.OutcomeExportRow, 0, len(outcomes))
	for _, o := range outcomes {
		out = append(out, internal.OutcomeExportRow{
			RunID:     runID,
			RowNumber: o.RowNumber,
			Action:    string(o.Action),
			Success:   o.Success,
			Skipped:   o.Skipped,
			Reason:    o.Reason,
			Error:     o.Error,
			RecordRef: o.RecordRef,
		})
	}
	return out
}
