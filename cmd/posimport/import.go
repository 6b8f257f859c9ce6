package main

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"posimport/internal"
	"posimport/internal/pipeline"
)

func newImportPreviewCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "import:preview",
		Short: "Detect columns, validate rows and classify them against existing customers",
		RunE: withApp(func(cmd *cobra.Command, a *app) error {
			in, err := pipeline.ReadUpload(file)
			if err != nil {
				return err
			}
			report, err := a.newSession().Upload(cmd.Context(), in)
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), report)
			return nil
		}),
	}
	cmd.Flags().StringVar(&file, "file", "", "CSV, XLSX, HTML, PDF or EML file (required)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newImportCommitCmd() *cobra.Command {
	var (
		file    string
		actorID string
		role    string
		out     string
	)
	cmd := &cobra.Command{
		Use:   "import:commit",
		Short: "Preview a file and write its rows to the customer store",
		RunE: withApp(func(cmd *cobra.Command, a *app) error {
			in, err := pipeline.ReadUpload(file)
			if err != nil {
				return err
			}
			session := a.newSession()
			report, err := session.Upload(cmd.Context(), in)
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), report)

			stderr := cmd.ErrOrStderr()
			outcomes, err := session.Commit(cmd.Context(), internal.Actor{ID: actorID, Role: role}, func(p pipeline.Progress) {
				fmt.Fprintf(stderr, "\rcommitting %d/%d", p.Processed, p.Total)
			})
			fmt.Fprintln(stderr)
			if outcomes == nil {
				return err
			}
			if reportErr := reportOutcomes(cmd.OutOrStdout(), report.RunID, outcomes, out); reportErr != nil {
				return reportErr
			}
			return err
		}),
	}
	cmd.Flags().StringVar(&file, "file", "", "CSV, XLSX, HTML, PDF or EML file (required)")
	cmd.Flags().StringVar(&actorID, "actor", "cli", "actor id recorded on the run")
	cmd.Flags().StringVar(&role, "role", "", "actor role checked against COMMIT_ROLES (required)")
	cmd.Flags().StringVar(&out, "out", "", "optional XLSX path for per-row outcomes")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}

// reportOutcomes prints the commit summary and optionally writes the per-row
// outcomes. It runs for cancelled commits too, which still return outcomes.
func reportOutcomes(w io.Writer, runID string, outcomes []pipeline.Outcome, out string) error {
	summary := pipeline.Summarize(outcomes)
	fmt.Fprintf(w, "run %s: created=%d updated=%d skipped=%d failed=%d\n",
		runID, summary.Created, summary.Updated, summary.Skipped, summary.Failed)

	if out == "" {
		return nil
	}
	if err := pipeline.ExportOutcomesToXLSX(pipeline.OutcomeRows(runID, outcomes), out); err != nil {
		return err
	}
	fmt.Fprintf(w, "outcomes written to %s\n", out)
	return nil
}

func newTemplateCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Write the import template as CSV or XLSX",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := pipeline.WriteTemplate(out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "template written to %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", filepath.Join("out", "customer-import-template.csv"), "output path (.csv or .xlsx)")
	return cmd
}

func newRunsExportCmd() *cobra.Command {
	var (
		runID string
		out   string
	)
	cmd := &cobra.Command{
		Use:   "runs:export",
		Short: "Export the per-row outcomes of an import run (latest when --run is omitted)",
		RunE: withApp(func(cmd *cobra.Command, a *app) error {
			ctx := cmd.Context()
			if runID == "" {
				runs, err := a.db.ListRuns(ctx, 1)
				if err != nil {
					return err
				}
				if len(runs) == 0 {
					return eris.New("no import runs recorded")
				}
				runID = runs[0].ID
			}
			run, err := a.db.GetRun(ctx, runID)
			if err != nil {
				return err
			}
			rows, err := a.db.GetOutcomeRows(ctx, run.ID)
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				return eris.Errorf("run %s has no committed rows", run.ID)
			}
			if out == "" {
				out = filepath.Join(a.cfg.OutputDir, "runs", run.ID+".xlsx")
			}
			if err := pipeline.ExportOutcomesToXLSX(rows, out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d rows of run %s to %s\n", len(rows), run.ID, out)
			return nil
		}),
	}
	cmd.Flags().StringVar(&runID, "run", "", "import run id")
	cmd.Flags().StringVar(&out, "out", "", "output xlsx path (default OUTPUT_DIR/runs/<run>.xlsx)")
	return cmd
}

func printReport(w io.Writer, r pipeline.Report) {
	fmt.Fprintf(w, "run:      %s\n", r.RunID)
	fmt.Fprintf(w, "source:   %s\n", r.Source)
	fmt.Fprintf(w, "rows:     %d\n", r.TotalRows)
	fmt.Fprintf(w, "detected: %d fields\n", r.DetectedFields)

	fields := make([]string, 0, len(r.Columns))
	for f, col := range r.Columns {
		fields = append(fields, fmt.Sprintf("  %-20s <- %q (%d values)", f, col.Header, r.FieldCounts[f]))
	}
	sort.Strings(fields)
	for _, line := range fields {
		fmt.Fprintln(w, line)
	}
	for _, s := range r.Suggestions {
		fmt.Fprintf(w, "  header %q looks like %s (%q)\n", s.Header, s.Field, s.Alias)
	}
	if len(r.Unmapped) > 0 {
		names := make([]string, 0, len(r.Unmapped))
		for _, f := range r.Unmapped {
			names = append(names, string(f))
		}
		fmt.Fprintf(w, "unmapped: %s\n", strings.Join(names, ", "))
	}

	fmt.Fprintf(w, "issues:   %d\n", r.IssueCount())
	if summary := r.IssueSummary(); summary != "" {
		fmt.Fprintf(w, "  %s\n", summary)
	}
	for _, d := range r.Duplicates {
		fmt.Fprintf(w, "duplicate phone %s on rows %v\n", d.PhoneKey, d.RowNumbers)
	}
	fmt.Fprintf(w, "matches:  new=%d updatable=%d unchanged=%d\n",
		r.Matches[pipeline.NoMatch], r.Matches[pipeline.MatchedUpdatable], r.Matches[pipeline.MatchedNoChange])
}
