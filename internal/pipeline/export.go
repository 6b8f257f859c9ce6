package pipeline

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"

	"posimport/internal"
)

var TemplateHeaders = []string{
	"Name", "Phone", "Email", "WhatsApp", "Gender", "City", "Birth Month", "Birth Day",
	"Referral Source", "Location Description", "National ID", "Referred By", "Color Tag", "Notes",
}

var templateRows = [][]string{
	{"Jane Doe", "0712345678", "jane@example.com", "0712345678", "female", "Dar es Salaam", "3", "15",
		"Instagram", "Near Mlimani City mall", "19900315-12345-00001-22", "John Mushi", "vip", "Prefers evening calls"},
	{"John Mushi", "0755123456", "", "", "male", "Arusha", "August", "2",
		"Walk-in", "Clock tower, Sokoine road", "", "", "new", ""},
}

func TemplateCSV() ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	w := csv.NewWriter(buf)
	if err := w.Write(TemplateHeaders); err != nil {
		return nil, eris.Wrap(err, "write template header")
	}
	if err := w.WriteAll(templateRows); err != nil {
		return nil, eris.Wrap(err, "write template rows")
	}
	return buf.Bytes(), nil
}

func TemplateXLSX() ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	writeRow(f, sheet, 1, toAny(TemplateHeaders))
	for i, row := range templateRows {
		writeRow(f, sheet, i+2, toAny(row))
	}

	buf := bytes.NewBuffer(nil)
	if _, err := f.WriteTo(buf); err != nil {
		return nil, eris.Wrap(err, "write template workbook")
	}
	return buf.Bytes(), nil
}

func WriteTemplate(outputPath string) error {
	var blob []byte
	var err error
	if strings.EqualFold(filepath.Ext(outputPath), ".xlsx") {
		blob, err = TemplateXLSX()
	} else {
		blob, err = TemplateCSV()
	}
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return eris.Wrapf(err, "create dir for %s", outputPath)
	}
	return eris.Wrapf(os.WriteFile(outputPath, blob, 0o644), "write %s", outputPath)
}

func ExportOutcomesToXLSX(rows []internal.OutcomeExportRow, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	writeRow(f, sheet, 1, []any{"run_id", "row_number", "action", "success", "skipped", "reason", "error", "record_ref"})
	for i, row := range rows {
		writeRow(f, sheet, i+2, []any{row.RunID, row.RowNumber, row.Action, row.Success, row.Skipped, row.Reason, row.Error, row.RecordRef})
	}
	return saveWorkbook(f, outputPath)
}

func ExportCustomersToXLSX(customers []internal.Customer, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	headers := append(append([]string{"ID"}, TemplateHeaders...), "Points", "Total Spent", "Active", "Created At")
	writeRow(f, sheet, 1, toAny(headers))
	for i, c := range customers {
		writeRow(f, sheet, i+2, []any{
			c.ID, c.Name, c.Phone, c.Email, c.WhatsApp, c.Gender, c.City, c.BirthMonth, c.BirthDay,
			c.ReferralSource, c.LocationDescription, c.NationalID, c.ReferredBy, c.ColorTag,
			strings.Join(c.Notes, "; "), c.Points, c.TotalSpent, c.IsActive, c.CreatedAt,
		})
	}
	return saveWorkbook(f, outputPath)
}

func writeRow(f *excelize.File, sheet string, row int, values []any) {
	for col, v := range values {
		cell, _ := excelize.CoordinatesToCellName(col+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func saveWorkbook(f *excelize.File, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return eris.Wrapf(err, "create dir for %s", outputPath)
	}
	return eris.Wrapf(f.SaveAs(outputPath), "save %s", outputPath)
}
