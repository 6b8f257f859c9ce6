package pipeline

import (
	"bytes"
	"encoding/csv"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/jhillyerd/enmime"
	pdf "github.com/ledongthuc/pdf"
	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"

	"posimport/internal/util"
)

var ErrParse = eris.New("unable to parse import file")

var rePDFColumns = regexp.MustCompile(`\t|\s{2,}|\s*\|\s*`)

func decodeText(data []byte) string {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if utf8.Valid(data) {
		return string(data)
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return string(data)
	}
	return string(decoded)
}

func detectDelimiter(header string) rune {
	counts := map[rune]int{',': 0, ';': 0, '\t': 0}
	inQuotes := false
	for _, r := range header {
		if r == '"' {
			inQuotes = !inQuotes
			continue
		}
		if _, ok := counts[r]; ok && !inQuotes {
			counts[r]++
		}
	}
	best := ','
	for _, r := range []rune{';', '\t'} {
		if counts[r] > counts[best] {
			best = r
		}
	}
	return best
}

func cleanCell(v string) string {
	v = strings.TrimSpace(v)
	if len(v) >= 2 {
		first, last := v[0], v[len(v)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			v = strings.TrimSpace(v[1 : len(v)-1])
		}
	}
	return v
}

// ParseCSV returns the header row followed by data rows. Blank lines are dropped.
func ParseCSV(data []byte) ([][]string, error) {
	text := strings.ReplaceAll(decodeText(data), "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := []string{}
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) < 2 {
		return nil, eris.Wrap(ErrParse, "file needs a header line and at least one data line")
	}

	r := csv.NewReader(strings.NewReader(strings.Join(lines, "\n")))
	r.Comma = detectDelimiter(lines[0])
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	rows := [][]string{}
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(ErrParse, "read csv: %v", err)
		}
		row := make([]string, len(rec))
		for i, v := range rec {
			row[i] = cleanCell(v)
		}
		rows = append(rows, row)
	}
	return requireRows(rows)
}

func requireRows(rows [][]string) ([][]string, error) {
	out := make([][]string, 0, len(rows))
	for _, row := range rows {
		if !blankRow(row) {
			out = append(out, row)
		}
	}
	if len(out) < 2 {
		return nil, eris.Wrap(ErrParse, "file needs a header row and at least one data row")
	}
	return out, nil
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func normalizeCells(row []string) []string {
	out := make([]string, 0, len(row))
	for _, c := range row {
		out = append(out, util.CollapseSpaces(c))
	}
	return out
}

// ParseXLSX reads the first sheet that holds a header and data.
func ParseXLSX(content []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, eris.Wrapf(ErrParse, "open workbook: %v", err)
	}
	defer f.Close()

	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil || len(rows) == 0 {
			continue
		}
		cleaned := make([][]string, 0, len(rows))
		for _, row := range rows {
			cleaned = append(cleaned, normalizeCells(row))
		}
		if out, err := requireRows(cleaned); err == nil {
			return out, nil
		}
	}
	return nil, eris.Wrap(ErrParse, "workbook has no sheet with a header row and data")
}

// ParseHTMLTable reads the first table with a header row and data.
func ParseHTMLTable(html string) ([][]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, eris.Wrapf(ErrParse, "read html: %v", err)
	}

	var found [][]string
	doc.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		rows := [][]string{}
		table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
			cells := []string{}
			tr.Find("th,td").Each(func(_ int, cell *goquery.Selection) {
				cells = append(cells, util.CollapseSpaces(cell.Text()))
			})
			rows = append(rows, cells)
		})
		if out, err := requireRows(rows); err == nil {
			found = out
			return false
		}
		return true
	})
	if found == nil {
		return nil, eris.Wrap(ErrParse, "no table with a header row and data")
	}
	return found, nil
}

// ParsePDF reads text lines and splits them into columns on tabs, pipes or runs of spaces.
func ParsePDF(content []byte) ([][]string, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, eris.Wrapf(ErrParse, "open pdf: %v", err)
	}

	lines := []string{}
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		lines = append(lines, splitLines(text)...)
	}
	return rowsFromTextLines(lines)
}

func rowsFromTextLines(lines []string) ([][]string, error) {
	if len(lines) == 0 {
		return nil, eris.Wrap(ErrParse, "no text lines")
	}
	if delim := detectDelimiter(lines[0]); strings.ContainsRune(lines[0], delim) {
		return ParseCSV([]byte(strings.Join(lines, "\n")))
	}
	rows := make([][]string, 0, len(lines))
	for _, line := range lines {
		rows = append(rows, normalizeCells(rePDFColumns.Split(strings.TrimSpace(line), -1)))
	}
	return requireRows(rows)
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	parts := strings.Split(text, "\n")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}

type Attachment struct {
	Name    string
	Content []byte
}

type MailContent struct {
	Subject     string
	Text        string
	HTML        string
	Attachments []Attachment
}

func (m MailContent) AttachmentNames() []string {
	out := make([]string, 0, len(m.Attachments))
	for _, a := range m.Attachments {
		out = append(out, a.Name)
	}
	return out
}

func ReadMail(raw []byte) (MailContent, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return MailContent{}, eris.Wrap(err, "read mail envelope")
	}

	out := MailContent{Subject: env.GetHeader("Subject"), Text: env.Text, HTML: env.HTML}
	for _, att := range env.Attachments {
		name := strings.TrimSpace(att.FileName)
		if name == "" {
			name = "attachment"
		}
		out.Attachments = append(out.Attachments, Attachment{Name: name, Content: att.Content})
	}
	return out, nil
}

// RowsFromMail prefers a spreadsheet attachment and falls back to an HTML table in the body.
func RowsFromMail(m MailContent) ([][]string, string, error) {
	for _, att := range m.Attachments {
		if !IsSupportedFile(att.Name) {
			continue
		}
		rows, err := ExtractRows(att.Name, att.Content)
		if err == nil {
			return rows, att.Name, nil
		}
	}
	if m.HTML != "" {
		if rows, err := ParseHTMLTable(m.HTML); err == nil {
			return rows, "email_table", nil
		}
	}
	return nil, "", eris.Wrap(ErrParse, "message has no customer list")
}

func IsSupportedFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt", ".tsv", ".xlsx", ".xlsm", ".html", ".htm", ".pdf":
		return true
	default:
		return false
	}
}
