package pipeline

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

func ExtractRows(name string, data []byte) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		return ParseXLSX(data)
	case ".html", ".htm":
		return ParseHTMLTable(decodeText(data))
	case ".pdf":
		return ParsePDF(data)
	case ".eml":
		mail, err := ReadMail(data)
		if err != nil {
			return nil, eris.Wrapf(ErrParse, "read %s: %v", name, err)
		}
		rows, _, err := RowsFromMail(mail)
		return rows, err
	default:
		return ParseCSV(data)
	}
}

func ReadUpload(path string) (Upload, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return Upload{}, eris.Wrapf(err, "read %s", path)
	}
	return Upload{Name: filepath.Base(path), Data: blob, Source: "file"}, nil
}
