package pipeline

import (
	"bytes"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func mkXLSX(sheets map[string][][]any) []byte {
	f := excelize.NewFile()
	first := true
	for name, rows := range sheets {
		sheet := name
		if first {
			_ = f.SetSheetName(f.GetSheetName(0), name)
			first = false
		} else {
			_, _ = f.NewSheet(name)
		}
		for r, row := range rows {
			for c, v := range row {
				cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
				_ = f.SetCellValue(sheet, cell, v)
			}
		}
	}
	buf := bytes.NewBuffer(nil)
	_, _ = f.WriteTo(buf)
	return buf.Bytes()
}

func TestParseXLSX(t *testing.T) {
	blob := mkXLSX(map[string][][]any{"Customers": {
		{"Name", "Phone", "Points"},
		{"Jane Doe", "0712345678", 10},
		{},
		{"  John   Mushi ", "0755123456", 2.5},
	}})

	rows, err := ParseXLSX(blob)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Name", "Phone", "Points"}, rows[0])
	assert.Equal(t, "John Mushi", rows[2][0])
	assert.Equal(t, "10", rows[1][2])
}

func TestParseXLSXWithoutData(t *testing.T) {
	blob := mkXLSX(map[string][][]any{"Sheet1": {{"Name", "Phone"}}})

	_, err := ParseXLSX(blob)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrParse))
}

func TestParseXLSXRejectsGarbage(t *testing.T) {
	_, err := ParseXLSX([]byte("not a workbook"))
	assert.True(t, eris.Is(err, ErrParse))
}
