package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"posimport/internal"
)

func TestWriteTemplateFormats(t *testing.T) {
	tmp := t.TempDir()

	csvPath := filepath.Join(tmp, "template.csv")
	require.NoError(t, WriteTemplate(csvPath))
	blob, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	rows, err := ParseCSV(blob)
	require.NoError(t, err)
	assert.Equal(t, TemplateHeaders, rows[0])
	assert.Len(t, rows, 3)

	xlsxPath := filepath.Join(tmp, "nested", "template.xlsx")
	require.NoError(t, WriteTemplate(xlsxPath))
	blob, err = os.ReadFile(xlsxPath)
	require.NoError(t, err)
	rows, err = ParseXLSX(blob)
	require.NoError(t, err)
	assert.Equal(t, TemplateHeaders, rows[0])
}

func TestExportCustomersToXLSX(t *testing.T) {
	out := filepath.Join(t.TempDir(), "customers.xlsx")
	err := ExportCustomersToXLSX([]internal.Customer{
		{ID: "c1", Name: "Jane", Phone: "+255712345678", Notes: []string{"a", "b"}, IsActive: true},
	}, out)
	require.NoError(t, err)

	blob, err := os.ReadFile(out)
	require.NoError(t, err)
	rows, err := ParseXLSX(blob)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "ID", rows[0][0])
	assert.Equal(t, "Jane", rows[1][1])
	assert.Equal(t, "a; b", rows[1][14])
}
