package pipeline

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCSVDelimiters(t *testing.T) {
	cases := []struct {
		name  string
		input string
	}{
		{name: "comma", input: "Name,Phone\nJane,0712345678\n"},
		{name: "semicolon", input: "Name;Phone\r\nJane;0712345678\r\n"},
		{name: "tab", input: "Name\tPhone\nJane\t0712345678"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rows, err := ParseCSV([]byte(tc.input))
			require.NoError(t, err)
			assert.Equal(t, [][]string{{"Name", "Phone"}, {"Jane", "0712345678"}}, rows)
		})
	}
}

func TestParseCSVQuotedFields(t *testing.T) {
	input := "Name,Location Description,Phone\n\"Doe, Jane\", \"Near the \"\"big\"\" tree\" ,0712345678\n"

	rows, err := ParseCSV([]byte(input))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Doe, Jane", rows[1][0])
	assert.Contains(t, rows[1][1], "big")
	assert.Equal(t, "0712345678", rows[1][2])
}

func TestParseCSVDropsBlankLines(t *testing.T) {
	rows, err := ParseCSV([]byte("\n\nName,Phone\n\n   \nJane,0712345678\n\n"))
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestParseCSVNeedsTwoLines(t *testing.T) {
	for _, input := range []string{"", "Name,Phone", "Name,Phone\n\n  \n"} {
		_, err := ParseCSV([]byte(input))
		require.Error(t, err, input)
		assert.True(t, eris.Is(err, ErrParse))
	}
}

func TestParseCSVLegacyEncoding(t *testing.T) {
	// "José" in Windows-1252
	input := []byte("Name,Phone\nJos\xe9,0712345678\n")

	rows, err := ParseCSV(input)
	require.NoError(t, err)
	assert.Equal(t, "José", rows[1][0])
}

func TestExtractRowsDispatch(t *testing.T) {
	rows, err := ExtractRows("list.html", []byte("<table><tr><th>Name</th></tr><tr><td>Jane</td></tr></table>"))
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	rows, err = ExtractRows("list.csv", []byte("Name\nJane\n"))
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestRowsFromTextLines(t *testing.T) {
	rows, err := rowsFromTextLines([]string{"Name    Phone", "Jane Doe    0712345678"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Jane Doe", "0712345678"}, rows[1])
}
