package util

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  float64
	}{
		{name: "thousand with space", input: "1 000", want: 1000},
		{name: "decimal comma", input: "1,5", want: 1.5},
		{name: "decimal dot", input: "1.5", want: 1.5},
		{name: "thousand dot", input: "1.000", want: 1000},
		{name: "thousand comma", input: "25,000", want: 25000},
		{name: "currency prefix", input: "TSh 25,000/=", want: 25000},
		{name: "mixed separators", input: "1,250.75", want: 1250.75},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseAmount(tc.input)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestParseAmountRejectsText(t *testing.T) {
	_, err := ParseAmount("lots")
	require.Error(t, err)
	require.True(t, eris.Is(err, ErrNotANumber))

	_, err = ParseAmount("  ")
	require.True(t, eris.Is(err, ErrNotANumber))
}
