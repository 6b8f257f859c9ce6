package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeHeader(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{in: "  Phone Number ", want: "phone number"},
		{in: "Número de Teléfono", want: "numero de telefono"},
		{in: "E-mail", want: "e mail"},
		{in: "Birth_Month", want: "birth month"},
		{in: "***", want: ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeHeader(tc.in), tc.in)
	}
}

func TestTitleCaseAndUpper(t *testing.T) {
	assert.True(t, IsAllUpper("JOHN DOE"))
	assert.False(t, IsAllUpper("John"))
	assert.False(t, IsAllUpper("123"))
	assert.Equal(t, "John Doe", TitleCase("JOHN DOE"))
	assert.Equal(t, "Mary-Jane O'Neil", TitleCase("MARY-JANE O'NEIL"))
}

func TestDigits(t *testing.T) {
	assert.Equal(t, "255712345678", Digits("+255 712-345-678"))
	assert.Equal(t, "", Digits("n/a"))
}
