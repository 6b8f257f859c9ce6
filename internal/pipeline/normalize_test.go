package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"posimport/internal"
	"posimport/internal/phone"
)

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "John Doe", NormalizeName("  JOHN DOE "))
	assert.Equal(t, "john doe", NormalizeName("john doe"))
	assert.Equal(t, "McDonald", NormalizeName("McDonald"))
	assert.Equal(t, "J", NormalizeName("J"))
	assert.Equal(t, "", NormalizeName("   "))
}

func TestNormalizeGender(t *testing.T) {
	cases := map[string]internal.Gender{
		"Male":      internal.GenderMale,
		" m ":       internal.GenderMale,
		"FEMALE":    internal.GenderFemale,
		"f":         internal.GenderFemale,
		"mwanamke":  internal.GenderFemale,
		"o":         internal.GenderOther,
		"":          "",
		"  ":        "",
		"prefer no": internal.GenderOther,
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeGender(in), "input %q", in)
	}
}

func TestNormalizeCity(t *testing.T) {
	assert.Equal(t, "Dar es Salaam", NormalizeCity("DSM"))
	assert.Equal(t, "Dar es Salaam", NormalizeCity("dar"))
	assert.Equal(t, "Morogoro", NormalizeCity(" moro "))
	assert.Equal(t, "Mwanza", NormalizeCity("MWANZA"))
	assert.Equal(t, "Moshi town", NormalizeCity("Moshi town"))
	assert.Equal(t, "", NormalizeCity(""))
}

func TestNormalizeReferralSource(t *testing.T) {
	assert.Equal(t, "Instagram", NormalizeReferralSource("IG"))
	assert.Equal(t, "Walk-in", NormalizeReferralSource("walk in"))
	assert.Equal(t, "Walk-in", NormalizeReferralSource("Walkin"))
	assert.Equal(t, "Church group", NormalizeReferralSource(" Church group "))
}

func TestNormalizeColorTag(t *testing.T) {
	assert.Equal(t, internal.ColorTagVIP, NormalizeColorTag("Gold"))
	assert.Equal(t, internal.ColorTagComplainer, NormalizeColorTag("complaint"))
	assert.Equal(t, internal.ColorTagPurchased, NormalizeColorTag("bought"))
	assert.Equal(t, internal.ColorTagNew, NormalizeColorTag(""))
	assert.Equal(t, internal.ColorTagNew, NormalizeColorTag("whatever"))
}

func TestParseBirthday(t *testing.T) {
	cases := []struct {
		in        string
		wantMonth string
		wantDay   string
	}{
		{in: "15-Mar", wantMonth: "March", wantDay: "15"},
		{in: "Mar-05", wantMonth: "March", wantDay: "5"},
		{in: "December 1", wantMonth: "December", wantDay: "1"},
		{in: "25/12", wantMonth: "12", wantDay: "25"},
		{in: "12/25", wantMonth: "12", wantDay: "25"},
		{in: "03/04", wantMonth: "3", wantDay: "4"},
		{in: "7.9", wantMonth: "7", wantDay: "9"},
		{in: "1990-06-21", wantMonth: "6", wantDay: "21"},
		{in: "31/31", wantMonth: "", wantDay: ""},
		{in: "someday", wantMonth: "", wantDay: ""},
		{in: "", wantMonth: "", wantDay: ""},
	}

	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			month, day := ParseBirthday(tc.in)
			assert.Equal(t, tc.wantMonth, month)
			assert.Equal(t, tc.wantDay, day)
		})
	}
}

func TestBirthMonthAndDayColumns(t *testing.T) {
	assert.Equal(t, "3", NormalizeBirthMonth("03"))
	assert.Equal(t, "August", NormalizeBirthMonth("aug"))
	assert.Equal(t, "13", NormalizeBirthMonth("13"))
	assert.Equal(t, "5", NormalizeBirthDay("05"))
	assert.Equal(t, "21", NormalizeBirthDay("21st"))
}

func TestNormalizersAreIdempotent(t *testing.T) {
	inputs := []string{"JOHN DOE", "dsm", "IG", "gold", "Mar-05", " m ", "ALICE O'NEIL"}
	for _, in := range inputs {
		name := NormalizeName(in)
		assert.Equal(t, name, NormalizeName(name))
		city := NormalizeCity(in)
		assert.Equal(t, city, NormalizeCity(city))
		ref := NormalizeReferralSource(in)
		assert.Equal(t, ref, NormalizeReferralSource(ref))
		tag := NormalizeColorTag(in)
		assert.Equal(t, tag, NormalizeColorTag(string(tag)))
		gender := NormalizeGender(in)
		assert.Equal(t, gender, NormalizeGender(string(gender)))
		month := NormalizeBirthMonth(in)
		assert.Equal(t, month, NormalizeBirthMonth(month))
	}
}

func TestNormalizeRow(t *testing.T) {
	headers := []string{"Full Name", "Phone Number", "E-mail", "Sex", "Town", "Birthday", "Points", "Total Spent"}
	cols := Detect(headers, DefaultFieldSpecs())
	n := NewNormalizer(phone.NewE164("TZ"))

	rec := n.NormalizeRow([]string{"JOHN DOE", "0712 345 678", " John@Example.COM ", "M", "dsm", "15-Mar", "1,000", "TSh 25,000"}, 2, cols)

	assert.Equal(t, 2, rec.RowNumber)
	assert.Equal(t, "John Doe", rec.Name)
	assert.Equal(t, "+255712345678", rec.Phone)
	assert.Equal(t, "john@example.com", rec.Email)
	assert.Equal(t, internal.GenderMale, rec.Gender)
	assert.Equal(t, "Dar es Salaam", rec.City)
	assert.Equal(t, "March", rec.BirthMonth)
	assert.Equal(t, "15", rec.BirthDay)
	require.NotNil(t, rec.Points)
	assert.Equal(t, 1000.0, *rec.Points)
	require.NotNil(t, rec.TotalSpent)
	assert.Equal(t, 25000.0, *rec.TotalSpent)
	assert.Equal(t, internal.ColorTagNew, rec.ColorTag)
}

func TestNormalizeRowShortRow(t *testing.T) {
	cols := Detect([]string{"Name", "Phone", "Email"}, DefaultFieldSpecs())
	rec := NewNormalizer(nil).NormalizeRow([]string{"Jane"}, 5, cols)

	assert.Equal(t, "Jane", rec.Name)
	assert.Empty(t, rec.Phone)
	assert.Empty(t, rec.Email)
}
