package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"posimport/internal"
	"posimport/internal/phone"
)

func TestBuildIndexAndMatchPriority(t *testing.T) {
	canon := phone.NewE164("TZ")
	existing := []internal.Customer{
		{ID: "c1", Name: "Phone Owner", Phone: "0712345678"},
		{ID: "c2", Name: "WhatsApp Owner", Phone: "0700000001", WhatsApp: "+255 755 123 456"},
		{ID: "c3", Name: "Email Owner", Phone: "0700000002", Email: "Mail@Example.com"},
	}
	idx := BuildIndex(existing, canon)

	cases := []struct {
		name   string
		rec    NormalizedRecord
		wantID string
		via    string
	}{
		{name: "phone in phone index", rec: NormalizedRecord{Phone: "+255712345678", Email: "mail@example.com"}, wantID: "c1", via: "phone"},
		{name: "phone in whatsapp index", rec: NormalizedRecord{Phone: "+255755123456"}, wantID: "c2", via: "phone_whatsapp"},
		{name: "whatsapp in whatsapp index", rec: NormalizedRecord{Phone: "+255799999999", WhatsApp: "+255755123456"}, wantID: "c2", via: "whatsapp"},
		{name: "email", rec: NormalizedRecord{Phone: "+255799999999", Email: "mail@example.com"}, wantID: "c3", via: "email"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := Match(tc.rec, idx)
			require.NotNil(t, res.Existing)
			assert.Equal(t, tc.wantID, res.Existing.ID)
			assert.Equal(t, tc.via, res.Via)
		})
	}

	res := Match(NormalizedRecord{Phone: "+255799999999"}, idx)
	assert.Equal(t, NoMatch, res.Outcome)
	assert.Nil(t, res.Existing)
}

func TestBuildIndexLastWriteWins(t *testing.T) {
	idx := BuildIndex([]internal.Customer{
		{ID: "old", Phone: "0712345678"},
		{ID: "new", Phone: "+255712345678"},
	}, phone.NewE164("TZ"))

	res := Match(NormalizedRecord{Phone: "+255712345678"}, idx)
	require.NotNil(t, res.Existing)
	assert.Equal(t, "new", res.Existing.ID)
	assert.Equal(t, 1, idx.Size())
}

func TestMatchUpdatableOnlyFillsEmptyFields(t *testing.T) {
	idx := BuildIndex([]internal.Customer{
		{ID: "c1", Name: "Jane", Phone: "+255712345678", City: "Arusha"},
	}, phone.NewE164("TZ"))

	res := Match(NormalizedRecord{Name: "Jane D", Phone: "+255712345678", City: "Dodoma", Email: "jane@example.com", Gender: internal.GenderFemale}, idx)

	assert.Equal(t, MatchedUpdatable, res.Outcome)
	assert.Equal(t, []internal.FieldName{internal.FieldEmail, internal.FieldGender}, res.Patch.Fields())
	require.NotNil(t, res.Patch.Email)
	assert.Equal(t, "jane@example.com", *res.Patch.Email)
	assert.Nil(t, res.Patch.City)
}

func TestMatchNoChange(t *testing.T) {
	idx := BuildIndex([]internal.Customer{
		{ID: "c1", Name: "Jane", Phone: "+255712345678", Email: "jane@example.com"},
	}, phone.NewE164("TZ"))

	res := Match(NormalizedRecord{Name: "Someone Else", Phone: "+255712345678", Email: "other@example.com"}, idx)
	assert.Equal(t, MatchedNoChange, res.Outcome)
	assert.True(t, res.Patch.Empty())
}

func TestFindDuplicates(t *testing.T) {
	records := []NormalizedRecord{
		{RowNumber: 2, Phone: "+255712345678"},
		{RowNumber: 3, Phone: "+255755123456"},
		{RowNumber: 4, Phone: "+255712345678"},
		{RowNumber: 5, Phone: ""},
		{RowNumber: 6, Phone: ""},
		{RowNumber: 7, Phone: "+255712345678"},
	}

	groups := FindDuplicates(records)
	require.Len(t, groups, 1)
	assert.Equal(t, "255712345678", groups[0].PhoneKey)
	assert.Equal(t, []int{2, 4, 7}, groups[0].RowNumbers)
}

func TestNewCustomerFromRecord(t *testing.T) {
	points := 12.0
	c := NewCustomerFromRecord(NormalizedRecord{Name: "Jane", Phone: "+255712345678", Notes: "VIP lunch", Points: &points})

	assert.Equal(t, string(internal.ColorTagNew), c.ColorTag)
	assert.Equal(t, []string{"VIP lunch"}, c.Notes)
	assert.Equal(t, 12.0, c.Points)
	assert.True(t, c.IsActive)
}

func TestIndexMatchesEachCustomerByOwnKeys(t *testing.T) {
	canon := phone.NewE164("TZ")
	existing := []internal.Customer{
		{ID: "phone-only", Phone: "0712345678"},
		{ID: "whatsapp-only", WhatsApp: "0755123456"},
		{ID: "email-only", Email: "Only@Example.com"},
		{ID: "all-keys", Phone: "0744000111", WhatsApp: "0744000222", Email: "all@example.com"},
		{ID: "no-keys", Name: "Walk-in"},
	}
	idx := BuildIndex(existing, canon)

	for _, c := range existing {
		t.Run(c.ID, func(t *testing.T) {
			rec := NormalizedRecord{Email: NormalizeEmail(c.Email)}
			if c.Phone != "" {
				rec.Phone = canon.Canonical(c.Phone)
			}
			if c.WhatsApp != "" {
				rec.WhatsApp = canon.Canonical(c.WhatsApp)
			}

			res := Match(rec, idx)
			if c.ID == "no-keys" {
				assert.Equal(t, NoMatch, res.Outcome)
				assert.Nil(t, res.Existing)
				return
			}
			require.NotNil(t, res.Existing)
			assert.Equal(t, c.ID, res.Existing.ID)
		})
	}
}
