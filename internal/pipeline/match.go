package pipeline

import (
	"strings"

	"posimport/internal"
	"posimport/internal/phone"
	"posimport/internal/util"
)

type MatchOutcome string

const (
	NoMatch          MatchOutcome = "no_match"
	MatchedUpdatable MatchOutcome = "matched_updatable"
	MatchedNoChange  MatchOutcome = "matched_no_change"
)

type MatchResult struct {
	Outcome  MatchOutcome
	Existing *internal.Customer
	Via      string
	Patch    internal.CustomerPatch
}

// Index looks existing customers up by phone key, whatsapp key and lowercase email.
// Later customers overwrite earlier ones on the same key.
type Index struct {
	canon      phone.Canonicalizer
	byPhone    map[string]*internal.Customer
	byWhatsApp map[string]*internal.Customer
	byEmail    map[string]*internal.Customer
}

func BuildIndex(existing []internal.Customer, canon phone.Canonicalizer) *Index {
	if canon == nil {
		canon = phone.NewE164("")
	}
	idx := &Index{
		canon:      canon,
		byPhone:    map[string]*internal.Customer{},
		byWhatsApp: map[string]*internal.Customer{},
		byEmail:    map[string]*internal.Customer{},
	}
	for _, c := range existing {
		idx.Add(c)
	}
	return idx
}

func (idx *Index) Add(c internal.Customer) {
	ref := &c
	if key := phone.Key(idx.canon, c.Phone); key != "" {
		idx.byPhone[key] = ref
	}
	if key := phone.Key(idx.canon, c.WhatsApp); key != "" {
		idx.byWhatsApp[key] = ref
	}
	if email := NormalizeEmail(c.Email); email != "" {
		idx.byEmail[email] = ref
	}
}

func (idx *Index) Size() int {
	seen := map[*internal.Customer]struct{}{}
	for _, m := range []map[string]*internal.Customer{idx.byPhone, idx.byWhatsApp, idx.byEmail} {
		for _, c := range m {
			seen[c] = struct{}{}
		}
	}
	return len(seen)
}

func (idx *Index) lookup(rec NormalizedRecord) (*internal.Customer, string) {
	phoneKey := util.Digits(rec.Phone)
	waKey := util.Digits(rec.WhatsApp)
	if phoneKey != "" {
		if c, ok := idx.byPhone[phoneKey]; ok {
			return c, "phone"
		}
		if c, ok := idx.byWhatsApp[phoneKey]; ok {
			return c, "phone_whatsapp"
		}
	}
	if waKey != "" {
		if c, ok := idx.byWhatsApp[waKey]; ok {
			return c, "whatsapp"
		}
	}
	if rec.Email != "" {
		if c, ok := idx.byEmail[strings.ToLower(rec.Email)]; ok {
			return c, "email"
		}
	}
	return nil, ""
}

func Match(rec NormalizedRecord, idx *Index) MatchResult {
	existing, via := idx.lookup(rec)
	if existing == nil {
		return MatchResult{Outcome: NoMatch}
	}
	patch := FillPatch(rec, *existing)
	outcome := MatchedNoChange
	if !patch.Empty() {
		outcome = MatchedUpdatable
	}
	found := *existing
	return MatchResult{Outcome: outcome, Existing: &found, Via: via, Patch: patch}
}

// FillPatch sets only the fillable fields that the import has and the existing customer lacks.
func FillPatch(rec NormalizedRecord, existing internal.Customer) internal.CustomerPatch {
	var patch internal.CustomerPatch
	fill := func(dst **string, incoming, current string) {
		if strings.TrimSpace(incoming) != "" && strings.TrimSpace(current) == "" {
			v := incoming
			*dst = &v
		}
	}
	fill(&patch.Email, rec.Email, existing.Email)
	fill(&patch.Gender, string(rec.Gender), existing.Gender)
	fill(&patch.City, rec.City, existing.City)
	fill(&patch.WhatsApp, rec.WhatsApp, existing.WhatsApp)
	fill(&patch.BirthMonth, rec.BirthMonth, existing.BirthMonth)
	fill(&patch.BirthDay, rec.BirthDay, existing.BirthDay)
	fill(&patch.ReferralSource, rec.ReferralSource, existing.ReferralSource)
	fill(&patch.LocationDescription, rec.LocationDescription, existing.LocationDescription)
	fill(&patch.NationalID, rec.NationalID, existing.NationalID)
	fill(&patch.ReferredBy, rec.ReferredBy, existing.ReferredBy)
	return patch
}

type DuplicateGroup struct {
	PhoneKey   string
	RowNumbers []int
}

func FindDuplicates(records []NormalizedRecord) []DuplicateGroup {
	order := []string{}
	groups := map[string][]int{}
	for _, rec := range records {
		key := util.Digits(rec.Phone)
		if key == "" {
			continue
		}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], rec.RowNumber)
	}

	out := []DuplicateGroup{}
	for _, key := range order {
		if rows := groups[key]; len(rows) > 1 {
			out = append(out, DuplicateGroup{PhoneKey: key, RowNumbers: rows})
		}
	}
	return out
}

func NewCustomerFromRecord(rec NormalizedRecord) internal.Customer {
	c := internal.Customer{
		Name:                rec.Name,
		Phone:               rec.Phone,
		Email:               rec.Email,
		WhatsApp:            rec.WhatsApp,
		Gender:              string(rec.Gender),
		City:                rec.City,
		BirthMonth:          rec.BirthMonth,
		BirthDay:            rec.BirthDay,
		ReferralSource:      rec.ReferralSource,
		LocationDescription: rec.LocationDescription,
		NationalID:          rec.NationalID,
		ReferredBy:          rec.ReferredBy,
		ColorTag:            string(rec.ColorTag),
		Notes:               []string{},
		IsActive:            true,
	}
	if c.ColorTag == "" {
		c.ColorTag = string(internal.ColorTagNew)
	}
	if rec.Notes != "" {
		c.Notes = []string{rec.Notes}
	}
	if rec.Points != nil {
		c.Points = *rec.Points
	}
	if rec.TotalSpent != nil {
		c.TotalSpent = *rec.TotalSpent
	}
	return c
}
