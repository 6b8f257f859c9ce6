package pipeline

import (
	"sort"
	"strings"

	"github.com/schollz/closestmatch"

	"posimport/internal"
	"posimport/internal/util"
)

type FieldSpec struct {
	Field   internal.FieldName
	Aliases []string
}

// DefaultFieldSpecs lists fields in priority order; earlier fields win column ties.
func DefaultFieldSpecs() []FieldSpec {
	return []FieldSpec{
		{Field: internal.FieldCustomerName, Aliases: []string{"name", "full name", "customer name", "client name", "customer", "names", "jina"}},
		{Field: internal.FieldPhone, Aliases: []string{"phone", "phone number", "mobile", "mobile number", "telephone", "tel", "contact", "cell", "simu", "namba ya simu"}},
		{Field: internal.FieldEmail, Aliases: []string{"email", "e mail", "email address", "mail"}},
		{Field: internal.FieldWhatsApp, Aliases: []string{"whatsapp", "whatsapp number", "whats app", "wa number"}},
		{Field: internal.FieldGender, Aliases: []string{"gender", "sex", "jinsia"}},
		{Field: internal.FieldCity, Aliases: []string{"city", "town", "region", "location", "mji"}},
		{Field: internal.FieldBirthMonth, Aliases: []string{"birth month", "month", "month of birth", "birthday month"}},
		{Field: internal.FieldBirthDay, Aliases: []string{"birth day", "day", "day of birth", "birthday day"}},
		{Field: internal.FieldBirthday, Aliases: []string{"birthday", "dob", "date of birth", "birth date"}},
		{Field: internal.FieldReferralSource, Aliases: []string{"referral source", "referral", "source", "how did you hear", "heard from", "channel"}},
		{Field: internal.FieldLocationDescription, Aliases: []string{"location description", "location details", "address", "directions", "landmark", "street"}},
		{Field: internal.FieldNationalID, Aliases: []string{"national id", "nida", "national id number", "id number"}},
		{Field: internal.FieldReferredBy, Aliases: []string{"referred by", "referrer", "referred", "introduced by"}},
		{Field: internal.FieldColorTag, Aliases: []string{"color tag", "colour tag", "tag", "color", "category", "segment"}},
		{Field: internal.FieldNotes, Aliases: []string{"notes", "note", "comments", "comment", "remarks", "description"}},
		{Field: internal.FieldPoints, Aliases: []string{"points", "loyalty points", "pts"}},
		{Field: internal.FieldTotalSpent, Aliases: []string{"total spent", "amount spent", "total purchases", "spent", "lifetime value"}},
	}
}

type ColumnMapping struct {
	Index  int
	Score  float64
	Header string
}

type ColumnMap map[internal.FieldName]ColumnMapping

func (m ColumnMap) Has(field internal.FieldName) bool {
	_, ok := m[field]
	return ok
}

type HeaderSuggestion struct {
	Header string
	Field  internal.FieldName
	Alias  string
}

// ScoreHeader compares two already normalized strings.
func ScoreHeader(header, alias string) float64 {
	if header == "" || alias == "" {
		return 0
	}
	if header == alias {
		return 100
	}
	if strings.Contains(header, alias) || strings.Contains(alias, header) {
		short, long := len(header), len(alias)
		if short > long {
			short, long = long, short
		}
		return float64(short) / float64(long) * 80
	}

	words := []string{}
	for _, w := range strings.Fields(alias) {
		if len(w) > 2 {
			words = append(words, w)
		}
	}
	if len(words) == 0 {
		return 0
	}
	matched := 0
	for _, w := range words {
		if strings.Contains(header, w) {
			matched++
		}
	}
	return float64(matched) / float64(len(words)) * 60
}

func Detect(headers []string, specs []FieldSpec) ColumnMap {
	norm := make([]string, len(headers))
	for i, h := range headers {
		norm[i] = util.NormalizeHeader(h)
	}

	type claim struct {
		field    internal.FieldName
		priority int
		mapping  ColumnMapping
	}
	claims := []claim{}
	for priority, spec := range specs {
		best := ColumnMapping{Index: -1}
		for _, rawAlias := range spec.Aliases {
			alias := util.NormalizeHeader(rawAlias)
			for i, h := range norm {
				score := ScoreHeader(h, alias)
				if score > best.Score {
					best = ColumnMapping{Index: i, Score: score, Header: headers[i]}
				}
			}
		}
		if best.Index >= 0 && best.Score > 0 {
			claims = append(claims, claim{field: spec.Field, priority: priority, mapping: best})
		}
	}

	sort.SliceStable(claims, func(i, j int) bool {
		if claims[i].mapping.Score != claims[j].mapping.Score {
			return claims[i].mapping.Score > claims[j].mapping.Score
		}
		return claims[i].priority < claims[j].priority
	})

	out := ColumnMap{}
	taken := map[int]bool{}
	for _, c := range claims {
		if taken[c.mapping.Index] {
			continue
		}
		taken[c.mapping.Index] = true
		out[c.field] = c.mapping
	}
	return out
}

func UnmappedFields(cols ColumnMap, specs []FieldSpec) []internal.FieldName {
	out := []internal.FieldName{}
	for _, spec := range specs {
		if !cols.Has(spec.Field) {
			out = append(out, spec.Field)
		}
	}
	return out
}

// SuggestHeaders proposes the closest alias for every non-empty header no field claimed.
func SuggestHeaders(headers []string, cols ColumnMap, specs []FieldSpec) []HeaderSuggestion {
	claimed := map[int]bool{}
	for _, m := range cols {
		claimed[m.Index] = true
	}

	aliasField := map[string]internal.FieldName{}
	aliases := []string{}
	for _, spec := range specs {
		for _, a := range spec.Aliases {
			n := util.NormalizeHeader(a)
			if _, ok := aliasField[n]; ok || n == "" {
				continue
			}
			aliasField[n] = spec.Field
			aliases = append(aliases, n)
		}
	}
	if len(aliases) == 0 {
		return nil
	}
	cm := closestmatch.New(aliases, []int{2, 3})

	out := []HeaderSuggestion{}
	for i, h := range headers {
		n := util.NormalizeHeader(h)
		if claimed[i] || n == "" {
			continue
		}
		alias := cm.Closest(n)
		field, ok := aliasField[alias]
		if !ok {
			continue
		}
		out = append(out, HeaderSuggestion{Header: h, Field: field, Alias: alias})
	}
	return out
}

type DetectResult struct {
	IsImport bool
	Score    float64
	Reason   string
}

var detectKeywords = []string{"customer", "client", "contacts", "import", "wateja", "mteja", "orodha", "list"}

var spreadsheetSuffixes = []string{".csv", ".xlsx", ".xls", ".pdf"}

// DetectImportRequest scores whether a mail message carries a customer list.
func DetectImportRequest(subject, text, html string, attachmentNames []string, threshold float64) DetectResult {
	subject = strings.ToLower(subject)
	text = strings.ToLower(text)
	html = strings.ToLower(html)

	score := 0.0
	for _, kw := range detectKeywords {
		if strings.Contains(subject, kw) {
			score += 0.2
		}
		if strings.Contains(text, kw) || strings.Contains(html, kw) {
			score += 0.1
		}
	}

	phoneHits := countPhoneLike(text)
	if phoneHits >= 2 {
		score += 0.3
	} else if phoneHits == 1 {
		score += 0.1
	}

attachments:
	for _, name := range attachmentNames {
		ln := strings.ToLower(name)
		for _, suffix := range spreadsheetSuffixes {
			if strings.HasSuffix(ln, suffix) {
				score += 0.25
				break attachments
			}
		}
	}

	if strings.Contains(html, "<table") {
		score += 0.25
	}
	if score > 1 {
		score = 1
	}

	isImport := score >= threshold
	reason := "rules_negative"
	if isImport {
		reason = "rules_positive"
	}

	return DetectResult{IsImport: isImport, Score: score, Reason: reason}
}

func countPhoneLike(text string) int {
	count := 0
	for i := 0; i < len(text); i++ {
		if text[i] < '0' || text[i] > '9' {
			continue
		}
		run := 1
		for i+1 < len(text) && ((text[i+1] >= '0' && text[i+1] <= '9') || text[i+1] == ' ' || text[i+1] == '-') {
			i++
			if text[i] >= '0' && text[i] <= '9' {
				run++
			}
		}
		if run >= 9 {
			count++
		}
	}
	return count
}
