package pipeline

import (
	"regexp"
	"strconv"
	"strings"

	"posimport/internal"
	"posimport/internal/phone"
	"posimport/internal/util"
)

type NormalizedRecord struct {
	RowNumber           int
	Name                string
	Phone               string
	Email               string
	WhatsApp            string
	Gender              internal.Gender
	City                string
	BirthMonth          string
	BirthDay            string
	ReferralSource      string
	LocationDescription string
	NationalID          string
	ReferredBy          string
	ColorTag            internal.ColorTag
	Notes               string
	Points              *float64
	TotalSpent          *float64

	RawPoints     string
	RawTotalSpent string
}

// Value returns the normalized string form of a field, empty when absent.
func (r NormalizedRecord) Value(field internal.FieldName) string {
	switch field {
	case internal.FieldCustomerName:
		return r.Name
	case internal.FieldPhone:
		return r.Phone
	case internal.FieldEmail:
		return r.Email
	case internal.FieldWhatsApp:
		return r.WhatsApp
	case internal.FieldGender:
		return string(r.Gender)
	case internal.FieldCity:
		return r.City
	case internal.FieldBirthMonth:
		return r.BirthMonth
	case internal.FieldBirthDay:
		return r.BirthDay
	case internal.FieldBirthday:
		if r.BirthMonth == "" {
			return ""
		}
		return strings.TrimSpace(r.BirthMonth + " " + r.BirthDay)
	case internal.FieldReferralSource:
		return r.ReferralSource
	case internal.FieldLocationDescription:
		return r.LocationDescription
	case internal.FieldNationalID:
		return r.NationalID
	case internal.FieldReferredBy:
		return r.ReferredBy
	case internal.FieldColorTag:
		return string(r.ColorTag)
	case internal.FieldNotes:
		return r.Notes
	case internal.FieldPoints:
		return r.RawPoints
	case internal.FieldTotalSpent:
		return r.RawTotalSpent
	default:
		return ""
	}
}

type Normalizer struct {
	Phone phone.Canonicalizer
}

func NewNormalizer(canon phone.Canonicalizer) Normalizer {
	if canon == nil {
		canon = phone.NewE164("")
	}
	return Normalizer{Phone: canon}
}

func (n Normalizer) NormalizeRow(row []string, rowNumber int, cols ColumnMap) NormalizedRecord {
	cell := func(field internal.FieldName) string {
		m, ok := cols[field]
		if !ok || m.Index < 0 || m.Index >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[m.Index])
	}

	rec := NormalizedRecord{
		RowNumber:           rowNumber,
		Name:                NormalizeName(cell(internal.FieldCustomerName)),
		Phone:               n.Phone.Canonical(cell(internal.FieldPhone)),
		Email:               NormalizeEmail(cell(internal.FieldEmail)),
		WhatsApp:            n.Phone.Canonical(cell(internal.FieldWhatsApp)),
		Gender:              NormalizeGender(cell(internal.FieldGender)),
		City:                NormalizeCity(cell(internal.FieldCity)),
		BirthMonth:          NormalizeBirthMonth(cell(internal.FieldBirthMonth)),
		BirthDay:            NormalizeBirthDay(cell(internal.FieldBirthDay)),
		ReferralSource:      NormalizeReferralSource(cell(internal.FieldReferralSource)),
		LocationDescription: util.CollapseSpaces(cell(internal.FieldLocationDescription)),
		NationalID:          util.CollapseSpaces(cell(internal.FieldNationalID)),
		ReferredBy:          NormalizeName(cell(internal.FieldReferredBy)),
		ColorTag:            NormalizeColorTag(cell(internal.FieldColorTag)),
		Notes:               cell(internal.FieldNotes),
		RawPoints:           cell(internal.FieldPoints),
		RawTotalSpent:       cell(internal.FieldTotalSpent),
	}

	if rec.BirthMonth == "" && rec.BirthDay == "" {
		rec.BirthMonth, rec.BirthDay = ParseBirthday(cell(internal.FieldBirthday))
	}
	if rec.RawPoints != "" {
		if v, err := util.ParseAmount(rec.RawPoints); err == nil {
			rec.Points = util.FloatPtr(v)
		}
	}
	if rec.RawTotalSpent != "" {
		if v, err := util.ParseAmount(rec.RawTotalSpent); err == nil {
			rec.TotalSpent = util.FloatPtr(v)
		}
	}

	return rec
}

func NormalizeName(raw string) string {
	s := util.CollapseSpaces(raw)
	if len([]rune(s)) > 1 && util.IsAllUpper(s) {
		return util.TitleCase(s)
	}
	return s
}

func NormalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

func NormalizeGender(raw string) internal.Gender {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return ""
	case "male", "m", "man", "mwanaume", "me":
		return internal.GenderMale
	case "female", "f", "woman", "mwanamke", "ke":
		return internal.GenderFemale
	default:
		return internal.GenderOther
	}
}

var cityAbbreviations = map[string]string{
	"dsm":           "Dar es Salaam",
	"dar":           "Dar es Salaam",
	"dar es salaam": "Dar es Salaam",
	"dar-es-salaam": "Dar es Salaam",
	"daressalaam":   "Dar es Salaam",
	"moro":          "Morogoro",
	"mza":           "Mwanza",
	"ars":           "Arusha",
	"aru":           "Arusha",
	"dom":           "Dodoma",
	"dodo":          "Dodoma",
	"znz":           "Zanzibar",
	"unguja":        "Zanzibar",
	"kili":          "Kilimanjaro",
	"tab":           "Tabora",
	"sgd":           "Singida",
	"bkb":           "Bukoba",
	"kbh":           "Kibaha",
	"shy":           "Shinyanga",
	"mtw":           "Mtwara",
	"mby":           "Mbeya",
	"irg":           "Iringa",
	"kgm":           "Kigoma",
	"tng":           "Tanga",
	"sumba":         "Sumbawanga",
}

func NormalizeCity(raw string) string {
	s := util.CollapseSpaces(raw)
	if s == "" {
		return ""
	}
	if city, ok := cityAbbreviations[strings.ToLower(s)]; ok {
		return city
	}
	if util.IsAllUpper(s) {
		return util.TitleCase(s)
	}
	return s
}

var referralSynonyms = map[string]string{
	"instagram":      "Instagram",
	"ig":             "Instagram",
	"insta":          "Instagram",
	"facebook":       "Facebook",
	"fb":             "Facebook",
	"walk-in":        "Walk-in",
	"walkin":         "Walk-in",
	"walk in":        "Walk-in",
	"referral":       "Referral",
	"referred":       "Referral",
	"friend":         "Referral",
	"word of mouth":  "Referral",
	"whatsapp":       "WhatsApp",
	"whats app":      "WhatsApp",
	"tiktok":         "TikTok",
	"tik tok":        "TikTok",
	"google":         "Google",
	"twitter":        "Twitter",
	"radio":          "Radio",
	"tv":             "TV",
	"television":     "TV",
	"website":        "Website",
	"web":            "Website",
	"sms":            "SMS",
	"returning":      "Returning Customer",
	"repeat":         "Returning Customer",
	"existing":       "Returning Customer",
	"billboard":      "Billboard",
	"flyer":          "Flyer",
	"poster":         "Flyer",
	"market":         "Market",
	"event":          "Event",
	"exhibition":     "Event",
	"youtube":        "YouTube",
	"linkedin":       "LinkedIn",
	"snapchat":       "Snapchat",
	"telegram":       "Telegram",
	"email campaign": "Email",
	"email":          "Email",
}

func NormalizeReferralSource(raw string) string {
	s := util.CollapseSpaces(raw)
	if canonical, ok := referralSynonyms[strings.ToLower(s)]; ok {
		return canonical
	}
	return s
}

func NormalizeColorTag(raw string) internal.ColorTag {
	switch strings.ToLower(util.CollapseSpaces(raw)) {
	case "vip", "gold", "premium", "loyal", "platinum":
		return internal.ColorTagVIP
	case "complainer", "complaint", "complaints", "complaining", "difficult", "red":
		return internal.ColorTagComplainer
	case "purchased", "purchase", "buyer", "bought", "paid", "green":
		return internal.ColorTagPurchased
	default:
		return internal.ColorTagNew
	}
}

var monthNames = []string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

var (
	reDigitRun   = regexp.MustCompile(`\d+`)
	reDateSplit  = regexp.MustCompile(`[/.\-]`)
	reOrdinalDay = regexp.MustCompile(`(?i)^(\d{1,2})(st|nd|rd|th)$`)
)

func monthFromText(s string) string {
	lower := strings.ToLower(s)
	for _, name := range monthNames {
		if strings.Contains(lower, strings.ToLower(name[:3])) {
			return name
		}
	}
	return ""
}

func stripZeros(s string) string {
	n, err := strconv.Atoi(s)
	if err != nil {
		return s
	}
	return strconv.Itoa(n)
}

// ParseBirthday splits a combined birthday cell into (month, day).
func ParseBirthday(raw string) (string, string) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", ""
	}

	if month := monthFromText(s); month != "" {
		day := reDigitRun.FindString(s)
		if day != "" {
			day = stripZeros(day)
		}
		return month, day
	}

	parts := reDateSplit.Split(s, -1)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if len(parts) < 2 {
		return "", ""
	}

	if len(parts) >= 3 && len(parts[0]) == 4 {
		m, errM := strconv.Atoi(parts[1])
		d, errD := strconv.Atoi(parts[2])
		if errM != nil || errD != nil || m < 1 || m > 12 || d < 1 || d > 31 {
			return "", ""
		}
		return strconv.Itoa(m), strconv.Itoa(d)
	}

	a, errA := strconv.Atoi(parts[0])
	b, errB := strconv.Atoi(parts[1])
	if errA != nil || errB != nil || a < 1 || b < 1 || a > 31 || b > 31 {
		return "", ""
	}
	switch {
	case a > 12 && b <= 12:
		return strconv.Itoa(b), strconv.Itoa(a)
	case b > 12 && a <= 12:
		return strconv.Itoa(a), strconv.Itoa(b)
	case a <= 12 && b <= 12:
		return strconv.Itoa(a), strconv.Itoa(b)
	default:
		return "", ""
	}
}

func NormalizeBirthMonth(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if _, err := strconv.Atoi(s); err == nil {
		return stripZeros(s)
	}
	if month := monthFromText(s); month != "" {
		return month
	}
	return s
}

func NormalizeBirthDay(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if m := reOrdinalDay.FindStringSubmatch(s); m != nil {
		return stripZeros(m[1])
	}
	return stripZeros(s)
}

// MonthNumber accepts a month number or an English month name.
func MonthNumber(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n, n >= 1 && n <= 12
	}
	for i, name := range monthNames {
		if strings.EqualFold(s, name) {
			return i + 1, true
		}
	}
	return 0, false
}
