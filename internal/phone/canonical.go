package phone

import (
	"strings"

	"github.com/nyaruka/phonenumbers"

	"posimport/internal/util"
)

type Canonicalizer interface {
	Canonical(raw string) string
}

type E164 struct {
	Region string
}

func NewE164(region string) E164 {
	region = strings.ToUpper(strings.TrimSpace(region))
	if region == "" {
		region = "TZ"
	}
	return E164{Region: region}
}

// Canonical returns the E.164 form when the number parses for the region, or
// the bare digits (with any leading plus kept) when it does not.
func (c E164) Canonical(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	digits := util.Digits(raw)
	if digits == "" {
		return ""
	}
	num, err := phonenumbers.Parse(raw, c.Region)
	if err == nil && phonenumbers.IsPossibleNumber(num) {
		return phonenumbers.Format(num, phonenumbers.E164)
	}
	if strings.HasPrefix(raw, "+") {
		return "+" + digits
	}
	return digits
}

func Key(c Canonicalizer, raw string) string {
	return util.Digits(c.Canonical(raw))
}
