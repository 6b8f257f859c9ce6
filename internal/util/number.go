package util

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

var (
	reThousandDot   = regexp.MustCompile(`^\d{1,3}(?:\.\d{3})+$`)
	reThousandComma = regexp.MustCompile(`^\d{1,3}(?:,\d{3})+$`)
	reCurrency      = regexp.MustCompile(`(?i)^(tshs|tsh|tzs|sh|usd|kes|\$)\.?`)
)

var ErrNotANumber = eris.New("not a number")

// ParseAmount reads points and money cells such as "1 000", "1,5", "1.000" or "TSh 25,000".
func ParseAmount(input string) (float64, error) {
	s := strings.ReplaceAll(input, " ", " ")
	s = strings.TrimSpace(s)
	s = reCurrency.ReplaceAllString(s, "")
	s = strings.TrimSpace(strings.TrimSuffix(strings.ToLower(s), "/="))
	if s == "" {
		return 0, eris.Wrap(ErrNotANumber, "empty amount")
	}
	parsed, err := strconv.ParseFloat(normalizeNumericToken(s), 64)
	if err != nil {
		return 0, eris.Wrapf(ErrNotANumber, "parse amount %q", input)
	}
	return parsed, nil
}

func normalizeNumericToken(token string) string {
	compact := strings.ReplaceAll(token, " ", "")
	if reThousandDot.MatchString(compact) {
		return strings.ReplaceAll(compact, ".", "")
	}
	if reThousandComma.MatchString(compact) {
		return strings.ReplaceAll(compact, ",", "")
	}
	if strings.Contains(compact, ",") && !strings.Contains(compact, ".") {
		return strings.ReplaceAll(compact, ",", ".")
	}
	if strings.Contains(compact, ",") && strings.Contains(compact, ".") {
		return strings.ReplaceAll(compact, ",", "")
	}
	return compact
}
