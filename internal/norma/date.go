package norma

import (
	"regexp"
	"strings"
	"time"
)

// spanishMonths maps Spanish three-letter month abbreviations (upper case)
// to month numbers for the DD-MMM-YYYY form.
var spanishMonths = map[string]string{
	"ENE": "01",
	"FEB": "02",
	"MAR": "03",
	"ABR": "04",
	"MAY": "05",
	"JUN": "06",
	"JUL": "07",
	"AGO": "08",
	"SEP": "09",
	"OCT": "10",
	"NOV": "11",
	"DIC": "12",
}

var spanishDateRe = regexp.MustCompile(`^(\d{2})-([A-Za-z]{3})-(\d{4})$`)

// NormalizeDate converts DD/MM/YYYY or DD-MMM-YYYY (Spanish month
// abbreviation, any case) to YYYY-MM-DD. The second return value reports
// whether the input matched either form.
func NormalizeDate(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}

	if t, err := time.Parse("02/01/2006", s); err == nil {
		return t.Format("2006-01-02"), true
	}

	m := spanishDateRe.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	month, ok := spanishMonths[strings.ToUpper(m[2])]
	if !ok {
		return "", false
	}

	return m[3] + "-" + month + "-" + m[1], true
}
