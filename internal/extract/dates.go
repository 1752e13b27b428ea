package extract

import (
	"regexp"
	"strconv"
	"time"

	"github.com/araddon/dateparse"
)

// textDatePattern matches "Month DD, YYYY" style dates in prose, including
// abbreviated month names.
var textDatePattern = regexp.MustCompile(`\b(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\s+\d{1,2},\s+\d{4}\b`)

// dateFromText scans prose for a "Month DD, YYYY" date and parses the first
// match. Returns nil when no parseable date is present.
func dateFromText(s string) *time.Time {
	m := textDatePattern.FindString(s)
	if m == "" {
		return nil
	}
	t, err := dateparse.ParseAny(m)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}

// dateFromValue parses a loosely formatted date value (ISO timestamps,
// RFC1123, bare dates) as found in structured-data fields and feed entries.
func dateFromValue(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := dateparse.ParseAny(s)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}

// dateFromYYYYMMDD parses an 8-digit compact date embedded in a URL path,
// e.g. "20250113" → 2025-01-13.
func dateFromYYYYMMDD(digits string) *time.Time {
	if len(digits) != 8 {
		return nil
	}
	y, errY := strconv.Atoi(digits[0:4])
	m, errM := strconv.Atoi(digits[4:6])
	d, errD := strconv.Atoi(digits[6:8])
	if errY != nil || errM != nil || errD != nil {
		return nil
	}
	return validDate(y, m, d)
}

// dateFromMMDDYY parses a 6-digit compact date embedded in a URL path,
// e.g. "090525" → 2025-09-05. Two-digit years are assumed to be in the
// 2000s; this matches the URLs currently in the wild and must not be changed
// silently (stored history depends on it).
func dateFromMMDDYY(digits string) *time.Time {
	if len(digits) != 6 {
		return nil
	}
	m, errM := strconv.Atoi(digits[0:2])
	d, errD := strconv.Atoi(digits[2:4])
	y, errY := strconv.Atoi(digits[4:6])
	if errM != nil || errD != nil || errY != nil {
		return nil
	}
	return validDate(2000+y, m, d)
}

func validDate(y, m, d int) *time.Time {
	if m < 1 || m > 12 || d < 1 || d > 31 {
		return nil
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes overflow (Feb 30 → Mar 2); reject those.
	if t.Day() != d || int(t.Month()) != m {
		return nil
	}
	return &t
}
