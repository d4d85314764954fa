// Package normalize converts raw spreadsheet cells into canonical values.
//
// Cells arrive as loosely formatted strings ("₹1,25,000", "500 kg",
// "45901", "n/a"). Every function here is total: malformed input yields a
// zero value, never an error or panic.
package normalize

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Serial dates count days from 1899-12-30; 25569 is the serial of 1970-01-01.
const (
	unixEpochSerial = 25569
	minSerial       = 30000
	maxSerial       = 2958466
)

var (
	// stripped before numeric parsing
	amountNoise = strings.NewReplacer(
		",", "",
		"₹", "",
		"$", "",
		"€", "",
		"£", "",
		"¥", "",
		" ", "",
		"\u00a0", "",
	)

	leadingNumber = regexp.MustCompile(`^[-+]?(\d+\.?\d*|\.\d+)([eE][-+]?\d+)?`)

	emptyTokens = map[string]struct{}{
		"":          {},
		"0":         {},
		"n/a":       {},
		"na":        {},
		"-":         {},
		"null":      {},
		"undefined": {},
	}

	dateLayouts = []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		"2006-01-02",
		"2006/01/02",
		"01/02/2006 15:04:05",
		"01/02/2006",
		"1/2/2006 15:04:05",
		"1/2/2006",
		"02-Jan-2006",
		"2-Jan-2006",
		"2 Jan 2006",
		"2 January 2006",
		"Jan 2, 2006",
		"January 2, 2006",
		"Jan 2 2006",
	}
)

// Amount parses a monetary or quantity cell into a float.
//
// Currency symbols, thousands separators and whitespace are removed and the
// leading number is taken, so trailing units ("500 kg", "12%") are ignored.
// Accounting negatives "(1,000)" become -1000. Anything unparseable is 0.
//
// Examples:
//
//	Amount("₹1,25,000") -> 125000
//	Amount("1,234.50 kg") -> 1234.5
//	Amount(nil) -> 0
func Amount(v any) float64 {
	switch x := v.(type) {
	case nil:
		return 0
	case float64:
		return finite(x)
	case float32:
		return finite(float64(x))
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case int32:
		return float64(x)
	case string:
		return parseAmount(x)
	case fmt.Stringer:
		return parseAmount(x.String())
	default:
		return 0
	}
}

func parseAmount(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = strings.TrimSuffix(strings.TrimPrefix(s, "("), ")")
	}
	s = amountNoise.Replace(s)
	m := leadingNumber.FindString(s)
	if m == "" {
		return 0
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0
	}
	if neg {
		f = -f
	}
	return finite(f)
}

func finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// IsEmpty reports whether a cell is absent or holds a placeholder token
// ("", "0", "n/a", "na", "-", "null", "undefined"), case-insensitively.
func IsEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		_, ok := emptyTokens[strings.ToLower(strings.TrimSpace(x))]
		return ok
	default:
		_, ok := emptyTokens[strings.ToLower(strings.TrimSpace(fmt.Sprint(x)))]
		return ok
	}
}

// Date parses a calendar date from either a human/ISO string or a
// spreadsheet serial number. Numbers are accepted only in the serial range
// that maps to years 1982..9999. The time of day is kept only when its hour
// or minute is nonzero; otherwise the result is midnight UTC.
func Date(v any) (time.Time, bool) {
	switch x := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		if x.IsZero() {
			return time.Time{}, false
		}
		return dateOnly(x.UTC()), true
	case float64:
		return fromSerial(x)
	case int:
		return fromSerial(float64(x))
	case int64:
		return fromSerial(float64(x))
	case string:
		return parseDate(x)
	default:
		return parseDate(fmt.Sprint(x))
	}
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if IsEmpty(s) {
		return time.Time{}, false
	}
	if f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64); err == nil {
		return fromSerial(f)
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return dateOnly(t.UTC()), true
		}
	}
	return time.Time{}, false
}

// SerialToTime converts a spreadsheet serial day number to UTC without any
// range check.
func SerialToTime(serial float64) time.Time {
	ms := math.Round((serial - unixEpochSerial) * 86400 * 1000)
	return time.UnixMilli(int64(ms)).UTC()
}

func fromSerial(serial float64) (time.Time, bool) {
	if math.IsNaN(serial) || serial < minSerial || serial > maxSerial {
		return time.Time{}, false
	}
	return dateOnly(SerialToTime(serial)), true
}

func dateOnly(t time.Time) time.Time {
	if t.Hour() == 0 && t.Minute() == 0 {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	}
	return t
}
