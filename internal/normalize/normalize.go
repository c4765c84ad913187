// Package normalize turns raw spreadsheet cells into typed values.
//
// Every function here is total: bad input yields "absent" (ok == false, or
// a nil / invalid nullable value), never an error or a panic. Callers
// cannot distinguish a missing cell from an unparseable one, and do not
// need to.
package normalize

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

// Clean trims s and reports whether anything meaningful is left. Empty
// strings, "n/a" in any case, and a lone "-" are placeholders for "no
// value" in the registry exports and come back as absent.
func Clean(s string) (string, bool) {
	v := strings.TrimSpace(s)
	if v == "" || v == "-" || strings.EqualFold(v, "n/a") {
		return "", false
	}
	return v, true
}

// Int parses a cleaned base-10 integer. The whole cell must be the number:
// "120 days" and "1,200" are absent rather than guessed at.
func Int(s string) (int64, bool) {
	v, ok := Clean(s)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Decimal parses a cleaned decimal quantity exactly. Currency symbols
// (₱, $, € ...) and thousands separators are stripped first, so
// "₱1,500,000.50" parses as 1500000.50.
func Decimal(s string) (decimal.Decimal, bool) {
	v, ok := Clean(s)
	if !ok {
		return decimal.Decimal{}, false
	}
	v = strings.Map(func(r rune) rune {
		if r == ',' || unicode.Is(unicode.Sc, r) || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, v)
	if v == "" {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

// usLayouts covers the month-first forms spreadsheet tools emit, which
// cast does not try.
var usLayouts = []string{
	"1/2/2006",
	"1/2/2006 15:04",
	"1/2/2006 15:04:05",
	"1/2/2006 3:04 PM",
	"1/2/2006 3:04:05 PM",
	"Jan 2, 2006",
	"January 2, 2006",
}

// Time parses a cleaned calendar date or date-time. Values without a zone
// are taken as UTC.
func Time(s string) (time.Time, bool) {
	v, ok := Clean(s)
	if !ok {
		return time.Time{}, false
	}
	// Bare numbers are not dates, even though some layouts would accept them.
	if _, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Time{}, false
	}
	if t, err := cast.ToTimeInDefaultLocationE(v, time.UTC); err == nil {
		return t, true
	}
	for _, layout := range usLayouts {
		if t, err := time.ParseInLocation(layout, v, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// OptString is Clean in nullable form.
func OptString(s string) *string {
	v, ok := Clean(s)
	if !ok {
		return nil
	}
	return &v
}

// OptInt is Int in nullable form.
func OptInt(s string) *int64 {
	n, ok := Int(s)
	if !ok {
		return nil
	}
	return &n
}

// OptDecimal is Decimal in nullable form.
func OptDecimal(s string) decimal.NullDecimal {
	d, ok := Decimal(s)
	if !ok {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

// OptTime is Time in nullable form.
func OptTime(s string) *time.Time {
	t, ok := Time(s)
	if !ok {
		return nil
	}
	return &t
}
