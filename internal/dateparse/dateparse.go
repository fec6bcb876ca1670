// Package dateparse parses the loosely formatted dates found in bank
// statements and user input, and derives month bucket keys from them.
package dateparse

import (
	"strings"
	"time"
)

// IndexLayouts are tried, in order, when deriving a month bucket or a sort
// score. Day and month accept one or two digits. Day/month order is
// ambiguous for dates like 05/03/2024: the first matching layout (month
// first) wins.
var IndexLayouts = []string{
	"2006-1-2",
	"1/2/2006",
	"1-2-2006",
	"2/1/2006",
	"2-1-2006",
}

// NormalizeLayouts extends IndexLayouts with the spelled-out month forms
// that statement extractions commonly produce.
var NormalizeLayouts = append(append([]string{}, IndexLayouts...),
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"2 January 2006",
)

const (
	// OutputLayout is the canonical YYYY-MM-DD form.
	OutputLayout = "2006-01-02"
	monthLayout  = "01/2006"
)

// Parse tries IndexLayouts and returns the date at UTC midnight.
func Parse(s string) (time.Time, bool) {
	return parseWith(s, IndexLayouts)
}

func parseWith(s string, layouts []string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Normalize rewrites s as YYYY-MM-DD when any known layout matches, else
// returns s unchanged.
func Normalize(s string) string {
	if t, ok := parseWith(s, NormalizeLayouts); ok {
		return t.Format(OutputLayout)
	}
	return s
}

// MonthKey formats t as the MM/YYYY bucket key.
func MonthKey(t time.Time) string {
	return t.UTC().Format(monthLayout)
}

// ValidMonthKey reports whether s is a well formed MM/YYYY key.
func ValidMonthKey(s string) bool {
	_, err := time.Parse(monthLayout, s)
	return err == nil
}

// IndexPosition returns the month bucket and epoch-second score used to
// index a transaction dated s. Unparseable dates are indexed at now.
func IndexPosition(s string, now time.Time) (month string, score int64) {
	t, ok := Parse(s)
	if !ok {
		t = now
	}
	return MonthKey(t), t.Unix()
}
