package rrule

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Day is a day of the week, Monday = 0 through Sunday = 6.
type Day int

const (
	MO Day = iota
	TU
	WE
	TH
	FR
	SA
	SU
)

var dayCodes = [...]string{"MO", "TU", "WE", "TH", "FR", "SA", "SU"}

var dayNames = [...]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

func (d Day) valid() bool {
	return d >= MO && d <= SU
}

// String returns the two-letter RFC 5545 code.
func (d Day) String() string {
	if d.valid() {
		return dayCodes[d]
	}
	return fmt.Sprintf("Day(%d)", int(d))
}

// Name returns the English name of the day.
func (d Day) Name() string {
	if d.valid() {
		return dayNames[d]
	}
	return d.String()
}

// Weekday returns the plain weekday matching every d of a period.
func (d Day) Weekday() Weekday {
	return Weekday{day: d}
}

// Nth returns the n-th d of the generation period. Positive n counts from
// the start of the period, negative n from its end.
func (d Day) Nth(n int) Weekday {
	return Weekday{day: d, n: n}
}

// DayOf converts a time.Weekday.
func DayOf(d time.Weekday) Day {
	return Day((int(d) + 6) % 7)
}

// Days returns plain weekdays for each of ds.
func Days(ds ...Day) []Weekday {
	out := make([]Weekday, len(ds))
	for i, d := range ds {
		out[i] = d.Weekday()
	}
	return out
}

// Weekday is a BYDAY entry: a day of the week with an optional ordinal
// selecting one occurrence of that day within the period. The zero
// ordinal means every such day.
type Weekday struct {
	day Day
	n   int
}

// NewWeekday validates day and returns the n-th day of the period.
func NewWeekday(day Day, n int) (Weekday, error) {
	if !day.valid() {
		return Weekday{}, invalid("weekday", "day %d out of range", int(day))
	}
	return Weekday{day: day, n: n}, nil
}

// Day returns the day of the week.
func (w Weekday) Day() Day { return w.day }

// N returns the ordinal, 0 when none was given.
func (w Weekday) N() int { return w.n }

// String returns the RFC 5545 form, e.g. "MO", "+1MO" or "-1FR".
func (w Weekday) String() string {
	if w.n == 0 {
		return w.day.String()
	}
	return fmt.Sprintf("%+d%s", w.n, w.day)
}

var weekdayToken = regexp.MustCompile(`^([+-]?[0-9]{1,2})?(MO|TU|WE|TH|FR|SA|SU)$`)

// ParseWeekday parses a BYDAY token such as "TU", "+2WE" or "-1SU".
func ParseWeekday(s string) (Weekday, error) {
	m := weekdayToken.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(s)))
	if m == nil {
		return Weekday{}, malformed(s, -1, "invalid weekday")
	}
	day, _ := parseDay(m[2])
	if m[1] == "" {
		return day.Weekday(), nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n == 0 {
		return Weekday{}, malformed(s, -1, "weekday ordinal must be a nonzero integer")
	}
	return day.Nth(n), nil
}

func parseDay(s string) (Day, bool) {
	upper := strings.ToUpper(strings.TrimSpace(s))
	for i, code := range dayCodes {
		if code == upper {
			return Day(i), true
		}
	}
	return 0, false
}
