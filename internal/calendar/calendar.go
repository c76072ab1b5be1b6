// Package calendar holds the per-year lookup tables and proleptic
// Gregorian arithmetic used when expanding recurrence rules.
//
// Days are addressed by their zero-based index inside a year; index 0 is
// January 1st. Tables are padded with the first seven days of the next
// January so that weeks spilling over a year boundary can still be
// inspected. Weekdays are numbered Monday = 0 through Sunday = 6.
package calendar

import "time"

// MaxYear is the last year a rule is ever expanded into.
const MaxYear = 9999

var (
	monthMask365, monthMask366       []int
	monthDayMask365, monthDayMask366 []int
	negDayMask365, negDayMask366     []int
	weekdayMask                      []int
)

var (
	monthRange365 = []int{0, 31, 59, 90, 120, 151, 181, 212, 243, 273, 304, 334, 365}
	monthRange366 = []int{0, 31, 60, 91, 121, 152, 182, 213, 244, 274, 305, 335, 366}
)

func init() {
	monthMask365, monthDayMask365, negDayMask365 = buildMasks(28)
	monthMask366, monthDayMask366, negDayMask366 = buildMasks(29)

	weekdayMask = make([]int, 0, 7*55)
	for i := 0; i < 55; i++ {
		for d := 0; d < 7; d++ {
			weekdayMask = append(weekdayMask, d)
		}
	}
}

func buildMasks(february int) (months, days, negDays []int) {
	lengths := []int{31, february, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}
	for m, n := range lengths {
		for d := 1; d <= n; d++ {
			months = append(months, m+1)
			days = append(days, d)
			negDays = append(negDays, d-n-1)
		}
	}
	// first week of the following January
	for d := 1; d <= 7; d++ {
		months = append(months, 1)
		days = append(days, d)
		negDays = append(negDays, d-32)
	}
	return months, days, negDays
}

// IsLeap reports whether year is a Gregorian leap year.
func IsLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// YearLength returns the number of days in year.
func YearLength(year int) int {
	if IsLeap(year) {
		return 366
	}
	return 365
}

// DaysInMonth returns the length of month (1-12) in year.
func DaysInMonth(year, month int) int {
	switch month {
	case 2:
		if IsLeap(year) {
			return 29
		}
		return 28
	case 4, 6, 9, 11:
		return 30
	default:
		return 31
	}
}

// Weekday converts a time.Weekday to the Monday based numbering.
func Weekday(d time.Weekday) int {
	return (int(d) + 6) % 7
}

// DivMod is floor division: the remainder always has the sign of b.
func DivMod(a, b int) (int, int) {
	q, r := a/b, a%b
	if r != 0 && (r < 0) != (b < 0) {
		q--
		r += b
	}
	return q, r
}

// Mod returns the floored remainder of a / b.
func Mod(a, b int) int {
	_, r := DivMod(a, b)
	return r
}

// GCD returns the greatest common divisor of a and b.
func GCD(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	if a < 0 {
		return -a
	}
	return a
}

// Year describes the lookup tables for one calendar year.
type Year struct {
	Year         int
	Len          int
	NextLen      int
	FirstWeekday int

	// MonthMask maps a day index to its month (1-12).
	MonthMask []int
	// MonthDayMask maps a day index to its day of month (1-31).
	MonthDayMask []int
	// NegMonthDayMask maps a day index to its day of month counted from
	// the end of the month (-1 is the last day).
	NegMonthDayMask []int
	// WeekdayMask maps a day index to its weekday.
	WeekdayMask []int
	// MonthRange holds the first day index of every month plus the year
	// length, so month m spans MonthRange[m-1]:MonthRange[m].
	MonthRange []int
}

// NewYear builds the tables for year.
func NewYear(year int) *Year {
	first := Weekday(time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC).Weekday())
	y := &Year{
		Year:         year,
		Len:          YearLength(year),
		NextLen:      YearLength(year + 1),
		FirstWeekday: first,
		WeekdayMask:  weekdayMask[first:],
	}
	if y.Len == 365 {
		y.MonthMask = monthMask365
		y.MonthDayMask = monthDayMask365
		y.NegMonthDayMask = negDayMask365
		y.MonthRange = monthRange365
	} else {
		y.MonthMask = monthMask366
		y.MonthDayMask = monthDayMask366
		y.NegMonthDayMask = negDayMask366
		y.MonthRange = monthRange366
	}
	return y
}

// Index returns the day index of month/day inside the year.
func (y *Year) Index(month, day int) int {
	return y.MonthRange[month-1] + day - 1
}

// Date returns the calendar date of day index i, which may run past the
// end of the year.
func (y *Year) Date(i int) (int, time.Month, int) {
	t := time.Date(y.Year, time.January, 1+i, 0, 0, 0, 0, time.UTC)
	return t.Date()
}

// WeekNoMask marks every day index of the year that belongs to one of the
// requested week numbers. Week 1 is the first week with at least four
// days in the year, with weeks starting on wkst. Negative numbers count
// from the last week of the year. Days of the next year's week 1 and the
// previous year's last week that fall inside this year are marked too.
func (y *Year) WeekNoMask(wkst int, weeks []int) []bool {
	mask := make([]bool, y.Len+7)

	no1wkst := Mod(7-y.FirstWeekday+wkst, 7)
	firstwkst := no1wkst
	var wyearlen int
	if no1wkst >= 4 {
		no1wkst = 0
		wyearlen = y.Len + Mod(y.FirstWeekday-wkst, 7)
	} else {
		wyearlen = y.Len - no1wkst
	}
	div, mod := DivMod(wyearlen, 7)
	numweeks := div + mod/4

	markWeek := func(i int) {
		for j := 0; j < 7; j++ {
			if i >= len(mask) {
				return
			}
			mask[i] = true
			i++
			if y.WeekdayMask[i] == wkst {
				return
			}
		}
	}

	hasWeek := func(n int) bool {
		for _, w := range weeks {
			if w == n {
				return true
			}
		}
		return false
	}

	for _, n := range weeks {
		if n < 0 {
			n += numweeks + 1
		}
		if n <= 0 || n > numweeks {
			continue
		}
		var i int
		if n > 1 {
			i = no1wkst + (n-1)*7
			if no1wkst != firstwkst {
				i -= 7 - firstwkst
			}
		} else {
			i = no1wkst
		}
		markWeek(i)
	}

	if hasWeek(1) {
		// week 1 of the next year may start inside this one
		i := no1wkst + numweeks*7
		if no1wkst != firstwkst {
			i -= 7 - firstwkst
		}
		if i < y.Len {
			markWeek(i)
		}
	}

	if no1wkst != 0 {
		// the leading days belong to the last week of the previous year
		var lnumweeks int
		if !hasWeek(-1) {
			lfirst := Weekday(time.Date(y.Year-1, time.January, 1, 0, 0, 0, 0, time.UTC).Weekday())
			lno1wkst := Mod(7-lfirst+wkst, 7)
			llen := YearLength(y.Year - 1)
			if lno1wkst >= 4 {
				lnumweeks = 52 + Mod(llen+Mod(lfirst-wkst, 7), 7)/4
			} else {
				lnumweeks = 52 + Mod(y.Len-no1wkst, 7)/4
			}
		} else {
			lnumweeks = -1
		}
		if hasWeek(lnumweeks) {
			for i := 0; i < no1wkst; i++ {
				mask[i] = true
			}
		}
	}

	return mask
}

// NthWeekday selects the n-th given weekday of a period; negative n
// counts from the end of the period.
type NthWeekday struct {
	Weekday int
	N       int
}

// NthWeekdayMask marks the day indexes matching any of nths inside each of
// the [first, last) ranges.
func (y *Year) NthWeekdayMask(ranges [][2]int, nths []NthWeekday) []bool {
	mask := make([]bool, y.Len)
	for _, r := range ranges {
		first, last := r[0], r[1]-1
		for _, nth := range nths {
			var i int
			if nth.N < 0 {
				i = last + (nth.N+1)*7
				if i < 0 || i >= len(y.WeekdayMask) {
					continue
				}
				i -= Mod(y.WeekdayMask[i]-nth.Weekday, 7)
			} else {
				i = first + (nth.N-1)*7
				if i < 0 || i >= len(y.WeekdayMask) {
					continue
				}
				i += Mod(7-y.WeekdayMask[i]+nth.Weekday, 7)
			}
			if first <= i && i <= last {
				mask[i] = true
			}
		}
	}
	return mask
}
