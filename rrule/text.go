package rrule

import (
	"strconv"
	"strings"
)

var unitNames = [...]string{
	Yearly:   "year",
	Monthly:  "month",
	Weekly:   "week",
	Daily:    "day",
	Hourly:   "hour",
	Minutely: "minute",
	Secondly: "second",
}

var monthNames = [...]string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

// Text returns a short English description of the rule, e.g.
// "every 2 weeks on Tuesday and Thursday for 8 times".
func (r *Rule) Text() string {
	o := r.opts
	var b strings.Builder

	b.WriteString("every")
	switch {
	case o.Freq == Weekly && o.Interval == 1 && isWorkWeek(o.ByWeekday):
		b.WriteString(" weekday")
	case o.Interval == 1:
		b.WriteString(" " + unitNames[o.Freq])
	default:
		b.WriteString(" " + strconv.Itoa(o.Interval) + " " + unitNames[o.Freq] + "s")
	}

	if len(o.ByMonth) > 0 {
		names := make([]string, len(o.ByMonth))
		for i, m := range o.ByMonth {
			names[i] = monthNames[m-1]
		}
		b.WriteString(" in " + joinList(names))
	}
	if len(o.ByWeekNo) > 0 {
		b.WriteString(" in week " + joinList(intStrings(o.ByWeekNo, strconv.Itoa)))
	}
	if len(o.ByYearDay) > 0 {
		b.WriteString(" on the " + joinList(intStrings(o.ByYearDay, ordinal)) + " day of the year")
	}
	if len(o.ByMonthDay) > 0 {
		b.WriteString(" on the " + joinList(intStrings(o.ByMonthDay, ordinal)))
	}
	if len(o.ByWeekday) > 0 && !(o.Freq == Weekly && o.Interval == 1 && isWorkWeek(o.ByWeekday)) {
		b.WriteString(" on " + describeWeekdays(o.ByWeekday))
	}
	if len(o.ByHour) > 0 {
		b.WriteString(" at " + joinList(intStrings(o.ByHour, strconv.Itoa)))
	}
	if len(o.ByMinute) > 0 {
		b.WriteString(" at minute " + joinList(intStrings(o.ByMinute, strconv.Itoa)))
	}
	if len(o.BySecond) > 0 {
		b.WriteString(" at second " + joinList(intStrings(o.BySecond, strconv.Itoa)))
	}
	if len(o.BySetPos) > 0 {
		b.WriteString(" keeping the " + joinList(intStrings(o.BySetPos, ordinal)) + " instance")
	}

	if n, ok := o.Count.Get(); ok {
		if n == 1 {
			b.WriteString(" for 1 time")
		} else {
			b.WriteString(" for " + strconv.Itoa(n) + " times")
		}
	} else if !o.Until.IsZero() {
		b.WriteString(" until " + o.Until.Format("January 2, 2006"))
	}
	return b.String()
}

func isWorkWeek(days []Weekday) bool {
	if len(days) != 5 {
		return false
	}
	seen := 0
	for _, w := range days {
		if w.n != 0 || w.day > FR {
			return false
		}
		seen |= 1 << w.day
	}
	return seen == 0b11111
}

func describeWeekdays(days []Weekday) string {
	names := make([]string, len(days))
	for i, w := range days {
		if w.n == 0 {
			names[i] = w.day.Name()
			continue
		}
		names[i] = "the " + ordinal(w.n) + " " + w.day.Name()
	}
	return joinList(names)
}

// ordinal renders 1 as "1st", -1 as "last" and -2 as "2nd last".
func ordinal(n int) string {
	if n == -1 {
		return "last"
	}
	if n < 0 {
		return ordinal(-n) + " last"
	}
	suffix := "th"
	if n%100 < 11 || n%100 > 13 {
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return strconv.Itoa(n) + suffix
}

func intStrings(values []int, f func(int) string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = f(v)
	}
	return out
}

func joinList(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	}
	return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
}
