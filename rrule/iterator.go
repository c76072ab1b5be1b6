package rrule

import (
	"slices"
	"time"

	"github.com/cyp0633/librrule/internal/calendar"
)

// Iterator is a caller-driven cursor over an occurrence stream. Next
// returns false once the stream is exhausted; a cursor cannot be rewound,
// ask the recurrence for a new one instead.
type Iterator interface {
	Next() (time.Time, bool)
}

// ruleIterator expands one rule period by period: it advances to the next
// period, builds the candidate days and times, filters them through the
// by-parts, applies BYSETPOS and buffers what survives.
type ruleIterator struct {
	r   *Rule
	loc *time.Location

	year, month, day             int
	hour, minute, second, wdaynr int

	info      *periodInfo
	timeset   []int
	remaining int
	counted   bool

	buf  []time.Time
	pos  int
	last time.Time
	done bool
}

func newRuleIterator(r *Rule) *ruleIterator {
	start := r.dtstart
	it := &ruleIterator{
		r:      r,
		loc:    start.Location(),
		year:   start.Year(),
		month:  int(start.Month()),
		day:    start.Day(),
		hour:   start.Hour(),
		minute: start.Minute(),
		second: start.Second(),
		wdaynr: calendar.Weekday(start.Weekday()),
	}
	if n, ok := r.opts.Count.Get(); ok {
		it.remaining = n
		it.counted = true
	}
	it.info = newPeriodInfo(r)
	it.info.rebuild(it.year, it.month)

	freq := r.opts.Freq
	if freq < Hourly {
		it.timeset = r.timeset
	} else if (len(r.byhour) > 0 && !slices.Contains(r.byhour, it.hour)) ||
		(freq >= Minutely && len(r.byminute) > 0 && !slices.Contains(r.byminute, it.minute)) ||
		(freq >= Secondly && len(r.bysecond) > 0 && !slices.Contains(r.bysecond, it.second)) {
		it.timeset = nil
	} else {
		it.timeset = it.subDailyTimeset()
	}
	return it
}

func (it *ruleIterator) Next() (time.Time, bool) {
	for it.pos >= len(it.buf) {
		if it.done {
			return time.Time{}, false
		}
		it.buf = it.buf[:0]
		it.pos = 0
		it.period()
	}
	t := it.buf[it.pos]
	it.pos++
	return t, true
}

// emit buffers t unless a bound stops the stream. It returns false once
// the stream is finished.
func (it *ruleIterator) emit(t time.Time) bool {
	r := it.r
	if it.done {
		return false
	}
	if r.hasUntil && t.After(r.until) {
		it.done = true
		return false
	}
	if t.Before(r.dtstart) {
		return true
	}
	// wall clock normalization around DST gaps can reorder candidates
	if !it.last.IsZero() && !t.After(it.last) {
		return true
	}
	if it.counted {
		if it.remaining == 0 {
			it.done = true
			return false
		}
		it.remaining--
	}
	it.buf = append(it.buf, t)
	it.last = t
	if it.counted && it.remaining == 0 {
		it.done = true
		return false
	}
	return true
}

func (it *ruleIterator) at(dayIndex, clock int) time.Time {
	return time.Date(it.info.year.Year, time.January, 1+dayIndex,
		clock/3600, clock/60%60, clock%60, 0, it.loc)
}

// period runs one pass of the period state machine.
func (it *ruleIterator) period() {
	r := it.r
	days, filtered := it.candidates()

	if len(r.bysetpos) > 0 && len(it.timeset) > 0 {
		var selected []time.Time
		n := len(it.timeset)
		for _, pos := range r.bysetpos {
			var daypos, timepos int
			if pos < 0 {
				daypos, timepos = calendar.DivMod(pos, n)
			} else {
				daypos, timepos = calendar.DivMod(pos-1, n)
			}
			if daypos < 0 {
				daypos += len(days)
			}
			if daypos < 0 || daypos >= len(days) {
				continue
			}
			t := it.at(days[daypos], it.timeset[timepos])
			if !slices.ContainsFunc(selected, t.Equal) {
				selected = append(selected, t)
			}
		}
		slices.SortFunc(selected, func(a, b time.Time) int { return a.Compare(b) })
		for _, t := range selected {
			if !it.emit(t) {
				return
			}
		}
	} else {
		for _, d := range days {
			for _, clock := range it.timeset {
				if !it.emit(it.at(d, clock)) {
					return
				}
			}
		}
	}

	it.advance(filtered)
}

// candidates returns the day indexes of the current period that pass
// every by-part filter, and whether any day was filtered out.
func (it *ruleIterator) candidates() ([]int, bool) {
	yr := it.info.year
	start, end := it.dayRange()

	days := make([]int, 0, end-start)
	filtered := false
	for i := start; i < end; i++ {
		if it.excluded(i, yr) {
			filtered = true
			continue
		}
		days = append(days, i)
	}
	return days, filtered
}

func (it *ruleIterator) excluded(i int, yr *calendar.Year) bool {
	r := it.r
	info := it.info
	if len(r.bymonth) > 0 && !slices.Contains(r.bymonth, yr.MonthMask[i]) {
		return true
	}
	if len(r.byweekno) > 0 && !info.weekno[i] {
		return true
	}
	if len(r.byweekday) > 0 || len(r.bynweekday) > 0 {
		plain := len(r.byweekday) > 0 && slices.Contains(r.byweekday, yr.WeekdayMask[i])
		nth := info.nthweekday != nil && i < len(info.nthweekday) && info.nthweekday[i]
		if !plain && !nth {
			return true
		}
	}
	if len(r.bymonthday) > 0 || len(r.bynmonthday) > 0 {
		if !slices.Contains(r.bymonthday, yr.MonthDayMask[i]) && !slices.Contains(r.bynmonthday, yr.NegMonthDayMask[i]) {
			return true
		}
	}
	if len(r.byyearday) > 0 {
		if i < yr.Len {
			if !slices.Contains(r.byyearday, i+1) && !slices.Contains(r.byyearday, i-yr.Len) {
				return true
			}
		} else if !slices.Contains(r.byyearday, i+1-yr.Len) && !slices.Contains(r.byyearday, i-yr.Len-yr.NextLen) {
			return true
		}
	}
	return false
}

// dayRange returns the candidate day indexes [start, end) of the period.
func (it *ruleIterator) dayRange() (int, int) {
	yr := it.info.year
	switch it.r.opts.Freq {
	case Yearly:
		return 0, yr.Len
	case Monthly:
		return yr.MonthRange[it.month-1], yr.MonthRange[it.month]
	case Weekly:
		i := yr.Index(it.month, it.day)
		start := i
		for j := 0; j < 7; j++ {
			i++
			if yr.WeekdayMask[i] == it.r.wkst {
				break
			}
		}
		return start, i
	default:
		i := yr.Index(it.month, it.day)
		return i, i + 1
	}
}

func (it *ruleIterator) subDailyTimeset() []int {
	r := it.r
	var set []int
	switch r.opts.Freq {
	case Hourly:
		for _, m := range r.byminute {
			for _, s := range r.bysecond {
				set = append(set, it.hour*3600+m*60+s)
			}
		}
		slices.Sort(set)
	case Minutely:
		for _, s := range r.bysecond {
			set = append(set, it.hour*3600+it.minute*60+s)
		}
		slices.Sort(set)
	default:
		set = []int{it.hour*3600 + it.minute*60 + it.second}
	}
	return set
}

// distance steps value by the interval, modulo base, until it lands on one
// of allowed. It returns the number of base wraps and the new value.
func (it *ruleIterator) distance(value int, allowed []int, base int) (int, int, bool) {
	wraps := 0
	for i := 1; i <= base; i++ {
		var div int
		div, value = calendar.DivMod(value+it.r.opts.Interval, base)
		wraps += div
		if slices.Contains(allowed, value) {
			return wraps, value, true
		}
	}
	return 0, 0, false
}

// advance moves the cursor to the next period.
func (it *ruleIterator) advance(filtered bool) {
	r := it.r
	interval := r.opts.Interval
	fixday := false

	switch r.opts.Freq {
	case Yearly:
		it.year += interval
		if it.year > calendar.MaxYear {
			it.done = true
			return
		}
		it.info.rebuild(it.year, it.month)
	case Monthly:
		it.month += interval
		if it.month > 12 {
			div, mod := calendar.DivMod(it.month, 12)
			it.month = mod
			it.year += div
			if it.month == 0 {
				it.month = 12
				it.year--
			}
			if it.year > calendar.MaxYear {
				it.done = true
				return
			}
		}
		it.info.rebuild(it.year, it.month)
	case Weekly:
		if r.wkst > it.wdaynr {
			it.day += -(it.wdaynr + 1 + (6 - r.wkst)) + interval*7
		} else {
			it.day += -(it.wdaynr - r.wkst) + interval*7
		}
		it.wdaynr = r.wkst
		fixday = true
	case Daily:
		it.day += interval
		fixday = true
	case Hourly:
		if filtered {
			// jump to the last step of the day
			it.hour += ((23 - it.hour) / interval) * interval
		}
		var ndays int
		if len(r.byhour) > 0 {
			var ok bool
			ndays, it.hour, ok = it.distance(it.hour, r.byhour, 24)
			if !ok {
				it.done = true
				return
			}
		} else {
			ndays, it.hour = calendar.DivMod(it.hour+interval, 24)
		}
		if ndays != 0 {
			it.day += ndays
			fixday = true
		}
		it.timeset = it.subDailyTimeset()
	case Minutely:
		if filtered {
			it.minute += ((1439 - (it.hour*60 + it.minute)) / interval) * interval
		}
		const rate = 24 * 60
		valid := false
		for j := 0; j < rate/calendar.GCD(interval, rate); j++ {
			var nhours int
			if len(r.byminute) > 0 {
				var ok bool
				nhours, it.minute, ok = it.distance(it.minute, r.byminute, 60)
				if !ok {
					break
				}
			} else {
				nhours, it.minute = calendar.DivMod(it.minute+interval, 60)
			}
			var div int
			div, it.hour = calendar.DivMod(it.hour+nhours, 24)
			if div != 0 {
				it.day += div
				fixday = true
			}
			if len(r.byhour) == 0 || slices.Contains(r.byhour, it.hour) {
				valid = true
				break
			}
		}
		if !valid {
			it.done = true
			return
		}
		it.timeset = it.subDailyTimeset()
	case Secondly:
		if filtered {
			it.second += ((86399 - (it.hour*3600 + it.minute*60 + it.second)) / interval) * interval
		}
		const rate = 24 * 3600
		valid := false
		for j := 0; j < rate/calendar.GCD(interval, rate); j++ {
			var nminutes int
			if len(r.bysecond) > 0 {
				var ok bool
				nminutes, it.second, ok = it.distance(it.second, r.bysecond, 60)
				if !ok {
					break
				}
			} else {
				nminutes, it.second = calendar.DivMod(it.second+interval, 60)
			}
			var div int
			div, it.minute = calendar.DivMod(it.minute+nminutes, 60)
			if div != 0 {
				it.hour += div
				div, it.hour = calendar.DivMod(it.hour, 24)
				if div != 0 {
					it.day += div
					fixday = true
				}
			}
			if (len(r.byhour) == 0 || slices.Contains(r.byhour, it.hour)) &&
				(len(r.byminute) == 0 || slices.Contains(r.byminute, it.minute)) &&
				(len(r.bysecond) == 0 || slices.Contains(r.bysecond, it.second)) {
				valid = true
				break
			}
		}
		if !valid {
			it.done = true
			return
		}
		it.timeset = it.subDailyTimeset()
	}

	if fixday && it.day > 28 {
		dim := calendar.DaysInMonth(it.year, it.month)
		if it.day > dim {
			for it.day > dim {
				it.day -= dim
				it.month++
				if it.month == 13 {
					it.month = 1
					it.year++
					if it.year > calendar.MaxYear {
						it.done = true
						return
					}
				}
				dim = calendar.DaysInMonth(it.year, it.month)
			}
			it.info.rebuild(it.year, it.month)
		}
	}
}

// periodInfo caches the masks of the year and month being expanded.
type periodInfo struct {
	r          *Rule
	year       *calendar.Year
	lastYear   int
	lastMonth  int
	weekno     []bool
	nthweekday []bool
}

func newPeriodInfo(r *Rule) *periodInfo {
	return &periodInfo{r: r}
}

func (p *periodInfo) rebuild(year, month int) {
	r := p.r
	yearChanged := p.year == nil || year != p.lastYear
	if yearChanged {
		p.year = calendar.NewYear(year)
		p.weekno = nil
		if len(r.byweekno) > 0 {
			p.weekno = p.year.WeekNoMask(r.wkst, r.byweekno)
		}
	}

	if len(r.bynweekday) > 0 && (yearChanged || month != p.lastMonth) {
		var ranges [][2]int
		mr := p.year.MonthRange
		switch r.opts.Freq {
		case Yearly:
			if len(r.bymonth) > 0 {
				for _, m := range r.bymonth {
					ranges = append(ranges, [2]int{mr[m-1], mr[m]})
				}
			} else {
				ranges = [][2]int{{0, p.year.Len}}
			}
		case Monthly:
			ranges = [][2]int{{mr[month-1], mr[month]}}
		}
		p.nthweekday = nil
		if len(ranges) > 0 {
			p.nthweekday = p.year.NthWeekdayMask(ranges, r.bynweekday)
		}
	}

	p.lastYear = year
	p.lastMonth = month
}
