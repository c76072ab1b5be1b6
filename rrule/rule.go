package rrule

import (
	"iter"
	"slices"
	"time"

	"github.com/samber/mo"

	"github.com/cyp0633/librrule/internal/calendar"
)

// Options is the programmatic description of a rule. Zero values mean
// "unset": an interval of 0 is treated as 1, a zero Until means no end
// date, and empty by-part slices apply no filter. Wkst defaults to MO.
type Options struct {
	Freq     Frequency
	Dtstart  time.Time
	Interval int
	Count    mo.Option[int]
	Until    time.Time
	Wkst     Day

	ByWeekday  []Weekday
	ByMonth    []int
	ByMonthDay []int
	ByYearDay  []int
	ByWeekNo   []int
	ByHour     []int
	ByMinute   []int
	BySecond   []int
	BySetPos   []int
}

// Rule is a validated, immutable recurrence rule.
type Rule struct {
	opts Options

	// expansion state derived from opts
	dtstart     time.Time
	until       time.Time
	hasUntil    bool
	wkst        int
	bymonth     []int
	byweekno    []int
	byyearday   []int
	bymonthday  []int
	bynmonthday []int
	byweekday   []int
	bynweekday  []calendar.NthWeekday
	byhour      []int
	byminute    []int
	bysecond    []int
	bysetpos    []int
	timeset     []int // seconds of day, only for frequencies coarser than hourly
}

var _ Recurrence = (*Rule)(nil)

// NewRule validates opts and returns the rule they describe.
func NewRule(opts Options) (*Rule, error) {
	opts = normalize(opts)
	if err := validate(opts); err != nil {
		return nil, err
	}
	r := &Rule{opts: opts}
	if err := r.plan(); err != nil {
		return nil, err
	}
	return r, nil
}

// MustNewRule is like NewRule but panics on error. It is meant for
// package-level rule literals.
func MustNewRule(opts Options) *Rule {
	r, err := NewRule(opts)
	if err != nil {
		panic(err)
	}
	return r
}

func normalize(o Options) Options {
	if o.Interval == 0 {
		o.Interval = 1
	}
	o.Dtstart = o.Dtstart.Truncate(time.Second)
	if !o.Until.IsZero() {
		o.Until = o.Until.Truncate(time.Second)
		if !o.Dtstart.IsZero() {
			o.Until = o.Until.In(o.Dtstart.Location())
		}
	}
	o.ByWeekday = cloneOrNil(o.ByWeekday)
	o.ByMonth = cloneOrNil(o.ByMonth)
	o.ByMonthDay = cloneOrNil(o.ByMonthDay)
	o.ByYearDay = cloneOrNil(o.ByYearDay)
	o.ByWeekNo = cloneOrNil(o.ByWeekNo)
	o.ByHour = cloneOrNil(o.ByHour)
	o.ByMinute = cloneOrNil(o.ByMinute)
	o.BySecond = cloneOrNil(o.BySecond)
	o.BySetPos = cloneOrNil(o.BySetPos)
	return o
}

func cloneOrNil[T any](s []T) []T {
	if len(s) == 0 {
		return nil
	}
	return slices.Clone(s)
}

func validate(o Options) error {
	if !o.Freq.valid() {
		return invalid("freq", "unknown frequency %d", int(o.Freq))
	}
	if o.Dtstart.IsZero() {
		return invalid("dtstart", "start instant is required")
	}
	if o.Interval < 1 {
		return invalid("interval", "must be at least 1, got %d", o.Interval)
	}
	if count, ok := o.Count.Get(); ok {
		if count < 0 {
			return invalid("count", "must not be negative, got %d", count)
		}
		if !o.Until.IsZero() {
			return invalid("until", "count and until are mutually exclusive")
		}
	}
	if !o.Until.IsZero() && o.Until.Before(o.Dtstart) {
		return invalid("until", "end %s is before start %s", o.Until, o.Dtstart)
	}
	if !o.Wkst.valid() {
		return invalid("wkst", "day %d out of range", int(o.Wkst))
	}

	checks := []struct {
		field    string
		values   []int
		min, max int
		signed   bool
	}{
		{"bymonth", o.ByMonth, 1, 12, false},
		{"bymonthday", o.ByMonthDay, 1, 31, true},
		{"byyearday", o.ByYearDay, 1, 366, true},
		{"byweekno", o.ByWeekNo, 1, 53, true},
		{"byhour", o.ByHour, 0, 23, false},
		{"byminute", o.ByMinute, 0, 59, false},
		{"bysecond", o.BySecond, 0, 59, false},
		{"bysetpos", o.BySetPos, 1, 366, true},
	}
	for _, c := range checks {
		for _, v := range c.values {
			abs := v
			if c.signed && v < 0 {
				abs = -v
			}
			if abs < c.min || abs > c.max {
				if c.signed {
					return invalid(c.field, "value %d outside ±%d..%d", v, c.min, c.max)
				}
				return invalid(c.field, "value %d outside %d..%d", v, c.min, c.max)
			}
		}
	}

	for _, w := range o.ByWeekday {
		if !w.day.valid() {
			return invalid("byweekday", "day %d out of range", int(w.day))
		}
		if w.n == 0 {
			continue
		}
		switch {
		case o.Freq == Monthly:
			if w.n < -5 || w.n > 5 {
				return invalid("byweekday", "ordinal %d outside ±1..5 for a monthly rule", w.n)
			}
		case o.Freq == Yearly && len(o.ByWeekNo) == 0:
			limit := 53
			if len(o.ByMonth) > 0 {
				limit = 5
			}
			if w.n < -limit || w.n > limit {
				return invalid("byweekday", "ordinal %d outside ±1..%d for a yearly rule", w.n, limit)
			}
		case o.Freq == Yearly:
			return invalid("byweekday", "ordinal weekdays cannot be combined with byweekno")
		default:
			return invalid("byweekday", "ordinal weekdays need a monthly or yearly rule, got %s", o.Freq)
		}
	}

	if len(o.ByWeekNo) > 0 && o.Freq != Yearly {
		return invalid("byweekno", "only valid for yearly rules, got %s", o.Freq)
	}
	if len(o.ByYearDay) > 0 && (o.Freq == Monthly || o.Freq == Weekly || o.Freq == Daily) {
		return invalid("byyearday", "not valid for %s rules", o.Freq)
	}
	if len(o.ByMonthDay) > 0 && o.Freq == Weekly {
		return invalid("bymonthday", "not valid for weekly rules")
	}
	if len(o.BySetPos) > 0 && !o.hasByPart() {
		return invalid("bysetpos", "requires another by-part")
	}
	return nil
}

func (o Options) hasByPart() bool {
	return len(o.ByWeekday) > 0 || len(o.ByMonth) > 0 || len(o.ByMonthDay) > 0 ||
		len(o.ByYearDay) > 0 || len(o.ByWeekNo) > 0 || len(o.ByHour) > 0 ||
		len(o.ByMinute) > 0 || len(o.BySecond) > 0
}

// plan derives the expansion state: DTSTART supplies the by-parts the
// rule leaves implicit.
func (r *Rule) plan() error {
	o := r.opts
	start := o.Dtstart

	r.dtstart = start
	if !o.Until.IsZero() {
		r.until = o.Until
		r.hasUntil = true
	}
	r.wkst = int(o.Wkst)
	r.bymonth = o.ByMonth
	r.byweekno = o.ByWeekNo
	r.byyearday = o.ByYearDay
	r.bysetpos = o.BySetPos
	byweekday := o.ByWeekday
	bymonthday := o.ByMonthDay

	if len(o.ByWeekNo) == 0 && len(o.ByYearDay) == 0 && len(o.ByMonthDay) == 0 && len(o.ByWeekday) == 0 {
		switch o.Freq {
		case Yearly:
			if len(r.bymonth) == 0 {
				r.bymonth = []int{int(start.Month())}
			}
			bymonthday = []int{start.Day()}
		case Monthly:
			bymonthday = []int{start.Day()}
		case Weekly:
			byweekday = []Weekday{DayOf(start.Weekday()).Weekday()}
		}
	}

	for _, d := range bymonthday {
		if d > 0 {
			r.bymonthday = append(r.bymonthday, d)
		} else {
			r.bynmonthday = append(r.bynmonthday, d)
		}
	}
	for _, w := range byweekday {
		if w.n == 0 {
			if !slices.Contains(r.byweekday, int(w.day)) {
				r.byweekday = append(r.byweekday, int(w.day))
			}
			continue
		}
		r.bynweekday = append(r.bynweekday, calendar.NthWeekday{Weekday: int(w.day), N: w.n})
	}

	var err error
	if r.byhour, err = r.timePart("byhour", o.ByHour, start.Hour(), Hourly, 24); err != nil {
		return err
	}
	if r.byminute, err = r.timePart("byminute", o.ByMinute, start.Minute(), Minutely, 60); err != nil {
		return err
	}
	if r.bysecond, err = r.timePart("bysecond", o.BySecond, start.Second(), Secondly, 60); err != nil {
		return err
	}

	if o.Freq < Hourly {
		for _, h := range r.byhour {
			for _, m := range r.byminute {
				for _, s := range r.bysecond {
					r.timeset = append(r.timeset, h*3600+m*60+s)
				}
			}
		}
		slices.Sort(r.timeset)
		r.timeset = slices.Compact(r.timeset)
	}
	if len(r.bysetpos) > 0 {
		size := r.periodSize()
		if !slices.ContainsFunc(r.bysetpos, func(pos int) bool { return pos <= size && pos >= -size }) {
			return invalid("bysetpos", "every position of %v is beyond the %d candidates of a period", r.bysetpos, size)
		}
	}
	return nil
}

// periodSize is an upper bound on the number of candidates one period
// of the rule can yield.
func (r *Rule) periodSize() int {
	days := 0
	switch r.opts.Freq {
	case Yearly:
		days = 366
	case Monthly:
		days = 31
	case Weekly:
		days = 7
	case Daily:
		days = 1
	case Hourly:
		return max(1, len(r.byminute)) * max(1, len(r.bysecond))
	case Minutely:
		return max(1, len(r.bysecond))
	default:
		return 1
	}
	return days * len(r.timeset)
}

// timePart resolves one of BYHOUR/BYMINUTE/BYSECOND. Coarser frequencies
// default to the DTSTART field; at the part's own frequency, values the
// interval can never reach from DTSTART are dropped.
func (r *Rule) timePart(field string, values []int, start int, own Frequency, base int) ([]int, error) {
	freq := r.opts.Freq
	if len(values) == 0 {
		if freq < own {
			return []int{start}, nil
		}
		return nil, nil
	}
	out := slices.Clone(values)
	slices.Sort(out)
	out = slices.Compact(out)
	if freq != own {
		return out, nil
	}
	g := calendar.GCD(r.opts.Interval, base)
	reachable := out[:0]
	for _, v := range out {
		if g == 1 || calendar.Mod(v-start, g) == 0 {
			reachable = append(reachable, v)
		}
	}
	if len(reachable) == 0 {
		return nil, invalid(field, "interval %d never reaches any of %v from %d", r.opts.Interval, values, start)
	}
	return reachable, nil
}

// Options returns a copy of the normalized options of the rule.
func (r *Rule) Options() Options {
	return normalize(r.opts)
}

// Freq returns the frequency of the rule.
func (r *Rule) Freq() Frequency { return r.opts.Freq }

// Dtstart returns the start instant.
func (r *Rule) Dtstart() time.Time { return r.opts.Dtstart }

// Bounded reports whether the rule has a COUNT or an UNTIL.
func (r *Rule) Bounded() bool {
	return r.opts.Count.IsPresent() || r.hasUntil
}

// WithDtstart returns a copy of the rule starting at t.
func (r *Rule) WithDtstart(t time.Time) (*Rule, error) {
	opts := r.Options()
	opts.Dtstart = t
	if !opts.Until.IsZero() {
		opts.Until = opts.Until.In(t.Location())
	}
	return NewRule(opts)
}

// Equal reports whether r and other describe the same rule: instants are
// compared with time.Equal and zones by equivalence.
func (r *Rule) Equal(other *Rule) bool {
	if r == nil || other == nil {
		return r == other
	}
	a, b := r.opts, other.opts
	return a.Freq == b.Freq &&
		a.Interval == b.Interval &&
		a.Count == b.Count &&
		a.Wkst == b.Wkst &&
		a.Dtstart.Equal(b.Dtstart) &&
		sameZone(a.Dtstart, b.Dtstart) &&
		a.Until.Equal(b.Until) &&
		slices.Equal(a.ByWeekday, b.ByWeekday) &&
		slices.Equal(a.ByMonth, b.ByMonth) &&
		slices.Equal(a.ByMonthDay, b.ByMonthDay) &&
		slices.Equal(a.ByYearDay, b.ByYearDay) &&
		slices.Equal(a.ByWeekNo, b.ByWeekNo) &&
		slices.Equal(a.ByHour, b.ByHour) &&
		slices.Equal(a.ByMinute, b.ByMinute) &&
		slices.Equal(a.BySecond, b.BySecond) &&
		slices.Equal(a.BySetPos, b.BySetPos)
}

// Iterator returns a fresh pull cursor over the occurrences.
func (r *Rule) Iterator() Iterator {
	return newRuleIterator(r)
}

// Iter returns the occurrences as a lazy sequence. Every range over the
// sequence starts a new traversal.
func (r *Rule) Iter() iter.Seq[time.Time] {
	return seq(r)
}

// All returns every occurrence, or the first limit ones when limit > 0.
func (r *Rule) All(limit int) ([]time.Time, error) { return all(r, limit) }

// Between returns the occurrences inside (after, before), or inside
// [after, before] when inc is set.
func (r *Rule) Between(after, before time.Time, inc bool) []time.Time {
	return between(r, after, before, inc)
}

// After returns the first occurrence after t (at or after t when inc).
func (r *Rule) After(t time.Time, inc bool) mo.Option[time.Time] { return afterOf(r, t, inc) }

// Before returns the last occurrence before t (at or before t when inc).
func (r *Rule) Before(t time.Time, inc bool) mo.Option[time.Time] { return beforeOf(r, t, inc) }

// Count returns the number of occurrences of a bounded rule.
func (r *Rule) Count() (int, error) { return count(r) }

func (r *Rule) isRecurrence() {}
