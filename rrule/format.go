package rrule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	layoutUTC      = "20060102T150405Z"
	layoutFloating = "20060102T150405"
	layoutDate     = "20060102"
)

// String returns the rule as a DTSTART line followed by an RRULE line.
func (r *Rule) String() string {
	return formatDtstart(r.opts.Dtstart) + "\nRRULE:" + r.RuleText()
}

// RuleText returns the bare RRULE value, e.g. "FREQ=DAILY;COUNT=5".
func (r *Rule) RuleText() string {
	o := r.opts
	parts := []string{"FREQ=" + o.Freq.String()}
	if o.Interval != 1 {
		parts = append(parts, "INTERVAL="+strconv.Itoa(o.Interval))
	}
	if o.Wkst != MO {
		parts = append(parts, "WKST="+o.Wkst.String())
	}
	if n, ok := o.Count.Get(); ok {
		parts = append(parts, "COUNT="+strconv.Itoa(n))
	}
	if !o.Until.IsZero() {
		parts = append(parts, "UNTIL="+o.Until.UTC().Format(layoutUTC))
	}
	parts = appendInts(parts, "BYSETPOS", o.BySetPos)
	parts = appendInts(parts, "BYMONTH", o.ByMonth)
	parts = appendInts(parts, "BYMONTHDAY", o.ByMonthDay)
	parts = appendInts(parts, "BYYEARDAY", o.ByYearDay)
	parts = appendInts(parts, "BYWEEKNO", o.ByWeekNo)
	if len(o.ByWeekday) > 0 {
		days := make([]string, len(o.ByWeekday))
		for i, w := range o.ByWeekday {
			days[i] = w.String()
		}
		parts = append(parts, "BYDAY="+strings.Join(days, ","))
	}
	parts = appendInts(parts, "BYHOUR", o.ByHour)
	parts = appendInts(parts, "BYMINUTE", o.ByMinute)
	parts = appendInts(parts, "BYSECOND", o.BySecond)
	return strings.Join(parts, ";")
}

func appendInts(parts []string, key string, values []int) []string {
	if len(values) == 0 {
		return parts
	}
	strs := make([]string, len(values))
	for i, v := range values {
		strs[i] = strconv.Itoa(v)
	}
	return append(parts, key+"="+strings.Join(strs, ","))
}

func formatDtstart(t time.Time) string {
	param, value := formatDateTime(t)
	return "DTSTART" + param + ":" + value
}

// formatDateTime returns the property parameters and value for t: UTC is
// written with a Z suffix, loadable zones with TZID and zones that cannot
// be loaded by name as a fixed UTC offset.
func formatDateTime(t time.Time) (string, string) {
	if isUTC(t) {
		return "", t.UTC().Format(layoutUTC)
	}
	return ";TZID=" + tzParam(zoneID(t)), t.Format(layoutFloating)
}

// tzParam quotes a TZID holding a colon, as property parameters require.
func tzParam(id string) string {
	if strings.ContainsAny(id, ":;,") {
		return `"` + id + `"`
	}
	return id
}

func formatDateList(ts []time.Time) string {
	allUTC := true
	zone := ""
	sameZone := true
	for i, t := range ts {
		if !isUTC(t) {
			allUTC = false
		}
		id := zoneID(t)
		if i == 0 {
			zone = id
		} else if id != zone {
			sameZone = false
		}
	}
	values := make([]string, len(ts))
	switch {
	case allUTC:
		for i, t := range ts {
			values[i] = t.UTC().Format(layoutUTC)
		}
		return ":" + strings.Join(values, ",")
	case sameZone:
		for i, t := range ts {
			values[i] = t.Format(layoutFloating)
		}
		return ";TZID=" + tzParam(zone) + ":" + strings.Join(values, ",")
	default:
		for i, t := range ts {
			values[i] = t.UTC().Format(layoutUTC)
		}
		return ":" + strings.Join(values, ",")
	}
}

func isUTC(t time.Time) bool {
	if t.Location() == time.UTC {
		return true
	}
	name, offset := t.Zone()
	return offset == 0 && (name == "UTC" || t.Location().String() == "UTC")
}

// zoneID returns a TZID the parser resolves back to t's zone. A location
// name is only used when the database zone of that name agrees with t's
// zone at t and across both halves of its year.
func zoneID(t time.Time) string {
	name := t.Location().String()
	if name != "" {
		if loaded, err := time.LoadLocation(name); err == nil && sameOffsets(t, loaded) {
			return name
		}
	}
	_, offset := t.Zone()
	return fixedZoneName(offset)
}

func sameOffsets(t time.Time, loaded *time.Location) bool {
	loc := t.Location()
	for _, at := range []time.Time{
		t,
		time.Date(t.Year(), time.January, 1, 12, 0, 0, 0, loc),
		time.Date(t.Year(), time.July, 1, 12, 0, 0, 0, loc),
	} {
		_, want := at.Zone()
		if _, got := at.In(loaded).Zone(); got != want {
			return false
		}
	}
	return true
}

func fixedZoneName(offset int) string {
	sign := '+'
	if offset < 0 {
		sign = '-'
		offset = -offset
	}
	name := fmt.Sprintf("UTC%c%02d:%02d", sign, offset/3600, offset/60%60)
	if s := offset % 60; s != 0 {
		name += fmt.Sprintf(":%02d", s)
	}
	return name
}

// sameZone reports whether a and b are expressed in equivalent zones.
func sameZone(a, b time.Time) bool {
	if isUTC(a) && isUTC(b) {
		return true
	}
	return zoneID(a) == zoneID(b)
}

// ZoneID returns the TZID under which t's zone is serialized: the zone
// name when the database zone of that name matches it, otherwise its
// offset as "UTC±hh:mm" (with ":ss" for sub-minute offsets).
func ZoneID(t time.Time) string {
	if isUTC(t) {
		return "UTC"
	}
	return zoneID(t)
}
