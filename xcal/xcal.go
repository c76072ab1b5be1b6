// Package xcal converts recurrence rules to and from the XML
// representation of iCalendar defined by RFC 6321.
package xcal

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/samber/mo"

	"github.com/cyp0633/librrule/rrule"
)

// Namespace is the xCal namespace.
const Namespace = "urn:ietf:params:xml:ns:icalendar-2.0"

const (
	layoutDateTimeUTC = "2006-01-02T15:04:05Z"
	layoutDateTime    = "2006-01-02T15:04:05"
	layoutDate        = "2006-01-02"
)

// EncodeRecur builds the <recur> value of r, with parts in the order
// RFC 6321 lists them.
func EncodeRecur(r *rrule.Rule) *etree.Element {
	o := r.Options()
	recur := etree.NewElement("recur")
	recur.CreateElement("freq").SetText(o.Freq.String())
	if !o.Until.IsZero() {
		recur.CreateElement("until").SetText(o.Until.UTC().Format(layoutDateTimeUTC))
	}
	if n, ok := o.Count.Get(); ok {
		recur.CreateElement("count").SetText(strconv.Itoa(n))
	}
	if o.Interval != 1 {
		recur.CreateElement("interval").SetText(strconv.Itoa(o.Interval))
	}
	addInts(recur, "bysecond", o.BySecond)
	addInts(recur, "byminute", o.ByMinute)
	addInts(recur, "byhour", o.ByHour)
	for _, w := range o.ByWeekday {
		recur.CreateElement("byday").SetText(w.String())
	}
	addInts(recur, "bymonthday", o.ByMonthDay)
	addInts(recur, "byyearday", o.ByYearDay)
	addInts(recur, "byweekno", o.ByWeekNo)
	addInts(recur, "bymonth", o.ByMonth)
	addInts(recur, "bysetpos", o.BySetPos)
	if o.Wkst != rrule.MO {
		recur.CreateElement("wkst").SetText(o.Wkst.String())
	}
	return recur
}

func addInts(parent *etree.Element, tag string, values []int) {
	for _, v := range values {
		parent.CreateElement(tag).SetText(strconv.Itoa(v))
	}
}

// EncodeRule builds a <properties> element holding the DTSTART and RRULE
// properties of r.
func EncodeRule(r *rrule.Rule) *etree.Element {
	props := etree.NewElement("properties")
	props.AddChild(encodeDateTime("dtstart", r.Dtstart()))
	props.CreateElement("rrule").AddChild(EncodeRecur(r))
	return props
}

func encodeDateTime(tag string, t time.Time) *etree.Element {
	prop := etree.NewElement(tag)
	if t.Location() == time.UTC || rrule.ZoneID(t) == "UTC" {
		prop.CreateElement("date-time").SetText(t.UTC().Format(layoutDateTimeUTC))
		return prop
	}
	prop.CreateElement("parameters").CreateElement("tzid").CreateElement("text").SetText(rrule.ZoneID(t))
	prop.CreateElement("date-time").SetText(t.Format(layoutDateTime))
	return prop
}

// DecodeRecur builds a rule from a <recur> element. dtstart supplies the
// start instant, which xCal carries in a separate property.
func DecodeRecur(recur *etree.Element, dtstart time.Time) (*rrule.Rule, error) {
	if recur == nil || recur.Tag != "recur" {
		return nil, malformed("recur", "expected a recur element")
	}
	opts := rrule.Options{Dtstart: dtstart}
	hasFreq := false

	for _, child := range recur.ChildElements() {
		text := strings.TrimSpace(child.Text())
		var err error
		switch child.Tag {
		case "freq":
			opts.Freq, err = rrule.ParseFrequency(text)
			hasFreq = err == nil
		case "until":
			opts.Until, err = decodeTime(text, dtstart.Location())
		case "count":
			var n int
			if n, err = atoi(child.Tag, text); err == nil {
				opts.Count = mo.Some(n)
			}
		case "interval":
			opts.Interval, err = atoi(child.Tag, text)
		case "bysecond":
			opts.BySecond, err = appendInt(opts.BySecond, child.Tag, text)
		case "byminute":
			opts.ByMinute, err = appendInt(opts.ByMinute, child.Tag, text)
		case "byhour":
			opts.ByHour, err = appendInt(opts.ByHour, child.Tag, text)
		case "bymonthday":
			opts.ByMonthDay, err = appendInt(opts.ByMonthDay, child.Tag, text)
		case "byyearday":
			opts.ByYearDay, err = appendInt(opts.ByYearDay, child.Tag, text)
		case "byweekno":
			opts.ByWeekNo, err = appendInt(opts.ByWeekNo, child.Tag, text)
		case "bymonth":
			opts.ByMonth, err = appendInt(opts.ByMonth, child.Tag, text)
		case "bysetpos":
			opts.BySetPos, err = appendInt(opts.BySetPos, child.Tag, text)
		case "byday":
			var w rrule.Weekday
			if w, err = rrule.ParseWeekday(text); err == nil {
				opts.ByWeekday = append(opts.ByWeekday, w)
			}
		case "wkst":
			var w rrule.Weekday
			if w, err = rrule.ParseWeekday(text); err == nil {
				if w.N() != 0 {
					err = malformed(text, "week start cannot carry an ordinal")
				}
				opts.Wkst = w.Day()
			}
		default:
			return nil, malformed(child.Tag, "unknown recur part")
		}
		if err != nil {
			return nil, fmt.Errorf("xcal: %s: %w", child.Tag, err)
		}
	}

	if !hasFreq {
		return nil, malformed("recur", "missing freq")
	}
	return rrule.NewRule(opts)
}

// DecodeRule builds a rule from a <properties> element holding a dtstart
// and an rrule property.
func DecodeRule(props *etree.Element) (*rrule.Rule, error) {
	if props == nil {
		return nil, malformed("properties", "missing properties element")
	}
	dtstartElem := props.SelectElement("dtstart")
	if dtstartElem == nil {
		return nil, malformed("dtstart", "missing dtstart property")
	}
	dtstart, err := decodeDateTime(dtstartElem)
	if err != nil {
		return nil, err
	}
	rruleElem := props.SelectElement("rrule")
	if rruleElem == nil {
		return nil, malformed("rrule", "missing rrule property")
	}
	return DecodeRecur(rruleElem.SelectElement("recur"), dtstart)
}

func decodeDateTime(prop *etree.Element) (time.Time, error) {
	loc := time.UTC
	if tzid := prop.FindElement("parameters/tzid/text"); tzid != nil {
		zone, err := rrule.LoadZone(strings.TrimSpace(tzid.Text()))
		if err != nil {
			return time.Time{}, err
		}
		loc = zone
	}
	value := prop.SelectElement("date-time")
	if value == nil {
		value = prop.SelectElement("date")
	}
	if value == nil {
		return time.Time{}, malformed(prop.Tag, "missing date-time value")
	}
	return decodeTime(strings.TrimSpace(value.Text()), loc)
}

func decodeTime(text string, loc *time.Location) (time.Time, error) {
	var (
		t   time.Time
		err error
	)
	switch {
	case len(text) == len(layoutDate):
		t, err = time.ParseInLocation(layoutDate, text, loc)
	case strings.HasSuffix(text, "Z"):
		t, err = time.Parse(layoutDateTimeUTC, text)
	default:
		t, err = time.ParseInLocation(layoutDateTime, text, loc)
	}
	if err != nil {
		return time.Time{}, &rrule.MalformedRuleTextError{Token: text, Offset: -1, Reason: "invalid date-time", Err: err}
	}
	return t, nil
}

func atoi(tag, text string) (int, error) {
	n, err := strconv.Atoi(text)
	if err != nil {
		return 0, malformed(text, "expected an integer in "+tag)
	}
	return n, nil
}

func appendInt(values []int, tag, text string) ([]int, error) {
	n, err := atoi(tag, text)
	if err != nil {
		return nil, err
	}
	return append(values, n), nil
}

func malformed(token, reason string) error {
	return &rrule.MalformedRuleTextError{Token: token, Offset: -1, Reason: reason}
}

// Marshal renders r as an xCal document with a single VEVENT.
func Marshal(r *rrule.Rule) ([]byte, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="utf-8"`)
	root := doc.CreateElement("icalendar")
	root.CreateAttr("xmlns", Namespace)
	event := root.CreateElement("vcalendar").
		CreateElement("components").
		CreateElement("vevent")
	event.AddChild(EncodeRule(r))

	doc.Indent(2)
	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("xcal: write document: %w", err)
	}
	return out, nil
}

// Unmarshal reads the first component carrying an rrule property from an
// xCal document.
func Unmarshal(data []byte) (*rrule.Rule, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("xcal: read document: %w", err)
	}
	root := doc.Root()
	if root == nil || root.Tag != "icalendar" {
		return nil, malformed("icalendar", "missing icalendar root")
	}
	props := root.FindElement("//properties[rrule]")
	if props == nil {
		return nil, malformed("rrule", "no component carries an rrule")
	}
	return DecodeRule(props)
}
