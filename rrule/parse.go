package rrule

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/samber/mo"
)

type parseConfig struct {
	dtstart    time.Time
	loc        *time.Location
	unfold     bool
	forceSet   bool
	compatible bool
}

// ParseOption tunes how rule text is parsed.
type ParseOption func(*parseConfig)

// WithDtstart sets the start used when the text carries no DTSTART line.
func WithDtstart(t time.Time) ParseOption {
	return func(c *parseConfig) {
		c.dtstart = t
	}
}

// WithLocation sets the zone of floating date-times (those without a Z
// suffix or TZID). It defaults to UTC.
func WithLocation(loc *time.Location) ParseOption {
	return func(c *parseConfig) {
		if loc != nil {
			c.loc = loc
		}
	}
}

// WithUnfold joins RFC 5545 folded lines (continuations starting with a
// space or tab) before parsing.
func WithUnfold() ParseOption {
	return func(c *parseConfig) {
		c.unfold = true
	}
}

// WithForceSet makes Parse return a *Set even for a single rule.
func WithForceSet() ParseOption {
	return func(c *parseConfig) {
		c.forceSet = true
	}
}

// WithCompatible enables RFC compatible mode: lines are unfolded, a set is
// always returned and DTSTART counts as the first occurrence.
func WithCompatible() ParseOption {
	return func(c *parseConfig) {
		c.compatible = true
		c.unfold = true
		c.forceSet = true
	}
}

func newParseConfig(opts []ParseOption) *parseConfig {
	c := &parseConfig{loc: time.UTC}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Parse parses RFC 5545 recurrence text. A single RRULE, with or without
// a DTSTART line, yields a *Rule; anything else yields a *Set.
func Parse(text string, opts ...ParseOption) (Recurrence, error) {
	cfg := newParseConfig(opts)
	doc, err := parseDocument(text, cfg)
	if err != nil {
		return nil, err
	}
	if !cfg.forceSet && doc.single() {
		return doc.rule(0, doc.rrules[0])
	}
	return doc.set()
}

// ParseRule parses text describing exactly one rule: "FREQ=...",
// "RRULE:FREQ=..." or a DTSTART line followed by an RRULE line.
func ParseRule(text string, opts ...ParseOption) (*Rule, error) {
	cfg := newParseConfig(opts)
	doc, err := parseDocument(text, cfg)
	if err != nil {
		return nil, err
	}
	if !doc.single() {
		return nil, malformed(strings.TrimSpace(text), 0, "text does not describe a single rule")
	}
	return doc.rule(0, doc.rrules[0])
}

// ParseSet parses compound recurrence text into a set.
func ParseSet(text string, opts ...ParseOption) (*Set, error) {
	cfg := newParseConfig(opts)
	doc, err := parseDocument(text, cfg)
	if err != nil {
		return nil, err
	}
	return doc.set()
}

type ruleLine struct {
	value  string
	offset int
}

type document struct {
	cfg      *parseConfig
	dtstart  time.Time
	explicit bool
	rrules   []ruleLine
	exrules  []ruleLine
	rdates   []time.Time
	exdates  []time.Time
}

func (d *document) single() bool {
	return len(d.rrules) == 1 && len(d.exrules) == 0 && len(d.rdates) == 0 && len(d.exdates) == 0
}

func (d *document) rule(_ int, line ruleLine) (*Rule, error) {
	opts, err := parseRuleValue(line.value, line.offset, d.dtstart.Location())
	if err != nil {
		return nil, err
	}
	opts.Dtstart = d.dtstart
	return NewRule(opts)
}

func (d *document) set() (*Set, error) {
	s := NewSet()
	if d.explicit {
		s.SetDtstart(d.dtstart)
	}
	for i, line := range d.rrules {
		r, err := d.rule(i, line)
		if err != nil {
			return nil, err
		}
		s.RRule(r)
	}
	for i, line := range d.exrules {
		r, err := d.rule(i, line)
		if err != nil {
			return nil, err
		}
		s.ExRule(r)
	}
	if d.cfg.compatible && d.explicit {
		s.RDate(d.dtstart)
	}
	s.RDate(d.rdates...)
	s.ExDate(d.exdates...)
	return s, nil
}

type textLine struct {
	text   string
	offset int
}

func splitLines(text string, unfold bool) []textLine {
	var lines []textLine
	offset := 0
	for _, raw := range strings.SplitAfter(text, "\n") {
		start := offset
		offset += len(raw)
		line := strings.TrimRight(raw, "\r\n")
		if unfold && len(lines) > 0 && (strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t")) {
			lines[len(lines)-1].text += line[1:]
			continue
		}
		trimmed := strings.TrimLeft(line, " \t")
		start += len(line) - len(trimmed)
		trimmed = strings.TrimRight(trimmed, " \t")
		if trimmed == "" {
			continue
		}
		lines = append(lines, textLine{text: trimmed, offset: start})
	}
	return lines
}

func parseDocument(text string, cfg *parseConfig) (*document, error) {
	doc := &document{cfg: cfg}
	lines := splitLines(text, cfg.unfold)
	if len(lines) == 0 {
		return nil, malformed(text, 0, "empty rule text")
	}

	for _, line := range lines {
		name, params, value, valueOffset := splitProperty(line)
		switch name {
		case "DTSTART":
			if doc.explicit {
				return nil, malformed(line.text, line.offset, "duplicate DTSTART")
			}
			t, err := parseDateValue(value, valueOffset, params, cfg.loc)
			if err != nil {
				return nil, err
			}
			doc.dtstart = t
			doc.explicit = true
		case "RRULE":
			doc.rrules = append(doc.rrules, ruleLine{value: value, offset: valueOffset})
		case "EXRULE":
			doc.exrules = append(doc.exrules, ruleLine{value: value, offset: valueOffset})
		case "RDATE", "EXDATE":
			dates, err := parseDateList(value, valueOffset, params, cfg.loc)
			if err != nil {
				return nil, err
			}
			if name == "RDATE" {
				doc.rdates = append(doc.rdates, dates...)
			} else {
				doc.exdates = append(doc.exdates, dates...)
			}
		default:
			return nil, malformed(name, line.offset, "unsupported property")
		}
	}

	if !doc.explicit {
		start := cfg.dtstart
		if start.IsZero() {
			start = time.Now().In(cfg.loc)
		}
		doc.dtstart = start.Truncate(time.Second)
	}
	return doc, nil
}

// splitProperty splits "NAME;PARAM=V:VALUE". Quoted parameter values may
// hold colons and semicolons. A line without a colon is treated as an
// RRULE value.
func splitProperty(line textLine) (name string, params map[string]string, value string, valueOffset int) {
	text := line.text
	colon := -1
	var seps []int
	quoted := false
	for i := 0; i < len(text) && colon < 0; i++ {
		switch text[i] {
		case '"':
			quoted = !quoted
		case ';':
			if !quoted {
				seps = append(seps, i)
			}
		case ':':
			if !quoted {
				colon = i
			}
		}
	}
	if colon < 0 {
		return "RRULE", nil, text, line.offset
	}
	value = text[colon+1:]
	valueOffset = line.offset + colon + 1

	seps = append(seps, colon)
	name = strings.ToUpper(strings.TrimSpace(text[:seps[0]]))
	if len(seps) > 1 {
		params = make(map[string]string, len(seps)-1)
		for i := 0; i+1 < len(seps); i++ {
			k, v, _ := strings.Cut(text[seps[i]+1:seps[i+1]], "=")
			params[strings.ToUpper(strings.TrimSpace(k))] = strings.Trim(strings.TrimSpace(v), `"`)
		}
	}
	return name, params, value, valueOffset
}

var fixedZonePattern = regexp.MustCompile(`^UTC([+-])(\d{2}):?(\d{2})(?::?(\d{2}))?$`)

func resolveZone(tzid string, offset int) (*time.Location, error) {
	if m := fixedZonePattern.FindStringSubmatch(tzid); m != nil {
		h, _ := strconv.Atoi(m[2])
		mins, _ := strconv.Atoi(m[3])
		secs := h*3600 + mins*60
		if m[4] != "" {
			extra, _ := strconv.Atoi(m[4])
			secs += extra
		}
		if m[1] == "-" {
			secs = -secs
		}
		return time.FixedZone(fixedZoneName(secs), secs), nil
	}
	loc, err := time.LoadLocation(tzid)
	if err != nil {
		return nil, &MalformedRuleTextError{Token: tzid, Offset: offset, Reason: "unknown time zone", Err: err}
	}
	return loc, nil
}

// LoadZone resolves a TZID, accepting the "UTC±hh:mm[:ss]" form written
// for unnamed fixed zones.
func LoadZone(tzid string) (*time.Location, error) {
	return resolveZone(tzid, -1)
}

func parseDateValue(value string, offset int, params map[string]string, loc *time.Location) (time.Time, error) {
	if tzid := params["TZID"]; tzid != "" {
		zone, err := resolveZone(tzid, offset)
		if err != nil {
			return time.Time{}, err
		}
		loc = zone
	}
	isDate := strings.EqualFold(params["VALUE"], "DATE")
	return parseDateTime(strings.TrimSpace(value), offset, isDate, loc)
}

func parseDateList(value string, offset int, params map[string]string, loc *time.Location) ([]time.Time, error) {
	var out []time.Time
	pos := offset
	for _, v := range strings.Split(value, ",") {
		if strings.TrimSpace(v) != "" {
			t, err := parseDateValue(v, pos, params, loc)
			if err != nil {
				return nil, err
			}
			out = append(out, t)
		}
		pos += len(v) + 1
	}
	return out, nil
}

func parseDateTime(value string, offset int, isDate bool, loc *time.Location) (time.Time, error) {
	var (
		t   time.Time
		err error
	)
	switch {
	case isDate || len(value) == len(layoutDate):
		t, err = time.ParseInLocation(layoutDate, value, loc)
	case strings.HasSuffix(value, "Z") || strings.HasSuffix(value, "z"):
		t, err = time.Parse(layoutUTC, strings.ToUpper(value))
	default:
		t, err = time.ParseInLocation(layoutFloating, value, loc)
	}
	if err != nil {
		return time.Time{}, &MalformedRuleTextError{Token: value, Offset: offset, Reason: "invalid date-time", Err: err}
	}
	return t, nil
}

// ParseDateTime parses an RFC 5545 DATE or DATE-TIME value. Floating
// values are placed in loc.
func ParseDateTime(value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	return parseDateTime(strings.TrimSpace(value), -1, false, loc)
}

// parseRuleValue parses the body of an RRULE or EXRULE line. offset is
// the position of value inside the whole input; loc receives floating
// UNTIL values.
func parseRuleValue(value string, offset int, loc *time.Location) (Options, error) {
	var opts Options
	hasFreq := false
	seen := make(map[string]bool)
	pos := offset

	for _, part := range strings.Split(value, ";") {
		partOffset := pos
		pos += len(part) + 1
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		partOffset += strings.Index(part, trimmed)

		key, val, ok := strings.Cut(trimmed, "=")
		if !ok {
			return Options{}, malformed(trimmed, partOffset, "expected KEY=VALUE")
		}
		key = strings.ToUpper(strings.TrimSpace(key))
		val = strings.TrimSpace(val)
		valOffset := partOffset + strings.Index(trimmed, "=") + 1
		if seen[key] {
			return Options{}, malformed(key, partOffset, "duplicate rule property")
		}
		seen[key] = true

		var err error
		switch key {
		case "FREQ":
			opts.Freq, err = ParseFrequency(val)
			hasFreq = err == nil
		case "INTERVAL":
			if opts.Interval, err = parseInt(val); err == nil && opts.Interval < 1 {
				return Options{}, invalid("interval", "must be at least 1, got %d", opts.Interval)
			}
		case "COUNT":
			var n int
			if n, err = parseInt(val); err == nil {
				opts.Count = mo.Some(n)
			}
		case "UNTIL":
			opts.Until, err = parseDateTime(val, valOffset, false, loc)
		case "WKST":
			day, found := parseDay(val)
			if !found {
				err = malformed(val, -1, "invalid week start")
			}
			opts.Wkst = day
		case "BYDAY":
			opts.ByWeekday, err = parseWeekdayList(val, valOffset)
		case "BYMONTH":
			opts.ByMonth, err = parseIntList(val, valOffset)
		case "BYMONTHDAY":
			opts.ByMonthDay, err = parseIntList(val, valOffset)
		case "BYYEARDAY":
			opts.ByYearDay, err = parseIntList(val, valOffset)
		case "BYWEEKNO":
			opts.ByWeekNo, err = parseIntList(val, valOffset)
		case "BYHOUR":
			opts.ByHour, err = parseIntList(val, valOffset)
		case "BYMINUTE":
			opts.ByMinute, err = parseIntList(val, valOffset)
		case "BYSECOND":
			opts.BySecond, err = parseIntList(val, valOffset)
		case "BYSETPOS":
			opts.BySetPos, err = parseIntList(val, valOffset)
		default:
			return Options{}, malformed(key, partOffset, "unknown rule property")
		}
		if err != nil {
			return Options{}, locate(err, val, valOffset)
		}
	}

	if !hasFreq {
		return Options{}, malformed(value, offset, "missing FREQ")
	}
	return opts, nil
}

// locate fills in the position of a MalformedRuleTextError raised without
// one.
func locate(err error, token string, offset int) error {
	if m, ok := err.(*MalformedRuleTextError); ok {
		if m.Offset < 0 {
			m.Offset = offset
		}
		return m
	}
	return &MalformedRuleTextError{Token: token, Offset: offset, Reason: "invalid value", Err: err}
}

func parseInt(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, malformed(s, -1, "expected an integer")
	}
	return n, nil
}

func parseIntList(s string, offset int) ([]int, error) {
	var out []int
	pos := offset
	for _, item := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(item))
		if err != nil {
			return nil, malformed(item, pos, "expected an integer")
		}
		out = append(out, n)
		pos += len(item) + 1
	}
	return out, nil
}

func parseWeekdayList(s string, offset int) ([]Weekday, error) {
	var out []Weekday
	pos := offset
	for _, item := range strings.Split(s, ",") {
		w, err := ParseWeekday(item)
		if err != nil {
			return nil, locate(err, item, pos)
		}
		out = append(out, w)
		pos += len(item) + 1
	}
	return out, nil
}
