package recurrence

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/google/uuid"

	"github.com/cyp0633/librrule/rrule"
)

// ProductID is written to exported calendars.
const ProductID = "-//librrule//NONSGML Occurrences//EN"

// Properties and parameters not named by go-ical.
const (
	propExceptionRule = "EXRULE"
	propRecurrenceID  = "RECURRENCE-ID"
	propRelatedTo     = "RELATED-TO"
	paramValue        = "VALUE"
	paramTZID         = "TZID"
)

// ErrNoStart is returned when a component has neither DTSTART nor DUE.
var ErrNoStart = errors.New("recurrence: component has no start time")

// ExtractRecurrenceInfoFromComponent extracts recurrence information from an iCal component.
// Floating RDATE and EXDATE values take the zone of DTSTART.
func ExtractRecurrenceInfoFromComponent(comp *ical.Component) RecurrenceInfo {
	info := RecurrenceInfo{}
	loc := componentLocation(comp)

	if rruleProp := comp.Props.Get(ical.PropRecurrenceRule); rruleProp != nil && rruleProp.Value != "" {
		info.RRULE = rruleProp.Value
	}
	for _, prop := range comp.Props[propExceptionRule] {
		if prop.Value != "" {
			info.EXRULE = append(info.EXRULE, prop.Value)
		}
	}

	// RDATE and EXDATE may each appear on several lines
	for _, prop := range comp.Props[ical.PropRecurrenceDates] {
		info.RDATE = append(info.RDATE, parseDateList(prop, loc)...)
	}
	for _, prop := range comp.Props[ical.PropExceptionDates] {
		info.EXDATE = append(info.EXDATE, parseDateList(prop, loc)...)
	}

	// RECURRENCE-ID marks an override instance
	if recurrenceIDProp := comp.Props.Get(propRecurrenceID); recurrenceIDProp != nil && recurrenceIDProp.Value != "" {
		if recID, err := parseDateTime(recurrenceIDProp.Value, recurrenceIDProp.Params, loc); err == nil {
			info.RecurrenceID = &recID
		}
	}

	return info
}

// ExtractBasicTimeInfoFromComponent extracts start and end times from an iCal component
func ExtractBasicTimeInfoFromComponent(comp *ical.Component) (start, end time.Time, hasTime bool) {
	if dtstart, err := comp.Props.DateTime(ical.PropDateTimeStart, nil); err == nil {
		start = dtstart
		hasTime = true

		if dtend, err := comp.Props.DateTime(ical.PropDateTimeEnd, nil); err == nil {
			end = dtend

			// An all-day event ending on its start date lasts the whole day
			if isAllDayDate(start) && sameDate(start, end) {
				end = start.AddDate(0, 0, 1)
			}
		} else if durationProp := comp.Props.Get(ical.PropDuration); durationProp != nil {
			duration, err := durationProp.Duration()
			if err != nil {
				hasTime = false
				return
			}
			end = start.Add(duration)
		} else if isAllDayDate(start) {
			end = start.AddDate(0, 0, 1)
		} else {
			end = start
		}
	}

	// For VTODO, also check DUE property
	if comp.Name == ical.CompToDo {
		if due, err := comp.Props.DateTime(ical.PropDue, nil); err == nil {
			switch {
			case !hasTime:
				start, end, hasTime = due, due, true
			case due.After(end):
				end = due
			}
		}
	}

	return start, end, hasTime
}

// SetFromComponent builds the rule set of a VEVENT or VTODO.
func SetFromComponent(comp *ical.Component) (*rrule.Set, error) {
	start, _, ok := ExtractBasicTimeInfoFromComponent(comp)
	if !ok {
		return nil, ErrNoStart
	}
	return buildSet(start, ExtractRecurrenceInfoFromComponent(comp))
}

// ExpandComponents expands a master component between rangeStart and
// rangeEnd. When opts.IncludeExceptions is set, each override (a component
// carrying RECURRENCE-ID) replaces the occurrence it targets and is listed
// at its own time if that overlaps the range.
func (e *Engine) ExpandComponents(
	master *ical.Component,
	overrides []*ical.Component,
	rangeStart, rangeEnd time.Time,
	opts ExpansionOptions,
) ([]TimeOccurrence, error) {
	start, end, ok := ExtractBasicTimeInfoFromComponent(master)
	if !ok {
		return nil, ErrNoStart
	}
	occurrences, err := e.Expand(start, end, ExtractRecurrenceInfoFromComponent(master), rangeStart, rangeEnd, opts)
	if err != nil {
		return nil, err
	}
	if !opts.IncludeExceptions || len(overrides) == 0 {
		return occurrences, nil
	}

	for _, override := range overrides {
		info := ExtractRecurrenceInfoFromComponent(override)
		if info.RecurrenceID == nil {
			e.logger.Debug("skipping override without RECURRENCE-ID")
			continue
		}
		recID := *info.RecurrenceID
		occurrences = removeOccurrence(occurrences, recID)

		overrideStart, overrideEnd, ok := ExtractBasicTimeInfoFromComponent(override)
		if !ok {
			// An override without its own times keeps the original slot
			overrideStart, overrideEnd = recID, recID.Add(end.Sub(start))
		}
		if overlaps(overrideStart, overrideEnd, rangeStart, rangeEnd) {
			occurrences = append(occurrences, TimeOccurrence{
				Start:        overrideStart,
				End:          overrideEnd,
				IsException:  true,
				RecurrenceID: &recID,
			})
		}
	}

	sortOccurrences(occurrences)
	return occurrences, nil
}

// Series is a master component with the overrides that share its UID.
type Series struct {
	UID       string
	Master    *ical.Component
	Overrides []*ical.Component
}

// SeriesFromCalendar groups the events of a calendar by UID, in order of
// first appearance. A UID with only overrides yields a Series with a nil
// Master.
func SeriesFromCalendar(cal *ical.Calendar) []Series {
	var order []string
	byUID := make(map[string]*Series)
	for _, child := range cal.Children {
		if child.Name != ical.CompEvent && child.Name != ical.CompToDo {
			continue
		}
		uid, _ := child.Props.Text(ical.PropUID)
		s, ok := byUID[uid]
		if !ok {
			s = &Series{UID: uid}
			byUID[uid] = s
			order = append(order, uid)
		}
		if child.Props.Get(propRecurrenceID) != nil {
			s.Overrides = append(s.Overrides, child)
		} else {
			s.Master = child
		}
	}

	series := make([]Series, 0, len(order))
	for _, uid := range order {
		series = append(series, *byUID[uid])
	}
	return series
}

// ExportOccurrences writes a VCALENDAR with one VEVENT per occurrence. Each
// event gets a fresh UID; SUMMARY, DESCRIPTION and LOCATION are copied from
// master when it is not nil, and RELATED-TO points back at its UID.
func ExportOccurrences(w io.Writer, master *ical.Component, occurrences []TimeOccurrence) error {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropProductID, ProductID)
	cal.Props.SetText(ical.PropVersion, "2.0")

	now := time.Now().UTC().Truncate(time.Second)
	for _, occ := range occurrences {
		event := ical.NewEvent()
		event.Props.SetText(ical.PropUID, uuid.New().String())
		event.Props.SetDateTime(ical.PropDateTimeStamp, now)
		event.Props.SetDateTime(ical.PropDateTimeStart, occ.Start)
		event.Props.SetDateTime(ical.PropDateTimeEnd, occ.End)
		if master != nil {
			for _, name := range []string{ical.PropSummary, ical.PropDescription, ical.PropLocation} {
				if prop := master.Props.Get(name); prop != nil {
					event.Props.Set(prop)
				}
			}
			if uid, err := master.Props.Text(ical.PropUID); err == nil && uid != "" {
				event.Props.SetText(propRelatedTo, uid)
			}
		}
		cal.Children = append(cal.Children, event.Component)
	}

	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("failed to encode calendar: %w", err)
	}
	return nil
}

// componentLocation returns the zone of DTSTART, or UTC.
func componentLocation(comp *ical.Component) *time.Location {
	if dtstart, err := comp.Props.DateTime(ical.PropDateTimeStart, nil); err == nil {
		return dtstart.Location()
	}
	return time.UTC
}

// parseDateList parses a comma separated RDATE or EXDATE value. Entries
// that fail to parse are skipped.
func parseDateList(prop ical.Prop, loc *time.Location) []time.Time {
	var dates []time.Time
	for _, value := range strings.Split(prop.Value, ",") {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if t, err := parseDateTime(value, prop.Params, loc); err == nil {
			dates = append(dates, t)
		}
	}
	return dates
}

// parseDateTime parses a DATE or DATE-TIME property value. Dates are
// stored as midnight UTC so they match the date-only EXDATE rule.
func parseDateTime(value string, params ical.Params, loc *time.Location) (time.Time, error) {
	if strings.EqualFold(params.Get(paramValue), "DATE") || len(value) == len("20060102") {
		t, err := time.Parse("20060102", value)
		if err != nil {
			return time.Time{}, err
		}
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	if tzid := params.Get(paramTZID); tzid != "" {
		zone, err := rrule.LoadZone(tzid)
		if err != nil {
			return time.Time{}, err
		}
		loc = zone
	}
	return rrule.ParseDateTime(value, loc)
}

// isAllDayDate checks if a time represents an all-day date (time part is midnight)
func isAllDayDate(t time.Time) bool {
	return t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
