// Package recurrence expands the recurrence properties of iCalendar events
// over time ranges, with override instances and a result cache.
package recurrence

import (
	"time"
)

// RecurrenceInfo contains the recurrence properties of a calendar event
type RecurrenceInfo struct {
	RRULE        string      // RRULE value, with or without the "RRULE:" prefix
	EXRULE       []string    // Exclusion rule values
	RDATE        []time.Time // Additional recurrence dates
	EXDATE       []time.Time // Excluded occurrences; midnight UTC excludes the whole day
	RecurrenceID *time.Time  // For override instances: the occurrence being replaced
}

// IsRecurring reports whether the info describes more than a single instance.
func (r RecurrenceInfo) IsRecurring() bool {
	return r.RRULE != "" || len(r.RDATE) > 0
}

// TimeOccurrence represents a single occurrence of an event in time
type TimeOccurrence struct {
	Start        time.Time  // Start time of this occurrence
	End          time.Time  // End time of this occurrence
	IsException  bool       // True if this is an override instance
	RecurrenceID *time.Time // If this is an override, the original occurrence time
}

// ExpansionOptions controls how recurrence expansion behaves
type ExpansionOptions struct {
	MaxOccurrences    int           // Maximum occurrences to expand (0 = engine default, <0 = unlimited)
	MaxTimeSpan       time.Duration // Maximum window to expand from the range start (0 = unlimited)
	IncludeExceptions bool          // Whether override instances replace the occurrences they target
}

// DefaultExpansionOptions provides sensible defaults for expansion
var DefaultExpansionOptions = ExpansionOptions{
	MaxOccurrences:    1000,
	MaxTimeSpan:       365 * 24 * time.Hour * 2, // 2 years
	IncludeExceptions: true,
}
