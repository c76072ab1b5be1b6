package rrule

import (
	"fmt"
	"strings"
)

// Frequency is the base repetition period of a rule. Values are ordered
// from the coarsest (Yearly) to the finest (Secondly).
type Frequency int

const (
	Yearly Frequency = iota
	Monthly
	Weekly
	Daily
	Hourly
	Minutely
	Secondly
)

var frequencyNames = [...]string{
	Yearly:   "YEARLY",
	Monthly:  "MONTHLY",
	Weekly:   "WEEKLY",
	Daily:    "DAILY",
	Hourly:   "HOURLY",
	Minutely: "MINUTELY",
	Secondly: "SECONDLY",
}

// String returns the RFC 5545 token of the frequency.
func (f Frequency) String() string {
	if f.valid() {
		return frequencyNames[f]
	}
	return fmt.Sprintf("Frequency(%d)", int(f))
}

func (f Frequency) valid() bool {
	return f >= Yearly && f <= Secondly
}

// ParseFrequency parses an RFC 5545 FREQ value, ignoring case.
func ParseFrequency(s string) (Frequency, error) {
	upper := strings.ToUpper(strings.TrimSpace(s))
	for f, name := range frequencyNames {
		if name == upper {
			return Frequency(f), nil
		}
	}
	return 0, &MalformedRuleTextError{Token: s, Offset: -1, Reason: "unknown frequency"}
}
