// Package rrule implements RFC 5545 recurrence rules.
//
// A Rule is built from Options or parsed from text and expands lazily
// into an ordered stream of occurrences. A Set combines inclusion rules,
// exclusion rules and explicit dates. Both satisfy Recurrence, which
// offers the bounded queries All, Between, After, Before and Count.
//
//	r, err := rrule.ParseRule("DTSTART:20240101T090000Z\nRRULE:FREQ=WEEKLY;BYDAY=MO,WE;COUNT=4")
//	if err != nil {
//		return err
//	}
//	for t := range r.Iter() {
//		fmt.Println(t)
//	}
//
// Rules are immutable and safe for concurrent queries. Every query pulls
// its own Iterator.
package rrule
