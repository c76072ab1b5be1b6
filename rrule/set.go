package rrule

import (
	"container/heap"
	"iter"
	"slices"
	"strings"
	"time"

	"github.com/samber/mo"
)

// Set combines inclusion rules, exclusion rules and explicit dates into a
// single occurrence stream. Exclusions win over inclusions at the same
// instant, and an instant produced by several inclusion sources is
// emitted once.
//
// A Set is built incrementally and owned by its caller. It must not be
// modified while a query is running.
type Set struct {
	dtstart time.Time
	rrules  []*Rule
	exrules []*Rule
	rdates  []time.Time
	exdates []time.Time
}

var _ Recurrence = (*Set)(nil)

// NewSet returns an empty set.
func NewSet() *Set {
	return &Set{}
}

// RRule adds an inclusion rule.
func (s *Set) RRule(r *Rule) *Set {
	if r != nil {
		s.rrules = append(s.rrules, r)
	}
	return s
}

// ExRule adds an exclusion rule.
func (s *Set) ExRule(r *Rule) *Set {
	if r != nil {
		s.exrules = append(s.exrules, r)
	}
	return s
}

// RDate adds explicit occurrences.
func (s *Set) RDate(ts ...time.Time) *Set {
	for _, t := range ts {
		s.rdates = append(s.rdates, t.Truncate(time.Second))
	}
	return s
}

// ExDate adds explicitly excluded instants.
func (s *Set) ExDate(ts ...time.Time) *Set {
	for _, t := range ts {
		s.exdates = append(s.exdates, t.Truncate(time.Second))
	}
	return s
}

// SetDtstart sets the DTSTART written by String.
func (s *Set) SetDtstart(t time.Time) *Set {
	s.dtstart = t.Truncate(time.Second)
	return s
}

// Dtstart returns the start of the set: the explicit one if set, else the
// start of the first rule.
func (s *Set) Dtstart() time.Time {
	if !s.dtstart.IsZero() {
		return s.dtstart
	}
	if len(s.rrules) > 0 {
		return s.rrules[0].Dtstart()
	}
	if len(s.exrules) > 0 {
		return s.exrules[0].Dtstart()
	}
	return time.Time{}
}

// RRules returns the inclusion rules.
func (s *Set) RRules() []*Rule { return slices.Clone(s.rrules) }

// ExRules returns the exclusion rules.
func (s *Set) ExRules() []*Rule { return slices.Clone(s.exrules) }

// RDates returns the explicit occurrences in insertion order.
func (s *Set) RDates() []time.Time { return slices.Clone(s.rdates) }

// ExDates returns the explicit exclusions in insertion order.
func (s *Set) ExDates() []time.Time { return slices.Clone(s.exdates) }

// Bounded reports whether every inclusion rule is bounded. Explicit dates
// are always finite and exclusions never add occurrences.
func (s *Set) Bounded() bool {
	for _, r := range s.rrules {
		if !r.Bounded() {
			return false
		}
	}
	return true
}

// String serializes the set as compound RFC 5545 text. All rules share
// the single DTSTART line.
func (s *Set) String() string {
	var lines []string
	if start := s.Dtstart(); !start.IsZero() {
		lines = append(lines, formatDtstart(start))
	}
	for _, r := range s.rrules {
		lines = append(lines, "RRULE:"+r.RuleText())
	}
	for _, r := range s.exrules {
		lines = append(lines, "EXRULE:"+r.RuleText())
	}
	if len(s.rdates) > 0 {
		lines = append(lines, "RDATE"+formatDateList(s.rdates))
	}
	if len(s.exdates) > 0 {
		lines = append(lines, "EXDATE"+formatDateList(s.exdates))
	}
	return strings.Join(lines, "\n")
}

// Iterator returns a fresh pull cursor over the merged occurrences.
func (s *Set) Iterator() Iterator {
	it := &setIterator{}
	for _, r := range s.rrules {
		it.include.add(r.Iterator())
	}
	if len(s.rdates) > 0 {
		it.include.add(newDateIterator(s.rdates))
	}
	for _, r := range s.exrules {
		it.exclude.add(r.Iterator())
	}
	if len(s.exdates) > 0 {
		it.exclude.add(newDateIterator(s.exdates))
	}
	return it
}

// Iter returns the merged occurrences as a lazy sequence.
func (s *Set) Iter() iter.Seq[time.Time] { return seq(s) }

// All returns every occurrence, or the first limit ones when limit > 0.
func (s *Set) All(limit int) ([]time.Time, error) { return all(s, limit) }

// Between returns the occurrences inside (after, before), or inside
// [after, before] when inc is set.
func (s *Set) Between(after, before time.Time, inc bool) []time.Time {
	return between(s, after, before, inc)
}

// After returns the first occurrence after t (at or after t when inc).
func (s *Set) After(t time.Time, inc bool) mo.Option[time.Time] { return afterOf(s, t, inc) }

// Before returns the last occurrence before t (at or before t when inc).
func (s *Set) Before(t time.Time, inc bool) mo.Option[time.Time] { return beforeOf(s, t, inc) }

// Count returns the number of occurrences of a bounded set.
func (s *Set) Count() (int, error) { return count(s) }

func (s *Set) isRecurrence() {}

// dateIterator walks a sorted copy of explicit dates.
type dateIterator struct {
	dates []time.Time
	pos   int
}

func newDateIterator(dates []time.Time) *dateIterator {
	sorted := slices.Clone(dates)
	slices.SortFunc(sorted, func(a, b time.Time) int { return a.Compare(b) })
	return &dateIterator{dates: sorted}
}

func (d *dateIterator) Next() (time.Time, bool) {
	if d.pos >= len(d.dates) {
		return time.Time{}, false
	}
	t := d.dates[d.pos]
	d.pos++
	return t, true
}

// setIterator merges the inclusion sources and drops every instant that
// an exclusion source reaches.
type setIterator struct {
	include sourceHeap
	exclude sourceHeap
	last    time.Time
	started bool
}

func (it *setIterator) Next() (time.Time, bool) {
	for it.include.Len() > 0 {
		t := it.include.pop()
		if it.started && t.Equal(it.last) {
			continue
		}
		it.last = t
		it.started = true

		for it.exclude.Len() > 0 && it.exclude.peek().Before(t) {
			it.exclude.pop()
		}
		if it.exclude.Len() > 0 && it.exclude.peek().Equal(t) {
			continue
		}
		return t, true
	}
	return time.Time{}, false
}

type source struct {
	it  Iterator
	cur time.Time
}

// sourceHeap is a min-heap of sources keyed on their current instant.
type sourceHeap []*source

func (h sourceHeap) Len() int           { return len(h) }
func (h sourceHeap) Less(i, j int) bool { return h[i].cur.Before(h[j].cur) }
func (h sourceHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *sourceHeap) Push(x any) { *h = append(*h, x.(*source)) }

func (h *sourceHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

func (h *sourceHeap) add(it Iterator) {
	if t, ok := it.Next(); ok {
		heap.Push(h, &source{it: it, cur: t})
	}
}

func (h sourceHeap) peek() time.Time {
	return h[0].cur
}

// pop returns the smallest current instant and advances its source.
func (h *sourceHeap) pop() time.Time {
	head := (*h)[0]
	t := head.cur
	if next, ok := head.it.Next(); ok {
		head.cur = next
		heap.Fix(h, 0)
	} else {
		heap.Pop(h)
	}
	return t
}
