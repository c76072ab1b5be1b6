package rrule

import (
	"fmt"
	"iter"
	"time"

	"github.com/samber/mo"
)

// Recurrence is implemented by *Rule and *Set. Every query is answered by
// pulling a fresh Iterator, so concurrent queries never share state.
type Recurrence interface {
	Iterator() Iterator
	Iter() iter.Seq[time.Time]
	Bounded() bool
	String() string

	All(limit int) ([]time.Time, error)
	Between(after, before time.Time, inc bool) []time.Time
	After(t time.Time, inc bool) mo.Option[time.Time]
	Before(t time.Time, inc bool) mo.Option[time.Time]
	Count() (int, error)

	isRecurrence()
}

func seq(r Recurrence) iter.Seq[time.Time] {
	return func(yield func(time.Time) bool) {
		it := r.Iterator()
		for {
			t, ok := it.Next()
			if !ok || !yield(t) {
				return
			}
		}
	}
}

func all(r Recurrence, limit int) ([]time.Time, error) {
	if limit <= 0 && !r.Bounded() {
		return nil, fmt.Errorf("all occurrences: %w", ErrUnboundedCount)
	}
	out := []time.Time{}
	for t := range r.Iter() {
		out = append(out, t)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func between(r Recurrence, after, before time.Time, inc bool) []time.Time {
	out := []time.Time{}
	for t := range r.Iter() {
		if t.After(before) || (!inc && t.Equal(before)) {
			break
		}
		if t.After(after) || (inc && t.Equal(after)) {
			out = append(out, t)
		}
	}
	return out
}

func afterOf(r Recurrence, ref time.Time, inc bool) mo.Option[time.Time] {
	for t := range r.Iter() {
		if t.After(ref) || (inc && t.Equal(ref)) {
			return mo.Some(t)
		}
	}
	return mo.None[time.Time]()
}

// beforeOf scans forward and stops at the first occurrence past ref, so it
// terminates for unbounded recurrences too.
func beforeOf(r Recurrence, ref time.Time, inc bool) mo.Option[time.Time] {
	found := mo.None[time.Time]()
	for t := range r.Iter() {
		if t.After(ref) || (!inc && t.Equal(ref)) {
			break
		}
		found = mo.Some(t)
	}
	return found
}

func count(r Recurrence) (int, error) {
	if !r.Bounded() {
		return 0, fmt.Errorf("count: %w", ErrUnboundedCount)
	}
	n := 0
	for range r.Iter() {
		n++
	}
	return n, nil
}

// Take returns up to n occurrences of r at or after from.
func Take(r Recurrence, n int, from time.Time) []time.Time {
	out := []time.Time{}
	if n <= 0 {
		return out
	}
	for t := range r.Iter() {
		if t.Before(from) {
			continue
		}
		out = append(out, t)
		if len(out) == n {
			break
		}
	}
	return out
}
