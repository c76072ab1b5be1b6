package recurrence

import (
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/cyp0633/librrule/rrule"
)

// Engine expands and checks calendar event recurrences. It is safe for
// concurrent use.
type Engine struct {
	cache  *RecurrenceCache
	config EngineConfig
	logger *slog.Logger
}

// Option represents a configuration option for the Engine
type Option func(*Engine)

// WithLogger sets the logger for the engine
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithConfig replaces the DefaultEngineConfig tuning
func WithConfig(config EngineConfig) Option {
	return func(e *Engine) {
		e.config = config
	}
}

// NewEngine creates a new recurrence engine. When the configuration enables
// the cache, Close releases its entries.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		config: DefaultEngineConfig,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.config.CacheEnabled {
		e.cache = NewRecurrenceCache(e.config.CacheConfig)
	}
	return e
}

// Close releases the cache of the engine, if any
func (e *Engine) Close() {
	if e.cache != nil {
		e.cache.Close()
	}
}

// CacheStats returns the cache statistics, or false when caching is off
func (e *Engine) CacheStats() (CacheStats, bool) {
	if e.cache == nil {
		return CacheStats{}, false
	}
	return e.cache.Stats(), true
}

// BuildSet turns the recurrence properties of an event starting at
// masterStart into a rule set. The master start is always an occurrence.
func (e *Engine) BuildSet(masterStart time.Time, recurrence RecurrenceInfo) (*rrule.Set, error) {
	return buildSet(masterStart, recurrence)
}

func buildSet(masterStart time.Time, recurrence RecurrenceInfo) (*rrule.Set, error) {
	set := rrule.NewSet().SetDtstart(masterStart).RDate(masterStart)

	parseOpts := []rrule.ParseOption{
		rrule.WithDtstart(masterStart),
		rrule.WithLocation(masterStart.Location()),
	}
	if recurrence.RRULE != "" {
		r, err := rrule.ParseRule(ruleValue(recurrence.RRULE), parseOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to parse RRULE '%s': %w", recurrence.RRULE, err)
		}
		set.RRule(r)
	}
	for _, ex := range recurrence.EXRULE {
		r, err := rrule.ParseRule(ruleValue(ex), parseOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to parse EXRULE '%s': %w", ex, err)
		}
		set.ExRule(r)
	}
	set.RDate(recurrence.RDATE...)
	set.ExDate(recurrence.EXDATE...)
	return set, nil
}

func ruleValue(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 6 && strings.EqualFold(s[:6], "RRULE:") {
		return s[6:]
	}
	if len(s) >= 7 && strings.EqualFold(s[:7], "EXRULE:") {
		return s[7:]
	}
	return s
}

// HasOccurrenceInRange checks if a recurring event has any occurrence that
// overlaps the time range. It stops at the first match instead of
// expanding the whole window.
func (e *Engine) HasOccurrenceInRange(
	masterStart, masterEnd time.Time,
	recurrence RecurrenceInfo,
	rangeStart, rangeEnd time.Time,
) (bool, error) {
	key := CacheKey{
		Operation:   "has-occurrence",
		MasterStart: masterStart,
		MasterEnd:   masterEnd,
		Recurrence:  recurrence,
		RangeStart:  rangeStart,
		RangeEnd:    rangeEnd,
	}
	if cached, ok := e.cacheGet(key); ok {
		return cached.(bool), nil
	}

	found, err := e.hasOccurrenceInRange(masterStart, masterEnd, recurrence, rangeStart, rangeEnd)
	if err != nil {
		return false, err
	}
	e.cacheSet(key, found)
	return found, nil
}

func (e *Engine) hasOccurrenceInRange(
	masterStart, masterEnd time.Time,
	recurrence RecurrenceInfo,
	rangeStart, rangeEnd time.Time,
) (bool, error) {
	// Fast path: the master instance itself
	if overlaps(masterStart, masterEnd, rangeStart, rangeEnd) && !e.isExcluded(masterStart, recurrence.EXDATE) {
		return true, nil
	}
	if !recurrence.IsRecurring() {
		return false, nil
	}

	set, err := e.BuildSet(masterStart, recurrence)
	if err != nil {
		return false, fmt.Errorf("failed to check occurrences: %w", err)
	}

	duration := masterEnd.Sub(masterStart)
	checked := 0
	for occ := range set.Iter() {
		if occ.After(rangeEnd) {
			break
		}
		if !overlaps(occ, occ.Add(duration), rangeStart, rangeEnd) {
			continue
		}
		if !e.isExcluded(occ, recurrence.EXDATE) {
			return true, nil
		}
		checked++
		if limit := e.config.MaxExpansionOccurrences; limit > 0 && checked >= limit {
			e.logger.Debug("giving up range check after excluded candidates",
				"rrule", recurrence.RRULE, "checked", checked)
			break
		}
	}
	return false, nil
}

// Expand lists the occurrences of an event that overlap the time range.
func (e *Engine) Expand(
	masterStart, masterEnd time.Time,
	recurrence RecurrenceInfo,
	rangeStart, rangeEnd time.Time,
	opts ExpansionOptions,
) ([]TimeOccurrence, error) {
	if rangeEnd.Before(rangeStart) {
		return nil, fmt.Errorf("invalid range: end %s is before start %s", rangeEnd, rangeStart)
	}
	rangeEnd = e.clampRange(rangeStart, rangeEnd, opts)

	limit := opts.MaxOccurrences
	if limit == 0 {
		limit = e.config.MaxExpansionOccurrences
	}

	key := CacheKey{
		Operation:   "expand",
		MasterStart: masterStart,
		MasterEnd:   masterEnd,
		Recurrence:  recurrence,
		RangeStart:  rangeStart,
		RangeEnd:    rangeEnd,
		Limit:       limit,
	}
	if cached, ok := e.cacheGet(key); ok {
		return slices.Clone(cached.([]TimeOccurrence)), nil
	}

	set, err := e.BuildSet(masterStart, recurrence)
	if err != nil {
		return nil, fmt.Errorf("failed to expand occurrences: %w", err)
	}

	duration := masterEnd.Sub(masterStart)
	occurrences := []TimeOccurrence{}
	for occ := range set.Iter() {
		if occ.After(rangeEnd) {
			break
		}
		end := occ.Add(duration)
		if !overlaps(occ, end, rangeStart, rangeEnd) || e.isExcluded(occ, recurrence.EXDATE) {
			continue
		}
		occurrences = append(occurrences, TimeOccurrence{Start: occ, End: end})
		if limit > 0 && len(occurrences) >= limit {
			e.logger.Warn("expansion truncated", "rrule", recurrence.RRULE, "limit", limit)
			break
		}
	}

	e.cacheSet(key, slices.Clone(occurrences))
	return occurrences, nil
}

// clampRange applies the per-call time span limit and the engine's large
// range limit to the end of the window.
func (e *Engine) clampRange(rangeStart, rangeEnd time.Time, opts ExpansionOptions) time.Time {
	if opts.MaxTimeSpan > 0 && rangeEnd.Sub(rangeStart) > opts.MaxTimeSpan {
		rangeEnd = rangeStart.Add(opts.MaxTimeSpan)
	}
	if e.config.LargeRangeThreshold > 0 && rangeEnd.Sub(rangeStart) > e.config.LargeRangeThreshold {
		limited := rangeStart.Add(e.config.LargeRangeLimit)
		e.logger.Warn("expansion range limited",
			"range_start", rangeStart, "range_end", rangeEnd, "limited_end", limited)
		rangeEnd = limited
	}
	return rangeEnd
}

// overlaps reports whether [start, end] intersects [rangeStart, rangeEnd].
func overlaps(start, end, rangeStart, rangeEnd time.Time) bool {
	return !start.After(rangeEnd) && !end.Before(rangeStart)
}

// isExcluded checks if a given time is in the EXDATE list. A date-only
// exception (midnight UTC) excludes every occurrence on that date.
func (e *Engine) isExcluded(t time.Time, exdates []time.Time) bool {
	for _, exdate := range exdates {
		if t.Equal(exdate) {
			return true
		}
		if exdate.Location() == time.UTC && exdate.Hour() == 0 && exdate.Minute() == 0 && exdate.Second() == 0 {
			occurrenceAtMidnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			if occurrenceAtMidnight.Equal(exdate) {
				return true
			}
		}
	}
	return false
}

func removeOccurrence(occurrences []TimeOccurrence, start time.Time) []TimeOccurrence {
	return slices.DeleteFunc(occurrences, func(o TimeOccurrence) bool {
		return !o.IsException && o.Start.Equal(start)
	})
}

func sortOccurrences(occurrences []TimeOccurrence) {
	slices.SortStableFunc(occurrences, func(a, b TimeOccurrence) int {
		return a.Start.Compare(b.Start)
	})
}

func (e *Engine) cacheGet(key CacheKey) (any, bool) {
	if e.cache == nil {
		return nil, false
	}
	result, ok := e.cache.Get(key)
	if ok {
		e.logger.Debug("recurrence cache hit", "operation", key.Operation)
	}
	return result, ok
}

func (e *Engine) cacheSet(key CacheKey, result any) {
	if e.cache != nil {
		e.cache.Set(key, result)
	}
}
