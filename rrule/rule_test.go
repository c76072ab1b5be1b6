package rrule

import (
	"errors"
	"testing"
	"time"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start1997 = time.Date(1997, 9, 2, 9, 0, 0, 0, time.UTC)

func TestNewRule_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		opts  Options
		field string
	}{
		{
			name:  "missing dtstart",
			opts:  Options{Freq: Daily},
			field: "dtstart",
		},
		{
			name:  "unknown frequency",
			opts:  Options{Freq: Frequency(42), Dtstart: start1997},
			field: "freq",
		},
		{
			name:  "negative interval",
			opts:  Options{Freq: Daily, Dtstart: start1997, Interval: -1},
			field: "interval",
		},
		{
			name:  "negative count",
			opts:  Options{Freq: Daily, Dtstart: start1997, Count: mo.Some(-1)},
			field: "count",
		},
		{
			name:  "count and until",
			opts:  Options{Freq: Daily, Dtstart: start1997, Count: mo.Some(3), Until: start1997.AddDate(0, 1, 0)},
			field: "until",
		},
		{
			name:  "until before dtstart",
			opts:  Options{Freq: Daily, Dtstart: start1997, Until: start1997.AddDate(0, 0, -1)},
			field: "until",
		},
		{
			name:  "month out of range",
			opts:  Options{Freq: Yearly, Dtstart: start1997, ByMonth: []int{13}},
			field: "bymonth",
		},
		{
			name:  "zero month day",
			opts:  Options{Freq: Monthly, Dtstart: start1997, ByMonthDay: []int{0}},
			field: "bymonthday",
		},
		{
			name:  "month day past 31",
			opts:  Options{Freq: Monthly, Dtstart: start1997, ByMonthDay: []int{-32}},
			field: "bymonthday",
		},
		{
			name:  "hour out of range",
			opts:  Options{Freq: Daily, Dtstart: start1997, ByHour: []int{24}},
			field: "byhour",
		},
		{
			name:  "zero set position",
			opts:  Options{Freq: Monthly, Dtstart: start1997, ByMonthDay: []int{1}, BySetPos: []int{0}},
			field: "bysetpos",
		},
		{
			name:  "week number outside yearly",
			opts:  Options{Freq: Monthly, Dtstart: start1997, ByWeekNo: []int{10}},
			field: "byweekno",
		},
		{
			name:  "year day with daily",
			opts:  Options{Freq: Daily, Dtstart: start1997, ByYearDay: []int{100}},
			field: "byyearday",
		},
		{
			name:  "month day with weekly",
			opts:  Options{Freq: Weekly, Dtstart: start1997, ByMonthDay: []int{1}},
			field: "bymonthday",
		},
		{
			name:  "set position alone",
			opts:  Options{Freq: Monthly, Dtstart: start1997, BySetPos: []int{1}},
			field: "bysetpos",
		},
		{
			name:  "ordinal weekday with weekly",
			opts:  Options{Freq: Weekly, Dtstart: start1997, ByWeekday: []Weekday{MO.Nth(1)}},
			field: "byweekday",
		},
		{
			name:  "monthly ordinal past 5",
			opts:  Options{Freq: Monthly, Dtstart: start1997, ByWeekday: []Weekday{FR.Nth(6)}},
			field: "byweekday",
		},
		{
			name:  "ordinal weekday with week number",
			opts:  Options{Freq: Yearly, Dtstart: start1997, ByWeekNo: []int{1}, ByWeekday: []Weekday{MO.Nth(1)}},
			field: "byweekday",
		},
		{
			name:  "unreachable hour",
			opts:  Options{Freq: Hourly, Dtstart: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Interval: 2, ByHour: []int{1, 3}},
			field: "byhour",
		},
		{
			name:  "unreachable minute",
			opts:  Options{Freq: Minutely, Dtstart: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Interval: 30, ByMinute: []int{15}},
			field: "byminute",
		},
		{
			name:  "set position past a minutely period",
			opts:  Options{Freq: Minutely, Dtstart: start1997, Count: mo.Some(3), ByMinute: []int{0}, BySetPos: []int{2}},
			field: "bysetpos",
		},
		{
			name:  "set position past a month filtered minutely period",
			opts:  Options{Freq: Minutely, Dtstart: start1997, Count: mo.Some(1), ByMonth: []int{1}, BySetPos: []int{2}},
			field: "bysetpos",
		},
		{
			name:  "negative set position past an hourly period",
			opts:  Options{Freq: Hourly, Dtstart: start1997, Count: mo.Some(3), ByMinute: []int{0}, BySetPos: []int{-2}},
			field: "bysetpos",
		},
		{
			name:  "set position past a daily timeset",
			opts:  Options{Freq: Daily, Dtstart: start1997, ByHour: []int{9, 17}, BySetPos: []int{3}},
			field: "bysetpos",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewRule(tt.opts)
			require.Error(t, err)
			assert.Nil(t, r)
			assert.True(t, errors.Is(err, ErrInvalidRule))

			var ire *InvalidRuleError
			require.True(t, errors.As(err, &ire))
			assert.Equal(t, tt.field, ire.Field)
		})
	}
}

func TestNewRule_Normalizes(t *testing.T) {
	ny := time.FixedZone("UTC-05:00", -5*3600)
	r, err := NewRule(Options{
		Freq:     Weekly,
		Dtstart:  time.Date(2024, 1, 1, 9, 0, 0, 999, ny),
		Until:    time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		ByMonth:  []int{},
		ByHour:   []int{9},
		Interval: 0,
	})
	require.NoError(t, err)

	opts := r.Options()
	assert.Equal(t, 1, opts.Interval)
	assert.Equal(t, 0, opts.Dtstart.Nanosecond())
	assert.Equal(t, ny, opts.Until.Location())
	assert.Nil(t, opts.ByMonth)
	assert.Equal(t, []int{9}, opts.ByHour)
	assert.True(t, r.Bounded())
}

func TestNewRule_CountZero(t *testing.T) {
	r, err := NewRule(Options{Freq: Daily, Dtstart: start1997, Count: mo.Some(0)})
	require.NoError(t, err)
	assert.True(t, r.Bounded())

	got, err := r.All(0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestNewRule_SubDailySetPos(t *testing.T) {
	r, err := ParseRule("DTSTART:19970902T090000Z\nRRULE:FREQ=HOURLY;COUNT=2;BYMINUTE=0,30;BYSETPOS=-1")
	require.NoError(t, err)

	got, err := r.All(0)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{
		time.Date(1997, 9, 2, 9, 30, 0, 0, time.UTC),
		time.Date(1997, 9, 2, 10, 30, 0, 0, time.UTC),
	}, got)

	_, err = ParseRule("DTSTART:19970902T090000Z\nRRULE:FREQ=MINUTELY;COUNT=3;BYMINUTE=0;BYSETPOS=2")
	var ire *InvalidRuleError
	require.ErrorAs(t, err, &ire)
	assert.Equal(t, "bysetpos", ire.Field)
}

func TestMustNewRule_Panics(t *testing.T) {
	assert.Panics(t, func() { MustNewRule(Options{Freq: Daily}) })
	assert.NotPanics(t, func() { MustNewRule(Options{Freq: Daily, Dtstart: start1997}) })
}

func TestRule_Equal(t *testing.T) {
	a := MustNewRule(Options{Freq: Daily, Dtstart: start1997, Count: mo.Some(3)})
	b := MustNewRule(Options{Freq: Daily, Dtstart: start1997, Count: mo.Some(3), Interval: 1})
	c := MustNewRule(Options{Freq: Daily, Dtstart: start1997, Count: mo.Some(4)})
	d := MustNewRule(Options{Freq: Daily, Dtstart: start1997.In(time.FixedZone("UTC+02:00", 7200)), Count: mo.Some(3)})

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(d), "same instant in another zone")
	assert.False(t, a.Equal(nil))
}

func TestRule_WithDtstart(t *testing.T) {
	r := MustNewRule(Options{Freq: Daily, Dtstart: start1997, Count: mo.Some(2)})
	moved, err := r.WithDtstart(start1997.AddDate(1, 0, 0))
	require.NoError(t, err)

	got, err := moved.All(0)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{
		time.Date(1998, 9, 2, 9, 0, 0, 0, time.UTC),
		time.Date(1998, 9, 3, 9, 0, 0, 0, time.UTC),
	}, got)
	assert.Equal(t, start1997, r.Dtstart())
}

func TestWeekday(t *testing.T) {
	tests := []struct {
		in   string
		want Weekday
	}{
		{"MO", MO.Weekday()},
		{"+1MO", MO.Nth(1)},
		{"-1FR", FR.Nth(-1)},
		{"20mo", MO.Nth(20)},
	}
	for _, tt := range tests {
		got, err := ParseWeekday(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	for _, bad := range []string{"", "XX", "0MO", "+MO", "123MO"} {
		_, err := ParseWeekday(bad)
		assert.True(t, errors.Is(err, ErrMalformedText), bad)
	}

	assert.Equal(t, "+2TU", TU.Nth(2).String())
	assert.Equal(t, "-1SU", SU.Nth(-1).String())
	assert.Equal(t, "WE", WE.Weekday().String())
	assert.Equal(t, SU, DayOf(time.Sunday))

	_, err := NewWeekday(Day(7), 0)
	assert.True(t, errors.Is(err, ErrInvalidRule))
}

func TestParseFrequency(t *testing.T) {
	f, err := ParseFrequency("weekly")
	require.NoError(t, err)
	assert.Equal(t, Weekly, f)
	assert.Equal(t, "SECONDLY", Secondly.String())

	_, err = ParseFrequency("FORTNIGHTLY")
	assert.True(t, errors.Is(err, ErrMalformedText))
}
