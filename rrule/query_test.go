package rrule

import (
	"errors"
	"testing"
	"time"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueries(t *testing.T) {
	bounded := MustNewRule(Options{Freq: Daily, Dtstart: jan2024, Count: mo.Some(10)})
	unbounded := MustNewRule(Options{Freq: Daily, Dtstart: jan2024})

	t.Run("between exclusive", func(t *testing.T) {
		got := bounded.Between(day2024(3), day2024(6), false)
		assert.Equal(t, []time.Time{day2024(4), day2024(5)}, got)
	})

	t.Run("between inclusive", func(t *testing.T) {
		got := unbounded.Between(day2024(3), day2024(6), true)
		assert.Equal(t, []time.Time{day2024(3), day2024(4), day2024(5), day2024(6)}, got)
	})

	t.Run("between empty window", func(t *testing.T) {
		got := bounded.Between(day2024(20), day2024(25), true)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("after", func(t *testing.T) {
		assert.Equal(t, mo.Some(day2024(4)), unbounded.After(day2024(3), false))
		assert.Equal(t, mo.Some(day2024(3)), unbounded.After(day2024(3), true))
		assert.Equal(t, mo.Some(day2024(1)), unbounded.After(time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), false))
		assert.True(t, bounded.After(day2024(10), false).IsAbsent())
	})

	t.Run("before", func(t *testing.T) {
		assert.Equal(t, mo.Some(day2024(4)), unbounded.Before(day2024(5), false))
		assert.Equal(t, mo.Some(day2024(5)), unbounded.Before(day2024(5), true))
		assert.Equal(t, mo.Some(day2024(10)), bounded.Before(day2024(30), false))
		assert.True(t, unbounded.Before(day2024(1), false).IsAbsent())
	})

	t.Run("count", func(t *testing.T) {
		n, err := bounded.Count()
		require.NoError(t, err)
		assert.Equal(t, 10, n)

		_, err = unbounded.Count()
		assert.True(t, errors.Is(err, ErrUnboundedCount))
	})

	t.Run("all", func(t *testing.T) {
		got, err := bounded.All(0)
		require.NoError(t, err)
		assert.Len(t, got, 10)

		got, err = bounded.All(3)
		require.NoError(t, err)
		assert.Len(t, got, 3)

		_, err = unbounded.All(0)
		assert.True(t, errors.Is(err, ErrUnboundedCount))
	})

	t.Run("take", func(t *testing.T) {
		assert.Equal(t, []time.Time{day2024(5), day2024(6)}, Take(unbounded, 2, day2024(5)))
		assert.Equal(t, []time.Time{day2024(10)}, Take(bounded, 5, day2024(10)))
		assert.Empty(t, Take(bounded, 0, day2024(1)))
	})
}

func TestQueries_UntilIsInclusive(t *testing.T) {
	r := MustNewRule(Options{Freq: Daily, Dtstart: jan2024, Until: day2024(3)})
	got, err := r.All(0)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{day2024(1), day2024(2), day2024(3)}, got)
}

func TestQueries_Concurrent(t *testing.T) {
	r := MustNewRule(Options{Freq: Hourly, Dtstart: jan2024, Count: mo.Some(500)})
	want, err := r.All(0)
	require.NoError(t, err)

	results := make(chan []time.Time, 8)
	for i := 0; i < 8; i++ {
		go func() {
			got, _ := r.All(0)
			results <- got
		}()
	}
	for i := 0; i < 8; i++ {
		assert.Equal(t, want, <-results)
	}
}
