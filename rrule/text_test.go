package rrule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRule_Text(t *testing.T) {
	tests := []struct {
		rule string
		want string
	}{
		{"FREQ=DAILY", "every day"},
		{"FREQ=DAILY;COUNT=1", "every day for 1 time"},
		{"FREQ=WEEKLY;BYDAY=MO,WE,FR;COUNT=12", "every week on Monday, Wednesday and Friday for 12 times"},
		{"FREQ=WEEKLY;BYDAY=MO,TU,WE,TH,FR", "every weekday"},
		{"FREQ=WEEKLY;INTERVAL=2;BYDAY=TU", "every 2 weeks on Tuesday"},
		{"FREQ=MONTHLY;BYDAY=2TU", "every month on the 2nd Tuesday"},
		{"FREQ=MONTHLY;BYDAY=-1FR,-2FR", "every month on the last Friday and the 2nd last Friday"},
		{"FREQ=YEARLY;BYMONTH=1,3;BYMONTHDAY=-1", "every year in January and March on the last"},
		{"FREQ=YEARLY;BYYEARDAY=100", "every year on the 100th day of the year"},
		{"FREQ=YEARLY;BYWEEKNO=20;BYDAY=MO", "every year in week 20 on Monday"},
		{"FREQ=DAILY;BYHOUR=9,17", "every day at 9 and 17"},
		{"FREQ=DAILY;UNTIL=19971224T000000Z", "every day until December 24, 1997"},
		{"FREQ=MONTHLY;BYMONTHDAY=11,12,13;BYSETPOS=-1", "every month on the 11th, 12th and 13th keeping the last instance"},
	}

	for _, tt := range tests {
		t.Run(tt.rule, func(t *testing.T) {
			r, err := ParseRule(tt.rule, WithDtstart(start1997))
			require.NoError(t, err)
			assert.Equal(t, tt.want, r.Text())
		})
	}
}

func TestOrdinal(t *testing.T) {
	assert.Equal(t, "1st", ordinal(1))
	assert.Equal(t, "2nd", ordinal(2))
	assert.Equal(t, "3rd", ordinal(3))
	assert.Equal(t, "11th", ordinal(11))
	assert.Equal(t, "22nd", ordinal(22))
	assert.Equal(t, "113th", ordinal(113))
	assert.Equal(t, "last", ordinal(-1))
	assert.Equal(t, "3rd last", ordinal(-3))
}
