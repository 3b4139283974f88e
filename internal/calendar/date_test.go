package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_ValidDate(t *testing.T) {
	d, err := New(2024, 3, 15)
	require.NoError(t, err)
	assert.Equal(t, 2024, d.Year)
	assert.Equal(t, 3, d.Month)
	assert.Equal(t, 15, d.Day)
	assert.False(t, d.HasTime)
}

func TestNew_Feb29LeapYear(t *testing.T) {
	d, err := New(2024, 2, 29)
	require.NoError(t, err)
	assert.Equal(t, 29, d.Day)
}

func TestNew_Feb29NonLeapYear(t *testing.T) {
	_, err := New(2023, 2, 29)
	require.Error(t, err)
	ide := &InvalidDateError{}
	require.ErrorAs(t, err, &ide)
	assert.Equal(t, ErrCodeOutOfRange, ide.Code)
}

func TestNew_Feb30(t *testing.T) {
	_, err := New(2024, 2, 30)
	require.Error(t, err)
	assert.True(t, IsInvalidDate(err))
}

func TestNew_MonthOutOfRange(t *testing.T) {
	_, err := New(2024, 13, 1)
	require.Error(t, err)

	_, err = New(2024, 0, 1)
	require.Error(t, err)
}

func TestAt_TimeOfDay(t *testing.T) {
	d, err := New(2024, 3, 15)
	require.NoError(t, err)

	dt, err := d.At(18, 30, 0)
	require.NoError(t, err)
	assert.True(t, dt.HasTime)
	assert.Equal(t, "2024-03-15 18:30:00", dt.String())

	// The original value is unchanged.
	assert.False(t, d.HasTime)
}

func TestAt_InvalidTime(t *testing.T) {
	d, err := New(2024, 3, 15)
	require.NoError(t, err)

	_, err = d.At(24, 0, 0)
	require.Error(t, err)
	_, err = d.At(12, 60, 0)
	require.Error(t, err)
}

func TestAddDays_MonthBoundary(t *testing.T) {
	tests := []struct {
		name string
		from Date
		n    int
		want Date
	}{
		{"jan 31 forward", Date{Year: 2024, Month: 1, Day: 31}, 1, Date{Year: 2024, Month: 2, Day: 1}},
		{"feb 29 forward", Date{Year: 2024, Month: 2, Day: 29}, 1, Date{Year: 2024, Month: 3, Day: 1}},
		{"aug 31 forward", Date{Year: 2024, Month: 8, Day: 31}, 1, Date{Year: 2024, Month: 9, Day: 1}},
		{"year boundary", Date{Year: 2023, Month: 12, Day: 31}, 1, Date{Year: 2024, Month: 1, Day: 1}},
		{"backward across month", Date{Year: 2024, Month: 3, Day: 1}, -1, Date{Year: 2024, Month: 2, Day: 29}},
		{"week forward", Date{Year: 2024, Month: 2, Day: 26}, 7, Date{Year: 2024, Month: 3, Day: 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.AddDays(tt.n))
		})
	}
}

func TestAddMonths_ClampsToMonthEnd(t *testing.T) {
	tests := []struct {
		name string
		from Date
		n    int
		want Date
	}{
		{"plain forward", Date{Year: 2024, Month: 3, Day: 15}, 2, Date{Year: 2024, Month: 5, Day: 15}},
		{"jan 31 to leap feb", Date{Year: 2024, Month: 1, Day: 31}, 1, Date{Year: 2024, Month: 2, Day: 29}},
		{"jan 31 to non-leap feb", Date{Year: 2023, Month: 1, Day: 31}, 1, Date{Year: 2023, Month: 2, Day: 28}},
		{"may 31 to june", Date{Year: 2024, Month: 5, Day: 31}, 1, Date{Year: 2024, Month: 6, Day: 30}},
		{"across year forward", Date{Year: 2024, Month: 11, Day: 15}, 3, Date{Year: 2025, Month: 2, Day: 15}},
		{"backward", Date{Year: 2024, Month: 3, Day: 15}, -3, Date{Year: 2023, Month: 12, Day: 15}},
		{"backward across year to short month", Date{Year: 2024, Month: 3, Day: 31}, -1, Date{Year: 2024, Month: 2, Day: 29}},
		{"full year", Date{Year: 2024, Month: 2, Day: 29}, 12, Date{Year: 2025, Month: 2, Day: 28}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.AddMonths(tt.n))
		})
	}
}

func TestAddMonths_PreservesTimeOfDay(t *testing.T) {
	d, err := New(2024, 3, 15)
	require.NoError(t, err)
	dt, err := d.At(18, 30, 0)
	require.NoError(t, err)

	got := dt.AddMonths(1)
	assert.True(t, got.HasTime)
	assert.Equal(t, "2024-04-15 18:30:00", got.String())
}

func TestDaysInMonth(t *testing.T) {
	assert.Equal(t, 31, DaysInMonth(2024, 1))
	assert.Equal(t, 29, DaysInMonth(2024, 2))
	assert.Equal(t, 28, DaysInMonth(2023, 2))
	assert.Equal(t, 28, DaysInMonth(1900, 2)) // century, not leap
	assert.Equal(t, 29, DaysInMonth(2000, 2)) // 400-year rule
	assert.Equal(t, 30, DaysInMonth(2024, 4))
	assert.Equal(t, 0, DaysInMonth(2024, 13))
}

func TestFromTime(t *testing.T) {
	ts := time.Date(2024, time.March, 15, 18, 30, 0, 0, time.UTC)
	d := FromTime(ts)
	assert.Equal(t, Date{Year: 2024, Month: 3, Day: 15}, d)
}
