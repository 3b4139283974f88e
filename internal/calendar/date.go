package calendar

import (
	"fmt"
	"time"
)

// Date is a locale-independent calendar date with an optional time-of-day.
//
// A Date is a plain value: copy it freely, never mutate it in place. The
// zero value is not a valid date; construct dates through the normalizer
// or through New, both of which validate month length and leap years.
//
// Month is 1-12. The time-of-day fields are meaningful only when HasTime
// is true; otherwise the date refers to the whole day.
type Date struct {
	Year  int
	Month int // 1-12
	Day   int

	HasTime bool
	Hour    int
	Minute  int
	Second  int
}

// New constructs a validated date without a time-of-day component.
func New(year, month, day int) (Date, error) {
	d := Date{Year: year, Month: month, Day: day}
	if err := d.Validate(); err != nil {
		return Date{}, err
	}
	return d, nil
}

// At returns a copy of the date carrying the given time-of-day.
func (d Date) At(hour, minute, second int) (Date, error) {
	d.HasTime = true
	d.Hour, d.Minute, d.Second = hour, minute, second
	if err := d.Validate(); err != nil {
		return Date{}, err
	}
	return d, nil
}

// Validate checks month range, month length (including leap years), and
// the time-of-day fields. Returns an *InvalidDateError on failure.
func (d Date) Validate() error {
	if d.Month < 1 || d.Month > 12 {
		return newOutOfRangeError(d.String(), fmt.Sprintf("month %d out of range 1-12", d.Month))
	}
	if d.Day < 1 || d.Day > DaysInMonth(d.Year, d.Month) {
		return newOutOfRangeError(d.String(), fmt.Sprintf("day %d out of range for %s %d", d.Day, time.Month(d.Month), d.Year))
	}
	if d.HasTime {
		if d.Hour < 0 || d.Hour > 23 || d.Minute < 0 || d.Minute > 59 || d.Second < 0 || d.Second > 59 {
			return newOutOfRangeError(d.String(), fmt.Sprintf("time %02d:%02d:%02d out of range", d.Hour, d.Minute, d.Second))
		}
	}
	return nil
}

// String renders the date in ISO form, with the time-of-day appended when
// present. This is a display/debugging form only - dates sent to the
// scripting engine go through the codec, never through String.
func (d Date) String() string {
	if d.HasTime {
		return fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d", d.Year, d.Month, d.Day, d.Hour, d.Minute, d.Second)
	}
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// Equal reports whether two dates denote the same instant, including the
// presence and value of the time-of-day component.
func (d Date) Equal(o Date) bool {
	return d == o
}

// Time converts the date to a time.Time in the given location. Dates
// without a time-of-day map to midnight.
func (d Date) Time(loc *time.Location) time.Time {
	return time.Date(d.Year, time.Month(d.Month), d.Day, d.Hour, d.Minute, d.Second, 0, loc)
}

// AddDays returns the date shifted by n calendar days (n may be negative).
// The time-of-day component is preserved.
func (d Date) AddDays(n int) Date {
	t := d.Time(time.UTC).AddDate(0, 0, n)
	return Date{
		Year: t.Year(), Month: int(t.Month()), Day: t.Day(),
		HasTime: d.HasTime, Hour: d.Hour, Minute: d.Minute, Second: d.Second,
	}
}

// AddMonths returns the date shifted by n calendar months (n may be
// negative), clamping the day to the target month's length: January 31
// plus one month is February 28, or 29 in a leap year. Clamping is
// deliberate - time.AddDate would normalize the overflow into March,
// which silently lands the date in the wrong month.
func (d Date) AddMonths(n int) Date {
	months := d.Month - 1 + n
	year := d.Year + months/12
	month := months % 12
	if month < 0 {
		month += 12
		year--
	}
	month++

	day := d.Day
	if dim := DaysInMonth(year, month); day > dim {
		day = dim
	}
	return Date{
		Year: year, Month: month, Day: day,
		HasTime: d.HasTime, Hour: d.Hour, Minute: d.Minute, Second: d.Second,
	}
}

// FromTime builds a Date from a time.Time, truncating to the day. The
// time-of-day is not carried over; callers that need it use At.
func FromTime(t time.Time) Date {
	return Date{Year: t.Year(), Month: int(t.Month()), Day: t.Day()}
}

// IsLeapYear implements the Gregorian leap year rule.
func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

var monthDays = [13]int{0, 31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

// DaysInMonth returns the number of days in the given month of the given
// year, accounting for leap years.
func DaysInMonth(year, month int) int {
	if month == 2 && IsLeapYear(year) {
		return 29
	}
	if month < 1 || month > 12 {
		return 0
	}
	return monthDays[month]
}
