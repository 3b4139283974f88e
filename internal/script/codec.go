package script

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/osabridge/internal/calendar"
)

// monthConstants are the engine's symbolic month names, indexed by month
// number. Months are ALWAYS assigned symbolically: assigning a numeric
// month while the date variable still holds an out-of-range day makes the
// engine's date arithmetic roll the date over, sometimes by years.
var monthConstants = [13]string{
	"", "January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

// EncodeDate emits instructions that build the given date in the engine
// variable varName.
//
// The assignment order is load-bearing and fixed:
//
//  1. zero the time-of-day
//  2. set day-of-month to 1 (valid in every month)
//  3. set the year
//  4. set the month, via its symbolic constant
//  5. set the real day-of-month
//  6. set the time-of-day, if any
//
// At every intermediate step the variable holds a valid date, so the
// engine never normalizes a transiently-invalid date behind our back.
// The date must already be validated; EncodeDate panics on an invalid
// month index because that is a contract violation, not input error.
func EncodeDate(varName string, d calendar.Date) string {
	var b strings.Builder
	fmt.Fprintf(&b, "set %s to (current date)\n", varName)
	fmt.Fprintf(&b, "set time of %s to 0\n", varName)
	fmt.Fprintf(&b, "set day of %s to 1\n", varName)
	fmt.Fprintf(&b, "set year of %s to %d\n", varName, d.Year)
	fmt.Fprintf(&b, "set month of %s to %s\n", varName, monthConstants[d.Month])
	fmt.Fprintf(&b, "set day of %s to %d", varName, d.Day)
	if d.HasTime {
		secs := d.Hour*3600 + d.Minute*60 + d.Second
		fmt.Fprintf(&b, "\nset time of %s to %d", varName, secs)
	}
	return b.String()
}

// DateProbe emits an expression that prints the date held in varName as
// field-tagged integers, one field per token:
//
//	y:2024|m:3|d:15|t:66600
//
// The probe reads the engine's numeric year/month/day/time fields
// directly. It never touches the engine's display string, so the output
// is identical regardless of the host's language and region settings.
func DateProbe(varName string) string {
	return fmt.Sprintf(
		`"y:" & (year of %[1]s as integer) & "|m:" & (month of %[1]s as integer) & "|d:" & (day of %[1]s as integer) & "|t:" & (time of %[1]s as integer)`,
		varName,
	)
}

// DecodeDate parses DateProbe output back into a Date.
//
// A zero time field decodes as a date without a time-of-day: the encoder
// zeroes the time for date-only values, so midnight and "no time" are the
// same engine state.
func DecodeDate(output string) (calendar.Date, error) {
	fields := map[string]int{}
	for _, tok := range strings.Split(strings.TrimSpace(output), "|") {
		key, val, ok := strings.Cut(tok, ":")
		if !ok {
			return calendar.Date{}, fmt.Errorf("malformed date field %q in engine output", tok)
		}
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return calendar.Date{}, fmt.Errorf("non-numeric date field %q: %w", tok, err)
		}
		fields[strings.TrimSpace(key)] = n
	}
	for _, key := range []string{"y", "m", "d", "t"} {
		if _, ok := fields[key]; !ok {
			return calendar.Date{}, fmt.Errorf("engine output missing date field %q", key)
		}
	}

	d := calendar.Date{Year: fields["y"], Month: fields["m"], Day: fields["d"]}
	if t := fields["t"]; t > 0 {
		if t >= 24*3600 {
			return calendar.Date{}, fmt.Errorf("engine time field %d out of range", t)
		}
		d.HasTime = true
		d.Hour = t / 3600
		d.Minute = (t % 3600) / 60
		d.Second = t % 60
	}
	if err := d.Validate(); err != nil {
		return calendar.Date{}, fmt.Errorf("engine returned invalid date: %w", err)
	}
	return d, nil
}
