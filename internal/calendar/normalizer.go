package calendar

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Hint resolves date strings whose field order is structurally ambiguous.
//
// Without a hint, input like "02/01/2024" (readable as Feb 1 or Jan 2)
// always fails with an AMBIGUOUS error. The normalizer never guesses a
// locale - a wrong guess produces a silently-wrong date, which is worse
// than a surfaced failure.
type Hint int

const (
	// HintNone applies no field-order preference (ambiguity fails closed).
	HintNone Hint = iota
	// HintISO asserts year-month-day order.
	HintISO
	// HintUS asserts month/day/year order.
	HintUS
	// HintEuropean asserts day.month.year order.
	HintEuropean
)

// Option configures a Normalize call.
type Option func(*normOptions)

type normOptions struct {
	hint Hint
	now  func() time.Time
}

// WithHint sets an explicit field-order hint for separated numeric forms.
func WithHint(h Hint) Option {
	return func(o *normOptions) { o.hint = h }
}

// WithNow overrides the clock used for keyword and relative forms.
// Tests use this for deterministic "today"/"+3 days" resolution.
func WithNow(now func() time.Time) Option {
	return func(o *normOptions) { o.now = now }
}

var (
	isoRe      = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})(?:[t@ ](\d{1,2}):(\d{2})(?::(\d{2}))?)?$`)
	// Separators must be homogeneous: "15.3/2024" is not a date in any
	// locale. RE2 has no backreferences, so slash and dot forms are two
	// patterns.
	slashRe = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})$`)
	dotRe   = regexp.MustCompile(`^(\d{1,2})\.(\d{1,2})\.(\d{4})$`)
	relativeRe = regexp.MustCompile(`^([+-])\s*(\d+)\s*(day|days|week|weeks|month|months)$`)
	monthDayRe = regexp.MustCompile(`^([a-z]+)\s+(\d{1,2}),?\s+(\d{4})$`)
	dayMonthRe = regexp.MustCompile(`^(\d{1,2})\s+([a-z]+),?\s+(\d{4})$`)
)

var monthNames = map[string]int{
	"january": 1, "jan": 1,
	"february": 2, "feb": 2,
	"march": 3, "mar": 3,
	"april": 4, "apr": 4,
	"may": 5,
	"june": 6, "jun": 6,
	"july": 7, "jul": 7,
	"august": 8, "aug": 8,
	"september": 9, "sep": 9, "sept": 9,
	"october": 10, "oct": 10,
	"november": 11, "nov": 11,
	"december": 12, "dec": 12,
}

// Normalize parses heterogeneous date input into a Date.
//
// Accepted forms:
//   - ISO: "2024-03-15", optionally with a time-of-day ("2024-03-15 18:30")
//   - US: "3/15/2024" (month/day/year)
//   - European: "15.3.2024" (day.month.year)
//   - Keywords: "today", "tomorrow", "yesterday"
//   - Relative: "+3 days", "-2 weeks", "+1 month" (month offsets clamp
//     to the target month's length, see AddMonths)
//   - Month names: "March 15, 2024", "15 March 2024"
//
// Input is NFC-normalized and case-folded before matching, so composed
// and decomposed Unicode spellings of the same text parse identically.
//
// Every failure is an *InvalidDateError; Normalize never panics on
// malformed or out-of-range input.
func Normalize(input string, opts ...Option) (Date, error) {
	o := normOptions{hint: HintNone, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	// Canonicalize before matching: NFC, trimmed, case-folded.
	s := strings.ToLower(strings.TrimSpace(norm.NFC.String(input)))
	if s == "" {
		return Date{}, newMalformedError(input, "empty date string")
	}

	switch s {
	case "today":
		return FromTime(o.now()), nil
	case "tomorrow":
		return FromTime(o.now()).AddDays(1), nil
	case "yesterday":
		return FromTime(o.now()).AddDays(-1), nil
	}

	if m := isoRe.FindStringSubmatch(s); m != nil {
		return parseISO(input, m)
	}
	if m := slashRe.FindStringSubmatch(s); m != nil {
		return parseNumeric(input, m, o.hint)
	}
	if m := dotRe.FindStringSubmatch(s); m != nil {
		return parseNumeric(input, m, o.hint)
	}
	if m := relativeRe.FindStringSubmatch(s); m != nil {
		return parseRelative(input, m, o.now)
	}
	if m := monthDayRe.FindStringSubmatch(s); m != nil {
		return parseMonthName(input, m[1], m[2], m[3])
	}
	if m := dayMonthRe.FindStringSubmatch(s); m != nil {
		return parseMonthName(input, m[2], m[1], m[3])
	}

	return Date{}, newMalformedError(input, "unrecognized date format")
}

// NormalizeDate validates an already-constructed Date. Normalizing a
// normalized date is a no-op: the value is returned unchanged.
func NormalizeDate(d Date) (Date, error) {
	if err := d.Validate(); err != nil {
		return Date{}, err
	}
	return d, nil
}

func parseISO(input string, m []string) (Date, error) {
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	d := Date{Year: year, Month: month, Day: day}
	if m[4] != "" {
		d.HasTime = true
		d.Hour, _ = strconv.Atoi(m[4])
		d.Minute, _ = strconv.Atoi(m[5])
		if m[6] != "" {
			d.Second, _ = strconv.Atoi(m[6])
		}
	}
	if err := d.Validate(); err != nil {
		return Date{}, wrapInput(err, input)
	}
	return d, nil
}

// parseNumeric handles the separated two-digit forms. Field order is
// decided by, in precedence: the caller's hint, then an out-of-range
// first or second field (a value > 12 can only be the day), then - if
// both fields could be a month and they differ - the ambiguity rule:
// fail closed.
func parseNumeric(input string, m []string, hint Hint) (Date, error) {
	first, _ := strconv.Atoi(m[1])
	second, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])

	var month, day int
	switch {
	case hint == HintUS:
		month, day = first, second
	case hint == HintEuropean:
		day, month = first, second
	case hint == HintISO:
		return Date{}, newMalformedError(input, "ISO hint given but input is not YYYY-MM-DD")
	case first > 12 && second > 12:
		return Date{}, newOutOfRangeError(input, "no field can be a month")
	case first > 12:
		day, month = first, second
	case second > 12:
		month, day = first, second
	case first == second:
		month, day = first, second
	default:
		return Date{}, newAmbiguousError(input)
	}

	d := Date{Year: year, Month: month, Day: day}
	if err := d.Validate(); err != nil {
		return Date{}, wrapInput(err, input)
	}
	return d, nil
}

func parseRelative(input string, m []string, now func() time.Time) (Date, error) {
	n, err := strconv.Atoi(m[2])
	if err != nil {
		return Date{}, newMalformedError(input, "offset too large")
	}
	if m[1] == "-" {
		n = -n
	}
	if strings.HasPrefix(m[3], "month") {
		return FromTime(now()).AddMonths(n), nil
	}
	if strings.HasPrefix(m[3], "week") {
		n *= 7
	}
	return FromTime(now()).AddDays(n), nil
}

func parseMonthName(input, name, dayStr, yearStr string) (Date, error) {
	month, ok := monthNames[name]
	if !ok {
		return Date{}, newMalformedError(input, fmt.Sprintf("unknown month name %q", name))
	}
	day, _ := strconv.Atoi(dayStr)
	year, _ := strconv.Atoi(yearStr)
	d := Date{Year: year, Month: month, Day: day}
	if err := d.Validate(); err != nil {
		return Date{}, wrapInput(err, input)
	}
	return d, nil
}

// wrapInput rewrites a validation error to carry the original input text
// instead of the partially-built date's display form.
func wrapInput(err error, input string) error {
	if ide, ok := err.(*InvalidDateError); ok {
		return &InvalidDateError{Code: ide.Code, Input: input, Message: ide.Message}
	}
	return err
}
