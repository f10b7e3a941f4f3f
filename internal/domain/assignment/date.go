package assignment

import (
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/tplearn/tplearn-bot/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// DUE DATE
// Accepted grammar:
//
//	date := day sep month [sep year]
//	day, month := 1*2DIGIT
//	year := 1*4DIGIT            (values below 100 mean 20YY)
//	sep := any single non-digit character, whitespace included;
//	       both separators must be the same character
//
// A two-part date takes the year of the reference day. Anything else is kept
// verbatim and treated as an unknown date.
// ══════════════════════════════════════════════════════════════════════════════

// Due is either a raw, unparseable input or a parsed calendar day.
type Due struct {
	Raw   string
	Day   time.Time
	Known bool
}

// ParseDue parses raw against the grammar. ref supplies the year for
// two-part dates.
func ParseDue(raw string, ref time.Time) Due {
	day, ok := parseDay(strings.TrimSpace(raw), ref.Year())
	if !ok {
		return Due{Raw: raw}
	}
	return Due{Raw: raw, Day: day, Known: true}
}

// Readable renders the day for humans, or the raw input when unknown.
func (d Due) Readable() string {
	if !d.Known {
		return d.Raw
	}
	return timeutil.Readable(d.Day)
}

// LastDay returns the final day of a span of lasted days starting at the due day.
func (d Due) LastDay(lasted int) time.Time {
	if lasted < 1 {
		lasted = 1
	}
	return d.Day.AddDate(0, 0, lasted-1)
}

func parseDay(s string, refYear int) (time.Time, bool) {
	day, rest, ok := takeNumber(s, 2)
	if !ok || rest == "" {
		return time.Time{}, false
	}

	sep, size := firstRune(rest)
	if unicode.IsDigit(sep) {
		return time.Time{}, false
	}
	rest = rest[size:]

	month, rest, ok := takeNumber(rest, 2)
	if !ok {
		return time.Time{}, false
	}

	year := refYear
	if rest != "" {
		next, size := firstRune(rest)
		if next != sep {
			return time.Time{}, false
		}
		y, tail, ok := takeNumber(rest[size:], 4)
		if !ok || tail != "" {
			return time.Time{}, false
		}
		year = y
		if year < 100 {
			year += 2000
		}
	}

	if !timeutil.IsValidDate(year, month, day) {
		return time.Time{}, false
	}
	return timeutil.Date(year, month, day), true
}

// takeNumber consumes 1..max leading ASCII digits.
func takeNumber(s string, max int) (int, string, bool) {
	n := 0
	for n < len(s) && n < max && s[n] >= '0' && s[n] <= '9' {
		n++
	}
	if n == 0 {
		return 0, s, false
	}
	// A longer digit run than allowed is not this grammar.
	if n < len(s) && s[n] >= '0' && s[n] <= '9' {
		return 0, s, false
	}
	v, err := strconv.Atoi(s[:n])
	if err != nil {
		return 0, s, false
	}
	return v, s[n:], true
}

func firstRune(s string) (rune, int) {
	return utf8.DecodeRuneInString(s)
}

// ══════════════════════════════════════════════════════════════════════════════
// MENU DATE INPUT
// ══════════════════════════════════════════════════════════════════════════════

// DateInput is a resolved date typed into the menu.
type DateInput struct {
	Date   string
	Lasted int
}

// ParseDateInput resolves menu input. "++N" becomes today+N as D/M/YYYY.
// A second positive integer token after a date sets the span in days;
// otherwise the span is one day. Input that is not a date token plus span,
// such as a space separated "05 03 2024", is kept whole for ParseDue.
// today is a calendar date.
func ParseDateInput(input string, today time.Time) DateInput {
	fields := strings.Fields(input)
	if len(fields) == 0 || len(fields) > 2 {
		return DateInput{Date: input, Lasted: 1}
	}

	date, ok := resolveDateToken(fields[0], today)
	if !ok {
		return DateInput{Date: input, Lasted: 1}
	}
	if len(fields) == 1 {
		return DateInput{Date: date, Lasted: 1}
	}

	n, err := strconv.Atoi(fields[1])
	if err != nil || n < 1 {
		return DateInput{Date: input, Lasted: 1}
	}
	return DateInput{Date: date, Lasted: n}
}

func resolveDateToken(tok string, today time.Time) (string, bool) {
	if rel, found := strings.CutPrefix(tok, "++"); found {
		n, err := strconv.Atoi(rel)
		if err != nil || n < 0 {
			return tok, false
		}
		return today.AddDate(0, 0, n).Format(timeutil.ShortLayout), true
	}
	return tok, ParseDue(tok, today).Known
}
