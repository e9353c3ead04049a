package transform

import (
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/itchyny/timefmt-go"
)

// ParseDate parses s with the strftime pattern format, or guesses the
// layout when format is empty. Ambiguous numeric dates are read day first.
// A trailing time or note after the date is ignored when the date alone
// parses.
func ParseDate(s, format string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if format != "" {
		in := s
		if !strings.ContainsAny(format, " \t") {
			in = firstToken(s)
		}
		t, err := timefmt.Parse(in, format)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %q does not match %q: %w", ErrParse, s, format, err)
		}
		return t, nil
	}

	t, err := dateparse.ParseAny(s, dateparse.PreferMonthFirst(false))
	if err == nil {
		return t, nil
	}
	if tok := firstToken(s); tok != s {
		if t, err := dateparse.ParseAny(tok, dateparse.PreferMonthFirst(false)); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q is not a recognised date: %w", ErrParse, s, err)
}

func firstToken(s string) string {
	if f := strings.Fields(s); len(f) > 0 {
		return f[0]
	}
	return s
}
