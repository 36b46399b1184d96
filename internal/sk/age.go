package sk

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DefaultInterval is used when a target's interval expression cannot be parsed.
var DefaultInterval = Age{Days: 1}

// Age is a span of time expressed the way operators write it in config:
// calendar months and days plus a clock duration. Months and days are applied
// with time.AddDate so they follow the calendar rather than a fixed length.
type Age struct {
	Months   int
	Days     int
	Duration time.Duration
}

// Before returns t moved back by the age.
func (a Age) Before(t time.Time) time.Time {
	return t.AddDate(0, -a.Months, -a.Days).Add(-a.Duration)
}

// IsZero reports whether the age spans no time at all.
func (a Age) IsZero() bool {
	return a.Months == 0 && a.Days == 0 && a.Duration == 0
}

func (a Age) String() string {
	switch {
	case a.Months > 0:
		return fmt.Sprintf("%d months", a.Months)
	case a.Days > 0:
		return fmt.Sprintf("%d days", a.Days)
	default:
		return a.Duration.String()
	}
}

// agePattern pairs an expression form with the Age it yields for n.
type agePattern struct {
	re    *regexp.Regexp
	build func(n int) Age
}

// agePatterns are tried in order; the first one that yields a positive age wins.
var agePatterns = []agePattern{
	{regexp.MustCompile(`^(\d+)\s+months?$`), func(n int) Age { return Age{Months: n} }},
	{regexp.MustCompile(`^(\d+)\s+days?$`), func(n int) Age { return Age{Days: n} }},
	{regexp.MustCompile(`^(\d+)d$`), func(n int) Age { return Age{Days: n} }},
	{regexp.MustCompile(`^(\d+)\s+hours?$`), func(n int) Age { return Age{Duration: time.Duration(n) * time.Hour} }},
	{regexp.MustCompile(`^(\d+)h$`), func(n int) Age { return Age{Duration: time.Duration(n) * time.Hour} }},
	{regexp.MustCompile(`^(\d+)\s+minutes?$`), func(n int) Age { return Age{Duration: time.Duration(n) * time.Minute} }},
}

// ParseAge parses an interval expression such as "3 days", "12h" or "2 months".
func ParseAge(expr string) (Age, error) {
	s := strings.ToLower(strings.TrimSpace(expr))
	for _, p := range agePatterns {
		m := p.re.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil || n <= 0 {
			continue
		}
		return p.build(n), nil
	}
	return Age{}, fmt.Errorf("unrecognized age expression: %q", expr)
}
