package sk

import (
	"fmt"
	"sort"
	"strings"
)

// Retention categories understood by Decide.
const (
	CategoryAll     = "all"
	CategoryDaily   = "daily"
	CategoryWeekly  = "weekly"
	CategoryMonthly = "monthly"
)

// ForeverExpr is the retention expression meaning "keep without a time limit".
const ForeverExpr = "forever"

// Keep is how long a retention category reaches back: either forever or a
// finite Age. The zero value is not valid; use KeepForever or KeepFor.
type Keep struct {
	forever bool
	age     Age
}

// KeepForever returns the unbounded Keep.
func KeepForever() Keep { return Keep{forever: true} }

// KeepFor returns a Keep bounded by age.
func KeepFor(age Age) Keep { return Keep{age: age} }

// Forever reports whether the category is unbounded.
func (k Keep) Forever() bool { return k.forever }

// Age returns the finite bound. It is only meaningful when Forever is false.
func (k Keep) Age() Age { return k.age }

func (k Keep) String() string {
	if k.forever {
		return ForeverExpr
	}
	return k.age.String()
}

// ParseKeep parses a retention expression: the age grammar plus "forever".
func ParseKeep(expr string) (Keep, error) {
	if strings.EqualFold(strings.TrimSpace(expr), ForeverExpr) {
		return KeepForever(), nil
	}
	age, err := ParseAge(expr)
	if err != nil {
		return Keep{}, err
	}
	return KeepFor(age), nil
}

// Policy maps a retention category to how far back it keeps snapshots.
// Categories are independent; absent categories contribute nothing.
type Policy map[string]Keep

// ParsePolicy converts raw config entries into a Policy. Unknown categories and
// unparsable expressions are skipped and reported as warnings; the remaining
// categories and the floor rule still apply.
func ParsePolicy(raw map[string]string) (Policy, []error) {
	policy := Policy{}
	var warnings []error

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, category := range keys {
		switch category {
		case CategoryAll, CategoryDaily, CategoryWeekly, CategoryMonthly:
		default:
			warnings = append(warnings, fmt.Errorf("ignoring unknown retention category %q", category))
			continue
		}
		keep, err := ParseKeep(raw[category])
		if err != nil {
			warnings = append(warnings, fmt.Errorf("ignoring retention category %q: %w", category, err))
			continue
		}
		policy[category] = keep
	}

	return policy, warnings
}
