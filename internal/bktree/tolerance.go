package bktree

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// TolerancePolicy picks a search tolerance for a query.
type TolerancePolicy func(query string) int

// DefaultTolerance allows max(1, floor(0.7 * len(query))) edits.
var DefaultTolerance = LinearTolerance(0.7, 1)

// LinearTolerance allows floor(factor * len(query)) edits, but never fewer
// than floor.
func LinearTolerance(factor float64, floor int) TolerancePolicy {
	return func(query string) int {
		return max(floor, int(math.Floor(factor*float64(queryLen(query)))))
	}
}

// SqrtTolerance allows floor(sqrt(len(query))) edits, but never fewer than
// floor.
func SqrtTolerance(floor int) TolerancePolicy {
	return func(query string) int {
		return max(floor, int(math.Sqrt(float64(queryLen(query)))))
	}
}

// FixedTolerance allows n edits regardless of the query.
func FixedTolerance(n int) TolerancePolicy {
	return func(string) int {
		return n
	}
}

// ParseTolerancePolicy parses a policy name as used in configuration:
//
//	linear          0.7 * len, at least 1
//	linear:<factor> factor * len, at least 1
//	sqrt            sqrt(len), at least 1
//	fixed:<n>       n
func ParseTolerancePolicy(s string) (TolerancePolicy, error) {
	name, arg, hasArg := strings.Cut(strings.TrimSpace(s), ":")
	switch strings.ToLower(name) {
	case "", "linear":
		if !hasArg {
			return DefaultTolerance, nil
		}
		factor, err := strconv.ParseFloat(arg, 64)
		if err != nil || factor < 0 || math.IsNaN(factor) || math.IsInf(factor, 0) {
			return nil, fmt.Errorf("invalid linear tolerance factor %q", arg)
		}
		return LinearTolerance(factor, 1), nil
	case "sqrt":
		if hasArg {
			return nil, fmt.Errorf("sqrt tolerance takes no argument, got %q", arg)
		}
		return SqrtTolerance(1), nil
	case "fixed":
		n, err := strconv.Atoi(arg)
		if !hasArg || err != nil || n < 0 {
			return nil, fmt.Errorf("invalid fixed tolerance %q", arg)
		}
		return FixedTolerance(n), nil
	default:
		return nil, fmt.Errorf("unknown tolerance policy %q", name)
	}
}

func queryLen(query string) int {
	_, q := ParseIdentifier(query)
	return utf8.RuneCountInString(q)
}
