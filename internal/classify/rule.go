// Package classify turns pattern scores into categories with ordered,
// first-match-wins rule lists.
package classify

import (
	"math"

	"taskradar/internal/patterns"
)

// LibrarySource yields the pattern library to score against. A
// *patterns.Store satisfies it.
type LibrarySource interface {
	Current() *patterns.Library
}

// Rule is one branch of a decision list. Rules are evaluated in order and
// the first whose When holds decides the category.
type Rule[S any, C ~string] struct {
	Name       string
	When       func(S) bool
	Category   C
	Confidence func(S) float64
}

// evaluate returns the first matching rule. The last rule of every list is
// unconditional, so ok is false only for a malformed list.
func evaluate[S any, C ~string](rules []Rule[S, C], s S) (Rule[S, C], float64, bool) {
	for _, r := range rules {
		if r.When(s) {
			return r, roundConfidence(r.Confidence(s)), true
		}
	}
	return Rule[S, C]{}, 0, false
}

func fixed[S any](v float64) func(S) float64 { return func(S) float64 { return v } }

func always[S any](S) bool { return true }

func ratio(n, d int) float64 {
	return math.Min(float64(n)/float64(d), 1.0)
}

func roundConfidence(v float64) float64 {
	if v > 1 {
		v = 1
	}
	return math.Round(v*100) / 100
}
