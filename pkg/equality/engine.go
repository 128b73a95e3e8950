// ABOUTME: Comparator-based identity check between two bags
// ABOUTME: Only comparator end-names are consulted, so cache and identifier never matter

// Package equality decides whether two bags describe the same entity. The
// default mode compares comparator type and value; MatchTypeOnly keeps the
// legacy comparison of runtime type alone.
package equality

import "github.com/nainya/itemstore/pkg/item"

// Mode selects how comparator aspects are matched
type Mode int

const (
	// MatchTypeAndValue requires equal runtime type and equal payload
	MatchTypeAndValue Mode = iota

	// MatchTypeOnly requires only equal runtime type; payloads are ignored
	MatchTypeOnly
)

// String returns the mode name
func (m Mode) String() string {
	switch m {
	case MatchTypeAndValue:
		return "type-and-value"
	case MatchTypeOnly:
		return "type-only"
	default:
		return "unknown"
	}
}

// Engine compares bags through their comparator sets
type Engine struct {
	mode Mode
}

// Option configures an Engine
type Option func(*Engine)

// WithMode sets the aspect match mode
func WithMode(m Mode) Option {
	return func(e *Engine) {
		e.mode = m
	}
}

// NewEngine creates an engine; the default mode is MatchTypeAndValue
func NewEngine(opts ...Option) *Engine {
	e := &Engine{mode: MatchTypeAndValue}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Mode returns the configured match mode
func (e *Engine) Mode() Mode {
	return e.mode
}

// IsEqual reports whether a and b describe the same entity. Both comparator
// sets must have identical membership, and for each comparator of a (in
// insertion order) the aspects found by end-name in both bags must match.
// A missing aspect on either side yields false.
func (e *Engine) IsEqual(a, b *item.Bag) bool {
	if a == nil || b == nil {
		return false
	}

	// First, if the comparator sets differ then fail at this point
	if !sameMembership(a, b) {
		return false
	}

	// Now check the comparator aspects
	for _, c := range a.Comparators() {
		_, other, ok := b.Lookup(c)
		if !ok {
			return false
		}
		if !e.aspectMatches(a, c, other) {
			return false
		}
	}

	return true
}

// FindEqual returns the candidates equal to target, preserving order
func (e *Engine) FindEqual(target *item.Bag, candidates []*item.Bag) []*item.Bag {
	var out []*item.Bag
	for _, c := range candidates {
		if e.IsEqual(c, target) {
			out = append(out, c)
		}
	}
	return out
}

func (e *Engine) aspectMatches(b *item.Bag, endName string, v item.Value) bool {
	if e.mode == MatchTypeOnly {
		return b.MatchesAspect(endName, v)
	}
	return b.AspectEquals(endName, v)
}

func sameMembership(a, b *item.Bag) bool {
	ac := a.Comparators()
	bc := b.Comparators()
	if len(ac) != len(bc) {
		return false
	}
	for _, c := range ac {
		if !b.HasComparator(c) {
			return false
		}
	}
	return true
}

// IsEqual compares a and b with a default engine
func IsEqual(a, b *item.Bag) bool {
	return defaultEngine.IsEqual(a, b)
}

var defaultEngine = NewEngine()
