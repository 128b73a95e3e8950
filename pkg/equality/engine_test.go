// ABOUTME: Tests for the comparator equality engine
// ABOUTME: Covers membership, both match modes and cross-cache comparisons

package equality

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nainya/itemstore/pkg/item"
	"github.com/nainya/itemstore/pkg/naming"
)

type record struct{ ID int }

func bag(comparators []string, attrs map[string]item.Value) *item.Bag {
	return item.FromContentsAt(attrs, comparators, 1)
}

func TestEqualOnTextComparator(t *testing.T) {
	a := bag([]string{"id"}, map[string]item.Value{"c1.u1.id": item.Text("42"), "c1.u1.other": item.Text("x")})
	b := bag([]string{"id"}, map[string]item.Value{"c2.u2.id": item.Text("42"), "c2.u2.other": item.Text("y")})

	assert.True(t, IsEqual(a, b))
	assert.True(t, IsEqual(b, a))
}

func TestRuntimeTypeChangeBreaksEquality(t *testing.T) {
	a := bag([]string{"id"}, map[string]item.Value{"c1.u1.id": item.Text("42")})
	b := bag([]string{"id"}, map[string]item.Value{"c2.u2.id": item.Opaque(record{ID: 42})})

	for _, mode := range []Mode{MatchTypeAndValue, MatchTypeOnly} {
		e := NewEngine(WithMode(mode))
		assert.False(t, e.IsEqual(a, b), "mode %s", mode)
	}
}

func TestTypeOnlyIgnoresPayload(t *testing.T) {
	a := bag([]string{"id"}, map[string]item.Value{"c1.u1.id": item.Text("42")})
	b := bag([]string{"id"}, map[string]item.Value{"c2.u2.id": item.Text("99")})

	assert.True(t, NewEngine(WithMode(MatchTypeOnly)).IsEqual(a, b))
	assert.False(t, NewEngine().IsEqual(a, b))
}

func TestComparatorMembershipMustBeIdentical(t *testing.T) {
	attrs := map[string]item.Value{"c.u.id": item.Text("1"), "c.u.name": item.Text("n")}

	a := bag([]string{"id"}, attrs)
	b := bag([]string{"id", "name"}, attrs)
	c := bag([]string{"name", "id"}, attrs)

	assert.False(t, IsEqual(a, b))
	assert.False(t, IsEqual(b, a))
	assert.True(t, IsEqual(b, c), "order of comparators must not matter")
}

func TestMissingAspectIsNotEqual(t *testing.T) {
	a := bag([]string{"id"}, map[string]item.Value{"c.u.id": item.Text("1")})
	b := bag([]string{"id"}, map[string]item.Value{"c.u.other": item.Text("1")})

	assert.False(t, IsEqual(a, b))
	assert.False(t, IsEqual(b, a))
	assert.False(t, IsEqual(a, nil))
}

func TestQualifiedAgainstUnqualified(t *testing.T) {
	raw := bag([]string{"name", "age"}, map[string]item.Value{
		"name": item.Text("Alice"),
		"age":  item.Text("30"),
	})
	stored := naming.QualifyBag(raw, "people", naming.GenerateIdentifier(false))

	probe := bag([]string{"name", "age"}, map[string]item.Value{
		"name": item.Text("Alice"),
		"age":  item.Text("30"),
	})
	other := bag([]string{"name", "age"}, map[string]item.Value{
		"name": item.Text("Bob"),
		"age":  item.Text("40"),
	})

	assert.True(t, IsEqual(stored, probe))
	assert.True(t, IsEqual(probe, stored))
	assert.False(t, IsEqual(stored, other))
}

func TestFindEqual(t *testing.T) {
	target := bag([]string{"id"}, map[string]item.Value{"id": item.Text("2")})
	candidates := []*item.Bag{
		bag([]string{"id"}, map[string]item.Value{"a.1.id": item.Text("1")}),
		bag([]string{"id"}, map[string]item.Value{"a.2.id": item.Text("2")}),
		bag([]string{"id"}, map[string]item.Value{"b.3.id": item.Text("2")}),
	}

	found := NewEngine().FindEqual(target, candidates)
	assert.Len(t, found, 2)
}
