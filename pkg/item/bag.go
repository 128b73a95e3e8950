// ABOUTME: Attribute bag: named values, comparator end-names and creation time
// ABOUTME: The unit that is qualified, encoded, compared and indexed

package item

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// Bag is an unordered set of named values plus identity metadata.
// A Bag is not safe for concurrent mutation.
type Bag struct {
	attrs       map[string]Value
	comparators []string
	createdAt   int64 // milliseconds since epoch
}

// New creates an empty bag stamped with the current time
func New() *Bag {
	return NewAt(time.Now().UnixMilli())
}

// NewAt creates an empty bag with an injected creation time
func NewAt(createdAt int64) *Bag {
	return &Bag{
		attrs:     make(map[string]Value),
		createdAt: createdAt,
	}
}

// FromContents copies contents and comparators into a new bag stamped now
func FromContents(contents map[string]Value, comparators []string) *Bag {
	return FromContentsAt(contents, comparators, time.Now().UnixMilli())
}

// FromContentsAt copies contents and comparators into a new bag with an injected creation time
func FromContentsAt(contents map[string]Value, comparators []string, createdAt int64) *Bag {
	b := NewAt(createdAt)
	for name, v := range contents {
		b.attrs[name] = v
	}
	b.SetComparators(comparators)
	return b
}

// Clone returns a deep copy of the bag
func (b *Bag) Clone() *Bag {
	return FromContentsAt(b.attrs, b.comparators, b.createdAt)
}

// CreatedAt returns the creation time in epoch milliseconds
func (b *Bag) CreatedAt() int64 {
	return b.createdAt
}

// Len returns the number of attributes
func (b *Bag) Len() int {
	return len(b.attrs)
}

// Set inserts or overwrites an attribute
func (b *Bag) Set(name string, v Value) {
	b.attrs[name] = v
}

// SetText inserts or overwrites a text attribute
func (b *Bag) SetText(name, value string) {
	b.attrs[name] = Text(value)
}

// AddText inserts a text attribute. When the name exists the insert fails
// unless aggregate is set, in which case the existing text and value are
// joined with a single space.
func (b *Bag) AddText(name, value string, aggregate bool) error {
	existing, ok := b.attrs[name]
	if !ok {
		b.attrs[name] = Text(value)
		return nil
	}

	if !aggregate {
		return errors.Wrapf(ErrDuplicateAttribute, "non-aggregating insert of %q", name)
	}

	current, isText := existing.AsText()
	if !isText {
		return errors.Wrapf(ErrTypeMismatch, "expected text, found %s for %q", existing.TypeName(), name)
	}

	b.attrs[name] = Text(current + " " + value)
	return nil
}

// Get returns the value stored under the exact name
func (b *Bag) Get(name string) (Value, bool) {
	v, ok := b.attrs[name]
	return v, ok
}

// Names returns all attribute names in lexical order
func (b *Bag) Names() []string {
	names := make([]string, 0, len(b.attrs))
	for name := range b.attrs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Range calls fn for every attribute in lexical name order until fn returns false
func (b *Bag) Range(fn func(name string, v Value) bool) {
	for _, name := range b.Names() {
		if !fn(name, b.attrs[name]) {
			return
		}
	}
}

// HasAttribute reports whether any name ends with "." + endName
func (b *Bag) HasAttribute(endName string) bool {
	suffix := "." + endName
	for name := range b.attrs {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

// Lookup finds the attribute addressed by an end-name. An unqualified name
// equal to endName matches as well as any name ending with "." + endName.
// With several candidates the lexically smallest name wins.
func (b *Bag) Lookup(endName string) (string, Value, bool) {
	suffix := "." + endName
	found := ""
	ok := false
	for name := range b.attrs {
		if name != endName && !strings.HasSuffix(name, suffix) {
			continue
		}
		if !ok || name < found {
			found = name
			ok = true
		}
	}
	if !ok {
		return "", Value{}, false
	}
	return found, b.attrs[found], true
}

// MatchesAspect reports whether an attribute with the end-name exists and
// holds a value of the same runtime type as v. Payloads are not compared.
func (b *Bag) MatchesAspect(endName string, v Value) bool {
	_, existing, ok := b.Lookup(endName)
	if !ok {
		return false
	}
	return existing.SameType(v)
}

// AspectEquals reports whether an attribute with the end-name exists and
// holds a value equal to v in both runtime type and payload
func (b *Bag) AspectEquals(endName string, v Value) bool {
	_, existing, ok := b.Lookup(endName)
	if !ok {
		return false
	}
	return existing.Equal(v)
}

// IsValid reports whether the mandatory provenance attributes are present
func (b *Bag) IsValid() bool {
	return b.HasAttribute(EndSource) &&
		b.HasAttribute(EndGenerator) &&
		b.HasAttribute(EndCreated)
}

// Comparators returns a copy of the comparator end-names in insertion order
func (b *Bag) Comparators() []string {
	out := make([]string, len(b.comparators))
	copy(out, b.comparators)
	return out
}

// HasComparator reports whether name is a comparator
func (b *Bag) HasComparator(name string) bool {
	for _, c := range b.comparators {
		if c == name {
			return true
		}
	}
	return false
}

// AddComparator appends name unless already present
func (b *Bag) AddComparator(name string) {
	if !b.HasComparator(name) {
		b.comparators = append(b.comparators, name)
	}
}

// RemoveComparator removes name if present
func (b *Bag) RemoveComparator(name string) {
	for i, c := range b.comparators {
		if c == name {
			b.comparators = append(b.comparators[:i:i], b.comparators[i+1:]...)
			return
		}
	}
}

// SetComparators replaces the comparator list, dropping duplicates
func (b *Bag) SetComparators(names []string) {
	b.comparators = make([]string, 0, len(names))
	for _, name := range names {
		b.AddComparator(name)
	}
}

// TextContents returns every text value in name order, optionally deduplicated
func (b *Bag) TextContents(dedupe bool) []string {
	var out []string
	seen := make(map[string]struct{})
	b.Range(func(_ string, v Value) bool {
		s, ok := v.AsText()
		if !ok {
			return true
		}
		if dedupe {
			if _, dup := seen[s]; dup {
				return true
			}
			seen[s] = struct{}{}
		}
		out = append(out, s)
		return true
	})
	return out
}

// ComparatorHash returns the stored comparator hash
func (b *Bag) ComparatorHash() (string, error) {
	return b.reservedText(AspectComparatorHash)
}

// HashStrategy returns the name of the strategy that produced the comparator hash
func (b *Bag) HashStrategy() (string, error) {
	return b.reservedText(AspectHashStrategy)
}

func (b *Bag) reservedText(endName string) (string, error) {
	name, v, ok := b.Lookup(endName)
	if !ok {
		return "", errors.Wrapf(ErrNoSuchAttribute, "%s", endName)
	}
	s, isText := v.AsText()
	if !isText {
		return "", errors.Wrapf(ErrTypeMismatch, "expected text, found %s for %q", v.TypeName(), name)
	}
	return s, nil
}

// String dumps the bag for diagnostics
func (b *Bag) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Bag with %d attributes (created %d, comparators %s)\n",
		len(b.attrs), b.createdAt, strings.Join(b.comparators, ","))
	b.Range(func(name string, v Value) bool {
		fmt.Fprintf(&sb, "  %s = %s\n", name, v)
		return true
	})
	return sb.String()
}
