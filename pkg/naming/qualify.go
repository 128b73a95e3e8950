// ABOUTME: Qualifier stamping bags with cache name and identifier
// ABOUTME: Produces new bags; inputs are never mutated

package naming

import (
	"github.com/cockroachdb/errors"

	"github.com/nainya/itemstore/pkg/item"
)

// Qualify composes cacheName.identifier.name
func Qualify(name, cacheName, identifier string) string {
	return cacheName + Separator + identifier + Separator + name
}

// QualifyBag returns a copy of b with every attribute renamed to its
// qualified form. Creation time and comparators are preserved.
func QualifyBag(b *item.Bag, cacheName, identifier string) *item.Bag {
	out := item.NewAt(b.CreatedAt())
	out.SetComparators(b.Comparators())

	b.Range(func(name string, v item.Value) bool {
		qualified := Qualify(name, cacheName, identifier)
		if s, ok := v.AsText(); ok {
			out.SetText(qualified, s)
		} else {
			out.Set(qualified, v)
		}
		return true
	})

	return out
}

// IdentifierOf returns the identifier shared by the qualified names of b.
// The first name in lexical order decides.
func IdentifierOf(b *item.Bag) (string, error) {
	c, err := componentsOf(b)
	if err != nil {
		return "", err
	}
	return c.Identifier, nil
}

// CacheNameOf returns the cache name of the first qualified name in b
func CacheNameOf(b *item.Bag) (string, error) {
	c, err := componentsOf(b)
	if err != nil {
		return "", err
	}
	return c.CacheName, nil
}

func componentsOf(b *item.Bag) (Components, error) {
	names := b.Names()
	if len(names) == 0 {
		return Components{}, errors.Wrap(item.ErrNameFormat, "bag has no attributes")
	}
	return Parse(names[0])
}
