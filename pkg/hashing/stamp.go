package hashing

import (
	"sort"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/nainya/itemstore/pkg/item"
	"github.com/nainya/itemstore/pkg/naming"
)

// valueSeparator joins comparator values before hashing
const valueSeparator = "\x1f"

// ComparatorDigest hashes the text values of b's comparators. Comparators
// are taken in name order so that membership, not insertion order, decides
// the digest.
func ComparatorDigest(b *item.Bag, s Strategy) (string, error) {
	comparators := b.Comparators()
	if len(comparators) == 0 {
		return "", errors.Wrap(ErrInvalidInput, "bag has no comparators")
	}
	sort.Strings(comparators)

	values := make([]string, 0, len(comparators))
	for _, c := range comparators {
		name, v, ok := b.Lookup(c)
		if !ok {
			return "", errors.Wrapf(ErrInvalidInput, "comparator %q has no attribute", c)
		}
		text, isText := v.AsText()
		if !isText {
			return "", errors.Wrapf(ErrInvalidInput, "comparator attribute %q is %s, not text", name, v.TypeName())
		}
		values = append(values, text)
	}

	return s.HashString(strings.Join(values, valueSeparator))
}

// Stamp stores the comparator digest and the strategy name on b. When b's
// attributes are qualified the stamps are qualified with the same cache
// name and identifier.
func Stamp(b *item.Bag, s Strategy) error {
	digest, err := ComparatorDigest(b, s)
	if err != nil {
		return err
	}

	hashName, strategyName := item.AspectComparatorHash, item.AspectHashStrategy
	if c, err := qualifiedComponents(b); err == nil {
		hashName = naming.Qualify(hashName, c.CacheName, c.Identifier)
		strategyName = naming.Qualify(strategyName, c.CacheName, c.Identifier)
	}

	b.SetText(hashName, digest)
	b.SetText(strategyName, s.Name())
	return nil
}

// Verify recomputes the digest with the strategy recorded on b and reports
// whether it still matches
func Verify(b *item.Bag) (bool, error) {
	name, err := b.HashStrategy()
	if err != nil {
		return false, err
	}
	stored, err := b.ComparatorHash()
	if err != nil {
		return false, err
	}
	s, err := Lookup(name)
	if err != nil {
		return false, err
	}
	digest, err := ComparatorDigest(b, s)
	if err != nil {
		return false, err
	}
	return digest == stored, nil
}

func qualifiedComponents(b *item.Bag) (naming.Components, error) {
	names := b.Names()
	if len(names) == 0 || !naming.IsQualified(names[0]) {
		return naming.Components{}, errors.Wrap(item.ErrNameFormat, "bag is not qualified")
	}
	return naming.Parse(names[0])
}
