// ABOUTME: Conversion of bags into searchable index documents
// ABOUTME: One field per text attribute plus comparator and search summaries

package index

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/nainya/itemstore/pkg/item"
)

// KeySeparator joins comparator values in a comparator key
const KeySeparator = "\x1f"

// Document is the searchable form of a bag
type Document struct {
	// Fields maps every text attribute name to its value
	Fields map[string]string
	// ComparatorList is the comma-joined comparator names
	ComparatorList string
	// ComparatorKey joins the comparator values in comparator order with
	// KeySeparator
	ComparatorKey string
	// SearchContents joins every text value with spaces
	SearchContents string
	CreatedAt      int64
	ConvertedAt    int64
}

// Convert builds the document for b. Opaque attributes are not indexed.
func Convert(b *item.Bag, now time.Time) (*Document, error) {
	comparators := b.Comparators()
	if len(comparators) == 0 {
		return nil, errors.Wrap(item.ErrFormat, "cannot index bag without comparators")
	}

	doc := &Document{
		Fields:         make(map[string]string, b.Len()),
		ComparatorList: strings.Join(comparators, ","),
		SearchContents: strings.Join(b.TextContents(false), " "),
		CreatedAt:      b.CreatedAt(),
		ConvertedAt:    now.UnixMilli(),
	}

	b.Range(func(name string, v item.Value) bool {
		if s, ok := v.AsText(); ok {
			doc.Fields[name] = s
		}
		return true
	})

	values := make([]string, 0, len(comparators))
	for _, c := range comparators {
		_, v, ok := b.Lookup(c)
		if !ok {
			return nil, errors.Wrapf(item.ErrNoSuchAttribute, "comparator %q", c)
		}
		s, isText := v.AsText()
		if !isText {
			return nil, errors.Wrapf(item.ErrTypeMismatch, "comparator %q is %s", c, v.TypeName())
		}
		values = append(values, s)
	}
	doc.ComparatorKey = strings.Join(values, KeySeparator)

	return doc, nil
}
