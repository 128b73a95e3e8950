// Conversion between attribute bags and their wire form
package server

import (
	"sort"

	"github.com/cockroachdb/errors"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/nainya/itemstore/pkg/item"
)

// Wire keys of an encoded bag
const (
	keyCreated     = "created"
	keyComparators = "comparators"
	keyAttributes  = "attributes"
)

// BagToStruct encodes the text attributes of b. Opaque attributes do not
// cross the wire.
func BagToStruct(b *item.Bag) (*structpb.Struct, error) {
	attrs := make(map[string]interface{}, b.Len())
	b.Range(func(name string, v item.Value) bool {
		if s, ok := v.AsText(); ok {
			attrs[name] = s
		}
		return true
	})

	comparators := make([]interface{}, 0)
	for _, c := range b.Comparators() {
		comparators = append(comparators, c)
	}

	return structpb.NewStruct(map[string]interface{}{
		keyCreated:     float64(b.CreatedAt()),
		keyComparators: comparators,
		keyAttributes:  attrs,
	})
}

// BagFromStruct decodes a bag. A missing creation time means now.
func BagFromStruct(s *structpb.Struct) (*item.Bag, error) {
	if s == nil {
		return nil, errors.Wrap(item.ErrFormat, "bag is required")
	}
	fields := s.GetFields()

	b := item.New()
	if v, ok := fields[keyCreated]; ok {
		b = item.NewAt(int64(v.GetNumberValue()))
	}

	attrs := fields[keyAttributes].GetStructValue()
	names := make([]string, 0, len(attrs.GetFields()))
	for name := range attrs.GetFields() {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		v := attrs.GetFields()[name]
		sv, ok := v.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return nil, errors.Wrapf(item.ErrTypeMismatch, "attribute %q must be a string", name)
		}
		b.SetText(name, sv.StringValue)
	}

	var comparators []string
	for _, v := range fields[keyComparators].GetListValue().GetValues() {
		comparators = append(comparators, v.GetStringValue())
	}
	b.SetComparators(comparators)

	return b, nil
}

func stringList(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
