// ABOUTME: Error taxonomy shared by every item package
// ABOUTME: Callers match kinds with errors.Is; context is added by wrapping

package item

import "github.com/cockroachdb/errors"

var (
	// ErrNameFormat indicates a qualified name or embedded timestamp token has the wrong shape
	ErrNameFormat = errors.New("item: name format")

	// ErrNumericFormat indicates an embedded timestamp segment is not a base-10 integer
	ErrNumericFormat = errors.New("item: numeric format")

	// ErrDuplicateAttribute indicates a non-aggregating text insert collided with an existing name
	ErrDuplicateAttribute = errors.New("item: duplicate attribute")

	// ErrTypeMismatch indicates an operation found a value of an incompatible kind
	ErrTypeMismatch = errors.New("item: type mismatch")

	// ErrNoSuchAttribute indicates a reserved or optional attribute is absent
	ErrNoSuchAttribute = errors.New("item: no such attribute")

	// ErrFormat indicates an encoded record violates the header or delimiter grammar
	ErrFormat = errors.New("item: record format")

	// ErrScan indicates a scan location is missing or not a directory
	ErrScan = errors.New("item: scan location")
)
