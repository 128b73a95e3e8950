// ABOUTME: Qualified name grammar cacheName.identifier.fieldPath
// ABOUTME: Parses components, embedded timestamps and generates identifiers

package naming

import (
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/nainya/itemstore/pkg/item"
)

const (
	// Separator joins the components of a qualified name
	Separator = "."

	// TimestampSeparator joins a token and its embedded timestamp
	TimestampSeparator = "_"

	// NoTimestamp is returned when an identifier carries no embedded timestamp
	NoTimestamp int64 = -1

	minComponents = 3
)

// Components is a parsed qualified name
type Components struct {
	CacheName  string
	Identifier string
	FieldPath  string
}

// Parse splits a qualified name into its three logical parts
func Parse(name string) (Components, error) {
	parts, err := split(name)
	if err != nil {
		return Components{}, err
	}
	return Components{
		CacheName:  parts[0],
		Identifier: parts[1],
		FieldPath:  strings.Join(parts[2:], Separator),
	}, nil
}

// ParseIdentifier returns component 1 of a qualified name
func ParseIdentifier(name string) (string, error) {
	parts, err := split(name)
	if err != nil {
		return "", err
	}
	return parts[1], nil
}

// ParseCacheName returns component 0 of a qualified name
func ParseCacheName(name string) (string, error) {
	parts, err := split(name)
	if err != nil {
		return "", err
	}
	return parts[0], nil
}

// ParseFieldPath returns components 2..N rejoined with "."
func ParseFieldPath(name string) (string, error) {
	parts, err := split(name)
	if err != nil {
		return "", err
	}
	return strings.Join(parts[2:], Separator), nil
}

// IsQualified reports whether name satisfies the qualified grammar
func IsQualified(name string) bool {
	_, err := split(name)
	return err == nil
}

// EndName returns the last dotted component of name
func EndName(name string) string {
	if i := strings.LastIndex(name, Separator); i >= 0 {
		return name[i+1:]
	}
	return name
}

func split(name string) ([]string, error) {
	// Basic check, name must be present
	if name == "" {
		return nil, errors.Wrap(item.ErrNameFormat, "no name to process")
	}

	parts := dropTrailingEmpty(strings.Split(name, Separator))
	if len(parts) < minComponents {
		return nil, errors.Wrapf(item.ErrNameFormat, "name %q has too few components", name)
	}
	return parts, nil
}

// dropTrailingEmpty discards empty trailing components, so "a.b." splits
// like "a.b"
func dropTrailingEmpty(parts []string) []string {
	for len(parts) > 0 && parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return parts
}

// ParseEmbeddedTimestamp extracts the epoch milliseconds from a token_timestamp
// identifier, or NoTimestamp when nothing follows the token
func ParseEmbeddedTimestamp(identifier string) (int64, error) {
	if !strings.Contains(identifier, TimestampSeparator) {
		return NoTimestamp, nil
	}

	parts := dropTrailingEmpty(strings.Split(identifier, TimestampSeparator))
	if len(parts) == 1 {
		return NoTimestamp, nil
	}
	if len(parts) != 2 {
		return 0, errors.Wrapf(item.ErrNameFormat, "identifier %q should be of format token_timestamp", identifier)
	}

	ts, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, errors.Wrapf(item.ErrNumericFormat, "identifier %q: %v", identifier, err)
	}
	return ts, nil
}

// GenerateIdentifier returns a random unique token, optionally suffixed with
// "_" and the current epoch milliseconds
func GenerateIdentifier(includeTimestamp bool) string {
	id := uuid.NewString()
	if includeTimestamp {
		return id + TimestampSeparator + strconv.FormatInt(time.Now().UnixMilli(), 10)
	}
	return id
}
