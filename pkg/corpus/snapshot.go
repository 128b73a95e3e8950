// ABOUTME: Enumeration of encoded records stored in a directory
// ABOUTME: A snapshot fixes the record list at the time it is taken

package corpus

import (
	"iter"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/nainya/itemstore/pkg/item"
)

// RecordExtension is the file extension carried by every encoded record
const RecordExtension = ".elu"

// Snapshot is the set of record files present in a location when List ran.
// It can be iterated any number of times.
type Snapshot struct {
	location string
	paths    []string
}

// List enumerates the record files directly inside location, without
// recursion, in file name order
func List(location string) (*Snapshot, error) {
	info, err := os.Stat(location)
	if err != nil {
		return nil, errors.Wrapf(item.ErrScan, "location %s: %v", location, err)
	}
	if !info.IsDir() {
		return nil, errors.Wrapf(item.ErrScan, "location %s is not a directory", location)
	}

	entries, err := os.ReadDir(location)
	if err != nil {
		return nil, errors.Wrapf(item.ErrScan, "read %s: %v", location, err)
	}

	s := &Snapshot{location: location}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), RecordExtension) {
			continue
		}
		s.paths = append(s.paths, filepath.Join(location, e.Name()))
	}
	return s, nil
}

// Location returns the scanned directory
func (s *Snapshot) Location() string {
	return s.location
}

// Len returns the number of records in the snapshot
func (s *Snapshot) Len() int {
	return len(s.paths)
}

// Paths returns a copy of the record paths
func (s *Snapshot) Paths() []string {
	out := make([]string, len(s.paths))
	copy(out, s.paths)
	return out
}

// All yields every record path in order
func (s *Snapshot) All() iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, p := range s.paths {
			if !yield(p) {
				return
			}
		}
	}
}

// IdentifierOf returns the record identifier encoded in a record file name
func IdentifierOf(path string) string {
	return strings.TrimSuffix(filepath.Base(path), RecordExtension)
}
