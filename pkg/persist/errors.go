package persist

import "github.com/cockroachdb/errors"

var (
	// ErrNotInitialised is returned when a persister is used before Initialise
	ErrNotInitialised = errors.New("persist: persister not initialised")
	// ErrExists is returned when a record exists and overwrite is disabled
	ErrExists = errors.New("persist: record already persisted")
	// ErrLocation is returned when the target location cannot be used
	ErrLocation = errors.New("persist: unusable location")
)
