// ABOUTME: File-per-record persister built on the line codec
// ABOUTME: Each record lives at <location>/<identifier>.elu

package persist

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/nainya/itemstore/pkg/codec"
	"github.com/nainya/itemstore/pkg/corpus"
	"github.com/nainya/itemstore/pkg/item"
	"github.com/nainya/itemstore/pkg/naming"
)

// Recorder receives store operation outcomes
type Recorder interface {
	RecordStoreOperation(operation string, status string, duration time.Duration)
}

// Report summarises the persisted corpus
type Report struct {
	Location     string
	FileCount    int
	LastModified time.Time
}

// FilePersister writes each bag to its own record file
type FilePersister struct {
	mu       sync.RWMutex
	location string
	logger   zerolog.Logger
	recorder Recorder
}

// Option configures a FilePersister
type Option func(*FilePersister)

// WithLogger sets the persister logger
func WithLogger(l zerolog.Logger) Option {
	return func(p *FilePersister) {
		p.logger = l
	}
}

// WithRecorder reports store operations to r
func WithRecorder(r Recorder) Option {
	return func(p *FilePersister) {
		p.recorder = r
	}
}

// NewFilePersister creates an uninitialised persister
func NewFilePersister(opts ...Option) *FilePersister {
	p := &FilePersister{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Open creates a persister and initialises it at location
func Open(location string, opts ...Option) (*FilePersister, error) {
	p := NewFilePersister(opts...)
	if err := p.Initialise(location); err != nil {
		return nil, err
	}
	return p, nil
}

// Initialise binds the persister to location, creating the directory if it
// does not exist
func (p *FilePersister) Initialise(location string) error {
	info, err := os.Stat(location)
	switch {
	case err == nil && !info.IsDir():
		return errors.Wrapf(ErrLocation, "%s exists and is not a directory", location)
	case err != nil && !os.IsNotExist(err):
		return errors.Wrapf(ErrLocation, "%s: %v", location, err)
	case err != nil:
		if err := os.MkdirAll(location, 0o755); err != nil {
			return errors.Wrapf(ErrLocation, "create %s: %v", location, err)
		}
	}

	p.mu.Lock()
	p.location = location
	p.mu.Unlock()

	p.logger.Debug().Str("location", location).Msg("Persister initialised")
	return nil
}

// Location returns the bound directory, or "" before Initialise
func (p *FilePersister) Location() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.location
}

// Persist writes b under id. With overwrite disabled an existing record
// yields ErrExists.
func (p *FilePersister) Persist(id string, b *item.Bag, overwrite bool) (err error) {
	start := time.Now()
	defer func() { p.record("persist", start, err) }()

	path, err := p.pathFor(id)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !overwrite {
		if _, statErr := os.Stat(path); statErr == nil {
			return errors.Wrapf(ErrExists, "identifier %s", id)
		}
	}

	// Write beside the target then rename so readers never see a partial record
	tmp := path + ".tmp"
	if err := codec.EncodeFile(tmp, b); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return errors.Wrapf(err, "rename %s", tmp)
	}

	p.logger.Debug().Str("identifier", id).Msg("Record persisted")
	return nil
}

// PersistQualified writes a qualified bag under the identifier carried by
// its attribute names and returns that identifier
func (p *FilePersister) PersistQualified(b *item.Bag, overwrite bool) (string, error) {
	id, err := naming.IdentifierOf(b)
	if err != nil {
		return "", err
	}
	return id, p.Persist(id, b, overwrite)
}

// PersistAll writes every qualified bag and returns those that failed
func (p *FilePersister) PersistAll(bags []*item.Bag, overwrite bool) []*item.Bag {
	var failed []*item.Bag
	for _, b := range bags {
		if _, err := p.PersistQualified(b, overwrite); err != nil {
			p.logger.Warn().Err(err).Msg("Record not persisted")
			failed = append(failed, b)
		}
	}
	return failed
}

// Remove deletes the record stored under id and reports whether it existed
func (p *FilePersister) Remove(id string) (removed bool, err error) {
	start := time.Now()
	defer func() { p.record("remove", start, err) }()

	path, err := p.pathFor(id)
	if err != nil {
		return false, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.Wrapf(err, "remove %s", path)
	}
	return true, nil
}

// Contains reports whether a record exists for the identifier carried by
// b's attribute names
func (p *FilePersister) Contains(b *item.Bag) (bool, error) {
	id, err := naming.IdentifierOf(b)
	if err != nil {
		return false, err
	}
	return p.ContainsID(id)
}

// ContainsID reports whether a record exists for id
func (p *FilePersister) ContainsID(id string) (bool, error) {
	path, err := p.pathFor(id)
	if err != nil {
		return false, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	_, err = os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case os.IsNotExist(err):
		return false, nil
	default:
		return false, errors.Wrapf(err, "stat %s", path)
	}
}

// Load decodes the record stored under id
func (p *FilePersister) Load(id string) (b *item.Bag, err error) {
	start := time.Now()
	defer func() { p.record("load", start, err) }()

	path, err := p.pathFor(id)
	if err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	return codec.DecodeFile(path)
}

// Report counts the stored records and returns the directory modification time
func (p *FilePersister) Report() (Report, error) {
	location := p.Location()
	if location == "" {
		return Report{}, ErrNotInitialised
	}

	info, err := os.Stat(location)
	if err != nil {
		return Report{}, errors.Wrapf(ErrLocation, "%s: %v", location, err)
	}
	snap, err := corpus.List(location)
	if err != nil {
		return Report{}, err
	}

	return Report{
		Location:     location,
		FileCount:    snap.Len(),
		LastModified: info.ModTime(),
	}, nil
}

func (p *FilePersister) pathFor(id string) (string, error) {
	location := p.Location()
	if location == "" {
		return "", ErrNotInitialised
	}
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return "", errors.Wrapf(item.ErrNameFormat, "invalid record identifier %q", id)
	}
	return filepath.Join(location, id+corpus.RecordExtension), nil
}

func (p *FilePersister) record(operation string, start time.Time, err error) {
	if p.recorder == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	p.recorder.RecordStoreOperation(operation, status, time.Since(start))
}
