// ABOUTME: Corpus scanner that decodes every record in a location
// ABOUTME: Builds the data dictionary and tolerates per-record failures

package corpus

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/nainya/itemstore/pkg/codec"
	"github.com/nainya/itemstore/pkg/item"
	"github.com/nainya/itemstore/pkg/naming"
)

// Recorder receives scan statistics
type Recorder interface {
	RecordScan(records, failures, entries int, duration time.Duration)
}

// Record is one decoded record and the file it came from
type Record struct {
	Path string
	Bag  *item.Bag
}

// Failure describes a record that was skipped
type Failure struct {
	Path string
	Err  error
}

// Result is the outcome of a dictionary build
type Result struct {
	Dictionary *Dictionary
	Records    int
	Failures   []Failure
}

// Scanner reads records from a location
type Scanner struct {
	logger   zerolog.Logger
	recorder Recorder
}

// Option configures a Scanner
type Option func(*Scanner)

// WithLogger sets the logger used for skipped records
func WithLogger(l zerolog.Logger) Option {
	return func(s *Scanner) {
		s.logger = l
	}
}

// WithRecorder reports scan statistics to r
func WithRecorder(r Recorder) Option {
	return func(s *Scanner) {
		s.recorder = r
	}
}

// NewScanner creates a scanner
func NewScanner(opts ...Option) *Scanner {
	s := &Scanner{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load decodes every record in location. Records that fail to decode are
// reported as failures and skipped.
func (s *Scanner) Load(ctx context.Context, location string) ([]Record, []Failure, error) {
	snap, err := List(location)
	if err != nil {
		return nil, nil, err
	}

	var records []Record
	var failures []Failure
	for path := range snap.All() {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		b, err := codec.DecodeFile(path)
		if err != nil {
			failures = append(failures, s.skip(path, err))
			continue
		}
		records = append(records, Record{Path: path, Bag: b})
	}
	return records, failures, nil
}

// BuildDataDictionary collects the field path of every attribute of every
// record in location. A record is contributed whole or not at all.
func (s *Scanner) BuildDataDictionary(ctx context.Context, location string) (*Result, error) {
	start := time.Now()

	snap, err := List(location)
	if err != nil {
		return nil, err
	}

	res := &Result{Dictionary: NewDictionary()}
	for path := range snap.All() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		b, err := codec.DecodeFile(path)
		if err != nil {
			res.Failures = append(res.Failures, s.skip(path, err))
			continue
		}

		fields, err := fieldPaths(b)
		if err != nil {
			res.Failures = append(res.Failures, s.skip(path, err))
			continue
		}

		for _, f := range fields {
			res.Dictionary.Add(f)
		}
		res.Records++
	}

	s.logger.Debug().
		Str("location", location).
		Int("records", res.Records).
		Int("failures", len(res.Failures)).
		Int("entries", res.Dictionary.Len()).
		Dur("duration_ms", time.Since(start)).
		Msg("Data dictionary built")

	if s.recorder != nil {
		s.recorder.RecordScan(res.Records, len(res.Failures), res.Dictionary.Len(), time.Since(start))
	}
	return res, nil
}

func (s *Scanner) skip(path string, err error) Failure {
	s.logger.Warn().Str("record", path).Err(err).Msg("Skipping record")
	return Failure{Path: path, Err: err}
}

func fieldPaths(b *item.Bag) ([]string, error) {
	names := b.Names()
	out := make([]string, 0, len(names))
	for _, name := range names {
		f, err := naming.ParseFieldPath(name)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// BuildDataDictionary scans location with a default scanner
func BuildDataDictionary(ctx context.Context, location string) (*Dictionary, error) {
	res, err := NewScanner().BuildDataDictionary(ctx, location)
	if err != nil {
		return nil, err
	}
	return res.Dictionary, nil
}
