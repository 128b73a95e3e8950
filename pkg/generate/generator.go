// ABOUTME: Item generators turning raw input into attribute bags
// ABOUTME: Every generated bag carries source, generator and created aspects

package generate

import (
	"context"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/nainya/itemstore/pkg/item"
)

// ErrGeneration is returned when input cannot be turned into items
var ErrGeneration = errors.New("generate: generation failed")

// Generator builds bags from strings, readers, files and URLs
type Generator interface {
	Name() string
	SetParameter(name, value string) error
	Generate(input, source string) ([]*item.Bag, error)
	GenerateReader(r io.Reader, source string) ([]*item.Bag, error)
	GenerateFile(ctx context.Context, path, source string) ([]*item.Bag, error)
	GenerateURL(ctx context.Context, rawURL, source string) ([]*item.Bag, error)
}

// Option configures a generator
type Option func(*base)

// WithLogger sets the generator logger
func WithLogger(l zerolog.Logger) Option {
	return func(b *base) {
		b.logger = l
	}
}

// WithClock overrides the creation time source
func WithClock(now func() time.Time) Option {
	return func(b *base) {
		b.now = now
	}
}

// WithFetcher sets the fetcher used for URL sources
func WithFetcher(f *Fetcher) Option {
	return func(b *base) {
		b.fetcher = f
	}
}

// base holds what every generator shares
type base struct {
	name    string
	logger  zerolog.Logger
	now     func() time.Time
	fetcher *Fetcher
}

func newBase(name string, opts []Option) base {
	b := base{
		name:   name,
		logger: zerolog.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&b)
	}
	if b.fetcher == nil {
		b.fetcher = NewFetcher(nil, 0, 0)
	}
	return b
}

func (g *base) Name() string {
	return g.name
}

func (g *base) newBag() *item.Bag {
	return item.NewAt(g.now().UnixMilli())
}

// setMandatoryAspects stamps provenance onto b
func (g *base) setMandatoryAspects(b *item.Bag, source string) {
	b.SetText(item.AspectGenerator, g.name)
	b.SetText(item.AspectSource, source)
	b.SetText(item.AspectCreated, strconv.FormatInt(b.CreatedAt(), 10))
}

func readAll(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", errors.Wrapf(ErrGeneration, "read input: %v", err)
	}
	return string(data), nil
}

// checkFile applies the standard checks to a file source
func checkFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return errors.Wrapf(ErrGeneration, "no such file %s", path)
	}
	if info.IsDir() {
		return errors.Wrapf(ErrGeneration, "%s is a directory", path)
	}
	return nil
}

func readFile(path string) (string, error) {
	if err := checkFile(path); err != nil {
		return "", err
	}
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrapf(ErrGeneration, "open %s: %v", path, err)
	}
	defer f.Close()
	return readAll(f)
}
