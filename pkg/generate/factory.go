package generate

import (
	"context"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"

	"github.com/nainya/itemstore/pkg/item"
	"github.com/nainya/itemstore/pkg/registry"
)

// Constructor builds a fresh generator
type Constructor func(opts ...Option) Generator

type parameter struct {
	name, value string
}

// Factory resolves generators by name or by file extension. Generators are
// built fresh on every request, so parameters never leak between callers.
type Factory struct {
	names *registry.Registry[Constructor]
	opts  []Option

	mu         sync.RWMutex
	extensions map[string]string
	fallback   string
	params     map[string][]parameter
}

// NewFactory creates a factory holding the built-in generators: .csv files
// map to the titled CSV generator and everything else falls back to text.
// opts are passed to every generator it builds.
func NewFactory(opts ...Option) *Factory {
	f := &Factory{
		names:      registry.New[Constructor]("generator"),
		opts:       opts,
		extensions: make(map[string]string),
		params:     make(map[string][]parameter),
	}
	f.names.MustRegister(TitledCSVName, func(opts ...Option) Generator { return NewTitledCSV(opts...) })
	f.names.MustRegister(TextName, func(opts ...Option) Generator { return NewText(opts...) })
	f.extensions["csv"] = TitledCSVName
	f.extensions["txt"] = TextName
	f.fallback = TextName
	return f
}

// Register adds a generator under name
func (f *Factory) Register(name string, c Constructor) error {
	return f.names.Register(name, c)
}

// Associate maps a file extension, with or without its dot, to a generator
func (f *Factory) Associate(extension, name string) error {
	if _, err := f.names.Lookup(name); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.extensions[normaliseExtension(extension)] = name
	return nil
}

// SetFallback selects the generator used for unknown extensions; an empty
// name disables the fallback
func (f *Factory) SetFallback(name string) error {
	if name != "" {
		if _, err := f.names.Lookup(name); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fallback = name
	return nil
}

// Configure records a parameter applied to every generator built under name
func (f *Factory) Configure(name, param, value string) error {
	g, err := f.build(name)
	if err != nil {
		return err
	}
	if err := g.SetParameter(param, value); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.params[name] = append(f.params[name], parameter{param, value})
	return nil
}

// New builds the generator registered under name
func (f *Factory) New(name string) (Generator, error) {
	g, err := f.build(name)
	if err != nil {
		return nil, err
	}

	f.mu.RLock()
	params := f.params[name]
	f.mu.RUnlock()

	for _, p := range params {
		if err := g.SetParameter(p.name, p.value); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// ForFile builds the generator associated with path's extension, or the
// fallback generator
func (f *Factory) ForFile(path string) (Generator, error) {
	ext := normaliseExtension(filepath.Ext(path))

	f.mu.RLock()
	name, ok := f.extensions[ext]
	if !ok {
		name = f.fallback
	}
	f.mu.RUnlock()

	if name == "" {
		return nil, errors.Wrapf(registry.ErrUnknown, "no generator for %s", path)
	}
	return f.New(name)
}

// Names lists the registered generators
func (f *Factory) Names() []string {
	return f.names.Names()
}

func (f *Factory) build(name string) (Generator, error) {
	c, err := f.names.Lookup(name)
	if err != nil {
		return nil, err
	}
	return c(f.opts...), nil
}

func normaliseExtension(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// GenerateFiles generates items from every path using the generator chosen
// by extension, running up to workers files at once. Results keep the
// order of paths; the first failure cancels the rest.
func GenerateFiles(ctx context.Context, f *Factory, paths []string, workers int) ([]*item.Bag, error) {
	results := make([][]*item.Bag, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}

	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			gen, err := f.ForFile(path)
			if err != nil {
				return err
			}
			bags, err := gen.GenerateFile(ctx, path, path)
			if err != nil {
				return errors.Wrapf(err, "generate %s", path)
			}
			results[i] = bags
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []*item.Bag
	for _, bags := range results {
		out = append(out, bags...)
	}
	return out, nil
}
