package persist

import (
	"github.com/nainya/itemstore/pkg/item"
	"github.com/nainya/itemstore/pkg/registry"
)

// Persister stores and retrieves bags by identifier
type Persister interface {
	Initialise(location string) error
	Persist(id string, b *item.Bag, overwrite bool) error
	PersistQualified(b *item.Bag, overwrite bool) (string, error)
	PersistAll(bags []*item.Bag, overwrite bool) []*item.Bag
	Remove(id string) (bool, error)
	Contains(b *item.Bag) (bool, error)
	Load(id string) (*item.Bag, error)
	Report() (Report, error)
}

// Factory builds an uninitialised persister
type Factory func(opts ...Option) Persister

// FileBackend names the file-per-record persister
const FileBackend = "file"

var backends = registry.New[Factory]("persister")

func init() {
	backends.MustRegister(FileBackend, func(opts ...Option) Persister {
		return NewFilePersister(opts...)
	})
}

// New builds the persister registered under name
func New(name string, opts ...Option) (Persister, error) {
	f, err := backends.Lookup(name)
	if err != nil {
		return nil, err
	}
	return f(opts...), nil
}

// Backends lists the registered persister names
func Backends() []string {
	return backends.Names()
}
