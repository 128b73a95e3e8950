// Cached data dictionary kept in step with the corpus directory
package server

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"

	"github.com/nainya/itemstore/internal/logger"
	"github.com/nainya/itemstore/pkg/corpus"
)

// DictionaryCache holds the most recent dictionary build until invalidated
type DictionaryCache struct {
	scanner  *corpus.Scanner
	location string

	mu      sync.Mutex
	result  *corpus.Result
	builtAt time.Time
}

// NewDictionaryCache creates an empty cache over location
func NewDictionaryCache(scanner *corpus.Scanner, location string) *DictionaryCache {
	return &DictionaryCache{scanner: scanner, location: location}
}

// Get returns the cached dictionary, rebuilding it first when it is stale
// or refresh is set
func (c *DictionaryCache) Get(ctx context.Context, refresh bool) (*corpus.Result, time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.result != nil && !refresh {
		return c.result, c.builtAt, nil
	}

	res, err := c.scanner.BuildDataDictionary(ctx, c.location)
	if err != nil {
		return nil, time.Time{}, err
	}
	c.result = res
	c.builtAt = time.Now()
	return c.result, c.builtAt, nil
}

// Invalidate forces the next Get to rebuild
func (c *DictionaryCache) Invalidate() {
	c.mu.Lock()
	c.result = nil
	c.mu.Unlock()
}

// CorpusWatcher invalidates a dictionary cache when record files change
type CorpusWatcher struct {
	watcher        *fsnotify.Watcher
	cache          *DictionaryCache
	log            *logger.Logger
	debouncePeriod time.Duration

	mu            sync.Mutex
	debounceTimer *time.Timer
}

// NewCorpusWatcher watches location on behalf of cache
func NewCorpusWatcher(location string, cache *DictionaryCache, log *logger.Logger) (*CorpusWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "create fsnotify watcher")
	}
	if err := watcher.Add(location); err != nil {
		watcher.Close()
		return nil, errors.Wrapf(err, "watch %s", location)
	}

	return &CorpusWatcher{
		watcher:        watcher,
		cache:          cache,
		log:            log,
		debouncePeriod: 200 * time.Millisecond,
	}, nil
}

// Run processes events until ctx is done or the watcher is closed
func (w *CorpusWatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Ext(event.Name) != corpus.RecordExtension {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.log.Debug("Corpus change detected").
				Str("file", event.Name).
				Str("op", event.Op.String()).
				Send()
			w.scheduleInvalidate()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("Corpus watcher error").Err(err).Send()
		}
	}
}

// scheduleInvalidate collapses bursts of changes into one invalidation
func (w *CorpusWatcher) scheduleInvalidate() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debouncePeriod, w.cache.Invalidate)
}

// Close stops watching
func (w *CorpusWatcher) Close() error {
	w.mu.Lock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.mu.Unlock()
	return w.watcher.Close()
}
