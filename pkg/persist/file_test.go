// ABOUTME: Tests for the file persister
// ABOUTME: Exercises initialisation, overwrite rules, removal and reporting

package persist

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nainya/itemstore/pkg/item"
	"github.com/nainya/itemstore/pkg/naming"
	"github.com/nainya/itemstore/pkg/registry"
)

type opRecorder struct {
	ops []string
}

func (r *opRecorder) RecordStoreOperation(operation, status string, _ time.Duration) {
	r.ops = append(r.ops, operation+":"+status)
}

func setupTestPersister(t *testing.T, opts ...Option) (*FilePersister, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "store")
	p, err := Open(dir, opts...)
	if err != nil {
		t.Fatalf("Failed to open persister: %v", err)
	}
	return p, dir
}

func qualifiedBag(id, name string) *item.Bag {
	b := item.NewAt(10)
	b.SetText("name", name)
	b.AddComparator("name")
	return naming.QualifyBag(b, "people", id)
}

func TestInitialiseCreatesDirectory(t *testing.T) {
	_, dir := setupTestPersister(t)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestInitialiseRejectsFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	_, err := Open(file)
	assert.True(t, errors.Is(err, ErrLocation))
}

func TestUninitialised(t *testing.T) {
	p := NewFilePersister()

	assert.ErrorIs(t, p.Persist("x", item.New(), true), ErrNotInitialised)
	_, err := p.Report()
	assert.ErrorIs(t, err, ErrNotInitialised)
}

func TestPersistAndLoad(t *testing.T) {
	rec := &opRecorder{}
	p, _ := setupTestPersister(t, WithRecorder(rec))
	b := qualifiedBag("id1", "Alice")

	id, err := p.PersistQualified(b, false)
	require.NoError(t, err)
	assert.Equal(t, "id1", id)

	ok, err := p.Contains(b)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := p.Load("id1")
	require.NoError(t, err)
	assert.Equal(t, b.Names(), got.Names())
	assert.Equal(t, int64(10), got.CreatedAt())

	assert.Equal(t, []string{"persist:success", "load:success"}, rec.ops)
}

func TestOverwriteRules(t *testing.T) {
	p, _ := setupTestPersister(t)

	require.NoError(t, p.Persist("id1", qualifiedBag("id1", "Alice"), false))

	err := p.Persist("id1", qualifiedBag("id1", "Bob"), false)
	assert.True(t, errors.Is(err, ErrExists))

	require.NoError(t, p.Persist("id1", qualifiedBag("id1", "Bob"), true))
	got, err := p.Load("id1")
	require.NoError(t, err)
	v, _ := got.Get("people.id1.name")
	s, _ := v.AsText()
	assert.Equal(t, "Bob", s)
}

func TestRemove(t *testing.T) {
	p, _ := setupTestPersister(t)
	require.NoError(t, p.Persist("id1", qualifiedBag("id1", "Alice"), false))

	removed, err := p.Remove("id1")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = p.Remove("id1")
	require.NoError(t, err)
	assert.False(t, removed)

	ok, err := p.ContainsID("id1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInvalidIdentifiers(t *testing.T) {
	p, _ := setupTestPersister(t)

	for _, id := range []string{"", "../escape", "a/b", ".."} {
		err := p.Persist(id, qualifiedBag("x", "y"), true)
		assert.True(t, errors.Is(err, item.ErrNameFormat), "id %q", id)
	}

	_, err := p.Contains(item.New())
	assert.True(t, errors.Is(err, item.ErrNameFormat))
}

func TestPersistAllReturnsFailures(t *testing.T) {
	p, _ := setupTestPersister(t)

	unqualified := item.New()
	unqualified.SetText("name", "x")
	unqualified.AddComparator("name")

	noComparators := item.New()
	noComparators.SetText("c.bad.name", "x")

	good := qualifiedBag("id2", "Carol")
	failed := p.PersistAll([]*item.Bag{good, unqualified, noComparators}, false)

	assert.Len(t, failed, 2)
	assert.Same(t, unqualified, failed[0])
	assert.Same(t, noComparators, failed[1])
}

func TestReport(t *testing.T) {
	p, dir := setupTestPersister(t)
	require.NoError(t, p.Persist("a", qualifiedBag("a", "1"), false))
	require.NoError(t, p.Persist("b", qualifiedBag("b", "2"), false))

	r, err := p.Report()
	require.NoError(t, err)
	assert.Equal(t, dir, r.Location)
	assert.Equal(t, 2, r.FileCount)
	assert.False(t, r.LastModified.IsZero())
}

func TestBackendRegistry(t *testing.T) {
	p, err := New(FileBackend)
	require.NoError(t, err)
	require.NoError(t, p.Initialise(t.TempDir()))

	_, err = New("lucene")
	assert.True(t, errors.Is(err, registry.ErrUnknown))
	assert.Equal(t, []string{FileBackend}, Backends())
}
