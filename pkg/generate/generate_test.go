// ABOUTME: Tests for the CSV and text generators and the generator factory
// ABOUTME: Includes the generate, qualify, encode, decode and match round trip

package generate

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nainya/itemstore/pkg/codec"
	"github.com/nainya/itemstore/pkg/equality"
	"github.com/nainya/itemstore/pkg/item"
	"github.com/nainya/itemstore/pkg/naming"
	"github.com/nainya/itemstore/pkg/registry"
)

var fixedClock = func() time.Time { return time.UnixMilli(1700000000000) }

func text(t *testing.T, b *item.Bag, name string) string {
	t.Helper()
	v, ok := b.Get(name)
	require.True(t, ok, "missing %s", name)
	s, ok := v.AsText()
	require.True(t, ok, "%s is not text", name)
	return s
}

func TestTitledCSVGenerate(t *testing.T) {
	g := NewTitledCSV(WithClock(fixedClock))

	bags, err := g.Generate("name,age\nAlice,30\nBob,40\n", "people.csv")
	require.NoError(t, err)
	require.Len(t, bags, 2)

	alice := bags[0]
	assert.Equal(t, "Alice", text(t, alice, "name"))
	assert.Equal(t, "30", text(t, alice, "age"))
	assert.Equal(t, []string{"name", "age"}, alice.Comparators())
	assert.Equal(t, int64(1700000000000), alice.CreatedAt())
	assert.True(t, alice.IsValid())
	assert.Equal(t, TitledCSVName, text(t, alice, item.AspectGenerator))
	assert.Equal(t, "people.csv", text(t, alice, item.AspectSource))
	assert.Equal(t, "1700000000000", text(t, alice, item.AspectCreated))
}

func TestTitledCSVSkipsMismatchedRows(t *testing.T) {
	var logs bytes.Buffer
	g := NewTitledCSV(WithLogger(zerolog.New(&logs)))

	bags, err := g.Generate("a,b\r\n1,2\r\n1,2,3\r\n\r\nonly\r\n4,5", "src")
	require.NoError(t, err)
	require.Len(t, bags, 2)
	assert.Equal(t, "5", text(t, bags[1], "b"))
	assert.Equal(t, 2, strings.Count(logs.String(), "Skipping mismatched row"))
}

func TestTitledCSVQuotes(t *testing.T) {
	g := NewTitledCSV()

	bags, err := g.Generate("name,city\n\"Smith, John\",Leeds\n", "src")
	require.NoError(t, err)
	require.Len(t, bags, 1)
	assert.Equal(t, "Smith, John", text(t, bags[0], "name"))
}

func TestTitledCSVSeparator(t *testing.T) {
	g := NewTitledCSV()
	require.NoError(t, g.SetParameter(ParamSeparator, `\|`))

	bags, err := g.Generate("a|b\n1|2\n", "src")
	require.NoError(t, err)
	require.Len(t, bags, 1)
	assert.Equal(t, "2", text(t, bags[0], "b"))

	assert.True(t, errors.Is(g.SetParameter("quote", "'"), ErrGeneration))
	assert.True(t, errors.Is(g.SetParameter(ParamSeparator, ";;"), ErrGeneration))
}

func TestTitledCSVErrors(t *testing.T) {
	g := NewTitledCSV()

	_, err := g.Generate("", "src")
	assert.True(t, errors.Is(err, ErrGeneration))

	_, err = g.GenerateFile(context.Background(), t.TempDir(), "src")
	assert.True(t, errors.Is(err, ErrGeneration))

	_, err = g.GenerateFile(context.Background(), filepath.Join(t.TempDir(), "none.csv"), "src")
	assert.True(t, errors.Is(err, ErrGeneration))

	_, err = g.GenerateURL(context.Background(), "http://example.com/x.csv", "src")
	assert.True(t, errors.Is(err, ErrGeneration))
}

func TestCSVRoundTripMatch(t *testing.T) {
	g := NewTitledCSV()
	bags, err := g.Generate("name,age\nAlice,30\nBob,40", "inline")
	require.NoError(t, err)
	require.Len(t, bags, 2)

	var decoded []*item.Bag
	for _, b := range bags {
		q := naming.QualifyBag(b, "people", naming.GenerateIdentifier(true))
		data, err := codec.Marshal(q)
		require.NoError(t, err)
		d, err := codec.Unmarshal(data)
		require.NoError(t, err)
		decoded = append(decoded, d)
	}

	probe := item.New()
	probe.SetText("name", "Alice")
	probe.SetText("age", "30")
	probe.SetComparators([]string{"name", "age"})

	other := item.New()
	other.SetText("name", "Bob")
	other.SetText("age", "40")
	other.SetComparators([]string{"name", "age"})

	assert.True(t, equality.IsEqual(decoded[0], probe))
	assert.False(t, equality.IsEqual(decoded[0], other))
	assert.True(t, equality.IsEqual(decoded[1], other))
}

func TestTextGenerate(t *testing.T) {
	g := NewText()

	bags, err := g.Generate("the \"quick\" fox\tthe dog's", "inline")
	require.NoError(t, err)
	require.Len(t, bags, 1)

	b := bags[0]
	assert.Equal(t, "the quick fox the dogs", text(t, b, AspectContent))
	assert.Equal(t, "5", text(t, b, AspectTokenCount))
	assert.Equal(t, "4", text(t, b, AspectUniqueTokenCount))
	assert.Equal(t, "the quick fox dogs", text(t, b, AspectUniqueTokens))
	assert.Empty(t, b.Comparators())
	assert.True(t, b.IsValid())
}

func TestTextGenerateFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "note.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o644))

	bags, err := NewText().GenerateFile(context.Background(), path, path)
	require.NoError(t, err)
	require.Len(t, bags, 1)

	b := bags[0]
	assert.Equal(t, []string{item.AspectFileName, item.AspectFileSizeBytes, item.AspectFileModifiedUTC}, b.Comparators())
	assert.Equal(t, path, text(t, b, item.AspectFileName))
	assert.Equal(t, "11", text(t, b, item.AspectFileSizeBytes))
	assert.NotEmpty(t, text(t, b, item.AspectFileModifiedText))

	// Encodable once the file comparators are present
	_, err = codec.Marshal(b)
	assert.NoError(t, err)
}

func TestEnrichFileMissing(t *testing.T) {
	b := item.New()
	EnrichFile(b, filepath.Join(t.TempDir(), "gone"))
	assert.Equal(t, InvalidFile, text(t, b, item.AspectFileName))
}

func TestTextGenerateURL(t *testing.T) {
	modified := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		w.Header().Set("Last-Modified", modified.Format(http.TimeFormat))
		w.Write([]byte("served text body"))
	}))
	defer srv.Close()

	g := NewText(WithFetcher(NewFetcher(srv.Client(), 100, 1)))

	bags, err := g.GenerateURL(context.Background(), srv.URL+"/doc", "web")
	require.NoError(t, err)
	require.Len(t, bags, 1)

	b := bags[0]
	assert.Equal(t, []string{item.AspectURL, item.AspectURLModifiedUTC}, b.Comparators())
	assert.Equal(t, srv.URL+"/doc", text(t, b, item.AspectURL))
	assert.Equal(t, "200", text(t, b, item.AspectURLResponseCode))
	assert.Equal(t, "/doc", text(t, b, item.AspectURLPath))
	assert.Equal(t, "text/plain", text(t, b, item.AspectURLMimeType))
	assert.Equal(t, "16", text(t, b, item.AspectURLContentLength))
	assert.Equal(t, "1709294400000", text(t, b, item.AspectURLModifiedUTC))
	assert.Equal(t, "3", text(t, b, AspectTokenCount))

	_, err = g.GenerateURL(context.Background(), srv.URL+"/missing", "web")
	assert.True(t, errors.Is(err, ErrGeneration))

	_, err = g.GenerateURL(context.Background(), "not a url", "web")
	assert.True(t, errors.Is(err, ErrGeneration))
}

func TestEnrichURLInvalidResponse(t *testing.T) {
	b := item.New()
	EnrichURL(b, &Fetched{StatusCode: 500})
	assert.Equal(t, "500", text(t, b, item.AspectURLResponseCode))
	assert.Equal(t, InvalidURL, text(t, b, item.AspectURL))
	_, ok := b.Get(item.AspectURLHost)
	assert.False(t, ok)
}

func TestFactoryResolution(t *testing.T) {
	f := NewFactory()

	g, err := f.ForFile("data/people.CSV")
	require.NoError(t, err)
	assert.Equal(t, TitledCSVName, g.Name())

	g, err = f.ForFile("notes.md")
	require.NoError(t, err)
	assert.Equal(t, TextName, g.Name())

	require.NoError(t, f.Associate(".md", TitledCSVName))
	g, err = f.ForFile("notes.md")
	require.NoError(t, err)
	assert.Equal(t, TitledCSVName, g.Name())

	require.NoError(t, f.SetFallback(""))
	_, err = f.ForFile("image.png")
	assert.True(t, errors.Is(err, registry.ErrUnknown))

	assert.True(t, errors.Is(f.Associate("x", "nope"), registry.ErrUnknown))
	assert.Equal(t, []string{TextName, TitledCSVName}, f.Names())
}

func TestFactoryConfigure(t *testing.T) {
	f := NewFactory()
	require.NoError(t, f.Configure(TitledCSVName, ParamSeparator, ";"))

	g, err := f.New(TitledCSVName)
	require.NoError(t, err)
	bags, err := g.Generate("a;b\n1;2", "src")
	require.NoError(t, err)
	require.Len(t, bags, 1)

	assert.True(t, errors.Is(f.Configure(TitledCSVName, "bogus", "x"), ErrGeneration))
}

func TestGenerateFiles(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "people.csv")
	txtPath := filepath.Join(dir, "note.txt")
	require.NoError(t, os.WriteFile(csvPath, []byte("name,age\nAlice,30\nBob,40\n"), 0o644))
	require.NoError(t, os.WriteFile(txtPath, []byte("some words"), 0o644))

	bags, err := GenerateFiles(context.Background(), NewFactory(), []string{csvPath, txtPath}, 2)
	require.NoError(t, err)
	require.Len(t, bags, 3)
	assert.Equal(t, "Alice", text(t, bags[0], "name"))
	assert.Equal(t, "Bob", text(t, bags[1], "name"))
	assert.Equal(t, txtPath, text(t, bags[2], item.AspectSource))

	_, err = GenerateFiles(context.Background(), NewFactory(), []string{filepath.Join(dir, "absent.csv")}, 1)
	assert.True(t, errors.Is(err, ErrGeneration))
}
