package generate

import (
	"context"
	"io"
	"strconv"
	"strings"
	"unicode"

	"github.com/cockroachdb/errors"

	"github.com/nainya/itemstore/pkg/item"
)

// TextName is the registered name of the plain text generator
const TextName = "text"

// Text aspects
const (
	AspectTokenCount       = "text_token_count"
	AspectContent          = "text_content"
	AspectUniqueTokenCount = "text_unique_token_count"
	AspectUniqueTokens     = "text_unique_tokens"
)

// Text generates a single bag describing a body of text
type Text struct {
	base
}

// NewText creates a plain text generator
func NewText(opts ...Option) *Text {
	return &Text{base: newBase(TextName, opts)}
}

// SetParameter accepts nothing; every parameter is ignored
func (g *Text) SetParameter(string, string) error {
	return nil
}

// Generate cleans input and records its token statistics. The bag has no
// comparators; file and URL sources add their own.
func (g *Text) Generate(input, source string) ([]*item.Bag, error) {
	content := Clean(input)
	tokens := strings.Fields(content)

	seen := make(map[string]struct{}, len(tokens))
	unique := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		unique = append(unique, tok)
	}

	b := g.newBag()
	g.setMandatoryAspects(b, source)
	b.SetText(AspectTokenCount, strconv.Itoa(len(tokens)))
	b.SetText(AspectContent, content)
	b.SetText(AspectUniqueTokenCount, strconv.Itoa(len(unique)))
	b.SetText(AspectUniqueTokens, strings.Join(unique, " "))
	return []*item.Bag{b}, nil
}

// GenerateReader reads r fully and describes it
func (g *Text) GenerateReader(r io.Reader, source string) ([]*item.Bag, error) {
	input, err := readAll(r)
	if err != nil {
		return nil, err
	}
	return g.Generate(input, source)
}

// GenerateFile describes the file at path and adds the file aspects, which
// also serve as comparators
func (g *Text) GenerateFile(_ context.Context, path, source string) ([]*item.Bag, error) {
	input, err := readFile(path)
	if err != nil {
		return nil, err
	}
	bags, err := g.Generate(input, source)
	if err != nil {
		return nil, err
	}
	for _, b := range bags {
		b.AddComparator(item.AspectFileName)
		b.AddComparator(item.AspectFileSizeBytes)
		b.AddComparator(item.AspectFileModifiedUTC)
		EnrichFile(b, path)
	}
	return bags, nil
}

// GenerateURL describes the body served at rawURL and adds the URL aspects
func (g *Text) GenerateURL(ctx context.Context, rawURL, source string) ([]*item.Bag, error) {
	res, err := g.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	if !ValidResponse(res.StatusCode) {
		return nil, errors.Wrapf(ErrGeneration, "%s returned status %d", rawURL, res.StatusCode)
	}

	bags, err := g.Generate(string(res.Body), source)
	if err != nil {
		return nil, err
	}
	for _, b := range bags {
		b.AddComparator(item.AspectURL)
		b.AddComparator(item.AspectURLModifiedUTC)
		EnrichURL(b, res)
	}
	return bags, nil
}

// Clean removes quote characters and turns control characters into spaces
func Clean(input string) string {
	var sb strings.Builder
	sb.Grow(len(input))
	for _, r := range input {
		switch {
		case r == '\'' || r == '"':
		case unicode.IsControl(r):
			sb.WriteRune(' ')
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
