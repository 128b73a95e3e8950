package generate

import (
	"context"
	"io"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/cockroachdb/errors"

	"github.com/nainya/itemstore/pkg/item"
)

// TitledCSVName is the registered name of the titled CSV generator
const TitledCSVName = "titled-csv"

// ParamSeparator selects the column separator of the titled CSV generator
const ParamSeparator = "separator"

var lineBreak = regexp.MustCompile(`\r?\n`)

// TitledCSV generates one bag per data row. The first line holds the
// column headings, which become both the attribute names and the
// comparator set of every bag.
type TitledCSV struct {
	base
	separator rune
}

// NewTitledCSV creates a titled CSV generator with a comma separator
func NewTitledCSV(opts ...Option) *TitledCSV {
	return &TitledCSV{base: newBase(TitledCSVName, opts), separator: ','}
}

// SetParameter accepts only the separator, which must be a single character
func (g *TitledCSV) SetParameter(name, value string) error {
	if name != ParamSeparator {
		return errors.Wrapf(ErrGeneration, "%s supports only the %s parameter, got %q", TitledCSVName, ParamSeparator, name)
	}
	if value == `\|` {
		value = "|"
	}
	if utf8.RuneCountInString(value) != 1 {
		return errors.Wrapf(ErrGeneration, "separator must be a single character, got %q", value)
	}
	g.separator, _ = utf8.DecodeRuneInString(value)
	return nil
}

// Generate parses input. Rows whose column count differs from the headings
// are logged and skipped, as are blank rows.
func (g *TitledCSV) Generate(input, source string) ([]*item.Bag, error) {
	lines := lineBreak.Split(strings.TrimRight(input, "\r\n"), -1)
	if len(lines) == 0 || lines[0] == "" {
		return nil, errors.Wrap(ErrGeneration, "input has no heading line")
	}

	headings := splitQuoted(lines[0], g.separator)

	var out []*item.Bag
	for i, line := range lines[1:] {
		if line == "" {
			continue
		}
		values := splitQuoted(line, g.separator)
		if len(values) != len(headings) {
			g.logger.Warn().
				Int("line", i+1).
				Int("expected", len(headings)).
				Int("received", len(values)).
				Str("source", source).
				Msg("Skipping mismatched row")
			continue
		}

		b := g.newBag()
		for col, heading := range headings {
			b.SetText(heading, values[col])
		}

		// Comparator set is maximal
		b.SetComparators(headings)
		g.setMandatoryAspects(b, source)
		out = append(out, b)
	}
	return out, nil
}

// GenerateReader reads r fully and parses it
func (g *TitledCSV) GenerateReader(r io.Reader, source string) ([]*item.Bag, error) {
	input, err := readAll(r)
	if err != nil {
		return nil, err
	}
	return g.Generate(input, source)
}

// GenerateFile parses the file at path
func (g *TitledCSV) GenerateFile(_ context.Context, path, source string) ([]*item.Bag, error) {
	input, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return g.Generate(input, source)
}

// GenerateURL is not supported for CSV sources
func (g *TitledCSV) GenerateURL(_ context.Context, rawURL, _ string) ([]*item.Bag, error) {
	return nil, errors.Wrapf(ErrGeneration, "%s does not generate from URLs (%s)", TitledCSVName, rawURL)
}

// splitQuoted splits line on sep, ignoring separators inside double quotes.
// A field wrapped entirely in quotes has the outer pair removed.
func splitQuoted(line string, sep rune) []string {
	var fields []string
	var cur strings.Builder
	quoted := false

	for _, r := range line {
		switch {
		case r == '"':
			quoted = !quoted
			cur.WriteRune(r)
		case r == sep && !quoted:
			fields = append(fields, unquote(cur.String()))
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	return append(fields, unquote(cur.String()))
}

func unquote(field string) string {
	if len(field) >= 2 && field[0] == '"' && field[len(field)-1] == '"' {
		return field[1 : len(field)-1]
	}
	return field
}
