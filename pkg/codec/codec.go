// ABOUTME: Line-oriented text encoding of attribute bags
// ABOUTME: CREATED and COMPARITORS headers followed by name:::value data lines

package codec

import (
	"bufio"
	"bytes"
	"io"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/nainya/itemstore/pkg/item"
)

const (
	// Delimiter separates a name from its value on every line
	Delimiter = ":::"

	// HeaderCreated prefixes the creation timestamp line
	HeaderCreated = "CREATED"

	// HeaderComparators prefixes the comparator list line
	HeaderComparators = "COMPARITORS"

	// ComparatorSeparator joins comparator names on the header line
	ComparatorSeparator = ","
)

// Encode writes b to w. Only text attributes are written; opaque attributes
// are dropped. Attribute lines follow lexical name order.
func Encode(w io.Writer, b *item.Bag) error {
	comparators := b.Comparators()
	if len(comparators) == 0 {
		return errors.Wrap(item.ErrFormat, "cannot encode bag without comparators")
	}
	for _, c := range comparators {
		if c == "" || strings.Contains(c, Delimiter) || strings.ContainsAny(c, ComparatorSeparator+"\r\n") {
			return errors.Wrapf(item.ErrFormat, "comparator %q cannot be encoded", c)
		}
	}

	bw := bufio.NewWriter(w)

	// Manually map the created date as a separate field
	writeLine(bw, HeaderCreated, strconv.FormatInt(b.CreatedAt(), 10))

	// Store the comparators for re-constituting the bag
	writeLine(bw, HeaderComparators, strings.Join(comparators, ComparatorSeparator))

	var encErr error
	b.Range(func(name string, v item.Value) bool {
		s, ok := v.AsText()
		if !ok {
			return true
		}
		if err := checkEncodable(name, s); err != nil {
			encErr = err
			return false
		}
		writeLine(bw, name, s)
		return true
	})
	if encErr != nil {
		return encErr
	}

	return bw.Flush()
}

// Marshal encodes b into a byte slice
func Marshal(b *item.Bag) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, b); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeLine(w *bufio.Writer, name, value string) {
	w.WriteString(name)
	w.WriteString(Delimiter)
	w.WriteString(value)
	w.WriteByte('\n')
}

func checkEncodable(name, value string) error {
	// A trailing ':' would merge into the delimiter on decode
	if strings.Contains(name, Delimiter) || strings.HasSuffix(name, ":") || strings.ContainsAny(name, "\r\n") {
		return errors.Wrapf(item.ErrFormat, "attribute name %q cannot be encoded", name)
	}
	if strings.Contains(value, Delimiter) || strings.ContainsAny(value, "\r\n") {
		return errors.Wrapf(item.ErrFormat, "value of %q cannot be encoded", name)
	}
	return nil
}

// Decode reads one encoded bag from r
func Decode(r io.Reader) (*item.Bag, error) {
	br := bufio.NewReader(r)

	// Order - creation time first
	line, err := readLine(br)
	if err != nil {
		return nil, errors.Wrap(item.ErrFormat, "missing CREATED header")
	}
	if !strings.HasPrefix(line, HeaderCreated) {
		return nil, errors.Wrapf(item.ErrFormat, "expected CREATED header, got %q", line)
	}
	_, value, err := SplitLine(line)
	if err != nil {
		return nil, err
	}
	createdAt, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return nil, errors.Wrapf(item.ErrFormat, "invalid CREATED value %q", value)
	}

	// Then the comparators
	line, err = readLine(br)
	if err != nil {
		return nil, errors.Wrap(item.ErrFormat, "missing COMPARITORS header")
	}
	if !strings.HasPrefix(line, HeaderComparators) {
		return nil, errors.Wrapf(item.ErrFormat, "expected COMPARITORS header, got %q", line)
	}
	_, value, err = SplitLine(line)
	if err != nil {
		return nil, err
	}
	comparators := strings.Split(value, ComparatorSeparator)
	for len(comparators) > 0 && comparators[len(comparators)-1] == "" {
		comparators = comparators[:len(comparators)-1]
	}
	if len(comparators) == 0 {
		return nil, errors.Wrap(item.ErrFormat, "empty COMPARITORS header")
	}

	b := item.NewAt(createdAt)
	b.SetComparators(comparators)

	// Now process the contents
	for {
		line, err = readLine(br)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "read record")
		}

		if !strings.Contains(line, Delimiter) {
			continue
		}

		name, value, err := SplitLine(line)
		if err != nil {
			return nil, err
		}
		b.SetText(name, value)
	}

	return b, nil
}

// Unmarshal decodes a bag from a byte slice
func Unmarshal(data []byte) (*item.Bag, error) {
	return Decode(bytes.NewReader(data))
}

// SplitLine expands name:::value into its two components. A line with an
// empty value yields an empty string; any other component count is a
// format error. Trailing empty components are discarded before counting.
func SplitLine(line string) (string, string, error) {
	parts := strings.Split(line, Delimiter)
	for len(parts) > 1 && parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}

	switch len(parts) {
	case 1:
		return parts[0], "", nil
	case 2:
		return parts[0], parts[1], nil
	default:
		return "", "", errors.Wrapf(item.ErrFormat, "line has %d components", len(parts))
	}
}

// readLine returns the next line without its terminator. io.EOF is returned
// only when no bytes remain.
func readLine(br *bufio.Reader) (string, error) {
	line, err := br.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	if err == io.EOF && line == "" {
		return "", io.EOF
	}
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	return line, nil
}
