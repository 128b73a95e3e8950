package codec

import (
	"bufio"
	"os"

	"github.com/cockroachdb/errors"

	"github.com/nainya/itemstore/pkg/item"
)

// EncodeFile writes b to path, replacing any existing file
func EncodeFile(path string, b *item.Bag) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.Wrapf(cerr, "close %s", path)
		}
	}()

	w := bufio.NewWriter(f)
	if err := Encode(w, b); err != nil {
		return err
	}
	return w.Flush()
}

// DecodeFile reads the bag stored at path
func DecodeFile(path string) (*item.Bag, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	b, err := Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	return b, nil
}
