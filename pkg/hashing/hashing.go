// ABOUTME: Pluggable digests over comparator values
// ABOUTME: Strategies are resolved by name through a registry

package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
	"golang.org/x/crypto/blake2b"
	"lukechampine.com/blake3"

	"github.com/nainya/itemstore/pkg/registry"
)

// ErrInvalidInput is returned when a value cannot be hashed
var ErrInvalidInput = errors.New("hashing: invalid input")

// Strategy names
const (
	Simple  = "simple"
	SHA256  = "sha256"
	XXHash  = "xxhash"
	Blake3  = "blake3"
	Blake2b = "blake2b"

	// Default is used when no strategy is configured
	Default = SHA256
)

// Strategy digests text and raw bytes
type Strategy interface {
	Name() string
	HashString(input string) (string, error)
	HashBytes(input []byte) ([]byte, error)
}

// digestStrategy adapts a fixed-size digest function to Strategy.
// String digests are hex encoded.
type digestStrategy struct {
	name string
	sum  func([]byte) []byte
}

func (d digestStrategy) Name() string {
	return d.name
}

func (d digestStrategy) HashString(input string) (string, error) {
	return hex.EncodeToString(d.sum([]byte(input))), nil
}

func (d digestStrategy) HashBytes(input []byte) ([]byte, error) {
	if input == nil {
		return nil, errors.Wrapf(ErrInvalidInput, "%s: nil input", d.name)
	}
	return d.sum(input), nil
}

// simpleStrategy removes all spaces from text and passes bytes through
type simpleStrategy struct{}

func (simpleStrategy) Name() string {
	return Simple
}

func (simpleStrategy) HashString(input string) (string, error) {
	return strings.ReplaceAll(input, " ", ""), nil
}

func (simpleStrategy) HashBytes(input []byte) ([]byte, error) {
	if input == nil {
		return nil, errors.Wrap(ErrInvalidInput, "simple: nil input")
	}
	out := make([]byte, len(input))
	copy(out, input)
	return out, nil
}

var strategies = registry.New[Strategy]("hash strategy")

func init() {
	strategies.MustRegister(Simple, simpleStrategy{})
	strategies.MustRegister(SHA256, digestStrategy{name: SHA256, sum: func(b []byte) []byte {
		s := sha256.Sum256(b)
		return s[:]
	}})
	strategies.MustRegister(XXHash, digestStrategy{name: XXHash, sum: func(b []byte) []byte {
		return strconv.AppendUint(nil, xxhash.Sum64(b), 16)
	}})
	strategies.MustRegister(Blake3, digestStrategy{name: Blake3, sum: func(b []byte) []byte {
		s := blake3.Sum256(b)
		return s[:]
	}})
	strategies.MustRegister(Blake2b, digestStrategy{name: Blake2b, sum: func(b []byte) []byte {
		s := blake2b.Sum256(b)
		return s[:]
	}})
}

// Lookup returns the strategy registered under name; empty means Default
func Lookup(name string) (Strategy, error) {
	if name == "" {
		name = Default
	}
	return strategies.Lookup(name)
}

// Register adds a custom strategy
func Register(s Strategy) error {
	return strategies.Register(s.Name(), s)
}

// Names lists the registered strategies
func Names() []string {
	return strategies.Names()
}
