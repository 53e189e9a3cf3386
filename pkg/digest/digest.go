// Package digest computes the document digests anchored by the ledger. The
// ledger itself is algorithm-agnostic; parties must agree on the algorithm
// off-record.
package digest

import (
	"crypto/sha256"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/sha3"

	"certtrace/pkg/domain"
)

// Algorithm names a supported 256-bit digest function.
type Algorithm string

const (
	Keccak256 Algorithm = "keccak256"
	SHA256    Algorithm = "sha256"
	Blake3    Algorithm = "blake3"
)

// Default is the algorithm most anchored documents use.
const Default = Keccak256

// ParseAlgorithm accepts a case-insensitive algorithm name.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch a := Algorithm(strings.ToLower(strings.TrimSpace(s))); a {
	case Keccak256, SHA256, Blake3:
		return a, nil
	case "":
		return Default, nil
	default:
		return "", fmt.Errorf("unsupported digest algorithm %q", s)
	}
}

func (a Algorithm) newHash() (hash.Hash, error) {
	switch a {
	case Keccak256:
		return sha3.NewLegacyKeccak256(), nil
	case SHA256:
		return sha256.New(), nil
	case Blake3:
		return blake3.New(), nil
	default:
		return nil, fmt.Errorf("unsupported digest algorithm %q", a)
	}
}

// Reader digests everything read from r.
func Reader(a Algorithm, r io.Reader) (domain.Digest, error) {
	var d domain.Digest
	h, err := a.newHash()
	if err != nil {
		return d, err
	}
	if _, err := io.Copy(h, r); err != nil {
		return d, fmt.Errorf("read document: %w", err)
	}
	copy(d[:], h.Sum(nil))
	return d, nil
}

// Bytes digests an in-memory document.
func Bytes(a Algorithm, data []byte) (domain.Digest, error) {
	return Reader(a, strings.NewReader(string(data)))
}

// File digests the file at path.
func File(a Algorithm, path string) (domain.Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.Digest{}, fmt.Errorf("open document: %w", err)
	}
	defer f.Close()
	return Reader(a, f)
}
