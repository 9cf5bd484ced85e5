// Package checksum computes content hashes and gates downloads on
// provider-supplied checksums.
package checksum

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"

	"github.com/glorpus-work/onboard/pkg/codec"
	onboarderrors "github.com/glorpus-work/onboard/pkg/errors"
	"github.com/zeebo/blake3"
)

// Secondary digest algorithms understood by NewDigester.
const (
	MD5    = "md5"
	SHA1   = "sha1"
	SHA256 = "sha256"
	SHA512 = "sha512"
)

// manifestDomainKey keys the BLAKE3 hash of bundle manifests so that a
// manifest never collides with the content hash of a file holding the same
// bytes. ASCII "onboard.bundle.manifest", zero padded.
var manifestDomainKey = [32]byte{
	'o', 'n', 'b', 'o', 'a', 'r', 'd', '.', 'b', 'u', 'n', 'd', 'l', 'e', '.',
	'm', 'a', 'n', 'i', 'f', 'e', 's', 't',
}

// Digester hashes a byte stream in a single pass: the BLAKE3 content hash
// always, plus an optional secondary digest used to verify provider
// checksums. It is an io.Writer so it can sit behind io.MultiWriter next to
// the destination file.
type Digester struct {
	size      int64
	content   *blake3.Hasher
	secondary hash.Hash
	algorithm string
}

// NewDigester returns a Digester. An empty algorithm disables the secondary
// digest.
func NewDigester(algorithm string) (*Digester, error) {
	d := &Digester{content: blake3.New(), algorithm: strings.ToLower(algorithm)}
	switch d.algorithm {
	case "":
	case MD5:
		d.secondary = md5.New()
	case SHA1:
		d.secondary = sha1.New()
	case SHA256:
		d.secondary = sha256.New()
	case SHA512:
		d.secondary = sha512.New()
	default:
		return nil, fmt.Errorf("unsupported checksum algorithm %q: %w", algorithm, onboarderrors.ErrInvalidInput)
	}
	return d, nil
}

// Write feeds p to every hash.
func (d *Digester) Write(p []byte) (int, error) {
	_, _ = d.content.Write(p)
	if d.secondary != nil {
		_, _ = d.secondary.Write(p)
	}
	d.size += int64(len(p))
	return len(p), nil
}

// Size returns the number of bytes written so far.
func (d *Digester) Size() int64 { return d.size }

// Hash returns the hex BLAKE3 content hash.
func (d *Digester) Hash() string { return hex.EncodeToString(d.content.Sum(nil)) }

// Secondary returns the hex secondary digest, or "" when disabled.
func (d *Digester) Secondary() string {
	if d.secondary == nil {
		return ""
	}
	return hex.EncodeToString(d.secondary.Sum(nil))
}

// Algorithm returns the secondary algorithm name.
func (d *Digester) Algorithm() string { return d.algorithm }

// Sum is the result of hashing a file.
type Sum struct {
	Size      int64
	Hash      string
	Secondary string
}

// File hashes the file at path.
func File(path, algorithm string) (Sum, error) {
	d, err := NewDigester(algorithm)
	if err != nil {
		return Sum{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return Sum{}, onboarderrors.Wrap(err, "open for checksum")
	}
	defer func() { _ = f.Close() }()
	if _, err := io.Copy(d, f); err != nil {
		return Sum{}, onboarderrors.Wrapf(err, "hashing %s", path)
	}
	return Sum{Size: d.Size(), Hash: d.Hash(), Secondary: d.Secondary()}, nil
}

// Manifest returns the keyed BLAKE3 hash of the deterministic CBOR encoding
// of v.
func Manifest(v any) (string, error) {
	data, err := codec.Marshal(v)
	if err != nil {
		return "", onboarderrors.Wrap(err, "encoding manifest")
	}
	h, err := blake3.NewKeyed(manifestDomainKey[:])
	if err != nil {
		return "", err
	}
	_, _ = h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Normalize strips an algorithm tag ("md5:") from a provider checksum.
// Everything up to and including the first colon is removed.
func Normalize(expected string) string {
	if i := strings.IndexByte(expected, ':'); i >= 0 {
		return expected[i+1:]
	}
	return expected
}

// Algorithm returns the lower-cased tag of a provider checksum, or "" when
// the checksum carries none.
func Algorithm(expected string) string {
	if i := strings.IndexByte(expected, ':'); i >= 0 {
		return strings.ToLower(expected[:i])
	}
	return ""
}

// SecondaryFor returns the digest algorithm to compute for a provider
// checksum: its tag when present, md5 otherwise.
func SecondaryFor(expected string) string {
	if algo := Algorithm(expected); algo != "" {
		return algo
	}
	return MD5
}

// Verify compares the normalized expected checksum with the computed one.
// The comparison is exact and case sensitive.
func Verify(expected, actual string) error {
	want := Normalize(expected)
	if want != actual {
		return &onboarderrors.IntegrityError{Expected: want, Actual: actual}
	}
	return nil
}
