// Package fingerprint implements the Hasher component (spec §4.1): a
// pure, deterministic function from a dependency set to a bundle id.
package fingerprint

import (
	"encoding/binary"
	"hash"
	"io"

	digest "github.com/opencontainers/go-digest"

	"github.com/SiestaCat/dep-cache-proxy-server/depset"
)

// Hasher computes bundle ids under a fixed content-addressing algorithm.
// The algorithm is configured once for the whole cache store: changing it
// invalidates every existing bundle id, since it participates implicitly
// in bundle identity.
type Hasher struct {
	algorithm digest.Algorithm
}

// DefaultAlgorithm is the design-level default hash algorithm (spec
// §4.1).
const DefaultAlgorithm = digest.SHA256

// New returns a Hasher using algorithm. It panics if algorithm is not
// linked into the binary, matching go-digest's own Digester() behavior.
func New(algorithm digest.Algorithm) *Hasher {
	if !algorithm.Available() {
		panic("fingerprint: hash algorithm not available: " + string(algorithm))
	}
	return &Hasher{algorithm: algorithm}
}

// Algorithm returns the Hasher's configured algorithm.
func (h *Hasher) Algorithm() digest.Algorithm {
	return h.algorithm
}

// Fingerprint computes the bundle id for set. It is pure and total over
// well-formed dependency sets: two semantically equal sets (same
// manager, same version tuple content, same files by path+bytes)
// produce the same id regardless of the order Files was populated in.
func (h *Hasher) Fingerprint(set depset.Set) digest.Digest {
	digester := h.algorithm.Digester()
	w := digester.Hash()

	writeLengthPrefixed(w, []byte(set.Manager))

	for _, role := range set.Versions.SortedRoles() {
		value := set.Versions[role]
		if value == "" {
			// Absent roles are omitted, not emitted empty; an explicitly
			// empty value is indistinguishable from absence by the map
			// representation, so it is dropped here too.
			continue
		}
		writeLengthPrefixed(w, []byte(role))
		writeLengthPrefixed(w, []byte(value))
	}

	for _, f := range set.SortedFiles() {
		writeLengthPrefixed(w, []byte(f.Path))
		writeLengthPrefixed(w, f.Content)
	}

	return digester.Digest()
}

// writeLengthPrefixed writes a fixed-width unsigned 64-bit big-endian
// length prefix followed by p. The explicit prefix, rather than a
// delimiter, is what prevents two distinct (role,value) or (path,content)
// sequences from hashing identically by accidental concatenation.
func writeLengthPrefixed(w hash.Hash, p []byte) {
	var lenBuf [8]byte
	binary.BigEndian.PutUint64(lenBuf[:], uint64(len(p)))
	mustWrite(w, lenBuf[:])
	mustWrite(w, p)
}

// mustWrite writes to a hash.Hash, which per the hash.Hash contract
// never returns an error from Write.
func mustWrite(w io.Writer, p []byte) {
	if _, err := w.Write(p); err != nil {
		panic("fingerprint: hash.Hash.Write returned an error: " + err.Error())
	}
}
