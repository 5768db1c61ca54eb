// Package hasher provides the fast, non-cryptographic fingerprint used to
// decide whether an incremental cache is still valid.
package hasher

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
)

// FastInsecureHasher accumulates bytes into a 64-bit xxhash. It is not safe
// for concurrent use and must never be used for anything security related.
type FastInsecureHasher struct {
	digest *xxhash.Digest
}

// New returns an empty hasher.
func New() *FastInsecureHasher {
	return &FastInsecureHasher{digest: xxhash.New()}
}

// Write feeds raw bytes. It never fails; the signature satisfies io.Writer.
func (h *FastInsecureHasher) Write(b []byte) (int, error) {
	return h.digest.Write(b)
}

// WriteString feeds the bytes of s.
func (h *FastInsecureHasher) WriteString(s string) {
	_, _ = h.digest.WriteString(s)
}

// WriteStr feeds s followed by a terminator so that adjacent strings cannot
// run into each other ("ab"+"c" hashes differently from "a"+"bc").
func (h *FastInsecureHasher) WriteStr(s string) {
	h.WriteString(s)
	h.WriteU8(0xff)
}

// WriteU8 feeds a single byte.
func (h *FastInsecureHasher) WriteU8(b byte) {
	_, _ = h.digest.Write([]byte{b})
}

// WriteBool feeds a boolean as one byte.
func (h *FastInsecureHasher) WriteBool(v bool) {
	if v {
		h.WriteU8(1)
		return
	}
	h.WriteU8(0)
}

// WriteUint64 feeds v as 8 little-endian bytes.
func (h *FastInsecureHasher) WriteUint64(v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, _ = h.digest.Write(buf[:])
}

// WriteInt64 feeds v as 8 little-endian bytes.
func (h *FastInsecureHasher) WriteInt64(v int64) {
	h.WriteUint64(uint64(v)) //nolint:gosec // bit pattern is what gets hashed
}

// WriteFloat64 feeds the IEEE 754 bits of v.
func (h *FastInsecureHasher) WriteFloat64(v float64) {
	h.WriteUint64(math.Float64bits(v))
}

// Finish returns the fingerprint of everything written so far. The hasher
// can keep accepting writes afterwards.
func (h *FastInsecureHasher) Finish() uint64 {
	return h.digest.Sum64()
}

// HashString is a shorthand for hashing a single string, used for file
// contents in the incremental cache.
func HashString(s string) uint64 {
	return xxhash.Sum64String(s)
}
