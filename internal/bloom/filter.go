// Package bloom provides a probabilistic set used to prune partition
// segments on account-name equality predicates. No false negatives: if a
// value was added, Contains always returns true.
package bloom

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/spaolacci/murmur3"
)

// Filter is a fixed-size bloom filter over byte strings.
// Filters are built once per segment and never mutated afterwards, so
// access needs no locking.
type Filter struct {
	bits      []byte
	numBits   uint64
	numHashes uint64
	count     uint64
}

// New creates a filter with the given bit and hash-function counts.
func New(numBits, numHashes int) *Filter {
	if numBits <= 0 {
		numBits = 1024
	}
	if numHashes <= 0 {
		numHashes = 7
	}

	numBytes := (numBits + 7) / 8
	return &Filter{
		bits:      make([]byte, numBytes),
		numBits:   uint64(numBytes * 8),
		numHashes: uint64(numHashes),
	}
}

// NewWithEstimates creates a filter sized for the expected number of items
// and target false positive rate.
//
// m = -n * ln(p) / ln(2)^2, k = (m/n) * ln(2)
func NewWithEstimates(expectedItems int, targetFPR float64) *Filter {
	if expectedItems <= 0 {
		expectedItems = 1000
	}
	if targetFPR <= 0 || targetFPR >= 1 {
		targetFPR = 0.01
	}

	n := float64(expectedItems)
	m := -n * math.Log(targetFPR) / (math.Ln2 * math.Ln2)
	k := (m / n) * math.Ln2

	numBits := int(math.Ceil(m))
	numHashes := int(math.Ceil(k))
	if numBits < 64 {
		numBits = 64
	}
	if numHashes < 1 {
		numHashes = 1
	}

	return New(numBits, numHashes)
}

// Add adds an item to the filter.
func (f *Filter) Add(item []byte) {
	h1, h2 := murmur3.Sum128(item)
	for i := uint64(0); i < f.numHashes; i++ {
		// Double hashing: h(i) = h1 + i*h2
		pos := (h1 + i*h2) % f.numBits
		f.bits[pos/8] |= 1 << (pos % 8)
	}
	f.count++
}

// Contains tests whether an item might be in the filter. A true result may
// be a false positive; a false result is definitive.
func (f *Filter) Contains(item []byte) bool {
	h1, h2 := murmur3.Sum128(item)
	for i := uint64(0); i < f.numHashes; i++ {
		pos := (h1 + i*h2) % f.numBits
		if f.bits[pos/8]&(1<<(pos%8)) == 0 {
			return false
		}
	}
	return true
}

// Count returns the number of items added.
func (f *Filter) Count() uint64 { return f.count }

// NumBits returns the filter size in bits.
func (f *Filter) NumBits() int { return int(f.numBits) }

// NumHashes returns the number of hash functions.
func (f *Filter) NumHashes() int { return int(f.numHashes) }

// FalsePositiveRate estimates the current false positive rate from the
// fill ratio: (1 - e^(-k*n/m))^k.
func (f *Filter) FalsePositiveRate() float64 {
	if f.count == 0 {
		return 0
	}
	k := float64(f.numHashes)
	n := float64(f.count)
	m := float64(f.numBits)
	return math.Pow(1-math.Exp(-k*n/m), k)
}

// EncodeBase64 serializes the filter for embedding in a metadata sidecar.
// Layout: numHashes (8 bytes BE) | count (8 bytes BE) | bit array.
func (f *Filter) EncodeBase64() string {
	buf := make([]byte, 16+len(f.bits))
	binary.BigEndian.PutUint64(buf[0:8], f.numHashes)
	binary.BigEndian.PutUint64(buf[8:16], f.count)
	copy(buf[16:], f.bits)
	return base64.StdEncoding.EncodeToString(buf)
}

// DecodeBase64 deserializes a filter produced by EncodeBase64.
func DecodeBase64(data string) (*Filter, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("bloom: invalid base64 data: %w", err)
	}
	if len(raw) < 16 {
		return nil, fmt.Errorf("bloom: serialized filter too short: %d bytes", len(raw))
	}

	numHashes := binary.BigEndian.Uint64(raw[0:8])
	count := binary.BigEndian.Uint64(raw[8:16])
	bits := make([]byte, len(raw)-16)
	copy(bits, raw[16:])

	if numHashes == 0 {
		return nil, fmt.Errorf("bloom: serialized filter has zero hash functions")
	}

	return &Filter{
		bits:      bits,
		numBits:   uint64(len(bits) * 8),
		numHashes: numHashes,
		count:     count,
	}, nil
}
