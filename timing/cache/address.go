package cache

import (
	"fmt"
	"math/bits"
)

// Location is a decoded address.
type Location struct {
	// Block is the block number, the address with the offset bits removed.
	Block uint64
	// Index selects the line (direct-mapped) or set (associative).
	Index int
	// Tag is the block number with the index bits removed.
	Tag uint64
	// Offset is the byte position inside the block.
	Offset int
}

// Decoder splits addresses into tag, index and offset for one cache
// geometry. Shift widths are derived from the geometry, so two distinct
// blocks never share an (index, tag) pair.
type Decoder struct {
	blockSize  uint64
	numSets    uint64
	offsetBits uint
	indexBits  uint
}

// NewDecoder creates a decoder for a cache with numSets sets (lines, when
// direct-mapped) of blockSize bytes. Both must be powers of two.
func NewDecoder(numSets, blockSize int) (Decoder, error) {
	offsetBits, ok := log2(blockSize)
	if !ok {
		return Decoder{}, fmt.Errorf(
			"block size %d is not a power of two", blockSize)
	}

	indexBits, ok := log2(numSets)
	if !ok {
		return Decoder{}, fmt.Errorf(
			"set count %d is not a power of two", numSets)
	}

	return Decoder{
		blockSize:  uint64(blockSize),
		numSets:    uint64(numSets),
		offsetBits: offsetBits,
		indexBits:  indexBits,
	}, nil
}

// Decode splits a byte address.
func (d Decoder) Decode(addr uint64) Location {
	loc := d.DecodeBlock(addr >> d.offsetBits)
	loc.Offset = int(addr & (d.blockSize - 1))
	return loc
}

// DecodeBlock splits a block number. The offset of the result is 0.
func (d Decoder) DecodeBlock(block uint64) Location {
	return Location{
		Block: block,
		Index: int(block & (d.numSets - 1)),
		Tag:   block >> d.indexBits,
	}
}

// BlockNumber rebuilds the block number from a tag and an index. It is the
// inverse of DecodeBlock.
func (d Decoder) BlockNumber(tag uint64, index int) uint64 {
	return tag<<d.indexBits | uint64(index)
}

// BlockAddress returns the byte address of the first byte of block.
func (d Decoder) BlockAddress(block uint64) uint64 {
	return block << d.offsetBits
}

// OffsetBits returns log2 of the block size.
func (d Decoder) OffsetBits() uint {
	return d.offsetBits
}

// IndexBits returns log2 of the set count.
func (d Decoder) IndexBits() uint {
	return d.indexBits
}

func log2(n int) (uint, bool) {
	if n <= 0 || n&(n-1) != 0 {
		return 0, false
	}
	return uint(bits.TrailingZeros64(uint64(n))), true
}
