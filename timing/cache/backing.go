package cache

import (
	"github.com/sarchlab/cachesim/timing/dram"
)

// MemoryBacking wraps main memory as a BackingStore.
type MemoryBacking struct {
	memory    *dram.DRAM
	blockSize uint64
}

// NewMemoryBacking creates a new MemoryBacking adapter. Block numbers are
// turned into byte addresses with the memory's block size.
func NewMemoryBacking(memory *dram.DRAM) *MemoryBacking {
	return &MemoryBacking{
		memory:    memory,
		blockSize: memory.Config().BlockSize,
	}
}

// ReadBlock fetches a block from the backing memory.
func (m *MemoryBacking) ReadBlock(block uint64, dst []byte) error {
	return m.memory.ReadBlock(block*m.blockSize, dst)
}

// WriteBlock stores a block to the backing memory.
func (m *MemoryBacking) WriteBlock(block uint64, src []byte) error {
	return m.memory.WriteBlock(block*m.blockSize, src)
}
