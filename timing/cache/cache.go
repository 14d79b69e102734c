// Package cache provides write-back cache levels built on Akita cache
// directory components.
//
// A Cache serves two contracts. Read and Write move one word at a byte
// address; this is how the level closest to the program is used. ReadBlock
// and WriteBlock move one whole block addressed by block number; this makes
// a Cache usable as the BackingStore of the level above it.
package cache

import (
	"errors"
	"fmt"

	akitacache "github.com/sarchlab/akita/v4/mem/cache"

	"github.com/sarchlab/cachesim/timing/latency"
)

// ErrUnalignedAccess is returned when a word access would cross a block
// boundary.
var ErrUnalignedAccess = errors.New("access crosses a block boundary")

// Config holds cache configuration parameters.
type Config struct {
	// Name identifies the level in reports, e.g. "L1"
	Name string
	// Size in bytes
	Size int
	// Associativity (number of ways); 1 is direct-mapped
	Associativity int
	// BlockSize in bytes (cache line size)
	BlockSize int
	// ReadOp is charged for every read this level serves
	ReadOp latency.Op
	// WriteOp is charged for every write this level serves
	WriteOp latency.Op
}

// NumSets returns the number of sets the configuration describes.
func (c Config) NumSets() int {
	if c.Associativity <= 0 || c.BlockSize <= 0 {
		return 0
	}
	return c.Size / (c.Associativity * c.BlockSize)
}

// Validate checks the cache geometry.
func (c Config) Validate() error {
	if c.BlockSize <= 0 {
		return fmt.Errorf("%s: block size must be > 0", c.Name)
	}
	if c.Associativity <= 0 {
		return fmt.Errorf("%s: associativity must be > 0", c.Name)
	}
	if c.Size <= 0 || c.Size%c.BlockSize != 0 {
		return fmt.Errorf("%s: size %d is not a positive multiple of the "+
			"block size %d", c.Name, c.Size, c.BlockSize)
	}
	if (c.Size/c.BlockSize)%c.Associativity != 0 {
		return fmt.Errorf("%s: %d lines cannot be split into %d ways",
			c.Name, c.Size/c.BlockSize, c.Associativity)
	}
	if _, err := NewDecoder(c.NumSets(), c.BlockSize); err != nil {
		return fmt.Errorf("%s: %w", c.Name, err)
	}
	return nil
}

// AccessResult contains the result of a cache access.
type AccessResult struct {
	// Hit indicates whether the access was a cache hit.
	Hit bool
	// Latency is the number of cycles this access took, including every
	// lower level it reached.
	Latency uint64
	// Evicted is true if a valid block was replaced.
	Evicted bool
	// EvictedAddr is the byte address of the replaced block.
	EvictedAddr uint64
	// WroteBack is true if the replaced block was dirty and was written to
	// the next level.
	WroteBack bool
}

// Statistics holds cache performance statistics.
type Statistics struct {
	Reads      uint64 `json:"reads"`
	Writes     uint64 `json:"writes"`
	Hits       uint64 `json:"hits"`
	Misses     uint64 `json:"misses"`
	Evictions  uint64 `json:"evictions"`
	Writebacks uint64 `json:"writebacks"`
}

// BackingStore interface for the next level in the memory hierarchy.
// Addresses are block numbers and transfers are always one whole block.
type BackingStore interface {
	// ReadBlock fills dst with the block.
	ReadBlock(block uint64, dst []byte) error
	// WriteBlock stores src as the block.
	WriteBlock(block uint64, src []byte) error
}

// Line is a snapshot of one cache line.
type Line struct {
	Valid      bool   `json:"valid"`
	Dirty      bool   `json:"dirty"`
	Tag        uint64 `json:"tag"`
	Block      []byte `json:"block"`
	LastAccess uint64 `json:"last_access"`
}

// Cache is one write-back, write-allocate cache level.
type Cache struct {
	// Configuration
	config  Config
	decoder Decoder

	// Akita cache directory for tag/state management
	directory *akitacache.DirectoryImpl
	victims   *lruVictimFinder

	// Data storage - indexed by (setID * associativity + wayID)
	dataStore [][]byte
	fetchBuf  []byte

	// Statistics
	stats Statistics

	// Backing store interface (for fetching on miss and writeback)
	backing BackingStore

	clock *latency.Clock
}

// New creates a new cache with the given configuration. Every access is
// charged to clock. New panics if the configuration is invalid.
func New(config Config, backing BackingStore, clock *latency.Clock) *Cache {
	if err := config.Validate(); err != nil {
		panic(err)
	}

	numSets := config.NumSets()
	totalBlocks := numSets * config.Associativity
	decoder, _ := NewDecoder(numSets, config.BlockSize)

	// Initialize data storage
	dataStore := make([][]byte, totalBlocks)
	for i := range dataStore {
		dataStore[i] = make([]byte, config.BlockSize)
	}

	victims := newLRUVictimFinder(numSets, config.Associativity)

	return &Cache{
		config:  config,
		decoder: decoder,
		directory: akitacache.NewDirectory(
			numSets,
			config.Associativity,
			config.BlockSize,
			victims,
		),
		victims:   victims,
		dataStore: dataStore,
		fetchBuf:  make([]byte, config.BlockSize),
		backing:   backing,
		clock:     clock,
	}
}

// Config returns the cache configuration.
func (c *Cache) Config() Config {
	return c.config
}

// Decoder returns the address decoder of this level.
func (c *Cache) Decoder() Decoder {
	return c.decoder
}

// Stats returns cache statistics.
func (c *Cache) Stats() Statistics {
	return c.stats
}

// ResetStats clears cache statistics.
func (c *Cache) ResetStats() {
	c.stats = Statistics{}
}

// blockIndex computes the index into dataStore for a block.
func (c *Cache) blockIndex(block *akitacache.Block) int {
	return block.SetID*c.config.Associativity + block.WayID
}

// Read copies len(dst) bytes at the byte address addr into dst.
func (c *Cache) Read(addr uint64, dst []byte) (AccessResult, error) {
	loc, err := c.decodeWord(addr, len(dst))
	if err != nil {
		return AccessResult{}, err
	}

	c.stats.Reads++
	start := c.clock.Now()

	block, result, err := c.access(loc)
	if err != nil {
		return result, err
	}

	blockData := c.dataStore[c.blockIndex(block)]
	copy(dst, blockData[loc.Offset:loc.Offset+len(dst)])
	c.victims.touch(block, c.clock.Charge(c.config.ReadOp))

	result.Latency = c.clock.Now() - start
	return result, nil
}

// Write copies src into the cache at the byte address addr.
// Uses write-allocate policy: on miss, fetch the block first, then write.
func (c *Cache) Write(addr uint64, src []byte) (AccessResult, error) {
	loc, err := c.decodeWord(addr, len(src))
	if err != nil {
		return AccessResult{}, err
	}

	c.stats.Writes++
	start := c.clock.Now()

	block, result, err := c.access(loc)
	if err != nil {
		return result, err
	}

	blockData := c.dataStore[c.blockIndex(block)]
	copy(blockData[loc.Offset:loc.Offset+len(src)], src)
	block.IsDirty = true
	c.victims.touch(block, c.clock.Charge(c.config.WriteOp))

	result.Latency = c.clock.Now() - start
	return result, nil
}

// ReadBlock copies the whole block into dst.
func (c *Cache) ReadBlock(blockNum uint64, dst []byte) error {
	c.stats.Reads++

	block, _, err := c.access(c.decoder.DecodeBlock(blockNum))
	if err != nil {
		return err
	}

	copy(dst, c.dataStore[c.blockIndex(block)])
	c.victims.touch(block, c.clock.Charge(c.config.ReadOp))

	return nil
}

// WriteBlock replaces the whole block with src and marks it dirty.
func (c *Cache) WriteBlock(blockNum uint64, src []byte) error {
	c.stats.Writes++

	block, _, err := c.access(c.decoder.DecodeBlock(blockNum))
	if err != nil {
		return err
	}

	copy(c.dataStore[c.blockIndex(block)], src)
	block.IsDirty = true
	c.victims.touch(block, c.clock.Charge(c.config.WriteOp))

	return nil
}

func (c *Cache) decodeWord(addr uint64, size int) (Location, error) {
	loc := c.decoder.Decode(addr)
	if loc.Offset+size > c.config.BlockSize {
		return loc, fmt.Errorf("%w: %d bytes at 0x%x",
			ErrUnalignedAccess, size, addr)
	}
	return loc, nil
}

// access returns the block holding loc, filling it from the backing store
// on a miss.
func (c *Cache) access(loc Location) (*akitacache.Block, AccessResult, error) {
	if block := c.lookup(loc); block != nil {
		c.stats.Hits++
		return block, AccessResult{Hit: true}, nil
	}

	c.stats.Misses++
	return c.handleMiss(loc)
}

// lookup scans the ways of the set in ascending order.
func (c *Cache) lookup(loc Location) *akitacache.Block {
	sets := c.directory.GetSets()
	for _, block := range sets[loc.Index].Blocks {
		if block.IsValid && block.Tag == loc.Tag {
			return block
		}
	}
	return nil
}

// handleMiss handles a cache miss by fetching from backing store.
func (c *Cache) handleMiss(loc Location) (*akitacache.Block, AccessResult, error) {
	result := AccessResult{Hit: false}

	sets := c.directory.GetSets()
	victim := c.victims.FindVictim(&sets[loc.Index])
	victimData := c.dataStore[c.blockIndex(victim)]

	// Fetch from backing store
	if c.backing != nil {
		if err := c.backing.ReadBlock(loc.Block, c.fetchBuf); err != nil {
			return nil, result, err
		}
	} else {
		// Initialize to zeros if no backing store
		for i := range c.fetchBuf {
			c.fetchBuf[i] = 0
		}
	}

	// Check if we need to evict
	if victim.IsValid {
		victimBlock := c.decoder.BlockNumber(victim.Tag, victim.SetID)

		c.stats.Evictions++
		result.Evicted = true
		result.EvictedAddr = c.decoder.BlockAddress(victimBlock)

		// Writeback if dirty
		if victim.IsDirty && c.backing != nil {
			if err := c.backing.WriteBlock(victimBlock, victimData); err != nil {
				return nil, result, err
			}
			c.stats.Writebacks++
			result.WroteBack = true
		}
	}

	copy(victimData, c.fetchBuf)

	// Update block metadata
	victim.Tag = loc.Tag
	victim.IsValid = true
	victim.IsDirty = false

	return victim, result, nil
}

// Invalidate marks the line holding the byte address addr as invalid. Dirty
// data in the line is dropped.
func (c *Cache) Invalidate(addr uint64) {
	block := c.lookup(c.decoder.Decode(addr))
	if block != nil {
		block.IsValid = false
		block.IsDirty = false
	}
}

// Flush writes back all dirty blocks and invalidates them.
func (c *Cache) Flush() error {
	sets := c.directory.GetSets()
	for _, set := range sets {
		for _, block := range set.Blocks {
			if block.IsValid && block.IsDirty && c.backing != nil {
				blockNum := c.decoder.BlockNumber(block.Tag, block.SetID)
				blockData := c.dataStore[c.blockIndex(block)]
				if err := c.backing.WriteBlock(blockNum, blockData); err != nil {
					return err
				}
				c.stats.Writebacks++
			}
			block.IsValid = false
			block.IsDirty = false
		}
	}
	return nil
}

// Reset returns every line to its initial state: invalid, clean, tag 0,
// zeroed data. Dirty data is dropped without writeback.
func (c *Cache) Reset() {
	c.directory.Reset()
	c.victims.reset()
	for _, data := range c.dataStore {
		for i := range data {
			data[i] = 0
		}
	}
	c.stats = Statistics{}
}

// NumSets returns the number of sets (lines, when direct-mapped).
func (c *Cache) NumSets() int {
	return c.directory.NumSets
}

// Associativity returns the number of ways per set.
func (c *Cache) Associativity() int {
	return c.directory.NumWays
}

// Line returns a snapshot of the line at (set, way).
func (c *Cache) Line(set, way int) Line {
	block := c.directory.GetSets()[set].Blocks[way]
	data := make([]byte, c.config.BlockSize)
	copy(data, c.dataStore[c.blockIndex(block)])

	return Line{
		Valid:      block.IsValid,
		Dirty:      block.IsDirty,
		Tag:        block.Tag,
		Block:      data,
		LastAccess: c.victims.stamp(block),
	}
}

// Lines returns a snapshot of every line, indexed by set then way.
func (c *Cache) Lines() [][]Line {
	lines := make([][]Line, c.NumSets())
	for s := range lines {
		lines[s] = make([]Line, c.Associativity())
		for w := range lines[s] {
			lines[s][w] = c.Line(s, w)
		}
	}
	return lines
}
