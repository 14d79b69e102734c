package hierarchy

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sarchlab/cachesim/timing/cache"
	"github.com/sarchlab/cachesim/timing/latency"
)

// Config describes the geometry and timing of a memory hierarchy.
type Config struct {
	// WordSize is the size of one Read or Write, in bytes. Default: 4.
	WordSize int `json:"word_size"`

	// BlockSize is the line size of every level and the size of every
	// transfer between levels, in bytes. Default: 64.
	BlockSize int `json:"block_size"`

	// MemorySize is the main memory capacity in bytes. Default: 1024 blocks.
	MemorySize int `json:"memory_size"`

	// L1Size is the capacity of the direct-mapped L1, in bytes.
	// Default: 256 blocks.
	L1Size int `json:"l1_size"`

	// L2Size is the capacity of L2, in bytes. 0 removes L2 and connects L1
	// straight to main memory. Default: 512 blocks.
	L2Size int `json:"l2_size"`

	// L2Associativity is the number of ways per L2 set. 1 makes L2
	// direct-mapped. Default: 2.
	L2Associativity int `json:"l2_associativity"`

	// Timing holds the cost of every operation.
	Timing *latency.TimingConfig `json:"timing"`
}

// DefaultConfig returns the two-level hierarchy with a 2-way L2.
func DefaultConfig() *Config {
	const blockSize = 64

	return &Config{
		WordSize:        4,
		BlockSize:       blockSize,
		MemorySize:      1024 * blockSize,
		L1Size:          256 * blockSize,
		L2Size:          512 * blockSize,
		L2Associativity: 2,
		Timing:          latency.DefaultTimingConfig(),
	}
}

// DirectMappedL2Config returns the two-level hierarchy with a direct-mapped
// L2.
func DirectMappedL2Config() *Config {
	config := DefaultConfig()
	config.L2Associativity = 1
	return config
}

// SingleLevelConfig returns a hierarchy with L1 only.
func SingleLevelConfig() *Config {
	config := DefaultConfig()
	config.L2Size = 0
	config.L2Associativity = 0
	return config
}

// HasL2 reports whether the configuration includes an L2.
func (c *Config) HasL2() bool {
	return c.L2Size > 0
}

// L1Config returns the cache configuration of L1.
func (c *Config) L1Config() cache.Config {
	return cache.Config{
		Name:          "L1",
		Size:          c.L1Size,
		Associativity: 1,
		BlockSize:     c.BlockSize,
		ReadOp:        latency.OpL1Read,
		WriteOp:       latency.OpL1Write,
	}
}

// L2Config returns the cache configuration of L2.
func (c *Config) L2Config() cache.Config {
	return cache.Config{
		Name:          "L2",
		Size:          c.L2Size,
		Associativity: c.L2Associativity,
		BlockSize:     c.BlockSize,
		ReadOp:        latency.OpL2Read,
		WriteOp:       latency.OpL2Write,
	}
}

// Validate checks that the geometry is consistent and the timing is valid.
func (c *Config) Validate() error {
	if !isPowerOfTwo(c.WordSize) {
		return fmt.Errorf("word_size %d must be a power of two", c.WordSize)
	}
	if !isPowerOfTwo(c.BlockSize) {
		return fmt.Errorf("block_size %d must be a power of two", c.BlockSize)
	}
	if c.WordSize > c.BlockSize {
		return fmt.Errorf("word_size %d must not exceed block_size %d",
			c.WordSize, c.BlockSize)
	}
	if c.MemorySize <= 0 || c.MemorySize%c.BlockSize != 0 {
		return fmt.Errorf("memory_size %d must be a positive multiple of "+
			"block_size %d", c.MemorySize, c.BlockSize)
	}
	if uint64(c.MemorySize) > 1<<32 {
		return fmt.Errorf("memory_size %d exceeds the 32-bit address space",
			c.MemorySize)
	}
	if err := c.L1Config().Validate(); err != nil {
		return err
	}
	if c.L2Size < 0 {
		return fmt.Errorf("l2_size must be >= 0")
	}
	if c.HasL2() {
		if err := c.L2Config().Validate(); err != nil {
			return err
		}
	}
	if c.Timing == nil {
		return fmt.Errorf("timing must be set")
	}
	return c.Timing.Validate()
}

// Clone returns a deep copy of the Config.
func (c *Config) Clone() *Config {
	clone := *c
	if c.Timing != nil {
		clone.Timing = c.Timing.Clone()
	}
	return &clone
}

// LoadConfig loads a Config from a JSON file. Fields missing from the file
// keep their default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read hierarchy config file: %w", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse hierarchy config: %w", err)
	}

	return config, nil
}

// SaveConfig writes a Config to a JSON file.
func (c *Config) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize hierarchy config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write hierarchy config file: %w", err)
	}

	return nil
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}
