package latency

import (
	"encoding/json"
	"fmt"
	"os"
)

// TimingConfig holds the cost, in cycles, of every operation the memory
// hierarchy can perform. Values default to the reference lab constants.
type TimingConfig struct {
	// DRAMReadLatency is charged for every block read from main memory.
	// Default: 100 cycles.
	DRAMReadLatency uint64 `json:"dram_read_latency"`

	// DRAMWriteLatency is charged for every block written to main memory.
	// Default: 50 cycles.
	DRAMWriteLatency uint64 `json:"dram_write_latency"`

	// L1ReadLatency is charged for every word read served by L1.
	// Default: 1 cycle.
	L1ReadLatency uint64 `json:"l1_read_latency"`

	// L1WriteLatency is charged for every word written into L1.
	// Default: 1 cycle.
	L1WriteLatency uint64 `json:"l1_write_latency"`

	// L2ReadLatency is charged for every block L2 hands to L1.
	// Default: 10 cycles.
	L2ReadLatency uint64 `json:"l2_read_latency"`

	// L2WriteLatency is charged for every block L1 writes back into L2.
	// Default: 5 cycles.
	L2WriteLatency uint64 `json:"l2_write_latency"`
}

// DefaultTimingConfig returns a TimingConfig with the reference values.
func DefaultTimingConfig() *TimingConfig {
	return &TimingConfig{
		DRAMReadLatency:  100,
		DRAMWriteLatency: 50,
		L1ReadLatency:    1,
		L1WriteLatency:   1,
		L2ReadLatency:    10,
		L2WriteLatency:   5,
	}
}

// LoadConfig loads a TimingConfig from a JSON file. Fields missing from the
// file keep their default values.
func LoadConfig(path string) (*TimingConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read timing config file: %w", err)
	}

	config := DefaultTimingConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse timing config: %w", err)
	}

	return config, nil
}

// SaveConfig writes a TimingConfig to a JSON file.
func (c *TimingConfig) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize timing config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write timing config file: %w", err)
	}

	return nil
}

// Validate checks that all latency values are valid (> 0).
func (c *TimingConfig) Validate() error {
	if c.DRAMReadLatency == 0 {
		return fmt.Errorf("dram_read_latency must be > 0")
	}
	if c.DRAMWriteLatency == 0 {
		return fmt.Errorf("dram_write_latency must be > 0")
	}
	if c.L1ReadLatency == 0 {
		return fmt.Errorf("l1_read_latency must be > 0")
	}
	if c.L1WriteLatency == 0 {
		return fmt.Errorf("l1_write_latency must be > 0")
	}
	if c.L2ReadLatency == 0 {
		return fmt.Errorf("l2_read_latency must be > 0")
	}
	if c.L2WriteLatency == 0 {
		return fmt.Errorf("l2_write_latency must be > 0")
	}
	return nil
}

// Clone returns a deep copy of the TimingConfig.
func (c *TimingConfig) Clone() *TimingConfig {
	return &TimingConfig{
		DRAMReadLatency:  c.DRAMReadLatency,
		DRAMWriteLatency: c.DRAMWriteLatency,
		L1ReadLatency:    c.L1ReadLatency,
		L1WriteLatency:   c.L1WriteLatency,
		L2ReadLatency:    c.L2ReadLatency,
		L2WriteLatency:   c.L2WriteLatency,
	}
}
