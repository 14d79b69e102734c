// Package dram models main memory: a flat, fixed-capacity byte array that
// serves whole-block transfers at a fixed cost per transfer.
package dram

import (
	"errors"
	"fmt"

	"github.com/sarchlab/akita/v4/mem/mem"

	"github.com/sarchlab/cachesim/timing/latency"
)

// ErrAddressOutOfRange is returned when a transfer touches a byte beyond the
// memory capacity. It is the only failure of the access path.
var ErrAddressOutOfRange = errors.New("address out of range")

// Config holds main memory geometry.
type Config struct {
	// Capacity in bytes
	Capacity uint64
	// BlockSize is the size of every transfer, in bytes
	BlockSize uint64
	// WordSize is the smallest unit a caller may request, in bytes
	WordSize uint64
}

// Statistics counts the block transfers main memory served.
type Statistics struct {
	Reads  uint64
	Writes uint64
}

// DRAM is the backing store at the bottom of the hierarchy.
type DRAM struct {
	config  Config
	storage *mem.Storage
	clock   *latency.Clock
	stats   Statistics
}

// New creates main memory with the given geometry. Every timed transfer is
// charged to clock.
func New(config Config, clock *latency.Clock) *DRAM {
	return &DRAM{
		config:  config,
		storage: mem.NewStorage(config.Capacity),
		clock:   clock,
	}
}

// Config returns the memory configuration.
func (d *DRAM) Config() Config {
	return d.config
}

// Capacity returns the number of addressable bytes.
func (d *DRAM) Capacity() uint64 {
	return d.config.Capacity
}

// Stats returns transfer statistics.
func (d *DRAM) Stats() Statistics {
	return d.stats
}

// ResetStats clears transfer statistics.
func (d *DRAM) ResetStats() {
	d.stats = Statistics{}
}

// Validate checks that the word starting at addr lies inside the memory.
func (d *DRAM) Validate(addr uint64) error {
	if addr+d.config.WordSize-1 >= d.config.Capacity ||
		addr+d.config.WordSize-1 < addr {
		return fmt.Errorf("%w: 0x%x (capacity 0x%x)",
			ErrAddressOutOfRange, addr, d.config.Capacity)
	}
	return nil
}

func (d *DRAM) validateRange(addr uint64, size int) error {
	end := addr + uint64(size)
	if end > d.config.Capacity || end < addr {
		return fmt.Errorf("%w: block 0x%x+%d (capacity 0x%x)",
			ErrAddressOutOfRange, addr, size, d.config.Capacity)
	}

	return nil
}

// ReadBlock copies len(dst) bytes starting at addr into dst.
func (d *DRAM) ReadBlock(addr uint64, dst []byte) error {
	if err := d.Validate(addr); err != nil {
		return err
	}
	if err := d.validateRange(addr, len(dst)); err != nil {
		return err
	}

	data, err := d.storage.Read(addr, uint64(len(dst)))
	if err != nil {
		return fmt.Errorf("dram read at 0x%x: %w", addr, err)
	}

	copy(dst, data)
	d.stats.Reads++
	d.clock.Charge(latency.OpDRAMRead)

	return nil
}

// WriteBlock copies src into memory starting at addr.
func (d *DRAM) WriteBlock(addr uint64, src []byte) error {
	if err := d.Validate(addr); err != nil {
		return err
	}
	if err := d.validateRange(addr, len(src)); err != nil {
		return err
	}

	if err := d.storage.Write(addr, src); err != nil {
		return fmt.Errorf("dram write at 0x%x: %w", addr, err)
	}

	d.stats.Writes++
	d.clock.Charge(latency.OpDRAMWrite)

	return nil
}

// Load writes data into memory without charging time or counting a
// transfer. It is used to prepare memory contents before a run.
func (d *DRAM) Load(addr uint64, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if err := d.validateRange(addr, len(data)); err != nil {
		return err
	}

	return d.storage.Write(addr, data)
}

// Peek reads n bytes without charging time or counting a transfer.
func (d *DRAM) Peek(addr uint64, n int) ([]byte, error) {
	if n == 0 {
		return []byte{}, nil
	}
	if err := d.validateRange(addr, n); err != nil {
		return nil, err
	}

	return d.storage.Read(addr, uint64(n))
}
