// Package hierarchy assembles main memory, the cache levels and the clock
// into one simulation instance and exposes the word-level access interface.
//
// A Hierarchy owns all of its state, so independent simulations can run side
// by side. Accesses on one instance are serialized: each access, including
// the whole cascade of misses and write-backs it triggers, completes before
// the next one starts.
package hierarchy

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sarchlab/cachesim/timing/cache"
	"github.com/sarchlab/cachesim/timing/dram"
	"github.com/sarchlab/cachesim/timing/latency"
)

// ErrWordSize is returned when the buffer passed to Read or Write is not
// exactly one word long.
var ErrWordSize = errors.New("buffer is not one word long")

// Result describes one completed access.
type Result struct {
	// Address is the byte address that was accessed.
	Address uint32 `json:"address"`
	// Write is true for writes.
	Write bool `json:"write"`
	// L1Hit is true if L1 held the block.
	L1Hit bool `json:"l1_hit"`
	// L2Hit is true if L1 missed and L2 held the block.
	L2Hit bool `json:"l2_hit"`
	// Evicted is true if L1 replaced a valid line.
	Evicted bool `json:"evicted"`
	// WroteBack is true if the replaced L1 line was dirty.
	WroteBack bool `json:"wrote_back"`
	// Cycles is the cost of the access.
	Cycles uint64 `json:"cycles"`
	// Time is the clock value once the access completed.
	Time uint64 `json:"time"`
}

// Observer is notified after every successful access.
type Observer interface {
	ObserveAccess(result Result)
}

// Stats collects the statistics of every level.
type Stats struct {
	L1     cache.Statistics  `json:"l1"`
	L2     *cache.Statistics `json:"l2,omitempty"`
	Memory dram.Statistics   `json:"memory"`
}

// Hierarchy is one simulated memory system.
type Hierarchy struct {
	mu sync.Mutex

	config *Config
	clock  *latency.Clock
	memory *dram.DRAM
	l1     *cache.Cache
	l2     *cache.Cache
	probe  *levelProbe

	observers []Observer
}

// New validates config and builds a hierarchy with every line invalid and
// the clock at 0.
func New(config *Config) (*Hierarchy, error) {
	if config == nil {
		return nil, fmt.Errorf("hierarchy config must not be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid hierarchy config: %w", err)
	}

	config = config.Clone()
	clock := latency.NewClock(latency.NewTableWithConfig(config.Timing))
	memory := dram.New(dram.Config{
		Capacity:  uint64(config.MemorySize),
		BlockSize: uint64(config.BlockSize),
		WordSize:  uint64(config.WordSize),
	}, clock)

	h := &Hierarchy{
		config: config,
		clock:  clock,
		memory: memory,
	}

	var l1Backing cache.BackingStore = cache.NewMemoryBacking(memory)
	if config.HasL2() {
		h.l2 = cache.New(config.L2Config(), l1Backing, clock)
		h.probe = &levelProbe{level: h.l2}
		l1Backing = h.probe
	}
	h.l1 = cache.New(config.L1Config(), l1Backing, clock)

	return h, nil
}

// Config returns a copy of the hierarchy configuration.
func (h *Hierarchy) Config() *Config {
	return h.config.Clone()
}

// AddObserver registers an observer for every later access.
func (h *Hierarchy) AddObserver(o Observer) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.observers = append(h.observers, o)
}

// InitCache resets every line of every level to invalid, clean, tag 0 and
// zeroed data. Dirty data is dropped. Statistics are cleared.
func (h *Hierarchy) InitCache() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.l1.Reset()
	if h.l2 != nil {
		h.l2.Reset()
	}
	h.memory.ResetStats()
}

// ResetTime sets the clock back to 0.
func (h *Hierarchy) ResetTime() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clock.Reset()
}

// Time returns the current clock value.
func (h *Hierarchy) Time() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.clock.Now()
}

// Read copies the word at addr into word.
func (h *Hierarchy) Read(addr uint32, word []byte) (Result, error) {
	return h.access(addr, word, false)
}

// Write stores word at addr.
func (h *Hierarchy) Write(addr uint32, word []byte) (Result, error) {
	return h.access(addr, word, true)
}

func (h *Hierarchy) access(addr uint32, word []byte, write bool) (Result, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.validate(addr, word); err != nil {
		return Result{}, err
	}

	if h.probe != nil {
		h.probe.lastReadHit = false
	}

	var (
		res cache.AccessResult
		err error
	)
	if write {
		res, err = h.l1.Write(uint64(addr), word)
	} else {
		res, err = h.l1.Read(uint64(addr), word)
	}
	if err != nil {
		return Result{}, fmt.Errorf("access 0x%x: %w", addr, err)
	}

	result := Result{
		Address:   addr,
		Write:     write,
		L1Hit:     res.Hit,
		L2Hit:     !res.Hit && h.probe != nil && h.probe.lastReadHit,
		Evicted:   res.Evicted,
		WroteBack: res.WroteBack,
		Cycles:    res.Latency,
		Time:      h.clock.Now(),
	}

	for _, o := range h.observers {
		o.ObserveAccess(result)
	}

	return result, nil
}

// validate rejects a request before any state changes.
func (h *Hierarchy) validate(addr uint32, word []byte) error {
	if len(word) != h.config.WordSize {
		return fmt.Errorf("%w: got %d bytes, want %d",
			ErrWordSize, len(word), h.config.WordSize)
	}

	if err := h.memory.Validate(uint64(addr)); err != nil {
		return err
	}

	offset := int(addr) % h.config.BlockSize
	if offset+h.config.WordSize > h.config.BlockSize {
		return fmt.Errorf("%w: 0x%x", cache.ErrUnalignedAccess, addr)
	}

	return nil
}

// Flush writes every dirty line down to main memory, L1 first, and
// invalidates all lines. The write-backs are charged to the clock.
func (h *Hierarchy) Flush() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.l1.Flush(); err != nil {
		return fmt.Errorf("flush L1: %w", err)
	}
	if h.l2 != nil {
		if err := h.l2.Flush(); err != nil {
			return fmt.Errorf("flush L2: %w", err)
		}
	}
	return nil
}

// LoadMemory writes data straight into main memory without going through
// the caches or charging time.
func (h *Hierarchy) LoadMemory(addr uint32, data []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.memory.Load(uint64(addr), data)
}

// PeekMemory reads n bytes straight from main memory without going through
// the caches or charging time.
func (h *Hierarchy) PeekMemory(addr uint32, n int) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.memory.Peek(uint64(addr), n)
}

// Stats returns the statistics of every level.
func (h *Hierarchy) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()

	stats := Stats{
		L1:     h.l1.Stats(),
		Memory: h.memory.Stats(),
	}
	if h.l2 != nil {
		l2 := h.l2.Stats()
		stats.L2 = &l2
	}
	return stats
}

// ResetStats clears the statistics of every level.
func (h *Hierarchy) ResetStats() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.l1.ResetStats()
	if h.l2 != nil {
		h.l2.ResetStats()
	}
	h.memory.ResetStats()
}

// LevelState is a snapshot of one cache level.
type LevelState struct {
	Name          string           `json:"name"`
	NumSets       int              `json:"num_sets"`
	Associativity int              `json:"associativity"`
	BlockSize     int              `json:"block_size"`
	Stats         cache.Statistics `json:"stats"`
	Lines         [][]cache.Line   `json:"lines"`
}

// LevelNames lists the cache levels, closest to the program first.
func (h *Hierarchy) LevelNames() []string {
	if h.l2 != nil {
		return []string{"L1", "L2"}
	}
	return []string{"L1"}
}

// Level returns a snapshot of the named level.
func (h *Hierarchy) Level(name string) (LevelState, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var c *cache.Cache
	switch name {
	case "L1":
		c = h.l1
	case "L2":
		c = h.l2
	}
	if c == nil {
		return LevelState{}, false
	}

	return LevelState{
		Name:          name,
		NumSets:       c.NumSets(),
		Associativity: c.Associativity(),
		BlockSize:     c.Config().BlockSize,
		Stats:         c.Stats(),
		Lines:         c.Lines(),
	}, true
}

// levelProbe sits between L1 and L2 and remembers whether the last block
// fetch hit in L2.
type levelProbe struct {
	level       *cache.Cache
	lastReadHit bool
}

func (p *levelProbe) ReadBlock(block uint64, dst []byte) error {
	before := p.level.Stats().Hits
	if err := p.level.ReadBlock(block, dst); err != nil {
		return err
	}
	p.lastReadHit = p.level.Stats().Hits > before
	return nil
}

func (p *levelProbe) WriteBlock(block uint64, src []byte) error {
	return p.level.WriteBlock(block, src)
}
