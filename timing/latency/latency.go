// Package latency provides the timing model of the memory hierarchy.
//
// Every operation a cache level or main memory performs has a fixed cost
// taken from a TimingConfig. A Clock accumulates those costs; there is no
// overlap or pipelining, so the clock is the running total of all costs
// charged since the last reset.
package latency

// Op identifies a timed operation.
type Op int

// Timed operations.
const (
	OpDRAMRead Op = iota
	OpDRAMWrite
	OpL1Read
	OpL1Write
	OpL2Read
	OpL2Write
)

var opNames = [...]string{
	OpDRAMRead:  "dram_read",
	OpDRAMWrite: "dram_write",
	OpL1Read:    "l1_read",
	OpL1Write:   "l1_write",
	OpL2Read:    "l2_read",
	OpL2Write:   "l2_write",
}

func (o Op) String() string {
	if o < 0 || int(o) >= len(opNames) {
		return "unknown"
	}
	return opNames[o]
}

// Table provides operation latency lookups.
type Table struct {
	config *TimingConfig
}

// NewTable creates a new latency table with the default timing values.
func NewTable() *Table {
	return &Table{
		config: DefaultTimingConfig(),
	}
}

// NewTableWithConfig creates a new latency table with custom timing
// configuration.
func NewTableWithConfig(config *TimingConfig) *Table {
	return &Table{
		config: config,
	}
}

// GetLatency returns the cost in cycles of the given operation.
func (t *Table) GetLatency(op Op) uint64 {
	switch op {
	case OpDRAMRead:
		return t.config.DRAMReadLatency
	case OpDRAMWrite:
		return t.config.DRAMWriteLatency
	case OpL1Read:
		return t.config.L1ReadLatency
	case OpL1Write:
		return t.config.L1WriteLatency
	case OpL2Read:
		return t.config.L2ReadLatency
	case OpL2Write:
		return t.config.L2WriteLatency
	default:
		return 0
	}
}

// Config returns the current timing configuration.
func (t *Table) Config() *TimingConfig {
	return t.config
}

// Clock is the logical time of one simulation. It only moves forward, except
// through Reset.
type Clock struct {
	table *Table
	now   uint64
}

// NewClock creates a clock at time 0 that charges costs from table.
func NewClock(table *Table) *Clock {
	return &Clock{table: table}
}

// Charge advances the clock by the cost of op and returns the new time.
func (c *Clock) Charge(op Op) uint64 {
	c.now += c.table.GetLatency(op)
	return c.now
}

// Now returns the current time.
func (c *Clock) Now() uint64 {
	return c.now
}

// Reset sets the clock back to 0.
func (c *Clock) Reset() {
	c.now = 0
}

// Table returns the latency table the clock charges from.
func (c *Clock) Table() *Table {
	return c.table
}
