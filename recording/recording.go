// Package recording stores the accesses of a simulation run so they can be
// analyzed after the run.
package recording

import (
	"github.com/fatih/structs"

	"github.com/sarchlab/cachesim/timing/hierarchy"
)

// Access is one recorded access. Field names are the column names.
type Access struct {
	RunID     string
	Seq       uint64
	Address   uint32
	Write     bool
	L1Hit     bool
	L2Hit     bool
	Evicted   bool
	WroteBack bool
	Cycles    uint64
	Time      uint64
}

// Recorder is an access observer that persists what it sees.
type Recorder interface {
	hierarchy.Observer

	// RunID identifies the run the accesses belong to.
	RunID() string

	// Flush writes every buffered access.
	Flush() error

	// Close flushes and releases the underlying storage.
	Close() error
}

func newAccess(runID string, seq uint64, r hierarchy.Result) Access {
	return Access{
		RunID:     runID,
		Seq:       seq,
		Address:   r.Address,
		Write:     r.Write,
		L1Hit:     r.L1Hit,
		L2Hit:     r.L2Hit,
		Evicted:   r.Evicted,
		WroteBack: r.WroteBack,
		Cycles:    r.Cycles,
		Time:      r.Time,
	}
}

func columnNames() []string {
	return structs.Names(Access{})
}

func (a Access) values() []any {
	return structs.Values(a)
}
