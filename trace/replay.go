package trace

import (
	"fmt"
	"log"

	"github.com/sarchlab/cachesim/timing/hierarchy"
)

// Accessor is the word-level interface a trace is replayed against.
type Accessor interface {
	Read(addr uint32, word []byte) (hierarchy.Result, error)
	Write(addr uint32, word []byte) (hierarchy.Result, error)
}

// Summary totals a replay.
type Summary struct {
	Ops    int    `json:"ops"`
	Reads  int    `json:"reads"`
	Writes int    `json:"writes"`
	L1Hits int    `json:"l1_hits"`
	L2Hits int    `json:"l2_hits"`
	Cycles uint64 `json:"cycles"`
}

// ReplayFunc is called after each replayed op. For reads, data holds the
// word that was read.
type ReplayFunc func(op Op, result hierarchy.Result, data []byte)

// Replay runs ops in order against a, calling fn after each one if fn is not
// nil. It stops at the first failing op.
func Replay(a Accessor, ops []Op, wordSize int, fn ReplayFunc) (Summary, error) {
	var summary Summary
	buf := make([]byte, wordSize)

	for i, op := range ops {
		var (
			result hierarchy.Result
			err    error
			data   []byte
		)

		if op.Write {
			result, err = a.Write(op.Addr, op.Data)
			summary.Writes++
		} else {
			result, err = a.Read(op.Addr, buf)
			data = buf
			summary.Reads++
		}
		if err != nil {
			return summary, fmt.Errorf("op %d (%s): %w", i, op, err)
		}

		summary.Ops++
		summary.Cycles += result.Cycles
		if result.L1Hit {
			summary.L1Hits++
		}
		if result.L2Hit {
			summary.L2Hits++
		}

		if fn != nil {
			fn(op, result, data)
		}
	}

	return summary, nil
}

// LogObserver prints one line per access to a logger.
type LogObserver struct {
	logger *log.Logger
}

// NewLogObserver creates an observer that writes to logger.
func NewLogObserver(logger *log.Logger) *LogObserver {
	return &LogObserver{logger: logger}
}

// ObserveAccess logs the access.
func (o *LogObserver) ObserveAccess(r hierarchy.Result) {
	mode := "R"
	if r.Write {
		mode = "W"
	}

	o.logger.Printf("%d, %s, 0x%08x, l1=%s, l2=%s, cycles=%d\n",
		r.Time, mode, r.Address, hitOrMiss(r.L1Hit), l2Outcome(r), r.Cycles)
}

func hitOrMiss(hit bool) string {
	if hit {
		return "hit"
	}
	return "miss"
}

func l2Outcome(r hierarchy.Result) string {
	if r.L1Hit {
		return "-"
	}
	return hitOrMiss(r.L2Hit)
}
