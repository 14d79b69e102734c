package benchmarks

import (
	"github.com/sarchlab/cachesim/timing/hierarchy"
	"github.com/sarchlab/cachesim/trace"
)

// Strides of the default geometry. Addresses that differ by l1Span share an
// L1 line and an L2 set; addresses that differ by directL2Span also share a
// line of the direct-mapped L2.
const (
	blockSize    = 64
	l1Span       = 256 * blockSize
	directL2Span = 512 * blockSize
)

// GetMicrobenchmarks returns the standard set of access patterns. Each one
// targets a specific hierarchy behavior.
func GetMicrobenchmarks() []Benchmark {
	return []Benchmark{
		hitLoop(),
		coldSequential(),
		streamingReads(),
		l1ConflictPingPong(),
		l2SetThrash(),
		writeBackStorm(),
		singleLevelConflict(),
		directMappedL2Conflict(),
	}
}

// GetCoreBenchmarks returns a minimal set of patterns for quick validation:
// hit path, L2 hit path and full miss path.
func GetCoreBenchmarks() []Benchmark {
	return []Benchmark{
		hitLoop(),
		l1ConflictPingPong(),
		l2SetThrash(),
	}
}

func read(addr uint32) trace.Op {
	return trace.Op{Addr: addr}
}

func write(addr uint32, b byte) trace.Op {
	return trace.Op{Write: true, Addr: addr, Data: []byte{b, b, b, b}}
}

// 1. Hit Loop - one cold miss then L1 hits within the same block
func hitLoop() Benchmark {
	ops := []trace.Op{read(0)}
	for i := 0; i < 100; i++ {
		ops = append(ops, read(uint32(4*(i%16))))
	}

	return Benchmark{
		Name:           "hit_loop",
		Description:    "1 cold miss + 100 reads in the same block - measures the L1 hit cost",
		Ops:            ops,
		ExpectedCycles: (1 + 10 + 100) + 100*1,
	}
}

// 2. Cold Sequential - first word of consecutive blocks
func coldSequential() Benchmark {
	var ops []trace.Op
	for i := 0; i < 16; i++ {
		ops = append(ops, read(uint32(i*blockSize)))
	}

	return Benchmark{
		Name:           "cold_sequential",
		Description:    "16 reads of distinct blocks - measures the full miss cascade",
		Ops:            ops,
		ExpectedCycles: 16 * (1 + 10 + 100),
	}
}

// 3. Streaming Reads - every word of consecutive blocks
func streamingReads() Benchmark {
	var ops []trace.Op
	for addr := 0; addr < 8*blockSize; addr += 4 {
		ops = append(ops, read(uint32(addr)))
	}

	return Benchmark{
		Name:           "streaming_reads",
		Description:    "every word of 8 blocks - measures spatial locality",
		Ops:            ops,
		ExpectedCycles: 8 * ((1 + 10 + 100) + 15*1),
	}
}

// 4. L1 Conflict Ping-Pong - two blocks sharing an L1 line, both kept by L2
func l1ConflictPingPong() Benchmark {
	var ops []trace.Op
	for i := 0; i < 20; i++ {
		ops = append(ops, read(uint32((i%2)*l1Span)))
	}

	return Benchmark{
		Name:           "l1_conflict_pingpong",
		Description:    "2 blocks alternating on one L1 line - measures the L2 hit path",
		Ops:            ops,
		ExpectedCycles: 2*(1+10+100) + 18*(10+1),
	}
}

// 5. L2 Set Thrash - three blocks cycling through a 2-way set
func l2SetThrash() Benchmark {
	var ops []trace.Op
	for i := 0; i < 30; i++ {
		ops = append(ops, read(uint32((i%3)*l1Span)))
	}

	return Benchmark{
		Name:           "l2_set_thrash",
		Description:    "3 blocks cycling through one 2-way L2 set - every access misses under LRU",
		Ops:            ops,
		ExpectedCycles: 30 * (1 + 10 + 100),
	}
}

// 6. Write-Back Storm - dirty blocks cycling through one set
func writeBackStorm() Benchmark {
	var ops []trace.Op
	for i := 0; i < 30; i++ {
		ops = append(ops, write(uint32((i%3)*l1Span), byte(i)))
	}

	return Benchmark{
		Name:        "write_back_storm",
		Description: "3 dirty blocks cycling through one L2 set - measures write-back traffic",
		Ops:         ops,
	}
}

// 7. Single-Level Conflict - L1 connected straight to memory
func singleLevelConflict() Benchmark {
	var ops []trace.Op
	for i := 0; i < 20; i++ {
		ops = append(ops, read(uint32((i%2)*l1Span)))
	}

	return Benchmark{
		Name:           "single_level_conflict",
		Description:    "l1_conflict_pingpong without an L2 - every access goes to memory",
		Config:         hierarchy.SingleLevelConfig,
		Ops:            ops,
		ExpectedCycles: 20 * (1 + 100),
	}
}

// 8. Direct-Mapped L2 Conflict - two blocks sharing a line of both levels
func directMappedL2Conflict() Benchmark {
	var ops []trace.Op
	for i := 0; i < 20; i++ {
		ops = append(ops, read(uint32((i%2)*directL2Span)))
	}

	return Benchmark{
		Name:           "direct_mapped_l2_conflict",
		Description:    "2 blocks alternating on one line of a direct-mapped L2 - every access misses",
		Config:         hierarchy.DirectMappedL2Config,
		Ops:            ops,
		ExpectedCycles: 20 * (1 + 10 + 100),
	}
}
