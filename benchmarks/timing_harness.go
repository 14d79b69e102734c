// Package benchmarks provides timing benchmark infrastructure for cache
// hierarchy calibration.
package benchmarks

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sarchlab/cachesim/timing/hierarchy"
	"github.com/sarchlab/cachesim/trace"
)

// BenchmarkResult holds the timing results for a single benchmark run.
type BenchmarkResult struct {
	// Name identifies the benchmark
	Name string `json:"name"`

	// Description explains what the benchmark measures
	Description string `json:"description"`

	// SimulatedCycles is the clock value after the last access
	SimulatedCycles uint64 `json:"simulated_cycles"`

	// ExpectedCycles is the analytically derived cycle count, 0 if unknown
	ExpectedCycles uint64 `json:"expected_cycles,omitempty"`

	// Accesses is the number of word accesses replayed
	Accesses int `json:"accesses"`

	// CyclesPerAccess is the average access cost
	CyclesPerAccess float64 `json:"cycles_per_access"`

	// L1Hits/Misses
	L1Hits   uint64 `json:"l1_hits"`
	L1Misses uint64 `json:"l1_misses"`

	// L2Hits/Misses (if the hierarchy has an L2)
	L2Hits   uint64 `json:"l2_hits,omitempty"`
	L2Misses uint64 `json:"l2_misses,omitempty"`

	// MemoryReads/Writes count block transfers to and from main memory
	MemoryReads  uint64 `json:"memory_reads"`
	MemoryWrites uint64 `json:"memory_writes"`

	// WallTime is the actual time taken to run the simulation
	WallTime time.Duration `json:"wall_time_ns"`
}

// Benchmark defines a single access pattern.
type Benchmark struct {
	// Name identifies the benchmark
	Name string

	// Description explains what the benchmark measures
	Description string

	// Config overrides the harness hierarchy configuration if not nil
	Config func() *hierarchy.Config

	// Setup prepares memory contents before the timed run
	Setup func(h *hierarchy.Hierarchy) error

	// Ops is the access stream
	Ops []trace.Op

	// ExpectedCycles is the cycle count derived by hand for the default
	// costs, 0 if not derived
	ExpectedCycles uint64
}

// HarnessConfig configures the benchmark harness.
type HarnessConfig struct {
	// Hierarchy is the memory system every benchmark runs on unless the
	// benchmark brings its own
	Hierarchy *hierarchy.Config

	// Output is where to write results (default: os.Stdout)
	Output io.Writer

	// Verbose logs every access
	Verbose bool
}

// DefaultConfig returns a default harness configuration.
func DefaultConfig() HarnessConfig {
	return HarnessConfig{
		Hierarchy: hierarchy.DefaultConfig(),
		Output:    os.Stdout,
		Verbose:   false,
	}
}

// Harness runs timing benchmarks and reports results.
type Harness struct {
	config     HarnessConfig
	benchmarks []Benchmark
}

// NewHarness creates a new benchmark harness.
func NewHarness(config HarnessConfig) *Harness {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	if config.Hierarchy == nil {
		config.Hierarchy = hierarchy.DefaultConfig()
	}
	return &Harness{
		config:     config,
		benchmarks: []Benchmark{},
	}
}

// AddBenchmark adds a benchmark to the harness.
func (h *Harness) AddBenchmark(b Benchmark) {
	h.benchmarks = append(h.benchmarks, b)
}

// AddBenchmarks adds multiple benchmarks to the harness.
func (h *Harness) AddBenchmarks(benchmarks []Benchmark) {
	h.benchmarks = append(h.benchmarks, benchmarks...)
}

// RunAll executes all benchmarks and returns results. It stops at the first
// benchmark that fails.
func (h *Harness) RunAll() ([]BenchmarkResult, error) {
	results := make([]BenchmarkResult, 0, len(h.benchmarks))

	for _, bench := range h.benchmarks {
		result, err := h.runBenchmark(bench)
		if err != nil {
			return results, fmt.Errorf("benchmark %s: %w", bench.Name, err)
		}
		results = append(results, result)
	}

	return results, nil
}

// runBenchmark executes a single benchmark on a fresh hierarchy.
func (h *Harness) runBenchmark(bench Benchmark) (BenchmarkResult, error) {
	config := h.config.Hierarchy
	if bench.Config != nil {
		config = bench.Config()
	}

	sim, err := hierarchy.New(config)
	if err != nil {
		return BenchmarkResult{}, err
	}

	if bench.Setup != nil {
		if err := bench.Setup(sim); err != nil {
			return BenchmarkResult{}, fmt.Errorf("setup: %w", err)
		}
	}

	var fn trace.ReplayFunc
	if h.config.Verbose {
		fn = func(op trace.Op, r hierarchy.Result, _ []byte) {
			_, _ = fmt.Fprintf(h.config.Output, "  %-24s cycles=%d l1_hit=%v l2_hit=%v\n",
				op.String(), r.Cycles, r.L1Hit, r.L2Hit)
		}
	}

	start := time.Now()
	summary, err := trace.Replay(sim, bench.Ops, config.WordSize, fn)
	wallTime := time.Since(start)
	if err != nil {
		return BenchmarkResult{}, err
	}

	stats := sim.Stats()
	result := BenchmarkResult{
		Name:            bench.Name,
		Description:     bench.Description,
		SimulatedCycles: sim.Time(),
		ExpectedCycles:  bench.ExpectedCycles,
		Accesses:        summary.Ops,
		L1Hits:          stats.L1.Hits,
		L1Misses:        stats.L1.Misses,
		MemoryReads:     stats.Memory.Reads,
		MemoryWrites:    stats.Memory.Writes,
		WallTime:        wallTime,
	}
	if summary.Ops > 0 {
		result.CyclesPerAccess = float64(result.SimulatedCycles) / float64(summary.Ops)
	}
	if stats.L2 != nil {
		result.L2Hits = stats.L2.Hits
		result.L2Misses = stats.L2.Misses
	}

	return result, nil
}

// PrintResults outputs benchmark results in a human-readable format.
func (h *Harness) PrintResults(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output, "=== Cache Hierarchy Timing Benchmark Results ===")
	_, _ = fmt.Fprintln(h.config.Output, "")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "Benchmark: %s\n", r.Name)
		_, _ = fmt.Fprintf(h.config.Output, "  Description: %s\n", r.Description)
		_, _ = fmt.Fprintln(h.config.Output, "  --- Timing ---")
		_, _ = fmt.Fprintf(h.config.Output, "  Simulated Cycles:  %d\n", r.SimulatedCycles)
		if r.ExpectedCycles > 0 {
			_, _ = fmt.Fprintf(h.config.Output, "  Expected Cycles:   %d\n", r.ExpectedCycles)
		}
		_, _ = fmt.Fprintf(h.config.Output, "  Accesses:          %d\n", r.Accesses)
		_, _ = fmt.Fprintf(h.config.Output, "  Cycles/Access:     %.3f\n", r.CyclesPerAccess)

		_, _ = fmt.Fprintln(h.config.Output, "  --- L1 ---")
		_, _ = fmt.Fprintf(h.config.Output, "  Hits:   %d\n", r.L1Hits)
		_, _ = fmt.Fprintf(h.config.Output, "  Misses: %d\n", r.L1Misses)

		if r.L2Hits > 0 || r.L2Misses > 0 {
			_, _ = fmt.Fprintln(h.config.Output, "  --- L2 ---")
			_, _ = fmt.Fprintf(h.config.Output, "  Hits:   %d\n", r.L2Hits)
			_, _ = fmt.Fprintf(h.config.Output, "  Misses: %d\n", r.L2Misses)
		}

		_, _ = fmt.Fprintln(h.config.Output, "  --- Memory ---")
		_, _ = fmt.Fprintf(h.config.Output, "  Block Reads:  %d\n", r.MemoryReads)
		_, _ = fmt.Fprintf(h.config.Output, "  Block Writes: %d\n", r.MemoryWrites)

		_, _ = fmt.Fprintf(h.config.Output, "  Wall Time: %v\n", r.WallTime)
		_, _ = fmt.Fprintln(h.config.Output, "")
	}
}

// PrintCSV outputs benchmark results in CSV format for easy comparison.
func (h *Harness) PrintCSV(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output,
		"name,cycles,expected_cycles,accesses,cycles_per_access,l1_hits,l1_misses,l2_hits,l2_misses,memory_reads,memory_writes")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "%s,%d,%d,%d,%.3f,%d,%d,%d,%d,%d,%d\n",
			r.Name,
			r.SimulatedCycles,
			r.ExpectedCycles,
			r.Accesses,
			r.CyclesPerAccess,
			r.L1Hits,
			r.L1Misses,
			r.L2Hits,
			r.L2Misses,
			r.MemoryReads,
			r.MemoryWrites,
		)
	}
}

// BenchmarkReport is the complete output format for benchmark results.
type BenchmarkReport struct {
	// Metadata about the benchmark run
	Metadata ReportMetadata `json:"metadata"`

	// Results is the list of individual benchmark results
	Results []BenchmarkResult `json:"results"`

	// Summary contains aggregate statistics
	Summary ReportSummary `json:"summary"`
}

// ReportMetadata contains information about the benchmark run.
type ReportMetadata struct {
	// Timestamp when the benchmark was run
	Timestamp string `json:"timestamp"`

	// Version of the simulator
	Version string `json:"version"`

	// Config is the hierarchy configuration of the harness
	Config *hierarchy.Config `json:"config"`
}

// ReportSummary contains aggregate statistics across all benchmarks.
type ReportSummary struct {
	// TotalBenchmarks is the number of benchmarks run
	TotalBenchmarks int `json:"total_benchmarks"`

	// TotalCycles is the sum of all simulated cycles
	TotalCycles uint64 `json:"total_cycles"`

	// TotalAccesses is the sum of all replayed accesses
	TotalAccesses int `json:"total_accesses"`

	// Mismatches counts benchmarks whose cycles differ from the expected
	// value
	Mismatches int `json:"mismatches"`

	// TotalWallTime is the total wall clock time for all benchmarks
	TotalWallTime time.Duration `json:"total_wall_time_ns"`
}

// Version is reported in benchmark metadata.
const Version = "0.1.0"

// PrintJSON outputs benchmark results in JSON format for automated comparison.
func (h *Harness) PrintJSON(results []BenchmarkResult) error {
	summary := ReportSummary{TotalBenchmarks: len(results)}
	for _, r := range results {
		summary.TotalCycles += r.SimulatedCycles
		summary.TotalAccesses += r.Accesses
		summary.TotalWallTime += r.WallTime
		if r.ExpectedCycles > 0 && r.ExpectedCycles != r.SimulatedCycles {
			summary.Mismatches++
		}
	}

	report := BenchmarkReport{
		Metadata: ReportMetadata{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   Version,
			Config:    h.config.Hierarchy,
		},
		Results: results,
		Summary: summary,
	}

	encoder := json.NewEncoder(h.config.Output)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}
