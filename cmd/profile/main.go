// Package main provides a profiling wrapper for cachesim to identify
// performance bottlenecks of the simulator itself.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"
	"runtime/pprof"
	"sort"
	"time"

	"github.com/google/pprof/profile"

	"github.com/sarchlab/cachesim/benchmarks"
	"github.com/sarchlab/cachesim/timing/hierarchy"
	"github.com/sarchlab/cachesim/trace"
)

var (
	cpuProfile = flag.String("cpuprofile", "", "write cpu profile to file")
	memProfile = flag.String("memprofile", "", "write memory profile to file")
	duration   = flag.Duration("duration", 30*time.Second, "max duration to run (for profiling)")
	repeat     = flag.Int("repeat", 1000, "number of times the access stream is replayed")
	top        = flag.Int("top", 10, "number of hottest functions to print")
)

func main() {
	flag.Parse()

	ops, config, name := loadOps()

	h, err := hierarchy.New(config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating hierarchy: %v\n", err)
		os.Exit(1)
	}

	// Profile into memory so the hottest functions can be printed, and copy
	// to a file if requested
	var cpuBuf bytes.Buffer
	if err := pprof.StartCPUProfile(&cpuBuf); err != nil {
		fmt.Fprintf(os.Stderr, "Error starting CPU profile: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Replaying: %s (%d accesses x %d)\n", name, len(ops), *repeat)

	// Set timeout
	go func() {
		time.Sleep(*duration)
		fmt.Printf("\nTimeout reached after %v - stopping execution\n", *duration)
		os.Exit(2)
	}()

	start := time.Now()
	accesses := 0
	for i := 0; i < *repeat; i++ {
		summary, err := trace.Replay(h, ops, config.WordSize, nil)
		accesses += summary.Ops
		if err != nil {
			pprof.StopCPUProfile()
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
	elapsed := time.Since(start)

	pprof.StopCPUProfile()

	if *cpuProfile != "" {
		if err := os.WriteFile(*cpuProfile, cpuBuf.Bytes(), 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing CPU profile: %v\n", err)
		}
	}

	// Write memory profile if requested
	if *memProfile != "" {
		f, err := os.Create(*memProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating memory profile: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = f.Close() }()

		if err := pprof.WriteHeapProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing memory profile: %v\n", err)
		}
	}

	fmt.Printf("\nProfiling Results:\n")
	fmt.Printf("Accesses replayed: %d\n", accesses)
	fmt.Printf("Simulated cycles: %d\n", h.Time())
	fmt.Printf("Elapsed time: %v\n", elapsed)
	if accesses > 0 {
		fmt.Printf("Accesses/second: %.0f\n", float64(accesses)/elapsed.Seconds())
	}

	printHottest(cpuBuf.Bytes(), *top)
}

// loadOps reads the trace named on the command line, or falls back to the
// full set of microbenchmark patterns.
func loadOps() ([]trace.Op, *hierarchy.Config, string) {
	config := hierarchy.DefaultConfig()

	if flag.NArg() < 1 {
		var ops []trace.Op
		for _, b := range benchmarks.GetMicrobenchmarks() {
			if b.Config == nil {
				ops = append(ops, b.Ops...)
			}
		}
		return ops, config, "microbenchmarks"
	}

	path := flag.Arg(0)
	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening trace: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = f.Close() }()

	ops, err := trace.Parse(f, config.WordSize)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading trace: %v\n", err)
		os.Exit(1)
	}

	return ops, config, path
}

// printHottest lists the functions with the most flat CPU samples.
func printHottest(data []byte, n int) {
	prof, err := profile.ParseData(data)
	if err != nil || len(prof.Sample) == 0 {
		return
	}

	flat := make(map[string]int64)
	var total int64
	for _, s := range prof.Sample {
		if len(s.Location) == 0 || len(s.Location[0].Line) == 0 {
			continue
		}
		fn := s.Location[0].Line[0].Function
		if fn == nil {
			continue
		}
		flat[fn.Name] += s.Value[0]
		total += s.Value[0]
	}

	names := make([]string, 0, len(flat))
	for name := range flat {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return flat[names[i]] > flat[names[j]]
	})
	if len(names) > n {
		names = names[:n]
	}

	fmt.Printf("\nHottest functions (flat samples):\n")
	for _, name := range names {
		fmt.Printf("  %5.1f%%  %s\n", 100*float64(flat[name])/float64(total), name)
	}
}
