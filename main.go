// Package main provides the entry point for cachesim.
// cachesim is a cycle-counting simulator of a two-level write-back cache
// hierarchy built on Akita cache components.
//
// For the full CLI, use: go run ./cmd/cachesim
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("cachesim - Two-Level Cache Hierarchy Simulator")
	fmt.Println("Built on Akita cache components")
	fmt.Println("")
	fmt.Println("Usage: cachesim run [options] <trace>")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  --config   Path to hierarchy configuration JSON file")
	fmt.Println("  --preset   default, direct-l2 or single")
	fmt.Println("  --record   Record every access to SQLite or CSV")
	fmt.Println("  --monitor  Serve the simulation state over HTTP")
	fmt.Println("  -v         Verbose output")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/cachesim' for the full CLI.")
	fmt.Println("Run 'go run ./cmd/benchmark' for the timing benchmarks.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/cachesim' instead.")
	}
}
