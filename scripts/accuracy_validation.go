// Package main provides accuracy validation for the cache hierarchy.
// Random access streams are replayed against every hierarchy shape and
// checked against a flat memory that has no caches at all.
package main

import (
	"bytes"
	"fmt"
	"math/rand"
	"os"

	"github.com/sarchlab/cachesim/timing/hierarchy"
)

const (
	seed       = 42
	numOps     = 20000
	memorySize = 16 * 1024
)

func presets() map[string]*hierarchy.Config {
	shapes := map[string]*hierarchy.Config{
		"two-level 2-way L2":       hierarchy.DefaultConfig(),
		"two-level direct L2":      hierarchy.DirectMappedL2Config(),
		"single-level":             hierarchy.SingleLevelConfig(),
		"small two-level 4-way L2": hierarchy.DefaultConfig(),
	}

	small := shapes["small two-level 4-way L2"]
	small.L1Size = 8 * small.BlockSize
	small.L2Size = 32 * small.BlockSize
	small.L2Associativity = 4

	for _, c := range shapes {
		c.MemorySize = memorySize
		if c.L1Size > memorySize {
			c.L1Size = memorySize / 4
		}
		if c.L2Size > memorySize {
			c.L2Size = memorySize / 2
		}
	}

	return shapes
}

// testReadYourWrites checks every read against the last value written.
func testReadYourWrites(name string, config *hierarchy.Config) bool {
	fmt.Printf("\nTesting %s...\n", name)

	h, err := hierarchy.New(config)
	if err != nil {
		fmt.Printf("❌ Cannot build hierarchy: %v\n", err)
		return false
	}

	rng := rand.New(rand.NewSource(seed))
	shadow := make([]byte, memorySize)
	word := make([]byte, config.WordSize)
	words := memorySize / config.WordSize
	lastTime := uint64(0)

	for i := 0; i < numOps; i++ {
		addr := uint32(rng.Intn(words) * config.WordSize)

		if rng.Intn(2) == 0 {
			rng.Read(word)
			if _, err := h.Write(addr, word); err != nil {
				fmt.Printf("❌ Op %d: write 0x%x failed: %v\n", i, addr, err)
				return false
			}
			copy(shadow[addr:], word)
		} else {
			if _, err := h.Read(addr, word); err != nil {
				fmt.Printf("❌ Op %d: read 0x%x failed: %v\n", i, addr, err)
				return false
			}
			want := shadow[addr : addr+uint32(config.WordSize)]
			if !bytes.Equal(word, want) {
				fmt.Printf("❌ Op %d: read 0x%x got %x, want %x\n", i, addr, word, want)
				return false
			}
		}

		now := h.Time()
		if now < lastTime {
			fmt.Printf("❌ Op %d: clock went back from %d to %d\n", i, lastTime, now)
			return false
		}
		lastTime = now
	}
	fmt.Printf("✅ %d random accesses matched the flat memory\n", numOps)

	if err := h.Flush(); err != nil {
		fmt.Printf("❌ Flush failed: %v\n", err)
		return false
	}
	mem, err := h.PeekMemory(0, memorySize)
	if err != nil || !bytes.Equal(mem, shadow) {
		fmt.Println("❌ Memory differs from the flat memory after Flush")
		return false
	}
	fmt.Println("✅ Flush wrote every dirty line back")

	stats := h.Stats()
	fmt.Printf("   L1 hit rate: %.1f%%, memory transfers: %d reads, %d writes, %d cycles\n",
		100*float64(stats.L1.Hits)/float64(stats.L1.Reads+stats.L1.Writes),
		stats.Memory.Reads, stats.Memory.Writes, h.Time())

	return true
}

// testResetBehavior checks that InitCache forgets every line.
func testResetBehavior() bool {
	fmt.Println("\nTesting reset behavior...")

	config := hierarchy.DefaultConfig()
	h, err := hierarchy.New(config)
	if err != nil {
		fmt.Printf("❌ Cannot build hierarchy: %v\n", err)
		return false
	}

	word := make([]byte, config.WordSize)
	_, _ = h.Read(0, word)
	h.InitCache()
	h.ResetTime()

	result, err := h.Read(0, word)
	if err != nil || result.L1Hit || result.L2Hit {
		fmt.Println("❌ Read after InitCache hit a stale line")
		return false
	}

	want := config.Timing.L1ReadLatency + config.Timing.L2ReadLatency +
		config.Timing.DRAMReadLatency
	if result.Cycles != want {
		fmt.Printf("❌ Cold read after reset cost %d cycles, want %d\n", result.Cycles, want)
		return false
	}

	fmt.Println("✅ InitCache and ResetTime restore the cold state")
	return true
}

func main() {
	fmt.Println("Cache Hierarchy Accuracy Validation")
	fmt.Println("===================================")

	allPassed := true

	for name, config := range presets() {
		if !testReadYourWrites(name, config) {
			allPassed = false
		}
	}

	if !testResetBehavior() {
		allPassed = false
	}

	fmt.Println("\n===================================")
	if allPassed {
		fmt.Println("🎉 ALL ACCURACY TESTS PASSED")
		os.Exit(0)
	} else {
		fmt.Println("❌ ACCURACY TESTS FAILED")
		os.Exit(1)
	}
}
