package hierarchy_test

import (
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/cachesim/timing/cache"
	"github.com/sarchlab/cachesim/timing/dram"
	"github.com/sarchlab/cachesim/timing/hierarchy"
)

// smallConfig is the two-level hierarchy with block size 64, an L1 of 4
// lines and a 2-way L2 of 4 sets.
func smallConfig() *hierarchy.Config {
	config := hierarchy.DefaultConfig()
	config.MemorySize = 4096
	config.L1Size = 4 * 64
	config.L2Size = 8 * 64
	config.L2Associativity = 2
	return config
}

type recorder struct {
	results []hierarchy.Result
}

func (r *recorder) ObserveAccess(result hierarchy.Result) {
	r.results = append(r.results, result)
}

var _ = Describe("Hierarchy", func() {
	var h *hierarchy.Hierarchy

	read := func(addr uint32) ([]byte, hierarchy.Result) {
		buf := make([]byte, 4)
		result, err := h.Read(addr, buf)
		Expect(err).NotTo(HaveOccurred())
		return buf, result
	}

	write := func(addr uint32, data []byte) hierarchy.Result {
		result, err := h.Write(addr, data)
		Expect(err).NotTo(HaveOccurred())
		return result
	}

	BeforeEach(func() {
		var err error
		h, err = hierarchy.New(smallConfig())
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("Hit stability", func() {
		It("should read back what was just written, whatever the prior state", func() {
			noise := []uint32{0, 256, 512, 768, 64, 320, 1024, 2048}

			for i, addr := range []uint32{0, 4, 60, 256, 1000, 2044, 4092} {
				read(noise[i%len(noise)])
				write(noise[(i+3)%len(noise)], []byte{9, 9, 9, 9})

				value := []byte{byte(i), byte(i + 1), byte(i + 2), byte(i + 3)}
				write(addr, value)

				data, _ := read(addr)
				Expect(data).To(Equal(value))
			}
		})
	})

	Describe("Concrete scenario", func() {
		It("should keep address 0 resident in L2 after an L1 conflict", func() {
			first := write(0, []byte{1, 2, 3, 4})
			Expect(first.L1Hit).To(BeFalse())
			Expect(first.L2Hit).To(BeFalse())
			Expect(first.Cycles).To(Equal(uint64(100 + 10 + 1)))

			second := write(256, []byte{5, 6, 7, 8})
			Expect(second.Evicted).To(BeTrue())
			Expect(second.WroteBack).To(BeTrue())
			Expect(second.Cycles).To(Equal(uint64(100 + 10 + 5 + 1)))

			data, third := read(0)
			Expect(data).To(Equal([]byte{1, 2, 3, 4}))
			Expect(third.L1Hit).To(BeFalse())
			Expect(third.L2Hit).To(BeTrue())
			Expect(third.Cycles).To(Equal(uint64(10 + 5 + 1)))

			data, _ = read(256)
			Expect(data).To(Equal([]byte{5, 6, 7, 8}))
		})
	})

	Describe("Capacity-driven eviction", func() {
		It("should overwrite the direct-mapped L1 line immediately", func() {
			read(0)
			read(256)

			state, ok := h.Level("L1")
			Expect(ok).To(BeTrue())
			Expect(state.Lines[0][0].Valid).To(BeTrue())
			Expect(state.Lines[0][0].Tag).To(Equal(uint64(1)))

			_, result := read(0)
			Expect(result.L1Hit).To(BeFalse())
		})

		It("should evict the least recently used L2 way", func() {
			// Blocks 0, 4 and 8 share L1 line 0 and L2 set 0
			read(0)
			read(256)
			read(0)

			_, result := read(512)
			Expect(result.L2Hit).To(BeFalse())

			_, result = read(0)
			Expect(result.L2Hit).To(BeTrue())

			_, result = read(256)
			Expect(result.L2Hit).To(BeFalse())
			Expect(result.Cycles).To(Equal(uint64(100 + 10 + 1)))
		})
	})

	Describe("Write-back correctness", func() {
		It("should carry a dirty value through L2 into memory and back", func() {
			write(0, []byte{0xA, 0xB, 0xC, 0xD})

			read(256)
			read(512)
			read(768)

			Expect(h.Stats().Memory.Writes).To(Equal(uint64(1)))

			mem, err := h.PeekMemory(0, 4)
			Expect(err).NotTo(HaveOccurred())
			Expect(mem).To(Equal([]byte{0xA, 0xB, 0xC, 0xD}))

			data, result := read(0)
			Expect(result.L2Hit).To(BeFalse())
			Expect(data).To(Equal([]byte{0xA, 0xB, 0xC, 0xD}))
		})
	})

	Describe("Timing", func() {
		It("should charge only L1 reads for a pure hit sequence", func() {
			read(128)
			h.ResetTime()

			const n = 10
			for i := 0; i < n; i++ {
				read(128)
			}
			Expect(h.Time()).To(Equal(uint64(n * 1)))
		})

		It("should charge a full cascade for cold reads of distinct blocks", func() {
			for _, addr := range []uint32{0, 64, 128, 192} {
				read(addr)
			}
			Expect(h.Time()).To(Equal(uint64(4 * (1 + 10 + 100))))
		})

		It("should never move the clock backwards", func() {
			prev := h.Time()
			for i, addr := range []uint32{0, 256, 512, 0, 4, 768, 1024, 256} {
				if i%2 == 0 {
					write(addr, []byte{1, 1, 1, 1})
				} else {
					read(addr)
				}
				now := h.Time()
				Expect(now).To(BeNumerically(">=", prev))
				prev = now
			}
		})

		It("should report the clock value after each access", func() {
			_, result := read(0)
			Expect(result.Time).To(Equal(h.Time()))
			Expect(result.Cycles).To(Equal(h.Time()))
		})
	})

	Describe("Bounds enforcement", func() {
		It("should accept the last word of memory", func() {
			_, err := h.Read(4092, make([]byte, 4))
			Expect(err).NotTo(HaveOccurred())
		})

		It("should reject out-of-range words before touching any state", func() {
			for _, addr := range []uint32{4093, 4096, 0xFFFFFFFF} {
				_, err := h.Write(addr, []byte{1, 2, 3, 4})
				Expect(err).To(MatchError(dram.ErrAddressOutOfRange))
			}

			Expect(h.Time()).To(Equal(uint64(0)))
			Expect(h.Stats().L1).To(Equal(cache.Statistics{}))
			Expect(*h.Stats().L2).To(Equal(cache.Statistics{}))
			for _, name := range h.LevelNames() {
				state, _ := h.Level(name)
				for _, set := range state.Lines {
					for _, line := range set {
						Expect(line.Valid).To(BeFalse())
					}
				}
			}
		})

		It("should reject buffers that are not one word", func() {
			_, err := h.Read(0, make([]byte, 8))
			Expect(err).To(MatchError(hierarchy.ErrWordSize))
			Expect(h.Time()).To(Equal(uint64(0)))
		})

		It("should reject words that cross a block boundary", func() {
			_, err := h.Write(62, []byte{1, 2, 3, 4})
			Expect(err).To(MatchError(cache.ErrUnalignedAccess))
			Expect(h.Time()).To(Equal(uint64(0)))
		})
	})

	Describe("Reset", func() {
		It("should return zeros at full cold-miss cost after InitCache", func() {
			write(0, []byte{1, 2, 3, 4})
			write(300, []byte{5, 6, 7, 8})

			h.InitCache()
			h.ResetTime()

			data, result := read(1024)
			Expect(data).To(Equal([]byte{0, 0, 0, 0}))
			Expect(result.Cycles).To(Equal(uint64(1 + 10 + 100)))
		})

		It("should drop dirty lines that were never written back", func() {
			write(0, []byte{1, 2, 3, 4})
			h.InitCache()

			data, _ := read(0)
			Expect(data).To(Equal([]byte{0, 0, 0, 0}))
		})

		It("should invalidate every line", func() {
			write(0, []byte{1, 2, 3, 4})
			h.InitCache()

			for _, name := range h.LevelNames() {
				state, ok := h.Level(name)
				Expect(ok).To(BeTrue())
				for _, set := range state.Lines {
					for _, line := range set {
						Expect(line.Valid).To(BeFalse())
						Expect(line.Dirty).To(BeFalse())
						Expect(line.Tag).To(Equal(uint64(0)))
						Expect(line.Block).To(Equal(make([]byte, 64)))
					}
				}
			}
		})
	})

	Describe("Flush", func() {
		It("should push dirty data all the way to memory", func() {
			write(8, []byte{4, 3, 2, 1})
			Expect(h.Flush()).To(Succeed())

			mem, err := h.PeekMemory(8, 4)
			Expect(err).NotTo(HaveOccurred())
			Expect(mem).To(Equal([]byte{4, 3, 2, 1}))

			_, result := read(8)
			Expect(result.L1Hit).To(BeFalse())
			Expect(result.L2Hit).To(BeFalse())
		})
	})

	Describe("Memory access outside the timed path", func() {
		It("should serve loaded data through the caches", func() {
			Expect(h.LoadMemory(2000, []byte{7, 7, 7, 7})).To(Succeed())
			Expect(h.Time()).To(Equal(uint64(0)))

			data, _ := read(2000)
			Expect(data).To(Equal([]byte{7, 7, 7, 7}))
		})
	})

	Describe("Observers", func() {
		It("should see every successful access in order", func() {
			r := &recorder{}
			h.AddObserver(r)

			write(0, []byte{1, 2, 3, 4})
			read(0)
			_, err := h.Read(5000, make([]byte, 4))
			Expect(err).To(HaveOccurred())

			Expect(r.results).To(HaveLen(2))
			Expect(r.results[0].Write).To(BeTrue())
			Expect(r.results[1].Write).To(BeFalse())
			Expect(r.results[1].L1Hit).To(BeTrue())
		})
	})

	Describe("Statistics", func() {
		It("should count per-level activity and reset it", func() {
			read(0)
			read(0)

			stats := h.Stats()
			Expect(stats.L1.Reads).To(Equal(uint64(2)))
			Expect(stats.L1.Hits).To(Equal(uint64(1)))
			Expect(stats.L2.Misses).To(Equal(uint64(1)))
			Expect(stats.Memory.Reads).To(Equal(uint64(1)))

			h.ResetStats()
			Expect(h.Stats().L1).To(Equal(cache.Statistics{}))
		})
	})

	Describe("Instances", func() {
		It("should not share state", func() {
			other, err := hierarchy.New(smallConfig())
			Expect(err).NotTo(HaveOccurred())

			write(0, []byte{1, 2, 3, 4})

			buf := make([]byte, 4)
			_, err = other.Read(0, buf)
			Expect(err).NotTo(HaveOccurred())
			Expect(buf).To(Equal([]byte{0, 0, 0, 0}))
			Expect(other.Stats().L1.Writes).To(Equal(uint64(0)))
		})

		It("should serialize concurrent accesses", func() {
			var wg sync.WaitGroup
			for g := 0; g < 4; g++ {
				wg.Add(1)
				go func(g int) {
					defer GinkgoRecover()
					defer wg.Done()
					for i := 0; i < 50; i++ {
						addr := uint32(g*1024 + (i%16)*64)
						_, err := h.Write(addr, []byte{byte(g), 0, 0, 0})
						Expect(err).NotTo(HaveOccurred())
						_ = h.Stats()
					}
				}(g)
			}
			wg.Wait()

			Expect(h.Stats().L1.Writes).To(Equal(uint64(200)))
		})
	})
})

var _ = Describe("Hierarchy shapes", func() {
	It("should connect L1 straight to memory in the single-level design", func() {
		config := hierarchy.SingleLevelConfig()
		h, err := hierarchy.New(config)
		Expect(err).NotTo(HaveOccurred())

		buf := make([]byte, 4)
		result, err := h.Read(0, buf)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Cycles).To(Equal(uint64(1 + 100)))
		Expect(result.L2Hit).To(BeFalse())

		_, ok := h.Level("L2")
		Expect(ok).To(BeFalse())
		Expect(h.LevelNames()).To(Equal([]string{"L1"}))
		Expect(h.Stats().L2).To(BeNil())
	})

	It("should write back single-level dirty lines to memory", func() {
		config := hierarchy.SingleLevelConfig()
		config.L1Size = 2 * 64
		config.MemorySize = 1024
		h, err := hierarchy.New(config)
		Expect(err).NotTo(HaveOccurred())

		_, err = h.Write(0, []byte{1, 2, 3, 4})
		Expect(err).NotTo(HaveOccurred())
		result, err := h.Read(128, make([]byte, 4))
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Cycles).To(Equal(uint64(100 + 50 + 1)))

		mem, err := h.PeekMemory(0, 4)
		Expect(err).NotTo(HaveOccurred())
		Expect(mem).To(Equal([]byte{1, 2, 3, 4}))
	})

	It("should conflict in a direct-mapped L2", func() {
		config := hierarchy.DirectMappedL2Config()
		config.MemorySize = 4096
		config.L1Size = 4 * 64
		config.L2Size = 8 * 64
		h, err := hierarchy.New(config)
		Expect(err).NotTo(HaveOccurred())

		// Blocks 0 and 8 share L1 line 0 and L2 line 0
		for _, addr := range []uint32{0, 512} {
			_, err = h.Read(addr, make([]byte, 4))
			Expect(err).NotTo(HaveOccurred())
		}

		result, err := h.Read(0, make([]byte, 4))
		Expect(err).NotTo(HaveOccurred())
		Expect(result.L2Hit).To(BeFalse())

		state, _ := h.Level("L2")
		Expect(state.Associativity).To(Equal(1))
		Expect(state.NumSets).To(Equal(8))
	})

	It("should use the reference geometry by default", func() {
		h, err := hierarchy.New(hierarchy.DefaultConfig())
		Expect(err).NotTo(HaveOccurred())

		l1, _ := h.Level("L1")
		l2, _ := h.Level("L2")
		Expect(l1.NumSets).To(Equal(256))
		Expect(l2.NumSets).To(Equal(256))
		Expect(l2.Associativity).To(Equal(2))
	})
})
