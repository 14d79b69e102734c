package dram_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/cachesim/timing/dram"
	"github.com/sarchlab/cachesim/timing/latency"
)

var _ = Describe("DRAM", func() {
	var (
		clock  *latency.Clock
		memory *dram.DRAM
	)

	BeforeEach(func() {
		clock = latency.NewClock(latency.NewTable())
		memory = dram.New(dram.Config{
			Capacity:  1024,
			BlockSize: 64,
			WordSize:  4,
		}, clock)
	})

	Describe("Block transfers", func() {
		It("should read zeros from untouched memory", func() {
			block := make([]byte, 64)
			block[0] = 0xFF

			Expect(memory.ReadBlock(128, block)).To(Succeed())
			Expect(block).To(Equal(make([]byte, 64)))
			Expect(clock.Now()).To(Equal(uint64(100)))
			Expect(memory.Stats().Reads).To(Equal(uint64(1)))
		})

		It("should write and read back a block", func() {
			src := make([]byte, 64)
			for i := range src {
				src[i] = byte(i)
			}

			Expect(memory.WriteBlock(64, src)).To(Succeed())
			Expect(clock.Now()).To(Equal(uint64(50)))

			dst := make([]byte, 64)
			Expect(memory.ReadBlock(64, dst)).To(Succeed())
			Expect(dst).To(Equal(src))
			Expect(clock.Now()).To(Equal(uint64(150)))

			stats := memory.Stats()
			Expect(stats.Reads).To(Equal(uint64(1)))
			Expect(stats.Writes).To(Equal(uint64(1)))
		})

		It("should serve the last block of memory", func() {
			Expect(memory.ReadBlock(960, make([]byte, 64))).To(Succeed())
		})
	})

	Describe("Bounds enforcement", func() {
		It("should accept the last word of memory", func() {
			Expect(memory.Validate(1020)).To(Succeed())
		})

		It("should reject a word that runs past the end", func() {
			Expect(memory.Validate(1021)).To(MatchError(dram.ErrAddressOutOfRange))
			Expect(memory.Validate(1024)).To(MatchError(dram.ErrAddressOutOfRange))
		})

		It("should reject an address that wraps around", func() {
			Expect(memory.Validate(^uint64(0) - 1)).
				To(MatchError(dram.ErrAddressOutOfRange))
		})

		It("should not charge time or count a rejected transfer", func() {
			err := memory.ReadBlock(1024, make([]byte, 64))
			Expect(err).To(MatchError(dram.ErrAddressOutOfRange))

			err = memory.WriteBlock(2048, make([]byte, 64))
			Expect(err).To(MatchError(dram.ErrAddressOutOfRange))

			Expect(clock.Now()).To(Equal(uint64(0)))
			Expect(memory.Stats()).To(Equal(dram.Statistics{}))
		})

		It("should reject a block that crosses the end", func() {
			err := memory.ReadBlock(1000, make([]byte, 64))
			Expect(err).To(MatchError(dram.ErrAddressOutOfRange))
		})
	})

	Describe("Untimed access", func() {
		It("should load and peek without charging time", func() {
			Expect(memory.Load(10, []byte{1, 2, 3})).To(Succeed())

			data, err := memory.Peek(10, 3)
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(Equal([]byte{1, 2, 3}))

			Expect(clock.Now()).To(Equal(uint64(0)))
			Expect(memory.Stats()).To(Equal(dram.Statistics{}))
		})

		It("should reject loads past the end", func() {
			Expect(memory.Load(1023, []byte{1, 2})).
				To(MatchError(dram.ErrAddressOutOfRange))
		})
	})

	It("should reset statistics", func() {
		Expect(memory.ReadBlock(0, make([]byte, 64))).To(Succeed())
		memory.ResetStats()
		Expect(memory.Stats()).To(Equal(dram.Statistics{}))
	})
})
