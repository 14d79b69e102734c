package hierarchy_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/cachesim/timing/hierarchy"
)

var _ = Describe("Config", func() {
	It("should accept every preset", func() {
		Expect(hierarchy.DefaultConfig().Validate()).To(Succeed())
		Expect(hierarchy.DirectMappedL2Config().Validate()).To(Succeed())
		Expect(hierarchy.SingleLevelConfig().Validate()).To(Succeed())
		Expect(hierarchy.SingleLevelConfig().HasL2()).To(BeFalse())
	})

	DescribeTable("should reject inconsistent geometry",
		func(mutate func(c *hierarchy.Config)) {
			config := hierarchy.DefaultConfig()
			mutate(config)
			Expect(config.Validate()).NotTo(Succeed())

			_, err := hierarchy.New(config)
			Expect(err).To(HaveOccurred())
		},
		Entry("word size not a power of two", func(c *hierarchy.Config) {
			c.WordSize = 3
		}),
		Entry("block size not a power of two", func(c *hierarchy.Config) {
			c.BlockSize = 48
		}),
		Entry("word larger than block", func(c *hierarchy.Config) {
			c.WordSize = 128
		}),
		Entry("memory not a multiple of the block size", func(c *hierarchy.Config) {
			c.MemorySize = 1000
		}),
		Entry("memory beyond 32-bit addresses", func(c *hierarchy.Config) {
			c.MemorySize = 1<<32 + 64
		}),
		Entry("L1 line count not a power of two", func(c *hierarchy.Config) {
			c.L1Size = 3 * 64
		}),
		Entry("L2 lines not divisible into ways", func(c *hierarchy.Config) {
			c.L2Size = 3 * 64
		}),
		Entry("negative L2 size", func(c *hierarchy.Config) {
			c.L2Size = -64
		}),
		Entry("missing timing", func(c *hierarchy.Config) {
			c.Timing = nil
		}),
		Entry("zero latency", func(c *hierarchy.Config) {
			c.Timing.L1ReadLatency = 0
		}),
	)

	It("should clone deeply", func() {
		config := hierarchy.DefaultConfig()
		clone := config.Clone()
		clone.Timing.DRAMReadLatency = 7
		clone.L1Size = 64

		Expect(config.Timing.DRAMReadLatency).To(Equal(uint64(100)))
		Expect(config.L1Size).To(Equal(256 * 64))
	})

	It("should not be affected by changes after New", func() {
		config := hierarchy.DefaultConfig()
		h, err := hierarchy.New(config)
		Expect(err).NotTo(HaveOccurred())

		config.Timing.L1ReadLatency = 1000
		Expect(h.Config().Timing.L1ReadLatency).To(Equal(uint64(1)))
	})

	It("should round-trip through a JSON file", func() {
		path := filepath.Join(GinkgoT().TempDir(), "hierarchy.json")

		config := hierarchy.DirectMappedL2Config()
		config.Timing.DRAMWriteLatency = 75
		Expect(config.SaveConfig(path)).To(Succeed())

		loaded, err := hierarchy.LoadConfig(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded).To(Equal(config))
	})

	It("should keep defaults for fields missing from the file", func() {
		path := filepath.Join(GinkgoT().TempDir(), "partial.json")
		Expect(os.WriteFile(path, []byte(`{"l2_size": 0}`), 0644)).To(Succeed())

		loaded, err := hierarchy.LoadConfig(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded.HasL2()).To(BeFalse())
		Expect(loaded.BlockSize).To(Equal(64))
		Expect(loaded.Timing.DRAMReadLatency).To(Equal(uint64(100)))
	})

	It("should fail on a missing file", func() {
		_, err := hierarchy.LoadConfig("/nonexistent/hierarchy.json")
		Expect(err).To(HaveOccurred())
	})
})
