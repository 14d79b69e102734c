package cache_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/cachesim/timing/cache"
)

var _ = Describe("Decoder", func() {
	It("should split an address into tag, index and offset", func() {
		d, err := cache.NewDecoder(4, 64)
		Expect(err).NotTo(HaveOccurred())

		loc := d.Decode(0x1234)
		Expect(loc.Offset).To(Equal(0x34))
		Expect(loc.Block).To(Equal(uint64(0x48)))
		Expect(loc.Index).To(Equal(0))
		Expect(loc.Tag).To(Equal(uint64(0x12)))
	})

	It("should give conflicting blocks the same index and different tags", func() {
		d, err := cache.NewDecoder(4, 64)
		Expect(err).NotTo(HaveOccurred())

		a := d.Decode(0)
		b := d.Decode(256)
		Expect(a.Index).To(Equal(b.Index))
		Expect(a.Tag).NotTo(Equal(b.Tag))
	})

	It("should decode block numbers with a zero offset", func() {
		d, err := cache.NewDecoder(8, 64)
		Expect(err).NotTo(HaveOccurred())

		loc := d.DecodeBlock(21)
		Expect(loc).To(Equal(cache.Location{Block: 21, Index: 5, Tag: 2}))
	})

	It("should agree across levels on the block an address belongs to", func() {
		l1, err := cache.NewDecoder(4, 64)
		Expect(err).NotTo(HaveOccurred())
		l2, err := cache.NewDecoder(16, 64)
		Expect(err).NotTo(HaveOccurred())

		for addr := uint64(0); addr < 8192; addr += 4 {
			blockFromL1 := l1.Decode(addr).Block
			Expect(l2.Decode(addr).Block).To(Equal(blockFromL1))
			Expect(l1.BlockAddress(blockFromL1)).
				To(Equal(addr &^ 63))
		}
	})

	It("should never map two blocks to the same (index, tag)", func() {
		for _, numSets := range []int{1, 2, 4, 256, 512} {
			d, err := cache.NewDecoder(numSets, 64)
			Expect(err).NotTo(HaveOccurred())

			type key struct {
				index int
				tag   uint64
			}
			seen := make(map[key]uint64)

			for block := uint64(0); block < 4096; block++ {
				loc := d.DecodeBlock(block)
				k := key{loc.Index, loc.Tag}

				other, dup := seen[k]
				Expect(dup).To(BeFalse(),
					"blocks %d and %d collide with %d sets", other, block, numSets)
				seen[k] = block

				Expect(d.BlockNumber(loc.Tag, loc.Index)).To(Equal(block))
			}
		}
	})

	It("should reject a block size that is not a power of two", func() {
		_, err := cache.NewDecoder(4, 48)
		Expect(err).To(HaveOccurred())
	})

	It("should reject a set count that is not a power of two", func() {
		_, err := cache.NewDecoder(3, 64)
		Expect(err).To(HaveOccurred())

		_, err = cache.NewDecoder(0, 64)
		Expect(err).To(HaveOccurred())
	})
})
