package cache_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/brassfork/rvooo/cache"
	"github.com/brassfork/rvooo/emu"
)

var _ = Describe("Cache", func() {
	var (
		mem *emu.Memory
		c   *cache.Cache
	)

	BeforeEach(func() {
		mem = emu.NewMemory()
		mem.Write8(0x1000, 8, 0xdeadbeef)
		c = cache.New(cache.DefaultL1DConfig(), mem)
	})

	It("misses on first access and fetches from backing store", func() {
		res := c.Read(0x1000, 8)
		Expect(res.Hit).To(BeFalse())
		Expect(c.Stats().Misses).To(Equal(uint64(1)))
	})

	It("hits on the second access to the same line", func() {
		c.Read(0x1000, 8)
		res := c.Read(0x1000, 8)
		Expect(res.Hit).To(BeTrue())
		Expect(res.Data).To(Equal(uint64(0xdeadbeef)))
	})

	It("writes back a dirty line on Flush", func() {
		c.Write(0x1000, 8, 0xcafef00d)
		c.Flush()
		Expect(mem.Read8(0x1000, 8)).To(Equal(uint64(0xcafef00d)))
	})

	It("adds store-forward latency to a load of a just-written address", func() {
		c.Write(0x2000, 4, 7)
		res := c.Read(0x2000, 4)
		Expect(res.Hit).To(BeTrue())
		Expect(res.Latency).To(Equal(cache.DefaultL1DConfig().HitLatency + cache.StoreForwardLatency))
	})
})
