package pay_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/brassfork/rvooo/pay"
)

var _ = Describe("Buffer", func() {
	It("allocates and frees independent slots", func() {
		b := pay.New(4)
		i0 := b.Alloc()
		i1 := b.Alloc()
		Expect(i0).NotTo(Equal(i1))

		b.Get(i0).ResultVal = 42
		Expect(b.Get(i0).ResultVal).To(Equal(uint64(42)))

		b.Free(i0)
		i2 := b.Alloc()
		Expect(i2).To(Equal(i0))
		Expect(b.Get(i2).ResultVal).To(Equal(uint64(0)))
	})

	It("links a split store's halves by Sibling, not by adjacency", func() {
		b := pay.New(4)
		b.Alloc() // occupy slot 0 so the pair does not land at 0/1
		upper, lower := b.AllocSplitPair()

		Expect(b.Get(upper).IsSplitUpper).To(BeTrue())
		Expect(b.Get(lower).IsSplitLower).To(BeTrue())
		Expect(b.Get(upper).Sibling).To(Equal(lower))
		Expect(b.Get(lower).Sibling).To(Equal(upper))
	})

	It("panics when the buffer is exhausted", func() {
		b := pay.New(1)
		b.Alloc()
		Expect(func() { b.Alloc() }).To(Panic())
	})
})
