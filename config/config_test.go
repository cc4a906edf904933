package config_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/brassfork/rvooo/config"
)

var _ = Describe("Config", func() {
	It("validates a consistent default configuration", func() {
		Expect(config.Default().Validate()).To(Succeed())
	})

	It("rejects n_phys_regs <= n_log_regs", func() {
		c := config.Default()
		c.NPhysRegs = c.NLogRegs
		Expect(c.Validate()).NotTo(Succeed())
	})

	It("rejects n_branches outside [1, 64]", func() {
		c := config.Default()
		c.NBranches = 65
		Expect(c.Validate()).NotTo(Succeed())
	})

	It("rejects a mismatched ex_depth length", func() {
		c := config.Default()
		c.ExDepth = []uint64{1}
		Expect(c.Validate()).NotTo(Succeed())
	})

	It("round-trips through Save/Load", func() {
		dir := GinkgoT().TempDir()
		path := filepath.Join(dir, "rvsim.json")

		c := config.Default()
		c.Presteer = true
		Expect(c.Save(path)).To(Succeed())

		loaded, err := config.Load(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded.Presteer).To(BeTrue())
		Expect(loaded.NPhysRegs).To(Equal(c.NPhysRegs))
	})

	It("clones independently of the original", func() {
		c := config.Default()
		clone := c.Clone()
		clone.ExDepth[0] = 99
		Expect(c.ExDepth[0]).NotTo(Equal(uint64(99)))
	})

	It("errors on an unreadable file", func() {
		_, err := config.Load(filepath.Join(os.TempDir(), "does-not-exist.json"))
		Expect(err).To(HaveOccurred())
	})
})
