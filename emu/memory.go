package emu

import "fmt"

// pageSize is the granularity at which Memory backs virtual addresses with
// storage. Pages are allocated lazily on first touch, so a sparse address
// space (stack high, text low, heap in between) does not require a flat
// array sized to the highest address used.
const pageSize = 4096

// Memory is a sparse, byte-addressable little-endian address space. It is
// the functional reference model's view of memory and also backs the
// timing-side lsu package's cache hierarchy (as a cache.BackingStore), mirroring
// the split between architectural state and timing state the core keeps
// throughout: Memory never models latency, only correctness.
type Memory struct {
	pages map[uint64][]byte
}

// NewMemory creates an empty address space.
func NewMemory() *Memory {
	return &Memory{pages: make(map[uint64][]byte)}
}

func (m *Memory) page(addr uint64) []byte {
	base := addr &^ (pageSize - 1)
	p, ok := m.pages[base]
	if !ok {
		p = make([]byte, pageSize)
		m.pages[base] = p
	}
	return p
}

// Read8 reads size bytes (1, 2, 4, or 8) at addr and returns them as a
// little-endian unsigned value.
func (m *Memory) Read8(addr uint64, size uint8) uint64 {
	var v uint64
	for i := uint8(0); i < size; i++ {
		b := m.readByte(addr + uint64(i))
		v |= uint64(b) << (8 * i)
	}
	return v
}

// Write8 writes the low size bytes of v to addr, little-endian.
func (m *Memory) Write8(addr uint64, size uint8, v uint64) {
	for i := uint8(0); i < size; i++ {
		m.writeByte(addr+uint64(i), byte(v>>(8*i)))
	}
}

func (m *Memory) readByte(addr uint64) byte {
	p := m.page(addr)
	return p[addr%pageSize]
}

func (m *Memory) writeByte(addr uint64, b byte) {
	p := m.page(addr)
	p[addr%pageSize] = b
}

// LoadBytes copies data into memory starting at addr, used by the ELF
// loader to populate segments.
func (m *Memory) LoadBytes(addr uint64, data []byte) {
	for i, b := range data {
		m.writeByte(addr+uint64(i), b)
	}
}

// ReadBytes returns a size-length copy of memory starting at addr, used by
// the cache backing to service a line-sized fill.
func (m *Memory) ReadBytes(addr uint64, size int) []byte {
	out := make([]byte, size)
	for i := range out {
		out[i] = m.readByte(addr + uint64(i))
	}
	return out
}

// WriteBytes writes data into memory starting at addr, used by the cache
// backing to service a writeback.
func (m *Memory) WriteBytes(addr uint64, data []byte) {
	m.LoadBytes(addr, data)
}

// String implements fmt.Stringer for debug printing in trace output.
func (m *Memory) String() string {
	return fmt.Sprintf("Memory{%d pages resident}", len(m.pages))
}
