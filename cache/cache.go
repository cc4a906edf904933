// Package cache provides a timing-accurate cache hierarchy model built on
// Akita's tag/state directory, used by the lsu package to give loads and
// stores a real hit/miss latency instead of treating memory as uniformly
// fast. spec.md §1 lists "modeling of caches in detail" as a non-goal for
// the core's own structures — this package is the one deliberately
// detailed exception the LSU leans on, exactly the role the teacher's own
// timing/cache package plays for its ARM64 core.
package cache

import (
	akitacache "github.com/sarchlab/akita/v4/mem/cache"
)

// Config holds cache configuration parameters.
type Config struct {
	Size          int
	Associativity int
	BlockSize     int
	HitLatency    uint64
	MissLatency   uint64
}

// DefaultL1DConfig returns a representative L1 data cache configuration:
// 64KB, 8-way, 64B line, a 3-cycle hit latency, and a 20-cycle miss
// latency to a unified backing store.
func DefaultL1DConfig() Config {
	return Config{
		Size:          64 * 1024,
		Associativity: 8,
		BlockSize:     64,
		HitLatency:    3,
		MissLatency:   20,
	}
}

// AccessResult contains the result of a cache access.
type AccessResult struct {
	Hit         bool
	Latency     uint64
	Data        uint64
	Evicted     bool
	EvictedAddr uint64
}

// StoreForwardLatency is the extra latency a load incurs when it reads an
// address this cache just wrote, modeling the store-queue forwarding path
// rather than a direct array read.
const StoreForwardLatency uint64 = 1

// BackingStore is the next level in the memory hierarchy, implemented by
// emu.Memory for this core.
type BackingStore interface {
	ReadBytes(addr uint64, size int) []byte
	WriteBytes(addr uint64, data []byte)
}

// Cache is an Akita-directory-backed set-associative cache.
type Cache struct {
	config    Config
	directory *akitacache.DirectoryImpl
	dataStore [][]byte
	stats     Statistics
	backing   BackingStore

	recentStoreAddr  uint64
	recentStoreValid bool
}

// Statistics holds cache performance counters.
type Statistics struct {
	Reads      uint64
	Writes     uint64
	Hits       uint64
	Misses     uint64
	Evictions  uint64
	Writebacks uint64
}

// New creates a cache with the given configuration and backing store.
func New(config Config, backing BackingStore) *Cache {
	numSets := config.Size / (config.Associativity * config.BlockSize)
	totalBlocks := numSets * config.Associativity

	dataStore := make([][]byte, totalBlocks)
	for i := range dataStore {
		dataStore[i] = make([]byte, config.BlockSize)
	}

	return &Cache{
		config: config,
		directory: akitacache.NewDirectory(
			numSets,
			config.Associativity,
			config.BlockSize,
			akitacache.NewLRUVictimFinder(),
		),
		dataStore: dataStore,
		backing:   backing,
	}
}

// Config returns the cache's configuration.
func (c *Cache) Config() Config { return c.config }

// Stats returns the cache's performance counters.
func (c *Cache) Stats() Statistics { return c.stats }

func (c *Cache) blockIndex(block *akitacache.Block) int {
	return block.SetID*c.config.Associativity + block.WayID
}

// Read performs a cache read, returning hit/miss and, on a hit, data and
// latency; the lsu package is responsible for stalling the requesting load
// until a miss is serviced.
func (c *Cache) Read(addr uint64, size int) AccessResult {
	c.stats.Reads++
	blockAddr := c.blockAlign(addr)
	block := c.directory.Lookup(0, blockAddr)

	if block != nil && block.IsValid {
		c.stats.Hits++
		c.directory.Visit(block)

		offset := addr % uint64(c.config.BlockSize)
		data := extractData(c.dataStore[c.blockIndex(block)], offset, size)

		latency := c.config.HitLatency
		if c.recentStoreValid && c.recentStoreAddr == addr {
			latency += StoreForwardLatency
			c.recentStoreValid = false
		}

		return AccessResult{Hit: true, Latency: latency, Data: data}
	}

	c.stats.Misses++
	return c.handleMiss(addr, size, false, 0)
}

// Write performs a cache write using a write-allocate policy.
func (c *Cache) Write(addr uint64, size int, data uint64) AccessResult {
	c.stats.Writes++
	c.recentStoreAddr = addr
	c.recentStoreValid = true

	blockAddr := c.blockAlign(addr)
	block := c.directory.Lookup(0, blockAddr)

	if block != nil && block.IsValid {
		c.stats.Hits++
		c.directory.Visit(block)

		offset := addr % uint64(c.config.BlockSize)
		storeData(c.dataStore[c.blockIndex(block)], offset, size, data)
		block.IsDirty = true

		return AccessResult{Hit: true, Latency: c.config.HitLatency}
	}

	c.stats.Misses++
	return c.handleMiss(addr, size, true, data)
}

func (c *Cache) handleMiss(addr uint64, size int, isWrite bool, writeData uint64) AccessResult {
	result := AccessResult{Hit: false, Latency: c.config.MissLatency}
	blockAddr := c.blockAlign(addr)

	victim := c.directory.FindVictim(blockAddr)
	if victim == nil {
		return result
	}

	victimData := c.dataStore[c.blockIndex(victim)]

	if victim.IsValid {
		c.stats.Evictions++
		result.Evicted = true
		result.EvictedAddr = victim.Tag

		if victim.IsDirty && c.backing != nil {
			c.stats.Writebacks++
			c.backing.WriteBytes(victim.Tag, victimData)
		}
	}

	if c.backing != nil {
		copy(victimData, c.backing.ReadBytes(blockAddr, c.config.BlockSize))
	} else {
		for i := range victimData {
			victimData[i] = 0
		}
	}

	victim.Tag = blockAddr
	victim.IsValid = true
	victim.IsDirty = false

	offset := addr % uint64(c.config.BlockSize)
	if isWrite {
		storeData(victimData, offset, size, writeData)
		victim.IsDirty = true
	} else {
		result.Data = extractData(victimData, offset, size)
	}

	c.directory.Visit(victim)
	return result
}

// Flush writes back every dirty line and invalidates the cache.
func (c *Cache) Flush() {
	for _, set := range c.directory.GetSets() {
		for _, block := range set.Blocks {
			if block.IsValid && block.IsDirty && c.backing != nil {
				c.backing.WriteBytes(block.Tag, c.dataStore[c.blockIndex(block)])
				c.stats.Writebacks++
			}
			block.IsValid = false
			block.IsDirty = false
		}
	}
}

func (c *Cache) blockAlign(addr uint64) uint64 {
	return (addr / uint64(c.config.BlockSize)) * uint64(c.config.BlockSize)
}

func extractData(data []byte, offset uint64, size int) uint64 {
	if data == nil || int(offset)+size > len(data) {
		return 0
	}
	var result uint64
	for i := 0; i < size; i++ {
		result |= uint64(data[int(offset)+i]) << (i * 8)
	}
	return result
}

func storeData(data []byte, offset uint64, size int, value uint64) {
	if data == nil || int(offset)+size > len(data) {
		return
	}
	for i := 0; i < size; i++ {
		data[int(offset)+i] = byte(value >> (i * 8))
	}
}
