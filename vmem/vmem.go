// Package vmem simulates the accelerator's DRAM: a paged allocator that
// hands out host-visible buffers mapped to stable 32-bit physical
// addresses. The device addresses DRAM only through physical addresses;
// host code holds Block handles.
package vmem

import (
	"fmt"
	"sort"
	"sync"

	"github.com/tensoraccel/tpa/isa"
)

// First physical address handed out. Keeps address 0 invalid so a zero
// dram_base in a malformed instruction faults instead of aliasing the
// first allocation.
const baseAddr = isa.PAGE_BYTES

// Block is the host handle for one allocation: a contiguous run of whole
// pages. The byte slice stays valid until Free.
type Block struct {
	Data []byte
	addr uint32 // physical base, page-aligned
}

// Addr returns the physical base address of the block.
func (b *Block) Addr() uint32 { return b.addr }

// Memory is the paged DRAM manager. All methods are safe for concurrent
// use; lookups and allocation share one mutex.
type Memory struct {
	mu     sync.Mutex
	next   uint32            // next physical address to assign
	byHost map[*Block]uint32 // live allocations, host -> phys
	blocks []*Block          // live allocations sorted by phys base
}

// NewMemory returns an empty DRAM. Most callers want Global instead; the
// constructor exists so tests can run against a private instance.
func NewMemory() *Memory {
	return &Memory{
		next:   baseAddr,
		byHost: make(map[*Block]uint32),
	}
}

var (
	global     *Memory
	globalOnce sync.Once
)

// Global returns the process-wide DRAM shared by all devices.
func Global() *Memory {
	globalOnce.Do(func() {
		global = NewMemory()
	})
	return global
}

// Alloc reserves size bytes rounded up to whole pages and returns the
// host handle. The physical address range is assigned monotonically and
// never reused, so addresses of live allocations cannot alias.
func (m *Memory) Alloc(size int) *Block {
	if size <= 0 {
		panic(fmt.Sprintf("vmem: invalid allocation size %d", size))
	}
	npages := (size + isa.PAGE_BYTES - 1) / isa.PAGE_BYTES

	m.mu.Lock()
	defer m.mu.Unlock()
	b := &Block{
		Data: make([]byte, npages*isa.PAGE_BYTES),
		addr: m.next,
	}
	m.next += uint32(npages * isa.PAGE_BYTES)
	m.byHost[b] = b.addr
	i := sort.Search(len(m.blocks), func(i int) bool { return m.blocks[i].addr >= b.addr })
	m.blocks = append(m.blocks, nil)
	copy(m.blocks[i+1:], m.blocks[i:])
	m.blocks[i] = b
	return b
}

// Free releases the allocation. Subsequent lookups with the handle or its
// physical range fault.
func (m *Memory) Free(b *Block) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byHost[b]; !ok {
		panic("vmem: free of unknown or already freed block")
	}
	delete(m.byHost, b)
	i := sort.Search(len(m.blocks), func(i int) bool { return m.blocks[i].addr >= b.addr })
	m.blocks = append(m.blocks[:i], m.blocks[i+1:]...)
	b.Data = nil
}

// GetPhyAddr returns the physical base address of the allocation.
func (m *Memory) GetPhyAddr(b *Block) uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	addr, ok := m.byHost[b]
	if !ok {
		panic("vmem: physical address of unknown block")
	}
	return addr
}

// GetAddr translates a physical address to host memory. The address may
// point anywhere inside a live allocation; the returned slice covers the
// allocation from that byte to its end. A miss is a fatal caller error.
func (m *Memory) GetAddr(phy uint32) []byte {
	data, ok := m.Probe(phy)
	if !ok {
		panic(fmt.Sprintf("vmem: physical address 0x%x not mapped", phy))
	}
	return data
}

// Probe is the non-fatal variant of GetAddr for inspection tools.
func (m *Memory) Probe(phy uint32) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	// Rightmost allocation with base <= phy.
	i := sort.Search(len(m.blocks), func(i int) bool { return m.blocks[i].addr > phy })
	if i == 0 {
		return nil, false
	}
	b := m.blocks[i-1]
	off := int(phy - b.addr)
	if off >= len(b.Data) {
		return nil, false
	}
	return b.Data[off:], true
}
