package tile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tensoraccel/tpa/bitpack"
	"github.com/tensoraccel/tpa/isa"
	"github.com/tensoraccel/tpa/vmem"
)

// inpLoad builds a LOAD targeting element 0 of a DRAM block.
func inpLoad(blk *vmem.Block, elemBytes int) isa.MemInsn {
	return isa.MemInsn{
		Opcode:     isa.OPCODE_LOAD,
		MemoryType: isa.MEM_ID_INP,
		DRAMBase:   blk.Addr() / uint32(elemBytes),
	}
}

func TestLoadPadsRow(t *testing.T) {
	assert := assert.New(t)
	dram := vmem.NewMemory()
	m := New(isa.INP_WIDTH, isa.BATCH*isa.BLOCK_IN, isa.INP_BUFF_DEPTH)

	blk := dram.Alloc(isa.PAGE_BYTES)
	for i := 0; i < 2*m.ElemBytes(); i++ {
		blk.Data[i] = byte(10 * (i/m.ElemBytes() + 1))
	}

	op := inpLoad(blk, m.ElemBytes())
	op.YSize = 1
	op.XSize = 2
	op.XStride = 2
	op.XPad0 = 1
	op.XPad1 = 1

	var counter uint64
	m.Load(op, dram, &counter, false)

	assert.Equal(uint64(2*m.ElemBytes()), counter)
	for i := 0; i < m.ElemBytes(); i++ {
		assert.Equal(byte(0), m.BeginPtr(0)[i], "leading pad byte %d", i)
		assert.Equal(byte(10), m.BeginPtr(1)[i], "first element byte %d", i)
		assert.Equal(byte(20), m.BeginPtr(2)[i], "second element byte %d", i)
		assert.Equal(byte(0), m.BeginPtr(3)[i], "trailing pad byte %d", i)
	}
}

func TestLoadStridedRows(t *testing.T) {
	assert := assert.New(t)
	dram := vmem.NewMemory()
	m := New(isa.INP_WIDTH, isa.BATCH*isa.BLOCK_IN, isa.INP_BUFF_DEPTH)

	// Four consecutive DRAM elements 0..3; rows of one element with
	// stride two pick elements 0 and 2.
	blk := dram.Alloc(isa.PAGE_BYTES)
	for e := 0; e < 4; e++ {
		for i := 0; i < m.ElemBytes(); i++ {
			blk.Data[e*m.ElemBytes()+i] = byte(e)
		}
	}

	op := inpLoad(blk, m.ElemBytes())
	op.YSize = 2
	op.XSize = 1
	op.XStride = 2

	var counter uint64
	m.Load(op, dram, &counter, false)

	assert.Equal(byte(0), m.BeginPtr(0)[0])
	assert.Equal(byte(2), m.BeginPtr(1)[0])
}

func TestLoadPadsAboveAndBelow(t *testing.T) {
	assert := assert.New(t)
	dram := vmem.NewMemory()
	m := New(isa.INP_WIDTH, isa.BATCH*isa.BLOCK_IN, isa.INP_BUFF_DEPTH)

	// Dirty the destination so the zero fill is observable.
	for i := range m.BeginPtr(0)[:6*m.ElemBytes()] {
		m.BeginPtr(0)[i] = 0xEE
	}

	blk := dram.Alloc(isa.PAGE_BYTES)
	for i := 0; i < m.ElemBytes(); i++ {
		blk.Data[i] = 0x55
	}

	op := inpLoad(blk, m.ElemBytes())
	op.YSize = 1
	op.XSize = 1
	op.XStride = 1
	op.YPad0 = 2
	op.YPad1 = 3

	var counter uint64
	m.Load(op, dram, &counter, false)

	for e := 0; e < 6; e++ {
		want := byte(0)
		if e == 2 {
			want = 0x55
		}
		assert.Equal(want, m.BeginPtr(uint32(e))[0], "element %d", e)
	}
}

func TestLoadSkipExecCountsOnly(t *testing.T) {
	assert := assert.New(t)
	dram := vmem.NewMemory()
	m := New(isa.INP_WIDTH, isa.BATCH*isa.BLOCK_IN, isa.INP_BUFF_DEPTH)

	blk := dram.Alloc(isa.PAGE_BYTES)
	blk.Data[0] = 0x7F

	op := inpLoad(blk, m.ElemBytes())
	op.YSize = 1
	op.XSize = 1
	op.XStride = 1

	var counter uint64
	m.Load(op, dram, &counter, true)

	assert.Equal(uint64(m.ElemBytes()), counter)
	assert.Equal(byte(0), m.BeginPtr(0)[0], "tile must stay untouched under skip-exec")
}

func TestLoadOutOfBoundsPanics(t *testing.T) {
	dram := vmem.NewMemory()
	m := New(isa.INP_WIDTH, isa.BATCH*isa.BLOCK_IN, isa.INP_BUFF_DEPTH)
	blk := dram.Alloc(isa.PAGE_BYTES)

	op := inpLoad(blk, m.ElemBytes())
	op.SRAMBase = isa.INP_BUFF_DEPTH - 1
	op.YSize = 1
	op.XSize = 2
	op.XStride = 2

	var counter uint64
	assert.Panics(t, func() { m.Load(op, dram, &counter, false) })
}

func TestLoadInt8Widens(t *testing.T) {
	assert := assert.New(t)
	dram := vmem.NewMemory()
	m := New(isa.ACC_WIDTH, isa.BATCH*isa.BLOCK_OUT, isa.ACC_BUFF_DEPTH)

	blk := dram.Alloc(isa.PAGE_BYTES)
	// One accumulator element's worth of int8 values.
	vals := []int8{-128, -1, 0, 1, 127, -5, 5, -64, 64, 2, -2, 3, -3, 4, -4, 100}
	for i, v := range vals {
		blk.Data[i] = byte(v)
	}

	factor := isa.ACC_WIDTH / isa.INP_WIDTH
	op := isa.MemInsn{
		Opcode:     isa.OPCODE_LOAD,
		MemoryType: isa.MEM_ID_ACC_8BIT,
		DRAMBase:   blk.Addr() / uint32(m.ElemBytes()/factor),
		YSize:      1,
		XSize:      1,
		XStride:    1,
	}

	var counter uint64
	m.LoadInt8(op, dram, &counter, false)

	acc := bitpack.New(isa.ACC_WIDTH, m.BeginPtr(0))
	for i, v := range vals {
		assert.Equal(int32(v), acc.GetSigned(uint32(i)), "lane %d", i)
	}
}

func TestTruncStoreLowBits(t *testing.T) {
	assert := assert.New(t)
	dram := vmem.NewMemory()
	m := New(isa.ACC_WIDTH, isa.BATCH*isa.BLOCK_OUT, isa.ACC_BUFF_DEPTH)

	acc := bitpack.New(isa.ACC_WIDTH, m.BeginPtr(0))
	vals := []int32{136, -1, 256, -300, 0x1FF, -129, 127, -128, 1, 0, 2, 3, 4, 5, 6, 7}
	for i, v := range vals {
		acc.SetSigned(uint32(i), v)
	}

	blk := dram.Alloc(isa.PAGE_BYTES)
	targetWidth := uint32((isa.OUT_WIDTH*isa.BATCH*isa.BLOCK_OUT + 7) / 8)
	op := isa.MemInsn{
		Opcode:     isa.OPCODE_STORE,
		MemoryType: isa.MEM_ID_OUT,
		DRAMBase:   blk.Addr() / targetWidth,
		YSize:      1,
		XSize:      1,
		XStride:    1,
	}
	m.TruncStore(op, dram, isa.OUT_WIDTH)

	for i, v := range vals {
		assert.Equal(byte(v), blk.Data[i], "lane %d keeps low 8 bits", i)
	}
}

func TestTruncStoreRejectsPadding(t *testing.T) {
	dram := vmem.NewMemory()
	m := New(isa.ACC_WIDTH, isa.BATCH*isa.BLOCK_OUT, isa.ACC_BUFF_DEPTH)
	blk := dram.Alloc(isa.PAGE_BYTES)

	op := isa.MemInsn{
		Opcode:     isa.OPCODE_STORE,
		MemoryType: isa.MEM_ID_OUT,
		DRAMBase:   blk.Addr() / 16,
		YSize:      1,
		XSize:      1,
		XStride:    1,
		XPad0:      1,
	}
	assert.Panics(t, func() { m.TruncStore(op, dram, isa.OUT_WIDTH) })
}
