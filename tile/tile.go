// Package tile implements the on-chip tile memories: fixed-depth arrays
// of vector elements moved in and out of DRAM by LOAD and STORE
// instructions. Each memory is parameterized by element width in bits,
// lane count and depth; one instance exists per role (input, weight,
// accumulator, micro-op).
package tile

import (
	"fmt"

	"github.com/tensoraccel/tpa/bitpack"
	"github.com/tensoraccel/tpa/isa"
	"github.com/tensoraccel/tpa/vmem"
)

// Memory is one tile memory. Contents are zero until written by a load or
// a compute engine.
type Memory struct {
	width     uint // element bits
	lane      int
	depth     int
	elemBytes int
	data      []byte
}

// New returns a zeroed tile memory of depth vector elements, each
// ceil(width*lane/8) bytes.
func New(width uint, lane, depth int) *Memory {
	elemBytes := (int(width)*lane + 7) / 8
	return &Memory{
		width:     width,
		lane:      lane,
		depth:     depth,
		elemBytes: elemBytes,
		data:      make([]byte, depth*elemBytes),
	}
}

// ElemBytes returns the size of one vector element in bytes.
func (m *Memory) ElemBytes() int { return m.elemBytes }

// Depth returns the number of vector elements.
func (m *Memory) Depth() int { return m.depth }

// BeginPtr returns the bytes of the tile starting at element index.
func (m *Memory) BeginPtr(index uint32) []byte {
	if int(index) >= m.depth {
		panic(fmt.Sprintf("tile: element index %d out of range [0,%d)", index, m.depth))
	}
	return m.data[int(index)*m.elemBytes:]
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// Load executes a LOAD on this tile: a 2-D strided copy from DRAM with
// zero padding before and after each row and above and below the block.
// The byte count is accumulated into counter even when skipExec
// suppresses the copy.
func (m *Memory) Load(op isa.MemInsn, dram *vmem.Memory, counter *uint64, skipExec bool) {
	*counter += uint64(op.XSize) * uint64(op.YSize) * uint64(m.elemBytes)
	if skipExec {
		return
	}
	xtotal := int(op.XSize + op.XPad0 + op.XPad1)
	ytotal := int(op.YSize + op.YPad0 + op.YPad1)
	if end := int(op.SRAMBase) + xtotal*ytotal; end > m.depth {
		panic(fmt.Sprintf("tile: load of %d elements at base %d exceeds depth %d",
			xtotal*ytotal, op.SRAMBase, m.depth))
	}
	src := dram.GetAddr(op.DRAMBase * uint32(m.elemBytes))
	dst := m.data[int(op.SRAMBase)*m.elemBytes:]

	off := 0
	zero(dst[:xtotal*int(op.YPad0)*m.elemBytes])
	off += xtotal * int(op.YPad0) * m.elemBytes

	rowBytes := int(op.XSize) * m.elemBytes
	srcOff := 0
	for y := 0; y < int(op.YSize); y++ {
		zero(dst[off : off+int(op.XPad0)*m.elemBytes])
		off += int(op.XPad0) * m.elemBytes
		copy(dst[off:off+rowBytes], src[srcOff:srcOff+rowBytes])
		off += rowBytes
		zero(dst[off : off+int(op.XPad1)*m.elemBytes])
		off += int(op.XPad1) * m.elemBytes
		srcOff += int(op.XStride) * m.elemBytes
	}
	zero(dst[off : off+xtotal*int(op.YPad1)*m.elemBytes])
}

// LoadInt8 executes a LOAD of 8-bit DRAM elements widened into this tile,
// which must be the 32-bit accumulator. Each DRAM byte is sign-extended
// into one 32-bit lane. The DRAM row stride is elemBytes/4 * x_stride
// bytes, i.e. computed in accumulator element bytes divided by the width
// factor.
func (m *Memory) LoadInt8(op isa.MemInsn, dram *vmem.Memory, counter *uint64, skipExec bool) {
	if m.width != 32 {
		panic(fmt.Sprintf("tile: widening load requires 32-bit elements, have %d", m.width))
	}
	factor := int(m.width) / 8

	*counter += uint64(op.XSize) * uint64(op.YSize) * uint64(m.elemBytes)
	if skipExec {
		return
	}
	xtotal := int(op.XSize + op.XPad0 + op.XPad1)
	ytotal := int(op.YSize + op.YPad0 + op.YPad1)
	if end := int(op.SRAMBase) + xtotal*ytotal; end > m.depth {
		panic(fmt.Sprintf("tile: load of %d elements at base %d exceeds depth %d",
			xtotal*ytotal, op.SRAMBase, m.depth))
	}
	src := dram.GetAddr(op.DRAMBase * uint32(m.elemBytes/factor))
	dst := m.data[int(op.SRAMBase)*m.elemBytes:]

	off := 0
	zero(dst[:xtotal*int(op.YPad0)*m.elemBytes])
	off += xtotal * int(op.YPad0) * m.elemBytes

	srcOff := 0
	for y := 0; y < int(op.YSize); y++ {
		zero(dst[off : off+int(op.XPad0)*m.elemBytes])
		off += int(op.XPad0) * m.elemBytes

		row := bitpack.New(32, dst[off:])
		for x := 0; x < int(op.XSize)*m.lane; x++ {
			row.SetSigned(uint32(x), int32(int8(src[srcOff+x])))
		}
		off += int(op.XSize) * m.elemBytes

		zero(dst[off : off+int(op.XPad1)*m.elemBytes])
		off += int(op.XPad1) * m.elemBytes
		srcOff += m.elemBytes / factor * int(op.XStride)
	}
	zero(dst[off : off+xtotal*int(op.YPad1)*m.elemBytes])
}

// TruncStore executes a STORE from this tile to DRAM, truncating each
// signed element from the tile width to targetBits. Padding is not
// supported on stores.
func (m *Memory) TruncStore(op isa.MemInsn, dram *vmem.Memory, targetBits uint) {
	if op.XPad0 != 0 || op.XPad1 != 0 || op.YPad0 != 0 || op.YPad1 != 0 {
		panic("tile: store with non-zero padding")
	}
	targetWidth := (int(targetBits)*m.lane + 7) / 8
	src := bitpack.New(m.width, m.data[int(op.SRAMBase)*m.elemBytes:])
	dst := bitpack.New(targetBits, dram.GetAddr(op.DRAMBase*uint32(targetWidth)))
	for y := uint32(0); y < op.YSize; y++ {
		for x := uint32(0); x < op.XSize; x++ {
			sramBase := y*op.XSize + x
			dramBase := y*op.XStride + x
			for i := 0; i < m.lane; i++ {
				dst.SetSigned(dramBase*uint32(m.lane)+uint32(i),
					src.GetSigned(sramBase*uint32(m.lane)+uint32(i)))
			}
		}
	}
}
