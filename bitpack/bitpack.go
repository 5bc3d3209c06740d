// Package bitpack provides typed element access over raw bytes for element
// widths of 1 to 32 bits. Values are truncated to the element width on
// write and sign- or zero-extended to 32 bits on read.
//
// The byte order is little-endian. Widths of 8, 16 and 32 bits are
// accessed directly. Other widths are packed into consecutive little-endian
// 32-bit words, 32/B elements of width B per word from bit 0 up; an
// element never straddles two words. For widths that divide 32 this puts
// element i at bit offset i*B; for other widths it does not, and the top
// 32 mod B bits of each word are unused.
package bitpack

import "encoding/binary"

// Packer borrows a byte slice and views it as a sequence of width-bit
// elements. It performs no bounds checks; an index past the last element
// data holds (len(data)*8/width of them when width divides 32) is a caller
// error.
type Packer struct {
	width uint
	data  []byte
}

// New returns a Packer of the given element width over data.
func New(width uint, data []byte) Packer {
	return Packer{width: width, data: data}
}

// word returns the 32-bit word holding sub-word element index.
func (p Packer) word(index uint32) (uint32, uint32, uint) {
	perWord := 32 / uint32(p.width)
	off := index / perWord * 4
	shift := uint(index%perWord) * p.width
	return binary.LittleEndian.Uint32(p.data[off:]), off, shift
}

func (p Packer) mask() uint32 {
	return 1<<p.width - 1
}

// GetUnsigned reads element index zero-extended to 32 bits.
func (p Packer) GetUnsigned(index uint32) uint32 {
	switch p.width {
	case 32:
		return binary.LittleEndian.Uint32(p.data[index*4:])
	case 16:
		return uint32(binary.LittleEndian.Uint16(p.data[index*2:]))
	case 8:
		return uint32(p.data[index])
	default:
		w, _, shift := p.word(index)
		return (w >> shift) & p.mask()
	}
}

// GetSigned reads element index sign-extended to 32 bits.
func (p Packer) GetSigned(index uint32) int32 {
	switch p.width {
	case 32:
		return int32(binary.LittleEndian.Uint32(p.data[index*4:]))
	case 16:
		return int32(int16(binary.LittleEndian.Uint16(p.data[index*2:])))
	case 8:
		return int32(int8(p.data[index]))
	default:
		w, _, shift := p.word(index)
		left := 32 - p.width
		return int32((w>>shift)&p.mask()) << left >> left
	}
}

// SetUnsigned writes the low width bits of value at element index.
func (p Packer) SetUnsigned(index uint32, value uint32) {
	switch p.width {
	case 32:
		binary.LittleEndian.PutUint32(p.data[index*4:], value)
	case 16:
		binary.LittleEndian.PutUint16(p.data[index*2:], uint16(value))
	case 8:
		p.data[index] = uint8(value)
	default:
		w, off, shift := p.word(index)
		w &^= p.mask() << shift
		w |= (value & p.mask()) << shift
		binary.LittleEndian.PutUint32(p.data[off:], w)
	}
}

// SetSigned writes the low width bits of value at element index.
func (p Packer) SetSigned(index uint32, value int32) {
	p.SetUnsigned(index, uint32(value))
}
