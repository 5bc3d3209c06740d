package isa

// Micro-op record: 32 bits, three packed unsigned index fields.
//
//	[0:11)  dst_idx  (accumulator element)
//	[11:22) src_idx  (input element)
//	[22:32) wgt_idx  (weight element)
const (
	UOP_DST_IDX_BITS = 11
	UOP_SRC_IDX_BITS = 11
	UOP_WGT_IDX_BITS = 10
)

// Uop selects the tile-local offsets for one inner iteration of the GEMM
// or ALU loop.
type Uop struct {
	DstIdx uint32
	SrcIdx uint32
	WgtIdx uint32
}

// DecodeUop unpacks one 32-bit micro-op record.
func DecodeUop(raw uint32) Uop {
	return Uop{
		DstIdx: raw & (1<<UOP_DST_IDX_BITS - 1),
		SrcIdx: (raw >> UOP_DST_IDX_BITS) & (1<<UOP_SRC_IDX_BITS - 1),
		WgtIdx: (raw >> (UOP_DST_IDX_BITS + UOP_SRC_IDX_BITS)) & (1<<UOP_WGT_IDX_BITS - 1),
	}
}

// Encode packs the micro-op into its 32-bit wire form.
func (u Uop) Encode() uint32 {
	return u.DstIdx&(1<<UOP_DST_IDX_BITS-1) |
		(u.SrcIdx&(1<<UOP_SRC_IDX_BITS-1))<<UOP_DST_IDX_BITS |
		(u.WgtIdx&(1<<UOP_WGT_IDX_BITS-1))<<(UOP_DST_IDX_BITS+UOP_SRC_IDX_BITS)
}
