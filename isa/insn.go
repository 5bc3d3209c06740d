package isa

import "encoding/binary"

// Instructions are 128-bit little-endian records held as two 64-bit words.
// The opcode selects one of three layouts (memory, gemm, alu); the second
// field group starts exactly at bit 64 in all of them, so Hi always begins
// on a fresh field.
//
// Field positions, low word:
//
//	[0:3)   opcode
//	[3]     pop_prev_dep
//	[4]     pop_next_dep
//	[5]     push_prev_dep
//	[6]     push_next_dep
//
// memory layout continues:
//
//	[7:10)  memory_type
//	[10:26) sram_base
//	[26:58) dram_base
//	high word: y_size[0:16) x_size[16:32) x_stride[32:48)
//	           y_pad_0[48:52) y_pad_1[52:56) x_pad_0[56:60) x_pad_1[60:64)
//
// gemm/alu layouts continue:
//
//	[7]     reset_reg
//	[8:21)  uop_bgn
//	[21:35) uop_end
//	[35:49) iter_out
//	[49:63) iter_in
//	gemm high word: dst_factor_out[0:11) dst_factor_in[11:22)
//	                src_factor_out[22:33) src_factor_in[33:44)
//	                wgt_factor_out[44:54) wgt_factor_in[54:64)
//	alu high word:  dst_factor_out[0:11) dst_factor_in[11:22)
//	                src_factor_out[22:33) src_factor_in[33:44)
//	                alu_opcode[44:47) use_imm[47] imm[48:64) signed
type Insn struct {
	Lo uint64
	Hi uint64
}

func bits(w uint64, lo, n uint) uint32 {
	return uint32((w >> lo) & (1<<n - 1))
}

func setBits(w *uint64, lo, n uint, v uint32) {
	mask := uint64(1<<n-1) << lo
	*w = (*w &^ mask) | (uint64(v)<<lo)&mask
}

// InsnFromBytes decodes one 128-bit record from the first 16 bytes of b.
func InsnFromBytes(b []byte) Insn {
	return Insn{
		Lo: binary.LittleEndian.Uint64(b[0:8]),
		Hi: binary.LittleEndian.Uint64(b[8:16]),
	}
}

// Bytes returns the little-endian wire form of the instruction.
func (i Insn) Bytes() []byte {
	b := make([]byte, INSN_BYTES)
	binary.LittleEndian.PutUint64(b[0:8], i.Lo)
	binary.LittleEndian.PutUint64(b[8:16], i.Hi)
	return b
}

func (i Insn) Opcode() uint32     { return bits(i.Lo, 0, 3) }
func (i Insn) PopPrevDep() bool   { return bits(i.Lo, 3, 1) != 0 }
func (i Insn) PopNextDep() bool   { return bits(i.Lo, 4, 1) != 0 }
func (i Insn) PushPrevDep() bool  { return bits(i.Lo, 5, 1) != 0 }
func (i Insn) PushNextDep() bool  { return bits(i.Lo, 6, 1) != 0 }
func (i Insn) MemoryType() uint32 { return bits(i.Lo, 7, 3) }

// Dep describes the four dependency-queue flags carried by every
// instruction.
type Dep struct {
	PopPrev  bool
	PopNext  bool
	PushPrev bool
	PushNext bool
}

func (i Insn) Dep() Dep {
	return Dep{
		PopPrev:  i.PopPrevDep(),
		PopNext:  i.PopNextDep(),
		PushPrev: i.PushPrevDep(),
		PushNext: i.PushNextDep(),
	}
}

func (d Dep) encode(lo *uint64) {
	setBits(lo, 3, 1, b2u(d.PopPrev))
	setBits(lo, 4, 1, b2u(d.PopNext))
	setBits(lo, 5, 1, b2u(d.PushPrev))
	setBits(lo, 6, 1, b2u(d.PushNext))
}

func b2u(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// MemInsn is the decoded form of a LOAD or STORE instruction.
type MemInsn struct {
	Opcode     uint32
	Dep        Dep
	MemoryType uint32
	SRAMBase   uint32 // in vector elements
	DRAMBase   uint32 // in vector elements
	YSize      uint32
	XSize      uint32
	XStride    uint32
	YPad0      uint32
	YPad1      uint32
	XPad0      uint32
	XPad1      uint32
}

// GemInsn is the decoded form of a GEMM or FINISH instruction.
type GemInsn struct {
	Opcode       uint32
	Dep          Dep
	ResetReg     bool
	UopBgn       uint32
	UopEnd       uint32
	IterOut      uint32
	IterIn       uint32
	DstFactorOut uint32
	DstFactorIn  uint32
	SrcFactorOut uint32
	SrcFactorIn  uint32
	WgtFactorOut uint32
	WgtFactorIn  uint32
}

// AluInsn is the decoded form of an ALU instruction.
type AluInsn struct {
	Opcode       uint32
	Dep          Dep
	UopBgn       uint32
	UopEnd       uint32
	IterOut      uint32
	IterIn       uint32
	DstFactorOut uint32
	DstFactorIn  uint32
	SrcFactorOut uint32
	SrcFactorIn  uint32
	AluOpcode    uint32
	UseImm       bool
	Imm          int32
}

// AsMem decodes the record with the memory layout.
func (i Insn) AsMem() MemInsn {
	return MemInsn{
		Opcode:     i.Opcode(),
		Dep:        i.Dep(),
		MemoryType: bits(i.Lo, 7, 3),
		SRAMBase:   bits(i.Lo, 10, 16),
		DRAMBase:   bits(i.Lo, 26, 32),
		YSize:      bits(i.Hi, 0, 16),
		XSize:      bits(i.Hi, 16, 16),
		XStride:    bits(i.Hi, 32, 16),
		YPad0:      bits(i.Hi, 48, 4),
		YPad1:      bits(i.Hi, 52, 4),
		XPad0:      bits(i.Hi, 56, 4),
		XPad1:      bits(i.Hi, 60, 4),
	}
}

// AsGem decodes the record with the gemm layout.
func (i Insn) AsGem() GemInsn {
	return GemInsn{
		Opcode:       i.Opcode(),
		Dep:          i.Dep(),
		ResetReg:     bits(i.Lo, 7, 1) != 0,
		UopBgn:       bits(i.Lo, 8, 13),
		UopEnd:       bits(i.Lo, 21, 14),
		IterOut:      bits(i.Lo, 35, 14),
		IterIn:       bits(i.Lo, 49, 14),
		DstFactorOut: bits(i.Hi, 0, 11),
		DstFactorIn:  bits(i.Hi, 11, 11),
		SrcFactorOut: bits(i.Hi, 22, 11),
		SrcFactorIn:  bits(i.Hi, 33, 11),
		WgtFactorOut: bits(i.Hi, 44, 10),
		WgtFactorIn:  bits(i.Hi, 54, 10),
	}
}

// AsAlu decodes the record with the alu layout. The immediate is
// sign-extended from its 16-bit field.
func (i Insn) AsAlu() AluInsn {
	imm := int32(bits(i.Hi, 48, 16))
	imm = imm << 16 >> 16
	return AluInsn{
		Opcode:       i.Opcode(),
		Dep:          i.Dep(),
		UopBgn:       bits(i.Lo, 8, 13),
		UopEnd:       bits(i.Lo, 21, 14),
		IterOut:      bits(i.Lo, 35, 14),
		IterIn:       bits(i.Lo, 49, 14),
		DstFactorOut: bits(i.Hi, 0, 11),
		DstFactorIn:  bits(i.Hi, 11, 11),
		SrcFactorOut: bits(i.Hi, 22, 11),
		SrcFactorIn:  bits(i.Hi, 33, 11),
		AluOpcode:    bits(i.Hi, 44, 3),
		UseImm:       bits(i.Hi, 47, 1) != 0,
		Imm:          imm,
	}
}

// Encode packs a memory-layout instruction.
func (m MemInsn) Encode() Insn {
	var i Insn
	setBits(&i.Lo, 0, 3, m.Opcode)
	m.Dep.encode(&i.Lo)
	setBits(&i.Lo, 7, 3, m.MemoryType)
	setBits(&i.Lo, 10, 16, m.SRAMBase)
	setBits(&i.Lo, 26, 32, m.DRAMBase)
	setBits(&i.Hi, 0, 16, m.YSize)
	setBits(&i.Hi, 16, 16, m.XSize)
	setBits(&i.Hi, 32, 16, m.XStride)
	setBits(&i.Hi, 48, 4, m.YPad0)
	setBits(&i.Hi, 52, 4, m.YPad1)
	setBits(&i.Hi, 56, 4, m.XPad0)
	setBits(&i.Hi, 60, 4, m.XPad1)
	return i
}

// Encode packs a gemm-layout instruction.
func (g GemInsn) Encode() Insn {
	var i Insn
	setBits(&i.Lo, 0, 3, g.Opcode)
	g.Dep.encode(&i.Lo)
	setBits(&i.Lo, 7, 1, b2u(g.ResetReg))
	setBits(&i.Lo, 8, 13, g.UopBgn)
	setBits(&i.Lo, 21, 14, g.UopEnd)
	setBits(&i.Lo, 35, 14, g.IterOut)
	setBits(&i.Lo, 49, 14, g.IterIn)
	setBits(&i.Hi, 0, 11, g.DstFactorOut)
	setBits(&i.Hi, 11, 11, g.DstFactorIn)
	setBits(&i.Hi, 22, 11, g.SrcFactorOut)
	setBits(&i.Hi, 33, 11, g.SrcFactorIn)
	setBits(&i.Hi, 44, 10, g.WgtFactorOut)
	setBits(&i.Hi, 54, 10, g.WgtFactorIn)
	return i
}

// Encode packs an alu-layout instruction.
func (a AluInsn) Encode() Insn {
	var i Insn
	setBits(&i.Lo, 0, 3, a.Opcode)
	a.Dep.encode(&i.Lo)
	setBits(&i.Lo, 8, 13, a.UopBgn)
	setBits(&i.Lo, 21, 14, a.UopEnd)
	setBits(&i.Lo, 35, 14, a.IterOut)
	setBits(&i.Lo, 49, 14, a.IterIn)
	setBits(&i.Hi, 0, 11, a.DstFactorOut)
	setBits(&i.Hi, 11, 11, a.DstFactorIn)
	setBits(&i.Hi, 22, 11, a.SrcFactorOut)
	setBits(&i.Hi, 33, 11, a.SrcFactorIn)
	setBits(&i.Hi, 44, 3, a.AluOpcode)
	setBits(&i.Hi, 47, 1, b2u(a.UseImm))
	setBits(&i.Hi, 48, 16, uint32(a.Imm)&0xFFFF)
	return i
}

// Finish builds a FINISH instruction with the given dependency flags.
// FINISH shares the gemm layout; every other field is zero.
func Finish(dep Dep) Insn {
	return GemInsn{Opcode: OPCODE_FINISH, Dep: dep}.Encode()
}
