package device

import (
	"fmt"

	"github.com/tensoraccel/tpa/bitpack"
	"github.com/tensoraccel/tpa/isa"
)

// aluFunc is one elementwise ALU operation on signed 32-bit values.
type aluFunc func(a, b int32) int32

// aluOp selects the operation once per instruction so the lane loop runs
// a single case.
func aluOp(opcode uint32) aluFunc {
	switch opcode {
	case isa.ALU_ADD:
		return func(a, b int32) int32 { return a + b }
	case isa.ALU_MAX:
		return func(a, b int32) int32 {
			if a > b {
				return a
			}
			return b
		}
	case isa.ALU_MIN:
		return func(a, b int32) int32 {
			if a < b {
				return a
			}
			return b
		}
	case isa.ALU_SHR:
		// A negative shift count shifts left.
		return func(a, b int32) int32 {
			if b >= 0 {
				return a >> uint32(b)
			}
			return a << uint32(-b)
		}
	case isa.ALU_MUL:
		return func(a, b int32) int32 { return a * b }
	}
	panic(fmt.Sprintf("device: unknown alu opcode %d", opcode))
}

// runALU executes one ALU instruction: for every (iter_out, iter_in, uop)
// triple the destination accumulator element is combined lane by lane
// with either the source accumulator element or the immediate.
func (d *Device) runALU(op isa.AluInsn) {
	f := aluOp(op.AluOpcode)
	d.prof.AluOps += uint64(op.IterOut) * uint64(op.IterIn) * uint64(op.UopEnd-op.UopBgn)
	if d.prof.SkipExec() {
		return
	}
	for y := uint32(0); y < op.IterOut; y++ {
		for x := uint32(0); x < op.IterIn; x++ {
			for uindex := op.UopBgn; uindex < op.UopEnd; uindex++ {
				u := d.readUop(uindex)
				dstIdx := u.DstIdx + y*op.DstFactorOut + x*op.DstFactorIn
				srcIdx := u.SrcIdx + y*op.SrcFactorOut + x*op.SrcFactorIn

				dst := bitpack.New(isa.ACC_WIDTH, d.acc.BeginPtr(dstIdx))
				src := bitpack.New(isa.ACC_WIDTH, d.acc.BeginPtr(srcIdx))

				for k := uint32(0); k < isa.BATCH*isa.BLOCK_OUT; k++ {
					if op.UseImm {
						dst.SetSigned(k, f(dst.GetSigned(k), op.Imm))
					} else {
						dst.SetSigned(k, f(dst.GetSigned(k), src.GetSigned(k)))
					}
				}
			}
		}
	}
}
