package device

import (
	"github.com/tensoraccel/tpa/bitpack"
	"github.com/tensoraccel/tpa/isa"
)

// runGEMM executes one GEMM instruction: the nested-loop controller walks
// (iter_out, iter_in, uop) triples, and for each triple either clears the
// addressed accumulator element or folds a BATCH x BLOCK_IN by
// BLOCK_IN x BLOCK_OUT product into it. Arithmetic is 32-bit wrapping.
func (d *Device) runGEMM(op isa.GemInsn) {
	if op.ResetReg {
		if d.prof.SkipExec() {
			return
		}
		for y := uint32(0); y < op.IterOut; y++ {
			for x := uint32(0); x < op.IterIn; x++ {
				for uindex := op.UopBgn; uindex < op.UopEnd; uindex++ {
					u := d.readUop(uindex)
					accIdx := u.DstIdx + y*op.DstFactorOut + x*op.DstFactorIn
					acc := bitpack.New(isa.ACC_WIDTH, d.acc.BeginPtr(accIdx))
					for i := uint32(0); i < isa.BATCH*isa.BLOCK_OUT; i++ {
						acc.SetSigned(i, 0)
					}
				}
			}
		}
		return
	}

	d.prof.GemmOps += uint64(op.IterOut) * uint64(op.IterIn) * uint64(op.UopEnd-op.UopBgn)
	if d.prof.SkipExec() {
		return
	}
	for y := uint32(0); y < op.IterOut; y++ {
		for x := uint32(0); x < op.IterIn; x++ {
			for uindex := op.UopBgn; uindex < op.UopEnd; uindex++ {
				u := d.readUop(uindex)
				accIdx := u.DstIdx + y*op.DstFactorOut + x*op.DstFactorIn
				inpIdx := u.SrcIdx + y*op.SrcFactorOut + x*op.SrcFactorIn
				wgtIdx := u.WgtIdx + y*op.WgtFactorOut + x*op.WgtFactorIn

				acc := bitpack.New(isa.ACC_WIDTH, d.acc.BeginPtr(accIdx))
				inp := bitpack.New(isa.INP_WIDTH, d.inp.BeginPtr(inpIdx))
				wgt := bitpack.New(isa.WGT_WIDTH, d.wgt.BeginPtr(wgtIdx))

				for i := uint32(0); i < isa.BATCH; i++ {
					for j := uint32(0); j < isa.BLOCK_OUT; j++ {
						sum := acc.GetSigned(i*isa.BLOCK_OUT + j)
						for k := uint32(0); k < isa.BLOCK_IN; k++ {
							sum += inp.GetSigned(i*isa.BLOCK_IN+k) *
								wgt.GetSigned(j*isa.BLOCK_IN+k)
						}
						acc.SetSigned(i*isa.BLOCK_OUT+j, sum)
					}
				}
			}
		}
	}
}
