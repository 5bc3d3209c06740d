// Package disassembler renders decoded instruction streams as text, one
// line per 128-bit record.
package disassembler

import (
	"fmt"
	"strings"

	"github.com/tensoraccel/tpa/isa"
)

// Entry is one decoded instruction at its position in the stream.
type Entry struct {
	Index int
	Raw   isa.Insn
}

// Disassemble decodes every whole record in data.
func Disassemble(data []byte) []Entry {
	entries := make([]Entry, 0, len(data)/isa.INSN_BYTES)
	for i := 0; i+isa.INSN_BYTES <= len(data); i += isa.INSN_BYTES {
		entries = append(entries, Entry{
			Index: i / isa.INSN_BYTES,
			Raw:   isa.InsnFromBytes(data[i:]),
		})
	}
	return entries
}

// deps renders the dependency flags as a compact four-letter mask,
// e.g. ".n.N" for pop_next + push_next.
func deps(d isa.Dep) string {
	flag := func(on bool, c byte) byte {
		if on {
			return c
		}
		return '.'
	}
	return string([]byte{
		flag(d.PopPrev, 'p'),
		flag(d.PopNext, 'n'),
		flag(d.PushPrev, 'P'),
		flag(d.PushNext, 'N'),
	})
}

func (e Entry) instruction() string {
	switch e.Raw.Opcode() {
	case isa.OPCODE_LOAD, isa.OPCODE_STORE:
		op := e.Raw.AsMem()
		s := fmt.Sprintf("%s %-4s sram=0x%04X dram=0x%08X y=%d x=%d stride=%d",
			isa.OpcodeName(op.Opcode), isa.MemIDName(op.MemoryType),
			op.SRAMBase, op.DRAMBase, op.YSize, op.XSize, op.XStride)
		if op.YPad0|op.YPad1|op.XPad0|op.XPad1 != 0 {
			s += fmt.Sprintf(" pad=[%d %d %d %d]", op.YPad0, op.YPad1, op.XPad0, op.XPad1)
		}
		return s
	case isa.OPCODE_GEMM:
		op := e.Raw.AsGem()
		if op.ResetReg {
			return fmt.Sprintf("GEMM reset uop=[%d,%d) iter=(%d,%d) dst=(%d,%d)",
				op.UopBgn, op.UopEnd, op.IterOut, op.IterIn,
				op.DstFactorOut, op.DstFactorIn)
		}
		return fmt.Sprintf("GEMM uop=[%d,%d) iter=(%d,%d) dst=(%d,%d) src=(%d,%d) wgt=(%d,%d)",
			op.UopBgn, op.UopEnd, op.IterOut, op.IterIn,
			op.DstFactorOut, op.DstFactorIn,
			op.SrcFactorOut, op.SrcFactorIn,
			op.WgtFactorOut, op.WgtFactorIn)
	case isa.OPCODE_ALU:
		op := e.Raw.AsAlu()
		operand := "acc"
		if op.UseImm {
			operand = fmt.Sprintf("imm=%d", op.Imm)
		}
		return fmt.Sprintf("ALU %s %s uop=[%d,%d) iter=(%d,%d) dst=(%d,%d) src=(%d,%d)",
			isa.ALUOpName(op.AluOpcode), operand,
			op.UopBgn, op.UopEnd, op.IterOut, op.IterIn,
			op.DstFactorOut, op.DstFactorIn,
			op.SrcFactorOut, op.SrcFactorIn)
	case isa.OPCODE_FINISH:
		return "FINISH"
	}
	return fmt.Sprintf("db 0x%016X%016X ; invalid opcode", e.Raw.Hi, e.Raw.Lo)
}

func (e Entry) String() string {
	return fmt.Sprintf("%04d: %s  %s", e.Index, deps(e.Raw.Dep()), e.instruction())
}

// Dump renders a whole stream, one entry per line.
func Dump(data []byte) string {
	var sb strings.Builder
	for _, e := range Disassemble(data) {
		sb.WriteString(e.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}
