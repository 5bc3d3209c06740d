package disassembler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tensoraccel/tpa/isa"
)

func TestDisassembleStream(t *testing.T) {
	assert := assert.New(t)

	stream := append(
		isa.MemInsn{
			Opcode:     isa.OPCODE_LOAD,
			MemoryType: isa.MEM_ID_INP,
			SRAMBase:   0x10,
			DRAMBase:   0x100,
			YSize:      2,
			XSize:      3,
			XStride:    4,
			XPad0:      1,
			XPad1:      1,
		}.Encode().Bytes(),
		isa.Finish(isa.Dep{PopPrev: true}).Bytes()...,
	)

	entries := Disassemble(stream)
	assert.Len(entries, 2)

	assert.Equal("0000: ....  LOAD INP  sram=0x0010 dram=0x00000100 y=2 x=3 stride=4 pad=[0 0 1 1]", entries[0].String())
	assert.Equal("0001: p...  FINISH", entries[1].String())
}

func TestDisassembleComputeForms(t *testing.T) {
	assert := assert.New(t)

	gemm := Entry{Raw: isa.GemInsn{
		Opcode:  isa.OPCODE_GEMM,
		UopEnd:  2,
		IterOut: 3,
		IterIn:  4,
	}.Encode()}
	assert.Contains(gemm.String(), "GEMM uop=[0,2) iter=(3,4)")

	reset := Entry{Raw: isa.GemInsn{
		Opcode:   isa.OPCODE_GEMM,
		ResetReg: true,
		UopEnd:   1,
		IterOut:  1,
		IterIn:   1,
	}.Encode()}
	assert.Contains(reset.String(), "GEMM reset")

	alu := Entry{Raw: isa.AluInsn{
		Opcode:    isa.OPCODE_ALU,
		UopEnd:    1,
		IterOut:   1,
		IterIn:    1,
		AluOpcode: isa.ALU_SHR,
		UseImm:    true,
		Imm:       -3,
	}.Encode()}
	assert.Contains(alu.String(), "ALU SHR imm=-3")
}

func TestInvalidOpcodeRendersAsData(t *testing.T) {
	e := Entry{Raw: isa.Insn{Lo: 7}}
	assert.Contains(t, e.String(), "invalid opcode")
}

func TestDumpOneLinePerInsn(t *testing.T) {
	stream := append(isa.Finish(isa.Dep{}).Bytes(), isa.Finish(isa.Dep{}).Bytes()...)
	out := Dump(stream)
	assert.Equal(t, 2, strings.Count(out, "\n"))
}
