package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tensoraccel/tpa/isa"
)

// aluImm builds a one-triple ALU instruction with an immediate operand,
// micro-op (dst=0, src=0) preloaded by the caller.
func aluImm(opcode uint32, imm int32) isa.Insn {
	return isa.AluInsn{
		Opcode:    isa.OPCODE_ALU,
		UopEnd:    1,
		IterOut:   1,
		IterIn:    1,
		AluOpcode: opcode,
		UseImm:    true,
		Imm:       imm,
	}.Encode()
}

func (h *harness) runALUImm(t *testing.T, opcode uint32, imm int32) {
	t.Helper()
	uops := h.dram.Alloc(isa.UOP_ELEM_BYTES)
	putUops(uops, isa.Uop{})
	h.run(t, uopLoad(uops, 1), aluImm(opcode, imm))
	h.dram.Free(uops)
}

func TestALUMaxImmediate(t *testing.T) {
	assert := assert.New(t)
	h := newHarness()

	h.setAccLanes(t, 0, -5, -1, 3, 7)
	h.runALUImm(t, isa.ALU_MAX, 0)

	want := []int32{0, 0, 3, 7}
	for lane, v := range want {
		assert.Equal(v, h.accLane(0, uint32(lane)), "lane %d", lane)
	}
	assert.Equal(uint64(1), h.prof.AluOps)
}

func TestALUMinImmediate(t *testing.T) {
	assert := assert.New(t)
	h := newHarness()

	h.setAccLanes(t, 0, -5, -1, 3, 7)
	h.runALUImm(t, isa.ALU_MIN, 0)

	want := []int32{-5, -1, 0, 0}
	for lane, v := range want {
		assert.Equal(v, h.accLane(0, uint32(lane)), "lane %d", lane)
	}
}

func TestALUAddZeroIsNoOp(t *testing.T) {
	assert := assert.New(t)
	h := newHarness()

	h.setAccLanes(t, 0, -100, 0, 100, 2147483647)
	h.runALUImm(t, isa.ALU_ADD, 0)

	want := []int32{-100, 0, 100, 2147483647}
	for lane, v := range want {
		assert.Equal(v, h.accLane(0, uint32(lane)), "lane %d", lane)
	}
}

func TestALUShiftRightNegativeShiftsLeft(t *testing.T) {
	assert := assert.New(t)
	h := newHarness()

	h.setAccLanes(t, 0, 1)
	h.runALUImm(t, isa.ALU_SHR, -3)
	assert.Equal(int32(8), h.accLane(0, 0))
}

func TestALUShiftRightIsArithmetic(t *testing.T) {
	assert := assert.New(t)
	h := newHarness()

	h.setAccLanes(t, 0, -256, 256, -1, 1)
	h.runALUImm(t, isa.ALU_SHR, 4)

	want := []int32{-16, 16, -1, 0}
	for lane, v := range want {
		assert.Equal(v, h.accLane(0, uint32(lane)), "lane %d", lane)
	}
}

func TestALUMulWraps(t *testing.T) {
	assert := assert.New(t)
	h := newHarness()

	h.setAccLanes(t, 0, 1<<30)
	h.runALUImm(t, isa.ALU_MUL, 4)
	// 2^32 wraps to zero in 32-bit two's complement.
	assert.Equal(int32(0), h.accLane(0, 0))
}

func TestALUTensorTensorAdd(t *testing.T) {
	// use_imm = 0 reads the second operand from the accumulator at the
	// source index, not from the input tile.
	assert := assert.New(t)
	h := newHarness()

	h.setAccLanes(t, 0, 10, 20, 30)
	h.setAccLanes(t, 1, 1, 2, 3)

	uops := h.dram.Alloc(isa.UOP_ELEM_BYTES)
	putUops(uops, isa.Uop{DstIdx: 0, SrcIdx: 1})
	add := isa.AluInsn{
		Opcode:    isa.OPCODE_ALU,
		UopEnd:    1,
		IterOut:   1,
		IterIn:    1,
		AluOpcode: isa.ALU_ADD,
	}.Encode()
	h.run(t, uopLoad(uops, 1), add)

	want := []int32{11, 22, 33}
	for lane, v := range want {
		assert.Equal(v, h.accLane(0, uint32(lane)), "lane %d", lane)
	}
	// The source element is read-only.
	assert.Equal(int32(1), h.accLane(1, 0))
}

func TestALUIterationFactors(t *testing.T) {
	// Two inner iterations, destination advancing by one element each:
	// both elements gain the immediate.
	assert := assert.New(t)
	h := newHarness()

	h.setAccLanes(t, 0, 100)
	h.setAccLanes(t, 1, 200)

	uops := h.dram.Alloc(isa.UOP_ELEM_BYTES)
	putUops(uops, isa.Uop{})
	add := isa.AluInsn{
		Opcode:      isa.OPCODE_ALU,
		UopEnd:      1,
		IterOut:     1,
		IterIn:      2,
		DstFactorIn: 1,
		SrcFactorIn: 1,
		AluOpcode:   isa.ALU_ADD,
		UseImm:      true,
		Imm:         5,
	}.Encode()
	h.run(t, uopLoad(uops, 1), add)

	assert.Equal(int32(105), h.accLane(0, 0))
	assert.Equal(int32(205), h.accLane(1, 0))
	assert.Equal(uint64(2), h.prof.AluOps)
}
