// Package device implements the accelerator: the per-instruction
// dispatcher and the GEMM and ALU engines, wired to the four tile
// memories, the simulated DRAM and the task-level pipeline queue.
package device

import (
	"encoding/binary"
	"fmt"

	"github.com/tensoraccel/tpa/isa"
	"github.com/tensoraccel/tpa/tile"
	"github.com/tensoraccel/tpa/tlpp"
	"github.com/tensoraccel/tpa/vmem"
)

// Device owns the four tile memories and interprets instruction streams
// placed in DRAM. Each Device is single-threaded with respect to its own
// stream; distinct Devices may run concurrently.
type Device struct {
	prof  *Profiler
	dram  *vmem.Memory
	queue *tlpp.Verifier

	inp *tile.Memory
	wgt *tile.Memory
	acc *tile.Memory
	uop *tile.Memory

	finishCounter int
}

// New returns a Device bound to the process-wide DRAM, with its own
// pipeline queue and profiler. Devices share nothing but DRAM, so Run is
// reentrant across distinct Devices without further coordination.
func New() *Device {
	return NewWith(vmem.Global(), tlpp.NewVerifier(), &Profiler{})
}

// NewWith returns a Device with explicit collaborators. Tests use it to
// run against private DRAM and queue instances.
func NewWith(dram *vmem.Memory, queue *tlpp.Verifier, prof *Profiler) *Device {
	return &Device{
		prof:  prof,
		dram:  dram,
		queue: queue,
		inp:   tile.New(isa.INP_WIDTH, isa.BATCH*isa.BLOCK_IN, isa.INP_BUFF_DEPTH),
		wgt:   tile.New(isa.WGT_WIDTH, isa.BLOCK_IN*isa.BLOCK_OUT, isa.WGT_BUFF_DEPTH),
		acc:   tile.New(isa.ACC_WIDTH, isa.BATCH*isa.BLOCK_OUT, isa.ACC_BUFF_DEPTH),
		uop:   tile.New(isa.UOP_WIDTH, 1, isa.UOP_BUFF_DEPTH),
	}
}

// FinishCounter returns the number of FINISH instructions retired by the
// last Run.
func (d *Device) FinishCounter() int { return d.finishCounter }

// Profiler returns the device's counters.
func (d *Device) Profiler() *Profiler { return d.prof }

// Inp returns the input tile memory.
func (d *Device) Inp() *tile.Memory { return d.inp }

// Wgt returns the weight tile memory.
func (d *Device) Wgt() *tile.Memory { return d.wgt }

// Acc returns the accumulator tile memory.
func (d *Device) Acc() *tile.Memory { return d.acc }

// Uop returns the micro-op tile memory.
func (d *Device) Uop() *tile.Memory { return d.uop }

// Run decodes insnCount instructions starting at the DRAM physical
// address, pushes them to the pipeline queue in program order and blocks
// until the queue drains. waitCycles is advisory and not enforced.
// Returns 0 on success; nonzero is reserved for timeout.
func (d *Device) Run(insnPhyAddr uint32, insnCount uint32, waitCycles uint32) int {
	_ = waitCycles
	stream := d.dram.GetAddr(insnPhyAddr)
	d.finishCounter = 0
	for i := 0; i < int(insnCount); i++ {
		d.queue.Push(isa.InsnFromBytes(stream[i*isa.INSN_BYTES:]))
	}
	d.queue.Synchronize(runInsn, d)
	return 0
}

// RunOne pushes a single instruction and drains the queue. Debuggers use
// it to step a stream one instruction at a time; dependency tokens
// produced by earlier steps persist, so any stream whose pops follow
// their pushes in program order steps cleanly.
func (d *Device) RunOne(insn isa.Insn) {
	d.queue.Push(insn)
	d.queue.Synchronize(runInsn, d)
}

// runInsn is the execution callback handed to the pipeline queue.
func runInsn(insn isa.Insn, dev any) {
	d := dev.(*Device)
	switch insn.Opcode() {
	case isa.OPCODE_LOAD:
		d.runLoad(insn.AsMem())
	case isa.OPCODE_STORE:
		d.runStore(insn.AsMem())
	case isa.OPCODE_GEMM:
		d.runGEMM(insn.AsGem())
	case isa.OPCODE_ALU:
		d.runALU(insn.AsAlu())
	case isa.OPCODE_FINISH:
		d.finishCounter++
	default:
		panic(fmt.Sprintf("device: unknown opcode %d", insn.Opcode()))
	}
}

func (d *Device) runLoad(op isa.MemInsn) {
	if op.XSize == 0 {
		return
	}
	switch op.MemoryType {
	case isa.MEM_ID_INP:
		d.inp.Load(op, d.dram, &d.prof.InpLoadBytes, d.prof.SkipExec())
	case isa.MEM_ID_WGT:
		d.wgt.Load(op, d.dram, &d.prof.WgtLoadBytes, d.prof.SkipExec())
	case isa.MEM_ID_ACC:
		d.acc.Load(op, d.dram, &d.prof.AccLoadBytes, d.prof.SkipExec())
	case isa.MEM_ID_ACC_8BIT:
		d.acc.LoadInt8(op, d.dram, &d.prof.AccLoadBytes, d.prof.SkipExec())
	case isa.MEM_ID_UOP:
		// Micro-ops are loaded even under skip-exec: later instructions
		// that do execute read them.
		d.uop.Load(op, d.dram, &d.prof.UopLoadBytes, false)
	default:
		panic(fmt.Sprintf("device: unknown memory_type %d on load", op.MemoryType))
	}
}

func (d *Device) runStore(op isa.MemInsn) {
	if op.XSize == 0 {
		return
	}
	if op.MemoryType != isa.MEM_ID_OUT {
		panic(fmt.Sprintf("device: store does not support memory_type %d", op.MemoryType))
	}
	d.prof.OutStoreBytes += uint64(op.XSize) * uint64(op.YSize) *
		isa.BATCH * isa.BLOCK_OUT * isa.OUT_WIDTH / 8
	if d.prof.SkipExec() {
		return
	}
	d.acc.TruncStore(op, d.dram, isa.OUT_WIDTH)
}

// readUop fetches micro-op uindex from the micro-op tile.
func (d *Device) readUop(uindex uint32) isa.Uop {
	return isa.DecodeUop(binary.LittleEndian.Uint32(d.uop.BeginPtr(uindex)))
}
