// Package tlpp provides the task-level pipeline queue between instruction
// decode and execution. Instructions are pushed in program order, sorted
// onto three virtual cores (load, compute, store), and drained in an
// order consistent with the dependency flags each instruction carries:
// pop flags block a core until the neighboring core has pushed the
// matching token, push flags produce tokens after an instruction retires.
package tlpp

import (
	"fmt"

	"github.com/tensoraccel/tpa/isa"
)

// RunFunc executes one instruction against a device.
type RunFunc func(insn isa.Insn, dev any)

type core int

const (
	coreLoad core = iota
	coreCompute
	coreStore
	numCores
)

func (c core) String() string {
	switch c {
	case coreLoad:
		return "load"
	case coreCompute:
		return "compute"
	case coreStore:
		return "store"
	}
	return "?"
}

// classify maps an instruction to the core that executes it. Input and
// weight loads run on the load core, stores on the store core; everything
// else, including micro-op and accumulator loads, belongs to compute.
func classify(insn isa.Insn) core {
	switch insn.Opcode() {
	case isa.OPCODE_LOAD:
		switch insn.MemoryType() {
		case isa.MEM_ID_INP, isa.MEM_ID_WGT:
			return coreLoad
		}
		return coreCompute
	case isa.OPCODE_STORE:
		return coreStore
	}
	return coreCompute
}

// Verifier queues instructions and replays them under the declared
// partial order. Within one core instructions retire strictly in push
// order; across cores the token counters decide. A Verifier carries one
// device's stream: it is not safe for concurrent use, and mixing two
// streams in one instance would let their tokens satisfy each other's
// dependencies.
type Verifier struct {
	queues [numCores][]isa.Insn

	// prevTok[c] counts tokens pushed toward core c by core c-1,
	// nextTok[c] counts tokens pushed toward core c by core c+1.
	prevTok [numCores]int
	nextTok [numCores]int
}

// NewVerifier returns an empty queue set.
func NewVerifier() *Verifier {
	return &Verifier{}
}

// Push enqueues one instruction for later execution.
func (v *Verifier) Push(insn isa.Insn) {
	c := classify(insn)
	v.queues[c] = append(v.queues[c], insn)
}

// Pending returns the number of queued instructions.
func (v *Verifier) Pending() int {
	n := 0
	for _, q := range v.queues {
		n += len(q)
	}
	return n
}

// runnable reports whether the head instruction of core c can retire now.
func (v *Verifier) runnable(c core, insn isa.Insn) bool {
	if insn.PopPrevDep() && v.prevTok[c] == 0 {
		return false
	}
	if insn.PopNextDep() && v.nextTok[c] == 0 {
		return false
	}
	return true
}

// retire consumes the head instruction's pop tokens and produces its push
// tokens. The load core has no previous neighbor and the store core no
// next; a pop or push across those edges is a caller error surfaced as a
// deadlock when popped and silently meaningless when pushed off the end.
func (v *Verifier) retire(c core, insn isa.Insn) {
	if insn.PopPrevDep() {
		v.prevTok[c]--
	}
	if insn.PopNextDep() {
		v.nextTok[c]--
	}
	if insn.PushPrevDep() && c > coreLoad {
		v.nextTok[c-1]++
	}
	if insn.PushNextDep() && c < coreStore {
		v.prevTok[c+1]++
	}
}

// Synchronize drains all queues, invoking run once per instruction in an
// order that satisfies every declared dependency, and returns when empty.
// A full pass with no runnable head means the dependency flags can never
// be satisfied, which is a fatal caller error.
func (v *Verifier) Synchronize(run RunFunc, dev any) {
	for v.Pending() > 0 {
		progressed := false
		for c := coreLoad; c < numCores; c++ {
			for len(v.queues[c]) > 0 {
				insn := v.queues[c][0]
				if !v.runnable(c, insn) {
					break
				}
				v.queues[c] = v.queues[c][1:]
				run(insn, dev)
				v.retire(c, insn)
				progressed = true
			}
		}
		if !progressed {
			panic(fmt.Sprintf("tlpp: dependency deadlock with %d instructions pending", v.Pending()))
		}
	}
}
