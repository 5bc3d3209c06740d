package device

import "encoding/json"

// Debug flag bits.
const (
	SKIP_EXEC = 1 // count work but suppress state changes
)

// Profiler accumulates transfer and compute statistics across runs.
// Counters keep accumulating until Clear. Each device owns one, so
// concurrently running devices never observe each other's counts.
type Profiler struct {
	InpLoadBytes  uint64 `json:"inp_load_bytes"`
	WgtLoadBytes  uint64 `json:"wgt_load_bytes"`
	AccLoadBytes  uint64 `json:"acc_load_bytes"`
	UopLoadBytes  uint64 `json:"uop_load_bytes"`
	OutStoreBytes uint64 `json:"out_store_bytes"`
	GemmOps       uint64 `json:"gemm_ops"`
	AluOps        uint64 `json:"alu_ops"`

	// DebugFlag is not part of the snapshot and survives Clear.
	DebugFlag int64 `json:"-"`
}

// Clear zeroes every counter but leaves the debug flag in place.
func (p *Profiler) Clear() {
	*p = Profiler{DebugFlag: p.DebugFlag}
}

// SkipExec reports whether the skip-execution debug mode is on.
func (p *Profiler) SkipExec() bool {
	return p.DebugFlag&SKIP_EXEC != 0
}

// Status returns a JSON snapshot of the counters.
func (p *Profiler) Status() string {
	b, err := json.MarshalIndent(p, "", " ")
	if err != nil {
		panic(err)
	}
	return string(b)
}
