// Package driver exposes the host-facing API of the simulator: buffer
// allocation in simulated DRAM, host copies, and device lifecycle. It is
// the surface host programs and the tools build on.
package driver

import (
	"github.com/tensoraccel/tpa/device"
	"github.com/tensoraccel/tpa/vmem"
)

// MemAlloc reserves size bytes of simulated DRAM. The cached hint is
// advisory and has no observable effect.
func MemAlloc(size int, cached bool) *vmem.Block {
	_ = cached
	return vmem.Global().Alloc(size)
}

// MemFree releases a buffer obtained from MemAlloc.
func MemFree(b *vmem.Block) {
	vmem.Global().Free(b)
}

// MemGetPhyAddr returns the device-visible physical address of a buffer.
func MemGetPhyAddr(b *vmem.Block) uint32 {
	return vmem.Global().GetPhyAddr(b)
}

// MemCopyFromHost copies host bytes into a DRAM buffer.
func MemCopyFromHost(dst *vmem.Block, src []byte) {
	copy(dst.Data, src)
}

// MemCopyToHost copies a DRAM buffer back to host bytes.
func MemCopyToHost(dst []byte, src *vmem.Block) {
	copy(dst, src.Data)
}

// FlushCache is a no-op by contract: the simulated DRAM is coherent.
func FlushCache(b *vmem.Block, phy uint32, size int) {}

// InvalidateCache is a no-op by contract.
func InvalidateCache(b *vmem.Block, phy uint32, size int) {}

// DeviceAlloc returns a new device bound to the process-wide DRAM, with
// its own pipeline queue and profiler.
func DeviceAlloc() *device.Device {
	return device.New()
}

// DeviceFree releases a device. The tile memories die with it; nothing
// else to unwind.
func DeviceFree(d *device.Device) {}

// DeviceRun interprets insnCount instructions starting at the given DRAM
// physical address. waitCycles is advisory. Returns 0 on success.
func DeviceRun(d *device.Device, insnPhyAddr, insnCount, waitCycles uint32) int {
	return d.Run(insnPhyAddr, insnCount, waitCycles)
}

// ProfilerClear zeroes a device's profiler counters.
func ProfilerClear(d *device.Device) {
	d.Profiler().Clear()
}

// ProfilerStatus returns a device's profiler counters as JSON.
func ProfilerStatus(d *device.Device) string {
	return d.Profiler().Status()
}

// ProfilerDebugMode sets a device's profiler debug flag bits.
func ProfilerDebugMode(d *device.Device, flag int64) {
	d.Profiler().DebugFlag = flag
}
