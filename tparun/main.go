package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tensoraccel/tpa/binfile"
	"github.com/tensoraccel/tpa/device"
	"github.com/tensoraccel/tpa/dis/disassembler"
	"github.com/tensoraccel/tpa/driver"
	"github.com/tensoraccel/tpa/isa"
)

// Buffer file names produced by the compiler and consumed by run.
const (
	fileInput    = "input.bin"
	fileWeight   = "weight.bin"
	fileAcc      = "accumulator.bin"
	fileUop      = "uop.bin"
	fileInsn     = "instructions.bin"
	fileExpected = "expected_out.bin"
)

// defaultOutSize bounds the output buffer when no expected file fixes it.
const defaultOutSize = 16 * 256

func main() {
	rootCmd := &cobra.Command{
		Use:   "tparun",
		Short: "tparun — run instruction streams on the accelerator simulator",
	}
	rootCmd.AddCommand(runCmd(), disCmd(), genCmd())
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	var dir string
	var verbose bool
	var skipExec bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Load the buffer files, run the device, compare expected output",
		RunE: func(cmd *cobra.Command, args []string) error {
			inp, err := binfile.ReadInt8(filepath.Join(dir, fileInput))
			if err != nil {
				return err
			}
			wgt, err := binfile.ReadInt8(filepath.Join(dir, fileWeight))
			if err != nil {
				return err
			}
			acc, err := binfile.ReadInt32(filepath.Join(dir, fileAcc))
			if err != nil {
				return err
			}
			uops, err := binfile.ReadUops(filepath.Join(dir, fileUop))
			if err != nil {
				return err
			}
			insns, err := binfile.ReadInsns(filepath.Join(dir, fileInsn))
			if err != nil {
				return err
			}
			// Absent expected output is not an error; it only fixes the
			// output buffer size.
			expected, err := binfile.ReadInt8(filepath.Join(dir, fileExpected))
			if err != nil {
				fmt.Printf("Warning: no %s, using a %d-byte output buffer\n", fileExpected, defaultOutSize)
				expected = nil
			}
			outSize := defaultOutSize
			if len(expected) > 0 {
				outSize = len(expected)
			}

			// Allocation order is part of the contract with the
			// compiler: physical addresses are monotonic, so the
			// instruction stream's dram_base fields assume exactly this
			// sequence on a fresh simulator.
			memInp := driver.MemAlloc(len(inp), true)
			memWgt := driver.MemAlloc(len(wgt), true)
			memOut := driver.MemAlloc(outSize, true)
			memUop := driver.MemAlloc(len(uops)*isa.UOP_ELEM_BYTES, true)
			memAcc := driver.MemAlloc(len(acc)*4, true)
			memInsn := driver.MemAlloc(len(insns)*isa.INSN_BYTES, true)

			driver.MemCopyFromHost(memInp, binfile.Int8Bytes(inp))
			driver.MemCopyFromHost(memWgt, binfile.Int8Bytes(wgt))
			driver.MemCopyFromHost(memAcc, binfile.Int32Bytes(acc))
			uopBytes := make([]byte, 0, len(uops)*isa.UOP_ELEM_BYTES)
			for _, u := range uops {
				enc := u.Encode()
				uopBytes = append(uopBytes, byte(enc), byte(enc>>8), byte(enc>>16), byte(enc>>24))
			}
			driver.MemCopyFromHost(memUop, uopBytes)
			insnBytes := make([]byte, 0, len(insns)*isa.INSN_BYTES)
			for _, insn := range insns {
				insnBytes = append(insnBytes, insn.Bytes()...)
			}
			driver.MemCopyFromHost(memInsn, insnBytes)

			if verbose {
				fmt.Printf("inp=0x%08X wgt=0x%08X out=0x%08X uop=0x%08X acc=0x%08X insn=0x%08X\n",
					driver.MemGetPhyAddr(memInp), driver.MemGetPhyAddr(memWgt),
					driver.MemGetPhyAddr(memOut), driver.MemGetPhyAddr(memUop),
					driver.MemGetPhyAddr(memAcc), driver.MemGetPhyAddr(memInsn))
				fmt.Print(disassembler.Dump(insnBytes))
			}

			dev := driver.DeviceAlloc()
			driver.ProfilerClear(dev)
			if skipExec {
				driver.ProfilerDebugMode(dev, device.SKIP_EXEC)
			}

			status := driver.DeviceRun(dev, driver.MemGetPhyAddr(memInsn), uint32(len(insns)), 0)
			fmt.Printf("Execution returned %d\n", status)

			out := make([]byte, outSize)
			driver.MemCopyToHost(out, memOut)

			driver.MemFree(memInp)
			driver.MemFree(memWgt)
			driver.MemFree(memOut)
			driver.MemFree(memUop)
			driver.MemFree(memAcc)
			driver.MemFree(memInsn)

			if expected != nil {
				mismatches := 0
				for i := range expected {
					if int8(out[i]) != expected[i] {
						if mismatches == 0 {
							fmt.Printf("First divergence at element %d: got %d, want %d\n",
								i, int8(out[i]), expected[i])
						}
						mismatches++
					}
				}
				if mismatches == 0 {
					fmt.Println("Output matches expected")
				} else {
					fmt.Printf("Output differs from expected in %d of %d elements\n",
						mismatches, len(expected))
				}
			}

			fmt.Println(driver.ProfilerStatus(dev))
			driver.DeviceFree(dev)
			return nil
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "Directory holding the buffer files")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print addresses and disassembly")
	cmd.Flags().BoolVar(&skipExec, "skip-exec", false, "Count work without executing")
	return cmd
}

func disCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dis <file>",
		Short: "Disassemble an instruction stream file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			fmt.Print(disassembler.Dump(data))
			return nil
		},
	}
	return cmd
}

func genCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "gen",
		Short: "Write a demo example: one tile matmul with ReLU and store",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return err
			}
			return writeDemo(dir)
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "Destination directory")
	return cmd
}

// writeDemo emits the six buffer files for a single-tile matrix product:
// input [1..16] against all-ones weights, zero accumulator seed, ReLU,
// truncating store. The dram_base fields assume the run command's
// allocation order on a fresh simulator.
func writeDemo(dir string) error {
	inp := make([]int8, isa.BLOCK_IN)
	for i := range inp {
		inp[i] = int8(i + 1)
	}
	wgt := make([]int8, isa.BLOCK_IN*isa.BLOCK_OUT)
	for i := range wgt {
		wgt[i] = 1
	}
	acc := make([]int32, isa.BLOCK_OUT)
	uops := []isa.Uop{{}}

	// Predicted physical addresses: one page per buffer, in the run
	// command's allocation order, starting at the first page.
	const page = isa.PAGE_BYTES
	addrInp := uint32(1 * page)
	addrWgt := uint32(2 * page)
	addrOut := uint32(3 * page)
	addrUop := uint32(4 * page)
	addrAcc := uint32(5 * page)

	insns := []isa.Insn{
		isa.MemInsn{Opcode: isa.OPCODE_LOAD, MemoryType: isa.MEM_ID_UOP,
			DRAMBase: addrUop / isa.UOP_ELEM_BYTES, YSize: 1, XSize: 1, XStride: 1}.Encode(),
		isa.MemInsn{Opcode: isa.OPCODE_LOAD, MemoryType: isa.MEM_ID_INP,
			DRAMBase: addrInp / isa.INP_ELEM_BYTES, YSize: 1, XSize: 1, XStride: 1}.Encode(),
		isa.MemInsn{Opcode: isa.OPCODE_LOAD, MemoryType: isa.MEM_ID_WGT,
			DRAMBase: addrWgt / isa.WGT_ELEM_BYTES, YSize: 1, XSize: 1, XStride: 1}.Encode(),
		isa.MemInsn{Opcode: isa.OPCODE_LOAD, MemoryType: isa.MEM_ID_ACC,
			DRAMBase: addrAcc / isa.ACC_ELEM_BYTES, YSize: 1, XSize: 1, XStride: 1}.Encode(),
		isa.GemInsn{Opcode: isa.OPCODE_GEMM, UopEnd: 1, IterOut: 1, IterIn: 1}.Encode(),
		isa.AluInsn{Opcode: isa.OPCODE_ALU, UopEnd: 1, IterOut: 1, IterIn: 1,
			AluOpcode: isa.ALU_MAX, UseImm: true, Imm: 0}.Encode(),
		isa.MemInsn{Opcode: isa.OPCODE_STORE, MemoryType: isa.MEM_ID_OUT,
			DRAMBase: addrOut / isa.OUT_ELEM_BYTES, YSize: 1, XSize: 1, XStride: 1}.Encode(),
		isa.Finish(isa.Dep{}),
	}

	// Expected output, computed the way the device computes it: the dot
	// product through ReLU, truncated to the output width.
	expected := make([]int8, isa.BLOCK_OUT)
	var dot int32
	for _, v := range inp {
		dot += int32(v)
	}
	if dot < 0 {
		dot = 0
	}
	for j := range expected {
		expected[j] = int8(dot)
	}

	if err := binfile.WriteInt8(filepath.Join(dir, fileInput), inp); err != nil {
		return err
	}
	if err := binfile.WriteInt8(filepath.Join(dir, fileWeight), wgt); err != nil {
		return err
	}
	if err := binfile.WriteInt32(filepath.Join(dir, fileAcc), acc); err != nil {
		return err
	}
	if err := binfile.WriteUops(filepath.Join(dir, fileUop), uops); err != nil {
		return err
	}
	if err := binfile.WriteInsns(filepath.Join(dir, fileInsn), insns); err != nil {
		return err
	}
	if err := binfile.WriteInt8(filepath.Join(dir, fileExpected), expected); err != nil {
		return err
	}
	fmt.Printf("Wrote demo example to %s\n", dir)
	return nil
}
