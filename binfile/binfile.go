// Package binfile reads and writes the raw little-endian element files
// the host tools exchange with compilers: int8 and int32 tensors, 32-bit
// micro-op records and 128-bit instruction records.
package binfile

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/tensoraccel/tpa/isa"
)

func read(path string, elemBytes int) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("binfile: %w", err)
	}
	if len(data)%elemBytes != 0 {
		return nil, fmt.Errorf("binfile: %s is %d bytes, not a multiple of the %d-byte element",
			path, len(data), elemBytes)
	}
	return data, nil
}

// ReadInt8 reads a file of signed bytes.
func ReadInt8(path string) ([]int8, error) {
	data, err := read(path, 1)
	if err != nil {
		return nil, err
	}
	out := make([]int8, len(data))
	for i, b := range data {
		out[i] = int8(b)
	}
	return out, nil
}

// WriteInt8 writes a file of signed bytes.
func WriteInt8(path string, values []int8) error {
	data := make([]byte, len(values))
	for i, v := range values {
		data[i] = byte(v)
	}
	return os.WriteFile(path, data, 0644)
}

// ReadInt32 reads a file of little-endian signed 32-bit values.
func ReadInt32(path string) ([]int32, error) {
	data, err := read(path, 4)
	if err != nil {
		return nil, err
	}
	out := make([]int32, len(data)/4)
	for i := range out {
		out[i] = int32(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out, nil
}

// WriteInt32 writes a file of little-endian signed 32-bit values.
func WriteInt32(path string, values []int32) error {
	data := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(data[i*4:], uint32(v))
	}
	return os.WriteFile(path, data, 0644)
}

// ReadUops reads a file of packed micro-op records.
func ReadUops(path string) ([]isa.Uop, error) {
	data, err := read(path, isa.UOP_ELEM_BYTES)
	if err != nil {
		return nil, err
	}
	out := make([]isa.Uop, len(data)/isa.UOP_ELEM_BYTES)
	for i := range out {
		out[i] = isa.DecodeUop(binary.LittleEndian.Uint32(data[i*isa.UOP_ELEM_BYTES:]))
	}
	return out, nil
}

// WriteUops writes a file of packed micro-op records.
func WriteUops(path string, uops []isa.Uop) error {
	data := make([]byte, len(uops)*isa.UOP_ELEM_BYTES)
	for i, u := range uops {
		binary.LittleEndian.PutUint32(data[i*isa.UOP_ELEM_BYTES:], u.Encode())
	}
	return os.WriteFile(path, data, 0644)
}

// ReadInsns reads a file of 128-bit instruction records.
func ReadInsns(path string) ([]isa.Insn, error) {
	data, err := read(path, isa.INSN_BYTES)
	if err != nil {
		return nil, err
	}
	out := make([]isa.Insn, len(data)/isa.INSN_BYTES)
	for i := range out {
		out[i] = isa.InsnFromBytes(data[i*isa.INSN_BYTES:])
	}
	return out, nil
}

// WriteInsns writes a file of 128-bit instruction records.
func WriteInsns(path string, insns []isa.Insn) error {
	data := make([]byte, len(insns)*isa.INSN_BYTES)
	for i, insn := range insns {
		copy(data[i*isa.INSN_BYTES:], insn.Bytes())
	}
	return os.WriteFile(path, data, 0644)
}

// Int8Bytes reinterprets signed values as raw bytes for DRAM copies.
func Int8Bytes(values []int8) []byte {
	data := make([]byte, len(values))
	for i, v := range values {
		data[i] = byte(v)
	}
	return data
}

// Int32Bytes packs signed 32-bit values little-endian for DRAM copies.
func Int32Bytes(values []int32) []byte {
	data := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(data[i*4:], uint32(v))
	}
	return data
}
