package lagonlike

import (
	"encoding/binary"

	"github.com/bytecodealliance/wasmtime-go"
)

// MemorySlice is an underlying slice of guest memory. Production code
// wraps wasm linear memory; tests use ByteMemory to read and write the
// slice directly.
type MemorySlice interface {
	Data() []byte
	Len() int
	Cap() int
}

// ByteMemory is a MemorySlice backed by a plain byte slice, used in
// tests where the ABI functions run without a wasm guest.
type ByteMemory []byte

// Data returns the underlying byte slice.
func (m ByteMemory) Data() []byte {
	return m
}

// Len is the current length of the memory slice.
func (m ByteMemory) Len() int {
	return len(m)
}

// Cap is the total capacity of the memory slice.
func (m ByteMemory) Cap() int {
	return cap(m)
}

// wasmMemory is a MemorySlice over a wasmtime.Memory.
type wasmMemory struct {
	mem   *wasmtime.Memory
	slice []byte
}

func (m *wasmMemory) Len() int {
	return len(m.Data())
}

func (m *wasmMemory) Cap() int {
	return cap(m.Data())
}

func (m *wasmMemory) Data() []byte {
	// Rebuild the cached slice whenever the guest has grown its
	// memory since we last looked.
	if m.slice != nil && cap(m.slice) == int(m.mem.DataSize()) {
		return m.slice
	}

	m.slice = m.mem.UnsafeData()
	return m.slice
}

// Memory wraps a MemorySlice with the read/write accessors the ABI
// functions use. All multi-byte values are little-endian, matching the
// wasm32 guest.
type Memory struct {
	MemorySlice
}

func (m *Memory) Uint32(offset int64) uint32 {
	return binary.LittleEndian.Uint32(m.Data()[offset:])
}

func (m *Memory) PutUint32(v uint32, offset int64) {
	binary.LittleEndian.PutUint32(m.Data()[offset:], v)
}

func (m *Memory) PutInt32(v int32, offset int64) {
	m.PutUint32(uint32(v), offset)
}

func (m *Memory) ReadAt(p []byte, offset int64) (int, error) {
	n := copy(p, m.Data()[offset:])
	return n, nil
}

func (m *Memory) WriteAt(p []byte, offset int64) (int, error) {
	n := copy(m.Data()[offset:], p)
	return n, nil
}
