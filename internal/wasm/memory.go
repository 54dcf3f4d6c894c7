package wasm

import (
	"context"
	"errors"

	"github.com/tetratelabs/wazero/api"
)

// Memory moves request and response payloads across the guest boundary.
// Guest memory is a separate linear address space; every access is bounds
// checked by wazero and reported as a MemoryAccessError on failure.
// Allocation goes through the guest's own alloc export, the guest owns
// and reuses that memory.
type Memory struct {
	mem   api.Memory
	alloc api.Function
}

// NewMemory creates a memory helper. alloc may be nil for read-only use.
func NewMemory(module api.Module, alloc api.Function) (*Memory, error) {
	mem := module.Memory()
	if mem == nil {
		return nil, &MemoryAccessError{Operation: "open", Err: errors.New("module exports no memory")}
	}
	return &Memory{mem: mem, alloc: alloc}, nil
}

// ReadString reads a null-terminated string from Wasm memory.
func (m *Memory) ReadString(ptr uint32, maxLen uint32) (string, bool) {
	buf, ok := m.mem.Read(ptr, maxLen)
	if !ok {
		return "", false
	}

	end := len(buf)
	for i, b := range buf {
		if b == 0 {
			end = i
			break
		}
	}

	return string(buf[:end]), true
}

// ReadBytes reads raw bytes from Wasm memory. The returned slice aliases
// guest memory.
func (m *Memory) ReadBytes(ptr uint32, length uint32) ([]byte, bool) {
	return m.mem.Read(ptr, length)
}

// WriteString writes a string to Wasm memory.
func (m *Memory) WriteString(ctx context.Context, s string) (uint32, uint32, error) {
	return m.WriteBytes(ctx, []byte(s))
}

// WriteBytes allocates len(data) bytes in the guest and copies data there.
func (m *Memory) WriteBytes(ctx context.Context, data []byte) (uint32, uint32, error) {
	length := uint32(len(data))
	if length == 0 {
		return 0, 0, nil
	}
	if m.alloc == nil {
		return 0, 0, &FunctionNotFoundError{FunctionName: ExportAlloc}
	}

	results, err := m.alloc.Call(ctx, uint64(length))
	if err != nil {
		return 0, 0, &MemoryAccessError{Operation: "alloc", Length: length, Err: err}
	}
	if len(results) != 1 {
		return 0, 0, &MemoryAccessError{Operation: "alloc", Length: length, Err: errors.New("alloc returned no pointer")}
	}

	ptr := uint32(results[0])
	if !m.mem.Write(ptr, data) {
		return 0, 0, &MemoryAccessError{Operation: "write", Address: ptr, Length: length}
	}
	return ptr, length, nil
}
