package memory

import (
	"encoding/binary"
	"unicode/utf16"

	"github.com/tetratelabs/wazero/api"
)

// Manager performs bounds-checked reads and writes on a guest linear memory
// and understands the AssemblyScript managed object layout, where the byte
// length of a buffer or string is the u32 stored right before its data.
type Manager struct {
	memory api.Memory
}

// New creates a new memory manager
func New(memory api.Memory) *Manager {
	return &Manager{
		memory: memory,
	}
}

// ReadBytes copies length bytes out of Wasm memory
func (m *Manager) ReadBytes(offset uint32, length uint32) ([]byte, error) {
	// Check if the memory access is within bounds
	if uint64(offset)+uint64(length) > uint64(m.memory.Size()) {
		return nil, ErrInvalidMemoryAccess
	}

	data, ok := m.memory.Read(offset, length)
	if !ok {
		return nil, ErrMemoryReadFailed
	}

	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// WriteBytes writes a byte slice to Wasm memory
func (m *Manager) WriteBytes(offset uint32, data []byte) error {
	// Check if the memory access is within bounds
	if uint64(offset)+uint64(len(data)) > uint64(m.memory.Size()) {
		return ErrInvalidMemoryAccess
	}

	ok := m.memory.Write(offset, data)
	if !ok {
		return ErrMemoryWriteFailed
	}

	return nil
}

// ReadUint32 reads a uint32 from Wasm memory
func (m *Manager) ReadUint32(offset uint32) (uint32, error) {
	data, err := m.ReadBytes(offset, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(data), nil
}

// ReadBuffer reads the managed buffer starting at ptr.
func (m *Manager) ReadBuffer(ptr uint32) ([]byte, error) {
	if ptr < 4 {
		return nil, ErrNullPointer
	}
	size, err := m.ReadUint32(ptr - 4)
	if err != nil {
		return nil, err
	}
	return m.ReadBytes(ptr, size)
}

// ReadString decodes the managed UTF-16LE string starting at ptr.
func (m *Manager) ReadString(ptr uint32) (string, error) {
	data, err := m.ReadBuffer(ptr)
	if err != nil {
		return "", err
	}
	return DecodeUTF16(data)
}

// DecodeUTF16 decodes little endian UTF-16 bytes.
func DecodeUTF16(data []byte) (string, error) {
	if len(data)%2 != 0 {
		return "", ErrOddStringLength
	}
	units := make([]uint16, len(data)/2)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(data[2*i:])
	}
	return string(utf16.Decode(units)), nil
}

// EncodeUTF16 encodes s as little endian UTF-16 bytes.
func EncodeUTF16(s string) []byte {
	units := utf16.Encode([]rune(s))
	out := make([]byte, 2*len(units))
	for i, u := range units {
		binary.LittleEndian.PutUint16(out[2*i:], u)
	}
	return out
}
