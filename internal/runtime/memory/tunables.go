package memory

import (
	"github.com/tetratelabs/wazero/experimental"

	"github.com/sandboxvm/scruntime/internal/runtime/constants"
)

// LimitingAllocator caps every linear memory it allocates at MaxPages.
// Initial sizing and every later memory.grow go through it: a request above
// the ceiling returns nil, which wazero reports to the guest as a failed grow.
type LimitingAllocator struct {
	MaxPages uint32
	Base     experimental.MemoryAllocator
}

// NewLimitingAllocator wraps base, or the default slice allocator when base is nil.
func NewLimitingAllocator(maxPages uint32, base experimental.MemoryAllocator) *LimitingAllocator {
	if base == nil {
		base = DefaultAllocator
	}
	return &LimitingAllocator{MaxPages: maxPages, Base: base}
}

// Ceiling returns the limit in bytes.
func (a *LimitingAllocator) Ceiling() uint64 {
	return uint64(a.MaxPages) * constants.WasmPageSize
}

// Allocate implements experimental.MemoryAllocator.
func (a *LimitingAllocator) Allocate(capacity, maximum uint64) experimental.LinearMemory {
	ceiling := a.Ceiling()
	capacity = min(capacity, ceiling)
	maximum = min(maximum, ceiling)
	return &limitedMemory{inner: a.Base.Allocate(capacity, maximum), ceiling: ceiling}
}

type limitedMemory struct {
	inner   experimental.LinearMemory
	ceiling uint64
}

func (m *limitedMemory) Reallocate(size uint64) []byte {
	if size > m.ceiling {
		return nil
	}
	return m.inner.Reallocate(size)
}

func (m *limitedMemory) Free() {
	m.inner.Free()
}

// DefaultAllocator backs linear memories with plain Go slices.
var DefaultAllocator experimental.MemoryAllocator = experimental.MemoryAllocatorFunc(
	func(capacity, maximum uint64) experimental.LinearMemory {
		return &sliceMemory{buf: make([]byte, 0, capacity), max: maximum}
	})

type sliceMemory struct {
	buf []byte
	max uint64
}

func (m *sliceMemory) Reallocate(size uint64) []byte {
	if size > m.max {
		return nil
	}
	if size <= uint64(cap(m.buf)) {
		m.buf = m.buf[:size]
		return m.buf
	}
	grown := make([]byte, size, min(max(size, 2*uint64(cap(m.buf))), m.max))
	copy(grown, m.buf)
	m.buf = grown
	return m.buf
}

func (m *sliceMemory) Free() {
	m.buf = nil
}
