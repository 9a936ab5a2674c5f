// Package testcontract assembles small guest modules following the
// AssemblyScript memory layout, for use as test fixtures.
package testcontract

import (
	"encoding/binary"
	"unicode/utf16"

	"github.com/wippyai/wasm-runtime/wasm"
)

// HeapBase is where the bump allocator starts. Static data lives below it.
const HeapBase = 32 * 1024

const (
	i32 = wasm.ValI32
	i64 = wasm.ValI64
)

// Builder accumulates the parts of a module. Imports must be declared
// before any function.
type Builder struct {
	m        wasm.Module
	dataEnd  uint32
	memMin   uint32
	memMax   *uint64
	declared bool
	// allocCount is the global WithAllocator counts allocations in.
	allocCount uint32
}

// New returns a builder for a module exporting one page of memory.
func New() *Builder {
	b := &Builder{dataEnd: 8, memMin: 1}
	b.export("memory", wasm.KindMemory, 0)
	return b
}

func (b *Builder) export(name string, kind byte, idx uint32) {
	b.m.Exports = append(b.m.Exports, wasm.Export{Name: name, Kind: kind, Idx: idx})
}

// Memory sets the memory limits in pages. A zero max leaves it unbounded.
func (b *Builder) Memory(min, max uint32) *Builder {
	b.memMin = min
	b.memMax = nil
	if max > 0 {
		m := uint64(max)
		b.memMax = &m
	}
	return b
}

func (b *Builder) typeIndex(params, results []wasm.ValType) uint32 {
	for i, t := range b.m.Types {
		if equalTypes(t.Params, params) && equalTypes(t.Results, results) {
			return uint32(i)
		}
	}
	b.m.Types = append(b.m.Types, wasm.FuncType{Params: params, Results: results})
	return uint32(len(b.m.Types) - 1)
}

func equalTypes(a, b []wasm.ValType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Import declares an imported function and returns its function index.
func (b *Builder) Import(module, name string, params, results []wasm.ValType) uint32 {
	if b.declared {
		panic("testcontract: imports must be declared before functions")
	}
	b.m.Imports = append(b.m.Imports, wasm.Import{
		Module: module,
		Name:   name,
		Desc:   wasm.ImportDesc{Kind: wasm.KindFunc, TypeIdx: b.typeIndex(params, results)},
	})
	return uint32(len(b.m.Imports) - 1)
}

// Host imports a function of the host namespace by its short name.
func (b *Builder) Host(name string, params, results []wasm.ValType) uint32 {
	return b.Import("massa", "assembly_script_"+name, params, results)
}

// Func defines a function and exports it under export unless export is
// empty. The terminating end is appended to body.
func (b *Builder) Func(export string, params, results []wasm.ValType, locals []wasm.LocalEntry, body ...wasm.Instruction) uint32 {
	b.declared = true
	idx := uint32(len(b.m.Imports) + len(b.m.Funcs))
	b.m.Funcs = append(b.m.Funcs, b.typeIndex(params, results))
	b.m.Code = append(b.m.Code, wasm.FuncBody{
		Locals: locals,
		Code:   wasm.EncodeInstructions(append(body, End())),
	})
	if export != "" {
		b.export(export, wasm.KindFunc, idx)
	}
	return idx
}

// Global defines a global initialized with an i32 or i64 constant and
// returns its index.
func (b *Builder) Global(t wasm.ValType, mutable bool, init int64) uint32 {
	ins := I64(init)
	if t == i32 {
		ins = I32(int32(init))
	}
	b.m.Globals = append(b.m.Globals, wasm.Global{
		Type: wasm.GlobalType{ValType: t, Mutable: mutable},
		Init: wasm.EncodeInstructions([]wasm.Instruction{ins, End()}),
	})
	return uint32(len(b.m.Globals) - 1)
}

// ExportGlobal exports the global at idx.
func (b *Builder) ExportGlobal(name string, idx uint32) {
	b.export(name, wasm.KindGlobal, idx)
}

// Start runs the function at idx when the module is instantiated.
func (b *Builder) Start(idx uint32) {
	b.m.Start = &idx
}

// Buffer places a managed buffer in static data and returns its pointer.
func (b *Builder) Buffer(data []byte) uint32 {
	header := binary.LittleEndian.AppendUint32(nil, uint32(len(data)))
	ptr := b.dataEnd + 4
	b.m.Data = append(b.m.Data, wasm.DataSegment{
		Offset: wasm.EncodeInstructions([]wasm.Instruction{I32(int32(b.dataEnd)), End()}),
		Init:   append(header, data...),
	})
	b.dataEnd = (ptr + uint32(len(data)) + 7) &^ 7
	if b.dataEnd >= HeapBase {
		panic("testcontract: static data overflows into the heap")
	}
	return ptr
}

// String places a managed UTF-16 string in static data and returns its pointer.
func (b *Builder) String(s string) uint32 {
	units := utf16.Encode([]rune(s))
	data := make([]byte, 0, 2*len(units))
	for _, u := range units {
		data = binary.LittleEndian.AppendUint16(data, u)
	}
	return b.Buffer(data)
}

// Bytes encodes the module.
func (b *Builder) Bytes() []byte {
	m := b.m
	m.Memories = []wasm.MemoryType{{Limits: wasm.Limits{Min: uint64(b.memMin), Max: b.memMax}}}
	return m.Encode()
}
