package instrument

import (
	"fmt"

	"github.com/wippyai/wasm-runtime/wasm"
)

// Instr is one decoded instruction of a function body.
type Instr struct {
	wasm.Instruction
	// Synthetic marks instructions injected by a rewriting pass. Accounting
	// passes never charge or count them.
	Synthetic bool
}

// Name returns the instruction mnemonic.
func (i Instr) Name() string {
	var sub uint32
	if misc, ok := i.Imm.(wasm.MiscImm); ok {
		sub = misc.SubOpcode
	}
	return Mnemonic(i.Opcode, sub)
}

// Function is a defined function with its body decoded.
type Function struct {
	Type   wasm.FuncType
	Locals []wasm.LocalEntry
	Body   []Instr
}

// AddLocal appends a local of type t and returns its index.
func (f *Function) AddLocal(t wasm.ValType) uint32 {
	idx := uint32(len(f.Type.Params))
	for _, l := range f.Locals {
		idx += l.Count
	}
	f.Locals = append(f.Locals, wasm.LocalEntry{Count: 1, ValType: t})
	return idx
}

// Module is a parsed module whose defined functions are open for rewriting.
type Module struct {
	*wasm.Module
	Functions []Function
}

// Decode checks data against the feature allow-list, parses and validates it
// and decodes every function body.
func Decode(data []byte) (*Module, error) {
	if err := Check(data); err != nil {
		return nil, err
	}
	parsed, err := wasm.ParseModuleValidate(data)
	if err != nil {
		return nil, err
	}
	m := &Module{Module: parsed, Functions: make([]Function, len(parsed.Code))}
	imported := uint32(parsed.NumImportedFuncs())
	for i, body := range parsed.Code {
		ft := parsed.GetFuncType(imported + uint32(i))
		if ft == nil {
			return nil, fmt.Errorf("function %d has no valid type", i)
		}
		ins, err := wasm.DecodeInstructions(body.Code)
		if err != nil {
			return nil, fmt.Errorf("function %d: %w", i, err)
		}
		f := Function{Type: *ft, Locals: body.Locals, Body: make([]Instr, len(ins))}
		for j := range ins {
			f.Body[j] = Instr{Instruction: ins[j]}
		}
		m.Functions[i] = f
	}
	return m, nil
}

// Encode serializes the module with the rewritten function bodies.
func (m *Module) Encode() []byte {
	code := make([]wasm.FuncBody, len(m.Functions))
	ins := make([]wasm.Instruction, 0, 64)
	for i, f := range m.Functions {
		ins = ins[:0]
		for _, in := range f.Body {
			ins = append(ins, in.Instruction)
		}
		code[i] = wasm.FuncBody{Locals: f.Locals, Code: wasm.EncodeInstructions(ins)}
	}
	m.Code = code
	return m.Module.Encode()
}

// AddGlobal appends a global initialized by init and returns its index in
// the global index space.
func (m *Module) AddGlobal(t wasm.ValType, mutable bool, init Instr) uint32 {
	m.Globals = append(m.Globals, wasm.Global{
		Type: wasm.GlobalType{ValType: t, Mutable: mutable},
		Init: wasm.EncodeInstructions([]wasm.Instruction{init.Instruction, {Opcode: wasm.OpEnd}}),
	})
	return uint32(m.NumImportedGlobals() + len(m.Globals) - 1)
}

// AddExport appends an export.
func (m *Module) AddExport(name string, kind byte, idx uint32) {
	m.Exports = append(m.Exports, wasm.Export{Name: name, Kind: kind, Idx: idx})
}

// HasExport reports whether name is already exported.
func (m *Module) HasExport(name string) bool {
	for _, e := range m.Exports {
		if e.Name == name {
			return true
		}
	}
	return false
}
