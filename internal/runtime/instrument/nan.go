package instrument

import (
	"github.com/wippyai/wasm-runtime/wasm"
)

const (
	canonicalNaN32 uint32 = 0x7FC00000
	canonicalNaN64 uint64 = 0x7FF8000000000000
)

// CanonicalizeNaNs replaces any NaN produced by a floating point operation
// with the canonical quiet NaN, so results are bit-identical across hosts.
type CanonicalizeNaNs struct{}

func (CanonicalizeNaNs) Name() string { return "canonicalize-nans" }

func (CanonicalizeNaNs) Transform(m *Module) error {
	for i := range m.Functions {
		f := &m.Functions[i]
		var tmp32, tmp64 *uint32
		body := make([]Instr, 0, len(f.Body))
		for _, ins := range f.Body {
			body = append(body, ins)
			if ins.Synthetic {
				continue
			}
			switch nanResult(ins.Opcode) {
			case wasm.ValF32:
				if tmp32 == nil {
					idx := f.AddLocal(wasm.ValF32)
					tmp32 = &idx
				}
				body = append(body, canonicalize(*tmp32, F32Const(canonicalNaN32), wasm.OpF32Eq)...)
			case wasm.ValF64:
				if tmp64 == nil {
					idx := f.AddLocal(wasm.ValF64)
					tmp64 = &idx
				}
				body = append(body, canonicalize(*tmp64, F64Const(canonicalNaN64), wasm.OpF64Eq)...)
			}
		}
		f.Body = body
	}
	return nil
}

// canonicalize keeps the value on top of the stack unless it is a NaN, in
// which case it is replaced by nan. A value is a NaN iff it differs from itself.
func canonicalize(tmp uint32, nan Instr, eq byte) []Instr {
	return []Instr{
		Local(wasm.OpLocalTee, tmp),
		nan,
		Local(wasm.OpLocalGet, tmp),
		Local(wasm.OpLocalGet, tmp),
		Op(eq),
		Op(wasm.OpSelect),
	}
}

// nanResult returns the type of the float an arithmetic instruction may turn
// into a NaN, or 0. Sign and bit manipulations never create one.
func nanResult(op byte) wasm.ValType {
	switch {
	case op >= wasm.OpF32Ceil && op <= wasm.OpF32Max, op == wasm.OpF32DemoteF64:
		return wasm.ValF32
	case op >= wasm.OpF64Ceil && op <= wasm.OpF64Max, op == wasm.OpF64PromoteF32:
		return wasm.ValF64
	}
	return 0
}
