package testcontract

import "github.com/wippyai/wasm-runtime/wasm"

func op(code byte) wasm.Instruction { return wasm.Instruction{Opcode: code} }

func Call(idx uint32) wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpCall, Imm: wasm.CallImm{FuncIdx: idx}}
}

func LocalGet(idx uint32) wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: idx}}
}

func LocalSet(idx uint32) wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpLocalSet, Imm: wasm.LocalImm{LocalIdx: idx}}
}

func GlobalGet(idx uint32) wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpGlobalGet, Imm: wasm.GlobalImm{GlobalIdx: idx}}
}

func GlobalSet(idx uint32) wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpGlobalSet, Imm: wasm.GlobalImm{GlobalIdx: idx}}
}

func Br(depth uint32) wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpBr, Imm: wasm.BranchImm{LabelIdx: depth}}
}

// Ptr pushes a static data pointer.
func Ptr(ptr uint32) wasm.Instruction { return I32(int32(ptr)) }

func I32(v int32) wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: v}}
}

func I64(v int64) wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpI64Const, Imm: wasm.I64Imm{Value: v}}
}

func F32Zero() wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpF32Const, Imm: wasm.F32Imm{}}
}

func Drop() wasm.Instruction              { return op(wasm.OpDrop) }
func End() wasm.Instruction               { return op(wasm.OpEnd) }
func Else() wasm.Instruction              { return op(wasm.OpElse) }
func Unreachable() wasm.Instruction       { return op(wasm.OpUnreachable) }
func I32Add() wasm.Instruction            { return op(wasm.OpI32Add) }
func I32Sub() wasm.Instruction            { return op(wasm.OpI32Sub) }
func I32And() wasm.Instruction            { return op(wasm.OpI32And) }
func F32Div() wasm.Instruction            { return op(wasm.OpF32Div) }
func I32ReinterpretF32() wasm.Instruction { return op(wasm.OpI32ReinterpretF32) }

// Loop opens a loop without result.
func Loop() wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpLoop, Imm: wasm.BlockImm{Type: wasm.BlockTypeVoid}}
}

// If opens an if without result.
func If() wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpIf, Imm: wasm.BlockImm{Type: wasm.BlockTypeVoid}}
}

func I32Load() wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpI32Load, Imm: wasm.MemoryImm{Align: 2}}
}

func I32Store() wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpI32Store, Imm: wasm.MemoryImm{Align: 2}}
}

// I32StoreAt stores an i32 at offset past the address operand.
func I32StoreAt(offset uint64) wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpI32Store, Imm: wasm.MemoryImm{Align: 2, Offset: offset}}
}

func MemoryCopy() wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpPrefixMisc, Imm: wasm.MiscImm{SubOpcode: wasm.MiscMemoryCopy, Operands: []uint32{0, 0}}}
}

func MemoryGrow() wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpMemoryGrow, Imm: wasm.MemoryIdxImm{}}
}

// V128Const is a SIMD instruction, which the engine rejects.
func V128Const() wasm.Instruction {
	return wasm.Instruction{Opcode: wasm.OpPrefixSIMD, Imm: wasm.SIMDImm{SubOpcode: wasm.SimdV128Const, V128Bytes: make([]byte, 16)}}
}
