package instrument

import (
	"math"

	"github.com/wippyai/wasm-runtime/wasm"
)

func synthetic(op byte, imm any) Instr {
	return Instr{Instruction: wasm.Instruction{Opcode: op, Imm: imm}, Synthetic: true}
}

// Op builds an instruction without immediates.
func Op(op byte) Instr { return synthetic(op, nil) }

// Local builds local.get, local.set or local.tee.
func Local(op byte, idx uint32) Instr { return synthetic(op, wasm.LocalImm{LocalIdx: idx}) }

// Global builds global.get or global.set.
func Global(op byte, idx uint32) Instr { return synthetic(op, wasm.GlobalImm{GlobalIdx: idx}) }

// I32Const builds i32.const v.
func I32Const(v int32) Instr { return synthetic(wasm.OpI32Const, wasm.I32Imm{Value: v}) }

// I64Const builds i64.const v.
func I64Const(v int64) Instr { return synthetic(wasm.OpI64Const, wasm.I64Imm{Value: v}) }

// F32Const builds f32.const from its bit pattern.
func F32Const(bits uint32) Instr {
	return synthetic(wasm.OpF32Const, wasm.F32Imm{Value: math.Float32frombits(bits)})
}

// F64Const builds f64.const from its bit pattern.
func F64Const(bits uint64) Instr {
	return synthetic(wasm.OpF64Const, wasm.F64Imm{Value: math.Float64frombits(bits)})
}

// If builds an if without result.
func If() Instr { return synthetic(wasm.OpIf, wasm.BlockImm{Type: wasm.BlockTypeVoid}) }
