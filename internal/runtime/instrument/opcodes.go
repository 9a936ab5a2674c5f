package instrument

import "github.com/wippyai/wasm-runtime/wasm"

type immediate uint8

const (
	immNone immediate = iota
	immBlockType
	immIndex
	immBrTable
	immCallIndirect
	immMemArg
	immMemIndex
	immI32
	immI64
	immF32
	immF64
	immMemInit
	immMemCopy
	immIndexPair
)

type opInfo struct {
	name string
	imm  immediate
}

var opcodes = map[byte]opInfo{
	0x00: {"unreachable", immNone},
	0x01: {"nop", immNone},
	0x02: {"block", immBlockType},
	0x03: {"loop", immBlockType},
	0x04: {"if", immBlockType},
	0x05: {"else", immNone},
	0x0B: {"end", immNone},
	0x0C: {"br", immIndex},
	0x0D: {"br_if", immIndex},
	0x0E: {"br_table", immBrTable},
	0x0F: {"return", immNone},
	0x10: {"call", immIndex},
	0x11: {"call_indirect", immCallIndirect},
	0x1A: {"drop", immNone},
	0x1B: {"select", immNone},
	0x20: {"local.get", immIndex},
	0x21: {"local.set", immIndex},
	0x22: {"local.tee", immIndex},
	0x23: {"global.get", immIndex},
	0x24: {"global.set", immIndex},
	0x28: {"i32.load", immMemArg},
	0x29: {"i64.load", immMemArg},
	0x2A: {"f32.load", immMemArg},
	0x2B: {"f64.load", immMemArg},
	0x2C: {"i32.load8_s", immMemArg},
	0x2D: {"i32.load8_u", immMemArg},
	0x2E: {"i32.load16_s", immMemArg},
	0x2F: {"i32.load16_u", immMemArg},
	0x30: {"i64.load8_s", immMemArg},
	0x31: {"i64.load8_u", immMemArg},
	0x32: {"i64.load16_s", immMemArg},
	0x33: {"i64.load16_u", immMemArg},
	0x34: {"i64.load32_s", immMemArg},
	0x35: {"i64.load32_u", immMemArg},
	0x36: {"i32.store", immMemArg},
	0x37: {"i64.store", immMemArg},
	0x38: {"f32.store", immMemArg},
	0x39: {"f64.store", immMemArg},
	0x3A: {"i32.store8", immMemArg},
	0x3B: {"i32.store16", immMemArg},
	0x3C: {"i64.store8", immMemArg},
	0x3D: {"i64.store16", immMemArg},
	0x3E: {"i64.store32", immMemArg},
	0x3F: {"memory.size", immMemIndex},
	0x40: {"memory.grow", immMemIndex},
	0x41: {"i32.const", immI32},
	0x42: {"i64.const", immI64},
	0x43: {"f32.const", immF32},
	0x44: {"f64.const", immF64},
	0x45: {"i32.eqz", immNone},
	0x46: {"i32.eq", immNone},
	0x47: {"i32.ne", immNone},
	0x48: {"i32.lt_s", immNone},
	0x49: {"i32.lt_u", immNone},
	0x4A: {"i32.gt_s", immNone},
	0x4B: {"i32.gt_u", immNone},
	0x4C: {"i32.le_s", immNone},
	0x4D: {"i32.le_u", immNone},
	0x4E: {"i32.ge_s", immNone},
	0x4F: {"i32.ge_u", immNone},
	0x50: {"i64.eqz", immNone},
	0x51: {"i64.eq", immNone},
	0x52: {"i64.ne", immNone},
	0x53: {"i64.lt_s", immNone},
	0x54: {"i64.lt_u", immNone},
	0x55: {"i64.gt_s", immNone},
	0x56: {"i64.gt_u", immNone},
	0x57: {"i64.le_s", immNone},
	0x58: {"i64.le_u", immNone},
	0x59: {"i64.ge_s", immNone},
	0x5A: {"i64.ge_u", immNone},
	0x5B: {"f32.eq", immNone},
	0x5C: {"f32.ne", immNone},
	0x5D: {"f32.lt", immNone},
	0x5E: {"f32.gt", immNone},
	0x5F: {"f32.le", immNone},
	0x60: {"f32.ge", immNone},
	0x61: {"f64.eq", immNone},
	0x62: {"f64.ne", immNone},
	0x63: {"f64.lt", immNone},
	0x64: {"f64.gt", immNone},
	0x65: {"f64.le", immNone},
	0x66: {"f64.ge", immNone},
	0x67: {"i32.clz", immNone},
	0x68: {"i32.ctz", immNone},
	0x69: {"i32.popcnt", immNone},
	0x6A: {"i32.add", immNone},
	0x6B: {"i32.sub", immNone},
	0x6C: {"i32.mul", immNone},
	0x6D: {"i32.div_s", immNone},
	0x6E: {"i32.div_u", immNone},
	0x6F: {"i32.rem_s", immNone},
	0x70: {"i32.rem_u", immNone},
	0x71: {"i32.and", immNone},
	0x72: {"i32.or", immNone},
	0x73: {"i32.xor", immNone},
	0x74: {"i32.shl", immNone},
	0x75: {"i32.shr_s", immNone},
	0x76: {"i32.shr_u", immNone},
	0x77: {"i32.rotl", immNone},
	0x78: {"i32.rotr", immNone},
	0x79: {"i64.clz", immNone},
	0x7A: {"i64.ctz", immNone},
	0x7B: {"i64.popcnt", immNone},
	0x7C: {"i64.add", immNone},
	0x7D: {"i64.sub", immNone},
	0x7E: {"i64.mul", immNone},
	0x7F: {"i64.div_s", immNone},
	0x80: {"i64.div_u", immNone},
	0x81: {"i64.rem_s", immNone},
	0x82: {"i64.rem_u", immNone},
	0x83: {"i64.and", immNone},
	0x84: {"i64.or", immNone},
	0x85: {"i64.xor", immNone},
	0x86: {"i64.shl", immNone},
	0x87: {"i64.shr_s", immNone},
	0x88: {"i64.shr_u", immNone},
	0x89: {"i64.rotl", immNone},
	0x8A: {"i64.rotr", immNone},
	0x8B: {"f32.abs", immNone},
	0x8C: {"f32.neg", immNone},
	0x8D: {"f32.ceil", immNone},
	0x8E: {"f32.floor", immNone},
	0x8F: {"f32.trunc", immNone},
	0x90: {"f32.nearest", immNone},
	0x91: {"f32.sqrt", immNone},
	0x92: {"f32.add", immNone},
	0x93: {"f32.sub", immNone},
	0x94: {"f32.mul", immNone},
	0x95: {"f32.div", immNone},
	0x96: {"f32.min", immNone},
	0x97: {"f32.max", immNone},
	0x98: {"f32.copysign", immNone},
	0x99: {"f64.abs", immNone},
	0x9A: {"f64.neg", immNone},
	0x9B: {"f64.ceil", immNone},
	0x9C: {"f64.floor", immNone},
	0x9D: {"f64.trunc", immNone},
	0x9E: {"f64.nearest", immNone},
	0x9F: {"f64.sqrt", immNone},
	0xA0: {"f64.add", immNone},
	0xA1: {"f64.sub", immNone},
	0xA2: {"f64.mul", immNone},
	0xA3: {"f64.div", immNone},
	0xA4: {"f64.min", immNone},
	0xA5: {"f64.max", immNone},
	0xA6: {"f64.copysign", immNone},
	0xA7: {"i32.wrap_i64", immNone},
	0xA8: {"i32.trunc_f32_s", immNone},
	0xA9: {"i32.trunc_f32_u", immNone},
	0xAA: {"i32.trunc_f64_s", immNone},
	0xAB: {"i32.trunc_f64_u", immNone},
	0xAC: {"i64.extend_i32_s", immNone},
	0xAD: {"i64.extend_i32_u", immNone},
	0xAE: {"i64.trunc_f32_s", immNone},
	0xAF: {"i64.trunc_f32_u", immNone},
	0xB0: {"i64.trunc_f64_s", immNone},
	0xB1: {"i64.trunc_f64_u", immNone},
	0xB2: {"f32.convert_i32_s", immNone},
	0xB3: {"f32.convert_i32_u", immNone},
	0xB4: {"f32.convert_i64_s", immNone},
	0xB5: {"f32.convert_i64_u", immNone},
	0xB6: {"f32.demote_f64", immNone},
	0xB7: {"f64.convert_i32_s", immNone},
	0xB8: {"f64.convert_i32_u", immNone},
	0xB9: {"f64.convert_i64_s", immNone},
	0xBA: {"f64.convert_i64_u", immNone},
	0xBB: {"f64.promote_f32", immNone},
	0xBC: {"i32.reinterpret_f32", immNone},
	0xBD: {"i64.reinterpret_f64", immNone},
	0xBE: {"f32.reinterpret_i32", immNone},
	0xBF: {"f64.reinterpret_i64", immNone},
	0xC0: {"i32.extend8_s", immNone},
	0xC1: {"i32.extend16_s", immNone},
	0xC2: {"i64.extend8_s", immNone},
	0xC3: {"i64.extend16_s", immNone},
	0xC4: {"i64.extend32_s", immNone},
}

// miscOpcodes are the 0xFC prefixed instructions: saturating truncation and bulk memory.
var miscOpcodes = map[uint32]opInfo{
	0:  {"i32.trunc_sat_f32_s", immNone},
	1:  {"i32.trunc_sat_f32_u", immNone},
	2:  {"i32.trunc_sat_f64_s", immNone},
	3:  {"i32.trunc_sat_f64_u", immNone},
	4:  {"i64.trunc_sat_f32_s", immNone},
	5:  {"i64.trunc_sat_f32_u", immNone},
	6:  {"i64.trunc_sat_f64_s", immNone},
	7:  {"i64.trunc_sat_f64_u", immNone},
	8:  {"memory.init", immMemInit},
	9:  {"data.drop", immIndex},
	10: {"memory.copy", immMemCopy},
	11: {"memory.fill", immMemIndex},
	12: {"table.init", immIndexPair},
	13: {"elem.drop", immIndex},
	14: {"table.copy", immIndexPair},
}

// disabledOpcodes maps opcodes of disabled proposals to the proposal name.
var disabledOpcodes = map[byte]string{
	0x06: "exception-handling",
	0x07: "exception-handling",
	0x08: "exception-handling",
	0x09: "exception-handling",
	0x0A: "exception-handling",
	0x18: "exception-handling",
	0x19: "exception-handling",
	0x12: "tail-call",
	0x13: "tail-call",
	0x14: "function-references",
	0x15: "function-references",
	0x1C: "reference-types",
	0x25: "reference-types",
	0x26: "reference-types",
	0xD0: "reference-types",
	0xD1: "reference-types",
	0xD2: "reference-types",
	0xFD: "simd",
	0xFE: "threads",
}

var disabledMiscOpcodes = map[uint32]string{
	15: "reference-types",
	16: "reference-types",
	17: "reference-types",
}

// Mnemonic returns the text format name of an instruction.
func Mnemonic(op byte, sub uint32) string {
	if op == wasm.OpPrefixMisc {
		if info, ok := miscOpcodes[sub]; ok {
			return info.name
		}
		return "unknown"
	}
	if info, ok := opcodes[op]; ok {
		return info.name
	}
	return "unknown"
}
