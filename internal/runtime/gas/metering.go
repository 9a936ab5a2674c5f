package gas

import (
	"fmt"

	"github.com/wippyai/wasm-runtime/wasm"

	"github.com/sandboxvm/scruntime/internal/runtime/constants"
	"github.com/sandboxvm/scruntime/internal/runtime/instrument"
)

// CostFunc returns the cost of executing one instruction.
type CostFunc func(ins instrument.Instr) uint64

// FlatCost charges the same amount for every instruction.
func FlatCost(cost uint64) CostFunc {
	return func(instrument.Instr) uint64 { return cost }
}

// Metering injects gas accounting into every function body.
//
// Costs accumulate along straight-line code and are charged right before each
// instruction that may transfer control. A charge that would take the
// remaining points below zero sets the exhausted flag and traps.
type Metering struct {
	Limit uint64
	Cost  CostFunc
}

// NewMetering returns a metering middleware charging operatorCost per instruction.
func NewMetering(limit, operatorCost uint64) *Metering {
	return &Metering{Limit: limit, Cost: FlatCost(operatorCost)}
}

func (*Metering) Name() string { return "metering" }

func (mt *Metering) Transform(m *instrument.Module) error {
	for _, name := range []string{constants.ExportRemainingPoints, constants.ExportPointsExhausted} {
		if m.HasExport(name) {
			return fmt.Errorf("module already exports %q", name)
		}
	}
	remaining := m.AddGlobal(wasm.ValI64, true, instrument.I64Const(int64(mt.Limit)))
	exhausted := m.AddGlobal(wasm.ValI32, true, instrument.I32Const(0))
	m.AddExport(constants.ExportRemainingPoints, wasm.KindGlobal, remaining)
	m.AddExport(constants.ExportPointsExhausted, wasm.KindGlobal, exhausted)

	for i := range m.Functions {
		f := &m.Functions[i]
		body := make([]instrument.Instr, 0, len(f.Body)*2)
		var accumulated uint64
		for _, ins := range f.Body {
			if !ins.Synthetic {
				accumulated += mt.Cost(ins)
			}
			if !ins.Synthetic && IsBoundary(ins.Opcode) && accumulated > 0 {
				body = append(body, charge(remaining, exhausted, accumulated)...)
				accumulated = 0
			}
			body = append(body, ins)
		}
		f.Body = body
	}
	return nil
}

func charge(remaining, exhausted uint32, cost uint64) []instrument.Instr {
	return []instrument.Instr{
		instrument.Global(wasm.OpGlobalGet, remaining),
		instrument.I64Const(int64(cost)),
		instrument.Op(wasm.OpI64LtU),
		instrument.If(),
		instrument.I32Const(1),
		instrument.Global(wasm.OpGlobalSet, exhausted),
		instrument.Op(wasm.OpUnreachable),
		instrument.Op(wasm.OpEnd),
		instrument.Global(wasm.OpGlobalGet, remaining),
		instrument.I64Const(int64(cost)),
		instrument.Op(wasm.OpI64Sub),
		instrument.Global(wasm.OpGlobalSet, remaining),
	}
}

// IsBoundary reports whether op ends a straight-line run of instructions.
func IsBoundary(op byte) bool {
	switch op {
	case wasm.OpLoop, wasm.OpEnd, wasm.OpIf, wasm.OpElse,
		wasm.OpBr, wasm.OpBrIf, wasm.OpBrTable, wasm.OpReturn,
		wasm.OpCall, wasm.OpCallIndirect:
		return true
	}
	return false
}
