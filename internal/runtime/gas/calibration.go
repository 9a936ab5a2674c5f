package gas

import (
	"github.com/wippyai/wasm-runtime/wasm"

	"github.com/sandboxvm/scruntime/internal/runtime/constants"
	"github.com/sandboxvm/scruntime/internal/runtime/instrument"
)

// Calibration counts executed instructions per kind instead of charging gas.
// Each kind that occurs in the module gets an exported i64 counter named
// constants.CalibrationPrefix + mnemonic. Counts are flushed at the same
// boundaries Metering charges at.
type Calibration struct {
	ops []string
}

// NewCalibration returns a calibration middleware.
func NewCalibration() *Calibration {
	return &Calibration{}
}

func (*Calibration) Name() string { return "calibration" }

// Ops returns the mnemonics that received a counter, in creation order.
func (c *Calibration) Ops() []string {
	return append([]string(nil), c.ops...)
}

func (c *Calibration) Transform(m *instrument.Module) error {
	counters := make(map[string]uint32)
	counter := func(name string) uint32 {
		if idx, ok := counters[name]; ok {
			return idx
		}
		idx := m.AddGlobal(wasm.ValI64, true, instrument.I64Const(0))
		m.AddExport(constants.CalibrationPrefix+name, wasm.KindGlobal, idx)
		counters[name] = idx
		c.ops = append(c.ops, name)
		return idx
	}

	for i := range m.Functions {
		f := &m.Functions[i]
		body := make([]instrument.Instr, 0, len(f.Body)*2)
		var order []string
		pending := make(map[string]int64)
		for _, ins := range f.Body {
			if !ins.Synthetic {
				name := ins.Name()
				if pending[name] == 0 {
					order = append(order, name)
				}
				pending[name]++
			}
			if !ins.Synthetic && IsBoundary(ins.Opcode) {
				for _, name := range order {
					idx := counter(name)
					body = append(body,
						instrument.Global(wasm.OpGlobalGet, idx),
						instrument.I64Const(pending[name]),
						instrument.Op(wasm.OpI64Add),
						instrument.Global(wasm.OpGlobalSet, idx),
					)
				}
				order = order[:0]
				clear(pending)
			}
			body = append(body, ins)
		}
		f.Body = body
	}
	return nil
}
