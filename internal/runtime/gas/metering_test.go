package gas_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/wippyai/wasm-runtime/wasm"

	"github.com/sandboxvm/scruntime/internal/runtime/constants"
	"github.com/sandboxvm/scruntime/internal/runtime/gas"
	"github.com/sandboxvm/scruntime/internal/runtime/instrument"
	"github.com/sandboxvm/scruntime/internal/testcontract"
)

func names(body []instrument.Instr) []string {
	out := make([]string, 0, len(body))
	for _, ins := range body {
		out = append(out, ins.Name())
	}
	return out
}

func chargeNames() []string {
	return []string{
		"global.get", "i64.const", "i64.lt_u", "if",
		"i32.const", "global.set", "unreachable", "end",
		"global.get", "i64.const", "i64.sub", "global.set",
	}
}

func TestMeteringChargesBeforeBoundaries(t *testing.T) {
	m, err := instrument.Decode(testcontract.SetData())
	require.NoError(t, err)
	require.NoError(t, gas.NewMetering(1000, 1).Transform(m))

	var want []string
	want = append(want, "i32.const", "i32.const")
	want = append(want, chargeNames()...)
	want = append(want, "call")
	want = append(want, chargeNames()...)
	want = append(want, "end")
	body := m.Functions[0].Body
	require.Equal(t, want, names(body))

	// Three instructions up to and including the call, then the end.
	assert.Equal(t, wasm.I64Imm{Value: 3}, body[3].Imm)
	assert.Equal(t, wasm.I64Imm{Value: 1}, body[16].Imm)
	assert.True(t, body[2].Synthetic)
	assert.False(t, body[14].Synthetic)

	require.Len(t, m.Globals, 2)
	assert.Equal(t, wasm.GlobalType{ValType: wasm.ValI64, Mutable: true}, m.Globals[0].Type)
	initExpr, err := wasm.DecodeInstructions(m.Globals[0].Init)
	require.NoError(t, err)
	assert.Equal(t, []wasm.Instruction{
		{Opcode: wasm.OpI64Const, Imm: wasm.I64Imm{Value: 1000}},
		{Opcode: wasm.OpEnd},
	}, initExpr)
	assert.True(t, m.HasExport(constants.ExportRemainingPoints))
	assert.True(t, m.HasExport(constants.ExportPointsExhausted))
}

func TestMeteringCostFunc(t *testing.T) {
	m, err := instrument.Decode(testcontract.SetData())
	require.NoError(t, err)
	mt := &gas.Metering{Limit: 10, Cost: func(ins instrument.Instr) uint64 {
		if ins.Opcode == wasm.OpCall {
			return 100
		}
		return 1
	}}
	require.NoError(t, mt.Transform(m))
	assert.Equal(t, wasm.I64Imm{Value: 102}, m.Functions[0].Body[3].Imm)
}

func TestMeteringRejectsReservedExports(t *testing.T) {
	m, err := instrument.Decode(testcontract.SetData())
	require.NoError(t, err)
	require.NoError(t, gas.NewMetering(10, 1).Transform(m))
	assert.Error(t, gas.NewMetering(10, 1).Transform(m))
}

func TestIsBoundary(t *testing.T) {
	for _, op := range []byte{
		wasm.OpLoop, wasm.OpEnd, wasm.OpIf, wasm.OpElse, wasm.OpBr,
		wasm.OpBrIf, wasm.OpBrTable, wasm.OpReturn, wasm.OpCall, wasm.OpCallIndirect,
	} {
		assert.True(t, gas.IsBoundary(op), instrument.Mnemonic(op, 0))
	}
	for _, op := range []byte{wasm.OpI32Const, wasm.OpDrop, wasm.OpLocalGet, wasm.OpI32Add} {
		assert.False(t, gas.IsBoundary(op), instrument.Mnemonic(op, 0))
	}
}

// instantiate compiles a metered module with a single main and no imports.
func instantiate(t *testing.T, limit uint64, body ...wasm.Instruction) api.Module {
	t.Helper()
	b := testcontract.New()
	b.Func("main", nil, nil, nil, body...)
	bytecode, err := instrument.Apply(b.Bytes(), gas.NewMetering(limit, 1))
	require.NoError(t, err)

	ctx := context.Background()
	r := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfigInterpreter())
	t.Cleanup(func() { _ = r.Close(ctx) })
	mod, err := r.Instantiate(ctx, bytecode)
	require.NoError(t, err)
	return mod
}

func TestMeteredExecution(t *testing.T) {
	ctx := context.Background()
	mod := instantiate(t, 10, testcontract.I32(1), testcontract.Drop())
	_, err := mod.ExportedFunction("main").Call(ctx)
	require.NoError(t, err)

	remaining := mod.ExportedGlobal(constants.ExportRemainingPoints)
	exhausted := mod.ExportedGlobal(constants.ExportPointsExhausted)
	assert.Equal(t, uint64(7), remaining.Get())
	assert.Equal(t, uint64(0), exhausted.Get())
}

func TestMeteredExecutionTrapsWhenExhausted(t *testing.T) {
	ctx := context.Background()
	mod := instantiate(t, 2, testcontract.I32(1), testcontract.Drop())
	_, err := mod.ExportedFunction("main").Call(ctx)
	require.Error(t, err)

	remaining := mod.ExportedGlobal(constants.ExportRemainingPoints)
	exhausted := mod.ExportedGlobal(constants.ExportPointsExhausted)
	assert.Equal(t, uint64(2), remaining.Get())
	assert.Equal(t, uint64(1), exhausted.Get())
}
