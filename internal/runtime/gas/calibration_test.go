package gas_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wippyai/wasm-runtime/wasm"

	"github.com/sandboxvm/scruntime/internal/runtime/constants"
	"github.com/sandboxvm/scruntime/internal/runtime/gas"
	"github.com/sandboxvm/scruntime/internal/runtime/instrument"
	"github.com/sandboxvm/scruntime/internal/testcontract"
)

func TestCalibrationCounters(t *testing.T) {
	m, err := instrument.Decode(testcontract.SetData())
	require.NoError(t, err)
	c := gas.NewCalibration()
	require.NoError(t, c.Transform(m))

	assert.Equal(t, []string{"i32.const", "call", "end"}, c.Ops())
	for _, op := range c.Ops() {
		assert.True(t, m.HasExport(constants.CalibrationPrefix+op), op)
	}
	require.Len(t, m.Globals, 3)

	flush := []string{"global.get", "i64.const", "i64.add", "global.set"}
	var want []string
	want = append(want, "i32.const", "i32.const")
	want = append(want, flush...)
	want = append(want, flush...)
	want = append(want, "call")
	want = append(want, flush...)
	want = append(want, "end")
	body := m.Functions[0].Body
	require.Equal(t, want, names(body))

	// i32.const is flushed with a count of two.
	assert.Equal(t, wasm.I64Imm{Value: 2}, body[3].Imm)
	assert.Equal(t, wasm.I64Imm{Value: 1}, body[7].Imm)
}

func TestCalibrationSharesCountersAcrossFunctions(t *testing.T) {
	b := testcontract.New()
	b.Func("a", nil, nil, nil, testcontract.I32(1), testcontract.Drop())
	b.Func("b", nil, nil, nil, testcontract.I32(2), testcontract.Drop())
	m, err := instrument.Decode(b.Bytes())
	require.NoError(t, err)

	c := gas.NewCalibration()
	require.NoError(t, c.Transform(m))
	assert.Equal(t, []string{"i32.const", "drop", "end"}, c.Ops())
	assert.Len(t, m.Globals, 3)
}
