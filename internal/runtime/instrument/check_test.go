package instrument_test

import (
	"errors"
	"runtime"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wippyai/wasm-runtime/wasm"

	"github.com/sandboxvm/scruntime/internal/runtime/instrument"
	"github.com/sandboxvm/scruntime/internal/testcontract"
	"github.com/sandboxvm/scruntime/types"
)

var header = []byte{0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00}

func module(sections ...byte) []byte {
	return append(append([]byte(nil), header...), sections...)
}

func TestDecodeEncodeIsLossless(t *testing.T) {
	fixtures := map[string][]byte{
		"set_data": testcontract.SetData(),
		"echo":     testcontract.Echo(),
		"caller":   testcontract.Caller("A1", "f"),
		"counter":  testcontract.Counter(),
		"start":    testcontract.StartGas(),
		"access":   testcontract.Access("A1", "f"),
	}
	for name, bytecode := range fixtures {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, instrument.Check(bytecode))
			m, err := instrument.Decode(bytecode)
			require.NoError(t, err)
			if diff := cmp.Diff(bytecode, m.Encode()); diff != "" {
				t.Fatalf("re-encoded module differs (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeStructure(t *testing.T) {
	m, err := instrument.Decode(testcontract.SetData())
	require.NoError(t, err)

	require.Len(t, m.Imports, 1)
	assert.Equal(t, "massa", m.Imports[0].Module)
	assert.Equal(t, "assembly_script_set_data", m.Imports[0].Name)
	assert.Equal(t, 1, m.NumImportedFuncs())
	assert.Equal(t, 0, m.NumImportedGlobals())

	require.Len(t, m.Functions, 1)
	assert.Equal(t, []string{"i32.const", "i32.const", "call", "end"}, bodyNames(m.Functions[0].Body))
	assert.Equal(t, wasm.CallImm{FuncIdx: 0}, m.Functions[0].Body[2].Imm)
	assert.Empty(t, m.Functions[0].Type.Params)
	assert.True(t, m.HasExport("main"))
	assert.True(t, m.HasExport("memory"))
	assert.False(t, m.HasExport("__new"))
}

func TestCheckRejectsMalformedInput(t *testing.T) {
	require.ErrorIs(t, instrument.Check(nil), wasm.ErrInvalidMagic)
	require.ErrorIs(t, instrument.Check([]byte("\x00asm\x02\x00\x00\x00")), wasm.ErrInvalidVersion)
	require.ErrorIs(t, instrument.Check([]byte("  (module (func))")), instrument.ErrTextFormat)
	require.ErrorIs(t, instrument.Check([]byte(";; empty\n(module)")), instrument.ErrTextFormat)

	valid := testcontract.SetData()
	require.Error(t, instrument.Check(valid[:len(valid)-3]))

	// A section claiming more bytes than the input holds.
	require.Error(t, instrument.Check(module(0x01, 0xff, 0xff, 0xff, 0xff, 0x0f)))
	// Sections out of order.
	require.Error(t, instrument.Check(module(0x03, 0x01, 0x00, 0x01, 0x01, 0x00)))
}

// The type count below claims four billion parameters in eighteen bytes.
func TestCheckBoundsDeclaredLengths(t *testing.T) {
	oversized := module(0x01, 0x08, 0x01, 0x60, 0xff, 0xff, 0xff, 0xff, 0x0f, 0x7f)
	require.Len(t, oversized, 18)

	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)
	_, err := instrument.Decode(oversized)
	runtime.ReadMemStats(&after)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds")
	assert.Less(t, after.TotalAlloc-before.TotalAlloc, uint64(1<<20))

	_, err = instrument.Apply(oversized)
	var compileErr *types.CompileError
	assert.ErrorAs(t, err, &compileErr)
}

func TestCheckBoundsBranchTables(t *testing.T) {
	// One function of type () -> () whose body is a br_table with a label
	// count far beyond the body size.
	body := []byte{0x00, 0x0e, 0xff, 0xff, 0xff, 0xff, 0x0f, 0x00, 0x0b}
	code := append([]byte{0x0a, byte(len(body) + 2), 0x01, byte(len(body))}, body...)
	bytecode := module(append([]byte{0x01, 0x04, 0x01, 0x60, 0x00, 0x00, 0x03, 0x02, 0x01, 0x00}, code...)...)
	err := instrument.Check(bytecode)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds")
}

func TestCheckRejectsDisabledFeatures(t *testing.T) {
	tests := map[string]struct {
		bytecode []byte
		feature  string
	}{
		"simd instruction": {testcontract.SIMD(), "simd"},
		"threads limits":   {module(0x05, 0x04, 0x01, 0x03, 0x01, 0x01), "threads"},
		"memory64 limits":  {module(0x05, 0x03, 0x01, 0x04, 0x01), "memory64"},
		"multi memory":     {module(0x05, 0x05, 0x02, 0x00, 0x01, 0x00, 0x01), "multi-memory"},
		"multi value":      {module(0x01, 0x06, 0x01, 0x60, 0x00, 0x02, 0x7f, 0x7f), "multi-value"},
		"externref param":  {module(0x01, 0x05, 0x01, 0x60, 0x01, 0x6f, 0x00), "reference-types"},
		"tag section":      {module(0x0d, 0x00), "exception-handling"},
		"gc type":          {module(0x01, 0x03, 0x01, 0x5f, 0x00), "gc"},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			err := instrument.Check(tc.bytecode)
			var unsupported *types.UnsupportedFeatureError
			require.True(t, errors.As(err, &unsupported), "got %v", err)
			assert.Equal(t, tc.feature, unsupported.Feature)
			assert.Positive(t, unsupported.Offset)
		})
	}
}

func TestAddGlobalAndExport(t *testing.T) {
	m, err := instrument.Decode(testcontract.SetData())
	require.NoError(t, err)

	idx := m.AddGlobal(wasm.ValI64, true, instrument.I64Const(42))
	assert.Equal(t, uint32(0), idx)
	m.AddExport("answer", wasm.KindGlobal, idx)

	decoded, err := instrument.Decode(m.Encode())
	require.NoError(t, err)
	require.Len(t, decoded.Globals, 1)
	assert.True(t, decoded.Globals[0].Type.Mutable)
	assert.True(t, decoded.HasExport("answer"))
}

func TestMnemonic(t *testing.T) {
	assert.Equal(t, "i64.add", instrument.Mnemonic(wasm.OpI64Add, 0))
	assert.Equal(t, "unknown", instrument.Mnemonic(0xFF, 0))
	assert.Equal(t, "i32.trunc_sat_f32_s", instrument.Mnemonic(wasm.OpPrefixMisc, 0))
	assert.Equal(t, "memory.copy", instrument.Instr{Instruction: testcontract.MemoryCopy()}.Name())
}
