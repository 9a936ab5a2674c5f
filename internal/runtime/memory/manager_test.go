package memory_test

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/sandboxvm/scruntime/internal/runtime/memory"
	"github.com/sandboxvm/scruntime/internal/testcontract"
	"github.com/sandboxvm/scruntime/types"
)

func instantiate(t *testing.T, bytecode []byte) api.Module {
	t.Helper()
	ctx := context.Background()
	r := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfigInterpreter())
	t.Cleanup(func() { _ = r.Close(ctx) })
	mod, err := r.Instantiate(ctx, bytecode)
	require.NoError(t, err)
	return mod
}

func TestManagerReadsStaticData(t *testing.T) {
	b := testcontract.New()
	buf := b.Buffer([]byte("hello"))
	str := b.String("héllo wörld")
	mod := instantiate(t, b.Bytes())
	m := memory.New(mod.Memory())

	data, err := m.ReadBuffer(buf)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	s, err := m.ReadString(str)
	require.NoError(t, err)
	assert.Equal(t, "héllo wörld", s)
}

func TestManagerBounds(t *testing.T) {
	mod := instantiate(t, testcontract.New().Bytes())
	m := memory.New(mod.Memory())
	size := mod.Memory().Size()

	_, err := m.ReadBytes(size-2, 4)
	assert.ErrorIs(t, err, memory.ErrInvalidMemoryAccess)
	assert.ErrorIs(t, m.WriteBytes(size-1, []byte{1, 2}), memory.ErrInvalidMemoryAccess)

	_, err = m.ReadBuffer(0)
	assert.ErrorIs(t, err, memory.ErrNullPointer)

	// A size header pointing past the end of memory.
	require.NoError(t, m.WriteBytes(100, binary.LittleEndian.AppendUint32(nil, size)))
	_, err = m.ReadBuffer(104)
	assert.ErrorIs(t, err, memory.ErrInvalidMemoryAccess)

	v, err := m.ReadUint32(100)
	require.NoError(t, err)
	assert.Equal(t, size, v)
}

func TestUTF16(t *testing.T) {
	for _, s := range []string{"", "abc", "héllo", "𝄞 clef"} {
		got, err := memory.DecodeUTF16(memory.EncodeUTF16(s))
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	assert.Equal(t, []byte{'a', 0, 'b', 0}, memory.EncodeUTF16("ab"))

	_, err := memory.DecodeUTF16([]byte{'a', 0, 'b'})
	assert.ErrorIs(t, err, memory.ErrOddStringLength)
}

func TestAllocator(t *testing.T) {
	ctx := context.Background()
	b := testcontract.New()
	b.WithAllocator()
	mod := instantiate(t, b.Bytes())

	lifecycle := memory.LookupLifecycle(mod)
	require.NotNil(t, lifecycle.New)
	require.NotNil(t, lifecycle.Pin)
	require.NotNil(t, lifecycle.Unpin)
	require.NotNil(t, lifecycle.Collect)

	a := memory.NewAllocator(lifecycle, memory.New(mod.Memory()))
	ptr, err := a.AllocBuffer(ctx, []byte("payload"))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, ptr, uint32(testcontract.HeapBase))
	m := memory.New(mod.Memory())
	data, err := m.ReadBuffer(ptr)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)

	sptr, err := a.AllocString(ctx, "ok")
	require.NoError(t, err)
	assert.NotEqual(t, ptr, sptr)
	s, err := m.ReadString(sptr)
	require.NoError(t, err)
	assert.Equal(t, "ok", s)

	require.NoError(t, a.Pin(ctx, ptr))
	require.NoError(t, a.Unpin(ctx, ptr))
	assert.Equal(t, uint64(2), mod.ExportedGlobal(testcontract.AllocCountExport).Get())
}

func TestAllocatorWithoutNew(t *testing.T) {
	mod := instantiate(t, testcontract.New().Bytes())
	lifecycle := memory.LookupLifecycle(mod)
	assert.Nil(t, lifecycle.New)

	a := memory.NewAllocator(lifecycle, memory.New(mod.Memory()))
	_, err := a.AllocBuffer(context.Background(), []byte("x"))
	assert.ErrorIs(t, err, types.ErrMissingAllocator)
	assert.NoError(t, a.Pin(context.Background(), 8))
}
