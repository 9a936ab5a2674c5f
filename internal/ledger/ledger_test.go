package ledger

import (
	"crypto/ed25519"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandboxvm/scruntime/types"
)

const (
	caller = "AUcaller"
	callee = "AUcallee"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l := NewMemory(Config{Caller: caller, Time: 1_700_000_000_000, Period: 12, Thread: 3, Seed: []byte("seed")}, zerolog.Nop())
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestDatastore(t *testing.T) {
	l := newTestLedger(t)

	_, err := l.RawGetData([]byte("k"))
	require.ErrorIs(t, err, ErrKeyNotFound)
	ok, err := l.HasData([]byte("k"))
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, l.RawSetData([]byte("k"), []byte("v")))
	ok, err = l.HasData([]byte("k"))
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, l.RawAppendData([]byte("k"), []byte("w")))
	value, err := l.RawGetData([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("vw"), value)

	value, err = l.RawGetDataFor(caller, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("vw"), value)

	require.ErrorIs(t, l.RawAppendData([]byte("missing"), []byte("x")), ErrKeyNotFound)
	require.ErrorIs(t, l.RawDeleteData([]byte("missing")), ErrKeyNotFound)

	require.NoError(t, l.RawDeleteData([]byte("k")))
	ok, err = l.HasDataFor(caller, []byte("k"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDatastoreWriteAccess(t *testing.T) {
	l := newTestLedger(t)
	require.ErrorIs(t, l.RawSetDataFor(callee, []byte("k"), []byte("v")), ErrNoWriteAccess)
	require.ErrorIs(t, l.RawAppendDataFor(callee, []byte("k"), []byte("v")), ErrNoWriteAccess)
	require.ErrorIs(t, l.RawDeleteDataFor(callee, []byte("k")), ErrNoWriteAccess)
	require.ErrorIs(t, l.RawSetBytecodeFor(callee, []byte{1}), ErrNoWriteAccess)
	require.NoError(t, l.RawSetDataFor(caller, []byte("k"), []byte("v")))
}

func TestGetKeys(t *testing.T) {
	l := newTestLedger(t)
	for _, k := range []string{"b", "a/2", "a/1", "c"} {
		require.NoError(t, l.RawSetData([]byte(k), []byte("x")))
	}
	// Keys of other addresses never leak into the listing.
	require.NoError(t, l.store.set(dataKey(callee, []byte("a/3")), []byte("x")))

	keys, err := l.GetKeys(nil)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("a/1"), []byte("a/2"), []byte("b"), []byte("c")}, keys)

	keys, err = l.GetKeys([]byte("a/"))
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("a/1"), []byte("a/2")}, keys)

	keys, err = l.GetKeysFor(callee, nil)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("a/3")}, keys)

	keys, err = l.GetKeysFor("AUnobody", nil)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestPrefixEnd(t *testing.T) {
	assert.Nil(t, prefixEnd(nil))
	assert.Equal(t, []byte("b"), prefixEnd([]byte("a")))
	assert.Equal(t, []byte{0x01}, prefixEnd([]byte{0x00, 0xff}))
	assert.Nil(t, prefixEnd([]byte{0xff, 0xff}))
}

func TestCoins(t *testing.T) {
	l := newTestLedger(t)
	require.NoError(t, l.SetBalance(caller, 100))

	balance, err := l.GetBalance()
	require.NoError(t, err)
	assert.Equal(t, uint64(100), balance)

	require.NoError(t, l.TransferCoins(callee, 40))
	balance, err = l.GetBalanceFor(callee)
	require.NoError(t, err)
	assert.Equal(t, uint64(40), balance)

	require.ErrorIs(t, l.TransferCoins(callee, 61), ErrInsufficientFunds)
	require.ErrorIs(t, l.TransferCoinsFor(callee, caller, 1), ErrNoWriteAccess)
	require.NoError(t, l.TransferCoinsFor(caller, callee, 60))

	balance, err = l.GetBalance()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), balance)

	balance, err = l.GetBalanceFor("AUnobody")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), balance)
}

func TestCalls(t *testing.T) {
	l := newTestLedger(t)
	require.NoError(t, l.SetBalance(caller, 10))

	_, err := l.InitCall(callee, 0)
	require.ErrorIs(t, err, ErrNoBytecode)

	require.NoError(t, l.SetBytecode(callee, []byte{0x00, 0x61}))
	_, err = l.InitCall(callee, 11)
	require.ErrorIs(t, err, ErrInsufficientFunds)

	bytecode, err := l.InitCall(callee, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x61}, bytecode)

	stack, err := l.GetCallStack()
	require.NoError(t, err)
	assert.Equal(t, []string{caller, callee}, stack)

	coins, err := l.GetCallCoins()
	require.NoError(t, err)
	assert.Equal(t, uint64(4), coins)

	balance, err := l.GetBalance()
	require.NoError(t, err)
	assert.Equal(t, uint64(4), balance)

	access, err := l.CallerHasWriteAccess()
	require.NoError(t, err)
	assert.False(t, access)

	// The callee writes to its own datastore, not the caller's.
	require.NoError(t, l.RawSetData([]byte("k"), []byte("v")))
	require.ErrorIs(t, l.RawSetDataFor(caller, []byte("k"), []byte("v")), ErrNoWriteAccess)

	require.NoError(t, l.FinishCall())
	require.ErrorIs(t, l.FinishCall(), ErrEmptyCallStack)

	access, err = l.CallerHasWriteAccess()
	require.NoError(t, err)
	assert.True(t, access)

	_, err = l.RawGetData([]byte("k"))
	require.ErrorIs(t, err, ErrKeyNotFound)
	value, err := l.RawGetDataFor(callee, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), value)
}

func TestCreateModule(t *testing.T) {
	l := newTestLedger(t)
	first, err := l.CreateModule([]byte{1})
	require.NoError(t, err)
	second, err := l.CreateModule([]byte{2})
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.True(t, strings.HasPrefix(first, AddressPrefix))

	owned, err := l.GetOwnedAddresses()
	require.NoError(t, err)
	assert.Equal(t, []string{caller, first, second}, owned)

	bytecode, err := l.RawGetBytecodeFor(first)
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, bytecode)

	// The creator owns the new contract, so calling it keeps write access.
	_, err = l.InitCall(second, 0)
	require.NoError(t, err)
	access, err := l.CallerHasWriteAccess()
	require.NoError(t, err)
	assert.True(t, access)

	require.NoError(t, l.RawSetBytecode([]byte{3}))
	bytecode, err = l.RawGetBytecode()
	require.NoError(t, err)
	assert.Equal(t, []byte{3}, bytecode)

	missing, err := l.RawGetBytecodeFor("AUnobody")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestCrypto(t *testing.T) {
	l := newTestLedger(t)
	pk, sk, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	encoded := EncodePublicKey(pk)
	sig := Sign(sk, []byte("message"))

	ok, err := l.SignatureVerify([]byte("message"), sig, encoded)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.SignatureVerify([]byte("other"), sig, encoded)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = l.SignatureVerify([]byte("message"), "0OIl", encoded)
	assert.ErrorIs(t, err, errInvalidSignature)
	_, err = l.SignatureVerify([]byte("message"), sig, "abc")
	assert.ErrorIs(t, err, errInvalidPublicKey)

	address, err := l.AddressFromPublicKey(encoded)
	require.NoError(t, err)
	again, err := AddressFromPublicKey(encoded)
	require.NoError(t, err)
	assert.Equal(t, address, again)
	assert.True(t, strings.HasPrefix(address, AddressPrefix))

	digest, err := l.Hash([]byte("abc"))
	require.NoError(t, err)
	assert.Len(t, digest, 32)
	assert.Equal(t, Hash([]byte("abc")), digest)
	assert.NotEqual(t, Hash([]byte("abd")), digest)
}

func TestRandomIsDeterministic(t *testing.T) {
	a := newTestLedger(t)
	b := newTestLedger(t)
	for i := 0; i < 10; i++ {
		x, err := a.UnsafeRandom()
		require.NoError(t, err)
		y, err := b.UnsafeRandom()
		require.NoError(t, err)
		assert.Equal(t, x, y)

		f, err := a.UnsafeRandomF64()
		require.NoError(t, err)
		assert.GreaterOrEqual(t, f, 0.0)
		assert.Less(t, f, 1.0)
		_, _ = b.UnsafeRandomF64()
	}
}

func TestChain(t *testing.T) {
	l := newTestLedger(t)
	now, err := l.GetTime()
	require.NoError(t, err)
	assert.Equal(t, uint64(1_700_000_000_000), now)
	period, err := l.GetCurrentPeriod()
	require.NoError(t, err)
	assert.Equal(t, uint64(12), period)
	thread, err := l.GetCurrentThread()
	require.NoError(t, err)
	assert.Equal(t, uint8(3), thread)

	require.NoError(t, l.GenerateEvent("hello"))
	require.NoError(t, l.Print("printed"))
	msg := types.AsyncMessage{TargetAddress: callee, TargetHandler: "receive", MaxGas: 10}
	require.NoError(t, l.SendMessage(msg))

	assert.Equal(t, []string{"hello"}, l.Events())
	assert.Equal(t, []string{"printed"}, l.Prints())
	assert.Equal(t, []types.AsyncMessage{msg}, l.Messages())
}

func TestOperationDatastore(t *testing.T) {
	l := NewMemory(Config{Caller: caller, OpData: map[string][]byte{
		"zeta":  []byte("z"),
		"alpha": []byte("a"),
		"mid":   []byte("m"),
	}}, zerolog.Nop())
	defer l.Close()

	keys, err := l.GetOpKeys()
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("alpha"), []byte("mid"), []byte("zeta")}, keys)

	ok, err := l.HasOpKey([]byte("mid"))
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = l.HasOpKey([]byte("nope"))
	require.NoError(t, err)
	assert.False(t, ok)

	value, err := l.GetOpData([]byte("alpha"))
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), value)
	_, err = l.GetOpData([]byte("nope"))
	assert.ErrorIs(t, err, ErrKeyNotFound)
}
