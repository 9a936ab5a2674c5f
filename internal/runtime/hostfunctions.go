package runtime

import (
	"context"
	"errors"
	"math"

	"github.com/tetratelabs/wazero/api"

	"github.com/sandboxvm/scruntime/types"
)

// Storage

func hostSetData(ctx context.Context, _ api.Module, key, value uint32) {
	const name = "set_data"
	env, done := hostEnter(ctx, name)
	defer done()
	if err := env.iface.RawSetData(env.readBuffer(name, key), env.readBuffer(name, value)); err != nil {
		env.fail(name, err)
	}
}

func hostSetDataFor(ctx context.Context, _ api.Module, address, key, value uint32) {
	const name = "set_data_for"
	env, done := hostEnter(ctx, name)
	defer done()
	addr := env.readString(name, address)
	if err := env.iface.RawSetDataFor(addr, env.readBuffer(name, key), env.readBuffer(name, value)); err != nil {
		env.fail(name, err)
	}
}

func hostGetData(ctx context.Context, _ api.Module, key uint32) uint32 {
	const name = "get_data"
	env, done := hostEnter(ctx, name)
	defer done()
	value, err := env.iface.RawGetData(env.readBuffer(name, key))
	if err != nil {
		env.fail(name, err)
	}
	return env.newBuffer(ctx, name, value)
}

func hostGetDataFor(ctx context.Context, _ api.Module, address, key uint32) uint32 {
	const name = "get_data_for"
	env, done := hostEnter(ctx, name)
	defer done()
	value, err := env.iface.RawGetDataFor(env.readString(name, address), env.readBuffer(name, key))
	if err != nil {
		env.fail(name, err)
	}
	return env.newBuffer(ctx, name, value)
}

func hostDeleteData(ctx context.Context, _ api.Module, key uint32) {
	const name = "delete_data"
	env, done := hostEnter(ctx, name)
	defer done()
	if err := env.iface.RawDeleteData(env.readBuffer(name, key)); err != nil {
		env.fail(name, err)
	}
}

func hostDeleteDataFor(ctx context.Context, _ api.Module, address, key uint32) {
	const name = "delete_data_for"
	env, done := hostEnter(ctx, name)
	defer done()
	if err := env.iface.RawDeleteDataFor(env.readString(name, address), env.readBuffer(name, key)); err != nil {
		env.fail(name, err)
	}
}

func hostAppendData(ctx context.Context, _ api.Module, key, value uint32) {
	const name = "append_data"
	env, done := hostEnter(ctx, name)
	defer done()
	if err := env.iface.RawAppendData(env.readBuffer(name, key), env.readBuffer(name, value)); err != nil {
		env.fail(name, err)
	}
}

func hostAppendDataFor(ctx context.Context, _ api.Module, address, key, value uint32) {
	const name = "append_data_for"
	env, done := hostEnter(ctx, name)
	defer done()
	addr := env.readString(name, address)
	if err := env.iface.RawAppendDataFor(addr, env.readBuffer(name, key), env.readBuffer(name, value)); err != nil {
		env.fail(name, err)
	}
}

func hostHasData(ctx context.Context, _ api.Module, key uint32) uint32 {
	const name = "has_data"
	env, done := hostEnter(ctx, name)
	defer done()
	ok, err := env.iface.HasData(env.readBuffer(name, key))
	if err != nil {
		env.fail(name, err)
	}
	return boolToU32(ok)
}

func hostHasDataFor(ctx context.Context, _ api.Module, address, key uint32) uint32 {
	const name = "has_data_for"
	env, done := hostEnter(ctx, name)
	defer done()
	ok, err := env.iface.HasDataFor(env.readString(name, address), env.readBuffer(name, key))
	if err != nil {
		env.fail(name, err)
	}
	return boolToU32(ok)
}

func hostGetKeys(ctx context.Context, _ api.Module, prefix uint32) uint32 {
	const name = "get_keys"
	env, done := hostEnter(ctx, name)
	defer done()
	keys, err := env.iface.GetKeys(env.readBuffer(name, prefix))
	if err != nil {
		env.fail(name, err)
	}
	return env.newKeyList(ctx, name, keys)
}

func hostGetKeysFor(ctx context.Context, _ api.Module, address, prefix uint32) uint32 {
	const name = "get_keys_for"
	env, done := hostEnter(ctx, name)
	defer done()
	keys, err := env.iface.GetKeysFor(env.readString(name, address), env.readBuffer(name, prefix))
	if err != nil {
		env.fail(name, err)
	}
	return env.newKeyList(ctx, name, keys)
}

func hostGetOpKeys(ctx context.Context, _ api.Module) uint32 {
	const name = "get_op_keys"
	env, done := hostEnter(ctx, name)
	defer done()
	keys, err := env.iface.GetOpKeys()
	if err != nil {
		env.fail(name, err)
	}
	return env.newKeyList(ctx, name, keys)
}

func hostHasOpKey(ctx context.Context, _ api.Module, key uint32) uint32 {
	const name = "has_op_key"
	env, done := hostEnter(ctx, name)
	defer done()
	ok, err := env.iface.HasOpKey(env.readBuffer(name, key))
	if err != nil {
		env.fail(name, err)
	}
	return boolToU32(ok)
}

func hostGetOpData(ctx context.Context, _ api.Module, key uint32) uint32 {
	const name = "get_op_data"
	env, done := hostEnter(ctx, name)
	defer done()
	value, err := env.iface.GetOpData(env.readBuffer(name, key))
	if err != nil {
		env.fail(name, err)
	}
	return env.newBuffer(ctx, name, value)
}

func (env *ASContext) newKeyList(ctx context.Context, name string, keys [][]byte) uint32 {
	data, err := encodeKeys(keys)
	if err != nil {
		env.fail(name, err)
	}
	return env.newBuffer(ctx, name, data)
}

// Bytecode

func hostGetBytecode(ctx context.Context, _ api.Module) uint32 {
	const name = "get_bytecode"
	env, done := hostEnter(ctx, name)
	defer done()
	bytecode, err := env.iface.RawGetBytecode()
	if err != nil {
		env.fail(name, err)
	}
	return env.newBuffer(ctx, name, bytecode)
}

func hostGetBytecodeFor(ctx context.Context, _ api.Module, address uint32) uint32 {
	const name = "get_bytecode_for"
	env, done := hostEnter(ctx, name)
	defer done()
	bytecode, err := env.iface.RawGetBytecodeFor(env.readString(name, address))
	if err != nil {
		env.fail(name, err)
	}
	return env.newBuffer(ctx, name, bytecode)
}

func hostSetBytecode(ctx context.Context, _ api.Module, bytecode uint32) {
	const name = "set_bytecode"
	env, done := hostEnter(ctx, name)
	defer done()
	if err := env.iface.RawSetBytecode(env.readBuffer(name, bytecode)); err != nil {
		env.fail(name, err)
	}
}

func hostSetBytecodeFor(ctx context.Context, _ api.Module, address, bytecode uint32) {
	const name = "set_bytecode_for"
	env, done := hostEnter(ctx, name)
	defer done()
	if err := env.iface.RawSetBytecodeFor(env.readString(name, address), env.readBuffer(name, bytecode)); err != nil {
		env.fail(name, err)
	}
}

// Coins

func hostTransferCoins(ctx context.Context, _ api.Module, to uint32, amount uint64) {
	const name = "transfer_coins"
	env, done := hostEnter(ctx, name)
	defer done()
	if err := env.iface.TransferCoins(env.readString(name, to), amount); err != nil {
		env.fail(name, err)
	}
}

func hostTransferCoinsFor(ctx context.Context, _ api.Module, from, to uint32, amount uint64) {
	const name = "transfer_coins_for"
	env, done := hostEnter(ctx, name)
	defer done()
	if err := env.iface.TransferCoinsFor(env.readString(name, from), env.readString(name, to), amount); err != nil {
		env.fail(name, err)
	}
}

func hostGetBalance(ctx context.Context, _ api.Module) uint64 {
	const name = "get_balance"
	env, done := hostEnter(ctx, name)
	defer done()
	balance, err := env.iface.GetBalance()
	if err != nil {
		env.fail(name, err)
	}
	return balance
}

func hostGetBalanceFor(ctx context.Context, _ api.Module, address uint32) uint64 {
	const name = "get_balance_for"
	env, done := hostEnter(ctx, name)
	defer done()
	balance, err := env.iface.GetBalanceFor(env.readString(name, address))
	if err != nil {
		env.fail(name, err)
	}
	return balance
}

func hostGetCallCoins(ctx context.Context, _ api.Module) uint64 {
	const name = "get_call_coins"
	env, done := hostEnter(ctx, name)
	defer done()
	coins, err := env.iface.GetCallCoins()
	if err != nil {
		env.fail(name, err)
	}
	return coins
}

// Call context

func hostPrint(ctx context.Context, _ api.Module, message uint32) {
	const name = "print"
	env, done := hostEnter(ctx, name)
	defer done()
	msg := env.readString(name, message)
	env.logger.Debug().Str("message", msg).Msg("print")
	if err := env.iface.Print(msg); err != nil {
		env.fail(name, err)
	}
}

func hostGetOwnedAddresses(ctx context.Context, _ api.Module) uint32 {
	const name = "get_owned_addresses"
	env, done := hostEnter(ctx, name)
	defer done()
	addresses, err := env.iface.GetOwnedAddresses()
	if err != nil {
		env.fail(name, err)
	}
	return env.newJSONString(ctx, name, addresses)
}

func hostGetCallStack(ctx context.Context, _ api.Module) uint32 {
	const name = "get_call_stack"
	env, done := hostEnter(ctx, name)
	defer done()
	stack, err := env.iface.GetCallStack()
	if err != nil {
		env.fail(name, err)
	}
	return env.newJSONString(ctx, name, stack)
}

func hostCallerHasWriteAccess(ctx context.Context, _ api.Module) uint32 {
	const name = "caller_has_write_access"
	env, done := hostEnter(ctx, name)
	defer done()
	ok, err := env.iface.CallerHasWriteAccess()
	if err != nil {
		env.fail(name, err)
	}
	return boolToU32(ok)
}

func hostGetRemainingGas(ctx context.Context, _ api.Module) uint64 {
	env, done := hostEnter(ctx, "get_remaining_gas")
	defer done()
	return env.RemainingGas()
}

// Chain

func hostGenerateEvent(ctx context.Context, _ api.Module, event uint32) {
	const name = "generate_event"
	env, done := hostEnter(ctx, name)
	defer done()
	if err := env.iface.GenerateEvent(env.readString(name, event)); err != nil {
		env.fail(name, err)
	}
}

func hostUnsafeRandom(ctx context.Context, _ api.Module) int64 {
	const name = "unsafe_random"
	env, done := hostEnter(ctx, name)
	defer done()
	n, err := env.iface.UnsafeRandom()
	if err != nil {
		env.fail(name, err)
	}
	return n
}

func hostUnsafeRandomF64(ctx context.Context, _ api.Module) float64 {
	const name = "unsafe_random_f64"
	env, done := hostEnter(ctx, name)
	defer done()
	f, err := env.iface.UnsafeRandomF64()
	if err != nil {
		env.fail(name, err)
	}
	return f
}

func hostGetTime(ctx context.Context, _ api.Module) uint64 {
	const name = "get_time"
	env, done := hostEnter(ctx, name)
	defer done()
	t, err := env.iface.GetTime()
	if err != nil {
		env.fail(name, err)
	}
	return t
}

func hostGetCurrentPeriod(ctx context.Context, _ api.Module) uint64 {
	const name = "get_current_period"
	env, done := hostEnter(ctx, name)
	defer done()
	period, err := env.iface.GetCurrentPeriod()
	if err != nil {
		env.fail(name, err)
	}
	return period
}

func hostGetCurrentThread(ctx context.Context, _ api.Module) uint32 {
	const name = "get_current_thread"
	env, done := hostEnter(ctx, name)
	defer done()
	thread, err := env.iface.GetCurrentThread()
	if err != nil {
		env.fail(name, err)
	}
	return uint32(thread)
}

var errThreadOutOfRange = errors.New("thread does not fit in a byte")

func hostSendMessage(ctx context.Context, _ api.Module,
	target, handler uint32,
	startPeriod uint64, startThread uint32,
	endPeriod uint64, endThread uint32,
	maxGas, gasPrice, coins uint64,
	data uint32,
) {
	const name = "send_message"
	env, done := hostEnter(ctx, name)
	defer done()
	if startThread > math.MaxUint8 || endThread > math.MaxUint8 {
		env.fail(name, errThreadOutOfRange)
	}
	msg := types.AsyncMessage{
		TargetAddress:       env.readString(name, target),
		TargetHandler:       env.readString(name, handler),
		ValidityStartPeriod: startPeriod,
		ValidityStartThread: uint8(startThread),
		ValidityEndPeriod:   endPeriod,
		ValidityEndThread:   uint8(endThread),
		MaxGas:              maxGas,
		GasPrice:            gasPrice,
		Coins:               coins,
		Data:                env.readBuffer(name, data),
	}
	if err := env.iface.SendMessage(msg); err != nil {
		env.fail(name, err)
	}
}
