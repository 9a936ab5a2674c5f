package runtime

import (
	"context"
	"errors"

	"github.com/tetratelabs/wazero/api"

	"github.com/sandboxvm/scruntime/types"
)

func hostCall(ctx context.Context, _ api.Module, address, function, param uint32, coins uint64) uint32 {
	const name = "call"
	env, done := hostEnter(ctx, name)
	defer done()
	addr := env.readString(name, address)
	fn := env.readString(name, function)
	arg := env.readBuffer(name, param)

	bytecode, err := env.iface.InitCall(addr, coins)
	if err != nil {
		env.fail(name, err)
	}
	ret := env.callModule(ctx, name, bytecode, fn, arg)
	if err := env.iface.FinishCall(); err != nil {
		env.fail(name, err)
	}
	return env.newBuffer(ctx, name, ret)
}

// hostLocalCall runs the function of another contract in the context of the
// caller: no frame is pushed and storage calls act on the caller.
func hostLocalCall(ctx context.Context, _ api.Module, address, function, param uint32) uint32 {
	const name = "local_call"
	env, done := hostEnter(ctx, name)
	defer done()
	addr := env.readString(name, address)
	fn := env.readString(name, function)
	arg := env.readBuffer(name, param)

	bytecode, err := env.iface.RawGetBytecodeFor(addr)
	if err != nil {
		env.fail(name, err)
	}
	return env.newBuffer(ctx, name, env.callModule(ctx, name, bytecode, fn, arg))
}

func hostLocalExecution(ctx context.Context, _ api.Module, bytecode, function, param uint32) uint32 {
	const name = "local_execution"
	env, done := hostEnter(ctx, name)
	defer done()
	code := env.readBuffer(name, bytecode)
	fn := env.readString(name, function)
	arg := env.readBuffer(name, param)
	return env.newBuffer(ctx, name, env.callModule(ctx, name, code, fn, arg))
}

func hostCreateSC(ctx context.Context, _ api.Module, bytecode uint32) uint32 {
	const name = "create_sc"
	env, done := hostEnter(ctx, name)
	defer done()
	address, err := env.iface.CreateModule(env.readBuffer(name, bytecode))
	if err != nil {
		env.fail(name, err)
	}
	return env.newString(ctx, name, address)
}

func hostFunctionExists(ctx context.Context, _ api.Module, address, function uint32) uint32 {
	const name = "function_exists"
	env, done := hostEnter(ctx, name)
	defer done()
	addr := env.readString(name, address)
	fn := env.readString(name, function)

	bytecode, err := env.iface.RawGetBytecodeFor(addr)
	if err != nil {
		env.fail(name, err)
	}
	if len(bytecode) == 0 {
		return 0
	}
	rm, release, err := env.loader(ctx, bytecode, env.RemainingGas())
	if err != nil {
		// Bytecode that does not compile exports nothing.
		env.logger.Debug().Err(err).Str("address", addr).Msg("function_exists on invalid bytecode")
		return 0
	}
	if release != nil {
		defer release()
	}
	return boolToU32(rm.HasFunction(fn))
}

// callModule runs function of bytecode as a nested call. The child is
// budgeted with whatever gas the caller has left and the caller is charged
// for what the child consumed. A child running out of gas exhausts the caller.
func (env *ASContext) callModule(ctx context.Context, name string, bytecode []byte, function string, param []byte) []byte {
	if env.depth+1 > env.maxCallDepth {
		env.fail(name, types.ErrCallDepthExceeded)
	}
	limit := env.RemainingGas()
	rm, release, err := env.loader(ctx, bytecode, limit)
	if err != nil {
		env.fail(name, err)
	}
	if release != nil {
		defer release()
	}

	resp, calibration, err := execute(ctx, rm, call{
		function: function,
		param:    param,
		limit:    limit,
		iface:    env.iface,
		loader:   env.loader,
		depth:    env.depth + 1,
	})
	if env.calibration != nil {
		env.calibration.Merge(calibration)
	}
	if err != nil {
		var oog *types.OutOfGasError
		if errors.As(err, &oog) || errors.Is(err, types.ErrNotEnoughGasToLaunch) {
			env.fail(name, &types.OutOfGasError{Limit: limit})
		}
		env.fail(name, err)
	}
	env.SetRemainingGas(resp.RemainingGas)
	return resp.Ret
}
