package runtime

import (
	"context"
	"errors"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/experimental"

	"github.com/sandboxvm/scruntime/internal/runtime/constants"
	"github.com/sandboxvm/scruntime/internal/runtime/gas"
	"github.com/sandboxvm/scruntime/types"
)

// call describes one invocation.
type call struct {
	function string
	param    []byte
	limit    uint64
	iface    types.Interface
	loader   Loader
	depth    int
}

// Run instantiates rm and calls function with param under limit.
//
// In metering mode the launch cost is charged before anything else runs and
// the remaining gas is reported with the response. The main entry point
// always yields an empty return buffer; other entry points return the bytes
// of the buffer they point to, or nothing.
func Run(ctx context.Context, rm *RuntimeModule, function string, param []byte, limit uint64, iface types.Interface) (types.Response, error) {
	resp, _, err := execute(ctx, rm, call{
		function: function,
		param:    param,
		limit:    limit,
		iface:    iface,
		loader:   EngineLoader(rm.Engine),
	})
	return resp, err
}

// RunWithLoader is Run with a custom sub-call loader.
func RunWithLoader(ctx context.Context, rm *RuntimeModule, function string, param []byte, limit uint64, iface types.Interface, loader Loader) (types.Response, error) {
	resp, _, err := execute(ctx, rm, call{
		function: function,
		param:    param,
		limit:    limit,
		iface:    iface,
		loader:   loader,
	})
	return resp, err
}

// RunCalibration is Run for modules compiled in calibration mode. It returns
// the instruction and host function counters of the call and its sub-calls.
func RunCalibration(ctx context.Context, rm *RuntimeModule, function string, param []byte, limit uint64, iface types.Interface) (types.Response, types.CalibrationResult, error) {
	return execute(ctx, rm, call{
		function: function,
		param:    param,
		limit:    limit,
		iface:    iface,
		loader:   EngineLoader(rm.Engine),
	})
}

func execute(ctx context.Context, rm *RuntimeModule, c call) (types.Response, types.CalibrationResult, error) {
	engine := rm.Engine
	as := rm.AS
	env := newASContext(engine, c.iface, c.loader, c.depth)
	logger := env.logger.With().Str("function", c.function).Logger()

	ctx = WithContext(ctx, env)
	ctx = experimental.WithMemoryAllocator(ctx, engine.allocator)

	cfg := wazero.NewModuleConfig().WithName("").WithStartFunctions()
	mod, err := engine.runtime.InstantiateModule(ctx, as.Compiled, cfg)
	if err != nil {
		return types.Response{}, types.CalibrationResult{}, &types.RuntimeError{Msg: "instantiation failed", Err: err}
	}
	defer mod.Close(ctx)

	if err := env.InitWithInstance(mod); err != nil {
		return types.Response{}, types.CalibrationResult{}, err
	}

	if env.mode == types.Metering {
		// Rebase the budget baked in at compile time onto this call's
		// limit, keeping whatever a start section already consumed.
		spent := as.InitLimit - env.RemainingGas()
		if spent > c.limit {
			env.exhaust()
			return types.Response{}, types.CalibrationResult{}, &types.OutOfGasError{Limit: c.limit}
		}
		env.SetRemainingGas(c.limit - spent)

		launch := env.costs.LaunchCost
		remaining := env.RemainingGas()
		if launch > remaining {
			logger.Debug().Uint64("launch_cost", launch).Uint64("remaining", remaining).Msg("not enough gas to launch")
			return types.Response{}, types.CalibrationResult{}, types.ErrNotEnoughGasToLaunch
		}
		env.SetRemainingGas(remaining - launch)
	}

	fn := mod.ExportedFunction(c.function)
	if fn == nil {
		return types.Response{}, types.CalibrationResult{}, types.ErrFunctionNotFound
	}

	def := fn.Definition()
	params := def.ParamTypes()
	var results []uint64
	switch {
	case len(params) == 0 && c.function == constants.MainFunction:
		results, err = fn.Call(ctx)
	case len(params) == 1 && params[0] == api.ValueTypeI32:
		results, err = callWithParam(ctx, env, fn, c.param)
	default:
		return types.Response{}, types.CalibrationResult{}, types.ErrUnexpectedParamCount
	}
	if err != nil {
		return types.Response{}, types.CalibrationResult{}, classify(env, c.limit, err)
	}

	ret := []byte{}
	if c.function != constants.MainFunction {
		ret, err = readReturn(env, def.ResultTypes(), results)
		if err != nil {
			return types.Response{}, types.CalibrationResult{}, err
		}
	}

	resp := types.Response{Ret: ret, RemainingGas: env.RemainingGas()}
	calibration := collectCalibration(env, as, mod)
	report := gas.NewReport(c.limit, resp.RemainingGas)
	logger.Debug().
		Uint64("limit", report.Limit).
		Uint64("used", report.Used).
		Int("ret_len", len(ret)).
		Msg("execution completed")
	return resp, calibration, nil
}

// callWithParam copies param into a guest buffer, pinned for the duration of
// the call, and passes its offset as the only argument.
func callWithParam(ctx context.Context, env *ASContext, fn api.Function, param []byte) ([]uint64, error) {
	ptr, err := env.allocator.AllocBuffer(ctx, param)
	if err != nil {
		return nil, err
	}
	if err := env.allocator.Pin(ctx, ptr); err != nil {
		return nil, err
	}
	results, err := fn.Call(ctx, uint64(ptr))
	if err != nil {
		return nil, err
	}
	if err := env.allocator.Unpin(ctx, ptr); err != nil {
		return nil, err
	}
	return results, nil
}

func readReturn(env *ASContext, resultTypes []api.ValueType, results []uint64) ([]byte, error) {
	switch {
	case len(resultTypes) == 0:
		return []byte{}, nil
	case len(resultTypes) == 1 && resultTypes[0] == api.ValueTypeI32:
		buf, err := env.manager.ReadBuffer(api.DecodeU32(results[0]))
		if err != nil {
			return nil, &types.RuntimeError{Msg: "failed to read return value", Err: err}
		}
		return buf, nil
	default:
		return nil, types.ErrUnreadableReturn
	}
}

// classify turns a failed guest call into the error reported to the caller.
func classify(env *ASContext, limit uint64, err error) error {
	var oog *types.OutOfGasError
	if env.exhausted() || errors.As(err, &oog) {
		return &types.OutOfGasError{Limit: limit}
	}
	return &types.RuntimeError{Msg: "execution failed", Err: err}
}

func collectCalibration(env *ASContext, as *ASModule, mod api.Module) types.CalibrationResult {
	result := types.NewCalibrationResult()
	if env.calibration == nil {
		return result
	}
	for _, op := range as.calibrationOps {
		if g := mod.ExportedGlobal(constants.CalibrationPrefix + op); g != nil {
			result.Counters[constants.CounterWasm+op] += g.Get()
		}
	}
	result.Merge(*env.calibration)
	return result
}
