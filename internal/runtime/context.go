package runtime

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/tetratelabs/wazero/api"

	"github.com/sandboxvm/scruntime/internal/runtime/constants"
	"github.com/sandboxvm/scruntime/internal/runtime/gas"
	"github.com/sandboxvm/scruntime/internal/runtime/memory"
	"github.com/sandboxvm/scruntime/types"
)

// errNotInitialized is raised by host functions called before InitWithInstance,
// typically from a start section.
var errNotInitialized = errors.New("execution environment used before instance initialization")

type envKey struct{}

// ASContext is the execution environment of one instance. Every host function
// invoked by that instance reaches it through the call context.
type ASContext struct {
	iface  types.Interface
	costs  types.GasCosts
	mode   types.AccountingMode
	logger zerolog.Logger

	memory    api.Memory
	manager   *memory.Manager
	lifecycle memory.Lifecycle
	allocator *memory.Allocator

	// points is nil in calibration mode.
	points *gas.GlobalMeter
	meter  gas.Meter

	loader       Loader
	depth        int
	maxCallDepth int
	calibration  *types.CalibrationResult
}

func newASContext(e *Engine, iface types.Interface, loader Loader, depth int) *ASContext {
	env := &ASContext{
		iface:        iface,
		costs:        e.costs,
		mode:         e.cfg.mode,
		logger:       e.cfg.logger.With().Int("depth", depth).Logger(),
		meter:        gas.NopMeter{},
		loader:       loader,
		depth:        depth,
		maxCallDepth: e.cfg.maxCallDepth,
	}
	if env.mode == types.Calibration {
		result := types.NewCalibrationResult()
		env.calibration = &result
	}
	return env
}

// WithContext attaches env to ctx.
func WithContext(ctx context.Context, env *ASContext) context.Context {
	return context.WithValue(ctx, envKey{}, env)
}

// FromContext returns the environment attached to ctx, if any.
func FromContext(ctx context.Context) (*ASContext, bool) {
	env, ok := ctx.Value(envKey{}).(*ASContext)
	return env, ok
}

// InitWithInstance wires the exports of a fresh instance into the environment.
// It must run before any guest function is called.
func (env *ASContext) InitWithInstance(mod api.Module) error {
	mem := mod.ExportedMemory(constants.ExportMemory)
	if mem == nil {
		return types.ErrMissingMemory
	}
	env.memory = mem
	env.manager = memory.New(mem)
	env.lifecycle = memory.LookupLifecycle(mod)
	env.allocator = memory.NewAllocator(env.lifecycle, env.manager)

	if env.mode != types.Metering {
		return nil
	}
	remaining, ok := mod.ExportedGlobal(constants.ExportRemainingPoints).(api.MutableGlobal)
	if !ok {
		return types.ErrMissingMeteringGlobals
	}
	exhausted, ok := mod.ExportedGlobal(constants.ExportPointsExhausted).(api.MutableGlobal)
	if !ok {
		return types.ErrMissingMeteringGlobals
	}
	env.points = gas.NewGlobalMeter(remaining, exhausted)
	env.meter = env.points
	return nil
}

// RemainingGas returns the points left, 0 in calibration mode.
func (env *ASContext) RemainingGas() uint64 {
	return env.meter.Remaining()
}

// SetRemainingGas overrides the points left. Ignored in calibration mode.
func (env *ASContext) SetRemainingGas(amount uint64) {
	env.meter.SetRemaining(amount)
}

// ChargeGas deducts the cost of the named host function. In calibration mode
// the call is counted instead.
func (env *ASContext) ChargeGas(name string, amount uint64) error {
	if env.calibration != nil {
		env.calibration.Counters[constants.CounterABI+name]++
		return nil
	}
	if err := env.meter.Consume(amount); err != nil {
		env.logger.Debug().Str("function", name).Uint64("cost", amount).Msg("out of gas in host function")
		return err
	}
	return nil
}

// exhaust marks the budget as spent so the driver reports out of gas.
func (env *ASContext) exhaust() {
	if env.points != nil {
		env.points.Exhaust()
	}
}

// exhausted reports whether the guest ran out of points.
func (env *ASContext) exhausted() bool {
	return env.points != nil && env.points.Exhausted()
}

func (env *ASContext) timer(name string) func() {
	if env.calibration == nil {
		return func() {}
	}
	start := time.Now()
	return func() {
		env.calibration.Timers[constants.CounterABI+name] += time.Since(start)
	}
}

// hostEnter is the prologue of every host function: it resolves the
// environment, charges the function cost and starts its calibration timer.
// Failures abort the guest.
func hostEnter(ctx context.Context, name string) (*ASContext, func()) {
	env, ok := FromContext(ctx)
	if !ok || env.memory == nil {
		panic(&types.HostError{Function: name, Err: errNotInitialized})
	}
	if err := env.ChargeGas(name, env.costs.ABICost(name)); err != nil {
		panic(err)
	}
	return env, env.timer(name)
}

// fail aborts the guest with a host error.
func (env *ASContext) fail(name string, err error) {
	var oog *types.OutOfGasError
	if errors.As(err, &oog) {
		env.exhaust()
		panic(err)
	}
	env.logger.Debug().Err(err).Str("function", name).Msg("host function failed")
	panic(&types.HostError{Function: name, Err: err})
}
