// Package scruntime executes sandboxed WebAssembly smart contracts with
// deterministic gas metering.
package scruntime

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/sandboxvm/scruntime/internal/runtime"
	"github.com/sandboxvm/scruntime/internal/runtime/cache"
	"github.com/sandboxvm/scruntime/internal/runtime/constants"
	"github.com/sandboxvm/scruntime/internal/runtime/metrics"
	"github.com/sandboxvm/scruntime/types"
)

// Checksum identifies a stored bytecode.
type Checksum = types.Checksum

// Interface is the set of capabilities the host exposes to contracts.
type Interface = types.Interface

// GasCosts is the price table of an execution.
type GasCosts = types.GasCosts

// Response is the result of a successful execution.
type Response = types.Response

// CalibrationResult holds the counters of a calibration run.
type CalibrationResult = types.CalibrationResult

// CacheStats is a snapshot of the VM module cache.
type CacheStats = cache.Stats

// Option customizes the engine built by the one-shot entry points.
type Option = runtime.EngineOption

// WithMaxPages bounds guest linear memory, in 64 KiB pages.
func WithMaxPages(pages uint32) Option { return runtime.WithMaxPages(pages) }

// WithMaxCallDepth bounds nested contract calls.
func WithMaxCallDepth(depth int) Option { return runtime.WithMaxCallDepth(depth) }

// WithLogger sets the logger of the engine and its host functions.
func WithLogger(logger zerolog.Logger) Option { return runtime.WithLogger(logger) }

// metricsNamespace prefixes every collector exposed by VM.Metrics.
const metricsNamespace = "scruntime"

// DefaultABICosts returns a copy of the default host function price table.
func DefaultABICosts() map[string]uint64 {
	costs := make(map[string]uint64, len(constants.DefaultABICosts))
	for k, v := range constants.DefaultABICosts {
		costs[k] = v
	}
	return costs
}

// RunMain compiles bytecode, runs its main entry point under limit and
// returns the gas left.
func RunMain(bytecode []byte, limit uint64, iface Interface, costs GasCosts, opts ...Option) (uint64, error) {
	resp, err := RunFunction(bytecode, limit, constants.MainFunction, nil, iface, costs, opts...)
	if err != nil {
		return 0, err
	}
	return resp.RemainingGas, nil
}

// RunFunction compiles bytecode and runs function with param under limit.
func RunFunction(bytecode []byte, limit uint64, function string, param []byte, iface Interface, costs GasCosts, opts ...Option) (Response, error) {
	ctx := context.Background()
	opts = append(opts[:len(opts):len(opts)], runtime.WithAccountingMode(types.Metering))
	rm, err := runtime.NewRuntimeModule(ctx, bytecode, limit, costs, opts...)
	if err != nil {
		return Response{}, err
	}
	defer rm.Close(ctx)
	return runtime.Run(ctx, rm, function, param, limit, iface)
}

// RunMainGasCalibration runs main with instruction and host function
// counting instead of metering.
func RunMainGasCalibration(bytecode []byte, limit uint64, iface Interface, costs GasCosts, opts ...Option) (CalibrationResult, error) {
	ctx := context.Background()
	opts = append(opts[:len(opts):len(opts)], runtime.WithAccountingMode(types.Calibration))
	rm, err := runtime.NewRuntimeModule(ctx, bytecode, limit, costs, opts...)
	if err != nil {
		return CalibrationResult{}, err
	}
	defer rm.Close(ctx)
	_, result, err := runtime.RunCalibration(ctx, rm, constants.MainFunction, nil, limit, iface)
	if err != nil {
		return CalibrationResult{}, err
	}
	return result, nil
}

// VM is a long lived execution engine. Bytecode is stored once with Create
// and executed many times by checksum; compiled modules are cached.
type VM struct {
	engine   *runtime.Engine
	cache    *cache.Cache
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

// NewVM creates a VM. When cfg.Cache.BaseDir is set, stored bytecode
// survives restarts and the directory is locked until Close.
func NewVM(cfg types.Config, logger zerolog.Logger) (*VM, error) {
	ctx := context.Background()
	cfg = cfg.WithDefaults()
	// Modules are compiled once for every call limit; each execution
	// rebases the budget onto its own limit.
	engine, err := runtime.NewEngine(ctx, math.MaxUint64, cfg.GasCosts,
		runtime.WithAccountingMode(cfg.Mode),
		runtime.WithMaxPages(cfg.Limits.MaxPages),
		runtime.WithMaxCallDepth(cfg.Limits.MaxCallDepth),
		runtime.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	m, err := metrics.New(metricsNamespace, registry)
	if err != nil {
		_ = engine.Close(ctx)
		return nil, err
	}
	c, err := cache.New(engine.Compile, cache.Options{
		BaseDir:         cfg.Cache.BaseDir,
		MemoryCacheSize: cfg.Cache.MemoryCacheSize,
		Logger:          logger,
		Metrics:         m,
	})
	if err != nil {
		_ = engine.Close(ctx)
		return nil, err
	}
	return &VM{engine: engine, cache: c, registry: registry, metrics: m, logger: logger}, nil
}

// Close releases the cache and every compiled module.
func (vm *VM) Close() error {
	ctx := context.Background()
	return errors.Join(vm.cache.Close(ctx), vm.engine.Close(ctx))
}

// Create stores bytecode and compiles it. Bytecode that does not compile
// is not stored.
func (vm *VM) Create(code []byte) (Checksum, error) {
	checksum, err := vm.cache.Save(code)
	if err != nil {
		return Checksum{}, err
	}
	_, release, err := vm.cache.Acquire(context.Background(), checksum)
	if err != nil {
		if rmErr := vm.cache.Remove(checksum); rmErr != nil {
			vm.logger.Warn().Err(rmErr).Str("checksum", checksum.String()).Msg("failed to remove invalid code")
		}
		return Checksum{}, err
	}
	release()
	return checksum, nil
}

// GetCode returns the bytecode stored under checksum.
func (vm *VM) GetCode(checksum Checksum) ([]byte, error) {
	return vm.cache.Load(checksum)
}

// Pin keeps the compiled module of checksum in memory until Unpin.
func (vm *VM) Pin(checksum Checksum) error {
	return vm.cache.Pin(context.Background(), checksum)
}

// Unpin lets the compiled module of checksum be evicted again.
func (vm *VM) Unpin(checksum Checksum) {
	vm.cache.Unpin(checksum)
}

// Remove deletes stored bytecode. Pinned code cannot be removed.
func (vm *VM) Remove(checksum Checksum) error {
	return vm.cache.Remove(checksum)
}

// Execute runs function of the code stored under checksum.
func (vm *VM) Execute(ctx context.Context, checksum Checksum, function string, param []byte, limit uint64, iface Interface) (Response, error) {
	mod, release, err := vm.cache.Acquire(ctx, checksum)
	if err != nil {
		return Response{}, err
	}
	defer release()

	rm := &runtime.RuntimeModule{Kind: runtime.GuestAssemblyScript, AS: mod, Engine: vm.engine}
	start := time.Now()
	resp, err := runtime.RunWithLoader(ctx, rm, function, param, limit, iface, vm.loader)
	vm.metrics.ExecutionTime.Observe(time.Since(start).Seconds())

	var oog *types.OutOfGasError
	switch {
	case err == nil:
		vm.metrics.Executions.WithLabelValues(metrics.ResultOK).Inc()
		vm.metrics.GasConsumed.Add(float64(limit - resp.RemainingGas))
	case errors.As(err, &oog), errors.Is(err, types.ErrNotEnoughGasToLaunch):
		vm.metrics.Executions.WithLabelValues(metrics.ResultOutOfGas).Inc()
	default:
		vm.metrics.Executions.WithLabelValues(metrics.ResultError).Inc()
	}
	return resp, err
}

// loader serves sub-calls from the cache when their bytecode is stored and
// compiles them on the VM engine otherwise.
func (vm *VM) loader(ctx context.Context, bytecode []byte, limit uint64) (*runtime.RuntimeModule, func(), error) {
	if len(bytecode) == 0 {
		return nil, nil, types.ErrEmptyBytecode
	}
	mod, release, err := vm.cache.Acquire(ctx, types.ChecksumOf(bytecode))
	if errors.Is(err, cache.ErrNotFound) {
		return runtime.EngineLoader(vm.engine)(ctx, bytecode, limit)
	}
	if err != nil {
		return nil, nil, err
	}
	return &runtime.RuntimeModule{Kind: runtime.GuestAssemblyScript, AS: mod, Engine: vm.engine}, release, nil
}

// Metrics returns the gatherer holding the VM collectors.
func (vm *VM) Metrics() prometheus.Gatherer {
	return vm.registry
}

// CacheStats returns the module cache counters.
func (vm *VM) CacheStats() CacheStats {
	return vm.cache.Stats()
}
