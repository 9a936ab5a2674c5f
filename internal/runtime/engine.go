package runtime

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/sandboxvm/scruntime/internal/runtime/gas"
	"github.com/sandboxvm/scruntime/internal/runtime/instrument"
	"github.com/sandboxvm/scruntime/internal/runtime/memory"
	"github.com/sandboxvm/scruntime/types"
)

// Features is the only feature set guests may use. Bulk memory is the one
// post-MVP proposal the AssemblyScript toolchain needs for buffer copies;
// sign extension and saturating truncation are deterministic integer ops.
const Features = api.CoreFeaturesV1 |
	api.CoreFeatureBulkMemoryOperations |
	api.CoreFeatureSignExtensionOps |
	api.CoreFeatureNonTrappingFloatToIntConversion

type engineConfig struct {
	mode         types.AccountingMode
	maxPages     uint32
	maxCallDepth int
	logger       zerolog.Logger
	cache        wazero.CompilationCache
}

// EngineOption customizes an Engine.
type EngineOption func(*engineConfig)

// WithAccountingMode selects metering or calibration.
func WithAccountingMode(mode types.AccountingMode) EngineOption {
	return func(c *engineConfig) { c.mode = mode }
}

// WithMaxPages sets the linear memory ceiling of every instance.
func WithMaxPages(pages uint32) EngineOption {
	return func(c *engineConfig) { c.maxPages = pages }
}

// WithMaxCallDepth bounds nested contract calls.
func WithMaxCallDepth(depth int) EngineOption {
	return func(c *engineConfig) { c.maxCallDepth = depth }
}

// WithLogger sets the logger used by the engine and guest print functions.
func WithLogger(logger zerolog.Logger) EngineOption {
	return func(c *engineConfig) { c.logger = logger }
}

// WithCompilationCache shares compiled code between engines.
func WithCompilationCache(cache wazero.CompilationCache) EngineOption {
	return func(c *engineConfig) { c.cache = cache }
}

func defaultEngineConfig() engineConfig {
	return engineConfig{
		mode:         types.DefaultAccountingMode,
		maxPages:     types.DefaultMaxPages,
		maxCallDepth: types.DefaultMaxCallDepth,
		logger:       zerolog.Nop(),
	}
}

// Engine is a configured compiler plus the host modules guests link against.
// Modules compiled by an engine, and their instances, must not outlive it.
type Engine struct {
	runtime   wazero.Runtime
	limit     uint64
	costs     types.GasCosts
	cfg       engineConfig
	allocator *memory.LimitingAllocator
	imports   map[string]map[string]struct{}
	opts      []EngineOption
}

// NewEngine builds an engine compiling modules against limit and costs.
//
// The interpreter is wazero's single pass, non-optimizing strategy; it is
// used unconditionally so compiled artifacts never mix strategies.
func NewEngine(ctx context.Context, limit uint64, costs types.GasCosts, opts ...EngineOption) (*Engine, error) {
	cfg := defaultEngineConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	rc := wazero.NewRuntimeConfigInterpreter().
		WithCoreFeatures(Features).
		WithMemoryLimitPages(cfg.maxPages)
	if cfg.cache != nil {
		rc = rc.WithCompilationCache(cfg.cache)
	}

	e := &Engine{
		runtime:   wazero.NewRuntimeWithConfig(ctx, rc),
		limit:     limit,
		costs:     costs,
		cfg:       cfg,
		allocator: memory.NewLimitingAllocator(cfg.maxPages, nil),
		opts:      opts,
	}
	if err := e.registerHostModules(ctx); err != nil {
		_ = e.runtime.Close(ctx)
		return nil, fmt.Errorf("failed to register host modules: %w", err)
	}
	cfg.logger.Debug().
		Str("mode", cfg.mode.String()).
		Uint64("limit", limit).
		Uint32("max_pages", cfg.maxPages).
		Msg("engine initialized")
	return e, nil
}

// Mode returns the accounting mode the engine compiles with.
func (e *Engine) Mode() types.AccountingMode { return e.cfg.mode }

// Costs returns the gas cost table.
func (e *Engine) Costs() types.GasCosts { return e.costs }

// Limit returns the gas limit modules are compiled against.
func (e *Engine) Limit() uint64 { return e.limit }

// Logger returns the engine logger.
func (e *Engine) Logger() zerolog.Logger { return e.cfg.logger }

// Options returns the options the engine was built with, so sibling engines
// can be built alike.
func (e *Engine) Options() []EngineOption {
	return append([]EngineOption(nil), e.opts...)
}

func (e *Engine) middlewares() ([]instrument.Middleware, *gas.Calibration) {
	mws := []instrument.Middleware{instrument.CanonicalizeNaNs{}}
	if e.cfg.mode == types.Calibration {
		calibration := gas.NewCalibration()
		return append(mws, calibration), calibration
	}
	return append(mws, gas.NewMetering(e.limit, e.costs.OperatorCost)), nil
}

// Compile instruments and compiles bytecode on this engine.
func (e *Engine) Compile(ctx context.Context, bytecode []byte) (*ASModule, error) {
	mws, calibration := e.middlewares()
	instrumented, err := instrument.Apply(bytecode, mws...)
	if err != nil {
		return nil, err
	}
	compiled, err := e.runtime.CompileModule(ctx, instrumented)
	if err != nil {
		return nil, &types.CompileError{Err: err}
	}
	if err := e.validateImports(compiled); err != nil {
		_ = compiled.Close(ctx)
		return nil, &types.CompileError{Err: err}
	}
	m := &ASModule{Compiled: compiled, InitLimit: e.limit, engine: e}
	if calibration != nil {
		m.calibrationOps = calibration.Ops()
	}
	return m, nil
}

// Close releases the engine and everything compiled or instantiated by it.
func (e *Engine) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}
