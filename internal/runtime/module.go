package runtime

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/wippyai/wasm-runtime/wat"

	"github.com/sandboxvm/scruntime/internal/runtime/instrument"
	"github.com/sandboxvm/scruntime/types"
)

// GuestKind identifies the toolchain family a bytecode was produced by.
type GuestKind uint8

const (
	// GuestAssemblyScript is the only supported family.
	GuestAssemblyScript GuestKind = 1
)

func (k GuestKind) String() string {
	switch k {
	case GuestAssemblyScript:
		return "assemblyscript"
	default:
		return "unknown"
	}
}

// guestKinds maps a leading bytecode byte to its family. Unlisted bytes fall
// back to AssemblyScript with the full bytecode.
var guestKinds = map[byte]GuestKind{
	1: GuestAssemblyScript,
}

// ASModule is an immutable compiled AssemblyScript module. It is safe to
// instantiate concurrently.
type ASModule struct {
	Compiled wazero.CompiledModule
	// InitLimit is the gas limit baked into the module at compile time.
	InitLimit uint64

	engine         *Engine
	calibrationOps []string
}

// NewASModule builds a dedicated engine and compiles bytecode with it.
func NewASModule(ctx context.Context, bytecode []byte, limit uint64, costs types.GasCosts, opts ...EngineOption) (*ASModule, *Engine, error) {
	engine, err := NewEngine(ctx, limit, costs, opts...)
	if err != nil {
		return nil, nil, err
	}
	m, err := engine.Compile(ctx, bytecode)
	if err != nil {
		_ = engine.Close(ctx)
		return nil, nil, err
	}
	return m, engine, nil
}

// Engine returns the engine that compiled the module.
func (m *ASModule) Engine() *Engine { return m.engine }

// HasFunction reports whether the module exports a function named name.
func (m *ASModule) HasFunction(name string) bool {
	_, ok := m.Compiled.ExportedFunctions()[name]
	return ok
}

// RuntimeModule pairs a compiled module of some guest family with its engine.
type RuntimeModule struct {
	Kind   GuestKind
	AS     *ASModule
	Engine *Engine
}

// binaryOf returns bytecode in the binary format, assembling text format
// input first.
func binaryOf(bytecode []byte) ([]byte, error) {
	if len(bytecode) == 0 {
		return nil, types.ErrEmptyBytecode
	}
	if !instrument.IsText(bytecode) {
		return bytecode, nil
	}
	bin, err := wat.Compile(string(bytecode))
	if err != nil {
		return nil, &types.CompileError{Err: fmt.Errorf("text format: %w", err)}
	}
	return bin, nil
}

// NewRuntimeModule rejects empty bytecode, assembles text format input,
// selects the guest family from the first byte and compiles the bytecode with
// that family's compiler.
func NewRuntimeModule(ctx context.Context, bytecode []byte, limit uint64, costs types.GasCosts, opts ...EngineOption) (*RuntimeModule, error) {
	bytecode, err := binaryOf(bytecode)
	if err != nil {
		return nil, err
	}
	kind, ok := guestKinds[bytecode[0]]
	if !ok {
		kind = GuestAssemblyScript
	}
	switch kind {
	case GuestAssemblyScript:
		m, engine, err := NewASModule(ctx, bytecode, limit, costs, opts...)
		if err != nil {
			return nil, err
		}
		return &RuntimeModule{Kind: kind, AS: m, Engine: engine}, nil
	}
	return nil, fmt.Errorf("unsupported guest kind %s", kind)
}

// HasFunction reports whether the module exports a function named name.
func (rm *RuntimeModule) HasFunction(name string) bool {
	return rm.AS.HasFunction(name)
}

// Close releases the engine owned by the module.
func (rm *RuntimeModule) Close(ctx context.Context) error {
	return rm.Engine.Close(ctx)
}

// Loader resolves the bytecode of a sub-call into a runtime module. The
// returned release function is called once the sub-call completes.
type Loader func(ctx context.Context, bytecode []byte, limit uint64) (*RuntimeModule, func(), error)

// EngineLoader compiles sub-call bytecode on an existing engine.
func EngineLoader(e *Engine) Loader {
	return func(ctx context.Context, bytecode []byte, _ uint64) (*RuntimeModule, func(), error) {
		bytecode, err := binaryOf(bytecode)
		if err != nil {
			return nil, nil, err
		}
		m, err := e.Compile(ctx, bytecode)
		if err != nil {
			return nil, nil, err
		}
		release := func() { _ = m.Compiled.Close(context.Background()) }
		return &RuntimeModule{Kind: GuestAssemblyScript, AS: m, Engine: e}, release, nil
	}
}
