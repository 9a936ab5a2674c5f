package runtime

import (
	"context"

	"github.com/tetratelabs/wazero/api"

	"github.com/sandboxvm/scruntime/types"
)

// The env namespace is what the AssemblyScript runtime itself imports.

func hostAbort(ctx context.Context, _ api.Module, message, fileName, line, column uint32) {
	const name = "abort"
	env, done := hostEnter(ctx, name)
	defer done()
	// Unreadable strings are left empty so the abort itself is reported.
	abort := &types.AbortError{
		Message: env.readStringOrEmpty(message),
		File:    env.readStringOrEmpty(fileName),
		Line:    line,
		Column:  column,
	}
	env.logger.Debug().Str("message", abort.Message).Str("file", abort.File).Msg("guest aborted")
	panic(abort)
}

func hostSeed(ctx context.Context, _ api.Module) float64 {
	const name = "seed"
	env, done := hostEnter(ctx, name)
	defer done()
	f, err := env.iface.UnsafeRandomF64()
	if err != nil {
		env.fail(name, err)
	}
	return f
}

func hostDateNow(ctx context.Context, _ api.Module) float64 {
	const name = "Date.now"
	env, done := hostEnter(ctx, name)
	defer done()
	t, err := env.iface.GetTime()
	if err != nil {
		env.fail(name, err)
	}
	return float64(t)
}

func hostTrace(ctx context.Context, _ api.Module, message, n uint32, a0, a1, a2, a3, a4 float64) {
	const name = "trace"
	env, done := hostEnter(ctx, name)
	defer done()
	args := []float64{a0, a1, a2, a3, a4}
	if n < uint32(len(args)) {
		args = args[:n]
	}
	env.logger.Info().
		Str("message", env.readString(name, message)).
		Floats64("args", args).
		Msg("trace")
}
