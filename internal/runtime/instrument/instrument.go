// Package instrument rewrites guest bytecode before compilation.
package instrument

import (
	"fmt"

	"github.com/sandboxvm/scruntime/types"
)

// Middleware transforms a decoded module in place.
type Middleware interface {
	Name() string
	Transform(m *Module) error
}

// Apply decodes bytecode, runs every middleware in order and re-encodes the
// result. Decoding and middleware failures are returned as *types.CompileError.
func Apply(bytecode []byte, middlewares ...Middleware) ([]byte, error) {
	m, err := Decode(bytecode)
	if err != nil {
		return nil, &types.CompileError{Err: err}
	}
	for _, mw := range middlewares {
		if err := mw.Transform(m); err != nil {
			return nil, &types.CompileError{Err: fmt.Errorf("%s: %w", mw.Name(), err)}
		}
	}
	return m.Encode(), nil
}
