package runtime

import (
	"fmt"

	"github.com/tetratelabs/wazero"
)

// UnresolvedImportError is returned when a guest imports something the host
// modules do not provide.
type UnresolvedImportError struct {
	Module string
	Name   string
}

func (e *UnresolvedImportError) Error() string {
	return fmt.Sprintf("unresolved import %s.%s", e.Module, e.Name)
}

// validateImports checks every import of compiled against the host modules,
// so a bad module is rejected before any instance is created.
func (e *Engine) validateImports(compiled wazero.CompiledModule) error {
	for _, def := range compiled.ImportedFunctions() {
		module, name, _ := def.Import()
		if _, ok := e.imports[module][name]; !ok {
			return &UnresolvedImportError{Module: module, Name: name}
		}
	}
	if memories := compiled.ImportedMemories(); len(memories) > 0 {
		module, name, _ := memories[0].Import()
		return &UnresolvedImportError{Module: module, Name: name}
	}
	return nil
}
