package memory

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero/api"

	"github.com/sandboxvm/scruntime/internal/runtime/constants"
	"github.com/sandboxvm/scruntime/types"
)

// Lifecycle holds the optional memory management exports of a guest. Each
// one is nil when the guest does not export it.
type Lifecycle struct {
	New     api.Function
	Pin     api.Function
	Unpin   api.Function
	Collect api.Function
}

// LookupLifecycle resolves the lifecycle exports of mod, keeping only those
// with the expected signature.
func LookupLifecycle(mod api.Module) Lifecycle {
	i32 := api.ValueTypeI32
	return Lifecycle{
		New:     typedExport(mod, constants.ExportNew, []api.ValueType{i32, i32}, []api.ValueType{i32}),
		Pin:     typedExport(mod, constants.ExportPin, []api.ValueType{i32}, []api.ValueType{i32}),
		Unpin:   typedExport(mod, constants.ExportUnpin, []api.ValueType{i32}, nil),
		Collect: typedExport(mod, constants.ExportCollect, nil, nil),
	}
}

func typedExport(mod api.Module, name string, params, results []api.ValueType) api.Function {
	fn := mod.ExportedFunction(name)
	if fn == nil {
		return nil
	}
	def := fn.Definition()
	if !sameTypes(def.ParamTypes(), params) || !sameTypes(def.ResultTypes(), results) {
		return nil
	}
	return fn
}

func sameTypes(a, b []api.ValueType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Allocator places host data into guest owned memory.
type Allocator struct {
	lifecycle Lifecycle
	manager   *Manager
}

// NewAllocator creates a new memory allocator
func NewAllocator(lifecycle Lifecycle, manager *Manager) *Allocator {
	return &Allocator{lifecycle: lifecycle, manager: manager}
}

// AllocBuffer allocates a managed buffer holding data and returns its pointer.
func (a *Allocator) AllocBuffer(ctx context.Context, data []byte) (uint32, error) {
	return a.alloc(ctx, data, constants.ClassBuffer)
}

// AllocString allocates a managed UTF-16 string holding s.
func (a *Allocator) AllocString(ctx context.Context, s string) (uint32, error) {
	return a.alloc(ctx, EncodeUTF16(s), constants.ClassString)
}

func (a *Allocator) alloc(ctx context.Context, data []byte, class uint32) (uint32, error) {
	if a.lifecycle.New == nil {
		return 0, types.ErrMissingAllocator
	}
	results, err := a.lifecycle.New.Call(ctx, uint64(len(data)), uint64(class))
	if err != nil {
		return 0, fmt.Errorf("failed to allocate memory: %w", err)
	}
	ptr := uint32(results[0])
	if err := a.manager.WriteBytes(ptr, data); err != nil {
		return 0, fmt.Errorf("failed to write data to memory: %w", err)
	}
	return ptr, nil
}

// Pin keeps ptr alive across guest collections. It is a no-op when the guest
// has no __pin export.
func (a *Allocator) Pin(ctx context.Context, ptr uint32) error {
	if a.lifecycle.Pin == nil {
		return nil
	}
	_, err := a.lifecycle.Pin.Call(ctx, uint64(ptr))
	return err
}

// Unpin releases a pointer pinned with Pin.
func (a *Allocator) Unpin(ctx context.Context, ptr uint32) error {
	if a.lifecycle.Unpin == nil {
		return nil
	}
	_, err := a.lifecycle.Unpin.Call(ctx, uint64(ptr))
	return err
}
