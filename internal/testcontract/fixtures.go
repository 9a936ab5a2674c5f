package testcontract

import (
	"github.com/wippyai/wasm-runtime/wasm"
)

// Names of the globals and exports shared by the fixtures.
const (
	AllocCountExport = "alloc_count"
)

func vt(ts ...wasm.ValType) []wasm.ValType { return ts }

// WithAllocator adds a bump allocator exporting the AssemblyScript runtime
// lifecycle functions, and returns the index of __new. The number of
// allocations is exported as the global alloc_count.
func (b *Builder) WithAllocator() uint32 {
	heap := b.Global(i32, true, HeapBase)
	count := b.Global(i32, true, 0)
	b.ExportGlobal(AllocCountExport, count)
	b.allocCount = count

	// __new(size, class): the size is stored right before the payload.
	newIdx := b.Func("__new", vt(i32, i32), vt(i32), []wasm.LocalEntry{{Count: 1, ValType: i32}},
		GlobalGet(heap), I32(16), I32Add(), LocalSet(2),
		LocalGet(2), I32(4), I32Sub(), LocalGet(0), I32Store(),
		LocalGet(2), LocalGet(0), I32Add(), I32(7), I32Add(), I32(-8), I32And(), GlobalSet(heap),
		GlobalGet(count), I32(1), I32Add(), GlobalSet(count),
		LocalGet(2),
	)
	b.Func("__pin", vt(i32), vt(i32), nil, LocalGet(0))
	b.Func("__unpin", vt(i32), nil, nil)
	b.Func("__collect", nil, nil, nil)
	return newIdx
}

// SetData is a main that stores "bar" under "foo". It executes four metered
// instructions and one set_data call.
func SetData() []byte {
	b := New()
	setData := b.Host("set_data", vt(i32, i32), nil)
	key := b.Buffer([]byte("foo"))
	value := b.Buffer([]byte("bar"))
	b.Func("main", nil, nil, nil, Ptr(key), Ptr(value), Call(setData))
	return b.Bytes()
}

// Echo exports functions exercising the calling convention:
//
//	echo(ptr) -> ptr        returns its argument
//	nothing(ptr)            returns no value
//	wide(ptr) -> i64        returns an unreadable value
//	pair(a, b) -> i32       takes two parameters
//	grow(ptr) -> ptr        grows memory by the u32 at ptr, returns a buffer
//	                        holding the memory.grow result
//	inspect(ptr) -> ptr     returns a buffer holding alloc_count, ptr and the
//	                        size stored before ptr, each as a u32, followed
//	                        by a copy of the bytes at ptr
//	spin(ptr)               loops forever
//	fail(ptr)               traps
//	abort(ptr)              calls the runtime abort handler
//	abort_bad(ptr)          calls the abort handler with pointers outside memory
//	main()                  does nothing
func Echo() []byte {
	b := New()
	abort := b.Import("env", "abort", vt(i32, i32, i32, i32), nil)
	newIdx := b.WithAllocator()
	b.Func("echo", vt(i32), vt(i32), nil, LocalGet(0))
	b.Func("nothing", vt(i32), nil, nil)
	b.Func("wide", vt(i32), vt(i64), nil, I64(7))
	b.Func("pair", vt(i32, i32), vt(i32), nil, LocalGet(0))
	b.Func("grow", vt(i32), vt(i32), []wasm.LocalEntry{{Count: 2, ValType: i32}},
		LocalGet(0), I32Load(), MemoryGrow(), LocalSet(1),
		I32(4), I32(0), Call(newIdx), LocalSet(2),
		LocalGet(2), LocalGet(1), I32Store(),
		LocalGet(2),
	)
	b.Func("inspect", vt(i32), vt(i32), []wasm.LocalEntry{{Count: 3, ValType: i32}},
		LocalGet(0), I32(4), I32Sub(), I32Load(), LocalSet(2),
		GlobalGet(b.allocCount), LocalSet(3),
		LocalGet(2), I32(12), I32Add(), I32(0), Call(newIdx), LocalSet(1),
		LocalGet(1), LocalGet(3), I32Store(),
		LocalGet(1), LocalGet(0), I32StoreAt(4),
		LocalGet(1), LocalGet(2), I32StoreAt(8),
		LocalGet(1), I32(12), I32Add(), LocalGet(0), LocalGet(2), MemoryCopy(),
		LocalGet(1),
	)
	b.Func("spin", vt(i32), nil, nil, Loop(), Br(0), End())
	b.Func("fail", vt(i32), nil, nil, Unreachable())
	msg := b.String("boom")
	file := b.String("echo.ts")
	b.Func("abort", vt(i32), nil, nil, Ptr(msg), Ptr(file), I32(3), I32(5), Call(abort))
	b.Func("abort_bad", vt(i32), nil, nil, I32(-16), I32(-16), I32(7), I32(9), Call(abort))
	b.Func("main", nil, nil, nil)
	return b.Bytes()
}

// Caller is a main calling function of the contract at address through the
// host, with an empty parameter, and storing the returned buffer under
// "ret".
func Caller(address, function string) []byte {
	b := New()
	call := b.Host("call", vt(i32, i32, i32, i64), vt(i32))
	setData := b.Host("set_data", vt(i32, i32), nil)
	b.WithAllocator()
	addr := b.String(address)
	fn := b.String(function)
	param := b.Buffer(nil)
	key := b.Buffer([]byte("ret"))
	b.Func("main", nil, nil, []wasm.LocalEntry{{Count: 1, ValType: i32}},
		Ptr(addr), Ptr(fn), Ptr(param), I64(0), Call(call), LocalSet(0),
		Ptr(key), LocalGet(0), Call(setData),
	)
	return b.Bytes()
}

// Access is a main storing under "access" a buffer holding, as two u32, the
// results of caller_has_write_access and of function_exists for function of
// the contract at address.
func Access(address, function string) []byte {
	b := New()
	writeAccess := b.Import("massa", "assembly_caller_has_write_access", nil, vt(i32))
	exists := b.Import("massa", "assembly_function_exists", vt(i32, i32), vt(i32))
	setData := b.Host("set_data", vt(i32, i32), nil)
	newIdx := b.WithAllocator()
	addr := b.String(address)
	fn := b.String(function)
	key := b.Buffer([]byte("access"))
	b.Func("main", nil, nil, []wasm.LocalEntry{{Count: 1, ValType: i32}},
		I32(8), I32(0), Call(newIdx), LocalSet(0),
		LocalGet(0), Call(writeAccess), I32Store(),
		LocalGet(0), Ptr(addr), Ptr(fn), Call(exists), I32StoreAt(4),
		Ptr(key), LocalGet(0), Call(setData),
	)
	return b.Bytes()
}

// Counter exports main, which appends "x" to the "log" entry, creating it on
// the first run through has_data.
func Counter() []byte {
	b := New()
	hasData := b.Host("has_data", vt(i32), vt(i32))
	setData := b.Host("set_data", vt(i32, i32), nil)
	appendData := b.Host("append_data", vt(i32, i32), nil)
	key := b.Buffer([]byte("log"))
	value := b.Buffer([]byte("x"))
	b.Func("main", nil, nil, nil,
		Ptr(key), Call(hasData),
		If(),
		Ptr(key), Ptr(value), Call(appendData),
		Else(),
		Ptr(key), Ptr(value), Call(setData),
		End(),
	)
	return b.Bytes()
}

// StartGas runs a start function that spends gas before any call.
func StartGas() []byte {
	b := New()
	start := b.Func("", nil, nil, nil, I32(1), Drop())
	b.Start(start)
	b.Func("main", nil, nil, nil)
	return b.Bytes()
}

// SIMD uses a v128 instruction.
func SIMD() []byte {
	b := New()
	b.Func("main", nil, nil, nil, V128Const(), Drop())
	return b.Bytes()
}

// ImportsUnknown imports a host function no engine provides.
func ImportsUnknown() []byte {
	b := New()
	fn := b.Import("massa", "assembly_script_does_not_exist", nil, nil)
	b.Func("main", nil, nil, nil, Call(fn))
	return b.Bytes()
}

// TooMuchMemory declares a minimum memory above pages.
func TooMuchMemory(pages uint32) []byte {
	b := New().Memory(pages+1, 0)
	b.Func("main", nil, nil, nil)
	return b.Bytes()
}

// NaN exports nan(ptr) -> ptr, returning a buffer holding the bits of the
// f32 division 0/0.
func NaN() []byte {
	b := New()
	newIdx := b.WithAllocator()
	b.Func("nan", vt(i32), vt(i32), []wasm.LocalEntry{{Count: 1, ValType: i32}},
		I32(4), I32(0), Call(newIdx), LocalSet(1),
		LocalGet(1), F32Zero(), F32Zero(), F32Div(), I32ReinterpretF32(), I32Store(),
		LocalGet(1),
	)
	return b.Bytes()
}

// Keys is a main storing the encoded list of its own datastore keys under
// "keys".
func Keys() []byte {
	b := New()
	getKeys := b.Host("get_keys", vt(i32), vt(i32))
	setData := b.Host("set_data", vt(i32, i32), nil)
	b.WithAllocator()
	prefix := b.Buffer(nil)
	key := b.Buffer([]byte("keys"))
	b.Func("main", nil, nil, []wasm.LocalEntry{{Count: 1, ValType: i32}},
		Ptr(prefix), Call(getKeys), LocalSet(0),
		Ptr(key), LocalGet(0), Call(setData),
	)
	return b.Bytes()
}
