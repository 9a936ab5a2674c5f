package types

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyBytecode is returned when a module is created from zero bytes.
	ErrEmptyBytecode = errors.New("empty bytecode")
	// ErrNotEnoughGasToLaunch is returned when the launch cost exceeds the call limit.
	ErrNotEnoughGasToLaunch = errors.New("not enough gas to launch the virtual machine")
	// ErrUnexpectedParamCount is returned when an entry point takes more than one
	// parameter, or none while not being the main entry point.
	ErrUnexpectedParamCount = errors.New("unexpected number of parameters in the function called")
	// ErrUnreadableReturn is returned when an entry point returns something other than one i32.
	ErrUnreadableReturn = errors.New("execution wasn't in capacity to read the return value")
	// ErrMissingMemory is returned when a guest does not export its linear memory.
	ErrMissingMemory = errors.New("guest module does not export memory")
	// ErrMissingMeteringGlobals is returned when a metered instance lacks its counters.
	ErrMissingMeteringGlobals = errors.New("metering globals not found in instance")
	// ErrMissingAllocator is returned when a parameter or result must be
	// allocated in a guest that does not export __new.
	ErrMissingAllocator = errors.New("guest module does not export __new")
	// ErrFunctionNotFound is returned when the requested entry point is not exported.
	ErrFunctionNotFound = errors.New("function not found")
	// ErrCallDepthExceeded is returned when nested calls go deeper than allowed.
	ErrCallDepthExceeded = errors.New("maximum call depth exceeded")
)

// CompileError is returned when bytecode is malformed or cannot be compiled.
type CompileError struct {
	Err error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compilation failed: %v", e.Err)
}

func (e *CompileError) Unwrap() error { return e.Err }

// UnsupportedFeatureError is returned when bytecode uses a disabled feature.
type UnsupportedFeatureError struct {
	Feature string
	Offset  int
}

func (e *UnsupportedFeatureError) Error() string {
	return fmt.Sprintf("unsupported feature %s at offset %d", e.Feature, e.Offset)
}

// OutOfGasError is returned when execution exhausted its gas budget.
type OutOfGasError struct {
	Limit uint64
}

func (e *OutOfGasError) Error() string {
	return fmt.Sprintf("out of gas (limit %d)", e.Limit)
}

// RuntimeError is a guest trap or any other failure during a call.
type RuntimeError struct {
	Msg string
	Err error
}

func (e *RuntimeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *RuntimeError) Unwrap() error { return e.Err }

// HostError is a failure of the host Interface surfaced through an ABI call.
type HostError struct {
	Function string
	Err      error
}

func (e *HostError) Error() string {
	return fmt.Sprintf("host function %s failed: %v", e.Function, e.Err)
}

func (e *HostError) Unwrap() error { return e.Err }

// AbortError is raised when the guest calls its runtime's abort handler.
type AbortError struct {
	Message string
	File    string
	Line    uint32
	Column  uint32
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("abort: %s at %s:%d:%d", e.Message, e.File, e.Line, e.Column)
}
