package constants

const (
	// WasmPageSize is the size of one linear memory page.
	WasmPageSize = 65536

	// MainFunction is the designated entry point callable without argument.
	MainFunction = "main"

	// ExportMemory is the name under which guests export their linear memory.
	ExportMemory = "memory"
)

// Lifecycle exports emitted by the AssemblyScript toolchain. All optional.
const (
	ExportNew     = "__new"
	ExportPin     = "__pin"
	ExportUnpin   = "__unpin"
	ExportCollect = "__collect"
)

// Runtime class ids passed to __new.
const (
	ClassBuffer uint32 = 0
	ClassString uint32 = 1
)

// Accounting exports injected by the engine middlewares.
const (
	ExportRemainingPoints = "metering_remaining_points"
	ExportPointsExhausted = "metering_points_exhausted"
	CalibrationPrefix     = "calibration_op_"
)

// Import namespaces.
const (
	ModuleEnv  = "env"
	ModuleHost = "massa"
	// HostPrefix prefixes every function of the host namespace.
	HostPrefix = "assembly_script_"
	// ShortHostPrefix prefixes the host functions guests import without the
	// script marker: caller_has_write_access and function_exists.
	ShortHostPrefix = "assembly_"
)

// Calibration counter key prefixes.
const (
	CounterWasm = "wasm:"
	CounterABI  = "abi:"
)
