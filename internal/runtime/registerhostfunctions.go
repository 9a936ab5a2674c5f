package runtime

import (
	"context"

	"github.com/tetratelabs/wazero"

	"github.com/sandboxvm/scruntime/internal/runtime/constants"
)

// hostModule records what it exports so imports can be validated at compile time.
type hostModule struct {
	builder wazero.HostModuleBuilder
	prefix  string
	names   map[string]struct{}
}

func (h *hostModule) export(name string, fn interface{}, params ...string) {
	h.exportWith(h.prefix, name, fn, params...)
}

// exportWith registers fn under prefix+name instead of the module prefix.
func (h *hostModule) exportWith(prefix, name string, fn interface{}, params ...string) {
	h.builder.NewFunctionBuilder().
		WithFunc(fn).
		WithParameterNames(params...).
		Export(prefix + name)
	h.names[prefix+name] = struct{}{}
}

// registerHostModules builds and instantiates the two namespaces guests link
// against: the guest runtime namespace and the host capability namespace.
// Every function reads its ASContext from the call context, so one set of
// host modules serves every instance of the engine.
func (e *Engine) registerHostModules(ctx context.Context) error {
	e.imports = make(map[string]map[string]struct{})

	env := &hostModule{builder: e.runtime.NewHostModuleBuilder(constants.ModuleEnv), names: map[string]struct{}{}}
	registerEnvFunctions(env)
	if _, err := env.builder.Instantiate(ctx); err != nil {
		return err
	}
	e.imports[constants.ModuleEnv] = env.names

	host := &hostModule{
		builder: e.runtime.NewHostModuleBuilder(constants.ModuleHost),
		prefix:  constants.HostPrefix,
		names:   map[string]struct{}{},
	}
	registerStorageFunctions(host)
	registerBytecodeFunctions(host)
	registerCoinFunctions(host)
	registerContextFunctions(host)
	registerChainFunctions(host)
	registerCryptoFunctions(host)
	registerCallFunctions(host)
	if _, err := host.builder.Instantiate(ctx); err != nil {
		return err
	}
	e.imports[constants.ModuleHost] = host.names
	return nil
}

func registerEnvFunctions(h *hostModule) {
	h.export("abort", hostAbort, "message", "file_name", "line", "column")
	h.export("seed", hostSeed)
	h.export("Date.now", hostDateNow)
	h.export("trace", hostTrace, "message", "n", "a0", "a1", "a2", "a3", "a4")
}

func registerStorageFunctions(h *hostModule) {
	h.export("set_data", hostSetData, "key", "value")
	h.export("set_data_for", hostSetDataFor, "address", "key", "value")
	h.export("get_data", hostGetData, "key")
	h.export("get_data_for", hostGetDataFor, "address", "key")
	h.export("delete_data", hostDeleteData, "key")
	h.export("delete_data_for", hostDeleteDataFor, "address", "key")
	h.export("append_data", hostAppendData, "key", "value")
	h.export("append_data_for", hostAppendDataFor, "address", "key", "value")
	h.export("has_data", hostHasData, "key")
	h.export("has_data_for", hostHasDataFor, "address", "key")
	h.export("get_keys", hostGetKeys, "prefix")
	h.export("get_keys_for", hostGetKeysFor, "address", "prefix")
	h.export("get_op_keys", hostGetOpKeys)
	h.export("has_op_key", hostHasOpKey, "key")
	h.export("get_op_data", hostGetOpData, "key")
}

func registerBytecodeFunctions(h *hostModule) {
	h.export("get_bytecode", hostGetBytecode)
	h.export("get_bytecode_for", hostGetBytecodeFor, "address")
	h.export("set_bytecode", hostSetBytecode, "bytecode")
	h.export("set_bytecode_for", hostSetBytecodeFor, "address", "bytecode")
}

func registerCoinFunctions(h *hostModule) {
	h.export("transfer_coins", hostTransferCoins, "to", "amount")
	h.export("transfer_coins_for", hostTransferCoinsFor, "from", "to", "amount")
	h.export("get_balance", hostGetBalance)
	h.export("get_balance_for", hostGetBalanceFor, "address")
	h.export("get_call_coins", hostGetCallCoins)
}

func registerContextFunctions(h *hostModule) {
	h.export("print", hostPrint, "message")
	h.export("get_owned_addresses", hostGetOwnedAddresses)
	h.export("get_call_stack", hostGetCallStack)
	h.exportWith(constants.ShortHostPrefix, "caller_has_write_access", hostCallerHasWriteAccess)
	h.export("get_remaining_gas", hostGetRemainingGas)
}

func registerChainFunctions(h *hostModule) {
	h.export("generate_event", hostGenerateEvent, "event")
	h.export("unsafe_random", hostUnsafeRandom)
	h.export("unsafe_random_f64", hostUnsafeRandomF64)
	h.export("get_time", hostGetTime)
	h.export("get_current_period", hostGetCurrentPeriod)
	h.export("get_current_thread", hostGetCurrentThread)
	h.export("send_message", hostSendMessage,
		"target_address", "target_handler",
		"validity_start_period", "validity_start_thread",
		"validity_end_period", "validity_end_thread",
		"max_gas", "gas_price", "coins", "data")
}

func registerCryptoFunctions(h *hostModule) {
	h.export("hash", hostHash, "data")
	h.export("signature_verify", hostSignatureVerify, "data", "signature", "public_key")
	h.export("address_from_public_key", hostAddressFromPublicKey, "public_key")
}

func registerCallFunctions(h *hostModule) {
	h.export("call", hostCall, "address", "function", "param", "coins")
	h.export("local_call", hostLocalCall, "address", "function", "param")
	h.export("local_execution", hostLocalExecution, "bytecode", "function", "param")
	h.export("create_sc", hostCreateSC, "bytecode")
	h.exportWith(constants.ShortHostPrefix, "function_exists", hostFunctionExists, "address", "function")
}
