package constants

// Default costs of host functions, keyed by name without HostPrefix.
// Hosts override them through types.GasCosts.ABICosts.
var DefaultABICosts = map[string]uint64{
	"print":                   100,
	"call":                    2000,
	"local_call":              1500,
	"local_execution":         1500,
	"create_sc":               5000,
	"set_data":                300,
	"set_data_for":            300,
	"get_data":                200,
	"get_data_for":            200,
	"delete_data":             200,
	"delete_data_for":         200,
	"append_data":             300,
	"append_data_for":         300,
	"has_data":                100,
	"has_data_for":            100,
	"get_keys":                500,
	"get_keys_for":            500,
	"get_op_keys":             300,
	"has_op_key":              100,
	"get_op_data":             200,
	"get_bytecode":            300,
	"get_bytecode_for":        300,
	"set_bytecode":            3000,
	"set_bytecode_for":        3000,
	"transfer_coins":          500,
	"transfer_coins_for":      500,
	"get_balance":             100,
	"get_balance_for":         100,
	"get_call_coins":          50,
	"get_owned_addresses":     200,
	"get_call_stack":          200,
	"caller_has_write_access": 50,
	"function_exists":         800,
	"generate_event":          200,
	"hash":                    400,
	"signature_verify":        1500,
	"address_from_public_key": 500,
	"unsafe_random":           50,
	"unsafe_random_f64":       50,
	"get_time":                50,
	"get_current_period":      50,
	"get_current_thread":      50,
	"send_message":            1000,
	"get_remaining_gas":       10,
}
