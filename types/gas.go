// Package types provides the public data model shared by the runtime and its hosts.
package types

// Gas represents the amount of computational resources consumed during execution.
type Gas = uint64

// GasCosts is the cost table a module is compiled and executed with.
//
// OperatorCost is charged for every executed instruction, LaunchCost once per
// call before the first guest instruction runs. ABICosts holds the flat cost
// of each host function keyed by its import name without the
// "assembly_script_" prefix; missing entries cost nothing.
type GasCosts struct {
	OperatorCost uint64            `json:"operator_cost" mapstructure:"operator_cost"`
	LaunchCost   uint64            `json:"launch_cost" mapstructure:"launch_cost"`
	ABICosts     map[string]uint64 `json:"abi_costs,omitempty" mapstructure:"abi_costs"`
}

// DefaultGasCosts returns the cost table used when the host does not supply one.
func DefaultGasCosts() GasCosts {
	return GasCosts{
		OperatorCost: 1,
		LaunchCost:   10_000,
		ABICosts:     map[string]uint64{},
	}
}

// ABICost returns the cost of the named host function.
func (c GasCosts) ABICost(name string) uint64 {
	if c.ABICosts == nil {
		return 0
	}
	return c.ABICosts[name]
}

// AccountingMode selects the instruction accounting middleware an engine installs.
// The two modes are mutually exclusive.
type AccountingMode uint8

const (
	// Metering charges gas per executed instruction and traps on exhaustion.
	Metering AccountingMode = iota
	// Calibration counts executed instructions per kind and never charges gas.
	Calibration
)

func (m AccountingMode) String() string {
	switch m {
	case Metering:
		return "metering"
	case Calibration:
		return "calibration"
	default:
		return "unknown"
	}
}

// Response is the result of one successful invocation.
type Response struct {
	// Ret is the output buffer. It is always empty for the main entry point.
	Ret []byte
	// RemainingGas is the gas left when the call completed. Always 0 in calibration mode.
	RemainingGas uint64
}
