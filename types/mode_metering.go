//go:build !gas_calibration

package types

// DefaultAccountingMode is Metering unless built with the gas_calibration tag.
const DefaultAccountingMode = Metering
