//go:build gas_calibration

package types

// DefaultAccountingMode is Calibration when built with the gas_calibration tag.
const DefaultAccountingMode = Calibration
