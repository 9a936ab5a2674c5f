package gas

import (
	"github.com/tetratelabs/wazero/api"

	"github.com/sandboxvm/scruntime/types"
)

// Meter tracks gas consumption during contract execution
type Meter interface {
	// Consume charges the specified amount of gas
	Consume(amount uint64) error
	// Remaining returns the amount of gas left
	Remaining() uint64
	// SetRemaining overrides the amount of gas left
	SetRemaining(amount uint64)
}

// GlobalMeter reads and writes the metering globals of an instance.
type GlobalMeter struct {
	remaining api.MutableGlobal
	exhausted api.MutableGlobal
}

// NewGlobalMeter wraps the metering globals exported by an instance.
func NewGlobalMeter(remaining, exhausted api.MutableGlobal) *GlobalMeter {
	return &GlobalMeter{remaining: remaining, exhausted: exhausted}
}

func (m *GlobalMeter) Consume(amount uint64) error {
	left := m.remaining.Get()
	if amount > left {
		m.Exhaust()
		return &types.OutOfGasError{}
	}
	m.remaining.Set(left - amount)
	return nil
}

func (m *GlobalMeter) Remaining() uint64 {
	return m.remaining.Get()
}

// SetRemaining also clears the exhausted flag when amount is positive.
func (m *GlobalMeter) SetRemaining(amount uint64) {
	m.remaining.Set(amount)
	if amount > 0 {
		m.exhausted.Set(0)
	}
}

// Exhaust zeroes the budget and raises the exhausted flag.
func (m *GlobalMeter) Exhaust() {
	m.remaining.Set(0)
	m.exhausted.Set(1)
}

// Exhausted reports whether the guest trapped on an exhausted budget.
func (m *GlobalMeter) Exhausted() bool {
	return uint32(m.exhausted.Get()) != 0
}

// NopMeter is used in calibration mode, where nothing is charged.
type NopMeter struct{}

func (NopMeter) Consume(uint64) error { return nil }
func (NopMeter) Remaining() uint64    { return 0 }
func (NopMeter) SetRemaining(uint64)  {}

// Report contains information about gas usage
type Report struct {
	Limit     uint64
	Remaining uint64
	Used      uint64
}

// NewReport builds a report from a limit and what is left of it.
func NewReport(limit, remaining uint64) Report {
	r := Report{Limit: limit, Remaining: remaining}
	if remaining < limit {
		r.Used = limit - remaining
	}
	return r
}
