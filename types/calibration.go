package types

import (
	"time"

	"github.com/shamaton/msgpack/v2"
)

// CalibrationResult holds the measurements of a calibration run.
//
// Counters is keyed "wasm:<mnemonic>" for instruction kinds and "abi:<name>"
// for host functions. Timers holds the cumulated wall time spent inside each
// host function, keyed like the ABI counters.
type CalibrationResult struct {
	Counters map[string]uint64        `msgpack:"counters" json:"counters"`
	Timers   map[string]time.Duration `msgpack:"timers" json:"timers"`
}

// NewCalibrationResult returns an empty result ready to be filled.
func NewCalibrationResult() CalibrationResult {
	return CalibrationResult{
		Counters: make(map[string]uint64),
		Timers:   make(map[string]time.Duration),
	}
}

// Merge adds the counters and timers of other into r.
func (r *CalibrationResult) Merge(other CalibrationResult) {
	for k, v := range other.Counters {
		r.Counters[k] += v
	}
	for k, v := range other.Timers {
		r.Timers[k] += v
	}
}

type calibrationWire CalibrationResult

func (r CalibrationResult) MarshalMessagePack() ([]byte, error) {
	return msgpack.Marshal(calibrationWire(r))
}

func (r *CalibrationResult) UnmarshalMessagePack(data []byte) error {
	var w calibrationWire
	if err := msgpack.Unmarshal(data, &w); err != nil {
		return err
	}
	*r = CalibrationResult(w)
	return nil
}
