package types

import (
	"errors"
	"fmt"
)

// ErrNoMatch is wrapped by a matching stage that found no admissible edge.
// It is not a failure: the stage also returns an empty result.
var ErrNoMatch = errors.New("no match")

// DataError marks a single candidate as unusable. The candidate is skipped.
type DataError struct {
	ID     string
	Reason string
}

func (e *DataError) Error() string {
	return fmt.Sprintf("data error on %s: %s", e.ID, e.Reason)
}

// ConfigError is a precondition failure that blocks the pipeline from starting.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: %s %s", e.Field, e.Reason)
}

// CalibrationError reports that the inverse lookup could not reproduce a
// target quantity closely enough. The sensor is ineligible for that pairing.
type CalibrationError struct {
	SensorID string
	Target   float64
	Residual float64
}

func (e *CalibrationError) Error() string {
	return fmt.Sprintf("calibration error on %s: target %g unreachable (residual %g)", e.SensorID, e.Target, e.Residual)
}
