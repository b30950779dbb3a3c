package types

// EventKind classifies a skip or exclusion reported alongside a result.
type EventKind string

const (
	EventOutlier             EventKind = "outlier"
	EventBatchExcluded       EventKind = "batch_excluded"
	EventInvalidComponent    EventKind = "invalid_component"
	EventZeroFlow            EventKind = "zero_flow"
	EventMissingCoefficients EventKind = "missing_coefficients"
	EventInvalidCalibration  EventKind = "invalid_calibration"
	EventCalibrationRange    EventKind = "calibration_out_of_range"
	EventInsufficientSamples EventKind = "insufficient_samples"
	EventUnmatchedComponent  EventKind = "unmatched_component"
	EventUnmatchedPairing    EventKind = "unmatched_pairing"
	EventUnmatchedSensor     EventKind = "unmatched_sensor"
)

// Stage names the pipeline stage that produced an event.
type Stage string

const (
	StageOutlier  Stage = "outlier"
	StageRatio    Stage = "ratio"
	StageCalib    Stage = "calibration"
	StageEnvelope Stage = "envelope"
	StageAssign   Stage = "assign"
)

// Event is one structured skip/exclude record for the caller to log or show.
type Event struct {
	Stage   Stage     `json:"stage"`
	Kind    EventKind `json:"kind"`
	Subject string    `json:"subject"` // component, sensor or pairing id
	Detail  string    `json:"detail,omitempty"`
}
