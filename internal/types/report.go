package types

import (
	"time"
)

// RunReport summarizes a completed batch run
type RunReport struct {
	Scenario       string        `json:"scenario"`
	Precision      uint          `json:"precision"`
	Integrator     string        `json:"integrator"`
	FrameMode      string        `json:"frame_mode"`
	ReferenceFrame string        `json:"reference_frame,omitempty"`
	Steps          uint64        `json:"steps"`
	Duration       time.Duration `json:"duration"`
	Bodies         []BodyState   `json:"bodies"`
	Drift          *DriftReport  `json:"drift,omitempty"`
}

// BodyState is one body's state at the end of a run
type BodyState struct {
	ID           string     `json:"id"`
	Position     [3]string  `json:"position"`     // full precision, decimal
	Acceleration [3]string  `json:"acceleration"` // running field, decimal
	Render       [3]float32 `json:"render"`       // frame-relative, lossy
	SpinAngle    float64    `json:"spin_angle"`   // radians
}

// DriftReport describes how conserved-in-principle quantities wandered over
// a run. Values are float64 views of the high-precision state.
type DriftReport struct {
	Samples    int         `json:"samples"`
	FirstStep  uint64      `json:"first_step"`
	LastStep   uint64      `json:"last_step"`
	MassMoment SeriesStats `json:"mass_moment"` // |Σ m·x - initial|
	Separation []PairStats `json:"separation"`
}

// SeriesStats are summary statistics of a sampled series
type SeriesStats struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Final  float64 `json:"final"`
}

// PairStats tracks the separation of one body pair
type PairStats struct {
	A       string      `json:"a"`
	B       string      `json:"b"`
	Initial float64     `json:"initial"`
	Stats   SeriesStats `json:"stats"`
}
