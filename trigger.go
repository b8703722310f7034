package lofield

import "time"

type (
	// TriggerKind tells what kind of musical event a trigger represents.
	TriggerKind string

	// TriggerEvent is emitted by instrumented source at the moment a
	// scheduled event fires inside the synthesis-graph scheduler. Line is
	// the 1-indexed line of the originating call in the original,
	// pre-instrumentation source text. At carries the monotonic clock
	// reading of the emission.
	TriggerEvent struct {
		Line int
		At   time.Time
		Note string // optional; empty when the callback had no value parameter
		Kind TriggerKind
	}

	// TransportSnapshot is an immutable value describing the musical clock,
	// published on each meaningful change. Bar and Beat are 1-indexed;
	// ProgressWithinBar is in [0, 1].
	TransportSnapshot struct {
		PositionLabel     string
		Seconds           float64
		BPM               float64
		Playing           bool
		Bar               int
		Beat              int
		ProgressWithinBar float64
	}
)

const (
	TriggerNote   TriggerKind = "note"
	TriggerChord  TriggerKind = "chord"
	TriggerRest   TriggerKind = "rest"
	TriggerEffect TriggerKind = "effect"
)
