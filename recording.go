package lofield

import (
	"fmt"
	"io"
	"sort"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

type (
	// RecordingEventType tells what kind of performance edit was recorded.
	RecordingEventType string

	// AutomationParam names a tweakable performance parameter. Only tweak
	// events carry one.
	AutomationParam string

	// RecordingEvent is a single timestamped parameter edit, relative to
	// the start of the recording. Old and New are the parameter values
	// before and after the edit; for tweaks they are numeric, for layer
	// events they may be anything the UI layer recorded.
	RecordingEvent struct {
		ID          string             `yaml:"id"`
		TimestampMs int                `yaml:"timestampMs"`
		Type        RecordingEventType `yaml:"type"`
		Param       AutomationParam    `yaml:"param,omitempty"`
		LayerID     string             `yaml:"layerId,omitempty"`
		Old         any                `yaml:"oldValue,omitempty"`
		New         any                `yaml:"newValue"`
	}

	// Recording is an immutable automation timeline: events ordered by
	// timestamp plus the total duration of the take. Construct one with
	// NewRecording, which copies and sorts the events.
	Recording struct {
		Events     []RecordingEvent `yaml:"events"`
		DurationMs int              `yaml:"durationMs"`
	}
)

const (
	EventTweak       RecordingEventType = "tweak"
	EventLayerMute   RecordingEventType = "layer_mute"
	EventLayerVolume RecordingEventType = "layer_volume"
	EventLayerSolo   RecordingEventType = "layer_solo"
)

const (
	ParamBPM    AutomationParam = "bpm"
	ParamSwing  AutomationParam = "swing"
	ParamFilter AutomationParam = "filter"
	ParamReverb AutomationParam = "reverb"
	ParamDelay  AutomationParam = "delay"
)

// NewRecording builds a Recording from the given events and total duration.
// The events are copied and stably sorted by timestamp, so the caller's
// slice order does not matter and later mutations of it do not leak into the
// Recording.
func NewRecording(events []RecordingEvent, durationMs int) Recording {
	sorted := make([]RecordingEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].TimestampMs < sorted[j].TimestampMs
	})
	return Recording{Events: sorted, DurationMs: durationMs}
}

// NewTweak is a convenience constructor for a tweak event with a fresh id.
func NewTweak(atMs int, param AutomationParam, old, new float64) RecordingEvent {
	return RecordingEvent{
		ID:          uuid.NewString(),
		TimestampMs: atMs,
		Type:        EventTweak,
		Param:       param,
		Old:         old,
		New:         new,
	}
}

// NumericNew returns the event's new value as a float64, with ok telling
// whether the value was numeric at all. Automation replay skips events whose
// new value is not numeric.
func (e RecordingEvent) NumericNew() (float64, bool) {
	switch v := e.New.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// ReadRecording parses a yaml automation timeline and normalizes it through
// NewRecording.
func ReadRecording(r io.Reader) (Recording, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Recording{}, fmt.Errorf("could not read recording: %w", err)
	}
	var rec Recording
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return Recording{}, fmt.Errorf("could not parse recording yaml: %w", err)
	}
	return NewRecording(rec.Events, rec.DurationMs), nil
}

// Write serializes the recording as yaml.
func (rec Recording) Write(w io.Writer) error {
	data, err := yaml.Marshal(rec)
	if err != nil {
		return fmt.Errorf("could not marshal recording: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("could not write recording: %w", err)
	}
	return nil
}
