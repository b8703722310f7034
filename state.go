package lofield

import "fmt"

// RuntimeState is the lifecycle state of the live playback runtime. Exactly
// one live runtime exists per process. Transitions are driven only by Init,
// Play, Stop, Reset and internal failures; StateError is reachable only from
// StateLoading or StatePlaying, and Stop always lands in StateReady (when
// initialized) or StateIdle.
type RuntimeState int

const (
	StateIdle RuntimeState = iota
	StateLoading
	StateReady
	StatePlaying
	StateError
)

func (s RuntimeState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StatePlaying:
		return "playing"
	case StateError:
		return "error"
	}
	return fmt.Sprintf("RuntimeState(%d)", int(s))
}
