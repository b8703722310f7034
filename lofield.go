// Package lofield contains the domain types of the lofield performance
// engine: the runtime state machine states, trigger and transport values
// published to visualization consumers, recorded automation timelines, and
// the audio buffer / encoder primitives shared by the live and offline
// render paths. The actual machinery lives in the subpackages: graph (the
// synthesis-graph runtime), script (the snippet evaluator), engine (the
// runtime manager, visualization bridge and offline renderer) and oto (the
// speaker output adapter).
package lofield

import "fmt"

type (
	// AudioSink is something where we can send audio e.g. speakers or a
	// file. The buffer is stereo, interleaved (left, right, left, right...),
	// in the range [-1, 1].
	AudioSink interface {
		WriteAudio(buffer []float32) error
		Close() error
	}

	// AudioContext represents the low-level audio drivers. There should be
	// at most one AudioContext at a time. The interface is implemented by
	// the oto subpackage; tests use silent stand-ins.
	AudioContext interface {
		Output() AudioSink
		Close() error
	}

	// AudioBuffer is a buffer of stereo audio samples of variable length,
	// each sample represented by [2]float32.
	AudioBuffer [][2]float32
)

// Interleave returns the buffer contents as a single interleaved []float32,
// appending to dst to allow reusing its capacity.
func (buf AudioBuffer) Interleave(dst []float32) []float32 {
	for _, frame := range buf {
		dst = append(dst, frame[0], frame[1])
	}
	return dst
}

// Planar splits the buffer into per-channel sample slices, which is the
// layout the offline render path and the WAV encoder work with.
func (buf AudioBuffer) Planar() [][]float32 {
	left := make([]float32, len(buf))
	right := make([]float32, len(buf))
	for i, frame := range buf {
		left[i] = frame[0]
		right[i] = frame[1]
	}
	return [][]float32{left, right}
}

// ExportPhase enumerates the coarse phases an offline render goes through.
// Progress is reported only at phase boundaries; there is no per-sample
// progress.
type ExportPhase int

const (
	ExportPreparing ExportPhase = iota
	ExportRendering
	ExportEncoding
	ExportComplete
)

func (p ExportPhase) String() string {
	switch p {
	case ExportPreparing:
		return "preparing"
	case ExportRendering:
		return "rendering"
	case ExportEncoding:
		return "encoding"
	case ExportComplete:
		return "complete"
	}
	return fmt.Sprintf("ExportPhase(%d)", int(p))
}

// ExportProgress is a monotonically advancing status value published while
// an offline render is running. No state beyond the current render is kept.
type ExportProgress struct {
	Phase   ExportPhase
	Percent int // 0-100
	Message string
}
