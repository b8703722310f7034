package graph

import (
	"errors"
	"math"
)

// OfflineContext renders a fixed number of frames as fast as possible
// instead of streaming to a sink. It carries its own transport and
// destination so nothing evaluated against it can leak into the live
// output. Dispose must be called when done, even on error paths.
type OfflineContext struct {
	sampleRate int
	frames     int
	transport  *Transport
	dest       *Destination
	disposed   bool
	rendered   bool
}

func NewOfflineContext(durationSeconds float64, sampleRate int) *OfflineContext {
	return &OfflineContext{
		sampleRate: sampleRate,
		frames:     int(math.Ceil(durationSeconds * float64(sampleRate))),
		transport:  newTransport(sampleRate),
		dest:       newDestination(),
	}
}

func (o *OfflineContext) SampleRate() int           { return o.sampleRate }
func (o *OfflineContext) Frames() int               { return o.frames }
func (o *OfflineContext) Transport() *Transport     { return o.transport }
func (o *OfflineContext) Destination() *Destination { return o.dest }

// Render computes every frame and returns the planar stereo channel data.
// This is a single long-lived call with no cancellation; a render either
// completes or fails.
func (o *OfflineContext) Render() ([][]float32, error) {
	if o.disposed {
		return nil, errors.New("render on a disposed offline context")
	}
	if o.rendered {
		return nil, errors.New("offline context can only render once")
	}
	o.rendered = true
	left := make([]float32, o.frames)
	right := make([]float32, o.frames)
	for offset := 0; offset < o.frames; offset += renderBlockFrames {
		end := offset + renderBlockFrames
		if end > o.frames {
			end = o.frames
		}
		renderChunk(o.transport, o.dest, left[offset:end], right[offset:end])
	}
	return [][]float32{left, right}, nil
}

// Dispose halts the transport and releases the context. Idempotent.
func (o *OfflineContext) Dispose() {
	if o.disposed {
		return
	}
	o.disposed = true
	o.transport.Stop()
	o.transport.CancelAll()
}
