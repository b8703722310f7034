package graph

import "math"

// FeedbackDelay is a tempo-syncable feedback comb over the sum of its
// inputs, mixed wet against the dry signal. The comb core follows the
// classic interpolation-free form: the delay time is fixed at construction,
// only feedback and wet are automatable.
type FeedbackDelay struct {
	mixer
	sampleRate int
	buf        [2][]float32
	writeIdx   int
	feedback   param
	wet        param
}

// NewFeedbackDelay creates a delay line of the given length in seconds.
func NewFeedbackDelay(sampleRate int, delaySeconds, feedback float64) *FeedbackDelay {
	frames := int(math.Round(delaySeconds * float64(sampleRate)))
	if frames < 1 {
		frames = 1
	}
	d := &FeedbackDelay{sampleRate: sampleRate}
	d.buf[0] = make([]float32, frames)
	d.buf[1] = make([]float32, frames)
	d.feedback.init(clampFeedback(feedback))
	d.wet.init(0.4)
	return d
}

func clampFeedback(fb float64) float64 {
	return math.Max(-0.98, math.Min(0.98, fb))
}

func (d *FeedbackDelay) SetFeedback(fb, rampSeconds float64) {
	d.feedback.set(clampFeedback(fb), rampSeconds, d.sampleRate)
}

func (d *FeedbackDelay) SetWet(wet, rampSeconds float64) {
	d.wet.set(math.Max(0, math.Min(1, wet)), rampSeconds, d.sampleRate)
}

func (d *FeedbackDelay) Feedback() float64 { return d.feedback.current() }
func (d *FeedbackDelay) Wet() float64      { return d.wet.current() }

func (d *FeedbackDelay) Process(left, right []float32) {
	d.renderInputs(left, right)
	fb := float32(d.feedback.step(len(left)))
	wet := float32(d.wet.step(len(left)))
	size := len(d.buf[0])
	idx := d.writeIdx
	for i := range left {
		for c, buf := range [2][]float32{d.buf[0], d.buf[1]} {
			var dry float32
			if c == 0 {
				dry = left[i]
			} else {
				dry = right[i]
			}
			delayed := buf[idx]
			buf[idx] = dry + fb*delayed
			out := dry + wet*delayed
			if c == 0 {
				left[i] = out
			} else {
				right[i] = out
			}
		}
		idx++
		if idx == size {
			idx = 0
		}
	}
	d.writeIdx = idx
}

func (d *FeedbackDelay) Dispose() { d.markDisposed() }
