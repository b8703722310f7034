package graph

import (
	"math"
	"math/rand"
	"sync"
)

type (
	// PolySynth is a bank of oscillator+envelope voices with the usual
	// steal-the-oldest-released allocation. It is the workhorse instrument
	// of the preset catalog; MonoSynth is the single-voice variant.
	PolySynth struct {
		mu         sync.Mutex
		sampleRate int
		transport  *Transport
		osc        string
		level      float32
		env        envelopeSpec
		voices     []voice
		disposed   bool
	}

	// NoiseSynth renders enveloped noise hits, for hats and percussion.
	NoiseSynth struct {
		mu         sync.Mutex
		sampleRate int
		transport  *Transport
		level      float32
		burst      int // frames left in the current hit
		burstLen   int
		rng        *rand.Rand
		disposed   bool
	}

	voice struct {
		freq     float64
		phase    float64
		gate     bool
		age      int // samples since last trigger or release
		stage    envStage
		envLevel float64
	}

	envelopeSpec struct {
		attack, decay, release float64 // seconds
		sustain                float64 // level
	}

	envStage int
)

const (
	envIdle envStage = iota
	envAttack
	envDecay
	envSustain
	envRelease
)

const defaultVoices = 8

// SynthOptions are the script-settable construction options.
type SynthOptions struct {
	Voices     int
	Oscillator string  // sine, triangle, sawtooth, square
	Volume     float64 // 0..1
	Attack     float64
	Decay      float64
	Sustain    float64
	Release    float64
}

func defaultSynthOptions() SynthOptions {
	return SynthOptions{
		Voices:     defaultVoices,
		Oscillator: "sawtooth",
		Volume:     0.4,
		Attack:     0.005,
		Decay:      0.1,
		Sustain:    0.5,
		Release:    0.25,
	}
}

func NewPolySynth(sampleRate int, transport *Transport, opts SynthOptions) *PolySynth {
	def := defaultSynthOptions()
	if opts.Voices <= 0 {
		opts.Voices = def.Voices
	}
	if opts.Oscillator == "" {
		opts.Oscillator = def.Oscillator
	}
	if opts.Volume <= 0 {
		opts.Volume = def.Volume
	}
	if opts.Attack <= 0 {
		opts.Attack = def.Attack
	}
	if opts.Decay <= 0 {
		opts.Decay = def.Decay
	}
	if opts.Sustain <= 0 {
		opts.Sustain = def.Sustain
	}
	if opts.Release <= 0 {
		opts.Release = def.Release
	}
	return &PolySynth{
		sampleRate: sampleRate,
		transport:  transport,
		osc:        opts.Oscillator,
		level:      float32(opts.Volume),
		env:        envelopeSpec{opts.Attack, opts.Decay, opts.Release, opts.Sustain},
		voices:     make([]voice, opts.Voices),
	}
}

// NewMonoSynth is a PolySynth constrained to one voice.
func NewMonoSynth(sampleRate int, transport *Transport, opts SynthOptions) *PolySynth {
	opts.Voices = 1
	return NewPolySynth(sampleRate, transport, opts)
}

// TriggerAttackRelease plays the note at the given transport time for the
// given duration. Calls from inside a transport callback land
// sample-accurately; a when in the past (or a stopped transport) triggers
// immediately.
func (s *PolySynth) TriggerAttackRelease(freq, durSeconds, whenSeconds float64) {
	attack := func(float64) { s.attack(freq) }
	release := func(float64) { s.release(freq) }
	now := s.transport.Seconds()
	if !s.transport.Started() || whenSeconds <= now {
		attack(now)
		s.transport.ScheduleOnce(now+durSeconds, release)
		return
	}
	s.transport.ScheduleOnce(whenSeconds, attack)
	s.transport.ScheduleOnce(whenSeconds+durSeconds, release)
}

// attack allocates a voice, preferring released voices and then the one
// longest since its last event, mirroring the usual tracker allocation.
func (s *PolySynth) attack(freq float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return
	}
	best := 0
	bestReleased := false
	age := -1
	for i := range s.voices {
		v := &s.voices[i]
		released := !v.gate
		if (released && !bestReleased) || (released == bestReleased && v.age >= age) {
			best = i
			bestReleased = released
			age = v.age
		}
	}
	s.voices[best] = voice{freq: freq, gate: true, stage: envAttack}
}

func (s *PolySynth) release(freq float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.voices {
		v := &s.voices[i]
		if v.gate && v.freq == freq {
			v.gate = false
			v.age = 0
			v.stage = envRelease
			return
		}
	}
}

func (s *PolySynth) Process(left, right []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range left {
		left[i] = 0
		right[i] = 0
	}
	if s.disposed {
		return
	}
	gain := s.level / float32(math.Sqrt(float64(len(s.voices))))
	for vi := range s.voices {
		v := &s.voices[vi]
		if v.stage == envIdle {
			v.age += len(left)
			continue
		}
		step := v.freq / float64(s.sampleRate)
		for i := range left {
			amp := s.envStep(v)
			if v.stage == envIdle {
				break
			}
			sample := float32(oscSample(s.osc, v.phase)*amp) * gain
			left[i] += sample
			right[i] += sample
			v.phase += step
			if v.phase >= 1 {
				v.phase -= 1
			}
		}
		v.age += len(left)
	}
}

// envStep advances one voice's envelope by one sample and returns its level.
func (s *PolySynth) envStep(v *voice) float64 {
	switch v.stage {
	case envAttack:
		frames := s.env.attack * float64(s.sampleRate)
		v.envLevel += 1 / math.Max(frames, 1)
		if v.envLevel >= 1 {
			v.envLevel = 1
			v.stage = envDecay
		}
	case envDecay:
		frames := s.env.decay * float64(s.sampleRate)
		v.envLevel -= (1 - s.env.sustain) / math.Max(frames, 1)
		if v.envLevel <= s.env.sustain {
			v.envLevel = s.env.sustain
			v.stage = envSustain
		}
	case envSustain:
		// held until release
	case envRelease:
		frames := s.env.release * float64(s.sampleRate)
		v.envLevel -= s.env.sustain / math.Max(frames, 1)
		if v.envLevel <= 0 {
			v.envLevel = 0
			v.stage = envIdle
		}
	}
	return v.envLevel
}

func oscSample(kind string, phase float64) float64 {
	switch kind {
	case "sine":
		return math.Sin(2 * math.Pi * phase)
	case "triangle":
		return 1 - 4*math.Abs(phase-0.5)
	case "square":
		if phase < 0.5 {
			return 1
		}
		return -1
	default: // sawtooth
		return 2*phase - 1
	}
}

func (s *PolySynth) Dispose() {
	s.mu.Lock()
	s.disposed = true
	for i := range s.voices {
		s.voices[i] = voice{}
	}
	s.mu.Unlock()
}

func NewNoiseSynth(sampleRate int, transport *Transport, volume float64) *NoiseSynth {
	if volume <= 0 {
		volume = 0.3
	}
	return &NoiseSynth{
		sampleRate: sampleRate,
		transport:  transport,
		level:      float32(volume),
		rng:        rand.New(rand.NewSource(2)),
	}
}

// TriggerAttackRelease starts a noise hit of the given duration at the
// given transport time.
func (n *NoiseSynth) TriggerAttackRelease(durSeconds, whenSeconds float64) {
	fire := func(float64) {
		n.mu.Lock()
		n.burstLen = int(durSeconds * float64(n.sampleRate))
		if n.burstLen < 1 {
			n.burstLen = 1
		}
		n.burst = n.burstLen
		n.mu.Unlock()
	}
	if !n.transport.Started() || whenSeconds <= n.transport.Seconds() {
		fire(0)
		return
	}
	n.transport.ScheduleOnce(whenSeconds, fire)
}

func (n *NoiseSynth) Process(left, right []float32) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := range left {
		var sample float32
		if !n.disposed && n.burst > 0 {
			env := float32(n.burst) / float32(n.burstLen)
			sample = (n.rng.Float32()*2 - 1) * env * env * n.level
			n.burst--
		}
		left[i] = sample
		right[i] = sample
	}
}

func (n *NoiseSynth) Dispose() {
	n.mu.Lock()
	n.disposed = true
	n.burst = 0
	n.mu.Unlock()
}
