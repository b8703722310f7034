package graph

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Musical time resolution of the transport, in ticks per quarter note. The
// transport assumes 4/4, so a bar is 4*TicksPerQuarter ticks and a sixteenth
// is TicksPerQuarter/4.
const (
	TicksPerQuarter   = 192
	TicksPerBar       = 4 * TicksPerQuarter
	TicksPerSixteenth = TicksPerQuarter / 4
)

var noteOffsets = map[byte]int{
	'C': 0, 'D': 2, 'E': 4, 'F': 5, 'G': 7, 'A': 9, 'B': 11,
}

// NoteToFreq converts a scientific pitch name ("C4", "F#2", "Bb3") to a
// frequency in Hz, with A4 = 440. Errors on anything it cannot parse; the
// schedulers skip unparseable values rather than failing the performance.
func NoteToFreq(name string) (float64, error) {
	s := strings.TrimSpace(name)
	if len(s) < 2 {
		return 0, fmt.Errorf("invalid note %q", name)
	}
	offset, ok := noteOffsets[s[0]]
	if !ok {
		return 0, fmt.Errorf("invalid note %q", name)
	}
	rest := s[1:]
	for len(rest) > 0 {
		if rest[0] == '#' {
			offset++
		} else if rest[0] == 'b' {
			offset--
		} else {
			break
		}
		rest = rest[1:]
	}
	octave, err := strconv.Atoi(rest)
	if err != nil {
		return 0, fmt.Errorf("invalid note %q", name)
	}
	midi := (octave+1)*12 + offset
	return 440 * math.Pow(2, float64(midi-69)/12), nil
}

// SubdivisionTicks converts a notation value ("4n", "8t", "1m", "16n") to
// transport ticks. "Xn" is a 1/X note, "Xt" the triplet variant, "Xm" is X
// measures.
func SubdivisionTicks(notation string) (float64, error) {
	s := strings.TrimSpace(notation)
	if len(s) < 2 {
		return 0, fmt.Errorf("invalid subdivision %q", notation)
	}
	suffix := s[len(s)-1]
	value, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || value <= 0 {
		return 0, fmt.Errorf("invalid subdivision %q", notation)
	}
	switch suffix {
	case 'n':
		return float64(4*TicksPerQuarter) / float64(value), nil
	case 't':
		return float64(4*TicksPerQuarter) / float64(value) * 2 / 3, nil
	case 'm':
		return float64(value * TicksPerBar), nil
	}
	return 0, fmt.Errorf("invalid subdivision %q", notation)
}

// TimeToSeconds resolves a time value that is either a subdivision notation
// string or a plain number of seconds.
func TimeToSeconds(value any, bpm float64) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case string:
		ticks, err := SubdivisionTicks(v)
		if err != nil {
			return 0, err
		}
		return ticks / TicksPerQuarter * 60 / bpm, nil
	}
	return 0, fmt.Errorf("invalid time value %v", value)
}
