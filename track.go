package lofield

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Track is a stored performance: the source text the engine evaluates, plus
// the metadata the persistence layer keeps next to it. The engine treats
// Source as an opaque program; only the instrumenter pattern-matches it.
type Track struct {
	Name   string  `yaml:"name"`
	BPM    float64 `yaml:"bpm,omitempty"`
	Source string  `yaml:"source"`
}

// ReadTrack parses a yaml track file.
func ReadTrack(r io.Reader) (Track, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Track{}, fmt.Errorf("could not read track: %w", err)
	}
	var t Track
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Track{}, fmt.Errorf("could not parse track yaml: %w", err)
	}
	return t, nil
}

// Write serializes the track as yaml.
func (t Track) Write(w io.Writer) error {
	data, err := yaml.Marshal(t)
	if err != nil {
		return fmt.Errorf("could not marshal track: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("could not write track: %w", err)
	}
	return nil
}
