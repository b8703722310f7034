package lofield

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrUnsupportedFormat is returned when an export format other than wav is
// requested. It is a deliberate hard failure so callers can tell a missing
// encoder apart from an encoding bug.
var ErrUnsupportedFormat = errors.New("unsupported export format")

const (
	FormatWav = "wav"
	FormatMp3 = "mp3" // size estimation only, no encoder

	// compressedByteRate is the flat bitrate proxy used to estimate
	// compressed file sizes without running an encoder.
	compressedByteRate = 16 * 1024
)

// Wav encodes planar per-channel float samples as a 16-bit signed PCM
// little-endian RIFF/WAVE file with the standard 44-byte header. All
// channels must have the same length; channels are interleaved
// sample-by-sample. Refer to:
// http://www-mmsp.ece.mcgill.ca/Documents/AudioFormats/WAVE/WAVE.html
func Wav(channels [][]float32, sampleRate int) ([]byte, error) {
	if len(channels) == 0 {
		return nil, errors.New("Wav needs at least one channel")
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	numSamples := len(channels[0])
	for i, c := range channels[1:] {
		if len(c) != numSamples {
			return nil, fmt.Errorf("channel %d has %d samples, channel 0 has %d", i+1, len(c), numSamples)
		}
	}
	numChannels := len(channels)
	blockAlign := numChannels * 2
	dataSize := numSamples * blockAlign
	buf := new(bytes.Buffer)
	buf.Grow(44 + dataSize)
	buf.Write([]byte("RIFF"))
	binary.Write(buf, binary.LittleEndian, uint32(36+dataSize))
	buf.Write([]byte("WAVE"))
	buf.Write([]byte("fmt "))
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(buf, binary.LittleEndian, uint16(numChannels))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate*blockAlign)) // avgBytesPerSec
	binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(16)) // bits per sample
	buf.Write([]byte("data"))
	binary.Write(buf, binary.LittleEndian, uint32(dataSize))
	pcm := make([]int16, numSamples*numChannels)
	for i := 0; i < numSamples; i++ {
		for c := 0; c < numChannels; c++ {
			pcm[i*numChannels+c] = floatToPCM16(channels[c][i])
		}
	}
	if err := binary.Write(buf, binary.LittleEndian, pcm); err != nil {
		return nil, fmt.Errorf("could not write pcm data: %w", err)
	}
	return buf.Bytes(), nil
}

// floatToPCM16 converts a [-1, 1] float sample to 16-bit PCM. Positive
// values scale by 32767 and negative by 32768, so both full-scale
// extremes map exactly.
func floatToPCM16(v float32) int16 {
	var scaled float64
	if v >= 0 {
		scaled = float64(v) * 32767
	} else {
		scaled = float64(v) * 32768
	}
	return int16(clamp(int(scaled), math.MinInt16, math.MaxInt16))
}

func clamp(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// EstimateFileSize predicts the size in bytes of an export without encoding
// anything. Wav is exact (stereo, 16-bit); compressed formats use a flat
// bitrate proxy with no header overhead.
func EstimateFileSize(format string, durationSeconds float64, sampleRate int) int {
	if format == FormatWav {
		return 44 + int(durationSeconds*float64(sampleRate))*2*2
	}
	return int(durationSeconds * compressedByteRate)
}
