package lofield_test

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/mitchellfyi/lofield"
)

func TestWavRoundTrip(t *testing.T) {
	left := []float32{1, -1, 0.5, -0.5, 0}
	right := []float32{0, 0.25, -0.25, 1, -1}
	blob, err := lofield.Wav([][]float32{left, right}, 44100)
	if err != nil {
		t.Fatalf("Wav failed: %v", err)
	}
	if want := 44 + len(left)*2*2; len(blob) != want {
		t.Fatalf("blob size: got %v, want %v", len(blob), want)
	}
	if string(blob[0:4]) != "RIFF" || string(blob[8:12]) != "WAVE" {
		t.Fatal("missing RIFF/WAVE magic")
	}
	if got := binary.LittleEndian.Uint16(blob[20:]); got != 1 {
		t.Errorf("audioFormat: got %v, want 1 (PCM)", got)
	}
	if got := binary.LittleEndian.Uint16(blob[22:]); got != 2 {
		t.Errorf("numChannels: got %v, want 2", got)
	}
	if got := binary.LittleEndian.Uint32(blob[24:]); got != 44100 {
		t.Errorf("sampleRate: got %v, want 44100", got)
	}
	if got := binary.LittleEndian.Uint32(blob[28:]); got != 44100*4 {
		t.Errorf("byteRate: got %v, want %v", got, 44100*4)
	}
	if got := binary.LittleEndian.Uint16(blob[32:]); got != 4 {
		t.Errorf("blockAlign: got %v, want 4", got)
	}
	if got := binary.LittleEndian.Uint16(blob[34:]); got != 16 {
		t.Errorf("bitsPerSample: got %v, want 16", got)
	}
	if got := binary.LittleEndian.Uint32(blob[40:]); got != uint32(len(left)*4) {
		t.Errorf("dataSize: got %v, want %v", got, len(left)*4)
	}

	decoder := wav.NewDecoder(bytes.NewReader(blob))
	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		t.Fatalf("decoding failed: %v", err)
	}
	if decoder.NumChans != 2 || decoder.SampleRate != 44100 || decoder.BitDepth != 16 {
		t.Fatalf("decoded format: %v channels, %v Hz, %v bits",
			decoder.NumChans, decoder.SampleRate, decoder.BitDepth)
	}
	wantFormat := audio.Format{NumChannels: 2, SampleRate: 44100}
	if *buf.Format != wantFormat {
		t.Fatalf("decoded buffer format: %+v, want %+v", *buf.Format, wantFormat)
	}
	// positive samples scale by 32767, negative by 32768, interleaved
	// left-right per frame
	want := []int{
		32767, 0,
		-32768, 8191,
		16383, -8192,
		-16384, 32767,
		0, -32768,
	}
	if len(buf.Data) != len(want) {
		t.Fatalf("decoded %v samples, want %v", len(buf.Data), len(want))
	}
	for i, w := range want {
		if buf.Data[i] != w {
			t.Errorf("sample %v: got %v, want %v", i, buf.Data[i], w)
		}
	}
}

func TestWavClampsOutOfRangeSamples(t *testing.T) {
	blob, err := lofield.Wav([][]float32{{2, -2}}, 8000)
	if err != nil {
		t.Fatalf("Wav failed: %v", err)
	}
	pcm := []int16{
		int16(binary.LittleEndian.Uint16(blob[44:])),
		int16(binary.LittleEndian.Uint16(blob[46:])),
	}
	if pcm[0] != 32767 || pcm[1] != -32768 {
		t.Errorf("clamped samples: got %v, want [32767 -32768]", pcm)
	}
}

func TestWavRejectsMismatchedChannels(t *testing.T) {
	if _, err := lofield.Wav([][]float32{{0, 0}, {0}}, 44100); err == nil {
		t.Error("mismatched channel lengths should fail")
	}
	if _, err := lofield.Wav(nil, 44100); err == nil {
		t.Error("empty channel list should fail")
	}
	if _, err := lofield.Wav([][]float32{{0}}, 0); err == nil {
		t.Error("zero sample rate should fail")
	}
}

func TestEstimateFileSize(t *testing.T) {
	if got, want := lofield.EstimateFileSize(lofield.FormatWav, 2, 44100), 44+2*44100*2*2; got != want {
		t.Errorf("wav estimate: got %v, want %v", got, want)
	}
	if got, want := lofield.EstimateFileSize(lofield.FormatMp3, 2, 44100), 2*16*1024; got != want {
		t.Errorf("mp3 estimate: got %v, want %v", got, want)
	}
}
