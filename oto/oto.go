// Package oto adapts the platform audio device to the lofield AudioContext
// interface. The realtime render loop paces itself against the device
// through the pipe feeding the player.
package oto

import (
	"fmt"
	"io"

	"github.com/ebitengine/oto/v3"
	"github.com/mitchellfyi/lofield"
)

type (
	// Context wraps the process-wide oto audio context. There should be at
	// most one at a time.
	Context struct {
		context *oto.Context
		output  *Output
	}

	// Output streams interleaved float32 audio to the speakers through a
	// pipe-fed oto player.
	Output struct {
		player    *oto.Player
		pipe      *io.PipeWriter
		tmpBuffer []byte
	}
)

// NewContext opens the audio device for stereo float32 output at the given
// sample rate and waits until the device is ready.
func NewContext(sampleRate int) (lofield.AudioContext, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 2,
		Format:       oto.FormatFloat32LE,
	}
	context, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("cannot create oto context: %w", err)
	}
	<-ready
	r, w := io.Pipe()
	player := context.NewPlayer(r)
	player.Play()
	return &Context{
		context: context,
		output:  &Output{player: player, pipe: w},
	}, nil
}

func (c *Context) Output() lofield.AudioSink { return c.output }

func (c *Context) Close() error { return c.output.Close() }

// WriteAudio implements lofield.AudioSink. Blocks until the device has
// consumed enough of the previous writes, which is what paces the render
// loop. We reuse the old capacity of tmpBuffer by setting its length to
// zero, then save it so we can reuse it next time.
func (o *Output) WriteAudio(floatBuffer []float32) error {
	o.tmpBuffer = FloatBufferToBytesLE(floatBuffer, o.tmpBuffer[:0])
	if _, err := o.pipe.Write(o.tmpBuffer); err != nil {
		return fmt.Errorf("cannot write to player: %w", err)
	}
	return nil
}

// Close disposes of resources
func (o *Output) Close() error {
	o.pipe.Close()
	if err := o.player.Close(); err != nil {
		return fmt.Errorf("cannot close oto player: %w", err)
	}
	return nil
}
