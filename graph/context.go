// Package graph is the synthesis-graph runtime that evaluated performance
// programs are written against: a transport clock with a sample-accurate
// scheduler, a small set of instrument and effect nodes, and realtime /
// offline contexts driving the render loop. The engine package wires these
// into the script namespace; nothing here knows about source text.
package graph

import (
	"log/slog"
	"sync"

	"github.com/mitchellfyi/lofield"
)

const renderBlockFrames = 1024

// Context is the realtime rendering context: it owns the transport and the
// destination node and pumps rendered audio to an AudioSink on its own
// goroutine. There should be at most one live Context at a time.
type Context struct {
	sampleRate int
	transport  *Transport
	dest       *Destination
	sink       lofield.AudioSink
	pumpOnce   sync.Once
	closeOnce  sync.Once
	stop       chan struct{}
	done       chan struct{}
}

func NewContext(sampleRate int, sink lofield.AudioSink) *Context {
	return &Context{
		sampleRate: sampleRate,
		transport:  newTransport(sampleRate),
		dest:       newDestination(),
		sink:       sink,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

func (c *Context) SampleRate() int           { return c.sampleRate }
func (c *Context) Transport() *Transport     { return c.transport }
func (c *Context) Destination() *Destination { return c.dest }

// Resume makes sure the audio pump is running. Idempotent; the pump keeps
// running (rendering silence while the transport is stopped) until Close.
func (c *Context) Resume() {
	c.pumpOnce.Do(func() {
		go c.pump()
	})
}

func (c *Context) pump() {
	defer close(c.done)
	left := make([]float32, renderBlockFrames)
	right := make([]float32, renderBlockFrames)
	interleaved := make([]float32, 0, 2*renderBlockFrames)
	for {
		select {
		case <-c.stop:
			return
		default:
		}
		renderChunk(c.transport, c.dest, left, right)
		interleaved = interleaved[:0]
		for i := range left {
			interleaved = append(interleaved, left[i], right[i])
		}
		if err := c.sink.WriteAudio(interleaved); err != nil {
			slog.Error("audio sink write failed, stopping pump", "error", err)
			return
		}
	}
}

// Close stops the pump and waits for it to drain. Safe to call even if
// Resume never ran.
func (c *Context) Close() error {
	c.closeOnce.Do(func() {
		close(c.stop)
		c.pumpOnce.Do(func() { close(c.done) })
	})
	<-c.done
	return nil
}

// renderChunk renders one block, splitting it at scheduled-event boundaries
// so callbacks fire on their exact sample.
func renderChunk(t *Transport, dest *Destination, left, right []float32) {
	offset := 0
	for offset < len(left) {
		t.fireDue()
		n := t.framesUntilNextEvent(len(left) - offset)
		if n == 0 {
			n = 1 // guarantee progress
		}
		dest.Process(left[offset:offset+n], right[offset:offset+n])
		t.advance(n)
		offset += n
	}
	t.fireDue()
}
