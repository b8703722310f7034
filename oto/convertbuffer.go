package oto

import (
	"encoding/binary"
	"math"
)

// FloatBufferToBytesLE converts a float32 sample buffer to the raw
// little-endian byte layout the float32 output format expects, appending to
// dst to allow reusing its capacity.
func FloatBufferToBytesLE(buffer []float32, dst []byte) []byte {
	for _, v := range buffer {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(v))
	}
	return dst
}
