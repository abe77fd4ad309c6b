// Package codec converts embedding vectors to and from the fixed-width
// binary form stored next to each chunk: D little-endian float32 values.
package codec

import (
	"encoding/binary"
	"math"
)

const floatSize = 4

func Encode(v []float32) []byte {
	buf := make([]byte, len(v)*floatSize)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*floatSize:], math.Float32bits(f))
	}
	return buf
}

// Decode is the inverse of Encode. Trailing bytes that do not form a whole
// float are ignored, so a blob of length n yields n/4 values.
func Decode(b []byte) []float32 {
	v := make([]float32, len(b)/floatSize)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*floatSize:]))
	}
	return v
}

// Dimension returns the number of whole floats in an encoded vector.
func Dimension(b []byte) int {
	return len(b) / floatSize
}
