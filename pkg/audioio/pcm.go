// Package audioio converts audio frames between the encodings the relay sees:
// float32 samples from a browser capture worklet, 16-bit linear PCM, and the
// 8 kHz G.711 mu-law used on the telephony leg.
//
// Everything here is pure and stateless apart from DropCounter.
package audioio

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync/atomic"
)

// DecodeError reports a frame whose byte length cannot be reinterpreted as
// whole samples of the expected width.
type DecodeError struct {
	Encoding Encoding
	Length   int
	Width    int
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("audioio: malformed %s frame: %d bytes is not a multiple of %d",
		e.Encoding, e.Length, e.Width)
}

// DropCounter counts frames dropped because they failed to decode.
type DropCounter struct {
	n atomic.Int64
}

// Inc records one dropped frame.
func (d *DropCounter) Inc() int64 { return d.n.Add(1) }

// Count returns the number of dropped frames.
func (d *DropCounter) Count() int64 { return d.n.Load() }

// Float32ToInt16 scales samples in [-1, 1] to int16. Overdriven input is
// clamped instead of wrapping.
func Float32ToInt16(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		v := float64(s) * 32768
		switch {
		case math.IsNaN(v):
			v = 0
		case v > math.MaxInt16:
			v = math.MaxInt16
		case v < math.MinInt16:
			v = math.MinInt16
		}
		out[i] = int16(v)
	}
	return out
}

// Int16ToFloat32 is the inverse scaling of Float32ToInt16.
func Int16ToFloat32(samples []int16) []float32 {
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = float32(s) / 32768
	}
	return out
}

// DecodePCM16 reinterprets little-endian bytes as int16 samples.
func DecodePCM16(data []byte) ([]int16, error) {
	if len(data)%2 != 0 {
		return nil, &DecodeError{Encoding: EncodingLinear16, Length: len(data), Width: 2}
	}
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return samples, nil
}

// EncodePCM16 converts int16 samples to little-endian bytes.
func EncodePCM16(samples []int16) []byte {
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(s))
	}
	return data
}

// DecodeFloat32 reinterprets little-endian bytes as float32 samples, the
// layout a Float32Array from an AudioWorklet has on the wire.
func DecodeFloat32(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, &DecodeError{Encoding: EncodingFloat32, Length: len(data), Width: 4}
	}
	samples := make([]float32, len(data)/4)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return samples, nil
}

// EncodeFloat32 converts float32 samples to little-endian bytes.
func EncodeFloat32(samples []float32) []byte {
	data := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(s))
	}
	return data
}
