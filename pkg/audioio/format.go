package audioio

import (
	"errors"
	"fmt"
)

// Encoding names an on-the-wire sample encoding. The values match the
// encoding names the agent service expects in its audio settings.
type Encoding string

const (
	EncodingMulaw    Encoding = "mulaw"
	EncodingLinear16 Encoding = "linear16"
	EncodingFloat32  Encoding = "float32"
)

// ErrUnsupportedEncoding is returned by Convert for unknown encodings.
var ErrUnsupportedEncoding = errors.New("audioio: unsupported encoding")

// Format describes mono audio frames.
type Format struct {
	Encoding   Encoding
	SampleRate int
}

// Common formats.
var (
	// Telephony is what carrier media streams send and expect.
	Telephony = Format{Encoding: EncodingMulaw, SampleRate: 8000}

	// Browser is what the capture worklet posts.
	Browser = Format{Encoding: EncodingFloat32, SampleRate: 16000}

	// PCM16k is linear PCM at wideband rate.
	PCM16k = Format{Encoding: EncodingLinear16, SampleRate: 16000}
)

// String returns e.g. "mulaw@8000".
func (f Format) String() string {
	return fmt.Sprintf("%s@%d", f.Encoding, f.SampleRate)
}

// Convert re-encodes a frame from one format to another. Identical formats
// pass through untouched; every other combination is decoded to int16,
// resampled, and re-encoded.
func Convert(data []byte, from, to Format) ([]byte, error) {
	if from == to {
		return data, nil
	}

	samples, err := toSamples(data, from.Encoding)
	if err != nil {
		return nil, err
	}

	samples = Resample(samples, from.SampleRate, to.SampleRate)

	return fromSamples(samples, to.Encoding)
}

func toSamples(data []byte, enc Encoding) ([]int16, error) {
	switch enc {
	case EncodingMulaw:
		return MulawDecode(data), nil
	case EncodingLinear16:
		return DecodePCM16(data)
	case EncodingFloat32:
		f, err := DecodeFloat32(data)
		if err != nil {
			return nil, err
		}
		return Float32ToInt16(f), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEncoding, enc)
	}
}

func fromSamples(samples []int16, enc Encoding) ([]byte, error) {
	switch enc {
	case EncodingMulaw:
		return MulawEncode(samples), nil
	case EncodingLinear16:
		return EncodePCM16(samples), nil
	case EncodingFloat32:
		return EncodeFloat32(Int16ToFloat32(samples)), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEncoding, enc)
	}
}
