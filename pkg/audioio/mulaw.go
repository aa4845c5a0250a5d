package audioio

import "github.com/zaf/g711"

// MulawEncode compresses PCM16 samples to one G.711 mu-law byte per sample.
func MulawEncode(samples []int16) []byte {
	out := make([]byte, len(samples))
	for i, s := range samples {
		out[i] = g711.EncodeUlawFrame(s)
	}
	return out
}

// MulawDecode expands mu-law bytes to PCM16 samples.
func MulawDecode(data []byte) []int16 {
	out := make([]int16, len(data))
	for i, b := range data {
		out[i] = g711.DecodeUlawFrame(b)
	}
	return out
}
