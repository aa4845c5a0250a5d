package audioio

import (
	"bytes"
	"errors"
	"testing"

	"github.com/go-audio/wav"
)

func TestConvert_Passthrough(t *testing.T) {
	data := []byte{1, 2, 3}
	out, err := Convert(data, Telephony, Telephony)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(out, data) {
		t.Error("same-format conversion should pass through")
	}
}

func TestConvert_TelephonyToPCM16k(t *testing.T) {
	mulaw := MulawEncode(make([]int16, 160)) // 20ms at 8kHz
	out, err := Convert(mulaw, Telephony, PCM16k)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 320*2 {
		t.Errorf("expected %d bytes, got %d", 320*2, len(out))
	}
}

func TestConvert_BrowserToPCM16k(t *testing.T) {
	in := EncodeFloat32([]float32{0, 0.5, -0.5, 2})
	out, err := Convert(in, Browser, PCM16k)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	samples, _ := DecodePCM16(out)
	want := []int16{0, 16384, -16384, 32767}
	for i := range want {
		if samples[i] != want[i] {
			t.Errorf("sample %d: got %d, want %d", i, samples[i], want[i])
		}
	}
}

func TestConvert_MalformedFrame(t *testing.T) {
	_, err := Convert([]byte{1, 2, 3}, Browser, PCM16k)
	var decErr *DecodeError
	if !errors.As(err, &decErr) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
}

func TestConvert_UnknownEncoding(t *testing.T) {
	_, err := Convert([]byte{1, 2}, Format{Encoding: "opus", SampleRate: 48000}, PCM16k)
	if !errors.Is(err, ErrUnsupportedEncoding) {
		t.Fatalf("expected ErrUnsupportedEncoding, got %v", err)
	}
}

func TestEncodeWAV(t *testing.T) {
	pcm := EncodePCM16([]int16{1, -2, 300, -32768})
	out, err := EncodeWAV(pcm, 16000, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(out) != 44+len(pcm) {
		t.Fatalf("expected %d bytes, got %d", 44+len(pcm), len(out))
	}
	if string(out[0:4]) != "RIFF" || string(out[8:12]) != "WAVE" || string(out[36:40]) != "data" {
		t.Error("malformed WAV header")
	}
	if !bytes.Equal(out[44:], pcm) {
		t.Error("PCM payload mismatch")
	}

	dec := wav.NewDecoder(bytes.NewReader(out))
	if !dec.IsValidFile() {
		t.Fatal("decoder rejected the file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dec.SampleRate != 16000 || dec.NumChans != 1 || dec.BitDepth != 16 {
		t.Errorf("unexpected format: %d Hz, %d ch, %d bit", dec.SampleRate, dec.NumChans, dec.BitDepth)
	}
	want := []int{1, -2, 300, -32768}
	if len(buf.Data) != len(want) {
		t.Fatalf("expected %d samples, got %d", len(want), len(buf.Data))
	}
	for i := range want {
		if buf.Data[i] != want[i] {
			t.Errorf("sample %d: got %d, want %d", i, buf.Data[i], want[i])
		}
	}
}

func TestEncodeWAV_Rejects(t *testing.T) {
	if _, err := EncodeWAV(nil, 16000, 1); err == nil {
		t.Error("expected error for empty input")
	}
	var decErr *DecodeError
	if _, err := EncodeWAV([]byte{1, 2, 3}, 16000, 1); !errors.As(err, &decErr) {
		t.Errorf("expected DecodeError for odd length, got %v", err)
	}
}
