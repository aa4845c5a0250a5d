package audioio

import (
	"testing"
)

func TestMulaw_Silence(t *testing.T) {
	enc := MulawEncode([]int16{0})
	if enc[0] != 0xFF {
		t.Errorf("expected 0xFF for silence, got %#x", enc[0])
	}
	if dec := MulawDecode(enc); dec[0] != 0 {
		t.Errorf("expected 0 after decode, got %d", dec[0])
	}
}

func TestMulaw_RoundTripWithinQuantization(t *testing.T) {
	in := []int16{100, -100, 1000, -1000, 8000, -8000, 32000, -32000}
	out := MulawDecode(MulawEncode(in))

	for i, s := range in {
		diff := int(out[i]) - int(s)
		if diff < 0 {
			diff = -diff
		}
		// mu-law step size grows with magnitude; 1/16 of the value is a safe bound.
		limit := int(s) / 16
		if limit < 0 {
			limit = -limit
		}
		if limit < 8 {
			limit = 8
		}
		if diff > limit {
			t.Errorf("sample %d: %d decoded as %d (diff %d > %d)", i, s, out[i], diff, limit)
		}
		if (s > 0) != (out[i] > 0) {
			t.Errorf("sample %d: sign flipped (%d -> %d)", i, s, out[i])
		}
	}
}

func TestMulaw_ClipsExtremes(t *testing.T) {
	out := MulawDecode(MulawEncode([]int16{32767, -32768}))
	if out[0] < 30000 || out[1] > -30000 {
		t.Errorf("extremes not preserved: %v", out)
	}
}

func TestMulaw_ReferenceCodes(t *testing.T) {
	// G.711 table endpoints.
	out := MulawDecode([]byte{0x00, 0x80, 0x7F})
	want := []int16{-32124, 32124, 0}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("code %d: got %d, want %d", i, out[i], want[i])
		}
	}
}
