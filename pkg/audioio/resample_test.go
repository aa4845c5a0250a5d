package audioio

import (
	"testing"
)

func TestResample_SameRate(t *testing.T) {
	samples := []int16{100, 200, 300, 400, 500}
	result := Resample(samples, 8000, 8000)

	if len(result) != len(samples) {
		t.Errorf("Expected %d samples, got %d", len(samples), len(result))
	}

	for i, s := range samples {
		if result[i] != s {
			t.Errorf("Sample %d: expected %d, got %d", i, s, result[i])
		}
	}
}

func TestResample_Downsample(t *testing.T) {
	// 16kHz -> 8kHz (2:1 ratio)
	samples := make([]int16, 320) // 20ms at 16kHz
	for i := range samples {
		samples[i] = int16(i)
	}

	result := Resample(samples, 16000, 8000)

	if len(result) != 160 {
		t.Errorf("Expected 160 samples, got %d", len(result))
	}
}

func TestResample_Upsample(t *testing.T) {
	// 8kHz -> 16kHz
	samples := make([]int16, 160) // 20ms at 8kHz
	for i := range samples {
		samples[i] = int16(i * 100)
	}

	result := Resample(samples, 8000, 16000)

	if len(result) != 320 {
		t.Errorf("Expected 320 samples, got %d", len(result))
	}
	if result[2] != samples[1] {
		t.Errorf("Expected interpolated sample %d at index 2, got %d", samples[1], result[2])
	}
}

func TestResample_Empty(t *testing.T) {
	result := Resample(nil, 8000, 16000)
	if len(result) != 0 {
		t.Errorf("Expected empty result for nil input")
	}

	result = Resample([]int16{}, 8000, 16000)
	if len(result) != 0 {
		t.Errorf("Expected empty result for empty input")
	}
}

func BenchmarkResample_2x(b *testing.B) {
	samples := make([]int16, 320)
	for i := range samples {
		samples[i] = int16(i)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Resample(samples, 16000, 8000)
	}
}
