// SPDX-License-Identifier: MIT
package testutil

import (
	"math"
	"testing"
)

const testSampleRate = 44100

func TestSine(t *testing.T) {
	buf := Sine(441, 2, testSampleRate, 100, 0.5)
	if len(buf) != 882 {
		t.Fatalf("len = %d, want 882", len(buf))
	}
	var peak int16
	for i := 0; i < len(buf); i += 2 {
		if buf[i] != buf[i+1] {
			t.Fatalf("channels differ at frame %d", i/2)
		}
		peak = max(peak, buf[i])
	}
	if want := int16(math.MaxInt16 / 2); peak < want*99/100 || peak > want+1 {
		t.Errorf("peak = %d, want about %d", peak, want)
	}
}

func TestComplexWaveWithinRange(t *testing.T) {
	for i, v := range ComplexWave(4096, 1, testSampleRate) {
		if v == math.MinInt16 {
			t.Fatalf("sample %d clipped", i)
		}
	}
}

func TestFindPeakBin(t *testing.T) {
	mags := make([]float32, 64)
	for i := range mags {
		mags[i] = float32(math.Exp(-0.05 * math.Pow(float64(i-16), 2)))
	}

	tests := []struct {
		name       string
		start, end int
		want       int
	}{
		{"Full range", 0, 63, 16},
		{"Clamped range", -5, 100, 16},
		{"Above peak", 20, 63, 20},
		{"Below peak", 0, 10, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FindPeakBin(mags, tt.start, tt.end); got != tt.want {
				t.Errorf("FindPeakBin(%d, %d) = %d, want %d", tt.start, tt.end, got, tt.want)
			}
		})
	}
	if FindPeakBin(nil, 0, 10) != 0 {
		t.Error("empty input should return 0")
	}
}

func TestChannel(t *testing.T) {
	got := Channel([]int16{1, 2, 3, 4, 5, 6}, 2, 1)
	if len(got) != 3 || got[0] != 2 || got[2] != 6 {
		t.Errorf("Channel = %v", got)
	}
}
