// SPDX-License-Identifier: MIT
package fft

import (
	"math"
	"testing"

	"airsync/pkg/testutil"
)

const (
	testFFTSize    = 1024
	testSampleRate = 44100
)

func newTestAnalyzer(t testing.TB, channels int) *Analyzer {
	t.Helper()
	a, err := NewAnalyzer(testFFTSize)
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Open(testSampleRate, channels); err != nil {
		t.Fatal(err)
	}
	return a
}

func TestNewAnalyzer_Size(t *testing.T) {
	if _, err := NewAnalyzer(1); err == nil {
		t.Error("expected error for size 1")
	}
	a, err := NewAnalyzer(1000)
	if err != nil {
		t.Fatal(err)
	}
	if a.Size() != 1024 || a.Bins() != 513 {
		t.Errorf("size %d, bins %d", a.Size(), a.Bins())
	}
	if err := a.Open(0, 2); err == nil {
		t.Error("expected error for zero sample rate")
	}
}

func TestAnalyzer_DetectsSinePeak(t *testing.T) {
	a := newTestAnalyzer(t, 2)
	a.Write(testutil.Sine(2048, 2, testSampleRate, 1000, 0.8))

	if n := a.Spectra(); n != 3 {
		t.Errorf("spectra = %d, want 3", n)
	}

	mags := a.AppendMagnitudes(nil)
	if len(mags) != testFFTSize/2+1 {
		t.Fatalf("bins = %d", len(mags))
	}
	peak := testutil.FindPeakBin(mags, 1, len(mags)-1)
	binWidth := float64(testSampleRate) / testFFTSize
	if f := a.BinFrequency(peak); math.Abs(f-1000) > binWidth {
		t.Errorf("peak at %.1f Hz (bin %d), want 1000 Hz", f, peak)
	}
	// Hann-windowed amplitude of a 0.8 sine, scaled by 2/N, is about 0.4.
	if mags[peak] < 0.3 || mags[peak] > 0.8 {
		t.Errorf("peak magnitude = %v", mags[peak])
	}
}

func TestAnalyzer_NeedsFullWindow(t *testing.T) {
	a := newTestAnalyzer(t, 1)
	a.Write(testutil.Sine(testFFTSize-1, 1, testSampleRate, 440, 0.5))
	if a.Spectra() != 0 {
		t.Error("spectrum computed before the window filled")
	}
	a.Write([]int16{0})
	if a.Spectra() != 1 {
		t.Error("spectrum not computed once the window filled")
	}
}

func TestAnalyzer_OpenResets(t *testing.T) {
	a := newTestAnalyzer(t, 2)
	a.Write(testutil.Sine(2048, 2, testSampleRate, 1000, 0.8))
	a.Open(48000, 1)

	for _, m := range a.AppendMagnitudes(nil) {
		if m != 0 {
			t.Fatal("spectrum not cleared by Open")
		}
	}
	if f := a.BinFrequency(1); math.Abs(f-48000.0/testFFTSize) > 1e-9 {
		t.Errorf("bin 1 = %v Hz after reopening at 48 kHz", f)
	}
}

func TestAnalyzerWriteZeroAllocs(t *testing.T) {
	a := newTestAnalyzer(t, 2)
	buf := testutil.ComplexWave(352, 2, testSampleRate)

	a.Write(buf)
	allocs := testing.AllocsPerRun(100, func() {
		a.Write(buf)
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in Analyzer.Write, got %.1f", allocs)
	}
}

func TestBinFrequencyZeroAllocs(t *testing.T) {
	a := newTestAnalyzer(t, 2)
	allocs := testing.AllocsPerRun(100, func() {
		_ = a.BinFrequency(0)
		_ = a.BinFrequency(10)
		_ = a.BinFrequency(testFFTSize / 2)
		_ = a.BinFrequency(-1)
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in BinFrequency, got %.1f", allocs)
	}
}

func BenchmarkWrite(b *testing.B) {
	a := newTestAnalyzer(b, 2)
	buf := testutil.ComplexWave(testFFTSize, 2, testSampleRate)

	b.ReportAllocs()
	for b.Loop() {
		a.Write(buf)
	}
}
