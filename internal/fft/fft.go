// SPDX-License-Identifier: MIT

// Package fft provides a spectrum analyzer that taps the normalized output.
package fft

import (
	"fmt"
	"math"
	"math/cmplx"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"

	"airsync/internal/log"
	"airsync/pkg/bitint"
)

// DefaultSize is the analysis window in frames.
const DefaultSize = 1024

// workspace holds pre-allocated buffers for FFT calculations.
type workspace struct {
	history   []float64    // mono mix, circular, size frames
	input     []float64    // windowed, unrolled history
	fftOutput []complex128 // complex FFT output
	window    []float64    // Hann coefficients
}

// Analyzer mixes interleaved output to mono and computes a magnitude
// spectrum every half window. Write runs on the decode worker; the latest
// spectrum can be read from any goroutine.
type Analyzer struct {
	size   int
	hop    int
	fftObj *fourier.FFT
	ws     workspace

	channels int
	pos      int // next write index in history
	filled   int
	pending  int // frames since the last transform

	mu         sync.Mutex
	sampleRate float64
	magnitude  []float64
	spectra    uint64
}

// NewAnalyzer creates an analyzer with a window of size frames, rounded up
// to a power of two.
func NewAnalyzer(size int) (*Analyzer, error) {
	if size < 2 {
		return nil, fmt.Errorf("fft: window size %d too small", size)
	}
	if !bitint.IsPowerOfTwo(size) {
		rounded := bitint.NextPowerOfTwo(size)
		log.Debugf("FFT: window size %d rounded up to %d", size, rounded)
		size = rounded
	}

	window := make([]float64, size)
	for i := range size {
		window[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(size-1)))
	}
	bins := size/2 + 1

	return &Analyzer{
		size:   size,
		hop:    size / 2,
		fftObj: fourier.NewFFT(size),
		ws: workspace{
			history:   make([]float64, size),
			input:     make([]float64, size),
			fftOutput: make([]complex128, bins),
			window:    window,
		},
		channels:  1,
		magnitude: make([]float64, bins),
	}, nil
}

// Size returns the window length in frames.
func (a *Analyzer) Size() int { return a.size }

// Bins returns the number of magnitude bins, size/2+1.
func (a *Analyzer) Bins() int { return len(a.magnitude) }

// Open resets the analyzer for a new output format.
func (a *Analyzer) Open(sampleRate, channels int) error {
	if sampleRate <= 0 || channels <= 0 {
		return fmt.Errorf("fft: invalid format %d Hz, %d channels", sampleRate, channels)
	}
	a.channels = channels
	a.pos, a.filled, a.pending = 0, 0, 0
	clear(a.ws.history)

	a.mu.Lock()
	a.sampleRate = float64(sampleRate)
	clear(a.magnitude)
	a.mu.Unlock()
	return nil
}

// Write consumes interleaved int16 samples. It does not allocate.
func (a *Analyzer) Write(samples []int16) {
	ch := a.channels
	norm := 1 / (float64(ch) * -math.MinInt16)
	for f := 0; f+ch <= len(samples); f += ch {
		var sum float64
		for _, s := range samples[f : f+ch] {
			sum += float64(s)
		}
		a.ws.history[a.pos] = sum * norm
		a.pos = (a.pos + 1) % a.size
		if a.filled < a.size {
			a.filled++
		}
		a.pending++
		if a.filled == a.size && a.pending >= a.hop {
			a.transform()
			a.pending = 0
		}
	}
}

// Close is a no-op; the last spectrum stays readable.
func (a *Analyzer) Close() error { return nil }

func (a *Analyzer) transform() {
	// Oldest sample first.
	n := copy(a.ws.input, a.ws.history[a.pos:])
	copy(a.ws.input[n:], a.ws.history[:a.pos])
	for i := range a.ws.input {
		a.ws.input[i] *= a.ws.window[i]
	}
	a.fftObj.Coefficients(a.ws.fftOutput, a.ws.input)

	scale := 2 / float64(a.size)
	a.mu.Lock()
	for i, c := range a.ws.fftOutput {
		a.magnitude[i] = cmplx.Abs(c) * scale
	}
	a.spectra++
	a.mu.Unlock()
}

// AppendMagnitudes appends the latest spectrum to dst.
func (a *Analyzer) AppendMagnitudes(dst []float32) []float32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, m := range a.magnitude {
		dst = append(dst, float32(m))
	}
	return dst
}

// Spectra returns how many spectra have been computed since creation.
func (a *Analyzer) Spectra() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.spectra
}

// BinFrequency returns the centre frequency in Hz of bin i.
func (a *Analyzer) BinFrequency(i int) float64 {
	if i < 0 || i >= len(a.magnitude) {
		return 0
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.fftObj.Freq(i) * a.sampleRate
}
