// SPDX-License-Identifier: MIT
package fft

import "math"

// Band is a named frequency range. A HighHz of zero extends to Nyquist.
type Band struct {
	Name   string
	LowHz  float64
	HighHz float64
}

// DefaultBands covers the audible range in six bands.
var DefaultBands = []Band{
	{Name: "sub", LowHz: 20, HighHz: 60},
	{Name: "bass", LowHz: 60, HighHz: 250},
	{Name: "low_mid", LowHz: 250, HighHz: 500},
	{Name: "mid", LowHz: 500, HighHz: 2000},
	{Name: "high_mid", LowHz: 2000, HighHz: 4000},
	{Name: "treble", LowHz: 4000},
}

// AppendBandLevels appends, for each band, the RMS of the latest spectrum's
// bin magnitudes that fall inside it. Empty bands report zero.
func (a *Analyzer) AppendBandLevels(dst []float32, bands []Band) []float32 {
	a.mu.Lock()
	defer a.mu.Unlock()

	binHz := a.sampleRate / float64(a.size)
	for _, b := range bands {
		high := b.HighHz
		if high <= 0 {
			high = a.sampleRate/2 + binHz
		}
		var (
			energy float64
			n      int
		)
		for i, m := range a.magnitude {
			freq := float64(i) * binHz
			if freq >= b.LowHz && freq < high {
				energy += m * m
				n++
			}
		}
		if n == 0 {
			dst = append(dst, 0)
			continue
		}
		dst = append(dst, float32(math.Sqrt(energy/float64(n))))
	}
	return dst
}
