// SPDX-License-Identifier: MIT

// Package testutil generates PCM test signals.
package testutil

import "math"

// Sine returns frames of interleaved int16 with the same sine on every
// channel, at amplitude amp of full scale.
func Sine(frames, channels int, sampleRate, frequency, amp float64) []int16 {
	buf := make([]int16, frames*channels)
	for f := range frames {
		t := float64(f) / sampleRate
		v := int16(math.Round(math.Sin(2*math.Pi*frequency*t) * amp * math.MaxInt16))
		for ch := range channels {
			buf[f*channels+ch] = v
		}
	}
	return buf
}

// ComplexWave is a 440 Hz fundamental with its second and third harmonics.
func ComplexWave(frames, channels int, sampleRate float64) []int16 {
	buf := make([]int16, frames*channels)
	for f := range frames {
		t := float64(f) / sampleRate
		signal := math.Sin(2*math.Pi*440*t)*0.5 +
			math.Sin(2*math.Pi*880*t)*0.3 +
			math.Sin(2*math.Pi*1320*t)*0.2
		v := int16(signal * math.MaxInt16 * 0.9)
		for ch := range channels {
			buf[f*channels+ch] = v
		}
	}
	return buf
}

// Constant returns frames of interleaved int16 all equal to v.
func Constant(frames, channels int, v int16) []int16 {
	buf := make([]int16, frames*channels)
	for i := range buf {
		buf[i] = v
	}
	return buf
}

// FindPeakBin returns the index of the largest magnitude in [startBin, endBin].
func FindPeakBin(magnitudes []float32, startBin, endBin int) int {
	if len(magnitudes) == 0 {
		return 0
	}
	startBin = max(startBin, 0)
	endBin = min(endBin, len(magnitudes)-1)

	peakBin := startBin
	for bin := startBin + 1; bin <= endBin; bin++ {
		if magnitudes[bin] > magnitudes[peakBin] {
			peakBin = bin
		}
	}
	return peakBin
}

// Channel extracts one channel from interleaved samples.
func Channel(samples []int16, channels, ch int) []int16 {
	out := make([]int16, 0, len(samples)/channels)
	for i := ch; i < len(samples); i += channels {
		out = append(out, samples[i])
	}
	return out
}
