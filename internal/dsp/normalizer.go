// SPDX-License-Identifier: MIT
/*
Package dsp turns decoded frames into device-ready PCM and steers the
resampling rate against clock drift.

The Normalizer remixes channels, applies volume and resamples with a
streaming Catmull-Rom interpolator whose state carries across frames, so
consecutive frames join without discontinuities. It is owned by the decode
worker and is not safe for concurrent use.
*/
package dsp

import (
	"errors"
	"fmt"
	"math"

	"airsync/internal/codec"
	"airsync/internal/log"

	"github.com/ik5/audpbx/utils"
)

var ErrConversion = errors.New("conversion failed")

// history is the number of trailing input frames kept for interpolation.
const history = 3

// Normalizer converts DecodedFrames to interleaved int16 at the device rate
// and channel count. Interpolation needs two frames of lookahead, so each
// call returns output up to two input frames behind what it was given; Flush
// releases that tail at end of stream.
type Normalizer struct {
	outRate     int
	outChannels int
	conv        *converter
	out         []int16
	silence     []int
}

func NewNormalizer(outRate, outChannels int) (*Normalizer, error) {
	if outRate <= 0 || outChannels <= 0 {
		return nil, fmt.Errorf("%w: output %d Hz, %d channels", ErrConversion, outRate, outChannels)
	}
	return &Normalizer{outRate: outRate, outChannels: outChannels}, nil
}

// OutputRate returns the device rate the normalizer produces.
func (n *Normalizer) OutputRate() int { return n.outRate }

// OutputChannels returns the device channel count.
func (n *Normalizer) OutputChannels() int { return n.outChannels }

// Normalize converts frame as if its samples were produced at rate Hz and
// returns device PCM scaled by volume. The returned slice is reused by the
// next call. A frame with an unusable format yields ErrConversion and drops
// the converter, which is rebuilt on the next frame.
func (n *Normalizer) Normalize(frame *codec.DecodedFrame, rate int, volume float32) ([]int16, error) {
	if frame == nil || frame.PCM == nil || frame.PCM.Format == nil {
		return nil, fmt.Errorf("%w: empty frame", ErrConversion)
	}
	in := inputFormat{
		channels: frame.PCM.Format.NumChannels,
		bitDepth: frame.PCM.SourceBitDepth,
	}
	if in.channels <= 0 || in.bitDepth <= 0 || in.bitDepth > 32 || len(frame.PCM.Data)%in.channels != 0 {
		n.conv = nil
		return nil, fmt.Errorf("%w: %d channels, %d bits, %d samples",
			ErrConversion, in.channels, in.bitDepth, len(frame.PCM.Data))
	}
	if rate <= 0 {
		n.conv = nil
		return nil, fmt.Errorf("%w: rate %d", ErrConversion, rate)
	}

	if n.conv == nil || n.conv.in != in {
		if n.conv != nil {
			log.Debugf("Normalizer: input format changed (%d ch/%d bit -> %d ch/%d bit), rebuilding converter",
				n.conv.in.channels, n.conv.in.bitDepth, in.channels, in.bitDepth)
		}
		n.conv = newConverter(in, n.outChannels)
	}

	step := float64(rate) / float64(n.outRate)
	n.out = n.conv.run(frame.PCM.Data, step, volume, n.out[:0])
	return n.out, nil
}

// Flush returns the output still held back for lookahead by running silence
// through the converter at rate, then resets. It returns nil when nothing was
// converted since the last reset. The slice is reused by the next call.
func (n *Normalizer) Flush(rate int) []int16 {
	if n.conv == nil || rate <= 0 {
		return nil
	}
	tail := (history - 1) * n.conv.in.channels
	if len(n.silence) < tail {
		n.silence = make([]int, tail)
	}
	step := float64(rate) / float64(n.outRate)
	n.out = n.conv.run(n.silence[:tail], step, 0, n.out[:0])
	n.conv = nil
	return n.out
}

// Reset drops the converter state; the next frame starts from silence history.
func (n *Normalizer) Reset() {
	n.conv = nil
}

type inputFormat struct {
	channels int
	bitDepth int
}

// converter holds the resampler state for one input format.
type converter struct {
	in          inputFormat
	outChannels int
	scale       float32   // native sample -> 16-bit full scale
	ext         []float32 // history frames followed by the current frame, out layout
	pos         float64   // read position in ext, in frames
}

func newConverter(in inputFormat, outChannels int) *converter {
	return &converter{
		in:          in,
		outChannels: outChannels,
		scale:       float32(math.Ldexp(1, 16-in.bitDepth)),
		ext:         make([]float32, history*outChannels),
		pos:         1,
	}
}

// run appends the converted samples for data to dst.
func (c *converter) run(data []int, step float64, volume float32, dst []int16) []int16 {
	oc := c.outChannels
	frames := len(data) / c.in.channels
	need := (history + frames) * oc
	if cap(c.ext) < need {
		grown := make([]float32, need)
		copy(grown, c.ext[:history*oc])
		c.ext = grown
	}
	c.ext = c.ext[:need]

	gain := c.scale * volume
	c.remix(data, frames, gain, c.ext[history*oc:])

	total := history + frames
	for {
		i := int(c.pos)
		if i+2 >= total {
			break
		}
		x := float32(c.pos - float64(i))
		for ch := range oc {
			y := utils.CubicInterpolate(
				c.ext[(i-1)*oc+ch], c.ext[i*oc+ch], c.ext[(i+1)*oc+ch], c.ext[(i+2)*oc+ch], x)
			dst = append(dst, toInt16(y))
		}
		c.pos += step
	}

	// Keep the last frames as history for the next call.
	copy(c.ext, c.ext[(total-history)*oc:total*oc])
	c.pos -= float64(frames)
	return dst
}

// remix writes frames of data into out using the output channel layout.
func (c *converter) remix(data []int, frames int, gain float32, out []float32) {
	ic, oc := c.in.channels, c.outChannels
	switch {
	case ic == oc:
		for i, s := range data[:frames*ic] {
			out[i] = float32(s) * gain
		}
	case oc == 1:
		g := gain / float32(ic)
		for f := range frames {
			var sum float32
			for ch := range ic {
				sum += float32(data[f*ic+ch])
			}
			out[f] = sum * g
		}
	default:
		// Mono fans out to every channel; wider layouts map channel by channel
		// and repeat from the start when the device has more channels.
		for f := range frames {
			for ch := range oc {
				out[f*oc+ch] = float32(data[f*ic+ch%ic]) * gain
			}
		}
	}
}

func toInt16(v float32) int16 {
	r := math.Round(float64(v))
	if r > math.MaxInt16 {
		return math.MaxInt16
	}
	if r < math.MinInt16 {
		return math.MinInt16
	}
	return int16(r)
}
