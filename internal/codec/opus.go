// SPDX-License-Identifier: MIT

package codec

import (
	"fmt"

	"layeh.com/gopus"
)

// opusMaxFrameMs is the longest frame an Opus packet may carry.
const opusMaxFrameMs = 120

type opusDecoder struct {
	format   Format
	dec      *gopus.Decoder
	maxFrame int
	out      *frameBuffer
}

func newOpusDecoder(sampleRate, channels int) (*opusDecoder, error) {
	switch sampleRate {
	case 8000, 12000, 16000, 24000, 48000:
	default:
		return nil, fmt.Errorf("%w: opus cannot decode at %d Hz", ErrInvalidConfig, sampleRate)
	}
	if channels > 2 {
		return nil, fmt.Errorf("%w: opus channels %d", ErrInvalidConfig, channels)
	}

	dec, err := gopus.NewDecoder(sampleRate, channels)
	if err != nil {
		return nil, fmt.Errorf("%w: create opus decoder: %v", ErrInvalidConfig, err)
	}

	return &opusDecoder{
		format: Format{
			Kind:            KindOpus,
			SampleRate:      sampleRate,
			Channels:        channels,
			BitDepth:        16,
			SamplesPerFrame: sampleRate / 50, // 20 ms
		},
		dec:      dec,
		maxFrame: sampleRate * opusMaxFrameMs / 1000,
		out:      newFrameBuffer(sampleRate, channels, 16),
	}, nil
}

func (d *opusDecoder) Format() Format { return d.format }
func (d *opusDecoder) Close() error   { return nil }

func (d *opusDecoder) Decode(frame CompressedFrame) (*DecodedFrame, error) {
	if len(frame.Payload) == 0 {
		return nil, nil
	}
	pcm, err := d.dec.Decode(frame.Payload, d.maxFrame, false)
	if err != nil {
		return nil, fmt.Errorf("%w: opus: %v", ErrDecodeFailed, err)
	}

	out := d.out.reset(len(pcm), frame.Timestamp)
	for i, s := range pcm {
		out.PCM.Data[i] = int(s)
	}
	return out, nil
}
