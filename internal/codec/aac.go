// SPDX-License-Identifier: MIT

package codec

import (
	"encoding/hex"
	"fmt"

	faad2 "github.com/llehouerou/go-faad2"
)

// Default AudioSpecificConfig blobs used by AirPlay senders.
const (
	DefaultAACLCConfig  = "1210"     // AAC-LC, 44.1 kHz, stereo
	DefaultAACELDConfig = "f8e85000" // AAC-ELD, 44.1 kHz, stereo, 480-sample frames
)

type aacDecoder struct {
	format Format
	dec    *faad2.Decoder
	out    *frameBuffer
}

func newAACDecoder(kind Kind, blob []byte, sampleRate, channels int) (*aacDecoder, error) {
	if len(blob) == 0 {
		def := DefaultAACLCConfig
		if kind == KindAACELD {
			def = DefaultAACELDConfig
		}
		blob, _ = hex.DecodeString(def)
	}

	dec, err := faad2.NewDecoder()
	if err != nil {
		return nil, fmt.Errorf("%w: create aac decoder: %v", ErrInvalidConfig, err)
	}
	if err := dec.Init(blob); err != nil {
		dec.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, kind, err)
	}

	// The decoder reports what the AudioSpecificConfig describes; fall back to
	// the negotiated values when it cannot tell.
	rate, ch := int(dec.SampleRate()), int(dec.Channels())
	if rate == 0 {
		rate = sampleRate
	}
	if ch == 0 {
		ch = channels
	}

	return &aacDecoder{
		format: Format{
			Kind:            kind,
			SampleRate:      rate,
			Channels:        ch,
			BitDepth:        16,
			SamplesPerFrame: kind.SamplesPerFrame(),
		},
		dec: dec,
		out: newFrameBuffer(rate, ch, 16),
	}, nil
}

func (d *aacDecoder) Format() Format { return d.format }

func (d *aacDecoder) Close() error {
	return d.dec.Close()
}

func (d *aacDecoder) Decode(frame CompressedFrame) (*DecodedFrame, error) {
	if len(frame.Payload) == 0 {
		return nil, nil
	}
	pcm, err := d.dec.Decode(frame.Payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecodeFailed, d.format.Kind, err)
	}
	// The first frames after Init may only prime the decoder.
	if len(pcm) == 0 {
		return nil, nil
	}

	out := d.out.reset(len(pcm), frame.Timestamp)
	for i, s := range pcm {
		out.PCM.Data[i] = int(s)
	}
	return out, nil
}
