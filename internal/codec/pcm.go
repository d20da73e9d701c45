// SPDX-License-Identifier: MIT

package codec

import (
	"fmt"
)

// PCM blob layout: [bit depth, byte order]. Byte order 0 is big-endian
// (AirPlay LPCM), 1 is little-endian.
const (
	pcmBigEndian    = 0
	pcmLittleEndian = 1
)

// PCMConfig encodes a PCM configuration blob.
func PCMConfig(bitDepth int, littleEndian bool) []byte {
	order := byte(pcmBigEndian)
	if littleEndian {
		order = pcmLittleEndian
	}
	return []byte{byte(bitDepth), order}
}

type pcmDecoder struct {
	format       Format
	bytesPer     int
	littleEndian bool
	out          *frameBuffer
}

func newPCMDecoder(blob []byte, sampleRate, channels int) (*pcmDecoder, error) {
	bitDepth, littleEndian := 16, false
	if len(blob) > 0 {
		if len(blob) != 2 {
			return nil, fmt.Errorf("%w: pcm blob must be 2 bytes, got %d", ErrInvalidConfig, len(blob))
		}
		bitDepth = int(blob[0])
		switch blob[1] {
		case pcmBigEndian:
		case pcmLittleEndian:
			littleEndian = true
		default:
			return nil, fmt.Errorf("%w: pcm byte order %d", ErrInvalidConfig, blob[1])
		}
	}
	if bitDepth != 16 && bitDepth != 24 {
		return nil, fmt.Errorf("%w: pcm bit depth %d", ErrInvalidConfig, bitDepth)
	}

	return &pcmDecoder{
		format: Format{
			Kind:            KindPCM,
			SampleRate:      sampleRate,
			Channels:        channels,
			BitDepth:        bitDepth,
			SamplesPerFrame: KindPCM.SamplesPerFrame(),
		},
		bytesPer:     bitDepth / 8,
		littleEndian: littleEndian,
		out:          newFrameBuffer(sampleRate, channels, bitDepth),
	}, nil
}

func (d *pcmDecoder) Format() Format { return d.format }
func (d *pcmDecoder) Close() error   { return nil }

func (d *pcmDecoder) Decode(frame CompressedFrame) (*DecodedFrame, error) {
	if len(frame.Payload) == 0 {
		return nil, nil
	}
	stride := d.bytesPer * d.format.Channels
	if len(frame.Payload)%stride != 0 {
		return nil, fmt.Errorf("%w: pcm payload of %d bytes is not a multiple of %d",
			ErrDecodeFailed, len(frame.Payload), stride)
	}

	n := len(frame.Payload) / d.bytesPer
	out := d.out.reset(n, frame.Timestamp)
	p := frame.Payload
	for i := range n {
		b := p[i*d.bytesPer : (i+1)*d.bytesPer]
		out.PCM.Data[i] = d.sample(b)
	}
	return out, nil
}

// sample decodes one signed sample of d.bytesPer bytes.
func (d *pcmDecoder) sample(b []byte) int {
	var v int32
	if d.littleEndian {
		for i := len(b) - 1; i >= 0; i-- {
			v = v<<8 | int32(b[i])
		}
	} else {
		for _, x := range b {
			v = v<<8 | int32(x)
		}
	}
	// Sign-extend from the sample width.
	shift := 32 - 8*len(b)
	return int(v << shift >> shift)
}
