// SPDX-License-Identifier: MIT
/*
Package codec adapts the stream decoders supported by the playback engine
behind one Decoder interface.

Codec selection is a closed set (Kind) dispatched once by Configure. Each
decoder is stateful and sequential: it must be owned by exactly one goroutine,
the session's decode worker.
*/
package codec

import (
	"fmt"
	"strings"

	"github.com/go-audio/audio"
)

// Kind identifies a supported stream codec.
type Kind int

const (
	KindPCM Kind = iota
	KindALAC
	KindAACLC
	KindAACELD
	KindOpus
)

func (k Kind) String() string {
	switch k {
	case KindPCM:
		return "pcm"
	case KindALAC:
		return "alac"
	case KindAACLC:
		return "aac-lc"
	case KindAACELD:
		return "aac-eld"
	case KindOpus:
		return "opus"
	default:
		return "unknown"
	}
}

// ParseKind converts a codec name (case-insensitive) to a Kind.
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(name) {
	case "pcm", "lpcm":
		return KindPCM, nil
	case "alac":
		return KindALAC, nil
	case "aac", "aac-lc":
		return KindAACLC, nil
	case "aac-eld", "eld":
		return KindAACELD, nil
	case "opus":
		return KindOpus, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedCodec, name)
	}
}

// Lossless reports whether the codec reproduces the source samples exactly.
func (k Kind) Lossless() bool {
	return k == KindPCM || k == KindALAC
}

// SamplesPerFrame is the nominal number of samples per channel carried by
// one compressed frame.
func (k Kind) SamplesPerFrame() int {
	switch k {
	case KindALAC, KindPCM:
		return 352
	case KindAACLC:
		return 1024
	case KindAACELD:
		return 480
	case KindOpus:
		return 960
	default:
		return 0
	}
}

// CompressedFrame is one packet handed over by the protocol layer. Payload is
// owned by the frame and must not be modified after submission.
type CompressedFrame struct {
	Payload   []byte
	Timestamp uint32
}

// DecodedFrame holds PCM in the codec's native layout. PCM.Data is
// interleaved and scaled to PCM.SourceBitDepth. The frame is only valid until
// the next call to Decode on the same decoder.
type DecodedFrame struct {
	PCM          *audio.IntBuffer
	Timestamp    uint32
	HasTimestamp bool
}

// Frames returns the number of sample frames (samples per channel).
func (f *DecodedFrame) Frames() int {
	if f == nil || f.PCM == nil || f.PCM.Format == nil || f.PCM.Format.NumChannels == 0 {
		return 0
	}
	return len(f.PCM.Data) / f.PCM.Format.NumChannels
}

// Format describes a configured decoder's output.
type Format struct {
	Kind            Kind
	SampleRate      int
	Channels        int
	BitDepth        int
	SamplesPerFrame int
}

// Decoder turns compressed frames into PCM. Decode returns a nil frame and a
// nil error when the codec consumed the packet without producing output.
type Decoder interface {
	Decode(frame CompressedFrame) (*DecodedFrame, error)
	Format() Format
	Close() error
}

// Configure builds the decoder for kind. The blob carries codec-specific
// setup (ALAC magic cookie, AAC AudioSpecificConfig, PCM sample layout); an
// empty blob selects the AirPlay defaults for that codec.
func Configure(kind Kind, blob []byte, sampleRate, channels int) (Decoder, error) {
	if sampleRate <= 0 || channels <= 0 {
		return nil, fmt.Errorf("%w: sample rate %d, channels %d", ErrInvalidConfig, sampleRate, channels)
	}

	switch kind {
	case KindPCM:
		return newPCMDecoder(blob, sampleRate, channels)
	case KindALAC:
		return newALACDecoder(blob, sampleRate, channels)
	case KindAACLC, KindAACELD:
		return newAACDecoder(kind, blob, sampleRate, channels)
	case KindOpus:
		return newOpusDecoder(sampleRate, channels)
	default:
		return nil, fmt.Errorf("%w: kind %d", ErrUnsupportedCodec, int(kind))
	}
}

// frameBuffer is the reusable output of a decoder.
type frameBuffer struct {
	buf   audio.IntBuffer
	frame DecodedFrame
}

func newFrameBuffer(sampleRate, channels, bitDepth int) *frameBuffer {
	fb := &frameBuffer{
		buf: audio.IntBuffer{
			Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
			SourceBitDepth: bitDepth,
		},
	}
	fb.frame.PCM = &fb.buf
	return fb
}

// reset sizes the buffer for n samples and stamps the frame.
func (fb *frameBuffer) reset(n int, ts uint32) *DecodedFrame {
	if cap(fb.buf.Data) < n {
		fb.buf.Data = make([]int, n)
	}
	fb.buf.Data = fb.buf.Data[:n]
	fb.frame.Timestamp = ts
	fb.frame.HasTimestamp = true
	return &fb.frame
}
