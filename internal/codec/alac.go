// SPDX-License-Identifier: MIT

package codec

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"airsync/internal/log"

	"github.com/llehouerou/alac"
)

// DefaultALACCookie is the magic cookie AirPlay senders announce for
// 44.1 kHz 16-bit stereo with 352-sample frames.
const DefaultALACCookie = "00000024616c616300000000000001600010280a0e0200ff00000000000000000000ac44"

const (
	alacAtomHeaderLen = 12 // size + "alac" + version/flags
	alacConfigLen     = 24
)

// Rice parameters the decoder is built with. Cookies announcing others are
// rejected rather than decoded wrongly.
const (
	alacPB = 40
	alacMB = 10
	alacKB = 14
)

// ALACConfig is the decoded ALACSpecificConfig.
type ALACConfig struct {
	FrameLength   uint32
	BitDepth      uint8
	PB, MB, KB    uint8
	Channels      uint8
	MaxRun        uint16
	MaxFrameBytes uint32
	AvgBitRate    uint32
	SampleRate    uint32
}

// ParseALACCookie accepts either the full 'alac' atom or the bare 24-byte
// ALACSpecificConfig.
func ParseALACCookie(blob []byte) (ALACConfig, error) {
	var cfg ALACConfig
	switch {
	case len(blob) >= alacAtomHeaderLen+alacConfigLen && string(blob[4:8]) == "alac":
		blob = blob[alacAtomHeaderLen:]
	case len(blob) >= alacConfigLen:
	default:
		return cfg, fmt.Errorf("%w: alac cookie too short (%d bytes)", ErrInvalidConfig, len(blob))
	}

	cfg.FrameLength = binary.BigEndian.Uint32(blob[0:4])
	// blob[4] is compatibleVersion.
	cfg.BitDepth = blob[5]
	cfg.PB, cfg.MB, cfg.KB = blob[6], blob[7], blob[8]
	cfg.Channels = blob[9]
	cfg.MaxRun = binary.BigEndian.Uint16(blob[10:12])
	cfg.MaxFrameBytes = binary.BigEndian.Uint32(blob[12:16])
	cfg.AvgBitRate = binary.BigEndian.Uint32(blob[16:20])
	cfg.SampleRate = binary.BigEndian.Uint32(blob[20:24])

	if cfg.FrameLength == 0 {
		return cfg, fmt.Errorf("%w: alac frame length 0", ErrInvalidConfig)
	}
	if cfg.BitDepth != 16 && cfg.BitDepth != 24 {
		return cfg, fmt.Errorf("%w: alac bit depth %d", ErrInvalidConfig, cfg.BitDepth)
	}
	if cfg.Channels != 1 && cfg.Channels != 2 {
		return cfg, fmt.Errorf("%w: alac channels %d", ErrInvalidConfig, cfg.Channels)
	}
	return cfg, nil
}

type alacDecoder struct {
	format Format
	dec    *alac.Alac
	out    *frameBuffer
}

func newALACDecoder(blob []byte, sampleRate, channels int) (*alacDecoder, error) {
	if len(blob) == 0 {
		blob, _ = hex.DecodeString(DefaultALACCookie)
	}
	cookie, err := ParseALACCookie(blob)
	if err != nil {
		return nil, err
	}
	if cookie.PB != alacPB || cookie.MB != alacMB || cookie.KB != alacKB {
		return nil, fmt.Errorf("%w: alac rice parameters pb=%d mb=%d kb=%d unsupported",
			ErrInvalidConfig, cookie.PB, cookie.MB, cookie.KB)
	}

	rate := int(cookie.SampleRate)
	if rate == 0 {
		rate = sampleRate
	}
	if rate != sampleRate || int(cookie.Channels) != channels {
		log.Warnf("Codec: alac cookie says %d Hz/%d ch, negotiated %d Hz/%d ch; using cookie",
			rate, cookie.Channels, sampleRate, channels)
	}

	dec, err := alac.NewWithConfig(alac.Config{
		SampleRate:  rate,
		SampleSize:  int(cookie.BitDepth),
		NumChannels: int(cookie.Channels),
		FrameSize:   int(cookie.FrameLength),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	return &alacDecoder{
		format: Format{
			Kind:            KindALAC,
			SampleRate:      rate,
			Channels:        int(cookie.Channels),
			BitDepth:        int(cookie.BitDepth),
			SamplesPerFrame: int(cookie.FrameLength),
		},
		dec: dec,
		out: newFrameBuffer(rate, int(cookie.Channels), int(cookie.BitDepth)),
	}, nil
}

func (d *alacDecoder) Format() Format { return d.format }
func (d *alacDecoder) Close() error   { return nil }

func (d *alacDecoder) Decode(frame CompressedFrame) (out *DecodedFrame, err error) {
	if len(frame.Payload) == 0 {
		return nil, nil
	}
	// The decoder indexes its input without bounds checks of its own.
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("%w: alac: %v", ErrDecodeFailed, r)
		}
	}()

	pcm := d.dec.Decode(frame.Payload)
	bytesPer := d.format.BitDepth / 8
	if len(pcm) == 0 || len(pcm)%(bytesPer*d.format.Channels) != 0 {
		return nil, fmt.Errorf("%w: alac produced %d bytes", ErrDecodeFailed, len(pcm))
	}

	n := len(pcm) / bytesPer
	out = d.out.reset(n, frame.Timestamp)
	for i := range n {
		b := pcm[i*bytesPer:]
		if bytesPer == 2 {
			out.PCM.Data[i] = int(int16(binary.LittleEndian.Uint16(b)))
		} else {
			v := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
			out.PCM.Data[i] = int(v << 8 >> 8)
		}
	}
	return out, nil
}
