// SPDX-License-Identifier: MIT
package udp

import (
	"encoding/binary"
	"errors"
	"math"

	"airsync/internal/transport"
)

/*
Report datagram (BigEndian):

	+----------------------+---------+-------+--------------------------------+
	| Field                | Type    | Bytes | Notes                          |
	+----------------------+---------+-------+--------------------------------+
	| Magic                | [2]byte | 2     | "AS"                           |
	| Version              | uint8   | 1     | 1                              |
	| State                | uint8   | 1     | index into stateNames          |
	| Sequence Number      | uint32  | 4     |                                |
	| Timestamp            | int64   | 8     | Unix nanoseconds               |
	| Nominal / Rate / Max | uint32  | 12    | Hz                             |
	| Occupancy / Capacity | uint32  | 8     | samples                        |
	| Volume               | float32 | 4     |                                |
	| Decoded / Dec. err / | uint64  | 40    | counters                       |
	| Conv. err / Dropped /|         |       |                                |
	| Underruns            |         |       |                                |
	| Magnitude Count      | uint16  | 2     | N                              |
	| Magnitudes           | float32 | N * 4 | output spectrum                |
	+----------------------+---------+-------+--------------------------------+
*/

const (
	version    = 1
	headerSize = 2 + 1 + 1 + 4 + 8 + 12 + 8 + 4 + 40 + 2

	// MaxDatagram is the largest UDP payload over IPv4.
	MaxDatagram = 65507
	// MaxMagnitudes is how many spectrum bins fit in one datagram; the
	// remainder of a larger spectrum is not sent.
	MaxMagnitudes = (MaxDatagram - headerSize) / 4
)

var (
	magic      = [2]byte{'A', 'S'}
	stateNames = []string{"idle", "starting", "running", "stopping"}

	ErrShortPacket = errors.New("udp packet too short")
	ErrBadMagic    = errors.New("udp packet has bad magic or version")
)

// AppendReport encodes r onto dst. Codec and queue depth are not carried,
// and the spectrum is truncated to MaxMagnitudes bins.
func AppendReport(dst []byte, r *transport.Report) []byte {
	be := binary.BigEndian
	dst = append(dst, magic[0], magic[1], version, stateIndex(r.State))
	dst = be.AppendUint32(dst, r.Sequence)
	dst = be.AppendUint64(dst, uint64(r.Timestamp))
	dst = be.AppendUint32(dst, uint32(r.NominalRate))
	dst = be.AppendUint32(dst, uint32(r.Rate))
	dst = be.AppendUint32(dst, uint32(r.MaxRate))
	dst = be.AppendUint32(dst, uint32(r.Occupancy))
	dst = be.AppendUint32(dst, uint32(r.Capacity))
	dst = be.AppendUint32(dst, math.Float32bits(r.Volume))
	dst = be.AppendUint64(dst, r.FramesDecoded)
	dst = be.AppendUint64(dst, r.DecodeErrors)
	dst = be.AppendUint64(dst, r.ConversionErrors)
	dst = be.AppendUint64(dst, r.DroppedSamples)
	dst = be.AppendUint64(dst, r.Underruns)

	n := min(len(r.Spectrum), MaxMagnitudes)
	dst = be.AppendUint16(dst, uint16(n))
	for _, m := range r.Spectrum[:n] {
		dst = be.AppendUint32(dst, math.Float32bits(m))
	}
	return dst
}

// ParseReport decodes a datagram produced by AppendReport.
func ParseReport(b []byte) (transport.Report, error) {
	var r transport.Report
	if len(b) < headerSize {
		return r, ErrShortPacket
	}
	if b[0] != magic[0] || b[1] != magic[1] || b[2] != version {
		return r, ErrBadMagic
	}
	be := binary.BigEndian
	if int(b[3]) < len(stateNames) {
		r.State = stateNames[b[3]]
	}
	b = b[4:]
	u32 := func() uint32 { v := be.Uint32(b); b = b[4:]; return v }
	u64 := func() uint64 { v := be.Uint64(b); b = b[8:]; return v }

	r.Sequence = u32()
	r.Timestamp = int64(u64())
	r.NominalRate = int(u32())
	r.Rate = int(u32())
	r.MaxRate = int(u32())
	r.Occupancy = int(u32())
	r.Capacity = int(u32())
	r.Volume = math.Float32frombits(u32())
	r.FramesDecoded = u64()
	r.DecodeErrors = u64()
	r.ConversionErrors = u64()
	r.DroppedSamples = u64()
	r.Underruns = u64()

	n := int(be.Uint16(b))
	b = b[2:]
	if len(b) < n*4 {
		return r, ErrShortPacket
	}
	if n > 0 {
		r.Spectrum = make([]float32, n)
		for i := range r.Spectrum {
			r.Spectrum[i] = math.Float32frombits(u32())
		}
	}
	return r, nil
}

func stateIndex(state string) byte {
	for i, s := range stateNames {
		if s == state {
			return byte(i)
		}
	}
	return 0
}
