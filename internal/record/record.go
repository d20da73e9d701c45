// SPDX-License-Identifier: MIT

// Package record writes the normalized output to WAV files, one file per
// playback session.
package record

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"airsync/internal/log"
)

// Recorder is a session tap that encodes every frame it is given.
type Recorder struct {
	dir      string
	bitDepth int
	now      func() time.Time

	mu        sync.Mutex
	file      *os.File
	enc       *wav.Encoder
	buf       *audio.IntBuffer
	path      string
	frames    int64
	recording bool
}

// NewRecorder creates dir if needed. bitDepth is 16 or 24.
func NewRecorder(dir string, bitDepth int) (*Recorder, error) {
	if bitDepth != 16 && bitDepth != 24 {
		return nil, fmt.Errorf("record: unsupported bit depth %d", bitDepth)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("record: %w", err)
	}
	return &Recorder{dir: dir, bitDepth: bitDepth, now: time.Now}, nil
}

// Open starts a new file for a session.
func (r *Recorder) Open(sampleRate, channels int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recording {
		return fmt.Errorf("record: already recording to %s", r.path)
	}

	path := filepath.Join(r.dir, r.now().Format("airsync-20060102-150405.000")+".wav")
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("record: %w", err)
	}

	r.file = file
	r.path = path
	r.frames = 0
	r.enc = wav.NewEncoder(file, sampleRate, r.bitDepth, channels, 1)
	r.buf = &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		SourceBitDepth: r.bitDepth,
	}
	r.recording = true
	log.Infof("Recorder: writing %d Hz, %d ch, %d bit to %s", sampleRate, channels, r.bitDepth, path)
	return nil
}

// Write encodes samples. A write error stops the recording; playback is
// not affected.
func (r *Recorder) Write(samples []int16) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return
	}

	shift := r.bitDepth - 16
	if cap(r.buf.Data) < len(samples) {
		r.buf.Data = make([]int, len(samples))
	}
	r.buf.Data = r.buf.Data[:len(samples)]
	for i, s := range samples {
		r.buf.Data[i] = int(s) << shift
	}

	if err := r.enc.Write(r.buf); err != nil {
		log.Errorf("Recorder: write to %s failed, recording stopped: %v", r.path, err)
		r.closeLocked()
		return
	}
	r.frames += int64(len(samples) / r.buf.Format.NumChannels)
}

// Close finalises the WAV header and closes the file.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return nil
	}
	if err := r.closeLocked(); err != nil {
		return err
	}
	log.Infof("Recorder: wrote %d frames to %s", r.frames, r.path)
	return nil
}

func (r *Recorder) closeLocked() error {
	r.recording = false
	encErr := r.enc.Close()
	fileErr := r.file.Close()
	r.enc, r.file = nil, nil
	if encErr != nil {
		return fmt.Errorf("record: finalising %s: %w", r.path, encErr)
	}
	if fileErr != nil {
		return fmt.Errorf("record: closing %s: %w", r.path, fileErr)
	}
	return nil
}

// Path returns the file of the current or most recent recording.
func (r *Recorder) Path() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.path
}

// Frames returns how many frames the current or most recent recording holds.
func (r *Recorder) Frames() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}
