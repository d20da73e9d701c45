// SPDX-License-Identifier: MIT
package record

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/wav"

	"airsync/pkg/testutil"
)

const testSampleRate = 44100

func readWAV(t *testing.T, path string) (*wav.Decoder, []int) {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { f.Close() })

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		t.Fatalf("%s is not a valid WAV file", path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatal(err)
	}
	return dec, buf.Data
}

func TestRecorder_WritesSession(t *testing.T) {
	dir := t.TempDir()
	r, err := NewRecorder(filepath.Join(dir, "out"), 16)
	if err != nil {
		t.Fatal(err)
	}
	r.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

	if err := r.Open(testSampleRate, 2); err != nil {
		t.Fatal(err)
	}
	if err := r.Open(testSampleRate, 2); err == nil {
		t.Error("second Open while recording should fail")
	}

	sine := testutil.Sine(1000, 2, testSampleRate, 440, 0.5)
	r.Write(sine[:800])
	r.Write(sine[800:])
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	if r.Frames() != 1000 {
		t.Errorf("frames = %d, want 1000", r.Frames())
	}

	want := filepath.Join(dir, "out", "airsync-20240501-120000.000.wav")
	if r.Path() != want {
		t.Errorf("path = %s, want %s", r.Path(), want)
	}

	dec, data := readWAV(t, r.Path())
	if dec.SampleRate != testSampleRate || dec.NumChans != 2 || dec.BitDepth != 16 {
		t.Errorf("header: %d Hz, %d ch, %d bit", dec.SampleRate, dec.NumChans, dec.BitDepth)
	}
	if len(data) != len(sine) {
		t.Fatalf("decoded %d samples, want %d", len(data), len(sine))
	}
	for i := range sine {
		if data[i] != int(sine[i]) {
			t.Fatalf("sample %d = %d, want %d", i, data[i], sine[i])
		}
	}

	// Writes after Close are ignored.
	r.Write(sine)
	if r.Frames() != 1000 {
		t.Error("Write after Close was recorded")
	}
}

func TestRecorder_24Bit(t *testing.T) {
	r, err := NewRecorder(t.TempDir(), 24)
	if err != nil {
		t.Fatal(err)
	}
	r.Open(48000, 1)
	r.Write([]int16{1, -1, 1000})
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}

	dec, data := readWAV(t, r.Path())
	if dec.BitDepth != 24 {
		t.Errorf("bit depth = %d", dec.BitDepth)
	}
	want := []int{256, -256, 256000}
	for i := range want {
		if data[i] != want[i] {
			t.Errorf("sample %d = %d, want %d", i, data[i], want[i])
		}
	}
}

func TestNewRecorder_Invalid(t *testing.T) {
	if _, err := NewRecorder(t.TempDir(), 8); err == nil {
		t.Error("expected error for 8-bit recording")
	}
}

func TestRecorder_CloseWithoutOpen(t *testing.T) {
	r, _ := NewRecorder(t.TempDir(), 16)
	if err := r.Close(); err != nil {
		t.Errorf("Close = %v", err)
	}
}
