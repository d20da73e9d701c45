// SPDX-License-Identifier: MIT
package audio

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/gordonklaus/portaudio"
)

func mockDevices(t *testing.T, devices []*portaudio.DeviceInfo, err error) {
	t.Helper()
	orig := paLibDevicesFunc
	t.Cleanup(func() { paLibDevicesFunc = orig })
	paLibDevicesFunc = func() ([]*portaudio.DeviceInfo, error) {
		return devices, err
	}
}

var testDevices = []*portaudio.DeviceInfo{
	{Name: "mic", MaxInputChannels: 2, DefaultSampleRate: 48000},
	{Name: "speakers", MaxOutputChannels: 2, DefaultSampleRate: 44100,
		DefaultLowOutputLatency: 5 * time.Millisecond, DefaultHighOutputLatency: 40 * time.Millisecond},
	{Name: "surround", MaxOutputChannels: 6, DefaultSampleRate: 48000},
}

func TestOutputDevice(t *testing.T) {
	mockDevices(t, testDevices, nil)
	p := &PortAudio{}

	dev, err := p.OutputDevice(1)
	if err != nil {
		t.Fatalf("OutputDevice(1) error: %v", err)
	}
	if dev.Name != "speakers" || dev.ID != 1 {
		t.Errorf("device = %+v", dev)
	}

	tests := []struct {
		name   string
		id     int
		substr string
	}{
		{"Negative ID", -2, "invalid device ID"},
		{"Too high ID", len(testDevices) + 10, "invalid device ID"},
		{"Non-output device", 0, "does not support output"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.OutputDevice(tt.id)
			if err == nil {
				t.Fatalf("Expected error for ID %d", tt.id)
			}
			if !errors.Is(err, ErrInvalidDevice) || !strings.Contains(err.Error(), tt.substr) {
				t.Errorf("Error = %q, want substring %q", err.Error(), tt.substr)
			}
		})
	}
}

func TestOutputDevice_Default(t *testing.T) {
	mockDevices(t, testDevices, nil)
	orig := paLibDefaultOutputDeviceFunc
	defer func() { paLibDefaultOutputDeviceFunc = orig }()

	paLibDefaultOutputDeviceFunc = func() (*portaudio.DeviceInfo, error) {
		return testDevices[2], nil
	}
	dev, err := (&PortAudio{}).OutputDevice(-1)
	if err != nil || dev.ID != 2 {
		t.Errorf("default device = %+v, %v", dev, err)
	}

	paLibDefaultOutputDeviceFunc = func() (*portaudio.DeviceInfo, error) {
		return nil, fmt.Errorf("mock default output error")
	}
	if _, err := (&PortAudio{}).OutputDevice(-1); !errors.Is(err, ErrNoOutputDevice) {
		t.Errorf("expected ErrNoOutputDevice, got %v", err)
	}
}

func TestSupportedConfig(t *testing.T) {
	mockDevices(t, testDevices, nil)

	surround, _ := (&PortAudio{}).OutputDevice(2)
	cfg, err := (&PortAudio{}).SupportedConfig(surround)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.SampleRate != 48000 || cfg.Channels != 2 || cfg.FramesPerBuffer != DefaultFramesPerBuffer {
		t.Errorf("config = %+v", cfg)
	}

	speakers, _ := (&PortAudio{}).OutputDevice(1)
	cfg, _ = (&PortAudio{LowLatency: true, SampleRate: 96000, FramesPerBuffer: 256}).SupportedConfig(speakers)
	if cfg.Latency != 5*time.Millisecond || cfg.SampleRate != 96000 || cfg.FramesPerBuffer != 256 {
		t.Errorf("override config = %+v", cfg)
	}

	if _, err := (&PortAudio{Channels: 4}).SupportedConfig(speakers); !errors.Is(err, ErrInvalidDevice) {
		t.Errorf("expected ErrInvalidDevice for 4 channels, got %v", err)
	}
}

func TestOpenOutput_RejectsForeignDevice(t *testing.T) {
	_, err := (&PortAudio{}).OpenOutput(DeviceInfo{Name: "fake"}, StreamConfig{}, nil)
	if !errors.Is(err, ErrInvalidDevice) {
		t.Errorf("expected ErrInvalidDevice, got %v", err)
	}
}

func TestListDevices(t *testing.T) {
	mockDevices(t, testDevices, nil)
	var buf bytes.Buffer
	if err := ListDevices(&buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if strings.Contains(out, "mic") {
		t.Errorf("input-only device listed: %q", out)
	}
	if !strings.Contains(out, "[1] speakers") || !strings.Contains(out, "[2] surround") {
		t.Errorf("output devices missing: %q", out)
	}
}

func TestErrorInitialize(t *testing.T) {
	orig := paLibInitialize
	defer func() { paLibInitialize = orig }()

	paLibInitialize = func() error { return nil }
	if err := Initialize(); err != nil {
		t.Errorf("expected nil, got %v", err)
	}

	paLibInitialize = func() error { return fmt.Errorf("mock init error") }
	if err := Initialize(); err == nil || !strings.Contains(err.Error(), "mock init error") {
		t.Errorf("expected mock init error, got %v", err)
	}
}

func TestErrorTerminate(t *testing.T) {
	orig := paLibTerminate
	defer func() { paLibTerminate = orig }()

	paLibTerminate = func() error { return fmt.Errorf("mock term error") }
	if err := Terminate(); err == nil || !strings.Contains(err.Error(), "mock term error") {
		t.Errorf("expected mock term error, got %v", err)
	}
}

func TestNilDevices(t *testing.T) {
	mockDevices(t, nil, nil)

	devices, err := paDevices()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if devices == nil || len(devices) != 0 {
		t.Errorf("expected empty slice, got %v", devices)
	}
}

func TestPortAudioNotInitialized(t *testing.T) {
	mockDevices(t, nil, fmt.Errorf("PortAudio not initialized"))

	devices, err := paDevices()
	if err == nil || !strings.Contains(err.Error(), "PortAudio not initialized") {
		t.Errorf("expected 'PortAudio not initialized' error, got %v", err)
	}
	if devices != nil {
		t.Errorf("expected devices to be nil on error, got %v", devices)
	}
}

func TestToStatus(t *testing.T) {
	got := toStatus(portaudio.OutputUnderflow | portaudio.PrimingOutput)
	if got != StatusOutputUnderflow|StatusPrimingOutput {
		t.Errorf("toStatus = %b", got)
	}
}
