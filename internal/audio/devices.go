// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"io"

	"github.com/gordonklaus/portaudio"
)

// Indirections over the PortAudio library so tests can fail each call.
var (
	paLibInitialize              = portaudio.Initialize
	paLibTerminate               = portaudio.Terminate
	paLibDevicesFunc             = portaudio.Devices
	paLibDefaultOutputDeviceFunc = portaudio.DefaultOutputDevice
	paLibOpenStream              = portaudio.OpenStream
)

// Initialize sets up the PortAudio subsystem.
// This must be called before any audio operations and paired with a Terminate() call.
func Initialize() error {
	if err := paLibInitialize(); err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return nil
}

// Terminate cleanly shuts down the PortAudio subsystem.
// This should be deferred immediately after Initialize().
func Terminate() error {
	if err := paLibTerminate(); err != nil {
		return fmt.Errorf("failed to terminate PortAudio: %w", err)
	}
	return nil
}

// PortAudio is the Backend backed by the host's PortAudio installation.
type PortAudio struct {
	FramesPerBuffer int
	LowLatency      bool
	SampleRate      int // 0 uses the device default
	Channels        int // 0 uses min(2, device max)
}

// OutputDevice retrieves the output device for the given ID.
// If id is -1, returns the system default output device.
func (p *PortAudio) OutputDevice(id int) (DeviceInfo, error) {
	devices, err := paDevices()
	if err != nil {
		return DeviceInfo{}, err
	}

	if id == -1 {
		dev, err := paLibDefaultOutputDeviceFunc()
		if err != nil {
			return DeviceInfo{}, fmt.Errorf("%w: %v", ErrNoOutputDevice, err)
		}
		for i, d := range devices {
			if d.Name == dev.Name && d.HostApi == dev.HostApi {
				return toDeviceInfo(i, d), nil
			}
		}
		return toDeviceInfo(-1, dev), nil
	}

	if id < 0 || id >= len(devices) {
		return DeviceInfo{}, fmt.Errorf("%w: invalid device ID: %d", ErrInvalidDevice, id)
	}
	if devices[id].MaxOutputChannels == 0 {
		return DeviceInfo{}, fmt.Errorf("%w: device %d does not support output", ErrInvalidDevice, id)
	}
	return toDeviceInfo(id, devices[id]), nil
}

// SupportedConfig picks the device's default rate and up to two channels
// unless the backend overrides them.
func (p *PortAudio) SupportedConfig(dev DeviceInfo) (StreamConfig, error) {
	if dev.MaxOutputChannels <= 0 {
		return StreamConfig{}, fmt.Errorf("%w: %q has no output channels", ErrInvalidDevice, dev.Name)
	}

	cfg := StreamConfig{
		SampleRate:      int(dev.DefaultSampleRate),
		Channels:        min(2, dev.MaxOutputChannels),
		FramesPerBuffer: p.FramesPerBuffer,
		Latency:         dev.HighLatency,
	}
	if p.SampleRate > 0 {
		cfg.SampleRate = p.SampleRate
	}
	if p.Channels > 0 {
		if p.Channels > dev.MaxOutputChannels {
			return StreamConfig{}, fmt.Errorf("%w: %q supports %d channels, %d requested",
				ErrInvalidDevice, dev.Name, dev.MaxOutputChannels, p.Channels)
		}
		cfg.Channels = p.Channels
	}
	if cfg.FramesPerBuffer <= 0 {
		cfg.FramesPerBuffer = DefaultFramesPerBuffer
	}
	if p.LowLatency {
		cfg.Latency = dev.LowLatency
	}
	return cfg, nil
}

// OpenOutput opens an output-only stream delivering interleaved int16.
func (p *PortAudio) OpenOutput(dev DeviceInfo, cfg StreamConfig, cb Callback) (Stream, error) {
	pa, ok := dev.handle.(*portaudio.DeviceInfo)
	if !ok || pa == nil {
		return nil, fmt.Errorf("%w: %q is not a PortAudio device", ErrInvalidDevice, dev.Name)
	}

	params := portaudio.StreamParameters{
		Output: portaudio.StreamDeviceParameters{
			Device:   pa,
			Channels: cfg.Channels,
			Latency:  cfg.Latency,
		},
		FramesPerBuffer: cfg.FramesPerBuffer,
		SampleRate:      float64(cfg.SampleRate),
	}

	stream, err := paLibOpenStream(params, func(out []int16, _ portaudio.StreamCallbackTimeInfo, flags portaudio.StreamCallbackFlags) {
		cb(out, toStatus(flags))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open output stream on %q: %w", dev.Name, err)
	}
	return stream, nil
}

// ListDevices prints every output-capable device with its ID, channel count,
// default sample rate and latency range.
func ListDevices(w io.Writer) error {
	devices, err := paDevices()
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "\nAvailable Output Devices\n\n")

	for i, device := range devices {
		if device.MaxOutputChannels == 0 {
			continue
		}
		fmt.Fprintf(w, "[%d] %s\n", i, device.Name)
		fmt.Fprintf(w, "    Output channels: %d\n", device.MaxOutputChannels)
		fmt.Fprintf(w, "    Default sample rate: %.0f Hz\n", device.DefaultSampleRate)
		fmt.Fprintf(w, "    Latency: Low=%.2fms, High=%.2fms\n",
			device.DefaultLowOutputLatency.Seconds()*1000,
			device.DefaultHighOutputLatency.Seconds()*1000)
		fmt.Fprintln(w)
	}

	return nil
}

// paDevices returns all available PortAudio devices, never a nil slice on success.
func paDevices() ([]*portaudio.DeviceInfo, error) {
	devices, err := paLibDevicesFunc()
	if err != nil {
		return nil, err
	}
	if devices == nil {
		devices = []*portaudio.DeviceInfo{}
	}
	return devices, nil
}

func toDeviceInfo(id int, d *portaudio.DeviceInfo) DeviceInfo {
	return DeviceInfo{
		ID:                id,
		Name:              d.Name,
		MaxOutputChannels: d.MaxOutputChannels,
		DefaultSampleRate: d.DefaultSampleRate,
		LowLatency:        d.DefaultLowOutputLatency,
		HighLatency:       d.DefaultHighOutputLatency,
		handle:            d,
	}
}

func toStatus(flags portaudio.StreamCallbackFlags) StreamStatus {
	var s StreamStatus
	if flags&portaudio.OutputUnderflow != 0 {
		s |= StatusOutputUnderflow
	}
	if flags&portaudio.OutputOverflow != 0 {
		s |= StatusOutputOverflow
	}
	if flags&portaudio.PrimingOutput != 0 {
		s |= StatusPrimingOutput
	}
	return s
}

var _ Backend = (*PortAudio)(nil)
