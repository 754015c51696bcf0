package voxcli

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/voxlate/voxlate/audio"
)

const framesPerBuffer = 1024

// MicSource captures the microphone through PortAudio and emits 250ms PCM
// segments. A device that cannot be acquired reports ErrCaptureDenied and the
// source never becomes active.
type MicSource struct {
	deviceID int

	mu      sync.Mutex
	stream  *portaudio.Stream
	seg     *segmenter
	active  bool
	stopped bool
}

// NewMicSource uses the device with the given ID, or the default input
// device when id is 0.
func NewMicSource(deviceID int) *MicSource {
	return &MicSource{deviceID: deviceID}
}

func (m *MicSource) Start(ctx context.Context, emit func([]byte), end func()) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active {
		return fmt.Errorf("mic source already active")
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("%w: failed to initialize PortAudio: %v", ErrCaptureDenied, err)
	}

	params, err := m.inputParams()
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("%w: %v", ErrCaptureDenied, err)
	}

	m.seg = newSegmenter(audio.SegmentBytes(SegmentInterval), emit, end)
	seg := m.seg

	stream, err := portaudio.OpenStream(params, func(in []int16) {
		pcm := make([]byte, len(in)*2)
		for i, sample := range in {
			binary.LittleEndian.PutUint16(pcm[i*2:], uint16(sample))
		}
		seg.write(pcm)
	})
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("%w: failed to open audio stream: %v", ErrCaptureDenied, err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("%w: failed to start audio stream: %v", ErrCaptureDenied, err)
	}

	m.stream = stream
	m.active = true
	m.stopped = false
	slog.Info("Microphone capture started", "deviceID", m.deviceID)
	return nil
}

func (m *MicSource) inputParams() (portaudio.StreamParameters, error) {
	var device *portaudio.DeviceInfo
	var err error

	if m.deviceID > 0 {
		devices, derr := portaudio.Devices()
		if derr != nil {
			return portaudio.StreamParameters{}, fmt.Errorf("failed to get audio devices: %w", derr)
		}
		if m.deviceID >= len(devices) {
			return portaudio.StreamParameters{}, fmt.Errorf("invalid device ID %d", m.deviceID)
		}
		device = devices[m.deviceID]
		if device.MaxInputChannels == 0 {
			return portaudio.StreamParameters{}, fmt.Errorf("device %q is not an input device", device.Name)
		}
	} else {
		device, err = portaudio.DefaultInputDevice()
		if err != nil {
			return portaudio.StreamParameters{}, fmt.Errorf("failed to get default input device: %w", err)
		}
	}

	slog.Info("Using audio device",
		"deviceName", device.Name,
		"sampleRate", device.DefaultSampleRate,
		"inputChannels", device.MaxInputChannels)

	return portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: audio.Channels,
			Latency:  device.DefaultLowInputLatency,
		},
		SampleRate:      audio.SampleRate,
		FramesPerBuffer: framesPerBuffer,
	}, nil
}

// Stop releases the microphone immediately and emits the terminal sentinel
// through the segmenter. Network state is irrelevant here: a failed send must
// never leak the capture device.
func (m *MicSource) Stop() {
	m.mu.Lock()
	if !m.active || m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	stream := m.stream
	seg := m.seg
	m.mu.Unlock()

	if err := stream.Stop(); err != nil {
		slog.Error("Failed to stop audio stream", "error", err)
	}
	stream.Close()
	portaudio.Terminate()

	seg.finish()

	m.mu.Lock()
	m.active = false
	m.mu.Unlock()
	slog.Info("Microphone capture stopped")
}

// ListAudioDevices reports the available input devices.
func ListAudioDevices() ([]portaudio.DeviceInfo, error) {
	err := portaudio.Initialize()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	defer portaudio.Terminate()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to get devices: %w", err)
	}

	inputDevices := make([]portaudio.DeviceInfo, 0)
	for _, device := range devices {
		if device.MaxInputChannels > 0 {
			inputDevices = append(inputDevices, *device)
		}
	}

	return inputDevices, nil
}
