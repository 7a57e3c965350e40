package voxdoc

import (
	"fmt"
	"strings"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// AudioDevice describes one host audio device.
type AudioDevice struct {
	ID                int
	Name              string
	MaxInputChannels  int
	MaxOutputChannels int
	DefaultSampleRate float64
	IsDefaultInput    bool
	IsDefaultOutput   bool
	HostAPI           string
}

// DeviceManager enumerates host audio devices. Each manager pairs its own
// portaudio Initialize/Terminate, which the library reference-counts, so a
// manager can run alongside an active session's pipelines.
type DeviceManager struct {
	mu          sync.RWMutex
	initialized bool
	devices     []AudioDevice
	logger      *VoxdocLogger
}

func NewDeviceManager() *DeviceManager {
	return &DeviceManager{
		logger: GetGlobalLogger().WithComponent("devices"),
	}
}

// Initialize brings up portaudio and takes a device snapshot.
func (dm *DeviceManager) Initialize() *VoxdocError {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if dm.initialized {
		return nil
	}

	if err := portaudio.Initialize(); err != nil {
		return WrapError(err, ErrCodeDeviceUnavailable)
	}
	if err := dm.refreshLocked(); err != nil {
		portaudio.Terminate()
		return WrapError(err, ErrCodeDeviceUnavailable)
	}

	dm.initialized = true
	dm.logger.WithField("device_count", len(dm.devices)).Debug("Audio devices enumerated")
	return nil
}

// Cleanup releases the manager's portaudio reference.
func (dm *DeviceManager) Cleanup() {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if !dm.initialized {
		return
	}
	dm.initialized = false
	if err := portaudio.Terminate(); err != nil {
		dm.logger.WithError(err).Warn("PortAudio terminate failed")
	}
}

func (dm *DeviceManager) refreshLocked() error {
	dm.devices = dm.devices[:0]

	defaultInput, _ := portaudio.DefaultInputDevice()
	defaultOutput, _ := portaudio.DefaultOutputDevice()

	devices, err := portaudio.Devices()
	if err != nil {
		return err
	}

	for i, dev := range devices {
		hostAPI := "unknown"
		if dev.HostApi != nil {
			hostAPI = dev.HostApi.Name
		}
		dm.devices = append(dm.devices, AudioDevice{
			ID:                i,
			Name:              dev.Name,
			MaxInputChannels:  dev.MaxInputChannels,
			MaxOutputChannels: dev.MaxOutputChannels,
			DefaultSampleRate: dev.DefaultSampleRate,
			IsDefaultInput:    defaultInput != nil && dev == defaultInput,
			IsDefaultOutput:   defaultOutput != nil && dev == defaultOutput,
			HostAPI:           hostAPI,
		})
	}
	return nil
}

// Refresh re-enumerates devices, picking up hotplug changes.
func (dm *DeviceManager) Refresh() *VoxdocError {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if !dm.initialized {
		return NewDeviceError("device manager not initialized")
	}
	if err := dm.refreshLocked(); err != nil {
		return WrapError(err, ErrCodeDeviceUnavailable)
	}
	return nil
}

// Devices returns a copy of the current snapshot.
func (dm *DeviceManager) Devices() []AudioDevice {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	return append([]AudioDevice(nil), dm.devices...)
}

// InputDevices returns devices with at least one input channel.
func (dm *DeviceManager) InputDevices() []AudioDevice {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	inputs := make([]AudioDevice, 0)
	for _, dev := range dm.devices {
		if dev.MaxInputChannels > 0 {
			inputs = append(inputs, dev)
		}
	}
	return inputs
}

// OutputDevices returns devices with at least one output channel.
func (dm *DeviceManager) OutputDevices() []AudioDevice {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	outputs := make([]AudioDevice, 0)
	for _, dev := range dm.devices {
		if dev.MaxOutputChannels > 0 {
			outputs = append(outputs, dev)
		}
	}
	return outputs
}

// DeviceByID looks a device up by snapshot index.
func (dm *DeviceManager) DeviceByID(id int) (*AudioDevice, *VoxdocError) {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	for _, dev := range dm.devices {
		if dev.ID == id {
			found := dev
			return &found, nil
		}
	}
	return nil, NewDeviceError(fmt.Sprintf("device %d not found", id))
}

// DeviceByName looks a device up by exact name.
func (dm *DeviceManager) DeviceByName(name string) (*AudioDevice, *VoxdocError) {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	for _, dev := range dm.devices {
		if dev.Name == name {
			found := dev
			return &found, nil
		}
	}
	return nil, NewDeviceError(fmt.Sprintf("device %q not found", name))
}

// ValidateForCapture checks that a device can serve as the session
// microphone. Sample rate mismatches are logged, not fatal; the host layer
// resamples.
func (dm *DeviceManager) ValidateForCapture(id int) *VoxdocError {
	dev, vErr := dm.DeviceByID(id)
	if vErr != nil {
		return vErr
	}
	if dev.MaxInputChannels < 1 {
		return NewDeviceError(fmt.Sprintf("device %q has no input channels", dev.Name))
	}
	if dev.DefaultSampleRate > 0 && dev.DefaultSampleRate < InputSampleRate {
		dm.logger.WithFields(map[string]interface{}{
			"device":       dev.Name,
			"default_rate": dev.DefaultSampleRate,
			"wanted_rate":  InputSampleRate,
		}).Warn("Capture device default rate below session rate")
	}
	return nil
}

// ValidateForPlayback checks that a device can serve as the session speaker.
func (dm *DeviceManager) ValidateForPlayback(id int) *VoxdocError {
	dev, vErr := dm.DeviceByID(id)
	if vErr != nil {
		return vErr
	}
	if dev.MaxOutputChannels < 1 {
		return NewDeviceError(fmt.Sprintf("device %q has no output channels", dev.Name))
	}
	return nil
}

// Describe renders one device as printable text.
func (dm *DeviceManager) Describe(id int) (string, *VoxdocError) {
	dev, vErr := dm.DeviceByID(id)
	if vErr != nil {
		return "", vErr
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Device %d: %s\n", dev.ID, dev.Name)
	fmt.Fprintf(&sb, "  Host API: %s\n", dev.HostAPI)
	fmt.Fprintf(&sb, "  Channels: %d in / %d out\n", dev.MaxInputChannels, dev.MaxOutputChannels)
	fmt.Fprintf(&sb, "  Default Sample Rate: %.0f Hz\n", dev.DefaultSampleRate)

	tags := make([]string, 0, 2)
	if dev.IsDefaultInput {
		tags = append(tags, "default input")
	}
	if dev.IsDefaultOutput {
		tags = append(tags, "default output")
	}
	if len(tags) > 0 {
		fmt.Fprintf(&sb, "  %s\n", strings.Join(tags, ", "))
	}
	return sb.String(), nil
}

// ListAudioDevices enumerates devices with a short-lived manager.
func ListAudioDevices() ([]AudioDevice, *VoxdocError) {
	dm := NewDeviceManager()
	if vErr := dm.Initialize(); vErr != nil {
		return nil, vErr
	}
	defer dm.Cleanup()
	return dm.Devices(), nil
}
