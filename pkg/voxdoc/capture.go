package voxdoc

import (
	"fmt"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
)

// FrameHandler receives one base64-encoded PCM16 speech frame.
type FrameHandler func(encoded string)

// CapturePipeline pulls 16kHz mono float32 blocks from the microphone, runs
// each through the energy gate, and emits base64 PCM16 for speech frames
// only. Volume callbacks fire for every frame so meters stay live during
// silence.
type CapturePipeline struct {
	mu      sync.Mutex
	config  *VoxdocConfig
	stream  *portaudio.Stream
	started bool
	logger  *VoxdocLogger

	cb captureState
}

// captureState is everything the input callback touches, on its own lock.
// Pa_StopStream waits for in-flight callbacks to return, so the callback must
// never contend for the lock that stream teardown holds.
type captureState struct {
	mu       sync.Mutex
	gate     *EnergyGate
	onFrame  FrameHandler
	onVolume VolumeHandler
	stats    CaptureStats
}

func NewCapturePipeline(config *VoxdocConfig) *CapturePipeline {
	p := &CapturePipeline{
		config: config,
		logger: GetGlobalLogger().WithComponent("capture"),
	}
	p.cb.gate = NewEnergyGate(config.VADThreshold)
	return p
}

// OnFrame registers the consumer for encoded speech frames.
func (c *CapturePipeline) OnFrame(handler FrameHandler) {
	c.cb.mu.Lock()
	defer c.cb.mu.Unlock()
	c.cb.onFrame = handler
}

// OnVolume registers the per-frame RMS observer.
func (c *CapturePipeline) OnVolume(handler VolumeHandler) {
	c.cb.mu.Lock()
	defer c.cb.mu.Unlock()
	c.cb.onVolume = handler
}

// Start opens the input stream and begins delivering frames. A failure to
// open the microphone is fatal to the session; callers should not retry.
func (c *CapturePipeline) Start() *VoxdocError {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return nil
	}

	if err := portaudio.Initialize(); err != nil {
		return WrapError(err, ErrCodeDeviceUnavailable).AddDetail("stage", "initialize")
	}

	stream, err := openInputStream(c.config.AudioDeviceID, c.config.FrameSize, c.process)
	if err != nil {
		portaudio.Terminate()
		return WrapError(err, ErrCodeDeviceUnavailable).AddDetail("stage", "open")
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return WrapError(err, ErrCodeDeviceUnavailable).AddDetail("stage", "start")
	}

	c.stream = stream
	c.started = true
	c.cb.mu.Lock()
	c.cb.stats = CaptureStats{StartedAt: time.Now()}
	c.cb.mu.Unlock()
	c.logger.LogAudioEvent("capture_started", map[string]interface{}{
		"sample_rate":   InputSampleRate,
		"frame_size":    c.config.FrameSize,
		"vad_threshold": c.cb.gate.Threshold,
	})
	return nil
}

// process is the portaudio input callback. It must not block and must not
// touch c.mu: Stop waits on in-flight callbacks while tearing the stream down.
func (c *CapturePipeline) process(in []float32) {
	c.cb.mu.Lock()
	onVolume := c.cb.onVolume
	onFrame := c.cb.onFrame
	c.cb.mu.Unlock()

	frame := c.cb.gate.ProcessFrame(in)

	c.cb.mu.Lock()
	c.cb.stats.Frames++
	c.cb.stats.LastRMS = frame.RMS
	if frame.RMS > c.cb.stats.MaxRMS {
		c.cb.stats.MaxRMS = frame.RMS
	}
	if frame.Speech {
		c.cb.stats.SpeechFrames++
	} else {
		c.cb.stats.SilenceFrames++
	}
	c.cb.mu.Unlock()

	if onVolume != nil {
		onVolume(frame.RMS)
	}
	if frame.Speech && onFrame != nil {
		onFrame(EncodeAudioToBase64(Int16ToPCM16Bytes(frame.PCM)))
	}
}

// Stop closes the input stream. Safe to call repeatedly and on a pipeline
// that never started.
func (c *CapturePipeline) Stop() *VoxdocError {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = false
	stream := c.stream
	c.stream = nil
	c.mu.Unlock()

	// Pa_StopStream drains in-flight callbacks, so no pipeline lock may be
	// held across it.
	var firstErr error
	if err := stream.Stop(); err != nil {
		firstErr = err
	}
	if err := stream.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	portaudio.Terminate()

	stats := c.GetStats()
	c.logger.LogAudioEvent("capture_stopped", map[string]interface{}{
		"frames": stats.Frames,
		"speech": stats.SpeechFrames,
	})
	if firstErr != nil {
		return WrapError(firstErr, ErrCodeDeviceUnavailable)
	}
	return nil
}

// CountDroppedSend lets the session record frames it had to shed when the
// write queue was full, keeping all capture counters in one place.
func (c *CapturePipeline) CountDroppedSend() {
	c.cb.mu.Lock()
	c.cb.stats.DroppedSends++
	c.cb.mu.Unlock()
}

// GetStats returns a snapshot of capture counters.
func (c *CapturePipeline) GetStats() *CaptureStats {
	c.cb.mu.Lock()
	defer c.cb.mu.Unlock()
	stats := c.cb.stats
	return &stats
}

// openInputStream opens the default input device, or a specific one when a
// device id was configured.
func openInputStream(deviceID *int, frameSize int, cb func([]float32)) (*portaudio.Stream, error) {
	if deviceID == nil {
		return portaudio.OpenDefaultStream(1, 0, float64(InputSampleRate), frameSize, cb)
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	if *deviceID < 0 || *deviceID >= len(devices) {
		return nil, fmt.Errorf("audio device %d out of range (have %d devices)", *deviceID, len(devices))
	}
	info := devices[*deviceID]
	if info.MaxInputChannels < 1 {
		return nil, fmt.Errorf("device %q has no input channels", info.Name)
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   info,
			Channels: 1,
			Latency:  info.DefaultLowInputLatency,
		},
		SampleRate:      float64(InputSampleRate),
		FramesPerBuffer: frameSize,
	}
	return portaudio.OpenStream(params, cb)
}
