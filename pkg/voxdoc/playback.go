package voxdoc

import (
	"math"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// playbackBlockSize is the output callback block in samples (~21ms at 24kHz).
const playbackBlockSize = 512

// playbackSource is one decoded chunk positioned on the playback clock.
type playbackSource struct {
	samples []float32
	start   float64
	offset  int
}

// playbackScheduler owns the gapless scheduling math, independent of any
// audio device. The clock is derived from rendered sample count, so tests can
// drive it deterministically by calling renderInto themselves. Consecutive
// chunks are placed back to back via nextStartTime; an interrupt drops every
// pending source and rewinds nextStartTime to zero so the next chunk starts
// immediately.
type playbackScheduler struct {
	mu            sync.Mutex
	rate          int
	played        int64
	nextStartTime float64
	sources       []*playbackSource

	scheduled  int64
	interrupts int64
}

func newPlaybackScheduler(rate int) *playbackScheduler {
	return &playbackScheduler{rate: rate}
}

// Schedule places samples at max(clock, nextStartTime) and advances
// nextStartTime by the chunk duration. Returns the chosen start time.
func (s *playbackScheduler) Schedule(samples []float32) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := float64(s.played) / float64(s.rate)
	start := s.nextStartTime
	if start < now {
		start = now
	}
	s.sources = append(s.sources, &playbackSource{samples: samples, start: start})
	s.nextStartTime = start + float64(len(samples))/float64(s.rate)
	s.scheduled++
	return start
}

// Interrupt discards all pending sources and resets nextStartTime. Returns
// how many sources were dropped.
func (s *playbackScheduler) Interrupt() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.sources)
	s.sources = nil
	s.nextStartTime = 0
	s.interrupts++
	return n
}

// Clock returns seconds of audio rendered so far.
func (s *playbackScheduler) Clock() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return float64(s.played) / float64(s.rate)
}

// NextStartTime returns where the next chunk would be placed.
func (s *playbackScheduler) NextStartTime() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextStartTime
}

// Pending returns the number of sources not yet fully rendered.
func (s *playbackScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sources)
}

// renderInto fills one output block, mixing every active source at its
// scheduled position and advancing the clock by the block length. Sources
// whose window already passed are skipped forward so the timeline stays
// aligned with the nextStartTime bookkeeping.
func (s *playbackScheduler) renderInto(out []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range out {
		out[i] = 0
	}

	blockStart := s.played
	blockEnd := blockStart + int64(len(out))
	kept := s.sources[:0]
	for _, src := range s.sources {
		startSample := int64(math.Round(src.start * float64(s.rate)))
		pos := startSample + int64(src.offset)
		if pos < blockStart {
			skip := blockStart - pos
			if int64(len(src.samples)-src.offset) <= skip {
				continue
			}
			src.offset += int(skip)
			pos = blockStart
		}
		if pos >= blockEnd {
			kept = append(kept, src)
			continue
		}
		idx := int(pos - blockStart)
		n := mixInto(out[idx:], src.samples[src.offset:])
		src.offset += n
		if src.offset < len(src.samples) {
			kept = append(kept, src)
		}
	}
	s.sources = kept
	s.played += int64(len(out))
}

// mixInto adds src into dst with hard clamping, returning samples consumed.
func mixInto(dst, src []float32) int {
	n := len(src)
	if len(dst) < n {
		n = len(dst)
	}
	for i := 0; i < n; i++ {
		v := dst[i] + src[i]
		if v > 1.0 {
			v = 1.0
		} else if v < -1.0 {
			v = -1.0
		}
		dst[i] = v
	}
	return n
}

func (s *playbackScheduler) snapshot() (scheduled, interrupts int64, pending int, nextStart, clock float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scheduled, s.interrupts, len(s.sources), s.nextStartTime, float64(s.played) / float64(s.rate)
}

// PlaybackPipeline renders scheduled model audio to the default output device
// at 24kHz mono. Chunks may be enqueued before Start; they begin sounding once
// the stream runs.
type PlaybackPipeline struct {
	mu        sync.Mutex
	scheduler *playbackScheduler
	stream    *portaudio.Stream
	started   bool
	dropped   int64
	logger    *VoxdocLogger
}

func NewPlaybackPipeline() *PlaybackPipeline {
	return &PlaybackPipeline{
		scheduler: newPlaybackScheduler(OutputSampleRate),
		logger:    GetGlobalLogger().WithComponent("playback"),
	}
}

// Start opens the default output stream. Calling Start on a running pipeline
// is a no-op.
func (p *PlaybackPipeline) Start() *VoxdocError {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return nil
	}

	if err := portaudio.Initialize(); err != nil {
		return WrapError(err, ErrCodeDeviceUnavailable)
	}

	stream, err := portaudio.OpenDefaultStream(0, 1, float64(OutputSampleRate), playbackBlockSize, p.render)
	if err != nil {
		portaudio.Terminate()
		return WrapError(err, ErrCodeDeviceUnavailable).AddDetail("direction", "output")
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return WrapError(err, ErrCodeDeviceUnavailable).AddDetail("direction", "output")
	}

	p.stream = stream
	p.started = true
	p.logger.LogAudioEvent("playback_started", map[string]interface{}{
		"sample_rate": OutputSampleRate,
		"block_size":  playbackBlockSize,
	})
	return nil
}

func (p *PlaybackPipeline) render(out []float32) {
	p.scheduler.renderInto(out)
}

// EnqueueChunk decodes one base64 PCM16 chunk and schedules it gaplessly
// after whatever is already queued. Undecodable chunks are dropped and
// reported without disturbing the queue.
func (p *PlaybackPipeline) EnqueueChunk(data string) *VoxdocError {
	samples, err := DecodePCM16Chunk(data)
	if err != nil {
		p.mu.Lock()
		p.dropped++
		p.mu.Unlock()
		return WrapError(err, ErrCodeAudioDecode)
	}
	if len(samples) == 0 {
		return nil
	}

	start := p.scheduler.Schedule(samples)
	p.logger.LogAudioEvent("chunk_scheduled", map[string]interface{}{
		"samples":  len(samples),
		"start_at": start,
	})
	return nil
}

// Interrupt silences the pipeline: every queued chunk is discarded and the
// next enqueue plays immediately.
func (p *PlaybackPipeline) Interrupt() {
	cleared := p.scheduler.Interrupt()
	p.logger.LogAudioEvent("playback_interrupted", map[string]interface{}{
		"cleared": cleared,
	})
}

// Stop closes the output stream. Safe to call repeatedly and on a pipeline
// that never started.
func (p *PlaybackPipeline) Stop() *VoxdocError {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return nil
	}
	p.started = false

	var firstErr error
	if err := p.stream.Stop(); err != nil {
		firstErr = err
	}
	if err := p.stream.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	p.stream = nil
	portaudio.Terminate()

	p.logger.LogAudioEvent("playback_stopped", nil)
	if firstErr != nil {
		return WrapError(firstErr, ErrCodeDeviceUnavailable)
	}
	return nil
}

// GetStats reports scheduling counters and clock positions.
func (p *PlaybackPipeline) GetStats() *PlaybackStats {
	scheduled, interrupts, pending, nextStart, clock := p.scheduler.snapshot()
	p.mu.Lock()
	dropped := p.dropped
	p.mu.Unlock()
	return &PlaybackStats{
		ChunksScheduled: scheduled,
		ChunksDropped:   dropped,
		Interrupts:      interrupts,
		PendingSources:  pending,
		NextStartTime:   nextStart,
		ClockSeconds:    clock,
	}
}
