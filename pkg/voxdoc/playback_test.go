package voxdoc

import (
	"math"
	"testing"
)

const testRate = 100 // samples per second, keeps the math readable

func chunkOf(value float32, n int) []float32 {
	chunk := make([]float32, n)
	for i := range chunk {
		chunk[i] = value
	}
	return chunk
}

func TestScheduleGapless(t *testing.T) {
	s := newPlaybackScheduler(testRate)

	// Three chunks of 0.5s each, arriving back to back.
	starts := []float64{
		s.Schedule(chunkOf(0.1, 50)),
		s.Schedule(chunkOf(0.2, 50)),
		s.Schedule(chunkOf(0.3, 50)),
	}

	for i := 1; i < len(starts); i++ {
		want := starts[i-1] + 0.5
		if math.Abs(starts[i]-want) > 1e-9 {
			t.Errorf("chunk %d start = %f, want %f (previous start + duration)", i, starts[i], want)
		}
	}
	if nst := s.NextStartTime(); math.Abs(nst-1.5) > 1e-9 {
		t.Errorf("nextStartTime = %f, want 1.5", nst)
	}
}

func TestScheduleGaplessUnderJitter(t *testing.T) {
	s := newPlaybackScheduler(testRate)
	out := make([]float32, 10)

	first := s.Schedule(chunkOf(0.1, 50))

	// Arrival jitter: some playback happens before the next chunk arrives,
	// but the first chunk has not finished.
	for i := 0; i < 3; i++ {
		s.renderInto(out)
	}
	second := s.Schedule(chunkOf(0.2, 50))

	if math.Abs(second-(first+0.5)) > 1e-9 {
		t.Errorf("second start = %f, want %f; jitter leaked into the timeline", second, first+0.5)
	}
}

func TestScheduleRebaselinesAfterDrain(t *testing.T) {
	s := newPlaybackScheduler(testRate)
	out := make([]float32, 10)

	s.Schedule(chunkOf(0.1, 20)) // 0.2s
	for i := 0; i < 10; i++ {    // render 1.0s, well past the chunk
		s.renderInto(out)
	}

	// The queue drained; the next chunk starts at the current clock, not in
	// the past.
	start := s.Schedule(chunkOf(0.2, 20))
	if math.Abs(start-1.0) > 1e-9 {
		t.Errorf("post-drain start = %f, want 1.0 (current clock)", start)
	}
}

func TestRenderPlacesSamples(t *testing.T) {
	s := newPlaybackScheduler(testRate)

	s.Schedule(chunkOf(0.25, 50))
	s.Schedule(chunkOf(0.5, 50))

	out := make([]float32, 100)
	s.renderInto(out)

	for i := 0; i < 50; i++ {
		if out[i] != 0.25 {
			t.Fatalf("sample %d = %f, want 0.25 (first chunk)", i, out[i])
		}
	}
	for i := 50; i < 100; i++ {
		if out[i] != 0.5 {
			t.Fatalf("sample %d = %f, want 0.5 (second chunk, no gap)", i, out[i])
		}
	}
	if s.Pending() != 0 {
		t.Errorf("pending = %d after full render, want 0", s.Pending())
	}
}

func TestInterruptStopsBacklog(t *testing.T) {
	s := newPlaybackScheduler(testRate)
	out := make([]float32, 10)

	s.Schedule(chunkOf(0.1, 50))
	s.Schedule(chunkOf(0.1, 50))
	s.Schedule(chunkOf(0.1, 50))
	s.renderInto(out) // mid-playback of the backlog

	dropped := s.Interrupt()
	if dropped != 3 {
		t.Errorf("interrupt dropped %d sources, want 3", dropped)
	}
	if s.NextStartTime() != 0 {
		t.Errorf("nextStartTime = %f after interrupt, want 0", s.NextStartTime())
	}

	// No further audio from the interrupted chunks.
	for block := 0; block < 20; block++ {
		s.renderInto(out)
		for i, v := range out {
			if v != 0 {
				t.Fatalf("block %d sample %d = %f after interrupt, want silence", block, i, v)
			}
		}
	}
}

func TestInterruptThenScheduleStartsNow(t *testing.T) {
	s := newPlaybackScheduler(testRate)
	out := make([]float32, 10)

	s.Schedule(chunkOf(0.1, 100))
	for i := 0; i < 5; i++ {
		s.renderInto(out) // clock is now 0.5s
	}
	s.Interrupt()

	// max(now, 0) places the next chunk at the current clock.
	start := s.Schedule(chunkOf(0.2, 10))
	if math.Abs(start-0.5) > 1e-9 {
		t.Errorf("post-interrupt start = %f, want 0.5 (current clock)", start)
	}
}

func TestPipelineEnqueueBadChunk(t *testing.T) {
	p := NewPlaybackPipeline()

	// Odd byte count: dropped, counted, pipeline keeps going.
	bad := EncodeAudioToBase64([]byte{0x01, 0x02, 0x03})
	if vErr := p.EnqueueChunk(bad); vErr == nil {
		t.Fatal("expected decode error for odd-length chunk")
	} else if vErr.Code != ErrCodeAudioDecode {
		t.Errorf("error code = %s, want %s", vErr.Code, ErrCodeAudioDecode)
	}

	good := EncodePCM16Chunk(chunkOf(0.1, 24))
	if vErr := p.EnqueueChunk(good); vErr != nil {
		t.Fatalf("good chunk rejected after bad one: %v", vErr)
	}

	stats := p.GetStats()
	if stats.ChunksDropped != 1 {
		t.Errorf("dropped = %d, want 1", stats.ChunksDropped)
	}
	if stats.ChunksScheduled != 1 {
		t.Errorf("scheduled = %d, want 1", stats.ChunksScheduled)
	}
}

func TestPipelineStopWithoutStart(t *testing.T) {
	p := NewPlaybackPipeline()
	if vErr := p.Stop(); vErr != nil {
		t.Errorf("stop on never-started pipeline returned %v", vErr)
	}
	if vErr := p.Stop(); vErr != nil {
		t.Errorf("second stop returned %v", vErr)
	}
}
