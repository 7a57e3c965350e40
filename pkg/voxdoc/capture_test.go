package voxdoc

import (
	"testing"
	"time"
)

func TestCaptureCallbackIndependentOfStreamLock(t *testing.T) {
	config := NewVoxdocConfig()
	c := NewCapturePipeline(config)

	// Stream teardown waits for in-flight callbacks while holding the
	// pipeline lock; a callback arriving in that window must still complete.
	c.mu.Lock()
	done := make(chan struct{})
	go func() {
		c.process(constantFrame(0.1, 256))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("input callback blocked while the stream lock was held")
	}
	c.mu.Unlock()

	stats := c.GetStats()
	if stats.Frames != 1 || stats.SpeechFrames != 1 {
		t.Errorf("stats = %d frames / %d speech, want 1/1", stats.Frames, stats.SpeechFrames)
	}
}

func TestCaptureProcessClassifiesFrames(t *testing.T) {
	config := NewVoxdocConfig()
	c := NewCapturePipeline(config)

	var volumes []float64
	var encoded []string
	c.OnVolume(func(level float64) { volumes = append(volumes, level) })
	c.OnFrame(func(frame string) { encoded = append(encoded, frame) })

	c.process(constantFrame(0.0005, 256))
	c.process(constantFrame(0.1, 256))

	if len(volumes) != 2 {
		t.Fatalf("volume callbacks = %d, want one per frame", len(volumes))
	}
	if len(encoded) != 1 {
		t.Fatalf("speech frames = %d, want 1", len(encoded))
	}

	stats := c.GetStats()
	if stats.SpeechFrames != 1 || stats.SilenceFrames != 1 {
		t.Errorf("stats = %d speech / %d silence", stats.SpeechFrames, stats.SilenceFrames)
	}
	if stats.MaxRMS < 0.09 {
		t.Errorf("max rms = %f", stats.MaxRMS)
	}
}

func TestCaptureStopWithoutStart(t *testing.T) {
	c := NewCapturePipeline(NewVoxdocConfig())
	if vErr := c.Stop(); vErr != nil {
		t.Fatalf("stop of idle pipeline failed: %v", vErr)
	}
	if vErr := c.Stop(); vErr != nil {
		t.Fatalf("repeated stop failed: %v", vErr)
	}
}

func TestCaptureCountDroppedSend(t *testing.T) {
	c := NewCapturePipeline(NewVoxdocConfig())
	c.CountDroppedSend()
	c.CountDroppedSend()
	if got := c.GetStats().DroppedSends; got != 2 {
		t.Errorf("dropped sends = %d, want 2", got)
	}
}
