package voxdoc

import (
	"bytes"
	"math"
	"testing"
)

func TestBase64RoundTrip(t *testing.T) {
	original := []byte{0x00, 0x01, 0x7F, 0x80, 0xFF, 0x10, 0x20}

	encoded := EncodeAudioToBase64(original)
	decoded, err := DecodeAudioFromBase64(encoded)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !bytes.Equal(original, decoded) {
		t.Errorf("round trip mismatch: got %v, want %v", decoded, original)
	}
}

func TestDecodeBase64Invalid(t *testing.T) {
	if _, err := DecodeAudioFromBase64("not base64!!!"); err == nil {
		t.Error("expected error for invalid base64")
	}
}

func TestFloat32PCM16RoundTrip(t *testing.T) {
	samples := []float32{0, 0.5, -0.5, 0.25, -0.25, 0.999, -0.999}

	pcm := Float32ToPCM16(samples)
	back := PCM16ToFloat32(pcm)

	// One LSB of int16 quantization.
	const tolerance = 1.0 / 32768
	for i := range samples {
		diff := math.Abs(float64(samples[i]) - float64(back[i]))
		if diff > tolerance {
			t.Errorf("sample %d: %f -> %f, diff %f exceeds 1 LSB", i, samples[i], back[i], diff)
		}
	}
}

func TestFloat32ToPCM16Clamps(t *testing.T) {
	pcm := Float32ToPCM16([]float32{2.0, -2.0, 1.0, -1.0})

	if pcm[0] != 32767 {
		t.Errorf("overdriven positive sample = %d, want 32767", pcm[0])
	}
	if pcm[1] != -32767 {
		t.Errorf("overdriven negative sample = %d, want -32767", pcm[1])
	}
	if pcm[2] != 32767 {
		t.Errorf("full-scale positive = %d, want 32767", pcm[2])
	}
}

func TestPCM16BytesRoundTrip(t *testing.T) {
	samples := []int16{0, 1, -1, 32767, -32768, 12345, -12345}

	data := Int16ToPCM16Bytes(samples)
	if len(data) != len(samples)*2 {
		t.Fatalf("byte length = %d, want %d", len(data), len(samples)*2)
	}

	back, err := PCM16BytesToInt16(data)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	for i := range samples {
		if samples[i] != back[i] {
			t.Errorf("sample %d: %d -> %d", i, samples[i], back[i])
		}
	}
}

func TestPCM16BytesOddLength(t *testing.T) {
	_, err := PCM16BytesToInt16([]byte{0x01, 0x02, 0x03})
	if err == nil {
		t.Fatal("expected error for odd byte count")
	}
	vErr, ok := err.(*VoxdocError)
	if !ok || vErr.Code != ErrCodeAudioDecode {
		t.Errorf("error code = %v, want %s", err, ErrCodeAudioDecode)
	}
}

func TestEncodeDecodeChunkRoundTrip(t *testing.T) {
	samples := []float32{0.1, -0.2, 0.3, -0.4}

	encoded := EncodePCM16Chunk(samples)
	decoded, err := DecodePCM16Chunk(encoded)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(decoded) != len(samples) {
		t.Fatalf("length = %d, want %d", len(decoded), len(samples))
	}

	const tolerance = 1.0 / 32768
	for i := range samples {
		if math.Abs(float64(samples[i])-float64(decoded[i])) > tolerance {
			t.Errorf("sample %d: %f -> %f", i, samples[i], decoded[i])
		}
	}
}

func TestCalculateRMS(t *testing.T) {
	if rms := CalculateRMS(nil); rms != 0 {
		t.Errorf("RMS of empty frame = %f, want 0", rms)
	}
	if rms := CalculateRMS([]float32{0, 0, 0, 0}); rms != 0 {
		t.Errorf("RMS of silence = %f, want 0", rms)
	}

	// Constant amplitude: RMS equals the amplitude.
	rms := CalculateRMS([]float32{0.5, -0.5, 0.5, -0.5})
	if math.Abs(rms-0.5) > 1e-9 {
		t.Errorf("RMS = %f, want 0.5", rms)
	}
}

func TestCalculatePeak(t *testing.T) {
	peak := CalculatePeak([]float32{0.1, -0.7, 0.3})
	if math.Abs(peak-0.7) > 1e-9 {
		t.Errorf("peak = %f, want 0.7", peak)
	}
	if peak := CalculatePeak(nil); peak != 0 {
		t.Errorf("peak of empty frame = %f, want 0", peak)
	}
}
