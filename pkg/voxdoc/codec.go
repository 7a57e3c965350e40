package voxdoc

import (
	"encoding/base64"
	"encoding/binary"
	"math"
)

// Audio encoding helpers. The wire carries 16-bit little-endian PCM as
// base64 text; capture and playback work in float32 samples in [-1,1].

func EncodeAudioToBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

func DecodeAudioFromBase64(encoded string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(encoded)
}

// Float32ToPCM16 converts float samples to signed 16-bit, clamping to [-1,1].
func Float32ToPCM16(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		out[i] = int16(s * 32767)
	}
	return out
}

// PCM16ToFloat32 converts signed 16-bit samples back to float in [-1,1).
func PCM16ToFloat32(samples []int16) []float32 {
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = float32(s) / 32768
	}
	return out
}

// Int16ToPCM16Bytes serializes samples as little-endian bytes.
func Int16ToPCM16Bytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

// PCM16BytesToInt16 parses little-endian bytes into samples.
// Returns an error for odd-length input rather than silently truncating.
func PCM16BytesToInt16(data []byte) ([]int16, error) {
	if len(data)%2 != 0 {
		return nil, NewAudioDecodeError("pcm16 payload has odd byte count").AddDetail("bytes", len(data))
	}
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return samples, nil
}

// DecodePCM16Chunk decodes one inbound base64 chunk into float samples.
func DecodePCM16Chunk(encoded string) ([]float32, error) {
	data, err := DecodeAudioFromBase64(encoded)
	if err != nil {
		return nil, WrapError(err, ErrCodeAudioDecode)
	}
	samples, derr := PCM16BytesToInt16(data)
	if derr != nil {
		return nil, derr
	}
	return PCM16ToFloat32(samples), nil
}

// EncodePCM16Chunk converts float samples into one outbound base64 chunk.
func EncodePCM16Chunk(samples []float32) string {
	return EncodeAudioToBase64(Int16ToPCM16Bytes(Float32ToPCM16(samples)))
}

// CalculateRMS computes sqrt(mean(sample^2)) over one frame.
func CalculateRMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// CalculatePeak returns the largest absolute sample value in the frame.
func CalculatePeak(samples []float32) float64 {
	peak := 0.0
	for _, s := range samples {
		if abs := math.Abs(float64(s)); abs > peak {
			peak = abs
		}
	}
	return peak
}
