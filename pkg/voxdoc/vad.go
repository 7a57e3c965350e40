package voxdoc

// EnergyGate classifies capture frames as speech or silence by short-window
// RMS energy. Speech frames are converted to PCM16 for transmission; silence
// frames keep their RMS (for the volume meter) but carry no samples, so dead
// air never reaches the upstream path.
type EnergyGate struct {
	Threshold float64
}

// DefaultVADThreshold is low enough that soft speech onsets pass the gate.
const DefaultVADThreshold = 0.002

func NewEnergyGate(threshold float64) *EnergyGate {
	if threshold <= 0 {
		threshold = DefaultVADThreshold
	}
	return &EnergyGate{Threshold: threshold}
}

func DefaultEnergyGate() *EnergyGate {
	return NewEnergyGate(DefaultVADThreshold)
}

// ProcessFrame computes the frame's RMS and classifies it. A frame whose RMS
// reaches the threshold is speech and comes back with its PCM16 samples;
// anything below is silence with PCM left nil.
func (g *EnergyGate) ProcessFrame(samples []float32) AudioFrame {
	rms := CalculateRMS(samples)
	frame := AudioFrame{RMS: rms}
	if rms >= g.Threshold {
		frame.Speech = true
		frame.PCM = Float32ToPCM16(samples)
	}
	return frame
}
