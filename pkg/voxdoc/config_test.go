package voxdoc

import (
	"strings"
	"testing"
)

func TestConfigDefaultsValid(t *testing.T) {
	config := NewVoxdocConfig()
	config.APIKey = "test-key"

	if issues := config.Validate(); len(issues) > 0 {
		t.Errorf("default config has issues: %v", issues)
	}
	if config.VADThreshold != 0.002 {
		t.Errorf("vad threshold = %f", config.VADThreshold)
	}
	if config.DocSnapshotLimit != 15000 {
		t.Errorf("snapshot limit = %d", config.DocSnapshotLimit)
	}
	if config.ReportToolFailures {
		t.Error("tool failure reporting on by default; observed behavior is off")
	}
}

func TestConfigValidateMissingKey(t *testing.T) {
	config := NewVoxdocConfig()
	config.APIKey = ""
	config.GatewaySecret = ""

	issues := config.Validate()
	found := false
	for _, issue := range issues {
		if strings.Contains(issue, "VOXDOC_API_KEY") {
			found = true
		}
	}
	if !found {
		t.Errorf("missing key not flagged: %v", issues)
	}
}

func TestConfigValidateGatewaySecretSuffices(t *testing.T) {
	config := NewVoxdocConfig()
	config.APIKey = ""
	config.GatewaySecret = "shared"

	for _, issue := range config.Validate() {
		if strings.Contains(issue, "VOXDOC_API_KEY") {
			t.Errorf("api key demanded despite gateway auth: %v", issue)
		}
	}
}

func TestConfigValidateFrameSizeBudget(t *testing.T) {
	config := NewVoxdocConfig()
	config.APIKey = "k"

	// Frames above 100ms would clip speech onsets at the gate.
	config.FrameSize = InputSampleRate / 2
	if issues := config.Validate(); len(issues) == 0 {
		t.Error("oversized frame accepted")
	}

	config.FrameSize = InputSampleRate / 10
	if issues := config.Validate(); len(issues) != 0 {
		t.Errorf("100ms frame rejected: %v", issues)
	}
}

func TestConfigValidateBadEndpoints(t *testing.T) {
	config := NewVoxdocConfig()
	config.APIKey = "k"
	config.LiveEndpoint = "https://not-a-socket"
	config.APIEndpoint = "ftp://wrong"

	issues := config.Validate()
	if len(issues) < 2 {
		t.Errorf("bad endpoints produced %d issues: %v", len(issues), issues)
	}
}

func TestConfigValidateThresholdRange(t *testing.T) {
	config := NewVoxdocConfig()
	config.APIKey = "k"
	config.VADThreshold = 1.5

	if issues := config.Validate(); len(issues) == 0 {
		t.Error("out-of-range threshold accepted")
	}
}
