package voxdoc

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// DefaultLiveEndpoint is the bidirectional streaming endpoint.
	DefaultLiveEndpoint = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

	// DefaultAPIEndpoint is the REST endpoint used by the generation client.
	DefaultAPIEndpoint = "https://generativelanguage.googleapis.com/v1beta"

	// InputSampleRate is the capture rate sent upstream.
	InputSampleRate = 16000

	// OutputSampleRate is the rate of audio streamed back for playback.
	OutputSampleRate = 24000
)

const defaultSystemInstruction = `You are a document editing assistant. The user is working on an HTML article
and talks to you about changes. Use the update_element tool to replace the inner
content of an element and the append_element tool to add content as an element's
last child. Target elements with standard CSS selectors against the current
document state. Keep edits surgical: change only what was asked for, preserve
the rest of the document, and confirm each edit briefly in speech.`

type VoxdocConfig struct {
	APIKey             string            `json:"-"`
	Model              string            `json:"model"`
	GenerationModel    string            `json:"generation_model"`
	Voice              string            `json:"voice"`
	SystemInstruction  string            `json:"system_instruction"`
	LiveEndpoint       string            `json:"live_endpoint"`
	APIEndpoint        string            `json:"api_endpoint"`
	Greeting           string            `json:"greeting"`
	FrameSize          int               `json:"frame_size"`
	VADThreshold       float64           `json:"vad_threshold"`
	DocSnapshotLimit   int               `json:"doc_snapshot_limit"`
	ReportToolFailures bool              `json:"report_tool_failures"`
	DialTimeout        time.Duration     `json:"dial_timeout"`
	WriteQueueSize     int               `json:"write_queue_size"`
	MaxRetries         int               `json:"max_retries"`
	RetryBaseDelay     time.Duration     `json:"retry_base_delay"`
	RedisAddr          string            `json:"redis_addr,omitempty"`
	RedisPassword      string            `json:"-"`
	SessionTTL         time.Duration     `json:"session_ttl"`
	GatewaySecret      string            `json:"-"`
	GatewayTokenTTL    time.Duration     `json:"gateway_token_ttl"`
	TokenRefreshBuffer time.Duration     `json:"token_refresh_buffer"`
	Headers            map[string]string `json:"headers,omitempty"`
	DebugLevel         string            `json:"debug_level"`
	DebugAudio         bool              `json:"debug_audio"`
	DebugWire          bool              `json:"debug_wire"`
	AudioDeviceID      *int              `json:"audio_device_id,omitempty"`
}

func NewVoxdocConfig() *VoxdocConfig {
	c := &VoxdocConfig{
		Model:              "gemini-2.0-flash-live-001",
		GenerationModel:    "gemini-2.0-flash",
		Voice:              "Kore",
		SystemInstruction:  defaultSystemInstruction,
		LiveEndpoint:       DefaultLiveEndpoint,
		APIEndpoint:        DefaultAPIEndpoint,
		Greeting:           "Hello! Let's work on the document together.",
		FrameSize:          1024,
		VADThreshold:       0.002,
		DocSnapshotLimit:   15000,
		ReportToolFailures: false,
		DialTimeout:        15 * time.Second,
		WriteQueueSize:     256,
		MaxRetries:         3,
		RetryBaseDelay:     500 * time.Millisecond,
		SessionTTL:         30 * time.Minute,
		GatewayTokenTTL:    10 * time.Minute,
		TokenRefreshBuffer: 60 * time.Second,
		Headers:            make(map[string]string),
		DebugLevel:         "INFO",
	}

	// Load from env
	c.loadFromEnv()

	return c
}

func (c *VoxdocConfig) loadFromEnv() {
	// Load .env if exists
	_ = godotenv.Load()

	c.APIKey = os.Getenv("VOXDOC_API_KEY")

	if model := os.Getenv("VOXDOC_MODEL"); model != "" {
		c.Model = model
	}
	if model := os.Getenv("VOXDOC_GENERATION_MODEL"); model != "" {
		c.GenerationModel = model
	}
	if voice := os.Getenv("VOXDOC_VOICE"); voice != "" {
		c.Voice = voice
	}
	if instr := os.Getenv("VOXDOC_SYSTEM_INSTRUCTION"); instr != "" {
		c.SystemInstruction = instr
	}
	if endpoint := os.Getenv("VOXDOC_LIVE_ENDPOINT"); endpoint != "" {
		c.LiveEndpoint = endpoint
	}
	if endpoint := os.Getenv("VOXDOC_API_ENDPOINT"); endpoint != "" {
		c.APIEndpoint = endpoint
	}

	if frame := os.Getenv("VOXDOC_FRAME_SIZE"); frame != "" {
		if val, err := strconv.Atoi(frame); err == nil && val > 0 {
			c.FrameSize = val
		}
	}

	if threshold := os.Getenv("VOXDOC_VAD_THRESHOLD"); threshold != "" {
		if val, err := strconv.ParseFloat(threshold, 64); err == nil {
			c.VADThreshold = val
		}
	}

	if limit := os.Getenv("VOXDOC_DOC_SNAPSHOT_LIMIT"); limit != "" {
		if val, err := strconv.Atoi(limit); err == nil && val > 0 {
			c.DocSnapshotLimit = val
		}
	}

	c.ReportToolFailures = os.Getenv("VOXDOC_REPORT_TOOL_FAILURES") == "true"

	if timeout := os.Getenv("VOXDOC_DIAL_TIMEOUT_SEC"); timeout != "" {
		if val, err := strconv.Atoi(timeout); err == nil && val > 0 {
			c.DialTimeout = time.Duration(val) * time.Second
		}
	}

	if retries := os.Getenv("VOXDOC_MAX_RETRIES"); retries != "" {
		if val, err := strconv.Atoi(retries); err == nil && val >= 0 {
			c.MaxRetries = val
		}
	}

	if addr := os.Getenv("VOXDOC_REDIS_ADDR"); addr != "" {
		c.RedisAddr = addr
	}
	if password := os.Getenv("VOXDOC_REDIS_PASSWORD"); password != "" {
		c.RedisPassword = password
	}

	if ttl := os.Getenv("VOXDOC_SESSION_TTL_MIN"); ttl != "" {
		if val, err := strconv.Atoi(ttl); err == nil && val > 0 {
			c.SessionTTL = time.Duration(val) * time.Minute
		}
	}

	if secret := os.Getenv("VOXDOC_GATEWAY_SECRET"); secret != "" {
		c.GatewaySecret = secret
	}

	if level := os.Getenv("VOXDOC_DEBUG_LEVEL"); level != "" {
		c.DebugLevel = level
	}

	c.DebugAudio = os.Getenv("VOXDOC_DEBUG_AUDIO") == "true"
	c.DebugWire = os.Getenv("VOXDOC_DEBUG_WIRE") == "true"

	if deviceIDStr := os.Getenv("VOXDOC_AUDIO_DEVICE_ID"); deviceIDStr != "" {
		if deviceID, err := strconv.Atoi(deviceIDStr); err == nil {
			c.AudioDeviceID = &deviceID
		}
	}
}

// Validate returns list of issues
func (c *VoxdocConfig) Validate() []string {
	issues := []string{}

	if c.APIKey == "" && c.GatewaySecret == "" {
		issues = append(issues, "VOXDOC_API_KEY environment variable not set")
	}

	if !strings.HasPrefix(c.LiveEndpoint, "ws") {
		issues = append(issues, "Invalid live endpoint format (must be ws:// or wss://)")
	}

	if !strings.HasPrefix(c.APIEndpoint, "http") {
		issues = append(issues, "Invalid API endpoint format")
	}

	if c.VADThreshold <= 0 || c.VADThreshold >= 1 {
		issues = append(issues, fmt.Sprintf("VAD threshold out of range (0,1): %f", c.VADThreshold))
	}

	if c.FrameSize <= 0 || c.FrameSize > InputSampleRate/10 {
		issues = append(issues, fmt.Sprintf("Frame size must be within (0, %d] samples (<=100ms)", InputSampleRate/10))
	}

	if c.DocSnapshotLimit <= 0 {
		issues = append(issues, "Document snapshot limit must be positive")
	}

	validLevels := []string{"TRACE", "DEBUG", "INFO", "WARNING", "ERROR"}
	found := false
	for _, level := range validLevels {
		if level == c.DebugLevel {
			found = true
			break
		}
	}
	if !found {
		issues = append(issues, fmt.Sprintf("Invalid debug level: %s", c.DebugLevel))
	}

	return issues
}

func (c *VoxdocConfig) PrintConfig() {
	fmt.Println("🎙️  Voxdoc SDK Configuration")
	fmt.Println("==================================================")

	if c.APIKey != "" {
		visible := c.APIKey
		if len(visible) > 8 {
			visible = visible[:8]
		}
		fmt.Printf("API Key: %s...\n", visible)
	} else {
		fmt.Println("API Key: NOT SET")
	}

	fmt.Printf("Live Model: %s\n", c.Model)
	fmt.Printf("Generation Model: %s\n", c.GenerationModel)
	fmt.Printf("Voice: %s\n", c.Voice)
	fmt.Printf("Live Endpoint: %s\n", c.LiveEndpoint)
	fmt.Printf("API Endpoint: %s\n", c.APIEndpoint)
	fmt.Printf("Frame Size: %d samples\n", c.FrameSize)
	fmt.Printf("VAD Threshold: %.4f\n", c.VADThreshold)
	fmt.Printf("Doc Snapshot Limit: %d chars\n", c.DocSnapshotLimit)
	fmt.Printf("Report Tool Failures: %t\n", c.ReportToolFailures)
	if c.RedisAddr != "" {
		fmt.Printf("Redis: %s\n", c.RedisAddr)
	} else {
		fmt.Println("Redis: not configured (memory store)")
	}
	if c.GatewaySecret != "" {
		fmt.Println("Gateway Auth: enabled")
	}
	fmt.Printf("Debug Level: %s\n", c.DebugLevel)
	fmt.Printf("Debug Audio: %t\n", c.DebugAudio)
	fmt.Printf("Debug Wire: %t\n", c.DebugWire)

	if c.AudioDeviceID != nil {
		fmt.Printf("Audio Device ID: %d\n", *c.AudioDeviceID)
	} else {
		fmt.Println("Audio Device: Default")
	}
}
