package voxdoc

import "time"

// Result types for error handling
type Result[T any] struct {
	Data    T
	Error   *VoxdocError
	Success bool
}

func Ok[T any](data T) Result[T] {
	return Result[T]{Data: data, Success: true}
}

func Err[T any](err *VoxdocError) Result[T] {
	return Result[T]{Error: err, Success: false}
}

// ConnectionState enum for the live session lifecycle
type ConnectionState string

const (
	StateIdle       ConnectionState = "idle"
	StateConnecting ConnectionState = "connecting"
	StateActive     ConnectionState = "active"
	StateClosed     ConnectionState = "closed"
	StateError      ConnectionState = "error"
)

// VoxdocError struct
type VoxdocError struct {
	Message   string
	Code      string
	Timestamp float64
	err       error
	Details   map[string]interface{} // Additional details about the error
}

func (e *VoxdocError) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return e.Message
}

func NewVoxdocError(message, code string) *VoxdocError {
	return &VoxdocError{
		Message:   message,
		Code:      code,
		Timestamp: float64(time.Now().UnixMilli()),
	}
}

// AudioFrame is one processed capture block: raw PCM16 samples at the input
// rate, the frame's RMS energy, and its speech/silence classification.
// PCM is only populated for speech frames; silence frames carry RMS alone.
type AudioFrame struct {
	PCM    []int16
	RMS    float64
	Speech bool
}

// TranscriptSource tags a transcript fragment with who produced it.
type TranscriptSource string

const (
	SourceUser  TranscriptSource = "user"
	SourceModel TranscriptSource = "model"
)

// TranscriptEntry is one ephemeral transcript fragment.
type TranscriptEntry struct {
	Source    TranscriptSource `json:"source"`
	Text      string           `json:"text"`
	Timestamp time.Time        `json:"timestamp"`
}

// ToolResult is what a tool handler reports back for one call.
type ToolResult struct {
	Success bool
	Error   string
}

// ToolHandler is the seam the host wires the document reconciler into.
// It is invoked synchronously for every tool call in an inbound message.
type ToolHandler func(name string, args map[string]interface{}) ToolResult

// Handler types
type VolumeHandler func(level float64)
type TranscriptionHandler func(text string, source TranscriptSource)
type ErrorHandler func(*VoxdocError)
type StateHandler func(ConnectionState)
type PatchResultHandler func(PatchResult)
type TurnCompleteHandler func()

// CaptureStats summarizes capture pipeline activity.
type CaptureStats struct {
	Frames        int64
	SpeechFrames  int64
	SilenceFrames int64
	MaxRMS        float64
	LastRMS       float64
	DroppedSends  int64
	StartedAt     time.Time
}

// PlaybackStats summarizes playback pipeline activity.
type PlaybackStats struct {
	ChunksScheduled int64
	ChunksDropped   int64
	Interrupts      int64
	PendingSources  int
	NextStartTime   float64
	ClockSeconds    float64
}

// SessionStats aggregates the live session counters exposed by GetStats.
type SessionStats struct {
	State            ConnectionState
	SessionID        string
	MessagesReceived int64
	MessagesSent     int64
	FramesDropped    int64
	ToolCalls        int64
	Capture          *CaptureStats
	Playback         *PlaybackStats
}
