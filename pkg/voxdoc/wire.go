package voxdoc

import (
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
)

// Wire-level message types for the bidirectional live session. Field names
// and nesting are part of the protocol contract with the remote endpoint and
// must not drift; everything is camelCase JSON.

const (
	MimePCM16Input  = "audio/pcm;rate=16000"
	MimePCM16Output = "audio/pcm;rate=24000"

	ToolUpdateElement = "update_element"
	ToolAppendElement = "append_element"

	ModalityAudio = "AUDIO"
)

// ClientMessage is the envelope for everything sent upstream.
type ClientMessage struct {
	Setup         *SetupPayload         `json:"setup,omitempty"`
	RealtimeInput *RealtimeInputPayload `json:"realtimeInput,omitempty"`
	ToolResponse  *ToolResponsePayload  `json:"toolResponse,omitempty"`
}

// SetupPayload negotiates model, voice, tools, and transcription at open.
type SetupPayload struct {
	Model                    string                   `json:"model"`
	GenerationConfig         *GenerationConfigPayload `json:"generationConfig,omitempty"`
	SystemInstruction        *ContentPayload          `json:"systemInstruction,omitempty"`
	Tools                    []ToolDeclaration        `json:"tools,omitempty"`
	InputAudioTranscription  *TranscriptionConfig     `json:"inputAudioTranscription,omitempty"`
	OutputAudioTranscription *TranscriptionConfig     `json:"outputAudioTranscription,omitempty"`
}

// TranscriptionConfig marshals as an empty object; presence enables the feature.
type TranscriptionConfig struct{}

type GenerationConfigPayload struct {
	ResponseModalities []string             `json:"responseModalities,omitempty"`
	SpeechConfig       *SpeechConfigPayload `json:"speechConfig,omitempty"`
}

type SpeechConfigPayload struct {
	VoiceConfig *VoiceConfigPayload `json:"voiceConfig,omitempty"`
}

type VoiceConfigPayload struct {
	PrebuiltVoiceConfig *PrebuiltVoiceConfigPayload `json:"prebuiltVoiceConfig,omitempty"`
}

type PrebuiltVoiceConfigPayload struct {
	VoiceName string `json:"voiceName"`
}

// ContentPayload is a role-tagged list of parts, shared with the REST
// generation surface which uses the same shape.
type ContentPayload struct {
	Role  string        `json:"role,omitempty"`
	Parts []PartPayload `json:"parts"`
}

type PartPayload struct {
	Text       string      `json:"text,omitempty"`
	InlineData *InlineBlob `json:"inlineData,omitempty"`
}

type InlineBlob struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

// RealtimeInputPayload carries either one media chunk or one text injection.
type RealtimeInputPayload struct {
	Media *MediaBlob `json:"media,omitempty"`
	Text  string     `json:"text,omitempty"`
}

type MediaBlob struct {
	Data     string `json:"data"`
	MIMEType string `json:"mimeType"`
}

type ToolResponsePayload struct {
	FunctionResponses []FunctionResponse `json:"functionResponses"`
}

type FunctionCall struct {
	ID   string                 `json:"id,omitempty"`
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args,omitempty"`
}

type FunctionResponse struct {
	ID       string                 `json:"id,omitempty"`
	Name     string                 `json:"name"`
	Response map[string]interface{} `json:"response"`
}

type ToolDeclaration struct {
	FunctionDeclarations []FunctionDeclaration `json:"functionDeclarations,omitempty"`
}

type FunctionDeclaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  *SchemaPayload `json:"parameters,omitempty"`
}

type SchemaPayload struct {
	Type        string                    `json:"type"`
	Description string                    `json:"description,omitempty"`
	Properties  map[string]*SchemaPayload `json:"properties,omitempty"`
	Required    []string                  `json:"required,omitempty"`
}

// ServerMessage is the envelope for everything received downstream. A single
// message may carry any combination of content, tool calls, and flags.
type ServerMessage struct {
	SetupComplete *SetupCompletePayload `json:"setupComplete,omitempty"`
	ServerContent *ServerContentPayload `json:"serverContent,omitempty"`
	ToolCall      *ToolCallPayload      `json:"toolCall,omitempty"`
	GoAway        *GoAwayPayload        `json:"goAway,omitempty"`
}

type SetupCompletePayload struct{}

type GoAwayPayload struct {
	TimeLeft string `json:"timeLeft,omitempty"`
}

type ServerContentPayload struct {
	ModelTurn           *ContentPayload      `json:"modelTurn,omitempty"`
	Interrupted         bool                 `json:"interrupted,omitempty"`
	TurnComplete        bool                 `json:"turnComplete,omitempty"`
	InputTranscription  *TranscriptionResult `json:"inputTranscription,omitempty"`
	OutputTranscription *TranscriptionResult `json:"outputTranscription,omitempty"`
}

type TranscriptionResult struct {
	Text string `json:"text,omitempty"`
}

type ToolCallPayload struct {
	FunctionCalls []FunctionCall `json:"functionCalls"`
}

// Kind names the message variant for debug logging.
func (m *ServerMessage) Kind() string {
	switch {
	case m.SetupComplete != nil:
		return "setupComplete"
	case m.ToolCall != nil:
		return "toolCall"
	case m.GoAway != nil:
		return "goAway"
	case m.ServerContent != nil:
		return "serverContent"
	default:
		return "unknown"
	}
}

// Marshal serializes a client message for the socket.
func (m *ClientMessage) Marshal() ([]byte, error) {
	return sonic.Marshal(m)
}

// ParseServerMessage deserializes one inbound frame.
func ParseServerMessage(data []byte) (*ServerMessage, error) {
	var msg ServerMessage
	if err := sonic.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// NewSetupMessage builds the opening handshake for the negotiated
// model/voice/system-instruction/tool set. Audio is the only response
// modality; input and output transcription are always enabled.
func NewSetupMessage(model, voice, systemInstruction string) *ClientMessage {
	if !strings.HasPrefix(model, "models/") {
		model = "models/" + model
	}
	setup := &SetupPayload{
		Model: model,
		GenerationConfig: &GenerationConfigPayload{
			ResponseModalities: []string{ModalityAudio},
			SpeechConfig: &SpeechConfigPayload{
				VoiceConfig: &VoiceConfigPayload{
					PrebuiltVoiceConfig: &PrebuiltVoiceConfigPayload{VoiceName: voice},
				},
			},
		},
		Tools:                    DefaultToolDeclarations(),
		InputAudioTranscription:  &TranscriptionConfig{},
		OutputAudioTranscription: &TranscriptionConfig{},
	}
	if systemInstruction != "" {
		setup.SystemInstruction = &ContentPayload{
			Parts: []PartPayload{{Text: systemInstruction}},
		}
	}
	return &ClientMessage{Setup: setup}
}

// NewMediaChunkMessage wraps one base64 PCM16 capture frame.
func NewMediaChunkMessage(data string) *ClientMessage {
	return &ClientMessage{
		RealtimeInput: &RealtimeInputPayload{
			Media: &MediaBlob{Data: data, MIMEType: MimePCM16Input},
		},
	}
}

// NewTextInputMessage injects out-of-band text into the live session.
func NewTextInputMessage(text string) *ClientMessage {
	return &ClientMessage{
		RealtimeInput: &RealtimeInputPayload{Text: text},
	}
}

// NewToolResponseMessage batches the acknowledgments for one inbound message.
func NewToolResponseMessage(responses []FunctionResponse) *ClientMessage {
	return &ClientMessage{
		ToolResponse: &ToolResponsePayload{FunctionResponses: responses},
	}
}

// NewDocumentContextMessage wraps a document snapshot as an out-of-band
// system context injection, bounded to the configured character budget.
func NewDocumentContextMessage(html string, limit int) *ClientMessage {
	wrapped := fmt.Sprintf("[SYSTEM] CURRENT_DOCUMENT_STATE:\n```html\n%s\n```", TruncateForContext(html, limit))
	return NewTextInputMessage(wrapped)
}

// ToolResponseOK is the acknowledgment payload every call receives by default.
func ToolResponseOK() map[string]interface{} {
	return map[string]interface{}{"result": "ok"}
}

// ToolResponseError carries failure detail when the reporting policy is on.
func ToolResponseError(errMsg string) map[string]interface{} {
	return map[string]interface{}{"result": "error", "error": errMsg}
}

// DefaultToolDeclarations declares the two document patch tools.
func DefaultToolDeclarations() []ToolDeclaration {
	selectorSchema := &SchemaPayload{
		Type:        "STRING",
		Description: "CSS selector addressing the target element in the current document",
	}
	htmlSchema := &SchemaPayload{
		Type:        "STRING",
		Description: "HTML content for the edit",
	}
	return []ToolDeclaration{
		{
			FunctionDeclarations: []FunctionDeclaration{
				{
					Name:        ToolUpdateElement,
					Description: "Replace the inner content of the first element matching the selector",
					Parameters: &SchemaPayload{
						Type: "OBJECT",
						Properties: map[string]*SchemaPayload{
							"selector": selectorSchema,
							"html":     htmlSchema,
						},
						Required: []string{"selector", "html"},
					},
				},
				{
					Name:        ToolAppendElement,
					Description: "Insert content as the last child of the first element matching the selector",
					Parameters: &SchemaPayload{
						Type: "OBJECT",
						Properties: map[string]*SchemaPayload{
							"selector": selectorSchema,
							"html":     htmlSchema,
						},
						Required: []string{"selector", "html"},
					},
				},
			},
		},
	}
}
