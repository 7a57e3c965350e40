package voxdoc

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const generationSystemPrompt = `You produce complete, self-contained HTML documents.
Return only the document markup. Do not wrap the output in markdown fences and do not add commentary.
Use semantic elements, give important elements stable id attributes, and inline any styling.`

// Attachment is reference material sent alongside a generation prompt.
type Attachment struct {
	MIMEType string
	Data     []byte
}

// GenerateRequest describes one document generation call.
type GenerateRequest struct {
	Prompt      string
	Attachments []Attachment
	Temperature *float64
}

// GeneratedDocument is the outcome of a successful generation.
type GeneratedDocument struct {
	HTML         string
	FinishReason string
	TotalTokens  int
}

// GenerationClient talks to the non-realtime REST surface for one-shot
// document generation, used to seed a project before a live session edits it.
type GenerationClient struct {
	baseURL    string
	apiKey     string
	model      string
	maxRetries int
	baseDelay  time.Duration
	httpClient *http.Client
}

func NewGenerationClient(config *VoxdocConfig) *GenerationClient {
	return &GenerationClient{
		baseURL:    config.APIEndpoint,
		apiKey:     config.APIKey,
		model:      config.GenerationModel,
		maxRetries: config.MaxRetries,
		baseDelay:  config.RetryBaseDelay,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     30 * time.Second,
				MaxIdleConnsPerHost: 2,
			},
		},
	}
}

// SetTimeout adjusts the per-request timeout.
func (gc *GenerationClient) SetTimeout(timeout time.Duration) {
	gc.httpClient.Timeout = timeout
}

type generateContentRequest struct {
	Contents          []ContentPayload      `json:"contents"`
	SystemInstruction *ContentPayload       `json:"systemInstruction,omitempty"`
	GenerationConfig  *restGenerationConfig `json:"generationConfig,omitempty"`
}

type restGenerationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content      ContentPayload `json:"content"`
		FinishReason string         `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata *struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata,omitempty"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// GenerateDocument asks the model for a full HTML document from a prompt and
// optional attachments. Rate limits, server errors, and network failures are
// retried with exponential backoff; request errors are not.
func (gc *GenerationClient) GenerateDocument(ctx context.Context, genReq *GenerateRequest) Result[*GeneratedDocument] {
	if genReq == nil || strings.TrimSpace(genReq.Prompt) == "" {
		return Err[*GeneratedDocument](NewVoxdocError("prompt cannot be empty", ErrCodeInvalidRequest))
	}

	parts := []PartPayload{{Text: genReq.Prompt}}
	for _, att := range genReq.Attachments {
		if len(att.Data) == 0 {
			continue
		}
		parts = append(parts, PartPayload{InlineData: &InlineBlob{
			MIMEType: att.MIMEType,
			Data:     base64.StdEncoding.EncodeToString(att.Data),
		}})
	}

	reqBody := generateContentRequest{
		Contents: []ContentPayload{{Role: "user", Parts: parts}},
		SystemInstruction: &ContentPayload{
			Parts: []PartPayload{{Text: generationSystemPrompt}},
		},
	}
	if genReq.Temperature != nil {
		reqBody.GenerationConfig = &restGenerationConfig{Temperature: genReq.Temperature}
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return Err[*GeneratedDocument](NewJSONError(err.Error()))
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", gc.baseURL, gc.model, url.QueryEscape(gc.apiKey))
	respBody, vErr := gc.post(ctx, endpoint, payload)
	if vErr != nil {
		return Err[*GeneratedDocument](vErr)
	}

	var parsed generateContentResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return Err[*GeneratedDocument](NewJSONError(err.Error()))
	}
	if parsed.Error != nil {
		return Err[*GeneratedDocument](NewGenerationError(parsed.Error.Message).AddDetail("status", parsed.Error.Status))
	}
	if len(parsed.Candidates) == 0 {
		return Err[*GeneratedDocument](NewGenerationError("no candidates in response"))
	}

	var sb strings.Builder
	for _, part := range parsed.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	html := stripHTMLFence(sb.String())
	if html == "" {
		return Err[*GeneratedDocument](NewGenerationError("response contained no document"))
	}

	doc := &GeneratedDocument{
		HTML:         html,
		FinishReason: parsed.Candidates[0].FinishReason,
	}
	if parsed.UsageMetadata != nil {
		doc.TotalTokens = parsed.UsageMetadata.TotalTokenCount
	}
	return Ok(doc)
}

// post sends one request with retry on retryable failures.
func (gc *GenerationClient) post(ctx context.Context, endpoint string, body []byte) ([]byte, *VoxdocError) {
	var lastErr *VoxdocError
	for attempt := 0; ; attempt++ {
		data, retryable, vErr := gc.postOnce(ctx, endpoint, body)
		if vErr == nil {
			return data, nil
		}
		lastErr = vErr
		if !retryable || attempt >= gc.maxRetries {
			return nil, lastErr
		}

		delay := gc.baseDelay << uint(attempt)
		select {
		case <-ctx.Done():
			return nil, WrapError(ctx.Err(), ErrCodeTimeout)
		case <-time.After(delay):
		}
	}
}

func (gc *GenerationClient) postOnce(ctx context.Context, endpoint string, body []byte) ([]byte, bool, *VoxdocError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, false, WrapError(err, ErrCodeInvalidRequest)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "voxdoc-go/1.0")

	resp, err := gc.httpClient.Do(req)
	if err != nil {
		return nil, true, WrapError(err, ErrCodeConnectionFailed)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, WrapError(err, ErrCodeConnectionFailed)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return respBody, false, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, true, NewRateLimitError(apiErrorMessage(respBody, resp.StatusCode)).AddDetail("status_code", resp.StatusCode)
	case resp.StatusCode >= 500:
		return nil, true, NewGenerationError(apiErrorMessage(respBody, resp.StatusCode)).AddDetail("status_code", resp.StatusCode)
	default:
		return nil, false, NewVoxdocError(apiErrorMessage(respBody, resp.StatusCode), ErrCodeInvalidRequest).AddDetail("status_code", resp.StatusCode)
	}
}

// apiErrorMessage digs the human-readable message out of an error body,
// falling back to the HTTP status text.
func apiErrorMessage(body []byte, statusCode int) string {
	var wrapper struct {
		Error *apiError `json:"error"`
	}
	if err := json.Unmarshal(body, &wrapper); err == nil && wrapper.Error != nil && wrapper.Error.Message != "" {
		return wrapper.Error.Message
	}
	if len(body) > 0 && len(body) < 200 {
		return string(body)
	}
	return http.StatusText(statusCode)
}

// stripHTMLFence removes a markdown code fence if the model wrapped its
// output despite instructions.
func stripHTMLFence(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```html")
	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimSpace(trimmed)
}
