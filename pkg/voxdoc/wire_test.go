package voxdoc

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/bytedance/sonic"
)

func TestMediaChunkMessageShape(t *testing.T) {
	msg := NewMediaChunkMessage("AAEC")
	data, err := msg.Marshal()
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	want := `{"realtimeInput":{"media":{"data":"AAEC","mimeType":"audio/pcm;rate=16000"}}}`
	if string(data) != want {
		t.Errorf("wire bytes = %s\nwant %s", data, want)
	}
}

func TestTextInputMessageShape(t *testing.T) {
	data, err := NewTextInputMessage("hello there").Marshal()
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	want := `{"realtimeInput":{"text":"hello there"}}`
	if string(data) != want {
		t.Errorf("wire bytes = %s\nwant %s", data, want)
	}
}

func TestToolResponseMessageShape(t *testing.T) {
	msg := NewToolResponseMessage([]FunctionResponse{
		{ID: "c1", Name: ToolUpdateElement, Response: ToolResponseOK()},
	})
	data, err := msg.Marshal()
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	want := `{"toolResponse":{"functionResponses":[{"id":"c1","name":"update_element","response":{"result":"ok"}}]}}`
	if string(data) != want {
		t.Errorf("wire bytes = %s\nwant %s", data, want)
	}
}

func TestSetupMessageNegotiation(t *testing.T) {
	data, err := NewSetupMessage("m1", "Kore", "be helpful").Marshal()
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var parsed map[string]interface{}
	if err := sonic.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	setup, ok := parsed["setup"].(map[string]interface{})
	if !ok {
		t.Fatalf("no setup payload in %s", data)
	}

	if setup["model"] != "models/m1" {
		t.Errorf("model = %v, want models/m1 (prefix added)", setup["model"])
	}

	gen := setup["generationConfig"].(map[string]interface{})
	modalities := gen["responseModalities"].([]interface{})
	if len(modalities) != 1 || modalities[0] != "AUDIO" {
		t.Errorf("responseModalities = %v, want [AUDIO]", modalities)
	}

	voice := gen["speechConfig"].(map[string]interface{})["voiceConfig"].(map[string]interface{})["prebuiltVoiceConfig"].(map[string]interface{})["voiceName"]
	if voice != "Kore" {
		t.Errorf("voiceName = %v, want Kore", voice)
	}

	if _, ok := setup["inputAudioTranscription"]; !ok {
		t.Error("inputAudioTranscription missing, input transcripts would be disabled")
	}
	if _, ok := setup["outputAudioTranscription"]; !ok {
		t.Error("outputAudioTranscription missing")
	}

	tools := setup["tools"].([]interface{})
	decls := tools[0].(map[string]interface{})["functionDeclarations"].([]interface{})
	if len(decls) != 2 {
		t.Fatalf("declared %d tools, want 2", len(decls))
	}
	names := map[string]bool{}
	for _, d := range decls {
		decl := d.(map[string]interface{})
		names[decl["name"].(string)] = true
		params := decl["parameters"].(map[string]interface{})
		props := params["properties"].(map[string]interface{})
		if _, ok := props["selector"]; !ok {
			t.Errorf("tool %v missing selector parameter", decl["name"])
		}
		if _, ok := props["html"]; !ok {
			t.Errorf("tool %v missing html parameter", decl["name"])
		}
	}
	if !names[ToolUpdateElement] || !names[ToolAppendElement] {
		t.Errorf("declared tools = %v", names)
	}

	instr := setup["systemInstruction"].(map[string]interface{})["parts"].([]interface{})[0].(map[string]interface{})["text"]
	if instr != "be helpful" {
		t.Errorf("systemInstruction = %v", instr)
	}
}

func TestSetupMessageKeepsModelPrefix(t *testing.T) {
	msg := NewSetupMessage("models/m1", "Kore", "")
	if msg.Setup.Model != "models/m1" {
		t.Errorf("model = %q, prefix doubled", msg.Setup.Model)
	}
	if msg.Setup.SystemInstruction != nil {
		t.Error("empty instruction produced a systemInstruction payload")
	}
}

func TestDocumentContextMessageWrapsAndTruncates(t *testing.T) {
	html := strings.Repeat("x", 100)
	msg := NewDocumentContextMessage(html, 10)

	text := msg.RealtimeInput.Text
	if !strings.HasPrefix(text, "[SYSTEM] CURRENT_DOCUMENT_STATE:\n```html\n") {
		t.Errorf("context prefix wrong: %q", text)
	}
	if !strings.HasSuffix(text, "\n```") {
		t.Errorf("context fence not closed: %q", text)
	}
	if !strings.Contains(text, strings.Repeat("x", 10)) || strings.Contains(text, strings.Repeat("x", 11)) {
		t.Errorf("snapshot not truncated to budget: %q", text)
	}
}

func TestTruncateForContext(t *testing.T) {
	if got := TruncateForContext("abcdef", 3); got != "abc" {
		t.Errorf("got %q, want abc", got)
	}
	if got := TruncateForContext("ab", 10); got != "ab" {
		t.Errorf("short input changed: %q", got)
	}
	if got := TruncateForContext("aé", 2); got != "a" {
		t.Errorf("truncate inside a rune = %q, want backed off to %q", got, "a")
	}
	arrows := strings.Repeat("→", 4) // 3 bytes per rune
	if got := TruncateForContext(arrows, 7); got != strings.Repeat("→", 2) {
		t.Errorf("truncate = %q, want two whole runes", got)
	}
	if !utf8.ValidString(TruncateForContext(arrows, 8)) {
		t.Error("truncation produced invalid UTF-8")
	}
	if got := TruncateForContext("ab", 0); got != "ab" {
		t.Errorf("zero limit should disable truncation: %q", got)
	}
}

func TestParseServerMessageCombined(t *testing.T) {
	raw := `{"serverContent":{"modelTurn":{"parts":[{"inlineData":{"mimeType":"audio/pcm;rate=24000","data":"AAECAw=="}},{"text":"spoken"}]},"interrupted":true,"turnComplete":true,"inputTranscription":{"text":"user said"},"outputTranscription":{"text":"model said"}}}`

	msg, err := ParseServerMessage([]byte(raw))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	sc := msg.ServerContent
	if sc == nil {
		t.Fatal("serverContent missing")
	}
	if !sc.Interrupted || !sc.TurnComplete {
		t.Errorf("flags = interrupted %v, turnComplete %v", sc.Interrupted, sc.TurnComplete)
	}
	if sc.InputTranscription.Text != "user said" || sc.OutputTranscription.Text != "model said" {
		t.Errorf("transcriptions = %+v / %+v", sc.InputTranscription, sc.OutputTranscription)
	}
	if len(sc.ModelTurn.Parts) != 2 {
		t.Fatalf("parts = %d, want 2", len(sc.ModelTurn.Parts))
	}
	if sc.ModelTurn.Parts[0].InlineData.Data != "AAECAw==" {
		t.Errorf("inline audio = %q", sc.ModelTurn.Parts[0].InlineData.Data)
	}
	if sc.ModelTurn.Parts[1].Text != "spoken" {
		t.Errorf("text part = %q", sc.ModelTurn.Parts[1].Text)
	}
	if msg.Kind() != "serverContent" {
		t.Errorf("kind = %s", msg.Kind())
	}
}

func TestParseServerMessageToolCall(t *testing.T) {
	raw := `{"toolCall":{"functionCalls":[{"id":"f1","name":"update_element","args":{"selector":"h1","html":"Hi"}}]}}`

	msg, err := ParseServerMessage([]byte(raw))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if msg.Kind() != "toolCall" {
		t.Errorf("kind = %s", msg.Kind())
	}
	calls := msg.ToolCall.FunctionCalls
	if len(calls) != 1 || calls[0].ID != "f1" || calls[0].Name != ToolUpdateElement {
		t.Fatalf("calls = %+v", calls)
	}
	if calls[0].Args["selector"] != "h1" {
		t.Errorf("args = %v", calls[0].Args)
	}
}

func TestParseServerMessageMalformed(t *testing.T) {
	if _, err := ParseServerMessage([]byte(`{"setup`)); err == nil {
		t.Error("expected parse error for truncated JSON")
	}
}

func TestToolResponsePayloads(t *testing.T) {
	ok := ToolResponseOK()
	if ok["result"] != "ok" || len(ok) != 1 {
		t.Errorf("ok payload = %v", ok)
	}
	bad := ToolResponseError("selector drift")
	if bad["result"] != "error" || bad["error"] != "selector drift" {
		t.Errorf("error payload = %v", bad)
	}
}
