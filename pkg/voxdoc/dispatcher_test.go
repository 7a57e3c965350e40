package voxdoc

import (
	"sync"
	"testing"
)

type recordingHandler struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]string
	panic bool
}

func (h *recordingHandler) handle(name string, args map[string]interface{}) ToolResult {
	h.mu.Lock()
	h.calls = append(h.calls, name)
	h.mu.Unlock()

	if h.panic {
		panic("handler exploded")
	}
	if msg, ok := h.fail[name]; ok {
		return ToolResult{Success: false, Error: msg}
	}
	return ToolResult{Success: true}
}

func TestDispatchExactlyOnePerCall(t *testing.T) {
	h := &recordingHandler{}
	d := NewToolCallDispatcher(h.handle, false)

	calls := []FunctionCall{
		{ID: "c1", Name: ToolUpdateElement, Args: map[string]interface{}{"selector": "h1", "html": "Hello"}},
		{ID: "c2", Name: ToolAppendElement, Args: map[string]interface{}{"selector": "ul", "html": "<li>New</li>"}},
		{ID: "c3", Name: ToolUpdateElement, Args: map[string]interface{}{"selector": "p", "html": "x"}},
	}

	responses := d.Dispatch(calls)
	if len(responses) != len(calls) {
		t.Fatalf("got %d responses for %d calls", len(responses), len(calls))
	}
	for i, resp := range responses {
		if resp.ID != calls[i].ID {
			t.Errorf("response %d id = %q, want %q (order must be preserved)", i, resp.ID, calls[i].ID)
		}
		if resp.Name != calls[i].Name {
			t.Errorf("response %d name = %q, want %q", i, resp.Name, calls[i].Name)
		}
		if resp.Response["result"] != "ok" {
			t.Errorf("response %d result = %v, want ok", i, resp.Response["result"])
		}
	}
	if len(h.calls) != 3 {
		t.Errorf("handler invoked %d times, want 3", len(h.calls))
	}
}

func TestDispatchFailureStillAcked(t *testing.T) {
	h := &recordingHandler{fail: map[string]string{ToolUpdateElement: "no such element"}}
	d := NewToolCallDispatcher(h.handle, false)

	responses := d.Dispatch([]FunctionCall{{ID: "c1", Name: ToolUpdateElement}})
	if len(responses) != 1 {
		t.Fatalf("got %d responses, want 1", len(responses))
	}
	// Default policy: failure detail stays local, the model sees ok.
	if responses[0].Response["result"] != "ok" {
		t.Errorf("result = %v, want ok under default policy", responses[0].Response["result"])
	}
}

func TestDispatchReportFailuresPolicy(t *testing.T) {
	h := &recordingHandler{fail: map[string]string{ToolUpdateElement: "no such element"}}
	d := NewToolCallDispatcher(h.handle, true)

	responses := d.Dispatch([]FunctionCall{{ID: "c1", Name: ToolUpdateElement}})
	if responses[0].Response["result"] != "error" {
		t.Errorf("result = %v, want error with reporting on", responses[0].Response["result"])
	}
	if responses[0].Response["error"] != "no such element" {
		t.Errorf("error detail = %v, want handler message", responses[0].Response["error"])
	}
}

func TestDispatchMissingIDGetsFallback(t *testing.T) {
	h := &recordingHandler{}
	d := NewToolCallDispatcher(h.handle, false)

	responses := d.Dispatch([]FunctionCall{{Name: ToolUpdateElement}})
	if responses[0].ID == "" {
		t.Error("response without id, call would be unaddressable")
	}
}

func TestDispatchNilHandlerStillAcks(t *testing.T) {
	d := NewToolCallDispatcher(nil, false)

	responses := d.Dispatch([]FunctionCall{{ID: "c1", Name: ToolUpdateElement}})
	if len(responses) != 1 {
		t.Fatalf("got %d responses, want 1", len(responses))
	}
	if responses[0].Response["result"] != "ok" {
		t.Errorf("result = %v, want ok", responses[0].Response["result"])
	}
}

func TestDispatchPanickingHandlerStillAcks(t *testing.T) {
	h := &recordingHandler{panic: true}
	d := NewToolCallDispatcher(h.handle, true)

	responses := d.Dispatch([]FunctionCall{
		{ID: "c1", Name: ToolUpdateElement},
		{ID: "c2", Name: ToolAppendElement},
	})
	if len(responses) != 2 {
		t.Fatalf("got %d responses, want 2; a panic must not drop acks", len(responses))
	}
	for _, resp := range responses {
		if resp.Response["result"] != "error" {
			t.Errorf("response %s result = %v, want error", resp.ID, resp.Response["result"])
		}
	}
}

func TestDispatchEmpty(t *testing.T) {
	d := NewToolCallDispatcher(nil, false)
	if responses := d.Dispatch(nil); len(responses) != 0 {
		t.Errorf("got %d responses for no calls", len(responses))
	}
}
