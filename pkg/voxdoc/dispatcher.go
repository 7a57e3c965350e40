package voxdoc

import (
	"fmt"

	"github.com/google/uuid"
)

// ToolCallDispatcher routes inbound function calls to the registered handler
// and produces exactly one acknowledgment per call. Handler outcomes never
// change the number of responses, only their payload.
type ToolCallDispatcher struct {
	handler        ToolHandler
	reportFailures bool
	logger         *VoxdocLogger
}

// NewToolCallDispatcher builds a dispatcher. When reportFailures is false,
// every call is acknowledged with an ok payload regardless of handler outcome
// so the model keeps narrating instead of retrying edits.
func NewToolCallDispatcher(handler ToolHandler, reportFailures bool) *ToolCallDispatcher {
	return &ToolCallDispatcher{
		handler:        handler,
		reportFailures: reportFailures,
		logger:         GetGlobalLogger().WithComponent("dispatcher"),
	}
}

// SetHandler swaps the tool handler for subsequent dispatches.
func (d *ToolCallDispatcher) SetHandler(handler ToolHandler) {
	d.handler = handler
}

// Dispatch executes each call in array order and returns one response per
// call, preserving order. Calls arriving without an id are assigned a fresh
// one so the batch stays addressable.
func (d *ToolCallDispatcher) Dispatch(calls []FunctionCall) []FunctionResponse {
	responses := make([]FunctionResponse, 0, len(calls))
	for _, call := range calls {
		id := call.ID
		if id == "" {
			id = uuid.New().String()
		}

		result := d.invoke(call)
		payload := ToolResponseOK()
		if !result.Success && d.reportFailures {
			msg := result.Error
			if msg == "" {
				msg = "tool execution failed"
			}
			payload = ToolResponseError(msg)
		}

		if !result.Success {
			d.logger.WithFields(map[string]interface{}{
				"tool":     call.Name,
				"call_id":  id,
				"reported": d.reportFailures,
			}).Warn("Tool call failed")
		} else {
			d.logger.WithFields(map[string]interface{}{
				"tool":    call.Name,
				"call_id": id,
			}).Debug("Tool call handled")
		}

		responses = append(responses, FunctionResponse{
			ID:       id,
			Name:     call.Name,
			Response: payload,
		})
	}
	return responses
}

// invoke shields the dispatch loop from a panicking handler; a panic is
// treated as a failed call so the acknowledgment still goes out.
func (d *ToolCallDispatcher) invoke(call FunctionCall) (result ToolResult) {
	if d.handler == nil {
		return ToolResult{Success: false, Error: "no tool handler registered"}
	}
	defer func() {
		if r := recover(); r != nil {
			d.logger.WithField("tool", call.Name).Errorf("Tool handler panicked: %v", r)
			result = ToolResult{Success: false, Error: fmt.Sprintf("handler panic: %v", r)}
		}
	}()
	return d.handler(call.Name, call.Args)
}
