package voxdoc

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Factory functions for common handlers

// CreateDocumentToolHandler is the standard wiring between the tool-call
// dispatcher and the document reconciler. Every patch outcome is forwarded to
// onResult before being reported back to the dispatcher.
func CreateDocumentToolHandler(reconciler *DocumentReconciler, onResult PatchResultHandler) ToolHandler {
	return func(name string, args map[string]interface{}) ToolResult {
		result := reconciler.ApplyTool(name, args)
		if onResult != nil {
			onResult(result)
		}
		if result.Success {
			return ToolResult{Success: true}
		}
		msg := "patch failed"
		if result.Err != nil {
			msg = result.Err.Message
		}
		return ToolResult{Success: false, Error: msg}
	}
}

// CreateTranscriptCollector folds streamed fragments into a transcript log.
func CreateTranscriptCollector(log *TranscriptLog) TranscriptionHandler {
	return func(text string, source TranscriptSource) {
		log.Append(text, source)
	}
}

// CreateTranscriptPrinter writes fragments to w as a running conversation,
// starting a new prefixed line whenever the speaker changes.
func CreateTranscriptPrinter(w io.Writer) TranscriptionHandler {
	var mu sync.Mutex
	var last TranscriptSource

	return func(text string, source TranscriptSource) {
		mu.Lock()
		defer mu.Unlock()
		if source != last {
			if last != "" {
				fmt.Fprintln(w)
			}
			fmt.Fprintf(w, "[%s] ", source)
			last = source
		}
		fmt.Fprint(w, text)
	}
}

// CreateVolumeMeterHandler tracks a decaying peak alongside the raw level.
func CreateVolumeMeterHandler(callback func(level, peak float64)) VolumeHandler {
	var mu sync.Mutex
	var peak float64

	return func(level float64) {
		mu.Lock()
		peak *= 0.95
		if level > peak {
			peak = level
		}
		current := peak
		mu.Unlock()

		if callback != nil {
			callback(level, current)
		}
	}
}

// CreateSilenceWatchdog fires callback after the level stays below threshold
// for the given duration, then re-arms on the next loud frame.
func CreateSilenceWatchdog(threshold float64, silenceFor time.Duration, callback func()) VolumeHandler {
	var mu sync.Mutex
	var silenceStart time.Time

	return func(level float64) {
		var fire bool
		mu.Lock()
		if level < threshold {
			if silenceStart.IsZero() {
				silenceStart = time.Now()
			} else if time.Since(silenceStart) >= silenceFor {
				fire = true
				silenceStart = time.Time{}
			}
		} else {
			silenceStart = time.Time{}
		}
		mu.Unlock()

		if fire && callback != nil {
			callback()
		}
	}
}

// CreateErrorLoggingHandler logs every error with a prefix.
func CreateErrorLoggingHandler(prefix string) ErrorHandler {
	logger := GetGlobalLogger().WithComponent(prefix)
	return func(err *VoxdocError) {
		if err != nil {
			logger.LogError(err)
		}
	}
}

// CreatePatchLogHandler logs patch outcomes, then forwards to callback.
func CreatePatchLogHandler(callback PatchResultHandler) PatchResultHandler {
	logger := GetGlobalLogger().WithComponent("patches")
	return func(result PatchResult) {
		if result.Success {
			logger.Infof("Applied %s to %q (v%d)", result.Mode, result.Selector, result.Version)
		} else if result.Err != nil {
			logger.Warnf("Patch %s on %q failed: %s", result.Mode, result.Selector, result.Err.Message)
		}
		if callback != nil {
			callback(result)
		}
	}
}

// Composability functions

func ChainTranscriptionHandlers(handlers ...TranscriptionHandler) TranscriptionHandler {
	return func(text string, source TranscriptSource) {
		for _, h := range handlers {
			if h != nil {
				h(text, source)
			}
		}
	}
}

func ChainErrorHandlers(handlers ...ErrorHandler) ErrorHandler {
	return func(err *VoxdocError) {
		for _, h := range handlers {
			if h != nil {
				h(err)
			}
		}
	}
}

func ChainVolumeHandlers(handlers ...VolumeHandler) VolumeHandler {
	return func(level float64) {
		for _, h := range handlers {
			if h != nil {
				h(level)
			}
		}
	}
}

func ChainPatchResultHandlers(handlers ...PatchResultHandler) PatchResultHandler {
	return func(result PatchResult) {
		for _, h := range handlers {
			if h != nil {
				h(result)
			}
		}
	}
}
