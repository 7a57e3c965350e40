package voxdoc

import (
	"encoding/json"
	"os"
	"sync"
	"time"
)

const defaultMaxTranscriptEntries = 200

// TranscriptLog accumulates the ephemeral session transcript. Streamed
// fragments from the same speaker coalesce into one entry until the other
// side produces text, matching how the wire delivers transcription deltas.
// The log is display state only; it is never replayed into the session.
type TranscriptLog struct {
	mu         sync.Mutex
	entries    []TranscriptEntry
	maxEntries int
	fragments  int64
}

func NewTranscriptLog(maxEntries int) *TranscriptLog {
	if maxEntries <= 0 {
		maxEntries = defaultMaxTranscriptEntries
	}
	return &TranscriptLog{maxEntries: maxEntries}
}

// Append folds one fragment into the log, extending the last entry when the
// speaker has not changed.
func (t *TranscriptLog) Append(text string, source TranscriptSource) {
	if text == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	t.fragments++
	if n := len(t.entries); n > 0 && t.entries[n-1].Source == source {
		t.entries[n-1].Text += text
		t.entries[n-1].Timestamp = time.Now()
		return
	}

	t.entries = append(t.entries, TranscriptEntry{
		Source:    source,
		Text:      text,
		Timestamp: time.Now(),
	})
	if len(t.entries) > t.maxEntries {
		t.entries = t.entries[len(t.entries)-t.maxEntries:]
	}
}

// Entries returns a copy of the current transcript in order.
func (t *TranscriptLog) Entries() []TranscriptEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]TranscriptEntry(nil), t.entries...)
}

// Count returns the number of coalesced entries.
func (t *TranscriptLog) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Clear drops the transcript.
func (t *TranscriptLog) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = nil
	t.fragments = 0
}

// Export writes the transcript as indented JSON.
func (t *TranscriptLog) Export(filePath string) *VoxdocError {
	t.mu.Lock()
	data, err := json.MarshalIndent(t.entries, "", "  ")
	t.mu.Unlock()
	if err != nil {
		return WrapError(err, ErrCodeJSONParse)
	}
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return WrapError(err, ErrCodeUnknown)
	}
	return nil
}

// Import replaces the transcript with a previously exported file.
func (t *TranscriptLog) Import(filePath string) *VoxdocError {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return WrapError(err, ErrCodeUnknown)
	}
	var imported []TranscriptEntry
	if err := json.Unmarshal(data, &imported); err != nil {
		return WrapError(err, ErrCodeJSONParse)
	}

	t.mu.Lock()
	t.entries = imported
	if len(t.entries) > t.maxEntries {
		t.entries = t.entries[len(t.entries)-t.maxEntries:]
	}
	t.mu.Unlock()
	return nil
}

// TranscriptStats summarizes transcript activity.
type TranscriptStats struct {
	Entries    int
	Fragments  int64
	UserTurns  int
	ModelTurns int
}

func (t *TranscriptLog) GetStats() *TranscriptStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	stats := &TranscriptStats{
		Entries:   len(t.entries),
		Fragments: t.fragments,
	}
	for _, e := range t.entries {
		switch e.Source {
		case SourceUser:
			stats.UserTurns++
		case SourceModel:
			stats.ModelTurns++
		}
	}
	return stats
}
