package voxdoc

import (
	"path/filepath"
	"testing"
)

func TestTranscriptCoalescesSameSource(t *testing.T) {
	log := NewTranscriptLog(0)

	log.Append("make the ", SourceUser)
	log.Append("title blue", SourceUser)
	log.Append("Done, the title ", SourceModel)
	log.Append("is blue now.", SourceModel)
	log.Append("thanks", SourceUser)

	entries := log.Entries()
	if len(entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(entries))
	}
	if entries[0].Text != "make the title blue" || entries[0].Source != SourceUser {
		t.Errorf("entry 0 = %+v", entries[0])
	}
	if entries[1].Text != "Done, the title is blue now." || entries[1].Source != SourceModel {
		t.Errorf("entry 1 = %+v", entries[1])
	}
	if entries[2].Text != "thanks" {
		t.Errorf("entry 2 = %+v", entries[2])
	}
}

func TestTranscriptIgnoresEmptyFragments(t *testing.T) {
	log := NewTranscriptLog(0)
	log.Append("", SourceUser)
	if log.Count() != 0 {
		t.Errorf("count = %d after empty fragment", log.Count())
	}
}

func TestTranscriptTrimsHistory(t *testing.T) {
	log := NewTranscriptLog(4)

	// Alternate sources so nothing coalesces.
	for i := 0; i < 10; i++ {
		source := SourceUser
		if i%2 == 1 {
			source = SourceModel
		}
		log.Append("turn", source)
	}

	if log.Count() != 4 {
		t.Errorf("count = %d, want trim to 4", log.Count())
	}
}

func TestTranscriptExportImportRoundTrip(t *testing.T) {
	log := NewTranscriptLog(0)
	log.Append("hello", SourceUser)
	log.Append("hi there", SourceModel)

	path := filepath.Join(t.TempDir(), "transcript.json")
	if vErr := log.Export(path); vErr != nil {
		t.Fatalf("export failed: %v", vErr)
	}

	restored := NewTranscriptLog(0)
	if vErr := restored.Import(path); vErr != nil {
		t.Fatalf("import failed: %v", vErr)
	}

	entries := restored.Entries()
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].Text != "hello" || entries[1].Text != "hi there" {
		t.Errorf("entries = %+v", entries)
	}
}

func TestTranscriptImportMissingFile(t *testing.T) {
	log := NewTranscriptLog(0)
	if vErr := log.Import(filepath.Join(t.TempDir(), "nope.json")); vErr == nil {
		t.Error("import of missing file returned nil")
	}
}

func TestTranscriptStats(t *testing.T) {
	log := NewTranscriptLog(0)
	log.Append("a", SourceUser)
	log.Append("b", SourceModel)
	log.Append("c", SourceModel) // coalesces
	log.Append("d", SourceUser)

	stats := log.GetStats()
	if stats.Entries != 3 {
		t.Errorf("entries = %d, want 3", stats.Entries)
	}
	if stats.Fragments != 4 {
		t.Errorf("fragments = %d, want 4", stats.Fragments)
	}
	if stats.UserTurns != 2 || stats.ModelTurns != 1 {
		t.Errorf("turns = %d user / %d model", stats.UserTurns, stats.ModelTurns)
	}
}

func TestTranscriptClear(t *testing.T) {
	log := NewTranscriptLog(0)
	log.Append("x", SourceUser)
	log.Clear()
	if log.Count() != 0 {
		t.Errorf("count = %d after clear", log.Count())
	}
}
